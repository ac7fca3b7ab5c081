// Package safeconv provides integer conversions that never wrap silently.
package safeconv

import "math"

// MustIntToUint converts int to uint, panics if negative.
// Use only when negative values are logically impossible.
func MustIntToUint(v int) uint {
	if v < 0 {
		panic("safeconv: negative int to uint conversion")
	}

	return uint(v)
}

// ClampInt64ToInt converts int64 to int, saturating at the int bounds on
// 32-bit platforms.
func ClampInt64ToInt(v int64) int {
	if v > math.MaxInt {
		return math.MaxInt
	}

	if v < math.MinInt {
		return math.MinInt
	}

	return int(v)
}
