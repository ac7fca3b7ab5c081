// Package units provides binary size unit multipliers (1024-based) and conversions.
package units

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

// ToMiB converts a byte count to fractional mebibytes.
func ToMiB(bytes int64) float64 {
	return float64(bytes) / MiB
}

// ToGiB converts a byte count to fractional gibibytes.
func ToGiB(bytes int64) float64 {
	return float64(bytes) / GiB
}
