// Package stats summarizes numeric samples for the table health rules.
// Standard deviation is always the population form (÷n).
package stats

import "math"

// Number is the set of sample types Summarize accepts.
type Number interface {
	~int | ~int32 | ~int64 | ~float64
}

// Summary describes a sample. The zero Summary describes an empty sample.
type Summary[T Number] struct {
	Count  int
	Min    T
	Max    T
	Sum    T
	Mean   float64
	StdDev float64
}

// Summarize computes the summary of values in two passes: the second pass
// accumulates squared deviations from the mean to keep the variance stable.
func Summarize[T Number](values []T) Summary[T] {
	if len(values) == 0 {
		return Summary[T]{}
	}

	s := Summary[T]{Count: len(values), Min: values[0], Max: values[0]}

	for _, v := range values {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		s.Sum += v
	}

	s.Mean = float64(s.Sum) / float64(s.Count)

	var squares float64

	for _, v := range values {
		diff := float64(v) - s.Mean
		squares += diff * diff
	}

	s.StdDev = math.Sqrt(squares / float64(s.Count))

	return s
}

// CoefficientOfVariation returns StdDev/Mean, or 0 for an empty sample or a zero mean.
func (s Summary[T]) CoefficientOfVariation() float64 {
	if s.Mean == 0 {
		return 0
	}

	return s.StdDev / s.Mean
}
