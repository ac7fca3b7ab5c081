package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instrumentSet creates the instruments of one metrics struct. Failures
// are collected rather than returned one by one, and reported together by
// err so every bad instrument name surfaces at once.
type instrumentSet struct {
	meter  metric.Meter
	failed []error
}

func (s *instrumentSet) track(name string, err error) {
	if err != nil {
		s.failed = append(s.failed, fmt.Errorf("instrument %s: %w", name, err))
	}
}

func (s *instrumentSet) count(name, desc, unit string) metric.Int64Counter {
	c, err := s.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	s.track(name, err)

	return c
}

func (s *instrumentSet) gauge(name, desc, unit string) metric.Int64UpDownCounter {
	g, err := s.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	s.track(name, err)

	return g
}

// distribution is a histogram bucketed by bounds.
func (s *instrumentSet) distribution(name, desc, unit string, bounds []float64) metric.Float64Histogram {
	h, err := s.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(bounds...))
	s.track(name, err)

	return h
}

// seconds is a latency histogram using the shared duration buckets.
func (s *instrumentSet) seconds(name, desc string) metric.Float64Histogram {
	return s.distribution(name, desc, "s", durationBucketBoundaries)
}

func (s *instrumentSet) err() error {
	return errors.Join(s.failed...)
}
