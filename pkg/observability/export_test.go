package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceResource exposes buildResource to the external tests.
func ServiceResource(svc Service) (*resource.Resource, error) {
	return buildResource(svc)
}

// Samples reports whether the sampler resolved from cfg keeps a root span.
func Samples(cfg Sampling) bool {
	result := sampler(cfg).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		Name:          "probe",
	})

	return result.Decision == sdktrace.RecordAndSample
}
