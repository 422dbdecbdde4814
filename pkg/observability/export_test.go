package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/trace"
)

// Internal hooks for the external test package.
var (
	NewResourceForTest = newResource
	SamplerFor         = samplerFor
	SamplerRatio       = samplerRatio
)

// SamplerDecision reports whether cfg's sampler keeps a root span.
func SamplerDecision(cfg Config) trace.SamplingDecision {
	return samplerFor(cfg).ShouldSample(trace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       [16]byte{0x0f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 1},
		Name:          "probe",
	}).Decision
}
