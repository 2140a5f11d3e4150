// Package tracing wires the OpenTelemetry SDK into a Tracer the driver and
// worker loops can use to span one tick/evaluation each. Grounded on the
// teacher's pkg/observability/opentelemetry_adapter.go (TracerProvider
// construction, resource attributes, configurable sampling ratio),
// narrowed to the SDK's built-in samplers, with no exporter attached, since
// this engine has no Jaeger/OTLP collector dependency of its own.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls sampling and resource attribution for the run.
type Config struct {
	ServiceName string
	Rank        int
	// SamplingRatio is the fraction of ticks/evaluations that get a real
	// span; 0 disables tracing (an AlwaysOff sampler is used), matching
	// spec.md's Non-goals treatment of observability as an opt-in extra.
	SamplingRatio float64
}

// Provider owns the SDK TracerProvider's lifecycle.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// New builds a Provider with no span exporter attached — spans are
// sampled and recorded in-process but nothing is shipped over the wire by
// default. Callers who want a real collector attach one with
// RegisterSpanProcessor before the provider starts serving traffic.
func New(cfg Config) (*Provider, error) {
	sampler := sdktrace.AlwaysSample()
	if cfg.SamplingRatio <= 0 {
		sampler = sdktrace.NeverSample()
	} else if cfg.SamplingRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRatio)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceInstanceID(fmt.Sprintf("rank-%d", cfg.Rank)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	)
	return &Provider{tp: tp}, nil
}

// RegisterSpanProcessor attaches an exporter-backed processor (e.g. one
// built from an OTLP or stdout exporter) to the provider.
func (p *Provider) RegisterSpanProcessor(sp sdktrace.SpanProcessor) {
	p.tp.RegisterSpanProcessor(sp)
}

// Tracer returns the named tracer driver/worker spans are created from.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Shutdown flushes and stops the provider; called once at process exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}
