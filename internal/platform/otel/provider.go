// Package otel wires OpenTelemetry tracing for euroturn processes.
package otel

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	envEndpoint    = "EUROTURN_OTEL_ENDPOINT"
	envEnabled     = "EUROTURN_OTEL_ENABLED"
	envSampleRatio = "EUROTURN_OTEL_SAMPLE_RATIO"
)

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when EUROTURN_OTEL_ENDPOINT is empty or
// EUROTURN_OTEL_ENABLED is "false", Setup returns a no-op shutdown function
// and no global provider is registered.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv(envEnabled), "false") {
		return noop, nil
	}

	endpoint := os.Getenv(envEndpoint)
	if endpoint == "" {
		return noop, nil
	}

	traceSampler, err := sampler(os.Getenv(envSampleRatio))
	if err != nil {
		return noop, err
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(traceSampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer returns a named tracer from the global provider. Without Setup the
// global provider is a no-op, so callers can trace unconditionally.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// sampler samples every trace unless ratio is set.
func sampler(ratio string) (sdktrace.Sampler, error) {
	ratio = strings.TrimSpace(ratio)
	if ratio == "" {
		return sdktrace.AlwaysSample(), nil
	}
	value, err := strconv.ParseFloat(ratio, 64)
	if err != nil || value < 0 || value > 1 {
		return nil, fmt.Errorf("%s must be a number in [0,1], got %q", envSampleRatio, ratio)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(value)), nil
}
