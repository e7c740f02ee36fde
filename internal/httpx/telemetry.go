package httpx

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/roblox-open-cloud/datastores/internal/httpx"

// telemetry records a client span per request plus request count and
// duration instruments. Nil providers fall back to no-op implementations.
type telemetry struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = nooptrace.NewTracerProvider()
	}
	if mp == nil {
		mp = noopmetric.NewMeterProvider()
	}

	meter := mp.Meter(instrumentationName)

	requests, err := meter.Int64Counter(
		"opencloud.http.requests",
		metric.WithUnit("{request}"),
		metric.WithDescription("The number of HTTP requests sent, by method and status code."),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"opencloud.http.duration",
		metric.WithUnit("s"),
		metric.WithDescription("The time taken by each HTTP request attempt."),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:   tp.Tracer(instrumentationName),
		requests: requests,
		duration: duration,
	}, nil
}

func (t *telemetry) start(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return t.tracer.Start(
		ctx,
		"HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)
}

func (t *telemetry) record(ctx context.Context, method string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	)
	t.requests.Add(ctx, 1, attrs)
	t.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (t *telemetry) succeed(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.status_code", status))
}

func (t *telemetry) fail(span trace.Span, err error) {
	if httpErr, ok := err.(*HTTPError); ok {
		span.SetAttributes(attribute.Int("http.status_code", httpErr.StatusCode))
		span.SetStatus(codes.Error, http.StatusText(httpErr.StatusCode))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
