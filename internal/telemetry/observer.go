package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CallObserver turns Search Console calls into client spans and records call,
// failure and fallback counters plus a duration histogram.
type CallObserver struct {
	tracer trace.Tracer

	calls     metric.Int64Counter
	failures  metric.Int64Counter
	fallbacks metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewCallObserver creates instruments on meter and spans on tracer.
func NewCallObserver(tracer trace.Tracer, meter metric.Meter) (*CallObserver, error) {
	calls, err := meter.Int64Counter("gsc.calls",
		metric.WithDescription("Number of Search Console operations"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("gsc.failures",
		metric.WithDescription("Number of failed Search Console operations"),
	)
	if err != nil {
		return nil, err
	}

	fallbacks, err := meter.Int64Counter("gsc.permission_fallbacks",
		metric.WithDescription("Number of retries with the alternate site identifier"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("gsc.call.duration",
		metric.WithDescription("Duration of Search Console operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &CallObserver{
		tracer:    tracer,
		calls:     calls,
		failures:  failures,
		fallbacks: fallbacks,
		duration:  duration,
	}, nil
}

// NewGlobalCallObserver uses the globally registered providers.
func NewGlobalCallObserver() (*CallObserver, error) {
	return NewCallObserver(
		otel.GetTracerProvider().Tracer(instrumentationName+"/searchconsole"),
		otel.GetMeterProvider().Meter(instrumentationName+"/searchconsole"),
	)
}

func (o *CallObserver) StartCall(ctx context.Context, op, siteURL string) (context.Context, func(error)) {
	start := time.Now()
	spanAttrs := []attribute.KeyValue{attribute.String("gsc.operation", op)}
	if siteURL != "" {
		spanAttrs = append(spanAttrs, attribute.String("gsc.site_url", siteURL))
	}
	ctx, span := o.tracer.Start(ctx, "searchconsole."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanAttrs...),
	)

	return ctx, func(err error) {
		attrs := metric.WithAttributes(attribute.String("operation", op))
		o.calls.Add(ctx, 1, attrs)
		o.duration.Record(ctx, time.Since(start).Seconds(), attrs)

		if err != nil {
			o.failures.Add(ctx, 1, attrs)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (o *CallObserver) RecordFallback(ctx context.Context, op, from, to string) {
	trace.SpanFromContext(ctx).AddEvent("permission_fallback", trace.WithAttributes(
		attribute.String("gsc.site_url", from),
		attribute.String("gsc.fallback_site_url", to),
	))
	o.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}
