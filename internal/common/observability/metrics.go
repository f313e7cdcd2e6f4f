package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"hiring-pipeline/internal/common/logger"
)

// Observability carries the meter and tracer the pipeline core reports through.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer

	transitionCounter  otelmetric.Int64Counter
	transitionDuration otelmetric.Float64Histogram
}

type Option func(*options)

type options struct {
	spanProcessors []sdktrace.SpanProcessor
	noExporter     bool
}

// WithoutExporter skips the prometheus exporter, leaving metrics as no-ops.
func WithoutExporter() Option {
	return func(o *options) { o.noExporter = true }
}

// WithSpanProcessor registers an extra span processor, such as a
// tracetest.SpanRecorder in tests.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// New builds the meter provider on the prometheus exporter and a tracer
// provider. A failing exporter degrades to no-op metrics.
func New(serviceName string, log logger.Logger, opts ...Option) *Observability {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	tpOpts := make([]sdktrace.TracerProviderOption, 0, len(o.spanProcessors))
	for _, sp := range o.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	obs := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	exporter, err := newExporter(o.noExporter)
	if err != nil || exporter == nil {
		if err != nil {
			log.Warn("prometheus exporter unavailable, metrics disabled", map[string]interface{}{"error": err})
		}
		obs.meter = noop.NewMeterProvider().Meter(serviceName)
	} else {
		provider := metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(provider)
		obs.meterProvider = provider
		obs.meter = provider.Meter(serviceName)
	}

	obs.transitionCounter, _ = obs.meter.Int64Counter(
		"pipeline.transitions.committed",
		otelmetric.WithDescription("Number of committed stage transitions"),
	)
	obs.transitionDuration, _ = obs.meter.Float64Histogram(
		"pipeline.transitions.duration",
		otelmetric.WithDescription("Time from transition request to repository acknowledgement"),
		otelmetric.WithUnit("ms"),
	)
	return obs
}

func newExporter(skip bool) (*prometheus.Exporter, error) {
	if skip {
		return nil, nil
	}
	return prometheus.New()
}

// NewNoop is used where no telemetry is wanted, mostly tests.
func NewNoop() *Observability {
	return &Observability{
		meter:  noop.NewMeterProvider().Meter("noop"),
		tracer: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

// StartSpan opens a span named after the pipeline operation.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordTransition(ctx context.Context, target string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("target", target))
	if o.transitionCounter != nil {
		o.transitionCounter.Add(ctx, 1, attrs)
	}
	if o.transitionDuration != nil {
		o.transitionDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error
	if o.meterProvider != nil {
		errs = append(errs, o.meterProvider.Shutdown(ctx))
	}
	if o.tracerProvider != nil {
		errs = append(errs, o.tracerProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
