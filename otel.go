package msgbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rbaliyan/msgbox"

// opMetrics is the instrument set of one operation family.
type opMetrics struct {
	latency metric.Float64Histogram
	count   metric.Int64Counter
	errors  metric.Int64Counter
}

func (m *opMetrics) record(ctx context.Context, d time.Duration, err error, attrs ...attribute.KeyValue) {
	set := metric.WithAttributes(attrs...)
	m.latency.Record(ctx, d.Seconds(), set)
	m.count.Add(ctx, 1, set)
	if err != nil {
		m.errors.Add(ctx, 1, set)
	}
}

// otelInstrumentation holds OpenTelemetry instrumentation for the service.
type otelInstrumentation struct {
	tracingEnabled bool
	tracer         trace.Tracer

	metricsEnabled bool
	create         opMetrics
	list           opMetrics
	count          opMetrics
	update         opMetrics
	delete         opMetrics
	notify         opMetrics
	fanoutFailures metric.Int64Counter
	notifyDropped  metric.Int64Counter
}

// newOtelInstrumentation creates OTel instrumentation from options.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics initializes all metric instruments.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	families := []struct {
		name string
		desc string
		dst  *opMetrics
	}{
		{"create", "message creations", &o.create},
		{"list", "list queries", &o.list},
		{"count", "count queries", &o.count},
		{"update", "state and flag updates", &o.update},
		{"delete", "message deletions", &o.delete},
		{"notify", "notifier calls", &o.notify},
	}

	var err error
	for _, f := range families {
		prefix := "msgbox." + f.name
		f.dst.latency, err = meter.Float64Histogram(prefix+".duration",
			metric.WithDescription("Duration of "+f.desc),
			metric.WithUnit("s"),
		)
		if err != nil {
			return err
		}
		f.dst.count, err = meter.Int64Counter(prefix+".count",
			metric.WithDescription("Number of "+f.desc),
		)
		if err != nil {
			return err
		}
		f.dst.errors, err = meter.Int64Counter(prefix+".errors",
			metric.WithDescription("Number of failed "+f.desc),
		)
		if err != nil {
			return err
		}
	}

	o.fanoutFailures, err = meter.Int64Counter("msgbox.create.fanout_failures",
		metric.WithDescription("Number of state fan-out failures"),
	)
	if err != nil {
		return err
	}
	o.notifyDropped, err = meter.Int64Counter("msgbox.notify.dropped",
		metric.WithDescription("Number of notifications dropped because the queue was full or the service closed"),
	)
	return err
}

// startSpan starts a span if tracing is enabled. The returned func ends it.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (o *otelInstrumentation) recordCreate(ctx context.Context, d time.Duration, typ MessageType, err error) {
	if !o.metricsEnabled {
		return
	}
	o.create.record(ctx, d, err, attribute.String("type", string(typ)))
	if IsStateFanoutError(err) {
		o.fanoutFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(typ))))
	}
}

func (o *otelInstrumentation) recordList(ctx context.Context, d time.Duration, query string, results int, err error) {
	if !o.metricsEnabled {
		return
	}
	o.list.record(ctx, d, err,
		attribute.String("query", query),
		attribute.Int("result_count", results),
	)
}

func (o *otelInstrumentation) recordCount(ctx context.Context, d time.Duration, query string, err error) {
	if !o.metricsEnabled {
		return
	}
	o.count.record(ctx, d, err, attribute.String("query", query))
}

func (o *otelInstrumentation) recordUpdate(ctx context.Context, d time.Duration, operation string, err error) {
	if !o.metricsEnabled {
		return
	}
	o.update.record(ctx, d, err, attribute.String("operation", operation))
}

func (o *otelInstrumentation) recordDelete(ctx context.Context, d time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}
	o.delete.record(ctx, d, err)
}

func (o *otelInstrumentation) recordNotify(ctx context.Context, d time.Duration, kind NotificationKind, err error) {
	if !o.metricsEnabled {
		return
	}
	o.notify.record(ctx, d, err, attribute.String("kind", string(kind)))
}

func (o *otelInstrumentation) recordNotifyDropped(ctx context.Context, kind NotificationKind) {
	if !o.metricsEnabled || o.notifyDropped == nil {
		return
	}
	o.notifyDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}
