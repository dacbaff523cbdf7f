package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Recorder gives every service operation a span, a counter tick and a
// duration sample under agencyops.<scope>.* metric names.
type Recorder struct {
	scope  string
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// NewRecorder builds a Recorder on the current global providers. Call it
// after Init.
func NewRecorder(scope string) *Recorder {
	name := instrumentationScope + "/" + scope
	m := Meter(name)
	ops, _ := m.Int64Counter("agencyops."+scope+".operations",
		metric.WithDescription("Total operations executed"),
	)
	dur, _ := m.Float64Histogram("agencyops."+scope+".operation.duration",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("agencyops."+scope+".errors",
		metric.WithDescription("Total operation errors"),
	)
	return &Recorder{scope: scope, tracer: Tracer(name), ops: ops, dur: dur, errs: errs}
}

// Start opens a span for op. The returned func ends it and records err.
func (r *Recorder) Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	all := append([]attribute.KeyValue{attribute.String("agencyops.operation", op)}, attrs...)
	ctx, span := r.tracer.Start(ctx, r.scope+"."+op, trace.WithAttributes(all...))
	r.ops.Add(ctx, 1, metric.WithAttributes(all...))
	start := time.Now()

	return ctx, func(err error) {
		ms := float64(time.Since(start).Milliseconds())
		r.dur.Record(ctx, ms, metric.WithAttributes(all...))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.errs.Add(ctx, 1, metric.WithAttributes(all...))
		}
		span.End()
	}
}
