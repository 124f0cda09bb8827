// Package tracing exports completion records as OpenTelemetry spans.
package tracing

import (
	"context"
	"time"

	"github.com/Swind/go-render-scan/capture"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultSlowThreshold = 200 * time.Millisecond
	instrumentationName  = "github.com/Swind/go-render-scan"
)

// Options configures a SpanSink.
type Options struct {
	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer

	// SlowThreshold marks spans of slower interactions as errors.
	SlowThreshold time.Duration
}

// SpanSink is a capture.Sink that emits one span per completion record,
// back-dated to the interaction window, with one event per rendered component.
type SpanSink struct {
	tracer trace.Tracer
	slow   time.Duration
}

var _ capture.Sink = (*SpanSink)(nil)

func NewSpanSink(opts Options) *SpanSink {
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentationName)
	}
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = DefaultSlowThreshold
	}
	return &SpanSink{tracer: opts.Tracer, slow: opts.SlowThreshold}
}

// Complete implements capture.Sink.
func (s *SpanSink) Complete(rec capture.CompletionRecord) {
	stage := rec.Stage
	windowStart, _ := rec.Window()
	start := stage.StartedAt.Add(windowStart - stage.StartMark)
	end := start.Add(rec.Latency)

	attrs := []attribute.KeyValue{
		attribute.String("interaction.id", rec.ID()),
		attribute.String("interaction.kind", rec.Kind().String()),
		attribute.String("interaction.source", rec.Source.String()),
		attribute.String("component.name", stage.ComponentName),
		attribute.StringSlice("component.path", stage.Path()),
		attribute.Int64("latency_ms", rec.Latency.Milliseconds()),
	}
	if rec.Entry != nil {
		attrs = append(attrs,
			attribute.Int64("timing.interaction_id", int64(rec.Entry.InteractionID)),
			attribute.String("timing.event", string(rec.Entry.Name)),
			attribute.Int64("timing.processing_ms", (rec.Entry.ProcessingEnd-rec.Entry.ProcessingStart).Milliseconds()),
		)
	}

	_, span := s.tracer.Start(context.Background(), "interaction."+rec.Kind().String(),
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	for _, r := range stage.Renders() {
		span.AddEvent("render",
			trace.WithTimestamp(start),
			trace.WithAttributes(
				attribute.String("component.name", r.ComponentName),
				attribute.Int("render.count", r.RenderCount),
				attribute.Int("render.unnecessary", r.Unnecessary),
				attribute.Float64("render.self_ms", float64(r.SelfTime)/float64(time.Millisecond)),
				attribute.Float64("render.total_ms", float64(r.TotalTime)/float64(time.Millisecond)),
			),
		)
	}

	if rec.Latency > s.slow {
		span.SetStatus(codes.Error, "slow interaction")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}
