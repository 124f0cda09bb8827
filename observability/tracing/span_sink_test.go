package tracing

import (
	"testing"
	"time"

	"github.com/Swind/go-render-scan/capture"
	"github.com/Swind/go-render-scan/ledger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingSink(slow time.Duration) (*SpanSink, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewSpanSink(Options{Tracer: provider.Tracer("test"), SlowThreshold: slow}), recorder
}

func attr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// TestSpanSink_CorrelatedRecord verifies the exported span
// Given: A correlated pointer record whose entry starts 2ms before the capture
// When: The sink completes it
// Then: One span covers the platform window, carries the record attributes and
// one render event per ledger entry, and is marked slow
func TestSpanSink_CorrelatedRecord(t *testing.T) {
	// Arrange
	sink, recorder := newRecordingSink(200 * time.Millisecond)
	startedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	renders := []ledger.Entry{
		{ComponentName: "List", RenderCount: 3, Unnecessary: 1, SelfTime: 9 * time.Millisecond, TotalTime: 12 * time.Millisecond},
		{ComponentName: "Row", RenderCount: 30, Unnecessary: 30, SelfTime: 60 * time.Millisecond, TotalTime: 60 * time.Millisecond},
	}
	rec := capture.CompletionRecord{
		Stage:   capture.NewTimeout("abc", capture.KindPointer, []string{"App", "List"}, 100*time.Millisecond, 180*time.Millisecond, startedAt, renders),
		Latency: 250 * time.Millisecond,
		Source:  capture.SourceCorrelated,
		Entry: &capture.TimingEntry{
			InteractionID: 42,
			Name:          capture.EventClick,
			StartTime:     98 * time.Millisecond,
			Duration:      250 * time.Millisecond,
		},
	}

	// Act
	sink.Complete(rec)

	// Assert
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "interaction.pointer" {
		t.Errorf("Name() = %q, want interaction.pointer", span.Name())
	}
	wantStart := startedAt.Add(-2 * time.Millisecond)
	if !span.StartTime().Equal(wantStart) {
		t.Errorf("StartTime() = %v, want %v", span.StartTime(), wantStart)
	}
	if got := span.EndTime().Sub(span.StartTime()); got != 250*time.Millisecond {
		t.Errorf("span duration = %v, want 250ms", got)
	}
	if v, ok := attr(span.Attributes(), "interaction.id"); !ok || v.AsString() != "abc" {
		t.Errorf("interaction.id = %v", v.Emit())
	}
	if v, ok := attr(span.Attributes(), "interaction.source"); !ok || v.AsString() != "correlated" {
		t.Errorf("interaction.source = %v", v.Emit())
	}
	if v, ok := attr(span.Attributes(), "timing.interaction_id"); !ok || v.AsInt64() != 42 {
		t.Errorf("timing.interaction_id = %v", v.Emit())
	}
	if len(span.Events()) != 2 || span.Events()[1].Name != "render" {
		t.Errorf("Events() = %+v, want 2 render events", span.Events())
	}
	if span.Status().Code != codes.Error {
		t.Errorf("Status().Code = %v, want Error", span.Status().Code)
	}
}

func TestSpanSink_FastFallbackRecord(t *testing.T) {
	sink, recorder := newRecordingSink(0)
	startedAt := time.Unix(1000, 0)
	rec := capture.CompletionRecord{
		Stage:   capture.NewTimeout("k1", capture.KindKeyboard, []string{"Search"}, 0, 40*time.Millisecond, startedAt, nil),
		Latency: 40 * time.Millisecond,
		Source:  capture.SourceFallback,
	}

	sink.Complete(rec)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if !spans[0].StartTime().Equal(startedAt) {
		t.Errorf("StartTime() = %v, want %v", spans[0].StartTime(), startedAt)
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("Status().Code = %v, want Ok", spans[0].Status().Code)
	}
	if _, ok := attr(spans[0].Attributes(), "timing.interaction_id"); ok {
		t.Error("fallback span carries timing attributes")
	}
}
