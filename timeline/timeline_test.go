package timeline

import (
	"testing"
	"time"

	"github.com/Swind/go-render-scan/capture"
	"github.com/Swind/go-render-scan/core"
)

const ms = time.Millisecond

func interaction(id string, start, end time.Duration) capture.CompletionRecord {
	return capture.CompletionRecord{
		Stage:   capture.NewTimeout(id, capture.KindPointer, []string{"App", id}, start, end, time.Unix(0, 0), nil),
		Latency: end - start,
		Source:  capture.SourceFallback,
	}
}

type evictionCounter struct {
	core.NilMetrics
	evictions map[string]int
}

func (m *evictionCounter) RecordEviction(collection string) {
	if m.evictions == nil {
		m.evictions = make(map[string]int)
	}
	m.evictions[collection]++
}

// TestLog_MergeSuppressesOverlappingLongRender verifies the overlap-merge
// Given: An interaction [100,200], a long render [150,250] and a long render [300,350]
// When: The merged timeline is built
// Then: The partially overlapping long render is dropped and the distant one is kept
func TestLog_MergeSuppressesOverlappingLongRender(t *testing.T) {
	// Arrange
	log := NewLog(Options{})
	log.AddInteraction(interaction("click", 100*ms, 200*ms))
	log.AddLongRender(150*ms, 250*ms, nil)
	log.AddLongRender(300*ms, 350*ms, nil)

	// Act
	merged := log.Merged()

	// Assert
	if len(merged) != 2 {
		t.Fatalf("len(Merged()) = %d, want 2: %+v", len(merged), merged)
	}
	if merged[0].Kind != KindInteraction || merged[0].Record.ID() != "click" {
		t.Errorf("merged[0] = %s %v, want the click interaction", merged[0].Kind, merged[0].Window)
	}
	if merged[1].Kind != KindLongRender || merged[1].Window != (Window{Start: 300 * ms, End: 350 * ms}) {
		t.Errorf("merged[1] = %s %v, want long render [300ms, 350ms)", merged[1].Kind, merged[1].Window)
	}
	if len(log.Events()) != 3 {
		t.Errorf("len(Events()) = %d, want 3", len(log.Events()))
	}
}

// TestLog_MergeAllRelations verifies every overlapping relation suppresses
func TestLog_MergeAllRelations(t *testing.T) {
	tests := []struct {
		name       string
		long       Window
		suppressed bool
	}{
		{"nested", Window{120 * ms, 180 * ms}, true},
		{"partial before", Window{50 * ms, 150 * ms}, true},
		{"partial after", Window{150 * ms, 250 * ms}, true},
		{"containing", Window{50 * ms, 250 * ms}, true},
		{"identical", Window{100 * ms, 200 * ms}, true},
		{"touching end", Window{200 * ms, 260 * ms}, false},
		{"touching start", Window{40 * ms, 100 * ms}, false},
		{"disjoint", Window{300 * ms, 350 * ms}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := NewLog(Options{})
			log.AddInteraction(interaction("i", 100*ms, 200*ms))
			log.AddLongRender(tt.long.Start, tt.long.End, nil)

			got := len(log.Merged()) == 1
			if got != tt.suppressed {
				t.Errorf("suppressed = %v, want %v", got, tt.suppressed)
			}
		})
	}
}

func TestRelate(t *testing.T) {
	inter := Window{100 * ms, 200 * ms}
	tests := []struct {
		w    Window
		want Relation
	}{
		{Window{120 * ms, 180 * ms}, RelationNested},
		{Window{150 * ms, 250 * ms}, RelationPartial},
		{Window{50 * ms, 250 * ms}, RelationContaining},
		{Window{300 * ms, 350 * ms}, RelationNone},
		{Window{200 * ms, 300 * ms}, RelationNone},
	}
	for _, tt := range tests {
		if got := Relate(tt.w, inter); got != tt.want {
			t.Errorf("Relate(%v, %v) = %s, want %s", tt.w, inter, got, tt.want)
		}
	}
}

// TestLog_Bounded verifies the log keeps only the newest events
func TestLog_Bounded(t *testing.T) {
	metrics := &evictionCounter{}
	log := NewLog(Options{Capacity: 2, Metrics: metrics})

	log.AddLongRender(0, 10*ms, nil)
	log.AddLongRender(20*ms, 30*ms, nil)
	log.AddInteraction(interaction("late", 40*ms, 60*ms))

	events := log.Events()
	if len(events) != 2 || log.Len() != 2 {
		t.Fatalf("len(Events()) = %d, Len() = %d, want 2", len(events), log.Len())
	}
	if events[0].Window.Start != 20*ms {
		t.Errorf("oldest kept event starts at %v, want 20ms", events[0].Window.Start)
	}
	if metrics.evictions["timeline"] != 1 {
		t.Errorf("evictions = %v, want timeline:1", metrics.evictions)
	}

	log.Clear()
	if log.Len() != 0 || log.Events() != nil {
		t.Error("log not empty after Clear")
	}
}

// TestLog_CorrelatedWindow verifies interactions use the platform window when correlated
func TestLog_CorrelatedWindow(t *testing.T) {
	rec := interaction("keyed", 100*ms, 130*ms)
	rec.Source = capture.SourceCorrelated
	rec.Latency = 80 * ms
	rec.Entry = &capture.TimingEntry{InteractionID: 1, Name: capture.EventKeyDown, StartTime: 95 * ms, Duration: 80 * ms}

	log := NewLog(Options{})
	log.Complete(rec)
	log.AddLongRender(160*ms, 240*ms, nil)

	merged := log.Merged()
	if merged[0].Window != (Window{Start: 95 * ms, End: 175 * ms}) {
		t.Errorf("interaction window = %v, want [95ms, 175ms)", merged[0].Window)
	}
	if len(merged) != 1 {
		t.Errorf("long render overlapping the correlated window was kept: %+v", merged)
	}
}

func TestLog_RejectsInvertedWindow(t *testing.T) {
	log := NewLog(Options{})
	log.AddLongRender(50*ms, 10*ms, nil)

	if log.Len() != 0 {
		t.Errorf("Len() = %d, want 0", log.Len())
	}
}
