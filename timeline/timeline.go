// Package timeline keeps the bounded observability log shown by the toolbar.
//
// Two kinds of events land in the log: completed interactions and long-render
// windows reported by the host. Merged drops every long render that overlaps a
// buffered interaction, since both describe the same slowdown.
package timeline

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/Swind/go-render-scan/capture"
	"github.com/Swind/go-render-scan/core"
	"github.com/Swind/go-render-scan/ledger"
)

const DefaultCapacity = 200

// EventKind tells the two producers apart.
type EventKind int

const (
	KindInteraction EventKind = iota
	KindLongRender
)

func (k EventKind) String() string {
	switch k {
	case KindInteraction:
		return "interaction"
	case KindLongRender:
		return "long-render"
	default:
		return "unknown"
	}
}

// Event is one entry of the log. Window bounds are loop marks.
type Event struct {
	Kind   EventKind
	Window Window

	// Record is set for interactions.
	Record *capture.CompletionRecord

	// Renders lists the components rendered during a long render.
	Renders []ledger.Entry
}

// Options controls a Log.
type Options struct {
	Capacity int
	Metrics  core.Metrics
}

// Log is a capacity-bounded event log. It is confined to the loop; only Len
// may be called from other goroutines.
type Log struct {
	events  *core.Ring[Event]
	metrics core.Metrics
	size    atomic.Int32
}

// NewLog creates an empty log. A zero capacity uses DefaultCapacity.
func NewLog(opts Options) *Log {
	if opts.Capacity < 1 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Metrics == nil {
		opts.Metrics = &core.NilMetrics{}
	}
	return &Log{
		events:  core.NewRing[Event](opts.Capacity),
		metrics: opts.Metrics,
	}
}

// Complete implements capture.Sink by logging the interaction.
func (l *Log) Complete(record capture.CompletionRecord) {
	l.AddInteraction(record)
}

// AddInteraction logs a completed interaction over its attributed window.
func (l *Log) AddInteraction(record capture.CompletionRecord) {
	start, end := record.Window()
	rec := record
	l.push(Event{
		Kind:   KindInteraction,
		Window: Window{Start: start, End: end},
		Record: &rec,
	})
}

// AddLongRender logs a long-render window. Windows with end before start are
// ignored.
func (l *Log) AddLongRender(start, end time.Duration, renders []ledger.Entry) {
	if end < start {
		return
	}
	l.push(Event{
		Kind:    KindLongRender,
		Window:  Window{Start: start, End: end},
		Renders: renders,
	})
}

func (l *Log) push(ev Event) {
	if _, evicted := l.events.Push(ev); evicted {
		l.metrics.RecordEviction("timeline")
	}
	l.size.Store(int32(l.events.Len()))
}

// Events returns the buffered events in insertion order.
func (l *Log) Events() []Event {
	return l.events.All()
}

// Merged returns the displayed timeline ordered by window start: every
// interaction, plus the long renders that overlap none of them.
func (l *Log) Merged() []Event {
	events := l.events.All()

	var interactions []Window
	for _, ev := range events {
		if ev.Kind == KindInteraction {
			interactions = append(interactions, ev.Window)
		}
	}

	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Kind == KindLongRender && overlapsAny(ev.Window, interactions) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Window.Start < out[j].Window.Start
	})
	return out
}

// Len returns the number of buffered events. Safe from any goroutine.
func (l *Log) Len() int {
	return int(l.size.Load())
}

// Clear empties the log.
func (l *Log) Clear() {
	l.events.Clear()
	l.size.Store(0)
}

func overlapsAny(w Window, others []Window) bool {
	for _, o := range others {
		if Relate(w, o) != RelationNone {
			return true
		}
	}
	return false
}
