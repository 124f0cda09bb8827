package capture

import (
	"time"
)

// ResolutionSource tells which path finalized a task.
type ResolutionSource int

const (
	// SourceCorrelated means a platform timing entry supplied the latency.
	SourceCorrelated ResolutionSource = iota
	// SourceFallback means the internal start-to-commit measurement was used.
	SourceFallback
)

func (s ResolutionSource) String() string {
	switch s {
	case SourceCorrelated:
		return "correlated"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// CompletionRecord is the canonical output for one interaction.
type CompletionRecord struct {
	Stage       Timeout
	Latency     time.Duration
	CompletedAt time.Time
	Source      ResolutionSource

	// Entry is the correlated timing entry; nil for fallback records.
	Entry *TimingEntry
}

// ID returns the interaction id.
func (r CompletionRecord) ID() string { return r.Stage.ID }

// Kind returns the interaction kind.
func (r CompletionRecord) Kind() InteractionKind { return r.Stage.Input }

// Window returns the interaction window in loop marks.
func (r CompletionRecord) Window() (start, end time.Duration) {
	start = r.Stage.StartMark
	if r.Entry != nil {
		start = r.Entry.StartTime
	}
	return start, start + r.Latency
}

// Sink receives completion records. Sinks run on the loop and must not block.
type Sink interface {
	Complete(record CompletionRecord)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(record CompletionRecord)

func (f SinkFunc) Complete(record CompletionRecord) { f(record) }

// MultiSink fans a record out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Complete(record CompletionRecord) {
	for _, s := range m {
		if s != nil {
			s.Complete(record)
		}
	}
}
