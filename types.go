package renderscan

import (
	"github.com/Swind/go-render-scan/capture"
	"github.com/Swind/go-render-scan/core"
	"github.com/Swind/go-render-scan/ledger"
	"github.com/Swind/go-render-scan/timeline"
)

// Re-export commonly used types so hosts can import only this package.

type (
	InteractionKind  = capture.InteractionKind
	EventType        = capture.EventType
	InputEvent       = capture.InputEvent
	Target           = capture.Target
	StaticTarget     = capture.StaticTarget
	TimingEntry      = capture.TimingEntry
	Stage            = capture.Stage
	StageError       = capture.StageError
	CompletionRecord = capture.CompletionRecord
	ResolutionSource = capture.ResolutionSource
	Sink             = capture.Sink
	SinkFunc         = capture.SinkFunc

	RenderEvent = ledger.RenderEvent
	RenderEntry = ledger.Entry
	Snapshot    = ledger.Snapshot
	Timing      = ledger.Timing

	TimelineEvent = timeline.Event
	Window        = timeline.Window

	Loop         = core.Loop
	Logger       = core.Logger
	Metrics      = core.Metrics
	TrackerStats = core.TrackerStats
)

const (
	KindPointer  = capture.KindPointer
	KindKeyboard = capture.KindKeyboard

	EventPointerDown = capture.EventPointerDown
	EventPointerUp   = capture.EventPointerUp
	EventClick       = capture.EventClick
	EventKeyDown     = capture.EventKeyDown
	EventKeyUp       = capture.EventKeyUp
	EventKeyPress    = capture.EventKeyPress
	EventInput       = capture.EventInput
	EventChange      = capture.EventChange

	SourceCorrelated = capture.SourceCorrelated
	SourceFallback   = capture.SourceFallback
)
