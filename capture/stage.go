package capture

import (
	"time"

	"github.com/Swind/go-render-scan/ledger"
)

// StageKind orders the stages of a capture.
type StageKind int

const (
	StageUninitialized StageKind = iota
	StageStart
	StageJsEnd
	StageFrame
	StageTimeout
)

func (k StageKind) String() string {
	switch k {
	case StageUninitialized:
		return "uninitialized"
	case StageStart:
		return "start"
	case StageJsEnd:
		return "js-end"
	case StageFrame:
		return "frame"
	case StageTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Stage is one step of a capture. It is a closed set: Uninitialized, Start,
// JsEnd, Frame and Timeout are the only implementations. Each transition
// builds a new value carrying the previous fields forward.
type Stage interface {
	Kind() StageKind
	Interaction() InteractionKind
	isStage()
}

// Uninitialized means no interaction is being captured.
type Uninitialized struct {
	Input InteractionKind
}

func (s Uninitialized) Kind() StageKind              { return StageUninitialized }
func (s Uninitialized) Interaction() InteractionKind { return s.Input }
func (Uninitialized) isStage()                       {}

// Start is entered on the start event of an interaction.
type Start struct {
	ID        string
	Input     InteractionKind
	StartMark time.Duration
	StartedAt time.Time

	// ComponentPath is shared by every copy of the stage and must not be
	// modified. Path returns a copy.
	ComponentPath []string
	ComponentName string

	ledger *ledger.Ledger
}

func (s Start) Kind() StageKind              { return StageStart }
func (s Start) Interaction() InteractionKind { return s.Input }
func (Start) isStage()                       {}

// Ledger returns the render ledger attached to the capture. It is nil once
// the capture has reached Timeout.
func (s Start) Ledger() *ledger.Ledger { return s.ledger }

// Path returns a copy of the component path.
func (s Start) Path() []string {
	return append([]string(nil), s.ComponentPath...)
}

// JsEnd is entered once the synchronous work of the completion event has
// flushed.
type JsEnd struct {
	Start
	JsEndMark time.Duration
}

func (s JsEnd) Kind() StageKind { return StageJsEnd }

// Frame is entered once the commit has been painted.
type Frame struct {
	JsEnd
	FrameMark time.Duration
}

func (s Frame) Kind() StageKind { return StageFrame }

// Timeout is the terminal stage. It is produced at most once per interaction
// and holds a private copy of the ledger, so the value never changes after
// it is created.
type Timeout struct {
	Frame
	CommitMark  time.Duration
	BlockingEnd time.Time

	renders []ledger.Entry
}

func (s Timeout) Kind() StageKind { return StageTimeout }

// Renders returns a copy of the ledger entries captured for the interaction.
func (s Timeout) Renders() []ledger.Entry {
	out := make([]ledger.Entry, len(s.renders))
	for i, e := range s.renders {
		out[i] = e.Clone()
	}
	return out
}

// Latency is the internally measured time from start to commit.
func (s Timeout) Latency() time.Duration {
	return s.CommitMark - s.StartMark
}

func freeze(f Frame, commitMark time.Duration, blockingEnd time.Time) Timeout {
	var renders []ledger.Entry
	if f.ledger != nil {
		renders = f.ledger.Snapshot()
	}
	f.ledger = nil
	f.ComponentPath = append([]string(nil), f.ComponentPath...)
	return Timeout{
		Frame:       f,
		CommitMark:  commitMark,
		BlockingEnd: blockingEnd,
		renders:     renders,
	}
}

// NewTimeout builds a terminal stage directly, for hosts replaying recorded
// captures and for tests. componentPath and renders are copied.
func NewTimeout(id string, kind InteractionKind, componentPath []string, startMark, commitMark time.Duration, startedAt time.Time, renders []ledger.Entry) Timeout {
	name := ""
	if len(componentPath) > 0 {
		name = componentPath[len(componentPath)-1]
	}
	frame := Frame{
		JsEnd: JsEnd{
			Start: Start{
				ID:            id,
				Input:         kind,
				StartMark:     startMark,
				StartedAt:     startedAt,
				ComponentPath: componentPath,
				ComponentName: name,
			},
			JsEndMark: commitMark,
		},
		FrameMark: commitMark,
	}
	t := freeze(frame, commitMark, startedAt.Add(commitMark-startMark))
	t.renders = make([]ledger.Entry, len(renders))
	for i, e := range renders {
		t.renders[i] = e.Clone()
	}
	return t
}

// stageID returns the interaction id of s, or "" for Uninitialized.
func stageID(s Stage) string {
	switch st := s.(type) {
	case Uninitialized:
		return ""
	case Start:
		return st.ID
	case JsEnd:
		return st.ID
	case Frame:
		return st.ID
	case Timeout:
		return st.ID
	default:
		return ""
	}
}

// stageStartMark returns when the capture of s started.
func stageStartMark(s Stage) (time.Duration, bool) {
	switch st := s.(type) {
	case Uninitialized:
		return 0, false
	case Start:
		return st.StartMark, true
	case JsEnd:
		return st.StartMark, true
	case Frame:
		return st.StartMark, true
	case Timeout:
		return st.StartMark, true
	default:
		return 0, false
	}
}

// stageLedger returns the live ledger of s, if any.
func stageLedger(s Stage) *ledger.Ledger {
	switch st := s.(type) {
	case Start:
		return st.ledger
	case JsEnd:
		return st.ledger
	case Frame:
		return st.ledger
	default:
		return nil
	}
}
