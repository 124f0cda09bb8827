package capture

import (
	"time"
)

// InteractionKind is the input modality of an interaction.
type InteractionKind int

const (
	KindPointer InteractionKind = iota
	KindKeyboard
)

func (k InteractionKind) String() string {
	switch k {
	case KindPointer:
		return "pointer"
	case KindKeyboard:
		return "keyboard"
	default:
		return "unknown"
	}
}

// EventType names a platform input event.
type EventType string

const (
	EventPointerDown EventType = "pointerdown"
	EventPointerUp   EventType = "pointerup"
	EventClick       EventType = "click"
	EventKeyDown     EventType = "keydown"
	EventKeyUp       EventType = "keyup"
	EventKeyPress    EventType = "keypress"
	EventInput       EventType = "input"
	EventChange      EventType = "change"
)

// KindForEvent maps a timing entry's event name to the interaction kind that
// produced it.
func KindForEvent(t EventType) (InteractionKind, bool) {
	switch t {
	case EventPointerDown, EventPointerUp, EventClick:
		return KindPointer, true
	case EventKeyDown, EventKeyUp, EventKeyPress, EventInput:
		return KindKeyboard, true
	default:
		return 0, false
	}
}

// Target is the host element an input event was dispatched to.
type Target interface {
	// ComponentPath returns the names of the named ancestor components of the
	// element, outermost first. An empty path means no component owns it.
	ComponentPath() []string

	// FormControl reports whether the element is an input, select or textarea.
	FormControl() bool
}

// StaticTarget is a Target with a fixed path, for hosts that resolve the
// component path up front.
type StaticTarget struct {
	Path    []string
	Control bool
}

func (t StaticTarget) ComponentPath() []string { return t.Path }
func (t StaticTarget) FormControl() bool       { return t.Control }

// InputEvent is a platform input signal.
type InputEvent struct {
	Type      EventType
	Target    Target
	Timestamp time.Duration
}

// TimingEntry is a platform event-timing measurement. It arrives
// asynchronously, may be missing, and several entries may share one
// InteractionID. Times are loop marks.
type TimingEntry struct {
	InteractionID   uint64
	Name            EventType
	Duration        time.Duration
	StartTime       time.Duration
	ProcessingStart time.Duration
	ProcessingEnd   time.Duration
	Target          Target
}

// Kind returns the interaction kind of the entry.
func (e TimingEntry) Kind() (InteractionKind, bool) {
	return KindForEvent(e.Name)
}

// EventSource delivers input events to listeners.
type EventSource interface {
	// AddListener registers fn for events of type t and returns a func that
	// removes it. Removing twice is a no-op.
	AddListener(t EventType, fn func(InputEvent)) (remove func())
}
