package timeline

import (
	"fmt"
	"time"
)

// Window is a half-open interval [Start, End) of loop marks.
type Window struct {
	Start time.Duration
	End   time.Duration
}

func (w Window) Duration() time.Duration { return w.End - w.Start }

func (w Window) String() string {
	return fmt.Sprintf("[%v, %v)", w.Start, w.End)
}

// Relation is how one window lies against another.
type Relation int

const (
	RelationNone Relation = iota
	// RelationNested: the window lies inside the other.
	RelationNested
	// RelationPartial: the windows overlap and each has a part outside the other.
	RelationPartial
	// RelationContaining: the window fully contains the other.
	RelationContaining
)

func (r Relation) String() string {
	switch r {
	case RelationNone:
		return "none"
	case RelationNested:
		return "nested"
	case RelationPartial:
		return "partial"
	case RelationContaining:
		return "containing"
	default:
		return "unknown"
	}
}

// Relate classifies w against other. Windows that only touch at an endpoint
// do not overlap. Identical windows are Nested.
func Relate(w, other Window) Relation {
	if !(w.Start < other.End && other.Start < w.End) {
		return RelationNone
	}
	switch {
	case other.Start <= w.Start && w.End <= other.End:
		return RelationNested
	case w.Start <= other.Start && other.End <= w.End:
		return RelationContaining
	default:
		return RelationPartial
	}
}
