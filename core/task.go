package core

import (
	"context"
	"time"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// Phase: the three deferred queues of a Loop
// =============================================================================

type Phase int

const (
	// PhaseImmediate runs after the current task finishes and before anything
	// else is picked up, like a microtask.
	PhaseImmediate Phase = iota

	// PhaseFrame runs at the next frame, after the synchronous work that
	// requested it has been flushed.
	PhaseFrame

	// PhaseTimer runs once its due time has passed. Zero-delay timers posted
	// from a frame callback run after every callback of that frame.
	PhaseTimer
)

func (p Phase) String() string {
	switch p {
	case PhaseImmediate:
		return "immediate"
	case PhaseFrame:
		return "frame"
	case PhaseTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// =============================================================================
// Scheduler: Define deferred submission interface
// =============================================================================
type Scheduler interface {
	PostImmediate(task Task)
	PostFrame(task Task)
	PostTask(task Task)
	PostDelayedTask(task Task, delay time.Duration)

	// Now returns a monotonic mark measured from the scheduler's origin.
	Now() time.Duration
	WallNow() time.Time
}

// =============================================================================
// Context Helper
// =============================================================================
type loopKeyType struct{}

var loopKey loopKeyType

// GetCurrentLoop returns the Loop executing the task that owns ctx.
func GetCurrentLoop(ctx context.Context) *Loop {
	if v := ctx.Value(loopKey); v != nil {
		return v.(*Loop)
	}
	return nil
}
