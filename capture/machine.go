package capture

import (
	"context"
	"time"

	"github.com/Swind/go-render-scan/channel"
	"github.com/Swind/go-render-scan/core"
	"github.com/Swind/go-render-scan/ledger"
	"github.com/google/uuid"
)

const DefaultIdleGuard = 2000 * time.Millisecond

// MachineConfig configures a Machine. Loop, Source and Pool are required.
type MachineConfig struct {
	Profile Profile
	Loop    core.Scheduler
	Source  EventSource
	Pool    *Pool

	// Renders carries render events; a live capture records them into its
	// ledger.
	Renders *channel.Channel[ledger.RenderEvent]

	// IdleGuard is how long a capture may sit unfinished before the next start
	// event abandons it.
	IdleGuard time.Duration

	// ShouldAbort is checked at every boundary; true discards the capture.
	ShouldAbort func() bool

	// OnError receives stage invariant violations. It must not panic.
	OnError func(error)

	// OnTransition observes every stage replacement.
	OnTransition func(from, to Stage)

	// NewID generates interaction ids. Defaults to uuid.NewString.
	NewID func() string

	Logger  core.Logger
	Metrics core.Metrics
}

// Machine drives the interactions of one kind through
// Start → JsEnd → Frame → Timeout. It holds exactly one stage at a time and
// replaces it at every transition.
type Machine struct {
	cfg   MachineConfig
	stage Stage

	// Tears down the live capture's ledger subscription and completion listener.
	detachLedger     func()
	removeCompletion func()

	inFlight bool
}

// NewMachine creates a machine in the Uninitialized stage. Call Attach to
// start listening for input.
func NewMachine(cfg MachineConfig) *Machine {
	if cfg.IdleGuard <= 0 {
		cfg.IdleGuard = DefaultIdleGuard
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &core.NilMetrics{}
	}
	if cfg.OnError == nil {
		logger := cfg.Logger
		cfg.OnError = func(err error) {
			logger.Warn("capture reset", core.F("error", err))
		}
	}
	if cfg.Profile.CompletionEvent == nil {
		cfg.Profile = ProfileFor(cfg.Profile.Kind)
	}
	return &Machine{
		cfg:   cfg,
		stage: Uninitialized{Input: cfg.Profile.Kind},
	}
}

// Attach registers the start listeners on the event source. The returned
// func removes them and abandons any live capture.
func (m *Machine) Attach() (detach func()) {
	removers := make([]func(), 0, len(m.cfg.Profile.StartEvents))
	for _, t := range m.cfg.Profile.StartEvents {
		removers = append(removers, m.cfg.Source.AddListener(t, m.HandleStart))
	}
	return func() {
		for _, remove := range removers {
			remove()
		}
		if m.stage.Kind() != StageUninitialized {
			m.reset("detached")
		}
	}
}

// Kind returns the interaction kind the machine captures.
func (m *Machine) Kind() InteractionKind { return m.cfg.Profile.Kind }

// Stage returns the current stage.
func (m *Machine) Stage() Stage { return m.stage }

// Ledger returns the ledger of the live capture, or nil when none is live.
func (m *Machine) Ledger() *ledger.Ledger { return stageLedger(m.stage) }

// InFlight reports whether a capture is between Start and Timeout.
func (m *Machine) InFlight() bool { return m.inFlight }

// HandleStart processes a start event.
func (m *Machine) HandleStart(ev InputEvent) {
	now := m.cfg.Loop.Now()

	if m.stage.Kind() != StageUninitialized {
		startMark, _ := stageStartMark(m.stage)
		if now-startMark <= m.cfg.IdleGuard {
			return
		}
		m.reset("stale")
	}
	if m.aborted() {
		return
	}
	if ev.Target == nil {
		return
	}
	path := ev.Target.ComponentPath()
	if len(path) == 0 {
		return
	}

	led := ledger.New()
	start := Start{
		ID:            m.cfg.NewID(),
		Input:         m.cfg.Profile.Kind,
		StartMark:     now,
		StartedAt:     m.cfg.Loop.WallNow(),
		ComponentPath: append([]string(nil), path...),
		ComponentName: path[len(path)-1],
		ledger:        led,
	}

	if m.cfg.Renders != nil {
		m.detachLedger = m.cfg.Renders.Subscribe(led.RecordEvent, channel.WithoutReplay())
	}
	m.inFlight = true
	m.transition(start)

	id := start.ID
	fired := false
	var remove func()
	remove = m.cfg.Source.AddListener(m.cfg.Profile.CompletionEvent(ev.Target), func(InputEvent) {
		if fired {
			return
		}
		fired = true
		remove()
		m.removeCompletion = nil
		m.handleCompletion(id)
	})
	m.removeCompletion = remove

	// Targets that never emit the completion event must not leak the listener.
	m.cfg.Loop.PostFrame(func(ctx context.Context) {
		if !fired {
			remove()
			if m.stageIs(id) {
				m.removeCompletion = nil
			}
		}
	})
}

// handleCompletion chains the three scheduling boundaries.
func (m *Machine) handleCompletion(id string) {
	if m.aborted() {
		m.discard(id, "aborted")
		return
	}
	if !m.expect(id, StageStart, StageStart) {
		return
	}

	m.cfg.Loop.PostImmediate(func(ctx context.Context) {
		if !m.boundary(id, StageJsEnd, StageStart) {
			return
		}
		start := m.stage.(Start)
		m.transition(JsEnd{Start: start, JsEndMark: m.cfg.Loop.Now()})

		m.cfg.Loop.PostFrame(func(ctx context.Context) {
			if !m.boundary(id, StageFrame, StageJsEnd) {
				return
			}
			jsEnd := m.stage.(JsEnd)
			m.transition(Frame{JsEnd: jsEnd, FrameMark: m.cfg.Loop.Now()})

			m.cfg.Loop.PostTask(func(ctx context.Context) {
				if !m.boundary(id, StageTimeout, StageFrame) {
					return
				}
				m.finish(m.stage.(Frame))
			})
		})
	})
}

// boundary runs the abort and invariant checks shared by every transition.
func (m *Machine) boundary(id string, boundary, expected StageKind) bool {
	if !m.stageIs(id) {
		// Continuation of a capture that was already reset.
		m.cfg.Logger.Debug("stale capture continuation dropped",
			core.F("kind", m.cfg.Profile.Kind),
			core.F("id", id),
			core.F("boundary", boundary),
		)
		return false
	}
	if m.aborted() {
		m.discard(id, "aborted")
		return false
	}
	return m.expect(id, boundary, expected)
}

// expect checks that the live stage of capture id has the expected kind and
// resets the machine otherwise.
func (m *Machine) expect(id string, boundary, expected StageKind) bool {
	if !m.stageIs(id) {
		return false
	}
	if got := m.stage.Kind(); got != expected {
		m.cfg.Metrics.RecordInvariantViolation(m.cfg.Profile.Kind.String(), boundary.String())
		m.cfg.OnError(&StageError{
			Interaction:   m.cfg.Profile.Kind,
			InteractionID: id,
			Boundary:      boundary,
			Expected:      expected,
			Got:           got,
		})
		m.reset("invariant")
		return false
	}
	return true
}

func (m *Machine) finish(frame Frame) {
	timeout := freeze(frame, m.cfg.Loop.Now(), m.cfg.Loop.WallNow())
	m.transition(timeout)
	m.detach()
	m.inFlight = false
	m.transition(Uninitialized{Input: m.cfg.Profile.Kind})

	m.cfg.Pool.Open(timeout)
}

func (m *Machine) discard(id string, reason string) {
	if m.stageIs(id) {
		m.reset(reason)
	}
}

// reset abandons the live capture and returns to Uninitialized.
func (m *Machine) reset(reason string) {
	m.cfg.Metrics.RecordAbandoned(m.cfg.Profile.Kind.String(), reason)
	m.cfg.Logger.Debug("capture abandoned",
		core.F("kind", m.cfg.Profile.Kind),
		core.F("id", stageID(m.stage)),
		core.F("stage", m.stage.Kind()),
		core.F("reason", reason),
	)
	m.detach()
	m.inFlight = false
	m.transition(Uninitialized{Input: m.cfg.Profile.Kind})
}

func (m *Machine) detach() {
	if m.detachLedger != nil {
		m.detachLedger()
		m.detachLedger = nil
	}
	if m.removeCompletion != nil {
		m.removeCompletion()
		m.removeCompletion = nil
	}
}

func (m *Machine) transition(to Stage) {
	from := m.stage
	m.stage = to
	if m.cfg.OnTransition != nil {
		m.cfg.OnTransition(from, to)
	}
}

func (m *Machine) stageIs(id string) bool {
	return id != "" && stageID(m.stage) == id
}

func (m *Machine) aborted() bool {
	return m.cfg.ShouldAbort != nil && m.cfg.ShouldAbort()
}
