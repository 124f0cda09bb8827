package capture

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Swind/go-render-scan/channel"
	"github.com/Swind/go-render-scan/core"
	"github.com/Swind/go-render-scan/ledger"
	"github.com/benbjohnson/clock"
)

// recordingMetrics keeps what the capture package reports.
type recordingMetrics struct {
	core.NilMetrics
	completions []string
	evictions   []string
	misses      []string
	violations  []string
	abandoned   []string
}

func (m *recordingMetrics) RecordCompletion(kind, source string, latency time.Duration) {
	m.completions = append(m.completions, kind+"/"+source)
}

func (m *recordingMetrics) RecordEviction(collection string) {
	m.evictions = append(m.evictions, collection)
}

func (m *recordingMetrics) RecordCorrelationMiss(kind string) {
	m.misses = append(m.misses, kind)
}

func (m *recordingMetrics) RecordInvariantViolation(kind, boundary string) {
	m.violations = append(m.violations, kind+"/"+boundary)
}

func (m *recordingMetrics) RecordAbandoned(kind, reason string) {
	m.abandoned = append(m.abandoned, kind+"/"+reason)
}

// harness wires one machine to a pool on a mock-clocked loop.
type harness struct {
	t       *testing.T
	clock   *clock.Mock
	loop    *core.Loop
	source  *Dispatcher
	timings *channel.Channel[TimingEntry]
	renders *channel.Channel[ledger.RenderEvent]
	metrics *recordingMetrics
	pool    *Pool
	machine *Machine
	detach  func()

	records     []CompletionRecord
	transitions [][2]StageKind
	errs        []error
	abort       bool
}

func newHarness(t *testing.T, kind InteractionKind) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clock:   clock.NewMock(),
		source:  NewDispatcher(),
		metrics: &recordingMetrics{},
	}
	h.loop = core.NewLoop(&core.LoopConfig{Name: "test", Clock: h.clock})
	h.timings = channel.New[TimingEntry]("timing", channel.Options{})
	h.renders = channel.New[ledger.RenderEvent]("render", channel.Options{})
	h.pool = NewPool(PoolConfig{
		Loop:            h.loop,
		Timings:         h.timings,
		Sink:            SinkFunc(func(r CompletionRecord) { h.records = append(h.records, r) }),
		TimingSupported: true,
		Metrics:         h.metrics,
	})

	ids := 0
	h.machine = NewMachine(MachineConfig{
		Profile: ProfileFor(kind),
		Loop:    h.loop,
		Source:  h.source,
		Pool:    h.pool,
		Renders: h.renders,
		NewID: func() string {
			ids++
			return "interaction-" + strconv.Itoa(ids)
		},
		ShouldAbort: func() bool { return h.abort },
		OnError:     func(err error) { h.errs = append(h.errs, err) },
		OnTransition: func(from, to Stage) {
			h.transitions = append(h.transitions, [2]StageKind{from.Kind(), to.Kind()})
		},
		Metrics: h.metrics,
	})
	h.detach = h.machine.Attach()
	return h
}

func (h *harness) dispatch(t EventType, target Target) {
	h.source.Dispatch(InputEvent{Type: t, Target: target, Timestamp: h.loop.Now()})
}

func (h *harness) run() {
	h.t.Helper()
	if err := h.loop.RunUntilIdle(context.Background()); err != nil {
		h.t.Fatalf("RunUntilIdle() error = %v", err)
	}
}

func (h *harness) advance(d time.Duration) {
	h.clock.Add(d)
}

var button = StaticTarget{Path: []string{"App", "Toolbar", "SaveButton"}}
