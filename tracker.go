package renderscan

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-render-scan/capture"
	"github.com/Swind/go-render-scan/channel"
	"github.com/Swind/go-render-scan/core"
	"github.com/Swind/go-render-scan/ledger"
	"github.com/Swind/go-render-scan/timeline"
)

// Topic names of a Tracker's registry.
const (
	TopicTiming     = "timing"
	TopicRender     = "render"
	TopicCompletion = "completion"
)

// Tracker owns one attribution pipeline: its loop, topics, correlation pool,
// one capture machine per interaction kind, the change classifier and the
// observability log. Several trackers can live in one process.
//
// Every method except Stats and Do is loop-confined: call it from a
// task running on Loop(), or from the goroutine that drives
// Loop().RunUntilIdle.
type Tracker struct {
	cfg  Config
	loop *core.Loop

	registry    *channel.Registry
	timings     *channel.Channel[capture.TimingEntry]
	renders     *channel.Channel[ledger.RenderEvent]
	completions *channel.Channel[capture.CompletionRecord]

	dispatcher *capture.Dispatcher
	pool       *capture.Pool
	machines   []*capture.Machine
	detach     []func()
	classifier *ledger.Classifier
	log        *timeline.Log

	inFlight  atomic.Int32
	closeOnce sync.Once
}

// New creates a tracker. A nil config uses DefaultConfig.
func New(config *Config) *Tracker {
	cfg := config.withDefaults()

	t := &Tracker{
		cfg: cfg,
		loop: core.NewLoop(&core.LoopConfig{
			Name:          cfg.Name,
			Clock:         cfg.Clock,
			FrameInterval: cfg.FrameInterval,
			PanicHandler:  cfg.PanicHandler,
			Metrics:       cfg.Metrics,
			Logger:        cfg.Logger,
		}),
		registry: channel.NewRegistry(channel.Options{
			HistoryCapacity:    cfg.ChannelHistory,
			SubscriberCapacity: cfg.ChannelSubscribers,
			Metrics:            cfg.Metrics,
		}),
		dispatcher: capture.NewDispatcher(),
		classifier: ledger.NewClassifier(cfg.SignatureDepth),
		log:        timeline.NewLog(timeline.Options{Capacity: cfg.LogCapacity, Metrics: cfg.Metrics}),
	}
	t.timings = channel.Topic[capture.TimingEntry](t.registry, TopicTiming)
	t.renders = channel.Topic[ledger.RenderEvent](t.registry, TopicRender)
	t.completions = channel.Topic[capture.CompletionRecord](t.registry, TopicCompletion)

	sinks := capture.MultiSink{t.log, capture.SinkFunc(t.completions.Publish)}
	sinks = append(sinks, cfg.Sinks...)

	t.pool = capture.NewPool(capture.PoolConfig{
		Loop:               t.loop,
		Timings:            t.timings,
		Sink:               sinks,
		Capacity:           cfg.PoolCapacity,
		CorrelationTimeout: cfg.CorrelationTimeout,
		ConsumedCapacity:   cfg.ChannelHistory,
		TimingSupported:    cfg.TimingSupported,
		Verbose:            cfg.Verbose,
		Logger:             cfg.Logger,
		Metrics:            cfg.Metrics,
	})

	for _, kind := range cfg.Kinds {
		m := capture.NewMachine(capture.MachineConfig{
			Profile:      capture.ProfileFor(kind),
			Loop:         t.loop,
			Source:       t.dispatcher,
			Pool:         t.pool,
			Renders:      t.renders,
			IdleGuard:    cfg.IdleGuard,
			ShouldAbort:  cfg.ShouldAbort,
			OnError:      cfg.OnError,
			OnTransition: t.onTransition,
			NewID:        cfg.NewID,
			Logger:       cfg.Logger,
			Metrics:      cfg.Metrics,
		})
		t.machines = append(t.machines, m)
		t.detach = append(t.detach, m.Attach())
	}

	cfg.Logger.Debug("tracker created",
		core.F("name", cfg.Name),
		core.F("kinds", len(t.machines)),
		core.F("timing_supported", cfg.TimingSupported),
	)
	return t
}

func (t *Tracker) onTransition(from, to capture.Stage) {
	switch {
	case to.Kind() == capture.StageStart:
		// A new capture window opens; signatures from the last one are stale.
		t.classifier.Reset()
		t.inFlight.Add(1)
	case to.Kind() == capture.StageUninitialized && from.Kind() != capture.StageUninitialized:
		t.inFlight.Add(-1)
	}
	if t.cfg.OnTransition != nil {
		t.cfg.OnTransition(from, to)
	}
}

// Name returns the tracker name.
func (t *Tracker) Name() string { return t.cfg.Name }

// Loop returns the loop every capture runs on.
func (t *Tracker) Loop() *core.Loop { return t.loop }

// Registry returns the tracker's topics.
func (t *Tracker) Registry() *channel.Registry { return t.registry }

// Do runs fn as one loop task. It is safe from any goroutine and is how hosts
// driving the loop with Run deliver platform work.
func (t *Tracker) Do(fn func()) {
	t.loop.PostTask(func(ctx context.Context) { fn() })
}

// Dispatch delivers the input events of one platform task, in order.
func (t *Tracker) Dispatch(events ...capture.InputEvent) {
	for _, ev := range events {
		if ev.Timestamp == 0 {
			ev.Timestamp = t.loop.Now()
		}
		t.dispatcher.Dispatch(ev)
	}
}

// ReportRender records a component render into the live capture, if any.
func (t *Tracker) ReportRender(ev ledger.RenderEvent) {
	t.renders.Publish(ev)
}

// ReportCommit classifies what changed between two input snapshots of a
// component and reports the render.
func (t *Tracker) ReportCommit(componentName string, prev, next ledger.Snapshot, timing ledger.Timing, didCommit bool) []ledger.Change {
	changes := t.classifier.Classify(prev, next)
	t.renders.Publish(ledger.RenderEvent{
		ComponentName: componentName,
		Timing:        timing,
		Changes:       changes,
		DidCommit:     didCommit,
	})
	return changes
}

// ReportTiming delivers a platform timing entry.
func (t *Tracker) ReportTiming(entry capture.TimingEntry) {
	t.timings.Publish(entry)
}

// ReportLongRender logs a long-render window.
func (t *Tracker) ReportLongRender(start, end time.Duration, renders []ledger.Entry) {
	t.log.AddLongRender(start, end, renders)
}

// SubscribeCompletions registers fn for completion records. Records already
// buffered are replayed first unless channel.WithoutReplay is given.
func (t *Tracker) SubscribeCompletions(fn func(capture.CompletionRecord), opts ...channel.SubscribeOption) (unsubscribe func()) {
	return t.completions.Subscribe(fn, opts...)
}

// Timeline returns the merged observability log.
func (t *Tracker) Timeline() []timeline.Event {
	return t.log.Merged()
}

// Stage returns the current stage of the machine capturing kind.
func (t *Tracker) Stage(kind capture.InteractionKind) (capture.Stage, bool) {
	if m := t.machine(kind); m != nil {
		return m.Stage(), true
	}
	return nil, false
}

// LiveRenders returns the ledger of the capture in flight for kind, or nil.
func (t *Tracker) LiveRenders(kind capture.InteractionKind) []ledger.Entry {
	m := t.machine(kind)
	if m == nil || m.Ledger() == nil {
		return nil
	}
	return m.Ledger().Snapshot()
}

// Pending returns the finished captures waiting for correlation.
func (t *Tracker) Pending() []*capture.Task {
	return t.pool.Pending()
}

func (t *Tracker) machine(kind capture.InteractionKind) *capture.Machine {
	for _, m := range t.machines {
		if m.Kind() == kind {
			return m
		}
	}
	return nil
}

// Stats returns a snapshot of the tracker. Safe from any goroutine.
func (t *Tracker) Stats() core.TrackerStats {
	ps := t.pool.Stats()
	return core.TrackerStats{
		Name:             t.cfg.Name,
		PendingTasks:     ps.Pending,
		CapturesInFlight: int(t.inFlight.Load()),
		Completed:        ps.Completed,
		Correlated:       ps.Correlated,
		Fallback:         ps.Fallback,
		Evicted:          ps.Evicted,
		TimelineEvents:   t.log.Len(),
	}
}

// Close detaches the machines and stops the loop. Pending tasks are dropped
// without records. Call it from the goroutine driving the loop, or after Run
// has returned.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		t.loop.Stop()
		for _, detach := range t.detach {
			detach()
		}
		t.cfg.Logger.Debug("tracker closed", core.F("name", t.cfg.Name))
	})
}
