package capture

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Swind/go-render-scan/channel"
	"github.com/Swind/go-render-scan/core"
)

const (
	DefaultCorrelationTimeout = 1000 * time.Millisecond
	DefaultPoolCapacity       = 50
)

// Task is a finished capture waiting for its platform timing entry.
type Task struct {
	ID        string
	Kind      InteractionKind
	StartTime time.Duration
	EndTime   time.Duration

	stage       Timeout
	completed   bool
	unsubscribe func()
}

// Stage returns the terminal stage the task was opened with.
func (t *Task) Stage() Timeout { return t.stage }

// Completed reports whether the task has been finalized or evicted.
func (t *Task) Completed() bool { return t.completed }

// Record computes the completion record for the task. A nil entry yields the
// fallback record based on the internal start and commit marks.
func (t *Task) Record(entry *TimingEntry, at time.Time) CompletionRecord {
	if entry == nil {
		return CompletionRecord{
			Stage:       t.stage,
			Latency:     t.EndTime - t.StartTime,
			CompletedAt: at,
			Source:      SourceFallback,
		}
	}
	e := *entry
	return CompletionRecord{
		Stage:       t.stage,
		Latency:     e.Duration,
		CompletedAt: at,
		Source:      SourceCorrelated,
		Entry:       &e,
	}
}

// PoolConfig configures a Pool. Loop and Sink are required.
type PoolConfig struct {
	Loop    core.Scheduler
	Timings *channel.Channel[TimingEntry]
	Sink    Sink

	// Capacity bounds the pending tasks; the oldest is dropped beyond it.
	Capacity int

	// CorrelationTimeout is how long a task waits for its timing entry.
	CorrelationTimeout time.Duration

	// MaxStartSkew ignores entries whose start is further than this from a
	// task's start. Defaults to CorrelationTimeout.
	MaxStartSkew time.Duration

	// TimingSupported is false when the host has no event-timing capability.
	TimingSupported bool

	// ConsumedCapacity bounds the remembered ids of attributed interactions.
	// It is raised to the history capacity of Timings, so an entry still
	// replayable is never attributed twice.
	ConsumedCapacity int

	// Verbose logs every correlation miss.
	Verbose bool

	Logger  core.Logger
	Metrics core.Metrics
}

// PoolStats counts pool activity.
type PoolStats struct {
	Pending    int
	Completed  int64
	Correlated int64
	Fallback   int64
	Evicted    int64
	Misses     int64
}

// Pool holds finished captures until a platform timing entry or the fallback
// timer finalizes them, whichever comes first.
//
// Entries are matched to the pending task of the same kind whose start mark is
// closest to the entry's start time. This is an approximation: rapid, repeated
// interactions of one kind that overlap inside the correlation window can be
// swapped.
type Pool struct {
	cfg      PoolConfig
	tasks    *core.Ring[*Task]
	consumed *core.Ring[uint64]

	pending    atomic.Int32
	completed  atomic.Int64
	correlated atomic.Int64
	fallback   atomic.Int64
	evicted    atomic.Int64
	misses     atomic.Int64
}

// NewPool creates a pool and starts accounting for unmatched timing entries.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Capacity < 1 {
		cfg.Capacity = DefaultPoolCapacity
	}
	if cfg.CorrelationTimeout <= 0 {
		cfg.CorrelationTimeout = DefaultCorrelationTimeout
	}
	if cfg.MaxStartSkew <= 0 {
		cfg.MaxStartSkew = cfg.CorrelationTimeout
	}
	if cfg.ConsumedCapacity < 1 {
		cfg.ConsumedCapacity = channel.DefaultHistoryCapacity
	}
	if cfg.Timings != nil && cfg.ConsumedCapacity < cfg.Timings.Cap() {
		cfg.ConsumedCapacity = cfg.Timings.Cap()
	}
	if cfg.Sink == nil {
		cfg.Sink = MultiSink(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &core.NilMetrics{}
	}

	p := &Pool{
		cfg:      cfg,
		tasks:    core.NewRing[*Task](cfg.Capacity),
		consumed: core.NewRing[uint64](cfg.ConsumedCapacity),
	}

	if !cfg.TimingSupported || cfg.Timings == nil {
		cfg.Logger.Info("latency falls back to internal marks", core.F("reason", ErrCapabilityAbsent))
	} else {
		cfg.Timings.OnEvict(p.entryEvicted)
	}
	return p
}

// Open registers a task for the terminal stage and starts both resolution
// paths. Opening the same interaction twice returns the existing task.
func (p *Pool) Open(stage Timeout) *Task {
	if t, ok := p.Lookup(stage.ID); ok {
		return t
	}

	task := &Task{
		ID:        stage.ID,
		Kind:      stage.Input,
		StartTime: stage.StartMark,
		EndTime:   stage.CommitMark,
		stage:     stage,
	}
	if evicted, ok := p.tasks.Push(task); ok {
		p.evict(evicted)
	}
	p.pending.Store(int32(p.tasks.Len()))

	if !p.cfg.TimingSupported || p.cfg.Timings == nil {
		p.Complete(task, nil)
		return task
	}

	// Entries published before the task existed are replayed here.
	unsubscribe := p.cfg.Timings.Subscribe(func(e TimingEntry) {
		p.offer(task, e)
	})
	if task.completed {
		unsubscribe()
		return task
	}
	task.unsubscribe = unsubscribe

	p.cfg.Loop.PostDelayedTask(func(ctx context.Context) {
		p.Complete(task, nil)
	}, p.cfg.CorrelationTimeout)

	return task
}

// Complete finalizes t with entry, or with the fallback measurement when
// entry is nil. Only the first call for a task has any effect; it returns
// whether this call finalized the task.
func (p *Pool) Complete(t *Task, entry *TimingEntry) bool {
	if t == nil || t.completed {
		return false
	}
	t.completed = true
	p.tasks.RemoveFunc(func(x *Task) bool { return x == t })
	p.pending.Store(int32(p.tasks.Len()))
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	if entry != nil {
		p.markConsumed(entry.InteractionID)
	}

	record := t.Record(entry, p.cfg.Loop.WallNow())
	p.completed.Add(1)
	if record.Source == SourceCorrelated {
		p.correlated.Add(1)
	} else {
		p.fallback.Add(1)
	}
	p.cfg.Metrics.RecordCompletion(t.Kind.String(), record.Source.String(), record.Latency)
	p.cfg.Sink.Complete(record)
	return true
}

// offer routes an entry delivered to owner's subscription.
func (p *Pool) offer(owner *Task, e TimingEntry) {
	if owner.completed || e.InteractionID == 0 || p.isConsumed(e.InteractionID) {
		return
	}
	kind, ok := e.Kind()
	if !ok || kind != owner.Kind {
		return
	}
	best, ok := p.Nearest(kind, e.StartTime)
	if !ok {
		return
	}
	p.Complete(best, &e)
}

// Nearest returns the pending task of kind whose start is closest to start.
// Ties go to the older task.
func (p *Pool) Nearest(kind InteractionKind, start time.Duration) (*Task, bool) {
	var best *Task
	var bestDiff time.Duration
	p.tasks.Each(func(t *Task) bool {
		if t.completed || t.Kind != kind {
			return true
		}
		diff := absDuration(t.StartTime - start)
		if diff > p.cfg.MaxStartSkew {
			return true
		}
		if best == nil || diff < bestDiff {
			best, bestDiff = t, diff
		}
		return true
	})
	return best, best != nil
}

// Lookup returns the pending task of an interaction.
func (p *Pool) Lookup(id string) (*Task, bool) {
	var found *Task
	p.tasks.Each(func(t *Task) bool {
		if t.ID == id {
			found = t
			return false
		}
		return true
	})
	return found, found != nil
}

// Pending returns the pending tasks, oldest first.
func (p *Pool) Pending() []*Task {
	return p.tasks.All()
}

// Len returns the number of pending tasks.
func (p *Pool) Len() int {
	return p.tasks.Len()
}

// Stats returns counters. It is safe to call from any goroutine.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Pending:    int(p.pending.Load()),
		Completed:  p.completed.Load(),
		Correlated: p.correlated.Load(),
		Fallback:   p.fallback.Load(),
		Evicted:    p.evicted.Load(),
		Misses:     p.misses.Load(),
	}
}

// evict drops a task pushed out of the pool. No record is produced for it.
func (p *Pool) evict(t *Task) {
	t.completed = true
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	p.evicted.Add(1)
	p.cfg.Metrics.RecordEviction("pool")
	p.cfg.Logger.Debug("pending interaction evicted",
		core.F("id", t.ID),
		core.F("kind", t.Kind),
	)
}

// entryEvicted reports timing entries that left the replay buffer unmatched.
func (p *Pool) entryEvicted(e TimingEntry) {
	if e.InteractionID == 0 || p.isConsumed(e.InteractionID) {
		return
	}
	// One miss per interaction, however many entries it produced.
	p.markConsumed(e.InteractionID)

	kind, _ := e.Kind()
	p.misses.Add(1)
	p.cfg.Metrics.RecordCorrelationMiss(kind.String())
	if p.cfg.Verbose {
		p.cfg.Logger.Debug("timing entry matched no interaction",
			core.F("interaction_id", e.InteractionID),
			core.F("name", e.Name),
			core.F("start", e.StartTime),
			core.F("duration", e.Duration),
		)
	}
}

func (p *Pool) markConsumed(id uint64) {
	if id == 0 || p.isConsumed(id) {
		return
	}
	p.consumed.Push(id)
}

func (p *Pool) isConsumed(id uint64) bool {
	found := false
	p.consumed.Each(func(v uint64) bool {
		if v == id {
			found = true
			return false
		}
		return true
	})
	return found
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
