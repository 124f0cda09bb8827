package core

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

var (
	// ErrLoopRunning is returned when a loop is driven twice at the same time.
	ErrLoopRunning = errors.New("loop is already running")

	// ErrLoopClosed is returned by operations on a stopped loop.
	ErrLoopClosed = errors.New("loop is closed")
)

// Loop is a single logical thread with three deferred queues: immediate,
// frame and timer. Every task it runs executes on one goroutine at a time, so
// state owned by the loop needs no locking.
//
// Ordering guarantees:
//   - immediates queued by a task run before the loop picks anything else
//   - frame callbacks queued before a frame starts all run in that frame,
//     each followed by its immediates
//   - a zero-delay timer posted from a frame callback runs after the whole
//     frame has finished
//
// A Loop is driven either by RunUntilIdle (deterministic, used with a mock
// clock) or by Run on a dedicated goroutine.
type Loop struct {
	mu        sync.Mutex
	immediate *FIFOTaskQueue
	frame     *FIFOTaskQueue
	timers    *TimerQueue

	clock         clock.Clock
	origin        time.Time
	frameInterval time.Duration

	panicHandler PanicHandler
	metrics      Metrics
	logger       Logger

	// Lifecycle control
	wakeup   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	closed   atomic.Bool

	// Counters
	executed  atomic.Int64
	panics    atomic.Int64
	frames    atomic.Int64
	lastRunAt atomic.Int64

	name string
}

// NewLoop creates a loop. A nil config uses DefaultLoopConfig.
func NewLoop(config *LoopConfig) *Loop {
	if config == nil {
		config = DefaultLoopConfig()
	}

	l := &Loop{
		immediate:     NewFIFOTaskQueue(),
		frame:         NewFIFOTaskQueue(),
		timers:        NewTimerQueue(),
		clock:         config.Clock,
		frameInterval: config.FrameInterval,
		panicHandler:  config.PanicHandler,
		metrics:       config.Metrics,
		logger:        config.Logger,
		wakeup:        make(chan struct{}, 1),
		stop:          make(chan struct{}),
		name:          config.Name,
	}

	// Use defaults if not provided
	if l.clock == nil {
		l.clock = clock.New()
	}
	if l.frameInterval <= 0 {
		l.frameInterval = defaultFrameInterval
	}
	if l.panicHandler == nil {
		l.panicHandler = &DefaultPanicHandler{}
	}
	if l.metrics == nil {
		l.metrics = &NilMetrics{}
	}
	if l.logger == nil {
		l.logger = &NoOpLogger{}
	}
	if l.name == "" {
		l.name = "main"
	}
	l.origin = l.clock.Now()

	return l
}

// Name returns the name of the loop
func (l *Loop) Name() string {
	return l.name
}

// Clock returns the clock the loop reads time from.
func (l *Loop) Clock() clock.Clock {
	return l.clock
}

// Now returns the time elapsed since the loop was created.
func (l *Loop) Now() time.Duration {
	return l.clock.Since(l.origin)
}

// WallNow returns the current wall time.
func (l *Loop) WallNow() time.Time {
	return l.clock.Now()
}

// WallTime converts a loop mark into wall time.
func (l *Loop) WallTime(mark time.Duration) time.Time {
	return l.origin.Add(mark)
}

// PostImmediate queues a task that runs as soon as the current task ends.
func (l *Loop) PostImmediate(task Task) {
	if l.closed.Load() {
		return
	}
	l.mu.Lock()
	l.immediate.Push(task)
	l.mu.Unlock()
	l.wake()
}

// PostFrame queues a task for the next frame.
func (l *Loop) PostFrame(task Task) {
	if l.closed.Load() {
		return
	}
	l.mu.Lock()
	l.frame.Push(task)
	l.mu.Unlock()
	l.wake()
}

// PostTask queues a zero-delay timer task.
func (l *Loop) PostTask(task Task) {
	l.PostDelayedTask(task, 0)
}

// PostDelayedTask queues a task that becomes runnable after delay.
func (l *Loop) PostDelayedTask(task Task, delay time.Duration) {
	if l.closed.Load() {
		return
	}
	if delay < 0 {
		delay = 0
	}
	due := l.Now() + delay

	l.mu.Lock()
	l.timers.Add(task, due)
	l.mu.Unlock()
	l.wake()
}

func (l *Loop) wake() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// RunUntilIdle runs every runnable task and returns once nothing is left
// that can run at the current clock reading. After each timer task it runs a
// frame if callbacks are queued. Timers due in the future stay queued;
// advance the clock and call RunUntilIdle again to run them.
func (l *Loop) RunUntilIdle(ctx context.Context) error {
	if l.closed.Load() {
		return ErrLoopClosed
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	runCtx := context.WithValue(ctx, loopKey, l)
	l.drainImmediates(runCtx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ranTimer := l.runOneTimer(runCtx)
		ranFrame := l.runFrame(runCtx)
		if !ranTimer && !ranFrame {
			return nil
		}
	}
}

// RunFrame runs a single frame. It returns false if no callbacks were queued.
func (l *Loop) RunFrame(ctx context.Context) bool {
	runCtx := context.WithValue(ctx, loopKey, l)
	l.drainImmediates(runCtx)
	return l.runFrame(runCtx)
}

// Run occupies the calling goroutine until ctx is done or Stop is called.
// Frames are produced at FrameInterval.
func (l *Loop) Run(ctx context.Context) error {
	if l.closed.Load() {
		return ErrLoopClosed
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	runCtx := context.WithValue(ctx, loopKey, l)
	ticker := l.clock.Ticker(l.frameInterval)
	defer ticker.Stop()

	for {
		l.drainImmediates(runCtx)
		for l.runOneTimer(runCtx) {
		}

		wait := time.Hour
		l.mu.Lock()
		if due, ok := l.timers.NextDue(); ok {
			wait = max(due-l.Now(), 0)
		}
		l.mu.Unlock()
		timer := l.clock.Timer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-l.stop:
			timer.Stop()
			return nil
		case <-l.wakeup:
		case <-timer.C:
		case <-ticker.C:
			l.runFrame(runCtx)
		}
		timer.Stop()
	}
}

// Stop makes Run return and drops every queued task. Posting after Stop is a no-op.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		close(l.stop)

		l.mu.Lock()
		l.immediate.Clear()
		l.frame.Clear()
		l.timers.Clear()
		l.mu.Unlock()
	})
}

// IsClosed returns true if the loop has been stopped
func (l *Loop) IsClosed() bool {
	return l.closed.Load()
}

// WaitIdle blocks until every task posted before the call that is already
// due has run. It requires the loop to be driven by Run on another goroutine.
func (l *Loop) WaitIdle(ctx context.Context) error {
	if l.IsClosed() {
		return ErrLoopClosed
	}

	done := make(chan struct{})
	l.PostTask(func(taskCtx context.Context) {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of queue depths and counters.
func (l *Loop) Stats() LoopStats {
	l.mu.Lock()
	stats := LoopStats{
		Name:      l.name,
		Immediate: l.immediate.Len(),
		Frame:     l.frame.Len(),
		Timers:    l.timers.Len(),
	}
	l.mu.Unlock()

	stats.Executed = l.executed.Load()
	stats.Panics = l.panics.Load()
	stats.Frames = l.frames.Load()
	stats.Running = l.running.Load()
	if ts := l.lastRunAt.Load(); ts != 0 {
		stats.LastRunAt = time.Unix(0, ts)
	}
	return stats
}

func (l *Loop) drainImmediates(ctx context.Context) {
	for {
		l.mu.Lock()
		task, ok := l.immediate.Pop()
		l.mu.Unlock()
		if !ok {
			return
		}
		l.runTask(ctx, task, PhaseImmediate)
	}
}

func (l *Loop) runOneTimer(ctx context.Context) bool {
	l.mu.Lock()
	item, ok := l.timers.PopDue(l.Now())
	l.mu.Unlock()
	if !ok {
		return false
	}

	l.runTask(ctx, item.Task, PhaseTimer)
	l.drainImmediates(ctx)
	return true
}

func (l *Loop) runFrame(ctx context.Context) bool {
	l.mu.Lock()
	batch := l.frame.TakeAll()
	l.mu.Unlock()
	if len(batch) == 0 {
		return false
	}

	l.frames.Add(1)
	for _, task := range batch {
		l.runTask(ctx, task, PhaseFrame)
		l.drainImmediates(ctx)
	}
	return true
}

// runTask executes one task and recovers its panic.
func (l *Loop) runTask(ctx context.Context, task Task, phase Phase) {
	defer func() {
		if rec := recover(); rec != nil {
			l.panics.Add(1)
			l.metrics.RecordTaskPanic(l.name, rec)
			l.panicHandler.HandlePanic(ctx, l.name, phase, rec, debug.Stack())
		}
	}()

	l.lastRunAt.Store(l.clock.Now().UnixNano())
	l.executed.Add(1)
	task(ctx)
}
