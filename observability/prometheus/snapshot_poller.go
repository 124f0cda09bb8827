package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-render-scan/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// LoopSnapshotProvider provides current loop stats snapshots.
type LoopSnapshotProvider interface {
	Stats() core.LoopStats
}

// TrackerSnapshotProvider provides current tracker stats snapshots.
type TrackerSnapshotProvider interface {
	Stats() core.TrackerStats
}

// SnapshotPoller periodically exports loop/tracker Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	loopsMu sync.RWMutex
	loops   map[string]LoopSnapshotProvider

	trackersMu sync.RWMutex
	trackers   map[string]TrackerSnapshotProvider

	loopQueued   *prom.GaugeVec
	loopExecuted *prom.GaugeVec
	loopFrames   *prom.GaugeVec
	loopRunning  *prom.GaugeVec

	trackerPending   *prom.GaugeVec
	trackerInFlight  *prom.GaugeVec
	trackerCompleted *prom.GaugeVec
	trackerEvicted   *prom.GaugeVec
	trackerTimeline  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	loopQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "renderscan",
		Name:      "loop_queued",
		Help:      "Queued tasks per loop and phase.",
	}, []string{"loop", "phase"})
	loopExecuted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "renderscan",
		Name:      "loop_executed_total",
		Help:      "Loop executed task count snapshot.",
	}, []string{"loop"})
	loopFrames := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "renderscan",
		Name:      "loop_frames_total",
		Help:      "Loop frame count snapshot.",
	}, []string{"loop"})
	loopRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "renderscan",
		Name:      "loop_running",
		Help:      "Loop running state (1=running, 0=idle).",
	}, []string{"loop"})

	trackerPending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "renderscan",
		Name:      "tracker_pending_tasks",
		Help:      "Finished captures waiting for a timing entry.",
	}, []string{"tracker"})
	trackerInFlight := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "renderscan",
		Name:      "tracker_captures_in_flight",
		Help:      "Captures between start and timeout.",
	}, []string{"tracker"})
	trackerCompleted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "renderscan",
		Name:      "tracker_completed_total",
		Help:      "Completion record count snapshot per resolution source.",
	}, []string{"tracker", "source"})
	trackerEvicted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "renderscan",
		Name:      "tracker_evicted_total",
		Help:      "Pending tasks dropped by the pool bound.",
	}, []string{"tracker"})
	trackerTimeline := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "renderscan",
		Name:      "tracker_timeline_events",
		Help:      "Events buffered in the observability log.",
	}, []string{"tracker"})

	var err error
	if loopQueued, err = registerCollector(reg, loopQueued); err != nil {
		return nil, err
	}
	if loopExecuted, err = registerCollector(reg, loopExecuted); err != nil {
		return nil, err
	}
	if loopFrames, err = registerCollector(reg, loopFrames); err != nil {
		return nil, err
	}
	if loopRunning, err = registerCollector(reg, loopRunning); err != nil {
		return nil, err
	}
	if trackerPending, err = registerCollector(reg, trackerPending); err != nil {
		return nil, err
	}
	if trackerInFlight, err = registerCollector(reg, trackerInFlight); err != nil {
		return nil, err
	}
	if trackerCompleted, err = registerCollector(reg, trackerCompleted); err != nil {
		return nil, err
	}
	if trackerEvicted, err = registerCollector(reg, trackerEvicted); err != nil {
		return nil, err
	}
	if trackerTimeline, err = registerCollector(reg, trackerTimeline); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:         interval,
		loops:            make(map[string]LoopSnapshotProvider),
		trackers:         make(map[string]TrackerSnapshotProvider),
		loopQueued:       loopQueued,
		loopExecuted:     loopExecuted,
		loopFrames:       loopFrames,
		loopRunning:      loopRunning,
		trackerPending:   trackerPending,
		trackerInFlight:  trackerInFlight,
		trackerCompleted: trackerCompleted,
		trackerEvicted:   trackerEvicted,
		trackerTimeline:  trackerTimeline,
	}, nil
}

// AddLoop adds or replaces a loop snapshot provider by name.
func (p *SnapshotPoller) AddLoop(name string, provider LoopSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "loop")
	p.loopsMu.Lock()
	p.loops[name] = provider
	p.loopsMu.Unlock()
}

// AddTracker adds or replaces a tracker snapshot provider by name.
func (p *SnapshotPoller) AddTracker(name string, provider TrackerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "tracker")
	p.trackersMu.Lock()
	p.trackers[name] = provider
	p.trackersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.loopsMu.RLock()
	for name, provider := range p.loops {
		stats := provider.Stats()
		p.loopQueued.WithLabelValues(name, core.PhaseImmediate.String()).Set(float64(stats.Immediate))
		p.loopQueued.WithLabelValues(name, core.PhaseFrame.String()).Set(float64(stats.Frame))
		p.loopQueued.WithLabelValues(name, core.PhaseTimer.String()).Set(float64(stats.Timers))
		p.loopExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		p.loopFrames.WithLabelValues(name).Set(float64(stats.Frames))
		p.loopRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}
	p.loopsMu.RUnlock()

	p.trackersMu.RLock()
	for name, provider := range p.trackers {
		stats := provider.Stats()
		p.trackerPending.WithLabelValues(name).Set(float64(stats.PendingTasks))
		p.trackerInFlight.WithLabelValues(name).Set(float64(stats.CapturesInFlight))
		p.trackerCompleted.WithLabelValues(name, "correlated").Set(float64(stats.Correlated))
		p.trackerCompleted.WithLabelValues(name, "fallback").Set(float64(stats.Fallback))
		p.trackerEvicted.WithLabelValues(name).Set(float64(stats.Evicted))
		p.trackerTimeline.WithLabelValues(name).Set(float64(stats.TimelineEvents))
	}
	p.trackersMu.RUnlock()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
