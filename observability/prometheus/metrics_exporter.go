package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-render-scan/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// DefaultLatencyBuckets spans one frame to well past the 500ms "poor"
// responsiveness threshold.
var DefaultLatencyBuckets = []float64{0.016, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5}

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	LatencyBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	interactionLatencySeconds *prom.HistogramVec
	evictionTotal             *prom.CounterVec
	correlationMissTotal      *prom.CounterVec
	invariantViolationTotal   *prom.CounterVec
	abandonedTotal            *prom.CounterVec
	taskPanicTotal            *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "renderscan"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.LatencyBuckets
	if len(buckets) == 0 {
		buckets = DefaultLatencyBuckets
	}

	latencyVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "interaction_latency_seconds",
		Help:      "Attributed interaction latency in seconds.",
		Buckets:   buckets,
	}, []string{"kind", "source"})
	evictionVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "eviction_total",
		Help:      "Total number of items dropped by bounded collections.",
	}, []string{"collection"})
	missVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "correlation_miss_total",
		Help:      "Total number of timing entries that matched no interaction.",
	}, []string{"kind"})
	violationVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "stage_invariant_violation_total",
		Help:      "Total number of stage boundaries reached from an illegal stage.",
	}, []string{"kind", "boundary"})
	abandonedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "capture_abandoned_total",
		Help:      "Total number of captures discarded before completion.",
	}, []string{"kind", "reason"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of loop task panics.",
	}, []string{"loop"})

	var err error
	if latencyVec, err = registerCollector(reg, latencyVec); err != nil {
		return nil, err
	}
	if evictionVec, err = registerCollector(reg, evictionVec); err != nil {
		return nil, err
	}
	if missVec, err = registerCollector(reg, missVec); err != nil {
		return nil, err
	}
	if violationVec, err = registerCollector(reg, violationVec); err != nil {
		return nil, err
	}
	if abandonedVec, err = registerCollector(reg, abandonedVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		interactionLatencySeconds: latencyVec,
		evictionTotal:             evictionVec,
		correlationMissTotal:      missVec,
		invariantViolationTotal:   violationVec,
		abandonedTotal:            abandonedVec,
		taskPanicTotal:            panicVec,
	}, nil
}

// RecordCompletion records the latency of a finalized interaction.
func (m *MetricsExporter) RecordCompletion(kind string, source string, latency time.Duration) {
	if m == nil {
		return
	}
	m.interactionLatencySeconds.WithLabelValues(normalizeLabel(kind, "unknown"), normalizeLabel(source, "unknown")).Observe(latency.Seconds())
}

// RecordEviction records an item dropped by a bounded collection.
func (m *MetricsExporter) RecordEviction(collection string) {
	if m == nil {
		return
	}
	m.evictionTotal.WithLabelValues(normalizeLabel(collection, "unknown")).Inc()
}

// RecordCorrelationMiss records a timing entry that matched no interaction.
func (m *MetricsExporter) RecordCorrelationMiss(kind string) {
	if m == nil {
		return
	}
	m.correlationMissTotal.WithLabelValues(normalizeLabel(kind, "unknown")).Inc()
}

// RecordInvariantViolation records a stage invariant violation.
func (m *MetricsExporter) RecordInvariantViolation(kind string, boundary string) {
	if m == nil {
		return
	}
	m.invariantViolationTotal.WithLabelValues(normalizeLabel(kind, "unknown"), normalizeLabel(boundary, "unknown")).Inc()
}

// RecordAbandoned records a discarded capture.
func (m *MetricsExporter) RecordAbandoned(kind string, reason string) {
	if m == nil {
		return
	}
	m.abandonedTotal.WithLabelValues(normalizeLabel(kind, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(loopName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(loopName, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
