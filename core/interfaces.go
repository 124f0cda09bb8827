package core

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// The loop keeps running after the handler returns.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context of the panicked task (carries the Loop)
	// - loopName: The name of the loop where the panic occurred
	// - phase: The queue the task was taken from
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, loopName string, phase Phase, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, loopName string, phase Phase, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Loop %s/%s] Panic: %v\nStack trace:\n%s", loopName, phase, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting attribution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast; they run on the loop.
type Metrics interface {
	// RecordCompletion records a finalized interaction.
	//
	// Parameters:
	// - kind: The interaction kind ("pointer", "keyboard")
	// - source: Which resolution path won ("correlated", "fallback")
	// - latency: The attributed latency
	RecordCompletion(kind string, source string, latency time.Duration)

	// RecordEviction records that a bounded collection dropped its oldest item.
	RecordEviction(collection string)

	// RecordCorrelationMiss records a timing entry that never matched a task.
	RecordCorrelationMiss(kind string)

	// RecordInvariantViolation records a stage boundary reached from an illegal stage.
	RecordInvariantViolation(kind string, boundary string)

	// RecordAbandoned records a capture discarded before reaching its terminal stage.
	//
	// Parameters:
	// - kind: The interaction kind
	// - reason: Why it was discarded ("stale", "aborted", "invariant")
	RecordAbandoned(kind string, reason string)

	// RecordTaskPanic records that a loop task panicked.
	RecordTaskPanic(loopName string, panicInfo any)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordCompletion(kind string, source string, latency time.Duration) {}
func (m *NilMetrics) RecordEviction(collection string)                                    {}
func (m *NilMetrics) RecordCorrelationMiss(kind string)                                   {}
func (m *NilMetrics) RecordInvariantViolation(kind string, boundary string)               {}
func (m *NilMetrics) RecordAbandoned(kind string, reason string)                          {}
func (m *NilMetrics) RecordTaskPanic(loopName string, panicInfo any)                      {}

// =============================================================================
// LoopConfig: Configuration for Loop
// =============================================================================

const defaultFrameInterval = 16 * time.Millisecond

// LoopConfig holds configuration options for Loop.
// All fields are optional; if not provided, default implementations will be used.
type LoopConfig struct {
	// Name labels the loop in logs and metrics. Defaults to "main".
	Name string

	// Clock supplies time. Defaults to the real clock; tests inject clock.NewMock().
	Clock clock.Clock

	// FrameInterval is the frame cadence used by Run. Defaults to 16ms.
	FrameInterval time.Duration

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics records task panics. Defaults to NilMetrics.
	Metrics Metrics

	// Logger defaults to NoOpLogger.
	Logger Logger
}

// DefaultLoopConfig returns a config with default handlers.
func DefaultLoopConfig() *LoopConfig {
	return &LoopConfig{
		Name:          "main",
		Clock:         clock.New(),
		FrameInterval: defaultFrameInterval,
		PanicHandler:  &DefaultPanicHandler{},
		Metrics:       &NilMetrics{},
		Logger:        &NoOpLogger{},
	}
}
