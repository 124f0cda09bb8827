package renderscan

import (
	"time"

	"github.com/Swind/go-render-scan/capture"
	"github.com/Swind/go-render-scan/channel"
	"github.com/Swind/go-render-scan/core"
	"github.com/Swind/go-render-scan/timeline"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// subscriberMargin leaves room on each topic for host subscribers beside the
// pending tasks.
const subscriberMargin = 16

// Config holds the tunables of a Tracker. Start from DefaultConfig; zero or
// nil fields are replaced by the defaults below when the Tracker is created.
type Config struct {
	// Name labels the tracker in logs and metrics. Defaults to "renderscan".
	Name string

	// CorrelationTimeout is how long a finished capture waits for its timing
	// entry before the internal measurement is used. Defaults to 1000ms.
	CorrelationTimeout time.Duration

	// IdleGuard is how long a capture may stay unfinished before the next
	// start event abandons it. Defaults to 2000ms.
	IdleGuard time.Duration

	// Bounded collection capacities.
	PoolCapacity       int // pending tasks, default 50
	ChannelHistory     int // replay buffer per topic, default 200
	ChannelSubscribers int // subscribers per topic, default 100, at least PoolCapacity+16
	LogCapacity        int // observability log, default 200

	// SignatureDepth bounds how many pointer levels the change classifier follows.
	SignatureDepth int

	// FrameInterval is the frame cadence when the loop is driven by Run.
	FrameInterval time.Duration

	// TimingSupported is false when the host cannot deliver timing entries;
	// every record then uses the internal measurement.
	TimingSupported bool

	// Verbose logs correlation misses.
	Verbose bool

	// Kinds lists the captured interaction kinds. Defaults to pointer and keyboard.
	Kinds []capture.InteractionKind

	Clock        clock.Clock
	Logger       core.Logger
	Metrics      core.Metrics
	PanicHandler core.PanicHandler

	// NewID generates interaction ids.
	NewID func() string

	// ShouldAbort is checked at every capture boundary. Nil never aborts.
	ShouldAbort func() bool

	// OnError receives stage invariant violations. Nil logs them.
	OnError func(error)

	// OnTransition observes every stage change of every machine.
	OnTransition func(from, to capture.Stage)

	// Sinks receive every completion record after the log and the completion topic.
	Sinks []capture.Sink
}

// DefaultConfig returns a config with every default filled in.
func DefaultConfig() *Config {
	return &Config{
		Name:               "renderscan",
		CorrelationTimeout: capture.DefaultCorrelationTimeout,
		IdleGuard:          capture.DefaultIdleGuard,
		PoolCapacity:       capture.DefaultPoolCapacity,
		ChannelHistory:     channel.DefaultHistoryCapacity,
		ChannelSubscribers: channel.DefaultSubscriberCapacity,
		LogCapacity:        timeline.DefaultCapacity,
		SignatureDepth:     2,
		FrameInterval:      16 * time.Millisecond,
		TimingSupported:    true,
		Kinds:              []capture.InteractionKind{capture.KindPointer, capture.KindKeyboard},
		Clock:              clock.New(),
		Logger:             &core.DefaultLogger{Prefix: "renderscan"},
		Metrics:            &core.NilMetrics{},
		PanicHandler:       &core.DefaultPanicHandler{},
		NewID:              uuid.NewString,
	}
}

// withDefaults returns a copy of c with zero fields replaced.
func (c *Config) withDefaults() Config {
	def := DefaultConfig()
	if c == nil {
		return *def
	}
	out := *c
	if out.Name == "" {
		out.Name = def.Name
	}
	if out.CorrelationTimeout <= 0 {
		out.CorrelationTimeout = def.CorrelationTimeout
	}
	if out.IdleGuard <= 0 {
		out.IdleGuard = def.IdleGuard
	}
	if out.PoolCapacity < 1 {
		out.PoolCapacity = def.PoolCapacity
	}
	if out.ChannelHistory < 1 {
		out.ChannelHistory = def.ChannelHistory
	}
	if out.ChannelSubscribers < 1 {
		out.ChannelSubscribers = def.ChannelSubscribers
	}
	// Every pending task holds a timing subscription.
	if out.ChannelSubscribers < out.PoolCapacity+subscriberMargin {
		out.ChannelSubscribers = out.PoolCapacity + subscriberMargin
	}
	if out.LogCapacity < 1 {
		out.LogCapacity = def.LogCapacity
	}
	if out.SignatureDepth < 1 {
		out.SignatureDepth = def.SignatureDepth
	}
	if out.FrameInterval <= 0 {
		out.FrameInterval = def.FrameInterval
	}
	if len(out.Kinds) == 0 {
		out.Kinds = def.Kinds
	}
	if out.Clock == nil {
		out.Clock = def.Clock
	}
	if out.Logger == nil {
		out.Logger = &core.DefaultLogger{Prefix: out.Name}
	}
	if out.Metrics == nil {
		out.Metrics = def.Metrics
	}
	if out.PanicHandler == nil {
		out.PanicHandler = def.PanicHandler
	}
	if out.NewID == nil {
		out.NewID = def.NewID
	}
	return out
}
