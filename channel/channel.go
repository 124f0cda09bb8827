// Package channel implements named, replayable publish/subscribe topics.
//
// A Channel keeps a bounded history of published items and a bounded list of
// subscribers. New subscribers receive the buffered history before any later
// item, so a producer and a consumer may attach in either order. Channels are
// confined to the loop that drives them and take no locks.
package channel

import (
	"github.com/Swind/go-render-scan/core"
)

const (
	DefaultHistoryCapacity    = 200
	DefaultSubscriberCapacity = 100
)

type subscription[T any] struct {
	id     uint64
	fn     func(T)
	active bool

	// Items published while the history is replayed wait in backlog.
	replaying bool
	backlog   []T
}

// Channel is a single topic carrying items of type T.
type Channel[T any] struct {
	name        string
	history     *core.Ring[T]
	subscribers *core.Ring[*subscription[T]]
	nextID      uint64

	onEvict func(T)
	metrics core.Metrics
}

// Options controls the bounds of a Channel.
type Options struct {
	HistoryCapacity    int
	SubscriberCapacity int
	Metrics            core.Metrics
}

// New creates a topic. Zero capacities use the package defaults.
func New[T any](name string, opts Options) *Channel[T] {
	if opts.HistoryCapacity < 1 {
		opts.HistoryCapacity = DefaultHistoryCapacity
	}
	if opts.SubscriberCapacity < 1 {
		opts.SubscriberCapacity = DefaultSubscriberCapacity
	}
	if opts.Metrics == nil {
		opts.Metrics = &core.NilMetrics{}
	}
	return &Channel[T]{
		name:        name,
		history:     core.NewRing[T](opts.HistoryCapacity),
		subscribers: core.NewRing[*subscription[T]](opts.SubscriberCapacity),
		metrics:     opts.Metrics,
	}
}

// Name returns the topic name.
func (c *Channel[T]) Name() string { return c.name }

// OnEvict registers fn to observe items dropped from the history buffer.
func (c *Channel[T]) OnEvict(fn func(T)) {
	c.onEvict = fn
}

// Publish appends item to the history, evicting the oldest item beyond
// capacity, then calls every subscriber in registration order.
func (c *Channel[T]) Publish(item T) {
	if evicted, ok := c.history.Push(item); ok {
		c.metrics.RecordEviction("channel:" + c.name)
		if c.onEvict != nil {
			c.onEvict(evicted)
		}
	}

	// Subscribers may subscribe or unsubscribe while being notified.
	for _, sub := range c.subscribers.All() {
		switch {
		case !sub.active:
		case sub.replaying:
			sub.backlog = append(sub.backlog, item)
		default:
			sub.fn(item)
		}
	}
}

type subscribeConfig struct {
	replay bool
}

// SubscribeOption customizes Subscribe.
type SubscribeOption func(*subscribeConfig)

// WithoutReplay skips the buffered history; only later items are delivered.
func WithoutReplay() SubscribeOption {
	return func(c *subscribeConfig) { c.replay = false }
}

// Subscribe registers fn. Unless WithoutReplay is given, the buffered history
// is delivered to fn synchronously, oldest first, before Subscribe returns.
// Items published by fn during the replay are delivered after it, in order.
// When the subscriber list is full the oldest subscriber is dropped.
func (c *Channel[T]) Subscribe(fn func(T), opts ...SubscribeOption) (unsubscribe func()) {
	cfg := subscribeConfig{replay: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.nextID++
	sub := &subscription[T]{id: c.nextID, fn: fn, active: true}

	var history []T
	if cfg.replay {
		history = c.history.All()
		sub.replaying = true
	}

	if evicted, ok := c.subscribers.Push(sub); ok {
		evicted.active = false
		c.metrics.RecordEviction("subscribers:" + c.name)
	}

	if cfg.replay {
		c.replay(sub, history)
	}

	return func() {
		if !sub.active {
			return
		}
		sub.active = false
		c.subscribers.RemoveFunc(func(s *subscription[T]) bool { return s == sub })
	}
}

func (c *Channel[T]) replay(sub *subscription[T], history []T) {
	for _, item := range history {
		if !sub.active {
			break
		}
		sub.fn(item)
	}
	for sub.active && len(sub.backlog) > 0 {
		item := sub.backlog[0]
		sub.backlog = sub.backlog[1:]
		sub.fn(item)
	}
	sub.replaying = false
	sub.backlog = nil
}

// History returns the buffered items, oldest first.
func (c *Channel[T]) History() []T {
	return c.history.All()
}

// Len returns the number of buffered items.
func (c *Channel[T]) Len() int { return c.history.Len() }

// Cap returns the history capacity.
func (c *Channel[T]) Cap() int { return c.history.Cap() }

// Subscribers returns the number of live subscribers.
func (c *Channel[T]) Subscribers() int { return c.subscribers.Len() }

// Clear drops the buffered history. Subscribers stay attached.
func (c *Channel[T]) Clear() {
	c.history.Clear()
}
