package channel

import (
	"fmt"
	"sort"
)

// Registry owns a set of named topics. Topics are created lazily on first use.
// One Registry belongs to one tracker; there is no process-wide instance.
type Registry struct {
	topics map[string]any
	opts   Options
}

// NewRegistry creates a registry whose topics use opts for their bounds.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		topics: make(map[string]any),
		opts:   opts,
	}
}

// Topic returns the channel named name, creating it if needed.
// It panics if the name is already bound to a different item type.
func Topic[T any](r *Registry, name string) *Channel[T] {
	if existing, ok := r.topics[name]; ok {
		ch, ok := existing.(*Channel[T])
		if !ok {
			panic(fmt.Sprintf("channel: topic %q holds %T, not %T", name, existing, ch))
		}
		return ch
	}
	ch := New[T](name, r.opts)
	r.topics[name] = ch
	return ch
}

// Publish publishes item on the named topic.
func Publish[T any](r *Registry, name string, item T) {
	Topic[T](r, name).Publish(item)
}

// Subscribe subscribes fn to the named topic.
func Subscribe[T any](r *Registry, name string, fn func(T), opts ...SubscribeOption) (unsubscribe func()) {
	return Topic[T](r, name).Subscribe(fn, opts...)
}

// Names returns the names of every topic created so far, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
