package core

const defaultRingCapacity = 100

// Ring is a fixed-capacity sequence that evicts its oldest item when full.
// Len never exceeds Cap. It is not safe for concurrent use; callers confine
// it to one Loop.
type Ring[T any] struct {
	items []T
	head  int // index of the oldest item
	count int
}

// NewRing creates a ring holding at most capacity items.
// A capacity below 1 falls back to 100.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = defaultRingCapacity
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v. When the ring is full the oldest item is overwritten and
// returned with ok set.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if r.count < len(r.items) {
		r.items[(r.head+r.count)%len(r.items)] = v
		r.count++
		return evicted, false
	}

	evicted = r.items[r.head]
	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
	return evicted, true
}

// At returns the i-th item, oldest first.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.count {
		panic("core: ring index out of range")
	}
	return r.items[(r.head+i)%len(r.items)]
}

// All returns a copy of the items, oldest first.
func (r *Ring[T]) All() []T {
	if r.count == 0 {
		return nil
	}
	out := make([]T, 0, r.count)
	for i := range r.count {
		out = append(out, r.items[(r.head+i)%len(r.items)])
	}
	return out
}

// Each visits items oldest first until fn returns false.
func (r *Ring[T]) Each(fn func(T) bool) {
	for i := range r.count {
		if !fn(r.items[(r.head+i)%len(r.items)]) {
			return
		}
	}
}

// RemoveFunc drops every item matching fn, keeping the relative order of the
// rest. It returns the number of removed items.
func (r *Ring[T]) RemoveFunc(fn func(T) bool) int {
	var zero T
	kept := 0
	for i := range r.count {
		v := r.items[(r.head+i)%len(r.items)]
		if fn(v) {
			continue
		}
		r.items[(r.head+kept)%len(r.items)] = v
		kept++
	}
	removed := r.count - kept
	for i := kept; i < r.count; i++ {
		r.items[(r.head+i)%len(r.items)] = zero
	}
	r.count = kept
	return removed
}

func (r *Ring[T]) Len() int { return r.count }

func (r *Ring[T]) Cap() int { return len(r.items) }

// Clear drops every item and releases references.
func (r *Ring[T]) Clear() {
	clear(r.items)
	r.head = 0
	r.count = 0
}
