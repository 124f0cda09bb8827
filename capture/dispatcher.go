package capture

type listener struct {
	fn      func(InputEvent)
	removed bool
}

// Dispatcher is an in-process EventSource. Hosts forward platform events to
// Dispatch; listeners run synchronously in registration order and may add or
// remove listeners while an event is being dispatched.
type Dispatcher struct {
	listeners map[EventType][]*listener
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[EventType][]*listener)}
}

// AddListener implements EventSource.
func (d *Dispatcher) AddListener(t EventType, fn func(InputEvent)) (remove func()) {
	l := &listener{fn: fn}
	d.listeners[t] = append(d.listeners[t], l)

	return func() {
		if l.removed {
			return
		}
		l.removed = true
		subs := d.listeners[t]
		for i, cur := range subs {
			if cur == l {
				d.listeners[t] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(d.listeners[t]) == 0 {
			delete(d.listeners, t)
		}
	}
}

// Dispatch delivers ev to the listeners registered for its type.
func (d *Dispatcher) Dispatch(ev InputEvent) {
	subs := d.listeners[ev.Type]
	if len(subs) == 0 {
		return
	}
	snapshot := make([]*listener, len(subs))
	copy(snapshot, subs)

	for _, l := range snapshot {
		if !l.removed {
			l.fn(ev)
		}
	}
}

// Listeners returns how many listeners are registered for t.
func (d *Dispatcher) Listeners(t EventType) int {
	return len(d.listeners[t])
}
