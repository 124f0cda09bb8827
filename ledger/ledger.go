package ledger

import "time"

// Timing is how long one render of a component took.
type Timing struct {
	SelfTime  time.Duration
	TotalTime time.Duration
}

// RenderEvent is reported by the component-tree instrumentation for every
// component render of a commit.
type RenderEvent struct {
	ComponentName string
	Timing        Timing
	Changes       []Change
	DidCommit     bool
}

// ChangeCount counts how often one input key changed within a window.
type ChangeCount struct {
	Count    int
	Unstable int
}

// ChangeSummary is the per-category, per-key union of changes.
type ChangeSummary map[Category]map[string]ChangeCount

func (s ChangeSummary) add(c Change) {
	keys, ok := s[c.Category]
	if !ok {
		keys = make(map[string]ChangeCount)
		s[c.Category] = keys
	}
	cc := keys[c.Name]
	cc.Count++
	if c.Unstable {
		cc.Unstable++
	}
	keys[c.Name] = cc
}

func (s ChangeSummary) merge(other ChangeSummary) {
	for cat, keys := range other {
		dst, ok := s[cat]
		if !ok {
			dst = make(map[string]ChangeCount, len(keys))
			s[cat] = dst
		}
		for name, cc := range keys {
			cur := dst[name]
			cur.Count += cc.Count
			cur.Unstable += cc.Unstable
			dst[name] = cur
		}
	}
}

func (s ChangeSummary) clone() ChangeSummary {
	out := make(ChangeSummary, len(s))
	out.merge(s)
	return out
}

// Entry aggregates every render of one component within a capture window.
type Entry struct {
	ComponentName string
	RenderCount   int

	// Unnecessary counts renders that did not commit, had no changed inputs,
	// or only had unstable changes.
	Unnecessary int

	SelfTime  time.Duration
	TotalTime time.Duration
	Changes   ChangeSummary
}

// Merge adds other into e. Merging is commutative and associative.
func (e *Entry) Merge(other Entry) {
	e.RenderCount += other.RenderCount
	e.Unnecessary += other.Unnecessary
	e.SelfTime += other.SelfTime
	e.TotalTime += other.TotalTime
	if e.Changes == nil {
		e.Changes = make(ChangeSummary)
	}
	e.Changes.merge(other.Changes)
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	e.Changes = e.Changes.clone()
	return e
}

// Ledger accumulates render entries keyed by component name for one capture
// window.
type Ledger struct {
	entries map[string]*Entry
	order   []string
}

func New() *Ledger {
	return &Ledger{entries: make(map[string]*Entry)}
}

// Record adds one committed render of componentName.
func (l *Ledger) Record(componentName string, timing Timing, changes []Change) {
	l.record(componentName, timing, changes, true)
}

// RecordEvent adds one render event, committed or not.
func (l *Ledger) RecordEvent(ev RenderEvent) {
	l.record(ev.ComponentName, ev.Timing, ev.Changes, ev.DidCommit)
}

func (l *Ledger) record(componentName string, timing Timing, changes []Change, didCommit bool) {
	single := Entry{
		ComponentName: componentName,
		RenderCount:   1,
		SelfTime:      timing.SelfTime,
		TotalTime:     timing.TotalTime,
		Changes:       make(ChangeSummary),
	}
	if !didCommit || onlyUnstable(changes) {
		single.Unnecessary = 1
	}
	for _, c := range changes {
		single.Changes.add(c)
	}

	entry, ok := l.entries[componentName]
	if !ok {
		l.entries[componentName] = &single
		l.order = append(l.order, componentName)
		return
	}
	entry.Merge(single)
}

// onlyUnstable is true for an empty change list too.
func onlyUnstable(changes []Change) bool {
	for _, c := range changes {
		if !c.Unstable {
			return false
		}
	}
	return true
}

// Entry returns a copy of the entry for componentName.
func (l *Ledger) Entry(componentName string) (Entry, bool) {
	entry, ok := l.entries[componentName]
	if !ok {
		return Entry{}, false
	}
	return entry.Clone(), true
}

// Snapshot returns copies of every entry in first-render order.
func (l *Ledger) Snapshot() []Entry {
	out := make([]Entry, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.entries[name].Clone())
	}
	return out
}

// Len returns the number of distinct components recorded.
func (l *Ledger) Len() int { return len(l.order) }

// TotalTime sums the self time of every recorded render.
func (l *Ledger) TotalTime() time.Duration {
	var total time.Duration
	for _, e := range l.entries {
		total += e.SelfTime
	}
	return total
}
