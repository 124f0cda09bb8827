// Package ledger classifies component input changes and aggregates render
// work per capture window.
package ledger

import (
	"sort"
)

// Category is the kind of component input a change belongs to.
type Category int

const (
	CategoryProp Category = iota
	CategoryState
	CategoryContext
)

func (c Category) String() string {
	switch c {
	case CategoryProp:
		return "prop"
	case CategoryState:
		return "state"
	case CategoryContext:
		return "context"
	default:
		return "unknown"
	}
}

// Snapshot is the set of inputs a component rendered with.
type Snapshot struct {
	Props   map[string]any
	State   map[string]any
	Context map[string]any
}

func (s Snapshot) category(c Category) map[string]any {
	switch c {
	case CategoryProp:
		return s.Props
	case CategoryState:
		return s.State
	default:
		return s.Context
	}
}

// Change is one input whose value differs between two renders.
type Change struct {
	Name     string
	Category Category
	Prev     any
	Next     any

	// Unstable marks a record or callable that was re-created with the same
	// shape: the identity changed but the content did not.
	Unstable bool
}

const defaultSignatureDepth = 2

// Classifier diffs snapshots. Signatures of reference values are cached by
// identity until Reset is called at the start of the next capture window.
type Classifier struct {
	maxDepth int
	cache    map[identity]string
	hits     int
	misses   int
}

// NewClassifier creates a classifier following pointer chains maxDepth levels deep.
// A maxDepth below 1 uses 2.
func NewClassifier(maxDepth int) *Classifier {
	if maxDepth < 1 {
		maxDepth = defaultSignatureDepth
	}
	return &Classifier{
		maxDepth: maxDepth,
		cache:    make(map[identity]string),
	}
}

// Classify returns the changed inputs between prev and next, grouped by
// category and sorted by name within each category.
func (c *Classifier) Classify(prev, next Snapshot) []Change {
	var changes []Change
	for _, cat := range []Category{CategoryProp, CategoryState, CategoryContext} {
		before, after := prev.category(cat), next.category(cat)

		names := make([]string, 0, len(after))
		for name := range after {
			names = append(names, name)
		}
		for name := range before {
			if _, ok := after[name]; !ok {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		for _, name := range names {
			p, n := before[name], after[name]
			if Same(p, n) {
				continue
			}
			changes = append(changes, Change{
				Name:     name,
				Category: cat,
				Prev:     p,
				Next:     n,
				Unstable: c.unstable(p, n),
			})
		}
	}
	return changes
}

// Signature returns the cheap structural summary of v.
func (c *Classifier) Signature(v any) string {
	return c.signature(v)
}

func (c *Classifier) unstable(prev, next any) bool {
	if !isStructural(prev) || !isStructural(next) {
		return false
	}
	return c.signature(prev) == c.signature(next)
}

// Reset drops the signature cache.
func (c *Classifier) Reset() {
	clear(c.cache)
	c.hits = 0
	c.misses = 0
}

// CacheStats returns signature cache hits and misses since the last Reset.
func (c *Classifier) CacheStats() (hits, misses int) {
	return c.hits, c.misses
}
