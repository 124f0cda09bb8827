package core

import (
	"reflect"
	"testing"
)

// TestRing_EvictsOldest verifies the capacity bound
// Given: A ring of capacity 3
// When: 4 items are pushed
// Then: The first item is evicted and the rest keep their order
func TestRing_EvictsOldest(t *testing.T) {
	// Arrange
	r := NewRing[int](3)

	// Act
	for i := 1; i <= 3; i++ {
		if _, ok := r.Push(i); ok {
			t.Fatalf("Push(%d) evicted before the ring was full", i)
		}
	}
	evicted, ok := r.Push(4)

	// Assert
	if !ok || evicted != 1 {
		t.Errorf("Push(4) = %d, %v, want 1, true", evicted, ok)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	if !reflect.DeepEqual(r.All(), []int{2, 3, 4}) {
		t.Errorf("All() = %v, want [2 3 4]", r.All())
	}
	if r.At(0) != 2 || r.At(2) != 4 {
		t.Errorf("At(0), At(2) = %d, %d, want 2, 4", r.At(0), r.At(2))
	}
}

func TestRing_DefaultCapacity(t *testing.T) {
	r := NewRing[string](0)
	if r.Cap() != 100 {
		t.Errorf("Cap() = %d, want 100", r.Cap())
	}
}

// TestRing_RemoveFuncKeepsOrder verifies removal across the wrap point
func TestRing_RemoveFuncKeepsOrder(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 6; i++ {
		r.Push(i) // holds 3 4 5 6, head wrapped
	}

	removed := r.RemoveFunc(func(v int) bool { return v%2 == 0 })

	if removed != 2 {
		t.Errorf("RemoveFunc() = %d, want 2", removed)
	}
	if !reflect.DeepEqual(r.All(), []int{3, 5}) {
		t.Fatalf("All() = %v, want [3 5]", r.All())
	}

	r.Push(7)
	r.Push(8)
	r.Push(9)
	if !reflect.DeepEqual(r.All(), []int{5, 7, 8, 9}) {
		t.Errorf("All() after refill = %v, want [5 7 8 9]", r.All())
	}
}

func TestRing_EachStopsEarly(t *testing.T) {
	r := NewRing[int](5)
	for i := range 5 {
		r.Push(i)
	}

	var seen []int
	r.Each(func(v int) bool {
		seen = append(seen, v)
		return v < 2
	})

	if !reflect.DeepEqual(seen, []int{0, 1, 2}) {
		t.Errorf("Each visited %v, want [0 1 2]", seen)
	}
}

func TestRing_Clear(t *testing.T) {
	r := NewRing[*int](2)
	v := 1
	r.Push(&v)
	r.Clear()

	if r.Len() != 0 || r.All() != nil {
		t.Errorf("ring not empty after Clear: %v", r.All())
	}
	if r.items[0] != nil {
		t.Error("Clear kept a reference")
	}
}
