package ledger

import (
	"reflect"
	"testing"
	"time"
)

func change(name string, unstable bool) Change {
	return Change{Name: name, Category: CategoryProp, Unstable: unstable}
}

// TestLedger_MergeOrderIndependent verifies repeated renders aggregate the same
// way regardless of interleaving
// Given: Renders [A, B, A] in one ledger and [A, A] then [B] in another
// When: Both ledgers are inspected
// Then: The aggregate entry for A is identical
func TestLedger_MergeOrderIndependent(t *testing.T) {
	a1 := func(l *Ledger) {
		l.Record("A", Timing{SelfTime: 2 * time.Millisecond, TotalTime: 5 * time.Millisecond}, []Change{change("onClick", true)})
	}
	a2 := func(l *Ledger) {
		l.Record("A", Timing{SelfTime: 3 * time.Millisecond, TotalTime: 4 * time.Millisecond}, []Change{change("count", false), change("onClick", false)})
	}
	b := func(l *Ledger) {
		l.Record("B", Timing{SelfTime: time.Millisecond, TotalTime: time.Millisecond}, nil)
	}

	interleaved := New()
	a1(interleaved)
	b(interleaved)
	a2(interleaved)

	grouped := New()
	a1(grouped)
	a2(grouped)
	b(grouped)

	gotA, _ := interleaved.Entry("A")
	wantA, _ := grouped.Entry("A")
	if !reflect.DeepEqual(gotA, wantA) {
		t.Fatalf("entry A differs:\n interleaved %+v\n grouped     %+v", gotA, wantA)
	}

	if gotA.RenderCount != 2 {
		t.Errorf("RenderCount = %d, want 2", gotA.RenderCount)
	}
	if gotA.SelfTime != 5*time.Millisecond || gotA.TotalTime != 9*time.Millisecond {
		t.Errorf("times = %v/%v, want 5ms/9ms", gotA.SelfTime, gotA.TotalTime)
	}
	if got := gotA.Changes[CategoryProp]["onClick"]; got != (ChangeCount{Count: 2, Unstable: 1}) {
		t.Errorf("onClick = %+v, want {2 1}", got)
	}
	if got := gotA.Changes[CategoryProp]["count"]; got.Count != 1 {
		t.Errorf("count changes = %d, want 1", got.Count)
	}
	// The first A render only had an unstable change.
	if gotA.Unnecessary != 1 {
		t.Errorf("Unnecessary = %d, want 1", gotA.Unnecessary)
	}
}

func TestLedger_SnapshotOrderAndIsolation(t *testing.T) {
	l := New()
	l.Record("Header", Timing{SelfTime: time.Millisecond}, []Change{change("title", false)})
	l.Record("List", Timing{SelfTime: 4 * time.Millisecond}, nil)
	l.Record("Header", Timing{SelfTime: time.Millisecond}, nil)

	snap := l.Snapshot()
	if len(snap) != 2 || snap[0].ComponentName != "Header" || snap[1].ComponentName != "List" {
		t.Fatalf("snapshot order = %+v, want Header, List", snap)
	}

	// Mutating the snapshot must not reach the ledger.
	snap[0].Changes[CategoryProp]["title"] = ChangeCount{Count: 99}
	entry, _ := l.Entry("Header")
	if entry.Changes[CategoryProp]["title"].Count != 1 {
		t.Error("snapshot shares change maps with the ledger")
	}

	if l.TotalTime() != 6*time.Millisecond {
		t.Errorf("TotalTime() = %v, want 6ms", l.TotalTime())
	}
}

func TestLedger_RecordEventUncommitted(t *testing.T) {
	l := New()
	l.RecordEvent(RenderEvent{ComponentName: "Row", Changes: []Change{change("id", false)}, DidCommit: false})
	l.RecordEvent(RenderEvent{ComponentName: "Row", Changes: []Change{change("id", false)}, DidCommit: true})

	entry, ok := l.Entry("Row")
	if !ok {
		t.Fatal("Row not recorded")
	}
	if entry.RenderCount != 2 || entry.Unnecessary != 1 {
		t.Errorf("RenderCount/Unnecessary = %d/%d, want 2/1", entry.RenderCount, entry.Unnecessary)
	}
}
