// Package renderscan attributes user-perceived interaction latency to the
// component renders that caused it.
//
// A Tracker watches pointer and keyboard interactions. For each one it opens a
// capture on the start event, follows it through the end of synchronous
// handling, the next frame and the first task after that frame, and records
// every component render reported in between. The finished capture waits in a
// bounded pool for the platform's event-timing entry; the entry's duration
// wins when one arrives, otherwise the internal start-to-commit measurement is
// used after a correlation timeout. Exactly one CompletionRecord is produced
// per interaction.
//
// # Quick Start
//
// Drive the tracker's loop from the host's event loop, or let it run on its
// own goroutine:
//
//	tracker := renderscan.New(renderscan.DefaultConfig())
//	defer tracker.Close()
//
//	tracker.SubscribeCompletions(func(rec renderscan.CompletionRecord) {
//		fmt.Println(rec.Stage.ComponentName, rec.Latency)
//	})
//
//	go tracker.Loop().Run(ctx)
//
//	// Deliver one platform task worth of input events.
//	tracker.Do(func() {
//		tracker.Dispatch(
//			renderscan.InputEvent{Type: renderscan.EventPointerUp, Target: target},
//			renderscan.InputEvent{Type: renderscan.EventClick, Target: target},
//		)
//	})
//
// # Key Concepts
//
// Loop: a single logical thread with immediate, frame and timer phases. All
// capture state is confined to it, so nothing in the pipeline takes locks.
// Tests drive it deterministically with RunUntilIdle and a mock clock.
//
// Stage: the capture lifecycle, Uninitialized → Start → JsEnd → Frame →
// Timeout. Each machine holds exactly one stage and replaces it at every
// boundary; a wrong stage at a boundary is reported through OnError and the
// machine recovers to Uninitialized.
//
// Pool: finished captures waiting for their timing entry. Entries are matched
// to the pending task of the same kind whose start is nearest.
//
// Timeline: the bounded observability log. Merged drops long-render windows
// that overlap an interaction window.
package renderscan
