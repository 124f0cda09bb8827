package core

import "time"

// LoopStats represents runtime observability state for a Loop.
type LoopStats struct {
	Name      string
	Immediate int
	Frame     int
	Timers    int
	Executed  int64
	Panics    int64
	Frames    int64
	Running   bool
	LastRunAt time.Time
}

// TrackerStats represents runtime observability state for an attribution tracker.
type TrackerStats struct {
	Name             string
	PendingTasks     int
	CapturesInFlight int
	Completed        int64
	Correlated       int64
	Fallback         int64
	Evicted          int64
	TimelineEvents   int
}
