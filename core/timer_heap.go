package core

import (
	"container/heap"
	"time"
)

// TimerTask represents a task scheduled for the future
type TimerTask struct {
	DueAt    time.Duration // Loop mark at which the task becomes runnable
	Task     Task
	sequence uint64 // FIFO among equal due times
	index    int    // for heap interface
}

// timerHeap implements heap.Interface
type timerHeap []*TimerTask

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].DueAt != h[j].DueAt {
		return h[i].DueAt < h[j].DueAt
	}
	return h[i].sequence < h[j].sequence
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	n := len(*h)
	item := x.(*TimerTask)
	item.index = n
	*h = append(*h, item)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *timerHeap) Peek() *TimerTask {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// TimerQueue orders timer tasks by due mark. The owning Loop serializes access.
type TimerQueue struct {
	pq           timerHeap
	nextSequence uint64
}

func NewTimerQueue() *TimerQueue {
	q := &TimerQueue{pq: make(timerHeap, 0)}
	heap.Init(&q.pq)
	return q
}

func (q *TimerQueue) Add(task Task, dueAt time.Duration) *TimerTask {
	item := &TimerTask{
		DueAt:    dueAt,
		Task:     task,
		sequence: q.nextSequence,
	}
	q.nextSequence++
	heap.Push(&q.pq, item)
	return item
}

// PopDue removes the earliest task whose due mark is not after now.
func (q *TimerQueue) PopDue(now time.Duration) (*TimerTask, bool) {
	item := q.pq.Peek()
	if item == nil || item.DueAt > now {
		return nil, false
	}
	heap.Pop(&q.pq)
	return item, true
}

// NextDue returns the due mark of the earliest task.
func (q *TimerQueue) NextDue() (time.Duration, bool) {
	item := q.pq.Peek()
	if item == nil {
		return 0, false
	}
	return item.DueAt, true
}

func (q *TimerQueue) Len() int {
	return len(q.pq)
}

func (q *TimerQueue) Clear() {
	q.pq = make(timerHeap, 0)
	heap.Init(&q.pq)
}
