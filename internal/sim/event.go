package sim

import (
	"container/heap"

	"llhd/internal/types"
)

// EventKind distinguishes the two things the scheduler queues.
type EventKind int

const (
	// EventDrive applies a drive to a signal at its scheduled time.
	EventDrive EventKind = iota
	// EventResume wakes a suspended process instance.
	EventResume
)

// Event is one scheduled action at a (wall, delta, epsilon) instant.
type Event struct {
	Time     types.TimeValue
	Kind     EventKind
	Signal   SignalId    // EventDrive
	Value    types.Const // EventDrive
	Instance InstanceId  // EventDrive: originating instance, for conflict tie-break; EventResume: target instance

	seq uint64 // queue-assigned; breaks the final tie by scheduling order
}

type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if c := h[i].Time.Compare(h[j].Time); c != 0 {
		return c < 0
	}
	if h[i].Signal != h[j].Signal {
		return h[i].Signal < h[j].Signal
	}
	if h[i].Instance != h[j].Instance {
		return h[i].Instance < h[j].Instance
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)        { *h = append(*h, x.(*Event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// EventQueue is the simulator's pending-event priority queue. Events are
// ordered first by time, then — within the same instant — by canonical
// (signal id, instance id) order, which is what makes drive-conflict
// resolution ("last wins in canonical order") deterministic regardless
// of the order passes or instances scheduled the conflicting drives
// (spec.md §9).
type EventQueue struct {
	h   eventHeap
	seq uint64
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{}
	heap.Init(&q.h)
	return q
}

// Push schedules e. Two events identical in (time, signal, instance) —
// one process driving the same signal twice with the same delay — pop
// in the order they were pushed, so the program-later drive wins.
func (q *EventQueue) Push(e *Event) {
	q.seq++
	e.seq = q.seq
	heap.Push(&q.h, e)
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int { return q.h.Len() }

// PopInstant pops every event at the earliest pending time, in
// canonical order, and returns that time alongside the batch.
func (q *EventQueue) PopInstant() (types.TimeValue, []*Event) {
	if q.h.Len() == 0 {
		return types.ZeroTime(), nil
	}
	t := q.h[0].Time
	var batch []*Event
	for q.h.Len() > 0 && q.h[0].Time.Compare(t) == 0 {
		batch = append(batch, heap.Pop(&q.h).(*Event))
	}
	return t, batch
}
