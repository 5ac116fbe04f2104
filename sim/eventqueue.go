package sim

import (
	"container/heap"
	"sync"
)

// EventQueue keeps events ordered by time.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Len() int
	Peek() Event
}

// EventQueueImpl is a thread-safe, heap-based EventQueue.
type EventQueueImpl struct {
	sync.Mutex
	events eventHeap
	seq    uint64
}

// NewEventQueue creates an empty EventQueueImpl.
func NewEventQueue() *EventQueueImpl {
	q := &EventQueueImpl{events: make(eventHeap, 0)}
	heap.Init(&q.events)

	return q
}

// Push adds an event.
func (q *EventQueueImpl) Push(evt Event) {
	q.Lock()
	defer q.Unlock()

	q.seq++
	heap.Push(&q.events, queuedEvent{evt: evt, seq: q.seq})
}

// Pop removes and returns the earliest event.
func (q *EventQueueImpl) Pop() Event {
	q.Lock()
	defer q.Unlock()

	return heap.Pop(&q.events).(queuedEvent).evt
}

// Len returns the number of queued events.
func (q *EventQueueImpl) Len() int {
	q.Lock()
	defer q.Unlock()

	return q.events.Len()
}

// Peek returns the earliest event without removing it.
func (q *EventQueueImpl) Peek() Event {
	q.Lock()
	defer q.Unlock()

	return q.events[0].evt
}

// queuedEvent remembers the insertion order so that same-time events are
// handled first-in first-out.
type queuedEvent struct {
	evt Event
	seq uint64
}

type eventHeap []queuedEvent

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	ti, tj := h[i].evt.Time(), h[j].evt.Time()
	if ti != tj {
		return ti < tj
	}

	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(queuedEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]

	return item
}
