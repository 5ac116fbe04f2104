package tracing

import (
	"sync"

	"github.com/simplehal/simplehal/sim"
)

// BusyTimeTracer measures how long at least one traced task is in flight.
// Overlapping tasks count once, and a busy period is only added when the
// last of its tasks ends. It can be fed from several goroutines.
type BusyTimeTracer struct {
	lock       sync.Mutex
	timeTeller sim.TimeTeller
	filter     TaskFilter
	inflight   map[string]struct{}
	busySince  sim.VTimeInSec
	busyTime   sim.VTimeInSec
}

// NewBusyTimeTracer creates a tracer that only looks at the tasks accepted
// by filter. A nil filter accepts every task.
func NewBusyTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *BusyTimeTracer {
	return &BusyTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]struct{}),
	}
}

// BusyTime returns the length of the busy periods that have ended.
func (t *BusyTimeTracer) BusyTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busyTime
}

// NumInflightTasks returns the number of tasks that have started but not
// ended.
func (t *BusyTimeTracer) NumInflightTasks() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflight)
}

// StartTask opens a busy period if nothing else is in flight.
func (t *BusyTimeTracer) StartTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.timeTeller.CurrentTime()
	if len(t.inflight) == 0 {
		t.busySince = now
	}

	t.inflight[task.ID] = struct{}{}
}

// StepTask does nothing.
func (t *BusyTimeTracer) StepTask(_ Task) {}

// EndTask closes the busy period when the last task in flight ends.
func (t *BusyTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.inflight[task.ID]; !ok {
		return
	}

	now := t.timeTeller.CurrentTime()
	delete(t.inflight, task.ID)

	if len(t.inflight) == 0 {
		t.busyTime += now - t.busySince
	}
}
