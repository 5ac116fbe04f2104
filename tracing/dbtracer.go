package tracing

import (
	"sync"

	"github.com/simplehal/simplehal/sim"
	"github.com/tebeka/atexit"
)

// TraceWriter can write tasks into a storage.
type TraceWriter interface {
	Init() error
	Write(task Task)
	Flush() error
}

// DBTracer is a tracer that can store tasks into a database. DBTracers can
// connect with different backends so that the tasks can be stored in
// different types of databases.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller sim.TimeTeller
	backend    TraceWriter

	startTime, endTime sim.VTimeInSec

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer. The tracer terminates itself when the
// program exits through atexit.
func NewDBTracer(
	timeTeller sim.TimeTeller,
	backend TraceWriter,
) *DBTracer {
	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      backend,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() { _ = t.Terminate() })

	return t
}

// Init initializes the backend.
func (t *DBTracer) Init() error {
	return t.backend.Init()
}

// SetTimeRange limits the tracer to the tasks that overlap the given window.
// A zero bound means no limit.
func (t *DBTracer) SetTimeRange(startTime, endTime sim.VTimeInSec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	task.StartTime = t.timeTeller.CurrentTime()
	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

// StepTask records a step of a task.
func (t *DBTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	now := t.timeTeller.CurrentTime()
	for _, step := range task.Steps {
		step.Time = now
		originalTask.Steps = append(originalTask.Steps, step)
	}

	t.tracingTasks[task.ID] = originalTask
}

// EndTask marks the end of a task and hands it to the backend.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	originalTask.EndTime = t.timeTeller.CurrentTime()
	if t.startTime > 0 && originalTask.EndTime < t.startTime {
		return
	}

	t.backend.Write(originalTask)
}

// NumInflightTasks returns the number of tasks that have not ended.
func (t *DBTracer) NumInflightTasks() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.tracingTasks)
}

// Terminate writes the unfinished tasks, ending them now, and flushes the
// backend.
func (t *DBTracer) Terminate() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.timeTeller.CurrentTime()
	for _, task := range t.tracingTasks {
		task.EndTime = now
		t.backend.Write(task)
	}

	t.tracingTasks = make(map[string]Task)

	return t.backend.Flush()
}
