package sim

import (
	"log"
	"reflect"
	"sync"
)

// A SerialEngine handles events one after another on the caller's goroutine.
// Besides Run, it can be advanced event by event with Step or up to a point
// in time with RunUntil, which is how lockstep boards let the hardware move
// only while the caller polls.
type SerialEngine struct {
	HookableBase

	timeLock       sync.RWMutex
	time           VTimeInSec
	queue          EventQueue
	secondaryQueue EventQueue

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		queue:          NewEventQueue(),
		secondaryQueue: NewEventQueue(),
	}
}

// Schedule registers an event to happen in the future.
func (e *SerialEngine) Schedule(evt Event) {
	now := e.readNow()
	if evt.Time() < now {
		log.Panicf(
			"scheduling %s at %.10f, earlier than now %.10f",
			reflect.TypeOf(evt), evt.Time(), now,
		)
	}

	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)
		return
	}

	e.queue.Push(evt)
}

func (e *SerialEngine) readNow() VTimeInSec {
	e.timeLock.RLock()
	defer e.timeLock.RUnlock()

	return e.time
}

func (e *SerialEngine) writeNow(t VTimeInSec) {
	e.timeLock.Lock()
	e.time = t
	e.timeLock.Unlock()
}

// Run handles all the scheduled events. It returns when no event is left.
func (e *SerialEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for !e.noMoreEvent() {
		e.handleNext()
	}

	return nil
}

// Step handles the earliest pending event. It returns false if there is
// nothing to handle.
func (e *SerialEngine) Step() bool {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	if e.noMoreEvent() {
		return false
	}

	e.handleNext()

	return true
}

// RunUntil handles every event scheduled at or before t and then moves the
// current time to t.
func (e *SerialEngine) RunUntil(t VTimeInSec) {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for !e.noMoreEvent() && e.earliestTime() <= t {
		e.handleNext()
	}

	if t > e.readNow() {
		e.writeNow(t)
	}
}

func (e *SerialEngine) handleNext() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	evt := e.nextEvent()
	now := e.readNow()

	if evt.Time() < now {
		log.Panicf(
			"cannot run event in the past, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), now,
		)
	}

	e.writeNow(evt.Time())

	ctx := HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(ctx)

	_ = evt.Handler().Handle(evt)

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)
}

func (e *SerialEngine) noMoreEvent() bool {
	return e.queue.Len() == 0 && e.secondaryQueue.Len() == 0
}

func (e *SerialEngine) earliestTime() VTimeInSec {
	switch {
	case e.queue.Len() == 0:
		return e.secondaryQueue.Peek().Time()
	case e.secondaryQueue.Len() == 0:
		return e.queue.Peek().Time()
	}

	primary := e.queue.Peek().Time()
	secondary := e.secondaryQueue.Peek().Time()

	if primary <= secondary {
		return primary
	}

	return secondary
}

func (e *SerialEngine) nextEvent() Event {
	return popNext(e.queue, e.secondaryQueue)
}

// popNext takes the earliest event out of the two queues. Primary events win
// ties.
func popNext(primary, secondary EventQueue) Event {
	if primary.Len() == 0 {
		return secondary.Pop()
	}

	if secondary.Len() == 0 {
		return primary.Pop()
	}

	if primary.Peek().Time() <= secondary.Peek().Time() {
		return primary.Pop()
	}

	return secondary.Pop()
}

// Pause prevents the SerialEngine from handling more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue lets a paused SerialEngine handle events again.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// CurrentTime returns the time of the event being handled, or of the last
// RunUntil target.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	return e.readNow()
}
