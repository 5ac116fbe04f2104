package sim

import (
	"sync"
	"time"
)

// A FreeRunningEngine handles events on its own goroutine and, unlike the
// SerialEngine, does not return when the queue drains. It sleeps until some
// other goroutine schedules a new event. This is what makes the simulated
// hardware an autonomous actor: the caller's goroutine can keep working while
// transfers proceed.
//
// Events scheduled from other goroutines may carry a time that is already in
// the past by the time they are picked up. Such events run at the current
// time; time never goes backwards.
type FreeRunningEngine struct {
	HookableBase

	lock           sync.Mutex
	wakeup         *sync.Cond
	now            VTimeInSec
	queue          EventQueue
	secondaryQueue EventQueue
	stopped        bool

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	timeScale   float64
	anchorWall  time.Time
	anchorVTime VTimeInSec
}

// NewFreeRunningEngine creates a FreeRunningEngine that runs as fast as it
// can.
func NewFreeRunningEngine() *FreeRunningEngine {
	e := &FreeRunningEngine{
		queue:          NewEventQueue(),
		secondaryQueue: NewEventQueue(),
	}
	e.wakeup = sync.NewCond(&e.lock)

	return e
}

// WithTimeScale paces the engine so that simulated time advances at most
// scale simulated seconds per wall-clock second. A scale of 0 disables
// pacing.
func (e *FreeRunningEngine) WithTimeScale(scale float64) *FreeRunningEngine {
	e.timeScale = scale
	return e
}

// Schedule registers an event and wakes the engine up if it is idle.
func (e *FreeRunningEngine) Schedule(evt Event) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)
	} else {
		e.queue.Push(evt)
	}

	e.wakeup.Signal()
}

// CurrentTime returns the time of the most recently started event.
func (e *FreeRunningEngine) CurrentTime() VTimeInSec {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.now
}

// Run handles events until Stop is called.
func (e *FreeRunningEngine) Run() error {
	e.lock.Lock()
	e.anchor()

	for {
		idled := false
		for e.noMoreEvent() && !e.stopped {
			idled = true
			e.wakeup.Wait()
		}

		if e.stopped {
			e.lock.Unlock()
			return nil
		}

		if idled {
			e.anchor()
		}

		evt := popNext(e.queue, e.secondaryQueue)
		if evt.Time() > e.now {
			e.now = evt.Time()
		}
		now := e.now
		e.lock.Unlock()

		e.pace(now)
		e.handle(evt)

		e.lock.Lock()
	}
}

// Stop makes Run return after the event being handled, if any.
func (e *FreeRunningEngine) Stop() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.stopped = true
	e.wakeup.Broadcast()
}

func (e *FreeRunningEngine) handle(evt Event) {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

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

func (e *FreeRunningEngine) noMoreEvent() bool {
	return e.queue.Len() == 0 && e.secondaryQueue.Len() == 0
}

// anchor must be called with the lock held.
func (e *FreeRunningEngine) anchor() {
	e.anchorWall = time.Now()
	e.anchorVTime = e.now
}

func (e *FreeRunningEngine) pace(now VTimeInSec) {
	if e.timeScale <= 0 {
		return
	}

	elapsed := float64(now-e.anchorVTime) / e.timeScale
	due := e.anchorWall.Add(time.Duration(elapsed * float64(time.Second)))

	ahead := time.Until(due)
	if ahead > time.Millisecond {
		time.Sleep(ahead)
	}
}

// Pause holds the engine before the next event.
func (e *FreeRunningEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue releases a paused engine.
func (e *FreeRunningEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}
