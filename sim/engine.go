package sim

// TimeTeller tells the current simulated time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler accepts events to be handled in the future.
type EventScheduler interface {
	Schedule(e Event)
}

// An Engine drives the simulated hardware by handling events in time order.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run handles events until the engine has nothing more to do. A
	// free-running engine returns only after it is stopped.
	Run() error

	// Pause holds the engine before the next event.
	Pause()

	// Continue releases a paused engine.
	Continue()
}

// HookPosBeforeEvent is the hook position right before an event is handled.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is the hook position right after an event is handled.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}
