package sim

import (
	"sync"
)

// TickEvent wakes a component up at a clock edge.
type TickEvent struct {
	EventBase
}

// MakeTickEvent creates a new TickEvent.
func MakeTickEvent(handler Handler, time VTimeInSec) TickEvent {
	evt := TickEvent{}
	evt.ID = GetIDGenerator().Generate()
	evt.handler = handler
	evt.time = time

	return evt
}

// A Ticker is an object that updates states with ticks. Tick returns true if
// the object made progress and wants to tick again in the next cycle.
type Ticker interface {
	Tick() bool
}

// TickScheduler schedules tick events without duplicates. A component that
// has gone to sleep can be woken up from any goroutine by calling TickLater.
type TickScheduler struct {
	lock    sync.Mutex
	handler Handler
	Freq    Freq
	Engine  Engine

	nextTickTime VTimeInSec
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(
	handler Handler,
	engine Engine,
	freq Freq,
) *TickScheduler {
	return &TickScheduler{
		handler:      handler,
		Engine:       engine,
		Freq:         freq,
		nextTickTime: -1,
	}
}

// TickNow schedules a tick at the current edge.
func (t *TickScheduler) TickNow() {
	t.schedule(t.Freq.ThisTick(t.CurrentTime()))
}

// TickLater schedules a tick at the edge after the current time.
func (t *TickScheduler) TickLater() {
	t.schedule(t.Freq.NextTick(t.CurrentTime()))
}

func (t *TickScheduler) schedule(time VTimeInSec) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.nextTickTime >= time {
		return
	}

	t.nextTickTime = time
	t.Engine.Schedule(MakeTickEvent(t.handler, time))
}

// CurrentTime returns the current time of the engine.
func (t *TickScheduler) CurrentTime() VTimeInSec {
	return t.Engine.CurrentTime()
}

// TickingComponent is a component that updates its state cycle by cycle. It
// keeps ticking while Tick reports progress and goes to sleep otherwise.
type TickingComponent struct {
	*ComponentBase
	*TickScheduler

	ticker Ticker
}

// Handle triggers the tick function of the TickingComponent.
func (c *TickingComponent) Handle(_ Event) error {
	madeProgress := c.ticker.Tick()
	if madeProgress {
		c.TickLater()
	}

	return nil
}

// NewTickingComponent creates a new ticking component.
func NewTickingComponent(
	name string,
	engine Engine,
	freq Freq,
	ticker Ticker,
) *TickingComponent {
	tc := new(TickingComponent)
	tc.TickScheduler = NewTickScheduler(tc, engine, freq)
	tc.ComponentBase = NewComponentBase(name)
	tc.ticker = ticker

	return tc
}
