package sim

// VTimeInSec is a point on the simulated time line, in seconds.
type VTimeInSec float64

// An Event is something that happens to a Handler at a given time.
type Event interface {
	// Time returns when the event happens.
	Time() VTimeInSec

	// Handler returns who handles the event.
	Handler() Handler

	// IsSecondary tells if the event runs after all the primary events of
	// the same time.
	IsSecondary() bool
}

// EventBase carries the fields every event needs.
type EventBase struct {
	ID        string
	time      VTimeInSec
	handler   Handler
	secondary bool
}

// NewEventBase creates a new EventBase.
func NewEventBase(t VTimeInSec, handler Handler) *EventBase {
	return &EventBase{
		ID:      GetIDGenerator().Generate(),
		time:    t,
		handler: handler,
	}
}

// Time returns when the event happens.
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler of the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true if the event is a secondary event.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

// A Handler owns a set of events. A handler may only schedule events for
// itself, except when the whole system is being kicked off.
type Handler interface {
	Handle(e Event) error
}
