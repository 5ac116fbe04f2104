package sim

import (
	"log"
	"reflect"
)

// LogHookBase provides the logger shared by logging hooks.
type LogHookBase struct {
	*log.Logger
}

// EventLogger is a hook that prints every event before it is handled.
type EventLogger struct {
	LogHookBase
}

// NewEventLogger returns a new EventLogger which writes into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger

	return h
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	comp, ok := evt.Handler().(Named)
	if ok {
		h.Printf("%.10f, %s -> %s",
			evt.Time(), reflect.TypeOf(evt), comp.Name())
	} else {
		h.Printf("%.10f, %s", evt.Time(), reflect.TypeOf(evt))
	}
}
