package dma

import (
	"log"

	"github.com/simplehal/simplehal/sim"
	"github.com/simplehal/simplehal/tracing"
)

// TransferLogger is a hook that logs the lifecycle of every transfer of a
// Controller.
type TransferLogger struct {
	sim.LogHookBase

	timeTeller sim.TimeTeller
}

// NewTransferLogger creates a TransferLogger that writes into logger. If
// timeTeller is not nil, every line carries the simulated time.
func NewTransferLogger(logger *log.Logger, timeTeller sim.TimeTeller) *TransferLogger {
	h := &TransferLogger{timeTeller: timeTeller}
	h.Logger = logger

	return h
}

// Func logs a transfer event.
func (h *TransferLogger) Func(ctx sim.HookCtx) {
	task, ok := ctx.Item.(tracing.Task)
	if !ok {
		return
	}

	switch ctx.Pos {
	case tracing.HookPosTaskStart:
		detail, _ := task.Detail.(TransferInfo)
		r := detail.Request
		h.printf("%s start %s %s src=0x%08x dst=0x%08x count=%d %s %s",
			detail.Channel, task.ID, r.Direction, r.Source, r.Destination,
			r.Count, r.Width, r.Mode)
	case tracing.HookPosTaskStep:
		for _, step := range task.Steps {
			h.printf("task %s %s", task.ID, step.What)
		}
	case tracing.HookPosTaskEnd:
		h.printf("task %s end", task.ID)
	}
}

func (h *TransferLogger) printf(format string, args ...interface{}) {
	if h.timeTeller != nil {
		format = "%.10f, " + format
		args = append([]interface{}{h.timeTeller.CurrentTime()}, args...)
	}

	h.Printf(format, args...)
}
