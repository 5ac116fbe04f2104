package tracing

import (
	"fmt"
	"reflect"

	"github.com/simplehal/simplehal/sim"
)

// CollectTrace let the tracer to collect trace from a domain
func CollectTrace(domain NamedHookable, tracer Tracer) {
	hooks := domain.Hooks()
	for _, hook := range hooks {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	h := traceHook{t: tracer}
	domain.AcceptHook(&h)
}

// A traceHook is a hook that traces tasks
type traceHook struct {
	t Tracer
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx sim.HookCtx) {
	task, ok := ctx.Item.(Task)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosTaskStart:
		h.t.StartTask(task)
	case HookPosTaskStep:
		h.t.StepTask(task)
	case HookPosTaskEnd:
		h.t.EndTask(task)
	}
}
