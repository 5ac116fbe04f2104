package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SerialEngine", func() {
	var (
		engine  *SerialEngine
		handler *orderHandler
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		handler = &orderHandler{}
	})

	It("should handle events in time order", func() {
		rec := &recordingHandler{}
		rec.onEvent = func(e Event) {
			if e.Time() == 2 {
				engine.Schedule(makeNamedEvent(3, rec, ""))
				engine.Schedule(makeNamedEvent(5, rec, ""))
			}
		}

		engine.Schedule(makeNamedEvent(4, rec, ""))
		engine.Schedule(makeNamedEvent(2, rec, ""))

		Expect(engine.Run()).To(Succeed())
		Expect(rec.handled).To(Equal([]VTimeInSec{2, 3, 4, 5}))
	})

	It("should run secondary events after primary events", func() {
		secondary := makeNamedEvent(2, handler, "secondary")
		secondary.secondary = true

		engine.Schedule(secondary)
		engine.Schedule(makeNamedEvent(2, handler, "primary1"))
		engine.Schedule(makeNamedEvent(2, handler, "primary2"))

		Expect(engine.Run()).To(Succeed())
		Expect(handler.order).To(Equal(
			[]string{"primary1", "primary2", "secondary"}))
	})

	It("should step one event at a time", func() {
		engine.Schedule(makeNamedEvent(1, handler, "a"))
		engine.Schedule(makeNamedEvent(2, handler, "b"))

		Expect(engine.Step()).To(BeTrue())
		Expect(handler.order).To(Equal([]string{"a"}))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(1)))

		Expect(engine.Step()).To(BeTrue())
		Expect(engine.Step()).To(BeFalse())
		Expect(handler.order).To(Equal([]string{"a", "b"}))
	})

	It("should run until a given time", func() {
		engine.Schedule(makeNamedEvent(1, handler, "a"))
		engine.Schedule(makeNamedEvent(2, handler, "b"))
		engine.Schedule(makeNamedEvent(3, handler, "c"))

		engine.RunUntil(2.5)

		Expect(handler.order).To(Equal([]string{"a", "b"}))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(2.5)))
	})

	It("should panic when scheduling into the past", func() {
		engine.RunUntil(5)

		Expect(func() {
			engine.Schedule(makeNamedEvent(1, handler, "late"))
		}).To(Panic())
	})

	It("should invoke hooks around each event", func() {
		hook := &countingHook{}
		engine.AcceptHook(hook)
		engine.Schedule(makeNamedEvent(1, handler, "a"))

		Expect(engine.Run()).To(Succeed())
		Expect(hook.before).To(Equal(1))
		Expect(hook.after).To(Equal(1))
		Expect(engine.NumHooks()).To(Equal(1))
	})
})

type countingHook struct {
	before, after int
}

func (h *countingHook) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosBeforeEvent:
		h.before++
	case HookPosAfterEvent:
		h.after++
	}
}
