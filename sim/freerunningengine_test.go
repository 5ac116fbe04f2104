package sim

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type syncHandler struct {
	lock    sync.Mutex
	handled []VTimeInSec
}

func (h *syncHandler) Handle(e Event) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.handled = append(h.handled, e.Time())

	return nil
}

func (h *syncHandler) count() int {
	h.lock.Lock()
	defer h.lock.Unlock()

	return len(h.handled)
}

var _ = Describe("FreeRunningEngine", func() {
	var (
		engine  *FreeRunningEngine
		handler *syncHandler
		done    chan error
	)

	BeforeEach(func() {
		engine = NewFreeRunningEngine()
		handler = &syncHandler{}
		done = make(chan error)

		go func() {
			done <- engine.Run()
		}()
	})

	AfterEach(func() {
		engine.Stop()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("should handle events scheduled from another goroutine", func() {
		engine.Schedule(makeNamedEvent(1, handler, ""))
		engine.Schedule(makeNamedEvent(2, handler, ""))

		Eventually(handler.count).Should(Equal(2))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(2)))
	})

	It("should wait for more events when the queue drains", func() {
		engine.Schedule(makeNamedEvent(1, handler, ""))
		Eventually(handler.count).Should(Equal(1))

		Consistently(done, 20*time.Millisecond).ShouldNot(Receive())

		engine.Schedule(makeNamedEvent(3, handler, ""))
		Eventually(handler.count).Should(Equal(2))
	})

	It("should run past-due events at the current time", func() {
		engine.Schedule(makeNamedEvent(5, handler, ""))
		Eventually(handler.count).Should(Equal(1))

		engine.Schedule(makeNamedEvent(1, handler, ""))
		Eventually(handler.count).Should(Equal(2))

		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(5)))
	})
})
