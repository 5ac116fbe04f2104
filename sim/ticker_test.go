package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ticking Component", func() {
	var (
		engine *SerialEngine
		ticker *countingTicker
		tc     *TickingComponent
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		ticker = &countingTicker{}
		tc = NewTickingComponent("TC", engine, 1*Hz, ticker)
	})

	It("should keep ticking while progress is made", func() {
		ticker.remaining = 3
		tc.TickLater()

		Expect(engine.Run()).To(Succeed())

		Expect(ticker.ticks).To(Equal(4))
		Expect(engine.CurrentTime()).To(BeNumerically("~", 4, 1e-9))
	})

	It("should not schedule a tick twice", func() {
		tc.TickLater()
		tc.TickLater()
		tc.TickNow()

		Expect(engine.Run()).To(Succeed())

		Expect(ticker.ticks).To(Equal(1))
	})

	It("should tick now at the current edge", func() {
		tc.TickNow()

		Expect(engine.Step()).To(BeTrue())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(0)))
		Expect(ticker.ticks).To(Equal(1))
	})

	It("should wake up after going to sleep", func() {
		tc.TickLater()
		Expect(engine.Run()).To(Succeed())
		Expect(ticker.ticks).To(Equal(1))

		tc.TickLater()
		Expect(engine.Run()).To(Succeed())
		Expect(ticker.ticks).To(Equal(2))
		Expect(engine.CurrentTime()).To(BeNumerically("~", 2, 1e-9))
	})
})
