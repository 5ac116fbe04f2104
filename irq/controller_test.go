package irq

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Controller", func() {
	var (
		c     *Controller
		calls []int
	)

	record := func(line int) {
		calls = append(calls, line)
	}

	BeforeEach(func() {
		c = NewController("PFIC")
		calls = nil
	})

	It("should not call the handler of a masked line", func() {
		c.SetHandler(22, record)
		c.SetPending(22)

		Expect(calls).To(BeEmpty())
		Expect(c.IsPending(22)).To(BeTrue())
	})

	It("should service a pending line once it is enabled", func() {
		c.SetHandler(22, record)
		c.SetPending(22)
		c.Enable(22)

		Expect(calls).To(Equal([]int{22}))
		Expect(c.IsPending(22)).To(BeFalse())
		Expect(c.Dispatched(22)).To(Equal(uint64(1)))
	})

	It("should drop a cleared interrupt", func() {
		c.SetHandler(22, record)
		c.SetPending(22)
		c.ClearPending(22)
		c.Enable(22)

		Expect(calls).To(BeEmpty())
	})

	It("should not nest handlers", func() {
		c.SetHandler(23, func(line int) {
			calls = append(calls, line)
			c.SetPending(22)
			calls = append(calls, -line)
		})
		c.SetHandler(22, record)
		c.Enable(22)
		c.Enable(23)

		c.SetPending(23)

		Expect(calls).To(Equal([]int{23, -23, 22}))
	})

	It("should service the lowest line first", func() {
		c.SetHandler(22, record)
		c.SetHandler(25, record)
		c.SetHandler(24, record)
		c.SetPending(25)
		c.SetPending(22)
		c.SetPending(24)

		c.Enable(25)
		Expect(calls).To(Equal([]int{25}))

		c.Disable(25)
		c.Enable(22)
		c.Enable(24)
		Expect(calls).To(Equal([]int{25, 22, 24}))
	})

	It("should panic on an invalid line", func() {
		Expect(func() { c.Enable(NumLines) }).To(Panic())
	})
})
