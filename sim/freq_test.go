package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Freq", func() {
	It("should get period", func() {
		f := 1 * GHz
		Expect(f.Period()).To(BeNumerically("==", 1e-9))
	})

	It("should get this tick", func() {
		f := 1 * Hz
		Expect(f.ThisTick(1)).To(BeNumerically("~", 1, 1e-12))
	})

	It("should get the next tick", func() {
		f := 1 * GHz
		Expect(f.NextTick(102.000000001)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should get the next tick at time 0", func() {
		f := 48 * MHz
		Expect(f.NextTick(0)).To(BeNumerically("~", 1.0/48e6, 1e-15))
	})

	It("should get the next tick, if now is not on a tick", func() {
		f := 1 * GHz
		Expect(f.NextTick(102.0000000011)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should get the n cycles later", func() {
		f := 1 * GHz
		Expect(f.NCyclesLater(12, 102.000000001)).
			To(BeNumerically("~", 102.000000013, 1e-12))
	})

	It("should get the no-earlier-than time, off tick", func() {
		f := 1 * GHz
		Expect(f.NoEarlierThan(102.0000000011)).
			To(BeNumerically("~", 102.000000002, 1e-12))
	})

	It("should count cycles", func() {
		f := 48 * MHz
		Expect(f.Cycle(f.NCyclesLater(96, 0))).To(Equal(uint64(96)))
	})

	It("should divide by a prescaler", func() {
		f := 48 * MHz
		Expect(f.Divide(8)).To(Equal(6 * MHz))
		Expect(func() { f.Divide(0) }).To(Panic())
	})
})
