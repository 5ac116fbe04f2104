package adapter

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/mem"
	"github.com/simplehal/simplehal/periph/adc"
)

var _ = Describe("ADCStream", func() {
	var (
		r   *rig
		buf *mem.Buffer
	)

	BeforeEach(func() {
		r = newRig()
		r.adc.SetSignal(adc.SignalFunc(perChannel))
		buf = r.ram.MustAlloc(200, 4)
	})

	It("should refuse a channel that does not serve the ADC", func() {
		_, err := SetupADC(r.c, r.adc, dma.Channel2, buf, 50, false)
		Expect(err).To(MatchError(dma.ErrInvalidConfig))
	})

	It("should refuse a buffer that is too small", func() {
		_, err := SetupADC(r.c, r.adc, dma.Channel1, buf, 101, false)
		Expect(err).To(MatchError(dma.ErrInvalidConfig))
	})

	It("should refuse an empty scan", func() {
		_, err := SetupADCMultiChannel(r.c, r.adc, dma.Channel1, buf, nil, 10)
		Expect(err).To(MatchError(dma.ErrInvalidConfig))
	})

	It("should fill the buffer once", func() {
		s, err := SetupADC(r.c, r.adc, dma.Channel1, buf, 50, false)
		Expect(err).NotTo(HaveOccurred())

		n, err := s.ReceivedCount()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())

		Expect(s.Start()).To(Succeed())
		Expect(s.Wait()).To(Succeed())
		_, err = s.Stop()
		Expect(err).NotTo(HaveOccurred())

		samples := s.Samples()
		Expect(samples).To(HaveLen(50))
		Expect(samples).To(HaveEach(uint16(1)))

		n, err = s.ReceivedCount()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint16(50)))
	})

	It("should report a buffer that filled before the first poll", func() {
		s, err := SetupADC(r.c, r.adc, dma.Channel1, buf, 50, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Start()).To(Succeed())
		Expect(s.Wait()).To(Succeed())

		spans, err := s.Poll()
		Expect(err).NotTo(HaveOccurred())
		Expect(spans).To(Equal([]dma.Span{{Start: 0, End: 50}}))
		Expect(s.Samples(spans...)).To(HaveLen(50))

		spans, err = s.Poll()
		Expect(err).NotTo(HaveOccurred())
		Expect(spans).To(BeEmpty())

		_, err = s.Stop()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should report the spans written between polls", func() {
		s, err := SetupADC(r.c, r.adc, dma.Channel1, buf, 40, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Start()).To(Succeed())

		seen := 0
		for seen < 100 {
			r.engine.Step()

			spans, err := s.Poll()
			Expect(err).NotTo(HaveOccurred())
			for _, span := range spans {
				seen += span.Len()
				Expect(s.Samples(span)).To(HaveEach(uint16(1)))
			}
		}

		_, err = s.Stop()
		Expect(err).NotTo(HaveOccurred())
		Expect(uint64(seen)).To(BeNumerically("<=", r.adc.Conversions()))
	})

	It("should interleave a scan of two inputs", func() {
		s, err := SetupADCMultiChannel(r.c, r.adc, dma.Channel1, buf, []int{0, 3}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Count()).To(Equal(uint16(20)))

		Expect(s.Start()).To(Succeed())
		r.stepUntil(func() bool { return r.adc.Conversions() >= 30 })
		_, err = s.Stop()
		Expect(err).NotTo(HaveOccurred())

		Expect(s.ChannelSamples(0)).To(HaveLen(10))
		Expect(s.ChannelSamples(0)).To(HaveEach(uint16(1)))
		Expect(s.ChannelSamples(1)).To(HaveEach(uint16(301)))
		Expect(s.ChannelSamples(2)).To(BeNil())
	})

	It("should start over after a stop", func() {
		s, err := SetupADC(r.c, r.adc, dma.Channel1, buf, 20, false)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Start()).To(Succeed())
		r.stepUntil(func() bool { return r.adc.Conversions() >= 5 })
		c, err := s.Stop()
		Expect(err).NotTo(HaveOccurred())
		Expect(c.WasBusy).To(BeTrue())

		Expect(s.Start()).To(Succeed())
		n, err := s.ReceivedCount()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())

		Expect(s.Wait()).To(Succeed())
		_, err = s.Stop()
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("AnalogReader", func() {
	var (
		r   *rig
		buf *mem.Buffer
		ar  *AnalogReader
	)

	BeforeEach(func() {
		r = newRig()
		r.adc.SetSignal(adc.SignalFunc(perChannel))
		buf = r.ram.MustAlloc(64, 4)
		ar = NewAnalogReader(r.c, r.adc)
	})

	DescribeTable("pin mapping",
		func(p Pin, want int) {
			ch, err := p.AnalogChannel()
			Expect(err).NotTo(HaveOccurred())
			Expect(ch).To(Equal(want))
		},
		Entry("PA2", PA2, 0),
		Entry("PA1", PA1, 1),
		Entry("PC4", PC4, 2),
		Entry("PD2", PD2, 3),
		Entry("PD3", PD3, 4),
		Entry("PD5", PD5, 5),
		Entry("PD6", PD6, 6),
		Entry("PD4", PD4, 7),
	)

	It("should name pins", func() {
		Expect(PC4.String()).To(Equal("PC4"))
		Expect(PA1.String()).To(Equal("PA1"))
	})

	It("should parse pin names", func() {
		p, err := ParsePin("pd6")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(PD6))

		_, err = ParsePin("PX1")
		Expect(err).To(MatchError(dma.ErrInvalidConfig))
		_, err = ParsePin("A1")
		Expect(err).To(MatchError(dma.ErrInvalidConfig))
	})

	It("should refuse a pin without an analog input", func() {
		err := ar.Start(Pin(0x27), buf, 16, false)
		Expect(err).To(MatchError(dma.ErrInvalidConfig))
		Expect(ar.Busy()).To(BeFalse())
	})

	It("should have nothing to average before a start", func() {
		_, err := ar.Average()
		Expect(err).To(MatchError(dma.ErrIdle))
		Expect(ar.Stop()).To(Succeed())
	})

	It("should average a pin", func() {
		Expect(ar.Start(PC4, buf, 16, false)).To(Succeed())
		Expect(ar.Busy()).To(BeTrue())
		Expect(ar.Pin()).To(Equal(PC4))

		Expect(ar.Stream().Wait()).To(Succeed())
		Expect(ar.Busy()).To(BeFalse())
		Expect(ar.Stop()).To(Succeed())

		avg, err := ar.Average()
		Expect(err).NotTo(HaveOccurred())
		Expect(avg).To(Equal(uint16(201)))
	})

	It("should keep sampling until stopped", func() {
		Expect(ar.Start(PD4, buf, 8, true)).To(Succeed())
		r.stepUntil(func() bool { return r.adc.Conversions() >= 20 })
		Expect(ar.Busy()).To(BeTrue())

		Expect(ar.Start(PA2, buf, 8, true)).To(MatchError(dma.ErrChannelBusy))

		Expect(ar.Stop()).To(Succeed())
		Expect(ar.Busy()).To(BeFalse())

		avg, err := ar.Average()
		Expect(err).NotTo(HaveOccurred())
		Expect(avg).To(Equal(uint16(701)))
	})
})
