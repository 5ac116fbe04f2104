package board

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/dmac"
	"github.com/simplehal/simplehal/mem"
)

var _ = Describe("Board", func() {
	Context("in lockstep", func() {
		var b *Board

		BeforeEach(func() {
			var err error
			b, err = New(DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(b.Close()).To(Succeed())
		})

		It("should map the DMA registers onto the bus", func() {
			Expect(b.DMA.Configure(dma.Channel2, dma.TransferRequest{
				Direction:            dma.MemToMem,
				Source:               SRAMBase,
				Destination:          SRAMBase + 0x100,
				Count:                16,
				Width:                dma.Byte,
				SourceIncrement:      true,
				DestinationIncrement: true,
			})).To(Succeed())

			v, err := b.Bus.Read(mem.Word, DMABase+dmac.CNTR(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(16)))

			v, err = b.Bus.Read(mem.Word, DMABase+dmac.PADDR(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(SRAMBase))
		})

		It("should copy memory", func() {
			src := b.RAM.MustAlloc(128, 4)
			dst := b.RAM.MustAlloc(128, 4)
			for i := 0; i < 128; i++ {
				src.SetElem(mem.Byte, i, uint32(255-i))
			}

			Expect(b.DMA.MemCopy(dst.Addr(), src.Addr(), 128)).To(Succeed())
			Expect(dst.Bytes()).To(Equal(src.Bytes()))
		})

		It("should set memory", func() {
			dst := b.RAM.MustAlloc(40, 4)

			Expect(b.DMA.MemSet(dst.Addr(), 0xa5, 40)).To(Succeed())
			Expect(dst.Bytes()).To(Equal(bytes.Repeat([]byte{0xa5}, 40)))
		})

		It("should only move while stepped", func() {
			src := b.RAM.MustAlloc(8, 4)
			dst := b.RAM.MustAlloc(8, 4)
			src.Fill(0x11)

			Expect(b.DMA.MemCopyAsync(dma.Channel3, dst.Addr(), src.Addr(), 8)).
				To(Succeed())
			Expect(dst.Bytes()).To(HaveEach(byte(0)))

			Expect(b.Drain()).To(Succeed())
			Expect(dst.Bytes()).To(HaveEach(byte(0x11)))
			Expect(b.Now()).To(BeNumerically(">", 0))
		})

		It("should run for a while", func() {
			Expect(b.RunFor(1e-3)).To(Succeed())
			ok, err := b.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("should list its components", func() {
			names := []string{}
			for _, c := range b.Components() {
				names = append(names, c.Name())
			}

			Expect(names).To(ContainElements("DMA1HW", "ADC1", "USART1", "SPI1"))
		})
	})

	Context("free running", func() {
		var b *Board

		BeforeEach(func() {
			cfg := DefaultConfig()
			cfg.Mode = FreeRunning

			var err error
			b, err = New(cfg)
			Expect(err).NotTo(HaveOccurred())
			b.Start()
		})

		AfterEach(func() {
			Expect(b.Close()).To(Succeed())
		})

		It("should close more than once", func() {
			Expect(b.Close()).To(Succeed())

			closed := make(chan error, 1)
			go func() { closed <- b.Close() }()
			Eventually(closed).Should(Receive(BeNil()))
		})

		It("should refuse to be stepped", func() {
			_, err := b.Step()
			Expect(err).To(MatchError(ErrNotLockstep))
			Expect(b.RunFor(1)).To(MatchError(ErrNotLockstep))
			Expect(b.Drain()).To(MatchError(ErrNotLockstep))
		})

		It("should copy memory on its own", func() {
			src := b.RAM.MustAlloc(256, 4)
			dst := b.RAM.MustAlloc(256, 4)
			for i := 0; i < 256; i++ {
				src.SetElem(mem.Byte, i, uint32(i))
			}

			Expect(b.DMA.MemCopy(dst.Addr(), src.Addr(), 256)).To(Succeed())
			Expect(dst.Bytes()).To(Equal(src.Bytes()))
		})

		It("should deliver completion to a channel", func() {
			src := b.RAM.MustAlloc(64, 4)
			dst := b.RAM.MustAlloc(64, 4)
			src.Fill(0x42)

			Expect(b.DMA.MemCopyAsync(dma.Channel6, dst.Addr(), src.Addr(), 64)).
				To(Succeed())
			done := b.DMA.Done(dma.Channel6)

			Eventually(done).Should(Receive(Equal(dma.Complete)))
			Expect(dst.Bytes()).To(HaveEach(byte(0x42)))
		})
	})

	It("should refuse a bad configuration", func() {
		cfg := DefaultConfig()
		cfg.SRAMSize = 0

		_, err := New(cfg)
		Expect(err).To(HaveOccurred())
	})
})
