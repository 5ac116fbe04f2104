package adapter

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/mem"
	"github.com/simplehal/simplehal/periph/spi"
)

var _ = Describe("SerialTx", func() {
	var (
		r   *rig
		buf *mem.Buffer
	)

	BeforeEach(func() {
		r = newRig()
		buf = r.ram.MustAlloc(32, 4)
	})

	It("should refuse a channel that does not serve the port", func() {
		_, err := SetupSerialTx(r.c, r.usart, dma.Channel5, buf)
		Expect(err).To(MatchError(dma.ErrInvalidConfig))
	})

	It("should refuse a block larger than the buffer", func() {
		tx, err := SetupSerialTx(r.c, r.usart, dma.Channel4, buf)
		Expect(err).NotTo(HaveOccurred())

		Expect(tx.Transmit(make([]byte, 33))).To(MatchError(dma.ErrInvalidConfig))
		Expect(tx.Transmit(nil)).To(MatchError(dma.ErrInvalidConfig))
	})

	It("should send blocks back to back", func() {
		tx, err := SetupSerialTx(r.c, r.usart, dma.Channel4, buf)
		Expect(err).NotTo(HaveOccurred())

		Expect(tx.Transmit([]byte("hello"))).To(Succeed())
		Expect(tx.Transmit([]byte(", world"))).To(Succeed())
		Expect(tx.Wait(0)).To(Succeed())
		r.drain()

		Expect(string(r.usart.Sent())).To(Equal("hello, world"))
	})
})

var _ = Describe("SerialRx", func() {
	var (
		r   *rig
		buf *mem.Buffer
	)

	BeforeEach(func() {
		r = newRig()
		buf = r.ram.MustAlloc(8, 4)
	})

	It("should refuse a channel that does not serve the port", func() {
		_, err := SetupSerialRx(r.c, r.usart, dma.Channel4, buf, false)
		Expect(err).To(MatchError(dma.ErrInvalidConfig))
	})

	It("should fill the buffer", func() {
		rx, err := SetupSerialRx(r.c, r.usart, dma.Channel5, buf, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(rx.Start()).To(Succeed())

		r.usart.Inject([]byte("abcdefgh"))
		Expect(rx.Wait(0)).To(Succeed())

		n, err := rx.ReceivedCount()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint16(8)))
		Expect(string(buf.Bytes())).To(Equal("abcdefgh"))
	})

	It("should read a buffer that filled before the first read", func() {
		rx, err := SetupSerialRx(r.c, r.usart, dma.Channel5, buf, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(rx.Start()).To(Succeed())

		r.usart.Inject([]byte("abcdefgh"))
		Expect(rx.Wait(0)).To(Succeed())

		p := make([]byte, 16)
		n, err := rx.Read(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(p[:n])).To(Equal("abcdefgh"))

		n, err = rx.Read(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
	})

	It("should read the tail of a buffer that filled between reads", func() {
		rx, err := SetupSerialRx(r.c, r.usart, dma.Channel5, buf, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(rx.Start()).To(Succeed())

		r.usart.Inject([]byte("abc"))
		r.drain()

		p := make([]byte, 16)
		n, err := rx.Read(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(p[:n])).To(Equal("abc"))

		r.usart.Inject([]byte("defgh"))
		Expect(rx.Wait(0)).To(Succeed())

		n, err = rx.Read(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(p[:n])).To(Equal("defgh"))
	})

	It("should read again after a restart", func() {
		rx, err := SetupSerialRx(r.c, r.usart, dma.Channel5, buf, false)
		Expect(err).NotTo(HaveOccurred())

		p := make([]byte, 16)
		for _, msg := range []string{"abcdefgh", "ABCDEFGH"} {
			Expect(rx.Start()).To(Succeed())
			r.usart.Inject([]byte(msg))
			Expect(rx.Wait(0)).To(Succeed())

			n, err := rx.Read(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(p[:n])).To(Equal(msg))
		}
	})

	It("should read across a wrap of the buffer", func() {
		rx, err := SetupSerialRx(r.c, r.usart, dma.Channel5, buf, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(rx.Start()).To(Succeed())

		r.usart.Inject([]byte("01234"))
		r.drain()

		p := make([]byte, 16)
		n, err := rx.Read(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(p[:n])).To(Equal("01234"))

		r.usart.Inject([]byte("56789"))
		r.drain()

		n, err = rx.Read(p[:3])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(p[:n])).To(Equal("567"))

		n, err = rx.Read(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(p[:n])).To(Equal("89"))

		n, err = rx.Read(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())

		c, err := rx.Stop()
		Expect(err).NotTo(HaveOccurred())
		Expect(c.WasBusy).To(BeTrue())
	})

	It("should echo what it sends in loopback", func() {
		txBuf := r.ram.MustAlloc(8, 4)
		r.usart.SetLoopback(true)

		rx, err := SetupSerialRx(r.c, r.usart, dma.Channel5, buf, false)
		Expect(err).NotTo(HaveOccurred())
		tx, err := SetupSerialTx(r.c, r.usart, dma.Channel4, txBuf)
		Expect(err).NotTo(HaveOccurred())

		Expect(rx.Start()).To(Succeed())
		Expect(tx.Transmit([]byte("loopback"))).To(Succeed())
		Expect(rx.Wait(0)).To(Succeed())

		Expect(string(buf.Bytes())).To(Equal("loopback"))
		Expect(r.usart.Overruns()).To(BeZero())
	})
})

var _ = Describe("Duplex", func() {
	var (
		r            *rig
		txBuf, rxBuf *mem.Buffer
	)

	BeforeEach(func() {
		r = newRig()
		txBuf = r.ram.MustAlloc(64, 4)
		rxBuf = r.ram.MustAlloc(64, 4)
	})

	It("should refuse swapped channels", func() {
		_, err := SetupDuplex(r.c, r.spi, dma.Channel2, dma.Channel3, txBuf, rxBuf)
		Expect(err).To(MatchError(dma.ErrInvalidConfig))
	})

	It("should refuse a receive buffer smaller than the transmit one", func() {
		_, err := SetupDuplex(r.c, r.spi, dma.Channel3, dma.Channel2,
			txBuf, r.ram.MustAlloc(16, 4))
		Expect(err).To(MatchError(dma.ErrInvalidConfig))
	})

	It("should exchange with a loopback slave", func() {
		d, err := SetupDuplex(r.c, r.spi, dma.Channel3, dma.Channel2, txBuf, rxBuf)
		Expect(err).NotTo(HaveOccurred())

		tx := make([]byte, 64)
		for i := range tx {
			tx[i] = byte(3*i + 1)
		}
		rx := make([]byte, 64)

		Expect(d.Exchange(tx, rx)).To(Succeed())
		Expect(rx).To(Equal(tx))
		Expect(r.spi.Overruns()).To(BeZero())
	})

	It("should see what the slave answers", func() {
		r.spi.SetSlave(func(mosi byte) byte { return ^mosi })

		d, err := SetupDuplex(r.c, r.spi, dma.Channel3, dma.Channel2, txBuf, rxBuf)
		Expect(err).NotTo(HaveOccurred())

		rx := make([]byte, 4)
		Expect(d.Exchange([]byte{0x00, 0x0f, 0xf0, 0xff}, rx)).To(Succeed())
		Expect(rx).To(Equal([]byte{0xff, 0xf0, 0x0f, 0x00}))
	})

	It("should release both channels when the port does not clock", func() {
		d, err := SetupDuplex(r.c, r.spi, dma.Channel3, dma.Channel2, txBuf, rxBuf)
		Expect(err).NotTo(HaveOccurred())
		d.Timeout = 20 * time.Millisecond

		r.spi.Store(spi.CTLR1, 0)

		rx := make([]byte, 4)
		Expect(d.Exchange([]byte{1, 2, 3, 4}, rx)).To(MatchError(dma.ErrTimeout))

		for _, ch := range []dma.ChannelID{dma.Channel3, dma.Channel2} {
			st, err := r.c.GetStatus(ch)
			Expect(err).NotTo(HaveOccurred())
			Expect(st).To(Equal(dma.Idle))
		}

		r.spi.Enable()
		Expect(d.Exchange([]byte{5, 6, 7, 8}, rx)).To(Succeed())
		Expect(rx).To(Equal([]byte{5, 6, 7, 8}))
	})

	It("should not touch the buffers while a channel is busy", func() {
		d, err := SetupDuplex(r.c, r.spi, dma.Channel3, dma.Channel2, txBuf, rxBuf)
		Expect(err).NotTo(HaveOccurred())

		r.spi.Store(spi.CTLR1, 0)
		_, err = txBuf.WriteAt([]byte("busy"), 0)
		Expect(err).NotTo(HaveOccurred())

		Expect(r.c.Configure(dma.Channel3, dma.TransferRequest{
			Direction:       dma.MemToPeriph,
			Source:          txBuf.Addr(),
			Destination:     r.spi.DataAddr(),
			Count:           4,
			Width:           dma.Byte,
			SourceIncrement: true,
		})).To(Succeed())
		Expect(r.c.Start(dma.Channel3)).To(Succeed())

		err = d.Exchange([]byte("next"), make([]byte, 4))
		Expect(err).To(MatchError(dma.ErrChannelBusy))

		staged := make([]byte, 4)
		_, err = txBuf.ReadAt(staged, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(staged)).To(Equal("busy"))

		st, _ := r.c.GetStatus(dma.Channel3)
		Expect(st).To(Equal(dma.Busy))
	})

	It("should refuse slices of different lengths", func() {
		d, err := SetupDuplex(r.c, r.spi, dma.Channel3, dma.Channel2, txBuf, rxBuf)
		Expect(err).NotTo(HaveOccurred())

		Expect(d.Exchange(make([]byte, 4), make([]byte, 3))).
			To(MatchError(dma.ErrInvalidConfig))
	})
})
