package adapter

import (
	"fmt"
	"time"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/mem"
)

// Duplex runs full-duplex exchanges over a port that clocks one byte in for
// every byte out.
type Duplex struct {
	ctrl         *dma.Controller
	port         Port
	txCh, rxCh   dma.ChannelID
	txBuf, rxBuf *mem.Buffer

	// Timeout bounds each wait of an exchange. Zero waits forever.
	Timeout time.Duration
}

// SetupDuplex binds txCh and rxCh to the two sides of port.
func SetupDuplex(
	ctrl *dma.Controller,
	port Port,
	txCh, rxCh dma.ChannelID,
	txBuf, rxBuf *mem.Buffer,
) (*Duplex, error) {
	if err := channelMustServe(txCh, dma.RequestSPI1TX); err != nil {
		return nil, err
	}

	if err := channelMustServe(rxCh, dma.RequestSPI1RX); err != nil {
		return nil, err
	}

	if err := bufferMustHold(txBuf, 1); err != nil {
		return nil, err
	}

	if err := bufferMustHold(rxBuf, txBuf.Len()); err != nil {
		return nil, err
	}

	port.EnableRxDMA(true)
	port.EnableTxDMA(true)

	return &Duplex{
		ctrl:  ctrl,
		port:  port,
		txCh:  txCh,
		rxCh:  rxCh,
		txBuf: txBuf,
		rxBuf: rxBuf,
	}, nil
}

// Exchange sends tx and fills rx with the bytes clocked in at the same
// time. Both slices must have the same length. The receive side is armed
// before the first byte goes out. A failed exchange leaves both channels
// stopped, and an exchange is refused while either channel is busy.
func (d *Duplex) Exchange(tx, rx []byte) error {
	if len(tx) == 0 || len(tx) != len(rx) || len(tx) > d.txBuf.Len() || len(tx) > 0xffff {
		return fmt.Errorf("%w: cannot exchange %d bytes for %d",
			dma.ErrInvalidConfig, len(tx), len(rx))
	}

	if err := d.mustBeIdle(); err != nil {
		return err
	}

	if _, err := d.txBuf.WriteAt(tx, 0); err != nil {
		return err
	}

	n := uint16(len(tx))

	rxReq := dma.TransferRequest{
		Direction:            dma.PeriphToMem,
		Source:               d.port.DataAddr(),
		Destination:          d.rxBuf.Addr(),
		Count:                n,
		Width:                dma.Byte,
		DestinationIncrement: true,
		Priority:             dma.High,
	}

	txReq := dma.TransferRequest{
		Direction:       dma.MemToPeriph,
		Source:          d.txBuf.Addr(),
		Destination:     d.port.DataAddr(),
		Count:           n,
		Width:           dma.Byte,
		SourceIncrement: true,
		Priority:        dma.High,
	}

	if err := d.ctrl.Configure(d.rxCh, rxReq); err != nil {
		return err
	}

	if err := d.ctrl.Configure(d.txCh, txReq); err != nil {
		return err
	}

	if err := d.ctrl.Start(d.rxCh); err != nil {
		return err
	}

	if err := d.ctrl.Start(d.txCh); err != nil {
		d.stop()
		return err
	}

	if _, err := d.ctrl.WaitComplete(d.txCh, d.Timeout); err != nil {
		d.stop()
		return err
	}

	if _, err := d.ctrl.WaitComplete(d.rxCh, d.Timeout); err != nil {
		d.stop()
		return err
	}

	_, err := d.rxBuf.ReadAt(rx, 0)

	return err
}

// mustBeIdle refuses to touch the buffers while either side still owns them.
func (d *Duplex) mustBeIdle() error {
	for _, ch := range []dma.ChannelID{d.txCh, d.rxCh} {
		st, err := d.ctrl.GetStatus(ch)
		if err != nil {
			return err
		}

		if st == dma.Busy {
			return fmt.Errorf("%w: %s", dma.ErrChannelBusy, ch)
		}
	}

	return nil
}

// stop releases both channels after a failed exchange.
func (d *Duplex) stop() {
	_, _ = d.ctrl.Stop(d.txCh)
	_, _ = d.ctrl.Stop(d.rxCh)
}
