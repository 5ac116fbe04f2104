package adapter

import (
	"errors"
	"fmt"
	"time"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/mem"
)

// SerialTx sends byte blocks from a staging buffer to a serial port.
type SerialTx struct {
	ctrl *dma.Controller
	port Port
	ch   dma.ChannelID
	buf  *mem.Buffer
}

// SetupSerialTx binds ch to the transmit side of port. Data to send is
// staged in buf, so no transfer can be longer than the buffer.
func SetupSerialTx(
	ctrl *dma.Controller,
	port Port,
	ch dma.ChannelID,
	buf *mem.Buffer,
) (*SerialTx, error) {
	if err := channelMustServe(ch, dma.RequestUSART1TX); err != nil {
		return nil, err
	}

	if err := bufferMustHold(buf, 1); err != nil {
		return nil, err
	}

	port.EnableTxDMA(true)

	return &SerialTx{ctrl: ctrl, port: port, ch: ch, buf: buf}, nil
}

// Transmit waits for the previous block to finish, then starts sending data.
// It returns as soon as the new block is under way.
func (t *SerialTx) Transmit(data []byte) error {
	if len(data) == 0 || len(data) > t.buf.Len() || len(data) > 0xffff {
		return fmt.Errorf("%w: cannot send %d bytes from a %d byte buffer",
			dma.ErrInvalidConfig, len(data), t.buf.Len())
	}

	if err := t.waitIdle(); err != nil {
		return err
	}

	if _, err := t.buf.WriteAt(data, 0); err != nil {
		return err
	}

	req := dma.TransferRequest{
		Direction:       dma.MemToPeriph,
		Source:          t.buf.Addr(),
		Destination:     t.port.DataAddr(),
		Count:           uint16(len(data)),
		Width:           dma.Byte,
		SourceIncrement: true,
		Priority:        dma.Medium,
	}

	if err := t.ctrl.Configure(t.ch, req); err != nil {
		return err
	}

	return t.ctrl.Start(t.ch)
}

// waitIdle blocks while a block is in flight. The outcome of the previous
// block does not keep the next one from being sent.
func (t *SerialTx) waitIdle() error {
	st, err := t.ctrl.GetStatus(t.ch)
	if err != nil {
		return err
	}

	if st != dma.Busy {
		return nil
	}

	_, err = t.ctrl.WaitComplete(t.ch, 0)
	if err != nil && !errors.Is(err, dma.ErrTransfer) && !errors.Is(err, dma.ErrIdle) {
		return err
	}

	return nil
}

// Wait blocks until the block in flight has been handed to the port.
func (t *SerialTx) Wait(timeout time.Duration) error {
	_, err := t.ctrl.WaitComplete(t.ch, timeout)
	return err
}

// SerialRx receives bytes from a serial port into a buffer.
type SerialRx struct {
	ctrl    *dma.Controller
	port    Port
	ch      dma.ChannelID
	buf     *mem.Buffer
	req     dma.TransferRequest
	ring    *dma.Ring
	pending []dma.Span
}

// SetupSerialRx binds ch to the receive side of port. The whole of buf is
// used. A circular receiver keeps overwriting the buffer.
func SetupSerialRx(
	ctrl *dma.Controller,
	port Port,
	ch dma.ChannelID,
	buf *mem.Buffer,
	circular bool,
) (*SerialRx, error) {
	if err := channelMustServe(ch, dma.RequestUSART1RX); err != nil {
		return nil, err
	}

	if err := bufferMustHold(buf, 1); err != nil {
		return nil, err
	}

	n := buf.Len()
	if n > 0xffff {
		n = 0xffff
	}

	r := &SerialRx{
		ctrl: ctrl,
		port: port,
		ch:   ch,
		buf:  buf,
		req: dma.TransferRequest{
			Direction:            dma.PeriphToMem,
			Source:               port.DataAddr(),
			Destination:          buf.Addr(),
			Count:                uint16(n),
			Width:                dma.Byte,
			DestinationIncrement: true,
			Priority:             dma.Medium,
		},
	}

	if circular {
		r.req.Mode = dma.Circular
	}

	if err := ctrl.Configure(ch, r.req); err != nil {
		return nil, err
	}

	r.ring = dma.NewRing(ctrl, ch, r.req.Count)
	port.EnableRxDMA(true)

	return r, nil
}

// Start begins receiving at the start of the buffer.
func (r *SerialRx) Start() error {
	if err := r.ctrl.Configure(r.ch, r.req); err != nil {
		return err
	}

	if err := r.ctrl.Start(r.ch); err != nil {
		return err
	}

	r.ring.Rewind()
	r.pending = nil

	return nil
}

// ReceivedCount returns how many bytes have landed since the start or, for a
// circular receiver, since the last wrap.
func (r *SerialRx) ReceivedCount() (uint16, error) {
	remaining, err := r.ctrl.RemainingCount(r.ch)
	if err != nil {
		return 0, err
	}

	if remaining > r.req.Count {
		remaining = r.req.Count
	}

	return r.req.Count - remaining, nil
}

// Read copies bytes received since the previous Read into p. It never
// blocks and returns 0 when nothing new has arrived.
func (r *SerialRx) Read(p []byte) (int, error) {
	spans, err := r.ring.Poll()
	if err != nil {
		return 0, err
	}

	r.pending = append(r.pending, spans...)

	n := 0
	for len(r.pending) > 0 && n < len(p) {
		span := &r.pending[0]

		k := span.Len()
		if k > len(p)-n {
			k = len(p) - n
		}

		if _, err := r.buf.ReadAt(p[n:n+k], int64(span.Start)); err != nil {
			return n, err
		}

		n += k
		span.Start += uint16(k)

		if span.Len() == 0 {
			r.pending = r.pending[1:]
		}
	}

	return n, nil
}

// Wait blocks until a normal receiver has filled its buffer.
func (r *SerialRx) Wait(timeout time.Duration) error {
	_, err := r.ctrl.WaitComplete(r.ch, timeout)
	return err
}

// Stop stops receiving. Bytes that already landed can still be read.
func (r *SerialRx) Stop() (dma.Cancellation, error) {
	return r.ctrl.Stop(r.ch)
}
