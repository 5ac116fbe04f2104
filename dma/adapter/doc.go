// Package adapter wires DMA channels to the peripherals whose request lines
// they serve. Every adapter programs its channel with the settings the
// peripheral needs, turns on the DMA request bit of the peripheral, and
// checks that the channel is the one hard-wired to that request.
package adapter

import (
	"fmt"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/mem"
)

// A Port is the data register side of a serial peripheral.
type Port interface {
	DataAddr() uint32
	EnableTxDMA(on bool)
	EnableRxDMA(on bool)
}

func channelMustServe(ch dma.ChannelID, r dma.PeripheralRequest) error {
	if !ch.Valid() {
		return fmt.Errorf("%w: channel %d does not exist", dma.ErrInvalidConfig, ch)
	}

	if ch.Request() != r {
		want, _ := dma.RequestChannel(r)
		return fmt.Errorf("%w: %s serves %s, not %s; use %s",
			dma.ErrInvalidConfig, ch, ch.Request(), r, want)
	}

	return nil
}

func bufferMustHold(buf *mem.Buffer, n int) error {
	if buf == nil || buf.Len() < n {
		return fmt.Errorf("%w: buffer cannot hold %d bytes", dma.ErrInvalidConfig, n)
	}

	return nil
}
