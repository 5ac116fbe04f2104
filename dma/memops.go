package dma

import (
	"fmt"

	"github.com/simplehal/simplehal/mem"
)

// MemCopyChannel is the channel used by MemCopy and MemSet.
const MemCopyChannel = Channel1

func memCopyRequest(dst, src uint32, n uint16) TransferRequest {
	return TransferRequest{
		Direction:            MemToMem,
		Source:               src,
		Destination:          dst,
		Count:                n,
		Width:                Byte,
		SourceIncrement:      true,
		DestinationIncrement: true,
		Mode:                 Normal,
		Priority:             High,
	}
}

// MemCopy copies n bytes from src to dst on MemCopyChannel and waits for
// the copy to finish.
func (c *Controller) MemCopy(dst, src uint32, n uint16) error {
	if err := c.MemCopyAsync(MemCopyChannel, dst, src, n); err != nil {
		return err
	}

	_, err := c.WaitComplete(MemCopyChannel, 0)

	return err
}

// MemCopyAsync starts copying n bytes from src to dst on a channel and
// returns right away.
func (c *Controller) MemCopyAsync(ch ChannelID, dst, src uint32, n uint16) error {
	if err := c.Configure(ch, memCopyRequest(dst, src, n)); err != nil {
		return err
	}

	return c.Start(ch)
}

// MemSet sets n bytes at dst to value on MemCopyChannel and waits for it to
// finish.
func (c *Controller) MemSet(dst uint32, value byte, n uint16) error {
	if err := c.MemSetAsync(MemCopyChannel, dst, value, n); err != nil {
		return err
	}

	_, err := c.WaitComplete(MemCopyChannel, 0)

	return err
}

// MemSetAsync starts setting n bytes at dst to value on a channel. The
// value is read from the fill slot of the channel, so each channel can run
// its own fill.
func (c *Controller) MemSetAsync(ch ChannelID, dst uint32, value byte, n uint16) error {
	if err := mustBeValid(ch); err != nil {
		return err
	}

	if c.fill == nil {
		return fmt.Errorf("%w: no fill slots for memset", ErrInvalidConfig)
	}

	st, err := c.GetStatus(ch)
	if err != nil {
		return err
	}

	if st == Busy {
		return ErrChannelBusy
	}

	slot := int(ch) - 1
	c.fill.SetElem(mem.Byte, slot, uint32(value))

	req := memCopyRequest(dst, c.fill.AddrOf(mem.Byte, slot), n)
	req.SourceIncrement = false

	if err := c.Configure(ch, req); err != nil {
		return err
	}

	return c.Start(ch)
}
