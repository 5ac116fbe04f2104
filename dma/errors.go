package dma

import "errors"

var (
	// ErrInvalidConfig reports a request or a call that can never succeed
	// as given. The returned error wraps it with the detail.
	ErrInvalidConfig = errors.New("invalid DMA configuration")

	// ErrChannelBusy reports that the channel has an active transfer.
	ErrChannelBusy = errors.New("DMA channel busy")

	// ErrTransfer reports that the hardware flagged a transfer error.
	ErrTransfer = errors.New("DMA transfer error")

	// ErrTimeout reports that a wait ran out of time before the transfer
	// reached a terminal state.
	ErrTimeout = errors.New("DMA wait timed out")

	// ErrIdle reports a wait on a channel that has no active transfer.
	ErrIdle = errors.New("DMA channel idle")
)
