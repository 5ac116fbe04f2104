// Package dma is the DMA transfer engine of the hardware abstraction layer.
//
// A Controller owns the seven hardware channels. A transfer is described by
// a TransferRequest, programmed with Configure and launched with Start. The
// hardware then moves the data on its own and reports the outcome through
// flags, which the Controller turns into a Status. Callers can poll with
// GetStatus or WaitComplete, register callbacks that run in interrupt
// context, or receive the outcome from the channel returned by Done.
//
// Circular transfers never finish. They are consumed through Cursor, or with
// a Ring that hands out the spans written since the previous poll.
//
// The Controller reaches the hardware only through the Registers and
// InterruptController interfaces.
package dma
