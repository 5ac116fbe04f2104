package dma

import (
	"fmt"

	"github.com/simplehal/simplehal/dmac"
)

// Direction tells which sides of a transfer are memory and which are a
// peripheral.
type Direction uint8

// Transfer directions.
const (
	MemToMem Direction = iota
	PeriphToMem
	MemToPeriph
)

func (d Direction) String() string {
	switch d {
	case MemToMem:
		return "mem-to-mem"
	case PeriphToMem:
		return "periph-to-mem"
	case MemToPeriph:
		return "mem-to-periph"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Width is the size of one element.
type Width uint8

// Element widths.
const (
	Byte     Width = 1
	HalfWord Width = 2
	Word     Width = 4
)

func (w Width) String() string {
	switch w {
	case Byte:
		return "byte"
	case HalfWord:
		return "half-word"
	case Word:
		return "word"
	default:
		return fmt.Sprintf("width(%d)", uint8(w))
	}
}

func (w Width) code() uint32 {
	switch w {
	case HalfWord:
		return dmac.Size16
	case Word:
		return dmac.Size32
	default:
		return dmac.Size8
	}
}

// Mode tells if a transfer stops after Count elements or wraps around.
type Mode uint8

// Transfer modes.
const (
	Normal Mode = iota
	Circular
)

func (m Mode) String() string {
	if m == Circular {
		return "circular"
	}

	return "normal"
}

// Priority is the arbitration level of a channel.
type Priority uint8

// Priority levels.
const (
	Low Priority = iota
	Medium
	High
	VeryHigh
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case VeryHigh:
		return "very-high"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// A TransferRequest describes one transfer. Source and Destination are bus
// addresses; for a peripheral side that is the address of its data
// register. The memory behind a request must stay valid until the transfer
// reaches a terminal state.
type TransferRequest struct {
	Direction            Direction
	Source               uint32
	Destination          uint32
	Count                uint16
	Width                Width
	SourceIncrement      bool
	DestinationIncrement bool
	Mode                 Mode
	Priority             Priority
}

// Validate checks the request without touching the hardware.
func (r TransferRequest) Validate() error {
	if r.Direction > MemToPeriph {
		return fmt.Errorf("%w: unknown direction %d", ErrInvalidConfig, r.Direction)
	}

	if r.Width != Byte && r.Width != HalfWord && r.Width != Word {
		return fmt.Errorf("%w: unknown width %d", ErrInvalidConfig, r.Width)
	}

	if r.Mode > Circular {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, r.Mode)
	}

	if r.Priority > VeryHigh {
		return fmt.Errorf("%w: unknown priority %d", ErrInvalidConfig, r.Priority)
	}

	if r.Count == 0 {
		return fmt.Errorf("%w: count must be at least 1", ErrInvalidConfig)
	}

	if r.Direction == MemToMem && r.Mode == Circular {
		return fmt.Errorf(
			"%w: memory to memory transfers cannot be circular",
			ErrInvalidConfig)
	}

	align := uint32(r.Width)
	if r.Source%align != 0 {
		return fmt.Errorf("%w: source 0x%08x is not %s aligned",
			ErrInvalidConfig, r.Source, r.Width)
	}

	if r.Destination%align != 0 {
		return fmt.Errorf("%w: destination 0x%08x is not %s aligned",
			ErrInvalidConfig, r.Destination, r.Width)
	}

	return nil
}

// registers returns the register values that program the request, with EN
// and the interrupt enable bits clear.
func (r TransferRequest) registers() (cfgr, paddr, maddr uint32) {
	cfgr = r.Width.code()<<dmac.CfgPSizeShift |
		r.Width.code()<<dmac.CfgMSizeShift |
		uint32(r.Priority)<<dmac.CfgPLShift

	if r.Mode == Circular {
		cfgr |= dmac.CfgCIRC
	}

	periphInc, memInc := r.SourceIncrement, r.DestinationIncrement

	switch r.Direction {
	case MemToPeriph:
		cfgr |= dmac.CfgDIR
		paddr, maddr = r.Destination, r.Source
		periphInc, memInc = r.DestinationIncrement, r.SourceIncrement
	case MemToMem:
		cfgr |= dmac.CfgMEM2MEM
		paddr, maddr = r.Source, r.Destination
	default:
		paddr, maddr = r.Source, r.Destination
	}

	if periphInc {
		cfgr |= dmac.CfgPINC
	}

	if memInc {
		cfgr |= dmac.CfgMINC
	}

	return cfgr, paddr, maddr
}
