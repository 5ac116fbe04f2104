package dma

import (
	"runtime"
	"time"

	"github.com/simplehal/simplehal/mem"
)

// Builder can build Controllers.
type Builder struct {
	regs  Registers
	irq   InterruptController
	now   func() time.Time
	yield func()
	fill  *mem.Buffer
}

// MakeBuilder returns a Builder that waits on the wall clock and yields the
// processor between polls.
func MakeBuilder() Builder {
	return Builder{
		now:   time.Now,
		yield: runtime.Gosched,
	}
}

// WithRegisters sets the register window of the hardware.
func (b Builder) WithRegisters(regs Registers) Builder {
	b.regs = regs
	return b
}

// WithInterruptController sets the interrupt controller.
func (b Builder) WithInterruptController(ic InterruptController) Builder {
	b.irq = ic
	return b
}

// WithClock sets the time source used by timeouts.
func (b Builder) WithClock(now func() time.Time) Builder {
	b.now = now
	return b
}

// WithYield sets what a waiter does between two polls. On a board that
// advances only when asked to, this is where the hardware gets to run.
func (b Builder) WithYield(yield func()) Builder {
	b.yield = yield
	return b
}

// WithFillSlots gives the controller a buffer of at least one byte per
// channel, used as the source of MemSet.
func (b Builder) WithFillSlots(buf *mem.Buffer) Builder {
	b.fill = buf
	return b
}

// Build creates the Controller and installs its interrupt handlers. The
// interrupt lines stay masked until somebody waits for an interrupt.
func (b Builder) Build(name string) *Controller {
	if b.regs == nil {
		panic("registers are not set")
	}

	if b.irq == nil {
		panic("interrupt controller is not set")
	}

	if b.fill != nil && b.fill.Len() < NumChannels {
		panic("fill slot buffer is too small")
	}

	c := &Controller{
		name:  name,
		regs:  b.regs,
		irq:   b.irq,
		now:   b.now,
		yield: b.yield,
		fill:  b.fill,
	}

	for _, ch := range Channels() {
		b.irq.SetHandler(ch.IRQLine(), c.handleInterrupt)
	}

	return c
}
