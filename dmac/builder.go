package dmac

import (
	"github.com/simplehal/simplehal/mem"
	"github.com/simplehal/simplehal/sim"
)

// InterruptRaiser receives the interrupt requests of the controller.
type InterruptRaiser interface {
	SetPending(line int)
}

// Builder can build DMA controllers.
type Builder struct {
	engine  sim.Engine
	freq    sim.Freq
	bus     *mem.Bus
	irq     InterruptRaiser
	irqBase int
}

// MakeBuilder returns a Builder with the defaults of a CH32V003.
func MakeBuilder() Builder {
	return Builder{
		freq:    48 * sim.MHz,
		irqBase: 22,
	}
}

// WithEngine sets the engine that drives the controller.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the bus clock of the controller.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithBus sets the bus that the controller masters.
func (b Builder) WithBus(bus *mem.Bus) Builder {
	b.bus = bus
	return b
}

// WithInterruptController sets where interrupts are raised. Channel n raises
// line base+n-1.
func (b Builder) WithInterruptController(irq InterruptRaiser, base int) Builder {
	b.irq = irq
	b.irqBase = base
	return b
}

// Build creates a controller with the given name.
func (b Builder) Build(name string) *Controller {
	if b.engine == nil {
		panic("engine is not set")
	}

	if b.bus == nil {
		panic("bus is not set")
	}

	c := &Controller{
		bus: b.bus,
		irq: b.irq,
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	for i := range c.lines {
		c.lines[i] = b.irqBase + i
	}

	return c
}
