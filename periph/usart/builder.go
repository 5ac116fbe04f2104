package usart

import (
	"github.com/simplehal/simplehal/periph"
	"github.com/simplehal/simplehal/sim"
)

// Builder can build USARTs.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
	baud   int
	dma    periph.RequestNotifier
	base   uint32
}

// MakeBuilder returns a Builder for a 115200 baud USART on a 48 MHz bus.
func MakeBuilder() Builder {
	return Builder{
		freq: 48 * sim.MHz,
		baud: 115200,
		base: 0x40013800,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the bus clock.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithBaudRate sets the line rate.
func (b Builder) WithBaudRate(baud int) Builder {
	b.baud = baud
	return b
}

// WithDMA sets who is woken up when a DMA request is raised.
func (b Builder) WithDMA(n periph.RequestNotifier) Builder {
	b.dma = n
	return b
}

// WithBase sets the bus address of the registers.
func (b Builder) WithBase(base uint32) Builder {
	b.base = base
	return b
}

// Build creates the USART. A frame is ten bits long.
func (b Builder) Build(name string) *USART {
	if b.engine == nil {
		panic("engine is not set")
	}

	if b.baud <= 0 {
		panic("invalid baud rate")
	}

	u := &USART{
		dma:   b.dma,
		base:  b.base,
		statr: StatTXE | StatTC,
		brr:   uint32(float64(b.freq) / float64(b.baud)),
	}

	frameRate := sim.Freq(b.baud) / 10
	u.TickingComponent = sim.NewTickingComponent(name, b.engine, frameRate, u)

	return u
}
