package spi

import (
	"github.com/simplehal/simplehal/periph"
	"github.com/simplehal/simplehal/sim"
)

// Builder can build SPIs.
type Builder struct {
	engine    sim.Engine
	freq      sim.Freq
	prescaler int
	dma       periph.RequestNotifier
	slave     Slave
	base      uint32
}

// MakeBuilder returns a Builder for an SPI clocked at a quarter of a 48 MHz
// bus, with a loopback slave.
func MakeBuilder() Builder {
	return Builder{
		freq:      48 * sim.MHz,
		prescaler: 4,
		slave:     Loopback,
		base:      0x40013000,
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

// WithPrescaler sets the divider between the bus clock and SCK.
func (b Builder) WithPrescaler(p int) Builder {
	b.prescaler = p
	return b
}

// WithDMA sets who is woken up when a DMA request is raised.
func (b Builder) WithDMA(n periph.RequestNotifier) Builder {
	b.dma = n
	return b
}

// WithSlave sets the device on the other end of the bus.
func (b Builder) WithSlave(slave Slave) Builder {
	b.slave = slave
	return b
}

// WithBase sets the bus address of the registers.
func (b Builder) WithBase(base uint32) Builder {
	b.base = base
	return b
}

// Build creates the SPI. A byte takes eight SCK periods.
func (b Builder) Build(name string) *SPI {
	if b.engine == nil {
		panic("engine is not set")
	}

	s := &SPI{
		dma:   b.dma,
		base:  b.base,
		slave: b.slave,
		statr: StatTXE,
	}

	byteRate := b.freq.Divide(b.prescaler * 8)
	s.TickingComponent = sim.NewTickingComponent(name, b.engine, byteRate, s)

	return s
}
