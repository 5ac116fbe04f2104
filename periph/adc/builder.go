package adc

import (
	"github.com/simplehal/simplehal/periph"
	"github.com/simplehal/simplehal/sim"
)

// Builder can build ADCs.
type Builder struct {
	engine       sim.Engine
	freq         sim.Freq
	prescaler    int
	sampleCycles int
	dma          periph.RequestNotifier
	signal       Signal
	base         uint32
}

// MakeBuilder returns a Builder with a 48 MHz bus, the ADC clock divided by
// 8 and 241 sample cycles plus conversion.
func MakeBuilder() Builder {
	return Builder{
		freq:         48 * sim.MHz,
		prescaler:    8,
		sampleCycles: 241 + 11,
		base:         0x40012400,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the bus clock that the ADC clock is derived from.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithPrescaler sets the ADC clock prescaler.
func (b Builder) WithPrescaler(p int) Builder {
	b.prescaler = p
	return b
}

// WithCyclesPerConversion sets the number of ADC clocks per sample.
func (b Builder) WithCyclesPerConversion(n int) Builder {
	b.sampleCycles = n
	return b
}

// WithDMA sets who is woken up when a sample is ready.
func (b Builder) WithDMA(n periph.RequestNotifier) Builder {
	b.dma = n
	return b
}

// WithSignal sets the analog input.
func (b Builder) WithSignal(s Signal) Builder {
	b.signal = s
	return b
}

// WithBase sets the bus address of the registers.
func (b Builder) WithBase(base uint32) Builder {
	b.base = base
	return b
}

// Build creates the ADC.
func (b Builder) Build(name string) *ADC {
	if b.engine == nil {
		panic("engine is not set")
	}

	a := &ADC{
		dma:    b.dma,
		signal: b.signal,
		base:   b.base,
	}

	rate := b.freq.Divide(b.prescaler * b.sampleCycles)
	a.TickingComponent = sim.NewTickingComponent(name, b.engine, rate, a)

	return a
}
