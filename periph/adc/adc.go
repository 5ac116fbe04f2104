// Package adc simulates the 10-bit analog to digital converter.
package adc

import (
	"fmt"
	"sync"

	"github.com/simplehal/simplehal/periph"
	"github.com/simplehal/simplehal/sim"
)

// Register offsets.
const (
	STATR  uint32 = 0x00
	CTLR1  uint32 = 0x04
	CTLR2  uint32 = 0x08
	RSQR1  uint32 = 0x2c
	RSQR2  uint32 = 0x30
	RSQR3  uint32 = 0x34
	RDATAR uint32 = 0x4c

	// WindowSize is the number of bytes the registers occupy.
	WindowSize uint32 = 0x50
)

// Register bits.
const (
	StatEOC  uint32 = 1 << 1
	StatSTRT uint32 = 1 << 4

	Ctl1SCAN uint32 = 1 << 8

	Ctl2ADON    uint32 = 1 << 0
	Ctl2CONT    uint32 = 1 << 1
	Ctl2DMA     uint32 = 1 << 8
	Ctl2SWSTART uint32 = 1 << 22

	rsqLenShift = 20
	rsqLenMask  = 0xf << rsqLenShift
)

// NumChannels is the number of analog inputs.
const NumChannels = 8

// MaxSequence is the longest regular sequence.
const MaxSequence = 16

// Resolution is the full scale of a sample.
const Resolution = 1 << 10

// A Signal provides the input voltage of every analog channel, as a raw
// sample.
type Signal interface {
	Sample(channel int, t sim.VTimeInSec) uint16
}

// SignalFunc adapts a function into a Signal.
type SignalFunc func(channel int, t sim.VTimeInSec) uint16

// Sample calls f.
func (f SignalFunc) Sample(channel int, t sim.VTimeInSec) uint16 {
	return f(channel, t)
}

// ADC converts one channel per tick. In scan mode it walks the regular
// sequence, otherwise it converts the first entry only. In continuous mode
// it starts over when the sequence ends.
type ADC struct {
	*sim.TickingComponent

	lock   sync.Mutex
	dma    periph.RequestNotifier
	signal Signal
	base   uint32

	statr  uint32
	ctlr1  uint32
	ctlr2  uint32
	rsqr   [3]uint32
	rdatar uint32

	converting  bool
	seqIndex    int
	conversions uint64
}

// DMARequest tells if a converted sample waits to be read by the DMA.
func (a *ADC) DMARequest() bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.ctlr2&Ctl2DMA != 0 && a.statr&StatEOC != 0
}

// Conversions returns the number of samples converted so far.
func (a *ADC) Conversions() uint64 {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.conversions
}

// SetSignal replaces the analog input.
func (a *ADC) SetSignal(s Signal) {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.signal = s
}

// Load reads a register. Reading RDATAR clears EOC.
func (a *ADC) Load(offset uint32) uint32 {
	a.lock.Lock()
	defer a.lock.Unlock()

	switch offset {
	case STATR:
		return a.statr
	case CTLR1:
		return a.ctlr1
	case CTLR2:
		return a.ctlr2
	case RSQR1, RSQR2, RSQR3:
		return a.rsqr[(offset-RSQR1)/4]
	case RDATAR:
		a.statr &^= StatEOC
		return a.rdatar
	}

	return 0
}

// Store writes a register. Setting SWSTART while the converter is on starts
// a conversion sequence.
func (a *ADC) Store(offset uint32, value uint32) {
	a.lock.Lock()
	start := false

	switch offset {
	case STATR:
		a.statr &= value
	case CTLR1:
		a.ctlr1 = value
	case CTLR2:
		a.ctlr2 = value &^ Ctl2SWSTART
		if a.ctlr2&Ctl2ADON == 0 {
			a.converting = false
		}

		if value&Ctl2SWSTART != 0 && a.ctlr2&Ctl2ADON != 0 {
			a.converting = true
			a.seqIndex = 0
			a.statr |= StatSTRT
			start = true
		}
	case RSQR1, RSQR2, RSQR3:
		a.rsqr[(offset-RSQR1)/4] = value
	}

	a.lock.Unlock()

	if start {
		a.TickLater()
	}
}

// Tick converts one sample.
func (a *ADC) Tick() bool {
	a.lock.Lock()
	if !a.converting {
		a.lock.Unlock()
		return false
	}

	ch := a.sequenceEntry(a.seqIndex)
	var v uint16
	if a.signal != nil {
		v = a.signal.Sample(ch, a.CurrentTime())
	}

	a.rdatar = uint32(v) & (Resolution - 1)
	a.statr |= StatEOC
	a.conversions++

	a.seqIndex++
	if a.seqIndex >= a.sequenceLength() {
		a.seqIndex = 0
		if a.ctlr2&Ctl2CONT == 0 {
			a.converting = false
			a.statr &^= StatSTRT
		}
	}

	request := a.ctlr2&Ctl2DMA != 0
	converting := a.converting
	a.lock.Unlock()

	if request && a.dma != nil {
		a.dma.NotifyRequest()
	}

	return converting
}

func (a *ADC) sequenceLength() int {
	if a.ctlr1&Ctl1SCAN == 0 {
		return 1
	}

	return int((a.rsqr[0]&rsqLenMask)>>rsqLenShift) + 1
}

// sequenceEntry returns the channel of entry i of the regular sequence.
// RSQR3 holds entries 0-5, RSQR2 6-11 and RSQR1 12-15.
func (a *ADC) sequenceEntry(i int) int {
	reg := 2 - i/6
	shift := uint(i%6) * 5

	return int((a.rsqr[reg] >> shift) & 0x1f)
}

// DataAddr returns the bus address of the data register.
func (a *ADC) DataAddr() uint32 {
	return a.base + RDATAR
}

// EnableDMA sets or clears the DMA request enable bit.
func (a *ADC) EnableDMA(on bool) {
	a.update(CTLR2, Ctl2DMA, on)
}

// SetSequence powers the converter on and programs the regular sequence.
// More than one channel turns on scan mode.
func (a *ADC) SetSequence(channels []int, continuous bool) error {
	if len(channels) == 0 || len(channels) > MaxSequence {
		return fmt.Errorf("sequence length %d out of range", len(channels))
	}

	var rsqr [3]uint32
	for i, ch := range channels {
		if ch < 0 || ch >= NumChannels {
			return fmt.Errorf("invalid ADC channel %d", ch)
		}

		rsqr[2-i/6] |= uint32(ch) << (uint(i%6) * 5)
	}
	rsqr[0] |= uint32(len(channels)-1) << rsqLenShift

	a.Store(RSQR1, rsqr[0])
	a.Store(RSQR2, rsqr[1])
	a.Store(RSQR3, rsqr[2])
	a.update(CTLR1, Ctl1SCAN, len(channels) > 1)
	a.update(CTLR2, Ctl2CONT, continuous)
	a.update(CTLR2, Ctl2ADON, true)

	return nil
}

// StartConversion triggers the regular sequence by software.
func (a *ADC) StartConversion() {
	a.Store(CTLR2, a.Load(CTLR2)|Ctl2SWSTART)
}

// StopConversion turns the converter off.
func (a *ADC) StopConversion() {
	a.update(CTLR2, Ctl2ADON|Ctl2CONT, false)
}

func (a *ADC) update(offset uint32, bits uint32, set bool) {
	v := a.Load(offset)
	if set {
		v |= bits
	} else {
		v &^= bits
	}

	a.Store(offset, v)
}
