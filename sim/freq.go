package sim

import (
	"log"
	"math"
)

// Freq is a clock frequency in Hz.
type Freq float64

// Frequency units.
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive rising edges.
func (f Freq) Period() VTimeInSec {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return VTimeInSec(1.0 / f)
}

// Cycle converts a point in time to the number of edges seen since time 0.
func (f Freq) Cycle(t VTimeInSec) uint64 {
	return uint64(math.Round(float64(t) * float64(f)))
}

// Divide returns the frequency of a clock derived by an integer prescaler.
func (f Freq) Divide(prescaler int) Freq {
	if prescaler <= 0 {
		log.Panicf("invalid prescaler %d", prescaler)
	}

	return f / Freq(prescaler)
}

// ThisTick returns the edge at or right after now.
//
//	           now
//	           (          ]
//	|----------|----------|----------|----->
//	                      |
//	                      result
func (f Freq) ThisTick(now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	count := math.Ceil(math.Round(float64(now)*10*float64(f)) / 10)

	return VTimeInSec(count / float64(f))
}

// NextTick returns the edge strictly after now.
//
//	           now
//	           [          )
//	|----------|----------|----------|----->
//	                      |
//	                      result
func (f Freq) NextTick(now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	count := math.Floor(math.Round(float64(now)*10*float64(f)) / 10)

	return VTimeInSec((count + 1) / float64(f))
}

// NCyclesLater returns the edge that is n cycles after now.
func (f Freq) NCyclesLater(n int, now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	return f.ThisTick(now + VTimeInSec(Freq(n)/f))
}

// NoEarlierThan returns the edge at or right after t.
func (f Freq) NoEarlierThan(t VTimeInSec) VTimeInSec {
	mustBeValidTime(t)

	count := t / f.Period()

	return VTimeInSec(math.Ceil(float64(count))) * f.Period()
}

func mustBeValidTime(t VTimeInSec) {
	if math.IsNaN(float64(t)) {
		log.Panic("invalid time")
	}
}
