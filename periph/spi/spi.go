// Package spi simulates a full-duplex SPI master. Every byte written to the
// data register is exchanged with a slave, and the byte clocked back in
// lands in the receive data register.
package spi

import (
	"sync"

	"github.com/simplehal/simplehal/periph"
	"github.com/simplehal/simplehal/sim"
)

// Register offsets.
const (
	CTLR1 uint32 = 0x00
	CTLR2 uint32 = 0x04
	STATR uint32 = 0x08
	DATAR uint32 = 0x0c

	// WindowSize is the number of bytes the registers occupy.
	WindowSize uint32 = 0x10
)

// Register bits.
const (
	Ctl1MSTR uint32 = 1 << 2
	Ctl1SPE  uint32 = 1 << 6

	Ctl2RXDMAEN uint32 = 1 << 0
	Ctl2TXDMAEN uint32 = 1 << 1

	StatRXNE uint32 = 1 << 0
	StatTXE  uint32 = 1 << 1
	StatOVR  uint32 = 1 << 6
	StatBSY  uint32 = 1 << 7
)

// A Slave answers every byte the master sends.
type Slave func(mosi byte) (miso byte)

// Loopback is a slave that echoes what it receives.
func Loopback(mosi byte) byte {
	return mosi
}

// SPI exchanges one byte per tick. A byte that is clocked in while RXNE is
// still set is lost and raises OVR.
type SPI struct {
	*sim.TickingComponent

	lock  sync.Mutex
	dma   periph.RequestNotifier
	base  uint32
	slave Slave

	ctlr1 uint32
	ctlr2 uint32
	statr uint32

	txbuf    byte
	txFull   bool
	rxbuf    byte
	overruns int
}

// Load reads a register. Reading DATAR clears RXNE.
func (s *SPI) Load(offset uint32) uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()

	switch offset {
	case CTLR1:
		return s.ctlr1
	case CTLR2:
		return s.ctlr2
	case STATR:
		return s.statr
	case DATAR:
		s.statr &^= StatRXNE
		return uint32(s.rxbuf)
	}

	return 0
}

// Store writes a register.
func (s *SPI) Store(offset uint32, value uint32) {
	s.lock.Lock()
	wake := false

	switch offset {
	case CTLR1:
		s.ctlr1 = value
		wake = true
	case CTLR2:
		s.ctlr2 = value
		wake = true
	case STATR:
		s.statr &^= StatOVR &^ value
	case DATAR:
		if s.ctlr1&Ctl1SPE != 0 {
			s.txbuf = byte(value)
			s.txFull = true
			s.statr &^= StatTXE
			s.statr |= StatBSY
			wake = true
		}
	}

	s.lock.Unlock()

	if wake {
		s.TickLater()
		s.notify()
	}
}

// Tick exchanges the pending byte with the slave.
func (s *SPI) Tick() bool {
	s.lock.Lock()
	if !s.txFull {
		s.statr &^= StatBSY
		s.lock.Unlock()
		return false
	}

	in := s.slave(s.txbuf)
	s.txFull = false
	s.statr |= StatTXE
	s.statr &^= StatBSY

	if s.statr&StatRXNE != 0 {
		s.statr |= StatOVR
		s.overruns++
	} else {
		s.rxbuf = in
		s.statr |= StatRXNE
	}
	s.lock.Unlock()

	s.notify()

	return true
}

func (s *SPI) notify() {
	if s.dma != nil {
		s.dma.NotifyRequest()
	}
}

// SetSlave replaces the device on the other end of the bus.
func (s *SPI) SetSlave(slave Slave) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.slave = slave
}

// Overruns returns the number of received bytes that were lost.
func (s *SPI) Overruns() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.overruns
}

// DataAddr returns the bus address of the data register.
func (s *SPI) DataAddr() uint32 {
	return s.base + DATAR
}

// Enable turns the SPI on as a master.
func (s *SPI) Enable() {
	s.Store(CTLR1, s.Load(CTLR1)|Ctl1MSTR|Ctl1SPE)
}

// EnableTxDMA sets or clears TXDMAEN.
func (s *SPI) EnableTxDMA(on bool) {
	s.update(Ctl2TXDMAEN, on)
}

// EnableRxDMA sets or clears RXDMAEN.
func (s *SPI) EnableRxDMA(on bool) {
	s.update(Ctl2RXDMAEN, on)
}

func (s *SPI) update(bits uint32, set bool) {
	v := s.Load(CTLR2)
	if set {
		v |= bits
	} else {
		v &^= bits
	}

	s.Store(CTLR2, v)
}

// TxRequest returns the transmit DMA request output.
func (s *SPI) TxRequest() Request {
	return Request{s: s}
}

// RxRequest returns the receive DMA request output.
func (s *SPI) RxRequest() Request {
	return Request{s: s, rx: true}
}

// Request is one of the two DMA request outputs of an SPI.
type Request struct {
	s  *SPI
	rx bool
}

// DMARequest tells if the SPI wants a byte written (TX) or read (RX).
func (r Request) DMARequest() bool {
	s := r.s
	s.lock.Lock()
	defer s.lock.Unlock()

	if r.rx {
		return s.ctlr2&Ctl2RXDMAEN != 0 && s.statr&StatRXNE != 0
	}

	return s.ctlr2&Ctl2TXDMAEN != 0 &&
		s.ctlr1&Ctl1SPE != 0 &&
		s.statr&StatTXE != 0
}
