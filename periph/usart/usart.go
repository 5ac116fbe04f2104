// Package usart simulates a USART with a one-byte transmit holding register,
// a transmit shifter and a one-byte receive data register.
package usart

import (
	"sync"

	"github.com/simplehal/simplehal/periph"
	"github.com/simplehal/simplehal/sim"
)

// Register offsets.
const (
	STATR uint32 = 0x00
	DATAR uint32 = 0x04
	BRR   uint32 = 0x08
	CTLR1 uint32 = 0x0c
	CTLR2 uint32 = 0x10
	CTLR3 uint32 = 0x14

	// WindowSize is the number of bytes the registers occupy.
	WindowSize uint32 = 0x1c
)

// Register bits.
const (
	StatORE  uint32 = 1 << 3
	StatRXNE uint32 = 1 << 5
	StatTC   uint32 = 1 << 6
	StatTXE  uint32 = 1 << 7

	Ctl1RE uint32 = 1 << 2
	Ctl1TE uint32 = 1 << 3
	Ctl1UE uint32 = 1 << 13

	Ctl3DMAR uint32 = 1 << 6
	Ctl3DMAT uint32 = 1 << 7
)

// USART moves one frame per tick in each direction. Transmitted bytes are
// collected and, when loopback is on, fed back into the receiver. Bytes that
// arrive while RXNE is still set are lost and raise ORE.
type USART struct {
	*sim.TickingComponent

	lock sync.Mutex
	dma  periph.RequestNotifier
	base uint32

	statr uint32
	ctlr1 uint32
	ctlr3 uint32
	brr   uint32

	tdr      byte
	tdrFull  bool
	shifter  byte
	shifting bool
	rdr      byte

	rxQueue  []byte
	sent     []byte
	loopback bool
	overruns int
}

// Load reads a register. Reading DATAR clears RXNE.
func (u *USART) Load(offset uint32) uint32 {
	u.lock.Lock()
	defer u.lock.Unlock()

	switch offset {
	case STATR:
		return u.statr
	case DATAR:
		u.statr &^= StatRXNE
		return uint32(u.rdr)
	case BRR:
		return u.brr
	case CTLR1:
		return u.ctlr1
	case CTLR3:
		return u.ctlr3
	}

	return 0
}

// Store writes a register. Writing DATAR queues a byte for transmission.
func (u *USART) Store(offset uint32, value uint32) {
	u.lock.Lock()
	wake := false

	switch offset {
	case STATR:
		u.statr &= value | StatTXE | StatRXNE
	case DATAR:
		if u.ctlr1&(Ctl1UE|Ctl1TE) == Ctl1UE|Ctl1TE {
			u.tdr = byte(value)
			u.tdrFull = true
			u.statr &^= StatTXE | StatTC
			wake = true
		}
	case BRR:
		u.brr = value
	case CTLR1:
		u.ctlr1 = value
		wake = true
	case CTLR3:
		u.ctlr3 = value
		wake = true
	}

	u.lock.Unlock()

	if wake {
		u.TickLater()
		u.notify()
	}
}

// Tick finishes the frame in the shifter, loads the next one, and delivers
// at most one received byte.
func (u *USART) Tick() bool {
	u.lock.Lock()

	if u.shifting {
		u.sent = append(u.sent, u.shifter)
		if u.loopback {
			u.rxQueue = append(u.rxQueue, u.shifter)
		}
		u.shifting = false
	}

	if u.tdrFull {
		u.shifter = u.tdr
		u.shifting = true
		u.tdrFull = false
		u.statr |= StatTXE
	} else if !u.shifting {
		u.statr |= StatTC
	}

	if len(u.rxQueue) > 0 && u.ctlr1&(Ctl1UE|Ctl1RE) == Ctl1UE|Ctl1RE {
		b := u.rxQueue[0]
		u.rxQueue = u.rxQueue[1:]

		if u.statr&StatRXNE != 0 {
			u.statr |= StatORE
			u.overruns++
		} else {
			u.rdr = b
			u.statr |= StatRXNE
		}
	}

	busy := u.shifting || u.tdrFull || len(u.rxQueue) > 0
	u.lock.Unlock()

	u.notify()

	return busy
}

func (u *USART) notify() {
	if u.dma != nil {
		u.dma.NotifyRequest()
	}
}

// Inject makes bytes arrive at the receiver, one per frame time.
func (u *USART) Inject(data []byte) {
	u.lock.Lock()
	u.rxQueue = append(u.rxQueue, data...)
	u.lock.Unlock()

	u.TickLater()
}

// SetLoopback connects the transmitter to the receiver.
func (u *USART) SetLoopback(on bool) {
	u.lock.Lock()
	defer u.lock.Unlock()

	u.loopback = on
}

// Sent returns a copy of every byte that left the transmitter.
func (u *USART) Sent() []byte {
	u.lock.Lock()
	defer u.lock.Unlock()

	out := make([]byte, len(u.sent))
	copy(out, u.sent)

	return out
}

// Overruns returns the number of received bytes that were lost.
func (u *USART) Overruns() int {
	u.lock.Lock()
	defer u.lock.Unlock()

	return u.overruns
}

// DataAddr returns the bus address of the data register.
func (u *USART) DataAddr() uint32 {
	return u.base + DATAR
}

// Enable turns on the transmitter and the receiver.
func (u *USART) Enable() {
	u.Store(CTLR1, u.Load(CTLR1)|Ctl1UE|Ctl1TE|Ctl1RE)
}

// EnableTxDMA sets or clears DMAT.
func (u *USART) EnableTxDMA(on bool) {
	u.update(CTLR3, Ctl3DMAT, on)
}

// EnableRxDMA sets or clears DMAR.
func (u *USART) EnableRxDMA(on bool) {
	u.update(CTLR3, Ctl3DMAR, on)
}

func (u *USART) update(offset uint32, bits uint32, set bool) {
	v := u.Load(offset)
	if set {
		v |= bits
	} else {
		v &^= bits
	}

	u.Store(offset, v)
}

// TxRequest returns the transmit DMA request output.
func (u *USART) TxRequest() Request {
	return Request{u: u, rx: false}
}

// RxRequest returns the receive DMA request output.
func (u *USART) RxRequest() Request {
	return Request{u: u, rx: true}
}

// Request is one of the two DMA request outputs of a USART.
type Request struct {
	u  *USART
	rx bool
}

// DMARequest tells if the USART wants a byte written (TX) or read (RX).
func (r Request) DMARequest() bool {
	u := r.u
	u.lock.Lock()
	defer u.lock.Unlock()

	if r.rx {
		return u.ctlr3&Ctl3DMAR != 0 && u.statr&StatRXNE != 0
	}

	return u.ctlr3&Ctl3DMAT != 0 &&
		u.statr&StatTXE != 0 &&
		u.ctlr1&(Ctl1UE|Ctl1TE) == Ctl1UE|Ctl1TE
}
