// Package irq simulates the interrupt controller of the microcontroller. It
// keeps one pending bit and one enable bit per line and calls the registered
// handler of a line when the line is both pending and enabled.
package irq

import (
	"log"
	"math/bits"
	"sync"
)

// NumLines is the number of interrupt lines of the controller.
const NumLines = 64

// A Handler services one interrupt line.
type Handler func(line int)

// Controller dispatches interrupts one at a time, lowest line first. The
// goroutine that raises an interrupt runs the handler, unless another
// goroutine is already dispatching, in which case that goroutine picks the
// new interrupt up before it returns. Handlers therefore never nest and never
// run concurrently with each other.
type Controller struct {
	name string

	lock        sync.Mutex
	enabled     uint64
	pending     uint64
	handlers    [NumLines]Handler
	dispatched  [NumLines]uint64
	dispatching bool
}

// NewController creates an interrupt controller with every line masked.
func NewController(name string) *Controller {
	return &Controller{name: name}
}

// Name returns the name of the controller.
func (c *Controller) Name() string {
	return c.name
}

// SetHandler installs the handler of a line. A nil handler removes it.
func (c *Controller) SetHandler(line int, h Handler) {
	mustBeValidLine(line)

	c.lock.Lock()
	c.handlers[line] = h
	c.lock.Unlock()

	c.dispatch()
}

// Enable unmasks a line. An interrupt that was already pending is serviced
// right away.
func (c *Controller) Enable(line int) {
	mustBeValidLine(line)

	c.lock.Lock()
	c.enabled |= 1 << uint(line)
	c.lock.Unlock()

	c.dispatch()
}

// Disable masks a line. The pending bit is kept.
func (c *Controller) Disable(line int) {
	mustBeValidLine(line)

	c.lock.Lock()
	defer c.lock.Unlock()

	c.enabled &^= 1 << uint(line)
}

// IsEnabled tells if a line is unmasked.
func (c *Controller) IsEnabled(line int) bool {
	mustBeValidLine(line)

	c.lock.Lock()
	defer c.lock.Unlock()

	return c.enabled&(1<<uint(line)) != 0
}

// IsPending tells if a line has an interrupt waiting.
func (c *Controller) IsPending(line int) bool {
	mustBeValidLine(line)

	c.lock.Lock()
	defer c.lock.Unlock()

	return c.pending&(1<<uint(line)) != 0
}

// ClearPending drops a waiting interrupt.
func (c *Controller) ClearPending(line int) {
	mustBeValidLine(line)

	c.lock.Lock()
	defer c.lock.Unlock()

	c.pending &^= 1 << uint(line)
}

// SetPending raises an interrupt on a line.
func (c *Controller) SetPending(line int) {
	mustBeValidLine(line)

	c.lock.Lock()
	c.pending |= 1 << uint(line)
	c.lock.Unlock()

	c.dispatch()
}

// Dispatched returns how many times the handler of a line has been called.
func (c *Controller) Dispatched(line int) uint64 {
	mustBeValidLine(line)

	c.lock.Lock()
	defer c.lock.Unlock()

	return c.dispatched[line]
}

func (c *Controller) dispatch() {
	c.lock.Lock()
	if c.dispatching {
		c.lock.Unlock()
		return
	}
	c.dispatching = true

	for {
		line, h := c.nextReady()
		if h == nil {
			break
		}

		c.pending &^= 1 << uint(line)
		c.dispatched[line]++
		c.lock.Unlock()

		h(line)

		c.lock.Lock()
	}

	c.dispatching = false
	c.lock.Unlock()
}

// nextReady must be called with the lock held.
func (c *Controller) nextReady() (int, Handler) {
	ready := c.pending & c.enabled
	for ready != 0 {
		line := bits.TrailingZeros64(ready)
		if c.handlers[line] != nil {
			return line, c.handlers[line]
		}

		ready &^= 1 << uint(line)
	}

	return 0, nil
}

func mustBeValidLine(line int) {
	if line < 0 || line >= NumLines {
		log.Panicf("invalid interrupt line %d", line)
	}
}
