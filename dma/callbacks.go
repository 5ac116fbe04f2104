package dma

import (
	"github.com/simplehal/simplehal/dmac"
)

// SetCompleteCallback registers the function called when a transfer on the
// channel completes, or on every wrap of a circular transfer. It replaces a
// previous registration. A nil fn is the same as ClearCompleteCallback.
func (c *Controller) SetCompleteCallback(ch ChannelID, fn Callback) error {
	return c.setCallback(ch, fn, false)
}

// SetErrorCallback registers the function called when the hardware flags a
// transfer error on the channel.
func (c *Controller) SetErrorCallback(ch ChannelID, fn Callback) error {
	return c.setCallback(ch, fn, true)
}

// ClearCompleteCallback removes the complete callback of the channel.
func (c *Controller) ClearCompleteCallback(ch ChannelID) error {
	return c.setCallback(ch, nil, false)
}

// ClearErrorCallback removes the error callback of the channel.
func (c *Controller) ClearErrorCallback(ch ChannelID) error {
	return c.setCallback(ch, nil, true)
}

func (c *Controller) setCallback(ch ChannelID, fn Callback, onError bool) error {
	if err := mustBeValid(ch); err != nil {
		return err
	}

	c.mu.Lock()
	s := c.state(ch)
	if onError {
		s.onError = fn
	} else {
		s.onComplete = fn
	}
	c.mu.Unlock()

	c.syncInterrupts(ch)

	return nil
}

// Done returns a channel that receives the next terminal status of the
// channel, or Idle if the transfer is stopped or reset first, and is then
// closed. If no transfer is active the current status is delivered right
// away. Circular transfers only deliver on error, stop or reset.
func (c *Controller) Done(ch ChannelID) <-chan Status {
	out := make(chan Status, 1)
	if !ch.Valid() {
		out <- Idle
		close(out)

		return out
	}

	c.mu.Lock()
	s := c.state(ch)
	if s.status != Busy {
		out <- s.status
		close(out)
		c.mu.Unlock()

		return out
	}

	s.done = append(s.done, out)
	c.mu.Unlock()

	c.syncInterrupts(ch)

	c.mu.Lock()
	fire := c.poll(ch, s)
	c.mu.Unlock()

	fire()

	return out
}

// interruptBits returns the interrupt enables that the consumers of a
// channel need. It must be called with the lock held.
func (c *Controller) interruptBits(s *channelState) uint32 {
	var ie uint32

	if s.onComplete != nil || len(s.done) > 0 {
		ie |= dmac.CfgTCIE
	}

	if s.onError != nil || len(s.done) > 0 {
		ie |= dmac.CfgTEIE
	}

	return ie
}

// syncInterrupts makes the interrupt enables of a channel and its line
// match its consumers. The lock must not be held, since unmasking a line
// can run the handler of a pending interrupt right away.
func (c *Controller) syncInterrupts(ch ChannelID) {
	reg := info(ch)

	c.mu.Lock()
	s := c.state(ch)
	ie := c.interruptBits(s)
	cfgr := c.regs.Load(reg.cfgr)
	c.regs.Store(reg.cfgr, cfgr&^dmac.CfgIEMask|ie)

	if ie == 0 {
		c.irq.Disable(reg.line)
	}
	c.mu.Unlock()

	if ie != 0 {
		c.irq.Enable(reg.line)
	}
}

// handleInterrupt is the interrupt service routine of every channel.
func (c *Controller) handleInterrupt(line int) {
	ch, ok := channelOfLine(line)
	if !ok {
		return
	}

	c.mu.Lock()

	flags := dmac.ChannelFlags(int(ch), c.regs.Load(dmac.INTFR))
	if flags == 0 {
		c.mu.Unlock()
		return
	}

	s := c.state(ch)
	handled := flags & (dmac.FlagTCIF | dmac.FlagTEIF | dmac.FlagHTIF)
	c.regs.Store(dmac.INTFCR, dmac.Flag(int(ch), handled))

	active := s.status == Busy || (s.status.Terminal() && !s.notified)

	var (
		cb   Callback
		fire = func() {}
	)

	switch {
	case !active:
	case flags&dmac.FlagTEIF != 0:
		fire = c.latch(ch, s, Error)
		s.notified = true
		cb = s.onError
	case flags&dmac.FlagTCIF != 0 && s.circular():
		taskID := s.taskID
		fire = func() { c.wrapTask(taskID) }
		cb = s.onComplete
	case flags&dmac.FlagTCIF != 0:
		fire = c.latch(ch, s, Complete)
		s.notified = true
		cb = s.onComplete
	}

	c.mu.Unlock()

	fire()

	if cb != nil {
		cb(ch)
	}
}

// latch moves a Busy channel to a terminal state. It must be called with
// the lock held and returns what to run once the lock is released.
func (c *Controller) latch(ch ChannelID, s *channelState, st Status) func() {
	if s.status != Busy {
		return func() {}
	}

	s.status = st
	done := s.takeDone()
	taskID := s.endTask()

	return func() {
		c.finishTask(taskID, st.String())
		deliver(done, st)

		if len(done) > 0 {
			c.syncInterrupts(ch)
		}
	}
}
