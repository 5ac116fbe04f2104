package dma

import (
	"context"
	"fmt"
	"time"

	"github.com/simplehal/simplehal/dmac"
	"github.com/simplehal/simplehal/tracing"
)

// GetStatus returns the status of a channel. While the channel is Busy the
// hardware flags are consulted, and the first terminal state observed is
// kept. An error wins over completion. Outside Busy the flags are ignored.
func (c *Controller) GetStatus(ch ChannelID) (Status, error) {
	if err := mustBeValid(ch); err != nil {
		return Idle, err
	}

	c.mu.Lock()
	s := c.state(ch)
	fire := c.poll(ch, s)
	st := s.status
	c.mu.Unlock()

	fire()

	return st, nil
}

// poll must be called with the lock held.
func (c *Controller) poll(ch ChannelID, s *channelState) func() {
	if s.status != Busy {
		return func() {}
	}

	flags := dmac.ChannelFlags(int(ch), c.regs.Load(dmac.INTFR))

	switch {
	case flags&dmac.FlagTEIF != 0:
		return c.latch(ch, s, Error)
	case flags&dmac.FlagTCIF != 0 && !s.circular():
		return c.latch(ch, s, Complete)
	}

	return func() {}
}

// WaitComplete polls a channel until its transfer reaches a terminal state
// or timeout passes. A zero timeout waits forever. It returns nil on
// completion, ErrTransfer on a hardware error, ErrTimeout when time runs
// out and ErrIdle if no transfer is active.
//
// WaitComplete must not be called from a callback.
func (c *Controller) WaitComplete(ch ChannelID, timeout time.Duration) (Status, error) {
	start := c.now()

	return c.wait(ch, func() error {
		if timeout > 0 && c.now().Sub(start) >= timeout {
			return ErrTimeout
		}

		return nil
	})
}

// WaitCompleteContext is like WaitComplete, but gives up when ctx is done.
// The returned error then wraps both ErrTimeout and the error of ctx.
func (c *Controller) WaitCompleteContext(ctx context.Context, ch ChannelID) (Status, error) {
	return c.wait(ch, func() error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}

		return nil
	})
}

func (c *Controller) wait(ch ChannelID, expired func() error) (Status, error) {
	for {
		st, err := c.GetStatus(ch)
		if err != nil {
			return st, err
		}

		switch st {
		case Complete:
			return st, nil
		case Error:
			return st, ErrTransfer
		case Idle:
			return st, ErrIdle
		}

		if err := expired(); err != nil {
			return st, err
		}

		c.yield()
	}
}

func (c *Controller) wrapTask(taskID string) {
	if taskID == "" {
		return
	}

	tracing.AddTaskStep(taskID, c, "wrap")
}
