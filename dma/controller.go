package dma

import (
	"fmt"
	"sync"
	"time"

	"github.com/simplehal/simplehal/dmac"
	"github.com/simplehal/simplehal/irq"
	"github.com/simplehal/simplehal/mem"
	"github.com/simplehal/simplehal/sim"
	"github.com/simplehal/simplehal/tracing"
)

// Registers is the register window of the DMA hardware, addressed by byte
// offset from its base.
type Registers interface {
	Load(offset uint32) uint32
	Store(offset uint32, value uint32)
}

// InterruptController masks, unmasks and routes interrupt lines.
type InterruptController interface {
	SetHandler(line int, h irq.Handler)
	Enable(line int)
	Disable(line int)
}

// A Callback is invoked in interrupt context with the channel that raised
// the interrupt. It must be short and must not block. It may configure and
// start channels, including its own.
type Callback func(ch ChannelID)

type channelState struct {
	status   Status
	request  *TransferRequest
	started  bool
	notified bool

	onComplete Callback
	onError    Callback
	done       []chan Status

	taskID string
}

func (s *channelState) circular() bool {
	return s.request != nil && s.request.Mode == Circular
}

// Controller drives the DMA hardware. All methods can be called from any
// goroutine. Per-channel state is guarded by one mutex, which is never held
// while a callback runs or while an interrupt line is unmasked.
type Controller struct {
	sim.HookableBase

	name string
	mu   sync.Mutex
	regs Registers
	irq  InterruptController

	channels [NumChannels]channelState

	now   func() time.Time
	yield func()

	fill *mem.Buffer
}

// Name returns the name of the controller.
func (c *Controller) Name() string {
	return c.name
}

func (c *Controller) state(ch ChannelID) *channelState {
	return &c.channels[ch-1]
}

// Configure programs a channel with a request. The channel ends up Idle and
// disabled with its flags clear; the interrupt enables of registered
// callbacks are kept. Configure does not start the transfer.
func (c *Controller) Configure(ch ChannelID, req TransferRequest) error {
	if err := mustBeValid(ch); err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		return err
	}

	c.mu.Lock()

	s := c.state(ch)
	if s.status == Busy {
		c.mu.Unlock()
		return ErrChannelBusy
	}

	reg := info(ch)
	ie := c.interruptBits(s)

	c.regs.Store(reg.cfgr, ie)
	c.regs.Store(dmac.INTFCR, dmac.Flag(int(ch), dmac.FlagGIF))

	cfgr, paddr, maddr := req.registers()
	c.regs.Store(reg.paddr, paddr)
	c.regs.Store(reg.maddr, maddr)
	c.regs.Store(reg.cntr, uint32(req.Count))
	c.regs.Store(reg.cfgr, cfgr|ie)

	r := req
	s.request = &r
	s.started = false
	s.status = Idle

	c.mu.Unlock()

	return nil
}

// Start launches the configured transfer and returns immediately.
func (c *Controller) Start(ch ChannelID) error {
	if err := mustBeValid(ch); err != nil {
		return err
	}

	c.mu.Lock()

	s := c.state(ch)
	if s.status == Busy {
		c.mu.Unlock()
		return ErrChannelBusy
	}

	if s.request == nil || s.started {
		c.mu.Unlock()
		return errNotConfigured(ch)
	}

	reg := info(ch)
	c.regs.Store(dmac.INTFCR, dmac.Flag(int(ch), dmac.FlagGIF))

	s.status = Busy
	s.started = true
	s.notified = false
	s.taskID = sim.GetIDGenerator().Generate()
	req := *s.request
	taskID := s.taskID

	c.regs.Store(reg.cfgr, c.regs.Load(reg.cfgr)|dmac.CfgEN)

	c.mu.Unlock()

	tracing.StartTask(taskID, "", c, "dma_transfer", req.Direction.String(),
		TransferInfo{Channel: ch, Request: req})

	return nil
}

// Stop disables the channel and makes it Idle. The number of elements left
// is reported as unknown. The request is kept but needs a new Configure
// before it can be started again.
func (c *Controller) Stop(ch ChannelID) (Cancellation, error) {
	if err := mustBeValid(ch); err != nil {
		return Cancellation{}, err
	}

	c.mu.Lock()

	s := c.state(ch)
	reg := info(ch)
	c.regs.Store(reg.cfgr, c.regs.Load(reg.cfgr)&^dmac.CfgEN)

	wasBusy := s.status == Busy
	s.status = Idle
	done := s.takeDone()
	taskID := s.endTask()

	c.mu.Unlock()

	c.finishTask(taskID, "stopped")
	deliver(done, Idle)

	if len(done) > 0 {
		c.syncInterrupts(ch)
	}

	return Cancellation{Channel: ch, WasBusy: wasBusy}, nil
}

// Reset disables the channel, clears its flags and forgets its request.
// Registered callbacks stay registered.
func (c *Controller) Reset(ch ChannelID) error {
	if err := mustBeValid(ch); err != nil {
		return err
	}

	c.mu.Lock()

	s := c.state(ch)
	reg := info(ch)
	ie := c.interruptBits(s)

	c.regs.Store(reg.cfgr, ie)
	c.regs.Store(dmac.INTFCR, dmac.Flag(int(ch), dmac.FlagGIF))
	c.regs.Store(reg.cntr, 0)
	c.regs.Store(reg.paddr, 0)
	c.regs.Store(reg.maddr, 0)

	s.status = Idle
	s.request = nil
	s.started = false
	done := s.takeDone()
	taskID := s.endTask()

	c.mu.Unlock()

	c.finishTask(taskID, "reset")
	deliver(done, Idle)

	if len(done) > 0 {
		c.syncInterrupts(ch)
	}

	return nil
}

// RemainingCount returns the raw count register of a channel.
func (c *Controller) RemainingCount(ch ChannelID) (uint16, error) {
	if err := mustBeValid(ch); err != nil {
		return 0, err
	}

	return uint16(c.regs.Load(info(ch).cntr)), nil
}

// Cursor returns the index of the next element the hardware will write.
// A circular transfer wraps it to zero; a normal transfer that has moved
// every element reports count.
func (c *Controller) Cursor(ch ChannelID) (uint16, error) {
	if err := mustBeValid(ch); err != nil {
		return 0, err
	}

	c.mu.Lock()
	s := c.state(ch)
	if s.request == nil {
		c.mu.Unlock()
		return 0, errNotConfigured(ch)
	}
	count := uint32(s.request.Count)
	circular := s.circular()
	c.mu.Unlock()

	remaining := c.regs.Load(info(ch).cntr) & 0xffff
	if remaining > count {
		remaining = count
	}

	if !circular {
		return uint16(count - remaining), nil
	}

	return uint16((count - remaining) % count), nil
}

// Request returns the request a channel is configured with.
func (c *Controller) Request(ch ChannelID) (TransferRequest, bool) {
	if !ch.Valid() {
		return TransferRequest{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state(ch)
	if s.request == nil {
		return TransferRequest{}, false
	}

	return *s.request, true
}

// ChannelReport is a summary of a channel for diagnostics.
type ChannelReport struct {
	Channel    ChannelID
	Status     Status
	Configured bool
	Request    TransferRequest
	Remaining  uint16
	Callbacks  int
}

// Report summarizes every channel without polling the flags.
func (c *Controller) Report() []ChannelReport {
	reports := make([]ChannelReport, 0, NumChannels)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range Channels() {
		s := c.state(ch)
		r := ChannelReport{
			Channel:   ch,
			Status:    s.status,
			Remaining: uint16(c.regs.Load(info(ch).cntr)),
		}

		if s.request != nil {
			r.Configured = true
			r.Request = *s.request
		}

		if s.onComplete != nil {
			r.Callbacks++
		}

		if s.onError != nil {
			r.Callbacks++
		}

		reports = append(reports, r)
	}

	return reports
}

// TransferInfo is the detail attached to transfer traces.
type TransferInfo struct {
	Channel ChannelID
	Request TransferRequest
}

// endTask must be called with the lock held.
func (s *channelState) endTask() string {
	id := s.taskID
	s.taskID = ""

	return id
}

// takeDone must be called with the lock held.
func (s *channelState) takeDone() []chan Status {
	done := s.done
	s.done = nil

	return done
}

func deliver(done []chan Status, st Status) {
	for _, d := range done {
		d <- st
		close(d)
	}
}

func (c *Controller) finishTask(taskID, what string) {
	if taskID == "" {
		return
	}

	tracing.AddTaskStep(taskID, c, what)
	tracing.EndTask(taskID, c)
}

func errNotConfigured(ch ChannelID) error {
	return fmt.Errorf("%w: %s has no configured transfer to start",
		ErrInvalidConfig, ch)
}
