package dmac

import (
	"log"

	"github.com/simplehal/simplehal/mem"
	"github.com/simplehal/simplehal/sim"
)

// A RequestSource is a peripheral that asks for DMA service. The controller
// polls the source of a channel before every peripheral beat. A source that
// starts requesting must call NotifyRequest so that a sleeping controller
// wakes up.
type RequestSource interface {
	DMARequest() bool
}

// HookPosBeat is where the controller reports every completed element.
var HookPosBeat = &sim.HookPos{Name: "DMABeat"}

// Beat describes one element moved by the controller.
type Beat struct {
	Channel int
	Src     uint32
	Dst     uint32
	Value   uint32
	Err     error
}

type channelState struct {
	cfgr  uint32
	cntr  uint32
	paddr uint32
	maddr uint32

	reload uint32
	pcur   uint32
	mcur   uint32

	// gen changes whenever the channel is enabled or disabled, so that a
	// beat that was in flight across the change is discarded.
	gen uint64
}

type beat struct {
	ch       int
	gen      uint64
	src, dst uint32
	srcSize  mem.Size
	dstSize  mem.Size
}

// Controller is the DMA controller. It moves one element per cycle. Among
// the channels that are ready, the one with the highest priority level wins,
// and ties go to the lowest channel number.
type Controller struct {
	*sim.TickingComponent

	bus *mem.Bus
	irq InterruptRaiser

	intfr    uint32
	channels [NumChannels]channelState
	requests [NumChannels]RequestSource
	lines    [NumChannels]int
}

// ConnectRequest wires the request output of a peripheral to a channel.
func (c *Controller) ConnectRequest(ch int, src RequestSource) {
	mustBeValidChannel(ch)

	c.Lock()
	c.requests[ch-1] = src
	c.Unlock()

	c.TickLater()
}

// NotifyRequest wakes the controller up after a peripheral raised its
// request.
func (c *Controller) NotifyRequest() {
	c.TickLater()
}

// Line returns the interrupt line of a channel.
func (c *Controller) Line(ch int) int {
	mustBeValidChannel(ch)
	return c.lines[ch-1]
}

// Load reads a register.
func (c *Controller) Load(offset uint32) uint32 {
	c.Lock()
	defer c.Unlock()

	if offset == INTFR {
		return c.intfr
	}

	if offset == INTFCR {
		return 0
	}

	ch, reg, ok := decode(offset)
	if !ok {
		return 0
	}

	s := &c.channels[ch-1]
	switch reg {
	case offCFGR:
		return s.cfgr
	case offCNTR:
		return s.cntr
	case offPADDR:
		return s.paddr
	default:
		return s.maddr
	}
}

// Store writes a register.
func (c *Controller) Store(offset uint32, value uint32) {
	c.Lock()
	wake := c.store(offset, value)
	c.Unlock()

	if wake {
		c.TickLater()
	}
}

func (c *Controller) store(offset uint32, value uint32) bool {
	if offset == INTFR {
		return false
	}

	if offset == INTFCR {
		c.clearFlags(value)
		return false
	}

	ch, reg, ok := decode(offset)
	if !ok {
		return false
	}

	s := &c.channels[ch-1]
	if reg == offCFGR {
		return c.writeCFGR(s, value)
	}

	if s.cfgr&CfgEN != 0 {
		return false
	}

	switch reg {
	case offCNTR:
		s.cntr = value & 0xffff
		s.reload = s.cntr
	case offPADDR:
		s.paddr = value
	default:
		s.maddr = value
	}

	return false
}

func (c *Controller) writeCFGR(s *channelState, value uint32) bool {
	value &= 0x7fff
	wasEnabled := s.cfgr&CfgEN != 0
	enabled := value&CfgEN != 0
	s.cfgr = value

	switch {
	case enabled && !wasEnabled:
		s.gen++
		s.pcur = s.paddr
		s.mcur = s.maddr
		return true
	case !enabled && wasEnabled:
		s.gen++
	}

	return false
}

func (c *Controller) clearFlags(value uint32) {
	for ch := 1; ch <= NumChannels; ch++ {
		if ChannelFlags(ch, value)&FlagGIF != 0 {
			value |= Flag(ch, channelFlags)
		}
	}

	c.intfr &^= value
}

func decode(offset uint32) (ch int, reg uint32, ok bool) {
	if offset < channelBase || offset >= WindowSize || offset%4 != 0 {
		return 0, 0, false
	}

	rel := offset - channelBase

	return int(rel/channelStride) + 1, rel % channelStride, true
}

// Tick moves at most one element.
func (c *Controller) Tick() bool {
	b, ok := c.pickBeat()
	if !ok {
		return false
	}

	value, err := c.move(b)
	lines := c.retire(b, err)

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosBeat,
		Item: Beat{
			Channel: b.ch,
			Src:     b.src,
			Dst:     b.dst,
			Value:   value,
			Err:     err,
		},
	})

	if c.irq != nil {
		for _, line := range lines {
			c.irq.SetPending(line)
		}
	}

	return true
}

func (c *Controller) pickBeat() (beat, bool) {
	c.Lock()
	defer c.Unlock()

	best := -1
	bestPL := uint32(0)

	for i := range c.channels {
		s := &c.channels[i]
		if !c.ready(i, s) {
			continue
		}

		pl := (s.cfgr & CfgPLMask) >> CfgPLShift
		if best < 0 || pl > bestPL {
			best = i
			bestPL = pl
		}
	}

	if best < 0 {
		return beat{}, false
	}

	return c.makeBeat(best), true
}

func (c *Controller) ready(i int, s *channelState) bool {
	if s.cfgr&CfgEN == 0 || s.cntr == 0 {
		return false
	}

	if s.cfgr&CfgMEM2MEM != 0 {
		return true
	}

	return c.requests[i] != nil && c.requests[i].DMARequest()
}

func (c *Controller) makeBeat(i int) beat {
	s := &c.channels[i]
	psize := decodeSize((s.cfgr & CfgPSizeMask) >> CfgPSizeShift)
	msize := decodeSize((s.cfgr & CfgMSizeMask) >> CfgMSizeShift)

	b := beat{ch: i + 1, gen: s.gen}
	if s.cfgr&CfgDIR != 0 {
		b.src, b.srcSize = s.mcur, msize
		b.dst, b.dstSize = s.pcur, psize
	} else {
		b.src, b.srcSize = s.pcur, psize
		b.dst, b.dstSize = s.mcur, msize
	}

	return b
}

func decodeSize(code uint32) mem.Size {
	switch code {
	case Size8:
		return mem.Byte
	case Size16:
		return mem.HalfWord
	default:
		return mem.Word
	}
}

func (c *Controller) move(b beat) (uint32, error) {
	v, err := c.bus.Read(b.srcSize, b.src)
	if err != nil {
		return 0, err
	}

	return v, c.bus.Write(b.dstSize, b.dst, v)
}

// retire applies the result of a beat and returns the interrupt lines to
// raise.
func (c *Controller) retire(b beat, err error) []int {
	c.Lock()
	defer c.Unlock()

	s := &c.channels[b.ch-1]
	if s.gen != b.gen {
		return nil
	}

	var raised uint32

	if err != nil {
		s.cfgr &^= CfgEN
		s.gen++
		raised = c.raise(b.ch, s, FlagTEIF, CfgTEIE)
		return c.linesFor(b.ch, raised)
	}

	c.advance(s)

	transferred := s.reload - s.cntr
	if s.reload >= 2 && transferred == s.reload/2 {
		raised |= c.raise(b.ch, s, FlagHTIF, CfgHTIE)
	}

	if s.cntr == 0 {
		raised |= c.raise(b.ch, s, FlagTCIF, CfgTCIE)

		if s.cfgr&CfgCIRC != 0 {
			s.cntr = s.reload
			s.pcur = s.paddr
			s.mcur = s.maddr
		}
	}

	return c.linesFor(b.ch, raised)
}

func (c *Controller) advance(s *channelState) {
	if s.cfgr&CfgPINC != 0 {
		s.pcur += uint32(decodeSize((s.cfgr & CfgPSizeMask) >> CfgPSizeShift))
	}

	if s.cfgr&CfgMINC != 0 {
		s.mcur += uint32(decodeSize((s.cfgr & CfgMSizeMask) >> CfgMSizeShift))
	}

	s.cntr--
}

func (c *Controller) raise(
	ch int,
	s *channelState,
	flag uint32,
	enable uint32,
) uint32 {
	c.intfr |= Flag(ch, flag|FlagGIF)

	if s.cfgr&enable != 0 {
		return flag
	}

	return 0
}

func (c *Controller) linesFor(ch int, raised uint32) []int {
	if raised == 0 {
		return nil
	}

	return []int{c.lines[ch-1]}
}

// ChannelState is a snapshot of the registers of a channel.
type ChannelState struct {
	Channel int
	CFGR    uint32
	CNTR    uint32
	PADDR   uint32
	MADDR   uint32
	Flags   uint32
}

// Snapshot returns the registers of every channel.
func (c *Controller) Snapshot() []ChannelState {
	c.Lock()
	defer c.Unlock()

	states := make([]ChannelState, NumChannels)
	for i, s := range c.channels {
		states[i] = ChannelState{
			Channel: i + 1,
			CFGR:    s.cfgr,
			CNTR:    s.cntr,
			PADDR:   s.paddr,
			MADDR:   s.maddr,
			Flags:   ChannelFlags(i+1, c.intfr),
		}
	}

	return states
}

func mustBeValidChannel(ch int) {
	if ch < 1 || ch > NumChannels {
		log.Panicf("invalid DMA channel %d", ch)
	}
}
