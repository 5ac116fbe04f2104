// Package board assembles a simulated CH32V003: SRAM, the DMA controller,
// the interrupt controller and the ADC, USART and SPI peripherals, all on one
// bus at their datasheet addresses, with a DMA driver on top.
package board

import (
	"errors"
	"log"
	"sync"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/dmac"
	"github.com/simplehal/simplehal/irq"
	"github.com/simplehal/simplehal/mem"
	"github.com/simplehal/simplehal/periph/adc"
	"github.com/simplehal/simplehal/periph/spi"
	"github.com/simplehal/simplehal/periph/usart"
	"github.com/simplehal/simplehal/sim"
)

// Bus addresses.
const (
	SRAMBase  uint32 = 0x20000000
	DMABase   uint32 = 0x40020000
	ADCBase   uint32 = 0x40012400
	SPIBase   uint32 = 0x40013000
	USARTBase uint32 = 0x40013800
)

// ErrNotLockstep is returned when stepping a free-running board.
var ErrNotLockstep = errors.New("board is not in lockstep mode")

// A Board is an assembled simulated microcontroller.
type Board struct {
	Config Config

	Engine sim.Engine
	RAM    *mem.SRAM
	Bus    *mem.Bus
	PFIC   *irq.Controller
	DMAHW  *dmac.Controller
	ADC    *adc.ADC
	USART  *usart.USART
	SPI    *spi.SPI
	DMA    *dma.Controller

	serial  *sim.SerialEngine
	free    *sim.FreeRunningEngine
	runOnce sync.Once
	runDone chan error

	closeOnce sync.Once
	closeErr  error
}

// New builds a board.
func New(cfg Config) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Board{Config: cfg}

	var yield func()
	switch cfg.Mode {
	case Lockstep:
		b.serial = sim.NewSerialEngine()
		b.Engine = b.serial
		yield = func() { b.serial.Step() }
	case FreeRunning:
		b.free = sim.NewFreeRunningEngine().WithTimeScale(cfg.TimeScale)
		b.Engine = b.free
	}

	b.RAM = mem.NewSRAM("SRAM", SRAMBase, cfg.SRAMSize)
	b.Bus = mem.NewBus(b.RAM)
	b.PFIC = irq.NewController("PFIC")

	b.DMAHW = dmac.MakeBuilder().
		WithEngine(b.Engine).
		WithFreq(cfg.BusFreq).
		WithBus(b.Bus).
		WithInterruptController(b.PFIC, dma.FirstIRQLine).
		Build("DMA1HW")

	b.ADC = adc.MakeBuilder().
		WithEngine(b.Engine).
		WithFreq(cfg.BusFreq).
		WithPrescaler(cfg.ADCPrescaler).
		WithDMA(b.DMAHW).
		WithBase(ADCBase).
		Build("ADC1")

	b.USART = usart.MakeBuilder().
		WithEngine(b.Engine).
		WithFreq(cfg.BusFreq).
		WithBaudRate(cfg.USARTBaud).
		WithDMA(b.DMAHW).
		WithBase(USARTBase).
		Build("USART1")
	b.USART.SetLoopback(cfg.USARTLoopback)
	b.USART.Enable()

	b.SPI = spi.MakeBuilder().
		WithEngine(b.Engine).
		WithFreq(cfg.BusFreq).
		WithPrescaler(cfg.SPIPrescaler).
		WithDMA(b.DMAHW).
		WithBase(SPIBase).
		Build("SPI1")
	b.SPI.Enable()

	b.Bus.Attach(mem.NewRegisterWindow("DMA1", DMABase, dmac.WindowSize, b.DMAHW))
	b.Bus.Attach(mem.NewRegisterWindow("ADC1", ADCBase, adc.WindowSize, b.ADC))
	b.Bus.Attach(mem.NewRegisterWindow("SPI1", SPIBase, spi.WindowSize, b.SPI))
	b.Bus.Attach(mem.NewRegisterWindow("USART1", USARTBase, usart.WindowSize, b.USART))

	b.connectRequests()

	builder := dma.MakeBuilder().
		WithRegisters(busRegisters{bus: b.Bus, base: DMABase}).
		WithInterruptController(b.PFIC)
	if yield != nil {
		builder = builder.WithYield(yield)
	}
	if cfg.FillSlots {
		fill, err := b.RAM.Alloc(dma.NumChannels, 4)
		if err != nil {
			return nil, err
		}
		builder = builder.WithFillSlots(fill)
	}
	b.DMA = builder.Build("DMA1")

	return b, nil
}

func (b *Board) connectRequests() {
	b.DMAHW.ConnectRequest(int(dma.Channel1), b.ADC)
	b.DMAHW.ConnectRequest(int(dma.Channel2), b.SPI.RxRequest())
	b.DMAHW.ConnectRequest(int(dma.Channel3), b.SPI.TxRequest())
	b.DMAHW.ConnectRequest(int(dma.Channel4), b.USART.TxRequest())
	b.DMAHW.ConnectRequest(int(dma.Channel5), b.USART.RxRequest())
}

// Components returns the simulated hardware blocks.
func (b *Board) Components() []sim.Named {
	return []sim.Named{b.DMAHW, b.ADC, b.USART, b.SPI, b.PFIC, b.RAM}
}

// Now returns the simulated time.
func (b *Board) Now() sim.VTimeInSec {
	return b.Engine.CurrentTime()
}

// Step handles one event of a lockstep board. It returns false when nothing
// is left to do.
func (b *Board) Step() (bool, error) {
	if b.serial == nil {
		return false, ErrNotLockstep
	}

	return b.serial.Step(), nil
}

// RunFor lets a lockstep board run for d simulated seconds.
func (b *Board) RunFor(d sim.VTimeInSec) error {
	if b.serial == nil {
		return ErrNotLockstep
	}

	b.serial.RunUntil(b.serial.CurrentTime() + d)

	return nil
}

// Drain runs a lockstep board until nothing is left to do.
func (b *Board) Drain() error {
	if b.serial == nil {
		return ErrNotLockstep
	}

	return b.serial.Run()
}

// Start lets a free-running board run on its own goroutine. It does nothing
// on a lockstep board.
func (b *Board) Start() {
	if b.free == nil {
		return
	}

	b.runOnce.Do(func() {
		b.runDone = make(chan error, 1)
		go func() {
			b.runDone <- b.free.Run()
		}()
	})
}

// Close stops a free-running board and waits for its goroutine to end.
// Later calls return the result of the first.
func (b *Board) Close() error {
	if b.free == nil || b.runDone == nil {
		return nil
	}

	b.closeOnce.Do(func() {
		b.free.Stop()
		b.closeErr = <-b.runDone
	})

	return b.closeErr
}

// busRegisters reaches the DMA registers through the bus, as the CPU would.
type busRegisters struct {
	bus  *mem.Bus
	base uint32
}

func (r busRegisters) Load(offset uint32) uint32 {
	v, err := r.bus.Read(mem.Word, r.base+offset)
	if err != nil {
		log.Panic(err)
	}

	return v
}

func (r busRegisters) Store(offset uint32, value uint32) {
	if err := r.bus.Write(mem.Word, r.base+offset, value); err != nil {
		log.Panic(err)
	}
}
