package dma

import (
	"fmt"

	"github.com/simplehal/simplehal/dmac"
)

// ChannelID identifies one of the hardware channels.
type ChannelID uint8

// The channels of the controller.
const (
	Channel1 ChannelID = iota + 1
	Channel2
	Channel3
	Channel4
	Channel5
	Channel6
	Channel7
)

// NumChannels is the number of hardware channels.
const NumChannels = dmac.NumChannels

// Valid tells if c names an existing channel.
func (c ChannelID) Valid() bool {
	return c >= Channel1 && c <= Channel7
}

func (c ChannelID) String() string {
	return fmt.Sprintf("CH%d", uint8(c))
}

// Channels returns every channel in ascending order.
func Channels() []ChannelID {
	ids := make([]ChannelID, 0, NumChannels)
	for c := Channel1; c <= Channel7; c++ {
		ids = append(ids, c)
	}

	return ids
}

// PeripheralRequest names a peripheral request line that is hard-wired to
// one channel.
type PeripheralRequest uint8

// Peripheral requests.
const (
	RequestADC1 PeripheralRequest = iota + 1
	RequestSPI1RX
	RequestSPI1TX
	RequestUSART1TX
	RequestUSART1RX
	RequestI2C1TX
	RequestI2C1RX
)

func (r PeripheralRequest) String() string {
	switch r {
	case RequestADC1:
		return "ADC1"
	case RequestSPI1RX:
		return "SPI1_RX"
	case RequestSPI1TX:
		return "SPI1_TX"
	case RequestUSART1TX:
		return "USART1_TX"
	case RequestUSART1RX:
		return "USART1_RX"
	case RequestI2C1TX:
		return "I2C1_TX"
	case RequestI2C1RX:
		return "I2C1_RX"
	default:
		return fmt.Sprintf("request(%d)", uint8(r))
	}
}

// FirstIRQLine is the interrupt line of Channel1. The other channels follow
// in order.
const FirstIRQLine = 22

type channelInfo struct {
	cfgr, cntr, paddr, maddr uint32
	line                     int
	request                  PeripheralRequest
}

var registry = func() [NumChannels]channelInfo {
	var r [NumChannels]channelInfo
	for i := range r {
		ch := i + 1
		r[i] = channelInfo{
			cfgr:    dmac.CFGR(ch),
			cntr:    dmac.CNTR(ch),
			paddr:   dmac.PADDR(ch),
			maddr:   dmac.MADDR(ch),
			line:    FirstIRQLine + i,
			request: PeripheralRequest(ch),
		}
	}

	return r
}()

func info(c ChannelID) *channelInfo {
	return &registry[c-1]
}

// IRQLine returns the interrupt line of the channel, or -1 for a channel
// that does not exist.
func (c ChannelID) IRQLine() int {
	if !c.Valid() {
		return -1
	}

	return info(c).line
}

// Request returns the peripheral request wired to the channel, or zero for a
// channel that does not exist.
func (c ChannelID) Request() PeripheralRequest {
	if !c.Valid() {
		return 0
	}

	return info(c).request
}

// RequestChannel returns the channel that serves a peripheral request.
func RequestChannel(r PeripheralRequest) (ChannelID, error) {
	for i := range registry {
		if registry[i].request == r {
			return ChannelID(i + 1), nil
		}
	}

	return 0, fmt.Errorf("%w: no channel serves %s", ErrInvalidConfig, r)
}

func channelOfLine(line int) (ChannelID, bool) {
	c := ChannelID(line - FirstIRQLine + 1)
	return c, c.Valid()
}

func mustBeValid(c ChannelID) error {
	if !c.Valid() {
		return fmt.Errorf("%w: channel %d does not exist", ErrInvalidConfig, c)
	}

	return nil
}
