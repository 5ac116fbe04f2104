// Package dmac simulates the DMA1 controller of a CH32V003: seven channels
// sharing one bus port, programmed through memory-mapped registers and
// reporting progress through flags and interrupt lines.
package dmac

// NumChannels is the number of channels of the controller.
const NumChannels = 7

// Register offsets, relative to the base of the controller.
const (
	INTFR  uint32 = 0x00
	INTFCR uint32 = 0x04

	channelBase   uint32 = 0x08
	channelStride uint32 = 0x14

	// WindowSize is the number of bytes the registers occupy.
	WindowSize = channelBase + NumChannels*channelStride
)

// Offsets inside a channel block.
const (
	offCFGR  uint32 = 0x00
	offCNTR  uint32 = 0x04
	offPADDR uint32 = 0x08
	offMADDR uint32 = 0x0c
)

// CFGR returns the offset of the configuration register of a channel.
func CFGR(ch int) uint32 {
	return channelBase + uint32(ch-1)*channelStride + offCFGR
}

// CNTR returns the offset of the count register of a channel.
func CNTR(ch int) uint32 {
	return channelBase + uint32(ch-1)*channelStride + offCNTR
}

// PADDR returns the offset of the peripheral address register of a channel.
func PADDR(ch int) uint32 {
	return channelBase + uint32(ch-1)*channelStride + offPADDR
}

// MADDR returns the offset of the memory address register of a channel.
func MADDR(ch int) uint32 {
	return channelBase + uint32(ch-1)*channelStride + offMADDR
}

// CFGR bits.
const (
	CfgEN      uint32 = 1 << 0
	CfgTCIE    uint32 = 1 << 1
	CfgHTIE    uint32 = 1 << 2
	CfgTEIE    uint32 = 1 << 3
	CfgDIR     uint32 = 1 << 4
	CfgCIRC    uint32 = 1 << 5
	CfgPINC    uint32 = 1 << 6
	CfgMINC    uint32 = 1 << 7
	CfgMEM2MEM uint32 = 1 << 14

	CfgPSizeShift = 8
	CfgMSizeShift = 10
	CfgPLShift    = 12

	CfgPSizeMask uint32 = 3 << CfgPSizeShift
	CfgMSizeMask uint32 = 3 << CfgMSizeShift
	CfgPLMask    uint32 = 3 << CfgPLShift

	// CfgIEMask covers all the interrupt enable bits.
	CfgIEMask = CfgTCIE | CfgHTIE | CfgTEIE
)

// Size encodings of PSIZE and MSIZE.
const (
	Size8  uint32 = 0
	Size16 uint32 = 1
	Size32 uint32 = 2
)

// Flags of one channel, before shifting into place.
const (
	FlagGIF  uint32 = 1 << 0
	FlagTCIF uint32 = 1 << 1
	FlagHTIF uint32 = 1 << 2
	FlagTEIF uint32 = 1 << 3

	flagsPerChannel = 4
	channelFlags    = FlagGIF | FlagTCIF | FlagHTIF | FlagTEIF
)

// Flag shifts a channel flag into its place in INTFR and INTFCR.
func Flag(ch int, f uint32) uint32 {
	return f << (uint(ch-1) * flagsPerChannel)
}

// ChannelFlags extracts the flags of a channel from an INTFR value.
func ChannelFlags(ch int, intfr uint32) uint32 {
	return (intfr >> (uint(ch-1) * flagsPerChannel)) & channelFlags
}
