package mem

import "fmt"

// Size is the width of a single bus access.
type Size uint8

// Access widths supported by the bus.
const (
	Byte     Size = 1
	HalfWord Size = 2
	Word     Size = 4
)

// Valid tells if s is one of the supported widths.
func (s Size) Valid() bool {
	return s == Byte || s == HalfWord || s == Word
}

// Mask returns the bits that an access of this width carries.
func (s Size) Mask() uint32 {
	switch s {
	case Byte:
		return 0xff
	case HalfWord:
		return 0xffff
	default:
		return 0xffffffff
	}
}

// Aligned tells if addr is a multiple of the width.
func (s Size) Aligned(addr uint32) bool {
	return addr%uint32(s) == 0
}

func (s Size) String() string {
	switch s {
	case Byte:
		return "byte"
	case HalfWord:
		return "half-word"
	case Word:
		return "word"
	default:
		return fmt.Sprintf("size(%d)", uint8(s))
	}
}
