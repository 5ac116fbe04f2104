package mem

import "fmt"

// BusError is returned when an access hits an address that no device
// decodes, or that the device refuses.
type BusError struct {
	Addr  uint32
	Write bool
}

func (e *BusError) Error() string {
	op := "read"
	if e.Write {
		op = "write"
	}

	return fmt.Sprintf("bus error: %s at 0x%08x", op, e.Addr)
}

// AlignmentError is returned when an address is not aligned to the access
// width.
type AlignmentError struct {
	Addr uint32
	Size Size
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("unaligned %s access at 0x%08x", e.Size, e.Addr)
}
