package mem

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// SRAM is a block of little-endian RAM. Buffers are handed out by a bump
// allocator and are never freed, so a buffer always outlives any transfer
// that uses it.
type SRAM struct {
	lock sync.Mutex
	name string
	base uint32
	data []byte
	next uint32
}

// NewSRAM creates size bytes of RAM starting at base.
func NewSRAM(name string, base uint32, size int) *SRAM {
	return &SRAM{
		name: name,
		base: base,
		data: make([]byte, size),
	}
}

// Name returns the name of the RAM.
func (m *SRAM) Name() string {
	return m.name
}

// Base returns the first address of the RAM.
func (m *SRAM) Base() uint32 {
	return m.base
}

// Size returns the capacity of the RAM in bytes.
func (m *SRAM) Size() int {
	return len(m.data)
}

// Free returns the number of bytes not yet allocated.
func (m *SRAM) Free() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.data) - int(m.next)
}

// Contains tells if the address is inside the RAM.
func (m *SRAM) Contains(addr uint32) bool {
	return addr >= m.base && uint64(addr) < uint64(m.base)+uint64(len(m.data))
}

// Read loads s bytes at addr.
func (m *SRAM) Read(s Size, addr uint32) (uint32, error) {
	if !m.covers(addr, int(s)) {
		return 0, &BusError{Addr: addr}
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	return m.load(s, addr-m.base), nil
}

// Write stores the low s bytes of value at addr.
func (m *SRAM) Write(s Size, addr uint32, value uint32) error {
	if !m.covers(addr, int(s)) {
		return &BusError{Addr: addr, Write: true}
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.store(s, addr-m.base, value)

	return nil
}

func (m *SRAM) load(s Size, off uint32) uint32 {
	switch s {
	case Byte:
		return uint32(m.data[off])
	case HalfWord:
		return uint32(binary.LittleEndian.Uint16(m.data[off:]))
	default:
		return binary.LittleEndian.Uint32(m.data[off:])
	}
}

func (m *SRAM) store(s Size, off uint32, value uint32) {
	switch s {
	case Byte:
		m.data[off] = byte(value)
	case HalfWord:
		binary.LittleEndian.PutUint16(m.data[off:], uint16(value))
	default:
		binary.LittleEndian.PutUint32(m.data[off:], value)
	}
}

func (m *SRAM) covers(addr uint32, n int) bool {
	if !m.Contains(addr) {
		return false
	}

	return int(addr-m.base)+n <= len(m.data)
}

// Alloc reserves size bytes aligned to align and returns them as a zeroed
// buffer.
func (m *SRAM) Alloc(size int, align int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid allocation size %d", size)
	}

	if align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("invalid alignment %d", align)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	a := uint32(align)
	start := (m.base + m.next + a - 1) &^ (a - 1)
	off := start - m.base

	if int(off)+size > len(m.data) {
		return nil, fmt.Errorf(
			"%s: out of memory, %d bytes requested, %d left",
			m.name, size, len(m.data)-int(m.next))
	}

	m.next = off + uint32(size)

	return &Buffer{ram: m, addr: start, size: size}, nil
}

// MustAlloc is like Alloc but panics on failure.
func (m *SRAM) MustAlloc(size int, align int) *Buffer {
	b, err := m.Alloc(size, align)
	if err != nil {
		panic(err)
	}

	return b
}
