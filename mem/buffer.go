package mem

import (
	"encoding/binary"
	"fmt"
	"io"
)

// A Buffer is a range of SRAM that both the CPU and the DMA controller can
// reach. The CPU side goes through the methods below, the DMA side uses the
// bus address returned by Addr.
type Buffer struct {
	ram  *SRAM
	addr uint32
	size int
}

// Addr returns the bus address of the first byte.
func (b *Buffer) Addr() uint32 {
	return b.addr
}

// Len returns the size of the buffer in bytes.
func (b *Buffer) Len() int {
	return b.size
}

// AddrOf returns the bus address of element i of width s.
func (b *Buffer) AddrOf(s Size, i int) uint32 {
	return b.addr + uint32(i)*uint32(s)
}

// ReadAt copies bytes starting at offset off into p.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(b.size) {
		return 0, fmt.Errorf("offset %d outside buffer of %d bytes", off, b.size)
	}

	b.ram.lock.Lock()
	start := int64(b.addr-b.ram.base) + off
	n := copy(p, b.ram.data[start:int64(b.addr-b.ram.base)+int64(b.size)])
	b.ram.lock.Unlock()

	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteAt copies p into the buffer starting at offset off.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(b.size) {
		return 0, fmt.Errorf(
			"writing %d bytes at %d overflows buffer of %d bytes",
			len(p), off, b.size)
	}

	b.ram.lock.Lock()
	start := int64(b.addr-b.ram.base) + off
	n := copy(b.ram.data[start:], p)
	b.ram.lock.Unlock()

	return n, nil
}

// Bytes returns a copy of the whole buffer.
func (b *Buffer) Bytes() []byte {
	p := make([]byte, b.size)
	_, _ = b.ReadAt(p, 0)

	return p
}

// Fill sets every byte of the buffer to v.
func (b *Buffer) Fill(v byte) {
	b.ram.lock.Lock()
	defer b.ram.lock.Unlock()

	start := b.addr - b.ram.base
	for i := 0; i < b.size; i++ {
		b.ram.data[int(start)+i] = v
	}
}

// Elem returns element i of width s.
func (b *Buffer) Elem(s Size, i int) uint32 {
	b.mustHold(s, i)

	b.ram.lock.Lock()
	defer b.ram.lock.Unlock()

	return b.ram.load(s, b.AddrOf(s, i)-b.ram.base)
}

// SetElem stores v as element i of width s.
func (b *Buffer) SetElem(s Size, i int, v uint32) {
	b.mustHold(s, i)

	b.ram.lock.Lock()
	defer b.ram.lock.Unlock()

	b.ram.store(s, b.AddrOf(s, i)-b.ram.base, v)
}

// Uint16s returns the first n half-words of the buffer.
func (b *Buffer) Uint16s(n int) []uint16 {
	raw := make([]byte, 2*n)
	_, _ = b.ReadAt(raw, 0)

	out := make([]uint16, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}

	return out
}

func (b *Buffer) mustHold(s Size, i int) {
	if i < 0 || (i+1)*int(s) > b.size {
		panic(fmt.Sprintf(
			"element %d of %s outside buffer of %d bytes", i, s, b.size))
	}
}
