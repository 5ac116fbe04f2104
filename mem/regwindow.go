package mem

// RegisterFile is a block of 32-bit registers addressed by byte offset.
// Loads and stores may have side effects, like clearing a flag when a data
// register is read.
type RegisterFile interface {
	Load(offset uint32) uint32
	Store(offset uint32, value uint32)
}

// RegisterWindow maps a RegisterFile onto the bus. Narrow reads return the
// addressed lanes of the containing word. Narrow writes store the value
// shifted into its lanes with the other lanes zero.
type RegisterWindow struct {
	name string
	base uint32
	size uint32
	regs RegisterFile
}

// NewRegisterWindow creates a window of size bytes at base.
func NewRegisterWindow(
	name string,
	base, size uint32,
	regs RegisterFile,
) *RegisterWindow {
	return &RegisterWindow{
		name: name,
		base: base,
		size: size,
		regs: regs,
	}
}

// Name returns the name of the window.
func (w *RegisterWindow) Name() string {
	return w.name
}

// Base returns the first address of the window.
func (w *RegisterWindow) Base() uint32 {
	return w.base
}

// Contains tells if the address is inside the window.
func (w *RegisterWindow) Contains(addr uint32) bool {
	return addr >= w.base && addr-w.base < w.size
}

// Read loads the register that holds addr.
func (w *RegisterWindow) Read(s Size, addr uint32) (uint32, error) {
	if !w.Contains(addr) {
		return 0, &BusError{Addr: addr}
	}

	off := addr - w.base
	shift := (off & 3) * 8
	v := w.regs.Load(off &^ 3)

	return (v >> shift) & s.Mask(), nil
}

// Write stores into the register that holds addr.
func (w *RegisterWindow) Write(s Size, addr uint32, value uint32) error {
	if !w.Contains(addr) {
		return &BusError{Addr: addr, Write: true}
	}

	off := addr - w.base
	shift := (off & 3) * 8
	w.regs.Store(off&^3, (value&s.Mask())<<shift)

	return nil
}
