// Package mem provides the address space of the simulated microcontroller: a
// bus that routes accesses to memory-mapped devices, SRAM, and buffers carved
// out of SRAM.
package mem

import (
	"log"
	"sync"
)

// Device is a memory-mapped slave on the bus.
type Device interface {
	// Name identifies the device in logs.
	Name() string

	// Contains tells if the device decodes the address.
	Contains(addr uint32) bool

	// Read returns the value at addr, right aligned.
	Read(s Size, addr uint32) (uint32, error)

	// Write stores the low s bytes of value at addr.
	Write(s Size, addr uint32, value uint32) error
}

// Bus routes accesses to the device that decodes the address. The bus checks
// alignment before looking for a device. It can be used from several
// goroutines; devices guard their own state.
type Bus struct {
	lock    sync.RWMutex
	devices []Device
}

// NewBus creates a bus with the given devices attached.
func NewBus(devices ...Device) *Bus {
	b := &Bus{}
	for _, d := range devices {
		b.Attach(d)
	}

	return b
}

// Attach maps a device onto the bus.
func (b *Bus) Attach(d Device) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, existing := range b.devices {
		if existing.Name() == d.Name() {
			log.Panicf("device %s attached twice", d.Name())
		}
	}

	b.devices = append(b.devices, d)
}

// Devices returns the attached devices in attachment order.
func (b *Bus) Devices() []Device {
	b.lock.RLock()
	defer b.lock.RUnlock()

	devices := make([]Device, len(b.devices))
	copy(devices, b.devices)

	return devices
}

// Read performs a read access.
func (b *Bus) Read(s Size, addr uint32) (uint32, error) {
	if !s.Valid() || !s.Aligned(addr) {
		return 0, &AlignmentError{Addr: addr, Size: s}
	}

	d := b.find(addr)
	if d == nil {
		return 0, &BusError{Addr: addr}
	}

	return d.Read(s, addr)
}

// Write performs a write access.
func (b *Bus) Write(s Size, addr uint32, value uint32) error {
	if !s.Valid() || !s.Aligned(addr) {
		return &AlignmentError{Addr: addr, Size: s}
	}

	d := b.find(addr)
	if d == nil {
		return &BusError{Addr: addr, Write: true}
	}

	return d.Write(s, addr, value&s.Mask())
}

func (b *Bus) find(addr uint32) Device {
	b.lock.RLock()
	defer b.lock.RUnlock()

	for _, d := range b.devices {
		if d.Contains(addr) {
			return d
		}
	}

	return nil
}
