package emu

import (
	"errors"
	"fmt"
	"io"
)

// Memory access errors.
var (
	ErrUnmappedAddress = errors.New("unmapped physical address")
	ErrDeviceOverlap   = errors.New("device overlaps an existing mapping")
)

// MaxRAMSize is the largest backing allocation a single RAM region may
// request. Larger requests fail at construction rather than exhausting the
// host.
const MaxRAMSize = 64 << 30 // 64 GiB

// Device is a memory-mapped device on the system bus. The device set is
// closed: RAM regions and the console sink are the only variants.
type Device interface {
	// Base returns the first physical address the device responds to.
	Base() uint64
	// Size returns the length of the device's address window in bytes.
	Size() uint64
	// Read reads size bytes (1, 2, 4, or 8) at addr, little-endian.
	Read(addr uint64, size int) (uint64, error)
	// Write writes size bytes at addr, little-endian.
	Write(addr uint64, size int, v uint64) error
}

// RAM is a byte-addressable memory region mapped at a fixed base address.
type RAM struct {
	base uint64
	data []byte
}

// NewRAM allocates a RAM region of the given size mapped at base.
func NewRAM(base, size uint64) (*RAM, error) {
	if size == 0 {
		return nil, fmt.Errorf("RAM size must be non-zero")
	}
	if size > MaxRAMSize {
		return nil, fmt.Errorf("RAM size 0x%X exceeds limit 0x%X", size, uint64(MaxRAMSize))
	}
	if base+size < base {
		return nil, fmt.Errorf("RAM region [0x%X, +0x%X) wraps the address space", base, size)
	}
	return &RAM{base: base, data: make([]byte, size)}, nil
}

// Base returns the region's base physical address.
func (r *RAM) Base() uint64 { return r.base }

// Size returns the region's length in bytes.
func (r *RAM) Size() uint64 { return uint64(len(r.data)) }

// Read reads a little-endian value of the given byte size.
func (r *RAM) Read(addr uint64, size int) (uint64, error) {
	off := addr - r.base
	if off+uint64(size) > uint64(len(r.data)) {
		return 0, fmt.Errorf("%w: 0x%X", ErrUnmappedAddress, addr)
	}
	var v uint64
	for i := 0; i < size; i++ {
		v |= uint64(r.data[off+uint64(i)]) << (8 * i)
	}
	return v, nil
}

// Write writes a little-endian value of the given byte size.
func (r *RAM) Write(addr uint64, size int, v uint64) error {
	off := addr - r.base
	if off+uint64(size) > uint64(len(r.data)) {
		return fmt.Errorf("%w: 0x%X", ErrUnmappedAddress, addr)
	}
	for i := 0; i < size; i++ {
		r.data[off+uint64(i)] = byte(v >> (8 * i))
	}
	return nil
}

// consoleSize is the size of the console device's address window.
const consoleSize = 0x1000

// Console is a write-only byte sink for simulated character output.
// A store to its base address emits one byte to the underlying writer.
type Console struct {
	base uint64
	out  io.Writer
}

// NewConsole creates a console device mapped at base, writing to out.
func NewConsole(base uint64, out io.Writer) *Console {
	return &Console{base: base, out: out}
}

// Base returns the console's base physical address.
func (c *Console) Base() uint64 { return c.base }

// Size returns the console's address window length.
func (c *Console) Size() uint64 { return consoleSize }

// Read always returns 0; the console has no readable state.
func (c *Console) Read(addr uint64, size int) (uint64, error) {
	return 0, nil
}

// Write emits the low byte of v to the console writer.
func (c *Console) Write(addr uint64, size int, v uint64) error {
	if c.out == nil {
		return nil
	}
	_, err := c.out.Write([]byte{byte(v)})
	return err
}

// Bus routes physical memory accesses to mapped devices.
type Bus struct {
	devices []Device
}

// NewBus creates an empty system bus.
func NewBus() *Bus {
	return &Bus{}
}

// Map attaches a device to the bus. Overlapping mappings are rejected.
func (b *Bus) Map(d Device) error {
	for _, other := range b.devices {
		if d.Base() < other.Base()+other.Size() && other.Base() < d.Base()+d.Size() {
			return fmt.Errorf("%w: [0x%X, +0x%X)", ErrDeviceOverlap, d.Base(), d.Size())
		}
	}
	b.devices = append(b.devices, d)
	return nil
}

func (b *Bus) find(addr uint64, size int) Device {
	for _, d := range b.devices {
		if addr >= d.Base() && addr+uint64(size) <= d.Base()+d.Size() {
			return d
		}
	}
	return nil
}

// Read reads a little-endian value of the given byte size from the bus.
func (b *Bus) Read(addr uint64, size int) (uint64, error) {
	d := b.find(addr, size)
	if d == nil {
		return 0, fmt.Errorf("%w: 0x%X", ErrUnmappedAddress, addr)
	}
	return d.Read(addr, size)
}

// Write writes a little-endian value of the given byte size to the bus.
func (b *Bus) Write(addr uint64, size int, v uint64) error {
	d := b.find(addr, size)
	if d == nil {
		return fmt.Errorf("%w: 0x%X", ErrUnmappedAddress, addr)
	}
	return d.Write(addr, size, v)
}

// CopyTo copies a byte image onto the bus starting at addr. It is used for
// payload loading, not simulated stores.
func (b *Bus) CopyTo(addr uint64, data []byte) error {
	for i, by := range data {
		if err := b.Write(addr+uint64(i), 1, uint64(by)); err != nil {
			return err
		}
	}
	return nil
}
