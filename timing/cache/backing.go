package cache

import (
	"github.com/rvhdl/rvbridge/emu"
)

// BusBacking adapts the engine's system bus to the BackingStore interface
// so cache refills read the same bytes the hart executes.
type BusBacking struct {
	bus *emu.Bus
}

// NewBusBacking creates a backing store over the given bus.
func NewBusBacking(bus *emu.Bus) *BusBacking {
	return &BusBacking{bus: bus}
}

// Read fetches size bytes from the bus. Unmapped bytes read as zero.
func (b *BusBacking) Read(addr uint64, size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		v, err := b.bus.Read(addr+uint64(i), 1)
		if err != nil {
			continue
		}
		data[i] = byte(v)
	}
	return data
}

// Write stores bytes to the bus. Unmapped bytes are dropped.
func (b *BusBacking) Write(addr uint64, data []byte) {
	for i, by := range data {
		_ = b.bus.Write(addr+uint64(i), 1, uint64(by))
	}
}
