// Package emu provides a functional RISC-V simulation engine.
package emu

// RegFile represents the integer register file of one hart.
// X[0] is hardwired to zero.
type RegFile struct {
	// X holds general-purpose registers x0-x31.
	X [32]uint64

	// PC is the program counter.
	PC uint64
}

// Read reads a register value. Register 0 always reads as 0.
func (r *RegFile) Read(reg uint8) uint64 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// Write writes a value to a register. Writes to register 0 are ignored.
func (r *RegFile) Write(reg uint8, value uint64) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}

// FPRegFile represents the floating-point register file of one hart.
// Registers are stored as raw 64-bit patterns regardless of FLEN, so a
// single-precision value occupies the low 32 bits (NaN-boxed on write).
type FPRegFile struct {
	// F holds the raw bit patterns of f0-f31.
	F [32]uint64
}

// Read reads a register's raw bit pattern.
func (r *FPRegFile) Read(reg uint8) uint64 {
	if reg >= 32 {
		return 0
	}
	return r.F[reg]
}

// Write writes a raw 64-bit pattern to a register.
func (r *FPRegFile) Write(reg uint8, value uint64) {
	if reg >= 32 {
		return
	}
	r.F[reg] = value
}

// WriteSingle writes a 32-bit pattern, NaN-boxing the upper half.
func (r *FPRegFile) WriteSingle(reg uint8, value uint32) {
	r.Write(reg, 0xFFFFFFFF00000000|uint64(value))
}
