package bridge

import (
	"encoding/binary"
	"math/bits"

	"github.com/rvhdl/rvbridge/emu"
)

// NumGPRs is the number of integer registers a GPR dump carries.
const NumGPRs = 32

// NumFPRs is the number of floating-point registers an FPR dump carries.
const NumFPRs = 32

// GetPC reads the program counter of the addressed hart.
func (b *Bridge) GetPC(hart int) (pc uint64, res Result) {
	res = b.withHart(hart, func(h *emu.Hart) Result {
		pc = h.PC()
		return ok()
	})
	return pc, res
}

// GetAllGPRs copies all 32 integer registers into out. out must hold at
// least NumGPRs entries.
func (b *Bridge) GetAllGPRs(hart int, out []uint64) Result {
	if len(out) < NumGPRs {
		return badArgument()
	}
	return b.withHart(hart, func(h *emu.Hart) Result {
		rf := h.RegFile()
		for i := 0; i < NumGPRs; i++ {
			out[i] = rf.Read(uint8(i))
		}
		return ok()
	})
}

// GetAllFPRs copies the raw bit patterns of all 32 floating-point
// registers into out. out must hold at least NumFPRs entries.
func (b *Bridge) GetAllFPRs(hart int, out []uint64) Result {
	if len(out) < NumFPRs {
		return badArgument()
	}
	return b.withHart(hart, func(h *emu.Hart) Result {
		rf := h.FPRegFile()
		for i := 0; i < NumFPRs; i++ {
			out[i] = rf.Read(uint8(i))
		}
		return ok()
	})
}

// GetCSR reads the CSR at addr. Reading an unimplemented CSR fails with
// CodeUnavailable rather than raising a fault.
func (b *Bridge) GetCSR(hart int, addr uint32) (val uint64, res Result) {
	res = b.withHart(hart, func(h *emu.Hart) Result {
		v, found := h.CSRs().Read(addr)
		if !found {
			return unavailable()
		}
		val = v
		return ok()
	})
	return val, res
}

// PutCSR writes the CSR at addr. Writes to unimplemented or read-only
// CSRs are dropped; the operation still succeeds so a scripted register
// restore never aborts mid-stream.
func (b *Bridge) PutCSR(hart int, addr uint32, val uint64) Result {
	return b.withHart(hart, func(h *emu.Hart) Result {
		h.CSRs().Write(addr, val)
		return ok()
	})
}

// GetAllVRegs serializes the whole vector register file into out as
// little-endian 64-bit words, register 0 first. It writes
// min(len(out), words-in-register-file) entries and returns the count
// written. A nil or empty out writes nothing and returns 0.
func (b *Bridge) GetAllVRegs(hart int, out []uint64) (n int, res Result) {
	res = b.withHart(hart, func(h *emu.Hart) Result {
		vu := h.VectorUnit()
		if vu == nil {
			return unavailable()
		}
		raw := vu.Bytes()
		total := (len(raw) + 7) / 8
		n = min(len(out), total)
		for i := 0; i < n; i++ {
			lo := i * 8
			hi := min(lo+8, len(raw))
			var word [8]byte
			copy(word[:], raw[lo:hi])
			out[i] = binary.LittleEndian.Uint64(word[:])
		}
		return ok()
	})
	return n, res
}

// GetVLEN reads the vector register width in bits.
func (b *Bridge) GetVLEN(hart int) (v uint64, res Result) {
	res = b.withVU(hart, func(vu *emu.VectorUnit) {
		v = uint64(vu.VLEN())
	})
	return v, res
}

// GetVLENB reads the vector register width in bytes.
func (b *Bridge) GetVLENB(hart int) (v uint64, res Result) {
	res = b.withVU(hart, func(vu *emu.VectorUnit) {
		v = vu.VLENB()
	})
	return v, res
}

// GetVxsat reads the fixed-point saturation flag.
func (b *Bridge) GetVxsat(hart int) (v uint64, res Result) {
	res = b.withVU(hart, func(vu *emu.VectorUnit) {
		v = vu.Vxsat()
	})
	return v, res
}

// GetVxrm reads the fixed-point rounding mode.
func (b *Bridge) GetVxrm(hart int) (v uint64, res Result) {
	res = b.withVU(hart, func(vu *emu.VectorUnit) {
		v = vu.Vxrm()
	})
	return v, res
}

// GetVstart reads the vector resumption index.
func (b *Bridge) GetVstart(hart int) (v uint64, res Result) {
	res = b.withVU(hart, func(vu *emu.VectorUnit) {
		v = vu.VStart()
	})
	return v, res
}

// GetVl reads the active vector length. If the vl CSR is not registered
// it falls back to the configuration's vlmax.
func (b *Bridge) GetVl(hart int) (v uint64, res Result) {
	res = b.withHart(hart, func(h *emu.Hart) Result {
		vu := h.VectorUnit()
		if vu == nil {
			return unavailable()
		}
		if val, found := h.CSRs().Read(emu.CSRVl); found {
			v = val
			return ok()
		}
		v = vu.VLMax()
		return ok()
	})
	return v, res
}

// GetVtype reads the raw vtype value. If the vtype CSR is not registered
// it reconstructs a value carrying only the SEW field; LMUL, vta, vma,
// and vill are lost in that path.
func (b *Bridge) GetVtype(hart int) (v uint64, res Result) {
	res = b.withHart(hart, func(h *emu.Hart) Result {
		vu := h.VectorUnit()
		if vu == nil {
			return unavailable()
		}
		if val, found := h.CSRs().Read(emu.CSRVtype); found {
			v = val
			return ok()
		}
		v = uint64(bits.TrailingZeros(uint(vu.VSEW()/8))) << 3
		return ok()
	})
	return v, res
}

// withVU is withHart narrowed to harts with a vector unit.
func (b *Bridge) withVU(hart int, fn func(vu *emu.VectorUnit)) Result {
	return b.withHart(hart, func(h *emu.Hart) Result {
		vu := h.VectorUnit()
		if vu == nil {
			return unavailable()
		}
		fn(vu)
		return ok()
	})
}
