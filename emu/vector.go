package emu

// NumVRegs is the number of architectural vector registers.
const NumVRegs = 32

// vtype field extraction.
const (
	vtypeVlmulShift = 0
	vtypeVsewShift  = 3
	vtypeVtaShift   = 6
	vtypeVmaShift   = 7
)

// VectorUnit models the vector extension state of one hart: a byte-backed
// register file of 32 registers, each VLEN bits wide, plus the vector
// control/status fields.
type VectorUnit struct {
	vlen int // bits per register
	elen int // max element width in bits
	xlen int

	// regFile backs all 32 registers contiguously, register 0 first,
	// least-significant byte of each register first.
	regFile []byte

	vl     uint64
	vtype  uint64
	vstart uint64
	vxrm   uint64
	vxsat  uint64

	vsew   int
	vflmul float64
	vlmax  uint64
	vta    bool
	vma    bool
	vill   bool
}

// NewVectorUnit creates a vector unit with the given VLEN and ELEN in bits.
func NewVectorUnit(vlen, elen, xlen int) *VectorUnit {
	u := &VectorUnit{
		vlen: vlen,
		elen: elen,
		xlen: xlen,
	}
	u.Reset()
	return u
}

// Reset zeroes the register file and reverts to the illegal vtype
// configuration, as the hardware reset path does.
func (u *VectorUnit) Reset() {
	u.regFile = make([]byte, NumVRegs*u.VLENB())
	u.vstart = 0
	u.vxrm = 0
	u.vxsat = 0
	u.vtype = 0
	u.vlmax = 0
	// Default to an illegal configuration until the first vsetvl.
	u.SetVL(0, 0, 0, ^uint64(0))
}

// VLEN returns the register width in bits.
func (u *VectorUnit) VLEN() int { return u.vlen }

// VLENB returns the register width in bytes.
func (u *VectorUnit) VLENB() uint64 { return uint64(u.vlen) / 8 }

// VL returns the active vector length in elements.
func (u *VectorUnit) VL() uint64 { return u.vl }

// VLMax returns the maximum vector length for the current configuration.
func (u *VectorUnit) VLMax() uint64 { return u.vlmax }

// VType returns the raw vtype value.
func (u *VectorUnit) VType() uint64 { return u.vtype }

// VSEW returns the selected element width in bits.
func (u *VectorUnit) VSEW() int { return u.vsew }

// VStart returns the resumption element index.
func (u *VectorUnit) VStart() uint64 { return u.vstart }

// SetVStart sets the resumption element index, masked to VLEN-1.
func (u *VectorUnit) SetVStart(v uint64) { u.vstart = v & uint64(u.vlen-1) }

// Vxrm returns the fixed-point rounding mode.
func (u *VectorUnit) Vxrm() uint64 { return u.vxrm }

// SetVxrm sets the fixed-point rounding mode (2 bits).
func (u *VectorUnit) SetVxrm(v uint64) { u.vxrm = v & 0x3 }

// Vxsat returns the saturation flag.
func (u *VectorUnit) Vxsat() uint64 { return u.vxsat }

// SetVxsat sets the saturation flag (1 bit).
func (u *VectorUnit) SetVxsat(v uint64) { u.vxsat = v & 0x1 }

// Vcsr returns the combined vxrm/vxsat register (vxrm at bit 1).
func (u *VectorUnit) Vcsr() uint64 { return u.vxrm<<1 | u.vxsat }

// SetVcsr sets vxrm and vxsat from the combined register.
func (u *VectorUnit) SetVcsr(v uint64) {
	u.SetVxsat(v & 0x1)
	u.SetVxrm(v >> 1)
}

// Bytes returns the backing register file: 32 registers of VLENB bytes,
// register 0 first, least-significant byte first.
func (u *VectorUnit) Bytes() []byte { return u.regFile }

// SetVL applies a vsetvl-family configuration request and returns the new
// vl. rd and rs1 are the instruction's register fields, which select the
// AVL rule; avl is the requested vector length; newType is the requested
// vtype value.
func (u *VectorUnit) SetVL(rd, rs1 uint8, avl uint64, newType uint64) uint64 {
	if u.vtype != newType {
		oldVlmax := u.vlmax

		vlmul := int(int8((newType&0x7)<<5) >> 5)
		u.vsew = 8 << ((newType >> vtypeVsewShift) & 0x7)
		if vlmul >= 0 {
			u.vflmul = float64(uint64(1) << vlmul)
		} else {
			u.vflmul = 1.0 / float64(uint64(1)<<(-vlmul))
		}
		u.vlmax = uint64(float64(u.vlen/u.vsew) * u.vflmul)
		u.vta = (newType>>vtypeVtaShift)&1 != 0
		u.vma = (newType>>vtypeVmaShift)&1 != 0

		fractLimit := u.vflmul
		if fractLimit > 1 {
			fractLimit = 1
		}
		u.vill = !(u.vflmul >= 0.125 && u.vflmul <= 8) ||
			float64(u.vsew) > fractLimit*float64(u.elen) ||
			newType>>8 != 0 ||
			(rd == 0 && rs1 == 0 && oldVlmax != u.vlmax)

		if u.vill {
			u.vlmax = 0
			u.vtype = ^uint64(0) << (u.xlen - 1)
		} else {
			u.vtype = newType
		}
	}

	switch {
	case u.vlmax == 0:
		u.vl = 0
	case rd == 0 && rs1 == 0:
		// Retain the current vl.
	case rd != 0 && rs1 == 0:
		u.vl = u.vlmax
	default:
		u.vl = min(avl, u.vlmax)
	}

	u.vstart = 0
	return u.vl
}

// ElemGet reads element idx of register reg at the current SEW. Elements
// beyond one register's width spill into the following register, matching
// the contiguous register-file layout.
func (u *VectorUnit) ElemGet(reg uint8, idx uint64) uint64 {
	width := uint64(u.vsew) / 8
	off := uint64(reg)*u.VLENB() + idx*width
	if off+width > uint64(len(u.regFile)) {
		return 0
	}
	var v uint64
	for i := uint64(0); i < width; i++ {
		v |= uint64(u.regFile[off+i]) << (8 * i)
	}
	return v
}

// ElemSet writes element idx of register reg at the current SEW.
func (u *VectorUnit) ElemSet(reg uint8, idx uint64, v uint64) {
	width := uint64(u.vsew) / 8
	off := uint64(reg)*u.VLENB() + idx*width
	if off+width > uint64(len(u.regFile)) {
		return
	}
	for i := uint64(0); i < width; i++ {
		u.regFile[off+i] = byte(v >> (8 * i))
	}
}
