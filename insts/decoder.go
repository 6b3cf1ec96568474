package insts

// Base opcode fields (bits [6:0]).
const (
	opcodeLUI      = 0x37
	opcodeAUIPC    = 0x17
	opcodeJAL      = 0x6F
	opcodeJALR     = 0x67
	opcodeBranch   = 0x63
	opcodeLoad     = 0x03
	opcodeStore    = 0x23
	opcodeOpImm    = 0x13
	opcodeOp       = 0x33
	opcodeOpImm32  = 0x1B
	opcodeOp32     = 0x3B
	opcodeMiscMem  = 0x0F
	opcodeSystem   = 0x73
	opcodeLoadFP   = 0x07
	opcodeStoreFP  = 0x27
	opcodeOpFP     = 0x53
	opcodeOpVector = 0x57
)

// Decoder decodes RISC-V machine code into Instruction structs.
type Decoder struct{}

// NewDecoder creates a new RISC-V instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a single 32-bit instruction word.
// Unrecognized encodings return an Instruction with Op == OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Raw: word,
		Rd:  uint8((word >> 7) & 0x1F),
		Rs1: uint8((word >> 15) & 0x1F),
		Rs2: uint8((word >> 20) & 0x1F),
	}

	switch word & 0x7F {
	case opcodeLUI:
		inst.Op, inst.Format, inst.Imm = OpLUI, FormatU, immU(word)
	case opcodeAUIPC:
		inst.Op, inst.Format, inst.Imm = OpAUIPC, FormatU, immU(word)
	case opcodeJAL:
		inst.Op, inst.Format, inst.Imm = OpJAL, FormatJ, immJ(word)
	case opcodeJALR:
		inst.Op, inst.Format, inst.Imm = OpJALR, FormatI, immI(word)
	case opcodeBranch:
		d.decodeBranch(word, inst)
	case opcodeLoad:
		d.decodeLoad(word, inst)
	case opcodeStore:
		d.decodeStore(word, inst)
	case opcodeOpImm:
		d.decodeOpImm(word, inst)
	case opcodeOp:
		d.decodeOp(word, inst)
	case opcodeOpImm32:
		d.decodeOpImm32(word, inst)
	case opcodeOp32:
		d.decodeOp32(word, inst)
	case opcodeMiscMem:
		inst.Op, inst.Format = OpFENCE, FormatSystem
	case opcodeSystem:
		d.decodeSystem(word, inst)
	case opcodeLoadFP:
		d.decodeLoadFP(word, inst)
	case opcodeStoreFP:
		d.decodeStoreFP(word, inst)
	case opcodeOpFP:
		d.decodeOpFP(word, inst)
	case opcodeOpVector:
		d.decodeVector(word, inst)
	}

	return inst
}

func (d *Decoder) decodeBranch(word uint32, inst *Instruction) {
	ops := [8]Op{OpBEQ, OpBNE, OpUnknown, OpUnknown, OpBLT, OpBGE, OpBLTU, OpBGEU}
	op := ops[funct3(word)]
	if op == OpUnknown {
		return
	}
	inst.Op, inst.Format, inst.Imm = op, FormatB, immB(word)
}

func (d *Decoder) decodeLoad(word uint32, inst *Instruction) {
	ops := [8]Op{OpLB, OpLH, OpLW, OpLD, OpLBU, OpLHU, OpLWU, OpUnknown}
	op := ops[funct3(word)]
	if op == OpUnknown {
		return
	}
	inst.Op, inst.Format, inst.Imm = op, FormatI, immI(word)
}

func (d *Decoder) decodeStore(word uint32, inst *Instruction) {
	ops := [8]Op{OpSB, OpSH, OpSW, OpSD, OpUnknown, OpUnknown, OpUnknown, OpUnknown}
	op := ops[funct3(word)]
	if op == OpUnknown {
		return
	}
	inst.Op, inst.Format, inst.Imm = op, FormatS, immS(word)
}

func (d *Decoder) decodeOpImm(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Imm = immI(word)
	switch funct3(word) {
	case 0:
		inst.Op = OpADDI
	case 1:
		if (word >> 26) != 0 {
			inst.Op = OpUnknown
			return
		}
		inst.Op = OpSLLI
		inst.Imm = int64((word >> 20) & 0x3F)
	case 2:
		inst.Op = OpSLTI
	case 3:
		inst.Op = OpSLTIU
	case 4:
		inst.Op = OpXORI
	case 5:
		shamt := int64((word >> 20) & 0x3F)
		switch word >> 26 {
		case 0x00:
			inst.Op, inst.Imm = OpSRLI, shamt
		case 0x10:
			inst.Op, inst.Imm = OpSRAI, shamt
		}
	case 6:
		inst.Op = OpORI
	case 7:
		inst.Op = OpANDI
	}
}

func (d *Decoder) decodeOp(word uint32, inst *Instruction) {
	inst.Format = FormatR
	f3 := funct3(word)
	switch word >> 25 {
	case 0x00:
		ops := [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}
		inst.Op = ops[f3]
	case 0x20:
		switch f3 {
		case 0:
			inst.Op = OpSUB
		case 5:
			inst.Op = OpSRA
		}
	case 0x01:
		ops := [8]Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}
		inst.Op = ops[f3]
	}
}

func (d *Decoder) decodeOpImm32(word uint32, inst *Instruction) {
	inst.Format = FormatI
	switch funct3(word) {
	case 0:
		inst.Op, inst.Imm = OpADDIW, immI(word)
	case 1:
		if (word >> 25) == 0x00 {
			inst.Op, inst.Imm = OpSLLIW, int64((word>>20)&0x1F)
		}
	case 5:
		shamt := int64((word >> 20) & 0x1F)
		switch word >> 25 {
		case 0x00:
			inst.Op, inst.Imm = OpSRLIW, shamt
		case 0x20:
			inst.Op, inst.Imm = OpSRAIW, shamt
		}
	}
}

func (d *Decoder) decodeOp32(word uint32, inst *Instruction) {
	inst.Format = FormatR
	f3 := funct3(word)
	switch word >> 25 {
	case 0x00:
		switch f3 {
		case 0:
			inst.Op = OpADDW
		case 1:
			inst.Op = OpSLLW
		case 5:
			inst.Op = OpSRLW
		}
	case 0x20:
		switch f3 {
		case 0:
			inst.Op = OpSUBW
		case 5:
			inst.Op = OpSRAW
		}
	case 0x01:
		switch f3 {
		case 0:
			inst.Op = OpMULW
		case 4:
			inst.Op = OpDIVW
		case 5:
			inst.Op = OpDIVUW
		case 6:
			inst.Op = OpREMW
		case 7:
			inst.Op = OpREMUW
		}
	}
}

func (d *Decoder) decodeSystem(word uint32, inst *Instruction) {
	f3 := funct3(word)
	if f3 == 0 {
		inst.Format = FormatSystem
		switch word >> 20 {
		case 0x000:
			inst.Op = OpECALL
		case 0x001:
			inst.Op = OpEBREAK
		case 0x302:
			inst.Op = OpMRET
		case 0x105:
			inst.Op = OpWFI
		}
		return
	}

	inst.Format = FormatCSR
	inst.CSR = word >> 20
	ops := [8]Op{OpUnknown, OpCSRRW, OpCSRRS, OpCSRRC, OpUnknown, OpCSRRWI, OpCSRRSI, OpCSRRCI}
	inst.Op = ops[f3]
	if f3 >= 5 {
		// Immediate forms carry a 5-bit zero-extended immediate in the
		// rs1 field.
		inst.Imm = int64(inst.Rs1)
	}
}

func (d *Decoder) decodeLoadFP(word uint32, inst *Instruction) {
	switch funct3(word) {
	case 2:
		inst.Op = OpFLW
	case 3:
		inst.Op = OpFLD
	default:
		return
	}
	inst.Format, inst.Imm = FormatI, immI(word)
}

func (d *Decoder) decodeStoreFP(word uint32, inst *Instruction) {
	switch funct3(word) {
	case 2:
		inst.Op = OpFSW
	case 3:
		inst.Op = OpFSD
	default:
		return
	}
	inst.Format, inst.Imm = FormatS, immS(word)
}

func (d *Decoder) decodeOpFP(word uint32, inst *Instruction) {
	if funct3(word) != 0 || inst.Rs2 != 0 {
		return
	}
	inst.Format = FormatR
	switch word >> 25 {
	case 0x78:
		inst.Op = OpFMVWX
	case 0x70:
		inst.Op = OpFMVXW
	case 0x79:
		inst.Op = OpFMVDX
	case 0x71:
		inst.Op = OpFMVXD
	}
}

func (d *Decoder) decodeVector(word uint32, inst *Instruction) {
	f3 := funct3(word)
	if f3 == 7 {
		inst.Format = FormatVCfg
		switch {
		case word>>31 == 0:
			inst.Op = OpVSETVLI
			inst.VTypeImm = uint64((word >> 20) & 0x7FF)
		case word>>30 == 0b11:
			inst.Op = OpVSETIVLI
			inst.Imm = int64(inst.Rs1) // 5-bit AVL
			inst.VTypeImm = uint64((word >> 20) & 0x3FF)
		case word>>25 == 0x40:
			inst.Op = OpVSETVL
		}
		return
	}

	// Only funct6 == 0 (vadd) is supported in the arithmetic space.
	if word>>26 != 0 {
		return
	}
	inst.Format = FormatVArith
	switch f3 {
	case 0: // OPIVV
		inst.Op = OpVADDVV
	case 3: // OPIVI
		inst.Op = OpVADDVI
		inst.Imm = signExtend(uint64(inst.Rs1), 5)
	case 4: // OPIVX
		inst.Op = OpVADDVX
	}
}

func funct3(word uint32) uint32 {
	return (word >> 12) & 0x7
}

// immI extracts the sign-extended I-type immediate.
func immI(word uint32) int64 {
	return int64(int32(word)) >> 20
}

// immS extracts the sign-extended S-type immediate.
func immS(word uint32) int64 {
	imm := uint64((word>>7)&0x1F) | uint64(word>>25)<<5
	return signExtend(imm, 12)
}

// immB extracts the sign-extended B-type immediate (in bytes).
func immB(word uint32) int64 {
	imm := uint64((word>>8)&0xF)<<1 |
		uint64((word>>25)&0x3F)<<5 |
		uint64((word>>7)&0x1)<<11 |
		uint64(word>>31)<<12
	return signExtend(imm, 13)
}

// immU extracts the U-type immediate (already shifted into place).
func immU(word uint32) int64 {
	return int64(int32(word & 0xFFFFF000))
}

// immJ extracts the sign-extended J-type immediate (in bytes).
func immJ(word uint32) int64 {
	imm := uint64((word>>21)&0x3FF)<<1 |
		uint64((word>>20)&0x1)<<11 |
		uint64((word>>12)&0xFF)<<12 |
		uint64(word>>31)<<20
	return signExtend(imm, 21)
}

// signExtend sign-extends the low bits of v to 64 bits.
func signExtend(v uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}
