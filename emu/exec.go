package emu

import (
	"math/bits"

	"github.com/rvhdl/rvbridge/insts"
)

// stepHart fetches, decodes, and executes one instruction on h.
func (e *Emulator) stepHart(h *Hart) error {
	pc := h.regs.PC

	if e.fetchObs != nil {
		e.fetchObs.OnFetch(pc)
	}
	word, err := e.bus.Read(pc, 4)
	if err != nil {
		e.log.Debug().Uint64("pc", pc).Msg("instruction fetch fault")
		h.trap(causeInstAccessFault, pc)
		h.cycle++
		return nil
	}

	inst := e.decoder.Decode(uint32(word))
	h.cycle++

	if inst.Op == insts.OpUnknown {
		e.log.Debug().Uint64("pc", pc).Uint32("inst", inst.Raw).Msg("illegal instruction")
		h.trap(causeIllegalInst, uint64(inst.Raw))
		return nil
	}

	e.execute(h, inst)
	h.instret++
	return nil
}

// execute dispatches a decoded instruction. The PC is advanced here for
// non-branch instructions; branch handlers set it themselves.
func (e *Emulator) execute(h *Hart, inst *insts.Instruction) {
	switch inst.Format {
	case insts.FormatU:
		e.executeU(h, inst)
	case insts.FormatJ:
		h.writeReg(inst.Rd, h.regs.PC+4)
		h.SetPC(h.regs.PC + uint64(inst.Imm))
		return
	case insts.FormatB:
		e.executeBranch(h, inst)
		return
	case insts.FormatI:
		if !e.executeI(h, inst) {
			return // branch or trap already updated PC
		}
	case insts.FormatR:
		e.executeR(h, inst)
	case insts.FormatS:
		e.executeStore(h, inst)
	case insts.FormatCSR:
		if !e.executeCSR(h, inst) {
			return
		}
	case insts.FormatSystem:
		e.executeSystem(h, inst)
		return
	case insts.FormatVCfg, insts.FormatVArith:
		if !e.executeVector(h, inst) {
			return
		}
	default:
		h.trap(causeIllegalInst, uint64(inst.Raw))
		return
	}

	h.SetPC(h.regs.PC + 4)
}

func (e *Emulator) executeU(h *Hart, inst *insts.Instruction) {
	switch inst.Op {
	case insts.OpLUI:
		h.writeReg(inst.Rd, uint64(inst.Imm))
	case insts.OpAUIPC:
		h.writeReg(inst.Rd, h.regs.PC+uint64(inst.Imm))
	}
}

func (e *Emulator) executeBranch(h *Hart, inst *insts.Instruction) {
	a := h.regs.Read(inst.Rs1)
	b := h.regs.Read(inst.Rs2)

	var taken bool
	switch inst.Op {
	case insts.OpBEQ:
		taken = a == b
	case insts.OpBNE:
		taken = a != b
	case insts.OpBLT:
		taken = int64(a) < int64(b)
	case insts.OpBGE:
		taken = int64(a) >= int64(b)
	case insts.OpBLTU:
		taken = a < b
	case insts.OpBGEU:
		taken = a >= b
	}

	if taken {
		h.SetPC(h.regs.PC + uint64(inst.Imm))
	} else {
		h.SetPC(h.regs.PC + 4)
	}
}

// executeI handles I-format instructions. It returns false if the PC has
// already been updated (JALR, traps).
func (e *Emulator) executeI(h *Hart, inst *insts.Instruction) bool {
	switch inst.Op {
	case insts.OpJALR:
		target := (h.regs.Read(inst.Rs1) + uint64(inst.Imm)) &^ 1
		h.writeReg(inst.Rd, h.regs.PC+4)
		h.SetPC(target)
		return false
	case insts.OpLB, insts.OpLH, insts.OpLW, insts.OpLD,
		insts.OpLBU, insts.OpLHU, insts.OpLWU:
		return e.executeLoad(h, inst)
	case insts.OpFLW, insts.OpFLD:
		return e.executeFPLoad(h, inst)
	}

	a := h.regs.Read(inst.Rs1)
	imm := uint64(inst.Imm)
	var v uint64

	switch inst.Op {
	case insts.OpADDI:
		v = a + imm
	case insts.OpSLTI:
		v = boolToReg(int64(a) < inst.Imm)
	case insts.OpSLTIU:
		v = boolToReg(a < imm)
	case insts.OpXORI:
		v = a ^ imm
	case insts.OpORI:
		v = a | imm
	case insts.OpANDI:
		v = a & imm
	case insts.OpSLLI:
		v = a << (imm & 0x3F)
	case insts.OpSRLI:
		v = a >> (imm & 0x3F)
	case insts.OpSRAI:
		v = uint64(int64(a) >> (imm & 0x3F))
	case insts.OpADDIW:
		v = signExtend32(uint32(a) + uint32(imm))
	case insts.OpSLLIW:
		v = signExtend32(uint32(a) << (imm & 0x1F))
	case insts.OpSRLIW:
		v = signExtend32(uint32(a) >> (imm & 0x1F))
	case insts.OpSRAIW:
		v = signExtend32(uint32(int32(uint32(a)) >> (imm & 0x1F)))
	}

	h.writeReg(inst.Rd, v)
	return true
}

func (e *Emulator) executeR(h *Hart, inst *insts.Instruction) {
	switch inst.Op {
	case insts.OpFMVWX, insts.OpFMVXW, insts.OpFMVDX, insts.OpFMVXD:
		e.executeFPMove(h, inst)
		return
	}

	a := h.regs.Read(inst.Rs1)
	b := h.regs.Read(inst.Rs2)
	var v uint64

	switch inst.Op {
	case insts.OpADD:
		v = a + b
	case insts.OpSUB:
		v = a - b
	case insts.OpSLL:
		v = a << (b & 0x3F)
	case insts.OpSLT:
		v = boolToReg(int64(a) < int64(b))
	case insts.OpSLTU:
		v = boolToReg(a < b)
	case insts.OpXOR:
		v = a ^ b
	case insts.OpSRL:
		v = a >> (b & 0x3F)
	case insts.OpSRA:
		v = uint64(int64(a) >> (b & 0x3F))
	case insts.OpOR:
		v = a | b
	case insts.OpAND:
		v = a & b
	case insts.OpADDW:
		v = signExtend32(uint32(a) + uint32(b))
	case insts.OpSUBW:
		v = signExtend32(uint32(a) - uint32(b))
	case insts.OpSLLW:
		v = signExtend32(uint32(a) << (b & 0x1F))
	case insts.OpSRLW:
		v = signExtend32(uint32(a) >> (b & 0x1F))
	case insts.OpSRAW:
		v = signExtend32(uint32(int32(uint32(a)) >> (b & 0x1F)))
	case insts.OpMUL, insts.OpMULH, insts.OpMULHSU, insts.OpMULHU,
		insts.OpDIV, insts.OpDIVU, insts.OpREM, insts.OpREMU,
		insts.OpMULW, insts.OpDIVW, insts.OpDIVUW, insts.OpREMW, insts.OpREMUW:
		if !h.isa.HasM {
			h.trap(causeIllegalInst, uint64(inst.Raw))
			return
		}
		v = executeMulDiv(inst.Op, a, b)
	}

	h.writeReg(inst.Rd, v)
}

func executeMulDiv(op insts.Op, a, b uint64) uint64 {
	switch op {
	case insts.OpMUL:
		return a * b
	case insts.OpMULH:
		// Signed high multiply from the unsigned product.
		hiU, _ := bits.Mul64(a, b)
		if int64(a) < 0 {
			hiU -= b
		}
		if int64(b) < 0 {
			hiU -= a
		}
		return hiU
	case insts.OpMULHSU:
		hiU, _ := bits.Mul64(a, b)
		if int64(a) < 0 {
			hiU -= b
		}
		return hiU
	case insts.OpMULHU:
		hi, _ := bits.Mul64(a, b)
		return hi
	case insts.OpDIV:
		if b == 0 {
			return ^uint64(0)
		}
		if int64(a) == -1<<63 && int64(b) == -1 {
			return a
		}
		return uint64(int64(a) / int64(b))
	case insts.OpDIVU:
		if b == 0 {
			return ^uint64(0)
		}
		return a / b
	case insts.OpREM:
		if b == 0 {
			return a
		}
		if int64(a) == -1<<63 && int64(b) == -1 {
			return 0
		}
		return uint64(int64(a) % int64(b))
	case insts.OpREMU:
		if b == 0 {
			return a
		}
		return a % b
	case insts.OpMULW:
		return signExtend32(uint32(a) * uint32(b))
	case insts.OpDIVW:
		a32, b32 := int32(uint32(a)), int32(uint32(b))
		if b32 == 0 {
			return ^uint64(0)
		}
		if a32 == -1<<31 && b32 == -1 {
			return signExtend32(uint32(a32))
		}
		return signExtend32(uint32(a32 / b32))
	case insts.OpDIVUW:
		a32, b32 := uint32(a), uint32(b)
		if b32 == 0 {
			return ^uint64(0)
		}
		return signExtend32(a32 / b32)
	case insts.OpREMW:
		a32, b32 := int32(uint32(a)), int32(uint32(b))
		if b32 == 0 {
			return signExtend32(uint32(a32))
		}
		if a32 == -1<<31 && b32 == -1 {
			return 0
		}
		return signExtend32(uint32(a32 % b32))
	case insts.OpREMUW:
		a32, b32 := uint32(a), uint32(b)
		if b32 == 0 {
			return signExtend32(a32)
		}
		return signExtend32(a32 % b32)
	}
	return 0
}

// executeLoad returns false if a trap redirected the PC.
func (e *Emulator) executeLoad(h *Hart, inst *insts.Instruction) bool {
	addr := (h.regs.Read(inst.Rs1) + uint64(inst.Imm)) & h.mask

	var size int
	switch inst.Op {
	case insts.OpLB, insts.OpLBU:
		size = 1
	case insts.OpLH, insts.OpLHU:
		size = 2
	case insts.OpLW, insts.OpLWU:
		size = 4
	case insts.OpLD:
		size = 8
	}

	raw, err := e.bus.Read(addr, size)
	if err != nil {
		h.trap(causeLoadAccessFault, addr)
		return false
	}

	var v uint64
	switch inst.Op {
	case insts.OpLB:
		v = uint64(int64(int8(raw)))
	case insts.OpLH:
		v = uint64(int64(int16(raw)))
	case insts.OpLW:
		v = signExtend32(uint32(raw))
	default: // LD, LBU, LHU, LWU
		v = raw
	}

	h.writeReg(inst.Rd, v)
	return true
}

func (e *Emulator) executeStore(h *Hart, inst *insts.Instruction) {
	addr := (h.regs.Read(inst.Rs1) + uint64(inst.Imm)) & h.mask

	var size int
	var v uint64
	switch inst.Op {
	case insts.OpSB:
		size, v = 1, h.regs.Read(inst.Rs2)
	case insts.OpSH:
		size, v = 2, h.regs.Read(inst.Rs2)
	case insts.OpSW:
		size, v = 4, h.regs.Read(inst.Rs2)
	case insts.OpSD:
		size, v = 8, h.regs.Read(inst.Rs2)
	case insts.OpFSW:
		if !h.isa.HasF {
			h.trap(causeIllegalInst, uint64(inst.Raw))
			return
		}
		size, v = 4, h.fregs.Read(inst.Rs2)
	case insts.OpFSD:
		if !h.isa.HasD {
			h.trap(causeIllegalInst, uint64(inst.Raw))
			return
		}
		size, v = 8, h.fregs.Read(inst.Rs2)
	}

	if err := e.bus.Write(addr, size, v); err != nil {
		h.trap(causeStoreAccessFault, addr)
	}
}

// executeFPLoad returns false if a trap redirected the PC.
func (e *Emulator) executeFPLoad(h *Hart, inst *insts.Instruction) bool {
	if (inst.Op == insts.OpFLW && !h.isa.HasF) ||
		(inst.Op == insts.OpFLD && !h.isa.HasD) {
		h.trap(causeIllegalInst, uint64(inst.Raw))
		return false
	}

	addr := (h.regs.Read(inst.Rs1) + uint64(inst.Imm)) & h.mask
	size := 4
	if inst.Op == insts.OpFLD {
		size = 8
	}

	raw, err := e.bus.Read(addr, size)
	if err != nil {
		h.trap(causeLoadAccessFault, addr)
		return false
	}

	if inst.Op == insts.OpFLW {
		h.fregs.WriteSingle(inst.Rd, uint32(raw))
	} else {
		h.fregs.Write(inst.Rd, raw)
	}
	return true
}

func (e *Emulator) executeFPMove(h *Hart, inst *insts.Instruction) {
	if !h.isa.HasF {
		h.trap(causeIllegalInst, uint64(inst.Raw))
		return
	}

	switch inst.Op {
	case insts.OpFMVWX:
		h.fregs.WriteSingle(inst.Rd, uint32(h.regs.Read(inst.Rs1)))
	case insts.OpFMVXW:
		h.writeReg(inst.Rd, signExtend32(uint32(h.fregs.Read(inst.Rs1))))
	case insts.OpFMVDX:
		if !h.isa.HasD {
			h.trap(causeIllegalInst, uint64(inst.Raw))
			return
		}
		h.fregs.Write(inst.Rd, h.regs.Read(inst.Rs1))
	case insts.OpFMVXD:
		if !h.isa.HasD {
			h.trap(causeIllegalInst, uint64(inst.Raw))
			return
		}
		h.writeReg(inst.Rd, h.fregs.Read(inst.Rs1))
	}
}

// executeCSR returns false if a trap redirected the PC.
func (e *Emulator) executeCSR(h *Hart, inst *insts.Instruction) bool {
	old, ok := h.csrs.Read(inst.CSR)
	if !ok {
		h.trap(causeIllegalInst, uint64(inst.Raw))
		return false
	}

	var operand uint64
	switch inst.Op {
	case insts.OpCSRRW, insts.OpCSRRS, insts.OpCSRRC:
		operand = h.regs.Read(inst.Rs1)
	default:
		operand = uint64(inst.Imm)
	}

	write := true
	var next uint64
	switch inst.Op {
	case insts.OpCSRRW, insts.OpCSRRWI:
		next = operand
	case insts.OpCSRRS, insts.OpCSRRSI:
		next = old | operand
		write = inst.Rs1 != 0
	case insts.OpCSRRC, insts.OpCSRRCI:
		next = old &^ operand
		write = inst.Rs1 != 0
	}

	if write && !h.csrs.Write(inst.CSR, next) {
		h.trap(causeIllegalInst, uint64(inst.Raw))
		return false
	}

	h.writeReg(inst.Rd, old)
	return true
}

func (e *Emulator) executeSystem(h *Hart, inst *insts.Instruction) {
	switch inst.Op {
	case insts.OpECALL:
		h.trap(causeMachineECall, 0)
	case insts.OpEBREAK:
		h.trap(causeBreakpoint, h.regs.PC)
	case insts.OpMRET:
		h.SetPC(h.mepc)
	case insts.OpWFI:
		// No interrupt sources are modeled, so waiting means stopping.
		h.halted = true
		h.SetPC(h.regs.PC + 4)
	case insts.OpFENCE:
		h.SetPC(h.regs.PC + 4)
	}
}

// executeVector returns false if a trap redirected the PC.
func (e *Emulator) executeVector(h *Hart, inst *insts.Instruction) bool {
	if h.vu == nil {
		h.trap(causeIllegalInst, uint64(inst.Raw))
		return false
	}
	vu := h.vu

	switch inst.Op {
	case insts.OpVSETVLI:
		avl := h.regs.Read(inst.Rs1)
		h.writeReg(inst.Rd, vu.SetVL(inst.Rd, inst.Rs1, avl, inst.VTypeImm))
	case insts.OpVSETIVLI:
		// The immediate AVL always applies, so the rs1 field passed to
		// SetVL is forced non-zero.
		h.writeReg(inst.Rd, vu.SetVL(inst.Rd, 1, uint64(inst.Imm), inst.VTypeImm))
	case insts.OpVSETVL:
		avl := h.regs.Read(inst.Rs1)
		newType := h.regs.Read(inst.Rs2)
		h.writeReg(inst.Rd, vu.SetVL(inst.Rd, inst.Rs1, avl, newType))
	case insts.OpVADDVV, insts.OpVADDVX, insts.OpVADDVI:
		if vu.vill {
			h.trap(causeIllegalInst, uint64(inst.Raw))
			return false
		}
		sewMask := widthMask(vu.vsew)
		for i := vu.vstart; i < vu.vl; i++ {
			a := vu.ElemGet(inst.Rs2, i)
			var b uint64
			switch inst.Op {
			case insts.OpVADDVV:
				b = vu.ElemGet(inst.Rs1, i)
			case insts.OpVADDVX:
				b = h.regs.Read(inst.Rs1)
			case insts.OpVADDVI:
				b = uint64(inst.Imm)
			}
			vu.ElemSet(inst.Rd, i, (a+b)&sewMask)
		}
		vu.vstart = 0
	}

	return true
}

// writeReg writes a GPR with the hart's XLEN mask applied.
func (h *Hart) writeReg(reg uint8, v uint64) {
	h.regs.Write(reg, v&h.mask)
}

func boolToReg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func signExtend32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

func widthMask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}
