// Package insts provides RISC-V instruction definitions and decoding.
//
// This package implements decoding of RV64 machine code into structured
// instruction representations. It supports:
//   - RV64I base integer instructions
//   - RV64M multiply/divide instructions
//   - Zicsr control/status register instructions
//   - F/D register loads, stores, and integer/FP moves
//   - Vector configuration (vsetvli, vsetivli, vsetvl) and vadd
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00A00513) // ADDI x10, x0, 10
//	fmt.Printf("Op: %v, Rd: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Imm)
package insts

// Op represents a RISC-V operation.
type Op uint16

// RISC-V operations.
const (
	OpUnknown Op = iota

	// RV32I/RV64I base
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU
	OpSB
	OpSH
	OpSW
	OpSD
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpADDIW
	OpSLLIW
	OpSRLIW
	OpSRAIW
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW
	OpFENCE

	// RV64M
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	// System
	OpECALL
	OpEBREAK
	OpMRET
	OpWFI

	// Zicsr
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// F/D loads, stores, and moves
	OpFLW
	OpFLD
	OpFSW
	OpFSD
	OpFMVWX
	OpFMVXW
	OpFMVDX
	OpFMVXD

	// Vector configuration and arithmetic
	OpVSETVLI
	OpVSETIVLI
	OpVSETVL
	OpVADDVV
	OpVADDVX
	OpVADDVI
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // Register-register
	FormatI              // Register-immediate, loads, JALR
	FormatS              // Stores
	FormatB              // Conditional branches
	FormatU              // LUI, AUIPC
	FormatJ              // JAL
	FormatCSR            // Zicsr register and immediate forms
	FormatSystem         // ECALL, EBREAK, MRET, WFI, FENCE
	FormatVCfg           // vsetvli / vsetivli / vsetvl
	FormatVArith         // Vector arithmetic (OPIVV/OPIVX/OPIVI)
)

// Instruction represents a decoded RISC-V instruction.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding format

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register
	Rs2 uint8 // Second source register

	// Imm is the sign-extended immediate operand. For shifts it holds the
	// shift amount; for vsetivli it holds the AVL; for vadd.vi it holds
	// the sign-extended simm5.
	Imm int64

	// CSR is the control/status register address for Zicsr instructions.
	CSR uint32

	// VTypeImm is the vtype immediate for vsetvli/vsetivli.
	VTypeImm uint64

	// Raw is the undecoded instruction word.
	Raw uint32
}

// IsBranch reports whether the instruction may redirect the PC.
func (i *Instruction) IsBranch() bool {
	switch i.Op {
	case OpJAL, OpJALR, OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU, OpMRET:
		return true
	}
	return false
}
