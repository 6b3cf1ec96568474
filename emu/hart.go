package emu

// Machine-mode trap causes.
const (
	causeInstAccessFault  = 1
	causeIllegalInst      = 2
	causeBreakpoint       = 3
	causeLoadAccessFault  = 5
	causeStoreAccessFault = 7
	causeMachineECall     = 11
)

// defaultELEN is the maximum element width supported by the vector unit.
const defaultELEN = 64

// Hart is one simulated hardware thread. It owns the architectural state
// the bridge exposes: integer and floating-point register files, the
// address-indexed CSR map, and the vector unit when the ISA includes V.
type Hart struct {
	id   int
	isa  *ISA
	mask uint64 // XLEN mask applied to PC and CSR writes

	regs  RegFile
	fregs FPRegFile
	vu    *VectorUnit
	csrs  *CSRFile

	mstatus  uint64
	mtvec    uint64
	mscratch uint64
	mepc     uint64
	mcause   uint64
	mtval    uint64
	mie      uint64
	mip      uint64
	fflags   uint64
	frm      uint64

	cycle   uint64
	instret uint64

	halted bool
}

func newHart(id int, isa *ISA, vlen int) *Hart {
	h := &Hart{
		id:  id,
		isa: isa,
	}
	if isa.XLEN == 32 {
		h.mask = 0xFFFFFFFF
	} else {
		h.mask = ^uint64(0)
	}
	if isa.HasV {
		h.vu = NewVectorUnit(vlen, defaultELEN, isa.XLEN)
	}
	h.buildCSRFile()
	return h
}

// buildCSRFile populates the address-indexed CSR map. Vector CSRs are
// registered only when the vector unit exists, mirroring how the engine
// family adds them during vector-unit reset.
func (h *Hart) buildCSRFile() {
	f := NewCSRFile()

	valueCSR := func(addr uint32, p *uint64) {
		f.Add(addr, NewRegister(
			func() uint64 { return *p & h.mask },
			func(v uint64) { *p = v & h.mask },
		))
	}
	readOnly := func(addr uint32, read func() uint64) {
		f.Add(addr, NewRegister(read, nil))
	}

	valueCSR(CSRMstatus, &h.mstatus)
	valueCSR(CSRMtvec, &h.mtvec)
	valueCSR(CSRMscratch, &h.mscratch)
	valueCSR(CSRMepc, &h.mepc)
	valueCSR(CSRMcause, &h.mcause)
	valueCSR(CSRMtval, &h.mtval)
	valueCSR(CSRMie, &h.mie)
	valueCSR(CSRMip, &h.mip)

	readOnly(CSRMisa, func() uint64 { return h.isa.MISA() })
	readOnly(CSRMvendorid, func() uint64 { return 0 })
	readOnly(CSRMarchid, func() uint64 { return 0 })
	readOnly(CSRMimpid, func() uint64 { return 0 })
	readOnly(CSRMhartid, func() uint64 { return uint64(h.id) })
	readOnly(CSRCycle, func() uint64 { return h.cycle & h.mask })
	readOnly(CSRInstret, func() uint64 { return h.instret & h.mask })

	if h.isa.HasF {
		f.Add(CSRFflags, NewRegister(
			func() uint64 { return h.fflags },
			func(v uint64) { h.fflags = v & 0x1F },
		))
		f.Add(CSRFrm, NewRegister(
			func() uint64 { return h.frm },
			func(v uint64) { h.frm = v & 0x7 },
		))
		f.Add(CSRFcsr, NewRegister(
			func() uint64 { return h.frm<<5 | h.fflags },
			func(v uint64) {
				h.fflags = v & 0x1F
				h.frm = (v >> 5) & 0x7
			},
		))
	}

	if h.vu != nil {
		f.Add(CSRVstart, NewRegister(h.vu.VStart, h.vu.SetVStart))
		f.Add(CSRVxsat, NewRegister(h.vu.Vxsat, h.vu.SetVxsat))
		f.Add(CSRVxrm, NewRegister(h.vu.Vxrm, h.vu.SetVxrm))
		f.Add(CSRVcsr, NewRegister(h.vu.Vcsr, h.vu.SetVcsr))
		readOnly(CSRVl, h.vu.VL)
		readOnly(CSRVtype, func() uint64 { return h.vu.VType() & h.mask })
		readOnly(CSRVlenb, h.vu.VLENB)
	}

	h.csrs = f
}

// ID returns the hart identifier.
func (h *Hart) ID() int { return h.id }

// XLEN returns the hart's integer register width in bits.
func (h *Hart) XLEN() int { return h.isa.XLEN }

// PC returns the current program counter.
func (h *Hart) PC() uint64 { return h.regs.PC }

// SetPC sets the program counter, masked to XLEN.
func (h *Hart) SetPC(pc uint64) { h.regs.PC = pc & h.mask }

// RegFile returns the hart's integer register file.
func (h *Hart) RegFile() *RegFile { return &h.regs }

// FPRegFile returns the hart's floating-point register file.
func (h *Hart) FPRegFile() *FPRegFile { return &h.fregs }

// VectorUnit returns the hart's vector unit, or nil if the ISA has no
// vector extension.
func (h *Hart) VectorUnit() *VectorUnit { return h.vu }

// CSRs returns the hart's address-indexed CSR map.
func (h *Hart) CSRs() *CSRFile { return h.csrs }

// Halted reports whether the hart has stopped executing.
func (h *Hart) Halted() bool { return h.halted }

// reset reinitializes architectural state without touching memory.
func (h *Hart) reset(pc uint64) {
	h.regs = RegFile{}
	h.fregs = FPRegFile{}
	h.mstatus = 0
	h.mtvec = 0
	h.mscratch = 0
	h.mepc = 0
	h.mcause = 0
	h.mtval = 0
	h.mie = 0
	h.mip = 0
	h.fflags = 0
	h.frm = 0
	h.cycle = 0
	h.instret = 0
	h.halted = false
	if h.vu != nil {
		h.vu.Reset()
	}
	h.SetPC(pc)
}

// trap takes a synchronous machine-mode trap. With no trap vector
// configured there is nowhere to go, so the hart halts.
func (h *Hart) trap(cause, tval uint64) {
	h.mepc = h.regs.PC & h.mask
	h.mcause = cause
	h.mtval = tval & h.mask
	if h.mtvec == 0 {
		h.halted = true
		return
	}
	h.SetPC(h.mtvec &^ 0x3)
}
