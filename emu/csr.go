package emu

// Control/status register addresses.
const (
	CSRFflags = 0x001
	CSRFrm    = 0x002
	CSRFcsr   = 0x003

	CSRVstart = 0x008
	CSRVxsat  = 0x009
	CSRVxrm   = 0x00A
	CSRVcsr   = 0x00F

	CSRMstatus  = 0x300
	CSRMisa     = 0x301
	CSRMie      = 0x304
	CSRMtvec    = 0x305
	CSRMscratch = 0x340
	CSRMepc     = 0x341
	CSRMcause   = 0x342
	CSRMtval    = 0x343
	CSRMip      = 0x344

	CSRCycle   = 0xC00
	CSRInstret = 0xC02

	CSRVl    = 0xC20
	CSRVtype = 0xC21
	CSRVlenb = 0xC22

	CSRMvendorid = 0xF11
	CSRMarchid   = 0xF12
	CSRMimpid    = 0xF13
	CSRMhartid   = 0xF14
)

// Register is one entry in a hart's address-indexed CSR map. Entries are
// closures over the owning hart's state; read-only registers have no write
// function.
type Register struct {
	read  func() uint64
	write func(uint64)
}

// NewRegister creates a CSR map entry. write may be nil for read-only
// registers.
func NewRegister(read func() uint64, write func(uint64)) *Register {
	return &Register{read: read, write: write}
}

// Read returns the register's current value.
func (r *Register) Read() uint64 {
	return r.read()
}

// Write updates the register. Writes to read-only registers report false
// and change nothing.
func (r *Register) Write(v uint64) bool {
	if r.write == nil {
		return false
	}
	r.write(v)
	return true
}

// CSRFile is the address-indexed control/status register map of one hart.
// It mirrors the engine family's csrmap: every architecturally visible CSR
// is reachable by address, including the vector CSRs when the vector unit
// is present.
type CSRFile struct {
	regs map[uint32]*Register
}

// NewCSRFile creates an empty CSR map.
func NewCSRFile() *CSRFile {
	return &CSRFile{regs: make(map[uint32]*Register)}
}

// Add registers a CSR at the given address, replacing any existing entry.
func (f *CSRFile) Add(addr uint32, r *Register) {
	f.regs[addr] = r
}

// Lookup returns the register at addr, or nil if the address is not mapped.
func (f *CSRFile) Lookup(addr uint32) *Register {
	return f.regs[addr]
}

// Read reads the CSR at addr. The second result is false if the address is
// not mapped.
func (f *CSRFile) Read(addr uint32) (uint64, bool) {
	r := f.regs[addr]
	if r == nil {
		return 0, false
	}
	return r.Read(), true
}

// Write writes the CSR at addr. Unmapped addresses and read-only registers
// report false; the caller decides whether that is an error.
func (f *CSRFile) Write(addr uint32, v uint64) bool {
	r := f.regs[addr]
	if r == nil {
		return false
	}
	return r.Write(v)
}
