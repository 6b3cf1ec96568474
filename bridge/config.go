package bridge

// Built-in configuration defaults, used for any field without an override
// at instance-creation time.
const (
	// DefaultISA is the ISA string used when no override is set.
	DefaultISA = "RV64GC"

	// DefaultDRAMBase is the DRAM base physical address.
	DefaultDRAMBase uint64 = 0x8000_0000

	// DefaultDRAMSize is the DRAM region size in bytes.
	DefaultDRAMSize uint64 = 512 << 20 // 512 MiB

	// DefaultInitialPC is the program counter applied after creation.
	DefaultInitialPC uint64 = 0x8000_0000
)

// overrides holds the optional user-supplied configuration overrides. A
// nil field means "use the built-in default". Overrides are read exactly
// once per field, at instance creation; they persist across delete/create
// cycles until explicitly cleared.
type overrides struct {
	isa       *string
	dramBase  *uint64
	dramSize  *uint64
	initialPC *uint64
}

// resolved is the configuration snapshot taken at instance creation.
type resolved struct {
	isa       string
	dramBase  uint64
	dramSize  uint64
	initialPC uint64
}

// resolve applies the override-else-default precedence rule.
func (o *overrides) resolve() resolved {
	r := resolved{
		isa:       DefaultISA,
		dramBase:  DefaultDRAMBase,
		dramSize:  DefaultDRAMSize,
		initialPC: DefaultInitialPC,
	}
	if o.isa != nil {
		r.isa = *o.isa
	}
	if o.dramBase != nil {
		r.dramBase = *o.dramBase
	}
	if o.dramSize != nil {
		r.dramSize = *o.dramSize
	}
	if o.initialPC != nil {
		r.initialPC = *o.initialPC
	}
	return r
}
