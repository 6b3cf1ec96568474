package emu

import (
	"fmt"
	"strings"
)

// ISA describes a parsed RISC-V ISA string.
type ISA struct {
	// Name is the canonicalized ISA string, e.g. "RV64IMAFDC".
	Name string

	// XLEN is the integer register width in bits (32 or 64).
	XLEN int

	HasM bool // Integer multiply/divide
	HasA bool // Atomics (accepted, not executed)
	HasF bool // Single-precision floating point
	HasD bool // Double-precision floating point
	HasC bool // Compressed (accepted; execution is uncompressed only)
	HasV bool // Vector extension
}

// ParseISA parses an ISA identifier string such as "RV64GC" or "RV32IMC".
// The "G" shorthand expands to IMAFD. Underscore-separated sub-extension
// names (e.g. "_Zicsr") are accepted and ignored; Zicsr behavior is always
// available.
func ParseISA(name string) (*ISA, error) {
	if name == "" {
		return nil, fmt.Errorf("empty ISA string")
	}

	upper := strings.ToUpper(name)
	base, _, _ := strings.Cut(upper, "_")

	isa := &ISA{}
	switch {
	case strings.HasPrefix(base, "RV32"):
		isa.XLEN = 32
	case strings.HasPrefix(base, "RV64"):
		isa.XLEN = 64
	default:
		return nil, fmt.Errorf("ISA %q: must start with RV32 or RV64", name)
	}

	exts := base[4:]
	if exts == "" {
		return nil, fmt.Errorf("ISA %q: no extensions", name)
	}

	for _, c := range exts {
		switch c {
		case 'I':
		case 'E':
			return nil, fmt.Errorf("ISA %q: RVE is not supported", name)
		case 'G':
			isa.HasM, isa.HasA, isa.HasF, isa.HasD = true, true, true, true
		case 'M':
			isa.HasM = true
		case 'A':
			isa.HasA = true
		case 'F':
			isa.HasF = true
		case 'D':
			isa.HasD = true
		case 'C':
			isa.HasC = true
		case 'V':
			isa.HasV = true
		default:
			return nil, fmt.Errorf("ISA %q: unknown extension %q", name, string(c))
		}
	}

	// D implies F.
	if isa.HasD {
		isa.HasF = true
	}

	isa.Name = canonicalName(isa)
	return isa, nil
}

func canonicalName(isa *ISA) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "RV%dI", isa.XLEN)
	for _, e := range []struct {
		has bool
		c   byte
	}{
		{isa.HasM, 'M'},
		{isa.HasA, 'A'},
		{isa.HasF, 'F'},
		{isa.HasD, 'D'},
		{isa.HasC, 'C'},
		{isa.HasV, 'V'},
	} {
		if e.has {
			sb.WriteByte(e.c)
		}
	}
	return sb.String()
}

// MISA returns the misa CSR value encoding the extension set.
func (isa *ISA) MISA() uint64 {
	var ext uint64
	ext |= 1 << ('I' - 'A')
	if isa.HasM {
		ext |= 1 << ('M' - 'A')
	}
	if isa.HasA {
		ext |= 1 << ('A' - 'A')
	}
	if isa.HasF {
		ext |= 1 << ('F' - 'A')
	}
	if isa.HasD {
		ext |= 1 << ('D' - 'A')
	}
	if isa.HasC {
		ext |= 1 << ('C' - 'A')
	}
	if isa.HasV {
		ext |= 1 << ('V' - 'A')
	}

	mxl := uint64(1) // RV32
	if isa.XLEN == 64 {
		mxl = 2
	}
	return mxl<<(uint(isa.XLEN)-2) | ext
}
