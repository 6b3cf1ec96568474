// Package loader provides boot payload loading for the simulation engine.
//
// Payloads arrive through bootloader-style argument lists. By convention
// the payload path is passed twice: once with a "+payload=" prefix and
// once bare. Payload files are RISC-V ELF executables or raw images; raw
// images are placed at the DRAM base address.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
	"strings"
)

// PayloadPrefix is the bootloader argument prefix naming the payload file.
const PayloadPrefix = "+payload="

// FindPayload extracts the payload path from a bootloader argument list.
// A "+payload="-prefixed argument wins; otherwise the first argument not
// starting with '+' is taken.
func FindPayload(args []string) (string, bool) {
	for _, a := range args {
		if p, ok := strings.CutPrefix(a, PayloadPrefix); ok && p != "" {
			return p, true
		}
	}
	for _, a := range args {
		if a != "" && !strings.HasPrefix(a, "+") {
			return a, true
		}
	}
	return "", false
}

// BootArgs builds the conventional argument pair for a payload path.
func BootArgs(path string) []string {
	return []string{PayloadPrefix + path, path}
}

// Segment is one loadable region of a payload.
type Segment struct {
	// Addr is the physical address where the segment is placed.
	Addr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (larger than len(Data) for BSS).
	MemSize uint64
}

// Program represents a loaded payload ready to be copied into memory.
type Program struct {
	// Entry is the address where execution should begin.
	Entry uint64
	// Segments contains all loadable regions.
	Segments []Segment
}

// Load reads a payload file. RISC-V ELF executables are loaded at their
// program-header addresses with the ELF entry point; any other file is
// treated as a raw image placed at rawBase.
func Load(path string, rawBase uint64) (*Program, error) {
	if f, err := elf.Open(path); err == nil {
		defer func() { _ = f.Close() }()
		return loadELF(f, path)
	}
	return loadRaw(path, rawBase)
}

func loadELF(f *elf.File, path string) (*Program, error) {
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%s: not a RISC-V ELF file (machine type: %v)", path, f.Machine)
	}

	prog := &Program{Entry: f.Entry}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("%s: read segment at 0x%X: %w", path, phdr.Paddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("%s: short read for segment at 0x%X: got %d of %d bytes",
					path, phdr.Paddr, n, phdr.Filesz)
			}
		}

		prog.Segments = append(prog.Segments, Segment{
			Addr:    phdr.Paddr,
			Data:    data,
			MemSize: phdr.Memsz,
		})
	}

	return prog, nil
}

func loadRaw(path string, base uint64) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty payload", path)
	}

	return &Program{
		Entry: base,
		Segments: []Segment{
			{Addr: base, Data: data, MemSize: uint64(len(data))},
		},
	}, nil
}
