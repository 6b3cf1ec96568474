package loader_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rvhdl/rvbridge/loader"
)

var _ = Describe("FindPayload", func() {
	It("should prefer the +payload= argument", func() {
		path, ok := loader.FindPayload([]string{"bare.bin", "+payload=real.bin"})

		Expect(ok).To(BeTrue())
		Expect(path).To(Equal("real.bin"))
	})

	It("should fall back to the first non-plus argument", func() {
		path, ok := loader.FindPayload([]string{"+signature=sig", "prog.elf"})

		Expect(ok).To(BeTrue())
		Expect(path).To(Equal("prog.elf"))
	})

	It("should report absence", func() {
		_, ok := loader.FindPayload([]string{"+flag", "+payload="})
		Expect(ok).To(BeFalse())

		_, ok = loader.FindPayload(nil)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("BootArgs", func() {
	It("should pass the path twice, prefixed and bare", func() {
		Expect(loader.BootArgs("fw.bin")).To(Equal([]string{
			"+payload=fw.bin",
			"fw.bin",
		}))
	})
})

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should place a raw image at the given base", func() {
		path := filepath.Join(dir, "image.bin")
		data := []byte{0x13, 0x05, 0xA0, 0x00}
		Expect(os.WriteFile(path, data, 0o644)).To(Succeed())

		prog, err := loader.Load(path, 0x8000_0000)

		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Entry).To(Equal(uint64(0x8000_0000)))
		Expect(prog.Segments).To(HaveLen(1))
		Expect(prog.Segments[0].Addr).To(Equal(uint64(0x8000_0000)))
		Expect(prog.Segments[0].Data).To(Equal(data))
		Expect(prog.Segments[0].MemSize).To(Equal(uint64(4)))
	})

	It("should reject an empty file", func() {
		path := filepath.Join(dir, "empty.bin")
		Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())

		_, err := loader.Load(path, 0x8000_0000)
		Expect(err).To(HaveOccurred())
	})

	It("should reject a missing file", func() {
		_, err := loader.Load(filepath.Join(dir, "nope.bin"), 0x8000_0000)
		Expect(err).To(HaveOccurred())
	})

	It("should reject a non-RISC-V ELF file", func() {
		prog := buildELF(0x10000, 0x3E, // EM_X86_64
			[]byte{0x90, 0x90, 0x90, 0x90})
		path := filepath.Join(dir, "x86.elf")
		Expect(os.WriteFile(path, prog, 0o644)).To(Succeed())

		_, err := loader.Load(path, 0x8000_0000)
		Expect(err).To(MatchError(ContainSubstring("not a RISC-V ELF")))
	})

	It("should load segments from a RISC-V ELF file", func() {
		payload := []byte{0x13, 0x05, 0xA0, 0x00, 0x73, 0x00, 0x50, 0x10}
		prog := buildELF(0x8000_0000, 0xF3, payload) // EM_RISCV
		path := filepath.Join(dir, "prog.elf")
		Expect(os.WriteFile(path, prog, 0o644)).To(Succeed())

		loaded, err := loader.Load(path, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Entry).To(Equal(uint64(0x8000_0000)))
		Expect(loaded.Segments).To(HaveLen(1))
		Expect(loaded.Segments[0].Addr).To(Equal(uint64(0x8000_0000)))
		Expect(loaded.Segments[0].Data).To(Equal(payload))
		Expect(loaded.Segments[0].MemSize).To(Equal(uint64(len(payload)) + 16))
	})
})

// buildELF constructs a minimal 64-bit little-endian ELF executable with a
// single PT_LOAD segment at addr, whose memory size exceeds the file size
// by 16 bytes of BSS.
func buildELF(addr uint64, machine uint16, payload []byte) []byte {
	const (
		ehSize     = 64
		phSize     = 56
		payloadOff = ehSize + phSize
		bssPad     = 16
	)

	buf := make([]byte, payloadOff+len(payload))
	le := func(off int, v uint64, n int) {
		for i := 0; i < n; i++ {
			buf[off+i] = byte(v >> (8 * i))
		}
	}

	copy(buf, []byte{0x7F, 'E', 'L', 'F', 2, 1, 1}) // ELFCLASS64, LSB
	le(16, 2, 2)                                    // e_type: ET_EXEC
	le(18, uint64(machine), 2)                      // e_machine
	le(20, 1, 4)                                    // e_version
	le(24, addr, 8)                                 // e_entry
	le(32, ehSize, 8)                               // e_phoff
	le(52, ehSize, 2)                               // e_ehsize
	le(54, phSize, 2)                               // e_phentsize
	le(56, 1, 2)                                    // e_phnum

	ph := ehSize
	le(ph+0, 1, 4)                            // p_type: PT_LOAD
	le(ph+4, 5, 4)                            // p_flags: R+X
	le(ph+8, payloadOff, 8)                   // p_offset
	le(ph+16, addr, 8)                        // p_vaddr
	le(ph+24, addr, 8)                        // p_paddr
	le(ph+32, uint64(len(payload)), 8)        // p_filesz
	le(ph+40, uint64(len(payload))+bssPad, 8) // p_memsz

	copy(buf[payloadOff:], payload)
	return buf
}
