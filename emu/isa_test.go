package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rvhdl/rvbridge/emu"
)

var _ = Describe("ParseISA", func() {
	It("should expand the G shorthand", func() {
		isa, err := emu.ParseISA("RV64GC")

		Expect(err).NotTo(HaveOccurred())
		Expect(isa.Name).To(Equal("RV64IMAFDC"))
		Expect(isa.XLEN).To(Equal(64))
		Expect(isa.HasM).To(BeTrue())
		Expect(isa.HasF).To(BeTrue())
		Expect(isa.HasD).To(BeTrue())
		Expect(isa.HasV).To(BeFalse())
	})

	It("should parse RV32 subsets", func() {
		isa, err := emu.ParseISA("RV32IMC")

		Expect(err).NotTo(HaveOccurred())
		Expect(isa.XLEN).To(Equal(32))
		Expect(isa.HasM).To(BeTrue())
		Expect(isa.HasF).To(BeFalse())
	})

	It("should accept lowercase input", func() {
		isa, err := emu.ParseISA("rv64imv")

		Expect(err).NotTo(HaveOccurred())
		Expect(isa.HasV).To(BeTrue())
	})

	It("should make D imply F", func() {
		isa, err := emu.ParseISA("RV64IMD")

		Expect(err).NotTo(HaveOccurred())
		Expect(isa.HasF).To(BeTrue())
		Expect(isa.Name).To(Equal("RV64IMFD"))
	})

	It("should ignore underscore-separated sub-extensions", func() {
		isa, err := emu.ParseISA("RV64IMV_Zicsr_Zifencei")

		Expect(err).NotTo(HaveOccurred())
		Expect(isa.HasV).To(BeTrue())
	})

	It("should reject malformed strings", func() {
		for _, s := range []string{"", "RV64", "RV128I", "X86", "RV64E", "RV64IQ"} {
			_, err := emu.ParseISA(s)
			Expect(err).To(HaveOccurred(), "expected %q to be rejected", s)
		}
	})

	Describe("MISA", func() {
		It("should encode XLEN and the extension set", func() {
			isa, err := emu.ParseISA("RV64IMV")
			Expect(err).NotTo(HaveOccurred())

			misa := isa.MISA()
			Expect(misa >> 62).To(Equal(uint64(2)))
			Expect(misa & (1 << ('I' - 'A'))).NotTo(BeZero())
			Expect(misa & (1 << ('M' - 'A'))).NotTo(BeZero())
			Expect(misa & (1 << ('V' - 'A'))).NotTo(BeZero())
			Expect(misa & (1 << ('F' - 'A'))).To(BeZero())
		})
	})
})
