package bridge_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/rvhdl/rvbridge/bridge"
	"github.com/rvhdl/rvbridge/emu"
)

// Encoding helpers for building raw payloads.

func encI(imm int32, rs1 uint8, funct3 uint32, rd uint8, opcode uint32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1)<<15 |
		funct3<<12 | uint32(rd)<<7 | opcode
}

func addi(rd, rs1 uint8, imm int32) uint32 { return encI(imm, rs1, 0, rd, 0x13) }

func jal(rd uint8, imm int32) uint32 {
	u := uint32(imm) & 0x1FFFFF
	return (u>>20)<<31 | ((u>>1)&0x3FF)<<21 | ((u>>11)&0x1)<<20 |
		((u>>12)&0xFF)<<12 | uint32(rd)<<7 | 0x6F
}

func vsetvli(rd, rs1 uint8, vtypei uint32) uint32 {
	return vtypei<<20 | uint32(rs1)<<15 | 7<<12 | uint32(rd)<<7 | 0x57
}

func vaddVI(vd, vs2, simm5 uint8) uint32 {
	return 1<<25 | uint32(vs2)<<20 | uint32(simm5)<<15 | 3<<12 | uint32(vd)<<7 | 0x57
}

const wfi = uint32(0x10500073)

// writePayload writes a raw program image and returns its path.
func writePayload(words []uint32) string {
	data := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	path := filepath.Join(GinkgoT().TempDir(), "payload.bin")
	Expect(os.WriteFile(path, data, 0o644)).To(Succeed())
	return path
}

func newBridge() *bridge.Bridge {
	return bridge.New(bridge.WithLogger(zerolog.Nop()))
}

var _ = Describe("Bridge", func() {
	var b *bridge.Bridge

	BeforeEach(func() {
		b = newBridge()
	})

	AfterEach(func() {
		b.Delete()
	})

	Describe("operations before create", func() {
		It("should report no instance from step and every accessor", func() {
			_, res := b.Step()
			Expect(res.Code).To(Equal(bridge.CodeNoInstance))

			_, res = b.GetPC(0)
			Expect(res.Code).To(Equal(bridge.CodeNoInstance))

			var gprs [32]uint64
			Expect(b.GetAllGPRs(0, gprs[:]).Code).To(Equal(bridge.CodeNoInstance))

			_, res = b.GetCSR(0, emu.CSRMstatus)
			Expect(res.Code).To(Equal(bridge.CodeNoInstance))

			Expect(b.Reset().Code).To(Equal(bridge.CodeNoInstance))
		})

		It("should treat delete as a no-op", func() {
			Expect(b.Delete().Failed()).To(BeFalse())
			Expect(b.Delete().Failed()).To(BeFalse())
		})
	})

	Describe("Create", func() {
		It("should reject an empty path", func() {
			Expect(b.Create("").Code).To(Equal(bridge.CodeBadArgument))

			_, res := b.GetPC(0)
			Expect(res.Code).To(Equal(bridge.CodeNoInstance))
		})

		It("should start at the default initial PC", func() {
			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())

			pc, res := b.GetPC(0)
			Expect(res.Failed()).To(BeFalse())
			Expect(pc).To(Equal(bridge.DefaultInitialPC))
		})

		It("should be a no-op when an instance already exists", func() {
			path := writePayload([]uint32{
				addi(1, 0, 5),
				addi(2, 0, 6),
				wfi,
			})
			Expect(b.Create(path).Failed()).To(BeFalse())

			_, res := b.Step()
			Expect(res.Failed()).To(BeFalse())
			pcBefore, _ := b.GetPC(0)

			Expect(b.Create(path).Failed()).To(BeFalse())

			pcAfter, _ := b.GetPC(0)
			Expect(pcAfter).To(Equal(pcBefore))

			var gprs [32]uint64
			Expect(b.GetAllGPRs(0, gprs[:]).Failed()).To(BeFalse())
			Expect(gprs[1]).To(Equal(uint64(5)))
		})

		It("should roll back fully on an invalid ISA override", func() {
			b.SetISA("RV64Q")

			Expect(b.Create(writePayload([]uint32{wfi})).Code).To(Equal(bridge.CodeFault))

			_, res := b.GetPC(0)
			Expect(res.Code).To(Equal(bridge.CodeNoInstance))

			b.SetISA("")
			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())
		})

		It("should roll back on an unloadable payload", func() {
			missing := filepath.Join(GinkgoT().TempDir(), "missing.bin")
			Expect(b.Create(missing).Code).To(Equal(bridge.CodeFault))

			_, res := b.Step()
			Expect(res.Code).To(Equal(bridge.CodeNoInstance))
		})
	})

	Describe("configuration overrides", func() {
		It("should apply overrides set before create", func() {
			b.SetISA("RV32IMC")
			b.SetDRAMBase(0x9000_0000)
			b.SetDRAMSize(1 << 20)
			b.SetPC(0x9000_0010)

			path := writePayload([]uint32{wfi, wfi, wfi, wfi, wfi})
			Expect(b.Create(path).Failed()).To(BeFalse())

			pc, res := b.GetPC(0)
			Expect(res.Failed()).To(BeFalse())
			Expect(pc).To(Equal(uint64(0x9000_0010)))
		})

		It("should truncate the initial PC to the ISA width", func() {
			b.SetISA("RV32IMC")
			b.SetPC(0x1_8000_0000)

			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())

			pc, _ := b.GetPC(0)
			Expect(pc).To(Equal(uint64(0x8000_0000)))
		})

		It("should persist overrides across delete/create cycles", func() {
			b.SetDRAMBase(0x9000_0000)
			b.SetPC(0x9000_0000)

			path := writePayload([]uint32{wfi})
			Expect(b.Create(path).Failed()).To(BeFalse())
			Expect(b.Delete().Failed()).To(BeFalse())
			Expect(b.Create(path).Failed()).To(BeFalse())

			pc, _ := b.GetPC(0)
			Expect(pc).To(Equal(uint64(0x9000_0000)))
		})
	})

	Describe("SetPC dual-mode behavior", func() {
		It("should apply immediately to a live instance without stepping", func() {
			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())

			b.SetPC(0x8000_1000)

			pc, _ := b.GetPC(0)
			Expect(pc).To(Equal(uint64(0x8000_1000)))
		})

		It("should store the value as an override when no instance exists", func() {
			b.SetPC(0x8000_2000)
			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())

			pc, _ := b.GetPC(0)
			Expect(pc).To(Equal(uint64(0x8000_2000)))
		})
	})

	Describe("Step and Reset", func() {
		It("should run a program to its halt point", func() {
			Expect(b.Create(writePayload([]uint32{
				addi(1, 0, 7),
				wfi,
			})).Failed()).To(BeFalse())

			status, res := b.Step()
			Expect(res.Failed()).To(BeFalse())
			Expect(status).To(Equal(emu.StatusRunning))

			status, res = b.Step()
			Expect(res.Failed()).To(BeFalse())
			Expect(status).To(Equal(emu.StatusRunning))

			status, res = b.Step()
			Expect(res.Failed()).To(BeFalse())
			Expect(status).To(Equal(emu.StatusHalted))
		})

		It("should restore the entry state on reset", func() {
			Expect(b.Create(writePayload([]uint32{
				addi(1, 0, 7),
				wfi,
			})).Failed()).To(BeFalse())

			b.Step()
			b.Step()
			Expect(b.Reset().Failed()).To(BeFalse())

			pc, _ := b.GetPC(0)
			Expect(pc).To(Equal(bridge.DefaultDRAMBase))

			var gprs [32]uint64
			Expect(b.GetAllGPRs(0, gprs[:]).Failed()).To(BeFalse())
			Expect(gprs[1]).To(BeZero())
		})
	})

	Describe("register snapshots", func() {
		It("should reject short GPR and FPR buffers", func() {
			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())

			Expect(b.GetAllGPRs(0, nil).Code).To(Equal(bridge.CodeBadArgument))
			Expect(b.GetAllGPRs(0, make([]uint64, 31)).Code).To(Equal(bridge.CodeBadArgument))
			Expect(b.GetAllFPRs(0, nil).Code).To(Equal(bridge.CodeBadArgument))
		})

		It("should report an out-of-range hart as unavailable", func() {
			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())

			_, res := b.GetPC(5)
			Expect(res.Code).To(Equal(bridge.CodeUnavailable))
		})

		It("should snapshot executed register state", func() {
			Expect(b.Create(writePayload([]uint32{
				addi(1, 0, 5),
				addi(2, 1, 3),
				wfi,
			})).Failed()).To(BeFalse())

			for i := 0; i < 3; i++ {
				b.Step()
			}

			var gprs [32]uint64
			Expect(b.GetAllGPRs(0, gprs[:]).Failed()).To(BeFalse())
			Expect(gprs[0]).To(BeZero())
			Expect(gprs[1]).To(Equal(uint64(5)))
			Expect(gprs[2]).To(Equal(uint64(8)))
		})

		It("should read and write CSRs by address", func() {
			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())

			Expect(b.PutCSR(0, emu.CSRMscratch, 0xABCD).Failed()).To(BeFalse())

			v, res := b.GetCSR(0, emu.CSRMscratch)
			Expect(res.Failed()).To(BeFalse())
			Expect(v).To(Equal(uint64(0xABCD)))
		})

		It("should drop writes to read-only CSRs without failing", func() {
			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())

			Expect(b.PutCSR(0, emu.CSRMhartid, 99).Failed()).To(BeFalse())

			v, _ := b.GetCSR(0, emu.CSRMhartid)
			Expect(v).To(BeZero())
		})

		It("should report an unimplemented CSR as unavailable", func() {
			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())

			_, res := b.GetCSR(0, 0x5BC)
			Expect(res.Code).To(Equal(bridge.CodeUnavailable))
		})
	})

	Describe("vector state", func() {
		vectorPayload := func() string {
			return writePayload([]uint32{
				addi(2, 0, 4),
				vsetvli(1, 2, 0x10), // e32m1
				vaddVI(1, 0, 5),     // v1 = v0 + 5
				wfi,
			})
		}

		createVector := func() {
			b.SetISA("RV64GCV")
			Expect(b.Create(vectorPayload()).Failed()).To(BeFalse())
			for i := 0; i < 4; i++ {
				_, res := b.Step()
				Expect(res.Failed()).To(BeFalse())
			}
		}

		It("should report VLEN and VLENB", func() {
			createVector()

			vlen, res := b.GetVLEN(0)
			Expect(res.Failed()).To(BeFalse())
			Expect(vlen).To(Equal(uint64(128)))

			vlenb, _ := b.GetVLENB(0)
			Expect(vlenb).To(Equal(uint64(16)))
		})

		It("should report vl and vtype after configuration", func() {
			createVector()

			vl, res := b.GetVl(0)
			Expect(res.Failed()).To(BeFalse())
			Expect(vl).To(Equal(uint64(4)))

			vtype, res := b.GetVtype(0)
			Expect(res.Failed()).To(BeFalse())
			Expect(vtype).To(Equal(uint64(0x10)))

			vstart, _ := b.GetVstart(0)
			Expect(vstart).To(BeZero())
		})

		It("should serialize the full register file with VLEN = 128", func() {
			createVector()

			out := make([]uint64, 80)
			n, res := b.GetAllVRegs(0, out)
			Expect(res.Failed()).To(BeFalse())
			Expect(n).To(Equal(64))

			// v0 is zero, v1 holds four 32-bit elements of 5.
			Expect(out[0]).To(BeZero())
			Expect(out[1]).To(BeZero())
			Expect(out[2]).To(Equal(uint64(0x0000_0005_0000_0005)))
			Expect(out[3]).To(Equal(uint64(0x0000_0005_0000_0005)))
		})

		It("should honor a smaller capacity", func() {
			createVector()

			out := make([]uint64, 10)
			n, res := b.GetAllVRegs(0, out)
			Expect(res.Failed()).To(BeFalse())
			Expect(n).To(Equal(10))
		})

		It("should write nothing into an empty buffer", func() {
			createVector()

			n, res := b.GetAllVRegs(0, nil)
			Expect(res.Failed()).To(BeFalse())
			Expect(n).To(BeZero())
		})

		It("should report vector state as unavailable without the V extension", func() {
			Expect(b.Create(writePayload([]uint32{wfi})).Failed()).To(BeFalse())

			_, res := b.GetVLEN(0)
			Expect(res.Code).To(Equal(bridge.CodeUnavailable))

			n, res := b.GetAllVRegs(0, make([]uint64, 64))
			Expect(res.Code).To(Equal(bridge.CodeUnavailable))
			Expect(n).To(BeZero())
		})
	})

	Describe("concurrent access", func() {
		It("should serialize step and snapshot calls", func() {
			Expect(b.Create(writePayload([]uint32{
				addi(1, 1, 1), // x1++
				jal(0, -4),    // loop forever
			})).Failed()).To(BeFalse())

			var wg sync.WaitGroup
			wg.Add(2)

			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for i := 0; i < 500; i++ {
					_, res := b.Step()
					Expect(res.Failed()).To(BeFalse())
				}
			}()

			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				var gprs [32]uint64
				for i := 0; i < 500; i++ {
					res := b.GetAllGPRs(0, gprs[:])
					Expect(res.Failed()).To(BeFalse())
				}
			}()

			wg.Wait()

			var gprs [32]uint64
			Expect(b.GetAllGPRs(0, gprs[:]).Failed()).To(BeFalse())
			Expect(gprs[1]).To(Equal(uint64(250)))
		})
	})
})
