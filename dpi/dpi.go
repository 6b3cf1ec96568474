// Package dpi is the C-shaped boundary over a single process-wide bridge.
// It preserves the external call contract of the original DPI surface:
// fixed signatures, silent no-ops on precondition violations, and sentinel
// return values on every failure. Nothing in this package panics or
// returns an error; all failure modes collapse into the sentinels
// documented per function.
//
// Library consumers that want multiple independent instances or real
// error reporting should use the bridge package directly; this package
// exists for the single-instance deployment the boundary was designed
// around.
package dpi

import (
	"github.com/rvhdl/rvbridge/bridge"
)

// defaultBridge is the single instance behind the boundary. All functions
// in this package operate on it.
var defaultBridge = bridge.New()

// Default returns the bridge behind the package-level functions.
func Default() *bridge.Bridge { return defaultBridge }

// u64Sentinel collapses a failed result into the zero sentinel.
func u64Sentinel(v uint64, r bridge.Result) uint64 {
	if r.Failed() {
		return 0
	}
	return v
}

// countSentinel collapses a failed result into a zero count.
func countSentinel(n int, r bridge.Result) int {
	if r.Failed() {
		return 0
	}
	return n
}

// SetLogLevel maps a level name onto the process-wide verbosity.
// Unrecognized names are ignored.
func SetLogLevel(level string) {
	bridge.SetLogLevel(level)
}

// SetISA sets the ISA override for the next Create. An empty string
// clears the override.
func SetISA(isa string) {
	defaultBridge.SetISA(isa)
}

// SetDRAMBase sets the DRAM base address override for the next Create.
func SetDRAMBase(base uint64) {
	defaultBridge.SetDRAMBase(base)
}

// SetDRAMSize sets the DRAM size override for the next Create.
func SetDRAMSize(size uint64) {
	defaultBridge.SetDRAMSize(size)
}

// SetPC applies pc to the live instance immediately, or stores it as the
// initial-PC override when no instance exists.
func SetPC(pc uint64) {
	defaultBridge.SetPC(pc)
}

// Create builds the simulation instance for the binary at path. Silent
// no-op on an empty path or when an instance already exists.
func Create(path string) {
	_ = defaultBridge.Create(path)
}

// Delete destroys the instance. No-op when absent.
func Delete() {
	_ = defaultBridge.Delete()
}

// Reset reinitializes the instance's architectural state. No-op when
// absent.
func Reset() {
	_ = defaultBridge.Reset()
}

// Step advances the engine by one scheduling unit and returns its status
// code, or -1 when no instance exists or the step faulted.
func Step() int {
	status, r := defaultBridge.Step()
	if r.Failed() {
		return -1
	}
	return status
}

// GetPC returns the hart's program counter, or 0 on failure.
func GetPC(hart int) uint64 {
	return u64Sentinel(defaultBridge.GetPC(hart))
}

// GetAllGPRs writes all 32 integer registers into out and returns 32, or
// writes nothing and returns 0 on failure (including a short buffer).
func GetAllGPRs(hart int, out []uint64) int {
	r := defaultBridge.GetAllGPRs(hart, out)
	return countSentinel(bridge.NumGPRs, r)
}

// GetCSR returns the CSR at addr, or 0 on failure.
func GetCSR(hart int, addr uint32) uint64 {
	return u64Sentinel(defaultBridge.GetCSR(hart, addr))
}

// PutCSR writes the CSR at addr. Writes to unsupported or read-only
// registers are silently dropped.
func PutCSR(hart int, addr uint32, val uint64) {
	_ = defaultBridge.PutCSR(hart, addr, val)
}

// GetAllFPRs writes the raw bit patterns of all 32 floating-point
// registers into out and returns 32, or 0 on failure.
func GetAllFPRs(hart int, out []uint64) int {
	r := defaultBridge.GetAllFPRs(hart, out)
	return countSentinel(bridge.NumFPRs, r)
}

// GetAllVRegs serializes the vector register file into out as
// little-endian 64-bit words and returns the number of words written,
// or 0 on failure.
func GetAllVRegs(hart int, out []uint64) int {
	return countSentinel(defaultBridge.GetAllVRegs(hart, out))
}

// GetVLEN returns the vector register width in bits, or 0 on failure.
func GetVLEN(hart int) int {
	return int(u64Sentinel(defaultBridge.GetVLEN(hart)))
}

// GetVLENB returns the vector register width in bytes, or 0 on failure.
func GetVLENB(hart int) uint64 {
	return u64Sentinel(defaultBridge.GetVLENB(hart))
}

// GetVxsat returns the fixed-point saturation flag, or 0 on failure.
func GetVxsat(hart int) uint64 {
	return u64Sentinel(defaultBridge.GetVxsat(hart))
}

// GetVxrm returns the fixed-point rounding mode, or 0 on failure.
func GetVxrm(hart int) uint64 {
	return u64Sentinel(defaultBridge.GetVxrm(hart))
}

// GetVstart returns the vector resumption index, or 0 on failure.
func GetVstart(hart int) uint64 {
	return u64Sentinel(defaultBridge.GetVstart(hart))
}

// GetVl returns the active vector length, or 0 on failure.
func GetVl(hart int) uint64 {
	return u64Sentinel(defaultBridge.GetVl(hart))
}

// GetVtype returns the raw vtype value, or 0 on failure.
func GetVtype(hart int) uint64 {
	return u64Sentinel(defaultBridge.GetVtype(hart))
}

// GetVCSR returns the CSR at addr through the address-indexed register
// map, or 0 if the address is not present.
func GetVCSR(hart int, addr uint32) uint64 {
	return u64Sentinel(defaultBridge.GetCSR(hart, addr))
}
