package emu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/rvhdl/rvbridge/insts"
	"github.com/rvhdl/rvbridge/loader"
)

// Step status codes returned by Step.
const (
	// StatusRunning means at least one hart executed an instruction and
	// can continue.
	StatusRunning = 0
	// StatusHalted means every hart has stopped executing.
	StatusHalted = 1
)

// ErrNoHart is returned when a hart identifier is out of range.
var ErrNoHart = errors.New("no such hart")

// DefaultConsoleBase is the physical address of the console device.
const DefaultConsoleBase = 0x10000000

// DefaultVLEN is the vector register width in bits when not overridden.
const DefaultVLEN = 128

// FetchObserver is notified of every instruction fetch. It exists so a
// cache model can observe the fetch stream without the emulator depending
// on it.
type FetchObserver interface {
	OnFetch(addr uint64)
}

// Emulator executes RISC-V instructions functionally. It owns the system
// bus, the harts, and the loaded payload.
type Emulator struct {
	isa     *ISA
	bus     *Bus
	mems    []*RAM
	harts   []*Hart
	decoder *insts.Decoder

	bootArgs []string
	entry    uint64

	hartCount int
	vlen      int
	console   io.Writer
	fetchObs  FetchObserver
	log       zerolog.Logger
}

// Option is a functional option for configuring the Emulator.
type Option func(*Emulator)

// WithHartCount sets the number of harts. The default is 1.
func WithHartCount(n int) Option {
	return func(e *Emulator) {
		e.hartCount = n
	}
}

// WithVLEN sets the vector register width in bits.
func WithVLEN(bits int) Option {
	return func(e *Emulator) {
		e.vlen = bits
	}
}

// WithConsole sets the writer backing the console device.
func WithConsole(w io.Writer) Option {
	return func(e *Emulator) {
		e.console = w
	}
}

// WithFetchObserver attaches an observer to the instruction fetch path.
func WithFetchObserver(o FetchObserver) Option {
	return func(e *Emulator) {
		e.fetchObs = o
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Emulator) {
		e.log = l
	}
}

// New creates an emulator for the given ISA string, memory regions, and
// boot arguments. The boot arguments follow the bootloader convention: the
// payload path appears once with a "+payload=" prefix and once bare.
func New(isaStr string, mems []*RAM, bootArgs []string, opts ...Option) (*Emulator, error) {
	isa, err := ParseISA(isaStr)
	if err != nil {
		return nil, fmt.Errorf("parse ISA: %w", err)
	}
	if len(mems) == 0 {
		return nil, fmt.Errorf("at least one memory region is required")
	}

	e := &Emulator{
		isa:       isa,
		bus:       NewBus(),
		mems:      mems,
		decoder:   insts.NewDecoder(),
		bootArgs:  bootArgs,
		hartCount: 1,
		vlen:      DefaultVLEN,
		console:   os.Stdout,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, m := range mems {
		if err := e.bus.Map(m); err != nil {
			return nil, err
		}
	}
	if err := e.bus.Map(NewConsole(DefaultConsoleBase, e.console)); err != nil {
		return nil, err
	}

	for i := 0; i < e.hartCount; i++ {
		e.harts = append(e.harts, newHart(i, isa, e.vlen))
	}

	return e, nil
}

// ISA returns the emulator's parsed ISA.
func (e *Emulator) ISA() *ISA { return e.isa }

// Bus returns the system bus.
func (e *Emulator) Bus() *Bus { return e.bus }

// HartCount returns the number of harts.
func (e *Emulator) HartCount() int { return len(e.harts) }

// Hart returns the hart with the given identifier.
func (e *Emulator) Hart(id int) (*Hart, error) {
	if id < 0 || id >= len(e.harts) {
		return nil, fmt.Errorf("%w: %d", ErrNoHart, id)
	}
	return e.harts[id], nil
}

// Start loads the boot payload into memory and brings every hart to its
// reset state at the payload entry point.
func (e *Emulator) Start() error {
	e.entry = e.mems[0].Base()

	if path, ok := loader.FindPayload(e.bootArgs); ok {
		prog, err := loader.Load(path, e.mems[0].Base())
		if err != nil {
			return fmt.Errorf("load payload: %w", err)
		}
		for _, seg := range prog.Segments {
			if err := e.bus.CopyTo(seg.Addr, seg.Data); err != nil {
				return fmt.Errorf("map segment at 0x%X: %w", seg.Addr, err)
			}
			for off := uint64(len(seg.Data)); off < seg.MemSize; off++ {
				if err := e.bus.Write(seg.Addr+off, 1, 0); err != nil {
					return fmt.Errorf("zero-fill segment at 0x%X: %w", seg.Addr, err)
				}
			}
		}
		e.entry = prog.Entry
		e.log.Debug().
			Str("payload", path).
			Uint64("entry", prog.Entry).
			Int("segments", len(prog.Segments)).
			Msg("payload loaded")
	}

	e.Reset()
	return nil
}

// Reset reinitializes every hart's architectural state at the payload
// entry point. Memory contents are preserved.
func (e *Emulator) Reset() {
	for _, h := range e.harts {
		h.reset(e.entry)
	}
}

// Step advances every running hart by one instruction and returns the
// engine status. A returned error is an engine fault, not an architectural
// trap; traps are handled inside the hart.
func (e *Emulator) Step() (int, error) {
	ran := false
	for _, h := range e.harts {
		if h.halted {
			continue
		}
		ran = true
		if err := e.stepHart(h); err != nil {
			return StatusRunning, err
		}
	}
	if !ran {
		return StatusHalted, nil
	}
	return StatusRunning, nil
}
