// Package bridge exposes the architectural state of a simulated RISC-V
// hart to an HDL simulator through a synchronous, serialized boundary.
//
// A Bridge owns at most one simulation instance at a time. Every operation
// runs to completion on the caller's goroutine under a single exclusive
// lock, so concurrent callers observe a total order. Operations never
// panic across the boundary: faults are converted to Results, and the dpi
// package translates failed Results into the documented sentinel values.
package bridge

import (
	"io"
	"os"
	"sync"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/rvhdl/rvbridge/emu"
	"github.com/rvhdl/rvbridge/loader"
)

// Bridge is an explicit bridge context. It holds the configuration
// override store and the single simulation-instance handle.
type Bridge struct {
	mu sync.Mutex

	ov   overrides
	inst *instance

	vlen     int
	console  io.Writer
	fetchObs emu.FetchObserver
	log      zerolog.Logger
}

// instance is the live simulation instance. It exists between a successful
// Create and a Delete, and is only ever constructed or destroyed by the
// lifecycle operations.
type instance struct {
	id     xid.ID
	engine *emu.Emulator
}

// Option is a functional option for configuring a Bridge.
type Option func(*Bridge)

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) {
		b.log = l
	}
}

// WithVLEN sets the vector register width in bits for created instances.
func WithVLEN(bits int) Option {
	return func(b *Bridge) {
		b.vlen = bits
	}
}

// WithConsole sets the writer backing the created instance's console
// device.
func WithConsole(w io.Writer) Option {
	return func(b *Bridge) {
		b.console = w
	}
}

// WithFetchObserver attaches an observer to created instances' fetch path.
func WithFetchObserver(o emu.FetchObserver) Option {
	return func(b *Bridge) {
		b.fetchObs = o
	}
}

// New creates a Bridge with no live instance and no overrides set.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		vlen:    emu.DefaultVLEN,
		console: os.Stdout,
		log:     zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetISA sets the ISA override applied at the next Create. An empty string
// clears the override, reverting to the built-in default. The value is not
// validated here; a malformed ISA string surfaces as a Create failure.
func (b *Bridge) SetISA(isa string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if isa == "" {
		b.ov.isa = nil
		return
	}
	b.ov.isa = &isa
}

// SetDRAMBase sets the DRAM base address override applied at the next
// Create. A running instance's memory map is not changed.
func (b *Bridge) SetDRAMBase(base uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ov.dramBase = &base
}

// SetDRAMSize sets the DRAM size override applied at the next Create.
func (b *Bridge) SetDRAMSize(size uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ov.dramSize = &size
}

// SetPC is the one dual-mode setter. With a live instance it applies pc to
// every hart immediately, swallowing any fault; with no instance it stores
// pc as the initial-PC override for the next Create.
func (b *Bridge) SetPC(pc uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inst == nil {
		b.ov.initialPC = &pc
		return
	}

	defer func() {
		if p := recover(); p != nil {
			b.log.Error().Interface("panic", p).Msg("live PC update fault suppressed")
		}
	}()
	for i := 0; i < b.inst.engine.HartCount(); i++ {
		h, err := b.inst.engine.Hart(i)
		if err != nil {
			continue
		}
		h.SetPC(pc)
	}
}

// Create builds a simulation instance for the target binary at path. It is
// a no-op if path is empty or an instance already exists: the existing
// instance is never replaced. Any failure during creation releases all
// partial resources and leaves the bridge with no live instance.
func (b *Bridge) Create(path string) (res Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.suppress(&res)

	if b.inst != nil {
		b.log.Debug().Str("instance", b.inst.id.String()).
			Msg("create ignored: instance already exists")
		return ok()
	}
	if path == "" {
		b.log.Error().Msg("create: empty target path")
		return badArgument()
	}

	cfg := b.ov.resolve()
	b.log.Debug().
		Str("isa", cfg.isa).
		Uint64("dram_base", cfg.dramBase).
		Uint64("dram_size", cfg.dramSize).
		Uint64("initial_pc", cfg.initialPC).
		Msg("resolved instance configuration")

	mem, err := emu.NewRAM(cfg.dramBase, cfg.dramSize)
	if err != nil {
		b.log.Error().Err(err).Msg("DRAM allocation failed")
		return fault(err)
	}

	engine, err := emu.New(
		cfg.isa,
		[]*emu.RAM{mem},
		loader.BootArgs(path),
		emu.WithHartCount(1),
		emu.WithVLEN(b.vlen),
		emu.WithConsole(b.console),
		emu.WithFetchObserver(b.fetchObs),
		emu.WithLogger(b.log),
	)
	if err != nil {
		b.log.Error().Err(err).Msg("engine construction failed")
		return fault(err)
	}

	if err := engine.Start(); err != nil {
		b.log.Error().Err(err).Msg("engine start failed")
		return fault(err)
	}
	engine.Reset()

	inst := &instance{id: xid.New(), engine: engine}
	for i := 0; i < engine.HartCount(); i++ {
		h, err := engine.Hart(i)
		if err != nil {
			continue
		}
		h.SetPC(cfg.initialPC)
	}

	b.inst = inst
	b.log.Info().
		Str("instance", inst.id.String()).
		Str("isa", engine.ISA().Name).
		Str("target", path).
		Msg("instance created")
	return ok()
}

// Delete destroys the live instance. It is a no-op if none exists and is
// safe to call repeatedly.
func (b *Bridge) Delete() Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inst == nil {
		return ok()
	}
	b.log.Info().Str("instance", b.inst.id.String()).Msg("instance deleted")
	b.inst = nil
	return ok()
}

// Reset reinitializes the live instance's architectural state without
// destroying it or re-reading configuration. No-op if no instance exists.
func (b *Bridge) Reset() (res Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.suppress(&res)

	if b.inst == nil {
		return noInstance()
	}
	b.inst.engine.Reset()
	return ok()
}

// Step advances the engine by one scheduling unit and returns the engine's
// status code.
func (b *Bridge) Step() (status int, res Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.suppress(&res)

	if b.inst == nil {
		return 0, noInstance()
	}
	status, err := b.inst.engine.Step()
	if err != nil {
		b.log.Error().Err(err).Msg("step fault")
		return 0, fault(err)
	}
	return status, ok()
}

// withHart runs fn against the addressed hart while holding the lock,
// converting absence and faults into failed Results.
func (b *Bridge) withHart(hart int, fn func(h *emu.Hart) Result) (res Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.suppress(&res)

	if b.inst == nil {
		return noInstance()
	}
	h, err := b.inst.engine.Hart(hart)
	if err != nil {
		return unavailable()
	}
	return fn(h)
}

// suppress converts a panic into a failed Result. Nothing escapes the
// bridge as a raised fault.
func (b *Bridge) suppress(res *Result) {
	if p := recover(); p != nil {
		b.log.Error().Interface("panic", p).Msg("engine panic suppressed at bridge boundary")
		*res = faultf("engine panic: %v", p)
	}
}
