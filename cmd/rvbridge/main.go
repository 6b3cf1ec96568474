// Package main provides the rvbridge command line driver. It exercises
// the same boundary an HDL simulator would: configure, create, step until
// the engine halts or a step limit is reached, then dump architectural
// state.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rvhdl/rvbridge/bridge"
	"github.com/rvhdl/rvbridge/dpi"
	"github.com/rvhdl/rvbridge/timing/cache"
)

var (
	isa      = flag.String("isa", "", "ISA string override (default RV64GC)")
	dramBase = flag.Uint64("dram-base", 0, "DRAM base address override")
	dramSize = flag.Uint64("dram-size", 0, "DRAM size override in bytes")
	initPC   = flag.Uint64("pc", 0, "Initial program counter override")
	logLevel = flag.String("log-level", "warn", "Log level (trace, debug, info, warn, error, critical, off)")
	maxSteps = flag.Int("steps", 1_000_000, "Maximum number of steps before giving up")
	icache   = flag.Bool("icache", false, "Model an L1 instruction cache and report statistics")
	dumpRegs = flag.Bool("dump-regs", false, "Dump integer registers after the run")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: rvbridge [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	programPath := flag.Arg(0)

	dpi.SetLogLevel(*logLevel)
	if *isa != "" {
		dpi.SetISA(*isa)
	}
	if *dramBase != 0 {
		dpi.SetDRAMBase(*dramBase)
	}
	if *dramSize != 0 {
		dpi.SetDRAMSize(*dramSize)
	}
	if *initPC != 0 {
		dpi.SetPC(*initPC)
	}

	var l1i *cache.Cache
	b := dpi.Default()
	if *icache {
		l1i = cache.New(cache.DefaultL1IConfig(), nil)
		b = bridge.New(bridge.WithFetchObserver(l1i))
		configureBridge(b)
	}

	if res := b.Create(programPath); res.Failed() {
		fmt.Fprintf(os.Stderr, "Error creating instance: %s\n", res)
		os.Exit(1)
	}
	defer b.Delete()

	steps := 0
	for ; steps < *maxSteps; steps++ {
		status, res := b.Step()
		if res.Failed() {
			fmt.Fprintf(os.Stderr, "Step fault: %s\n", res)
			os.Exit(1)
		}
		if status != 0 {
			break
		}
	}

	pc, _ := b.GetPC(0)
	fmt.Printf("Steps: %d\n", steps)
	fmt.Printf("Final PC: 0x%X\n", pc)

	if *dumpRegs {
		var gprs [32]uint64
		if res := b.GetAllGPRs(0, gprs[:]); !res.Failed() {
			for i, v := range gprs {
				fmt.Printf("x%-2d = 0x%016X\n", i, v)
			}
		}
	}

	if l1i != nil {
		stats := l1i.Stats()
		fmt.Printf("I-cache accesses: %d\n", stats.Reads)
		fmt.Printf("I-cache hits: %d\n", stats.Hits)
		fmt.Printf("I-cache misses: %d\n", stats.Misses)
		if stats.Reads > 0 {
			fmt.Printf("I-cache hit rate: %.2f%%\n",
				100*float64(stats.Hits)/float64(stats.Reads))
		}
	}
}

// configureBridge re-applies the command line overrides to a
// freshly-built bridge.
func configureBridge(b *bridge.Bridge) {
	if *isa != "" {
		b.SetISA(*isa)
	}
	if *dramBase != 0 {
		b.SetDRAMBase(*dramBase)
	}
	if *dramSize != 0 {
		b.SetDRAMSize(*dramSize)
	}
	if *initPC != 0 {
		b.SetPC(*initPC)
	}
}
