// main.go - m68kjit command-line driver

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/intuitionamiga/m68kjit/engine"
	"github.com/intuitionamiga/m68kjit/internal/hostsignal"
)

func main() {
	memSize := flag.Uint("mem", 16<<20, "guest RAM size in bytes")
	loadAddr := flag.Uint("load", 0x1000, "guest address the image is loaded at")
	entry := flag.Uint("entry", 0, "entry PC (default: same as -load)")
	twentyFour := flag.Bool("24bit", false, "mask guest addresses to 24 bits")
	checksumMode := flag.Bool("checksum-invalidate", false, "only destroy Blocks whose source bytes actually changed")
	debug := flag.Bool("debug", false, "drop into the interactive debugger on SIGINT instead of exiting")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: m68kjit [options] image.bin\n\nRuns a flat 68k binary image under the m68kjit interpreter.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	imagePath := flag.Arg(0)

	image, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "m68kjit: reading %s: %v\n", imagePath, err)
		os.Exit(1)
	}
	if uint(len(image))+*loadAddr > *memSize {
		fmt.Fprintf(os.Stderr, "m68kjit: image (%d bytes) at %#x doesn't fit in %d bytes of RAM\n", len(image), *loadAddr, *memSize)
		os.Exit(1)
	}

	e, err := engine.Initialize(engine.Config{
		MemorySize:    uint32(*memSize),
		TwentyFourBit: *twentyFour,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "m68kjit: %v\n", err)
		os.Exit(1)
	}
	e.SetChecksumMode(*checksumMode)

	hostPtr := e.Mapper.GuestToHost(uint32(*loadAddr))
	dst := unsafeSlice(hostPtr, len(image))
	copy(dst, image)

	entryPC := uint32(*entry)
	if entryPC == 0 {
		entryPC = uint32(*loadAddr)
	}

	dbg := newDebugger(e)
	if *debug {
		bridge := hostsignal.NewBridge(debuggerInterruptGenerator{e}, []hostsignal.Mapping{
			{Signal: os.Interrupt, Priority: 7},
		})
		bridge.Start()
		defer bridge.Stop()
		e.SetDebugger(dbg.onDebugger)
		dbg.armBreakOnNextInterrupt()
	}

	if err := e.CallEmulator(entryPC); err != nil {
		fmt.Fprintf(os.Stderr, "m68kjit: %v\n", err)
		os.Exit(1)
	}
}

// debuggerInterruptGenerator adapts Engine to hostsignal.Generator so
// Ctrl-C under -debug raises a guest NMI that the debugger's trap
// handler turns into a breakpoint instead of killing the process.
type debuggerInterruptGenerator struct{ e *engine.Engine }

func (g debuggerInterruptGenerator) Generate(priority int) { g.e.GenerateInterrupt(priority) }
