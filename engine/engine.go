// engine.go - Top-level emulator core (spec.md component §6 External Interfaces)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package engine wires the address mapper, CPU state, Block store,
// translator, callback/trap tables, and interrupt controller into the
// single entry point a host program drives: Initialize once, then
// Execute or CallEmulator repeatedly. This plays the role the
// teacher's Machine/System setup in main.go plays for the MMIO-device
// emulator, restructured around the synthetic-opcode interpreter
// instead of a device bus.
package engine

import (
	"fmt"
	"unsafe"

	"github.com/intuitionamiga/m68kjit/internal/addr"
	"github.com/intuitionamiga/m68kjit/internal/block"
	"github.com/intuitionamiga/m68kjit/internal/callback"
	"github.com/intuitionamiga/m68kjit/internal/checksum"
	"github.com/intuitionamiga/m68kjit/internal/cpustate"
	"github.com/intuitionamiga/m68kjit/internal/interp"
	"github.com/intuitionamiga/m68kjit/internal/interrupt"
	"github.com/intuitionamiga/m68kjit/internal/recompile"
	"github.com/intuitionamiga/m68kjit/internal/synth"
	"github.com/intuitionamiga/m68kjit/internal/translate"
)

// Magic guest addresses below the callback table's own base, matching
// original_source/runtime/init.c's initialize_68k_emulator: a JSR to
// ExitEmulatorAddress is how CallEmulator returns to the host, and a
// JSR to RTEAddress is how a trap/interrupt handler written in guest
// code can re-enter the normal exception return path.
const (
	magicBase           = 0xFFFF0000
	ExitEmulatorAddress = magicBase
	RTEAddress          = magicBase + 2
	callbackBase        = magicBase + 4
)

// Config configures one Engine's guest address space and Block store
// sizing. Zero values fall back to sensible defaults.
type Config struct {
	// MemorySize is the size in bytes of the flat guest RAM buffer a
	// single-offset Mapper serves. Required unless Mapper is set.
	MemorySize uint32
	// TwentyFourBit masks every guest address to 24 bits before
	// translation, matching a classic-68k-bus configuration.
	TwentyFourBit bool
	// Mapper, if non-nil, overrides the default single-offset mapper
	// built from MemorySize (e.g. to supply a Segmented mapper for a
	// 64-bit host or a multi-region memory map).
	Mapper addr.Mapper
	// HashBits sizes the Block store's hash table (default 16).
	HashBits uint
	// ByteThreshold is the synthetic-code byte budget the Block store
	// reclaims against (default 64 MiB worth of synth.Word entries).
	ByteThreshold uint64
	// Recompile is the pluggable native-code backend consulted after
	// every Block hit (default recompile.NoopBackend{}).
	Recompile recompile.Backend
}

const (
	defaultHashBits      = 16
	defaultByteThreshold = 64 << 20
)

// Engine owns one complete emulator instance: guest memory, CPU state,
// Block cache, and the interpreter driving them.
type Engine struct {
	Mapper     addr.Mapper
	State      *cpustate.CPUState
	Store      *block.Store
	Callbacks  *callback.Table
	Traps      *callback.Traps
	Interrupts *interrupt.Controller
	Interp     *interp.Interpreter
	Recompile  recompile.Backend

	ram []byte // backing store for the default single-offset mapper; nil if Config.Mapper was supplied
}

// Initialize builds a fully wired Engine per cfg (spec.md §6's
// initialize_68k_emulator equivalent): allocates guest memory (unless
// a Mapper override was given), constructs the CPU state and Block
// store, installs the EXIT_EMULATOR/RTE magic blocks and the callback
// table, and returns ready to Execute.
func Initialize(cfg Config) (*Engine, error) {
	e := &Engine{Recompile: cfg.Recompile}
	if e.Recompile == nil {
		e.Recompile = recompile.NoopBackend{}
	}

	if cfg.Mapper != nil {
		e.Mapper = cfg.Mapper
	} else {
		if cfg.MemorySize == 0 {
			return nil, fmt.Errorf("engine: Config.MemorySize must be nonzero when Config.Mapper is nil")
		}
		e.ram = make([]byte, cfg.MemorySize)
		e.Mapper = addr.NewSingleOffset(unsafe.Pointer(&e.ram[0]), cfg.MemorySize, cfg.TwentyFourBit)
	}

	e.State = cpustate.New(e.Mapper)

	hashBits := cfg.HashBits
	if hashBits == 0 {
		hashBits = defaultHashBits
	}
	byteThreshold := cfg.ByteThreshold
	if byteThreshold == 0 {
		byteThreshold = defaultByteThreshold
	}

	tr := translate.New(e.Mapper)
	cs := func(b *block.Block) uint32 {
		return checksum.Compute(e.Mapper, b.GuestStart, b.GuestLength)
	}
	e.Store = block.NewStore(hashBits, byteThreshold, tr, cs)

	e.installMagicBlocks()

	e.Callbacks = callback.NewTable(callbackBase, e.Store)
	e.Traps = callback.NewTraps()
	e.Interrupts = interrupt.New(e.State)

	e.Interp = interp.New(e.State, e.Store)
	e.Interp.SetCallbacks(e.Callbacks)
	e.Interp.SetTraps(e.Traps)
	e.Interp.SetInterrupts(e.Interrupts)
	e.Interp.OnBlockHit = e.Recompile.Consider

	return e, nil
}

// installMagicBlocks inserts the two fixed immortal Blocks every
// Engine needs regardless of guest image: a one-token EXIT_EMULATOR
// stop signal and an RTE dispatcher, both addressed well outside any
// real guest code range.
func (e *Engine) installMagicBlocks() {
	e.Store.InsertArtificial(&block.Block{
		GuestStart:  ExitEmulatorAddress,
		GuestLength: 2,
		Immortal:    true,
		Code: []synth.Word{
			synth.Word(ExitEmulatorAddress),
			synth.Word(synth.TokPreambleNOP),
			synth.Word(synth.TokCounter),
			0,
			synth.Word(synth.TokExit),
		},
	})
	e.Store.InsertArtificial(&block.Block{
		GuestStart:  RTEAddress,
		GuestLength: 2,
		Immortal:    true,
		Code: []synth.Word{
			synth.Word(RTEAddress),
			synth.Word(synth.TokPreambleNOP),
			synth.Word(synth.TokCounter),
			0,
			synth.Word(synth.OpRte),
		},
	})
}

// Execute runs guest code starting at entryPC until EXIT_EMULATOR is
// reached or a handler reports a fatal error.
func (e *Engine) Execute(entryPC uint32) error {
	return e.Interp.Execute(entryPC)
}

// CallEmulator invokes guest code at addr as a subroutine call from
// the host, returning once that call reaches EXIT_EMULATOR: it pushes
// the magic exit address as a synthetic return address (CALL_EMULATOR
// in syn68k_public.h) so a guest RTS unwinds straight back out.
func (e *Engine) CallEmulator(addr uint32) error {
	e.State.Push32(ExitEmulatorAddress)
	return e.Execute(addr)
}

// CallbackInstall registers fn/arg at a fresh magic address guest code
// can JSR/JMP to (spec.md §4.G's callback_install).
func (e *Engine) CallbackInstall(fn cpustate.CallbackFunc, arg any) (uint32, error) {
	return e.Callbacks.Install(fn, arg)
}

// CallbackRemove uninstalls the handler at addr.
func (e *Engine) CallbackRemove(addr uint32) { e.Callbacks.Remove(addr) }

// TrapInstallHandler installs a direct Go handler for the given TRAP
// vector, bypassing the full exception sequence for it.
func (e *Engine) TrapInstallHandler(vector uint8, fn cpustate.CallbackFunc, arg any) {
	e.Traps.Install(vector, fn, arg)
}

// TrapRemoveHandler removes a previously installed TRAP vector handler.
func (e *Engine) TrapRemoveHandler(vector uint8) { e.Traps.Remove(vector) }

// Invalidate discards every Block overlapping [guestAddr, guestAddr+n),
// or only those whose checksum has actually drifted if checksum mode
// is enabled (spec.md §4.I).
func (e *Engine) Invalidate(guestAddr, n uint32) { e.Store.Invalidate(guestAddr, n) }

// SetChecksumMode toggles checksum-guarded invalidation.
func (e *Engine) SetChecksumMode(enabled bool) { e.Store.SetChecksumMode(enabled) }

// GenerateInterrupt marks the given priority (1..7) pending; it is
// noticed and delivered at the next Block boundary (spec.md §4.H).
func (e *Engine) GenerateInterrupt(priority int) { e.Interrupts.Generate(priority) }

// SetDebugger installs the process-wide debugger(guest_pc) -> resume_pc
// hook (spec.md §6). A nil fn removes it; TokDebugger then falls
// through as a no-op, matching a non-debug build where the translator
// never emits it in the first place.
func (e *Engine) SetDebugger(fn interp.DebuggerFunc) { e.Interp.Debugger = fn }
