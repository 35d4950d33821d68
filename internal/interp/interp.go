// interp.go - Direct-threaded dispatch core (spec.md component F)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package interp executes a Block's synthetic opcode stream. Each
// Word is either a synth.Token (dispatched through a function table
// built once at init(), since Go cannot take the address of a goto
// label the way the C original's direct-threaded core does) or an
// operand the just-dispatched handler consumes. This restructures the
// teacher's StepOne/ExecuteInstruction loop (cpu_m68k.go) around the
// synthetic-opcode model spec.md §4.F describes.
package interp

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/intuitionamiga/m68kjit/internal/block"
	"github.com/intuitionamiga/m68kjit/internal/callback"
	"github.com/intuitionamiga/m68kjit/internal/cc"
	"github.com/intuitionamiga/m68kjit/internal/cpustate"
	"github.com/intuitionamiga/m68kjit/internal/interrupt"
	"github.com/intuitionamiga/m68kjit/internal/synth"
)

// handler executes one synthetic opcode. idx is the index immediately
// after the token in code; it returns the index to resume dispatch at.
// A handler that ends the block sets done and leaves the Interpreter's
// State.PC-equivalent (the returned guestPC) ready for the outer loop.
type handler func(ip *Interpreter, code []synth.Word, idx int) (next int, done bool)

var dispatch [4096]handler

func register(tok synth.Token, h handler) {
	if int(tok) >= len(dispatch) {
		panic(fmt.Sprintf("interp: token %d exceeds dispatch table size", tok))
	}
	dispatch[tok] = h
}

// Interpreter ties a CPUState, a Block store, and the guest address
// mapper's memory bus together into one execution engine (spec.md §6's
// Execute/CallEmulator entry points).
type Interpreter struct {
	State *cpustate.CPUState
	Store *block.Store

	// Callbacks and Traps are optional: nil until the engine package
	// wires them up via SetCallbacks/SetTraps. A TokCallback dispatched
	// with no Callbacks table installed is a fatal error; a TRAP with no
	// matching Traps entry falls back to the full exception sequence.
	Callbacks *callback.Table
	Traps     *callback.Traps

	// Interrupts is optional; nil means no interrupt polling happens
	// (spec.md §4.H). Wired up by the engine package.
	Interrupts *interrupt.Controller

	// guestPC is read by control-transfer handlers and by the outer
	// Execute loop to decide which Block to fetch next.
	guestPC uint32
	exit    bool
	exitErr error

	// blockStartPC/blockEndPC bracket the Block currently executing,
	// precomputed once per block so JSR/TRAP/callback/Bcc-not-taken
	// handlers have a call-site or resume address without needing
	// per-instruction PC tracking through the synthetic opcode stream.
	blockStartPC uint32
	blockEndPC   uint32

	// pendingBlock is set by rts on a JSR-ring hit or a ring-miss
	// resolution, telling Execute's next iteration which Block to run
	// without a redundant Store.Lookup (spec.md §8's single-hash-lookup
	// boundary scenario). Cleared whenever anything else might have
	// retargeted guestPC, since a stale pendingBlock would silently
	// override that retarget.
	pendingBlock *block.Block

	// OnBlockHit, if set, is called after every Block lookup (hit or
	// freshly translated) before it runs, letting a pluggable recompile
	// backend inspect NumTimesCalled and install a NativeEntry (spec.md
	// §9, SPEC_FULL.md §4.J) without this package importing one.
	OnBlockHit func(b *block.Block)

	// Debugger is the process-wide debugger(guest_pc) -> resume_pc hook
	// (spec.md §6), invoked by TokDebugger. Nil means no debugger build;
	// TokDebugger is simply never emitted into Code in that case.
	Debugger DebuggerFunc
}

// New builds an Interpreter over the given CPU state and Block store.
func New(state *cpustate.CPUState, store *block.Store) *Interpreter {
	return &Interpreter{State: state, Store: store}
}

// SetCallbacks installs the magic-address callback table (spec.md
// §4.G). Must be called before any guest code JSRs into it.
func (ip *Interpreter) SetCallbacks(t *callback.Table) { ip.Callbacks = t }

// SetTraps installs the fixed 64-entry trap-vector table.
func (ip *Interpreter) SetTraps(t *callback.Traps) { ip.Traps = t }

// SetInterrupts installs the interrupt controller to poll at every
// block boundary.
func (ip *Interpreter) SetInterrupts(c *interrupt.Controller) { ip.Interrupts = c }

// Execute runs the emulator starting at entryPC until the
// EXIT_EMULATOR Block is reached or a handler reports a fatal error
// (spec.md §6). Interrupt polling happens at every block boundary,
// matching syn68k's check-before-each-block convention rather than
// mid-block preemption (spec.md §4.H).
func (ip *Interpreter) Execute(entryPC uint32) error {
	ip.guestPC = entryPC
	ip.exit = false
	ip.exitErr = nil
	ip.pendingBlock = nil // a prior Execute call may have left this set on error

	for !ip.exit {
		if ip.Interrupts != nil && ip.Interrupts.Pending() {
			ip.guestPC = ip.Interrupts.PollAt(ip.guestPC)
			ip.pendingBlock = nil // PollAt may have retargeted guestPC elsewhere
		}

		var blk *block.Block
		var err error
		if ip.pendingBlock != nil {
			blk = ip.pendingBlock
			ip.pendingBlock = nil
		} else {
			blk, err = ip.Store.Lookup(ip.guestPC)
			if err != nil {
				return err
			}
		}
		blk.NumTimesCalled++
		if ip.OnBlockHit != nil {
			ip.OnBlockHit(blk)
		}
		if blk.NativeEntry != 0 {
			ip.runNative(blk)
		} else {
			ip.runBlock(blk)
		}
		if ip.exitErr != nil {
			return ip.exitErr
		}
	}
	return nil
}

// runNative calls a recompile backend's installed trampoline instead
// of walking blk.Code token by token, per recompile.TrampolineFunc's
// calling convention: a host CPU-state pointer in, the next guest PC
// out (SPEC_FULL.md §4.J). This is the interpreter-side half of the
// jump-to-native-entry fast path; recompile.HostFuncBackend.Consider
// is the half that populates NativeEntry in the first place.
func (ip *Interpreter) runNative(blk *block.Block) {
	statePtr := uintptr(unsafe.Pointer(ip.State)) //nolint:govet
	ret, _, _ := purego.SyscallN(blk.NativeEntry, statePtr)
	ip.guestPC = uint32(ret)
}

// runBlock dispatches one Block's synthetic code from its first real
// token (past the guest-address/preamble/counter header) until a
// control-transfer handler ends it.
func (ip *Interpreter) runBlock(blk *block.Block) {
	code := blk.Code
	// header: [0]=guest start address, [1]=TokPreambleNOP, [2]=TokCounter, [3]=counter value
	if len(code) < 4 {
		ip.fatalf("block at %#08x has a malformed header", blk.GuestStart)
		return
	}
	code[3]++ // execution counter a recompile backend may consult (SPEC_FULL.md §4.J)
	ip.blockStartPC = blk.GuestStart
	ip.blockEndPC = blk.GuestStart + blk.GuestLength

	idx := 4
	for idx < len(code) {
		tok := synth.Token(code[idx])
		idx++
		h := dispatch[tok]
		if h == nil {
			ip.fatalf("no handler registered for token %d", tok)
			return
		}
		next, done := h(ip, code, idx)
		idx = next
		if done {
			return
		}
	}
	// fell off the end without a control transfer: resume at whatever
	// guest address follows this block's guest range (straight-line
	// fallthrough the translator didn't need to terminate on, e.g. a
	// block that hit MaxBlockInstructions).
	ip.guestPC = blk.GuestStart + blk.GuestLength
}

func (ip *Interpreter) fatalf(format string, args ...any) {
	ip.exitErr = fmt.Errorf("interp: "+format, args...)
	ip.exit = true
}

// --- effective-address access --------------------------------------------

// eaPointer dereferences a slot's host pointer for direct memory
// access. The pointer is only ever live for the duration of one
// handler call, matching cpustate.CPUState's documented convention for
// AmodeP/ReversedAmodeP.
func eaPointer(ip *Interpreter, reversed bool) unsafe.Pointer {
	if reversed {
		return unsafe.Pointer(ip.State.ReversedAmodeP) //nolint:govet
	}
	return unsafe.Pointer(ip.State.AmodeP) //nolint:govet
}

func readEA(ip *Interpreter, reversed bool, size cc.Size) uint32 {
	p := eaPointer(ip, reversed)
	switch size {
	case cc.Byte:
		return uint32(*(*uint8)(p))
	case cc.Word:
		return uint32(*(*uint16)(p))
	default:
		return *(*uint32)(p)
	}
}

// writeEA stores v into the effective address, preserving untouched
// high-order bytes the way register-direct writes must (spec.md §3).
func writeEA(ip *Interpreter, reversed bool, size cc.Size, v uint32) {
	p := eaPointer(ip, reversed)
	switch size {
	case cc.Byte:
		*(*uint8)(p) = uint8(v)
	case cc.Word:
		*(*uint16)(p) = uint16(v)
	default:
		*(*uint32)(p) = v
	}
}

// guestAddrEA returns the slot's pointer reinterpreted as a guest
// address, for JSR/JMP targets whose amode resolves to a control
// address rather than a data operand.
func guestAddrEA(ip *Interpreter, reversed bool) uint32 {
	return ip.State.Mapper.HostToGuest(eaPointer(ip, reversed))
}
