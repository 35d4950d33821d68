// cpustate.go - Guest CPU register file and stack/trap bookkeeping

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package cpustate holds the single process-wide CPUState record
// described by spec.md §3: sixteen general registers, the five CC
// cells, the status register, VBR, the three stack pointers, the
// recent-JSR ring, the interrupt status word, and the trap handler
// table. It is owned exclusively by the emulator thread (spec.md §5).
package cpustate

import (
	"github.com/intuitionamiga/m68kjit/internal/addr"
	"github.com/intuitionamiga/m68kjit/internal/block"
	"github.com/intuitionamiga/m68kjit/internal/cc"
	"github.com/intuitionamiga/m68kjit/internal/mem"
)

// Status register bit masks, matching the teacher's M68K_SR_* layout
// (cpu_m68k.go) but excluding the CC bits, which live in Flags
// instead (spec.md §3: "Status register (16-bit), excluding the CC
// bits which live in the five cells above").
const (
	SRInterruptMask = 0x0700
	SRSupervisor    = 0x2000
	SRTrace0        = 0x4000
	SRTrace1        = 0x8000
	srIPLShift      = 8
)

// Reset sentinels for the never-used shadow stack pointers, preserved
// from syn68k's initialize_68k_emulator per spec.md §9's open
// question: "preserve the sentinel behaviour; do not replace with
// zeros."
const (
	SentinelUSP = 0xDEADF00D
	SentinelMSP = 0xDEAD0666
)

// JSRStackSize is the bounded depth of the recent-JSR ring (spec.md §3).
const JSRStackSize = 8

// JSREntry records one fast-return hint: a guest return address and,
// once resolved, the already-translated Block to resume at (its entry
// point is always the Block's first real token, since a return
// address is always the start of some Block). Blk is nil until a
// matching RTS has paid for the hash lookup once and cached the
// result via CacheJSR.
type JSREntry struct {
	ReturnAddr uint32
	Blk        *block.Block
}

// TrapHandler pairs a callback function with its opaque argument, one
// entry of the 64-slot trap table (spec.md §3).
type TrapHandler struct {
	Func CallbackFunc
	Arg  any
}

// CallbackFunc is the signature every callback and trap handler must
// implement: given the guest PC of the call site and the registered
// opaque argument, return the guest PC execution should resume at.
type CallbackFunc func(pc uint32, arg any) uint32

const NumTraps = 64

// CPUState is the guest CPU's entire architectural state.
type CPUState struct {
	D [8]uint32 // data registers d0..d7
	A [8]uint32 // address registers a0..a7; a7 mirrors the active stack pointer

	Flags cc.Flags

	SR  uint16 // status register, CC bits excluded
	VBR uint32 // vector base register (guest address)

	USP uint32
	MSP uint32
	ISP uint32

	// AmodeP/ReversedAmodeP are the two per-CPU slots the interpreter's
	// addressing-mode pre-ops write into (spec.md §4.F). They hold host
	// pointers, represented here as uintptr since Go forbids storing an
	// unsafe.Pointer that doesn't denote a live allocation the GC can see
	// through this field; callers responsible for amode computation
	// convert immediately before use.
	AmodeP         uintptr
	ReversedAmodeP uintptr

	// InterruptStatusChanged is the single volatile sentinel: negative
	// means "something changed, re-check", the large positive sentinel
	// means "nothing pending" (spec.md §3, §5). It is the only field an
	// asynchronous host signal handler may write.
	InterruptStatusChanged int32
	InterruptPending       [8]bool // index 1..7 used; 0 unused

	TrapTable [NumTraps]TrapHandler

	JSRStack      [JSRStackSize]JSREntry
	jsrStackIndex int // next slot to write, cyclic

	Mapper addr.Mapper
}

const (
	InterruptStatusChangedVal = -1
	InterruptStatusUnchanged  = 0x7FFFFFFF
)

// New builds a CPUState with the reset-time values spec.md §6's
// Initialize mandates: supervisor mode, sentinel stacks, zeroed
// registers, idle interrupt status.
func New(m addr.Mapper) *CPUState {
	s := &CPUState{
		SR:                      SRSupervisor,
		USP:                     SentinelUSP,
		MSP:                     SentinelMSP,
		InterruptStatusChanged:  InterruptStatusUnchanged,
		Mapper:                  m,
	}
	for i := range s.JSRStack {
		s.JSRStack[i] = JSREntry{ReturnAddr: 0xFFFFFFFF}
	}
	return s
}

// --- Register byte/word/long accessors -------------------------------
//
// Byte/word writes must leave higher bytes of the cell unchanged
// (spec.md §3), matching the teacher's mask-and-merge pattern (e.g.
// cpu.DataRegs[destReg] = (cpu.DataRegs[destReg] &^ 0xFF) | (value &
// 0xFF) in cpu_m68k.go's ExecMove).

func (s *CPUState) DByte(n int) uint8   { return uint8(s.D[n]) }
func (s *CPUState) DWord(n int) uint16  { return uint16(s.D[n]) }
func (s *CPUState) DLong(n int) uint32  { return s.D[n] }

func (s *CPUState) SetDByte(n int, v uint8) {
	s.D[n] = (s.D[n] &^ 0xFF) | uint32(v)
}

func (s *CPUState) SetDWord(n int, v uint16) {
	s.D[n] = (s.D[n] &^ 0xFFFF) | uint32(v)
}

func (s *CPUState) SetDLong(n int, v uint32) {
	s.D[n] = v
}

// SetALong/SetAWord always store a full 32-bit value: address registers sign- or
// zero-extend on any write narrower than a long (68k rule for An).
func (s *CPUState) SetALong(n int, v uint32) {
	s.A[n] = v
}

func (s *CPUState) SetAWord(n int, v uint16) {
	s.A[n] = uint32(int32(int16(v)))
}

// --- Stack pointer bank switching -------------------------------------

// SwapStacksForMode saves a7 into the outgoing mode's shadow register
// and loads a7 from the incoming mode's shadow register, matching the
// teacher's swapStacksForMode. The master/interrupt distinction used
// by full 68010+ parts collapses to MSP here since this core models a
// 68000-class two-mode (user/supervisor) stack switch with an ISP
// shadow reserved for interrupt-vectored entry.
func (s *CPUState) SwapStacksForMode(toSupervisor bool, viaInterrupt bool) {
	wasSupervisor := s.SR&SRSupervisor != 0
	if wasSupervisor == toSupervisor {
		return
	}
	if wasSupervisor {
		if viaInterrupt {
			s.ISP = s.A[7]
		} else {
			s.MSP = s.A[7]
		}
	} else {
		s.USP = s.A[7]
	}
	if toSupervisor {
		if viaInterrupt {
			s.A[7] = s.ISP
		} else {
			s.A[7] = s.MSP
		}
	} else {
		s.A[7] = s.USP
	}
}

// --- Memory-backed push/pop --------------------------------------------

func (s *CPUState) Push16(v uint16) {
	s.A[7] -= mem.PushSize(2)
	mem.WriteU16(s.Mapper, s.A[7], v)
}

func (s *CPUState) Push32(v uint32) {
	s.A[7] -= mem.PushSize(4)
	mem.WriteU32(s.Mapper, s.A[7], v)
}

func (s *CPUState) Pop16() uint16 {
	v := mem.ReadU16(s.Mapper, s.A[7])
	s.A[7] += mem.PushSize(2)
	return v
}

func (s *CPUState) Pop32() uint32 {
	v := mem.ReadU32(s.Mapper, s.A[7])
	s.A[7] += mem.PushSize(4)
	return v
}

// --- Recent-JSR ring ----------------------------------------------------

// PushJSR reserves the next ring slot for a subroutine call's return
// address, overwriting the oldest entry (spec.md §3, §9: "bounded size
// (8) is essential: it is a hint cache, not a correct return stack").
// The Block isn't known yet at call time, so the slot starts unresolved
// (Blk nil) until CacheJSR fills it in on the matching RTS.
//
// If the top of the ring is already a resolved, live cache entry for
// this exact return address — the same call site being re-entered,
// e.g. a tight loop calling the same subroutine — the reservation is
// skipped so the cached Block survives for the matching RTS to hit
// directly instead of being clobbered by a fresh, unresolved slot.
func (s *CPUState) PushJSR(returnAddr uint32) {
	top := (s.jsrStackIndex - 1 + JSRStackSize) % JSRStackSize
	if e := s.JSRStack[top]; e.ReturnAddr == returnAddr && e.Blk != nil && !e.Blk.Retired {
		return
	}
	s.JSRStack[s.jsrStackIndex] = JSREntry{ReturnAddr: returnAddr}
	s.jsrStackIndex = (s.jsrStackIndex + 1) % JSRStackSize
}

// TopJSR returns the most recently pushed entry and true if the ring
// is non-empty (a sentinel ReturnAddr of 0xFFFFFFFF marks an unused
// slot, matching syn68k's memset(..., -1, ...) at reset).
func (s *CPUState) TopJSR() (JSREntry, bool) {
	i := (s.jsrStackIndex - 1 + JSRStackSize) % JSRStackSize
	e := s.JSRStack[i]
	return e, e.ReturnAddr != 0xFFFFFFFF
}

// CacheJSR fills in the Block for the most recently pushed ring entry
// once RTS has resolved it, so a future RTS returning to the same call
// site can skip the hash lookup entirely (spec.md §8's literal JSR/RTS
// boundary scenario). A mismatched ReturnAddr means the ring has
// already wrapped past this call's reservation; caching would tag the
// wrong entry, so it's skipped rather than forced.
func (s *CPUState) CacheJSR(returnAddr uint32, blk *block.Block) {
	i := (s.jsrStackIndex - 1 + JSRStackSize) % JSRStackSize
	if s.JSRStack[i].ReturnAddr == returnAddr {
		s.JSRStack[i].Blk = blk
	}
}

// --- Status register helpers --------------------------------------------

func (s *CPUState) Supervisor() bool { return s.SR&SRSupervisor != 0 }

func (s *CPUState) InterruptMask() uint8 {
	return uint8((s.SR & SRInterruptMask) >> srIPLShift)
}

func (s *CPUState) SetInterruptMask(level uint8) {
	s.SR = (s.SR &^ SRInterruptMask) | (uint16(level&7) << srIPLShift)
}

// CCR packs the five flag cells into the low byte of a 68k status
// register, matching the wire format MOVE SR/CCR instructions expect.
func (s *CPUState) CCR() uint8 {
	var v uint8
	if s.Flags.C.Set() {
		v |= 1 << 0
	}
	if s.Flags.V.Set() {
		v |= 1 << 1
	}
	if s.Flags.Z.Set() {
		v |= 1 << 2
	}
	if s.Flags.N.Set() {
		v |= 1 << 3
	}
	if s.Flags.X.Set() {
		v |= 1 << 4
	}
	return v
}

func (s *CPUState) SetCCR(v uint8) {
	s.Flags.C = cc.Bool(v&(1<<0) != 0)
	s.Flags.V = cc.Bool(v&(1<<1) != 0)
	s.Flags.Z = cc.Bool(v&(1<<2) != 0)
	s.Flags.N = cc.Bool(v&(1<<3) != 0)
	s.Flags.X = cc.Bool(v&(1<<4) != 0)
}

// FullSR returns the 16-bit status register with the CC bits spliced
// in from Flags, for MOVE SR and exception-frame pushes.
func (s *CPUState) FullSR() uint16 {
	return (s.SR &^ 0x1F) | uint16(s.CCR())
}

// SetFullSR restores both the system byte and the CC bits from a
// 16-bit status register value, e.g. on RTE.
func (s *CPUState) SetFullSR(v uint16) {
	// SwapStacksForMode reads the outgoing mode from s.SR, so it must
	// run before the new SR is stored.
	s.SwapStacksForMode(v&SRSupervisor != 0, false)
	s.SR = v &^ 0x1F
	s.SetCCR(uint8(v))
}

// --- Exception/trap sequence --------------------------------------------

// TrapDirect performs the full 68k exception sequence described by
// spec.md §4.G: switch to the supervisor stack, push the status
// register and return PC, read the vector from VBR, and return the
// handler's guest address as the new PC. It is shared by the
// interrupt controller (component H) and the trap/callback machinery
// (component G), both of which need identical vectoring behaviour.
func (s *CPUState) TrapDirect(vector uint8, returnPC uint32) uint32 {
	oldSR := s.FullSR()
	if !s.Supervisor() {
		s.SwapStacksForMode(true, false)
		s.SR |= SRSupervisor
	}
	s.Push32(returnPC)
	s.Push16(oldSR)
	vectorAddr := s.VBR + uint32(vector)*4
	return mem.ReadU32(s.Mapper, vectorAddr)
}

// Rte performs the inverse of TrapDirect: pop the return PC and status
// register pushed by a prior TrapDirect, restoring whichever stack
// bank the saved SR designates as active. Returns the guest PC to
// resume at.
func (s *CPUState) Rte() uint32 {
	sr := s.Pop16()
	pc := s.Pop32()
	s.SetFullSR(sr)
	return pc
}
