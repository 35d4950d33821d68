// amode.go - Addressing-mode compute handlers (spec.md §4.F)
//
// Each handler here resolves one 68k effective address into a host
// pointer (or, for JSR/JMP targets, a guest address) stored in the
// CPU state's AmodeP or ReversedAmodeP slot, consuming the operand
// words the translator emitted for it (internal/translate/decode.go's
// emitEA). Grounded in the teacher's GetEffectiveAddress
// (cpu_m68k.go), restructured into per-mode dispatch-table entries
// instead of one big switch evaluated at execution time.

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package interp

import (
	"unsafe"

	"github.com/intuitionamiga/m68kjit/internal/cc"
	"github.com/intuitionamiga/m68kjit/internal/synth"
)

func init() {
	register(synth.TokAmodeDReg, amodeDReg)
	register(synth.TokAmodeAReg, amodeAReg)
	register(synth.TokAmodeARInd, amodeARInd)
	register(synth.TokAmodeARPostInc, amodeARPostInc)
	register(synth.TokAmodeARPreDec, amodeARPreDec)
	register(synth.TokAmodeARDisp, amodeARDisp)
	register(synth.TokAmodeARIndex, amodeARIndex)
	register(synth.TokAmodeAbsShort, amodeAbsShort)
	register(synth.TokAmodeAbsLong, amodeAbsLong)
	register(synth.TokAmodePCDisp, amodePCDisp)
	register(synth.TokAmodePCIndex, amodePCIndex)
	register(synth.TokAmodeImmediate, amodeImmediate)
	register(synth.TokAmodeCleanupPostInc, amodeCleanupPostInc)
	register(synth.TokAmodeCleanupPreDec, amodeCleanupPreDec) // unused by the translator today, kept for symmetry
}

func unpackRegSlot(w synth.Word) (reg int, slot synth.AmodeSlot) {
	return int(w & 0x7), synth.AmodeSlot((w >> 3) & 0x1)
}

func unpackRegSlotSize(w synth.Word) (reg int, slot synth.AmodeSlot, size cc.Size) {
	reg, slot = unpackRegSlot(w)
	switch (w >> 4) & 0x3 {
	case 0:
		size = cc.Byte
	case 1:
		size = cc.Word
	default:
		size = cc.Long
	}
	return
}

func setSlot(ip *Interpreter, slot synth.AmodeSlot, p unsafe.Pointer) {
	if slot == synth.SlotReversedAmodeP {
		ip.State.ReversedAmodeP = uintptr(p)
	} else {
		ip.State.AmodeP = uintptr(p)
	}
}

func amodeDReg(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	reg, slot := unpackRegSlot(code[idx])
	setSlot(ip, slot, unsafe.Pointer(&ip.State.D[reg]))
	return idx + 1, false
}

func amodeAReg(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	reg, slot := unpackRegSlot(code[idx])
	setSlot(ip, slot, unsafe.Pointer(&ip.State.A[reg]))
	return idx + 1, false
}

func amodeARInd(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	reg, slot := unpackRegSlot(code[idx])
	setSlot(ip, slot, ip.State.Mapper.GuestToHost(ip.State.A[reg]))
	return idx + 1, false
}

// stackStepBytes is the An adjustment for a push/pop/inc/dec of the
// given operand size: byte operations on a7 still move it by 2 to
// keep the stack word-aligned (spec.md §4.B), matching the teacher's
// Push16/stack-alignment convention.
func stackStepBytes(reg int, size cc.Size) uint32 {
	if size == cc.Byte && reg == 7 {
		return 2
	}
	return uint32(size)
}

func amodeARPostInc(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	reg, slot := unpackRegSlot(code[idx])
	setSlot(ip, slot, ip.State.Mapper.GuestToHost(ip.State.A[reg]))
	return idx + 1, false
}

func amodeCleanupPostInc(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	reg, _, size := unpackRegSlotSize(code[idx])
	ip.State.A[reg] += stackStepBytes(reg, size)
	return idx + 1, false
}

func amodeARPreDec(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	reg, slot, size := unpackRegSlotSize(code[idx])
	ip.State.A[reg] -= stackStepBytes(reg, size)
	setSlot(ip, slot, ip.State.Mapper.GuestToHost(ip.State.A[reg]))
	return idx + 1, false
}

// amodeCleanupPreDec exists only for symmetry with the cleanup-token
// pattern; the translator never emits it because pre-decrement must
// happen before the address is used, not after (see amodeARPreDec).
func amodeCleanupPreDec(_ *Interpreter, _ []synth.Word, idx int) (int, bool) {
	return idx + 1, false
}

func amodeARDisp(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	reg, slot := unpackRegSlot(code[idx])
	disp := int32(code[idx+1])
	addr := uint32(int32(ip.State.A[reg]) + disp)
	setSlot(ip, slot, ip.State.Mapper.GuestToHost(addr))
	return idx + 2, false
}

// decodeBriefExtension splits a 68k brief extension word into its
// index register number, whether it's an address register, whether
// the index is sign-extended from word or taken as a full long, and
// the 8-bit displacement.
func decodeBriefExtension(ext synth.Word) (idxReg int, isAreg, isLong bool, disp8 int32) {
	idxReg = int((ext >> 12) & 0x7)
	isAreg = ext&0x8000 != 0
	isLong = ext&0x0800 != 0
	disp8 = int32(int8(ext & 0xFF))
	return
}

func (ip *Interpreter) indexValue(reg int, isAreg, isLong bool) int32 {
	var v uint32
	if isAreg {
		v = ip.State.A[reg]
	} else {
		v = ip.State.D[reg]
	}
	if !isLong {
		return int32(int16(uint16(v)))
	}
	return int32(v)
}

func amodeARIndex(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	reg, slot := unpackRegSlot(code[idx])
	ext := code[idx+1]
	idxReg, isAreg, isLong, disp8 := decodeBriefExtension(ext)
	index := ip.indexValue(idxReg, isAreg, isLong)
	addr := uint32(int32(ip.State.A[reg]) + index + disp8)
	setSlot(ip, slot, ip.State.Mapper.GuestToHost(addr))
	return idx + 2, false
}

func amodeAbsShort(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	_, slot := unpackRegSlot(code[idx])
	addr := uint32(int32(code[idx+1]))
	setSlot(ip, slot, ip.State.Mapper.GuestToHost(addr))
	return idx + 2, false
}

func amodeAbsLong(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	_, slot := unpackRegSlot(code[idx])
	addr := uint32(code[idx+1])
	setSlot(ip, slot, ip.State.Mapper.GuestToHost(addr))
	return idx + 2, false
}

func amodePCDisp(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	_, slot := unpackRegSlot(code[idx])
	target := uint32(code[idx+1]) // precomputed at translate time
	setSlot(ip, slot, ip.State.Mapper.GuestToHost(target))
	return idx + 2, false
}

func amodePCIndex(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	_, slot := unpackRegSlot(code[idx])
	base := uint32(code[idx+1])
	ext := code[idx+2]
	idxReg, isAreg, isLong, _ := decodeBriefExtension(ext)
	index := ip.indexValue(idxReg, isAreg, isLong)
	addr := uint32(int32(base) + index)
	setSlot(ip, slot, ip.State.Mapper.GuestToHost(addr))
	return idx + 3, false
}

func amodeImmediate(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	_, slot := unpackRegSlot(code[idx])
	// The immediate value lives in the Block's own Code slice, which
	// is allocated once and never reallocated after translation, so a
	// pointer into it is stable for the Block's lifetime.
	setSlot(ip, slot, unsafe.Pointer(&code[idx+1]))
	return idx + 2, false
}
