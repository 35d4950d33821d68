// synth.go - Synthetic opcode stream format and direct-threaded dispatch

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package synth defines the pointer-sized-word synthetic opcode
// stream a Block's body is made of (spec.md §3, §6), and the
// dispatch-token catalog the translator emits into it.
//
// Go cannot take the address of a goto label, so true
// address-of-label direct threading (spec.md §9's option (a)) is not
// available; this module takes the explicitly sanctioned fallback
// (option (b)): every synthetic opcode is a small integer Token, and a
// function-pointer table built once at init() maps each token to its
// handler. Dispatch is still O(1) per step and the table is populated
// exactly once, which keeps the "dispatch is an array load plus an
// indirect call" shape the spec calls for even without label
// addresses.
package synth

// Word is one element of a Block's synthetic code array: either a
// dispatch Token or an operand (an embedded immediate, a guest
// address, or a decoded field the following handler consumes).
type Word uint64

// Token identifies a dispatch-table entry. Values below FirstOpcodeToken
// are the reserved meta-operations spec.md §6 calls out (0x0000 to
// 0x00B4 in the spec's catalog numbering); this module uses a much
// smaller, Go-native numbering for the same roles, since the specific
// numeric values are an implementation artifact of the C original and
// not an external wire format this module must match byte-for-byte.
type Token uint16

// Reserved meta-operation tokens (spec.md §6).
const (
	TokExit         Token = iota // EXIT_EMULATOR: the only clean exit from Execute
	TokPreambleNOP               // NOP past the block preamble; first token the loop ever lands on
	TokCounter                   // count-executions-maybe-recompile preamble slot
	TokDebugger                  // invoke the debugger hook
	TokCallback                  // invoke a registered host callback/trap handler
	TokFastJSR                   // JSR that records a recent-JSR ring entry
	TokFastRTS                   // RTS that tries the recent-JSR ring before a hash lookup

	// Addressing-mode compute family (spec.md §4.E item 2, §4.F).
	TokAmodeDReg
	TokAmodeAReg
	TokAmodeARInd
	TokAmodeARPostInc
	TokAmodeARPreDec
	TokAmodeARDisp
	TokAmodeARIndex
	TokAmodeAbsShort
	TokAmodeAbsLong
	TokAmodePCDisp
	TokAmodePCIndex
	TokAmodeImmediate
	TokAmodeMemIndirect // general memory-indirect pre/post-indexed opcode (spec.md §4.F)

	// Cleanup opcode for post-increment/pre-decrement operand sizing
	// (spec.md §4.E item 3).
	TokAmodeCleanupPostInc
	TokAmodeCleanupPreDec

	firstOpcodeToken // sentinel: real instruction opcodes start here
)

// FirstOpcodeToken is the first token value the translator's per-
// opcode table may assign to a decoded 68k instruction.
const FirstOpcodeToken = firstOpcodeToken

// AmodeSlot selects which per-CPU amode slot an amode-compute opcode
// fills: most instructions read AmodeP; two-operand instructions whose
// left operand is the destination read ReversedAmodeP instead
// (spec.md §4.F).
type AmodeSlot uint8

const (
	SlotAmodeP AmodeSlot = iota
	SlotReversedAmodeP
)

// MemIndirectFlags packs the flags word the general memory-indirect
// opcode interprets: index-suppress, base-suppress, index size,
// scale, pre- vs post-indirection, and which slot to fill (spec.md
// §4.F).
type MemIndirectFlags uint16

const (
	MIFlagSuppressIndex MemIndirectFlags = 1 << iota
	MIFlagSuppressBase
	MIFlagIndexIsLong
	MIFlagPostIndexed // if clear, pre-indexed
	MIFlagReversedSlot
)

func (f MemIndirectFlags) Scale() uint8 {
	return uint8((f >> 8) & 0x3)
}

func WithScale(f MemIndirectFlags, scale uint8) MemIndirectFlags {
	return f | MemIndirectFlags(scale&0x3)<<8
}
