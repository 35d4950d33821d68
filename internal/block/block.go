// block.go - Translated code block representation

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package block implements spec.md's Block data type and the Block
// store (component D): a content-addressed collection of translated
// straight-line guest code regions, indexed for fast hash lookup,
// range-based invalidation, and LRU-style retirement.
package block

import "github.com/intuitionamiga/m68kjit/internal/synth"

// Block is a translated straight-line region of guest code.
type Block struct {
	GuestStart  uint32 // first guest PC this block covers
	GuestLength uint32 // length in guest bytes, for range-overlap invalidation

	// Code is the synthetic-opcode array: the guest start address (for
	// interrupt delivery that needs to know its own PC), an optional
	// native-code preamble slot, then [dispatch-token, operands...]
	// items, terminated by a control transfer (spec.md §3).
	Code []synth.Word

	Checksum       uint32 // fold of guest source bytes, valid when ChecksumValid
	ChecksumValid  bool
	NumTimesCalled uint64
	Immortal       bool // excluded from the death queue and from invalidation

	// Retired marks a Block removed from the store's indexes (death
	// queue eviction or invalidation). A hint cache holding this
	// pointer (the recent-JSR ring) must check this before trusting
	// the pointer instead of doing a fresh lookup, since the Block may
	// have outlived the indexes that would otherwise find it.
	Retired bool

	// NativeEntry is a host code pointer a pluggable recompile backend
	// may install once NumTimesCalled crosses its threshold (spec.md
	// §9's native-code recompiler plug point, expanded in SPEC_FULL.md
	// §4.J). Zero means "no native entry; interpret Code".
	NativeEntry uintptr

	// --- intrusive index bookkeeping: never touched outside package block ---

	hashNext *Block // next block in this bucket's move-to-front chain

	rtLeft, rtRight *Block
	rtMaxEnd        uint32 // max(GuestStart+GuestLength) over this subtree

	dqPrev, dqNext *Block // death queue FIFO links; nil when immortal or unqueued
}

// End returns the exclusive upper bound of this block's guest range.
func (b *Block) End() uint32 { return b.GuestStart + b.GuestLength }

// Overlaps reports whether [start, start+length) intersects this
// block's guest range.
func (b *Block) Overlaps(start, length uint32) bool {
	end := start + length
	return start < b.End() && b.GuestStart < end
}
