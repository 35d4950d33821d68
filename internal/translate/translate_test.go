// translate_test.go - re-translate idempotence and block-termination
// invariants (spec.md §8)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package translate

import (
	"testing"
	"unsafe"

	"github.com/intuitionamiga/m68kjit/internal/addr"
	"github.com/intuitionamiga/m68kjit/internal/mem"
)

func newTestMapper(t *testing.T, size uint32) addr.Mapper {
	t.Helper()
	buf := make([]byte, size)
	return addr.NewSingleOffset(unsafe.Pointer(&buf[0]), size, false)
}

// wordsEqual compares two synthetic code slices element by element.
func wordsEqual(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestRetranslateIsIdempotent checks that translating the same,
// unmodified guest bytes twice produces Blocks with identical length
// and synthetic code, the property a self-modify invalidate-then-
// retranslate cycle over unchanged memory depends on.
func TestRetranslateIsIdempotent(t *testing.T) {
	mapper := newTestMapper(t, 64<<10)
	const base = 0x4000

	mem.WriteU16(mapper, base, 0x203C)   // MOVE.L #$12345678,D0
	mem.WriteU32(mapper, base+2, 0x12345678)
	mem.WriteU16(mapper, base+6, 0x4E75) // RTS

	tr := New(mapper)
	first, err := tr.Translate(base)
	if err != nil {
		t.Fatalf("Translate (first): %v", err)
	}
	second, err := tr.Translate(base)
	if err != nil {
		t.Fatalf("Translate (second): %v", err)
	}

	if first.GuestLength != second.GuestLength {
		t.Fatalf("GuestLength differs across re-translation: %d vs %d", first.GuestLength, second.GuestLength)
	}
	a := make([]uint64, len(first.Code))
	for i, w := range first.Code {
		a[i] = uint64(w)
	}
	b := make([]uint64, len(second.Code))
	for i, w := range second.Code {
		b[i] = uint64(w)
	}
	if !wordsEqual(a, b) {
		t.Fatalf("Code differs across re-translation of unchanged bytes:\n%v\nvs\n%v", a, b)
	}
}

// TestBlockEndsAtControlTransfer checks that a straight-line run
// terminates its Block at the control-transfer instruction and that
// GuestLength accounts for exactly the bytes decoded, not more.
func TestBlockEndsAtControlTransfer(t *testing.T) {
	mapper := newTestMapper(t, 64<<10)
	const base = 0x5000

	mem.WriteU16(mapper, base, 0x4E71)   // NOP
	mem.WriteU16(mapper, base+2, 0x4E71) // NOP
	mem.WriteU16(mapper, base+4, 0x4E75) // RTS
	mem.WriteU16(mapper, base+6, 0x4E71) // NOP, must not be included

	blk, err := New(mapper).Translate(base)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if blk.GuestLength != 6 {
		t.Fatalf("GuestLength = %d, want 6 (two NOPs + RTS, stopping before the trailing NOP)", blk.GuestLength)
	}
}

// TestUnimplementedOpcodeReportsError checks that an opcode outside
// this translator's covered instruction set produces an error rather
// than silently mistranslating (spec.md §4.E/§4.F's scope).
func TestUnimplementedOpcodeReportsError(t *testing.T) {
	mapper := newTestMapper(t, 64<<10)
	const base = 0x6000

	mem.WriteU16(mapper, base, 0xA000) // 1010 group: unimplemented by this translator

	if _, err := New(mapper).Translate(base); err == nil {
		t.Fatalf("Translate on an unimplemented opcode returned no error")
	}
}

// TestMaxBlockInstructionsCapsStraightLineLength checks that a run of
// non-terminal instructions longer than MaxBlockInstructions stops
// there rather than growing without bound.
func TestMaxBlockInstructionsCapsStraightLineLength(t *testing.T) {
	mapper := newTestMapper(t, 1<<20)
	const base = 0x7000

	for i := 0; i < MaxBlockInstructions+10; i++ {
		mem.WriteU16(mapper, base+uint32(i*2), 0x4E71) // NOP
	}

	blk, err := New(mapper).Translate(base)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if blk.GuestLength != uint32(MaxBlockInstructions*2) {
		t.Fatalf("GuestLength = %d, want %d (capped at MaxBlockInstructions NOPs)", blk.GuestLength, MaxBlockInstructions*2)
	}
}
