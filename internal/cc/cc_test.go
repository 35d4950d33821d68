// cc_test.go - condition-code invariants across the add/sub/cmp x
// byte/word/long matrix (spec.md §8)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package cc

import "testing"

// truncate masks a uint32 down to size, matching what the interpreter
// does before handing dst/src/result to these methods.
func truncate(v uint32, size Size) uint32 {
	return v & mask(size)
}

func TestAddCarryAndOverflowMatrix(t *testing.T) {
	tests := []struct {
		name          string
		size          Size
		dst, src      uint32
		wantN, wantZ  bool
		wantV, wantC  bool
	}{
		{"byte no carry no overflow", Byte, 0x01, 0x01, false, false, false, false},
		{"byte carry out, no signed overflow", Byte, 0xFF, 0x01, false, true, false, true},
		{"byte positive+positive overflow to negative", Byte, 0x7F, 0x01, true, false, true, false},
		{"byte negative+negative overflow to positive (with carry)", Byte, 0x80, 0x80, false, true, true, true},
		{"word carry out", Word, 0xFFFF, 0x0001, false, true, false, true},
		{"word signed overflow", Word, 0x7FFF, 0x0001, true, false, true, false},
		{"long carry out", Long, 0xFFFFFFFF, 0x00000001, false, true, false, true},
		{"long signed overflow", Long, 0x7FFFFFFF, 0x00000001, true, false, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dst := truncate(tc.dst, tc.size)
			src := truncate(tc.src, tc.size)
			result := truncate(dst+src, tc.size)

			var f Flags
			f.Add(dst, src, result, tc.size)
			if f.N.Set() != tc.wantN || f.Z.Set() != tc.wantZ || f.V.Set() != tc.wantV || f.C.Set() != tc.wantC {
				t.Fatalf("Add(%#x,%#x) size=%v: N=%v Z=%v V=%v C=%v, want N=%v Z=%v V=%v C=%v",
					dst, src, tc.size, f.N.Set(), f.Z.Set(), f.V.Set(), f.C.Set(), tc.wantN, tc.wantZ, tc.wantV, tc.wantC)
			}
			if f.X != f.C {
				t.Fatalf("Add: X (%v) must always equal C (%v)", f.X.Set(), f.C.Set())
			}
		})
	}
}

func TestSubCarryAndOverflowMatrix(t *testing.T) {
	tests := []struct {
		name         string
		size         Size
		dst, src     uint32
		wantN, wantZ bool
		wantV, wantC bool
	}{
		{"byte equal operands", Byte, 0x10, 0x10, false, true, false, false},
		{"byte borrow", Byte, 0x00, 0x01, true, false, false, true},
		{"byte signed overflow (min - 1)", Byte, 0x80, 0x01, false, false, true, false},
		{"word borrow", Word, 0x0000, 0x0001, true, false, false, true},
		{"word signed overflow", Word, 0x8000, 0x0001, false, false, true, false},
		{"long borrow", Long, 0x00000000, 0x00000001, true, false, false, true},
		{"long signed overflow", Long, 0x80000000, 0x00000001, false, false, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dst := truncate(tc.dst, tc.size)
			src := truncate(tc.src, tc.size)
			result := truncate(dst-src, tc.size)

			var f Flags
			f.Sub(dst, src, result, tc.size)
			if f.N.Set() != tc.wantN || f.Z.Set() != tc.wantZ || f.V.Set() != tc.wantV || f.C.Set() != tc.wantC {
				t.Fatalf("Sub(%#x,%#x) size=%v: N=%v Z=%v V=%v C=%v, want N=%v Z=%v V=%v C=%v",
					dst, src, tc.size, f.N.Set(), f.Z.Set(), f.V.Set(), f.C.Set(), tc.wantN, tc.wantZ, tc.wantV, tc.wantC)
			}
			if f.X != f.C {
				t.Fatalf("Sub: X (%v) must always equal C (%v)", f.X.Set(), f.C.Set())
			}
		})
	}
}

// TestCmpMatchesSubExceptX checks that Cmp produces the same N/Z/V/C
// as Sub for the same operands, at every size, but never touches X
// (the 68k PRM's one documented difference between the two).
func TestCmpMatchesSubExceptX(t *testing.T) {
	sizes := []Size{Byte, Word, Long}
	operandPairs := [][2]uint32{
		{0x10, 0x10}, {0x00, 0x01}, {0x80, 0x01}, {0xFF, 0xFF}, {0x7F, 0xFF},
	}
	for _, size := range sizes {
		for _, p := range operandPairs {
			dst := truncate(p[0], size)
			src := truncate(p[1], size)
			result := truncate(dst-src, size)

			var sub, cmp Flags
			sub.X = 1 // pre-set to a known value Cmp must not touch
			cmp.X = 1
			sub.Sub(dst, src, result, size)
			cmp.Cmp(dst, src, result, size)

			if sub.N != cmp.N || sub.Z != cmp.Z || sub.V != cmp.V || sub.C != cmp.C {
				t.Fatalf("size=%v dst=%#x src=%#x: Sub={%+v} Cmp={%+v} disagree on N/Z/V/C", size, dst, src, sub, cmp)
			}
			if cmp.X != 1 {
				t.Fatalf("size=%v dst=%#x src=%#x: Cmp must never modify X, got X=%v", size, dst, src, cmp.X.Set())
			}
		}
	}
}

func TestNZVClearAlwaysClearsVAndC(t *testing.T) {
	for _, size := range []Size{Byte, Word, Long} {
		var f Flags
		f.V = 1
		f.C = 1
		f.X = 1
		f.NZVClear(0x12345678, size)
		if f.V.Set() || f.C.Set() {
			t.Fatalf("size=%v: NZVClear left V=%v C=%v, want both clear", size, f.V.Set(), f.C.Set())
		}
		if !f.X.Set() {
			t.Fatalf("size=%v: NZVClear must not touch X", size)
		}
	}
}

func TestZeroResultSetsZAcrossSizes(t *testing.T) {
	for _, size := range []Size{Byte, Word, Long} {
		var f Flags
		f.NZ(0, size)
		if !f.Z.Set() {
			t.Fatalf("size=%v: NZ(0) must set Z", size)
		}
		if f.N.Set() {
			t.Fatalf("size=%v: NZ(0) must clear N", size)
		}
	}
}
