// addr_test.go - guest/host address round-trip invariants (spec.md §8)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package addr

import (
	"testing"
	"unsafe"
)

func TestSingleOffsetRoundTrip(t *testing.T) {
	buf := make([]byte, 64<<10)
	m := NewSingleOffset(unsafe.Pointer(&buf[0]), uint32(len(buf)), false)

	for _, guest := range []uint32{0, 1, 0x1000, 0xFFFF, uint32(len(buf) - 1)} {
		host := m.GuestToHost(guest)
		got := m.HostToGuest(host)
		if got != guest {
			t.Fatalf("HostToGuest(GuestToHost(%#x)) = %#x, want %#x", guest, got, guest)
		}
	}
}

func TestSingleOffsetTwentyFourBitClean(t *testing.T) {
	buf := make([]byte, 1<<24)
	m := NewSingleOffset(unsafe.Pointer(&buf[0]), uint32(len(buf)), true)

	// A guest address with garbage in the top byte must alias the same
	// host location as its 24-bit-masked equivalent.
	dirty := uint32(0xFF001234)
	clean := uint32(0x00001234)
	if m.GuestToHost(dirty) != m.GuestToHost(clean) {
		t.Fatalf("24-bit mapper: GuestToHost(%#x) != GuestToHost(%#x)", dirty, clean)
	}
}

func TestSingleOffsetHostToGuestOutOfRangeAborts(t *testing.T) {
	buf := make([]byte, 4096)
	m := NewSingleOffset(unsafe.Pointer(&buf[0]), uint32(len(buf)), false)

	defer func() {
		if recover() == nil {
			t.Fatalf("HostToGuest on a pointer outside the backing region didn't abort")
		}
	}()
	var outside byte
	m.HostToGuest(unsafe.Pointer(&outside))
}

func TestSegmentedRoundTrip(t *testing.T) {
	m := NewSegmented(2, false)
	bufs := make([][]byte, 4)
	for i := range bufs {
		bufs[i] = make([]byte, 1<<20)
		m.SetSegment(i, unsafe.Pointer(&bufs[i][0]), uint32(len(bufs[i])))
	}

	for i := 0; i < 4; i++ {
		for _, off := range []uint32{0, 1, 0x10000, (1 << 20) - 1} {
			guest := (uint32(i) << 30) + off
			host := m.GuestToHost(guest)
			got := m.HostToGuest(host)
			if got != guest {
				t.Fatalf("segment %d: HostToGuest(GuestToHost(%#x)) = %#x, want %#x", i, guest, got, guest)
			}
		}
	}
}

func TestSegmentedRemapOnMiss(t *testing.T) {
	m := NewSegmented(2, false)
	extra := make([]byte, 4096)
	installed := false
	m.Remap = func(host unsafe.Pointer) bool {
		if installed {
			return false
		}
		m.SetSegment(0, unsafe.Pointer(&extra[0]), uint32(len(extra)))
		installed = true
		return true
	}

	got := m.HostToGuest(unsafe.Pointer(&extra[10]))
	if got != 10 {
		t.Fatalf("HostToGuest after remap = %#x, want 10", got)
	}
	if !installed {
		t.Fatalf("remap callback was never invoked")
	}
}

func TestSegmentedHostToGuestNoRemapAborts(t *testing.T) {
	m := NewSegmented(2, false)
	defer func() {
		if recover() == nil {
			t.Fatalf("HostToGuest on an unclaimed pointer with no remap callback didn't abort")
		}
	}()
	var outside byte
	m.HostToGuest(unsafe.Pointer(&outside))
}
