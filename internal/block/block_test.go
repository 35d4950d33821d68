// block_test.go - Block store index-consistency and lifecycle
// invariants (spec.md §8)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package block

import (
	"testing"

	"github.com/intuitionamiga/m68kjit/internal/synth"
)

// countingTranslator builds a minimal, deterministic Block for any
// guest address it's asked for and counts how many times it was
// called, so tests can tell a hash hit from a retranslation.
type countingTranslator struct {
	calls  int
	length uint32
}

func (c *countingTranslator) Translate(guestPC uint32) (*Block, error) {
	c.calls++
	length := c.length
	if length == 0 {
		length = 4
	}
	return &Block{
		GuestStart:  guestPC,
		GuestLength: length,
		Code:        []synth.Word{synth.Word(guestPC), 0, 0, 0},
	}, nil
}

func newTestStore(byteThreshold uint64) (*Store, *countingTranslator) {
	tr := &countingTranslator{}
	return NewStore(8, byteThreshold, tr, nil), tr
}

// TestLookupHitsHashWithoutRetranslating checks the Block store's
// basic content-addressing invariant: a second Lookup at an address
// already indexed must return the exact same *Block, not a fresh
// translation.
func TestLookupHitsHashWithoutRetranslating(t *testing.T) {
	s, tr := newTestStore(0)

	first, err := s.Lookup(0x1000)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	second, err := s.Lookup(0x1000)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if first != second {
		t.Fatalf("second Lookup at an already-indexed address returned a different Block")
	}
	if tr.calls != 1 {
		t.Fatalf("translator called %d times, want 1 (second Lookup should hit the hash table)", tr.calls)
	}
}

// TestInvalidateRemovesFromHashAndRangeIndexes checks that a Block
// destroyed by Invalidate is gone from both the hash table (a later
// Lookup retranslates) and the range tree (a later Invalidate query
// over the same range doesn't find it again), and that it's marked
// Retired.
func TestInvalidateRemovesFromHashAndRangeIndexes(t *testing.T) {
	s, tr := newTestStore(0)

	blk, err := s.Lookup(0x2000)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if blk.Retired {
		t.Fatalf("freshly inserted Block is already Retired")
	}

	destroyed := s.Invalidate(0x2000, 1)
	if destroyed != 1 {
		t.Fatalf("Invalidate destroyed %d Blocks, want 1", destroyed)
	}
	if !blk.Retired {
		t.Fatalf("Invalidate didn't mark the destroyed Block Retired")
	}

	// Hash index: a Lookup at the same address must retranslate.
	if _, err := s.Lookup(0x2000); err != nil {
		t.Fatalf("Lookup after invalidate: %v", err)
	}
	if tr.calls != 2 {
		t.Fatalf("translator called %d times after invalidate+lookup, want 2", tr.calls)
	}

	// Range index: invalidating the same range again must find
	// nothing left to destroy from the original Block.
	if n := s.Invalidate(0x2000, 1); n != 1 {
		t.Fatalf("Invalidate after retranslation destroyed %d, want 1 (only the new Block)", n)
	}
}

// TestImmortalBlocksSurviveInvalidateAndAreUncounted checks that an
// Immortal Block (the EXIT_EMULATOR/RTE convention) is never destroyed
// by Invalidate and never enters the death queue, per spec.md §4.D.
func TestImmortalBlocksSurviveInvalidateAndAreUncounted(t *testing.T) {
	s, _ := newTestStore(0)

	immortal := &Block{GuestStart: 0xFFFF0000, GuestLength: 4, Code: []synth.Word{0, 0, 0, 0}, Immortal: true}
	s.InsertArtificial(immortal)

	if n := s.Invalidate(0xFFFF0000, 4); n != 0 {
		t.Fatalf("Invalidate destroyed %d immortal Blocks, want 0", n)
	}
	if immortal.Retired {
		t.Fatalf("immortal Block was marked Retired by Invalidate")
	}
	if !s.dq.isEmpty() {
		t.Fatalf("immortal Block was enqueued onto the death queue")
	}
	if got, err := s.Lookup(0xFFFF0000); err != nil || got != immortal {
		t.Fatalf("Lookup(0xFFFF0000) = %v, %v; want the immortal Block unchanged", got, err)
	}
}

// TestRetireOldestEvictsInFIFOOrder checks that once totalBytes
// crosses byteThreshold, the least-recently-inserted non-immortal
// Block is the one reclaimed, per spec.md §4.D's death-queue FIFO
// convention.
func TestRetireOldestEvictsInFIFOOrder(t *testing.T) {
	tr := &countingTranslator{length: 4}
	// Each Block's Code is 4 words = 32 bytes; a 32-byte threshold means
	// inserting the second Block already exceeds it, so the third
	// Lookup's pre-insert reclaim must evict the first (oldest) Block.
	s := NewStore(8, 32, tr, nil)

	first, err := s.Lookup(0x1000)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	second, err := s.Lookup(0x2000)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := s.Lookup(0x3000); err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if !first.Retired {
		t.Fatalf("oldest Block wasn't retired once the byte threshold was exceeded")
	}
	if second.Retired {
		t.Fatalf("second-oldest Block was retired before the oldest")
	}
}

// TestRangeTreeOverlapQuery exercises queryOverlapping against Blocks
// on both sides of a probe range, directly checking the interval-tree
// invariant that only genuinely overlapping Blocks are returned.
func TestRangeTreeOverlapQuery(t *testing.T) {
	s, _ := newTestStore(0)

	inRange, err := s.Lookup(0x1000) // [0x1000, 0x1004)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := s.Lookup(0x2000); err != nil { // [0x2000, 0x2004), outside the probe
		t.Fatalf("Lookup: %v", err)
	}

	hits := s.ranges.queryOverlapping(0x1002, 4, nil)
	if len(hits) != 1 || hits[0] != inRange {
		t.Fatalf("queryOverlapping(0x1002,4) = %v, want exactly [0x1000 Block]", hits)
	}
}

func (q *deathQueue) isEmpty() bool { return q.head == nil && q.count == 0 }
