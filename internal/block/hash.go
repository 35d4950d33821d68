// hash.go - Move-to-front hash table over Blocks keyed by guest PC

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package block

// hashTable is keyed by guest_start_address mod N, N a power of two,
// with collision chains kept in move-to-front order so that a hot
// Block promoted to its bucket head satisfies most lookups with a
// single pointer compare (spec.md §4.D).
type hashTable struct {
	buckets []*Block
	mask    uint32
}

func newHashTable(sizeLog2 uint) *hashTable {
	n := uint32(1) << sizeLog2
	return &hashTable{buckets: make([]*Block, n), mask: n - 1}
}

func (h *hashTable) bucketIndex(guestPC uint32) uint32 {
	return guestPC & h.mask
}

// lookup is the fast-path entry point: it inlines the "is the head of
// this bucket the one I want" check and only walks the chain on a
// miss, promoting the match to the head.
func (h *hashTable) lookup(guestPC uint32) *Block {
	i := h.bucketIndex(guestPC)
	head := h.buckets[i]
	if head == nil {
		return nil
	}
	if head.GuestStart == guestPC {
		return head // fast path: already at the head
	}

	prev := head
	for cur := head.hashNext; cur != nil; prev, cur = cur, cur.hashNext {
		if cur.GuestStart == guestPC {
			prev.hashNext = cur.hashNext
			cur.hashNext = head
			h.buckets[i] = cur
			return cur
		}
	}
	return nil
}

func (h *hashTable) insert(b *Block) {
	i := h.bucketIndex(b.GuestStart)
	b.hashNext = h.buckets[i]
	h.buckets[i] = b
}

func (h *hashTable) remove(b *Block) {
	i := h.bucketIndex(b.GuestStart)
	head := h.buckets[i]
	if head == b {
		h.buckets[i] = b.hashNext
		b.hashNext = nil
		return
	}
	for prev, cur := head, head.hashNext; cur != nil; prev, cur = cur, cur.hashNext {
		if cur == b {
			prev.hashNext = cur.hashNext
			b.hashNext = nil
			return
		}
	}
}
