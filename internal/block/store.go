// store.go - Content-addressed Block store (spec.md component D)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package block

// Translator builds a new Block for a guest PC that the store doesn't
// already have cached. Implemented by package translate; defined here
// (rather than imported) so block and translate don't form an import
// cycle — translate needs *Block, the store only needs "something
// that can make one".
type Translator interface {
	Translate(guestPC uint32) (*Block, error)
}

// ChecksumFunc recomputes a Block's source-bytes checksum for the
// self-modify defense (component I). Injected rather than imported
// for the same reason as Translator.
type ChecksumFunc func(b *Block) uint32

const wordBytes = 8 // synth.Word is a uint64

// Store is the Block store: three indexes (hash table, range tree,
// death queue) over one Block set, per spec.md §4.D.
type Store struct {
	hash   *hashTable
	ranges rangeTree
	dq     deathQueue

	translate Translator
	checksum  ChecksumFunc

	checksumMode  bool
	totalBytes    uint64
	byteThreshold uint64

	lookups uint64 // count of Lookup calls, for the JSR-ring fast-path test
}

// NewStore builds an empty Block store. hashBits sizes the hash table
// to 2^hashBits buckets. byteThreshold is the total synthetic-code
// byte count above which lookups start retiring the death queue's
// oldest entries before inserting a new Block.
func NewStore(hashBits uint, byteThreshold uint64, t Translator, cs ChecksumFunc) *Store {
	return &Store{
		hash:          newHashTable(hashBits),
		translate:     t,
		checksum:      cs,
		byteThreshold: byteThreshold,
	}
}

// SetChecksumMode toggles whether Invalidate destroys every
// overlapping Block (false, the default) or only those whose
// recomputed checksum has drifted (true).
func (s *Store) SetChecksumMode(enabled bool) {
	s.checksumMode = enabled
}

// Lookup returns the Block covering guestPC, translating and
// inserting a new one if the cache misses.
func (s *Store) Lookup(guestPC uint32) (*Block, error) {
	s.lookups++
	if b := s.hash.lookup(guestPC); b != nil {
		return b, nil
	}
	b, err := s.translate.Translate(guestPC)
	if err != nil {
		return nil, err
	}
	s.insert(b)
	return b, nil
}

// LookupCount returns the number of Lookup calls made so far, for
// tests asserting a JSR-ring hit saves a hash lookup (spec.md §8).
func (s *Store) LookupCount() uint64 {
	return s.lookups
}

// InsertArtificial registers a pre-built Block (used for the two
// magic immortal blocks: EXIT_EMULATOR and RTE) without going through
// the translator.
func (s *Store) InsertArtificial(b *Block) {
	s.insert(b)
}

func (s *Store) insert(b *Block) {
	s.reclaimIfOverThreshold()

	if s.checksum != nil {
		b.Checksum = s.checksum(b)
		b.ChecksumValid = true
	}

	s.hash.insert(b)
	s.ranges.insert(b)
	if !b.Immortal {
		s.dq.enqueue(b)
	}
	s.totalBytes += uint64(len(b.Code)) * wordBytes
}

func (s *Store) reclaimIfOverThreshold() {
	for s.byteThreshold > 0 && s.totalBytes > s.byteThreshold {
		if !s.RetireOldest() {
			return
		}
	}
}

// RemoveAt removes the Block starting at the given guest address, if
// any (used by package callback to retire a slot whose handler has been
// uninstalled). Returns true if a Block was removed, false if nothing
// is indexed there.
func (s *Store) RemoveAt(guestStart uint32) bool {
	b := s.hash.lookup(guestStart)
	if b == nil {
		return false
	}
	s.dq.dequeue(b)
	s.removeFromIndexes(b)
	return true
}

// RetireOldest pops the head of the death queue and removes it from
// the hash table and range tree. Returns false if the queue was
// empty.
func (s *Store) RetireOldest() bool {
	b := s.dq.popOldest()
	if b == nil {
		return false
	}
	s.removeFromIndexes(b)
	return true
}

func (s *Store) removeFromIndexes(b *Block) {
	s.hash.remove(b)
	s.ranges.remove(b)
	s.totalBytes -= uint64(len(b.Code)) * wordBytes
	b.Retired = true
}

// Invalidate destroys every non-immortal Block overlapping
// [guestAddr, guestAddr+numBytes), or (in checksum mode) only those
// whose recomputed checksum no longer matches. Returns the number of
// Blocks destroyed.
func (s *Store) Invalidate(guestAddr, numBytes uint32) int {
	hits := s.ranges.queryOverlapping(guestAddr, numBytes, nil)
	destroyed := 0
	for _, b := range hits {
		if b.Immortal {
			continue
		}
		if s.checksumMode && s.checksum != nil {
			if s.checksum(b) == b.Checksum {
				continue // source bytes unchanged; survives
			}
		}
		s.dq.dequeue(b)
		s.removeFromIndexes(b)
		destroyed++
	}
	return destroyed
}

// Len returns the number of Blocks currently indexed (for tests and
// diagnostics).
func (s *Store) Len() int {
	return s.dq.count + s.immortalCount()
}

func (s *Store) immortalCount() int {
	n := 0
	for _, head := range s.hash.buckets {
		for b := head; b != nil; b = b.hashNext {
			if b.Immortal {
				n++
			}
		}
	}
	return n
}
