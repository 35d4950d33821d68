// recompile.go - Pluggable native-code backend (spec.md §9's recompiler plug point)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package recompile implements the optional native-code escape hatch
// SPEC_FULL.md §4.J describes: once a Block's execution counter
// (block.Block.NumTimesCalled, the preamble's TokCounter slot) crosses
// a threshold, a Backend may install a host function pointer into
// Block.NativeEntry instead of letting the interpreter keep walking
// its synthetic opcode stream. This module never writes machine code
// itself — GENERATE_NATIVE_CODE in the original syn68k did, via a
// per-architecture native-code emitter this module deliberately
// doesn't reproduce (spec.md's Non-goals) — it only loads and calls
// pre-built trampolines through github.com/ebitengine/purego, the
// pattern the rest of this module's corpus uses for crossing into
// native shared libraries without cgo.
package recompile

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/intuitionamiga/m68kjit/internal/block"
)

// Backend decides whether a hot Block should get a native entry point
// and, if so, installs it.
type Backend interface {
	// Consider is called once per Lookup hit; implementations should be
	// cheap to call on the interpreter's hot path (a counter compare).
	Consider(b *block.Block)
}

// NoopBackend never recompiles anything; every Block stays
// interpreted. This is the default and the only backend exercised in
// environments without a prebuilt native trampoline library available.
type NoopBackend struct{}

func (NoopBackend) Consider(*block.Block) {}

// HotThreshold is the default NumTimesCalled value HostFuncBackend
// recompiles at, chosen to be well past the point a translation's
// Block.Code has stabilized but without waiting so long the benefit
// of native dispatch is never realized.
const HotThreshold = 1000

// TrampolineFunc is the native calling convention a compiled Block
// entry point must satisfy: given the host CPU-state pointer, run
// until the Block would have handed control back to the interpreter,
// and return the next guest PC.
type TrampolineFunc func(statePtr uintptr) uint32

// Library abstracts the purego-loaded shared object a HostFuncBackend
// pulls per-block trampolines from, so the backend doesn't need to
// know the library's path or symbol-naming scheme.
type Library interface {
	// Lookup returns the trampoline for the given guest start address,
	// or ok=false if this library has nothing compiled for it.
	Lookup(guestStart uint32) (fn TrampolineFunc, ok bool)
}

// HostFuncBackend installs a purego-bound native trampoline once a
// Block has been called HotThreshold times, bounding the number of
// concurrent install attempts in flight with a weighted semaphore so a
// burst of newly-hot Blocks doesn't spawn unbounded goroutines.
type HostFuncBackend struct {
	lib       Library
	sem       *semaphore.Weighted
	threshold uint64
}

// NewHostFuncBackend builds a backend over a purego-loaded Library,
// allowing at most maxInFlight concurrent compile/install attempts.
func NewHostFuncBackend(lib Library, maxInFlight int64) *HostFuncBackend {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &HostFuncBackend{lib: lib, sem: semaphore.NewWeighted(maxInFlight), threshold: HotThreshold}
}

// WithThreshold overrides the default hotness threshold.
func (b *HostFuncBackend) WithThreshold(n uint64) *HostFuncBackend {
	b.threshold = n
	return b
}

func (b *HostFuncBackend) Consider(blk *block.Block) {
	if blk.NativeEntry != 0 || blk.NumTimesCalled < b.threshold {
		return
	}
	if !b.sem.TryAcquire(1) {
		return // a compile for some other Block is already in flight; try again next hit
	}
	defer b.sem.Release(1)

	fn, ok := b.lib.Lookup(blk.GuestStart)
	if !ok {
		return
	}
	blk.NativeEntry = trampolinePtr(fn)
}

// AcquireSlot blocks until a compile slot is free, for a backend that
// wants to precompile a known hot path ahead of the counter threshold
// rather than waiting for Consider to notice it (e.g. from an offline
// profile). Released by calling ReleaseSlot.
func (b *HostFuncBackend) AcquireSlot(ctx context.Context) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("recompile: acquiring compile slot: %w", err)
	}
	return nil
}

func (b *HostFuncBackend) ReleaseSlot() { b.sem.Release(1) }
