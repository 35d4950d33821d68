// purego.go - purego-backed shared-library trampoline loading

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package recompile

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// trampolinePtr turns a Go TrampolineFunc into a C-callable function
// pointer purego can hand to native code, the same NewCallback pattern
// the rest of this module's corpus uses to cross the cgo-free host
// boundary. The returned pointer stays valid for the process lifetime.
func trampolinePtr(fn TrampolineFunc) uintptr {
	return purego.NewCallback(func(statePtr uintptr) uintptr {
		return uintptr(fn(statePtr))
	})
}

// SharedLibrary loads a dynamically-built native-code module (produced
// offline by some out-of-process recompiler, never by this package
// itself) and resolves a per-Block trampoline by guest start address
// through a single fixed symbol that multiplexes on its argument,
// mirroring the one-entry-point convention of a JIT-emitted overlay.
type SharedLibrary struct {
	handle uintptr
	lookup func(guestStart uint32) uintptr
}

// OpenSharedLibrary dlopen()s path and binds its "m68kjit_lookup_block"
// symbol, which must return 0 if nothing is compiled for the requested
// address or a callable native entry point otherwise.
func OpenSharedLibrary(path string) (*SharedLibrary, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("recompile: opening %s: %w", path, err)
	}
	var lookup func(uint32) uintptr
	purego.RegisterLibFunc(&lookup, handle, "m68kjit_lookup_block")
	return &SharedLibrary{handle: handle, lookup: lookup}, nil
}

func (l *SharedLibrary) Lookup(guestStart uint32) (TrampolineFunc, bool) {
	entry := l.lookup(guestStart)
	if entry == 0 {
		return nil, false
	}
	return func(statePtr uintptr) uint32 {
		r1, _, _ := purego.SyscallN(entry, statePtr)
		return uint32(r1)
	}, true
}
