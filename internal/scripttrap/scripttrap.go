// scripttrap.go - Lua-scriptable trap/callback handlers (spec.md component L)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package scripttrap lets a TRAP vector or magic-address callback be
// implemented in Lua instead of Go, using github.com/yuin/gopher-lua,
// so a debugging session or a guest-OS stub can be described in a
// script loaded at runtime rather than requiring a rebuild. Handlers
// satisfy cpustate.CallbackFunc, the same signature every other
// trap/callback installer in this module uses.
package scripttrap

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Handler owns one Lua state and exposes its registered functions as
// cpustate.CallbackFunc-shaped trap/callback handlers. A Handler is not
// safe for concurrent calls from multiple goroutines — guest execution
// in this module is single-threaded per Interpreter, so one Lua state
// per Interpreter is sufficient; the mutex only guards against the
// (rare) case of a host-side debugger invoking a script concurrently.
type Handler struct {
	mu sync.Mutex
	L  *lua.LState
}

// New creates a Handler with a fresh Lua state and loads script (Lua
// source, not a path) into it. The script is expected to define one or
// more global functions taking (pc, arg) and returning the next PC,
// matching the Lua-side contract Bind's wrapper enforces.
func New(script string) (*Handler, error) {
	L := lua.NewState()
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("scripttrap: loading script: %w", err)
	}
	return &Handler{L: L}, nil
}

// Close releases the underlying Lua state.
func (h *Handler) Close() { h.L.Close() }

// Bind returns a cpustate.CallbackFunc that invokes the named Lua
// global, passing pc and the Go value in arg through as a Lua
// userdata the script may ignore, and interpreting the function's
// first return value as the next guest PC. A Lua error or a handler
// that forgets to return a value resolves to pc unchanged, so a buggy
// script degrades to a no-op trap rather than crashing the emulator.
func (h *Handler) Bind(fnName string) func(pc uint32, arg any) uint32 {
	return func(pc uint32, arg any) uint32 {
		h.mu.Lock()
		defer h.mu.Unlock()

		fn := h.L.GetGlobal(fnName)
		if fn == lua.LNil {
			return pc
		}
		h.L.Push(fn)
		h.L.Push(lua.LNumber(pc))
		h.L.Push(&lua.LUserData{Value: arg})
		if err := h.L.PCall(2, 1, nil); err != nil {
			return pc
		}
		ret := h.L.Get(-1)
		h.L.Pop(1)
		if n, ok := ret.(lua.LNumber); ok {
			return uint32(int64(n))
		}
		return pc
	}
}
