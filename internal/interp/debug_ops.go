// debug_ops.go - Debugger hook dispatch (spec.md §6's debugger/next_breakpoint hooks)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package interp

import "github.com/intuitionamiga/m68kjit/internal/synth"

// DebuggerFunc matches spec.md §6's debugger(guest_pc) -> resume_pc
// hook: called when a TokDebugger token is reached, returning the
// guest PC execution should actually resume at (ordinarily the same
// address, unless the debugger wants to redirect control).
type DebuggerFunc func(guestPC uint32) (resumePC uint32)

// BreakpointFunc matches next_breakpoint(guest_pc) -> guest_addr: asked
// by a host tool to find the next address at or after guestPC a
// debugger build should stop at. It has no dispatch token of its own;
// it is a host-side query, not something guest execution reaches.
type BreakpointFunc func(guestPC uint32) (guestAddr uint32)

func init() {
	register(synth.TokDebugger, debuggerTok)
}

// debuggerTok invokes the installed debugger hook with this block's
// start address (the only guest PC known without per-instruction PC
// tracking) and resumes at whatever address it returns. With no
// debugger installed this is a no-op that falls through to the next
// token, matching a non-debug build where TokDebugger is never emitted
// at all.
func debuggerTok(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	if ip.Debugger == nil {
		return idx, false
	}
	ip.guestPC = ip.Debugger(ip.blockStartPC)
	return idx, true
}
