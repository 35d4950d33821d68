// callback_ops.go - TokCallback dispatch (spec.md component G)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package interp

import "github.com/intuitionamiga/m68kjit/internal/synth"

func init() {
	register(synth.TokCallback, callbackTok)
}

// callbackTok invokes the Go handler installed at this Block's magic
// address (callback.Table.Install), passing the magic address itself
// as the call-site PC, and resumes at whatever guest address the
// handler returns — typically the return address the guest already
// pushed before its JSR, which the handler pops itself.
func callbackTok(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	slot := int(code[idx])
	if ip.Callbacks == nil {
		ip.fatalf("callback dispatched at %#08x with no callback table installed", ip.blockStartPC)
		return idx, true
	}
	fn, arg, ok := ip.Callbacks.At(slot)
	if !ok {
		ip.fatalf("no handler registered for callback slot %d", slot)
		return idx, true
	}
	ip.guestPC = fn(ip.blockStartPC, arg)
	return idx + 1, true
}
