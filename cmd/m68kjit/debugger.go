// debugger.go - Interactive debugger REPL (spec.md §6 debugger hooks)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/term"

	"github.com/intuitionamiga/m68kjit/engine"
)

// debugger drives the interactive REPL a guest NMI (Ctrl-C under
// -debug) drops into, matching terminal_host.go's raw-mode/restore
// bracketing for direct stdin access during the session.
type debugger struct {
	e            *engine.Engine
	oldTermState *term.State
}

func newDebugger(e *engine.Engine) *debugger {
	return &debugger{e: e}
}

// armBreakOnNextInterrupt installs a magic callback and points the
// level-7 NMI's exception vector (VBR+31*4; VBR is zero until guest
// code relocates it) at it, so a host Ctrl-C drives the normal
// vectored exception path straight into the REPL rather than needing
// a guest-side handler to have been loaded at all.
func (d *debugger) armBreakOnNextInterrupt() {
	magic, err := d.e.CallbackInstall(func(_ uint32, _ any) uint32 {
		// Reached through the NMI vector: unwind the exception frame so
		// the REPL shows, and resumes at, the interrupted guest PC.
		return d.repl(d.e.State.Rte())
	}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "m68kjit: debugger: %v\r\n", err)
		return
	}
	const nmiVector = 31
	vectorSlot := (*[4]byte)(d.e.Mapper.GuestToHost(nmiVector * 4))
	vectorSlot[0] = byte(magic >> 24)
	vectorSlot[1] = byte(magic >> 16)
	vectorSlot[2] = byte(magic >> 8)
	vectorSlot[3] = byte(magic)
}

// onDebugger is bound as the Interpreter's debugger hook; reached only
// when a Block explicitly contains a TokDebugger token. The translator
// in this module never emits that token, so nothing here marks
// breakpoints.
func (d *debugger) onDebugger(guestPC uint32) uint32 {
	return d.repl(guestPC)
}

// repl enters raw terminal mode, reads one command at a time, and
// returns the guest PC to resume at once the user continues.
func (d *debugger) repl(pc uint32) uint32 {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err == nil {
		d.oldTermState = oldState
		defer func() {
			_ = term.Restore(fd, d.oldTermState)
			d.oldTermState = nil
		}()
	}

	fmt.Printf("\r\nm68kjit debugger: stopped at %#08x\r\n", pc)
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("(m68kjit) \r\n")
		line, rerr := readRawLine(reader)
		if rerr != nil {
			return pc
		}
		switch line {
		case "c", "continue", "":
			return pc
		case "q", "quit":
			_ = term.Restore(fd, d.oldTermState)
			os.Exit(0)
		case "r", "regs":
			d.printRegs()
		default:
			fmt.Printf("unknown command %q (try c, r, q)\r\n", line)
		}
	}
}

// readRawLine reads one line from a raw-mode terminal, where \n and \r
// both terminate a line and the line itself still needs manual local
// echo since raw mode disables it.
func readRawLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\r' || b == '\n' {
			fmt.Print("\r\n")
			return string(buf), nil
		}
		if b == 0x7F || b == 0x08 {
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
				fmt.Print("\b \b")
			}
			continue
		}
		buf = append(buf, b)
		fmt.Printf("%c", b)
	}
}

func (d *debugger) printRegs() {
	s := d.e.State
	for i := 0; i < 8; i++ {
		fmt.Printf("D%d=%#08x  A%d=%#08x\r\n", i, s.D[i], i, s.A[i])
	}
	fmt.Printf("SR=%#04x\r\n", s.SR)
}

// unsafeSlice views the n bytes at p as a []byte without copying, for
// loading a guest image straight into the mapper's backing buffer.
func unsafeSlice(p unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(p), n)
}
