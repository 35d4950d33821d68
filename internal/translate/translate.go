// translate.go - Guest-PC-to-Block translator (spec.md component E)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package translate builds Blocks from guest memory: starting at a
// guest PC, it decodes 68k instructions one at a time, emitting each
// as a short run of synthetic opcode Words, until it reaches (and
// includes) the first control-transfer instruction or a safety length
// cap. This mirrors the teacher's FetchAndDecodeInstruction/decodeGroup0..F
// dispatch table in cpu_m68k.go, restructured to emit a synthetic
// opcode stream instead of executing directly.
package translate

import (
	"fmt"

	"github.com/intuitionamiga/m68kjit/internal/addr"
	"github.com/intuitionamiga/m68kjit/internal/block"
	"github.com/intuitionamiga/m68kjit/internal/mem"
	"github.com/intuitionamiga/m68kjit/internal/synth"
)

// MaxBlockWords bounds runaway translation (e.g. a decode table gap
// that never reports a control transfer) the way syn68k's
// MAX_OPCODES_PER_BLOCK guards generate_block.
const MaxBlockWords = 4096

// MaxBlockInstructions bounds straight-line length even when every
// decoded instruction is individually well formed.
const MaxBlockInstructions = 512

// Translator decodes guest instructions into Blocks. It holds no
// mutable state of its own beyond the address mapper; one Translator
// may safely build Blocks for any number of Stores.
type Translator struct {
	mapper addr.Mapper
}

// New builds a Translator reading guest code through mapper.
func New(mapper addr.Mapper) *Translator {
	return &Translator{mapper: mapper}
}

var _ block.Translator = (*Translator)(nil)

// Translate implements block.Translator.
func (t *Translator) Translate(guestPC uint32) (*block.Block, error) {
	d := &decoder{
		mapper: t.mapper,
		pc:     guestPC,
	}

	// Block preamble: guest start address (so a fault or the debugger
	// can report which block it's in), the NOP the first-ever landing
	// jumps past, and the execution counter slot a recompile backend
	// consults (spec.md §3, SPEC_FULL.md §4.J).
	d.emit(synth.Word(guestPC))
	d.emit(synth.Word(synth.TokPreambleNOP))
	d.emit(synth.Word(synth.TokCounter))
	d.emit(synth.Word(0)) // call counter, incremented in place by the interpreter

	for {
		if len(d.code) >= MaxBlockWords || d.instructions >= MaxBlockInstructions {
			break
		}
		opcode, err := d.fetch16()
		if err != nil {
			return nil, err
		}
		terminal, err := d.decode(opcode)
		if err != nil {
			return nil, err
		}
		d.instructions++
		if terminal {
			break
		}
	}

	return &block.Block{
		GuestStart:  guestPC,
		GuestLength: d.pc - guestPC,
		Code:        d.code,
	}, nil
}

// decoder holds the transient state of one Translate call: the guest
// read cursor and the synthetic code accumulated so far.
type decoder struct {
	mapper       addr.Mapper
	pc           uint32
	code         []synth.Word
	instructions int
}

func (d *decoder) emit(w synth.Word) {
	d.code = append(d.code, w)
}

func (d *decoder) fetch16() (uint16, error) {
	v := mem.ReadU16(d.mapper, d.pc)
	d.pc += 2
	return v, nil
}

func (d *decoder) fetch32() (uint32, error) {
	v := mem.ReadU32(d.mapper, d.pc)
	d.pc += 4
	return v, nil
}

// errUnimplemented marks an opcode this translator's instruction set
// doesn't cover; the interpreter will never see it because Translate
// returns before emitting a handler token for it.
func errUnimplemented(opcode uint16, pc uint32) error {
	return fmt.Errorf("translate: unimplemented opcode %#04x at guest pc %#08x", opcode, pc)
}
