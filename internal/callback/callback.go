// callback.go - Magic-address callback and trap table (spec.md component G)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package callback implements syn68k's magic-address callback
// mechanism: a slab of guest addresses that can never hold real 68k
// code, each one overlaid with a one-token artificial Block that,
// when control reaches it, invokes a registered Go function instead
// of interpreting anything (original_source/include/syn68k_public.h's
// callback_install/callback_remove/trap_install_handler, grounded in
// the same header's MAGIC_ADDRESS_BASE/CALLBACK_SLOP convention).
package callback

import (
	"fmt"

	"github.com/intuitionamiga/m68kjit/internal/block"
	"github.com/intuitionamiga/m68kjit/internal/cpustate"
	"github.com/intuitionamiga/m68kjit/internal/synth"
)

// SlopWords reserves a few slots below the table's first real entry,
// mirroring CALLBACK_SLOP: code that pokes around before the array it
// was handed still lands somewhere dereferenceable.
const SlopWords = 16

// MaxSlots bounds the callback table; syn68k has no such bound since
// its slab is just malloc'd memory, but a fixed Go slice is simpler
// and the limit is generous for any realistic set of host traps.
const MaxSlots = 4096

type slot struct {
	handler cpustate.CallbackFunc
	arg     any
	inUse   bool
}

// Table owns one contiguous band of magic guest addresses, each two
// bytes apart (matching syn68k's uint16 callback_dummy_address_space
// stride), and the Block store those addresses are installed into.
type Table struct {
	base    uint32
	slots   []slot
	nextIdx int
	free    []int
	store   *block.Store
}

// NewTable reserves a callback band starting at base (a guest address
// no real code will ever execute from) in the given Block store.
func NewTable(base uint32, store *block.Store) *Table {
	return &Table{base: base, slots: make([]slot, MaxSlots), store: store}
}

// Base returns the first usable magic address, past the slop region.
func (t *Table) Base() uint32 { return t.base + SlopWords*2 }

// Install registers fn/arg and returns the magic guest address guest
// code can JSR or JMP to invoke it (spec.md §4.G's callback_install).
func (t *Table) Install(fn cpustate.CallbackFunc, arg any) (uint32, error) {
	var idx int
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if t.nextIdx >= len(t.slots) {
			return 0, fmt.Errorf("callback: table exhausted (max %d slots)", MaxSlots)
		}
		idx = t.nextIdx
		t.nextIdx++
	}
	t.slots[idx] = slot{handler: fn, arg: arg, inUse: true}

	addr := t.Base() + uint32(idx)*2
	t.store.InsertArtificial(&block.Block{
		GuestStart:  addr,
		GuestLength: 2,
		Immortal:    true,
		Code: []synth.Word{
			synth.Word(addr),
			synth.Word(synth.TokPreambleNOP),
			synth.Word(synth.TokCounter),
			0,
			synth.Word(synth.TokCallback),
			synth.Word(idx),
		},
	})
	return addr, nil
}

// Remove uninstalls the handler at the given magic address and
// retires its Block, matching callback_remove.
func (t *Table) Remove(addr uint32) {
	idx, ok := t.slotIndex(addr)
	if !ok || !t.slots[idx].inUse {
		return
	}
	t.store.RemoveAt(addr)
	t.slots[idx] = slot{}
	t.free = append(t.free, idx)
}

// Argument returns the opaque argument registered at addr
// (callback_argument).
func (t *Table) Argument(addr uint32) any {
	if idx, ok := t.slotIndex(addr); ok {
		return t.slots[idx].arg
	}
	return nil
}

// Function returns the handler registered at addr (callback_function).
func (t *Table) Function(addr uint32) cpustate.CallbackFunc {
	if idx, ok := t.slotIndex(addr); ok {
		return t.slots[idx].handler
	}
	return nil
}

// At returns the handler and argument registered for the given slot
// index, as decoded from a TokCallback operand word by the
// interpreter.
func (t *Table) At(idx int) (cpustate.CallbackFunc, any, bool) {
	if idx < 0 || idx >= len(t.slots) || !t.slots[idx].inUse {
		return nil, nil, false
	}
	s := t.slots[idx]
	return s.handler, s.arg, true
}

func (t *Table) slotIndex(addr uint32) (int, bool) {
	base := t.Base()
	if addr < base {
		return 0, false
	}
	idx := int((addr - base) / 2)
	if idx >= len(t.slots) {
		return 0, false
	}
	return idx, true
}

// Traps is the 64-entry fixed trap-vector table (trap_install_handler
// / trap_remove_handler): unlike callbacks, traps are addressed by a
// small fixed vector number rather than a guest address, and are
// consulted directly by TRAP's handler rather than through a Block.
type Traps struct {
	handlers [cpustate.NumTraps]cpustate.TrapHandler
}

func NewTraps() *Traps { return &Traps{} }

func (t *Traps) Install(vector uint8, fn cpustate.CallbackFunc, arg any) {
	t.handlers[vector] = cpustate.TrapHandler{Func: fn, Arg: arg}
}

func (t *Traps) Remove(vector uint8) {
	t.handlers[vector] = cpustate.TrapHandler{}
}

func (t *Traps) At(vector uint8) (cpustate.CallbackFunc, any, bool) {
	h := t.handlers[vector]
	return h.Func, h.Arg, h.Func != nil
}
