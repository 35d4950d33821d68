// interrupt.go - Synchronous interrupt polling (spec.md component H)

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

// Package interrupt implements syn68k's polled interrupt model
// (original_source/runtime/interrupt.c): a host thread marks a
// priority pending, the emulator notices the sentinel at the next
// block boundary, and the highest eligible pending priority is
// delivered via the normal 68k exception sequence. There is no
// mid-instruction preemption (spec.md §4.H).
package interrupt

import "github.com/intuitionamiga/m68kjit/internal/cpustate"

// NMIPriority is the one interrupt priority that can never be masked
// by the CPU's interrupt priority level (interrupt.c: "priority 7
// interrupt cannot be masked").
const NMIPriority = 7

// Controller tracks which interrupt priorities are pending against a
// CPUState and performs the priority-vs-mask comparison and vectoring
// syn68k's interrupt_process_any_pending implements.
type Controller struct {
	state *cpustate.CPUState
}

// New builds a Controller over the given CPU state.
func New(state *cpustate.CPUState) *Controller {
	return &Controller{state: state}
}

// Generate marks priority (1..7) pending and flips the "something
// changed, re-check" sentinel, matching interrupt_generate. Priorities
// outside 1..7 are ignored, not clamped — the caller made a mistake
// and silently clamping would hide it.
func (c *Controller) Generate(priority int) {
	if priority >= 1 && priority <= 7 {
		c.state.InterruptPending[priority] = true
	}
	c.state.InterruptStatusChanged = cpustate.InterruptStatusChangedVal
}

// NoteIfPresent re-arms the "re-check" sentinel if any priority is
// still pending, matching interrupt_note_if_present. PollAt does not
// call it: PollAt clears the sentinel even when a priority masked by
// the current IPL stays pending, and polling then stays quiet until
// the next Generate or NoteIfPresent call.
func (c *Controller) NoteIfPresent() {
	for i := 1; i <= 7; i++ {
		if c.state.InterruptPending[i] {
			c.state.InterruptStatusChanged = cpustate.InterruptStatusChangedVal
			return
		}
	}
}

// Pending reports whether the emulator should stop and poll, a cheap
// check safe to call at every block boundary (spec.md §4.H).
func (c *Controller) Pending() bool {
	return c.state.InterruptStatusChanged < 0
}

// PollAt processes the single highest-priority pending interrupt, if
// any is eligible against the CPU's current interrupt priority level,
// and returns the guest PC execution should resume at. interruptPC is
// the guest address of the instruction about to execute when the
// interrupt was noticed. If nothing is eligible, interruptPC is
// returned unchanged (interrupt_process_any_pending).
func (c *Controller) PollAt(interruptPC uint32) uint32 {
	c.state.InterruptStatusChanged = cpustate.InterruptStatusUnchanged

	cpuPriority := int(c.state.InterruptMask())
	priority := -1
	if c.state.InterruptPending[NMIPriority] {
		priority = NMIPriority
	} else {
		for p := 6; p > cpuPriority; p-- {
			if c.state.InterruptPending[p] {
				priority = p
				break
			}
		}
	}

	if priority == -1 {
		return interruptPC
	}
	c.state.InterruptPending[priority] = false
	newPC := c.state.TrapDirect(uint8(24+priority), interruptPC)
	// TrapDirect pushes the old SR (old mask included) before this call;
	// the 68k exception sequence then raises the CPU's own interrupt
	// priority level to the one just serviced, so a same-or-lower
	// priority interrupt can't re-enter before RTE restores the old SR.
	c.state.SetInterruptMask(uint8(priority))
	return newPC
}
