// ops.go - 68k instruction semantics (spec.md component F)
//
// Grounded in the teacher's Exec* methods (cpu_m68k.go: ExecMove,
// ExecAdd, ExecSub, ExecMoveq, ExecLea, ExecClr, ExecTst, ExecScc's
// condition table, ProcessException/trap_direct), restructured to
// read/write through the AmodeP/ReversedAmodeP host pointers the
// amode-compute tokens (amode.go) already resolved, instead of calling
// GetEffectiveAddress inline per instruction.

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package interp

import (
	"github.com/intuitionamiga/m68kjit/internal/cc"
	"github.com/intuitionamiga/m68kjit/internal/synth"
)

// setDSized writes v into data register reg at the given operand size,
// leaving the register's higher-order bytes untouched (spec.md §3).
func setDSized(ip *Interpreter, reg int, v uint32, size cc.Size) {
	switch size {
	case cc.Byte:
		ip.State.SetDByte(reg, uint8(v))
	case cc.Word:
		ip.State.SetDWord(reg, uint16(v))
	default:
		ip.State.SetDLong(reg, v)
	}
}

func init() {
	register(synth.OpMoveB, move(cc.Byte))
	register(synth.OpMoveW, move(cc.Word))
	register(synth.OpMoveL, move(cc.Long))
	register(synth.OpMoveaW, movea(cc.Word))
	register(synth.OpMoveaL, movea(cc.Long))
	register(synth.OpMoveq, moveq)

	register(synth.OpORB, dyadicToDn(cc.Byte, logicOR, false))
	register(synth.OpORW, dyadicToDn(cc.Word, logicOR, false))
	register(synth.OpORL, dyadicToDn(cc.Long, logicOR, false))
	register(synth.OpOREaDnB, dyadicToDn(cc.Byte, logicOR, true))
	register(synth.OpOREaDnW, dyadicToDn(cc.Word, logicOR, true))
	register(synth.OpOREaDnL, dyadicToDn(cc.Long, logicOR, true))

	register(synth.OpANDB, dyadicToDn(cc.Byte, logicAND, false))
	register(synth.OpANDW, dyadicToDn(cc.Word, logicAND, false))
	register(synth.OpANDL, dyadicToDn(cc.Long, logicAND, false))
	register(synth.OpANDEaDnB, dyadicToDn(cc.Byte, logicAND, true))
	register(synth.OpANDEaDnW, dyadicToDn(cc.Word, logicAND, true))
	register(synth.OpANDEaDnL, dyadicToDn(cc.Long, logicAND, true))

	register(synth.OpEORB, dyadicToDn(cc.Byte, logicEOR, true))
	register(synth.OpEORW, dyadicToDn(cc.Word, logicEOR, true))
	register(synth.OpEORL, dyadicToDn(cc.Long, logicEOR, true))

	register(synth.OpAddB, addsub(cc.Byte, false, false))
	register(synth.OpAddW, addsub(cc.Word, false, false))
	register(synth.OpAddL, addsub(cc.Long, false, false))
	register(synth.OpAddEaDnB, addsub(cc.Byte, false, true))
	register(synth.OpAddEaDnW, addsub(cc.Word, false, true))
	register(synth.OpAddEaDnL, addsub(cc.Long, false, true))
	register(synth.OpSubB, addsub(cc.Byte, true, false))
	register(synth.OpSubW, addsub(cc.Word, true, false))
	register(synth.OpSubL, addsub(cc.Long, true, false))
	register(synth.OpSubEaDnB, addsub(cc.Byte, true, true))
	register(synth.OpSubEaDnW, addsub(cc.Word, true, true))
	register(synth.OpSubEaDnL, addsub(cc.Long, true, true))

	register(synth.OpAddaW, addsuba(cc.Word, false))
	register(synth.OpAddaL, addsuba(cc.Long, false))
	register(synth.OpSubaW, addsuba(cc.Word, true))
	register(synth.OpSubaL, addsuba(cc.Long, true))

	register(synth.OpAddiB, immediateArith(cc.Byte, false))
	register(synth.OpAddiW, immediateArith(cc.Word, false))
	register(synth.OpAddiL, immediateArith(cc.Long, false))
	register(synth.OpSubiB, immediateArith(cc.Byte, true))
	register(synth.OpSubiW, immediateArith(cc.Word, true))
	register(synth.OpSubiL, immediateArith(cc.Long, true))

	register(synth.OpAndiB, immediateLogic(cc.Byte, logicAND))
	register(synth.OpAndiW, immediateLogic(cc.Word, logicAND))
	register(synth.OpAndiL, immediateLogic(cc.Long, logicAND))
	register(synth.OpOriB, immediateLogic(cc.Byte, logicOR))
	register(synth.OpOriW, immediateLogic(cc.Word, logicOR))
	register(synth.OpOriL, immediateLogic(cc.Long, logicOR))
	register(synth.OpEoriB, immediateLogic(cc.Byte, logicEOR))
	register(synth.OpEoriW, immediateLogic(cc.Word, logicEOR))
	register(synth.OpEoriL, immediateLogic(cc.Long, logicEOR))

	register(synth.OpCmpiB, immediateCmp(cc.Byte))
	register(synth.OpCmpiW, immediateCmp(cc.Word))
	register(synth.OpCmpiL, immediateCmp(cc.Long))

	register(synth.OpAddqB, addqSubq(cc.Byte, false))
	register(synth.OpAddqW, addqSubq(cc.Word, false))
	register(synth.OpAddqL, addqSubq(cc.Long, false))
	register(synth.OpSubqB, addqSubq(cc.Byte, true))
	register(synth.OpSubqW, addqSubq(cc.Word, true))
	register(synth.OpSubqL, addqSubq(cc.Long, true))

	register(synth.OpCmpB, cmpToDn(cc.Byte))
	register(synth.OpCmpW, cmpToDn(cc.Word))
	register(synth.OpCmpL, cmpToDn(cc.Long))
	register(synth.OpCmpaW, cmpa(cc.Word))
	register(synth.OpCmpaL, cmpa(cc.Long))

	register(synth.OpClrB, clr(cc.Byte))
	register(synth.OpClrW, clr(cc.Word))
	register(synth.OpClrL, clr(cc.Long))
	register(synth.OpTstB, tst(cc.Byte))
	register(synth.OpTstW, tst(cc.Word))
	register(synth.OpTstL, tst(cc.Long))
	register(synth.OpNotB, not(cc.Byte))
	register(synth.OpNotW, not(cc.Word))
	register(synth.OpNotL, not(cc.Long))

	register(synth.OpLea, lea)
	register(synth.OpBra, bra)
	register(synth.OpBcc, bcc)
	register(synth.OpJsr, jsr)
	register(synth.OpJmp, jmp)
	register(synth.OpRts, rts)
	register(synth.OpNop, nop)
	register(synth.OpTrap, trapOp)
	register(synth.OpRte, rteOp)

	register(synth.TokPreambleNOP, nop)
	register(synth.TokExit, func(ip *Interpreter, _ []synth.Word, idx int) (int, bool) {
		ip.exit = true
		return idx, true
	})
	register(synth.TokCounter, func(_ *Interpreter, _ []synth.Word, idx int) (int, bool) {
		return idx, false
	})
}

// --- MOVE family -----------------------------------------------------------

func move(size cc.Size) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		v := readEA(ip, false, size)
		writeEA(ip, true, size, v)
		ip.State.Flags.NZVClear(v, size)
		return idx, false
	}
}

func movea(size cc.Size) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		reg := int(code[idx])
		v := readEA(ip, false, size)
		if size == cc.Word {
			v = uint32(int32(int16(v))) // MOVEA.W sign-extends into An
		}
		ip.State.A[reg] = v
		return idx + 1, false
	}
}

func moveq(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	reg := int(code[idx])
	data := uint32(int32(int8(code[idx+1])))
	ip.State.D[reg] = data
	ip.State.Flags.NZVClear(data, cc.Long)
	return idx + 2, false
}

// --- dyadic logic/arith (OR/AND/EOR/ADD/SUB, both directions) ----------

type binop func(a, b uint32) uint32

func logicOR(a, b uint32) uint32  { return a | b }
func logicAND(a, b uint32) uint32 { return a & b }
func logicEOR(a, b uint32) uint32 { return a ^ b }

// dyadicToDn implements the OR/AND/EOR opcode family: toEA selects
// whether the result is written back through the (reversed) EA slot
// (Dn op EA -> EA) or into the Dn register (EA op Dn -> Dn).
func dyadicToDn(size cc.Size, op binop, toEA bool) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		reg := int(code[idx])
		if toEA {
			dn := ip.State.D[reg]
			ea := readEA(ip, true, size)
			result := op(dn, ea)
			writeEA(ip, true, size, result)
			ip.State.Flags.NZVClear(result, size)
		} else {
			ea := readEA(ip, false, size)
			result := op(ip.State.D[reg], ea)
			setDSized(ip, reg, result, size)
			ip.State.Flags.NZVClear(result, size)
		}
		return idx + 1, false
	}
}

func addsub(size cc.Size, isSub, toEA bool) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		reg := int(code[idx])
		if toEA {
			dn := ip.State.D[reg]
			ea := readEA(ip, true, size)
			var result uint32
			if isSub {
				result = ea - dn
				ip.State.Flags.Sub(ea, dn, result, size)
			} else {
				result = ea + dn
				ip.State.Flags.Add(ea, dn, result, size)
			}
			writeEA(ip, true, size, result)
		} else {
			dn := ip.State.D[reg]
			ea := readEA(ip, false, size)
			var result uint32
			if isSub {
				result = dn - ea
				ip.State.Flags.Sub(dn, ea, result, size)
			} else {
				result = dn + ea
				ip.State.Flags.Add(dn, ea, result, size)
			}
			setDSized(ip, reg, result, size)
		}
		return idx + 1, false
	}
}

// addsuba implements ADDA/SUBA: the EA operand is read at its own
// size (word or long) then sign-extended to a full long before the
// address register add/subtract, per the 68k PRM.
func addsuba(size cc.Size, isSub bool) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		reg := int(code[idx])
		ea := readEA(ip, false, size)
		if size == cc.Word {
			ea = uint32(int32(int16(ea)))
		}
		if isSub {
			ip.State.A[reg] -= ea
		} else {
			ip.State.A[reg] += ea
		}
		return idx + 1, false
	}
}

func immediateArith(size cc.Size, isSub bool) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		imm := uint32(code[idx])
		dst := readEA(ip, false, size)
		var result uint32
		if isSub {
			result = dst - imm
			ip.State.Flags.Sub(dst, imm, result, size)
		} else {
			result = dst + imm
			ip.State.Flags.Add(dst, imm, result, size)
		}
		writeEA(ip, false, size, result)
		return idx + 1, false
	}
}

func immediateLogic(size cc.Size, op binop) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		imm := uint32(code[idx])
		dst := readEA(ip, false, size)
		result := op(dst, imm)
		writeEA(ip, false, size, result)
		ip.State.Flags.NZVClear(result, size)
		return idx + 1, false
	}
}

func immediateCmp(size cc.Size) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		imm := uint32(code[idx])
		dst := readEA(ip, false, size)
		ip.State.Flags.Cmp(dst, imm, dst-imm, size)
		return idx + 1, false
	}
}

func addqSubq(size cc.Size, isSub bool) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		data := uint32(code[idx])
		dst := readEA(ip, false, size)
		var result uint32
		if isSub {
			result = dst - data
			ip.State.Flags.Sub(dst, data, result, size)
		} else {
			result = dst + data
			ip.State.Flags.Add(dst, data, result, size)
		}
		writeEA(ip, false, size, result)
		return idx + 1, false
	}
}

func cmpToDn(size cc.Size) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		reg := int(code[idx])
		dn := ip.State.D[reg]
		ea := readEA(ip, false, size)
		ip.State.Flags.Cmp(dn, ea, dn-ea, size)
		return idx + 1, false
	}
}

func cmpa(size cc.Size) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		reg := int(code[idx])
		an := ip.State.A[reg]
		ea := readEA(ip, false, size)
		if size == cc.Word {
			ea = uint32(int32(int16(ea)))
		}
		ip.State.Flags.Cmp(an, ea, an-ea, cc.Long)
		return idx + 1, false
	}
}

// --- CLR/TST/NOT -------------------------------------------------------

func clr(size cc.Size) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		writeEA(ip, false, size, 0)
		ip.State.Flags.NZVClear(0, size)
		return idx, false
	}
}

func tst(size cc.Size) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		v := readEA(ip, false, size)
		ip.State.Flags.NZVClear(v, size)
		return idx, false
	}
}

func not(size cc.Size) handler {
	return func(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
		v := readEA(ip, false, size) ^ 0xFFFFFFFF
		writeEA(ip, false, size, v)
		ip.State.Flags.NZVClear(v, size)
		return idx, false
	}
}

// --- LEA -----------------------------------------------------------------

func lea(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	reg := int(code[idx])
	ip.State.A[reg] = guestAddrEA(ip, false)
	return idx + 1, false
}

// --- control transfer ----------------------------------------------------

func nop(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	return idx, false
}

func bra(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	ip.guestPC = uint32(code[idx])
	return idx + 1, true
}

// conditionMet implements the 68k Bcc condition table (spec.md's
// CheckCondition, cpu_m68k.go's ExecScc table) against the CC cells.
func conditionMet(f *cc.Flags, cond uint32) bool {
	n, z, v, c := f.N.Set(), f.Z.Set(), f.V.Set(), f.C.Set()
	switch cond {
	case 2: // HI
		return !c && !z
	case 3: // LS
		return c || z
	case 4: // CC
		return !c
	case 5: // CS
		return c
	case 6: // NE
		return !z
	case 7: // EQ
		return z
	case 8: // VC
		return !v
	case 9: // VS
		return v
	case 10: // PL
		return !n
	case 11: // MI
		return n
	case 12: // GE
		return n == v
	case 13: // LT
		return n != v
	case 14: // GT
		return n == v && !z
	case 15: // LE
		return n != v || z
	default:
		return false
	}
}

// bcc is always the last token in its Block (decode.go marks Bcc
// terminal regardless of which way the branch goes), so the
// not-taken path resumes at the Block's own end address rather than
// falling through token-by-token.
func bcc(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	cond := uint32(code[idx])
	target := uint32(code[idx+1])
	if conditionMet(&ip.State.Flags, cond) {
		ip.guestPC = target
	} else {
		ip.guestPC = ip.blockEndPC
	}
	return idx + 2, true
}

// jsr pushes the return address onto the guest stack, the 68k's only
// authoritative return mechanism, and reserves a slot for it in the
// bounded JSR hint ring (spec.md §3, §9); rts fills the slot in and
// consults it on a later return to the same call site.
func jsr(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	target := guestAddrEA(ip, false)
	returnAddr := ip.blockEndPC
	ip.State.Push32(returnAddr)
	ip.State.PushJSR(returnAddr)
	ip.guestPC = target
	return idx, true
}

func jmp(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	ip.guestPC = guestAddrEA(ip, false)
	return idx, true
}

// rts pops the real guest stack (the JSR ring is a hint cache, not a
// correct return stack, spec.md §9) and checks the ring for a cached
// Block at that return address: a hit whose Block hasn't been retired
// since it was cached resumes directly, skipping Store.Lookup entirely
// (spec.md §8's "single hash-lookup count increment instead of two"
// boundary scenario). A miss pays for the lookup here instead of
// leaving it to the outer loop, and caches the result via CacheJSR so
// the next return to this call site hits the ring.
func rts(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	returnAddr := ip.State.Pop32()
	ip.guestPC = returnAddr

	if entry, ok := ip.State.TopJSR(); ok && entry.ReturnAddr == returnAddr {
		if entry.Blk != nil && !entry.Blk.Retired {
			ip.pendingBlock = entry.Blk
			return idx, true
		}
		blk, err := ip.Store.Lookup(returnAddr)
		if err != nil {
			ip.fatalf("rts: %v", err)
			return idx, true
		}
		ip.State.CacheJSR(returnAddr, blk)
		ip.pendingBlock = blk
	}
	return idx, true
}

// trapOp first checks the fixed trap-vector table (trap_install_handler)
// for a Go handler intercepting this TRAP number directly; only a
// vector with nothing installed falls through to the full 68k
// exception sequence.
func trapOp(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	vector := uint8(code[idx])
	if ip.Traps != nil {
		if fn, arg, ok := ip.Traps.At(vector); ok {
			ip.guestPC = fn(ip.blockEndPC, arg)
			return idx + 1, true
		}
	}
	ip.guestPC = ip.State.TrapDirect(32+vector, ip.blockEndPC)
	return idx + 1, true
}

func rteOp(ip *Interpreter, code []synth.Word, idx int) (int, bool) {
	ip.guestPC = ip.State.Rte()
	return idx, true
}
