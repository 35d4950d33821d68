// decode.go - Opcode group dispatch and addressing-mode emission
//
// Grounded in the teacher's decodeGroup0..decodeGroupF dispatch table
// (cpu_m68k.go) and GetEffectiveAddress's mode/reg decode, restructured
// to emit synthetic opcode Words (spec.md §4.E, §4.F) instead of
// executing directly. This translator covers the instruction set
// spec.md's worked examples exercise (§8): MOVE family, MOVEQ,
// ADD/ADDI/ADDQ, SUB/SUBI/SUBQ, CMP/CMPI, AND/OR/EOR/NOT, CLR/TST, LEA,
// Bcc/BRA, JSR/JMP/RTS, NOP, TRAP, RTE — not the full 68000 opcode map;
// anything else reports errUnimplemented rather than mistranslating.

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package translate

import (
	"github.com/intuitionamiga/m68kjit/internal/cc"
	"github.com/intuitionamiga/m68kjit/internal/synth"
)

// decode consumes one instruction starting with the already-fetched
// opcode word, emitting its synthetic form. It returns true if this
// instruction is a control transfer, ending the block.
func (d *decoder) decode(opcode uint16) (terminal bool, err error) {
	switch opcode >> 12 {
	case 0x0:
		return false, d.decodeImmediateGroup(opcode)
	case 0x1, 0x2, 0x3:
		return false, d.decodeMove(opcode)
	case 0x4:
		return d.decodeMisc(opcode)
	case 0x5:
		return false, d.decodeAddqSubq(opcode)
	case 0x6:
		return true, d.decodeBcc(opcode)
	case 0x7:
		return false, d.decodeMoveq(opcode)
	case 0x8:
		return false, d.decodeDyadic(opcode)
	case 0x9:
		return false, d.decodeAddSub(opcode, false)
	case 0xB:
		return false, d.decodeCmpEor(opcode)
	case 0xC:
		return false, d.decodeDyadic(opcode)
	case 0xD:
		return false, d.decodeAddSub(opcode, true)
	default:
		return false, errUnimplemented(opcode, d.pc-2)
	}
}

func (d *decoder) emitOp(tok synth.Token) { d.emit(synth.Word(tok)) }

// --- addressing mode emission -----------------------------------------

// emitEA decodes a 68k mode/reg field, emits the matching amode-compute
// token and its operand word(s) into slot, and returns any cleanup
// words that must be emitted AFTER the instruction's operation token
// (post-increment/pre-decrement An adjustment, spec.md §4.E item 3).
func (d *decoder) emitEA(mode, reg uint16, size cc.Size, slot synth.AmodeSlot) ([]synth.Word, error) {
	op := func(tok synth.Token) synth.Word { return synth.Word(tok) }
	packed := func() synth.Word { return synth.Word(uint64(reg) | uint64(slot)<<3) }

	switch mode {
	case 0:
		d.emit(op(synth.TokAmodeDReg))
		d.emit(packed())
		return nil, nil
	case 1:
		d.emit(op(synth.TokAmodeAReg))
		d.emit(packed())
		return nil, nil
	case 2:
		d.emit(op(synth.TokAmodeARInd))
		d.emit(packed())
		return nil, nil
	case 3:
		d.emit(op(synth.TokAmodeARPostInc))
		d.emit(packed())
		return []synth.Word{
			synth.Word(synth.TokAmodeCleanupPostInc),
			synth.Word(uint64(reg) | uint64(sizeIndex(size))<<4),
		}, nil
	case 4:
		// Pre-decrement must happen before the address is used, so the
		// size travels with the amode-compute operand itself rather
		// than through a deferred cleanup token.
		d.emit(op(synth.TokAmodeARPreDec))
		d.emit(synth.Word(uint64(reg) | uint64(slot)<<3 | uint64(sizeIndex(size))<<4))
		return nil, nil
	case 5:
		disp, err := d.fetch16()
		if err != nil {
			return nil, err
		}
		d.emit(op(synth.TokAmodeARDisp))
		d.emit(packed())
		d.emit(synth.Word(uint64(int64(int16(disp)))))
		return nil, nil
	case 6:
		ext, err := d.fetch16()
		if err != nil {
			return nil, err
		}
		d.emit(op(synth.TokAmodeARIndex))
		d.emit(packed())
		d.emit(synth.Word(ext))
		return nil, nil
	case 7:
		switch reg {
		case 0:
			v, err := d.fetch16()
			if err != nil {
				return nil, err
			}
			d.emit(op(synth.TokAmodeAbsShort))
			d.emit(synth.Word(uint64(slot)))
			d.emit(synth.Word(uint64(int64(int16(v)))))
			return nil, nil
		case 1:
			v, err := d.fetch32()
			if err != nil {
				return nil, err
			}
			d.emit(op(synth.TokAmodeAbsLong))
			d.emit(synth.Word(uint64(slot)))
			d.emit(synth.Word(v))
			return nil, nil
		case 2:
			extAddr := d.pc
			disp, err := d.fetch16()
			if err != nil {
				return nil, err
			}
			// PC-relative target is fixed at translate time: this
			// Block is keyed to the guest PC it was built from, so the
			// absolute guest address can be baked in directly instead
			// of re-deriving a base PC at dispatch time.
			target := uint32(int32(extAddr) + int32(int16(disp)))
			d.emit(op(synth.TokAmodePCDisp))
			d.emit(synth.Word(uint64(slot)))
			d.emit(synth.Word(target))
			return nil, nil
		case 3:
			extAddr := d.pc
			ext, err := d.fetch16()
			if err != nil {
				return nil, err
			}
			disp8 := int32(int8(ext & 0xFF))
			target := uint32(int32(extAddr) + disp8)
			d.emit(op(synth.TokAmodePCIndex))
			d.emit(synth.Word(uint64(slot)))
			d.emit(synth.Word(target))
			d.emit(synth.Word(ext))
			return nil, nil
		case 4:
			var v uint32
			switch size {
			case cc.Byte, cc.Word:
				raw, err := d.fetch16()
				if err != nil {
					return nil, err
				}
				v = uint32(raw)
			default:
				raw, err := d.fetch32()
				if err != nil {
					return nil, err
				}
				v = raw
			}
			d.emit(op(synth.TokAmodeImmediate))
			d.emit(synth.Word(uint64(slot)))
			d.emit(synth.Word(v))
			return nil, nil
		}
	}
	return nil, errUnimplemented(uint16(mode)<<3|reg, d.pc)
}

// --- MOVE family --------------------------------------------------------

func (d *decoder) decodeMove(opcode uint16) error {
	var size cc.Size
	var tokB synth.Token
	switch opcode >> 12 {
	case 0x1:
		size, tokB = cc.Byte, synth.OpMoveB
	case 0x3:
		size, tokB = cc.Word, synth.OpMoveW
	default:
		size, tokB = cc.Long, synth.OpMoveL
	}
	srcMode := (opcode >> 3) & 7
	srcReg := opcode & 7
	dstReg := (opcode >> 9) & 7
	dstMode := (opcode >> 6) & 7

	srcCleanup, err := d.emitEA(srcMode, srcReg, size, synth.SlotAmodeP)
	if err != nil {
		return err
	}
	if dstMode == 1 {
		tok := synth.OpMoveaW
		if size == cc.Long {
			tok = synth.OpMoveaL
		}
		d.emitOp(tok)
		d.emit(synth.Word(dstReg))
		d.code = append(d.code, srcCleanup...)
		return nil
	}
	cleanup, err := d.emitEA(dstMode, dstReg, size, synth.SlotReversedAmodeP)
	if err != nil {
		return err
	}
	d.emitOp(tokB)
	d.code = append(d.code, srcCleanup...)
	d.code = append(d.code, cleanup...)
	return nil
}

func (d *decoder) decodeMoveq(opcode uint16) error {
	reg := (opcode >> 9) & 7
	data := int8(opcode & 0xFF)
	d.emitOp(synth.OpMoveq)
	d.emit(synth.Word(reg))
	d.emit(synth.Word(uint64(int64(data))))
	return nil
}

// --- ADDQ/SUBQ -----------------------------------------------------------

func (d *decoder) decodeAddqSubq(opcode uint16) error {
	size := sizeFromBits((opcode >> 6) & 3)
	if (opcode>>6)&3 == 3 {
		return errUnimplemented(opcode, d.pc-2) // Scc/DBcc, not in scope
	}
	data := (opcode >> 9) & 7
	if data == 0 {
		data = 8
	}
	mode := (opcode >> 3) & 7
	reg := opcode & 7
	cleanup, err := d.emitEA(mode, reg, size, synth.SlotAmodeP)
	if err != nil {
		return err
	}
	sub := opcode&0x0100 != 0
	base := synth.OpAddqB
	if sub {
		base = synth.OpSubqB
	}
	d.emitOp(base + synth.Token(sizeIndex(size)))
	d.emit(synth.Word(uint64(data)))
	d.code = append(d.code, cleanup...)
	return nil
}

// --- Bcc/BRA ---------------------------------------------------------------

func (d *decoder) decodeBcc(opcode uint16) error {
	cond := (opcode >> 8) & 0xF
	disp8 := opcode & 0xFF

	// d.pc is already the opcode's own address + 2 here, the 68k
	// PC-relative base for both the byte- and word-displacement forms.
	base := int32(d.pc)

	var disp int32
	switch disp8 {
	case 0x00:
		v, err := d.fetch16()
		if err != nil {
			return err
		}
		disp = int32(int16(v))
	case 0xFF:
		return errUnimplemented(opcode, d.pc-2) // 32-bit displacement, 68020-only
	default:
		disp = int32(int8(disp8))
	}
	target := uint32(base + disp)

	if cond == 1 {
		return errUnimplemented(opcode, d.pc-2) // BSR, not in scope
	}
	if cond == 0 {
		d.emitOp(synth.OpBra)
	} else {
		d.emitOp(synth.OpBcc)
		d.emit(synth.Word(cond))
	}
	d.emit(synth.Word(target))
	return nil
}

// --- misc group (0100) -----------------------------------------------------

func (d *decoder) decodeMisc(opcode uint16) (terminal bool, err error) {
	switch {
	case opcode == 0x4E71:
		d.emitOp(synth.OpNop)
		return false, nil
	case opcode == 0x4E73:
		d.emitOp(synth.OpRte)
		return true, nil
	case opcode == 0x4E75:
		d.emitOp(synth.OpRts)
		return true, nil
	case opcode&0xFFF0 == 0x4E40:
		d.emitOp(synth.OpTrap)
		d.emit(synth.Word(opcode & 0xF))
		return true, nil
	case opcode&0xFFC0 == 0x4E80:
		mode, reg := (opcode>>3)&7, opcode&7
		if _, err := d.emitEA(mode, reg, cc.Long, synth.SlotAmodeP); err != nil {
			return false, err
		}
		d.emitOp(synth.OpJsr)
		return true, nil
	case opcode&0xFFC0 == 0x4EC0:
		mode, reg := (opcode>>3)&7, opcode&7
		if _, err := d.emitEA(mode, reg, cc.Long, synth.SlotAmodeP); err != nil {
			return false, err
		}
		d.emitOp(synth.OpJmp)
		return true, nil
	case opcode&0xF1C0 == 0x41C0:
		reg := (opcode >> 9) & 7
		mode, eaReg := (opcode>>3)&7, opcode&7
		if _, err := d.emitEA(mode, eaReg, cc.Long, synth.SlotAmodeP); err != nil {
			return false, err
		}
		d.emitOp(synth.OpLea)
		d.emit(synth.Word(reg))
		return false, nil
	case opcode&0xFF00 == 0x4200:
		size := sizeFromBits((opcode >> 6) & 3)
		mode, reg := (opcode>>3)&7, opcode&7
		cleanup, err := d.emitEA(mode, reg, size, synth.SlotAmodeP)
		if err != nil {
			return false, err
		}
		d.emitOp(synth.OpClrB + synth.Token(sizeIndex(size)))
		d.code = append(d.code, cleanup...)
		return false, nil
	case opcode&0xFF00 == 0x4A00:
		size := sizeFromBits((opcode >> 6) & 3)
		mode, reg := (opcode>>3)&7, opcode&7
		cleanup, err := d.emitEA(mode, reg, size, synth.SlotAmodeP)
		if err != nil {
			return false, err
		}
		d.emitOp(synth.OpTstB + synth.Token(sizeIndex(size)))
		d.code = append(d.code, cleanup...)
		return false, nil
	case opcode&0xFF00 == 0x4600:
		size := sizeFromBits((opcode >> 6) & 3)
		mode, reg := (opcode>>3)&7, opcode&7
		cleanup, err := d.emitEA(mode, reg, size, synth.SlotAmodeP)
		if err != nil {
			return false, err
		}
		d.emitOp(synth.OpNotB + synth.Token(sizeIndex(size)))
		d.code = append(d.code, cleanup...)
		return false, nil
	default:
		return false, errUnimplemented(opcode, d.pc-2)
	}
}

// --- immediate group (0000) --------------------------------------------

func (d *decoder) decodeImmediateGroup(opcode uint16) error {
	if opcode&0x00FF == 0x003C || opcode&0x00FF == 0x007C {
		return errUnimplemented(opcode, d.pc-2) // immediate-to-CCR/SR, not in scope
	}
	size := sizeFromBits((opcode >> 6) & 3)
	mode, reg := (opcode>>3)&7, opcode&7

	var imm uint32
	switch size {
	case cc.Byte, cc.Word:
		v, err := d.fetch16()
		if err != nil {
			return err
		}
		imm = uint32(v)
	default:
		v, err := d.fetch32()
		if err != nil {
			return err
		}
		imm = v
	}

	var base synth.Token
	switch opcode & 0x0F00 {
	case 0x0000:
		base = synth.OpOriB
	case 0x0200:
		base = synth.OpAndiB
	case 0x0400:
		base = synth.OpSubiB
	case 0x0600:
		base = synth.OpAddiB
	case 0x0A00:
		base = synth.OpEoriB
	case 0x0C00:
		base = synth.OpCmpiB
	default:
		return errUnimplemented(opcode, d.pc-2)
	}

	cleanup, err := d.emitEA(mode, reg, size, synth.SlotAmodeP)
	if err != nil {
		return err
	}
	d.emitOp(base + synth.Token(sizeIndex(size)))
	d.emit(synth.Word(imm))
	d.code = append(d.code, cleanup...)
	return nil
}

// --- OR/AND/EOR, ADD/ADDA, SUB/SUBA, CMP/CMPA dyadic groups ------------

func (d *decoder) decodeDyadic(opcode uint16) error {
	reg := (opcode >> 9) & 7
	opmode := (opcode >> 6) & 7
	mode, eaReg := (opcode>>3)&7, opcode&7

	isAND := opcode>>12 == 0xC
	if opmode == 3 || opmode == 7 {
		return errUnimplemented(opcode, d.pc-2) // DIVU/DIVS (group 8) or MULU/MULS (group C), not in scope
	}

	reversed := opmode >= 4
	if reversed && mode <= 1 {
		return errUnimplemented(opcode, d.pc-2) // ABCD/SBCD, EXG and other register-form encodings, not in scope
	}
	size := sizeFromBits(opmode % 4)

	slot := synth.SlotAmodeP
	if reversed {
		slot = synth.SlotReversedAmodeP
	}
	cleanup, err := d.emitEA(mode, eaReg, size, slot)
	if err != nil {
		return err
	}

	var base synth.Token
	switch {
	case isAND && !reversed:
		base = synth.OpANDB
	case isAND && reversed:
		base = synth.OpANDEaDnB
	case !isAND && !reversed:
		base = synth.OpORB
	default:
		base = synth.OpOREaDnB
	}
	d.emitOp(base + synth.Token(sizeIndex(size)))
	d.emit(synth.Word(reg))
	d.code = append(d.code, cleanup...)
	return nil
}

func (d *decoder) decodeAddSub(opcode uint16, isAdd bool) error {
	reg := (opcode >> 9) & 7
	opmode := (opcode >> 6) & 7
	mode, eaReg := (opcode>>3)&7, opcode&7

	if opmode == 3 || opmode == 7 {
		size := cc.Word
		if opmode == 7 {
			size = cc.Long
		}
		cleanup, err := d.emitEA(mode, eaReg, size, synth.SlotAmodeP)
		if err != nil {
			return err
		}
		tok := synth.OpAddaW
		if !isAdd {
			tok = synth.OpSubaW
		}
		if size == cc.Long {
			tok++
		}
		d.emitOp(tok)
		d.emit(synth.Word(reg))
		d.code = append(d.code, cleanup...)
		return nil
	}

	reversed := opmode >= 4
	if reversed && mode <= 1 {
		return errUnimplemented(opcode, d.pc-2) // ADDX/SUBX, not in scope
	}
	size := sizeFromBits(opmode % 4)
	slot := synth.SlotAmodeP
	if reversed {
		slot = synth.SlotReversedAmodeP
	}
	cleanup, err := d.emitEA(mode, eaReg, size, slot)
	if err != nil {
		return err
	}
	var base synth.Token
	switch {
	case isAdd && !reversed:
		base = synth.OpAddB
	case isAdd && reversed:
		base = synth.OpAddEaDnB
	case !isAdd && !reversed:
		base = synth.OpSubB
	default:
		base = synth.OpSubEaDnB
	}
	d.emitOp(base + synth.Token(sizeIndex(size)))
	d.emit(synth.Word(reg))
	d.code = append(d.code, cleanup...)
	return nil
}

func (d *decoder) decodeCmpEor(opcode uint16) error {
	reg := (opcode >> 9) & 7
	opmode := (opcode >> 6) & 7
	mode, eaReg := (opcode>>3)&7, opcode&7

	if opmode == 3 || opmode == 7 {
		size := cc.Word
		if opmode == 7 {
			size = cc.Long
		}
		cleanup, err := d.emitEA(mode, eaReg, size, synth.SlotAmodeP)
		if err != nil {
			return err
		}
		tok := synth.OpCmpaW
		if size == cc.Long {
			tok = synth.OpCmpaL
		}
		d.emitOp(tok)
		d.emit(synth.Word(reg))
		d.code = append(d.code, cleanup...)
		return nil
	}
	if opmode <= 2 {
		size := sizeFromBits(opmode)
		cleanup, err := d.emitEA(mode, eaReg, size, synth.SlotAmodeP)
		if err != nil {
			return err
		}
		d.emitOp(synth.OpCmpB + synth.Token(sizeIndex(size)))
		d.emit(synth.Word(reg))
		d.code = append(d.code, cleanup...)
		return nil
	}
	// opmode 4..6: EOR Dn -> EA
	if mode == 1 {
		return errUnimplemented(opcode, d.pc-2) // CMPM, not in scope
	}
	size := sizeFromBits(opmode % 4)
	cleanup, err := d.emitEA(mode, eaReg, size, synth.SlotReversedAmodeP)
	if err != nil {
		return err
	}
	d.emitOp(synth.OpEORB + synth.Token(sizeIndex(size)))
	d.emit(synth.Word(reg))
	d.code = append(d.code, cleanup...)
	return nil
}

// --- size helpers --------------------------------------------------------

func sizeFromBits(bits uint16) cc.Size {
	switch bits {
	case 0:
		return cc.Byte
	case 1:
		return cc.Word
	default:
		return cc.Long
	}
}

func sizeIndex(size cc.Size) int {
	switch size {
	case cc.Byte:
		return 0
	case cc.Word:
		return 1
	default:
		return 2
	}
}
