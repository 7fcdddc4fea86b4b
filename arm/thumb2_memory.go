package arm

import "math/bits"

// This file implements the 32-bit Thumb-2 memory-access groups: load/store
// multiple (STM.W/LDM.W/PUSH.W/POP.W), load/store dual, load/store exclusive
// (simplified; see below), table branch, and load/store single plus memory
// hints (the full STR/STRB/STRH/LDR/LDRB/LDRH/LDRSB/LDRSH addressing-mode
// family). Built in the style of the 16-bit execSTM/execPushPop/
// execLoadStoreRegOffset family in thumb16.go, generalized to the wider
// register-list, 12-bit-immediate and indexed T3/T4 addressing forms the
// 32-bit encodings add.

// execLoadStoreMultiple implements STM/STMDB/LDM/LDMDB (T2), including
// PUSH.W/POP.W's use of SP as Rn: hw1 = 1110100 P U 0 W L Rn(4); hw2 is the
// 16-bit register list (bit13/bit15 reserved as 0 for the PC/SP exclusions
// enforced architecturally but not re-checked here).
func (arm *ARM) execLoadStoreMultiple(hw1, hw2 uint16) error {
	isLoad := hw1&0x0010 != 0
	writeback := hw1&0x0020 != 0
	increment := hw1&0x0080 != 0
	rn := int(hw1 & 0x000f)
	regList := hw2

	addr := arm.regs.Reg(rn)
	count := bits.OnesCount16(regList)
	var base uint32
	if increment {
		base = addr
	} else {
		base = addr - uint32(count)*4
	}

	cursor := base
	for i := 0; i < 16; i++ {
		if regList&(1<<i) == 0 {
			continue
		}
		if isLoad {
			v, err := arm.AlignedRead32(cursor, accessNormal)
			if err != nil {
				return err
			}
			if i == PC {
				if err := arm.BXWritePC(v); err != nil {
					return err
				}
			} else {
				arm.regs.SetReg(i, v)
			}
		} else {
			if err := arm.AlignedWrite32(cursor, arm.regs.Reg(i), accessNormal); err != nil {
				return err
			}
		}
		cursor += 4
	}

	if writeback {
		if increment {
			arm.regs.SetReg(rn, addr+uint32(count)*4)
		} else {
			arm.regs.SetReg(rn, addr-uint32(count)*4)
		}
	}
	return nil
}

// execLoadStoreDualExclusiveTableBranch implements LDRD/STRD (immediate,
// pre/post-indexed), TBB/TBH, and LDREX/STREX. This profile has no other
// bus master (spec Non-goals exclude multicore), so the exclusive monitor
// degenerates to a plain access: STREX always succeeds (status word 0).
func (arm *ARM) execLoadStoreDualExclusiveTableBranch(hw1, hw2 uint16) error {
	op1 := (hw1 >> 7) & 0x3
	op2 := (hw1 >> 4) & 0x3
	op3 := hw2 >> 4 & 0xf
	rn := int(hw1 & 0x000f)

	if op1 == 0b00 && op2 == 0b00 { // STREX
		rt := int((hw2 >> 12) & 0xf)
		rd := int((hw2 >> 8) & 0xf)
		imm8 := uint32(hw2&0xff) << 2
		addr := arm.regs.Reg(rn) + imm8
		if err := arm.AlignedWrite32(addr, arm.regs.Reg(rt), accessNormal); err != nil {
			return err
		}
		arm.regs.SetReg(rd, 0)
		return nil
	}
	if op1 == 0b00 && op2 == 0b01 { // LDREX
		rt := int((hw2 >> 12) & 0xf)
		imm8 := uint32(hw2&0xff) << 2
		addr := arm.regs.Reg(rn) + imm8
		v, err := arm.AlignedRead32(addr, accessNormal)
		if err != nil {
			return err
		}
		arm.regs.SetReg(rt, v)
		return nil
	}

	if op1 == 0b01 && op2 == 0b01 && op3 <= 1 { // TBB/TBH: hw2[4] selects halfword
		rm := int(hw2 & 0xf)
		isHalf := op3&0x1 != 0
		base := arm.regs.Reg(rn)
		if rn == PC {
			base = arm.instructionPC + 4
		}
		index := arm.regs.Reg(rm)
		var offset uint32
		if isHalf {
			v, err := arm.AlignedRead16(base+index*2, accessNormal)
			if err != nil {
				return err
			}
			offset = uint32(v) * 2
		} else {
			v, err := arm.AlignedRead8(base+index, accessNormal)
			if err != nil {
				return err
			}
			offset = uint32(v) * 2
		}
		arm.BranchWritePC(base + offset)
		return nil
	}

	// LDRD/STRD (immediate): hw1 bit 8 (P), bit 7 (U), bit 5 (W) select the
	// addressing mode; hw2 carries Rt,Rt2,imm8.
	p := hw1&0x0100 != 0
	u := hw1&0x0080 != 0
	w := hw1&0x0020 != 0
	imm8 := uint32(hw2&0xff) << 2
	rt := int((hw2 >> 12) & 0xf)
	rt2 := int((hw2 >> 8) & 0xf)

	base := arm.regs.Reg(rn)
	var offsetAddr uint32
	if u {
		offsetAddr = base + imm8
	} else {
		offsetAddr = base - imm8
	}
	addr := base
	if p {
		addr = offsetAddr
	}

	isLoad := hw1&0x0010 != 0
	if isLoad {
		v1, err := arm.AlignedRead32(addr, accessNormal)
		if err != nil {
			return err
		}
		v2, err := arm.AlignedRead32(addr+4, accessNormal)
		if err != nil {
			return err
		}
		arm.regs.SetReg(rt, v1)
		arm.regs.SetReg(rt2, v2)
	} else {
		if err := arm.AlignedWrite32(addr, arm.regs.Reg(rt), accessNormal); err != nil {
			return err
		}
		if err := arm.AlignedWrite32(addr+4, arm.regs.Reg(rt2), accessNormal); err != nil {
			return err
		}
	}
	if !p || w {
		arm.regs.SetReg(rn, offsetAddr)
	}
	return nil
}

// execLoadStoreSingle implements STRB/STRH/STR/LDRB/LDRH/LDR/LDRSB/LDRSH
// across their immediate-imm12 (T2/T3), indexed imm8 (T4: post/pre-indexed,
// negative offset) and register-offset-with-shift (T2) addressing forms,
// plus the PC-relative literal-load case (Rn==1111) and memory-hint
// encodings (PLD/PLI), which are treated as no-ops.
func (arm *ARM) execLoadStoreSingle(hw1, hw2 uint16) error {
	size := (hw1 >> 5) & 0x3  // 00 byte, 01 halfword, 10 word
	isLoad := hw1&0x0010 != 0
	signed := hw1&0x0100 != 0
	rn := hw1 & 0x000f
	rt := int((hw2 >> 12) & 0xf)

	if !isLoad && signed {
		return errUnpredictable("STR with sign-extend bit set")
	}

	if isLoad && rt == PC && size != 2 { // PLD/PLI and the other memory hints
		return nil
	}

	if rn == 0xf { // PC-relative literal load; store form is UNPREDICTABLE
		if !isLoad {
			return errUnpredictable("literal-pool store")
		}
		u := hw1&0x0080 != 0
		imm12 := uint32(hw2 & 0x0fff)
		base := (arm.instructionPC + 4) &^ 0x3
		var addr uint32
		if u {
			addr = base + imm12
		} else {
			addr = base - imm12
		}
		return arm.loadSingle(addr, rt, size, signed)
	}

	base := arm.regs.Reg(int(rn))

	if hw1&0x0080 != 0 { // T3: imm12, always offset-addressed, no writeback
		imm12 := uint32(hw2 & 0x0fff)
		addr := base + imm12
		return arm.accessSingle(addr, rt, size, signed, isLoad)
	}

	if hw2&0x0800 != 0 { // T4: imm8, P/U/W encoded in hw2
		p := hw2&0x0400 != 0
		u := hw2&0x0200 != 0
		w := hw2&0x0100 != 0
		imm8 := uint32(hw2 & 0xff)

		var offsetAddr uint32
		if u {
			offsetAddr = base + imm8
		} else {
			offsetAddr = base - imm8
		}
		addr := base
		if p {
			addr = offsetAddr
		}
		if err := arm.accessSingle(addr, rt, size, signed, isLoad); err != nil {
			return err
		}
		if !p || w {
			arm.regs.SetReg(int(rn), offsetAddr)
		}
		return nil
	}

	if hw2&0x0800 == 0 && hw2&0x0400 == 0 && hw2&0x0040 == 0 {
		// register offset with shift: hw2 = 000000 imm2 Rm
		rm := int(hw2 & 0xf)
		shift := uint((hw2 >> 4) & 0x3)
		addr := base + (arm.regs.Reg(rm) << shift)
		return arm.accessSingle(addr, rt, size, signed, isLoad)
	}

	return errUnpredictable("unrecognised load/store single addressing form")
}

func (arm *ARM) loadSingle(addr uint32, rt int, size uint16, signed bool) error {
	switch size {
	case 0:
		v, err := arm.AlignedRead8(addr, accessNormal)
		if err != nil {
			return err
		}
		if signed {
			arm.regs.SetReg(rt, signExtend(uint32(v), 8))
		} else {
			arm.regs.SetReg(rt, uint32(v))
		}
	case 1:
		v, err := arm.AlignedRead16(addr, accessNormal)
		if err != nil {
			return err
		}
		if signed {
			arm.regs.SetReg(rt, signExtend(uint32(v), 16))
		} else {
			arm.regs.SetReg(rt, uint32(v))
		}
	case 2:
		v, err := arm.AlignedRead32(addr, accessNormal)
		if err != nil {
			return err
		}
		if rt == PC {
			return arm.BXWritePC(v)
		}
		arm.regs.SetReg(rt, v)
	default:
		return errUnpredictable("reserved load/store single size")
	}
	return nil
}

func (arm *ARM) accessSingle(addr uint32, rt int, size uint16, signed bool, isLoad bool) error {
	if isLoad {
		return arm.loadSingle(addr, rt, size, signed)
	}
	switch size {
	case 0:
		return arm.AlignedWrite8(addr, uint8(arm.regs.Reg(rt)), accessNormal)
	case 1:
		return arm.AlignedWrite16(addr, uint16(arm.regs.Reg(rt)), accessNormal)
	case 2:
		return arm.AlignedWrite32(addr, arm.regs.Reg(rt), accessNormal)
	}
	return errUnpredictable("reserved load/store single size")
}
