package arm

// This file implements the 32-bit Thumb-2 "data-processing" instruction
// groups built on the standard op table: data-processing shifted register,
// data-processing modified immediate and data-processing plain immediate.
// The data-processing register, multiply and long-multiply/divide groups
// are in thumb2_regops.go. Implemented from the
// ARMv7-M Architecture Reference Manual's encoding tables (A5.3.1/A5.3.3/
// A5.3.11).

// dpOpKind names the 16 "standard" data-processing operations shared by the
// modified-immediate and shifted-register 32-bit encodings, keyed on the
// 4-bit op field at bits[8:5] of the first halfword.
type dpOpKind uint8

const (
	dpAND dpOpKind = iota
	dpBIC
	dpORR // Rn==1111 => MOV
	dpORN // Rn==1111 => MVN
	dpEOR
	dpUnused5
	dpUnused6
	dpUnused7
	dpADD
	dpUnused9
	dpADC
	dpSBC
	dpUnused12
	dpSUB
	dpRSB
	dpUnused15
)

// applyDPOp executes the standard data-processing operation, writing Rd
// (unless the Rd==PC/S==1 "compare/test" alias suppresses the write) and
// updating APSR when setFlags is set.
func (arm *ARM) applyDPOp(op dpOpKind, rn uint32, rnIsPC bool, rd int, op2 uint32, carry bool, setFlags bool) error {
	flags := arm.regs.APSR()
	var result uint32
	write := true

	switch op {
	case dpAND:
		result = rn & op2
		write = !(rd == PC && setFlags) // TST alias
	case dpBIC:
		result = rn &^ op2
	case dpORR:
		if rnIsPC {
			result = op2 // MOV
		} else {
			result = rn | op2
		}
	case dpORN:
		if rnIsPC {
			result = ^op2 // MVN
		} else {
			result = rn | ^op2
		}
	case dpEOR:
		result = rn ^ op2
		write = !(rd == PC && setFlags) // TEQ alias
	case dpADD:
		var c, v bool
		result, c, v = addWithCarry(rn, op2, false)
		flags.C, flags.V = c, v
		write = !(rd == PC && setFlags) // CMN alias
	case dpADC:
		var c, v bool
		result, c, v = addWithCarry(rn, op2, flags.C)
		flags.C, flags.V = c, v
	case dpSBC:
		var c, v bool
		result, c, v = addWithCarry(rn, ^op2, flags.C)
		flags.C, flags.V = c, v
	case dpSUB:
		var c, v bool
		result, c, v = addWithCarry(rn, ^op2, true)
		flags.C, flags.V = c, v
		write = !(rd == PC && setFlags) // CMP alias
	case dpRSB:
		var c, v bool
		result, c, v = addWithCarry(^rn, op2, true)
		flags.C, flags.V = c, v
	default:
		return errUnpredictable("reserved data-processing opcode")
	}

	if setFlags {
		flags.setNZ(result)
		if op == dpAND || op == dpBIC || op == dpORR || op == dpORN || op == dpEOR {
			flags.C = carry
		}
		arm.regs.SetAPSR(flags)
	}
	if write {
		arm.regs.SetReg(rd, result)
	}
	return nil
}

// execDPModifiedImmediate implements "Data-processing (modified immediate)":
// hw1 = 11110 i 0 op(4) S Rn(4); hw2 = 0 imm3 Rd(4) imm8.
func (arm *ARM) execDPModifiedImmediate(hw1, hw2 uint16) error {
	var i uint16
	if hw1&0x0400 != 0 {
		i = 1
	}
	op := dpOpKind((hw1 >> 5) & 0xf)
	setFlags := hw1&0x0010 != 0
	rn := hw1 & 0x000f
	imm3 := (hw2 >> 12) & 0x7
	rd := int((hw2 >> 8) & 0xf)
	imm8 := hw2 & 0x00ff

	imm12 := i<<11 | imm3<<8 | imm8
	flags := arm.regs.APSR()
	imm, carry, unpredictable := thumbExpandImmWithCarry(imm12, flags.C)
	if unpredictable {
		return errUnpredictable("ThumbExpandImm_C byte-replication with zero byte")
	}

	return arm.applyDPOp(op, arm.regs.Reg(int(rn)), rn == 0xf, rd, imm, carry, setFlags)
}

// execDPShiftedRegister implements "Data-processing (shifted register)":
// hw1 = 1110101 op(4) S Rn(4); hw2 = imm3 Rd(4) imm2 type Rm(4).
func (arm *ARM) execDPShiftedRegister(hw1, hw2 uint16) error {
	op := dpOpKind((hw1 >> 5) & 0xf)
	setFlags := hw1&0x0010 != 0
	rn := hw1 & 0x000f
	imm3 := (hw2 >> 12) & 0x7
	rd := int((hw2 >> 8) & 0xf)
	imm2 := (hw2 >> 6) & 0x3
	typ := uint8((hw2 >> 4) & 0x3)
	rm := hw2 & 0x000f

	imm5 := uint8(imm3<<2 | imm2)
	shiftT, shiftN := decodeImmShift(typ, imm5)
	flags := arm.regs.APSR()
	op2, carry := shiftWithCarry(shiftT, arm.regs.Reg(int(rm)), shiftN, flags.C)

	return arm.applyDPOp(op, arm.regs.Reg(int(rn)), rn == 0xf, rd, op2, carry, setFlags)
}

// dpPlainOp, bits[8:4] of hw1 in the "Data-processing (plain binary
// immediate)" group.
const (
	plainADDW = 0b00000
	plainMOVW = 0b00100
	plainSUBW = 0b01010
	plainMOVT = 0b01100
	plainSBFX = 0b10100
	plainBFIC = 0b10110
	plainUBFX = 0b11100
)

// execDPPlainImmediate implements "Data-processing (plain binary immediate)":
// ADDW/SUBW/ADR, MOVW/MOVT, and the bitfield instructions SBFX/BFI/BFC/UBFX.
func (arm *ARM) execDPPlainImmediate(hw1, hw2 uint16) error {
	var i uint32
	if hw1&0x0400 != 0 {
		i = 1
	}
	op := uint32(hw1>>4) & 0x1f
	rn := hw1 & 0x000f
	imm3 := uint32(hw2>>12) & 0x7
	rd := int((hw2 >> 8) & 0xf)
	imm8 := uint32(hw2 & 0x00ff)

	switch op {
	case plainADDW:
		imm12 := i<<11 | imm3<<8 | imm8
		if rn == 0xf {
			base := (arm.instructionPC + 4) &^ 0x3
			arm.regs.SetReg(rd, base+imm12)
			return nil
		}
		result, _, _ := addWithCarry(arm.regs.Reg(int(rn)), imm12, false)
		arm.regs.SetReg(rd, result)
		return nil

	case plainSUBW:
		imm12 := i<<11 | imm3<<8 | imm8
		if rn == 0xf {
			base := (arm.instructionPC + 4) &^ 0x3
			arm.regs.SetReg(rd, base-imm12)
			return nil
		}
		result, _, _ := addWithCarry(arm.regs.Reg(int(rn)), ^imm12, true)
		arm.regs.SetReg(rd, result)
		return nil

	case plainMOVW:
		imm4 := uint32(hw1 & 0x000f)
		imm16 := imm4<<12 | i<<11 | imm3<<8 | imm8
		arm.regs.SetReg(rd, imm16)
		return nil

	case plainMOVT:
		imm4 := uint32(hw1 & 0x000f)
		imm16 := imm4<<12 | i<<11 | imm3<<8 | imm8
		cur := arm.regs.Reg(rd)
		arm.regs.SetReg(rd, (imm16<<16)|(cur&0xffff))
		return nil

	case plainSBFX:
		lsb := uint(imm3<<2 | (uint32(hw2>>6) & 0x3))
		widthm1 := uint(hw2 & 0x1f)
		val := arm.regs.Reg(int(rn))
		shifted := int32(val<<(31-lsb-widthm1)) >> (31 - widthm1)
		arm.regs.SetReg(rd, uint32(shifted))
		return nil

	case plainUBFX:
		lsb := uint(imm3<<2 | (uint32(hw2>>6) & 0x3))
		widthm1 := uint(hw2 & 0x1f)
		val := arm.regs.Reg(int(rn))
		mask := uint32(1)<<(widthm1+1) - 1
		arm.regs.SetReg(rd, (val>>lsb)&mask)
		return nil

	case plainBFIC:
		lsb := uint(imm3<<2 | (uint32(hw2>>6) & 0x3))
		msb := uint(hw2 & 0x1f)
		if msb < lsb {
			return errUnpredictable("BFI/BFC with msb < lsb")
		}
		mask := (uint32(1)<<(msb-lsb+1) - 1) << lsb
		cur := arm.regs.Reg(rd)
		if rn == 0xf { // BFC
			arm.regs.SetReg(rd, cur&^mask)
			return nil
		}
		val := arm.regs.Reg(int(rn))
		arm.regs.SetReg(rd, (cur&^mask)|((val<<lsb)&mask))
		return nil
	}

	return errUnpredictable("unimplemented data-processing (plain immediate) opcode")
}
