package arm

import "math/bits"

// This file completes the 32-bit Thumb-2 "data-processing (register)" and
// "multiply / long-multiply / divide" instruction groups: register-controlled
// shift, sign/zero-extend with rotation, the REV/REV16/RBIT/REVSH
// byte-reordering instructions, CLZ, MUL/MLA/MLS, SMULL/UMULL/SMLAL/UMLAL,
// and SDIV/UDIV. Implemented from the ARMv7-M encoding tables
// (A5.3.11/A5.3.12).

// execDPRegister dispatches hw1's 0xFA00-0xFAFF "Data-processing (register)"
// space: register-controlled shift when hw2[7] is 0; otherwise the
// miscellaneous byte/bit-reversal group when hw1[7:4] is 1001 or 1011, or
// sign/zero-extend (selected by hw1[7:4]) when Rn == 1111.
func (arm *ARM) execDPRegister(hw1, hw2 uint16) error {
	rn := hw1 & 0x000f
	setFlags := hw1&0x0010 != 0
	sel := (hw1 >> 5) & 0x7

	rd := int((hw2 >> 8) & 0xf)
	rm := hw2 & 0x000f

	if hw2&0xf000 != 0xf000 {
		return errUnpredictable("data-processing (register) with hw2[15:12] != 1111")
	}

	if hw2&0x0080 == 0 {
		if hw2&0x00f0 != 0 {
			return errUnpredictable("shift (register) with nonzero hw2[7:4]")
		}
		var shiftT shiftType
		switch sel {
		case 0:
			shiftT = shiftLSL
		case 1:
			shiftT = shiftLSR
		case 2:
			shiftT = shiftASR
		case 3:
			shiftT = shiftROR
		default:
			return errUnpredictable("reserved shift (register) type")
		}
		flags := arm.regs.APSR()
		amount := uint(arm.regs.Reg(int(rm)) & 0xff)
		result, carry := shiftWithCarry(shiftT, arm.regs.Reg(int(rn)), amount, flags.C)
		if setFlags {
			flags.setNZ(result)
			flags.C = carry
			arm.regs.SetAPSR(flags)
		}
		arm.regs.SetReg(rd, result)
		return nil
	}

	op1 := (hw1 >> 4) & 0xf
	if op1 == 0b1001 || op1 == 0b1011 { // REV/REV16/RBIT/REVSH, CLZ
		return arm.execMiscReverse(hw1, hw2)
	}
	if rn != 0xf {
		return errUnpredictable("extend-and-add (Rn != 1111) not implemented")
	}

	rotate := int((hw2>>4)&0x3) * 8
	val := arm.regs.Reg(int(rm))
	rotated := bits.RotateLeft32(val, -rotate)

	switch op1 {
	case 0: // SXTH
		arm.regs.SetReg(rd, signExtend(rotated&0xffff, 16))
		return nil
	case 1: // UXTH
		arm.regs.SetReg(rd, rotated&0xffff)
		return nil
	case 2: // SXTB16: sign-extend each halfword's low byte independently
		lo := signExtend(rotated&0xff, 8) & 0xffff
		hi := signExtend((rotated>>16)&0xff, 8) & 0xffff
		arm.regs.SetReg(rd, hi<<16|lo)
		return nil
	case 3: // UXTB16
		arm.regs.SetReg(rd, (rotated&0xff)|((rotated>>16)&0xff)<<16)
		return nil
	case 4: // SXTB
		arm.regs.SetReg(rd, signExtend(rotated&0xff, 8))
		return nil
	case 5: // UXTB
		arm.regs.SetReg(rd, rotated&0xff)
		return nil
	default:
		return errUnpredictable("reserved data-processing (register) extend opcode")
	}
}

// execMiscReverse implements REV, REV16, RBIT, REVSH and CLZ, all encoded
// with Rn==Rm (the same register appears in both fields) in hw1's
// 0xFA90/0xFAB0 sub-space.
func (arm *ARM) execMiscReverse(hw1, hw2 uint16) error {
	rn := hw1 & 0x000f
	rd := int((hw2 >> 8) & 0xf)
	rm := hw2 & 0x000f
	op2 := (hw2 >> 4) & 0x3
	isCLZ := hw1&0x0020 != 0

	val := arm.regs.Reg(int(rm))
	_ = rn

	if isCLZ {
		arm.regs.SetReg(rd, uint32(bits.LeadingZeros32(val)))
		return nil
	}

	switch op2 {
	case 0: // REV
		arm.regs.SetReg(rd, bits.ReverseBytes32(val))
		return nil
	case 1: // REV16
		lo := bits.ReverseBytes16(uint16(val))
		hi := bits.ReverseBytes16(uint16(val >> 16))
		arm.regs.SetReg(rd, uint32(hi)<<16|uint32(lo))
		return nil
	case 2: // RBIT
		arm.regs.SetReg(rd, bits.Reverse32(val))
		return nil
	case 3: // REVSH
		lo := bits.ReverseBytes16(uint16(val))
		arm.regs.SetReg(rd, signExtend(uint32(lo), 16))
		return nil
	}
	return errUnpredictable("reserved miscellaneous data-processing opcode")
}

// execMultiply implements hw1's 0xFB00-0xFB0F "Multiply, multiply
// accumulate" group: MUL, MLA and MLS. hw2[7:4] selects MLA(0000, Ra==1111
// aliased to MUL) vs MLS(0001).
func (arm *ARM) execMultiply(hw1, hw2 uint16) error {
	rn := hw1 & 0x000f
	ra := (hw2 >> 12) & 0xf
	rd := int((hw2 >> 8) & 0xf)
	rm := hw2 & 0x000f
	op := (hw2 >> 4) & 0xf

	n := arm.regs.Reg(int(rn))
	m := arm.regs.Reg(int(rm))
	product := n * m

	switch op {
	case 0: // MUL (Ra==1111) / MLA
		if ra == 0xf {
			arm.regs.SetReg(rd, product)
			return nil
		}
		arm.regs.SetReg(rd, product+arm.regs.Reg(int(ra)))
		return nil
	case 1: // MLS
		arm.regs.SetReg(rd, arm.regs.Reg(int(ra))-product)
		return nil
	}
	return errUnpredictable("reserved multiply opcode")
}

// longMulOp selects among hw1's 0xFB80-0xFBFF "Long multiply, long multiply
// accumulate, and divide" operations, keyed on hw1 bits[6:4].
const (
	longSMULL = 0
	longSDIV  = 1
	longUMULL = 2
	longUDIV  = 3
	longSMLAL = 4
	longUMLAL = 6
)

// execLongMultiplyDivide implements SMULL/UMULL/SMLAL/UMLAL and SDIV/UDIV.
// SDIV/UDIV by zero return 0 unless CCR.DIV_0_TRP requests a UsageFault,
// per the ARMv7-M integer-divide behaviour.
func (arm *ARM) execLongMultiplyDivide(hw1, hw2 uint16) error {
	rn := hw1 & 0x000f
	sel := (hw1 >> 4) & 0x7
	n := arm.regs.Reg(int(rn))
	m := arm.regs.Reg(int(hw2 & 0x000f))

	switch sel {
	case longSMULL:
		rdLo := int((hw2 >> 12) & 0xf)
		rdHi := int((hw2 >> 8) & 0xf)
		result := int64(int32(n)) * int64(int32(m))
		arm.regs.SetReg(rdLo, uint32(result))
		arm.regs.SetReg(rdHi, uint32(result>>32))
		return nil
	case longUMULL:
		rdLo := int((hw2 >> 12) & 0xf)
		rdHi := int((hw2 >> 8) & 0xf)
		result := uint64(n) * uint64(m)
		arm.regs.SetReg(rdLo, uint32(result))
		arm.regs.SetReg(rdHi, uint32(result>>32))
		return nil
	case longSMLAL:
		rdLo := int((hw2 >> 12) & 0xf)
		rdHi := int((hw2 >> 8) & 0xf)
		acc := int64(arm.regs.Reg(rdHi))<<32 | int64(arm.regs.Reg(rdLo))
		result := acc + int64(int32(n))*int64(int32(m))
		arm.regs.SetReg(rdLo, uint32(result))
		arm.regs.SetReg(rdHi, uint32(result>>32))
		return nil
	case longUMLAL:
		rdLo := int((hw2 >> 12) & 0xf)
		rdHi := int((hw2 >> 8) & 0xf)
		acc := uint64(arm.regs.Reg(rdHi))<<32 | uint64(arm.regs.Reg(rdLo))
		result := acc + uint64(n)*uint64(m)
		arm.regs.SetReg(rdLo, uint32(result))
		arm.regs.SetReg(rdHi, uint32(result>>32))
		return nil
	case longSDIV:
		rd := int((hw2 >> 8) & 0xf)
		if int32(m) == 0 {
			if arm.scb.divideByZeroTraps() {
				arm.scb.setUsageFault(ufDivideByZero)
				return &raisedFault{kind: faultUsageFault}
			}
			arm.regs.SetReg(rd, 0)
			return nil
		}
		arm.regs.SetReg(rd, uint32(int32(n)/int32(m)))
		return nil
	case longUDIV:
		rd := int((hw2 >> 8) & 0xf)
		if m == 0 {
			if arm.scb.divideByZeroTraps() {
				arm.scb.setUsageFault(ufDivideByZero)
				return &raisedFault{kind: faultUsageFault}
			}
			arm.regs.SetReg(rd, 0)
			return nil
		}
		arm.regs.SetReg(rd, n/m)
		return nil
	}
	return errUnpredictable("reserved long-multiply/divide opcode")
}
