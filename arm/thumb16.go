package arm

import "math/bits"

// This file implements the 16-bit Thumb instruction decoder and semantics:
// the sixteen format groups of the ARMv7-M 16-bit Thumb encoding (A5.2),
// each routed by bit-field masks in a dispatch tree, with direct
// per-instruction semantics rather than a disassembly cache or
// cycle-accounting machinery, neither of which this emulator needs.

// execute16 decodes and executes a single 16-bit Thumb instruction.
func (arm *ARM) execute16(opcode uint16) error {
	switch {
	case opcode&0xf800 == 0xf000:
		// reserved for 32-bit prefix; never reached here since execute32
		// handles op1 in {0b11101,0b11110,0b11111} before this is called.
		return errUnpredictable("32-bit prefix reached 16-bit executor")

	case opcode&0xf000 == 0xf000:
		return arm.execBL2(opcode) // second halfword of a 32-bit BL/BLX handled in execute32; unreachable here
	case opcode&0xf000 == 0xe000:
		return arm.execUnconditionalBranch(opcode)
	case opcode&0xff00 == 0xdf00:
		return arm.execSVC(opcode)
	case opcode&0xf000 == 0xd000:
		return arm.execConditionalBranch(opcode)
	case opcode&0xf000 == 0xc000:
		return arm.execSTM(opcode)
	case opcode&0xff00 == 0xbf00:
		return arm.execHintsOrIT(opcode)
	case opcode&0xff00 == 0xbe00:
		return errUnpredictable("software breakpoint not implemented")
	case opcode&0xff00 == 0xba00:
		return arm.execReverse(opcode)
	case opcode&0xffe8 == 0xb668 || opcode&0xfff0 == 0xb640:
		return errUnpredictable("reserved hint-space encoding")
	case opcode&0xffe8 == 0xb660:
		return arm.execCPS(opcode)
	case opcode&0xfff0 == 0xb650:
		return errUnpredictable("SETEND not supported in this profile")
	case opcode&0xf600 == 0xb400:
		return arm.execPushPop(opcode)
	case opcode&0xf500 == 0xb100:
		return arm.execCBZ(opcode)
	case opcode&0xff00 == 0xb200:
		return arm.execExtend(opcode)
	case opcode&0xff00 == 0xb000:
		return arm.execAddSubSP(opcode)
	case opcode&0xf000 == 0xa000:
		return arm.execLoadAddress(opcode)
	case opcode&0xf000 == 0x9000:
		return arm.execSPRelativeLoadStore(opcode)
	case opcode&0xf000 == 0x8000:
		return arm.execLoadStoreHalfword(opcode)
	case opcode&0xe000 == 0x6000:
		return arm.execLoadStoreImmOffset(opcode)
	case opcode&0xf200 == 0x5200:
		return arm.execLoadStoreSignExtended(opcode)
	case opcode&0xf200 == 0x5000:
		return arm.execLoadStoreRegOffset(opcode)
	case opcode&0xf800 == 0x4800:
		return arm.execPCRelativeLoad(opcode)
	case opcode&0xfc00 == 0x4400:
		return arm.execHiRegisterOps(opcode)
	case opcode&0xfc00 == 0x4000:
		return arm.execALU(opcode)
	case opcode&0xe000 == 0x2000:
		return arm.execMovCmpAddSubImm(opcode)
	case opcode&0xf800 == 0x1800:
		return arm.execAddSubtract(opcode)
	case opcode&0xe000 == 0x0000:
		return arm.execMoveShiftedRegister(opcode)
	}
	return errUnpredictable("undecoded 16-bit Thumb instruction")
}

func (arm *ARM) execBL2(opcode uint16) error {
	return errUnpredictable("unreachable: 32-bit BL prefix routed to 16-bit executor")
}

// format 1 - Move shifted register (LSL/LSR/ASR Rd, Rm, #imm5).
func (arm *ARM) execMoveShiftedRegister(opcode uint16) error {
	op := (opcode & 0x1800) >> 11
	imm5 := uint8((opcode & 0x07c0) >> 6)
	rm := (opcode & 0x0038) >> 3
	rd := opcode & 0x0007

	var typ shiftType
	switch op {
	case 0b00:
		typ = shiftLSL
	case 0b01:
		typ = shiftLSR
	case 0b10:
		typ = shiftASR
	default:
		return errUnpredictable("format 1 op==0b11 is ADD/SUB, routed elsewhere")
	}

	_, amount := decodeImmShift(uint8(op), imm5)
	flags := arm.regs.APSR()
	result, carry := shiftWithCarry(typ, arm.regs.Reg(int(rm)), amount, flags.C)
	flags.setNZ(result)
	flags.C = carry
	if !arm.regs.IT().inITBlock() {
		arm.regs.SetAPSR(flags)
	}
	arm.regs.SetReg(int(rd), result)
	return nil
}

// format 2 - Add/subtract (register or 3-bit immediate).
func (arm *ARM) execAddSubtract(opcode uint16) error {
	isImm := opcode&0x0400 != 0
	isSub := opcode&0x0200 != 0
	rnOrImm := (opcode & 0x01c0) >> 6
	rn := (opcode & 0x0038) >> 3
	rd := opcode & 0x0007

	var operand uint32
	if isImm {
		operand = uint32(rnOrImm)
	} else {
		operand = arm.regs.Reg(int(rnOrImm))
	}

	base := arm.regs.Reg(int(rn))
	var result uint32
	var carry, overflow bool
	if isSub {
		result, carry, overflow = addWithCarry(base, ^operand, true)
	} else {
		result, carry, overflow = addWithCarry(base, operand, false)
	}

	flags := arm.regs.APSR()
	flags.setNZ(result)
	flags.C = carry
	flags.V = overflow
	if !arm.regs.IT().inITBlock() {
		arm.regs.SetAPSR(flags)
	}
	arm.regs.SetReg(int(rd), result)
	return nil
}

// format 3 - Move/compare/add/subtract immediate.
func (arm *ARM) execMovCmpAddSubImm(opcode uint16) error {
	op := (opcode & 0x1800) >> 11
	rd := (opcode & 0x0700) >> 8
	imm8 := uint32(opcode & 0x00ff)

	flags := arm.regs.APSR()
	// CMP always sets flags; MOV/ADD/SUB suppress the flag write inside an
	// IT block, per spec §4.5.
	setFlags := op == 0b01 || !arm.regs.IT().inITBlock()
	switch op {
	case 0b00: // MOV
		flags.setNZ(imm8)
		arm.regs.SetReg(int(rd), imm8)
	case 0b01: // CMP
		result, carry, overflow := addWithCarry(arm.regs.Reg(int(rd)), ^imm8, true)
		flags.setNZ(result)
		flags.C = carry
		flags.V = overflow
	case 0b10: // ADD
		result, carry, overflow := addWithCarry(arm.regs.Reg(int(rd)), imm8, false)
		flags.setNZ(result)
		flags.C = carry
		flags.V = overflow
		arm.regs.SetReg(int(rd), result)
	case 0b11: // SUB
		result, carry, overflow := addWithCarry(arm.regs.Reg(int(rd)), ^imm8, true)
		flags.setNZ(result)
		flags.C = carry
		flags.V = overflow
		arm.regs.SetReg(int(rd), result)
	}
	if setFlags {
		arm.regs.SetAPSR(flags)
	}
	return nil
}

// format 4 - ALU operations (two-register data processing; TST/CMP/CMN always
// set flags, the other ops only outside an IT block).
func (arm *ARM) execALU(opcode uint16) error {
	op := (opcode & 0x03c0) >> 6
	rm := (opcode & 0x0038) >> 3
	rd := opcode & 0x0007

	dst := arm.regs.Reg(int(rd))
	src := arm.regs.Reg(int(rm))
	flags := arm.regs.APSR()

	var result uint32
	write := true

	switch op {
	case 0b0000: // AND
		result = dst & src
	case 0b0001: // EOR
		result = dst ^ src
	case 0b0010: // LSL (register)
		amount := uint(src & 0xff)
		var carry bool
		result, carry = shiftWithCarry(shiftLSL, dst, amount, flags.C)
		if amount != 0 {
			flags.C = carry
		}
	case 0b0011: // LSR (register)
		amount := uint(src & 0xff)
		var carry bool
		result, carry = shiftWithCarry(shiftLSR, dst, amount, flags.C)
		if amount != 0 {
			flags.C = carry
		}
	case 0b0100: // ASR (register)
		amount := uint(src & 0xff)
		var carry bool
		result, carry = shiftWithCarry(shiftASR, dst, amount, flags.C)
		if amount != 0 {
			flags.C = carry
		}
	case 0b0101: // ADC
		var carry, overflow bool
		result, carry, overflow = addWithCarry(dst, src, flags.C)
		flags.C = carry
		flags.V = overflow
	case 0b0110: // SBC
		var carry, overflow bool
		result, carry, overflow = addWithCarry(dst, ^src, flags.C)
		flags.C = carry
		flags.V = overflow
	case 0b0111: // ROR (register)
		amount := uint(src & 0xff)
		var carry bool
		result, carry = shiftWithCarry(shiftROR, dst, amount%32, flags.C)
		if amount != 0 {
			if amount%32 == 0 {
				carry = dst&0x80000000 != 0
			}
			flags.C = carry
		}
	case 0b1000: // TST
		result = dst & src
		write = false
	case 0b1001: // RSB (NEG), dst = 0 - src
		var carry, overflow bool
		result, carry, overflow = addWithCarry(0, ^src, true)
		flags.C = carry
		flags.V = overflow
	case 0b1010: // CMP
		var carry, overflow bool
		result, carry, overflow = addWithCarry(dst, ^src, true)
		flags.C = carry
		flags.V = overflow
		write = false
	case 0b1011: // CMN
		var carry, overflow bool
		result, carry, overflow = addWithCarry(dst, src, false)
		flags.C = carry
		flags.V = overflow
		write = false
	case 0b1100: // ORR
		result = dst | src
	case 0b1101: // MUL
		result = dst * src
	case 0b1110: // BIC
		result = dst &^ src
	case 0b1111: // MVN
		result = ^src
	}

	flags.setNZ(result)
	// TST/CMP/CMN always set flags; every other ALU op suppresses the flag
	// write inside an IT block, per spec §4.5.
	alwaysSetFlags := op == 0b1000 || op == 0b1010 || op == 0b1011
	if alwaysSetFlags || !arm.regs.IT().inITBlock() {
		arm.regs.SetAPSR(flags)
	}
	if write {
		arm.regs.SetReg(int(rd), result)
	}
	return nil
}

// format 5 - Hi register operations / branch exchange.
func (arm *ARM) execHiRegisterOps(opcode uint16) error {
	op := (opcode & 0x0300) >> 8
	rmHi := (opcode & 0x0078) >> 3
	rdLo := opcode & 0x0007
	h1 := (opcode & 0x0080) != 0

	rd := int(rdLo)
	if h1 {
		rd += 8
	}
	rm := int(rmHi)

	switch op {
	case 0b00: // ADD
		arm.regs.SetReg(rd, arm.regs.Reg(rd)+arm.regs.Reg(rm))
		if rd == PC {
			arm.BranchWritePC(arm.regs.Reg(PC))
		}
	case 0b01: // CMP
		result, carry, overflow := addWithCarry(arm.regs.Reg(rd), ^arm.regs.Reg(rm), true)
		flags := arm.regs.APSR()
		flags.setNZ(result)
		flags.C = carry
		flags.V = overflow
		arm.regs.SetAPSR(flags)
	case 0b10: // MOV
		arm.regs.SetReg(rd, arm.regs.Reg(rm))
		if rd == PC {
			arm.BranchWritePC(arm.regs.Reg(PC))
		}
	case 0b11: // BX / BLX
		target := arm.regs.Reg(rm)
		if opcode&0x0080 != 0 {
			// BLX: link register gets the address of the next instruction.
			arm.regs.SetReg(LR, (arm.instructionPC+2)|1)
			arm.BLXWritePC(target)
			return nil
		}
		return arm.BXWritePC(target)
	}
	return nil
}

// format 6 - PC-relative load (LDR Rd, [PC, #imm8*4]).
func (arm *ARM) execPCRelativeLoad(opcode uint16) error {
	rd := (opcode & 0x0700) >> 8
	imm8 := uint32(opcode&0x00ff) << 2
	base := (arm.instructionPC + 4) &^ 0x3
	v, err := arm.AlignedRead32(base+imm8, accessNormal)
	if err != nil {
		return err
	}
	arm.regs.SetReg(int(rd), v)
	return nil
}

// format 7 - Load/store with register offset.
func (arm *ARM) execLoadStoreRegOffset(opcode uint16) error {
	l := opcode&0x0800 != 0
	b := opcode&0x0400 != 0
	rm := (opcode & 0x01c0) >> 6
	rn := (opcode & 0x0038) >> 3
	rt := opcode & 0x0007
	addr := arm.regs.Reg(int(rn)) + arm.regs.Reg(int(rm))

	if l {
		if b {
			v, err := arm.AlignedRead8(addr, accessNormal)
			if err != nil {
				return err
			}
			arm.regs.SetReg(int(rt), uint32(v))
		} else {
			v, err := arm.AlignedRead32(addr, accessNormal)
			if err != nil {
				return err
			}
			arm.regs.SetReg(int(rt), v)
		}
		return nil
	}
	if b {
		return arm.AlignedWrite8(addr, uint8(arm.regs.Reg(int(rt))), accessNormal)
	}
	return arm.AlignedWrite32(addr, arm.regs.Reg(int(rt)), accessNormal)
}

// format 8 - Load/store sign-extended byte/halfword with register offset.
func (arm *ARM) execLoadStoreSignExtended(opcode uint16) error {
	hFlag := opcode&0x0800 != 0
	signExt := opcode&0x0400 != 0
	rm := (opcode & 0x01c0) >> 6
	rn := (opcode & 0x0038) >> 3
	rt := opcode & 0x0007
	addr := arm.regs.Reg(int(rn)) + arm.regs.Reg(int(rm))

	switch {
	case !signExt && !hFlag: // STRH
		return arm.AlignedWrite16(addr, uint16(arm.regs.Reg(int(rt))), accessNormal)
	case !signExt && hFlag: // LDRH
		v, err := arm.AlignedRead16(addr, accessNormal)
		if err != nil {
			return err
		}
		arm.regs.SetReg(int(rt), uint32(v))
	case signExt && !hFlag: // LDRSB
		v, err := arm.AlignedRead8(addr, accessNormal)
		if err != nil {
			return err
		}
		arm.regs.SetReg(int(rt), signExtend(uint32(v), 8))
	case signExt && hFlag: // LDRSH
		v, err := arm.AlignedRead16(addr, accessNormal)
		if err != nil {
			return err
		}
		arm.regs.SetReg(int(rt), signExtend(uint32(v), 16))
	}
	return nil
}

// format 9 - Load/store with 5-bit immediate offset.
func (arm *ARM) execLoadStoreImmOffset(opcode uint16) error {
	b := opcode&0x1000 != 0
	l := opcode&0x0800 != 0
	imm5 := uint32((opcode & 0x07c0) >> 6)
	rn := (opcode & 0x0038) >> 3
	rt := opcode & 0x0007

	var offset uint32
	if b {
		offset = imm5
	} else {
		offset = imm5 << 2
	}
	addr := arm.regs.Reg(int(rn)) + offset

	switch {
	case l && b:
		v, err := arm.AlignedRead8(addr, accessNormal)
		if err != nil {
			return err
		}
		arm.regs.SetReg(int(rt), uint32(v))
	case l && !b:
		v, err := arm.AlignedRead32(addr, accessNormal)
		if err != nil {
			return err
		}
		arm.regs.SetReg(int(rt), v)
	case !l && b:
		return arm.AlignedWrite8(addr, uint8(arm.regs.Reg(int(rt))), accessNormal)
	default:
		return arm.AlignedWrite32(addr, arm.regs.Reg(int(rt)), accessNormal)
	}
	return nil
}

// format 10 - Load/store halfword with 5-bit immediate offset.
func (arm *ARM) execLoadStoreHalfword(opcode uint16) error {
	l := opcode&0x0800 != 0
	imm5 := uint32((opcode & 0x07c0) >> 6)
	rn := (opcode & 0x0038) >> 3
	rt := opcode & 0x0007
	addr := arm.regs.Reg(int(rn)) + imm5<<1

	if l {
		v, err := arm.AlignedRead16(addr, accessNormal)
		if err != nil {
			return err
		}
		arm.regs.SetReg(int(rt), uint32(v))
		return nil
	}
	return arm.AlignedWrite16(addr, uint16(arm.regs.Reg(int(rt))), accessNormal)
}

// format 11 - SP-relative load/store.
func (arm *ARM) execSPRelativeLoadStore(opcode uint16) error {
	l := opcode&0x0800 != 0
	rt := (opcode & 0x0700) >> 8
	imm8 := uint32(opcode&0x00ff) << 2
	addr := arm.regs.SP() + imm8

	if l {
		v, err := arm.AlignedRead32(addr, accessNormal)
		if err != nil {
			return err
		}
		arm.regs.SetReg(int(rt), v)
		return nil
	}
	return arm.AlignedWrite32(addr, arm.regs.Reg(int(rt)), accessNormal)
}

// format 12 - Load address (ADR or ADD Rd, SP, #imm8*4).
func (arm *ARM) execLoadAddress(opcode uint16) error {
	useSP := opcode&0x0800 != 0
	rd := (opcode & 0x0700) >> 8
	imm8 := uint32(opcode&0x00ff) << 2

	var base uint32
	if useSP {
		base = arm.regs.SP()
	} else {
		base = (arm.instructionPC + 4) &^ 0x3
	}
	arm.regs.SetReg(int(rd), base+imm8)
	return nil
}

// format 13 - Add offset to stack pointer (ADD/SUB SP, #imm7*4).
func (arm *ARM) execAddSubSP(opcode uint16) error {
	negative := opcode&0x0080 != 0
	imm7 := uint32(opcode&0x007f) << 2
	if negative {
		arm.regs.SetSP(arm.regs.SP() - imm7)
	} else {
		arm.regs.SetSP(arm.regs.SP() + imm7)
	}
	return nil
}

// format 14 - Push/pop register list.
func (arm *ARM) execPushPop(opcode uint16) error {
	isPop := opcode&0x0800 != 0
	withExtra := opcode&0x0100 != 0
	regList := opcode & 0x00ff

	if isPop {
		sp := arm.regs.SP()
		for i := 0; i < 8; i++ {
			if regList&(1<<i) == 0 {
				continue
			}
			v, err := arm.AlignedRead32(sp, accessNormal)
			if err != nil {
				return err
			}
			arm.regs.SetReg(i, v)
			sp += 4
		}
		if withExtra { // POP {..., PC}
			v, err := arm.AlignedRead32(sp, accessNormal)
			if err != nil {
				return err
			}
			sp += 4
			arm.regs.SetSP(sp)
			return arm.BXWritePC(v)
		}
		arm.regs.SetSP(sp)
		return nil
	}

	// PUSH: decrement SP by 4*popcount then write ascending.
	count := bits.OnesCount16(regList)
	if withExtra {
		count++
	}
	sp := arm.regs.SP() - uint32(count)*4
	base := sp
	for i := 0; i < 8; i++ {
		if regList&(1<<i) == 0 {
			continue
		}
		if err := arm.AlignedWrite32(base, arm.regs.Reg(i), accessNormal); err != nil {
			return err
		}
		base += 4
	}
	if withExtra { // PUSH {..., LR}
		if err := arm.AlignedWrite32(base, arm.regs.Reg(LR), accessNormal); err != nil {
			return err
		}
	}
	arm.regs.SetSP(sp)
	return nil
}

// format 15 - Multiple load/store via STM/LDM (used for LDMIA's sibling STM
// handled here; LDM's own opcode range 0xc800-0xcfff is handled by the same
// function distinguished by bit 11).
func (arm *ARM) execSTM(opcode uint16) error {
	isLoad := opcode&0x0800 != 0
	rn := (opcode & 0x0700) >> 8
	regList := opcode & 0x00ff

	addr := arm.regs.Reg(int(rn))
	writebackSuppressed := isLoad && regList&(1<<rn) != 0

	for i := 0; i < 8; i++ {
		if regList&(1<<i) == 0 {
			continue
		}
		if isLoad {
			v, err := arm.AlignedRead32(addr, accessNormal)
			if err != nil {
				return err
			}
			arm.regs.SetReg(i, v)
		} else {
			if err := arm.AlignedWrite32(addr, arm.regs.Reg(i), accessNormal); err != nil {
				return err
			}
		}
		addr += 4
	}
	if !writebackSuppressed {
		arm.regs.SetReg(int(rn), addr)
	}
	return nil
}

// format 16 - Conditional branch.
func (arm *ARM) execConditionalBranch(opcode uint16) error {
	cond := uint8((opcode & 0x0f00) >> 8)
	imm8 := opcode & 0x00ff
	offset := signExtend(uint32(imm8)<<1, 9)

	if !conditionPassed(arm.regs.APSR(), cond) {
		return nil
	}
	arm.BranchWritePC(arm.instructionPC + 4 + offset)
	return nil
}

// format 17 - Software interrupt (SVC).
func (arm *ARM) execSVC(opcode uint16) error {
	_ = opcode & 0x00ff // the SVC immediate; not recorded anywhere
	return &raisedFault{kind: faultSVCall}
}

// format 18 - Unconditional branch.
func (arm *ARM) execUnconditionalBranch(opcode uint16) error {
	imm11 := opcode & 0x07ff
	offset := signExtend(uint32(imm11)<<1, 12)
	arm.BranchWritePC(arm.instructionPC + 4 + offset)
	return nil
}

// CBZ/CBNZ - compare R0-R7 against zero, forward branch only.
func (arm *ARM) execCBZ(opcode uint16) error {
	nonzero := opcode&0x0800 != 0
	i := opcode&0x0200 != 0
	imm5 := (opcode & 0x00f8) >> 3
	rn := opcode & 0x0007

	var offset uint32
	if i {
		offset = 0x40 | uint32(imm5)<<1
	} else {
		offset = uint32(imm5) << 1
	}

	isZero := arm.regs.Reg(int(rn)) == 0
	take := (nonzero && !isZero) || (!nonzero && isZero)
	if take {
		arm.BranchWritePC(arm.instructionPC + 4 + offset)
	}
	return nil
}

// SXTB/SXTH/UXTB/UXTH (the 16-bit encodings carry no rotation).
func (arm *ARM) execExtend(opcode uint16) error {
	op := (opcode & 0x00c0) >> 6
	rm := (opcode & 0x0038) >> 3
	rd := opcode & 0x0007
	v := arm.regs.Reg(int(rm))

	var result uint32
	switch op {
	case 0b00: // SXTH
		result = signExtend(v&0xffff, 16)
	case 0b01: // SXTB
		result = signExtend(v&0xff, 8)
	case 0b10: // UXTH
		result = v & 0xffff
	case 0b11: // UXTB
		result = v & 0xff
	}
	arm.regs.SetReg(int(rd), result)
	return nil
}

// REV/REV16/REVSH.
func (arm *ARM) execReverse(opcode uint16) error {
	op := (opcode & 0x00c0) >> 6
	rm := (opcode & 0x0038) >> 3
	rd := opcode & 0x0007
	v := arm.regs.Reg(int(rm))

	var result uint32
	switch op {
	case 0b00: // REV
		result = v>>24 | (v>>8)&0xff00 | (v<<8)&0xff0000 | v<<24
	case 0b01: // REV16
		lo := v & 0xffff
		hi := (v >> 16) & 0xffff
		result = (hi>>8|hi<<8)&0xffff<<16 | (lo>>8 | lo<<8) & 0xffff
	case 0b11: // REVSH
		lo := v & 0xffff
		swapped := (lo>>8 | lo<<8) & 0xffff
		result = signExtend(swapped, 16)
	default:
		return errUnpredictable("reserved REV sub-opcode")
	}
	arm.regs.SetReg(int(rd), result)
	return nil
}

// CPS - modify PRIMASK/FAULTMASK, privileged only.
func (arm *ARM) execCPS(opcode uint16) error {
	if !arm.regs.privileged() {
		return nil // unprivileged CPS is a no-op, not a fault, per the architecture
	}
	enable := opcode&0x0010 == 0 // im bit: 0 = enable (CPSIE), 1 = disable (CPSID)
	affectsPRIMASK := opcode&0x0002 != 0
	affectsFAULTMASK := opcode&0x0001 != 0

	if affectsPRIMASK {
		arm.regs.SetPRIMASK(!enable)
	}
	if affectsFAULTMASK {
		arm.regs.SetFAULTMASK(!enable)
	}
	return nil
}

// Hints (NOP/YIELD/WFE/WFI/SEV) and the IT instruction, both living in the
// 0xBF00-0xBFFF miscellaneous slot.
func (arm *ARM) execHintsOrIT(opcode uint16) error {
	if opcode&0x000f == 0 {
		// nop-compatible hint: NOP/YIELD/WFE/WFI/SEV selected by bits[7:4];
		// all are no-ops in this emulator.
		return nil
	}
	return arm.execIT(opcode)
}

// IT - sets ITSTATE, covering up to four following instructions.
func (arm *ARM) execIT(opcode uint16) error {
	if arm.regs.IT().inITBlock() {
		return errUnpredictable("IT instruction while already inside an IT block")
	}
	firstCond := uint8((opcode & 0x00f0) >> 4)
	mask := uint8(opcode & 0x000f)
	if firstCond == 0b1111 {
		return errUnpredictable("IT firstcond == 0b1111")
	}
	if firstCond == 0b1110 && mask != 0b1000 {
		return errUnpredictable("IT with AL condition requires mask == 0b1000 (no else)")
	}
	arm.regs.SetIT(itState(firstCond<<4 | mask))
	return nil
}
