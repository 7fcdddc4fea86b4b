package arm

// This file implements the top-level 32-bit Thumb-2 decode (the group
// table: coprocessor, data-processing-immediate, branches and miscellaneous
// control, load/store-multiple, load/store-dual/exclusive/table-branch,
// load/store-single-plus-hints, data-processing-register, multiply,
// long-multiply/divide) and the "branches and miscellaneous control"
// semantics: B.W/BL, MRS/MSR, and the hint/barrier instructions. Dispatch
// follows the same bitmask-table style used for the 16-bit decoder;
// implemented from the ARMv7-M encoding tables (A5.3/A5.3.4).

// execute32 decodes and executes one 32-bit Thumb-2 instruction, already
// split into its two halfwords by stepOnce. Dispatch follows table A5.3.1:
// op1 is hw1[12:11], with coprocessor space (hw1[11:10] == 0b11, spanning
// both op1==01 and op1==11) checked first since it cuts across both.
func (arm *ARM) execute32(hw1, hw2 uint16) error {
	switch {
	case hw1&0x0c00 == 0x0c00:
		return arm.execCoprocessor(hw1, hw2)

	case hw1&0xf800 == 0xe800: // op1 == 0b01
		switch {
		case hw1&0xfe40 == 0xe800:
			return arm.execLoadStoreMultiple(hw1, hw2)
		case hw1&0xfe40 == 0xe840:
			return arm.execLoadStoreDualExclusiveTableBranch(hw1, hw2)
		case hw1&0xfe00 == 0xea00:
			return arm.execDPShiftedRegister(hw1, hw2)
		}

	case hw1&0xf800 == 0xf000: // op1 == 0b10
		if hw2&0x8000 == 0 {
			if hw1&0x0200 == 0 {
				return arm.execDPModifiedImmediate(hw1, hw2)
			}
			return arm.execDPPlainImmediate(hw1, hw2)
		}
		return arm.execBranchesMiscControl(hw1, hw2)

	case hw1&0xf800 == 0xf800: // op1 == 0b11
		switch {
		case hw1&0xfe00 == 0xf800:
			return arm.execLoadStoreSingle(hw1, hw2)
		case hw1&0xff00 == 0xfa00:
			return arm.execDPRegister(hw1, hw2)
		case hw1&0xff80 == 0xfb00:
			return arm.execMultiply(hw1, hw2)
		case hw1&0xff80 == 0xfb80:
			return arm.execLongMultiplyDivide(hw1, hw2)
		}
	}

	return errUnpredictable("unrecognised 32-bit Thumb-2 encoding")
}

// execCoprocessor handles the entire coprocessor/FPU instruction space. No
// floating-point or external coprocessor is modelled (spec Non-goals), so
// every encoding here raises UsageFault(NOCP) exactly as real silicon does
// when CPACR has not enabled a coprocessor.
func (arm *ARM) execCoprocessor(hw1, hw2 uint16) error {
	_ = hw1
	_ = hw2
	arm.scb.setUsageFault(ufNoCoprocessor)
	return &raisedFault{kind: faultUsageFault}
}

// condBranchOffset reconstructs the signed branch offset for the conditional
// B.W (T3) encoding: hw1 = 11110 S cond(4) imm6; hw2 = 10 J1 0 J2 imm11.
func condBranchOffset(hw1, hw2 uint16) uint32 {
	s := uint32(hw1>>10) & 1
	imm6 := uint32(hw1) & 0x3f
	j1 := uint32(hw2>>13) & 1
	j2 := uint32(hw2>>11) & 1
	imm11 := uint32(hw2) & 0x7ff
	imm := s<<20 | j2<<19 | j1<<18 | imm6<<12 | imm11<<1
	return signExtend(imm, 21)
}

// uncondBranchOffset reconstructs B.W (T4) / BL (T1)'s signed offset: hw1 =
// 11110 S imm10; hw2 = 1 J1 1 J2 imm11, with I1/I2 formed from J1/J2 by
// XOR with S, per the ARMv7-M branch-offset convention.
func uncondBranchOffset(hw1, hw2 uint16) uint32 {
	s := uint32(hw1>>10) & 1
	imm10 := uint32(hw1) & 0x3ff
	j1 := uint32(hw2>>13) & 1
	j2 := uint32(hw2>>11) & 1
	imm11 := uint32(hw2) & 0x7ff
	i1 := (^(j1 ^ s)) & 1
	i2 := (^(j2 ^ s)) & 1
	imm := s<<24 | i1<<23 | i2<<22 | imm10<<12 | imm11<<1
	return signExtend(imm, 25)
}

// sysmRead/sysmWrite implement the SYSm-numbered special-register accesses
// used by MRS/MSR, per "B5.2.2/B5.2.3 MRS/MSR".
func (arm *ARM) sysmRead(sysm uint8) uint32 {
	switch sysm {
	case 0: // APSR
		return arm.regs.APSR().pack()
	case 3: // XPSR (APSR | IPSR view)
		return arm.regs.APSR().pack() | arm.regs.IPSR()
	case 5: // IPSR
		return arm.regs.IPSR()
	case 6: // EPSR: IT/ICI bits not separately modelled for MRS purposes
		return 0
	case 8: // MSP
		return arm.regs.SPMain()
	case 9: // PSP
		return arm.regs.SPProcess()
	case 16: // PRIMASK
		if arm.regs.PRIMASK() {
			return 1
		}
		return 0
	case 17, 18: // BASEPRI, BASEPRI_MAX
		return uint32(arm.regs.BASEPRI())
	case 19: // FAULTMASK
		if arm.regs.FAULTMASK() {
			return 1
		}
		return 0
	case 20: // CONTROL
		var v uint32
		if arm.regs.ControlNPRIV() {
			v |= 1
		}
		if arm.regs.ControlSPSEL() {
			v |= 2
		}
		return v
	}
	return 0
}

func (arm *ARM) sysmWrite(sysm uint8, val uint32) {
	switch sysm {
	case 0, 3: // APSR/XPSR writes only the flag bits
		arm.regs.SetAPSR(unpackAPSR(val))
	case 8:
		arm.regs.SetSPMain(val)
	case 9:
		arm.regs.SetSPProcess(val)
	case 16:
		arm.regs.SetPRIMASK(val&1 != 0)
	case 17, 18:
		arm.regs.SetBASEPRI(uint8(val & 0xff))
	case 19:
		arm.regs.SetFAULTMASK(val&1 != 0)
	case 20:
		if arm.regs.privileged() {
			arm.regs.SetControlNPRIV(val&1 != 0)
			if arm.regs.Mode() == Thread {
				arm.regs.SetControlSPSEL(val&2 != 0)
			}
		}
	}
}

// execBranchesMiscControl implements the whole hw2[15]==1 "branches and
// miscellaneous control" group: conditional B.W, unconditional B.W, BL,
// MSR/MRS (register), the hint instructions, and the memory barriers.
func (arm *ARM) execBranchesMiscControl(hw1, hw2 uint16) error {
	cond := uint8((hw1 >> 6) & 0xf)

	if hw2&0x5000 == 0 && cond != 0b1110 && cond != 0b1111 {
		// conditional B.W (T3): only reachable outside an IT block's final
		// slot since cond 1110/1111 here instead selects MSR/hints/misc.
		if conditionPassed(arm.regs.APSR(), cond) {
			offset := condBranchOffset(hw1, hw2)
			arm.BranchWritePC(arm.instructionPC + 4 + offset)
		}
		return nil
	}

	op := (hw1 >> 4) & 0x7f // hw1[10:4], selects among the misc-control ops

	switch {
	case hw2&0x4000 != 0 && hw2&0x1000 != 0: // BL (T1): hw2[14]=1,hw2[12]=1
		offset := uncondBranchOffset(hw1, hw2)
		arm.regs.SetReg(LR, (arm.instructionPC+4)|1)
		arm.BranchWritePC(arm.instructionPC + 4 + offset)
		return nil

	case hw2&0x4000 == 0 && hw2&0x1000 != 0: // B.W (T4), unconditional: hw2[14]=0,hw2[12]=1
		offset := uncondBranchOffset(hw1, hw2)
		arm.BranchWritePC(arm.instructionPC + 4 + offset)
		return nil

	case op == 0b0111000 || op == 0b0111001: // MSR (register)
		sysm := uint8(hw2 & 0xff)
		mask := (hw2 >> 10) & 0x3
		if mask != 0 {
			arm.sysmWrite(sysm, arm.regs.Reg(int(hw1&0xf)))
		}
		return nil

	case op == 0b0111110 || op == 0b0111111: // MRS
		sysm := uint8(hw2 & 0xff)
		rd := int((hw2 >> 8) & 0xf)
		arm.regs.SetReg(rd, arm.sysmRead(sysm))
		return nil

	case op == 0b0111010: // hints: NOP/YIELD/WFE/WFI/SEV/DBG, all no-ops here
		return nil

	case op == 0b0111011: // barriers: DSB/DMB/ISB; single-core in-order model: no-ops
		return nil
	}

	return errUnpredictable("unimplemented branches/misc-control opcode")
}
