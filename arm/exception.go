package arm

// This file implements the exception entry/return machinery:
// execution_priority, exception_entry (push_stack + exception_taken),
// return_address, and EXC_RETURN handling, per the ARMv7-M Architecture
// Reference Manual's B1.5 pseudocode.

// activeExceptions tracks the set of currently-stacked exception numbers
// used by priority computation and EXC_RETURN.
type activeExceptions map[uint32]bool

func (a activeExceptions) has(n uint32) bool { return a[n] }
func (a activeExceptions) add(n uint32)      { a[n] = true }
func (a activeExceptions) remove(n uint32)   { delete(a, n) }

// configuredPriority returns the configured priority group-number for a
// given exception number: fixed negative priorities for NMI/HardFault, and
// the NVIC-configured (or system-handler-configured) 8-bit priority for
// everything else.
func (arm *ARM) configuredPriority(exc uint32) int {
	switch exc {
	case excNMI:
		return -2
	case excHardFault:
		return -1
	case excMemManage:
		return int(uint8(arm.scb.SHPR1 & 0xff))
	case excBusFault:
		return int(uint8((arm.scb.SHPR1 >> 8) & 0xff))
	case excUsageFault:
		return int(uint8((arm.scb.SHPR1 >> 16) & 0xff))
	case excSVCall:
		return int(uint8((arm.scb.SHPR2 >> 24) & 0xff))
	case excPendSV:
		return int(uint8((arm.scb.SHPR3 >> 16) & 0xff))
	case excSysTick:
		return int(uint8((arm.scb.SHPR3 >> 24) & 0xff))
	default:
		if exc >= excIRQ0 {
			return int(arm.nvic.priority(int(exc - excIRQ0)))
		}
		return 0
	}
}

// groupPriority reduces a configured priority modulo the PRIGROUP-derived
// subgroup: PRIGROUP splits the 8-bit priority field into a pre-empt group
// (high bits) and a subpriority (low bits); only the pre-empt group
// participates in priority comparison for execution_priority.
func groupPriority(p int, priGroup uint8) int {
	if p < 0 {
		return p
	}
	groupBits := 7 - int(priGroup)
	if groupBits <= 0 {
		return 0
	}
	if groupBits >= 8 {
		return p
	}
	mask := (0xff << (8 - groupBits)) & 0xff
	return p & mask
}

// executionPriority implements the execution_priority algorithm: the
// smallest of 256; each active exception's group-reduced priority; a
// nonzero BASEPRI's group-reduced level; 0 if PRIMASK; -1 if FAULTMASK.
func (arm *ARM) executionPriority() int {
	best := 256
	pg := arm.scb.priGroup()

	for exc := range arm.active {
		p := groupPriority(arm.configuredPriority(exc), pg)
		if p < best {
			best = p
		}
	}

	if arm.regs.BASEPRI() != 0 {
		p := groupPriority(int(arm.regs.BASEPRI()), pg)
		if p < best {
			best = p
		}
	}

	if arm.regs.PRIMASK() && best > 0 {
		best = 0
	}

	if arm.regs.FAULTMASK() && best > -1 {
		best = -1
	}

	return best
}

// returnAddressUsesCurrent reports whether kind's return address (recorded in the
// exception stack frame) is the address of the current (faulting)
// instruction or the next instruction.
func returnAddressUsesCurrent(kind faultKind) bool {
	switch kind {
	case faultMemManage, faultUsageFault, faultBusFault:
		return true
	default:
		return false
	}
}

// excReturnPattern encodes the EXC_RETURN value placed in LR on exception
// entry: Handler -> 0xFFFFFFF1, Thread+Main -> 0xFFFFFFF9, Thread+Process ->
// 0xFFFFFFFD.
func (arm *ARM) excReturnPattern() uint32 {
	if arm.regs.Mode() == Handler {
		return 0xFFFFFFF1
	}
	if arm.regs.ControlSPSEL() {
		return 0xFFFFFFFD
	}
	return 0xFFFFFFF9
}

// pushStack implements push_stack: chooses the frame SP, computes and
// records the alignment-padding bit, decrements SP by 0x20, and writes the
// eight-word exception frame.
func (arm *ARM) pushStack(kind faultKind, returnAddr uint32) error {
	useProcess := arm.regs.ControlSPSEL() && arm.regs.Mode() == Thread
	var sp uint32
	if useProcess {
		sp = arm.regs.SPProcess()
	} else {
		sp = arm.regs.SPMain()
	}

	align := sp&0x4 != 0 && arm.scb.stkAlign()
	sp = (sp - 0x20) & ^uint32(0x4)
	if align {
		sp |= 0x4
	}

	xpsr := arm.regs.xPSR()
	if align {
		xpsr |= 1 << 9
	} else {
		xpsr &^= 1 << 9
	}

	frame := [8]uint32{
		arm.regs.Reg(R0), arm.regs.Reg(R1), arm.regs.Reg(R2), arm.regs.Reg(R3),
		arm.regs.Reg(R12), arm.regs.Reg(LR), returnAddr, xpsr,
	}
	for i, v := range frame {
		if err := arm.AlignedWrite32(sp+uint32(i*4), v, accessNormal); err != nil {
			return err
		}
	}

	if useProcess {
		arm.regs.SetSPProcess(sp)
	} else {
		arm.regs.SetSPMain(sp)
	}
	arm.regs.SetReg(LR, arm.excReturnPattern())
	return nil
}

// vectorTableEntry reads the 32-bit vector-table entry for exception number
// exc, relative to VTOR.TBLOFF.
func (arm *ARM) vectorTableEntry(exc uint32) (uint32, error) {
	addr := (arm.scb.VTOR &^ 0x7f) + exc*4
	return arm.AlignedRead32(addr, accessVecTable)
}

// exceptionTaken implements exception_taken: reads the handler address from
// the vector table, branches to it, switches to Handler mode, sets IPSR,
// EPSR.T, clears IT-state, forces CONTROL.SPSEL=0, and marks the exception
// active.
func (arm *ARM) exceptionTaken(kind faultKind, irq int) error {
	exc := kind.exceptionNumber(irq)
	handler, err := arm.vectorTableEntry(exc)
	if err != nil {
		return err
	}

	arm.regs.SetReg(PC, handler&^1)
	arm.regs.SetMode(Handler)
	arm.regs.SetIPSR(exc)
	arm.regs.SetEPSR_T(handler&1 != 0)
	arm.regs.SetIT(0)
	arm.regs.SetControlSPSEL(false)
	arm.active.add(exc)
	if exc >= excIRQ0 {
		arm.nvic.setActive(int(exc-excIRQ0), true)
	}
	arm.skipPCIncrement = true
	return nil
}

// exceptionEntry implements exception_entry: push_stack then
// exception_taken, run to completion before Step returns.
func (arm *ARM) exceptionEntry(kind faultKind, irq int) error {
	var returnAddr uint32
	if returnAddressUsesCurrent(kind) {
		returnAddr = arm.instructionPC
	} else {
		returnAddr = arm.regs.Reg(PC)
	}

	if err := arm.pushStack(kind, returnAddr); err != nil {
		return err
	}
	return arm.exceptionTaken(kind, irq)
}

// tickSysTick advances the SysTick counter by one Step(), reloading from RVR
// on underflow and, per CSR.TICKINT, pending the SysTick exception.
func (arm *ARM) tickSysTick() {
	if arm.systick.CSR&1 == 0 { // ENABLE
		return
	}
	if arm.systick.CVR == 0 {
		arm.systick.CVR = arm.systick.RVR
	} else {
		arm.systick.CVR--
	}
	if arm.systick.CVR == 0 {
		arm.systick.CSR |= 1 << 16 // COUNTFLAG
		if arm.systick.CSR&(1<<1) != 0 {
			arm.pendingSysTick = true
		}
	}
}

// checkPendingExceptions implements the between-instruction half of the
// exception model: of every pending-and-enabled exception that is not
// already active, it selects the one with the lowest group-reduced priority
// and returns it if that priority can preempt the currently executing
// context, or nil if nothing is eligible to run yet.
func (arm *ARM) checkPendingExceptions() *raisedFault {
	pg := arm.scb.priGroup()
	current := arm.executionPriority()

	best := 256
	var result *raisedFault
	consider := func(exc uint32, pending bool, kind faultKind, irq int) {
		if !pending || arm.active.has(exc) {
			return
		}
		p := groupPriority(arm.configuredPriority(exc), pg)
		if p < current && p < best {
			best = p
			result = &raisedFault{kind: kind, irq: irq}
		}
	}

	consider(excNMI, arm.pendingNMI, faultNMI, 0)
	consider(excPendSV, arm.pendingPendSV, faultPendSV, 0)
	consider(excSysTick, arm.pendingSysTick, faultSysTick, 0)
	for irq := 0; irq < len(arm.nvic.IPR)*4; irq++ {
		if arm.nvic.enabled(irq) && arm.nvic.pending(irq) {
			consider(excIRQ0+uint32(irq), true, faultExternalIRQ, irq)
		}
	}

	return result
}

// clearPending drops the pending flag of the exception Step just took,
// mirroring the implicit pend-clear every real NVIC performs on exception
// entry.
func (arm *ARM) clearPending(kind faultKind, irq int) {
	switch kind {
	case faultNMI:
		arm.pendingNMI = false
	case faultPendSV:
		arm.pendingPendSV = false
	case faultSysTick:
		arm.pendingSysTick = false
	case faultExternalIRQ:
		arm.nvic.setPending(irq, false)
	}
}

// isExcReturn reports whether value has the EXC_RETURN form (top 28 bits
// 0xFFFFFFF), used by BXWritePC to recognise the return path. The low
// nibble is not checked: besides the three defined patterns
// (0b0001/0b1001/0b1101) any other nibble also matches, and excReturn
// treats it as a return to Thread mode on the main stack.
func isExcReturn(value uint32) bool {
	return value&0xFFFFFFF0 == 0xFFFFFFF0
}

// excReturn implements the EXC_RETURN protocol: pops the 8-word frame from
// the indicated stack, restores R0-R3/R12/LR/PC/xPSR (reapplying the stored
// alignment bit), deactivates the exception, and switches mode per the low
// nibble of the pattern.
func (arm *ARM) excReturn(pattern uint32) error {
	toProcess := pattern&0xf == 0xd
	toHandler := pattern&0xf == 0x1

	var sp uint32
	if toProcess {
		sp = arm.regs.SPProcess()
	} else {
		sp = arm.regs.SPMain()
	}

	// read before setXPSR below replaces IPSR with the stacked value
	returningExc := arm.regs.IPSR()

	var frame [8]uint32
	for i := range frame {
		v, err := arm.AlignedRead32(sp+uint32(i*4), accessNormal)
		if err != nil {
			return err
		}
		frame[i] = v
	}

	align := frame[7]&(1<<9) != 0
	sp += 0x20
	if align {
		sp |= 0x4
	}

	arm.regs.SetReg(R0, frame[0])
	arm.regs.SetReg(R1, frame[1])
	arm.regs.SetReg(R2, frame[2])
	arm.regs.SetReg(R3, frame[3])
	arm.regs.SetReg(R12, frame[4])
	arm.regs.SetReg(LR, frame[5])
	arm.regs.SetReg(PC, frame[6]&^1)
	arm.regs.setXPSR(frame[7])

	if toProcess {
		arm.regs.SetSPProcess(sp)
	} else {
		arm.regs.SetSPMain(sp)
	}

	arm.active.remove(returningExc)
	if returningExc >= excIRQ0 {
		arm.nvic.setActive(int(returningExc)-excIRQ0, false)
	}

	if toHandler {
		arm.regs.SetMode(Handler)
	} else {
		arm.regs.SetMode(Thread)
		arm.regs.SetControlSPSEL(toProcess)
	}

	arm.skipPCIncrement = true
	return nil
}
