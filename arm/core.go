// Package arm implements a functional emulator for the ARMv7-M (Thumb/
// Thumb-2) processor profile: register file, program-status machinery,
// unified memory map with bit-band aliasing, MPU, Thumb/Thumb-2 decoder,
// per-instruction semantics and exception entry/return. Built out from an
// embedded, single-cartridge-coprocessor style ARM emulator into a
// standalone, host-driven core.
package arm

import (
	"fmt"

	"github.com/cortexm3/armv7m/arm/config"
	"github.com/cortexm3/armv7m/internal/logger"
)

// StepOutcome reports what Step() did: the address of the retired
// instruction and, if a synchronous exception was taken while executing it,
// which one.
type StepOutcome struct {
	RetiredPC      uint32
	ExceptionTaken bool
	Exception      string
}

// ARM is the top-level emulator core. It owns every other component
// exclusively and requires no interior sharing, so every field below is a
// plain value or owned pointer rather than anything requiring
// synchronization.
type ARM struct {
	cfg config.Map
	mem *AddressSpace

	regs RegisterFile
	mpu  *MPU
	scb  SCB
	nvic NVIC
	systick SysTick

	active activeExceptions

	// pendingNMI/pendingPendSV/pendingSysTick track the three fixed
	// exceptions whose pending state is set via ICSR rather than the NVIC's
	// per-IRQ ISPR/ICPR arrays (those only cover external interrupts,
	// exception numbers 16 and up).
	pendingNMI     bool
	pendingPendSV  bool
	pendingSysTick bool

	breakpoints map[uint32]bool

	loaded bool

	// instructionPC is the address of the instruction currently being
	// executed; used by return_address() and by diagnostics.
	instructionPC uint32

	// skipPCIncrement is a latch set by PC-writing operations (branches,
	// POP{PC}, LDM{PC}, exception entry/return) and cleared by Step before
	// each instruction. Nothing reads it: stepOnce advances PC before
	// dispatch, so a PC-writing operation's target simply replaces the
	// advanced value.
	skipPCIncrement bool
}

// NewARM allocates a core over the given memory-map configuration. The
// core holds no firmware until Load is called.
func NewARM(cfg config.Map) *ARM {
	arm := &ARM{
		cfg:         cfg,
		mem:         NewAddressSpace(cfg),
		mpu:         newMPU(),
		active:      make(activeExceptions),
		breakpoints: make(map[uint32]bool),
	}
	arm.mem.AttachRegion(&systemControlSpace{arm: arm})
	return arm
}

// AttachRegion registers a memory-mapped peripheral/region outside the four
// owned buffers.
func (arm *ARM) AttachRegion(r AttachedRegion) {
	arm.mem.AttachRegion(r)
}

// Load copies image into Flash and resets the core: loading an image
// allocates the state and then calls reset(). Returns a host-level error if
// the image does not fit.
func (arm *ARM) Load(image []byte) error {
	if err := arm.mem.LoadImage(image); err != nil {
		return err
	}
	arm.loaded = true
	arm.Reset()
	return nil
}

// Reset restores architectural reset state: zeroes banks, forces
// Process-SP bits[1:0]=0, LR=0xFFFFFFFF, IPSR=0, EPSR.{IT,T} from the
// initial vector-table PC, reads SP_main/PC from vector-table entries 0/1,
// and branches to the initial PC.
func (arm *ARM) Reset() {
	arm.regs.reset()
	arm.mpu.reset()
	arm.scb.reset()
	arm.nvic.reset()
	arm.systick.reset()
	arm.active = make(activeExceptions)
	arm.pendingNMI = false
	arm.pendingPendSV = false
	arm.pendingSysTick = false

	spMain, err := arm.AlignedRead32(0x00000000, accessVecTable)
	if err != nil {
		logger.Logf("arm", "reset: failed to read initial SP from vector table: %v", err)
		spMain = 0
	}
	initialPC, err := arm.AlignedRead32(0x00000004, accessVecTable)
	if err != nil {
		logger.Logf("arm", "reset: failed to read initial PC from vector table: %v", err)
		initialPC = 0
	}

	arm.regs.SetSPMain(spMain)
	arm.regs.SetSPProcess(arm.regs.SPProcess() &^ 0x3)
	arm.regs.SetEPSR_T(initialPC&1 != 0)
	arm.regs.SetReg(PC, initialPC&^1)
	arm.instructionPC = arm.regs.Reg(PC) - 2
}

// AddBreakpoint adds an instruction address to the breakpoint set. Idempotent.
func (arm *ARM) AddBreakpoint(addr uint32) error {
	if !arm.loaded {
		return errBreakpointBeforeLoad
	}
	arm.breakpoints[addr] = true
	return nil
}

// RemoveBreakpoint removes an instruction address from the breakpoint set.
// Idempotent.
func (arm *ARM) RemoveBreakpoint(addr uint32) {
	delete(arm.breakpoints, addr)
}

// Breakpoints returns a snapshot of the current breakpoint set.
func (arm *ARM) Breakpoints() []uint32 {
	out := make([]uint32, 0, len(arm.breakpoints))
	for a := range arm.breakpoints {
		out = append(out, a)
	}
	return out
}

// AtBreakpoint reports whether the address the core is about to execute is
// in the breakpoint set. The host is expected to call this between Step()
// invocations when driving a "run until breakpoint" loop.
func (arm *ARM) AtBreakpoint() bool {
	return arm.breakpoints[arm.regs.Reg(PC)&^1]
}

// Registers returns a read-only copy of the register file for host display.
func (arm *ARM) Registers() RegisterFile {
	return arm.regs
}

// Memory returns the address space for read-only host inspection. Hosts
// must not call Write/LoadImage on the returned value outside of the load
// step; Step() is the sole mutator during execution.
func (arm *ARM) Memory() *AddressSpace {
	return arm.mem
}

// MPUState exposes a read-only snapshot of the MPU for host display.
func (arm *ARM) MPUState() MPU {
	return *arm.mpu
}

// SCBState exposes a read-only snapshot of the system control block.
func (arm *ARM) SCBState() SCB {
	return arm.scb
}

// Step advances the core by exactly one instruction. It returns
// a FatalError only for unrecoverable internal inconsistencies; all
// architectural faults and UNPREDICTABLE conditions are handled internally
// (faults become exception entries; UNPREDICTABLE aborts the step without
// advancing PC and is written to the internal log). An UNPREDICTABLE step
// returns a nil error and an outcome that does not mark it, so the host
// cannot tell it apart from a completed instruction.
func (arm *ARM) Step() (StepOutcome, *FatalError) {
	if !arm.loaded {
		return StepOutcome{}, errFatal(errNoImageLoaded.Error())
	}

	arm.tickSysTick()
	if rf := arm.checkPendingExceptions(); rf != nil {
		if ferr := arm.takeFault(rf); ferr != nil {
			return StepOutcome{}, ferr
		}
		arm.clearPending(rf.kind, rf.irq)
		return StepOutcome{RetiredPC: arm.regs.Reg(PC) &^ 1, ExceptionTaken: true, Exception: rf.kind.String()}, nil
	}

	pcBefore := arm.regs.Reg(PC) &^ 1
	arm.instructionPC = pcBefore
	arm.skipPCIncrement = false

	// The predicate for *this* instruction is read from the IT-state's high
	// nibble before advancing; advancing happens after dispatch completes,
	// once the (possibly skipped) instruction has been dispatched.
	outcome := StepOutcome{RetiredPC: pcBefore}

	if err := arm.stepOnce(); err != nil {
		if rf, ok := err.(*raisedFault); ok {
			if ferr := arm.takeFault(rf); ferr != nil {
				return outcome, ferr
			}
			outcome.ExceptionTaken = true
			outcome.Exception = rf.kind.String()
			return outcome, nil
		}
		if IsUnpredictable(err) {
			// UNPREDICTABLE aborts the step without advancing PC or taking
			// any other action.
			arm.regs.SetReg(PC, pcBefore)
			logger.Logf("arm", "step at %#08x: %v", pcBefore, err)
			return outcome, nil
		}
		return outcome, errFatal(fmt.Sprintf("unexpected error from stepOnce: %v", err))
	}

	// stepOnce advanced PC past the consumed halfword(s) before dispatch; a
	// branch writer's target has already replaced that value.
	return outcome, nil
}

// takeFault runs exception entry to completion for the given fault,
// escalating to HardFault if exception entry itself cannot proceed (a
// fault raised while priority is already at or below the level the new
// exception would enter at).
func (arm *ARM) takeFault(rf *raisedFault) *FatalError {
	kind := rf.kind
	newPriority := groupPriority(arm.configuredPriority(kind.exceptionNumber(rf.irq)), arm.scb.priGroup())
	if kind != faultHardFault && newPriority >= arm.executionPriority() && arm.executionPriority() != 256 {
		// the new exception cannot preempt: this is the ARMv7-M definition
		// of a fault that escalates to HardFault rather than being taken
		// directly.
		kind = faultHardFault
		rf = &raisedFault{kind: faultHardFault}
	}
	if err := arm.exceptionEntry(kind, rf.irq); err != nil {
		return errFatal(fmt.Sprintf("exception entry for %s failed: %v", kind, err))
	}
	return nil
}

// stepOnce fetches, decodes and executes exactly one instruction (16-bit or
// 32-bit). It returns a *raisedFault or *unpredictable (wrapped as error) on
// the conditions those types describe; stepOnce itself never panics on a
// well-formed core.
func (arm *ARM) stepOnce() error {
	pc := arm.regs.Reg(PC) &^ 1

	if !arm.regs.EPSR_T() {
		arm.scb.setUsageFault(ufInvalidState)
		return &raisedFault{kind: faultUsageFault}
	}

	hw1raw, err := arm.AlignedRead16(pc, accessInstructionFetch)
	if err != nil {
		return err
	}

	op1 := hw1raw >> 11
	is32bit := op1 == 0b11101 || op1 == 0b11110 || op1 == 0b11111

	// Membership at the start of the instruction is what determines whether
	// IT-state advances afterward: the IT instruction itself sets ITSTATE
	// while not yet inside a block, and must not have its own, freshly-set
	// state advanced out from under the first predicated instruction.
	inBlock := arm.regs.IT().inITBlock()

	cond := arm.regs.IT().condition()
	if !conditionPassed(arm.regs.APSR(), cond) {
		// predicate failed: architectural state is untouched, but PC and
		// IT-state must still advance past the skipped instruction.
		if is32bit {
			arm.regs.SetReg(PC, pc+4)
		} else {
			arm.regs.SetReg(PC, pc+2)
		}
		if inBlock {
			arm.regs.AdvanceIT()
		}
		return nil
	}

	var outcomeErr error
	if is32bit {
		hw2, err := arm.AlignedRead16(pc+2, accessInstructionFetch)
		if err != nil {
			return err
		}
		arm.regs.SetReg(PC, pc+4)
		outcomeErr = arm.execute32(hw1raw, hw2)
	} else {
		arm.regs.SetReg(PC, pc+2)
		outcomeErr = arm.execute16(hw1raw)
	}

	if outcomeErr != nil {
		return outcomeErr
	}

	if inBlock {
		arm.regs.AdvanceIT()
	}
	return nil
}

// conditionPassed implements ConditionPassed(): true outside an IT block
// (condition == 0b1110, "always") or when the IT block's current condition
// is satisfied by the flags.
func conditionPassed(flags apsr, cond uint8) bool {
	switch cond {
	case 0b0000:
		return flags.Z
	case 0b0001:
		return !flags.Z
	case 0b0010:
		return flags.C
	case 0b0011:
		return !flags.C
	case 0b0100:
		return flags.N
	case 0b0101:
		return !flags.N
	case 0b0110:
		return flags.V
	case 0b0111:
		return !flags.V
	case 0b1000:
		return flags.C && !flags.Z
	case 0b1001:
		return !flags.C || flags.Z
	case 0b1010:
		return flags.N == flags.V
	case 0b1011:
		return flags.N != flags.V
	case 0b1100:
		return !flags.Z && flags.N == flags.V
	case 0b1101:
		return flags.Z || flags.N != flags.V
	case 0b1110:
		return true
	default:
		return true // 0b1111 is UNPREDICTABLE as an instruction condition; callers never pass it as IT base
	}
}

// BranchWritePC implements BranchWritePC: writes a target address to PC,
// clearing bit 0, and sets the skipPCIncrement latch.
func (arm *ARM) BranchWritePC(target uint32) {
	arm.regs.SetReg(PC, target&^1)
	arm.skipPCIncrement = true
}

// BXWritePC implements BXWritePC: as BranchWritePC, but also copies bit 0
// into EPSR.T, and recognises the EXC_RETURN pattern when in Handler mode.
func (arm *ARM) BXWritePC(target uint32) error {
	if arm.regs.Mode() == Handler && isExcReturn(target) {
		arm.skipPCIncrement = true
		return arm.excReturn(target)
	}
	arm.regs.SetEPSR_T(target&1 != 0)
	arm.BranchWritePC(target)
	return nil
}

// BLXWritePC implements BLXWritePC: as BX, but never enters the EXC_RETURN
// path; the next Step faults UsageFault(InvalidState) if EPSR.T became 0 as
// a result (checked at the top of stepOnce via the EPSR_T() guard).
func (arm *ARM) BLXWritePC(target uint32) {
	arm.regs.SetEPSR_T(target&1 != 0)
	arm.BranchWritePC(target)
}
