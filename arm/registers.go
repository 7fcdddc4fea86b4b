package arm

// This file implements the register file of "B1.4 Registers" in the ARMv7-M
// Architecture Reference Manual, generalized from a fixed register set and
// named status bits to the full ARMv7-M banked-SP / mode / mask register
// set.

// Register indices for the 13 general-purpose registers plus LR and PC,
// numbered as in the instruction encodings (LR = 14, PC = 15). Index 13 is
// not SP: SP is resolved dynamically by SP/SetSP below, since SP access is
// banked on CONTROL.SPSEL and execution mode.
const (
	R0 = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	_ // 13: SP's encoding number, unused in this index space
	LR
	PC
	numGPR
)

// ExecutionMode is the processor's Thread/Handler mode (B1.4.1).
type ExecutionMode int

const (
	Thread ExecutionMode = iota
	Handler
)

func (m ExecutionMode) String() string {
	if m == Handler {
		return "Handler"
	}
	return "Thread"
}

// itState is the 8-bit IT-state split into the up-to-four pending condition
// mask bits (low nibble) and the base condition code (high nibble), per
// "A7.3.2 Conditional execution" and EPSR.IT[7:0] in B1.4.2.
type itState uint8

// inITBlock reports whether execution is currently inside an IT block (the
// low nibble of the IT-state is non-zero).
func (it itState) inITBlock() bool {
	return it&0x0f != 0
}

// lastInITBlock reports whether the current instruction is the last one
// covered by the IT block (low nibble == 0b1000).
func (it itState) lastInITBlock() bool {
	return it&0x0f == 0b1000
}

// condition returns the 4-bit condition code that applies to the current
// instruction: the base condition held in the IT-state's top nibble while
// inside an IT block, or "always" (0b1110) otherwise.
func (it itState) condition() uint8 {
	if it.inITBlock() {
		return uint8(it >> 4)
	}
	return 0b1110
}

// advance shifts the IT-state's low 5 bits (bit 4, the current
// instruction's base-condition bit, plus the 4-bit mask) left by one within
// that 5-bit field, per "A7.3.2": only bits[7:5] (the fixed cond[3:1] from
// the IT instruction) survive unchanged across the shift, since bit 4 is
// itself part of the rotating field, not a fixed copy of firstcond. It is
// cleared to zero entirely once the low 3 bits become zero.
func (it itState) advance() itState {
	if !it.inITBlock() {
		return it
	}
	if it&0x07 == 0 {
		return 0
	}
	condTop3 := it & 0xe0
	shifted := (it << 1) & 0x1f
	return condTop3 | shifted
}

// apsr is the Application Program Status Register view: the N, Z, C, V and
// Q flags, packed into bits [31:27].
type apsr struct {
	N, Z, C, V, Q bool
}

func (a apsr) pack() uint32 {
	var v uint32
	if a.N {
		v |= 1 << 31
	}
	if a.Z {
		v |= 1 << 30
	}
	if a.C {
		v |= 1 << 29
	}
	if a.V {
		v |= 1 << 28
	}
	if a.Q {
		v |= 1 << 27
	}
	return v
}

func unpackAPSR(v uint32) apsr {
	return apsr{
		N: v&(1<<31) != 0,
		Z: v&(1<<30) != 0,
		C: v&(1<<29) != 0,
		V: v&(1<<28) != 0,
		Q: v&(1<<27) != 0,
	}
}

// setNZ updates N and Z from a 32-bit result, per the common "N = result<31>;
// Z = IsZeroBit(result)" idiom used by nearly every flag-setting instruction.
func (a *apsr) setNZ(result uint32) {
	a.N = result&0x80000000 != 0
	a.Z = result == 0
}

// RegisterFile holds the sixteen general/special registers, the banked stack
// pointers, the program-status word's component views, the interrupt/fault
// masks, the CONTROL register and the current execution mode.
type RegisterFile struct {
	gpr [numGPR]uint32

	spMain    uint32
	spProcess uint32

	apsr apsr
	it   itState
	tBit bool

	exceptionNumber uint32 // IPSR

	primask  bool
	faultmask bool
	basepri  uint8

	controlNPRIV bool
	controlSPSEL bool

	mode ExecutionMode
}

// Reg reads a general register by index (R0..R12, LR, PC). Reading SP through
// this accessor is not supported; use SP()/SetSP().
func (r *RegisterFile) Reg(n int) uint32 {
	return r.gpr[n]
}

// SetReg writes a general register by index. Writing PC through this
// accessor does not apply any of the branch-write disciplines (BranchWritePC
// / BXWritePC / ALUWritePC), but it does clear bit 0 of any value written
// to PC, so callers need not clear it themselves.
func (r *RegisterFile) SetReg(n int, v uint32) {
	if n == PC {
		v &^= 1
	}
	r.gpr[n] = v
}

// spSelectsProcess reports whether unbanked "SP" access currently resolves to
// the Process stack pointer: true iff CONTROL.SPSEL is set and the processor
// is in Thread mode. Accessing SP with SPSEL set while in Handler mode is
// UNPREDICTABLE; callers must check Mode()/ControlSPSEL() themselves before
// relying on this when in Handler mode.
func (r *RegisterFile) spSelectsProcess() bool {
	return r.controlSPSEL && r.mode == Thread
}

// SP returns the currently-banked stack pointer value.
func (r *RegisterFile) SP() uint32 {
	if r.spSelectsProcess() {
		return r.spProcess
	}
	return r.spMain
}

// SetSP writes the currently-banked stack pointer.
func (r *RegisterFile) SetSP(v uint32) {
	if r.spSelectsProcess() {
		r.spProcess = v
	} else {
		r.spMain = v
	}
}

// SPMain and SPProcess give direct, unbanked access to each physical stack
// pointer, used by exception entry/return which always knows which bank it
// needs regardless of the current CONTROL.SPSEL/mode banking rule.
func (r *RegisterFile) SPMain() uint32      { return r.spMain }
func (r *RegisterFile) SetSPMain(v uint32)  { r.spMain = v }
func (r *RegisterFile) SPProcess() uint32     { return r.spProcess }
func (r *RegisterFile) SetSPProcess(v uint32) { r.spProcess = v }

// Mode returns the current execution mode.
func (r *RegisterFile) Mode() ExecutionMode { return r.mode }

// SetMode sets the current execution mode.
func (r *RegisterFile) SetMode(m ExecutionMode) { r.mode = m }

// APSR returns a copy of the condition-flag view.
func (r *RegisterFile) APSR() apsr { return r.apsr }

// SetAPSR replaces the condition-flag view.
func (r *RegisterFile) SetAPSR(a apsr) { r.apsr = a }

// IPSR returns the 9-bit exception number, zero when in Thread mode with no
// exception active.
func (r *RegisterFile) IPSR() uint32 { return r.exceptionNumber & 0x1ff }

// SetIPSR sets the exception number.
func (r *RegisterFile) SetIPSR(n uint32) { r.exceptionNumber = n & 0x1ff }

// EPSR_T returns the Thumb state bit. It must be 1 at all times in this
// Thumb-only profile; the decoder faults UsageFault when an instruction
// leaves it clear.
func (r *RegisterFile) EPSR_T() bool { return r.tBit }

// SetEPSR_T sets the Thumb state bit.
func (r *RegisterFile) SetEPSR_T(t bool) { r.tBit = t }

// IT returns the current IT-state byte.
func (r *RegisterFile) IT() itState { return r.it }

// SetIT replaces the IT-state byte.
func (r *RegisterFile) SetIT(it itState) { r.it = it }

// AdvanceIT advances the IT-state for the next instruction, per itState.advance.
func (r *RegisterFile) AdvanceIT() { r.it = r.it.advance() }

// xPSR packs APSR|IPSR|EPSR into a single 32-bit word, used by exception
// entry/return stack framing.
func (r *RegisterFile) xPSR() uint32 {
	v := r.apsr.pack()
	v |= r.exceptionNumber & 0x1ff
	if r.tBit {
		v |= 1 << 24
	}
	v |= uint32(r.it>>2) << 10
	v |= uint32(r.it&0x3) << 25
	return v
}

// setXPSR unpacks a 32-bit xPSR word (as restored from an exception stack
// frame) back into the component views.
func (r *RegisterFile) setXPSR(v uint32) {
	r.apsr = unpackAPSR(v)
	r.exceptionNumber = v & 0x1ff
	r.tBit = v&(1<<24) != 0
	itHigh6 := uint8((v >> 10) & 0x3f)
	itLow2 := uint8((v >> 25) & 0x3)
	r.it = itState(itHigh6<<2 | itLow2)
}

// PRIMASK/FAULTMASK/BASEPRI accessors.
func (r *RegisterFile) PRIMASK() bool      { return r.primask }
func (r *RegisterFile) SetPRIMASK(b bool)  { r.primask = b }
func (r *RegisterFile) FAULTMASK() bool     { return r.faultmask }
func (r *RegisterFile) SetFAULTMASK(b bool) { r.faultmask = b }
func (r *RegisterFile) BASEPRI() uint8      { return r.basepri }
func (r *RegisterFile) SetBASEPRI(b uint8)  { r.basepri = b }

// CONTROL.nPRIV / CONTROL.SPSEL accessors.
func (r *RegisterFile) ControlNPRIV() bool     { return r.controlNPRIV }
func (r *RegisterFile) SetControlNPRIV(b bool) { r.controlNPRIV = b }
func (r *RegisterFile) ControlSPSEL() bool     { return r.controlSPSEL }
func (r *RegisterFile) SetControlSPSEL(b bool) { r.controlSPSEL = b }

// privileged reports whether code is currently executing in privileged mode:
// always privileged in Handler mode, otherwise governed by CONTROL.nPRIV.
func (r *RegisterFile) privileged() bool {
	return r.mode == Handler || !r.controlNPRIV
}

// reset restores architectural reset defaults for the parts of the register
// file this assigns directly: general registers to zero, LR to the
// EXC_RETURN sentinel, IPSR/EPSR-IT to zero, masks cleared, CONTROL cleared,
// mode to Thread. SP_main/PC/EPSR.T are set by the caller afterwards from the
// vector table, and SP_process's bottom two bits are forced to zero.
func (r *RegisterFile) reset() {
	for i := 0; i < numGPR; i++ {
		r.gpr[i] = 0
	}
	r.gpr[LR] = 0xFFFFFFFF
	r.spProcess = 0
	r.apsr = apsr{}
	r.it = 0
	r.exceptionNumber = 0
	r.primask = false
	r.faultmask = false
	r.basepri = 0
	r.controlNPRIV = false
	r.controlSPSEL = false
	r.mode = Thread
}
