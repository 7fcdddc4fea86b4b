package arm_test

// End-to-end scenarios covering the core's public Load/Step/Registers API:
// vector-table-driven reset, flag-setting data processing, IT-block
// conditional execution, PUSH/POP with PC, and the unaligned-access fault
// path, all against literal, manually constructed Thumb instruction
// encodings.

import (
	"encoding/binary"
	"testing"

	"github.com/cortexm3/armv7m/arm"
	"github.com/cortexm3/armv7m/arm/config"
	"github.com/cortexm3/armv7m/internal/armtest"
)

// buildImage assembles a firmware image: an 8-byte vector table (SP_main,
// initial PC) followed by the given 16-bit Thumb instructions, little-endian.
// The initial PC always points at the first instruction word, with the
// Thumb bit set.
func buildImage(cfg config.Map, spMain uint32, instrs []uint16) []byte {
	const entryOffset = 8
	buf := make([]byte, entryOffset+len(instrs)*2)
	binary.LittleEndian.PutUint32(buf[0:4], spMain)
	binary.LittleEndian.PutUint32(buf[4:8], (cfg.FlashStart+entryOffset)|1)
	for i, instr := range instrs {
		binary.LittleEndian.PutUint16(buf[entryOffset+i*2:], instr)
	}
	return buf
}

func newLoadedCore(t *testing.T, instrs []uint16) (*arm.ARM, config.Map) {
	t.Helper()
	cfg := config.Default()
	core := arm.NewARM(cfg)
	image := buildImage(cfg, cfg.SRAMStart+0x400, instrs)
	armtest.NoError(t, core.Load(image), "load firmware image")
	return core, cfg
}

// regs returns an addressable copy of core's register file so its
// pointer-receiver accessor methods can be called inline in assertions.
func regs(core *arm.ARM) *arm.RegisterFile {
	r := core.Registers()
	return &r
}

func step(t *testing.T, core *arm.ARM, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, ferr := core.Step()
		if ferr != nil {
			t.Fatalf("step %d: fatal error: %v", i, ferr)
		}
	}
}

// Scenario 1: vector-table-driven reset. Reset must read SP_main/PC from the
// image's vector table, which is loaded at flash_start but read by Reset at
// address 0, below flash_start, through the Code alias.
func TestVectorTableDrivenReset(t *testing.T) {
	core, cfg := newLoadedCore(t, []uint16{0x202A}) // MOVS R0,#0x2A

	armtest.Equal(t, regs(core).SPMain(), cfg.SRAMStart+0x400, "reset takes SP_main from vector table entry 0")
	armtest.Equal(t, regs(core).Reg(arm.PC), cfg.FlashStart+8, "reset takes PC from vector table entry 1, thumb bit cleared")
	armtest.True(t, regs(core).EPSR_T(), "reset sets EPSR.T since the initial PC had its thumb bit set")
}

// Scenario 2: MOVS R0,#0x2A sets R0 and the NZ flags from the immediate.
func TestMOVSImmediate(t *testing.T) {
	core, _ := newLoadedCore(t, []uint16{0x202A}) // MOVS R0,#0x2A
	step(t, core, 1)

	armtest.Equal(t, regs(core).Reg(arm.R0), uint32(0x2A), "MOVS R0,#0x2A sets R0")
	armtest.True(t, !regs(core).APSR().Z, "0x2A is non-zero: Z clear")
	armtest.True(t, !regs(core).APSR().N, "0x2A is positive: N clear")
}

// Scenario 3: ADDS R1,R0,#5 after R0=0xFFFFFFFE wraps to 3, with carry set
// (unsigned overflow) and signed overflow clear (a negative plus a small
// positive cannot signed-overflow).
func TestADDSCarryWithoutOverflow(t *testing.T) {
	core, _ := newLoadedCore(t, []uint16{
		0x2000, // MOVS R0,#0
		0x3802, // SUBS R0,R0,#2  -> R0 = 0xFFFFFFFE
		0x1D41, // ADDS R1,R0,#5
	})
	step(t, core, 3)

	armtest.Equal(t, regs(core).Reg(arm.R0), uint32(0xFFFFFFFE), "R0 holds 0xFFFFFFFE after the SUBS")
	armtest.Equal(t, regs(core).Reg(arm.R1), uint32(3), "ADDS wraps 0xFFFFFFFE+5 to 3")
	armtest.True(t, regs(core).APSR().C, "unsigned carry out of the wraparound add")
	armtest.True(t, !regs(core).APSR().V, "no signed overflow: operands have differing signs")
	armtest.True(t, !regs(core).APSR().Z, "result 3 is non-zero")
	armtest.True(t, !regs(core).APSR().N, "result 3 is positive")
}

// Scenario 4: an LDR of a word from a misaligned address raises UsageFault
// (UNALIGNED), regardless of CCR.UNALIGN_TRP, since LDR is an
// aligned-access-only instruction.
func TestUnalignedLoadFaultsUsageFault(t *testing.T) {
	core, _ := newLoadedCore(t, []uint16{
		0x2101, // MOVS R1,#1 (an odd, word-misaligned address)
		0x680A, // LDR R2,[R1]
	})
	step(t, core, 1) // MOVS R1,#1

	outcome, ferr := core.Step() // LDR R2,[R1]: misaligned, faults
	armtest.True(t, ferr == nil, "step returns no fatal error")
	armtest.True(t, outcome.ExceptionTaken, "the misaligned LDR takes an exception rather than completing")
	armtest.Equal(t, outcome.Exception, "UsageFault", "a misaligned word access raises UsageFault")

	const cfsrUsageFaultShift = 16
	const ufBitUnaligned = 8
	armtest.True(t, core.SCBState().CFSR&(1<<(cfsrUsageFaultShift+ufBitUnaligned)) != 0, "CFSR.UNALIGNED is recorded")
}

// Scenario 5: PUSH{R4,LR} then POP{R4,PC} round-trips both registers
// through the stack, with the popped LR value landing in PC via BXWritePC.
func TestPushPopWithPC(t *testing.T) {
	core, _ := newLoadedCore(t, []uint16{
		0x2411, // MOVS R4,#0x11
		0x46A6, // MOV LR,R4
		0xB510, // PUSH {R4,LR}
		0x2422, // MOVS R4,#0x22 (clobber R4 so POP proves it restores it)
		0xBD10, // POP {R4,PC}
	})
	step(t, core, 5)

	armtest.Equal(t, regs(core).Reg(arm.R4), uint32(0x11), "POP restores R4 from the stack, not the clobbered value")
	armtest.Equal(t, regs(core).Reg(arm.PC), uint32(0x10), "POP{PC} branches to the popped LR value with bit 0 cleared")
	armtest.True(t, regs(core).EPSR_T(), "the popped address had its thumb bit set")
}

// Scenario 6: "ITET EQ" over three instructions with Z=1 executes the first
// (EQ) and third (EQ) instructions and skips the second (NE) — a regression
// test for the itState.advance() bug where a stale condition bit leaked into
// a later instruction's predicate.
func TestITBlockITETSequence(t *testing.T) {
	core, _ := newLoadedCore(t, []uint16{
		0x2101, // MOVS R1,#1
		0x2202, // MOVS R2,#2
		0x2303, // MOVS R3,#3
		0x2000, // MOVS R0,#0      -- sets Z=1, the condition this IT block tests
		0xBF0A, // IT ITET EQ      -- firstcond=EQ(0b0000), mask=0b1010
		0x4608, // MOVEQ R0,R1     -- instr 1: EQ, executes -> R0=1
		0x4610, // MOVNE R0,R2     -- instr 2: NE, skipped
		0x4618, // MOVEQ R0,R3     -- instr 3: EQ, executes -> R0=3
	})
	step(t, core, 8)

	armtest.Equal(t, regs(core).Reg(arm.R0), uint32(3), "the IT block's third (EQ) instruction runs, leaving R0=3")
	armtest.True(t, regs(core).IT() == 0, "the IT-state is fully exhausted after the block's last instruction")
}

// Scenario 7: "ITT EQ" with Z=0 (the condition false) must skip both
// instructions in the block, not just the first — a regression test for
// stepOnce advancing ITSTATE after the IT instruction itself, which made
// every in-block instruction read the *next* slot's condition instead of
// its own.
func TestITBlockBothInstructionsSkippedWhenConditionFails(t *testing.T) {
	core, _ := newLoadedCore(t, []uint16{
		0x2001, // MOVS R0,#1        -- sets Z=0
		0x2164, // MOVS R1,#0x64     -- clobber value the IT block must not touch
		0xBF04, // IT ITT EQ         -- firstcond=EQ(0b0000), mask=0b0100
		0x2005, // MOVEQ R0,#5       -- instr 1: EQ, Z=0 so skipped
		0x2109, // MOVEQ R1,#9       -- instr 2: EQ, Z=0 so must also be skipped
	})
	step(t, core, 5)

	armtest.Equal(t, regs(core).Reg(arm.R0), uint32(1), "R0 unchanged: the first IT-block instruction's EQ predicate correctly fails")
	armtest.Equal(t, regs(core).Reg(arm.R1), uint32(0x64), "R1 unchanged: the second IT-block instruction must still see EQ, not an already-advanced condition")
}

// Scenario 8: a flag-setting ALU op inside an IT block must not update APSR,
// even though it still writes its destination register — a regression test
// for SetAPSR being called unconditionally regardless of IT-block
// membership.
func TestALUInsideITBlockSuppressesFlags(t *testing.T) {
	core, _ := newLoadedCore(t, []uint16{
		0x2105, // MOVS R1,#5
		0x2205, // MOVS R2,#5
		0x2000, // MOVS R0,#0        -- sets Z=1, last flag write before the IT
		0xBF08, // IT EQ             -- firstcond=EQ(0b0000), mask=0b1000 (one instruction)
		0x4011, // ANDEQ R1,R2       -- result 5&5=5 is nonzero; flags must not reflect that
	})
	step(t, core, 5)

	armtest.Equal(t, regs(core).Reg(arm.R1), uint32(5), "the AND still executes and writes its result")
	armtest.True(t, regs(core).APSR().Z, "AND inside an IT block must not update flags, so Z stays set from the earlier MOVS R0,#0")
}

// Scenario 9: ROR (register) by a shift amount that is a nonzero multiple of
// 32 is architecturally a no-op on the value but still recomputes carry from
// the result's top bit — a regression test for the carry staying at its
// stale carry-in value because shiftWithCarry short-circuits on amount%32==0.
func TestALURotateRightByThirtyTwoCarry(t *testing.T) {
	core, _ := newLoadedCore(t, []uint16{
		0x2001, // MOVS R0,#1
		0x07C0, // LSLS R0,R0,#31  -> R0 = 0x80000000
		0x1C40, // ADDS R0,R0,#1   -> R0 = 0x80000001, carry clear
		0x2120, // MOVS R1,#32
		0x41C8, // RORS R0,R1      -> rotate by 32 is a no-op on the value
	})
	step(t, core, 5)

	armtest.Equal(t, regs(core).Reg(arm.R0), uint32(0x80000001), "ROR by a multiple of 32 leaves the value unchanged")
	armtest.True(t, regs(core).APSR().C, "ROR by a multiple of 32 sets carry from the result's top bit, not the stale carry-in")
}
