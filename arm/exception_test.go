package arm

import (
	"testing"

	"github.com/cortexm3/armv7m/arm/config"
	"github.com/cortexm3/armv7m/internal/armtest"
)

func TestGroupPriority(t *testing.T) {
	armtest.Equal(t, groupPriority(-1, 0), -1, "negative (fixed) priorities are never reduced by PRIGROUP")
	armtest.Equal(t, groupPriority(0x80, 0), 0x80, "PRIGROUP=0 keeps the top 7 bits as the group, bit 0 is subpriority")
	armtest.Equal(t, groupPriority(0xff, 7), 0, "PRIGROUP=7 reduces every priority to the single group 0")
	armtest.Equal(t, groupPriority(0xc0, 3), 0xc0, "PRIGROUP=3 keeps the top 4 bits as the group")
	armtest.Equal(t, groupPriority(0xcf, 3), 0xc0, "PRIGROUP=3 masks off the low 4 subpriority bits")
}

func TestExecutionPriorityDefaultsTo256(t *testing.T) {
	core := newTestARM()
	armtest.Equal(t, core.executionPriority(), 256, "no active exception, no masks: thread priority is 256 (lowest)")
}

func TestExecutionPriorityPRIMASKAndFAULTMASK(t *testing.T) {
	core := newTestARM()
	core.regs.SetPRIMASK(true)
	armtest.Equal(t, core.executionPriority(), 0, "PRIMASK raises the floor to priority 0")

	core.regs.SetFAULTMASK(true)
	armtest.Equal(t, core.executionPriority(), -1, "FAULTMASK raises the floor further, to -1")
}

func TestExecutionPriorityActiveException(t *testing.T) {
	core := newTestARM()
	core.scb.SHPR1 = 0x20 // MemManage priority = 0x20
	core.active.add(excMemManage)
	armtest.Equal(t, core.executionPriority(), 0x20, "an active exception's configured priority sets the floor")
}

func TestIsExcReturn(t *testing.T) {
	armtest.True(t, isExcReturn(0xFFFFFFF1), "Handler-mode EXC_RETURN pattern")
	armtest.True(t, isExcReturn(0xFFFFFFF9), "Thread+Main EXC_RETURN pattern")
	armtest.True(t, isExcReturn(0xFFFFFFFD), "Thread+Process EXC_RETURN pattern")
	armtest.True(t, !isExcReturn(0x08000201), "an ordinary code address is not an EXC_RETURN pattern")
}

func TestPushStackAndExcReturnRoundTrip(t *testing.T) {
	core := newTestARM()
	core.regs.reset()
	core.regs.SetSPMain(0x20001000)
	core.regs.SetReg(R0, 0x11111111)
	core.regs.SetReg(R1, 0x22222222)
	core.regs.SetReg(R12, 0xcccccccc)
	core.regs.SetReg(LR, 0x08000041)
	core.regs.SetMode(Thread)

	returnAddr := uint32(0x08000100)
	armtest.NoError(t, core.pushStack(faultSVCall, returnAddr), "push_stack")

	sp := core.regs.SPMain()
	armtest.Equal(t, sp, uint32(0x20001000-0x20), "push_stack decrements SP_main by the 8-word frame size")
	armtest.Equal(t, core.regs.Reg(LR), core.excReturnPattern(), "push_stack writes the EXC_RETURN sentinel into LR")

	// Simulate handler-mode entry, then exercise excReturn to pop the frame.
	core.regs.SetMode(Handler)
	core.regs.SetIPSR(excSVCall)
	core.active.add(excSVCall)

	pattern := uint32(0xFFFFFFF9) // Thread+Main, matching the frame pushed above.
	armtest.NoError(t, core.excReturn(pattern), "exc_return")

	armtest.Equal(t, core.regs.Reg(R0), uint32(0x11111111), "excReturn restores R0 from the frame")
	armtest.Equal(t, core.regs.Reg(R1), uint32(0x22222222), "excReturn restores R1 from the frame")
	armtest.Equal(t, core.regs.Reg(R12), uint32(0xcccccccc), "excReturn restores R12 from the frame")
	armtest.Equal(t, core.regs.Reg(PC), returnAddr&^1, "excReturn restores PC to the recorded return address")
	armtest.Equal(t, core.regs.Mode(), Thread, "0xFFFFFFF9 returns to Thread mode")
	armtest.Equal(t, core.regs.SPMain(), uint32(0x20001000), "excReturn restores SP_main to its pre-entry value")
	armtest.True(t, !core.active.has(excSVCall), "excReturn deactivates the returning exception")
}

func TestPushStackAlignmentPadding(t *testing.T) {
	core := newTestARM()
	core.regs.reset()
	core.scb.CCR |= 1 << 9 // STKALIGN
	core.regs.SetSPMain(0x20001004) // SP not 8-byte aligned, bit 2 set.

	armtest.NoError(t, core.pushStack(faultSVCall, 0x08000100), "push_stack with an unaligned incoming SP")
	armtest.Equal(t, core.regs.SPMain()&0x7, uint32(0), "push_stack leaves SP 8-byte aligned when STKALIGN is set")
}

func TestVectorTableEntryHonorsVTOR(t *testing.T) {
	core := newTestARM()
	core.scb.VTOR = 0x20000000
	core.mem.Write(0x20000000+4*4, 0x11)
	core.mem.Write(0x20000000+4*4+1, 0x22)
	core.mem.Write(0x20000000+4*4+2, 0x33)
	core.mem.Write(0x20000000+4*4+3, 0x44)

	v, err := core.vectorTableEntry(4)
	armtest.NoError(t, err, "vector table read")
	armtest.Equal(t, v, uint32(0x44332211), "vector table entries are little-endian words relative to VTOR")
}

func TestResetReadsInitialSPAndPCFromVectorTable(t *testing.T) {
	cfg := config.Default()
	core := NewARM(cfg)

	image := make([]byte, 16)
	image[0], image[1], image[2], image[3] = 0x00, 0x04, 0x00, 0x20 // SP_main = 0x20000400
	image[4], image[5], image[6], image[7] = 0x09, 0x00, 0x00, 0x08 // PC = 0x08000009 (thumb bit set)

	armtest.NoError(t, core.Load(image), "load")
	regs := core.Registers()
	armtest.Equal(t, regs.SPMain(), uint32(0x20000400), "reset reads SP_main from vector table entry 0")
	armtest.Equal(t, regs.Reg(PC), uint32(0x08000008), "reset reads PC from vector table entry 1, with bit 0 cleared")
	armtest.True(t, regs.EPSR_T(), "reset sets EPSR.T from the initial PC's bit 0")
}
