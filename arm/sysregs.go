package arm

// This file implements the memory-mapped System Control Space
// (0xE000E000-0xE000EFFF): the byte-addressable register window real
// firmware uses to configure NVIC/SCB/SysTick/MPU via ordinary LDR/STR,
// distinct from the Go-level accessors scb.go/mpu.go expose for the
// emulator's own exception-entry logic. Built as an AttachedRegion-shaped
// peripheral, the same polymorphic-capability-set style other attached
// regions use, generalized from a single byte-oriented device into the
// word-register decode table real SCS hardware implements, with reads/
// writes composed byte-by-byte from the 32-bit register words (Read/Write
// below pick or merge one byte of a word) so the type satisfies
// AttachedRegion without needing its own alignment handling.
const (
	scsBase = 0xE000E000
	scsSize = 0x1000
)

// systemControlSpace adapts the core's scb/nvic/systick/mpu fields to the
// AttachedRegion interface, giving firmware the same memory-mapped view of
// these registers that real Cortex-M silicon exposes.
type systemControlSpace struct {
	arm *ARM
}

func (s *systemControlSpace) Range() (start, end uint32) {
	return scsBase, scsBase + scsSize
}

func (s *systemControlSpace) Read(addr uint32) uint8 {
	word := s.readWord(addr &^ 3)
	shift := (addr & 3) * 8
	return uint8(word >> shift)
}

func (s *systemControlSpace) Write(addr uint32, val uint8) {
	wordAddr := addr &^ 3
	shift := (addr & 3) * 8
	cur := s.readWord(wordAddr)
	cur = (cur &^ (0xff << shift)) | uint32(val)<<shift
	s.writeWord(wordAddr, cur)
}

// readWord dispatches a word-aligned offset within the SCS to the owning
// component's register; offsets with no defined register read as zero.
func (s *systemControlSpace) readWord(addr uint32) uint32 {
	off := addr - scsBase
	scb, nvic, systick, mpu := &s.arm.scb, &s.arm.nvic, &s.arm.systick, s.arm.mpu

	switch {
	case off == 0x004:
		return scb.ICTR
	case off == 0x008:
		return scb.ACTLR
	case off == 0x010:
		return systick.CSR
	case off == 0x014:
		return systick.RVR
	case off == 0x018:
		return systick.CVR
	case off == 0x01c:
		return systick.CALIB

	case off >= 0x100 && off < 0x120:
		return nvic.ISER[(off-0x100)/4]
	case off >= 0x180 && off < 0x1a0:
		return nvic.ICER[(off-0x180)/4]
	case off >= 0x200 && off < 0x220:
		return nvic.ISPR[(off-0x200)/4]
	case off >= 0x280 && off < 0x2a0:
		return nvic.ICPR[(off-0x280)/4]
	case off >= 0x300 && off < 0x320:
		return nvic.IABR[(off-0x300)/4]
	case off >= 0x400 && off < 0x4f0:
		return nvic.IPR[(off-0x400)/4]

	case off == 0xd00:
		return scb.CPUID
	case off == 0xd04:
		return s.readICSR()
	case off == 0xd08:
		return scb.VTOR
	case off == 0xd0c:
		return scb.AIRCR
	case off == 0xd10:
		return scb.SCR
	case off == 0xd14:
		return scb.CCR
	case off == 0xd18:
		return scb.SHPR1
	case off == 0xd1c:
		return scb.SHPR2
	case off == 0xd20:
		return scb.SHPR3
	case off == 0xd24:
		return scb.SHCSR
	case off == 0xd28:
		return scb.CFSR
	case off == 0xd2c:
		return scb.HFSR
	case off == 0xd34:
		return scb.MMFAR
	case off == 0xd38:
		return scb.BFAR
	case off == 0xd3c:
		return scb.AFSR
	case off == 0xd88:
		return scb.CPACR

	case off == 0xd90:
		return mpu.mpuType()
	case off == 0xd94:
		return mpu.ctrl()
	case off == 0xd98:
		return uint32(mpu.rnr)
	case off == 0xd9c, off == 0xda4, off == 0xdac, off == 0xdb4:
		return mpu.rbar[mpu.rnr] | uint32(mpu.rnr)
	case off == 0xda0, off == 0xda8, off == 0xdb0, off == 0xdb8:
		return mpu.rasr[mpu.rnr]
	}
	return 0
}

// writeWord dispatches a word-aligned offset to the owning component,
// applying the few register-specific side effects: NVIC set/clear-pending
// and set/clear-enable registers are write-1-to-set/clear; MPU_RBAR's VALID
// bit re-selects MPU_RNR.
func (s *systemControlSpace) writeWord(addr uint32, val uint32) {
	off := addr - scsBase
	arm := s.arm
	scb, nvic, systick, mpu := &arm.scb, &arm.nvic, &arm.systick, arm.mpu

	switch {
	case off == 0x008:
		scb.ACTLR = val
	case off == 0x010:
		systick.CSR = val & 0x7 // ENABLE/TICKINT/CLKSOURCE; COUNTFLAG is read-only
	case off == 0x014:
		systick.RVR = val & 0x00ffffff
	case off == 0x018:
		systick.CVR = 0 // any write clears the current value and COUNTFLAG
		systick.CSR &^= 1 << 16
	case off == 0x01c:
		// CALIB is fixed/read-only in this profile

	case off >= 0x100 && off < 0x120:
		irqBase := int((off - 0x100) / 4 * 32)
		for i := 0; i < 32; i++ {
			if val&(1<<i) != 0 {
				nvic.setEnabled(irqBase+i, true)
			}
		}
	case off >= 0x180 && off < 0x1a0:
		irqBase := int((off - 0x180) / 4 * 32)
		for i := 0; i < 32; i++ {
			if val&(1<<i) != 0 {
				nvic.setEnabled(irqBase+i, false)
			}
		}
	case off >= 0x200 && off < 0x220:
		irqBase := int((off - 0x200) / 4 * 32)
		for i := 0; i < 32; i++ {
			if val&(1<<i) != 0 {
				nvic.setPending(irqBase+i, true)
			}
		}
	case off >= 0x280 && off < 0x2a0:
		irqBase := int((off - 0x280) / 4 * 32)
		for i := 0; i < 32; i++ {
			if val&(1<<i) != 0 {
				nvic.setPending(irqBase+i, false)
			}
		}
	case off >= 0x300 && off < 0x320:
		// IABR is read-only from software's point of view
	case off >= 0x400 && off < 0x4f0:
		nvic.IPR[(off-0x400)/4] = val

	case off == 0xd04:
		s.writeICSR(val)
	case off == 0xd08:
		scb.VTOR = val &^ 0x7f
	case off == 0xd0c:
		if val>>16 == 0x05fa { // VECTKEY must match or the write is ignored
			scb.AIRCR = (scb.AIRCR &^ 0x0000f9ff) | (val & 0x0000f9ff)
			if val&(1<<2) != 0 {
				arm.Reset()
			}
		}
	case off == 0xd10:
		scb.SCR = val
	case off == 0xd14:
		scb.CCR = val
	case off == 0xd18:
		scb.SHPR1 = val
	case off == 0xd1c:
		scb.SHPR2 = val
	case off == 0xd20:
		scb.SHPR3 = val
	case off == 0xd24:
		scb.SHCSR = val
	case off == 0xd28:
		scb.CFSR &^= val // write-one-to-clear
	case off == 0xd2c:
		scb.HFSR &^= val // write-one-to-clear
	case off == 0xd34:
		scb.MMFAR = val
	case off == 0xd38:
		scb.BFAR = val
	case off == 0xd3c:
		scb.AFSR = val
	case off == 0xd88:
		scb.CPACR = val

	case off == 0xd94:
		mpu.setCtrl(val)
	case off == 0xd98:
		mpu.rnr = uint8(val & (mpuRegionCount - 1))
	case off == 0xd9c, off == 0xda4, off == 0xdac, off == 0xdb4:
		s.writeRBAR(val)
	case off == 0xda0, off == 0xda8, off == 0xdb0, off == 0xdb8:
		mpu.rasr[mpu.rnr] = val

	case off == 0xf00:
		s.writeSTIR(val)
	}
}

// readICSR composes ICSR's read view: VECTACTIVE (the currently running
// exception number, or 0 in Thread mode) plus the three pending-bit mirrors,
// per "B3.2.4 Interrupt Control and State Register".
func (s *systemControlSpace) readICSR() uint32 {
	v := s.arm.scb.ICSR & 0x000ff000 // VECTPENDING, ISRPENDING, ISRPREEMPT bits not separately tracked; keep whatever the host last saw there
	v |= s.arm.regs.IPSR() & 0x1ff
	if s.arm.pendingPendSV {
		v |= 1 << 28
	}
	if s.arm.pendingSysTick {
		v |= 1 << 26
	}
	if s.arm.pendingNMI {
		v |= 1 << 31
	}
	return v
}

// writeICSR applies ICSR's write-only set/clear-pending bits for PendSV,
// SysTick and NMI, per "B3.2.4 Interrupt Control and State Register". These
// three exceptions are numbered below 16 so they fall outside the NVIC's
// per-IRQ ISPR/ICPR arrays; their pending state is tracked directly on the
// core instead.
func (s *systemControlSpace) writeICSR(val uint32) {
	if val&(1<<28) != 0 {
		s.arm.pendingPendSV = true
	}
	if val&(1<<27) != 0 {
		s.arm.pendingPendSV = false
	}
	if val&(1<<26) != 0 {
		s.arm.pendingSysTick = true
	}
	if val&(1<<25) != 0 {
		s.arm.pendingSysTick = false
	}
	if val&(1<<31) != 0 {
		s.arm.pendingNMI = true
	}
}

// writeRBAR implements MPU_RBAR's VALID-bit side effect: when set, the
// REGION field re-selects MPU_RNR before the base address is stored, per
// "B3.5.4 MPU Region Base Address Register".
func (s *systemControlSpace) writeRBAR(val uint32) {
	mpu := s.arm.mpu
	if val&(1<<4) != 0 {
		mpu.rnr = uint8(val & (mpuRegionCount - 1))
	}
	mpu.rbar[mpu.rnr] = val &^ 0x1f
}

// writeSTIR implements the Software Trigger Interrupt Register: writing an
// interrupt number sets its pending bit exactly as an external signal would.
func (s *systemControlSpace) writeSTIR(val uint32) {
	s.arm.nvic.setPending(int(val&0x1ff), true)
}
