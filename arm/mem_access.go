package arm

import "encoding/binary"

// This file implements the MPU-mediated typed memory access operations:
// AlignedRead/AlignedWrite, UnalignedRead/UnalignedWrite for u8/u16/u32,
// alignment checking, and the AIRCR.ENDIANNESS byte swap. Built in the style
// of a read8bit/read16bit/read32bit/write* accessor family, generalized from
// a single fixed-endianness fast path into the full aligned-vs-unaligned /
// endianness-aware behaviour the architecture requires, and routed through
// validateAddress (mpu.go) rather than a permissive direct-mapped model.

// readBytes reads n raw bytes from the address space with no MPU check; used
// internally once validateAddress has already approved the whole access.
func (arm *ARM) readBytes(addr uint32, n int) []byte {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = arm.mem.Read(addr + uint32(i))
	}
	return buf
}

func (arm *ARM) writeBytes(addr uint32, buf []byte) {
	for i, b := range buf {
		arm.mem.Write(addr+uint32(i), b)
	}
}

func swapBytes(buf []byte) {
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}

// AlignedRead8 reads a single byte. u8 accesses are always aligned.
func (arm *ARM) AlignedRead8(addr uint32, kind accessKind) (uint8, error) {
	if _, err := arm.validateAddress(addr, kind, false); err != nil {
		return 0, err
	}
	return arm.mem.Read(addr), nil
}

// AlignedWrite8 writes a single byte.
func (arm *ARM) AlignedWrite8(addr uint32, val uint8, kind accessKind) error {
	if _, err := arm.validateAddress(addr, kind, true); err != nil {
		return err
	}
	arm.mem.Write(addr, val)
	return nil
}

// AlignedRead16 reads a halfword; addr must have bit 0 clear or this raises
// UsageFault.UNALIGNED.
func (arm *ARM) AlignedRead16(addr uint32, kind accessKind) (uint16, error) {
	if addr&0x1 != 0 {
		return 0, arm.raiseUnaligned()
	}
	if _, err := arm.validateAddress(addr, kind, false); err != nil {
		return 0, err
	}
	buf := arm.readBytes(addr, 2)
	if arm.scb.endianBig() {
		swapBytes(buf)
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// AlignedWrite16 writes a halfword; addr must have bit 0 clear.
func (arm *ARM) AlignedWrite16(addr uint32, val uint16, kind accessKind) error {
	if addr&0x1 != 0 {
		return arm.raiseUnaligned()
	}
	if _, err := arm.validateAddress(addr, kind, true); err != nil {
		return err
	}
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, val)
	if arm.scb.endianBig() {
		swapBytes(buf)
	}
	arm.writeBytes(addr, buf)
	return nil
}

// AlignedRead32 reads a word; addr must have bits[1:0] clear.
func (arm *ARM) AlignedRead32(addr uint32, kind accessKind) (uint32, error) {
	if addr&0x3 != 0 {
		return 0, arm.raiseUnaligned()
	}
	if _, err := arm.validateAddress(addr, kind, false); err != nil {
		return 0, err
	}
	buf := arm.readBytes(addr, 4)
	if arm.scb.endianBig() {
		swapBytes(buf)
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// AlignedWrite32 writes a word; addr must have bits[1:0] clear.
func (arm *ARM) AlignedWrite32(addr uint32, val uint32, kind accessKind) error {
	if addr&0x3 != 0 {
		return arm.raiseUnaligned()
	}
	if _, err := arm.validateAddress(addr, kind, true); err != nil {
		return err
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, val)
	if arm.scb.endianBig() {
		swapBytes(buf)
	}
	arm.writeBytes(addr, buf)
	return nil
}

// raiseUnaligned records CFSR.UsageFault.UNALIGNED and returns the fault to
// raise.
func (arm *ARM) raiseUnaligned() error {
	arm.scb.setUsageFault(ufUnaligned)
	return &raisedFault{kind: faultUsageFault}
}

// unalignedRead implements the "Unaligned... checks CCR.UNALIGN_TRP"
// behaviour for a width-n access at addr: if aligned, defers to the aligned
// path; if misaligned, either faults (UNALIGN_TRP set) or splits into byte
// accesses in the configured endianness.
func (arm *ARM) unalignedRead(addr uint32, n int, kind accessKind) (uint32, error) {
	if addr&uint32(n-1) == 0 {
		switch n {
		case 1:
			v, err := arm.AlignedRead8(addr, kind)
			return uint32(v), err
		case 2:
			v, err := arm.AlignedRead16(addr, kind)
			return uint32(v), err
		case 4:
			return arm.AlignedRead32(addr, kind)
		}
	}
	if arm.scb.unalignTrp() {
		return 0, arm.raiseUnaligned()
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := arm.AlignedRead8(addr+uint32(i), kind)
		if err != nil {
			return 0, err
		}
		buf[i] = v
	}
	if arm.scb.endianBig() {
		swapBytes(buf)
	}
	return leUint(buf), nil
}

// leUint decodes a 1-, 2- or 4-byte little-endian buffer, for the unaligned
// byte-at-a-time path where the access width doesn't fit binary.LittleEndian's
// fixed-size Uint16/Uint32 helpers directly.
func leUint(buf []byte) uint32 {
	var v uint32
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint32(buf[i])
	}
	return v
}

// leBytes is leUint's inverse: splits val into n little-endian bytes.
func leBytes(val uint32, n int) []byte {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = byte(val >> (8 * i))
	}
	return buf
}

func (arm *ARM) unalignedWrite(addr uint32, val uint32, n int, kind accessKind) error {
	if addr&uint32(n-1) == 0 {
		switch n {
		case 1:
			return arm.AlignedWrite8(addr, uint8(val), kind)
		case 2:
			return arm.AlignedWrite16(addr, uint16(val), kind)
		case 4:
			return arm.AlignedWrite32(addr, val, kind)
		}
	}
	if arm.scb.unalignTrp() {
		return arm.raiseUnaligned()
	}
	buf := leBytes(val, n)
	if arm.scb.endianBig() {
		swapBytes(buf)
	}
	for i := 0; i < n; i++ {
		if err := arm.AlignedWrite8(addr+uint32(i), buf[i], kind); err != nil {
			return err
		}
	}
	return nil
}
