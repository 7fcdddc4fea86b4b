package arm

import (
	"sort"

	"github.com/cortexm3/armv7m/arm/config"
)

// This file implements the unified 4GiB address space: four owned byte
// buffers (Flash, System memory, Option bytes, SRAM) with configurable
// bounds, bit-band aliasing over SRAM and Peripheral, and an ordered list of
// attachable regions for everything else. Built around plain
// region-boundary fields, generalized to the ARMv7-M memory map's decision
// table, with reads/writes routed through a byte-buffer convention similar
// to other memory-mapped devices in this package.

// Fixed region boundaries of the ARMv7-M memory map.
const (
	codeRegionStart    = 0x00000000
	codeRegionEnd      = 0x20000000
	sramRegionStart    = 0x20000000
	sramRegionEnd      = 0x40000000
	sramBitBandStart   = 0x22000000
	sramBitBandEnd     = 0x24000000
	periphRegionStart  = 0x40000000
	periphRegionEnd    = 0x60000000
	periphBitBandStart = 0x42000000
	periphBitBandEnd   = 0x44000000
	extRAMStart        = 0x60000000
	extRAMEnd          = 0xA0000000
	extDeviceStart     = 0xA0000000
	extDeviceEnd       = 0xE0000000
	ppbStart           = 0xE0000000
	ppbEnd             = 0xE0100000
	systemRegionStart  = 0xE0100000
	systemRegionEnd    = 0x00000000 // wraps: the System region runs to 0xFFFFFFFF
)

// AttachedRegion is the capability set a non-core memory-mapped peripheral
// (or other externally-supplied device) must implement to be serviced by the
// address space's ordered-range lookup: attached memory regions are
// polymorphic over the capability set.
type AttachedRegion interface {
	// Range returns the half-open [start, end) byte range this region
	// occupies in the address space.
	Range() (start, end uint32)
	// Read returns the byte at addr, which is guaranteed to lie in Range().
	Read(addr uint32) uint8
	// Write stores val at addr, which is guaranteed to lie in Range().
	Write(addr uint32, val uint8)
}

// AddressSpace is the core's unified memory map.
type AddressSpace struct {
	cfg config.Map

	flash   []byte
	system  []byte
	option  []byte
	sram    []byte

	// attached holds AttachedRegion instances ordered by start address, for
	// ordered-range bisection lookup (an arena-plus-index in place of a
	// pointer graph).
	attached []AttachedRegion

	endianBig func() bool
}

// NewAddressSpace allocates the four owned buffers per cfg's configured
// bounds. The buffers are zero-initialized; Flash is populated later by
// LoadImage.
func NewAddressSpace(cfg config.Map) *AddressSpace {
	return &AddressSpace{
		cfg:    cfg,
		flash:  make([]byte, cfg.FlashEnd-cfg.FlashStart),
		system: make([]byte, cfg.SystemMemEnd-cfg.SystemMemStart),
		option: make([]byte, cfg.OptionBytesEnd-cfg.OptionBytesStart),
		sram:   make([]byte, cfg.SRAMEnd-cfg.SRAMStart),
	}
}

// AttachRegion registers a memory-mapped region outside the four owned
// buffers. Regions must not overlap one another or any owned buffer; the
// caller is responsible for keeping the overall map coherent.
func (a *AddressSpace) AttachRegion(r AttachedRegion) {
	a.attached = append(a.attached, r)
	sort.Slice(a.attached, func(i, j int) bool {
		si, _ := a.attached[i].Range()
		sj, _ := a.attached[j].Range()
		return si < sj
	})
}

// findAttached performs ordered-range bisection over the attached regions
// and returns the one containing addr, or nil.
func (a *AddressSpace) findAttached(addr uint32) AttachedRegion {
	lo, hi := 0, len(a.attached)
	for lo < hi {
		mid := (lo + hi) / 2
		start, end := a.attached[mid].Range()
		switch {
		case addr < start:
			hi = mid
		case addr >= end:
			lo = mid + 1
		default:
			return a.attached[mid]
		}
	}
	return nil
}

// LoadImage copies image into the Flash buffer starting at flash_start. It
// returns an error (a host-level error, not an architectural fault) if
// image is larger than the configured Flash region.
func (a *AddressSpace) LoadImage(image []byte) error {
	if len(image) > len(a.flash) {
		return errImageTooLarge
	}
	copy(a.flash, image)
	return nil
}

// codeAliasBacking returns the owned buffer that the 0x00000000-based Code
// alias reflects, selected by boot_mode. The alias window starts at address
// 0 and mirrors the buffer's own content starting at its own offset 0 (the
// same bytes real silicon exposes both at its physical location and,
// remapped, at the bottom of the address space), so callers index it
// directly by addr, not by addr relative to the buffer's real-world start
// address.
func (a *AddressSpace) codeAliasBacking() []byte {
	switch a.cfg.BootMode {
	case config.BootSystem:
		return a.system
	case config.BootSRAM:
		return a.sram
	default:
		return a.flash
	}
}

// Read returns the byte at addr per the memory map's decision table.
func (a *AddressSpace) Read(addr uint32) uint8 {
	switch {
	case inRange(addr, a.cfg.FlashStart, a.cfg.FlashEnd):
		return a.flash[addr-a.cfg.FlashStart]
	case inRange(addr, a.cfg.SystemMemStart, a.cfg.SystemMemEnd):
		return a.system[addr-a.cfg.SystemMemStart]
	case inRange(addr, a.cfg.OptionBytesStart, a.cfg.OptionBytesEnd):
		return a.option[addr-a.cfg.OptionBytesStart]
	case inRange(addr, a.cfg.SRAMStart, a.cfg.SRAMEnd):
		return a.sram[addr-a.cfg.SRAMStart]
	case inRange(addr, sramBitBandStart, sramBitBandEnd):
		byteAddr, bit := decodeBitBand(addr, sramBitBandStart, a.cfg.SRAMStart)
		if byteAddr-a.cfg.SRAMStart >= uint32(len(a.sram)) {
			return 0
		}
		return (a.sram[byteAddr-a.cfg.SRAMStart] >> bit) & 1
	case inRange(addr, periphBitBandStart, periphBitBandEnd):
		byteAddr, bit := decodeBitBand(addr, periphBitBandStart, periphRegionStart)
		if r := a.findAttached(byteAddr); r != nil {
			return (r.Read(byteAddr) >> bit) & 1
		}
		return 0
	case inRange(addr, codeRegionStart, codeRegionEnd) && addr < a.cfg.FlashStart:
		buf := a.codeAliasBacking()
		if addr >= uint32(len(buf)) {
			return 0
		}
		return buf[addr]
	default:
		if r := a.findAttached(addr); r != nil {
			return r.Read(addr)
		}
		return 0
	}
}

// Write stores val at addr per the memory map's decision table. Writes to
// addresses not covered by any region are silently dropped.
func (a *AddressSpace) Write(addr uint32, val uint8) {
	switch {
	case inRange(addr, a.cfg.FlashStart, a.cfg.FlashEnd):
		a.flash[addr-a.cfg.FlashStart] = val
	case inRange(addr, a.cfg.SystemMemStart, a.cfg.SystemMemEnd):
		a.system[addr-a.cfg.SystemMemStart] = val
	case inRange(addr, a.cfg.OptionBytesStart, a.cfg.OptionBytesEnd):
		a.option[addr-a.cfg.OptionBytesStart] = val
	case inRange(addr, a.cfg.SRAMStart, a.cfg.SRAMEnd):
		a.sram[addr-a.cfg.SRAMStart] = val
	case inRange(addr, sramBitBandStart, sramBitBandEnd):
		byteAddr, bit := decodeBitBand(addr, sramBitBandStart, a.cfg.SRAMStart)
		if byteAddr-a.cfg.SRAMStart >= uint32(len(a.sram)) {
			return
		}
		idx := byteAddr - a.cfg.SRAMStart
		if val&1 != 0 {
			a.sram[idx] |= 1 << bit
		} else {
			a.sram[idx] &^= 1 << bit
		}
	case inRange(addr, periphBitBandStart, periphBitBandEnd):
		byteAddr, bit := decodeBitBand(addr, periphBitBandStart, periphRegionStart)
		if r := a.findAttached(byteAddr); r != nil {
			cur := r.Read(byteAddr)
			if val&1 != 0 {
				cur |= 1 << bit
			} else {
				cur &^= 1 << bit
			}
			r.Write(byteAddr, cur)
		}
	case inRange(addr, codeRegionStart, codeRegionEnd) && addr < a.cfg.FlashStart:
		// Writes below flash_start targeting the Code alias have no
		// architectural effect in this profile, regardless of boot_mode: the
		// alias is a read-only mirror of whichever buffer boot_mode selects.
	default:
		if r := a.findAttached(addr); r != nil {
			r.Write(addr, val)
		}
	}
}

// inRange reports whether addr lies in the half-open range [start, end). An
// end of 0 with a non-zero start is treated as wrapping to 0x100000000,
// i.e. the region runs to the top of the address space (used by the System
// region, which ends at 0xFFFFFFFF).
func inRange(addr, start, end uint32) bool {
	if end == 0 && start != 0 {
		return addr >= start
	}
	return addr >= start && addr < end
}

// decodeBitBand implements the bit-band alias decode: given an address
// within a bit-band alias window and that window's (alias base,
// referenced-region base), returns the physical byte address and bit number
// it refers to.
func decodeBitBand(aliasAddr, aliasStart, regionStart uint32) (physAddr uint32, bit uint) {
	byteOffset := (aliasAddr - aliasStart) >> 5
	bit = uint((aliasAddr - aliasStart) >> 2 & 7)
	return regionStart + byteOffset, bit
}
