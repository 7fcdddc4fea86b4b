package arm

// This file implements the MPU / access-checker: eight region descriptors
// (MPU_RBAR/MPU_RASR), the MPU_TYPE/MPU_CTRL/MPU_RNR control registers,
// validate_address (hit/miss + attribute resolution) and check_permissions
// (the AP-based fault table). Built out from a single-purpose "is this
// access allowed" check into the full 8-region MPU, following the same
// alignment/fault-raising structure as the rest of the memory-access layer.

const mpuRegionCount = 8

// MPU is the Memory Protection Unit wrapping every instruction and data
// access.
type MPU struct {
	ctrlEnable    bool
	ctrlHFNMIENA  bool
	ctrlPRIVDEFENA bool

	rnr uint8

	rbar [mpuRegionCount]uint32
	rasr [mpuRegionCount]uint32
}

func newMPU() *MPU { return &MPU{} }

func (m *MPU) reset() { *m = MPU{} }

// MPU_TYPE is fixed for this profile: DREGION = 8.
func (m *MPU) mpuType() uint32 { return mpuTypeReset }

func (m *MPU) ctrl() uint32 {
	var v uint32
	if m.ctrlEnable {
		v |= 1 << 0
	}
	if m.ctrlHFNMIENA {
		v |= 1 << 1
	}
	if m.ctrlPRIVDEFENA {
		v |= 1 << 2
	}
	return v
}

func (m *MPU) setCtrl(v uint32) {
	m.ctrlEnable = v&(1<<0) != 0
	m.ctrlHFNMIENA = v&(1<<1) != 0
	m.ctrlPRIVDEFENA = v&(1<<2) != 0
}

// RASR field layout.
const (
	rasrEnableBit = 0
	rasrSizeShift = 1 // 5 bits
	rasrSRDShift  = 8 // 8 bits
	rasrATTRSShift = 16
	rasrXNBit     = 28
	rasrAPShift   = 24 // 3 bits
	rasrTEXShift  = 19 // 3 bits
	rasrSBit      = 18
	rasrCBit      = 17
	rasrBBit      = 16
)

type regionAttrs struct {
	TEX      uint8
	C, B, S  bool
	AP       uint8
	XN       bool
}

// accessKind enumerates the access disciplines the MPU distinguishes.
type accessKind int

const (
	accessNormal accessKind = iota
	accessUnprivileged
	accessVecTable
	accessInstructionFetch
)

// addressDescriptor is the result of validate_address: whether the access
// hits, and under what attributes.
type addressDescriptor struct {
	attrs regionAttrs
}

func defaultAttrsFor(addr uint32) regionAttrs {
	// Default memory attributes/permissions are taken from the top three
	// address bits, against the fixed ARMv7-M memory map.
	top3 := addr >> 29
	switch top3 {
	case 0b000: // Code (0x00000000-0x1FFFFFFF)
		return regionAttrs{AP: 0b011, XN: false}
	case 0b001: // SRAM (0x20000000-0x3FFFFFFF)
		return regionAttrs{AP: 0b011, XN: false}
	case 0b010: // Peripheral (0x40000000-0x5FFFFFFF)
		return regionAttrs{AP: 0b011, XN: true}
	case 0b011, 0b100: // External RAM (0x60000000-0x9FFFFFFF)
		return regionAttrs{AP: 0b011, XN: false}
	case 0b101, 0b110: // External device (0xA0000000-0xDFFFFFFF)
		return regionAttrs{AP: 0b011, XN: true}
	case 0b111: // PPB and System (0xE0000000-0xFFFFFFFF)
		return regionAttrs{AP: 0b011, XN: true}
	}
	return regionAttrs{AP: 0b011, XN: true}
}

// validateAddress computes a hit/miss descriptor, implementing the
// validate_address algorithm. On miss or permission failure it returns a
// raisedFault describing the MemManage fault to take, having already
// recorded CFSR/MMFAR as appropriate.
func (arm *ARM) validateAddress(addr uint32, kind accessKind, isWrite bool) (addressDescriptor, error) {
	mpu := arm.mpu

	if kind == accessVecTable || addr&0xFFF00000 == 0xE0000000 {
		return addressDescriptor{attrs: defaultAttrsFor(addr)}, nil
	}

	if !mpu.ctrlEnable {
		// HFNMIENA must be 0 when MPU is disabled; if violated the
		// architecture calls this UNPREDICTABLE, but for a functional
		// emulator we simply ignore HFNMIENA in this state rather than
		// aborting.
		return addressDescriptor{attrs: defaultAttrsFor(addr)}, nil
	}

	if arm.executionPriority() < 0 && !mpu.ctrlHFNMIENA {
		return addressDescriptor{attrs: defaultAttrsFor(addr)}, nil
	}

	priv := kind != accessUnprivileged && arm.regs.privileged()

	best := -1
	for i := 0; i < mpuRegionCount; i++ {
		if mpu.rasr[i]&(1<<rasrEnableBit) == 0 {
			continue
		}
		size := uint((mpu.rasr[i] >> rasrSizeShift) & 0x1f)
		regionSizeBits := size + 1
		var match bool
		if regionSizeBits >= 32 {
			match = true
		} else {
			baseMask := uint32(0xFFFFFFFF) << regionSizeBits
			match = (addr & baseMask) == (mpu.rbar[i] & baseMask)
		}
		if !match {
			continue
		}
		if regionSizeBits >= 3 {
			subShift := regionSizeBits - 3
			subregion := (addr >> subShift) & 0x7
			srd := uint8((mpu.rasr[i] >> rasrSRDShift) & 0xff)
			if srd&(1<<subregion) != 0 {
				continue
			}
		}
		best = i
	}

	var attrs regionAttrs
	var hit bool
	if best >= 0 {
		r := mpu.rasr[best]
		attrs = regionAttrs{
			TEX: uint8((r >> rasrTEXShift) & 0x7),
			S:   r&(1<<rasrSBit) != 0,
			C:   r&(1<<rasrCBit) != 0,
			B:   r&(1<<rasrBBit) != 0,
			AP:  uint8((r >> rasrAPShift) & 0x7),
			XN:  r&(1<<rasrXNBit) != 0,
		}
		hit = true
	} else if mpu.ctrlPRIVDEFENA && priv {
		attrs = defaultAttrsFor(addr)
		hit = true
	}

	// System-region addresses are forced eXecute-Never regardless of the
	// matched region.
	if addr>>29 == 0b111 {
		attrs.XN = true
	}

	if !hit {
		arm.scb.setMemManageFault(kind == accessInstructionFetch, addr)
		return addressDescriptor{}, &raisedFault{kind: faultMemManage}
	}

	if err := checkPermissions(attrs, kind, priv, isWrite); err != nil {
		arm.scb.setMemManageFault(kind == accessInstructionFetch, addr)
		return addressDescriptor{}, err
	}

	return addressDescriptor{attrs: attrs}, nil
}

// RegionInfo is a read-only snapshot of one MPU region, returned by
// RegionFor for host introspection (the test suite uses this to report
// which region, if any, covers a given address).
type RegionInfo struct {
	Index   int
	Enabled bool
	Base    uint32
	Size    uint   // region size in bytes (1 << (size bits + 1))
	Attrs   regionAttrs
}

// RegionFor reports the highest-priority enabled MPU region covering addr,
// mirroring validateAddress's region-match loop but without raising faults
// or consuming a permission check; used by host introspection only. ok is
// false if the MPU is disabled or no region matches.
func (arm *ARM) RegionFor(addr uint32) (info RegionInfo, ok bool) {
	mpu := arm.mpu
	if !mpu.ctrlEnable {
		return RegionInfo{}, false
	}

	best := -1
	for i := 0; i < mpuRegionCount; i++ {
		if mpu.rasr[i]&(1<<rasrEnableBit) == 0 {
			continue
		}
		size := uint((mpu.rasr[i] >> rasrSizeShift) & 0x1f)
		regionSizeBits := size + 1
		var match bool
		if regionSizeBits >= 32 {
			match = true
		} else {
			baseMask := uint32(0xFFFFFFFF) << regionSizeBits
			match = (addr & baseMask) == (mpu.rbar[i] & baseMask)
		}
		if !match {
			continue
		}
		if regionSizeBits >= 3 {
			subShift := regionSizeBits - 3
			subregion := (addr >> subShift) & 0x7
			srd := uint8((mpu.rasr[i] >> rasrSRDShift) & 0xff)
			if srd&(1<<subregion) != 0 {
				continue
			}
		}
		best = i
	}

	if best < 0 {
		return RegionInfo{}, false
	}
	r := mpu.rasr[best]
	sizeBits := uint((r>>rasrSizeShift)&0x1f) + 1
	return RegionInfo{
		Index:   best,
		Enabled: true,
		Base:    mpu.rbar[best] &^ ((1 << sizeBits) - 1),
		Size:    1 << sizeBits,
		Attrs: regionAttrs{
			TEX: uint8((r >> rasrTEXShift) & 0x7),
			S:   r&(1<<rasrSBit) != 0,
			C:   r&(1<<rasrCBit) != 0,
			B:   r&(1<<rasrBBit) != 0,
			AP:  uint8((r >> rasrAPShift) & 0x7),
			XN:  r&(1<<rasrXNBit) != 0,
		},
	}, true
}

// checkPermissions implements the AP permission table, plus the XN check
// for instruction fetches.
func checkPermissions(attrs regionAttrs, kind accessKind, priv bool, isWrite bool) error {
	if kind == accessInstructionFetch && attrs.XN {
		return &raisedFault{kind: faultMemManage}
	}

	var fault bool
	switch attrs.AP {
	case 0b000:
		fault = true
	case 0b001:
		fault = !priv
	case 0b010:
		fault = !priv && isWrite
	case 0b011:
		fault = false
	case 0b100:
		// UNPREDICTABLE; treat conservatively as a fault rather than
		// silently granting access.
		fault = true
	case 0b101:
		fault = !priv || isWrite
	case 0b110, 0b111:
		fault = isWrite
	}

	if fault {
		return &raisedFault{kind: faultMemManage}
	}
	return nil
}
