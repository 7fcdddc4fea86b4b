package arm

import (
	"testing"

	"github.com/cortexm3/armv7m/arm/config"
	"github.com/cortexm3/armv7m/internal/armtest"
)

// TestCheckPermissionsTable exercises the full AP permission table of spec
// §4.3 directly, independent of region matching.
func TestCheckPermissionsTable(t *testing.T) {
	cases := []struct {
		name    string
		ap      uint8
		priv    bool
		write   bool
		wantErr bool
	}{
		{"AP 000 no access, privileged read", 0b000, true, false, true},
		{"AP 000 no access, unprivileged write", 0b000, false, true, true},
		{"AP 001 privileged RW, privileged write", 0b001, true, true, false},
		{"AP 001 privileged RW, unprivileged read", 0b001, false, false, true},
		{"AP 010 priv RW / unpriv RO, unprivileged read", 0b010, false, false, false},
		{"AP 010 priv RW / unpriv RO, unprivileged write", 0b010, false, true, true},
		{"AP 010 priv RW / unpriv RO, privileged write", 0b010, true, true, false},
		{"AP 011 full access, unprivileged write", 0b011, false, true, false},
		{"AP 100 unpredictable treated as fault", 0b100, true, false, true},
		{"AP 101 priv RO, privileged read", 0b101, true, false, false},
		{"AP 101 priv RO, privileged write", 0b101, true, true, true},
		{"AP 101 priv RO, unprivileged read", 0b101, false, false, true},
		{"AP 110 RO both, privileged read", 0b110, true, false, false},
		{"AP 110 RO both, unprivileged write", 0b110, false, true, true},
		{"AP 111 RO both, unprivileged read", 0b111, false, false, false},
	}
	for _, tc := range cases {
		err := checkPermissions(regionAttrs{AP: tc.ap}, accessNormal, tc.priv, tc.write)
		if tc.wantErr {
			armtest.True(t, err != nil, tc.name)
		} else {
			armtest.NoError(t, err, tc.name)
		}
	}
}

func TestCheckPermissionsXNBlocksFetch(t *testing.T) {
	err := checkPermissions(regionAttrs{AP: 0b011, XN: true}, accessInstructionFetch, true, false)
	armtest.True(t, err != nil, "XN region fetch is always a fault regardless of AP")

	err = checkPermissions(regionAttrs{AP: 0b011, XN: false}, accessInstructionFetch, true, false)
	armtest.NoError(t, err, "non-XN region permits instruction fetch")
}

func newTestARM() *ARM {
	return NewARM(config.Default())
}

func TestValidateAddressMPUDisabledDefaultsToBackground(t *testing.T) {
	core := newTestARM()
	desc, err := core.validateAddress(0x20000000, accessNormal, false)
	armtest.NoError(t, err, "MPU disabled: every address hits the default background map")
	armtest.Equal(t, desc.attrs.AP, uint8(0b011), "default background attrs grant full access")
}

func TestValidateAddressVecTableAndPPBBypassMPU(t *testing.T) {
	core := newTestARM()
	core.mpu.ctrlEnable = true // enabled, but with no regions and PRIVDEFENA=0: everything else would miss.

	_, err := core.validateAddress(0x00000004, accessVecTable, false)
	armtest.NoError(t, err, "vector table fetches always bypass the MPU")

	_, err = core.validateAddress(0xE000E010, accessNormal, false)
	armtest.NoError(t, err, "the PPB (0xE0000000-0xE00FFFFF) always bypasses the MPU")
}

func TestValidateAddressMissWithoutBackgroundRegion(t *testing.T) {
	core := newTestARM()
	core.mpu.ctrlEnable = true
	core.mpu.ctrlPRIVDEFENA = false

	_, err := core.validateAddress(0x20000000, accessNormal, false)
	armtest.True(t, err != nil, "enabled MPU, no matching region, PRIVDEFENA clear: misses and faults")
	armtest.True(t, core.scb.CFSR&(1<<1) != 0, "MemManage DACCVIOL bit is set on a data-access miss")
}

func TestValidateAddressRegionHit(t *testing.T) {
	core := newTestARM()
	core.mpu.ctrlEnable = true
	core.mpu.rbar[0] = 0x20000000
	// size field = 9 -> region size bits = 10 -> 1KiB region, enabled, AP=011 full access.
	core.mpu.rasr[0] = (1 << rasrEnableBit) | (9 << rasrSizeShift) | (0b011 << rasrAPShift)

	desc, err := core.validateAddress(0x20000000, accessNormal, true)
	armtest.NoError(t, err, "address within the configured region hits")
	armtest.Equal(t, desc.attrs.AP, uint8(0b011), "region attrs are taken from RASR.AP")

	_, err = core.validateAddress(0x20001000, accessNormal, false)
	armtest.True(t, err != nil, "address outside the 1KiB region misses")
}

func TestValidateAddressSubregionDisable(t *testing.T) {
	core := newTestARM()
	core.mpu.ctrlEnable = true
	// size field = 10 -> region size bits = 11 -> 2KiB region, split into 8
	// 256-byte subregions; disable subregion 0.
	core.mpu.rbar[0] = 0x20000000
	core.mpu.rasr[0] = (1 << rasrEnableBit) | (10 << rasrSizeShift) | (0b011 << rasrAPShift) | (1 << rasrSRDShift)

	_, err := core.validateAddress(0x20000000, accessNormal, false)
	armtest.True(t, err != nil, "address within a disabled subregion misses the region entirely")

	_, err = core.validateAddress(0x20000100, accessNormal, false)
	armtest.NoError(t, err, "address within an enabled subregion of the same region hits")
}

func TestValidateAddressSystemRegionForcedXN(t *testing.T) {
	core := newTestARM()
	core.mpu.ctrlEnable = true
	core.mpu.ctrlPRIVDEFENA = true

	desc, err := core.validateAddress(0xF0000000, accessNormal, false)
	armtest.NoError(t, err, "background region covers the System region when PRIVDEFENA is set")
	armtest.True(t, desc.attrs.XN, "System-region addresses are always forced XN")
}

func TestRegionForReportsHighestPriorityMatch(t *testing.T) {
	core := newTestARM()
	core.mpu.ctrlEnable = true
	core.mpu.rbar[0] = 0x20000000
	core.mpu.rasr[0] = (1 << rasrEnableBit) | (9 << rasrSizeShift) | (0b011 << rasrAPShift)

	info, ok := core.RegionFor(0x20000000)
	armtest.True(t, ok, "RegionFor finds the enabled region")
	armtest.Equal(t, info.Index, 0, "RegionFor reports the matching region's index")
	armtest.Equal(t, info.Base, uint32(0x20000000), "RegionFor reports the region's base address")

	_, ok = core.RegionFor(0x30000000)
	armtest.True(t, !ok, "RegionFor reports no match outside any enabled region")
}

func TestMPUCtrlRegisterRoundTrip(t *testing.T) {
	m := newMPU()
	m.setCtrl(0b111)
	armtest.True(t, m.ctrlEnable, "CTRL bit 0 is ENABLE")
	armtest.True(t, m.ctrlHFNMIENA, "CTRL bit 1 is HFNMIENA")
	armtest.True(t, m.ctrlPRIVDEFENA, "CTRL bit 2 is PRIVDEFENA")
	armtest.Equal(t, m.ctrl(), uint32(0b111), "ctrl() packs the same three bits back")
}
