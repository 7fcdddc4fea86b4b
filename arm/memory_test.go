package arm

import (
	"testing"

	"github.com/cortexm3/armv7m/arm/config"
	"github.com/cortexm3/armv7m/internal/armtest"
)

func TestAddressSpaceSRAMRoundTrip(t *testing.T) {
	as := NewAddressSpace(config.Default())
	as.Write(0x20000010, 0x7a)
	armtest.Equal(t, as.Read(0x20000010), uint8(0x7a), "SRAM write/read round-trip")
	armtest.Equal(t, as.Read(0x20000011), uint8(0), "adjacent byte untouched")
}

func TestAddressSpaceOutOfRangeDropsWrites(t *testing.T) {
	as := NewAddressSpace(config.Default())
	// 0x60000000 (external RAM) has no owned buffer and no attached region.
	as.Write(0x60000000, 0xff)
	armtest.Equal(t, as.Read(0x60000000), uint8(0), "unmapped write is dropped, unmapped read is zero")
}

func TestAddressSpaceBitBandRoundTrip(t *testing.T) {
	as := NewAddressSpace(config.Default())

	// Bit-band alias address for SRAM byte 0x20000004, bit 3:
	// alias = sramBitBandStart + (byteOffset*32) + (bit*4)
	byteOffset := uint32(4)
	bit := uint32(3)
	aliasAddr := sramBitBandStart + byteOffset*32 + bit*4

	as.Write(aliasAddr, 1)
	armtest.Equal(t, as.Read(0x20000004), uint8(1<<3), "setting bit 3 via the bit-band alias sets the real byte's bit 3")
	armtest.Equal(t, as.Read(aliasAddr), uint8(1), "reading the alias back reports the bit as 0 or 1, not the raw byte")

	as.Write(aliasAddr, 0)
	armtest.Equal(t, as.Read(0x20000004), uint8(0), "clearing the bit via the alias clears the real byte's bit")

	// Writing through the real address and reading through the alias must
	// agree, in the other direction too.
	as.Write(0x20000004, 0xff)
	armtest.Equal(t, as.Read(aliasAddr), uint8(1), "alias read after a direct byte write reflects that bit")
}

func TestAddressSpaceCodeAliasFlashBoot(t *testing.T) {
	cfg := config.Default()
	cfg.BootMode = config.BootFlash
	as := NewAddressSpace(cfg)

	armtest.NoError(t, as.LoadImage([]byte{0x11, 0x22, 0x33, 0x44}), "load image")

	// Regression test for the code-alias indexing bug: addresses below
	// flash_start must read the Flash buffer's own low bytes, not always 0.
	armtest.Equal(t, as.Read(0), uint8(0x11), "code alias mirrors flash byte 0")
	armtest.Equal(t, as.Read(3), uint8(0x44), "code alias mirrors flash byte 3")

	// Flash-boot alias is read-only: a write below flash_start must not
	// reach the Flash buffer.
	as.Write(0, 0xAA)
	armtest.Equal(t, as.Read(0), uint8(0x11), "flash-boot code alias drops writes")
	armtest.Equal(t, as.Read(cfg.FlashStart), uint8(0x11), "the real flash address is unaffected by the rejected alias write")
}

func TestAddressSpaceCodeAliasSRAMBoot(t *testing.T) {
	cfg := config.Default()
	cfg.BootMode = config.BootSRAM
	as := NewAddressSpace(cfg)
	as.Write(cfg.SRAMStart+8, 0x99)

	// The Code alias mirrors whichever buffer boot_mode selects for reads...
	armtest.Equal(t, as.Read(8), uint8(0x99), "sram-boot code alias mirrors the SRAM buffer for reads")

	// ...but writes issued through the alias are dropped unconditionally,
	// regardless of boot_mode.
	as.Write(8, 0x55)
	armtest.Equal(t, as.Read(8), uint8(0x99), "sram-boot code alias still drops writes")
	armtest.Equal(t, as.Read(cfg.SRAMStart+8), uint8(0x99), "the real SRAM address is unaffected by the rejected alias write")
}

func TestAddressSpaceSystemRegionWraps(t *testing.T) {
	armtest.True(t, inRange(0xFFFFFFFF, systemRegionStart, systemRegionEnd), "system region's half-open end of 0 wraps to the top of the address space")
	armtest.True(t, inRange(systemRegionStart, systemRegionStart, systemRegionEnd), "system region includes its own start")
	armtest.True(t, !inRange(systemRegionStart-1, systemRegionStart, systemRegionEnd), "system region excludes the address just below its start")
}

type stubPeripheral struct {
	start, end uint32
	data       [16]uint8
}

func (s *stubPeripheral) Range() (uint32, uint32) { return s.start, s.end }
func (s *stubPeripheral) Read(addr uint32) uint8  { return s.data[addr-s.start] }
func (s *stubPeripheral) Write(addr uint32, val uint8) {
	s.data[addr-s.start] = val
}

func TestAddressSpaceAttachedRegion(t *testing.T) {
	as := NewAddressSpace(config.Default())
	p := &stubPeripheral{start: 0x40000000, end: 0x40000010}
	as.AttachRegion(p)

	as.Write(0x40000004, 0x42)
	armtest.Equal(t, as.Read(0x40000004), uint8(0x42), "attached region services writes/reads in its range")
	armtest.Equal(t, as.Read(0x40000020), uint8(0), "addresses outside the attached region's range fall through to default")
}

func TestAddressSpacePeripheralBitBand(t *testing.T) {
	as := NewAddressSpace(config.Default())
	p := &stubPeripheral{start: periphRegionStart, end: periphRegionStart + 0x10}
	as.AttachRegion(p)

	byteOffset := uint32(0)
	bit := uint32(2)
	aliasAddr := periphBitBandStart + byteOffset*32 + bit*4

	as.Write(aliasAddr, 1)
	armtest.Equal(t, p.data[0], uint8(1<<2), "peripheral bit-band write sets the target bit on the attached region")
	armtest.Equal(t, as.Read(aliasAddr), uint8(1), "peripheral bit-band read reports 0/1")
}

func TestLoadImageTooLarge(t *testing.T) {
	as := NewAddressSpace(config.Default())
	big := make([]byte, len(as.flash)+1)
	err := as.LoadImage(big)
	armtest.True(t, err != nil, "an image larger than the Flash region is rejected")
}
