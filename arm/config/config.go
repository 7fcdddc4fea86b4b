// Package config describes the user-configurable layout of an ARMv7-M target
// (Flash/SRAM/system-memory/option-byte bounds and boot mode), generalized
// from a fixed per-board struct selected by a model name into a richer
// struct that can either be constructed with defaults or loaded from a TOML
// file, in the style other ARM emulator configurations in this space use.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// BootMode selects which owned buffer backs the Code alias window
// (0x00000000-0x1FFFFFFF) at reset.
type BootMode string

const (
	BootFlash  BootMode = "flash"
	BootSystem BootMode = "system"
	BootSRAM   BootMode = "sram"
)

// Map is the user-configurable memory layout of a Cortex-M3/M4-class target.
type Map struct {
	FlashStart uint32 `toml:"flash_start"`
	FlashEnd   uint32 `toml:"flash_end"`

	SystemMemStart uint32 `toml:"system_mem_start"`
	SystemMemEnd   uint32 `toml:"system_mem_end"`

	OptionBytesStart uint32 `toml:"option_bytes_start"`
	OptionBytesEnd   uint32 `toml:"option_bytes_end"`

	SRAMStart uint32 `toml:"sram_start"`
	SRAMEnd   uint32 `toml:"sram_end"`

	BootMode BootMode `toml:"boot_mode"`
}

// Default returns a generic Cortex-M3/M4 memory map: 1MiB of Flash at the
// bottom of the Code region, a small system-memory/option-bytes window
// modelled after STM32-family parts, and 128KiB of SRAM at the start of the
// SRAM region, booting from Flash.
func Default() Map {
	return Map{
		FlashStart:       0x08000000,
		FlashEnd:         0x08000000 + 1024*1024,
		SystemMemStart:   0x1FFF0000,
		SystemMemEnd:     0x1FFF0000 + 32*1024,
		OptionBytesStart: 0x1FFFC000,
		OptionBytesEnd:   0x1FFFC000 + 16,
		SRAMStart:        0x20000000,
		SRAMEnd:          0x20000000 + 128*1024,
		BootMode:         BootFlash,
	}
}

// Load reads a Map from a TOML file at path, filling unset fields from
// Default().
func Load(path string) (Map, error) {
	m := Default()
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return Map{}, fmt.Errorf("arm/config: loading %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Map{}, err
	}
	return m, nil
}

// Validate checks that each region's bounds are well-formed (start < end)
// and that the regions as configured do not overlap each other.
func (m Map) Validate() error {
	regions := []struct {
		name       string
		start, end uint32
	}{
		{"flash", m.FlashStart, m.FlashEnd},
		{"system memory", m.SystemMemStart, m.SystemMemEnd},
		{"option bytes", m.OptionBytesStart, m.OptionBytesEnd},
		{"sram", m.SRAMStart, m.SRAMEnd},
	}
	for _, r := range regions {
		if r.start >= r.end {
			return fmt.Errorf("arm/config: %s region is empty or inverted (start=%#x end=%#x)", r.name, r.start, r.end)
		}
	}
	for i := range regions {
		for j := range regions {
			if i == j {
				continue
			}
			a, b := regions[i], regions[j]
			if a.start < b.end && b.start < a.end {
				return fmt.Errorf("arm/config: %s region overlaps %s region", a.name, b.name)
			}
		}
	}
	switch m.BootMode {
	case BootFlash, BootSystem, BootSRAM, "":
	default:
		return fmt.Errorf("arm/config: unknown boot_mode %q", m.BootMode)
	}
	return nil
}
