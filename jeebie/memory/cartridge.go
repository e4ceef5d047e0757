package memory

import "dmgcore/jeebie/cartridge"

// Cartridge is a loaded ROM image plus the header fields needed to drive its
// memory bank controller. Header parsing itself lives in jeebie/cartridge;
// this type just keeps the raw bytes alongside the parsed result for MBC
// construction.
type Cartridge struct {
	data   []byte
	header *cartridge.Header

	mbcType      MBCType
	hasBattery   bool
	hasRTC       bool
	hasRumble    bool
	ramBankCount uint8
}

// MBCType identifies which MBC constructor NewWithCartridge should use.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC1MultiType
	MBC2Type
	MBC3Type
	MBC5Type
	MBCUnknownType
)

// NewCartridge creates an empty cartridge, useful only for debugging purposes.
func NewCartridge() *Cartridge {
	return &Cartridge{data: make([]byte, 0x8000)}
}

// NewCartridgeWithData parses the header embedded in bytes and returns a
// Cartridge ready to back an MBC. The ROM image is not copied.
func NewCartridgeWithData(bytes []byte) (*Cartridge, error) {
	header, err := cartridge.Parse(bytes)
	if err != nil {
		return nil, err
	}

	var mbcType MBCType
	switch header.MBC {
	case cartridge.RomOnly:
		mbcType = NoMBCType
	case cartridge.MBC1:
		mbcType = MBC1Type
	case cartridge.MBC2:
		mbcType = MBC2Type
	case cartridge.MBC3:
		mbcType = MBC3Type
	case cartridge.MBC5:
		mbcType = MBC5Type
	default:
		mbcType = MBCUnknownType
	}

	return &Cartridge{
		data:         bytes,
		header:       header,
		mbcType:      mbcType,
		hasBattery:   header.HasBattery(),
		hasRTC:       header.HasRTC(),
		hasRumble:    header.HasRumble(),
		ramBankCount: uint8(header.RAMBanks),
	}, nil
}

// Header returns the parsed cartridge header.
func (c *Cartridge) Header() *cartridge.Header {
	return c.header
}
