// Package sam implements the Atmel SAM3/SAM4/SAMx7 target driver:
// detecting the device from its chip-identification registers, laying out
// its flash banks and RAM, and programming flash through the Enhanced
// Embedded Flash Controller (EEFC).
//
// Supported devices: SAM3N, SAM3S, SAM3U, SAM3X, SAM4S, SAME70, SAMS70,
// SAMV71, SAMV70
package sam

import "fmt"

// Chip identification registers. Two device lines share the register
// layout: the SAM3X and x7x parts expose CIDR at 0x400E0940, the
// SAM3N/S/U and SAM4S line at 0x400E0740. EXID sits next to the first
// CIDR and holds valid data only when the EXT bit of CIDR is set.
const (
	chipIDCIDR    = 0x400e0940
	chipIDCIDRAlt = 0x400e0740
	chipIDEXID    = chipIDCIDR + 4
	cidrExtFlag   = 1 << 31
)

// CIDR bitfields.
const (
	cidrVersionMask = 0x1f

	cidrEProcShift = 5
	cidrEProcMask  = 0x7

	cidrNVPSizShift = 8
	cidrNVPSizMask  = 0xf

	cidrSRAMSizShift = 16
	cidrSRAMSizMask  = 0xf

	cidrArchShift = 20
	cidrArchMask  = 0xff
)

// Embedded processor codes.
const (
	eprocCM7 = 0x0
	eprocCM3 = 0x3
	eprocCM4 = 0x7
)

// Architecture codes.
const (
	archSAME70 = 0x10
	archSAMS70 = 0x11
	archSAMV71 = 0x12
	archSAMV70 = 0x13

	archSAM3UxC = 0x80
	archSAM3UxE = 0x81
	archSAM3XxC = 0x84
	archSAM3XxE = 0x85
	archSAM3XxG = 0x86
	archSAM3SxA = 0x88
	archSAM3SxB = 0x89
	archSAM3SxC = 0x8a
	archSAM3NxA = 0x93
	archSAM3NxB = 0x94
	archSAM3NxC = 0x95
	archSAM4SxA = 0x88
	archSAM4SxB = 0x89
	archSAM4SxC = 0x8a
	archSAM4SDB = 0x99
	archSAM4SDC = 0x9a
)

// EXID pin-count codes on the x7x parts.
const (
	exidPinsMask = 0x3
	exidPinsJ    = 0x0 // 64 pins
	exidPinsN    = 0x1 // 100 pins
	exidPinsQ    = 0x2 // 144 pins
)

func archField(cidr uint32) uint32  { return (cidr >> cidrArchShift) & cidrArchMask }
func eprocField(cidr uint32) uint32 { return (cidr >> cidrEProcShift) & cidrEProcMask }

// FlashSizeBytes decodes the CIDR NVPSIZ field into a byte count.
// Codes outside the table decode to 0, which the region builder treats
// as "no usable region".
func FlashSizeBytes(cidr uint32) uint32 {
	switch (cidr >> cidrNVPSizShift) & cidrNVPSizMask {
	case 0x1:
		return 0x2000 // 8K
	case 0x2:
		return 0x4000 // 16K
	case 0x3:
		return 0x8000 // 32K
	case 0x5:
		return 0x10000 // 64K
	case 0x7:
		return 0x20000 // 128K
	case 0x9:
		return 0x40000 // 256K
	case 0xa:
		return 0x80000 // 512K
	case 0xc:
		return 0x100000 // 1024K
	case 0xe:
		return 0x200000 // 2048K
	}
	return 0
}

// RAMSizeBytes decodes the CIDR SRAMSIZ field. Only the two codes used
// by the supported parts are recognized; for every other code ok is
// false, meaning the capacity is unknown rather than zero. No RAM
// region is registered for an unknown capacity.
func RAMSizeBytes(cidr uint32) (size uint32, ok bool) {
	switch (cidr >> cidrSRAMSizShift) & cidrSRAMSizMask {
	case 0xd:
		return 0x40000, true // 256K
	case 0x2:
		return 0x60000, true // 384K
	}
	return 0, false
}

// ChipID is the decoded contents of the identification registers of an
// x7x part. It is always fully constructed: fields whose bit patterns
// fall outside the recognition tables keep their zero value.
type ChipID struct {
	Family      Family
	ProductCode byte
	ProductID   uint8
	Pins        byte
	Revision    byte
	RAMSize     uint32
	RAMKnown    bool
	FlashSize   uint32
	Density     uint8
}

// DecodeX7X decodes the identification registers of an extended-line
// (SAME70/S70/V71/V70) part. Pure function; the caller supplies the
// already-read register values.
func DecodeX7X(cidr, exid uint32) ChipID {
	id := ChipID{Family: FamilyX7X}

	switch archField(cidr) {
	case archSAME70:
		id.ProductCode = 'E'
		id.ProductID = 70
	case archSAMS70:
		id.ProductCode = 'S'
		id.ProductID = 70
	case archSAMV71:
		id.ProductCode = 'V'
		id.ProductID = 71
	case archSAMV70:
		id.ProductCode = 'V'
		id.ProductID = 70
	}

	// A = revision A, legacy version
	// B = revision B, current variant
	switch exid & cidrVersionMask {
	case 0:
		id.Revision = 'A'
	case 1:
		id.Revision = 'B'
	default:
		id.Revision = '_'
	}

	// Q = 144 pins, N = 100 pins, J = 64 pins
	switch exid & exidPinsMask {
	case exidPinsQ:
		id.Pins = 'Q'
	case exidPinsN:
		id.Pins = 'N'
	case exidPinsJ:
		id.Pins = 'J'
	}

	id.RAMSize, id.RAMKnown = RAMSizeBytes(cidr)
	id.FlashSize = FlashSizeBytes(cidr)

	// 21 = 2048 KB, 20 = 1024 KB, 19 = 512 KB
	switch id.FlashSize {
	case 0x200000:
		id.Density = 21
	case 0x100000:
		id.Density = 20
	case 0x80000:
		id.Density = 19
	}

	return id
}

// Variant formats the part name, e.g. "SAME70Q21A".
func (id ChipID) Variant() string {
	return fmt.Sprintf("SAM%c%02d%c%d%c",
		id.ProductCode, id.ProductID, id.Pins, id.Density, id.Revision)
}
