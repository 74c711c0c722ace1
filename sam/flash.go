package sam

import "github.com/STM32World/blackmagic/target"

// Family identifies a supported device family. The family selects the
// controller layout and the erase strategy of its flash banks and is
// matched structurally, never by comparing label strings.
type Family int

const (
	FamilyUnknown Family = iota
	FamilySAM3X
	FamilySAM3NS
	FamilySAM3U
	FamilySAM4S
	FamilyX7X
)

func (f Family) String() string {
	switch f {
	case FamilySAM3X:
		return "SAM3X"
	case FamilySAM3NS:
		return "SAM3N/S"
	case FamilySAM3U:
		return "SAM3U"
	case FamilySAM4S:
		return "SAM4S"
	case FamilyX7X:
		return "SAMX7X"
	}
	return "unknown"
}

// EEFC base addresses. The multi-bank families expose one controller
// instance per bank at a fixed stride.
const (
	eefcBaseX7X   = 0x400e0c00
	eefcBaseSAM3N = 0x400e0a00
	eefcStride    = 0x200
)

func eefcBaseSAM3X(bank uint32) uint32 { return 0x400e0a00 + bank*eefcStride }
func eefcBaseSAM3U(bank uint32) uint32 { return 0x400e0800 + bank*eefcStride }
func eefcBaseSAM4S(bank uint32) uint32 { return 0x400e0a00 + bank*eefcStride }

// eefcBase returns the bank-0 controller base for the family, used by
// the GPNVM commands which always talk to the first controller.
func (f Family) eefcBase() uint32 {
	switch f {
	case FamilySAM3X:
		return eefcBaseSAM3X(0)
	case FamilySAM3U:
		return eefcBaseSAM3U(0)
	case FamilySAM4S:
		return eefcBaseSAM4S(0)
	case FamilySAM3NS:
		return eefcBaseSAM3N
	}
	return eefcBaseX7X
}

// Page sizes. The SAM4 and x7x controllers erase in 8-page chunks, so
// their banks carry an erase granularity of eight pages.
const (
	sam3PageSize = 256
	sam4PageSize = 512
)

// Flash is one EEFC-backed flash bank.
type Flash struct {
	target.FlashRegion
	mem      target.MemoryAccess
	family   Family
	eefcBase uint32
	writeCmd uint8
}

// Region returns the bank geometry.
func (f *Flash) Region() target.FlashRegion { return f.FlashRegion }

// Erase erases the given range, which the caller aligns to the bank's
// erase granularity.
//
// Only the SAM4S and x7x controllers have a discrete page-erase
// command. On the other families Erase succeeds without touching the
// controller: the erase happens inside the erase-and-write command
// issued by Write, and a stand-alone Erase leaves the pages unchanged
// until a write finalizes them.
func (f *Flash) Erase(addr, length uint32) error {
	switch f.family {
	case FamilySAM4S, FamilyX7X:
	default:
		return nil
	}

	// Erasing runs in 8-page chunks: arg[15:2] holds the page number
	// and arg[1:0] holds 0x1, selecting the 8-page granularity.
	page := (addr - f.Start) / sam4PageSize
	for length > 0 {
		if err := flashCommand(f.mem, f.eefcBase, fcmdErasePages, uint16(page)|0x1); err != nil {
			return err
		}
		if length > f.BlockSize {
			length -= f.BlockSize
		} else {
			length = 0
		}
		page += 8
	}
	return nil
}

// Write stages data into the controller's page buffer and issues one
// write (or erase-and-write) command for the page containing dest.
// Exactly one command per call; the caller splits longer transfers into
// BufSize-aligned pieces.
func (f *Flash) Write(dest uint32, data []byte) error {
	page := (dest - f.Start) / f.BufSize
	f.mem.Write(dest, data)
	return flashCommand(f.mem, f.eefcBase, f.writeCmd, uint16(page))
}

func newSAM3Flash(mem target.MemoryAccess, family Family, eefcBase, addr, length uint32) *Flash {
	return &Flash{
		FlashRegion: target.FlashRegion{
			Start:     addr,
			Length:    length,
			BlockSize: sam3PageSize,
			BufSize:   sam3PageSize,
		},
		mem:      mem,
		family:   family,
		eefcBase: eefcBase,
		writeCmd: fcmdEraseWritePage,
	}
}

func newSAM4Flash(mem target.MemoryAccess, family Family, eefcBase, addr, length uint32) *Flash {
	return &Flash{
		FlashRegion: target.FlashRegion{
			Start:     addr,
			Length:    length,
			BlockSize: sam4PageSize * 8,
			BufSize:   sam4PageSize,
		},
		mem:      mem,
		family:   family,
		eefcBase: eefcBase,
		writeCmd: fcmdWritePage,
	}
}
