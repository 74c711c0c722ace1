package sam

import "github.com/STM32World/blackmagic/target"

// Enhanced Embedded Flash Controller (EEFC) register map. Each flash
// bank has its own controller instance at a family-specific base
// address.
const (
	eefcFMR = 0x00 // mode register
	eefcFCR = 0x04 // command register
	eefcFSR = 0x08 // status register
	eefcFRR = 0x0c // result register
)

// Every command word carries the unlock key in its top byte.
const fcrKey = 0x5a

// EEFC command opcodes.
const (
	fcmdGetDescriptor  = 0x00 // GETD
	fcmdWritePage      = 0x01 // WP
	fcmdWritePageLock  = 0x02 // WPL
	fcmdEraseWritePage = 0x03 // EWP
	fcmdEraseWriteLock = 0x04 // EWPL
	fcmdEraseAll       = 0x05 // EA
	fcmdErasePages     = 0x07 // EPA
	fcmdSetLockBit     = 0x08 // SLB
	fcmdClearLockBit   = 0x09 // CLB
	fcmdGetLockBit     = 0x0a // GLB
	fcmdSetGPNVMBit    = 0x0b // SGPB
	fcmdClearGPNVMBit  = 0x0c // CGPB
	fcmdGetGPNVMBit    = 0x0d // GGPB
	fcmdStartUniqueID  = 0x0e // STUI
	fcmdStopUniqueID   = 0x0f // SPUI
)

// FSR bits. Ready and error are independent: the controller can reach
// ready state with error bits set.
const (
	fsrReady     = 1 << 0 // FRDY
	fsrCmdError  = 1 << 1 // FCMDE
	fsrLockError = 1 << 2 // FLOCKE
	fsrErrorMask = fsrCmdError | fsrLockError
)

// commandWord composes an FCR value: the unlock key in bits 24-31, the
// opcode in bits 0-7 and the argument in bits 8-23. Arguments wider
// than 16 bits are rejected at the type level.
func commandWord(cmd uint8, arg uint16) uint32 {
	return fcrKey<<24 | uint32(cmd) | uint32(arg)<<8
}

// flashCommand issues one EEFC command and blocks until the controller
// reports ready. The poll loop has no host-side timeout; it is bounded
// only by device readiness or a transport failure, checked on every
// iteration. A ready status with error bits set is reported as
// target.CommandError carrying the error mask.
func flashCommand(mem target.MemoryAccess, base uint32, cmd uint8, arg uint16) error {
	target.Log().Debugf("sam: eefc base=0x%08x cmd=0x%02x arg=0x%04x", base, cmd, arg)
	mem.Write32(base+eefcFCR, commandWord(cmd, arg))

	for mem.Read32(base+eefcFSR)&fsrReady == 0 {
		if mem.TransportError() {
			return &target.TransportError{Op: "eefc command"}
		}
	}

	if status := mem.Read32(base+eefcFSR) & fsrErrorMask; status != 0 {
		return &target.CommandError{Status: status}
	}
	return nil
}
