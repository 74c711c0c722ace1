package sam

import (
	"fmt"
	"io"
	"strconv"

	"github.com/STM32World/blackmagic/target"
)

// commands returns the monitor commands this driver exposes to the
// console dispatcher.
func (d *driver) commands() []target.Command {
	return []target.Command{
		{Name: "gpnvm_get", Handler: d.cmdGPNVMGet, Help: "Get GPNVM value"},
		{Name: "gpnvm_set", Handler: d.cmdGPNVMSet, Help: "Set GPNVM bit <bit> <val>"},
	}
}

// cmdGPNVMGet reads the GPNVM bits through the bank-0 controller and
// prints them.
func (d *driver) cmdGPNVMGet(argv []string, out io.Writer) error {
	base := d.family.eefcBase()
	if err := flashCommand(d.mem, base, fcmdGetGPNVMBit, 0); err != nil {
		return err
	}
	fmt.Fprintf(out, "GPNVM: 0x%08X\n", d.mem.Read32(base+eefcFRR))
	return nil
}

// cmdGPNVMSet sets or clears one GPNVM bit and prints the resulting
// state. Argument errors are reported before any hardware access.
func (d *driver) cmdGPNVMSet(argv []string, out io.Writer) error {
	if len(argv) != 2 {
		return &target.UsageError{Usage: "gpnvm_set <bit> <val>"}
	}
	bit, err := strconv.ParseUint(argv[0], 0, 16)
	if err != nil {
		return &target.UsageError{Usage: "gpnvm_set <bit> <val>"}
	}
	val, err := strconv.ParseUint(argv[1], 0, 32)
	if err != nil {
		return &target.UsageError{Usage: "gpnvm_set <bit> <val>"}
	}

	cmd := uint8(fcmdClearGPNVMBit)
	if val != 0 {
		cmd = fcmdSetGPNVMBit
	}
	if err := flashCommand(d.mem, d.family.eefcBase(), cmd, uint16(bit)); err != nil {
		return err
	}
	return d.cmdGPNVMGet(nil, out)
}
