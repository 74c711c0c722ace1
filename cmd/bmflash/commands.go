package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/STM32World/blackmagic/prog"
	"github.com/STM32World/blackmagic/target"
)

func parseAddr(arg string) (uint32, error) {
	addr, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid address %q", arg)
	}
	return uint32(addr), nil
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Identify the attached target and show its memory map",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		probe, t, err := connect()
		if err != nil {
			return err
		}
		defer probe.Close()

		fmt.Printf("target: %s\n", t.Driver())
		for _, f := range t.Flash() {
			r := f.Region()
			fmt.Printf("flash: 0x%08X length 0x%X (erase block 0x%X, page 0x%X)\n",
				r.Start, r.Length, r.BlockSize, r.BufSize)
		}
		for _, r := range t.RAM() {
			fmt.Printf("ram:   0x%08X length 0x%X\n", r.Start, r.Length)
		}
		return nil
	},
}

var flashCmd = &cobra.Command{
	Use:   "flash <file.hex>",
	Short: "Program an Intel HEX image into flash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		probe, t, err := connect()
		if err != nil {
			return err
		}
		defer probe.Close()

		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()

		p := prog.New(t)
		if err := p.LoadHex(file); err != nil {
			return err
		}
		log.Infof("hex file loaded")

		log.Infof("programming...")
		if err := p.Program(); err != nil {
			return err
		}

		if profile.Verify {
			log.Infof("verifying...")
			if err := p.Verify(); err != nil {
				return err
			}
		}
		log.Infof("complete")
		return nil
	},
}

var eraseCmd = &cobra.Command{
	Use:   "erase <addr> <length>",
	Short: "Erase a flash range",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		length, err := parseAddr(args[1])
		if err != nil {
			return err
		}

		probe, t, err := connect()
		if err != nil {
			return err
		}
		defer probe.Close()

		f := t.FlashFor(addr)
		if f == nil {
			return errors.Errorf("address 0x%08X is not in registered flash", addr)
		}
		return f.Erase(addr, length)
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <addr> <datafile>",
	Short: "Write a raw binary file to flash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return errors.Wrap(err, "failed to read data file")
		}

		probe, t, err := connect()
		if err != nil {
			return err
		}
		defer probe.Close()

		f := t.FlashFor(addr)
		if f == nil {
			return errors.Errorf("address 0x%08X is not in registered flash", addr)
		}
		r := f.Region()
		if addr%r.BufSize != 0 {
			return errors.Errorf("address 0x%08X is not page aligned (page 0x%X)", addr, r.BufSize)
		}

		if err := f.Erase(addr, uint32(len(data))); err != nil {
			return err
		}
		for off := 0; off < len(data); off += int(r.BufSize) {
			page := make([]byte, r.BufSize)
			for i := range page {
				page[i] = 0xff
			}
			copy(page, data[off:])
			if err := f.Write(addr+uint32(off), page); err != nil {
				return err
			}
		}
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <addr> <length>",
	Short: "Read target memory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		length, err := parseAddr(args[1])
		if err != nil {
			return err
		}

		probe, t, err := connect()
		if err != nil {
			return err
		}
		defer probe.Close()

		mem := t.Mem()
		data := make([]byte, 0, length)
		for off := uint32(0); off < length; off += 4 {
			var word [4]byte
			binary.LittleEndian.PutUint32(word[:], mem.Read32(addr+off))
			if mem.TransportError() {
				return &target.TransportError{Op: "read"}
			}
			data = append(data, word[:]...)
		}
		fmt.Print(hex.Dump(data[:length]))
		return nil
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor [command [args...]]",
	Short: "Run a target monitor command",
	RunE: func(cmd *cobra.Command, args []string) error {
		probe, t, err := connect()
		if err != nil {
			return err
		}
		defer probe.Close()

		return t.MonitorCommand(os.Stdout, args...)
	},
}
