package sam

import (
	"errors"
	"testing"

	"github.com/STM32World/blackmagic/target"
)

func TestCommandWord(t *testing.T) {
	tests := []struct {
		cmd  uint8
		arg  uint16
		want uint32
	}{
		{fcmdGetGPNVMBit, 0, 0x5a00000d},
		{fcmdErasePages, 0x41, 0x5a004107},
		{fcmdWritePage, 0xffff, 0x5affff01},
		{fcmdEraseWritePage, 2, 0x5a000203},
	}
	for _, tt := range tests {
		if got := commandWord(tt.cmd, tt.arg); got != tt.want {
			t.Errorf("commandWord(0x%02X, 0x%04X) = 0x%08X, want 0x%08X",
				tt.cmd, tt.arg, got, tt.want)
		}
	}
}

func TestFlashCommandReady(t *testing.T) {
	m := newMockMem()
	m.busyPolls = 3

	base := uint32(eefcBaseSAM3N)
	if err := flashCommand(m, base, fcmdEraseWritePage, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.issued) != 1 {
		t.Fatalf("issued %d commands, want 1", len(m.issued))
	}
	if m.issued[0].base != base {
		t.Errorf("command base = 0x%08X, want 0x%08X", m.issued[0].base, base)
	}
	if want := commandWord(fcmdEraseWritePage, 7); m.issued[0].word != want {
		t.Errorf("command word = 0x%08X, want 0x%08X", m.issued[0].word, want)
	}
}

func TestFlashCommandError(t *testing.T) {
	// Readiness and error are independent: the device reaches ready
	// state with error bits set and the call must fail.
	m := newMockMem()
	m.errOnCommand = 1
	m.errBits = fsrCmdError | fsrLockError

	err := flashCommand(m, eefcBaseSAM3N, fcmdWritePage, 0)
	var cmdErr *target.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("got %v, want CommandError", err)
	}
	if cmdErr.Status != fsrCmdError|fsrLockError {
		t.Errorf("status = 0x%X, want 0x%X", cmdErr.Status, fsrCmdError|fsrLockError)
	}
}

func TestFlashCommandTransportFailure(t *testing.T) {
	// The poll loop terminates on a transport fault even though the
	// device never reports ready.
	m := newMockMem()
	m.busyPolls = 1 << 20
	m.faultOnPoll = 4

	err := flashCommand(m, eefcBaseX7X, fcmdErasePages, 1)
	var trErr *target.TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("got %v, want TransportError", err)
	}
}
