// Package remote drives the memory-access service of a debug probe over
// a serial link and exposes it as a target.MemoryAccess.
//
// The wire format is a framed hex request/response exchange: requests
// are "!<op><args>#" with one-letter ops (r = read32, w = write32,
// m = bulk write), responses are "+<payload>#" on success and
// "-<code>#" on failure. Any I/O, framing or probe-reported failure
// latches a transport fault which TransportError reports and clears;
// the memory-access calls themselves never return errors.
package remote

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"

	"github.com/STM32World/blackmagic/target"
)

// Bulk writes are split into frames of this many bytes so a single
// request stays well under the probe's packet buffer.
const maxFramePayload = 256

// Probe is a serial connection to a debug probe.
type Probe struct {
	portConfig serial.Config
	port       io.ReadWriteCloser
	fault      bool
}

var _ target.MemoryAccess = (*Probe)(nil)

// New creates a probe connection for the given serial port. Open must
// be called before use.
func New(port string, baud int) *Probe {
	p := new(Probe)
	p.portConfig.Name = port
	p.portConfig.Baud = baud
	p.portConfig.ReadTimeout = time.Second
	return p
}

// Open opens the serial port.
func (p *Probe) Open() error {
	port, err := serial.OpenPort(&p.portConfig)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", p.portConfig.Name)
	}
	p.port = port
	return nil
}

// Close closes the serial port.
func (p *Probe) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

// exchange sends one request frame and reads the response payload.
func (p *Probe) exchange(req string) (string, error) {
	if _, err := p.port.Write([]byte(req)); err != nil {
		return "", err
	}

	resp := make([]byte, 0, 32)
	buf := make([]byte, 1)
	for {
		n, err := p.port.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", errors.New("response timeout")
		}
		if buf[0] == '#' {
			break
		}
		resp = append(resp, buf[0])
	}

	if len(resp) == 0 || resp[0] != '+' {
		return "", errors.Errorf("probe reported failure: %q", resp)
	}
	return string(resp[1:]), nil
}

// fail latches the transport fault reported by the next TransportError
// call.
func (p *Probe) fail(op string, err error) {
	target.Log().Warnf("remote: %s: %v", op, err)
	p.fault = true
}

// Read32 reads one 32-bit word from target memory. A failed exchange
// latches a transport fault and returns 0.
func (p *Probe) Read32(addr uint32) uint32 {
	resp, err := p.exchange(fmt.Sprintf("!r%08X#", addr))
	if err != nil {
		p.fail("read32", err)
		return 0
	}
	value, err := strconv.ParseUint(resp, 16, 32)
	if err != nil {
		p.fail("read32", errors.Wrap(err, "malformed response"))
		return 0
	}
	return uint32(value)
}

// Write32 writes one 32-bit word to target memory.
func (p *Probe) Write32(addr, value uint32) {
	if _, err := p.exchange(fmt.Sprintf("!w%08X%08X#", addr, value)); err != nil {
		p.fail("write32", err)
	}
}

// Write writes a buffer to target memory, split into bounded frames.
func (p *Probe) Write(addr uint32, data []byte) {
	for len(data) > 0 {
		chunk := data
		if len(chunk) > maxFramePayload {
			chunk = data[:maxFramePayload]
		}
		req := fmt.Sprintf("!m%08X%04X%s#", addr, len(chunk), hex.EncodeToString(chunk))
		if _, err := p.exchange(req); err != nil {
			p.fail("write", err)
			return
		}
		addr += uint32(len(chunk))
		data = data[len(chunk):]
	}
}

// TransportError reports whether a transport fault occurred since the
// last call, and clears it. Drivers observe it inside their status
// polling loops.
func (p *Probe) TransportError() bool {
	fault := p.fault
	p.fault = false
	return fault
}
