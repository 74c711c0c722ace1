package remote

import (
	"bytes"
	"testing"
)

// fakePort scripts the probe side of the serial link.
type fakePort struct {
	reads  *bytes.Buffer
	writes bytes.Buffer
}

func newFakePort(responses string) *fakePort {
	return &fakePort{reads: bytes.NewBufferString(responses)}
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.reads.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.writes.Write(b) }
func (p *fakePort) Close() error                { return nil }

func testProbe(responses string) (*Probe, *fakePort) {
	port := newFakePort(responses)
	p := New("", 115200)
	p.port = port
	return p, port
}

func TestRead32(t *testing.T) {
	p, port := testProbe("+DEADBEEF#")

	if got := p.Read32(0x400e0940); got != 0xdeadbeef {
		t.Errorf("Read32 = 0x%08X, want 0xDEADBEEF", got)
	}
	if got, want := port.writes.String(), "!r400E0940#"; got != want {
		t.Errorf("request = %q, want %q", got, want)
	}
	if p.TransportError() {
		t.Error("transport fault latched on success")
	}
}

func TestRead32ProbeFailure(t *testing.T) {
	p, _ := testProbe("-E#")

	if got := p.Read32(0); got != 0 {
		t.Errorf("Read32 = 0x%08X, want 0", got)
	}
	if !p.TransportError() {
		t.Error("transport fault not latched")
	}
	// Edge-triggered: the fault clears once observed.
	if p.TransportError() {
		t.Error("transport fault did not clear")
	}
}

func TestRead32MalformedResponse(t *testing.T) {
	p, _ := testProbe("+ZZZZZZZZ#")

	p.Read32(0)
	if !p.TransportError() {
		t.Error("transport fault not latched for malformed payload")
	}
}

func TestRead32LinkDrop(t *testing.T) {
	// An exhausted read (EOF) is a lost link and must latch the fault.
	p, _ := testProbe("")

	p.Read32(0)
	if !p.TransportError() {
		t.Error("transport fault not latched on link drop")
	}
}

func TestWrite32(t *testing.T) {
	p, port := testProbe("+#")

	p.Write32(0x400e0a04, 0x5a000003)
	if got, want := port.writes.String(), "!w400E0A045A000003#"; got != want {
		t.Errorf("request = %q, want %q", got, want)
	}
	if p.TransportError() {
		t.Error("transport fault latched on success")
	}
}

func TestWriteChunksBulkData(t *testing.T) {
	p, port := testProbe("+#+#+#")

	data := make([]byte, 600)
	p.Write(0x20000000, data)
	if p.TransportError() {
		t.Fatal("transport fault latched on success")
	}

	reqs := port.writes.String()
	// 600 bytes split into 256 + 256 + 88, addresses advancing.
	for _, header := range []string{"!m200000000100", "!m200001000100", "!m200002000058"} {
		if !bytes.Contains([]byte(reqs), []byte(header)) {
			t.Errorf("requests missing frame header %q", header)
		}
	}
}

func TestWriteStopsAfterFailure(t *testing.T) {
	p, port := testProbe("+#-E#")

	p.Write(0x20000000, make([]byte, 600))
	if !p.TransportError() {
		t.Fatal("transport fault not latched")
	}
	// The third frame is never sent once the second fails.
	if n := bytes.Count(port.writes.Bytes(), []byte("!m")); n != 2 {
		t.Errorf("sent %d bulk frames, want 2", n)
	}
}
