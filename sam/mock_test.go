package sam

// mockMem simulates the identification registers and EEFC controllers
// of a SAM part behind a debug link. Commands complete after a
// configurable number of busy polls; error bits and transport faults
// can be scripted per command or per poll.

type issuedCommand struct {
	base uint32
	word uint32
}

type mockMem struct {
	regs map[uint32]uint32 // preset registers: CIDR, EXID, FRR...

	issued []issuedCommand
	bulk   map[uint32][]byte

	busyPolls     int // FSR polls reporting busy after each command
	busyRemaining int
	errOnCommand  int // 1-based index of the command that completes with errBits
	errBits       uint32
	faultOnPoll   int // per-command poll count that raises a transport fault
	polls         int
	fault         bool
}

func newMockMem() *mockMem {
	return &mockMem{
		regs: make(map[uint32]uint32),
		bulk: make(map[uint32][]byte),
	}
}

func (m *mockMem) Read32(addr uint32) uint32 {
	if v, ok := m.regs[addr]; ok {
		return v
	}
	if addr&0xff == eefcFSR && addr >= 0x400e0800 {
		m.polls++
		if m.faultOnPoll > 0 && m.polls >= m.faultOnPoll {
			m.fault = true
			return 0
		}
		if m.busyRemaining > 0 {
			m.busyRemaining--
			return 0
		}
		status := uint32(fsrReady)
		if m.errOnCommand > 0 && len(m.issued) == m.errOnCommand {
			status |= m.errBits
		}
		return status
	}
	return 0
}

func (m *mockMem) Write32(addr, value uint32) {
	if addr&0xff == eefcFCR && addr >= 0x400e0800 {
		m.issued = append(m.issued, issuedCommand{base: addr - eefcFCR, word: value})
		m.busyRemaining = m.busyPolls
		m.polls = 0
		return
	}
	m.regs[addr] = value
}

func (m *mockMem) Write(addr uint32, data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	m.bulk[addr] = buf
}

func (m *mockMem) TransportError() bool {
	fault := m.fault
	m.fault = false
	return fault
}
