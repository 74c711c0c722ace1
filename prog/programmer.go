// Package prog implements a high-level flashing driver on top of a
// probed target session. It loads an Intel HEX image, erases the flash
// ranges the image covers and splits the data into program-granularity
// writes; the per-page hardware protocol itself lives in the target
// driver.
package prog

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"

	"github.com/STM32World/blackmagic/target"
)

// Programmer programs a firmware image into a probed target.
type Programmer struct {
	t   *target.Target
	mem *gohex.Memory
}

// New creates a programmer for the given session. The session must have
// been probed successfully.
func New(t *target.Target) *Programmer {
	return &Programmer{t: t}
}

type flashError struct {
	Address uint32
	Err     error
}

func (e *flashError) Error() string {
	return fmt.Sprintf("error at %X: %v", e.Address, e.Err)
}

func (e *flashError) Unwrap() error { return e.Err }

// LoadHex loads and parses the given Intel HEX data and checks that
// every segment falls inside a registered flash bank.
func (p *Programmer) LoadHex(r io.Reader) error {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return errors.Wrap(err, "failed to parse hex data")
	}

	for _, segment := range mem.GetDataSegments() {
		first := p.t.FlashFor(segment.Address)
		last := p.t.FlashFor(segment.Address + uint32(len(segment.Data)) - 1)
		if first == nil || last == nil {
			return errors.Errorf("segment at %X length %v is outside registered flash",
				segment.Address, len(segment.Data))
		}
		target.Log().Debugf("prog: loaded segment at %X length %v", segment.Address, len(segment.Data))
	}

	p.mem = mem
	return nil
}

// Program erases every block the loaded image touches, then writes the
// image page by page. All erases happen before the first write, so two
// segments sharing an erase block cannot wipe each other, and a program
// page shared by two segments is assembled once and written once. It
// stops at the first failing operation.
func (p *Programmer) Program() error {
	if p.mem == nil {
		return errors.New("no image loaded")
	}
	if err := p.eraseImage(); err != nil {
		var fe *flashError
		if errors.As(err, &fe) {
			return errors.Wrapf(fe.Err, "failed to erase flash at %X", fe.Address)
		}
		return err
	}
	if err := p.writeImage(); err != nil {
		var fe *flashError
		if errors.As(err, &fe) {
			return errors.Wrapf(fe.Err, "failed to write flash at %X", fe.Address)
		}
		return err
	}
	return nil
}

// eraseImage erases every erase block the image touches. The covering
// ranges of all segments are coalesced first so a block shared by two
// segments is erased exactly once.
func (p *Programmer) eraseImage() error {
	type span struct{ start, stop uint32 }
	var spans []span
	for _, segment := range p.mem.GetDataSegments() {
		end := segment.Address + uint32(len(segment.Data))
		addr := segment.Address
		for addr < end {
			f := p.t.FlashFor(addr)
			if f == nil {
				return &flashError{Address: addr, Err: errors.New("address not in registered flash")}
			}
			r := f.Region()
			start := addr &^ (r.BlockSize - 1)
			stop := end
			if stop > r.End() {
				stop = r.End()
			}
			stop = (stop + r.BlockSize - 1) &^ (r.BlockSize - 1)
			spans = append(spans, span{start, stop})
			addr = r.End()
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var merged []span
	for _, s := range spans {
		if n := len(merged); n > 0 && s.start <= merged[n-1].stop {
			if s.stop > merged[n-1].stop {
				merged[n-1].stop = s.stop
			}
			continue
		}
		merged = append(merged, s)
	}

	for _, s := range merged {
		for addr := s.start; addr < s.stop; {
			f := p.t.FlashFor(addr)
			if f == nil {
				return &flashError{Address: addr, Err: errors.New("address not in registered flash")}
			}
			stop := s.stop
			if end := f.Region().End(); stop > end {
				stop = end
			}
			if err := f.Erase(addr, stop-addr); err != nil {
				return &flashError{Address: addr, Err: err}
			}
			addr = stop
		}
	}
	return nil
}

// writeImage writes the image one program page at a time. Partial pages
// are padded with 0xFF, the erased state of the flash; a page touched by
// more than one segment collects all of their bytes before it is written.
func (p *Programmer) writeImage() error {
	pages := make(map[uint32][]byte)
	for _, segment := range p.mem.GetDataSegments() {
		end := segment.Address + uint32(len(segment.Data))
		f := p.t.FlashFor(segment.Address)
		r := f.Region()
		for addr := segment.Address &^ (r.BufSize - 1); addr < end; addr += r.BufSize {
			if !r.Contains(addr) {
				f = p.t.FlashFor(addr)
				if f == nil {
					return &flashError{Address: addr, Err: errors.New("address not in registered flash")}
				}
				r = f.Region()
			}
			page, ok := pages[addr]
			if !ok {
				page = make([]byte, r.BufSize)
				for i := range page {
					page[i] = 0xff
				}
				pages[addr] = page
			}
			for i := uint32(0); i < r.BufSize; i++ {
				off := int64(addr+i) - int64(segment.Address)
				if off >= 0 && off < int64(len(segment.Data)) {
					page[i] = segment.Data[off]
				}
			}
		}
	}

	order := make([]uint32, 0, len(pages))
	for addr := range pages {
		order = append(order, addr)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	for _, addr := range order {
		f := p.t.FlashFor(addr)
		if err := f.Write(addr, pages[addr]); err != nil {
			return &flashError{Address: addr, Err: err}
		}
	}
	return nil
}

// Verify reads the programmed ranges back through the debug link and
// compares them to the loaded image.
func (p *Programmer) Verify() error {
	if p.mem == nil {
		return errors.New("no image loaded")
	}
	mem := p.t.Mem()
	for _, segment := range p.mem.GetDataSegments() {
		for off := 0; off < len(segment.Data); {
			addr := segment.Address + uint32(off)
			word := mem.Read32(addr &^ 3)
			if mem.TransportError() {
				return &target.TransportError{Op: "verify"}
			}
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], word)
			for i := addr & 3; i < 4 && off < len(segment.Data); i, off = i+1, off+1 {
				if buf[i] != segment.Data[off] {
					return errors.Errorf("mismatch at %X, expected %02X read %02X",
						segment.Address+uint32(off), segment.Data[off], buf[i])
				}
			}
		}
	}
	return nil
}
