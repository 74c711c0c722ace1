package sam

import "github.com/STM32World/blackmagic/target"

// driver carries the probed family identity for the monitor commands.
type driver struct {
	mem    target.MemoryAccess
	family Family
}

// addFlash registers one bank on the session. Failure to register is
// non-fatal to the probe: the bank is skipped with a diagnostic and the
// probe fails only if no bank at all could be registered.
func addFlash(t *target.Target, f *Flash) bool {
	if err := t.AddFlash(f); err != nil {
		target.Log().Warnf("sam: skipping flash bank: %v", err)
		return false
	}
	return true
}

// finishProbe registers the RAM region, monitor commands and variant
// label once at least one flash bank exists.
func (d *driver) finishProbe(t *target.Target, ramBase, ramSize uint32, label string) {
	t.AddRAM(ramBase, ramSize)
	t.AddCommands(d.family.String(), d.commands())
	t.SetDriver(label)
}

// ProbeX7X tries to recognize an extended-line part (SAME70, SAMS70,
// SAMV71, SAMV70). The line is keyed by the architecture field alone;
// the extended ID register is read only when CIDR flags it as present.
// Returns false, registering nothing, when the device is not
// recognized or no usable flash region could be built.
func ProbeX7X(t *target.Target) bool {
	mem := t.Mem()
	cidr := mem.Read32(chipIDCIDR)
	var exid uint32
	if cidr&cidrExtFlag != 0 {
		exid = mem.Read32(chipIDEXID)
	}

	switch archField(cidr) {
	case archSAME70, archSAMS70, archSAMV71, archSAMV70:
	default:
		return false
	}

	id := DecodeX7X(cidr, exid)
	d := &driver{mem: mem, family: FamilyX7X}

	if !addFlash(t, newSAM4Flash(mem, FamilyX7X, eefcBaseX7X, 0x00400000, id.FlashSize)) {
		return false
	}

	if id.RAMKnown {
		t.AddRAM(0x20400000, id.RAMSize)
	} else {
		target.Log().Warnf("sam: %s: SRAM size code not recognized, no RAM region", id.Variant())
	}
	t.AddCommands(d.family.String(), d.commands())
	t.SetDriver(id.Variant())
	target.Log().Infof("sam: probed %s, flash %d KiB", id.Variant(), id.FlashSize/1024)
	return true
}

// Probe3 tries to recognize a legacy-line SAM3/SAM4 part. The line is
// keyed by the combined architecture and processor fields, read from
// each of the two identification register addresses in turn. Returns
// false, registering nothing, when the device is not recognized or no
// usable flash region could be built.
func Probe3(t *target.Target) bool {
	mem := t.Mem()

	cidr := mem.Read32(chipIDCIDR)
	if eprocField(cidr) == eprocCM3 {
		switch archField(cidr) {
		case archSAM3XxC, archSAM3XxE, archSAM3XxG:
			return probeSAM3X(t, cidr)
		}
	}

	cidr = mem.Read32(chipIDCIDRAlt)
	switch eprocField(cidr) {
	case eprocCM3:
		switch archField(cidr) {
		case archSAM3NxA, archSAM3NxB, archSAM3NxC:
			return probeSAM3NS(t, cidr)
		case archSAM3SxA, archSAM3SxB, archSAM3SxC:
			return probeSAM3NS(t, cidr)
		case archSAM3UxC, archSAM3UxE:
			return probeSAM3U(t, cidr)
		}
	case eprocCM4:
		switch archField(cidr) {
		case archSAM4SxA, archSAM4SxB, archSAM4SxC, archSAM4SDB, archSAM4SDC:
			return probeSAM4S(t, cidr)
		}
	}

	return false
}

func probeSAM3X(t *target.Target, cidr uint32) bool {
	mem := t.Mem()
	size := FlashSizeBytes(cidr)
	d := &driver{mem: mem, family: FamilySAM3X}

	// Two flash banks back-to-back starting at 0x80000.
	built := 0
	for bank := uint32(0); bank < 2; bank++ {
		f := newSAM3Flash(mem, FamilySAM3X, eefcBaseSAM3X(bank), 0x80000+bank*size/2, size/2)
		if addFlash(t, f) {
			built++
		}
	}
	if built == 0 {
		return false
	}

	d.finishProbe(t, 0x20000000, 0x200000, "Atmel SAM3X")
	return true
}

func probeSAM3NS(t *target.Target, cidr uint32) bool {
	mem := t.Mem()
	size := FlashSizeBytes(cidr)
	d := &driver{mem: mem, family: FamilySAM3NS}

	// These devices only have a single bank.
	if !addFlash(t, newSAM3Flash(mem, FamilySAM3NS, eefcBaseSAM3N, 0x400000, size)) {
		return false
	}

	d.finishProbe(t, 0x20000000, 0x200000, "Atmel SAM3N/S")
	return true
}

func probeSAM3U(t *target.Target, cidr uint32) bool {
	mem := t.Mem()
	size := FlashSizeBytes(cidr)
	d := &driver{mem: mem, family: FamilySAM3U}

	// One bank of up to 512K at 0x80000; anything above that sits in a
	// second bank at 0x100000.
	bank0 := size
	if bank0 > 0x80000 {
		bank0 = 0x80000
	}
	built := 0
	if addFlash(t, newSAM3Flash(mem, FamilySAM3U, eefcBaseSAM3U(0), 0x80000, bank0)) {
		built++
	}
	if size > 0x80000 {
		if addFlash(t, newSAM3Flash(mem, FamilySAM3U, eefcBaseSAM3U(1), 0x100000, size-0x80000)) {
			built++
		}
	}
	if built == 0 {
		return false
	}

	d.finishProbe(t, 0x20000000, 0x200000, "Atmel SAM3U")
	return true
}

func probeSAM4S(t *target.Target, cidr uint32) bool {
	mem := t.Mem()
	size := FlashSizeBytes(cidr)
	d := &driver{mem: mem, family: FamilySAM4S}

	built := 0
	if size <= 0x80000 {
		// Smaller devices have a single bank.
		if addFlash(t, newSAM4Flash(mem, FamilySAM4S, eefcBaseSAM4S(0), 0x400000, size)) {
			built++
		}
	} else {
		// Larger devices are split evenly between two banks.
		for bank := uint32(0); bank < 2; bank++ {
			f := newSAM4Flash(mem, FamilySAM4S, eefcBaseSAM4S(bank), 0x400000+bank*size/2, size/2)
			if addFlash(t, f) {
				built++
			}
		}
	}
	if built == 0 {
		return false
	}

	d.finishProbe(t, 0x20000000, 0x400000, "Atmel SAM4S")
	return true
}
