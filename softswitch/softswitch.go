// Package softswitch models the Apple II's $C000-$C0FF memory-mapped latch
// bank as a plain data record plus a dispatch-by-offset read/write pair,
// per the "soft switches as a data record, not methods" design note: a big
// table keyed on the low byte, not one type per switch.
package softswitch

import "github.com/sixfivezero/apple2core/io"

// Bank is the full set of soft-switch latches. Kept as one flat struct so
// the read/write dispatch functions can mutate it directly.
type Bank struct {
	TextMode bool
	Mixed    bool
	Page2    bool
	Hires    bool

	Store80 bool
	Col80   bool
	AltChar bool
	Dhires  bool
	Ioudis  bool
	Ramrd   bool
	Ramwrt  bool
	Altzp   bool

	Annunciator [4]bool

	KeyLatch   uint8 // bit 7 = data ready, bits 0-6 = ASCII.
	SpeakerTap func(cycle uint64)

	Paddle             [4]uint8
	PaddleTriggerCycle uint64

	Button [3]io.PortIn1

	// IsIIe gates the IIe-only status reads ($C011-$C01F, $C07E/$C07F) and
	// the $C000-$C00F write-side 80-column-card toggles.
	IsIIe bool
}

// Reset restores the switchable latches to their power-on-default values
// (everything false/zero, text mode visible) without disturbing the fields
// a machine wires once at setup time: SpeakerTap, Button, and IsIIe.
func (b *Bank) Reset() {
	speakerTap, button, isIIe := b.SpeakerTap, b.Button, b.IsIIe
	*b = Bank{}
	b.SpeakerTap, b.Button, b.IsIIe = speakerTap, button, isIIe
	b.TextMode = true
}

// Snapshot is the serializable subset of Bank's state: every switchable
// latch, excluding the SpeakerTap/Button/IsIIe wiring a machine sets once
// at setup time and a save-state restore must not disturb.
type Snapshot struct {
	TextMode bool
	Mixed    bool
	Page2    bool
	Hires    bool

	Store80 bool
	Col80   bool
	AltChar bool
	Dhires  bool
	Ioudis  bool
	Ramrd   bool
	Ramwrt  bool
	Altzp   bool

	Annunciator [4]bool

	KeyLatch uint8

	Paddle             [4]uint8
	PaddleTriggerCycle uint64
}

// Snapshot returns the current switchable latches.
func (b *Bank) Snapshot() Snapshot {
	return Snapshot{
		TextMode: b.TextMode, Mixed: b.Mixed, Page2: b.Page2, Hires: b.Hires,
		Store80: b.Store80, Col80: b.Col80, AltChar: b.AltChar, Dhires: b.Dhires,
		Ioudis: b.Ioudis, Ramrd: b.Ramrd, Ramwrt: b.Ramwrt, Altzp: b.Altzp,
		Annunciator: b.Annunciator, KeyLatch: b.KeyLatch,
		Paddle: b.Paddle, PaddleTriggerCycle: b.PaddleTriggerCycle,
	}
}

// Restore sets the switchable latches from a prior Snapshot.
func (b *Bank) Restore(s Snapshot) {
	b.TextMode, b.Mixed, b.Page2, b.Hires = s.TextMode, s.Mixed, s.Page2, s.Hires
	b.Store80, b.Col80, b.AltChar, b.Dhires = s.Store80, s.Col80, s.AltChar, s.Dhires
	b.Ioudis, b.Ramrd, b.Ramwrt, b.Altzp = s.Ioudis, s.Ramrd, s.Ramwrt, s.Altzp
	b.Annunciator = s.Annunciator
	b.KeyLatch = s.KeyLatch
	b.Paddle = s.Paddle
	b.PaddleTriggerCycle = s.PaddleTriggerCycle
}

// VBLAsserted reports whether the supplied scanline (0..261) is within the
// vertical-blanking interval (192..261), used by RDVBL ($C019).
func VBLAsserted(scanline int) bool {
	return scanline >= 192 && scanline <= 261
}

// Read handles a read from addr in $C000-$C0FF. cycle is the machine's
// current total cycle count (needed for the paddle RC timer), scanline the
// current raster line (needed for RDVBL).
func (b *Bank) Read(addr uint16, cycle uint64, scanline int) uint8 {
	off := uint8(addr & 0xFF)

	switch {
	case off <= 0x0F:
		return b.readKeyboardOrStatus(off, scanline)
	case off >= 0x10 && off <= 0x1F:
		if b.IsIIe && off != 0x10 {
			return b.readKeyboardOrStatus(off, scanline)
		}
		b.KeyLatch &^= 0x80
		return b.readKeyboardOrStatus(0x00, scanline) &^ 0x80
	case off >= 0x30 && off <= 0x3F:
		if b.SpeakerTap != nil {
			b.SpeakerTap(cycle)
		}
		return 0
	case off >= 0x50 && off <= 0x57:
		b.toggleGraphics(off)
		return 0
	case off >= 0x58 && off <= 0x5F:
		return b.annunciatorOrDhires(off, false)
	case off >= 0x61 && off <= 0x63:
		idx := off - 0x61
		if b.Button[idx] != nil && b.Button[idx].Input() {
			return 0x80
		}
		return 0
	case off >= 0x64 && off <= 0x67:
		idx := off - 0x64
		elapsed := cycle - b.PaddleTriggerCycle
		if elapsed < uint64(b.Paddle[idx])*11 {
			return 0x80
		}
		return 0
	case off == 0x70:
		b.PaddleTriggerCycle = cycle
		return 0
	case off >= 0x70 && off <= 0x7F:
		return b.status7x(off)
	case off >= 0x80 && off <= 0x8F:
		// Language Card region: handled by the bus/langcard packages, which
		// intercept before reaching here. Soft-switch Read is never called
		// for this range by a correctly wired bus.
		return 0
	}
	return 0
}

// Write handles a write to addr in $C000-$C0FF.
func (b *Bank) Write(addr uint16, val uint8) {
	off := uint8(addr & 0xFF)

	switch {
	case off <= 0x0F:
		if b.IsIIe {
			b.write80ColumnToggles(off, val)
		}
	case off >= 0x10 && off <= 0x1F:
		b.KeyLatch &^= 0x80
	case off >= 0x30 && off <= 0x3F:
		// Speaker toggles the same on write as on read; timestamping is the
		// caller's job since Write here has no cycle parameter in the
		// teacher-style split (callers needing the tap use WriteAt).
	case off >= 0x50 && off <= 0x57:
		b.toggleGraphics(off)
	case off >= 0x58 && off <= 0x5F:
		b.annunciatorOrDhires(off, true)
	case off == 0x70:
		// PaddleTriggerCycle reset on write also requires the cycle; see
		// WriteAt.
	}
}

// WriteAt is Write plus the cycle stamp needed by the speaker tap and the
// paddle trigger, mirroring spec.md's "graphics/text pairs toggle on read
// or write" and "$30-$3F toggle speaker and timestamp" rules uniformly.
func (b *Bank) WriteAt(addr uint16, val uint8, cycle uint64) {
	off := uint8(addr & 0xFF)
	switch {
	case off >= 0x30 && off <= 0x3F:
		if b.SpeakerTap != nil {
			b.SpeakerTap(cycle)
		}
	case off == 0x70:
		b.PaddleTriggerCycle = cycle
	}
	b.Write(addr, val)
}

func (b *Bank) readKeyboardOrStatus(off uint8, scanline int) uint8 {
	if !b.IsIIe || off == 0x00 {
		return b.KeyLatch
	}
	switch off {
	case 0x11:
		return flagBit(false) // RDLCBNK2: not tracked here, LC owns it.
	case 0x12:
		return flagBit(false) // RDLCRAM: ditto.
	case 0x13:
		return flagBit(b.Ramrd)
	case 0x14:
		return flagBit(b.Ramwrt)
	case 0x15:
		return flagBit(b.Altzp)
	case 0x16:
		return flagBit(b.Store80)
	case 0x19:
		return flagBit(!VBLAsserted(scanline)) // bit 7 set during active display, clear during VBL.
	case 0x1A:
		return flagBit(b.TextMode)
	case 0x1B:
		return flagBit(b.Mixed)
	case 0x1C:
		return flagBit(b.Page2)
	case 0x1D:
		return flagBit(b.Hires)
	case 0x1E:
		return flagBit(b.AltChar)
	case 0x1F:
		return flagBit(b.Col80)
	}
	return b.KeyLatch
}

func flagBit(v bool) uint8 {
	if v {
		return 0x80
	}
	return 0
}

func (b *Bank) toggleGraphics(off uint8) {
	set := off&0x01 != 0
	switch off &^ 0x01 {
	case 0x50:
		b.TextMode = set
	case 0x52:
		b.Mixed = set
	case 0x54:
		b.Page2 = set
	case 0x56:
		b.Hires = set
	}
}

func (b *Bank) annunciatorOrDhires(off uint8, isWrite bool) uint8 {
	if b.IsIIe && !b.Ioudis && (off == 0x5E || off == 0x5F) {
		b.Dhires = off == 0x5E
		return 0
	}
	idx := (off - 0x58) / 2
	if idx < 4 {
		b.Annunciator[idx] = off&0x01 != 0
	}
	return 0
}

func (b *Bank) status7x(off uint8) uint8 {
	if b.IsIIe {
		switch off {
		case 0x7E:
			return flagBit(b.Ioudis)
		case 0x7F:
			return flagBit(b.Dhires)
		}
	}
	return 0
}

func (b *Bank) write80ColumnToggles(off uint8, val uint8) {
	set := off&0x01 != 0
	switch off &^ 0x01 {
	case 0x00:
		b.Store80 = set
	case 0x02:
		b.Ramrd = set
	case 0x04:
		b.Ramwrt = set
	case 0x06:
		b.Altzp = set
	case 0x08:
		b.Col80 = set
	case 0x0E:
		b.AltChar = set
	}
	_ = val
}
