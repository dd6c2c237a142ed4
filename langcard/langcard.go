// Package langcard implements the Apple II Language Card's 16-address truth
// table at $C080-$C08F: four booleans derived purely from access history.
package langcard

// State holds the four Language Card flags. A fresh State (zero value) is
// the post-reset state: everything disabled, ROM visible.
type State struct {
	ReadEnable  bool // RAM (not ROM) is mapped in for reads at D000-FFFF.
	WriteEnable bool // Writes at D000-FFFF go to LC RAM, not dropped.
	Bank2       bool // D000-DFFF uses bank 2 (true) or bank 1 (false).
	prewrite    bool // Armed by the first qualifying access; toggled/committed on each subsequent one.
}

// Reset clears all four flags, matching the machine's reset invariant.
func (s *State) Reset() {
	*s = State{}
}

// Flags is a serializable snapshot of the four Language Card flags, for a
// caller (machine's save-state) that needs them without reaching into the
// unexported prewrite latch directly.
type Flags struct {
	ReadEnable  bool
	WriteEnable bool
	Bank2       bool
	Prewrite    bool
}

// Snapshot returns the current four flags.
func (s *State) Snapshot() Flags {
	return Flags{
		ReadEnable:  s.ReadEnable,
		WriteEnable: s.WriteEnable,
		Bank2:       s.Bank2,
		Prewrite:    s.prewrite,
	}
}

// Restore sets the four flags from a prior Snapshot. The prewrite latch
// carries over as-is: it is a single bit of state, not a multi-access
// sequence, so there is nothing to reset to start "fresh".
func (s *State) Restore(f Flags) {
	s.ReadEnable = f.ReadEnable
	s.WriteEnable = f.WriteEnable
	s.Bank2 = f.Bank2
	s.prewrite = f.Prewrite
}

// offsets $C080-$C08F keyed on bits 0-1 (mode select) and bit 3 (bank select).
// Odd low-bit offsets (kReadROM2/kReadWrite2) are write-enable-eligible: two
// consecutive accesses (read or write, same or different address) toggle the
// prewrite latch and commit WriteEnable on the second. Even offsets clear
// both WriteEnable and the latch unconditionally.
const (
	kBank2Mask  = uint16(0x08)
	kRWMask     = uint16(0x03)
	kReadWrite1 = uint16(0x00) // ReadRAM, write disabled
	kReadROM2   = uint16(0x01) // ReadROM, WriteEnable-eligible
	kReadROM1   = uint16(0x02) // ReadROM, write disabled
	kReadWrite2 = uint16(0x03) // ReadRAM, WriteEnable-eligible
)

// Access applies one read or write to a $C080-$C08F address and updates the
// resulting state. Reads and writes drive the truth table identically; the
// bus direction only affects whether data is actually transferred.
func (s *State) Access(addr uint16, isRead bool) {
	_ = isRead
	off := addr & 0x0F
	s.Bank2 = off&kBank2Mask == 0

	mode := off & kRWMask
	switch mode {
	case kReadWrite1, kReadWrite2:
		s.ReadEnable = true
	case kReadROM1, kReadROM2:
		s.ReadEnable = false
	}

	qualifies := mode == kReadROM2 || mode == kReadWrite2
	if !qualifies {
		s.WriteEnable = false
		s.prewrite = false
		return
	}

	if s.prewrite {
		s.WriteEnable = true
	}
	s.prewrite = !s.prewrite
}
