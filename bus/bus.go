// Package bus implements the Apple II's 64 KiB address space: the
// resolution of every read/write to main RAM, auxiliary RAM, the Language
// Card overlay, ROM, slot ROM, and the soft-switch I/O page, per spec.md
// §4.2. Grounded on the teacher's atari2600 package, which owns several
// memory.Bank instances and a PIA chip and dispatches Read/Write to them by
// address range; this generalizes that shape to Apple II's wider map.
package bus

import (
	"github.com/sixfivezero/apple2core/langcard"
	"github.com/sixfivezero/apple2core/memory"
	"github.com/sixfivezero/apple2core/softswitch"
)

// Model distinguishes the machine variants named in spec.md's Lifecycle
// section; it governs aux RAM availability and the IIe-only status reads.
type Model int

const (
	ModelII Model = iota
	ModelIIPlus
	ModelIIe
	ModelIIeEnhanced
)

// IsIIe reports whether this model has the 80-column/aux-RAM card.
func (m Model) IsIIe() bool {
	return m == ModelIIe || m == ModelIIeEnhanced
}

// DiskIIPort is the 8-register I/O window a slot-6 Disk II card exposes.
// Kept as an interface here so bus does not import diskii directly
// (machine wires the concrete *diskii.Card in).
type DiskIIPort interface {
	IoRead(reg uint8, cycle uint64) uint8
	IoWrite(reg uint8, val uint8, cycle uint64)
}

// Mapper is the unwrapped memory bus: it resolves every address per spec.md
// §4.2 but does not itself intercept speaker/paddle timestamps (the
// top-level machine's bus adapter does that before delegating here).
type Mapper struct {
	Model Model

	MainRAM memory.Bank
	AuxRAM  memory.Bank // nil unless Model.IsIIe()

	LC      langcard.State
	LCBank1 memory.Bank // D000-DFFF bank 1 RAM (4 KiB)
	LCBank2 memory.Bank // D000-DFFF bank 2 RAM (4 KiB)
	LCUpper memory.Bank // E000-FFFF RAM (8 KiB)

	// ROM is the 12-16 KiB image mapped at D000-FFFF when the Language
	// Card is not supplying RAM for a given sub-range. A ROM of at most
	// 12 KiB starts at $D000 (ROM[0] corresponds to $D000); a larger one
	// starts at $C000, and its C000-CFFF part is never read, since that
	// range is served by the I/O page, slot ROM and ExpansionROM.
	ROM []uint8

	DiskIIBootROM [256]uint8 // slot 6 ROM, $C600-C6FF.
	ExpansionROM  []uint8    // optional, $C800-CFFF.

	SoftSwitch *softswitch.Bank
	DiskII     DiskIIPort

	// Cycle and Scanline are refreshed by the caller (machine.Apple2)
	// before each CPU step; they feed the paddle timer and RDVBL.
	Cycle    uint64
	Scanline int
}

func (m *Mapper) ramRead(addr uint16, useAux bool) uint8 {
	if useAux && m.AuxRAM != nil {
		return m.AuxRAM.Read(addr)
	}
	return m.MainRAM.Read(addr)
}

func (m *Mapper) ramWrite(addr uint16, val uint8, useAux bool) {
	if useAux && m.AuxRAM != nil {
		m.AuxRAM.Write(addr, val)
		return
	}
	m.MainRAM.Write(addr, val)
}

// Read implements cpu.Bus.
func (m *Mapper) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x01FF:
		return m.ramRead(addr, m.Model.IsIIe() && m.SoftSwitch.Altzp)
	case addr <= 0xBFFF:
		return m.ramRead(addr, m.Model.IsIIe() && m.SoftSwitch.Ramrd)
	case addr <= 0xC07F:
		return m.SoftSwitch.Read(addr, m.Cycle, m.Scanline)
	case addr <= 0xC08F:
		m.LC.Access(addr, true)
		return 0
	case addr == 0xC0E0, addr == 0xC0E1, addr == 0xC0E2, addr == 0xC0E3,
		addr == 0xC0E4, addr == 0xC0E5, addr == 0xC0E6, addr == 0xC0E7,
		addr == 0xC0E8, addr == 0xC0E9, addr == 0xC0EA, addr == 0xC0EB,
		addr == 0xC0EC, addr == 0xC0ED, addr == 0xC0EE, addr == 0xC0EF:
		if m.DiskII == nil {
			return 0xFF
		}
		return m.DiskII.IoRead(uint8(addr&0x0F), m.Cycle)
	case addr <= 0xC0FF:
		return 0xFF // other slots' I/O: out of scope, unmapped.
	case addr >= 0xC600 && addr <= 0xC6FF:
		return m.DiskIIBootROM[addr-0xC600]
	case addr <= 0xC7FF:
		return 0xFF // other slot ROM: out of scope.
	case addr <= 0xCFFF:
		if m.ExpansionROM == nil {
			return 0
		}
		return m.ExpansionROM[addr-0xC800]
	case addr <= 0xDFFF:
		if m.LC.ReadEnable {
			if m.LC.Bank2 {
				return m.LCBank2.Read(addr - 0xD000)
			}
			return m.LCBank1.Read(addr - 0xD000)
		}
		return m.romRead(addr)
	default: // 0xE000-0xFFFF
		if m.LC.ReadEnable {
			return m.LCUpper.Read(addr - 0xE000)
		}
		return m.romRead(addr)
	}
}

func (m *Mapper) romRead(addr uint16) uint8 {
	base := uint16(0xD000)
	if len(m.ROM) > 0x3000 {
		base = 0xC000
	}
	off := int(addr) - int(base)
	if off < 0 || off >= len(m.ROM) {
		return 0xFF
	}
	return m.ROM[off]
}

// Write implements cpu.Bus.
func (m *Mapper) Write(addr uint16, val uint8) {
	switch {
	case addr <= 0x01FF:
		m.ramWrite(addr, val, m.Model.IsIIe() && m.SoftSwitch.Altzp)
	case addr <= 0xBFFF:
		m.ramWrite(addr, val, m.Model.IsIIe() && m.SoftSwitch.Ramwrt)
	case addr <= 0xC07F:
		m.SoftSwitch.WriteAt(addr, val, m.Cycle)
	case addr <= 0xC08F:
		m.LC.Access(addr, false)
	case addr == 0xC0E0, addr == 0xC0E1, addr == 0xC0E2, addr == 0xC0E3,
		addr == 0xC0E4, addr == 0xC0E5, addr == 0xC0E6, addr == 0xC0E7,
		addr == 0xC0E8, addr == 0xC0E9, addr == 0xC0EA, addr == 0xC0EB,
		addr == 0xC0EC, addr == 0xC0ED, addr == 0xC0EE, addr == 0xC0EF:
		if m.DiskII != nil {
			m.DiskII.IoWrite(uint8(addr&0x0F), val, m.Cycle)
		}
	case addr >= 0xD000 && addr <= 0xDFFF:
		if m.LC.WriteEnable {
			if m.LC.Bank2 {
				m.LCBank2.Write(addr-0xD000, val)
			} else {
				m.LCBank1.Write(addr-0xD000, val)
			}
		}
		// else: ROM region, writes dropped.
	case addr >= 0xE000:
		if m.LC.WriteEnable {
			m.LCUpper.Write(addr-0xE000, val)
		}
	default:
		// C090-CFFF outside the Disk II window (other slots' I/O, slot
		// and expansion ROM): dropped.
	}
}
