package machine

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/sixfivezero/apple2core/diskii"
	"github.com/sixfivezero/apple2core/langcard"
	"github.com/sixfivezero/apple2core/memory"
	"github.com/sixfivezero/apple2core/softswitch"
)

// saveStateVersion is bumped whenever SaveState's field set changes in a
// way that breaks decoding an older blob. LoadState rejects a mismatch
// rather than guessing at a migration.
const saveStateVersion = 1

// SaveState is the versioned, self-describing snapshot spec.md §6
// describes: CPU register file and cycle count, main (and aux) RAM, the
// Language Card banks and its four flags, the soft-switch latches and
// keyboard strobe, per-drive Disk II state including the full nibble
// track image, and the machine's own cycle/frame counters. System ROM is
// deliberately excluded: spec.md's concurrency model treats ROM as a
// read-only resource loaded once by the host before the machine runs, not
// part of the machine's mutable state.
type SaveState struct {
	Version int

	Model Model

	A, X, Y, S, P uint8
	PC            uint16
	TotalCycles   uint64

	FrameCount uint64
	Scanline   int

	MainRAM []uint8
	AuxRAM  []uint8 // nil unless Model.IsIIe().

	LC         langcard.Flags
	LCBank1    []uint8
	LCBank2    []uint8
	LCUpper    []uint8
	SoftSwitch softswitch.Snapshot

	Disk diskii.CardSnapshot

	PCHistory     [pcHistorySize]uint16
	PCHistoryPos  int
	VBRTriggered  bool
	FastLatchSeen bool
}

func dumpBank(b memory.Bank, size int) []uint8 {
	if b == nil {
		return nil
	}
	out := make([]uint8, size)
	for i := range out {
		out[i] = b.Read(uint16(i))
	}
	return out
}

func loadBank(b memory.Bank, data []uint8) {
	if b == nil || data == nil {
		return
	}
	for i, v := range data {
		b.Write(uint16(i), v)
	}
}

// SaveState encodes the machine's current state via encoding/gob. Per
// spec.md §5, this must only be called at a frame boundary, never
// mid-instruction.
func (a *Apple2) SaveState() ([]byte, error) {
	s := SaveState{
		Version:     saveStateVersion,
		Model:       a.Model,
		A:           a.CPU.A,
		X:           a.CPU.X,
		Y:           a.CPU.Y,
		S:           a.CPU.S,
		P:           a.CPU.P,
		PC:          a.CPU.PC,
		TotalCycles: a.totalCycles,
		FrameCount:  a.frameCount,
		Scanline:    a.scanline,

		MainRAM: dumpBank(a.Bus.MainRAM, 65536),
		AuxRAM:  dumpBank(a.Bus.AuxRAM, 65536),

		LC:      a.Bus.LC.Snapshot(),
		LCBank1: dumpBank(a.Bus.LCBank1, 4096),
		LCBank2: dumpBank(a.Bus.LCBank2, 4096),
		LCUpper: dumpBank(a.Bus.LCUpper, 8192),

		SoftSwitch: a.Bus.SoftSwitch.Snapshot(),
		Disk:       a.Disk.Snapshot(),

		PCHistory:     a.pcHistory,
		PCHistoryPos:  a.pcHistoryPos,
		VBRTriggered:  a.vbrTriggered,
		FastLatchSeen: a.fastLatchSeen,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&s); err != nil {
		return nil, fmt.Errorf("machine: encode save state: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadState decodes data and replaces the machine's current state with it.
// A version mismatch leaves the machine untouched, per spec.md §7's
// propagation policy ("no partial state loads").
func (a *Apple2) LoadState(data []byte) error {
	var s SaveState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("machine: decode save state: %w", err)
	}
	if s.Version != saveStateVersion {
		return IncompatibleSaveState{Got: s.Version, Want: saveStateVersion}
	}

	a.CPU.A, a.CPU.X, a.CPU.Y, a.CPU.S, a.CPU.P = s.A, s.X, s.Y, s.S, s.P
	a.CPU.PC = s.PC
	a.CPU.TotalCycles = s.TotalCycles
	a.totalCycles = s.TotalCycles
	a.frameCount = s.FrameCount
	a.scanline = s.Scanline

	loadBank(a.Bus.MainRAM, s.MainRAM)
	loadBank(a.Bus.AuxRAM, s.AuxRAM)
	loadBank(a.Bus.LCBank1, s.LCBank1)
	loadBank(a.Bus.LCBank2, s.LCBank2)
	loadBank(a.Bus.LCUpper, s.LCUpper)

	a.Bus.LC.Restore(s.LC)
	a.Bus.SoftSwitch.Restore(s.SoftSwitch)
	a.Disk.Restore(s.Disk)

	a.pcHistory = s.PCHistory
	a.pcHistoryPos = s.PCHistoryPos
	a.vbrTriggered = s.VBRTriggered
	a.fastLatchSeen = s.FastLatchSeen
	return nil
}
