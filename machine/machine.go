// Package machine wires the CPU, bus, and Disk II card into a single
// runnable Apple II, the way atari2600.Init wires tia/pia6532/cpu into a
// VCS: one top-level struct owns every chip, and a frame-stepping entry
// point (RunFrame, mirroring atari2600's Tick) drives them all in lockstep.
package machine

import (
	"fmt"
	"io"
	"log"

	"github.com/sixfivezero/apple2core/bus"
	"github.com/sixfivezero/apple2core/cpu"
	"github.com/sixfivezero/apple2core/diskii"
	"github.com/sixfivezero/apple2core/irq"
	ioport "github.com/sixfivezero/apple2core/io"
	"github.com/sixfivezero/apple2core/memory"
	"github.com/sixfivezero/apple2core/softswitch"
)

// Model distinguishes the machine variants spec.md's Lifecycle section
// names; it governs aux RAM availability, CPU type, and IIe-only status
// reads. Re-exported from bus so callers only need to import machine.
type Model = bus.Model

const (
	ModelII          = bus.ModelII
	ModelIIPlus      = bus.ModelIIPlus
	ModelIIe         = bus.ModelIIe
	ModelIIeEnhanced = bus.ModelIIeEnhanced
)

// Per spec.md §3 "Machine word model": 1.023 MHz target, 65 cycles per
// scanline, 262 scanlines (192-261 is VBL), ~17,030 cycles per 60 Hz frame.
const (
	CyclesPerFrame    = 17030
	CyclesPerScanline = 65
	ScanlinesPerFrame = 262

	pcHistorySize = 64 // original_source's apple2.rs keeps a small ring; sized the same way.
)

func cpuTypeForModel(m Model) cpu.CPUType {
	if m.IsIIe() {
		return cpu.CPU_CMOS
	}
	return cpu.CPU_NMOS
}

// MachineDef defines the pieces needed to build an Apple2, in the same
// shape as cpu.ChipDef/pia6532.ChipDef: everything the caller can wire in
// is passed up front to Init rather than configured after the fact.
type MachineDef struct {
	Model Model

	// Irq/Nmi are optional interrupt sources consulted before every CPU
	// step. Nothing in this core raises either (no IRQ-generating card is
	// modeled), but a host embedding a slot card with its own interrupt
	// line wires it in here.
	Irq irq.Sender
	Nmi irq.Sender

	// SpeakerTap, if non-nil, is called with the current cycle count on
	// every read or write of the speaker soft switch ($C030-$C03F); the audio
	// collaborator is responsible for reconstructing a waveform from the
	// timestamps, per spec.md §5's ordering guarantee (c).
	SpeakerTap func(cycle uint64)

	// Button wires the three pushbutton soft-switch inputs ($C061-$C063):
	// open-apple, solid-apple, and a third slot-dependent line.
	Button [3]ioport.PortIn1

	// Logger receives operator-facing events (disk swap, fast-disk
	// permanent latch-off). Defaults to discarding output, mirroring
	// atari2600.Init's optional Debug-gated logging.
	Logger *log.Logger
}

// Apple2 is the top-level machine: it owns the CPU, the bus, and the Disk
// II card, and exposes the frame-stepping entry point a host calls in a
// loop.
type Apple2 struct {
	Model Model
	CPU   *cpu.Chip
	Bus   *bus.Mapper
	Disk  *diskii.Card

	logger *log.Logger

	totalCycles uint64
	frameCount  uint64
	scanline    int

	pcHistory    [pcHistorySize]uint16
	pcHistoryPos int

	vbrTriggered  bool
	fastLatchSeen bool

	// FrameDone, if non-nil, is called once at the end of every RunFrame,
	// mirroring atari2600.VCSDef's FrameDone hook — the video
	// collaborator's cue to render from current memory state. Rendering
	// itself is out of scope here; this is only the synchronization point.
	FrameDone func()
}

// Init builds a powered-on Apple2: main RAM (and aux RAM for IIe models)
// randomized per memory.Bank.PowerOn, a fresh Language Card and soft-switch
// bank, an empty Disk II card, and a CPU of the model-appropriate type.
// Reset must be called before running to establish a defined PC.
func Init(def *MachineDef) (*Apple2, error) {
	mainRAM, err := memory.New8BitRAMBank(65536, nil)
	if err != nil {
		return nil, fmt.Errorf("machine: main RAM: %w", err)
	}
	mainRAM.PowerOn()

	var auxRAM memory.Bank
	if def.Model.IsIIe() {
		auxRAM, err = memory.New8BitRAMBank(65536, nil)
		if err != nil {
			return nil, fmt.Errorf("machine: aux RAM: %w", err)
		}
		auxRAM.PowerOn()
	}

	lcBank1, err := memory.New8BitRAMBank(4096, nil)
	if err != nil {
		return nil, fmt.Errorf("machine: LC bank 1: %w", err)
	}
	lcBank2, err := memory.New8BitRAMBank(4096, nil)
	if err != nil {
		return nil, fmt.Errorf("machine: LC bank 2: %w", err)
	}
	lcUpper, err := memory.New8BitRAMBank(8192, nil)
	if err != nil {
		return nil, fmt.Errorf("machine: LC upper: %w", err)
	}
	lcBank1.PowerOn()
	lcBank2.PowerOn()
	lcUpper.PowerOn()

	ss := &softswitch.Bank{
		TextMode:   true,
		IsIIe:      def.Model.IsIIe(),
		SpeakerTap: def.SpeakerTap,
		Button:     def.Button,
	}

	disk := diskii.NewCard()

	m := &bus.Mapper{
		Model:      def.Model,
		MainRAM:    mainRAM,
		AuxRAM:     auxRAM,
		LCBank1:    lcBank1,
		LCBank2:    lcBank2,
		LCUpper:    lcUpper,
		SoftSwitch: ss,
		DiskII:     disk,
	}

	c, err := cpu.Init(&cpu.ChipDef{
		Cpu: cpuTypeForModel(def.Model),
		Irq: def.Irq,
		Nmi: def.Nmi,
	})
	if err != nil {
		return nil, fmt.Errorf("machine: cpu init: %w", err)
	}

	logger := def.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Apple2{
		Model:  def.Model,
		CPU:    c,
		Bus:    m,
		Disk:   disk,
		logger: logger,
	}, nil
}

// diskIIROMPresent reports whether a real Disk II boot ROM has been
// installed in the bus's $C600-$C6FF window (as opposed to relying on the
// VBR fallback). Grounded on the $A2 $20 (LDX #$20) signature spec.md
// requires of any Disk II ROM file.
func (a *Apple2) diskIIROMPresent() bool {
	return a.Bus.DiskIIBootROM[0] == 0xA2 && a.Bus.DiskIIBootROM[1] == 0x20
}

// Reset performs a warm reset: the 6502 reset sequence (S=0xFD, interrupts
// disabled, PC from $FFFC/$FFFD), clears the Language Card and soft-switch
// state, and warm-resets the Disk II card. Loaded disks and the Disk II
// boot ROM image survive, matching spec.md's Lifecycle invariant. If a
// real Disk II ROM is present and a disk is loaded in the selected drive,
// the reset-vector override described in spec.md §6 ("External
// Interfaces") is applied: PC is forced to $C600, $06 is placed at $01FC,
// and SP is set to $FC, so the boot ROM's slot-number computation works
// without simulating the Autostart ROM's own slot scan.
func (a *Apple2) Reset() {
	a.totalCycles += uint64(a.CPU.Reset(a.Bus))
	a.Bus.LC.Reset()
	a.Bus.SoftSwitch.Reset()
	a.Disk.Reset()

	a.vbrTriggered = false
	a.pcHistory = [pcHistorySize]uint16{}
	a.pcHistoryPos = 0

	if a.diskIIROMPresent() && a.Disk.DiskLoaded(a.Disk.CurrentDrive()) {
		a.Bus.Write(0x01FC, 0x06)
		a.CPU.S = 0xFC
		a.CPU.PC = 0xC600
	}
}

func (a *Apple2) recordPC(pc uint16) {
	a.pcHistory[a.pcHistoryPos%pcHistorySize] = pc
	a.pcHistoryPos++
}

// PCHistory returns the most recent PCs in oldest-to-newest order (fewer
// than pcHistorySize entries until the ring has wrapped once).
func (a *Apple2) PCHistory() []uint16 {
	if a.pcHistoryPos < pcHistorySize {
		return append([]uint16(nil), a.pcHistory[:a.pcHistoryPos]...)
	}
	out := make([]uint16, pcHistorySize)
	start := a.pcHistoryPos % pcHistorySize
	copy(out, a.pcHistory[start:])
	copy(out[pcHistorySize-start:], a.pcHistory[:start])
	return out
}

// checkVBR implements spec.md §4.6's virtual boot ROM: the first time PC
// lands in $C600-$C6FF with no real Disk II ROM installed and a disk
// loaded in the selected drive, it loads that disk's first logical 256
// bytes verbatim into $0800, seeds a reconstruction of the P5 PROM's
// 6-and-2 decode table at $0356-$0395, and redirects execution to $0801 -
// entirely bypassing the boot PROM.
func (a *Apple2) checkVBR() {
	if a.vbrTriggered || a.diskIIROMPresent() {
		return
	}
	pc := a.CPU.PC
	if pc < 0xC600 || pc > 0xC6FF {
		return
	}
	drive := a.Disk.CurrentDrive()
	if !a.Disk.DiskLoaded(drive) {
		return
	}
	a.vbrTriggered = true

	dsk, err := a.Disk.Export(drive)
	if err != nil || len(dsk) < 256 {
		return
	}
	for i := 0; i < 256; i++ {
		a.Bus.Write(0x0800+uint16(i), dsk[i])
	}
	table := diskii.SixAndTwoWriteTable()
	for i, b := range table {
		a.Bus.Write(0x0356+uint16(i), b)
	}
	a.CPU.PC = 0x0801
}

func (a *Apple2) logFastLatchOff() {
	latched := a.Disk.FastLatchedOff()
	if latched && !a.fastLatchSeen {
		a.logger.Printf("disk: fast-disk mode permanently disabled (copy-protection-grade trigger)")
	}
	a.fastLatchSeen = latched
}

// Step executes one CPU instruction, per spec.md §4.6's per-step sequence:
// record PC into the rolling history, let the fast-disk gate observe it,
// check the VBR hook, then run the instruction against the bus adapter
// (a.Bus, which intercepts soft-switch/Disk II addresses and delegates
// everything else to RAM/ROM) and fold the consumed cycles into the
// running totals.
func (a *Apple2) Step() (int, error) {
	pc := a.CPU.PC
	a.recordPC(pc)
	a.Disk.ObservePC(pc, a.totalCycles)
	a.checkVBR()

	a.Bus.Cycle = a.totalCycles
	a.Bus.Scanline = a.scanline

	cycles, err := a.CPU.Step(a.Bus)
	if err != nil {
		return cycles, err
	}
	a.totalCycles += uint64(cycles)
	a.logFastLatchOff()
	return cycles, nil
}

// RunFrame steps the CPU for approximately CyclesPerFrame cycles (a step
// may overshoot slightly since instructions aren't interruptible),
// updating the scanline counter as it goes, then calls FrameDone if set.
func (a *Apple2) RunFrame() error {
	frameCycles := 0
	for frameCycles < CyclesPerFrame {
		cycles, err := a.Step()
		if err != nil {
			return err
		}
		frameCycles += cycles
		scanline := frameCycles / CyclesPerScanline
		if scanline > ScanlinesPerFrame-1 {
			scanline = ScanlinesPerFrame - 1
		}
		a.scanline = scanline
	}
	a.frameCount++
	if a.FrameDone != nil {
		a.FrameDone()
	}
	return nil
}

// TotalCycles is the machine's monotonic cycle count since Init.
func (a *Apple2) TotalCycles() uint64 { return a.totalCycles }

// FrameCount is the number of frames RunFrame has completed.
func (a *Apple2) FrameCount() uint64 { return a.frameCount }

// Scanline is the current raster line, 0-261 (192-261 is VBL).
func (a *Apple2) Scanline() int { return a.scanline }

// InsertDisk mounts data into drive (0 or 1), replacing any image already
// there. Per spec.md §7, a rejected insert leaves the machine's state
// unchanged.
func (a *Apple2) InsertDisk(drive int, data []uint8, format diskii.Format) error {
	if err := a.Disk.InsertDisk(drive, data, format); err != nil {
		return err
	}
	a.logger.Printf("disk: inserted %d-byte image in drive %d", len(data), drive)
	return nil
}

// EjectDisk unmounts the image in drive, if any.
func (a *Apple2) EjectDisk(drive int) error {
	if err := a.Disk.EjectDisk(drive); err != nil {
		return err
	}
	a.logger.Printf("disk: ejected drive %d", drive)
	return nil
}

// SwapDisks atomically exchanges the images in drive 0 and drive 1 and
// clears the fast-disk gate's latch, per spec.md's end-to-end scenario 6.
func (a *Apple2) SwapDisks() {
	a.Disk.SwapDisks()
	a.fastLatchSeen = false
	a.logger.Printf("disk: swapped drive 0 and drive 1")
}

// LoadROM installs a system ROM image, dispatching on its length per
// spec.md §6 "ROM files". 20 KB and 32 KB packages also carry an embedded
// Disk II boot ROM, which is installed on the card/bus exactly as
// LoadDiskIIROM would.
func (a *Apple2) LoadROM(data []uint8) error {
	switch len(data) {
	case 2048: // mini ROM: F800-FFFF, rest of C000-FFFF reads as 0xFF.
		rom := make([]uint8, 16384)
		for i := range rom {
			rom[i] = 0xFF
		}
		copy(rom[0x3800:], data)
		a.Bus.ROM = rom
	case 12288: // Apple II/II+ Autostart: D000-FFFF.
		a.Bus.ROM = append([]uint8(nil), data...)
	case 16384: // generic full ROM: C000-FFFF.
		a.Bus.ROM = append([]uint8(nil), data...)
	case 20480: // Apple II+ package.
		a.Bus.ROM = append([]uint8(nil), data[0x2000:0x5000]...)
		a.installPackagedDiskIIROM(data[0x0600:0x0700])
	case 32768: // Apple IIe package.
		a.Bus.ROM = append([]uint8(nil), data[0x4000:0x8000]...)
		a.installPackagedDiskIIROM(data[0x0600:0x0700])
	default:
		return InvalidROMSize{Got: len(data)}
	}
	return nil
}

func (a *Apple2) installPackagedDiskIIROM(data []uint8) {
	var rom [256]uint8
	copy(rom[:], data)
	a.Bus.DiskIIBootROM = rom
	a.Disk.LoadBootROM(rom)
}

// LoadDiskIIROM installs a standalone 256-byte Disk II boot ROM image at
// the bus's $C600-$C6FF window. Per spec.md §6, the image must begin with
// $A2 $20 (LDX #$20); anything else is rejected.
func (a *Apple2) LoadDiskIIROM(data []uint8) error {
	if len(data) != 256 {
		return InvalidDiskROM{Reason: fmt.Sprintf("length %d, want 256", len(data))}
	}
	if data[0] != 0xA2 || data[1] != 0x20 {
		return InvalidDiskROM{Reason: "missing LDX #$20 ($A2 $20) signature"}
	}
	var rom [256]uint8
	copy(rom[:], data)
	a.Bus.DiskIIBootROM = rom
	a.Disk.LoadBootROM(rom)
	return nil
}
