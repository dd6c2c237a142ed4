package diskii

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Format names how a Disk image's bytes are interpreted on insert.
type Format int

const (
	FormatDSK Format = iota
	FormatPO
	FormatNIB
)

// sectorKey indexes the sector cache: one entry per (track, sector) pair
// decoded off a drive's nibble image.
type sectorKey struct {
	track, sector int
}

// Disk is one floppy's worth of state: the NIB-format track image every
// read/write actually goes through, plus (when the image was inserted as
// a DSK/PO) a logical-sector view used to seed the cache and to support
// Export.
type Disk struct {
	data           []uint8 // NibSize bytes, the medium a real drive reads/writes.
	format         Format
	loaded         bool
	writeProtected bool
	modified       bool

	bytePos   int
	trackBase int
}

// SetWriteProtect toggles write protection independent of how the image
// was inserted, for test fixtures that want to assert the card's refusal
// to honor writes to a protected disk.
func (d *Disk) SetWriteProtect(on bool) {
	d.writeProtected = on
}

func (d *Disk) updateTrackBase(track int) {
	d.trackBase = track * NibTrackSize
}

// Drive is one of the card's two drive mechanisms: the phase stepper and
// the disk currently mounted in it.
type Drive struct {
	Disk Disk

	phase      int // half-track units, 0-79.
	spinning   uint32
	writeLight uint32
	cachedTrk  int

	cache *lru.Cache[sectorKey, [256]uint8]
}

// CurrentTrack returns the whole-track number (0-34) the stepper is
// currently positioned over.
func (dr *Drive) CurrentTrack() int {
	t := dr.phase / 2
	if t > Tracks-1 {
		return Tracks - 1
	}
	return t
}

func (dr *Drive) updateTrackBaseIfNeeded() {
	t := dr.CurrentTrack()
	if t != dr.cachedTrk {
		dr.cachedTrk = t
		dr.Disk.updateTrackBase(t)
	}
}

// newDrive builds a Drive with its sector cache sized for a handful of
// tracks' worth of sectors; bounded so long sessions with many disk swaps
// never grow memory unbounded (see SPEC_FULL.md §4 for why an LRU rather
// than the original's unbounded map).
func newDrive() *Drive {
	c, _ := lru.New[sectorKey, [256]uint8](64)
	return &Drive{cache: c}
}

// motorOffDelayCycles is how long the spindle is modeled as still up to
// speed after a motor-off command, matching real Disk II inertia and
// giving RWTS room to re-enter without a full spin-up penalty.
const motorOffDelayCycles = 500_000

// Card is the slot-6 Disk II interface card: two drives, the stepper's
// magnet-phase register, the Q6/Q7 sequencer, and the fast-disk gate.
// Implements bus.DiskIIPort.
type Card struct {
	Drives   [2]Drive
	currDrv  int
	bootROM  [256]uint8

	latch        uint8
	motorOn      bool
	magnetStates uint8
	q6, q7       bool
	writeMode    bool // derived from q7.
	loadMode     bool // derived from q6.

	motorOffScheduledCycle uint64 // 0 = none pending.

	gate *fastGate
}

// NewCard returns a Card with both drives empty and fast-disk emulation
// enabled by default (matching spec.md's "fast mode is the normal running
// mode once RWTS is confidently detected").
func NewCard() *Card {
	c := &Card{gate: newFastGate()}
	c.Drives[0] = *newDrive()
	c.Drives[1] = *newDrive()
	return c
}

// Reset is a warm reset: it clears sequencer/stepper state but, per
// spec.md, leaves the fast-gate's one-way latch alone (only a disk swap
// or ResetCold clears that).
func (c *Card) Reset() {
	c.latch = 0
	c.motorOn = false
	c.magnetStates = 0
	c.q6, c.q7 = false, false
	c.writeMode, c.loadMode = false, false
	c.currDrv = 0
	c.motorOffScheduledCycle = 0
	for i := range c.Drives {
		c.Drives[i].phase = 0
		c.Drives[i].spinning = 0
		c.Drives[i].writeLight = 0
		c.Drives[i].Disk.bytePos = 0
		c.Drives[i].Disk.trackBase = 0
	}
}

// ResetCold performs a warm Reset and additionally clears the fast-gate's
// one-way latch, matching spec.md's "cleared on disk change and on cold
// reset only" rule.
func (c *Card) ResetCold() {
	c.Reset()
	c.gate.reset()
}

// LoadBootROM installs the 256-byte $C600-$C6FF slot ROM image. Real Disk
// II boot ROMs begin with LDX #$20 (0xA2 0x20); IsROMLoaded reflects that.
func (c *Card) LoadBootROM(data [256]uint8) {
	c.bootROM = data
}

// IsROMLoaded reports whether a real boot ROM image (rather than the
// zeroed default, which signals "fall back to VBR emulation") is present.
func (c *Card) IsROMLoaded() bool {
	return c.bootROM[0] == 0xA2 && c.bootROM[1] == 0x20
}

// ReadBootROM serves the card's $C600-$C6FF window.
func (c *Card) ReadBootROM(off uint8) uint8 {
	return c.bootROM[off]
}

// CurrentDrive returns the drive currently selected by $C0EA/$C0EB.
func (c *Card) CurrentDrive() int {
	return c.currDrv
}

// DiskLoaded reports whether a disk image is mounted in drive.
func (c *Card) DiskLoaded(drive int) bool {
	if drive < 0 || drive > 1 {
		return false
	}
	return c.Drives[drive].Disk.loaded
}

// FastLatchedOff reports whether the fast-disk gate has permanently fallen
// back to Accurate mode (copy-protection-grade latch, not a transient
// per-session drop). A caller that wants to log this operator-visible
// event should poll it once per step and edge-detect the transition.
func (c *Card) FastLatchedOff() bool {
	return c.gate.latchedOff
}

// InsertDisk mounts data (already validated for size by the caller, e.g.
// diskimage.Load) into drive per format, building its NIB track image.
func (c *Card) InsertDisk(drive int, data []uint8, format Format) error {
	if drive < 0 || drive > 1 {
		return InvalidDriveNumber{Drive: drive}
	}
	d := &c.Drives[drive].Disk
	switch format {
	case FormatDSK:
		if len(data) != DSKSize {
			return InvalidDiskSize{Got: len(data), Want: DSKSize}
		}
		d.data = dskToNib(data, DOS33Interleave)
	case FormatPO:
		if len(data) != DSKSize {
			return InvalidDiskSize{Got: len(data), Want: DSKSize}
		}
		d.data = dskToNib(data, ProDOSInterleave)
	case FormatNIB:
		if len(data) != NibSize {
			return InvalidDiskSize{Got: len(data), Want: NibSize}
		}
		d.data = append([]uint8(nil), data...)
	}
	d.format = format
	d.loaded = true
	d.modified = false
	d.bytePos = 0
	d.trackBase = 0
	c.Drives[drive].cache.Purge()

	c.gate.onDiskSwap()
	return nil
}

// EjectDisk clears drive's mounted disk.
func (c *Card) EjectDisk(drive int) error {
	if drive < 0 || drive > 1 {
		return InvalidDriveNumber{Drive: drive}
	}
	c.Drives[drive].Disk = Disk{}
	c.Drives[drive].cache.Purge()
	return nil
}

// SwapDisks exchanges the images mounted in drive 0 and 1 and clears the
// fast-gate's latch, giving the newly-active image a fresh evaluation.
func (c *Card) SwapDisks() {
	c.Drives[0], c.Drives[1] = c.Drives[1], c.Drives[0]
	c.gate.onDiskSwap()
}

// Export decodes drive's NIB track image back into 143,360 bytes of
// sector data in the image's own order (ProDOS order for FormatPO, DOS 3.3
// order otherwise), the left inverse of InsertDisk for FormatDSK/FormatPO
// media.
func (c *Card) Export(drive int) ([]uint8, error) {
	if drive < 0 || drive > 1 {
		return nil, InvalidDriveNumber{Drive: drive}
	}
	d := &c.Drives[drive].Disk
	if !d.loaded {
		return nil, NoDiskLoaded{Drive: drive}
	}
	order := DOS33Interleave
	if d.format == FormatPO {
		order = ProDOSInterleave
	}
	out := make([]uint8, DSKSize)
	for track := 0; track < Tracks; track++ {
		base := track * NibTrackSize
		nibTrack := d.data[base : base+NibTrackSize]
		for phys := 0; phys < SectorsPerTrack; phys++ {
			sector, ok := c.decodeSectorCached(drive, nibTrack, track, phys)
			if !ok {
				continue
			}
			off := (track*SectorsPerTrack + order[phys]) * BytesPerSector
			copy(out[off:off+BytesPerSector], sector[:])
		}
	}
	return out, nil
}

// decodeSectorCached is decodeSector with the drive's bounded LRU in
// front of it: repeated exports or re-reads of the same track (common
// when a long session swaps between a small set of disks) skip the
// nibble scan once a sector has already been decoded since its last
// write.
func (c *Card) decodeSectorCached(drive int, nibTrack []uint8, track, sector int) ([256]uint8, bool) {
	dr := &c.Drives[drive]
	key := sectorKey{track: track, sector: sector}
	if v, ok := dr.cache.Get(key); ok {
		return v, true
	}
	v, ok := decodeSector(nibTrack, sector)
	if ok {
		dr.cache.Add(key, v)
	}
	return v, ok
}

// ObservePC feeds the fast-disk gate's RWTS heuristic. Called once per CPU
// instruction by the owning machine.
func (c *Card) ObservePC(pc uint16, cycle uint64) {
	d := &c.Drives[c.currDrv].Disk
	c.checkScheduledMotorOff(cycle)
	c.gate.observePC(pc, d.format == FormatNIB, cycle, c.motorEffectivelyOn())
}

func (c *Card) motorEffectivelyOn() bool {
	return c.motorOn || c.motorOffScheduledCycle > 0
}

func (c *Card) checkScheduledMotorOff(cycle uint64) {
	if c.motorOffScheduledCycle > 0 && cycle >= c.motorOffScheduledCycle {
		c.motorOffScheduledCycle = 0
		c.motorOn = false
	}
}

// IoRead implements bus.DiskIIPort for a read of $C0E0+reg.
func (c *Card) IoRead(reg uint8, cycle uint64) uint8 {
	c.access(reg, cycle, nil)
	if reg&1 == 0 || reg == 0x0D {
		return c.latch
	}
	return 0xFF // odd offsets float.
}

// IoWrite implements bus.DiskIIPort for a write of $C0E0+reg.
func (c *Card) IoWrite(reg uint8, val uint8, cycle uint64) {
	c.access(reg, cycle, &val)
}

func (c *Card) access(reg uint8, cycle uint64, write *uint8) {
	c.checkScheduledMotorOff(cycle)

	if reg >= 0x0C {
		c.updateSequencer(reg)
	}

	switch {
	case reg <= 0x07:
		c.controlStepper(reg, cycle)
	case reg == 0x08:
		c.controlMotor(false, cycle)
	case reg == 0x09:
		c.controlMotor(true, cycle)
	case reg == 0x0A:
		c.enableDrive(0)
	case reg == 0x0B:
		c.enableDrive(1)
	case reg == 0x0C, reg == 0x0E:
		c.readWriteNibble(cycle)
	case reg == 0x0D:
		c.loadWriteProtect()
	case reg == 0x0F:
		// Q7H: write-mode latch, nothing further to do on access.
	}

	if c.loadMode && c.writeMode && write != nil {
		c.latch = *write
	}
}

func (c *Card) updateSequencer(reg uint8) {
	switch reg & 0x03 {
	case 0x00:
		c.q6 = false
	case 0x01:
		c.q6 = true
	case 0x02:
		c.q7 = false
	case 0x03:
		c.q7 = true
	}
	c.writeMode = c.q7
	c.loadMode = c.q6
}

func (c *Card) controlMotor(on bool, cycle uint64) {
	if on {
		c.motorOffScheduledCycle = 0
		c.motorOn = true
	} else {
		if c.motorOn && c.motorOffScheduledCycle == 0 {
			c.motorOffScheduledCycle = cycle + motorOffDelayCycles
		}
		c.magnetStates = 0
	}
	c.checkSpinning()
}

func (c *Card) enableDrive(drive int) {
	c.currDrv = drive
	other := 1 - drive
	c.Drives[other].spinning = 0
	c.Drives[other].writeLight = 0
	c.checkSpinning()
}

func (c *Card) checkSpinning() {
	if c.motorOn {
		c.Drives[c.currDrv].spinning = 1
	}
}

// controlStepper applies a phase magnet toggle and, if that changes the
// net direction, moves the stepper one half-track.
func (c *Card) controlStepper(reg uint8, cycle uint64) {
	drive := &c.Drives[c.currDrv]
	if !c.motorOn && drive.spinning == 0 {
		return
	}

	phase := (reg >> 1) & 3
	bit := uint8(1) << phase
	if reg&1 != 0 {
		c.magnetStates |= bit
	} else {
		c.magnetStates &^= bit
	}

	old := drive.phase
	c.moveStepper(drive)
	if drive.phase != old {
		c.gate.trackPhaseChange(cycle)
	}
}

func (c *Card) moveStepper(drive *Drive) {
	current := drive.phase & 3
	direction := 0
	if c.magnetStates&(1<<((current+1)&3)) != 0 {
		direction++
	}
	if c.magnetStates&(1<<((current+3)&3)) != 0 {
		direction--
	}
	next := drive.phase + direction
	if next < 0 {
		next = 0
	}
	if next > 79 {
		next = 79
	}
	drive.phase = next
}

func (c *Card) loadWriteProtect() {
	if c.Drives[c.currDrv].Disk.writeProtected {
		c.latch |= 0x80
	} else {
		c.latch &^= 0x80
	}
}

func (c *Card) readWriteNibble(cycle uint64) {
	drive := &c.Drives[c.currDrv]
	if !drive.Disk.loaded {
		c.latch = 0xFF
		return
	}

	if !c.writeMode {
		c.gate.observeLatchRead(cycle)

		track := drive.CurrentTrack()
		c.gate.trackRead(track)

		if c.gate.isSafeFast() {
			c.gate.checkSuspicious(drive.phase, track, cycle)
			drive.updateTrackBaseIfNeeded()
		} else {
			if drive.spinning == 0 {
				return
			}
			drive.updateTrackBaseIfNeeded()
		}

		d := &drive.Disk
		off := d.trackBase + d.bytePos
		if off < len(d.data) {
			c.latch = d.data[off]
		} else {
			c.latch = 0xFF
		}
		d.bytePos++
		nibbles := NibTrackSize
		if d.bytePos >= nibbles {
			d.bytePos = 0
		}
		return
	}

	// Write mode.
	c.gate.observeWrite(cycle)
	d := &drive.Disk
	if d.writeProtected {
		return
	}
	if drive.spinning == 0 {
		return
	}
	drive.updateTrackBaseIfNeeded()
	off := d.trackBase + d.bytePos
	if off < len(d.data) {
		d.data[off] = c.latch
		d.modified = true
		drive.cache.Purge() // track image changed; cached decodes are stale.
	}
	drive.writeLight = 1
	d.bytePos++
	if d.bytePos >= NibTrackSize {
		d.bytePos = 0
	}
}
