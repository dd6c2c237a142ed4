package diskii

// DriveSnapshot is a serializable copy of one Drive's load-bearing state,
// for the machine's save-state (gob needs exported fields and no method
// sets of its own, so this is a flat DTO rather than Drive itself).
type DriveSnapshot struct {
	Loaded         bool
	Format         Format
	WriteProtected bool
	Data           []uint8 // NibSize bytes.
	BytePos        int
	Phase          int
}

// CardSnapshot is a serializable copy of the whole Disk II card.
type CardSnapshot struct {
	Latch        uint8
	MotorOn      bool
	MagnetStates uint8
	WriteMode    bool
	LoadMode     bool
	CurrentDrive int
	Drives       [2]DriveSnapshot
}

// Snapshot captures everything spec.md's save-state section lists for
// Disk II: per-drive loaded flag, write-protect flag, full track image,
// byte position, phase; card latch, write mode, motor flag, selected
// drive. The fast-disk gate's own state is intentionally excluded: it is
// a safety heuristic re-derived from the PC stream, not data a restore
// needs to reproduce bit-for-bit (see DESIGN.md).
func (c *Card) Snapshot() CardSnapshot {
	s := CardSnapshot{
		Latch:        c.latch,
		MotorOn:      c.motorOn,
		MagnetStates: c.magnetStates,
		WriteMode:    c.writeMode,
		LoadMode:     c.loadMode,
		CurrentDrive: c.currDrv,
	}
	for i := range c.Drives {
		d := &c.Drives[i].Disk
		s.Drives[i] = DriveSnapshot{
			Loaded:         d.loaded,
			Format:         d.format,
			WriteProtected: d.writeProtected,
			Data:           append([]uint8(nil), d.data...),
			BytePos:        d.bytePos,
			Phase:          c.Drives[i].phase,
		}
	}
	return s
}

// Restore replaces the card's state with a prior Snapshot. Each drive's
// sector cache is purged since the restored track image invalidates any
// cached decodes.
func (c *Card) Restore(s CardSnapshot) {
	c.latch = s.Latch
	c.motorOn = s.MotorOn
	c.magnetStates = s.MagnetStates
	c.writeMode = s.WriteMode
	c.loadMode = s.LoadMode
	c.currDrv = s.CurrentDrive
	c.motorOffScheduledCycle = 0

	for i := range c.Drives {
		dr := &c.Drives[i]
		ds := s.Drives[i]
		dr.Disk = Disk{
			data:           append([]uint8(nil), ds.Data...),
			format:         ds.Format,
			loaded:         ds.Loaded,
			writeProtected: ds.WriteProtected,
			bytePos:        ds.BytePos,
		}
		dr.phase = ds.Phase
		dr.cachedTrk = -1
		dr.cache.Purge()
		dr.updateTrackBaseIfNeeded()
	}
	c.gate.onDiskSwap()
}
