package diskii

// speedMode is the fast-disk gate's three states: Accurate emulates every
// nibble read at real drive speed; Candidate accumulates evidence that the
// CPU is inside a real RWTS loop before committing to Fast; Fast serves
// reads straight from the in-memory image with the drive motor's timing
// skipped. Once latched off (see fastGate.latchedOff) the gate stays in
// Accurate until a disk swap or a cold reset.
type speedMode int

const (
	modeAccurate speedMode = iota
	modeCandidate
	modeFast
)

// rwtsSession tracks whether the CPU is currently understood to be inside
// a DOS 3.3 RWTS read loop; fastGate only applies its OFF-trigger
// heuristics between sessions, matching AppleWin's "don't second-guess a
// running RWTS" behavior.
type rwtsSession struct {
	active     bool
	startPC    uint16
	startCycle uint64
}

// Tuning constants for the RWTS-observation heuristics, named for the
// condition they gate rather than the disk.rs constant they came from.
const (
	candidateThreshold  = 2
	maxConsecutiveReads = 14000
	rapidPhaseThreshold = 8
	rapidPhaseCycles    = 5000
	excessiveLatchReads = 256
	latchReadWindow     = 4
)

// rwtsRanges are the three PC windows DOS 3.3's RWTS has been observed to
// run from: its initial load address, its relocated address, and its
// final resident address. ProDOS's MLI is not covered; see SPEC_FULL.md §6.
var rwtsRanges = [3][2]uint16{
	{0x3D00, 0x3FFF},
	{0x9D00, 0x9FFF},
	{0xB700, 0xBFFF},
}

func inRWTSRange(pc uint16) bool {
	for _, r := range rwtsRanges {
		if pc >= r[0] && pc <= r[1] {
			return true
		}
	}
	return false
}

// disableReason distinguishes a transient disable (the next clean RWTS
// read re-arms Fast) from a copy-protection-grade trigger (permanent,
// until disk swap or cold reset).
type disableReason int

const (
	reasonWriteOperation disableReason = iota
	reasonUnknownPattern
	reasonHalfTrack
	reasonExcessiveReads
	reasonRapidPhaseChange
	reasonExcessiveLatchRead
	reasonInvalidTrack
)

func (r disableReason) transient() bool {
	return r == reasonWriteOperation || r == reasonUnknownPattern
}

// fastGate is the RWTS-observation state machine described in spec.md's
// "fast-disk safety gate": a Candidate/Fast/Accurate progression driven by
// watching the CPU's PC and the disk card's own read/write/stepper
// traffic, with a one-way latch for anything that looks like copy
// protection rather than ordinary sequential disk I/O.
type fastGate struct {
	mode        speedMode
	candidate   int
	latchedOff  bool
	enabled     bool // user setting: fast-disk emulation wanted at all.
	fastEnabled bool // currently-active flag, for edge-triggered callers.

	session        rwtsSession
	sessionSectors int

	consecutiveReads    uint32
	lastTrack           int
	phaseChangeCount    uint32
	lastPhaseChangeCyc  uint64
	consecutiveLatchRds uint32
	lastLatchCycle      uint64
}

func newFastGate() *fastGate {
	return &fastGate{enabled: true}
}

// reset restores Accurate/no-session state but, per the "cold reset only"
// rule, clears latchedOff too — a warm reset alone does not.
func (g *fastGate) reset() {
	*g = fastGate{enabled: g.enabled}
}

// onDiskSwap clears the one-way latch so the newly inserted disk gets a
// fresh chance at Fast mode.
func (g *fastGate) onDiskSwap() {
	g.latchedOff = false
	g.mode = modeAccurate
	g.consecutiveReads = 0
	g.phaseChangeCount = 0
}

// effective reports whether Fast behavior should currently be applied.
func (g *fastGate) effective() bool {
	return g.enabled && !g.latchedOff
}

func (g *fastGate) isSafeFast() bool {
	return g.effective() && g.mode == modeFast
}

// observePC is called once per CPU step with the current PC, the disk
// format (NIB media is never fast-pathed), cumulative cycle count, and
// whether the drive motor is (or is about to be) spinning.
func (g *fastGate) observePC(pc uint16, isNib bool, cycle uint64, motorOn bool) {
	if g.latchedOff || !g.enabled {
		return
	}
	if isNib {
		g.mode = modeAccurate
		return
	}

	inRange := inRWTSRange(pc)

	if !g.session.active {
		switch {
		case inRange && motorOn:
			switch g.mode {
			case modeAccurate:
				g.mode = modeCandidate
				g.candidate = 1
			case modeCandidate:
				g.candidate++
				if g.candidate >= candidateThreshold {
					g.startSession(pc, cycle)
				}
			case modeFast:
				// Already fast without an active session: leave as is.
			}
		case !inRange && g.mode == modeCandidate:
			g.mode = modeAccurate
			g.candidate = 0
		}
		return
	}

	// Session active: stays alive as long as the motor is on (its off-delay
	// is already folded into motorOn by the caller), independent of
	// whether PC is inside the RWTS window at this particular instant.
	if !motorOn {
		g.endSession()
	}
}

func (g *fastGate) startSession(pc uint16, cycle uint64) {
	g.session = rwtsSession{active: true, startPC: pc, startCycle: cycle}
	g.sessionSectors = 0
	g.mode = modeFast
	g.tryEnable()
	g.consecutiveReads = 0
	g.phaseChangeCount = 0
}

func (g *fastGate) endSession() {
	if !g.session.active {
		return
	}
	g.session = rwtsSession{}
	g.fastEnabled = false
	g.mode = modeAccurate
	g.sessionSectors = 0
}

func (g *fastGate) tryEnable() {
	if g.fastEnabled || g.latchedOff || !g.enabled {
		return
	}
	g.fastEnabled = true
	g.mode = modeFast
}

// latchPermanent is the one-way, copy-protection-grade trigger: it always
// ends any active session and will not be undone by anything short of
// onDiskSwap/reset.
func (g *fastGate) latchPermanent(reason disableReason) {
	_ = reason
	g.session = rwtsSession{}
	g.latchedOff = true
	g.fastEnabled = false
	g.mode = modeAccurate
	g.consecutiveReads = 0
	g.phaseChangeCount = 0
	g.consecutiveLatchRds = 0
}

// disable applies reason's severity: transient reasons drop back to
// Accurate but leave the gate eligible for Fast again on the next clean
// RWTS entry; everything else is a permanent latch-off. Transient reasons
// are fully suppressed while a session is active, matching RWTS's own
// incidental phase-control writes and brief reads outside its PC window.
func (g *fastGate) disable(reason disableReason, cycle uint64) {
	if g.session.active {
		if reason.transient() {
			return
		}
		g.endSession()
	}
	if reason.transient() {
		g.fastEnabled = false
		g.mode = modeAccurate
		g.consecutiveReads = 0
		g.phaseChangeCount = 0
		return
	}
	g.latchPermanent(reason)
}

// checkSuspicious runs the OFF-trigger heuristics; callers invoke this
// once per nibble read while in Fast mode and outside an active session.
func (g *fastGate) checkSuspicious(phase int, track int, cycle uint64) {
	if g.session.active {
		return
	}
	switch {
	case phase%2 != 0:
		g.disable(reasonHalfTrack, cycle)
	case g.consecutiveReads > maxConsecutiveReads:
		g.disable(reasonExcessiveReads, cycle)
	case g.phaseChangeCount > rapidPhaseThreshold && cycle-g.lastPhaseChangeCyc < rapidPhaseCycles:
		g.disable(reasonRapidPhaseChange, cycle)
	case track > Tracks-1:
		g.disable(reasonInvalidTrack, cycle)
	}
}

// observeLatchRead tracks copy-protection-style timing probes: repeated
// latch reads separated by only a few cycles each, far more often than a
// real RWTS bit-banging loop would produce.
func (g *fastGate) observeLatchRead(cycle uint64) {
	if g.session.active {
		return
	}
	delta := cycle - g.lastLatchCycle
	g.lastLatchCycle = cycle
	if delta <= latchReadWindow {
		g.consecutiveLatchRds++
	} else {
		g.consecutiveLatchRds = 0
	}
	if g.effective() && g.consecutiveLatchRds > excessiveLatchReads {
		g.disable(reasonExcessiveLatchRead, cycle)
	}
}

// observeWrite is the write-side OFF trigger: a write seen while Fast and
// outside a session is a transient disable (back to Accurate, with Fast
// re-armable on the next RWTS run), while a write during an active
// session is the normal phase-control traffic RWTS itself generates and
// is ignored.
func (g *fastGate) observeWrite(cycle uint64) {
	if !g.effective() || g.mode != modeFast {
		return
	}
	if g.session.active {
		return
	}
	g.disable(reasonWriteOperation, cycle)
}

func (g *fastGate) trackPhaseChange(cycle uint64) {
	g.phaseChangeCount++
	g.lastPhaseChangeCyc = cycle
}

func (g *fastGate) trackRead(track int) {
	if track == g.lastTrack {
		g.consecutiveReads++
	} else {
		g.consecutiveReads = 0
		g.lastTrack = track
	}
}
