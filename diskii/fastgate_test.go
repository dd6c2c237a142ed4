package diskii

import "testing"

func TestFastGateReachesFastAfterCandidateThreshold(t *testing.T) {
	g := newFastGate()
	var cycle uint64 = 1000
	g.observePC(0x3D10, false, cycle, true)
	if g.mode != modeCandidate {
		t.Fatalf("mode after first RWTS hit = %v, want modeCandidate", g.mode)
	}
	cycle += 10
	g.observePC(0x3D20, false, cycle, true)
	if g.mode != modeFast {
		t.Fatalf("mode after candidateThreshold hits = %v, want modeFast", g.mode)
	}
	if !g.session.active {
		t.Fatalf("expected an active RWTS session once Fast is reached")
	}
}

func TestFastGateCandidateResetsOutsideRange(t *testing.T) {
	g := newFastGate()
	g.observePC(0x3D10, false, 100, true)
	if g.mode != modeCandidate {
		t.Fatalf("setup: expected modeCandidate")
	}
	g.observePC(0x1000, false, 200, true)
	if g.mode != modeAccurate {
		t.Fatalf("mode after leaving RWTS range = %v, want modeAccurate", g.mode)
	}
}

func TestFastGateNIBFormatStaysAccurate(t *testing.T) {
	g := newFastGate()
	g.observePC(0x3D10, true, 100, true)
	g.observePC(0x3D20, true, 110, true)
	if g.mode != modeAccurate {
		t.Fatalf("NIB-format media must never leave modeAccurate, got %v", g.mode)
	}
}

func TestFastGateHalfTrackLatchesOffPermanently(t *testing.T) {
	g := newFastGate()
	g.observePC(0x3D10, false, 100, true)
	g.observePC(0x3D20, false, 110, true)
	if g.mode != modeFast {
		t.Fatalf("setup: expected modeFast")
	}
	g.endSession() // leave the session so checkSuspicious isn't suppressed.
	g.checkSuspicious(1 /* odd phase */, 5, 130)
	if !g.latchedOff {
		t.Fatalf("half-track position must permanently latch off")
	}
	// A disk swap (or a cold reset) clears it.
	g.onDiskSwap()
	if g.latchedOff {
		t.Fatalf("onDiskSwap must clear the latch")
	}
}

func TestFastGateWriteOutsideSessionIsTransient(t *testing.T) {
	g := newFastGate()
	g.mode = modeFast
	g.fastEnabled = true
	g.observeWrite(100)
	if g.latchedOff {
		t.Fatalf("a write outside a session is a transient disable, not a permanent latch")
	}
	if g.mode != modeAccurate {
		t.Fatalf("mode after write-triggered disable = %v, want modeAccurate", g.mode)
	}
}

func TestFastGateWriteDuringSessionIgnored(t *testing.T) {
	g := newFastGate()
	g.observePC(0x3D10, false, 100, true)
	g.observePC(0x3D20, false, 110, true)
	g.observeWrite(120)
	if g.mode != modeFast || !g.session.active {
		t.Fatalf("writes during an active RWTS session must not disturb Fast mode")
	}
}

func TestFastGateSessionEndsOnMotorOff(t *testing.T) {
	g := newFastGate()
	g.observePC(0x3D10, false, 100, true)
	g.observePC(0x3D20, false, 110, true)
	g.observePC(0x3D20, false, 120, false) // motor off, no off-delay pending.
	if g.session.active {
		t.Fatalf("session must end once the motor is no longer effectively on")
	}
	if g.mode != modeAccurate {
		t.Fatalf("mode after session end = %v, want modeAccurate", g.mode)
	}
}
