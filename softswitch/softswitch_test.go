package softswitch

import "testing"

func TestKeyboardStrobeClearedByC010(t *testing.T) {
	b := &Bank{KeyLatch: 0xC1}
	b.Read(0xC010, 0, 0)
	if b.KeyLatch&0x80 != 0 {
		t.Fatalf("reading C010 must clear the data-ready bit")
	}
	if v := b.Read(0xC000, 0, 0); v&0x80 != 0 {
		t.Fatalf("C000 read after C010 should have bit7 clear, got %#x", v)
	}
}

func TestTextMixedPairToggle(t *testing.T) {
	b := &Bank{TextMode: true, Mixed: false}
	b.Read(0xC050, 0, 0) // clear text_mode
	b.Read(0xC053, 0, 0) // set mixed_mode
	if b.TextMode {
		t.Errorf("text_mode should be false after C050")
	}
	if !b.Mixed {
		t.Errorf("mixed_mode should be true after C053")
	}
}

func TestPage2Toggle(t *testing.T) {
	b := &Bank{}
	b.Read(0xC055, 0, 0)
	if !b.Page2 {
		t.Fatalf("C055 should set page2")
	}
	b.Read(0xC054, 0, 0)
	if b.Page2 {
		t.Fatalf("C054 should clear page2")
	}
}

func TestGraphicsTogglesOnWriteToo(t *testing.T) {
	b := &Bank{}
	b.Write(0xC053, 0)
	if !b.Mixed {
		t.Fatalf("writing C053 should also set mixed_mode (read-or-write quirk)")
	}
}

func TestVBLWindow(t *testing.T) {
	b := &Bank{IsIIe: true}
	if v := b.Read(0xC019, 0, 100); v != 0x80 {
		t.Errorf("scanline 100 (active display) should read 0x80, got %#x", v)
	}
	if v := b.Read(0xC019, 0, 200); v != 0x00 {
		t.Errorf("scanline 200 (VBL) should read 0x00, got %#x", v)
	}
}

func TestPaddleTimer(t *testing.T) {
	b := &Bank{}
	b.Paddle[0] = 128
	b.WriteAt(0xC070, 0, 1000) // trigger at cycle 1000

	if v := b.Read(0xC064, 1000+1407, 0); v&0x80 == 0 {
		t.Errorf("at 1407 cycles elapsed, bit7 should still be 1")
	}
	if v := b.Read(0xC064, 1000+1408, 0); v&0x80 != 0 {
		t.Errorf("at 1408 cycles elapsed, bit7 should be 0")
	}
}

type heldButton bool

func (h heldButton) Input() bool { return bool(h) }

func TestButtonAndAnnunciator(t *testing.T) {
	b := &Bank{}
	b.Read(0xC058, 0, 0) // AN0 off
	b.Read(0xC059, 0, 0) // AN0 on
	if !b.Annunciator[0] {
		t.Errorf("C059 should set annunciator 0")
	}

	b.Button[1] = heldButton(true)
	if v := b.Read(0xC062, 0, 0); v&0x80 == 0 {
		t.Errorf("C062 should report button 1 pressed")
	}
}
