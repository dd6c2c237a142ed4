package machine

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/go-test/deep"
)

func TestSaveStateRoundTrip(t *testing.T) {
	a := newTestMachine(t)
	for i := 0; i < 100; i++ {
		if _, err := a.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	data, err := a.SaveState()
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	b, err := Init(&MachineDef{Model: ModelIIPlus})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := b.LoadROM(buildLoopROM()); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	b.Reset()
	if err := b.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if b.CPU.PC != a.CPU.PC || b.CPU.A != a.CPU.A || b.TotalCycles() != a.TotalCycles() {
		t.Fatalf("mismatch after load: got PC=%#x A=%#x cycles=%d, want PC=%#x A=%#x cycles=%d",
			b.CPU.PC, b.CPU.A, b.TotalCycles(), a.CPU.PC, a.CPU.A, a.TotalCycles())
	}
	if diff := deep.Equal(a.CPU, b.CPU); diff != nil {
		t.Fatalf("CPU state diverged right after load: %v", diff)
	}

	for i := 0; i < 50; i++ {
		ca, erra := a.Step()
		cb, errb := b.Step()
		if erra != nil || errb != nil {
			t.Fatalf("Step %d: erra=%v errb=%v", i, erra, errb)
		}
		if ca != cb {
			t.Fatalf("step %d: cycles diverged: %d vs %d", i, ca, cb)
		}
	}
	if a.TotalCycles() != b.TotalCycles() {
		t.Fatalf("total cycles diverged after continued run: %d vs %d", a.TotalCycles(), b.TotalCycles())
	}
}

func TestSaveStatePreservesRAMContents(t *testing.T) {
	a := newTestMachine(t)
	a.Bus.Write(0x0042, 0xAB)
	a.Bus.Write(0x1234, 0xCD)

	data, err := a.SaveState()
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	b, err := Init(&MachineDef{Model: ModelIIPlus})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := b.LoadROM(buildLoopROM()); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	b.Reset()
	if err := b.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}

	if got := b.Bus.Read(0x0042); got != 0xAB {
		t.Fatalf("$0042 = %#x, want 0xAB", got)
	}
	if got := b.Bus.Read(0x1234); got != 0xCD {
		t.Fatalf("$1234 = %#x, want 0xCD", got)
	}
}

func TestLoadStateRejectsVersionMismatch(t *testing.T) {
	a := newTestMachine(t)
	data, err := a.SaveState()
	if err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	var s SaveState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	s.Version = saveStateVersion + 1

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&s); err != nil {
		t.Fatalf("encode: %v", err)
	}

	err = a.LoadState(buf.Bytes())
	if _, ok := err.(IncompatibleSaveState); !ok {
		t.Fatalf("LoadState error = %v (%T), want IncompatibleSaveState", err, err)
	}
}
