package cpu

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-test/deep"
)

// flatMemory is a minimal Bus backed by a flat 64KiB array, the same shape
// as the teacher's RAM test double.
type flatMemory struct {
	mem [65536]uint8
}

func (f *flatMemory) Read(addr uint16) uint8        { return f.mem[addr] }
func (f *flatMemory) Write(addr uint16, val uint8)  { f.mem[addr] = val }
func (f *flatMemory) load(addr uint16, data []uint8) {
	copy(f.mem[addr:], data)
}

func newTestChip(t *testing.T, typ CPUType) (*Chip, *flatMemory) {
	t.Helper()
	c, err := Init(&ChipDef{Cpu: typ})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	bus := &flatMemory{}
	return c, bus
}

func resetAt(t *testing.T, c *Chip, bus *flatMemory, pc uint16) {
	t.Helper()
	bus.mem[RESET_VECTOR] = uint8(pc & 0xFF)
	bus.mem[RESET_VECTOR+1] = uint8(pc >> 8)
	if got := c.Reset(bus); got != 7 {
		t.Fatalf("Reset() cycles = %d, want 7", got)
	}
	if c.S != 0xFD {
		t.Fatalf("Reset() S = %#x, want 0xFD", c.S)
	}
	if c.P&P_INTERRUPT == 0 {
		t.Fatalf("Reset() did not set I flag")
	}
	if c.PC != pc {
		t.Fatalf("Reset() PC = %#x, want %#x", c.PC, pc)
	}
}

func TestResetVector(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x1234)
}

func TestLDAImmediateFlags(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x0300)
	bus.load(0x0300, []uint8{0xA9, 0x00})
	cy, err := c.Step(bus)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cy != 2 {
		t.Errorf("cycles = %d, want 2", cy)
	}
	if c.A != 0 {
		t.Errorf("A = %#x, want 0", c.A)
	}
	if c.P&P_ZERO == 0 {
		t.Errorf("Z flag not set for A=0")
	}

	bus.load(0x0301, []uint8{0xA9, 0x80})
	c.PC = 0x0301
	if _, err := c.Step(bus); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if c.P&P_NEGATIVE == 0 {
		t.Errorf("N flag not set for A=0x80")
	}
}

func TestADCBinary(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x0300)
	c.A = 0x50
	c.P &^= P_CARRY
	bus.load(0x0300, []uint8{0x69, 0x50}) // ADC #$50
	if _, err := c.Step(bus); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if c.A != 0xA0 {
		t.Errorf("A = %#x, want 0xA0", c.A)
	}
	if c.P&P_OVERFLOW == 0 {
		t.Errorf("V flag should be set (0x50+0x50 overflows signed)")
	}
	if c.P&P_CARRY != 0 {
		t.Errorf("C flag should be clear")
	}
}

func TestADCDecimalNMOSvsCMOS(t *testing.T) {
	for _, typ := range []CPUType{CPU_NMOS, CPU_CMOS} {
		c, bus := newTestChip(t, typ)
		resetAt(t, c, bus, 0x0300)
		c.A = 0x99
		c.P |= P_DECIMAL
		c.P &^= P_CARRY
		bus.load(0x0300, []uint8{0x69, 0x01}) // ADC #$01, BCD
		cy, err := c.Step(bus)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if c.A != 0x00 {
			t.Errorf("%v: A = %#x, want 0x00 (99+01 BCD wraps)", typ, c.A)
		}
		if c.P&P_CARRY == 0 {
			t.Errorf("%v: carry should be set out of decimal ADC", typ)
		}
		wantCycles := 2
		if typ == CPU_CMOS {
			wantCycles = 3 // 65C02 decimal ADC/SBC costs one extra cycle
		}
		if cy != wantCycles {
			t.Errorf("%v: cycles = %d, want %d", typ, cy, wantCycles)
		}
	}
}

func TestJMPIndirectPageWrapBug(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x0300)
	bus.mem[0x10FF] = 0x00
	bus.mem[0x1000] = 0x80 // NMOS reads high byte from $1000, not $1100
	bus.mem[0x1100] = 0x99
	bus.load(0x0300, []uint8{0x6C, 0xFF, 0x10}) // JMP ($10FF)
	cy, err := c.Step(bus)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cy != 5 {
		t.Errorf("cycles = %d, want 5", cy)
	}
	if c.PC != 0x8000 {
		t.Errorf("PC = %#x, want 0x8000 (page-wrap bug)", c.PC)
	}
}

func TestJMPIndirectCMOSFixed(t *testing.T) {
	c, bus := newTestChip(t, CPU_CMOS)
	resetAt(t, c, bus, 0x0300)
	bus.mem[0x10FF] = 0x00
	bus.mem[0x1000] = 0x80
	bus.mem[0x1100] = 0x99
	bus.load(0x0300, []uint8{0x6C, 0xFF, 0x10})
	cy, err := c.Step(bus)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cy != 6 {
		t.Errorf("cycles = %d, want 6 (65C02 fix costs one extra cycle)", cy)
	}
	if c.PC != 0x9900 {
		t.Errorf("PC = %#x, want 0x9900 (bug fixed, extra cycle spent re-fetching)", c.PC)
	}
}

func TestBranchCycleCosts(t *testing.T) {
	tests := []struct {
		name   string
		pc     uint16
		offset uint8
		taken  bool
		want   int
	}{
		{"not taken", 0x0300, 0x10, false, 2},
		{"taken, same page", 0x0300, 0x10, true, 3},
		{"taken, crosses page", 0x03F0, 0x20, true, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, bus := newTestChip(t, CPU_NMOS)
			resetAt(t, c, bus, tc.pc)
			if tc.taken {
				c.P &^= P_ZERO // BNE taken when Z clear
			} else {
				c.P |= P_ZERO
			}
			bus.load(tc.pc, []uint8{0xD0, tc.offset}) // BNE
			cy, err := c.Step(bus)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if cy != tc.want {
				t.Errorf("cycles = %d, want %d", cy, tc.want)
			}
		})
	}
}

func TestBRKPushesPCPlus2AndSetsB(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x0300)
	bus.mem[IRQ_VECTOR] = 0x00
	bus.mem[IRQ_VECTOR+1] = 0x40
	bus.load(0x0300, []uint8{0x00, 0xEA}) // BRK, signature byte
	cy, err := c.Step(bus)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cy != 7 {
		t.Errorf("cycles = %d, want 7", cy)
	}
	if c.PC != 0x4000 {
		t.Errorf("PC = %#x, want 0x4000", c.PC)
	}
	pushedP := bus.mem[0x0100+uint16(c.S)+1]
	if pushedP&P_B == 0 {
		t.Errorf("pushed P missing B flag: %#x", pushedP)
	}
	lo := bus.mem[0x0100+uint16(c.S)+2]
	hi := bus.mem[0x0100+uint16(c.S)+3]
	ret := uint16(hi)<<8 | uint16(lo)
	if ret != 0x0302 {
		t.Errorf("pushed return addr = %#x, want 0x0302", ret)
	}
}

func TestPLPForcesBitsAndClearsB(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x0300)
	c.pushStack(bus, 0xFF) // all bits set, including B
	bus.load(0x0300, []uint8{0x28}) // PLP
	if _, err := c.Step(bus); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if c.P&P_B != 0 {
		t.Errorf("PLP should clear B in register file: P=%#x", c.P)
	}
	if c.P&P_S1 == 0 {
		t.Errorf("PLP should force bit 5: P=%#x", c.P)
	}
}

func TestRMWExtraCycle(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x0300)
	bus.mem[0x0050] = 0x01
	bus.load(0x0300, []uint8{0xE6, 0x50}) // INC $50
	cy, err := c.Step(bus)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cy != 5 {
		t.Errorf("cycles = %d, want 5", cy)
	}
	if bus.mem[0x0050] != 0x02 {
		t.Errorf("$50 = %#x, want 0x02", bus.mem[0x0050])
	}
}

func Test65C02ExtensionsNotOnNMOS(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x0300)
	bus.load(0x0300, []uint8{0x80, 0x02, 0xA9, 0x42}) // BRA on CMOS; NOP #imm on NMOS
	cy, err := c.Step(bus)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cy != 2 {
		t.Errorf("cycles = %d, want 2 (NOP #imm on NMOS)", cy)
	}
	if c.PC != 0x0302 {
		t.Errorf("PC = %#x, want 0x0302 (BRA must not have branched on NMOS)", c.PC)
	}
}

func Test65C02BRATakesBranch(t *testing.T) {
	c, bus := newTestChip(t, CPU_CMOS)
	resetAt(t, c, bus, 0x0300)
	bus.load(0x0300, []uint8{0x80, 0x10}) // BRA +16
	cy, err := c.Step(bus)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cy != 3 {
		t.Errorf("cycles = %d, want 3", cy)
	}
	if c.PC != 0x0312 {
		t.Errorf("PC = %#x, want 0x0312", c.PC)
	}
}

func TestSTZ(t *testing.T) {
	c, bus := newTestChip(t, CPU_CMOS)
	resetAt(t, c, bus, 0x0300)
	bus.mem[0x0050] = 0xFF
	bus.load(0x0300, []uint8{0x64, 0x50}) // STZ $50
	if _, err := c.Step(bus); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if bus.mem[0x0050] != 0 {
		t.Errorf("$50 = %#x, want 0", bus.mem[0x0050])
	}
}

func TestRMBAndSMB(t *testing.T) {
	c, bus := newTestChip(t, CPU_CMOS)
	resetAt(t, c, bus, 0x0300)
	bus.mem[0x0050] = 0xFF
	bus.load(0x0300, []uint8{0x07, 0x50}) // RMB0 $50
	if _, err := c.Step(bus); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if bus.mem[0x0050] != 0xFE {
		t.Errorf("$50 = %#x, want 0xFE", bus.mem[0x0050])
	}
	bus.mem[0x0051] = 0x00
	bus.load(0x0302, []uint8{0x87, 0x51}) // SMB0 $51
	c.PC = 0x0302
	if _, err := c.Step(bus); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if bus.mem[0x0051] != 0x01 {
		t.Errorf("$51 = %#x, want 0x01", bus.mem[0x0051])
	}
}

func TestBBRBranches(t *testing.T) {
	c, bus := newTestChip(t, CPU_CMOS)
	resetAt(t, c, bus, 0x0300)
	bus.mem[0x0050] = 0x00 // bit 0 clear
	bus.load(0x0300, []uint8{0x0F, 0x50, 0x05}) // BBR0 $50, +5
	cy, err := c.Step(bus)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cy != 6 {
		t.Errorf("cycles = %d, want 6", cy)
	}
	if c.PC != 0x0308 {
		t.Errorf("PC = %#x, want 0x0308", c.PC)
	}
}

func TestNMOSUndocumentedLAX(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x0300)
	bus.mem[0x0050] = 0x42
	bus.load(0x0300, []uint8{0xA7, 0x50}) // LAX $50
	if _, err := c.Step(bus); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if c.A != 0x42 || c.X != 0x42 {
		t.Errorf("A=%#x X=%#x, want both 0x42", c.A, c.X)
	}
}

func TestNMOSJamOpcodeHalts(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x0300)
	bus.load(0x0300, []uint8{0x02})
	if _, err := c.Step(bus); err == nil {
		t.Fatalf("expected HaltOpcode error")
	}
	if !c.Halted() {
		t.Fatalf("chip should report halted")
	}
	if _, err := c.Step(bus); err == nil {
		t.Fatalf("subsequent Step should keep returning an error once halted")
	}
}

func TestNMIEdgeTriggered(t *testing.T) {
	c, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c, bus, 0x0300)
	bus.mem[NMI_VECTOR] = 0x00
	bus.mem[NMI_VECTOR+1] = 0x50
	n := &fakeSender{}
	c.nmi = n
	c.prevNMI = false

	n.raised = true
	cy, err := c.Step(bus)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cy != 7 || c.PC != 0x5000 {
		t.Fatalf("NMI not serviced: cy=%d PC=%#x", cy, c.PC)
	}

	// Level held high (no new edge) must not re-trigger.
	c.PC = 0x0300
	bus.load(0x0300, []uint8{0xEA})
	cy, err = c.Step(bus)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cy != 2 {
		t.Errorf("NMI retriggered without a new edge: cy=%d PC=%#x", cy, c.PC)
	}
}

type fakeSender struct{ raised bool }

func (f *fakeSender) Raised() bool { return f.raised }

func TestRegisterDiffDump(t *testing.T) {
	// Exercises the teacher's preferred assertion style for this package:
	// deep.Equal for the diff, spew.Sdump only to render a failure message.
	c1, bus := newTestChip(t, CPU_NMOS)
	resetAt(t, c1, bus, 0x0300)
	c2, _ := newTestChip(t, CPU_NMOS)
	c2.A, c2.X, c2.Y, c2.S, c2.P, c2.PC = c1.A, c1.X, c1.Y, c1.S, c1.P, c1.PC
	c2.TotalCycles = c1.TotalCycles
	c2.cpuType = c1.cpuType
	if diff := deep.Equal(c1, c2); diff != nil {
		t.Fatalf("unexpected chip diff: %v\n%s", diff, spew.Sdump(c1, c2))
	}
}
