// Package cpu implements the 6502/65C02 processor core used by the Apple II
// machine. It is polymorphic over a bus capability (see Bus) so the same
// core can drive any memory map that implements Read/Write.
package cpu

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sixfivezero/apple2core/irq"
)

// CPUType is an enumeration of the valid CPU types.
type CPUType int

const (
	CPU_UNIMPLEMENTED CPUType = iota // Start of valid cpu enumerations.
	CPU_NMOS                         // Basic NMOS 6502 including undocumented opcodes.
	CPU_CMOS                         // 65C02 CMOS version with documented extensions and NOP'd undefined opcodes.
	CPU_MAX                          // End of CPU enumerations.
)

const (
	NMI_VECTOR   = uint16(0xFFFA)
	RESET_VECTOR = uint16(0xFFFC)
	IRQ_VECTOR   = uint16(0xFFFE)

	P_NEGATIVE  = uint8(0x80)
	P_OVERFLOW  = uint8(0x40)
	P_S1        = uint8(0x20) // Always 1
	P_B         = uint8(0x10) // Only set during BRK. Cleared on all other interrupts.
	P_DECIMAL   = uint8(0x8)
	P_INTERRUPT = uint8(0x4)
	P_ZERO      = uint8(0x2)
	P_CARRY     = uint8(0x1)
)

// Bus is the capability the CPU borrows for the duration of one Step call.
// A top-level machine implements this to fan reads/writes out to RAM, ROM,
// and memory-mapped I/O.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, val uint8)
}

// InvalidCPUState represents an invalid CPU state in the emulator.
type InvalidCPUState struct {
	Reason string
}

// Error implements the interface for error types.
func (e InvalidCPUState) Error() string {
	return fmt.Sprintf("invalid CPU state: %s", e.Reason)
}

// HaltOpcode represents an opcode which halts the CPU (KIL/JAM on NMOS).
type HaltOpcode struct {
	Opcode uint8
}

// Error implements the interface for error types.
func (e HaltOpcode) Error() string {
	return fmt.Sprintf("HALT(0x%.2X) executed", e.Opcode)
}

// Chip holds the full register file and interrupt state of a 6502/65C02.
type Chip struct {
	A           uint8  // Accumulator register
	X           uint8  // X register
	Y           uint8  // Y register
	S           uint8  // Stack pointer
	P           uint8  // Status register
	PC          uint16 // Program counter
	TotalCycles uint64 // Monotonic cycle counter since power on.
	cpuType     CPUType
	irq         irq.Sender
	nmi         irq.Sender
	prevNMI     bool // Edge-detect latch for NMI.
	halted      bool
	haltOpcode  uint8
}

// ChipDef defines a 65xx processor.
type ChipDef struct {
	// Cpu is the distinct cpu type for this implementation (NMOS 6502 or 65C02).
	Cpu CPUType
	// Irq is an optional IRQ source to check before each Step.
	Irq irq.Sender
	// Nmi is an optional edge-triggered NMI source to check before each Step.
	Nmi irq.Sender
}

// Init creates a new 65XX CPU of the requested type. The returned chip has
// randomized registers; call Reset to bring it to a defined power-on state.
func Init(def *ChipDef) (*Chip, error) {
	if def.Cpu <= CPU_UNIMPLEMENTED || def.Cpu >= CPU_MAX {
		return nil, InvalidCPUState{fmt.Sprintf("CPU type %d is invalid", def.Cpu)}
	}
	c := &Chip{
		cpuType: def.Cpu,
		irq:     def.Irq,
		nmi:     def.Nmi,
	}
	rand.Seed(time.Now().UnixNano())
	c.A = uint8(rand.Intn(256))
	c.X = uint8(rand.Intn(256))
	c.Y = uint8(rand.Intn(256))
	c.S = uint8(rand.Intn(256))
	c.P = P_S1
	return c, nil
}

// Type returns the CPU variant this chip was configured with.
func (c *Chip) Type() CPUType {
	return c.cpuType
}

// Halted reports whether the CPU has executed a halt (KIL/JAM) opcode.
func (c *Chip) Halted() bool {
	return c.halted
}

// Reset re-initializes the register file per the 6502 reset sequence: stack
// pointer pinned to 0xFD, interrupts disabled, PC loaded from the reset
// vector. Always consumes 7 cycles. A/X/Y are left untouched, matching
// spec.md's definition of Reset.
func (c *Chip) Reset(bus Bus) int {
	c.S = 0xFD
	c.P |= P_INTERRUPT
	c.halted = false
	c.haltOpcode = 0
	c.prevNMI = c.nmi != nil && c.nmi.Raised()
	lo := bus.Read(RESET_VECTOR)
	hi := bus.Read(RESET_VECTOR + 1)
	c.PC = uint16(hi)<<8 | uint16(lo)
	c.TotalCycles += 7
	return 7
}

// Step executes one instruction (servicing a pending NMI/IRQ first if one
// applies) and returns the number of cycles it consumed.
func (c *Chip) Step(bus Bus) (int, error) {
	if c.halted {
		return 0, HaltOpcode{c.haltOpcode}
	}

	nmiNow := c.nmi != nil && c.nmi.Raised()
	edge := nmiNow && !c.prevNMI
	c.prevNMI = nmiNow
	if edge {
		c.serviceInterrupt(bus, NMI_VECTOR, false)
		c.TotalCycles += 7
		return 7, nil
	}
	if c.irq != nil && c.irq.Raised() && c.P&P_INTERRUPT == 0 {
		c.serviceInterrupt(bus, IRQ_VECTOR, false)
		c.TotalCycles += 7
		return 7, nil
	}

	cycles, err := c.processOpcode(bus)
	if err != nil {
		c.halted = true
		return 0, err
	}
	c.TotalCycles += uint64(cycles)
	return cycles, nil
}

// serviceInterrupt pushes PC/P and loads PC from the given vector. brk is
// true only for a software BRK (sets the B flag in the pushed status).
func (c *Chip) serviceInterrupt(bus Bus, vector uint16, brk bool) {
	c.pushStack(bus, uint8(c.PC>>8))
	c.pushStack(bus, uint8(c.PC&0xFF))
	push := c.P | P_S1
	if brk {
		push |= P_B
	} else {
		push &^= P_B
	}
	c.pushStack(bus, push)
	c.P |= P_INTERRUPT
	if c.cpuType == CPU_CMOS {
		c.P &^= P_DECIMAL
	}
	lo := bus.Read(vector)
	hi := bus.Read(vector + 1)
	c.PC = uint16(hi)<<8 | uint16(lo)
}

func (c *Chip) pushStack(bus Bus, val uint8) {
	bus.Write(0x0100+uint16(c.S), val)
	c.S--
}

func (c *Chip) popStack(bus Bus) uint8 {
	c.S++
	return bus.Read(0x0100 + uint16(c.S))
}

func (c *Chip) fetch(bus Bus) uint8 {
	v := bus.Read(c.PC)
	c.PC++
	return v
}

func (c *Chip) fetchAddr(bus Bus) uint16 {
	lo := c.fetch(bus)
	hi := c.fetch(bus)
	return uint16(hi)<<8 | uint16(lo)
}

// zeroCheck sets the Z flag based on the register contents.
func (c *Chip) zeroCheck(reg uint8) {
	c.P &^= P_ZERO
	if reg == 0 {
		c.P |= P_ZERO
	}
}

// negativeCheck sets the N flag based on the register contents.
func (c *Chip) negativeCheck(reg uint8) {
	c.P &^= P_NEGATIVE
	if reg&P_NEGATIVE != 0 {
		c.P |= P_NEGATIVE
	}
}

// carryCheck sets the C flag if the 16 bit ALU result carried out of bit 7.
func (c *Chip) carryCheck(res uint16) {
	c.P &^= P_CARRY
	if res >= 0x100 {
		c.P |= P_CARRY
	}
}

// overflowCheck sets the V flag if the ALU operation caused a two's
// complement sign change. Taken from the classic 6502 overflow derivation.
func (c *Chip) overflowCheck(reg, arg, res uint8) {
	c.P &^= P_OVERFLOW
	if (reg^res)&(arg^res)&0x80 != 0 {
		c.P |= P_OVERFLOW
	}
}

func (c *Chip) loadRegister(reg *uint8, val uint8) {
	*reg = val
	c.zeroCheck(val)
	c.negativeCheck(val)
}
