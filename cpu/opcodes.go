package cpu

// processOpcode fetches and executes one instruction, returning the cycles
// it consumed. The opcode space is fully populated: all 151 legal 6502/65C02
// shared opcodes, the NMOS undocumented opcodes (for CPU_NMOS), and the
// 65C02 extensions plus WDC-convention reserved-opcode NOPs (for CPU_CMOS).
func (c *Chip) processOpcode(bus Bus) (int, error) {
	op := c.fetch(bus)
	cmos := c.cpuType == CPU_CMOS

	switch op {
	// --- control/stack/flags ---
	case 0x00: // BRK
		c.PC++
		push := c.P | P_S1 | P_B
		c.pushStack(bus, uint8(c.PC>>8))
		c.pushStack(bus, uint8(c.PC&0xFF))
		c.pushStack(bus, push)
		c.P |= P_INTERRUPT
		if cmos {
			c.P &^= P_DECIMAL
		}
		lo := bus.Read(IRQ_VECTOR)
		hi := bus.Read(IRQ_VECTOR + 1)
		c.PC = uint16(hi)<<8 | uint16(lo)
		return 7, nil
	case 0x08: // PHP
		c.pushStack(bus, c.P|P_S1|P_B)
		return 3, nil
	case 0x28: // PLP
		c.P = (c.popStack(bus) &^ P_B) | P_S1
		return 4, nil
	case 0x40: // RTI
		c.P = (c.popStack(bus) &^ P_B) | P_S1
		lo := c.popStack(bus)
		hi := c.popStack(bus)
		c.PC = uint16(hi)<<8 | uint16(lo)
		return 6, nil
	case 0x48: // PHA
		c.pushStack(bus, c.A)
		return 3, nil
	case 0x68: // PLA
		c.loadRegister(&c.A, c.popStack(bus))
		return 4, nil
	case 0x20: // JSR abs
		addr := c.fetchAddr(bus)
		ret := c.PC - 1
		c.pushStack(bus, uint8(ret>>8))
		c.pushStack(bus, uint8(ret&0xFF))
		c.PC = addr
		return 6, nil
	case 0x60: // RTS
		lo := c.popStack(bus)
		hi := c.popStack(bus)
		c.PC = (uint16(hi)<<8 | uint16(lo)) + 1
		return 6, nil
	case 0x18:
		c.P &^= P_CARRY
		return 2, nil
	case 0x38:
		c.P |= P_CARRY
		return 2, nil
	case 0x58:
		c.P &^= P_INTERRUPT
		return 2, nil
	case 0x78:
		c.P |= P_INTERRUPT
		return 2, nil
	case 0xB8:
		c.P &^= P_OVERFLOW
		return 2, nil
	case 0xD8:
		c.P &^= P_DECIMAL
		return 2, nil
	case 0xF8:
		c.P |= P_DECIMAL
		return 2, nil
	case 0xEA:
		return 2, nil
	case 0x4C: // JMP abs
		c.PC = c.fetchAddr(bus)
		return 3, nil
	case 0x6C: // JMP (abs)
		ptr := c.fetchAddr(bus)
		var lo, hi uint8
		if cmos {
			lo = bus.Read(ptr)
			hi = bus.Read(ptr + 1)
			c.PC = uint16(hi)<<8 | uint16(lo)
			return 6, nil
		}
		lo = bus.Read(ptr)
		hiAddr := (ptr & 0xFF00) | uint16(uint8(ptr&0xFF)+1) // NMOS page-wrap bug
		hi = bus.Read(hiAddr)
		c.PC = uint16(hi)<<8 | uint16(lo)
		return 5, nil
	case 0x7C: // JMP (abs,X), 65C02 only
		if !cmos {
			break
		}
		base := c.fetchAddr(bus)
		ptr := base + uint16(c.X)
		lo := bus.Read(ptr)
		hi := bus.Read(ptr + 1)
		c.PC = uint16(hi)<<8 | uint16(lo)
		return 6, nil

	// --- transfers ---
	case 0xAA:
		c.loadRegister(&c.X, c.A)
		return 2, nil
	case 0x8A:
		c.loadRegister(&c.A, c.X)
		return 2, nil
	case 0xA8:
		c.loadRegister(&c.Y, c.A)
		return 2, nil
	case 0x98:
		c.loadRegister(&c.A, c.Y)
		return 2, nil
	case 0xBA:
		c.loadRegister(&c.X, c.S)
		return 2, nil
	case 0x9A:
		c.S = c.X
		return 2, nil
	case 0xCA:
		c.loadRegister(&c.X, c.X-1)
		return 2, nil
	case 0xE8:
		c.loadRegister(&c.X, c.X+1)
		return 2, nil
	case 0x88:
		c.loadRegister(&c.Y, c.Y-1)
		return 2, nil
	case 0xC8:
		c.loadRegister(&c.Y, c.Y+1)
		return 2, nil

	// --- branches ---
	case 0x10:
		return c.branch(bus, c.P&P_NEGATIVE == 0), nil
	case 0x30:
		return c.branch(bus, c.P&P_NEGATIVE != 0), nil
	case 0x50:
		return c.branch(bus, c.P&P_OVERFLOW == 0), nil
	case 0x70:
		return c.branch(bus, c.P&P_OVERFLOW != 0), nil
	case 0x90:
		return c.branch(bus, c.P&P_CARRY == 0), nil
	case 0xB0:
		return c.branch(bus, c.P&P_CARRY != 0), nil
	case 0xD0:
		return c.branch(bus, c.P&P_ZERO == 0), nil
	case 0xF0:
		return c.branch(bus, c.P&P_ZERO != 0), nil
	case 0x80: // BRA, 65C02 only
		if cmos {
			return c.branch(bus, true), nil
		}
		// NMOS undoc: NOP #imm, 2 cycles.
		c.fetch(bus)
		return 2, nil

	// --- loads ---
	case 0xA9:
		v, cy := c.loadImmediate(bus)
		c.loadRegister(&c.A, v)
		return cy, nil
	case 0xA5:
		return c.load(bus, c.loadZP, func(v uint8) { c.loadRegister(&c.A, v) }), nil
	case 0xB5:
		return c.load(bus, c.loadZPX, func(v uint8) { c.loadRegister(&c.A, v) }), nil
	case 0xAD:
		return c.load(bus, c.loadAbs, func(v uint8) { c.loadRegister(&c.A, v) }), nil
	case 0xBD:
		return c.load(bus, c.loadAbsX, func(v uint8) { c.loadRegister(&c.A, v) }), nil
	case 0xB9:
		return c.load(bus, c.loadAbsY, func(v uint8) { c.loadRegister(&c.A, v) }), nil
	case 0xA1:
		return c.load(bus, c.loadIndirectX, func(v uint8) { c.loadRegister(&c.A, v) }), nil
	case 0xB1:
		return c.load(bus, c.loadIndirectY, func(v uint8) { c.loadRegister(&c.A, v) }), nil
	case 0xB2: // LDA (zp), 65C02
		if !cmos {
			break
		}
		return c.load(bus, c.loadZPIndirect, func(v uint8) { c.loadRegister(&c.A, v) }), nil

	case 0xA2:
		v, cy := c.loadImmediate(bus)
		c.loadRegister(&c.X, v)
		return cy, nil
	case 0xA6:
		return c.load(bus, c.loadZP, func(v uint8) { c.loadRegister(&c.X, v) }), nil
	case 0xB6:
		return c.load(bus, c.loadZPY, func(v uint8) { c.loadRegister(&c.X, v) }), nil
	case 0xAE:
		return c.load(bus, c.loadAbs, func(v uint8) { c.loadRegister(&c.X, v) }), nil
	case 0xBE:
		return c.load(bus, c.loadAbsY, func(v uint8) { c.loadRegister(&c.X, v) }), nil

	case 0xA0:
		v, cy := c.loadImmediate(bus)
		c.loadRegister(&c.Y, v)
		return cy, nil
	case 0xA4:
		return c.load(bus, c.loadZP, func(v uint8) { c.loadRegister(&c.Y, v) }), nil
	case 0xB4:
		return c.load(bus, c.loadZPX, func(v uint8) { c.loadRegister(&c.Y, v) }), nil
	case 0xAC:
		return c.load(bus, c.loadAbs, func(v uint8) { c.loadRegister(&c.Y, v) }), nil
	case 0xBC:
		return c.load(bus, c.loadAbsX, func(v uint8) { c.loadRegister(&c.Y, v) }), nil

	// --- stores ---
	case 0x85:
		return c.store(bus, c.addrZP, c.A), nil
	case 0x95:
		return c.store(bus, c.addrZPX, c.A), nil
	case 0x8D:
		return c.store(bus, c.addrAbs, c.A), nil
	case 0x9D:
		return c.store(bus, c.addrAbsXStore, c.A), nil
	case 0x99:
		return c.store(bus, c.addrAbsYStore, c.A), nil
	case 0x81:
		return c.store(bus, c.addrIndirectXStore, c.A), nil
	case 0x91:
		return c.store(bus, c.addrIndirectYStore, c.A), nil
	case 0x92: // STA (zp), 65C02
		if !cmos {
			break
		}
		return c.store(bus, c.addrZPIndirectStore, c.A), nil
	case 0x86:
		return c.store(bus, c.addrZP, c.X), nil
	case 0x96:
		return c.store(bus, c.addrZPY, c.X), nil
	case 0x8E:
		return c.store(bus, c.addrAbs, c.X), nil
	case 0x84:
		return c.store(bus, c.addrZP, c.Y), nil
	case 0x94:
		return c.store(bus, c.addrZPX, c.Y), nil
	case 0x8C:
		return c.store(bus, c.addrAbs, c.Y), nil

	// --- STZ, 65C02 only ---
	case 0x64:
		if !cmos {
			break
		}
		return c.store(bus, c.addrZP, 0), nil
	case 0x74:
		if !cmos {
			break
		}
		return c.store(bus, c.addrZPX, 0), nil
	case 0x9C:
		if !cmos {
			break
		}
		return c.store(bus, c.addrAbs, 0), nil
	case 0x9E:
		if !cmos {
			break
		}
		return c.store(bus, c.addrAbsXStore, 0), nil

	// --- PHX/PLX/PHY/PLY, 65C02 only; NOP(implied) on NMOS ---
	case 0xDA:
		if !cmos {
			break
		}
		c.pushStack(bus, c.X)
		return 3, nil
	case 0xFA:
		if !cmos {
			break
		}
		c.loadRegister(&c.X, c.popStack(bus))
		return 4, nil
	case 0x5A:
		if !cmos {
			break
		}
		c.pushStack(bus, c.Y)
		return 3, nil
	case 0x7A:
		if !cmos {
			break
		}
		c.loadRegister(&c.Y, c.popStack(bus))
		return 4, nil

	// --- INC A / DEC A, 65C02 only ---
	case 0x1A:
		if !cmos {
			break
		}
		c.loadRegister(&c.A, c.A+1)
		return 2, nil
	case 0x3A:
		if !cmos {
			break
		}
		c.loadRegister(&c.A, c.A-1)
		return 2, nil

	// --- ALU accumulator ops ---
	case 0x09:
		v, cy := c.loadImmediate(bus)
		c.opORA(v)
		return cy, nil
	case 0x05:
		return c.load(bus, c.loadZP, c.opORA), nil
	case 0x15:
		return c.load(bus, c.loadZPX, c.opORA), nil
	case 0x0D:
		return c.load(bus, c.loadAbs, c.opORA), nil
	case 0x1D:
		return c.load(bus, c.loadAbsX, c.opORA), nil
	case 0x19:
		return c.load(bus, c.loadAbsY, c.opORA), nil
	case 0x01:
		return c.load(bus, c.loadIndirectX, c.opORA), nil
	case 0x11:
		return c.load(bus, c.loadIndirectY, c.opORA), nil
	case 0x12:
		if !cmos {
			break
		}
		return c.load(bus, c.loadZPIndirect, c.opORA), nil

	case 0x29:
		v, cy := c.loadImmediate(bus)
		c.opAND(v)
		return cy, nil
	case 0x25:
		return c.load(bus, c.loadZP, c.opAND), nil
	case 0x35:
		return c.load(bus, c.loadZPX, c.opAND), nil
	case 0x2D:
		return c.load(bus, c.loadAbs, c.opAND), nil
	case 0x3D:
		return c.load(bus, c.loadAbsX, c.opAND), nil
	case 0x39:
		return c.load(bus, c.loadAbsY, c.opAND), nil
	case 0x21:
		return c.load(bus, c.loadIndirectX, c.opAND), nil
	case 0x31:
		return c.load(bus, c.loadIndirectY, c.opAND), nil
	case 0x32:
		if !cmos {
			break
		}
		return c.load(bus, c.loadZPIndirect, c.opAND), nil

	case 0x49:
		v, cy := c.loadImmediate(bus)
		c.opEOR(v)
		return cy, nil
	case 0x45:
		return c.load(bus, c.loadZP, c.opEOR), nil
	case 0x55:
		return c.load(bus, c.loadZPX, c.opEOR), nil
	case 0x4D:
		return c.load(bus, c.loadAbs, c.opEOR), nil
	case 0x5D:
		return c.load(bus, c.loadAbsX, c.opEOR), nil
	case 0x59:
		return c.load(bus, c.loadAbsY, c.opEOR), nil
	case 0x41:
		return c.load(bus, c.loadIndirectX, c.opEOR), nil
	case 0x51:
		return c.load(bus, c.loadIndirectY, c.opEOR), nil
	case 0x52:
		if !cmos {
			break
		}
		return c.load(bus, c.loadZPIndirect, c.opEOR), nil

	case 0x69:
		v, cy := c.loadImmediate(bus)
		c.opADC(v)
		return cy + c.decimalExtraCycle(), nil
	case 0x65:
		cy := c.load(bus, c.loadZP, c.opADC)
		return cy + c.decimalExtraCycle(), nil
	case 0x75:
		cy := c.load(bus, c.loadZPX, c.opADC)
		return cy + c.decimalExtraCycle(), nil
	case 0x6D:
		cy := c.load(bus, c.loadAbs, c.opADC)
		return cy + c.decimalExtraCycle(), nil
	case 0x7D:
		cy := c.load(bus, c.loadAbsX, c.opADC)
		return cy + c.decimalExtraCycle(), nil
	case 0x79:
		cy := c.load(bus, c.loadAbsY, c.opADC)
		return cy + c.decimalExtraCycle(), nil
	case 0x61:
		cy := c.load(bus, c.loadIndirectX, c.opADC)
		return cy + c.decimalExtraCycle(), nil
	case 0x71:
		cy := c.load(bus, c.loadIndirectY, c.opADC)
		return cy + c.decimalExtraCycle(), nil
	case 0x72:
		if !cmos {
			break
		}
		cy := c.load(bus, c.loadZPIndirect, c.opADC)
		return cy + c.decimalExtraCycle(), nil

	case 0xE9:
		v, cy := c.loadImmediate(bus)
		c.opSBC(v)
		return cy + c.decimalExtraCycle(), nil
	case 0xE5:
		cy := c.load(bus, c.loadZP, c.opSBC)
		return cy + c.decimalExtraCycle(), nil
	case 0xF5:
		cy := c.load(bus, c.loadZPX, c.opSBC)
		return cy + c.decimalExtraCycle(), nil
	case 0xED:
		cy := c.load(bus, c.loadAbs, c.opSBC)
		return cy + c.decimalExtraCycle(), nil
	case 0xFD:
		cy := c.load(bus, c.loadAbsX, c.opSBC)
		return cy + c.decimalExtraCycle(), nil
	case 0xF9:
		cy := c.load(bus, c.loadAbsY, c.opSBC)
		return cy + c.decimalExtraCycle(), nil
	case 0xE1:
		cy := c.load(bus, c.loadIndirectX, c.opSBC)
		return cy + c.decimalExtraCycle(), nil
	case 0xF1:
		cy := c.load(bus, c.loadIndirectY, c.opSBC)
		return cy + c.decimalExtraCycle(), nil
	case 0xF2:
		if !cmos {
			break
		}
		cy := c.load(bus, c.loadZPIndirect, c.opSBC)
		return cy + c.decimalExtraCycle(), nil

	// --- compares ---
	case 0xC9:
		v, cy := c.loadImmediate(bus)
		c.compare(c.A, v)
		return cy, nil
	case 0xC5:
		return c.load(bus, c.loadZP, func(v uint8) { c.compare(c.A, v) }), nil
	case 0xD5:
		return c.load(bus, c.loadZPX, func(v uint8) { c.compare(c.A, v) }), nil
	case 0xCD:
		return c.load(bus, c.loadAbs, func(v uint8) { c.compare(c.A, v) }), nil
	case 0xDD:
		return c.load(bus, c.loadAbsX, func(v uint8) { c.compare(c.A, v) }), nil
	case 0xD9:
		return c.load(bus, c.loadAbsY, func(v uint8) { c.compare(c.A, v) }), nil
	case 0xC1:
		return c.load(bus, c.loadIndirectX, func(v uint8) { c.compare(c.A, v) }), nil
	case 0xD1:
		return c.load(bus, c.loadIndirectY, func(v uint8) { c.compare(c.A, v) }), nil
	case 0xD2:
		if !cmos {
			break
		}
		return c.load(bus, c.loadZPIndirect, func(v uint8) { c.compare(c.A, v) }), nil

	case 0xE0:
		v, cy := c.loadImmediate(bus)
		c.compare(c.X, v)
		return cy, nil
	case 0xE4:
		return c.load(bus, c.loadZP, func(v uint8) { c.compare(c.X, v) }), nil
	case 0xEC:
		return c.load(bus, c.loadAbs, func(v uint8) { c.compare(c.X, v) }), nil

	case 0xC0:
		v, cy := c.loadImmediate(bus)
		c.compare(c.Y, v)
		return cy, nil
	case 0xC4:
		return c.load(bus, c.loadZP, func(v uint8) { c.compare(c.Y, v) }), nil
	case 0xCC:
		return c.load(bus, c.loadAbs, func(v uint8) { c.compare(c.Y, v) }), nil

	// --- BIT ---
	case 0x24:
		return c.load(bus, c.loadZP, c.opBIT), nil
	case 0x2C:
		return c.load(bus, c.loadAbs, c.opBIT), nil
	case 0x89: // BIT #imm, 65C02
		if !cmos {
			break
		}
		v, cy := c.loadImmediate(bus)
		c.opBITImmediate(v)
		return cy, nil
	case 0x34: // BIT zp,X, 65C02
		if !cmos {
			break
		}
		return c.load(bus, c.loadZPX, c.opBIT), nil
	case 0x3C: // BIT abs,X, 65C02
		if !cmos {
			break
		}
		return c.load(bus, c.loadAbsX, c.opBIT), nil

	// --- shifts/rotates, accumulator forms ---
	case 0x0A:
		c.A = c.opASL(c.A)
		return 2, nil
	case 0x4A:
		c.A = c.opLSR(c.A)
		return 2, nil
	case 0x2A:
		c.A = c.opROL(c.A)
		return 2, nil
	case 0x6A:
		c.A = c.opROR(c.A)
		return 2, nil

	// --- shifts/rotates, memory forms ---
	case 0x06:
		return c.rmw(bus, c.addrZPRMW, c.opASL), nil
	case 0x16:
		return c.rmw(bus, c.addrZPXRMW, c.opASL), nil
	case 0x0E:
		return c.rmw(bus, c.addrAbsRMW, c.opASL), nil
	case 0x1E:
		return c.rmw(bus, c.addrAbsXRMW, c.opASL), nil
	case 0x46:
		return c.rmw(bus, c.addrZPRMW, c.opLSR), nil
	case 0x56:
		return c.rmw(bus, c.addrZPXRMW, c.opLSR), nil
	case 0x4E:
		return c.rmw(bus, c.addrAbsRMW, c.opLSR), nil
	case 0x5E:
		return c.rmw(bus, c.addrAbsXRMW, c.opLSR), nil
	case 0x26:
		return c.rmw(bus, c.addrZPRMW, c.opROL), nil
	case 0x36:
		return c.rmw(bus, c.addrZPXRMW, c.opROL), nil
	case 0x2E:
		return c.rmw(bus, c.addrAbsRMW, c.opROL), nil
	case 0x3E:
		return c.rmw(bus, c.addrAbsXRMW, c.opROL), nil
	case 0x66:
		return c.rmw(bus, c.addrZPRMW, c.opROR), nil
	case 0x76:
		return c.rmw(bus, c.addrZPXRMW, c.opROR), nil
	case 0x6E:
		return c.rmw(bus, c.addrAbsRMW, c.opROR), nil
	case 0x7E:
		return c.rmw(bus, c.addrAbsXRMW, c.opROR), nil

	case 0xE6:
		return c.rmw(bus, c.addrZPRMW, c.opINC), nil
	case 0xF6:
		return c.rmw(bus, c.addrZPXRMW, c.opINC), nil
	case 0xEE:
		return c.rmw(bus, c.addrAbsRMW, c.opINC), nil
	case 0xFE:
		return c.rmw(bus, c.addrAbsXRMW, c.opINC), nil
	case 0xC6:
		return c.rmw(bus, c.addrZPRMW, c.opDEC), nil
	case 0xD6:
		return c.rmw(bus, c.addrZPXRMW, c.opDEC), nil
	case 0xCE:
		return c.rmw(bus, c.addrAbsRMW, c.opDEC), nil
	case 0xDE:
		return c.rmw(bus, c.addrAbsXRMW, c.opDEC), nil

	// --- TRB/TSB, 65C02 only ---
	case 0x04:
		if !cmos {
			break
		}
		return c.rmw(bus, c.addrZPRMW, c.opTSB), nil
	case 0x0C:
		if !cmos {
			break
		}
		return c.rmw(bus, c.addrAbsRMW, c.opTSB), nil
	case 0x14:
		if !cmos {
			break
		}
		return c.rmw(bus, c.addrZPRMW, c.opTRB), nil
	case 0x1C:
		if !cmos {
			break
		}
		return c.rmw(bus, c.addrAbsRMW, c.opTRB), nil
	}

	if cmos {
		if cy, handled := c.processCMOSExtra(bus, op); handled {
			return cy, nil
		}
		return c.processCMOSNop(bus, op)
	}
	return c.processNMOSUndoc(bus, op)
}

func (c *Chip) opTSB(v uint8) uint8 {
	c.zeroCheck(c.A & v)
	return v | c.A
}

func (c *Chip) opTRB(v uint8) uint8 {
	c.zeroCheck(c.A & v)
	return v &^ c.A
}
