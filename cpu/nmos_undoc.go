package cpu

// processNMOSUndoc handles the NMOS 6502's undocumented opcode space: the
// illegal combined read-modify-write instructions, the various NOP forms,
// the unstable immediate ops, and the JAM/KIL opcodes that halt the chip.
// Grounded on the teacher's treatment of undocumented opcodes as first-class
// citizens of the dispatch table rather than an afterthought.
func (c *Chip) processNMOSUndoc(bus Bus, op uint8) (int, error) {
	switch op {
	// JAM/KIL/HLT - the chip stops fetching until reset.
	case 0x02, 0x12, 0x22, 0x32, 0x42, 0x52, 0x62, 0x72, 0x92, 0xB2, 0xD2, 0xF2:
		return 0, HaltOpcode{op}

	// 1-byte implied NOPs.
	case 0x1A, 0x3A, 0x5A, 0x7A, 0xDA, 0xFA:
		return 2, nil

	// 2-byte immediate-style NOPs.
	case 0x80, 0x82, 0x89, 0xC2, 0xE2:
		c.fetch(bus)
		return 2, nil

	// 2-byte zero-page NOPs.
	case 0x04, 0x44, 0x64:
		c.fetch(bus)
		return 3, nil

	// 2-byte zero-page,X NOPs.
	case 0x14, 0x34, 0x54, 0x74, 0xD4, 0xF4:
		c.fetch(bus)
		return 4, nil

	// 3-byte absolute NOP.
	case 0x0C:
		c.fetchAddr(bus)
		return 4, nil

	// 3-byte absolute,X NOPs (page-cross sensitive, like any abs,X read).
	case 0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC:
		_, cy := c.loadAbsX(bus)
		return cy, nil

	// SLO: ASL then ORA.
	case 0x03:
		return c.rmw(bus, c.addrIndirectXRMW, c.opSLO), nil
	case 0x07:
		return c.rmw(bus, c.addrZPRMW, c.opSLO), nil
	case 0x0F:
		return c.rmw(bus, c.addrAbsRMW, c.opSLO), nil
	case 0x13:
		return c.rmw(bus, c.addrIndirectYRMW, c.opSLO), nil
	case 0x17:
		return c.rmw(bus, c.addrZPXRMW, c.opSLO), nil
	case 0x1B:
		return c.rmw(bus, c.addrAbsYRMW, c.opSLO), nil
	case 0x1F:
		return c.rmw(bus, c.addrAbsXRMW, c.opSLO), nil

	// RLA: ROL then AND.
	case 0x23:
		return c.rmw(bus, c.addrIndirectXRMW, c.opRLA), nil
	case 0x27:
		return c.rmw(bus, c.addrZPRMW, c.opRLA), nil
	case 0x2F:
		return c.rmw(bus, c.addrAbsRMW, c.opRLA), nil
	case 0x33:
		return c.rmw(bus, c.addrIndirectYRMW, c.opRLA), nil
	case 0x37:
		return c.rmw(bus, c.addrZPXRMW, c.opRLA), nil
	case 0x3B:
		return c.rmw(bus, c.addrAbsYRMW, c.opRLA), nil
	case 0x3F:
		return c.rmw(bus, c.addrAbsXRMW, c.opRLA), nil

	// SRE: LSR then EOR.
	case 0x43:
		return c.rmw(bus, c.addrIndirectXRMW, c.opSRE), nil
	case 0x47:
		return c.rmw(bus, c.addrZPRMW, c.opSRE), nil
	case 0x4F:
		return c.rmw(bus, c.addrAbsRMW, c.opSRE), nil
	case 0x53:
		return c.rmw(bus, c.addrIndirectYRMW, c.opSRE), nil
	case 0x57:
		return c.rmw(bus, c.addrZPXRMW, c.opSRE), nil
	case 0x5B:
		return c.rmw(bus, c.addrAbsYRMW, c.opSRE), nil
	case 0x5F:
		return c.rmw(bus, c.addrAbsXRMW, c.opSRE), nil

	// RRA: ROR then ADC.
	case 0x63:
		return c.rmw(bus, c.addrIndirectXRMW, c.opRRA), nil
	case 0x67:
		return c.rmw(bus, c.addrZPRMW, c.opRRA), nil
	case 0x6F:
		return c.rmw(bus, c.addrAbsRMW, c.opRRA), nil
	case 0x73:
		return c.rmw(bus, c.addrIndirectYRMW, c.opRRA), nil
	case 0x77:
		return c.rmw(bus, c.addrZPXRMW, c.opRRA), nil
	case 0x7B:
		return c.rmw(bus, c.addrAbsYRMW, c.opRRA), nil
	case 0x7F:
		return c.rmw(bus, c.addrAbsXRMW, c.opRRA), nil

	// SAX: store A & X.
	case 0x83:
		return c.store(bus, c.addrIndirectXStore, c.A&c.X), nil
	case 0x87:
		return c.store(bus, c.addrZP, c.A&c.X), nil
	case 0x8F:
		return c.store(bus, c.addrAbs, c.A&c.X), nil
	case 0x97:
		return c.store(bus, c.addrZPY, c.A&c.X), nil

	// LAX: load A and X together.
	case 0xA3:
		return c.load(bus, c.loadIndirectX, c.opLAX), nil
	case 0xA7:
		return c.load(bus, c.loadZP, c.opLAX), nil
	case 0xAF:
		return c.load(bus, c.loadAbs, c.opLAX), nil
	case 0xB3:
		return c.load(bus, c.loadIndirectY, c.opLAX), nil
	case 0xB7:
		return c.load(bus, c.loadZPY, c.opLAX), nil
	case 0xBF:
		return c.load(bus, c.loadAbsY, c.opLAX), nil
	case 0xAB: // unstable LAX #imm, commonly modeled as (A OR magic) AND imm -> X,A
		v, cy := c.loadImmediate(bus)
		c.opLAX(c.A & v)
		return cy, nil

	// DCP: DEC then CMP.
	case 0xC3:
		return c.rmw(bus, c.addrIndirectXRMW, c.opDCP), nil
	case 0xC7:
		return c.rmw(bus, c.addrZPRMW, c.opDCP), nil
	case 0xCF:
		return c.rmw(bus, c.addrAbsRMW, c.opDCP), nil
	case 0xD3:
		return c.rmw(bus, c.addrIndirectYRMW, c.opDCP), nil
	case 0xD7:
		return c.rmw(bus, c.addrZPXRMW, c.opDCP), nil
	case 0xDB:
		return c.rmw(bus, c.addrAbsYRMW, c.opDCP), nil
	case 0xDF:
		return c.rmw(bus, c.addrAbsXRMW, c.opDCP), nil

	// ISC/ISB: INC then SBC.
	case 0xE3:
		return c.rmw(bus, c.addrIndirectXRMW, c.opISC), nil
	case 0xE7:
		return c.rmw(bus, c.addrZPRMW, c.opISC), nil
	case 0xEF:
		return c.rmw(bus, c.addrAbsRMW, c.opISC), nil
	case 0xF3:
		return c.rmw(bus, c.addrIndirectYRMW, c.opISC), nil
	case 0xF7:
		return c.rmw(bus, c.addrZPXRMW, c.opISC), nil
	case 0xFB:
		return c.rmw(bus, c.addrAbsYRMW, c.opISC), nil
	case 0xFF:
		return c.rmw(bus, c.addrAbsXRMW, c.opISC), nil

	// Unstable/rare immediate-operand undocumented ops.
	case 0x0B, 0x2B:
		v, cy := c.loadImmediate(bus)
		c.opANC(v)
		return cy, nil
	case 0x4B:
		v, cy := c.loadImmediate(bus)
		c.opALR(v)
		return cy, nil
	case 0x6B:
		v, cy := c.loadImmediate(bus)
		c.opARR(v)
		return cy, nil
	case 0xCB:
		v, cy := c.loadImmediate(bus)
		c.opAXS(v)
		return cy, nil
	case 0xEB: // SBC #imm, duplicate of 0xE9.
		v, cy := c.loadImmediate(bus)
		c.opSBC(v)
		return cy, nil

	// Highly unstable store ops (AHX/SHX/SHY/TAS), modeled as the commonly
	// documented A & X & (high-byte+1) / X & (high-byte+1) / Y & (high-byte+1)
	// forms. Rarely exercised by real software; included for completeness.
	case 0x93:
		addr, cy := c.addrIndirectYStore(bus)
		bus.Write(addr, c.A&c.X&uint8(addr>>8+1))
		return cy, nil
	case 0x9F:
		addr, cy := c.addrAbsYStore(bus)
		bus.Write(addr, c.A&c.X&uint8(addr>>8+1))
		return cy, nil
	case 0x9B:
		addr, cy := c.addrAbsYStore(bus)
		c.S = c.A & c.X
		bus.Write(addr, c.S&uint8(addr>>8+1))
		return cy, nil
	case 0x9C:
		addr, cy := c.addrAbsXStore(bus)
		bus.Write(addr, c.Y&uint8(addr>>8+1))
		return cy, nil
	case 0x9E:
		addr, cy := c.addrAbsYStore(bus)
		bus.Write(addr, c.X&uint8(addr>>8+1))
		return cy, nil
	case 0xBB:
		v, cy := c.loadAbsY(bus)
		r := v & c.S
		c.S = r
		c.loadRegister(&c.A, r)
		c.loadRegister(&c.X, r)
		return cy, nil

	// XAA: highly unstable, modeled with the commonly used magic constant of
	// 0xFF (effectively A = X & imm on most silicon samples).
	case 0x8B:
		v, cy := c.loadImmediate(bus)
		c.loadRegister(&c.A, c.X&v)
		return cy, nil
	}

	return 0, InvalidCPUState{Reason: "unreachable opcode dispatch"}
}
