package cpu

// Addressing mode helpers. Each "load" function returns the fetched operand
// value and the total cycle cost of addressing-mode + read. Each "store"
// function returns the computed address and the fixed cycle cost (stores
// never get the page-cross discount real read instructions do). Each "rmw"
// function likewise returns address and a fixed (worst-case) cycle cost.

func pageCrossed(base, final uint16) bool {
	return base&0xFF00 != final&0xFF00
}

func (c *Chip) loadImmediate(bus Bus) (uint8, int) {
	return c.fetch(bus), 2
}

func (c *Chip) loadZP(bus Bus) (uint8, int) {
	addr := uint16(c.fetch(bus))
	return bus.Read(addr), 3
}

func (c *Chip) loadZPX(bus Bus) (uint8, int) {
	d := c.fetch(bus)
	return bus.Read(uint16(uint8(d + c.X))), 4
}

func (c *Chip) loadZPY(bus Bus) (uint8, int) {
	d := c.fetch(bus)
	return bus.Read(uint16(uint8(d + c.Y))), 4
}

func (c *Chip) loadAbs(bus Bus) (uint8, int) {
	addr := c.fetchAddr(bus)
	return bus.Read(addr), 4
}

func (c *Chip) loadAbsIndexed(bus Bus, reg uint8) (uint8, int) {
	base := c.fetchAddr(bus)
	final := base + uint16(reg)
	cyc := 4
	if pageCrossed(base, final) {
		cyc = 5
	}
	return bus.Read(final), cyc
}

func (c *Chip) loadAbsX(bus Bus) (uint8, int) { return c.loadAbsIndexed(bus, c.X) }
func (c *Chip) loadAbsY(bus Bus) (uint8, int) { return c.loadAbsIndexed(bus, c.Y) }

func (c *Chip) loadIndirectX(bus Bus) (uint8, int) {
	d := c.fetch(bus)
	zp := uint8(d + c.X)
	lo := bus.Read(uint16(zp))
	hi := bus.Read(uint16(uint8(zp + 1)))
	addr := uint16(hi)<<8 | uint16(lo)
	return bus.Read(addr), 6
}

func (c *Chip) loadIndirectY(bus Bus) (uint8, int) {
	d := c.fetch(bus)
	lo := bus.Read(uint16(d))
	hi := bus.Read(uint16(uint8(d + 1)))
	base := uint16(hi)<<8 | uint16(lo)
	final := base + uint16(c.Y)
	cyc := 5
	if pageCrossed(base, final) {
		cyc = 6
	}
	return bus.Read(final), cyc
}

// loadZPIndirect implements the 65C02 (zp) addressing mode.
func (c *Chip) loadZPIndirect(bus Bus) (uint8, int) {
	d := c.fetch(bus)
	lo := bus.Read(uint16(d))
	hi := bus.Read(uint16(uint8(d + 1)))
	addr := uint16(hi)<<8 | uint16(lo)
	return bus.Read(addr), 5
}

// Store-side address producers (fixed worst-case cycle cost).

func (c *Chip) addrZP(bus Bus) (uint16, int) {
	return uint16(c.fetch(bus)), 3
}

func (c *Chip) addrZPX(bus Bus) (uint16, int) {
	d := c.fetch(bus)
	return uint16(uint8(d + c.X)), 4
}

func (c *Chip) addrZPY(bus Bus) (uint16, int) {
	d := c.fetch(bus)
	return uint16(uint8(d + c.Y)), 4
}

func (c *Chip) addrAbs(bus Bus) (uint16, int) {
	return c.fetchAddr(bus), 4
}

func (c *Chip) addrAbsXStore(bus Bus) (uint16, int) {
	base := c.fetchAddr(bus)
	return base + uint16(c.X), 5
}

func (c *Chip) addrAbsYStore(bus Bus) (uint16, int) {
	base := c.fetchAddr(bus)
	return base + uint16(c.Y), 5
}

func (c *Chip) addrIndirectXStore(bus Bus) (uint16, int) {
	d := c.fetch(bus)
	zp := uint8(d + c.X)
	lo := bus.Read(uint16(zp))
	hi := bus.Read(uint16(uint8(zp + 1)))
	return uint16(hi)<<8 | uint16(lo), 6
}

func (c *Chip) addrIndirectYStore(bus Bus) (uint16, int) {
	d := c.fetch(bus)
	lo := bus.Read(uint16(d))
	hi := bus.Read(uint16(uint8(d + 1)))
	base := uint16(hi)<<8 | uint16(lo)
	return base + uint16(c.Y), 6
}

func (c *Chip) addrZPIndirectStore(bus Bus) (uint16, int) {
	d := c.fetch(bus)
	lo := bus.Read(uint16(d))
	hi := bus.Read(uint16(uint8(d + 1)))
	return uint16(hi)<<8 | uint16(lo), 5
}

// RMW address producers (always worst-case cycle cost; the extra internal
// cycle RMW instructions take on real hardware is folded into these).

func (c *Chip) addrZPRMW(bus Bus) (uint16, int) {
	return uint16(c.fetch(bus)), 5
}

func (c *Chip) addrZPXRMW(bus Bus) (uint16, int) {
	d := c.fetch(bus)
	return uint16(uint8(d + c.X)), 6
}

func (c *Chip) addrAbsRMW(bus Bus) (uint16, int) {
	return c.fetchAddr(bus), 6
}

func (c *Chip) addrAbsXRMW(bus Bus) (uint16, int) {
	base := c.fetchAddr(bus)
	return base + uint16(c.X), 7
}

func (c *Chip) addrAbsYRMW(bus Bus) (uint16, int) {
	base := c.fetchAddr(bus)
	return base + uint16(c.Y), 7
}

func (c *Chip) addrIndirectXRMW(bus Bus) (uint16, int) {
	addr, _ := c.addrIndirectXStore(bus)
	return addr, 8
}

func (c *Chip) addrIndirectYRMW(bus Bus) (uint16, int) {
	addr, _ := c.addrIndirectYStore(bus)
	return addr, 8
}

// Generic combinators mirroring the teacher's loadInstruction/storeInstruction/
// rmwInstruction shape, collapsed to a single call per instruction.

func (c *Chip) load(bus Bus, addrFn func(Bus) (uint8, int), op func(uint8)) int {
	v, cyc := addrFn(bus)
	op(v)
	return cyc
}

func (c *Chip) store(bus Bus, addrFn func(Bus) (uint16, int), val uint8) int {
	addr, cyc := addrFn(bus)
	bus.Write(addr, val)
	return cyc
}

func (c *Chip) rmw(bus Bus, addrFn func(Bus) (uint16, int), op func(uint8) uint8) int {
	addr, cyc := addrFn(bus)
	v := bus.Read(addr)
	bus.Write(addr, v) // dummy write-back, matches real 6502 RMW bus behavior
	nv := op(v)
	bus.Write(addr, nv)
	return cyc
}

// branch implements conditional relative branching (and BRA, which always
// takes the cond=true path). Base cost 2, +1 if taken, +1 more on a page
// cross of the branch target.
func (c *Chip) branch(bus Bus, cond bool) int {
	offset := int8(c.fetch(bus))
	if !cond {
		return 2
	}
	old := c.PC
	c.PC = uint16(int32(c.PC) + int32(offset))
	if pageCrossed(old, c.PC) {
		return 4
	}
	return 3
}
