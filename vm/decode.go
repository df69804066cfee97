package vm

// fetch1 reads one nibble at PC and advances PC by one.
func (c *CPU) fetch1() uint8 {
	v := c.memory.Read(uint32(c.pc)) & 0xF
	c.pc++
	return v
}

// fetch4 reads four nibbles at PC (big-endian: bits 15..12 first) and
// advances PC by four, forming one 16-bit "quartet".
func (c *CPU) fetch4() uint16 {
	n0 := c.fetch1()
	n1 := c.fetch1()
	n2 := c.fetch1()
	n3 := c.fetch1()
	return uint16(n0)<<12 | uint16(n1)<<8 | uint16(n2)<<4 | uint16(n3)
}

func (c *CPU) pushNibble(n uint8) {
	c.memory.Write(uint32(c.sp), n&0xF)
	c.sp++
}

func (c *CPU) popNibble() uint8 {
	c.sp--
	return c.memory.Read(uint32(c.sp)) & 0xF
}

// pushQuartet pushes a 16-bit value as four nibbles, high nibble first.
func (c *CPU) pushQuartet(v uint16) {
	c.pushNibble(uint8(v >> 12))
	c.pushNibble(uint8(v >> 8))
	c.pushNibble(uint8(v >> 4))
	c.pushNibble(uint8(v))
}

// popQuartet is the dual of pushQuartet: it reverses the push order so the
// reconstructed value matches what was pushed.
func (c *CPU) popQuartet() uint16 {
	n0 := c.popNibble()
	n1 := c.popNibble()
	n2 := c.popNibble()
	n3 := c.popNibble()
	return uint16(n3)<<12 | uint16(n2)<<8 | uint16(n1)<<4 | uint16(n0)
}

// effectiveWidth reports the bit width of an operand's *value*, which for
// CV matches whatever width it was decoded against (dstWidth), and for
// MD/MX is always 4 (memory stores one nibble per byte) regardless of the
// register's own 16-bit addressing.
func effectiveWidth(r Register, dstWidth int) int {
	switch r {
	case RegCV:
		return dstWidth
	case RegMD, RegMX:
		return 4
	default:
		if r.Is16Bit() {
			return 16
		}
		return 4
	}
}

// Step executes exactly one instruction: fetch, decode, execute. It is the
// building block for both Run's tight loop and the single-step debug
// console.
func (c *CPU) Step() {
	op := Opcode(c.fetch1())

	switch {
	case op == OpNOP:
		// no operands

	case op == OpINC || op == OpDEC || op == OpRLC || op == OpRRC || op == OpPOP:
		dst := Register(c.fetch1())
		if dst == RegCV {
			c.fault("write to CV")
			return
		}
		var dstExt uint16
		if dst == RegMD || dst == RegMX {
			dstExt = c.fetch4()
		}
		c.executeUnary(op, dst, dstExt)

	case op == OpPSH:
		src := Register(c.fetch1())
		var srcExt uint16
		switch src {
		case RegCV:
			srcExt = uint16(c.fetch1())
		case RegMD, RegMX:
			srcExt = c.fetch4()
		}
		c.executePush(src, srcExt)

	case op.HasSrc(): // ADD SUB AND OR XOR CMP MOV
		src := Register(c.fetch1())
		dst := Register(c.fetch1())
		if dst == RegCV {
			c.fault("write to CV")
			return
		}
		var srcExt uint16
		switch src {
		case RegCV:
			// The immediate's width follows the destination's value width,
			// not the destination's own register class: MD/MX name a 4-bit
			// memory datum and take the 1-nibble form too, while only the
			// five pointer registers take the full quartet.
			if dst.Is16Bit() {
				srcExt = c.fetch4()
			} else {
				srcExt = uint16(c.fetch1())
			}
		case RegMD, RegMX:
			srcExt = c.fetch4()
		}
		var dstExt uint16
		if dst == RegMD || dst == RegMX {
			dstExt = c.fetch4()
		}
		c.executeBinary(op, src, srcExt, dst, dstExt)

	case op.HasTest(): // JMP JSR
		cond := c.fetch1()
		addr := c.fetch4()
		c.executeJump(op, cond, addr)

	default:
		c.fault("unknown opcode")
	}

	c.instructionsExecuted++
}

// fault records an illegal-instruction condition and halts the machine,
// matching the original's "never unwinds, always halts" contract.
func (c *CPU) fault(reason string) {
	c.lastFault = reason
	c.setFlag(FlagHalt, true)
}

func (c *CPU) setZN(width int, result uint16) {
	c.setFlag(FlagZero, result == 0)
	c.setFlag(FlagNegative, signBit(width, result))
}

func (c *CPU) executeUnary(op Opcode, dst Register, dstExt uint16) {
	width := c.operandWidth(dst)
	switch op {
	case OpINC:
		val := c.readOperand(dst, dstExt)
		res := wrap(width, uint32(val)+1)
		c.writeOperand(dst, dstExt, res)
		c.setZN(width, res)
	case OpDEC:
		val := c.readOperand(dst, dstExt)
		res := wrap(width, uint32(val)-1)
		c.writeOperand(dst, dstExt, res)
		c.setZN(width, res)
	case OpRLC:
		val := c.readOperand(dst, dstExt)
		carryIn := uint16(0)
		if c.flag(FlagCarry) {
			carryIn = 1
		}
		carryOut := signBit(width, val)
		res := wrap(width, (uint32(val)<<1)|uint32(carryIn))
		c.writeOperand(dst, dstExt, res)
		c.setFlag(FlagCarry, carryOut)
		c.setZN(width, res)
	case OpRRC:
		val := c.readOperand(dst, dstExt)
		carryIn := uint16(0)
		if c.flag(FlagCarry) {
			carryIn = 1
		}
		carryOut := val&1 != 0
		topBit := uint16(0)
		if carryIn != 0 {
			if width == 16 {
				topBit = 0x8000
			} else {
				topBit = 0x8
			}
		}
		res := (val >> 1) | topBit
		c.writeOperand(dst, dstExt, res)
		c.setFlag(FlagCarry, carryOut)
		c.setZN(width, res)
	case OpPOP:
		if width == 16 {
			val := c.popQuartet()
			if dst == RegPC && c.interruptMask && !c.flag(FlagInterrupt) {
				c.interruptMask = false
			}
			c.writeOperand(dst, dstExt, val)
		} else {
			val := uint16(c.popNibble())
			c.writeOperand(dst, dstExt, val)
		}
	}
}

func (c *CPU) executePush(src Register, srcExt uint16) {
	value := c.readOperand(src, srcExt)
	if src.Is16Bit() {
		c.pushQuartet(value)
	} else {
		c.pushNibble(uint8(value))
	}
}

func (c *CPU) executeBinary(op Opcode, src Register, srcExt uint16, dst Register, dstExt uint16) {
	dstWidth := c.operandWidth(dst)

	switch op {
	case OpADD:
		if src.Is16Bit() {
			c.fault("ADD with 16-bit source")
			return
		}
		lhs := c.readOperand(dst, dstExt)
		rhs := c.readOperand(src, srcExt)
		carryIn := uint32(0)
		if c.flag(FlagCarry) {
			carryIn = 1
		}
		sum := uint32(lhs) + uint32(rhs) + carryIn
		result := wrap(dstWidth, sum)
		var carryOut bool
		if dstWidth == 16 {
			carryOut = sum&0x10000 != 0
		} else {
			carryOut = sum&0x10 != 0
		}
		overflow := signBit(dstWidth, lhs) == signBit(dstWidth, rhs) && signBit(dstWidth, result) != signBit(dstWidth, lhs)
		c.writeOperand(dst, dstExt, result)
		c.setFlag(FlagCarry, carryOut)
		c.setFlag(FlagOverflow, overflow)
		c.setZN(dstWidth, result)

	case OpSUB:
		lhs := c.readOperand(dst, dstExt)
		rhs := c.readOperand(src, srcExt)
		borrowIn := int64(0)
		if c.flag(FlagCarry) {
			borrowIn = 1
		}
		diff := int64(lhs) - int64(rhs) - borrowIn
		result := wrap(dstWidth, uint32(diff))
		borrowOut := diff < 0
		overflow := signBit(dstWidth, lhs) != signBit(dstWidth, rhs) && signBit(dstWidth, result) != signBit(dstWidth, lhs)
		c.writeOperand(dst, dstExt, result)
		c.setFlag(FlagCarry, borrowOut)
		c.setFlag(FlagOverflow, overflow)
		c.setZN(dstWidth, result)

	case OpAND, OpOR, OpXOR:
		lhs := c.readOperand(dst, dstExt)
		rhsRaw := c.readOperand(src, srcExt)
		rhs := c.widenForLogic(op, dstWidth, src, rhsRaw)
		var result uint32
		switch op {
		case OpAND:
			result = uint32(lhs) & uint32(rhs)
		case OpOR:
			result = uint32(lhs) | uint32(rhs)
		case OpXOR:
			result = uint32(lhs) ^ uint32(rhs)
		}
		res16 := wrap(dstWidth, result)
		c.writeOperand(dst, dstExt, res16)
		c.setZN(dstWidth, res16)

	case OpCMP:
		srcWidth := effectiveWidth(src, dstWidth)
		cmpDstWidth := effectiveWidth(dst, dstWidth)
		if srcWidth != cmpDstWidth {
			c.fault("CMP width mismatch")
			return
		}
		lhs := c.readOperand(src, srcExt)
		rhs := c.readOperand(dst, dstExt)
		c.setFlag(FlagZero, lhs == rhs)
		c.setFlag(FlagNegative, lhs > rhs)

	case OpMOV:
		srcWidth := effectiveWidth(src, dstWidth)
		val := c.readOperand(src, srcExt)
		if dstWidth == 16 && srcWidth == 4 {
			current := c.readOperand(dst, dstExt)
			spliced := (current &^ 0xF) | (val & 0xF)
			c.writeOperand(dst, dstExt, spliced)
			c.setZN(16, spliced)
		} else {
			result := wrap(dstWidth, uint32(val))
			c.writeOperand(dst, dstExt, result)
			c.setZN(dstWidth, result)
		}
	}
}

// widenForLogic implements AND/OR/XOR's width-mixing rule: combining a
// plain 4-bit register source into a 16-bit destination promotes the
// source so the destination's high 12 bits are left untouched by the op.
func (c *CPU) widenForLogic(op Opcode, dstWidth int, src Register, srcVal uint16) uint16 {
	if dstWidth != 16 {
		return srcVal
	}
	if src.Is16Bit() || src == RegCV || src == RegMD || src == RegMX {
		return srcVal
	}
	if op == OpAND {
		return srcVal | 0xFFF0
	}
	return srcVal
}

func (c *CPU) executeJump(op Opcode, cond uint8, addr uint16) {
	bit := cond & 0x7
	wantSet := (cond>>3)&1 == 1
	actual := c.flags&(1<<bit) != 0
	taken := actual == wantSet
	if !taken {
		return
	}
	if op == OpJSR {
		c.pushQuartet(c.pc)
	}
	c.pc = addr
}

// checkInterrupt dispatches a pending interrupt between instructions: if
// the I-flag is set and the mask latch is clear, it latches, saves PC, and
// jumps to the interrupt vector.
func (c *CPU) checkInterrupt() {
	if c.flag(FlagInterrupt) && !c.interruptMask {
		c.interruptMask = true
		c.pushQuartet(c.pc)
		c.pc = c.iv
	}
}
