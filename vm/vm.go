package vm

// CPU is the bbb register file plus the memory it addresses. Pointer
// registers are stored as 16-bit offsets into Memory rather than raw
// pointers, so every access goes through an explicit resolve step instead
// of pointer arithmetic.
type CPU struct {
	gp    [6]uint8 // A, B, C, D, E, F - low nibble only
	flags uint8

	pc, sp, iv, ix, ta uint16

	interruptMask bool // set on dispatch, cleared by a POP PC return

	memory *Memory

	// running tracks the original machine's separate status field (distinct
	// from the Halt flag, which is what actually stops the fetch loop). It
	// exists for inspection/display; Reset clears it, Start sets it.
	running bool

	instructionsExecuted uint64
	lastFault            string

	EventSetup    func(*CPU)
	EventUpdate   func(*CPU)
	EventTeardown func(*CPU)
}

// NewCPU allocates a CPU over a freshly zeroed Memory of the given size.
func NewCPU(memSize int) *CPU {
	return &CPU{memory: NewMemory(memSize)}
}

// Memory exposes the machine's backing store, e.g. for image loading or the
// inspect subcommand's hexdump.
func (c *CPU) Memory() *Memory { return c.memory }

// Halted reports whether the machine has stopped (Halt flag set). This is
// the condition Run's fetch loop actually checks.
func (c *CPU) Halted() bool { return c.flags&FlagHalt != 0 }

// Running reports the separate run/halt status exposed for inspection; it
// tracks Start/Reset/Run's completion rather than the Halt flag directly.
func (c *CPU) Running() bool { return c.running }

// InstructionsExecuted returns the number of instructions successfully
// executed since the last Reset.
func (c *CPU) InstructionsExecuted() uint64 { return c.instructionsExecuted }

// LastFault describes the most recent illegal-instruction condition, empty
// if none occurred.
func (c *CPU) LastFault() string { return c.lastFault }

// Flags returns the raw 8-bit flag byte.
func (c *CPU) Flags() uint8 { return c.flags }

// PC, SP, IV, IX, TA expose the pointer registers for inspection.
func (c *CPU) PC() uint16 { return c.pc }
func (c *CPU) SP() uint16 { return c.sp }
func (c *CPU) IV() uint16 { return c.iv }
func (c *CPU) IX() uint16 { return c.ix }
func (c *CPU) TA() uint16 { return c.ta }

// GP returns the value of one of the six general-purpose registers.
func (c *CPU) GP(r Register) uint8 { return c.gp[r] }

// Reset sets the machine to its post-power-on state: status halted, all
// pointer registers at offset 0, flags holding only the True sentinel, and
// general-purpose registers cleared.
func (c *CPU) Reset() {
	c.gp = [6]uint8{}
	c.flags = FlagTrue
	c.pc, c.sp, c.iv, c.ix, c.ta = 0, 0, 0, 0, 0
	c.interruptMask = false
	c.running = false
	c.instructionsExecuted = 0
	c.lastFault = ""
}

// Start loads the image's header into PC/SP/IV/IX/TA, clears the
// general-purpose registers and flags (except the True sentinel), copies
// the code that follows the header into memory starting at address 0 (the
// header itself is never mapped into addressable memory - it only conveys
// the five initial register values), and invokes EventSetup once.
func (c *CPU) Start(image []byte) error {
	hdr, err := DecodeImageHeader(image)
	if err != nil {
		return err
	}
	c.memory.LoadImage(image[ImageHeaderNibbles:])
	c.gp = [6]uint8{}
	c.flags = FlagTrue
	c.pc, c.sp, c.iv, c.ix, c.ta = hdr.PC, hdr.SP, hdr.IV, hdr.IX, hdr.TA
	c.interruptMask = false
	c.running = true
	c.instructionsExecuted = 0
	c.lastFault = ""
	if c.EventSetup != nil {
		c.EventSetup(c)
	}
	return nil
}

// Close invokes EventTeardown, matching the original's call at machine_free.
func (c *CPU) Close() {
	if c.EventTeardown != nil {
		c.EventTeardown(c)
	}
}

// pointerRegister returns a pointer to the CPU's backing field for one of
// the five 16-bit registers, used by getValue/setValue and the fetch loop.
func (c *CPU) pointerField(r Register) *uint16 {
	switch r {
	case RegPC:
		return &c.pc
	case RegSP:
		return &c.sp
	case RegIV:
		return &c.iv
	case RegIX:
		return &c.ix
	case RegTA:
		return &c.ta
	default:
		return nil
	}
}

// getRegister reads a register's current value without regard to any
// decoded instruction context (used for plain register operands).
func (c *CPU) getRegister(r Register) uint16 {
	switch {
	case r.IsGeneralPurpose():
		return uint16(c.gp[r])
	case r == RegS0:
		return uint16(c.flags & 0x0F)
	case r == RegS1:
		return uint16((c.flags >> 4) & 0x0F)
	default:
		if p := c.pointerField(r); p != nil {
			return *p
		}
	}
	return 0
}

// setRegister writes a register's value, honoring the flag-nibble isolation
// and True-sentinel invariants.
func (c *CPU) setRegister(r Register, value uint16) {
	switch {
	case r.IsGeneralPurpose():
		c.gp[r] = uint8(value) & 0xF
	case r == RegS0:
		c.flags = (c.flags & 0xF0) | (uint8(value) & 0x0F)
	case r == RegS1:
		c.flags = (c.flags & 0x0F) | (uint8(value)<<4&(FlagHalt|FlagInterrupt)) | FlagTrue
	default:
		if p := c.pointerField(r); p != nil {
			*p = value
		}
	}
}

// readOperand resolves a decoded operand to its value. ext is the extension
// nibbles already consumed during decode (the immediate for CV, or the
// address/offset for MD/MX); it is ignored for plain register operands.
func (c *CPU) readOperand(r Register, ext uint16) uint16 {
	switch r {
	case RegCV:
		return ext
	case RegMD:
		return uint16(c.memory.Read(uint32(ext)))
	case RegMX:
		return uint16(c.memory.ReadIndexed(uint32(c.ix), uint32(ext)))
	default:
		return c.getRegister(r)
	}
}

// writeOperand stores value into the location named by a decoded operand.
// Writing to CV is the machine's "halt sink": it is caught by decode before
// execute runs, but is handled safely here too.
func (c *CPU) writeOperand(r Register, ext uint16, value uint16) {
	switch r {
	case RegCV:
		c.setFlag(FlagHalt, true)
	case RegMD:
		c.memory.Write(uint32(ext), uint8(value))
	case RegMX:
		c.memory.WriteIndexed(uint32(c.ix), uint32(ext), uint8(value))
	default:
		c.setRegister(r, value)
	}
}

func (c *CPU) setFlag(mask uint8, on bool) {
	if on {
		c.flags |= mask
	} else {
		c.flags &^= mask
	}
}

func (c *CPU) flag(mask uint8) bool {
	return c.flags&mask != 0
}

// width reports the bit width (4 or 16) of an operand given the role it's
// playing (dst widens CV's own width; MD/MX addressing is always 16-bit but
// the datum they name is 4-bit).
func (c *CPU) operandWidth(r Register) int {
	if r.Is16Bit() {
		return 16
	}
	return 4
}

func signBit(width int, value uint16) bool {
	if width == 16 {
		return value&0x8000 != 0
	}
	return value&0x8 != 0
}

func wrap(width int, value uint32) uint16 {
	if width == 16 {
		return uint16(value)
	}
	return uint16(value & 0xF)
}
