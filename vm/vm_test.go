package vm

import "testing"

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func newTestCPU() *CPU {
	return NewCPUWithConfig(DefaultConfig())
}

func TestResetClearsState(t *testing.T) {
	c := newTestCPU()
	c.setRegister(RegA, 0x7)
	c.pc = 0x1234
	c.flags = 0xFF
	c.Reset()

	assert(t, c.GP(RegA) == 0, "expected A cleared after Reset, got %X", c.GP(RegA))
	assert(t, c.PC() == 0, "expected PC cleared after Reset, got %04X", c.PC())
	assert(t, c.Flags() == FlagTrue, "expected only True flag set after Reset, got %08b", c.Flags())
}

func TestIncDecWraps4Bit(t *testing.T) {
	c := newTestCPU()
	c.setRegister(RegA, 0xF)
	c.executeUnary(OpINC, RegA, 0)
	assert(t, c.GP(RegA) == 0, "expected A to wrap to 0, got %X", c.GP(RegA))
	assert(t, c.flag(FlagZero), "expected Zero flag set after wrap")

	c.executeUnary(OpDEC, RegA, 0)
	assert(t, c.GP(RegA) == 0xF, "expected A to wrap to F, got %X", c.GP(RegA))
}

func TestAddCarryAndOverflow(t *testing.T) {
	c := newTestCPU()
	c.setRegister(RegA, 0x8)
	c.setRegister(RegB, 0x8)
	c.executeBinary(OpADD, RegB, 0, RegA, 0)

	assert(t, c.GP(RegA) == 0x0, "expected A=0, got %X", c.GP(RegA))
	assert(t, c.flag(FlagCarry), "expected Carry set on 4-bit overflow")
	assert(t, c.flag(FlagOverflow), "expected signed Overflow set (neg+neg=pos)")
	assert(t, c.flag(FlagZero), "expected Zero flag set")
}

func TestCmpSetsZeroAndNegative(t *testing.T) {
	c := newTestCPU()
	c.setRegister(RegA, 0x5)
	c.setRegister(RegB, 0x5)
	c.executeBinary(OpCMP, RegA, 0, RegB, 0)
	assert(t, c.flag(FlagZero), "expected Zero flag on equal CMP")
	assert(t, !c.flag(FlagNegative), "expected Negative clear on equal CMP")

	c.setRegister(RegA, 0x9)
	c.setRegister(RegB, 0x3)
	c.executeBinary(OpCMP, RegA, 0, RegB, 0)
	assert(t, c.flag(FlagNegative), "expected Negative set when src > dst")
}

func TestMovSpliceInto16BitDest(t *testing.T) {
	c := newTestCPU()
	c.ta = 0x1230
	c.setRegister(RegA, 0xF)
	c.executeBinary(OpMOV, RegA, 0, RegTA, 0)
	assert(t, c.TA() == 0x123F, "expected low nibble spliced, got %04X", c.TA())
}

func TestPushPopRoundTrip16Bit(t *testing.T) {
	c := newTestCPU()
	c.sp = 0x2000
	c.ta = 0xABCD
	c.executePush(RegTA, 0)
	assert(t, c.sp == 0x2004, "expected SP advanced by 4 nibbles, got %04X", c.sp)

	c.ta = 0
	c.executeUnary(OpPOP, RegTA, 0)
	assert(t, c.sp == 0x2000, "expected SP restored, got %04X", c.sp)
	assert(t, c.TA() == 0xABCD, "expected round-tripped value, got %04X", c.TA())
}

func TestWriteToCVHalts(t *testing.T) {
	c := newTestCPU()
	c.writeOperand(RegCV, 0, 0x5)
	assert(t, c.Halted(), "expected writing to CV to set the Halt flag")
}

func TestJmpConditionTakenAndNotTaken(t *testing.T) {
	c := newTestCPU()
	c.setFlag(FlagZero, true)
	c.pc = 0x10

	// Z=1 -> bit 1, want 1: cond = (1<<3)|1 = 0x9
	c.executeJump(OpJMP, 0x9, 0x1234)
	assert(t, c.pc == 0x1234, "expected jump taken, pc=%04X", c.pc)

	c.setFlag(FlagZero, false)
	c.pc = 0x10
	c.executeJump(OpJMP, 0x9, 0x1234)
	assert(t, c.pc == 0x10, "expected jump not taken, pc=%04X", c.pc)
}

func TestJsrPushesReturnAddress(t *testing.T) {
	c := newTestCPU()
	c.flags = FlagTrue
	c.sp = 0x3000
	c.pc = 0x0040
	// True flag, index 7, want 1: always taken
	c.executeJump(OpJSR, 0xF, 0x9000)
	assert(t, c.pc == 0x9000, "expected jump to target, pc=%04X", c.pc)
	assert(t, c.sp == 0x3004, "expected return address pushed, sp=%04X", c.sp)
}

func TestFlagWritesStayIsolatedToTheirNibble(t *testing.T) {
	c := newTestCPU()
	c.setRegister(RegS1, 0x0) // writes only bits 7..4
	assert(t, c.Flags()&0x80 != 0, "expected bit 7 (True sentinel) always set after an S1 write")

	c.setRegister(RegS0, 0xF) // writes only bits 3..0
	assert(t, c.Flags()&0xF0 == 0x80, "expected S1 write unaffected by a later S0 write, got %08b", c.Flags())
	assert(t, c.Flags()&0x0F == 0xF, "expected S0 bits all set, got %08b", c.Flags())

	c.setRegister(RegS1, 0xF)
	assert(t, c.Flags()&0x0F == 0xF, "expected S1 write to leave S0 bits untouched, got %08b", c.Flags())
}

func TestInterruptDispatchesOncePerRisingEdge(t *testing.T) {
	c := newTestCPU()
	c.iv = 0x0100
	c.sp = 0x2000
	c.pc = 0x0010
	c.setFlag(FlagInterrupt, true)

	c.checkInterrupt()
	assert(t, c.pc == 0x0100, "expected dispatch to jump to IV, pc=%04X", c.pc)
	assert(t, c.interruptMask, "expected the mask latch set after dispatch")

	// A second check while the I-flag is still set must not re-dispatch.
	c.pc = 0x0010
	c.checkInterrupt()
	assert(t, c.pc == 0x0010, "expected no re-dispatch while the mask latch is set")

	// POP PC with the I-flag clear releases the latch (return-from-interrupt).
	c.setFlag(FlagInterrupt, false)
	c.executeUnary(OpPOP, RegPC, 0)
	assert(t, !c.interruptMask, "expected POP PC to clear the mask latch")
}

func TestEncodeDecodeRoundTripsAddInstruction(t *testing.T) {
	code := assembleOK(t, "ADD %b %a")
	c := newTestCPU()
	img := BuildImage(code, ImageHeader{})
	assert(t, c.Start(img) == nil, "expected Start to succeed")

	c.setRegister(RegA, 0x3)
	c.setRegister(RegB, 0x4)
	c.Step()

	assert(t, c.GP(RegA) == 0x7, "expected decode(encode(ADD %%b %%a)) to add B into A, got %X", c.GP(RegA))
}
