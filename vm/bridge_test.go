package vm

import "testing"

func TestBridgeAssertsInterruptOnceForRepeatedKeymap(t *testing.T) {
	c := newTestCPU()
	c.flags = FlagTrue
	source := NewFakeKeySource(0x1, 0x1, 0x1)
	b := NewBridge(source, DefaultConfig())
	b.Install(c)
	b.Setup(c)

	b.Update(c)
	assert(t, c.flag(FlagInterrupt), "expected Interrupt flag set on first changed keymap")

	c.setFlag(FlagInterrupt, false)
	b.Update(c)
	assert(t, !c.flag(FlagInterrupt), "expected no re-assert on an unchanged keymap")

	b.Update(c)
	assert(t, !c.flag(FlagInterrupt), "expected still no re-assert on a third identical keymap")
}

func TestBridgeSkipsWhileInterruptPending(t *testing.T) {
	c := newTestCPU()
	c.flags = FlagTrue
	source := NewFakeKeySource(0x1, 0x2)
	b := NewBridge(source, DefaultConfig())
	b.Install(c)
	b.Setup(c)

	c.setFlag(FlagInterrupt, true)
	b.Update(c) // keymap changes 0 -> 0x1, but Interrupt is already set
	assert(t, c.memory.Read(uint32(DefaultConfig().KeyboardBase)) == 0, "expected no MMIO write while Interrupt is pending")

	c.setFlag(FlagInterrupt, false)
	b.Update(c) // keymap changes 0x1 -> 0x2, Interrupt now clear
	assert(t, c.flag(FlagInterrupt), "expected Interrupt asserted once pending flag clears")
	assert(t, c.memory.Read(uint32(DefaultConfig().KeyboardBase)) == 0x2, "expected keymap low nibble written, got %X", c.memory.Read(uint32(DefaultConfig().KeyboardBase)))
}

func TestBridgeQuitHaltsMachine(t *testing.T) {
	c := newTestCPU()
	source := NewFakeKeySource()
	source.Quit()
	b := NewBridge(source, DefaultConfig())
	b.Install(c)
	b.Setup(c)

	b.Update(c)
	assert(t, c.Halted(), "expected quit to set the Halt flag")
}
