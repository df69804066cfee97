package vm

// KeySource is polled once per instruction for the current 16-key bitmap.
// Implementations must never block: Keymap is called from the CPU's hot
// loop. quit reports that the source has been closed (EOF, Ctrl+C) and the
// bridge should halt the machine.
type KeySource interface {
	Keymap() (bits uint16, quit bool)
}

// Bridge adapts a KeySource to the CPU's EventSetup/EventUpdate/EventTeardown
// hooks: it writes the keyboard bitmap into MMIO and asserts the Interrupt
// flag on a changed reading, reproducing sim_io's edge-detection policy
// exactly - a keymap change is only delivered when the machine isn't
// already mid-interrupt.
type Bridge struct {
	source       KeySource
	keyboardBase uint16

	lastKeymap uint16
	haveLast   bool
}

// NewBridge builds a Host Bridge around source, writing the keyboard bitmap
// at cfg.KeyboardBase.
func NewBridge(source KeySource, cfg Config) *Bridge {
	return &Bridge{source: source, keyboardBase: cfg.KeyboardBase}
}

// Install wires the bridge's hooks onto c.
func (b *Bridge) Install(c *CPU) {
	c.EventSetup = b.Setup
	c.EventUpdate = b.Update
	c.EventTeardown = b.Teardown
}

// Setup resets edge-detection state so the first poll after Start always
// looks like a change.
func (b *Bridge) Setup(c *CPU) {
	b.haveLast = false
}

// Update polls the key source once. A quit signal halts the machine
// outright; otherwise a changed keymap is latched into MMIO and the
// Interrupt flag is asserted, unless an interrupt is already pending or
// still latched from a prior dispatch.
func (b *Bridge) Update(c *CPU) {
	bits, quit := b.source.Keymap()
	if quit {
		c.setFlag(FlagHalt, true)
		return
	}

	changed := !b.haveLast || bits != b.lastKeymap
	b.lastKeymap = bits
	b.haveLast = true
	if !changed {
		return
	}
	if c.flag(FlagInterrupt) || c.interruptMask {
		return
	}

	base := uint32(b.keyboardBase)
	c.memory.Write(base, uint8(bits)&0xF)
	c.memory.Write(base+1, uint8(bits>>4)&0xF)
	c.memory.Write(base+2, uint8(bits>>8)&0xF)
	c.memory.Write(base+3, uint8(bits>>12)&0xF)
	c.setFlag(FlagInterrupt, true)
}

// Teardown releases the key source if it owns a resource (e.g. a tty in
// raw mode).
func (b *Bridge) Teardown(c *CPU) {
	if closer, ok := b.source.(interface{ Close() error }); ok {
		closer.Close()
	}
}

// FakeKeySource is a deterministic, test-friendly KeySource: it replays a
// fixed sequence of keymaps, one per call, holding the last entry once the
// sequence is exhausted.
type FakeKeySource struct {
	keymaps []uint16
	quit    bool
	pos     int
}

// NewFakeKeySource returns a KeySource that replays keymaps in order.
func NewFakeKeySource(keymaps ...uint16) *FakeKeySource {
	return &FakeKeySource{keymaps: keymaps}
}

// Quit marks the source as reporting quit on its next poll.
func (f *FakeKeySource) Quit() { f.quit = true }

func (f *FakeKeySource) Keymap() (uint16, bool) {
	if f.quit {
		return 0, true
	}
	if len(f.keymaps) == 0 {
		return 0, false
	}
	if f.pos >= len(f.keymaps) {
		return f.keymaps[len(f.keymaps)-1], false
	}
	v := f.keymaps[f.pos]
	f.pos++
	return v, false
}
