package vm

import "testing"

func TestMemoryOutOfRangeAccessNeverPanics(t *testing.T) {
	m := NewMemory(16)
	assert(t, m.Read(1000) == 0, "expected out-of-range read to return 0")
	assert(t, !m.Write(1000, 0xA), "expected out-of-range write to report failure")
}

func TestMemoryWriteMasksToNibble(t *testing.T) {
	m := NewMemory(16)
	m.Write(0, 0xFF)
	assert(t, m.Read(0) == 0xF, "expected write to mask to low nibble, got %X", m.Read(0))
}

func TestMemoryIndexedWraps(t *testing.T) {
	m := NewMemory(4)
	m.WriteIndexed(2, 3, 0x5) // (2+3) mod 4 = 1
	assert(t, m.Read(1) == 0x5, "expected indexed write to wrap, got %X", m.Read(1))
	assert(t, m.ReadIndexed(2, 3) == 0x5, "expected indexed read to wrap the same way")
}

func TestLoadImageZeroesRemainder(t *testing.T) {
	m := NewMemory(8)
	m.Write(5, 0xA)
	m.LoadImage([]byte{0x1, 0x2})
	assert(t, m.Read(0) == 0x1 && m.Read(1) == 0x2, "expected image bytes copied in")
	assert(t, m.Read(5) == 0, "expected stale bytes past the image to be cleared, got %X", m.Read(5))
}
