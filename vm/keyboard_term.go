package vm

import (
	"bufio"
	"os"

	"golang.org/x/term"
)

// TerminalKeySource maps a raw-mode tty's keystrokes onto the 16-key hex
// keypad the original machine's keyboard register expects: the 16 hex
// digits set bit positions 0-15, all other input is ignored, and Ctrl+C or
// EOF requests a quit.
type TerminalKeySource struct {
	fd       int
	oldState *term.State

	updates *nonBlockingChan[uint16]
	quit    *nonBlockingChan[struct{}]

	keymap uint16
}

// NewTerminalKeySource puts stdin into raw mode and starts a background
// reader goroutine. Call Close to restore the terminal.
func NewTerminalKeySource() (*TerminalKeySource, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}

	k := &TerminalKeySource{
		fd:       fd,
		oldState: oldState,
		updates:  newNonBlockingChan[uint16](64),
		quit:     newNonBlockingChan[struct{}](1),
	}
	go k.readLoop()
	return k, nil
}

func (k *TerminalKeySource) readLoop() {
	r := bufio.NewReader(os.Stdin)
	bits := uint16(0)
	for {
		ch, _, err := r.ReadRune()
		if err != nil {
			k.quit.send(struct{}{})
			return
		}
		if ch == 0x03 { // Ctrl+C
			k.quit.send(struct{}{})
			return
		}
		bit, ok := hexKeyBit(ch)
		if !ok {
			continue
		}
		bits ^= 1 << bit
		k.updates.send(bits)
	}
}

func hexKeyBit(ch rune) (uint, bool) {
	switch {
	case ch >= '0' && ch <= '9':
		return uint(ch - '0'), true
	case ch >= 'a' && ch <= 'f':
		return uint(ch-'a') + 10, true
	case ch >= 'A' && ch <= 'F':
		return uint(ch-'A') + 10, true
	default:
		return 0, false
	}
}

// Keymap implements KeySource. It never blocks: it drains whatever the
// reader goroutine has queued since the last poll and reports the most
// recent bitmap.
func (k *TerminalKeySource) Keymap() (uint16, bool) {
	if _, ok := k.quit.tryReceive(); ok {
		return k.keymap, true
	}
	for {
		v, ok := k.updates.tryReceive()
		if !ok {
			break
		}
		k.keymap = v
	}
	return k.keymap, false
}

// Close restores the terminal's prior mode.
func (k *TerminalKeySource) Close() error {
	if k.oldState == nil {
		return nil
	}
	return term.Restore(k.fd, k.oldState)
}
