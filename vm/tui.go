package vm

import (
	"fmt"
	"io"
)

// Render draws a single-frame status dashboard for c, grounded in the
// original machine's sim_print: general-purpose registers, the flag bank,
// the five pointer registers, and the keyboard MMIO band. It uses plain
// ASCII box-drawing and a dimmed/bright split instead of ANSI SGR codes so
// output stays legible when redirected to a file.
func Render(w io.Writer, c *CPU) {
	fmt.Fprintln(w, "+-------------+--------+------------------------------+")
	fmt.Fprintf(w, "| %s |\n", regLine(c))
	fmt.Fprintln(w, "+-------------+--------+------------------------------+")
	fmt.Fprintf(w, "| %s |\n", flagLine(c))
	fmt.Fprintln(w, "+-------------+--------+------------------------------+")
	fmt.Fprintf(w, "| %s |\n", ptrLine(c))
	fmt.Fprintln(w, "+-------------+--------+------------------------------+")
	for _, row := range kbRows(c) {
		fmt.Fprintf(w, "| %s |\n", row)
	}
	fmt.Fprintln(w, "+-------------+--------+------------------------------+")
}

func regLine(c *CPU) string {
	return fmt.Sprintf("A=%X B=%X C=%X D=%X E=%X F=%X",
		c.GP(RegA), c.GP(RegB), c.GP(RegC), c.GP(RegD), c.GP(RegE), c.GP(RegF))
}

func flagBit(set bool, ch string) string {
	if set {
		return ch
	}
	return "."
}

func flagLine(c *CPU) string {
	f := c.Flags()
	return fmt.Sprintf("H=%s I=%s O=%s C=%s Z=%s N=%s",
		flagBit(f&FlagHalt != 0, "H"),
		flagBit(f&FlagInterrupt != 0, "I"),
		flagBit(f&FlagOverflow != 0, "O"),
		flagBit(f&FlagCarry != 0, "C"),
		flagBit(f&FlagZero != 0, "Z"),
		flagBit(f&FlagNegative != 0, "N"))
}

func ptrLine(c *CPU) string {
	return fmt.Sprintf("PC=%04X SP=%04X IV=%04X IX=%04X TA=%04X",
		c.PC(), c.SP(), c.IV(), c.IX(), c.TA())
}

// kbRows renders the four-nibble keyboard MMIO band, one nibble per memory
// byte starting at KeyboardBase, in the four rows the dashboard reserves
// for it.
func kbRows(c *CPU) []string {
	base := uint32(DefaultConfig().KeyboardBase)
	rows := make([]string, 4)
	for i := range rows {
		rows[i] = fmt.Sprintf("kb[%d]=%X", i, c.memory.Read(base+uint32(i))&0xF)
	}
	return rows
}
