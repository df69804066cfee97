package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RunDebug drives the machine one instruction at a time from a small
// interactive console, mirroring the original's line-oriented debugger:
// "n"/"next" single-steps, "r"/"run" free-runs until the next breakpoint or
// halt, and "b <addr>" toggles a breakpoint on a hex program address.
func (c *CPU) RunDebug() {
	fmt.Printf("Commands:\n\tn or next: execute next instruction\n\tr or run: run program\n\tb or break <hex addr>: break on address (or remove break)\n\n")

	c.printState()

	reader := bufio.NewReader(os.Stdin)
	waitForInput := true
	breakpoints := make(map[uint16]struct{})
	lastBreakAddr := int32(-1)

	for {
		line := ""
		if waitForInput {
			fmt.Print("\n->")
			line, _ = reader.ReadString('\n')
			line = strings.ToLower(strings.TrimSpace(line))
		} else {
			addr := c.pc
			if _, ok := breakpoints[addr]; ok && int32(addr) != lastBreakAddr {
				fmt.Println("breakpoint")
				c.printState()
				waitForInput = true
				lastBreakAddr = int32(addr)
				continue
			}
		}

		switch {
		case !waitForInput || line == "n" || line == "next":
			lastBreakAddr = -1

			if c.Halted() {
				fmt.Println("machine halted")
				return
			}

			c.Step()
			c.callUpdate()
			c.checkInterrupt()

			if waitForInput {
				c.printState()
			}

			if c.Halted() {
				if c.lastFault != "" {
					fmt.Println("fault:", c.lastFault)
				} else {
					fmt.Println("machine halted")
				}
				c.printState()
				return
			}

		case line == "r" || line == "run":
			waitForInput = false

		case strings.HasPrefix(line, "b"):
			arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "break"), "b"))
			addr, err := strconv.ParseUint(arg, 16, 16)
			if err != nil {
				fmt.Println("unknown address:", err)
				continue
			}
			a := uint16(addr)
			if _, ok := breakpoints[a]; ok {
				delete(breakpoints, a)
			} else {
				breakpoints[a] = struct{}{}
			}
		}
	}
}

func (c *CPU) printState() {
	fmt.Printf("pc=%04X sp=%04X iv=%04X ix=%04X ta=%04X flags=%08b\n",
		c.pc, c.sp, c.iv, c.ix, c.ta, c.flags)
	fmt.Printf("a=%X b=%X c=%X d=%X e=%X f=%X\n",
		c.gp[RegA], c.gp[RegB], c.gp[RegC], c.gp[RegD], c.gp[RegE], c.gp[RegF])
}
