package vm

import (
	"os"
	"runtime/debug"
	"strconv"
)

func gogcOrDefault() int {
	key, ok := os.LookupEnv("GOGC")
	if !ok {
		return 100
	}
	v, err := strconv.Atoi(key)
	if err != nil {
		return 100
	}
	return v
}

// Run executes the loaded image to completion: call_update once before the
// loop, once per instruction, and once more after the Halt flag stops the
// loop - the same three-call shape as the original machine_run for a
// single-instruction program.
//
// The garbage collector is disabled for the duration of the run. Memory for
// a program is allocated up front at Start; the hot fetch/decode/execute
// loop below should not need to allocate, so pausing the collector avoids
// paying for GC pauses in the tightest part of the emulator.
func (c *CPU) Run() {
	gcPercent := gogcOrDefault()
	debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	c.callUpdate()
	for !c.Halted() {
		c.Step()
		c.callUpdate()
		c.checkInterrupt()
	}
	c.callUpdate()
	c.running = false
}

func (c *CPU) callUpdate() {
	if c.EventUpdate != nil {
		c.EventUpdate(c)
	}
}
