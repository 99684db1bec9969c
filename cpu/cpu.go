// Package cpu defines the narrow interfaces the Master/Slave SH-2
// interpreters, the SCU DSP, and the audio mixer present to the core. The
// CPU/DSP interpreters themselves are external collaborators; this package
// specifies only the contract the scheduler, SCU, and bus matrix drive them
// through: tick-by-cycles, memory accessors, interrupt injection, callback
// hooks.
package cpu

// Unit is any cycle-driven hardware unit that advances in step with the
// scheduler (an SH-2 core, the SCU DSP, the SCSP's 68000-class CPU). Advance
// must consume at most the requested cycle budget and return the number
// actually consumed, so a unit that hits a bus stall mid-instruction can
// yield early rather than looping or blocking.
type Unit interface {
	Advance(cycles int) (consumed int)
}

// InterruptSink is the callback surface a CPU's interrupt pin presents to
// the SCU. Level 0 clears the line; any other level re-raises it with a new
// vector. The master callback must be re-raised with (0, 0) on
// acknowledgement.
type InterruptSink interface {
	SetInterrupt(level int, vector uint8)
	ClearInterrupt()
}

// InterruptSinkFunc adapts a plain function to InterruptSink, following the
// same direct-callback wiring style used to connect other hardware units
// (plain function values rather than an observer registry).
type InterruptSinkFunc struct {
	Set   func(level int, vector uint8)
	Clear func()
}

func (f InterruptSinkFunc) SetInterrupt(level int, vector uint8) {
	if f.Set != nil {
		f.Set(level, vector)
	}
}

func (f InterruptSinkFunc) ClearInterrupt() {
	if f.Clear != nil {
		f.Clear()
	}
}

// MemoryBus is the four-way width-dispatched accessor contract the bus
// matrix exposes to CPU glue code.
type MemoryBus interface {
	Read8(addr uint32) uint8
	Read16(addr uint32) uint16
	Read32(addr uint32) uint32
	Write8(addr uint32, v uint8)
	Write16(addr uint32, v uint16)
	Write32(addr uint32, v uint32)
}

// NullUnit is a Unit that always consumes its full budget doing nothing.
// Useful as a placeholder CPU/DSP collaborator in tests and in the headless
// demo harness, where no real SH-2 interpreter is wired in.
type NullUnit struct{}

func (NullUnit) Advance(cycles int) int { return cycles }
