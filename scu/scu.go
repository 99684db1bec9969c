package scu

import "github.com/user-none/satcore/bus"

// DSP is the SCU DSP host's external collaborator interface. Only the tick-
// by-cycles and completion-signal surface the SCU needs is specified here;
// the DSP's own instruction interpreter lives outside this module's scope.
type DSP interface {
	Advance(cycles int) (consumed int)
	// ProgramEnded reports whether the DSP's program counter just hit an
	// END instruction, used to raise DSPEnd.
	ProgramEnded() bool
}

// SCU wires together the DMA engine, interrupt controller, timers, and
// cartridge slot into the single unit the bus matrix and VDP address.
type SCU struct {
	DMA     *Engine
	Intc    *InterruptController
	Timers  *Timers
	Cart    Slot
	DSPUnit DSP

	CartID uint8
}

// New creates a fully wired SCU over the given bus, with interrupt raises
// routed from the DMA engine and timers into the interrupt controller, and
// an empty cartridge slot.
func New(b *bus.Bus) *SCU {
	s := &SCU{
		DMA:    NewEngine(b),
		Intc:   NewInterruptController(),
		Timers: NewTimers(),
		Cart:   EmptySlot{},
	}

	s.DMA.RaiseDMAEnd = func(level int) {
		switch level {
		case 0:
			s.Intc.Raise(SrcLevel0DMAEnd)
		case 1:
			s.Intc.Raise(SrcLevel1DMAEnd)
		case 2:
			s.Intc.Raise(SrcLevel2DMAEnd)
		}
	}
	s.DMA.RaiseDMAIllegal = func() { s.Intc.Raise(SrcDMAIllegal) }

	s.Timers.RaiseTimer0 = func() { s.Intc.Raise(SrcTimer0) }
	s.Timers.RaiseTimer1 = func() { s.Intc.Raise(SrcTimer1) }

	return s
}

// OnHBlankIN notifies the timers and, via TriggerDMATransfer, any channel
// configured to start on HBlank-IN.
func (s *SCU) OnHBlankIN() {
	s.Timers.OnHBlankIN()
	s.Intc.Raise(SrcHBlankIN)
	s.DMA.TriggerDMATransfer(TriggerHBlankIN)
}

// OnVBlankIN raises the VBlank-IN interrupt and triggers matching DMA
// channels.
func (s *SCU) OnVBlankIN() {
	s.Intc.Raise(SrcVBlankIN)
	s.DMA.TriggerDMATransfer(TriggerVBlankIN)
}

// OnVBlankOUT resets the timers for the new frame, raises VBlank-OUT, and
// triggers matching DMA channels.
func (s *SCU) OnVBlankOUT() {
	s.Timers.OnVBlankOUT()
	s.Intc.Raise(SrcVBlankOUT)
	s.DMA.TriggerDMATransfer(TriggerVBlankOUT)
}

// OnSpriteDrawEnd is called by the VDP1 command processor when it finishes
// a frame's drawing list.
func (s *SCU) OnSpriteDrawEnd() {
	s.Intc.Raise(SrcSpriteDrawEnd)
	s.DMA.TriggerDMATransfer(TriggerSpriteDrawEnd)
}

// OnSoundRequest is called by the SCSP collaborator to trigger a
// sound-request DMA.
func (s *SCU) OnSoundRequest() {
	s.Intc.Raise(SrcSoundRequest)
	s.DMA.TriggerDMATransfer(TriggerSoundRequest)
}

// ReadCartID implements the fixed cartridge-ID accessor at 0x04FF_FFFE
// : 0xFF00 | cart_id.
func (s *SCU) ReadCartID() uint16 {
	return 0xFF00 | uint16(s.Cart.ID())
}

// AdvanceDSP ticks the DSP collaborator by cycles and raises DSPEnd if its
// program just completed.
func (s *SCU) AdvanceDSP(cycles int) int {
	if s.DSPUnit == nil {
		return cycles
	}
	consumed := s.DSPUnit.Advance(cycles)
	if s.DSPUnit.ProgramEnded() {
		s.Intc.Raise(SrcDSPEnd)
	}
	return consumed
}
