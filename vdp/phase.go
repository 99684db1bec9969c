// Package vdp implements the VDP1 command processor and VDP2 scanline
// compositor, plus the horizontal/vertical phase machine that drives both
// off the shared scheduler.
package vdp

import "github.com/user-none/satcore/scheduler"

// HPhase is a horizontal scanline phase. Phases cycle in this order.
type HPhase int

const (
	HActive HPhase = iota
	HRightBorder
	HSync
	HLeftBorder
)

// VPhase is a vertical field phase. Phases cycle in this order, with
// VCounterSkip present only on the short (262-line) field of an NTSC
// field pair.
type VPhase int

const (
	VActive VPhase = iota
	VBottomBorder
	VBlanking
	VCounterSkip
	VTopBorder
	VLastLine
)

// Resolution describes the TVMD-selected display mode.
type Resolution struct {
	HRes  int
	VRes  int
	HiRes bool // hi-res modes (704/720 wide) double the per-line master clock budget
	PAL   bool
}

// NTSC320x224 is the default/most common display mode.
var NTSC320x224 = Resolution{HRes: 320, VRes: 224}

// Phase transition event IDs, scoped to whichever scheduler the owning
// saturn.Machine wires this PhaseMachine into.
const (
	EventH scheduler.EventID = 1
	EventV scheduler.EventID = 2
)

// PhaseMachine tracks VDP2's horizontal and vertical display phase and
// drives the documented blanking-edge callbacks off two independent
// self-rearming scheduler events.
type PhaseMachine struct {
	Sched *scheduler.Scheduler

	HPhase HPhase
	VPhase VPhase
	Line   int // current scanline within the field
	Field  int // 0 or 1, alternates every VLastLine->VActive wrap

	// HTimings[p] is the master-clock duration of horizontal phase p.
	HTimings [4]uint64
	// VTimings[field][p] is the scanline count of vertical phase p for the
	// given field parity (NTSC fields alternate 263 and 262 lines; PAL
	// repeats field 0's table for both). VCounterSkip is 0 on the
	// long field and PAL, consuming 1 line of Blanking's share on the
	// short NTSC field instead.
	VTimings [2][6]uint64

	res Resolution

	// OnHBlank/OnVBlank report the blanking-line state on every edge.
	OnHBlank func(active bool)
	OnVBlank func(active bool)

	// OnVBlankIN fires once per field at BottomBorder->Blanking, exactly
	// when VBlank also begins (the border region itself is not blanked;
	// VBlank-IN is signalled at the first line of vertical blanking).
	// OnVBlankOUT fires at LastLine->Active.
	OnVBlankIN  func()
	OnVBlankOUT func()

	// OnVDP1FrameComplete is set at the VBlank-IN edge.
	OnVDP1FrameComplete func()
	// OnVDP1Swap is invoked at VBlank-OUT if a swap was requested.
	OnVDP1Swap func()
	// OnVDP1EraseRearm re-arms VDP1's erase-on-next-frame logic.
	OnVDP1EraseRearm func()
	// OnVDP2NewFrame kicks VDP2 rendering for the frame that just started.
	OnVDP2NewFrame func()
	// OnScanline fires once per line while VPhase == VActive, driving the
	// VDP2 renderer's per-line draw event.
	OnScanline func(line int)
}

// New returns a PhaseMachine wired to sched, defaulted to NTSC 320x224.
func New(sched *scheduler.Scheduler) *PhaseMachine {
	m := &PhaseMachine{Sched: sched}
	sched.RegisterEvent(EventH, m, func(_ uint64, ctx any) { ctx.(*PhaseMachine).fireH() })
	sched.RegisterEvent(EventV, m, func(_ uint64, ctx any) { ctx.(*PhaseMachine).fireV() })
	m.UpdateResolution(NTSC320x224)
	return m
}

// UpdateResolution recomputes HTimings/VTimings for a new TVMD selection.
// The horizontal total matches the canonical 1820/3413 master clocks for
// normal/hi-res; the vertical total matches 263/262 scanlines per field for
// NTSC.
func (m *PhaseMachine) UpdateResolution(res Resolution) {
	m.res = res

	total := uint64(1820)
	if res.HiRes {
		total = 3413
	}
	// Proportional split across the four horizontal phases; Active gets the
	// documented display-width share and the remainder is apportioned across
	// the blanking phases so the four always sum to total exactly.
	active := total * 71 / 100
	rightBorder := total * 3 / 100
	sync := total * 9 / 100
	leftBorder := total - active - rightBorder - sync
	m.HTimings = [4]uint64{active, rightBorder, sync, leftBorder}

	vActive := uint64(res.VRes)
	if res.PAL {
		// PAL fields are both 313 lines; no alternating parity, so no
		// VCounterSkip line either.
		rest := uint64(313) - vActive
		bottom, blank, top := rest*10/100, rest*70/100, rest*10/100
		last := rest - bottom - blank - top
		m.VTimings[0] = [6]uint64{vActive, bottom, blank, 0, top, last}
		m.VTimings[1] = m.VTimings[0]
		return
	}
	for field, total := range [2]uint64{263, 262} {
		rest := total - vActive
		bottom, blank, top := rest*10/100, rest*70/100, rest*10/100
		last := rest - bottom - blank - top
		var vCounterSkip uint64
		if field == 1 {
			// The short field borrows one line from Blanking's share to
			// hold the VCounterSkip phase, keeping the field's total line
			// count unchanged.
			vCounterSkip = 1
			blank--
		}
		m.VTimings[field] = [6]uint64{vActive, bottom, blank, vCounterSkip, top, last}
	}
}

// Start arms both phase chains from the scheduler's current cycle. Call once
// after wiring callbacks.
func (m *PhaseMachine) Start() {
	m.HPhase = HActive
	m.VPhase = VActive
	m.Line = 0
	m.armH()
	m.armV()
}

func (m *PhaseMachine) armH() {
	m.Sched.ScheduleFromNow(EventH, m.HTimings[m.HPhase])
}

func (m *PhaseMachine) armV() {
	m.Sched.ScheduleFromNow(EventV, m.VTimings[m.Field][m.VPhase]*m.LineTotal())
}

func (m *PhaseMachine) fireH() {
	wasBlank := m.HPhase != HActive
	m.HPhase = (m.HPhase + 1) % 4
	isBlank := m.HPhase != HActive
	if isBlank != wasBlank && m.OnHBlank != nil {
		m.OnHBlank(isBlank)
	}
	if m.HPhase == HActive {
		if m.VPhase == VActive {
			if m.OnScanline != nil {
				m.OnScanline(m.Line)
			}
			m.Line++
		} else {
			m.Line = 0
		}
	}
	m.armH()
}

func (m *PhaseMachine) fireV() {
	prev := m.VPhase
	switch prev {
	case VActive:
		m.VPhase = VBottomBorder
	case VBottomBorder:
		m.VPhase = VBlanking
		if m.OnVBlank != nil {
			m.OnVBlank(true)
		}
		if m.OnVBlankIN != nil {
			m.OnVBlankIN()
		}
		if m.OnVDP1FrameComplete != nil {
			m.OnVDP1FrameComplete()
		}
	case VBlanking:
		if m.VTimings[m.Field][VCounterSkip] > 0 {
			m.VPhase = VCounterSkip
		} else {
			m.VPhase = VTopBorder
		}
	case VCounterSkip:
		m.VPhase = VTopBorder
	case VTopBorder:
		m.VPhase = VLastLine
	case VLastLine:
		m.VPhase = VActive
		if m.OnVBlank != nil {
			m.OnVBlank(false)
		}
		if m.OnVBlankOUT != nil {
			m.OnVBlankOUT()
		}
		if m.OnVDP1Swap != nil {
			m.OnVDP1Swap()
		}
		if m.OnVDP1EraseRearm != nil {
			m.OnVDP1EraseRearm()
		}
		if m.OnVDP2NewFrame != nil {
			m.OnVDP2NewFrame()
		}
		m.Field ^= 1
	}
	m.armV()
}

// LineTotal returns the sum of HTimings, the canonical per-line master clock
// count for the current resolution.
func (m *PhaseMachine) LineTotal() uint64 {
	var sum uint64
	for _, t := range m.HTimings {
		sum += t
	}
	return sum
}

// FieldTotal returns the sum of VTimings for the given field parity, the
// canonical scanline count for a full field (263/262 for NTSC interlace).
func (m *PhaseMachine) FieldTotal(field int) uint64 {
	var sum uint64
	for _, t := range m.VTimings[field] {
		sum += t
	}
	return sum
}

// phaseStateSize is the save-state byte size: HPhase, VPhase (4 bytes
// each), Line, Field (4 bytes each).
const phaseStateSize = 4 * 4

// SerializeSize returns the save-state byte size for the phase machine's
// logical position. The exact master-clock offset within the current phase
// is not persisted: Deserialize re-arms both chains from the scheduler's
// current cycle via Start, trading sub-line timing precision across a
// save/load boundary for a simple, always-consistent restart point.
func (m *PhaseMachine) SerializeSize() int { return phaseStateSize }

// Serialize writes the current phase/line/field position into data at
// offset.
func (m *PhaseMachine) Serialize(data []byte, offset int) int {
	putU32At(data, offset, uint32(m.HPhase))
	putU32At(data, offset+4, uint32(m.VPhase))
	putU32At(data, offset+8, uint32(m.Line))
	putU32At(data, offset+12, uint32(m.Field))
	return offset + phaseStateSize
}

// Deserialize restores the phase/line/field position from data at offset.
// Call Start after Deserialize to re-arm the scheduler events.
func (m *PhaseMachine) Deserialize(data []byte, offset int) int {
	m.HPhase = HPhase(getU32At(data, offset))
	m.VPhase = VPhase(getU32At(data, offset+4))
	m.Line = int(getU32At(data, offset+8))
	m.Field = int(getU32At(data, offset+12))
	return offset + phaseStateSize
}

func putU32At(data []byte, offset int, v uint32) {
	data[offset] = byte(v)
	data[offset+1] = byte(v >> 8)
	data[offset+2] = byte(v >> 16)
	data[offset+3] = byte(v >> 24)
}

func getU32At(data []byte, offset int) uint32 {
	return uint32(data[offset]) | uint32(data[offset+1])<<8 | uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
}
