package scu

// Timer1Mode selects whether Timer 1 fires on every line or only on lines
// where Timer 0 matches its compare value.
type Timer1Mode int

const (
	Timer1EveryLine Timer1Mode = iota
	Timer1LineSpecific
)

// Timers implements SCU Timer 0 and Timer 1. Timer 0 counts HBlank-IN edges
// within the active display region; Timer 1 is a reload-driven one-shot
// armed per line, with an optional dependency on Timer 0's comparison.
type Timers struct {
	Enabled bool

	Timer0Compare uint16
	timer0Counter uint16

	Timer1Reload uint16
	Timer1Mode   Timer1Mode
	timer1Fired  bool // tick armed and not yet fired

	// RaiseTimer0/RaiseTimer1 notify the interrupt controller.
	RaiseTimer0 func()
	RaiseTimer1 func()
	// ScheduleTimer1Tick arms a one-shot delta-cycles-from-now event that
	// calls RaiseTimer1 when it fires; the scheduling itself belongs to
	// the caller (the VDP/scheduler glue), not this package, mirroring the
	// spec's separation of the timer's logical behavior from scheduler
	// plumbing.
	ScheduleTimer1Tick func(deltaCycles uint64)
}

// NewTimers returns a Timers with both counters at zero and every-line mode.
func NewTimers() *Timers {
	return &Timers{Timer1Mode: Timer1EveryLine}
}

// Timer0Counter returns the current Timer 0 running count.
func (t *Timers) Timer0Counter() uint16 { return t.timer0Counter }

// OnHBlankIN is called on every HBlank-IN event inside the active vertical
// region. It checks Timer 0 for a compare match, conditionally arms Timer 1,
// then increments Timer 0.
func (t *Timers) OnHBlankIN() {
	if !t.Enabled {
		return
	}

	timer0Matched := t.timer0Counter == t.Timer0Compare
	if timer0Matched {
		if t.RaiseTimer0 != nil {
			t.RaiseTimer0()
		}
	}

	if !t.timer1Fired && (t.Timer1Mode == Timer1EveryLine || timer0Matched) {
		t.timer1Fired = true
		if t.ScheduleTimer1Tick != nil {
			t.ScheduleTimer1Tick(uint64(t.Timer1Reload))
		}
	}

	t.timer0Counter++
}

// OnVBlankOUT resets Timer 0 to zero and re-arms Timer 1 for the new frame.
func (t *Timers) OnVBlankOUT() {
	t.timer0Counter = 0
	t.timer1Fired = false
}

// FireTimer1 is invoked by the scheduled Timer 1 tick event; it notifies the
// interrupt controller and lets the next HBlank-IN arm Timer 1 again. Kept
// separate from ScheduleTimer1Tick's callback so tests can call it directly
// without a real scheduler.
func (t *Timers) FireTimer1() {
	t.timer1Fired = false
	if t.RaiseTimer1 != nil {
		t.RaiseTimer1()
	}
}

// timersStateSize is the save-state byte size: Enabled, Timer0Compare,
// timer0Counter, Timer1Reload, Timer1Mode, timer1Fired.
const timersStateSize = 1 + 2 + 2 + 2 + 1 + 1

// SerializeSize returns the save-state byte size for the timers.
func (t *Timers) SerializeSize() int { return timersStateSize }

// Serialize writes the timers' configured and running state into data at
// offset.
func (t *Timers) Serialize(data []byte, offset int) int {
	offset = putBool(data, offset, t.Enabled)
	offset = putU16(data, offset, t.Timer0Compare)
	offset = putU16(data, offset, t.timer0Counter)
	offset = putU16(data, offset, t.Timer1Reload)
	data[offset] = uint8(t.Timer1Mode)
	offset++
	offset = putBool(data, offset, t.timer1Fired)
	return offset
}

// Deserialize restores the timers' state from data at offset.
func (t *Timers) Deserialize(data []byte, offset int) int {
	t.Enabled, offset = getBool(data, offset)
	t.Timer0Compare, offset = getU16(data, offset)
	t.timer0Counter, offset = getU16(data, offset)
	t.Timer1Reload, offset = getU16(data, offset)
	t.Timer1Mode = Timer1Mode(data[offset])
	offset++
	t.timer1Fired, offset = getBool(data, offset)
	return offset
}
