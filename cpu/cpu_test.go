package cpu

import "testing"

func TestNullUnitConsumesFullBudget(t *testing.T) {
	var u NullUnit
	if got := u.Advance(123); got != 123 {
		t.Fatalf("Advance(123) = %d, want 123", got)
	}
}

func TestInterruptSinkFuncDispatches(t *testing.T) {
	var gotLevel int
	var gotVector uint8
	cleared := false
	sink := InterruptSinkFunc{
		Set:   func(level int, vector uint8) { gotLevel, gotVector = level, vector },
		Clear: func() { cleared = true },
	}
	sink.SetInterrupt(7, 0x41)
	if gotLevel != 7 || gotVector != 0x41 {
		t.Fatalf("SetInterrupt dispatched (%d, %#x), want (7, 0x41)", gotLevel, gotVector)
	}
	sink.ClearInterrupt()
	if !cleared {
		t.Fatalf("ClearInterrupt did not dispatch")
	}
}

func TestInterruptSinkFuncNilSafe(t *testing.T) {
	var sink InterruptSinkFunc
	sink.SetInterrupt(1, 2) // must not panic
	sink.ClearInterrupt()   // must not panic
}
