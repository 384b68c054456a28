package core

import (
	"testing"
	"time"
)

// fakeClock returns a clock that can be moved by hand.
func fakeClock(start time.Time) (func() time.Time, func(d time.Duration)) {
	now := start
	return func() time.Time { return now },
		func(d time.Duration) { now = now.Add(d) }
}

func TestLimitsCounting(t *testing.T) {
	l := NewLimits(2, 1, 0)
	if l.Reached() {
		t.Fatal("nothing consumed yet")
	}
	l.CountEvent()
	l.CountEvent()
	if !l.EventLimitReached() {
		t.Fatal("event budget should be exhausted")
	}
	if l.RemainingEvents() != 0 {
		t.Fatalf("got %d remaining events", l.RemainingEvents())
	}
	l.CountEvent() // must not go negative
	if l.RemainingEvents() != 0 {
		t.Fatalf("got %d remaining events after over-counting", l.RemainingEvents())
	}
	l.CountLumi()
	if !l.LumiLimitReached() {
		t.Fatal("lumi budget should be exhausted")
	}
}

func TestLimitsUnbounded(t *testing.T) {
	l := NewLimits(Unbounded, Unbounded, 0)
	for i := 0; i < 100; i++ {
		l.CountEvent()
		l.CountLumi()
	}
	if l.Reached() {
		t.Fatal("unbounded limits should never be reached")
	}
	if l.RemainingEvents() != Unbounded {
		t.Fatalf("got %d remaining events", l.RemainingEvents())
	}
}

func TestLimitsRepeatRestoresCounts(t *testing.T) {
	l := NewLimits(3, 2, 0)
	l.CountEvent()
	l.CountEvent()
	l.CountEvent()
	l.CountLumi()
	l.CountLumi()
	if !l.Reached() {
		t.Fatal("budgets should be exhausted")
	}
	l.Repeat()
	if l.RemainingEvents() != 3 || l.RemainingLumis() != 2 {
		t.Fatalf("got %d/%d remaining after Repeat",
			l.RemainingEvents(), l.RemainingLumis())
	}
	if l.Reached() {
		t.Fatal("budgets should be restored")
	}
}

func TestLimitsRampdown(t *testing.T) {
	clock, advance := fakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	l := NewLimitsAt(Unbounded, Unbounded, 5, clock)
	if l.LumiLimitReached() {
		t.Fatal("deadline not passed yet")
	}
	advance(5 * time.Second)
	if l.LumiLimitReached() {
		t.Fatal("deadline must be exceeded, not merely met")
	}
	advance(time.Second)
	if !l.LumiLimitReached() {
		t.Fatal("deadline passed; lumi limit should report reached")
	}

	// Repeat restores counts but does not restart the clock.
	l.Repeat()
	if !l.LumiLimitReached() {
		t.Fatal("Repeat must not reset the rampdown deadline")
	}
}

func TestLimitsDecreaseRemainingEventsBy(t *testing.T) {
	l := NewLimits(5, Unbounded, 0)
	l.DecreaseRemainingEventsBy(3)
	if l.RemainingEvents() != 2 {
		t.Fatalf("got %d remaining events", l.RemainingEvents())
	}
	l.DecreaseRemainingEventsBy(10)
	if l.RemainingEvents() != 0 {
		t.Fatalf("got %d remaining events after clamping", l.RemainingEvents())
	}

	unbounded := NewLimits(Unbounded, Unbounded, 0)
	unbounded.DecreaseRemainingEventsBy(10)
	if unbounded.RemainingEvents() != Unbounded {
		t.Fatalf("got %d remaining events on unbounded tracker",
			unbounded.RemainingEvents())
	}
}
