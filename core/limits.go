package core

import (
	"time"
)

// Unbounded is the count that means "no limit".
const Unbounded = -1

// Limits tracks how many events and lumis a source may still deliver,
// plus an optional wall-clock rampdown deadline.  Pure bookkeeping; no
// IO.
//
// Limits is owned by a single Source and is not safe for concurrent
// mutation.
type Limits struct {
	maxEvents       int
	remainingEvents int
	maxLumis        int
	remainingLumis  int
	rampdownSeconds int

	start time.Time
	now   func() time.Time
}

// NewLimits makes a Limits.  Use Unbounded (-1) for no limit.  If
// rampdownSeconds is positive, LumiLimitReached starts reporting true
// once that much wall-clock time has elapsed, which lets a
// bounded-time job stop gracefully at a lumi boundary instead of
// mid-event.
func NewLimits(maxEvents, maxLumis, rampdownSeconds int) *Limits {
	return NewLimitsAt(maxEvents, maxLumis, rampdownSeconds, time.Now)
}

// NewLimitsAt is NewLimits with an injectable clock.
func NewLimitsAt(maxEvents, maxLumis, rampdownSeconds int, now func() time.Time) *Limits {
	if now == nil {
		now = time.Now
	}
	return &Limits{
		maxEvents:       maxEvents,
		remainingEvents: maxEvents,
		maxLumis:        maxLumis,
		remainingLumis:  maxLumis,
		rampdownSeconds: rampdownSeconds,
		start:           now(),
		now:             now,
	}
}

// EventLimitReached reports whether the event budget is exhausted.
func (l *Limits) EventLimitReached() bool {
	return l.remainingEvents == 0
}

// LumiLimitReached reports whether the lumi budget is exhausted or the
// rampdown deadline has passed.
func (l *Limits) LumiLimitReached() bool {
	if l.remainingLumis == 0 {
		return true
	}
	if l.rampdownSeconds <= 0 {
		return false
	}
	return l.now().Sub(l.start) > time.Duration(l.rampdownSeconds)*time.Second
}

// Reached reports whether any limit is exhausted.  The event limit is
// checked before the lumi/rampdown limit.
func (l *Limits) Reached() bool {
	return l.EventLimitReached() || l.LumiLimitReached()
}

// CountEvent consumes one event from the budget.
func (l *Limits) CountEvent() {
	if l.remainingEvents > 0 {
		l.remainingEvents--
	}
}

// CountLumi consumes one lumi from the budget.
func (l *Limits) CountLumi() {
	if l.remainingLumis > 0 {
		l.remainingLumis--
	}
}

// DecreaseRemainingEventsBy consumes n events at once.  Used when a
// multicore receiver tells this process to skip events that another
// worker will read.
func (l *Limits) DecreaseRemainingEventsBy(n int) {
	if l.remainingEvents == Unbounded {
		return
	}
	l.remainingEvents -= n
	if l.remainingEvents < 0 {
		l.remainingEvents = 0
	}
}

// Repeat resets the remaining counts to the configured maxima.  The
// wall-clock rampdown state is deliberately untouched.
func (l *Limits) Repeat() {
	l.remainingEvents = l.maxEvents
	l.remainingLumis = l.maxLumis
}

// MaxEvents is the configured event budget (-1 for unbounded).
func (l *Limits) MaxEvents() int { return l.maxEvents }

// RemainingEvents is the remaining event budget (-1 for unbounded).
func (l *Limits) RemainingEvents() int { return l.remainingEvents }

// MaxLumis is the configured lumi budget (-1 for unbounded).
func (l *Limits) MaxLumis() int { return l.maxLumis }

// RemainingLumis is the remaining lumi budget (-1 for unbounded).
func (l *Limits) RemainingLumis() int { return l.remainingLumis }

// ProcessingStart is when this Limits started its clock.
func (l *Limits) ProcessingStart() time.Time { return l.start }
