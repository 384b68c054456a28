package core

import (
	"sync"
	"time"
)

// SignalKind says which unit of work a Signal is about.
type SignalKind string

const (
	SignalEvent        SignalKind = "event"
	SignalLumi         SignalKind = "lumi"
	SignalRun          SignalKind = "run"
	SignalProcessBlock SignalKind = "processBlock"
	SignalFileOpen     SignalKind = "fileOpen"
	SignalFileClose    SignalKind = "fileClose"

	// SignalReport is the periodic progress report issued every
	// ReportEvery events.
	SignalReport SignalKind = "report"
)

// SignalPhase is begin or end.
type SignalPhase string

const (
	PhaseBegin SignalPhase = "begin"
	PhaseEnd   SignalPhase = "end"
)

// Signal is one lifecycle notification.  Only the fields that make
// sense for the Kind are set.
type Signal struct {
	Kind  SignalKind  `json:"kind"`
	Phase SignalPhase `json:"phase"`
	Time  time.Time   `json:"time"`

	// Source is the process GUID of the emitting source.
	Source string `json:"source,omitempty"`

	EventID   *EventID `json:"eventId,omitempty"`
	Run       uint64   `json:"run,omitempty"`
	Lumi      uint64   `json:"lumi,omitempty"`
	Process   string   `json:"process,omitempty"`
	File      string   `json:"file,omitempty"`
	ReadCount int      `json:"readCount,omitempty"`
}

// Signals fans lifecycle notifications out to registered sinks.  It
// is the boundary between the source core and instrumentation; the
// sinks in package sio subscribe here.
//
// Emit may be called from several goroutines (event sentries fire
// from parallel workers).  Registration is expected at setup time but
// is safe at any point.
type Signals struct {
	mu    sync.RWMutex
	sinks []func(Signal)
}

// Notify registers a sink.
func (s *Signals) Notify(f func(Signal)) {
	s.mu.Lock()
	s.sinks = append(s.sinks, f)
	s.mu.Unlock()
}

// Emit delivers sig to every registered sink, in registration order.
func (s *Signals) Emit(sig Signal) {
	if s == nil {
		return
	}
	if sig.Time.IsZero() {
		sig.Time = time.Now()
	}
	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()
	for _, f := range sinks {
		f(sig)
	}
}
