package core

// Sentries bracket a unit of work with begin/end signals.  Making one
// emits the begin; Close emits the end.  Use them with defer so the
// end fires on every exit path, including a panic:
//
//	sentry := core.NewEventSourceSentry(src, id)
//	defer sentry.Close()
//
// Close is idempotent, so an early explicit Close followed by the
// deferred one still emits exactly one end.  A sentry is tied to
// exactly one scope: don't copy one, and don't reuse one.

import (
	"time"
)

// noCopy makes `go vet` complain when a sentry is copied.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

type sentry struct {
	noCopy noCopy

	signals *Signals
	sig     Signal
	done    bool
}

func newSentry(src *Source, sig Signal) sentry {
	sig.Source = src.ProcessGUID()
	sig.Phase = PhaseBegin
	src.Signals().Emit(sig)
	return sentry{signals: src.Signals(), sig: sig}
}

func (s *sentry) close() {
	if s.done {
		return
	}
	s.done = true
	s.sig.Phase = PhaseEnd
	s.sig.Time = time.Time{} // re-stamped by Emit
	s.signals.Emit(s.sig)
}

// EventSourceSentry brackets one event read.
type EventSourceSentry struct{ sentry }

// NewEventSourceSentry emits the begin signal for an event read.
func NewEventSourceSentry(src *Source, id EventID) *EventSourceSentry {
	eid := id
	return &EventSourceSentry{newSentry(src, Signal{Kind: SignalEvent, EventID: &eid})}
}

// Close emits the matching end signal (once).
func (s *EventSourceSentry) Close() { s.close() }

// LumiSourceSentry brackets a lumi transition.
type LumiSourceSentry struct{ sentry }

func NewLumiSourceSentry(src *Source, run, lumi uint64) *LumiSourceSentry {
	return &LumiSourceSentry{newSentry(src, Signal{Kind: SignalLumi, Run: run, Lumi: lumi})}
}

func (s *LumiSourceSentry) Close() { s.close() }

// RunSourceSentry brackets a run transition.
type RunSourceSentry struct{ sentry }

func NewRunSourceSentry(src *Source, run uint64) *RunSourceSentry {
	return &RunSourceSentry{newSentry(src, Signal{Kind: SignalRun, Run: run})}
}

func (s *RunSourceSentry) Close() { s.close() }

// ProcessBlockSourceSentry brackets a process-block transition.
type ProcessBlockSourceSentry struct{ sentry }

func NewProcessBlockSourceSentry(src *Source, processName string) *ProcessBlockSourceSentry {
	return &ProcessBlockSourceSentry{newSentry(src, Signal{Kind: SignalProcessBlock, Process: processName})}
}

func (s *ProcessBlockSourceSentry) Close() { s.close() }

// FileOpenSentry brackets opening a file.
type FileOpenSentry struct{ sentry }

func NewFileOpenSentry(src *Source, lfn string) *FileOpenSentry {
	return &FileOpenSentry{newSentry(src, Signal{Kind: SignalFileOpen, File: lfn})}
}

func (s *FileOpenSentry) Close() { s.close() }

// FileCloseSentry brackets closing a file.
type FileCloseSentry struct{ sentry }

func NewFileCloseSentry(src *Source, lfn string) *FileCloseSentry {
	return &FileCloseSentry{newSentry(src, Signal{Kind: SignalFileClose, File: lfn})}
}

func (s *FileCloseSentry) Close() { s.close() }
