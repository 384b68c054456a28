package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// ProcessingMode says how deep into the hierarchy a job descends.
type ProcessingMode int

const (
	// RunsLumisAndEvents delivers everything.  The default.
	RunsLumisAndEvents ProcessingMode = iota

	// RunsAndLumis delivers run and lumi transitions; events are
	// skipped at the source.
	RunsAndLumis

	// Runs delivers only run transitions.
	Runs
)

func (m ProcessingMode) String() string {
	switch m {
	case RunsAndLumis:
		return "runsAndLumis"
	case Runs:
		return "runs"
	}
	return "runsLumisAndEvents"
}

// SourceOptions configure a Source.
//
// Note that a zero MaxEvents or MaxLumis really means zero: the first
// advance will report stop.  Use Unbounded (-1), or start from
// DefaultSourceOptions, for no limit.
type SourceOptions struct {
	// MaxEvents is the event budget (-1 for unbounded).
	MaxEvents int

	// MaxLumis is the lumi budget (-1 for unbounded).
	MaxLumis int

	// RampdownSeconds, when positive, forces stop at the next
	// run/lumi/file boundary once that much wall-clock time has
	// elapsed.
	RampdownSeconds int

	// Mode limits how deep into the hierarchy this job goes.
	Mode ProcessingMode

	// ModuleDescription labels this source in reports and signals.
	ModuleDescription string

	// ReportEvery, when positive, emits a progress report signal
	// every that many events read.
	ReportEvery int

	// StatusFile, when not empty, is a path that gets the id of
	// the last reported event written to it at each report.
	StatusFile string

	// Clock is a test seam for the rampdown deadline.  Defaults to
	// time.Now.
	Clock func() time.Time
}

// DefaultSourceOptions returns options with unbounded limits.
func DefaultSourceOptions() SourceOptions {
	return SourceOptions{
		MaxEvents: Unbounded,
		MaxLumis:  Unbounded,
	}
}

// Source is the hierarchical input state machine.  It sequences calls
// to an Adapter through the item hierarchy
//
//	invalid -> file -> run -> lumi -> event* -> (lumi | run | stop)
//
// applying limit and ordering policy, and caches the current run/lumi
// identity for the driver.
//
// A Source is driven by a single logical caller at a time.  The
// adapter underneath may additionally be exercised by parallel
// workers for independent events once the hierarchy position is
// fixed; see SharedResource for the one case that needs locking.
//
// Don't copy a Source.
type Source struct {
	adapter Adapter
	signals *Signals
	limits  *Limits

	mode              ProcessingMode
	moduleDescription string
	processGUID       string

	reportEvery int
	statusFile  string

	// The current logical position and its lazily-populated
	// snapshots.  All reset whenever the machine moves past the
	// corresponding level.
	state       ItemTypeInfo
	runAux      *RunAuxiliary
	lumiAux     *LumiAuxiliary
	newRun      bool
	newLumi     bool
	eventCached bool

	time      time.Time
	readCount int
}

// NewSource makes a Source over the given adapter.
func NewSource(a Adapter, opts SourceOptions) *Source {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Source{
		adapter:           a,
		signals:           &Signals{},
		limits:            NewLimitsAt(opts.MaxEvents, opts.MaxLumis, opts.RampdownSeconds, clock),
		mode:              opts.Mode,
		moduleDescription: opts.ModuleDescription,
		processGUID:       uuid.NewString(),
		reportEvery:       opts.ReportEvery,
		statusFile:        opts.StatusFile,
		newRun:            true,
		newLumi:           true,
	}
}

// NextItemType advances the source to the next item and reports it.
//
// The answer is cached: repeated calls without an intervening read
// return the same answer without consulting the adapter again.  Limit
// policy is applied before the adapter is asked: an exhausted event
// budget forces stop immediately, and an exhausted lumi budget (or a
// passed rampdown deadline) forces stop at the next file/run/lumi
// boundary, letting events already in flight in the current lumi
// finish.  The event budget is checked first when both are exhausted.
func (s *Source) NextItemType() (ItemTypeInfo, error) {
	if !s.state.Is(IsInvalid) {
		return s.state, nil
	}
	if s.limits.EventLimitReached() {
		s.state = TypeInfo(IsStop)
		return s.state, nil
	}
	next, err := s.queryAdapter()
	if err != nil {
		return TypeInfo(IsInvalid), err
	}
	switch next.Type() {
	case IsFile, IsRun, IsLumi:
		if s.limits.LumiLimitReached() {
			next = TypeInfo(IsStop)
		}
	case IsEvent:
		s.eventCached = true
	}
	s.state = next
	return s.state, nil
}

// queryAdapter asks the adapter what comes next, skipping levels the
// processing mode excludes.
func (s *Source) queryAdapter() (ItemTypeInfo, error) {
	for {
		info, err := s.adapter.NextItemType()
		if err != nil {
			return TypeInfo(IsInvalid), err
		}
		switch {
		case info.Is(IsEvent) && s.mode != RunsLumisAndEvents:
			if err := s.discardEvent(); err != nil {
				return TypeInfo(IsInvalid), err
			}
		case info.Is(IsLumi) && s.mode == Runs:
			if _, err := s.adapter.ReadLumiAuxiliary(); err != nil {
				return TypeInfo(IsInvalid), err
			}
		default:
			return info, nil
		}
	}
}

// discardEvent consumes the pending event without counting it against
// the budget.  Mode-skipped events are not read events.
func (s *Source) discardEvent() error {
	err := s.adapter.Skip(1)
	if err == nil || !errors.Is(err, ErrUnsupported) {
		return err
	}
	_, err = s.adapter.ReadEvent(context.Background())
	return err
}

// consume clears the cached answer so the next NextItemType re-queries
// the adapter.
func (s *Source) consume() {
	s.state = TypeInfo(IsInvalid)
}

func (s *Source) require(op string, want ItemType) {
	if !s.state.Is(want) {
		panic(&PreconditionError{Op: op, State: s.state, Want: want})
	}
}

// ReadRunAuxiliary reads the current run's snapshot and caches it.
// The source must be positioned at a run.
func (s *Source) ReadRunAuxiliary() (*RunAuxiliary, error) {
	s.require("ReadRunAuxiliary", IsRun)
	aux, err := s.adapter.ReadRunAuxiliary()
	if err != nil {
		return nil, err
	}
	s.setRunAuxiliary(aux)
	return aux, nil
}

// ReadLumiAuxiliary reads the current lumi's snapshot and caches it.
// The source must be positioned at a lumi.
func (s *Source) ReadLumiAuxiliary() (*LumiAuxiliary, error) {
	s.require("ReadLumiAuxiliary", IsLumi)
	aux, err := s.adapter.ReadLumiAuxiliary()
	if err != nil {
		return nil, err
	}
	s.setLumiAuxiliary(aux)
	return aux, nil
}

func (s *Source) setRunAuxiliary(aux *RunAuxiliary) {
	s.runAux = aux
	s.newRun = true
	s.newLumi = true
	if aux != nil && !aux.BeginTime.IsZero() {
		s.time = aux.BeginTime
	}
}

func (s *Source) setLumiAuxiliary(aux *LumiAuxiliary) {
	s.lumiAux = aux
	s.newLumi = true
	if aux != nil && !aux.BeginTime.IsZero() {
		s.time = aux.BeginTime
	}
}

// ReadRun reads the current run as a fresh entry.
func (s *Source) ReadRun() (*Run, error) {
	s.require("ReadRun", IsRun)
	if _, err := s.ReadRunAuxiliary(); err != nil {
		return nil, err
	}
	r := &Run{Aux: *s.runAux, Products: map[string]interface{}{}}
	if err := s.adapter.ReadRun(r); err != nil {
		return nil, err
	}
	s.newRun = false
	s.consume()
	return r, nil
}

// ReadAndMergeRun reads the current run and merges it into r, which
// must describe the same run.
func (s *Source) ReadAndMergeRun(r *Run) error {
	s.require("ReadAndMergeRun", IsRun)
	if _, err := s.ReadRunAuxiliary(); err != nil {
		return err
	}
	if !r.Aux.SameIdentity(s.runAux) {
		return fmt.Errorf("cannot merge run %d into run %d", s.runAux.Run, r.Aux.Run)
	}
	r.Aux.Merge(s.runAux)
	if err := s.adapter.ReadRun(r); err != nil {
		return err
	}
	s.newRun = false
	s.consume()
	return nil
}

// ReadLumi reads the current lumi as a fresh entry.  A lumi belongs
// to exactly one run, so a run must already have been read.
func (s *Source) ReadLumi() (*Lumi, error) {
	s.require("ReadLumi", IsLumi)
	if s.runAux == nil {
		return nil, errors.New("no current run to attach the lumi to")
	}
	if _, err := s.ReadLumiAuxiliary(); err != nil {
		return nil, err
	}
	l := &Lumi{Aux: *s.lumiAux, Products: map[string]interface{}{}}
	if err := s.adapter.ReadLumi(l); err != nil {
		return nil, err
	}
	s.limits.CountLumi()
	s.newLumi = false
	s.consume()
	return l, nil
}

// ReadAndMergeLumi reads the current lumi and merges it into l, which
// must describe the same lumi.
func (s *Source) ReadAndMergeLumi(l *Lumi) error {
	s.require("ReadAndMergeLumi", IsLumi)
	if _, err := s.ReadLumiAuxiliary(); err != nil {
		return err
	}
	if !l.Aux.SameIdentity(s.lumiAux) {
		return fmt.Errorf("cannot merge lumi %d/%d into lumi %d/%d",
			s.lumiAux.Run, s.lumiAux.Lumi, l.Aux.Run, l.Aux.Lumi)
	}
	l.Aux.Merge(s.lumiAux)
	if err := s.adapter.ReadLumi(l); err != nil {
		return err
	}
	s.limits.CountLumi()
	s.newLumi = false
	s.consume()
	return nil
}

// ReadEvent reads the next event sequentially.
func (s *Source) ReadEvent(ctx context.Context) (*Event, error) {
	s.require("ReadEvent", IsEvent)
	ev, err := s.adapter.ReadEvent(ctx)
	if err != nil {
		return nil, err
	}
	s.countEvent(ev)
	return ev, nil
}

// ReadEventByID reads the event with the given id, repositioning the
// cursor onto it.  found is false when the adapter has no random
// access or the id is absent; either way the source's position stays
// valid.
func (s *Source) ReadEventByID(ctx context.Context, id EventID) (ev *Event, found bool, err error) {
	s.require("ReadEventByID", IsEvent)
	ev, found, err = s.adapter.ReadEventAt(ctx, id)
	if errors.Is(err, ErrUnsupported) {
		return nil, false, nil
	}
	if err != nil || !found {
		return nil, false, err
	}
	s.countEvent(ev)
	return ev, true, nil
}

func (s *Source) countEvent(ev *Event) {
	s.limits.CountEvent()
	s.readCount++
	if ev != nil && !ev.Time.IsZero() {
		s.time = ev.Time
	}
	s.eventCached = false
	s.consume()
	s.issueReports(ev)
}

// issueReports emits a progress report signal every ReportEvery
// events and, if configured, records the last event id in the status
// file.  Best effort; a failed status write does not fail the read.
func (s *Source) issueReports(ev *Event) {
	if ev == nil || s.reportEvery <= 0 || s.readCount%s.reportEvery != 0 {
		return
	}
	eid := ev.ID
	s.signals.Emit(Signal{
		Kind:      SignalReport,
		Source:    s.processGUID,
		EventID:   &eid,
		ReadCount: s.readCount,
	})
	if s.statusFile != "" {
		os.WriteFile(s.statusFile, []byte(eid.String()+"\n"), 0644)
	}
}

// NextProcessBlock reports whether another process block is available
// for the current file and, if so, returns it with its process name
// set.  Process blocks sit outside the run/lumi hierarchy, so there
// is no item-type precondition; drivers read them right after opening
// a file.
func (s *Source) NextProcessBlock() (*ProcessBlock, bool, error) {
	pb := &ProcessBlock{Products: map[string]interface{}{}}
	ok, err := s.adapter.NextProcessBlock(pb)
	if err != nil || !ok {
		return nil, false, err
	}
	return pb, true, nil
}

// ReadProcessBlock materializes a process block announced by
// NextProcessBlock.
func (s *Source) ReadProcessBlock(pb *ProcessBlock) error {
	return s.adapter.ReadProcessBlock(pb)
}

// ReadFile opens the next file and returns its descriptor.
func (s *Source) ReadFile() (*FileBlock, error) {
	s.require("ReadFile", IsFile)
	fb, err := s.adapter.ReadFile()
	if err != nil {
		return nil, err
	}
	if fb == nil {
		fb = &FileBlock{}
	}
	s.consume()
	return fb, nil
}

// CloseFile closes the current file.  When cleaningUpAfterException
// is true the close is happening during fault unwinding, and a
// secondary fault from the close path is suppressed so the original
// one is not masked.
func (s *Source) CloseFile(cleaningUpAfterException bool) error {
	err := s.adapter.CloseFile()
	if err != nil && cleaningUpAfterException {
		return nil
	}
	return err
}

// SkipEvents moves the cursor by offset events; negative is backward.
// Returns ErrUnsupported when the adapter has no random access.
func (s *Source) SkipEvents(offset int) error {
	if err := s.adapter.Skip(offset); err != nil {
		return err
	}
	s.consume()
	return nil
}

// GoToEvent seeks directly to an event by full identity.  found is
// false when the adapter has no random access or the id is absent; on
// failure the current position, including the cached item type, is
// untouched.
func (s *Source) GoToEvent(id EventID) (bool, error) {
	found, err := s.adapter.GoToEvent(id)
	if errors.Is(err, ErrUnsupported) {
		return false, nil
	}
	if err != nil || !found {
		return false, err
	}
	s.Reset()
	return true, nil
}

// Rewind returns the cursor to the very first item and clears all
// caches.  Limit consumption is not reset; only Repeat does that.
func (s *Source) Rewind() error {
	if err := s.adapter.Rewind(); err != nil {
		return err
	}
	s.Reset()
	return nil
}

// Repeat resets the remaining event/lumi budgets to their configured
// maxima.  Wall-clock rampdown state is unaffected.
func (s *Source) Repeat() {
	s.limits.Repeat()
}

// Synchronize acknowledges a repeat or synchronize item, clearing the
// cached answer so the next NextItemType re-queries the adapter.
func (s *Source) Synchronize() {
	if !s.state.Is(IsRepeat) && !s.state.Is(IsSynchronize) {
		panic(&PreconditionError{Op: "Synchronize", State: s.state, Want: IsSynchronize})
	}
	s.consume()
}

// Reset clears the cached run/lumi snapshots and the cached item
// type, forcing the next NextItemType to re-query the adapter.
func (s *Source) Reset() {
	s.ResetLumiAuxiliary(true)
	s.ResetRunAuxiliary(true)
	s.consume()
}

// ResetRunAuxiliary drops the cached run snapshot.  isNewRun says
// whether whatever comes next should count as a fresh run (and lumi).
func (s *Source) ResetRunAuxiliary(isNewRun bool) {
	s.runAux = nil
	s.newRun = isNewRun
	s.newLumi = isNewRun
}

// ResetLumiAuxiliary drops the cached lumi snapshot.
func (s *Source) ResetLumiAuxiliary(isNewLumi bool) {
	s.lumiAux = nil
	s.newLumi = isNewLumi
}

// SetRunNumber forces the run number of subsequently delivered items,
// for adapters that support it.
func (s *Source) SetRunNumber(run uint64) error {
	return s.adapter.SetRun(run)
}

// SetLumiNumber forces the lumi number of subsequently delivered
// items, for adapters that support it.
func (s *Source) SetLumiNumber(lumi uint64) error {
	return s.adapter.SetLumi(lumi)
}

// DecreaseRemainingEventsBy consumes n events from the budget without
// reading them.  Multicore receivers use this when another worker
// reads events on this process's behalf.
func (s *Source) DecreaseRemainingEventsBy(n int) {
	s.limits.DecreaseRemainingEventsBy(n)
}

// DoBeginJob is called by the driver at the beginning of the job.
func (s *Source) DoBeginJob() error { return s.adapter.BeginJob() }

// DoEndJob is called by the driver at the end of the job.
func (s *Source) DoEndJob() error { return s.adapter.EndJob() }

// ResourceSharedWithDelayedReader returns the handle pair guarding
// the adapter's delayed-read resource, or nil when none is shared.
func (s *Source) ResourceSharedWithDelayedReader() *SharedResource {
	return s.adapter.SharedResource()
}

// RandomAccess reports whether the adapter supports seeking.
func (s *Source) RandomAccess() bool { return s.adapter.RandomAccess() }

// ForwardState reports what forward navigation is possible.
func (s *Source) ForwardState() ForwardState { return s.adapter.ForwardState() }

// ReverseState reports what backward navigation is possible.
func (s *Source) ReverseState() ReverseState { return s.adapter.ReverseState() }

// State is the cached current position (invalid when the next
// NextItemType will re-query the adapter).
func (s *Source) State() ItemTypeInfo { return s.state }

// RunAuxiliary is the cached snapshot of the current run, or nil.
func (s *Source) RunAuxiliary() *RunAuxiliary { return s.runAux }

// LumiAuxiliary is the cached snapshot of the current lumi, or nil.
func (s *Source) LumiAuxiliary() *LumiAuxiliary { return s.lumiAux }

// NewRun reports whether the current run has not been read yet.
func (s *Source) NewRun() bool { return s.newRun }

// NewLumi reports whether the current lumi has not been read yet.
func (s *Source) NewLumi() bool { return s.newLumi }

// EventCached reports whether an event has been identified by
// NextItemType but not yet consumed by a read.
func (s *Source) EventCached() bool { return s.eventCached }

// Run is the current run number (0 when no run snapshot is cached).
func (s *Source) Run() uint64 {
	if s.runAux == nil {
		return 0
	}
	return s.runAux.Run
}

// Lumi is the current lumi number (0 when no lumi snapshot is
// cached).
func (s *Source) Lumi() uint64 {
	if s.lumiAux == nil {
		return 0
	}
	return s.lumiAux.Lumi
}

// Timestamp is the logical time of the current position, as supplied
// by the adapter's snapshots and events.
func (s *Source) Timestamp() time.Time { return s.time }

// Mode is the processing mode.
func (s *Source) Mode() ProcessingMode { return s.mode }

// ModuleDescription labels this source.
func (s *Source) ModuleDescription() string { return s.moduleDescription }

// ProcessGUID is the global identifier of this process, fixed at
// construction.
func (s *Source) ProcessGUID() string { return s.processGUID }

// ReadCount is the number of events actually delivered.
func (s *Source) ReadCount() int { return s.readCount }

// Limits exposes the limit tracker (for reports; don't mutate it
// outside the facade).
func (s *Source) Limits() *Limits { return s.limits }

// Signals is where lifecycle sinks register.
func (s *Source) Signals() *Signals { return s.signals }
