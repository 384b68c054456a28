package core

import (
	"context"
)

// Adapter is the backing-store half of a Source: it knows how to
// decode one specific on-disk or network format, while the Source
// owns ordering, limits, and bookkeeping.
//
// Only four hooks are mandatory.  Everything else has a default on
// Base, so a minimal adapter is
//
//	type mine struct {
//		core.Base
//	}
//
// plus the four methods.  The Source calls NextItemType once per item
// (its own answer is cached between reads), so an adapter should
// advance its cursor in NextItemType and serve the current item from
// the Read hooks.
//
// IO errors returned from hooks pass through the Source unchanged.
type Adapter interface {
	// NextItemType advances to, and reports, the next item.
	NextItemType() (ItemTypeInfo, error)

	// ReadEvent reads the current event.
	ReadEvent(ctx context.Context) (*Event, error)

	// ReadRunAuxiliary reads the current run's snapshot.  May be
	// called more than once for the same item.
	ReadRunAuxiliary() (*RunAuxiliary, error)

	// ReadLumiAuxiliary reads the current lumi's snapshot.  May
	// be called more than once for the same item.
	ReadLumiAuxiliary() (*LumiAuxiliary, error)

	// ReadRun fills run-scoped products into r.  Optional; aux-only
	// sources leave it alone.
	ReadRun(r *Run) error

	// ReadLumi fills lumi-scoped products into l.  Optional.
	ReadLumi(l *Lumi) error

	// ReadFile opens the next file and returns its descriptor.
	// Optional; the default returns an empty FileBlock.
	ReadFile() (*FileBlock, error)

	// CloseFile closes the current file.  Optional.
	CloseFile() error

	// ReadEventAt reads the event with the given id, repositioning
	// the cursor onto it.  found=false when the id is absent.
	// Optional; the default returns ErrUnsupported.
	ReadEventAt(ctx context.Context, id EventID) (ev *Event, found bool, err error)

	// Skip moves the cursor by offset events; negative is
	// backward.  Optional.
	Skip(offset int) error

	// GoToEvent positions the cursor so the event with the given
	// id is delivered next.  found=false when the id is absent, in
	// which case the cursor must not move.  Optional.
	GoToEvent(id EventID) (found bool, err error)

	// Rewind returns the cursor to the very first item.  Optional.
	Rewind() error

	// SetRun forces the run number of subsequently delivered
	// items.  Optional.
	SetRun(run uint64) error

	// SetLumi forces the lumi number of subsequently delivered
	// items.  Optional.
	SetLumi(lumi uint64) error

	// NextProcessBlock reports whether another process block is
	// available for the current file, filling in its process name.
	// Optional; the default reports none.
	NextProcessBlock(pb *ProcessBlock) (bool, error)

	// ReadProcessBlock materializes the process block announced by
	// NextProcessBlock.  Optional.
	ReadProcessBlock(pb *ProcessBlock) error

	// BeginJob and EndJob bracket the whole job.  Optional.
	BeginJob() error
	EndJob() error

	// RandomAccess reports whether ReadEventAt, Skip, GoToEvent,
	// and Rewind actually work.  Default false.
	RandomAccess() bool

	// ForwardState and ReverseState report what navigation is
	// possible from the current cursor.  Default unknown.
	ForwardState() ForwardState
	ReverseState() ReverseState

	// SharedResource returns the handle pair guarding the
	// adapter's delayed-read resource, or nil when reads are safe
	// to run concurrently.
	SharedResource() *SharedResource
}

// Base provides the default (unsupported or no-op) behavior for every
// optional Adapter hook.  Embed it and override what your backing
// store can actually do.
type Base struct{}

func (Base) ReadRun(*Run) error   { return nil }
func (Base) ReadLumi(*Lumi) error { return nil }

func (Base) ReadFile() (*FileBlock, error) { return &FileBlock{}, nil }
func (Base) CloseFile() error              { return nil }

func (Base) ReadEventAt(context.Context, EventID) (*Event, bool, error) {
	return nil, false, ErrUnsupported
}
func (Base) Skip(int) error                 { return ErrUnsupported }
func (Base) GoToEvent(EventID) (bool, error) { return false, ErrUnsupported }
func (Base) Rewind() error                  { return ErrUnsupported }
func (Base) SetRun(uint64) error            { return ErrUnsupported }
func (Base) SetLumi(uint64) error           { return ErrUnsupported }

func (Base) NextProcessBlock(*ProcessBlock) (bool, error) { return false, nil }
func (Base) ReadProcessBlock(*ProcessBlock) error         { return nil }

func (Base) BeginJob() error { return nil }
func (Base) EndJob() error   { return nil }

func (Base) RandomAccess() bool          { return false }
func (Base) ForwardState() ForwardState  { return ForwardUnknown }
func (Base) ReverseState() ReverseState  { return ReverseUnknown }
func (Base) SharedResource() *SharedResource { return nil }
