package core

import (
	"fmt"
	"time"
)

// EventID fully identifies an event within the hierarchy.
type EventID struct {
	Run   uint64 `json:"run"`
	Lumi  uint64 `json:"lumi"`
	Event uint64 `json:"event"`
}

func (id EventID) String() string {
	return fmt.Sprintf("run: %d lumi: %d event: %d", id.Run, id.Lumi, id.Event)
}

// RunAuxiliary is a snapshot of a run's identity and time range.
type RunAuxiliary struct {
	Run       uint64    `json:"run"`
	BeginTime time.Time `json:"beginTime,omitempty"`
	EndTime   time.Time `json:"endTime,omitempty"`

	// ProcessHistoryID names the input processing history of the
	// run, not including the current process.
	ProcessHistoryID string `json:"processHistoryID,omitempty"`
}

// SameIdentity reports whether two auxiliaries describe the same run.
func (a *RunAuxiliary) SameIdentity(b *RunAuxiliary) bool {
	return b != nil && a.Run == b.Run
}

// Merge widens the receiver's time range to cover b's.
func (a *RunAuxiliary) Merge(b *RunAuxiliary) {
	if b == nil {
		return
	}
	if a.BeginTime.IsZero() || (!b.BeginTime.IsZero() && b.BeginTime.Before(a.BeginTime)) {
		a.BeginTime = b.BeginTime
	}
	if b.EndTime.After(a.EndTime) {
		a.EndTime = b.EndTime
	}
}

// LumiAuxiliary is a snapshot of a luminosity block's identity and
// time range.  A lumi belongs to exactly one run.
type LumiAuxiliary struct {
	Run       uint64    `json:"run"`
	Lumi      uint64    `json:"lumi"`
	BeginTime time.Time `json:"beginTime,omitempty"`
	EndTime   time.Time `json:"endTime,omitempty"`
}

// SameIdentity reports whether two auxiliaries describe the same lumi.
func (a *LumiAuxiliary) SameIdentity(b *LumiAuxiliary) bool {
	return b != nil && a.Run == b.Run && a.Lumi == b.Lumi
}

// Merge widens the receiver's time range to cover b's.
func (a *LumiAuxiliary) Merge(b *LumiAuxiliary) {
	if b == nil {
		return
	}
	if a.BeginTime.IsZero() || (!b.BeginTime.IsZero() && b.BeginTime.Before(a.BeginTime)) {
		a.BeginTime = b.BeginTime
	}
	if b.EndTime.After(a.EndTime) {
		a.EndTime = b.EndTime
	}
}

// Event is the finest-grained data unit.
type Event struct {
	ID   EventID   `json:"id"`
	Time time.Time `json:"time,omitempty"`

	// Payload is whatever the adapter read.  The core does not
	// interpret it.
	Payload interface{} `json:"payload,omitempty"`
}

// Run is a run-level entry: the auxiliary plus any run-scoped
// products the adapter supplies.
type Run struct {
	Aux      RunAuxiliary
	Products map[string]interface{}
}

// Lumi is a lumi-level entry, one level below Run.
type Lumi struct {
	Aux      LumiAuxiliary
	Products map[string]interface{}
}

// ProcessBlock is a unit of data associated with a named processing
// stage rather than with the run/lumi hierarchy.
type ProcessBlock struct {
	ProcessName string
	Products    map[string]interface{}
}

// FileBlock is the opaque per-file descriptor returned by ReadFile.
// Downstream bookkeeping keys off the Name.
type FileBlock struct {
	// Name is the logical file name.
	Name string `json:"name,omitempty"`

	// Meta carries whatever else the adapter wants downstream
	// bookkeeping to see.
	Meta map[string]interface{} `json:"meta,omitempty"`
}
