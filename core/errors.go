package core

// A note on the taxonomy: precondition violations are driver bugs and
// panic; absent seek targets are reported as found=false; unsupported
// capabilities are ErrUnsupported; adapter IO errors pass through
// unchanged.

import (
	"errors"
)

// ErrUnsupported is returned by an optional adapter hook that the
// adapter does not implement.  It is a normal answer to a capability
// probe, not a fault.
var ErrUnsupported = errors.New("not supported by this adapter")

// PreconditionError occurs when a read operation is called while the
// source is not positioned at the matching item type.  That is a bug
// in the driver, not a recoverable condition, so the facade panics
// with one of these rather than returning it.
type PreconditionError struct {
	Op    string
	State ItemTypeInfo
	Want  ItemType
}

func (e *PreconditionError) Error() string {
	return e.Op + ` called with source positioned at "` + e.State.String() +
		`" (want "` + e.Want.String() + `")`
}
