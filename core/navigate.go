package core

// Navigation capabilities, for pipelines that support seeking.  A
// driver that wants to call SkipEvents, GoToEvent, or Rewind should
// check these first; everything defaults to unknown/unsupported.

// ForwardState describes what forward navigation is possible.
type ForwardState int

const (
	ForwardUnknown ForwardState = iota
	EventsAheadInFile
	NextFileExists
	AtLastEvent
)

func (s ForwardState) String() string {
	switch s {
	case EventsAheadInFile:
		return "eventsAheadInFile"
	case NextFileExists:
		return "nextFileExists"
	case AtLastEvent:
		return "atLastEvent"
	}
	return "unknown"
}

// ReverseState describes what backward navigation is possible.
type ReverseState int

const (
	ReverseUnknown ReverseState = iota
	EventsBackwardInFile
	PreviousFileExists
	AtFirstEvent
)

func (s ReverseState) String() string {
	switch s {
	case EventsBackwardInFile:
		return "eventsBackwardInFile"
	case PreviousFileExists:
		return "previousFileExists"
	case AtFirstEvent:
		return "atFirstEvent"
	}
	return "unknown"
}
