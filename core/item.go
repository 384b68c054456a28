package core

// ItemType identifies the kind of item a source will deliver next.
type ItemType int

const (
	// IsInvalid means the source has not yet been asked (or has
	// been reset) and must be advanced before reading anything.
	IsInvalid ItemType = iota

	// IsStop means there is nothing more to read, either because
	// the backing store is exhausted or because a limit was
	// reached.
	IsStop

	// IsFile means a new file (or file-like unit of the backing
	// store) should be opened next.
	IsFile

	// IsRun means a run transition should be read next.
	IsRun

	// IsLumi means a luminosity block transition should be read
	// next.
	IsLumi

	// IsEvent means an event should be read next.
	IsEvent

	// IsRepeat asks the driver to re-deliver the current item.
	// It is a side-channel signal used by multicore coordination,
	// not part of the linear hierarchy.
	IsRepeat

	// IsSynchronize asks the driver to align with an external
	// clock source (for example several workers catching up to a
	// common run/lumi boundary).  Also a side-channel signal.
	IsSynchronize
)

func (t ItemType) String() string {
	switch t {
	case IsInvalid:
		return "invalid"
	case IsStop:
		return "stop"
	case IsFile:
		return "file"
	case IsRun:
		return "run"
	case IsLumi:
		return "lumi"
	case IsEvent:
		return "event"
	case IsRepeat:
		return "repeat"
	case IsSynchronize:
		return "synchronize"
	}
	return "unknown"
}

// ItemPosition is a hint about whether a run or lumi item is the last
// one that will be merged before the following item.
//
// It is only meaningful when the ItemType is IsRun or IsLumi.  Even
// then it is fine to leave it PositionInvalid: the driver can figure
// out merging from the next item.  The hint exists for sources whose
// NextItemType is expensive, so the driver can start work on a run or
// lumi without waiting to see what comes after it.
type ItemPosition int

const (
	PositionInvalid ItemPosition = iota
	LastToBeMerged
	NotLastToBeMerged
)

func (p ItemPosition) String() string {
	switch p {
	case LastToBeMerged:
		return "lastToBeMerged"
	case NotLastToBeMerged:
		return "notLastToBeMerged"
	}
	return "invalid"
}

// ItemTypeInfo pairs an ItemType with an ItemPosition.
//
// Compare an ItemTypeInfo against a bare ItemType with Is (or via
// Type).  Comparing two ItemTypeInfos to each other is intentionally
// not supported; the zero-width func field below makes == a compile
// error, which is the contract we want.
type ItemTypeInfo struct {
	typ ItemType
	pos ItemPosition

	_ [0]func() // no ==
}

// NewItemTypeInfo makes an ItemTypeInfo.
//
// The position must be PositionInvalid unless the type is IsRun or
// IsLumi; a position given for any other type is dropped.
func NewItemTypeInfo(t ItemType, p ItemPosition) ItemTypeInfo {
	if t != IsRun && t != IsLumi {
		p = PositionInvalid
	}
	return ItemTypeInfo{typ: t, pos: p}
}

// TypeInfo is shorthand for NewItemTypeInfo(t, PositionInvalid).
func TypeInfo(t ItemType) ItemTypeInfo {
	return ItemTypeInfo{typ: t}
}

// Type reports the bare item type.
func (i ItemTypeInfo) Type() ItemType { return i.typ }

// Position reports the merge-position hint.
func (i ItemTypeInfo) Position() ItemPosition { return i.pos }

// Is reports whether the info's type is t.
func (i ItemTypeInfo) Is(t ItemType) bool { return i.typ == t }

func (i ItemTypeInfo) String() string {
	if i.pos == PositionInvalid {
		return i.typ.String()
	}
	return i.typ.String() + "/" + i.pos.String()
}
