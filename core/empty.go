package core

import (
	"context"
	"errors"
)

// EmptyAdapter is a source with nothing in it: the first advance
// reports stop.  Handy as a CLI default and in tests.
type EmptyAdapter struct {
	Base
}

var errEmpty = errors.New("empty source has nothing to read")

func (EmptyAdapter) NextItemType() (ItemTypeInfo, error) {
	return TypeInfo(IsStop), nil
}

func (EmptyAdapter) ReadEvent(context.Context) (*Event, error) {
	return nil, errEmpty
}

func (EmptyAdapter) ReadRunAuxiliary() (*RunAuxiliary, error) {
	return nil, errEmpty
}

func (EmptyAdapter) ReadLumiAuxiliary() (*LumiAuxiliary, error) {
	return nil, errEmpty
}
