/* Copyright 2024 The Feedline Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"context"
)

// SliceAdapter is an in-memory scripted adapter that's useful to have
// around: tests, docs, and demos all drive it.  It supports the full
// random-access surface.

// ScriptRun describes one run in a scripted sequence.
type ScriptRun struct {
	Run   uint64
	Lumis []ScriptLumi
}

// ScriptLumi describes one lumi and how many events it holds.
type ScriptLumi struct {
	Lumi   uint64
	Events int
}

type sliceItem struct {
	info    ItemTypeInfo
	runAux  *RunAuxiliary
	lumiAux *LumiAuxiliary
	event   *Event
}

// SliceAdapter walks a fixed file -> runs -> lumis -> events sequence.
type SliceAdapter struct {
	Base

	// Shared, when set, is handed out by SharedResource so tests
	// can exercise the resource coordinator.
	Shared *SharedResource

	// ProcessNames, when set, are announced one per
	// NextProcessBlock call after the file opens.
	ProcessNames []string

	items  []sliceItem
	pos    int
	pbNext int
}

// NewSliceAdapter builds the item sequence for the given runs.  Event
// numbers are assigned 1..n within each lumi.
func NewSliceAdapter(runs ...ScriptRun) *SliceAdapter {
	items := []sliceItem{{info: TypeInfo(IsFile)}}
	for _, r := range runs {
		items = append(items, sliceItem{
			info:   TypeInfo(IsRun),
			runAux: &RunAuxiliary{Run: r.Run},
		})
		for _, l := range r.Lumis {
			items = append(items, sliceItem{
				info:    TypeInfo(IsLumi),
				lumiAux: &LumiAuxiliary{Run: r.Run, Lumi: l.Lumi},
			})
			for i := 0; i < l.Events; i++ {
				items = append(items, sliceItem{
					info: TypeInfo(IsEvent),
					event: &Event{
						ID: EventID{Run: r.Run, Lumi: l.Lumi, Event: uint64(i + 1)},
					},
				})
			}
		}
	}
	return &SliceAdapter{items: items, pos: -1}
}

func (a *SliceAdapter) NextItemType() (ItemTypeInfo, error) {
	if a.pos+1 >= len(a.items) {
		a.pos = len(a.items)
		return TypeInfo(IsStop), nil
	}
	a.pos++
	return a.items[a.pos].info, nil
}

func (a *SliceAdapter) current() *sliceItem {
	if a.pos < 0 || a.pos >= len(a.items) {
		return nil
	}
	return &a.items[a.pos]
}

func (a *SliceAdapter) ReadEvent(ctx context.Context) (*Event, error) {
	if it := a.current(); it != nil && it.event != nil {
		return it.event, nil
	}
	panic(&PreconditionError{Op: "SliceAdapter.ReadEvent", Want: IsEvent})
}

func (a *SliceAdapter) ReadRunAuxiliary() (*RunAuxiliary, error) {
	if it := a.current(); it != nil && it.runAux != nil {
		aux := *it.runAux
		return &aux, nil
	}
	panic(&PreconditionError{Op: "SliceAdapter.ReadRunAuxiliary", Want: IsRun})
}

func (a *SliceAdapter) ReadLumiAuxiliary() (*LumiAuxiliary, error) {
	if it := a.current(); it != nil && it.lumiAux != nil {
		aux := *it.lumiAux
		return &aux, nil
	}
	panic(&PreconditionError{Op: "SliceAdapter.ReadLumiAuxiliary", Want: IsLumi})
}

func (a *SliceAdapter) ReadFile() (*FileBlock, error) {
	return &FileBlock{Name: "slice"}, nil
}

// Skip moves the cursor by offset events.  When the cursor sits on an
// event, that event counts as the first one skipped forward.
func (a *SliceAdapter) Skip(offset int) error {
	switch {
	case offset > 0:
		n := offset
		if it := a.current(); it != nil && it.event != nil {
			n--
		}
		for n > 0 {
			a.pos++
			if a.pos >= len(a.items) {
				a.pos = len(a.items)
				return nil
			}
			if a.items[a.pos].event != nil {
				n--
			}
		}
	case offset < 0:
		n := -offset
		i := a.pos
		if i >= len(a.items) {
			i = len(a.items) - 1
		} else if it := a.current(); it == nil || it.event == nil {
			i--
		}
		for ; i >= 0; i-- {
			if a.items[i].event != nil {
				n--
				if n == 0 {
					a.pos = i - 1
					return nil
				}
			}
		}
		a.pos = -1
	}
	return nil
}

// GoToEvent positions the cursor so the named event is delivered
// next.
func (a *SliceAdapter) GoToEvent(id EventID) (bool, error) {
	for i, it := range a.items {
		if it.event != nil && it.event.ID == id {
			a.pos = i - 1
			return true, nil
		}
	}
	return false, nil
}

func (a *SliceAdapter) ReadEventAt(ctx context.Context, id EventID) (*Event, bool, error) {
	for i, it := range a.items {
		if it.event != nil && it.event.ID == id {
			a.pos = i
			return it.event, true, nil
		}
	}
	return nil, false, nil
}

func (a *SliceAdapter) Rewind() error {
	a.pos = -1
	a.pbNext = 0
	return nil
}

func (a *SliceAdapter) NextProcessBlock(pb *ProcessBlock) (bool, error) {
	if a.pbNext >= len(a.ProcessNames) {
		return false, nil
	}
	pb.ProcessName = a.ProcessNames[a.pbNext]
	a.pbNext++
	return true, nil
}

func (a *SliceAdapter) RandomAccess() bool { return true }

func (a *SliceAdapter) ForwardState() ForwardState {
	for i := a.pos + 1; i >= 0 && i < len(a.items); i++ {
		if a.items[i].event != nil {
			return EventsAheadInFile
		}
	}
	return AtLastEvent
}

func (a *SliceAdapter) ReverseState() ReverseState {
	for i := a.pos - 1; i >= 0 && i < len(a.items); i-- {
		if a.items[i].event != nil {
			return EventsBackwardInFile
		}
	}
	return AtFirstEvent
}

func (a *SliceAdapter) SharedResource() *SharedResource { return a.Shared }
