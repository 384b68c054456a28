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

// Package jsource is a core.Adapter whose item sequence is produced
// by a JavaScript program running under Goja, which is a Go
// implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
//
// The script must define a global function next() that returns the
// next item as an object:
//
//	{item: "file"|"run"|"lumi"|"event"|"stop"|"repeat"|"synchronize",
//	 run: 1, lumi: 1, event: 1, payload: anything}
//
// Handy for simulating pathological sources in tests and demos.  The
// adapter is sequential only; every random-access capability stays at
// the defaults.
package jsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/feedline/feedline/core"

	"github.com/dop251/goja"
)

// Adapter runs the script and serves whatever it says comes next.
type Adapter struct {
	core.Base

	vm   *goja.Runtime
	next goja.Callable

	// cur is the last step next() produced; the read hooks serve
	// from it.
	cur step
}

type step struct {
	item    string
	run     uint64
	lumi    uint64
	event   uint64
	payload interface{}
}

// New compiles and runs the script, which must leave a global
// function named next behind.
func New(script string) (*Adapter, error) {
	vm := goja.New()
	if _, err := vm.RunString(script); err != nil {
		return nil, err
	}
	next, ok := goja.AssertFunction(vm.Get("next"))
	if !ok {
		return nil, errors.New(`jsource: script does not define a function "next"`)
	}
	return &Adapter{vm: vm, next: next}, nil
}

var itemTypes = map[string]core.ItemType{
	"file":        core.IsFile,
	"run":         core.IsRun,
	"lumi":        core.IsLumi,
	"event":       core.IsEvent,
	"stop":        core.IsStop,
	"repeat":      core.IsRepeat,
	"synchronize": core.IsSynchronize,
}

func (a *Adapter) NextItemType() (core.ItemTypeInfo, error) {
	v, err := a.next(goja.Undefined())
	if err != nil {
		return core.TypeInfo(core.IsInvalid), err
	}
	x := v.Export()
	m, is := x.(map[string]interface{})
	if !is {
		return core.TypeInfo(core.IsInvalid), fmt.Errorf("jsource: next() returned %T, not an object", x)
	}
	item, _ := m["item"].(string)
	typ, have := itemTypes[item]
	if !have {
		return core.TypeInfo(core.IsInvalid), fmt.Errorf("jsource: next() returned unknown item %q", item)
	}
	a.cur = step{
		item:    item,
		run:     num(m["run"]),
		lumi:    num(m["lumi"]),
		event:   num(m["event"]),
		payload: m["payload"],
	}
	return core.TypeInfo(typ), nil
}

// num coerces whatever Goja exported into a number.
func num(v interface{}) uint64 {
	switch n := v.(type) {
	case int64:
		return uint64(n)
	case float64:
		return uint64(n)
	case int:
		return uint64(n)
	}
	return 0
}

func (a *Adapter) ReadEvent(ctx context.Context) (*core.Event, error) {
	if a.cur.item != "event" {
		return nil, fmt.Errorf("jsource: positioned at %q, not an event", a.cur.item)
	}
	return &core.Event{
		ID:      core.EventID{Run: a.cur.run, Lumi: a.cur.lumi, Event: a.cur.event},
		Payload: a.cur.payload,
	}, nil
}

func (a *Adapter) ReadRunAuxiliary() (*core.RunAuxiliary, error) {
	if a.cur.item != "run" {
		return nil, fmt.Errorf("jsource: positioned at %q, not a run", a.cur.item)
	}
	return &core.RunAuxiliary{Run: a.cur.run}, nil
}

func (a *Adapter) ReadLumiAuxiliary() (*core.LumiAuxiliary, error) {
	if a.cur.item != "lumi" {
		return nil, fmt.Errorf("jsource: positioned at %q, not a lumi", a.cur.item)
	}
	return &core.LumiAuxiliary{Run: a.cur.run, Lumi: a.cur.lumi}, nil
}

func (a *Adapter) ReadFile() (*core.FileBlock, error) {
	return &core.FileBlock{Name: "jsource"}, nil
}
