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

// Package boltsource is a core.Adapter backed by a bbolt database.
//
// Layout: a top-level "runs" bucket holds one bucket per run (key is
// the big-endian run number) with an "aux" key and a "lumis" bucket;
// each lumi bucket holds its own "aux" key and an "events" bucket
// mapping big-endian event numbers to JSON event records.
//
// Because bbolt cursors iterate in key order, the hierarchy comes out
// sorted for free, and the adapter supports the full random-access
// surface (skip, seek, rewind).  Event payload decoding is deferred
// to ReadEvent and guarded by a shared resource, so parallel workers
// must go through the lock handed out by SharedResource.
package boltsource

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/feedline/feedline/core"

	bolt "go.etcd.io/bbolt"
)

var (
	runsBucket   = []byte("runs")
	lumisBucket  = []byte("lumis")
	eventsBucket = []byte("events")
	auxKey       = []byte("aux")
)

func key(n uint64) []byte {
	bs := make([]byte, 8)
	binary.BigEndian.PutUint64(bs, n)
	return bs
}

// eventRecord is what PutEvent stores and ReadEvent decodes.
type eventRecord struct {
	Time    time.Time   `json:"time,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

type entry struct {
	kind core.ItemType
	id   core.EventID
}

// Adapter reads a bbolt database as a hierarchical source.
type Adapter struct {
	core.Base

	path string
	db   *bolt.DB

	entries       []entry
	pos           int
	announcedFile bool

	shared *core.SharedResource
}

// New makes an Adapter for the database at path.  The database is not
// touched until ReadFile.
func New(path string) *Adapter {
	return &Adapter{
		path:   path,
		pos:    -1,
		shared: core.NewSharedResource("boltsource delayed read"),
	}
}

func (a *Adapter) NextItemType() (core.ItemTypeInfo, error) {
	if !a.announcedFile {
		a.announcedFile = true
		return core.TypeInfo(core.IsFile), nil
	}
	if a.db == nil {
		return core.TypeInfo(core.IsInvalid), errors.New("boltsource: file not opened")
	}
	if a.pos+1 >= len(a.entries) {
		a.pos = len(a.entries)
		return core.TypeInfo(core.IsStop), nil
	}
	a.pos++
	return core.TypeInfo(a.entries[a.pos].kind), nil
}

// ReadFile opens the database and indexes the hierarchy.
func (a *Adapter) ReadFile() (*core.FileBlock, error) {
	opts := &bolt.Options{
		Timeout:  time.Second,
		ReadOnly: true,
	}
	db, err := bolt.Open(a.path, 0644, opts)
	if err != nil {
		return nil, err
	}
	a.db = db

	a.entries = a.entries[:0]
	a.pos = -1
	events := 0
	err = db.View(func(tx *bolt.Tx) error {
		runs := tx.Bucket(runsBucket)
		if runs == nil {
			return nil
		}
		return runs.ForEach(func(rk, _ []byte) error {
			run := binary.BigEndian.Uint64(rk)
			a.entries = append(a.entries, entry{kind: core.IsRun, id: core.EventID{Run: run}})
			lumis := runs.Bucket(rk).Bucket(lumisBucket)
			if lumis == nil {
				return nil
			}
			return lumis.ForEach(func(lk, _ []byte) error {
				lumi := binary.BigEndian.Uint64(lk)
				a.entries = append(a.entries, entry{kind: core.IsLumi, id: core.EventID{Run: run, Lumi: lumi}})
				evs := lumis.Bucket(lk).Bucket(eventsBucket)
				if evs == nil {
					return nil
				}
				return evs.ForEach(func(ek, v []byte) error {
					if v == nil {
						return nil
					}
					events++
					a.entries = append(a.entries, entry{
						kind: core.IsEvent,
						id:   core.EventID{Run: run, Lumi: lumi, Event: binary.BigEndian.Uint64(ek)},
					})
					return nil
				})
			})
		})
	})
	if err != nil {
		db.Close()
		a.db = nil
		return nil, err
	}
	return &core.FileBlock{
		Name: a.path,
		Meta: map[string]interface{}{"events": events},
	}, nil
}

func (a *Adapter) CloseFile() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *Adapter) current() (entry, error) {
	if a.pos < 0 || a.pos >= len(a.entries) {
		return entry{}, errors.New("boltsource: no current item")
	}
	return a.entries[a.pos], nil
}

func (a *Adapter) ReadRunAuxiliary() (*core.RunAuxiliary, error) {
	e, err := a.current()
	if err != nil {
		return nil, err
	}
	if e.kind != core.IsRun {
		return nil, fmt.Errorf("boltsource: positioned at %s, not a run", e.kind)
	}
	aux := &core.RunAuxiliary{Run: e.id.Run}
	err = a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket).Bucket(key(e.id.Run))
		if bs := b.Get(auxKey); bs != nil {
			return json.Unmarshal(bs, aux)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return aux, nil
}

func (a *Adapter) ReadLumiAuxiliary() (*core.LumiAuxiliary, error) {
	e, err := a.current()
	if err != nil {
		return nil, err
	}
	if e.kind != core.IsLumi {
		return nil, fmt.Errorf("boltsource: positioned at %s, not a lumi", e.kind)
	}
	aux := &core.LumiAuxiliary{Run: e.id.Run, Lumi: e.id.Lumi}
	err = a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket).Bucket(key(e.id.Run)).Bucket(lumisBucket).Bucket(key(e.id.Lumi))
		if bs := b.Get(auxKey); bs != nil {
			return json.Unmarshal(bs, aux)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return aux, nil
}

// ReadEvent decodes the current event.  The decode is the delayed
// read guarded by SharedResource.
func (a *Adapter) ReadEvent(ctx context.Context) (*core.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := a.current()
	if err != nil {
		return nil, err
	}
	if e.kind != core.IsEvent {
		return nil, fmt.Errorf("boltsource: positioned at %s, not an event", e.kind)
	}
	var ev *core.Event
	a.shared.With(func() {
		ev, err = a.fetchEvent(e.id)
	})
	return ev, err
}

func (a *Adapter) fetchEvent(id core.EventID) (*core.Event, error) {
	ev := &core.Event{ID: id}
	err := a.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(runsBucket).
			Bucket(key(id.Run)).
			Bucket(lumisBucket).
			Bucket(key(id.Lumi)).
			Bucket(eventsBucket).
			Get(key(id.Event))
		if bs == nil {
			return fmt.Errorf("boltsource: event %s vanished", id)
		}
		var rec eventRecord
		if err := json.Unmarshal(bs, &rec); err != nil {
			return err
		}
		ev.Time = rec.Time
		ev.Payload = rec.Payload
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (a *Adapter) find(id core.EventID) (int, bool) {
	for i, e := range a.entries {
		if e.kind == core.IsEvent && e.id == id {
			return i, true
		}
	}
	return 0, false
}

func (a *Adapter) ReadEventAt(ctx context.Context, id core.EventID) (*core.Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	i, found := a.find(id)
	if !found {
		return nil, false, nil
	}
	a.pos = i
	var ev *core.Event
	var err error
	a.shared.With(func() {
		ev, err = a.fetchEvent(id)
	})
	if err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

func (a *Adapter) Skip(offset int) error {
	if a.db == nil {
		return errors.New("boltsource: file not opened")
	}
	switch {
	case offset > 0:
		n := offset
		if a.pos >= 0 && a.pos < len(a.entries) && a.entries[a.pos].kind == core.IsEvent {
			n--
		}
		for n > 0 {
			a.pos++
			if a.pos >= len(a.entries) {
				a.pos = len(a.entries)
				return nil
			}
			if a.entries[a.pos].kind == core.IsEvent {
				n--
			}
		}
	case offset < 0:
		n := -offset
		i := a.pos
		if i >= len(a.entries) {
			i = len(a.entries) - 1
		} else if i >= 0 && a.entries[i].kind != core.IsEvent {
			i--
		}
		for ; i >= 0; i-- {
			if a.entries[i].kind == core.IsEvent {
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

func (a *Adapter) GoToEvent(id core.EventID) (bool, error) {
	i, found := a.find(id)
	if !found {
		return false, nil
	}
	a.pos = i - 1
	return true, nil
}

// Rewind returns to the first item in the open file.
func (a *Adapter) Rewind() error {
	if a.db == nil {
		return errors.New("boltsource: file not opened")
	}
	a.pos = -1
	return nil
}

func (a *Adapter) RandomAccess() bool { return true }

func (a *Adapter) ForwardState() core.ForwardState {
	for i := a.pos + 1; i >= 0 && i < len(a.entries); i++ {
		if a.entries[i].kind == core.IsEvent {
			return core.EventsAheadInFile
		}
	}
	return core.AtLastEvent
}

func (a *Adapter) ReverseState() core.ReverseState {
	for i := a.pos - 1; i >= 0 && i < len(a.entries); i-- {
		if a.entries[i].kind == core.IsEvent {
			return core.EventsBackwardInFile
		}
	}
	return core.AtFirstEvent
}

func (a *Adapter) SharedResource() *core.SharedResource { return a.shared }
