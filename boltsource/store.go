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

package boltsource

import (
	"encoding/json"
	"time"

	"github.com/feedline/feedline/core"

	bolt "go.etcd.io/bbolt"
)

// Store writes databases in the layout Adapter reads.  Tests and the
// CLI's seed mode use it to build fixtures.
type Store struct {
	db *bolt.DB
}

// Create opens (creating if needed) a database for writing.
func Create(path string) (*Store, error) {
	opts := &bolt.Options{
		Timeout: time.Second,
	}
	db, err := bolt.Open(path, 0644, opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// PutRunAux stores a run's snapshot, creating the run's buckets.
func (s *Store) PutRunAux(aux *core.RunAuxiliary) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := runBucket(tx, aux.Run)
		if err != nil {
			return err
		}
		bs, err := json.Marshal(aux)
		if err != nil {
			return err
		}
		return b.Put(auxKey, bs)
	})
}

// PutLumiAux stores a lumi's snapshot, creating buckets as needed.
func (s *Store) PutLumiAux(aux *core.LumiAuxiliary) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := lumiBucket(tx, aux.Run, aux.Lumi)
		if err != nil {
			return err
		}
		bs, err := json.Marshal(aux)
		if err != nil {
			return err
		}
		return b.Put(auxKey, bs)
	})
}

// PutEvent stores one event, creating its run and lumi buckets as
// needed.
func (s *Store) PutEvent(ev *core.Event) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		lb, err := lumiBucket(tx, ev.ID.Run, ev.ID.Lumi)
		if err != nil {
			return err
		}
		evs, err := lb.CreateBucketIfNotExists(eventsBucket)
		if err != nil {
			return err
		}
		bs, err := json.Marshal(&eventRecord{Time: ev.Time, Payload: ev.Payload})
		if err != nil {
			return err
		}
		return evs.Put(key(ev.ID.Event), bs)
	})
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func runBucket(tx *bolt.Tx, run uint64) (*bolt.Bucket, error) {
	runs, err := tx.CreateBucketIfNotExists(runsBucket)
	if err != nil {
		return nil, err
	}
	return runs.CreateBucketIfNotExists(key(run))
}

func lumiBucket(tx *bolt.Tx, run, lumi uint64) (*bolt.Bucket, error) {
	rb, err := runBucket(tx, run)
	if err != nil {
		return nil, err
	}
	lumis, err := rb.CreateBucketIfNotExists(lumisBucket)
	if err != nil {
		return nil, err
	}
	return lumis.CreateBucketIfNotExists(key(lumi))
}
