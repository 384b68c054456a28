package core

import (
	"sync"
)

// SharedResource is the handle pair an adapter hands out when its
// delayed/lazy reads are unsafe to run from more than one worker at a
// time (say a deferred decode buffer).  The parallel scheduler must
// hold Lock for the duration of any adapter call that might touch the
// lazy resource.  Adapters with no such resource return nil and
// callers proceed without locking.
type SharedResource struct {
	acq  *Acquirer
	lock *sync.Mutex
}

// NewSharedResource makes a SharedResource with a fresh acquirer and
// lock.
func NewSharedResource(name string) *SharedResource {
	return &SharedResource{
		acq:  &Acquirer{name: name},
		lock: &sync.Mutex{},
	}
}

// Acquirer identifies the resource being serialized.
func (r *SharedResource) Acquirer() *Acquirer { return r.acq }

// Lock is the exclusive lock guarding the resource.
func (r *SharedResource) Lock() *sync.Mutex { return r.lock }

// With runs f while holding the resource's lock.  With on a nil
// SharedResource just runs f.
func (r *SharedResource) With(f func()) {
	if r == nil {
		f()
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	f()
}

// Acquirer names a shared resource for diagnostics and lets the
// scheduler tell resources apart.
type Acquirer struct {
	name string
}

// Name reports the resource name.
func (a *Acquirer) Name() string {
	if a == nil {
		return ""
	}
	return a.name
}
