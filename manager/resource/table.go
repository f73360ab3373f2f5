// Package resource implements the handle table that owns every host-side
// socket resource handed out to a guest.
package resource

import (
	"errors"
	"math"
	"sync"

	"go.uber.org/multierr"
)

// Rid identifies a resource inside one Table. Zero is never handed out.
type Rid = uint32

// ErrTableClosed is returned by Add once the table has been torn down.
var ErrTableClosed = errors.New("resource table closed")

// ErrTableFull is returned by Add once every rid has been handed out.
var ErrTableFull = errors.New("resource table exhausted")

// Resource is anything the table can own.
type Resource interface {
	// Name is the short kind name reported by Resources (e.g. "tcpListener").
	Name() string
	Close() error
}

// Table is a concurrency-safe handle table. The lock is only held around
// map access, never across a blocking call.
type Table struct {
	mu      sync.Mutex
	handles map[Rid]Resource
	nextID  Rid
	closed  bool
}

func NewTable() *Table {
	return &Table{
		handles: make(map[Rid]Resource),
	}
}

// Add stores r and returns its rid. Rids are strictly increasing and never
// reused. After Close, Add fails with ErrTableClosed; once the rid space is
// used up it fails with ErrTableFull. On failure the caller keeps ownership
// of r.
func (t *Table) Add(r Resource) (Rid, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrTableClosed
	}
	if t.nextID == math.MaxUint32 {
		return 0, ErrTableFull
	}
	t.nextID++
	t.handles[t.nextID] = r
	return t.nextID, nil
}

// Get borrows the resource for rid. The result must not be retained across
// a suspension point; look it up again instead.
func (t *Table) Get(rid Rid) (Resource, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.handles[rid]
	return r, ok
}

// Lookup is a kind-checked Get. A rid that exists but holds another kind
// reports false.
func Lookup[T Resource](t *Table, rid Rid) (T, bool) {
	r, ok := t.Get(rid)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := r.(T)
	return v, ok
}

// Remove detaches rid and hands ownership back to the caller, who is
// responsible for closing it.
func (t *Table) Remove(rid Rid) (Resource, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.handles[rid]
	if ok {
		delete(t.handles, rid)
	}
	return r, ok
}

// Range calls f for a snapshot of the table. f runs without the lock held.
func (t *Table) Range(f func(rid Rid, r Resource) bool) {
	t.mu.Lock()
	snapshot := make(map[Rid]Resource, len(t.handles))
	for rid, r := range t.handles {
		snapshot[rid] = r
	}
	t.mu.Unlock()

	for rid, r := range snapshot {
		if !f(rid, r) {
			return
		}
	}
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// Close removes and closes every resource. Further Adds fail.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	handles := t.handles
	t.handles = make(map[Rid]Resource)
	t.mu.Unlock()

	var err error
	for _, r := range handles {
		err = multierr.Append(err, r.Close())
	}
	return err
}
