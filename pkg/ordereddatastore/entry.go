package ordereddatastore

import "context"

// Entry is an immutable snapshot of one id/value pair. It is only produced by
// OrderedDataStore calls, and its operations act on the store it came from.
type Entry struct {
	id    string
	value int64
	path  string
	h     *handle
}

// ID returns the entry identifier.
func (e *Entry) ID() string { return e.id }

// Value returns the value at the time of the snapshot. Unparsable values
// sent by the service are reported as 0.
func (e *Entry) Value() int64 { return e.value }

// Path returns the resource path echoed by the service.
func (e *Entry) Path() string { return e.path }

// Store returns the name of the ordered data store the entry belongs to.
func (e *Entry) Store() string { return e.h.name }

// Scope returns the scope the entry belongs to.
func (e *Entry) Scope() string { return e.h.scope }

// Fetch returns a fresh snapshot of the entry.
func (e *Entry) Fetch(ctx context.Context) (*Entry, error) {
	return e.h.get(ctx, e.id)
}

// Remove deletes the entry. The receiver is stale afterwards. The result
// follows OrderedDataStore.Delete.
func (e *Entry) Remove(ctx context.Context) (bool, error) {
	return e.h.delete(ctx, e.id)
}

// Update sets a new value and returns the resulting snapshot; the receiver
// keeps its old value.
func (e *Entry) Update(ctx context.Context, value int64, allowMissing bool) (*Entry, error) {
	return e.h.update(ctx, e.id, value, allowMissing)
}
