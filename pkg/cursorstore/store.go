// Package cursorstore persists ordered data store pagination cursors so a
// scan can be resumed by another process or after a restart.
package cursorstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore"
)

// ErrInvalidKey is returned for an empty cursor key.
var ErrInvalidKey = errors.New("cursorstore: key is required")

// Store saves and loads cursors by key.
type Store interface {
	// Load returns the saved cursor and whether one was found.
	Load(ctx context.Context, key string) (ordereddatastore.Cursor, bool, error)
	Save(ctx context.Context, key string, c ordereddatastore.Cursor) error
	Delete(ctx context.Context, key string) error
}

// Key builds the cursor key of a named scan over s. Different scans of the
// same store (for instance with different filters) need different names.
func Key(s *ordereddatastore.OrderedDataStore, scan string) string {
	return fmt.Sprintf("%d/%s/%s/%s",
		s.UniverseID(),
		url.PathEscape(s.Name()),
		url.PathEscape(s.Scope()),
		url.PathEscape(scan))
}

// Checkpoint saves the current cursor of s under key.
func Checkpoint(ctx context.Context, st Store, key string, s *ordereddatastore.OrderedDataStore) error {
	return st.Save(ctx, key, s.Cursor())
}

// Restore resumes s from the cursor saved under key. It reports false and
// leaves s untouched when nothing was saved.
func Restore(ctx context.Context, st Store, key string, s *ordereddatastore.OrderedDataStore) (bool, error) {
	c, ok, err := st.Load(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := s.Resume(c); err != nil {
		return false, err
	}
	return true, nil
}

// Memory is a process-local Store.
type Memory struct {
	mu      sync.RWMutex
	cursors map[string]ordereddatastore.Cursor
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{cursors: make(map[string]ordereddatastore.Cursor)}
}

// Load returns the cursor saved under key. It reports false when nothing is
// saved there.
func (m *Memory) Load(ctx context.Context, key string) (ordereddatastore.Cursor, bool, error) {
	if key == "" {
		return ordereddatastore.Cursor{}, false, ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return ordereddatastore.Cursor{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cursors[key]
	return c, ok, nil
}

// Save stores c under key, replacing any earlier cursor.
func (m *Memory) Save(ctx context.Context, key string, c ordereddatastore.Cursor) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[key] = c
	return nil
}

// Delete forgets the cursor saved under key. A missing key is not an error.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cursors, key)
	return nil
}
