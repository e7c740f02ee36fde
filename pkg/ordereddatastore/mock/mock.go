package mock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roblox-open-cloud/datastores/internal/devseed"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore"
)

const (
	// DefaultPageSize is used when a list call does not set a page size.
	DefaultPageSize = 10
	// MaxPageSize caps the page size of a list call.
	MaxPageSize = 100
	// DefaultMaxPageTokens bounds how many page tokens stay valid at once.
	DefaultMaxPageTokens = 10000
)

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("mock ordered data store: entry not found")
	// ErrAlreadyExists is returned when creating an id that is already present.
	ErrAlreadyExists = errors.New("mock ordered data store: entry already exists")
	// ErrInvalidArgument is returned for malformed ids, filters, page sizes and
	// page tokens.
	ErrInvalidArgument = errors.New("mock ordered data store: invalid argument")
)

// Key identifies one scope of one ordered data store.
type Key struct {
	UniverseID int64
	Store      string
	Scope      string
}

func (k Key) normalize() Key {
	if k.Scope == "" {
		k.Scope = ordereddatastore.DefaultScope
	}
	return k
}

// Entry is a stored id/value pair.
type Entry struct {
	ID    string
	Value int64
}

// ListOptions mirrors the list query parameters.
type ListOptions struct {
	MaxPageSize int
	Descending  bool
	Filter      string
	PageToken   string
}

// Page is the result of a list call. NextPageToken is empty on the last page.
type Page struct {
	Entries       []Entry
	NextPageToken string
}

// position is what a page token stands for: the last entry returned under a
// given ordering and filter. Listing resumes strictly after it.
type position struct {
	key        Key
	descending bool
	filter     string
	after      Entry
}

// Mock is an in-memory ordered data store with the list semantics of the
// Open Cloud API.
type Mock struct {
	mu     sync.RWMutex
	stores map[Key]map[string]int64
	tokens map[string]position
	// issued holds live tokens oldest first.
	issued    []string
	maxTokens int

	filters filterCache
	logger  *zap.Logger
}

// Option configures the mock instance.
type Option func(*Mock)

// WithLogger sets the logger used by the mock and its HTTP handler.
func WithLogger(l *zap.Logger) Option {
	return func(m *Mock) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMaxPageTokens caps the number of outstanding page tokens. Once the cap
// is reached the oldest token is forgotten and fails as unknown.
func WithMaxPageTokens(n int) Option {
	return func(m *Mock) {
		if n > 0 {
			m.maxTokens = n
		}
	}
}

// New creates an empty mock store.
func New(opts ...Option) *Mock {
	m := &Mock{
		stores:    make(map[Key]map[string]int64),
		tokens:    make(map[string]position),
		maxTokens: DefaultMaxPageTokens,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed loads entries (typically decoded via devseed.LoadOrderedSeed). Entries
// without a universe are placed in defaultUniverse.
func (m *Mock) Seed(defaultUniverse int64, entries []devseed.OrderedSeedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if strings.TrimSpace(e.Store) == "" || e.ID == "" {
			return fmt.Errorf("%w: seed entry needs a store and an id", ErrInvalidArgument)
		}
		universe := e.UniverseID
		if universe == 0 {
			universe = defaultUniverse
		}
		m.bucket(Key{UniverseID: universe, Store: e.Store, Scope: e.Scope}.normalize(), true)[e.ID] = e.Value
	}
	m.logger.Debug("seeded mock ordered data store", zap.Int("entries", len(entries)))
	return nil
}

// Len returns the number of entries stored under key.
func (m *Mock) Len(key Key) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stores[key.normalize()])
}

func (m *Mock) bucket(key Key, create bool) map[string]int64 {
	b := m.stores[key]
	if b == nil && create {
		b = make(map[string]int64)
		m.stores[key] = b
	}
	return b
}

// List returns one page of entries ordered by value (ties broken by id).
func (m *Mock) List(ctx context.Context, key Key, opts ListOptions) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key = key.normalize()

	size := opts.MaxPageSize
	switch {
	case size < 0:
		return nil, fmt.Errorf("%w: max page size must not be negative", ErrInvalidArgument)
	case size == 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var start *position
	if opts.PageToken != "" {
		pos, ok := m.tokens[opts.PageToken]
		if !ok {
			return nil, fmt.Errorf("%w: unknown page token", ErrInvalidArgument)
		}
		if pos.key != key || pos.descending != opts.Descending || pos.filter != opts.Filter {
			return nil, fmt.Errorf("%w: page token does not match the request", ErrInvalidArgument)
		}
		start = &pos
	}

	entries, err := m.sorted(key, opts.Descending, opts.Filter)
	if err != nil {
		return nil, err
	}

	less := ordering(opts.Descending)
	from := 0
	if start != nil {
		from = sort.Search(len(entries), func(i int) bool {
			return less(start.after, entries[i])
		})
	}

	end := from + size
	if end > len(entries) {
		end = len(entries)
	}
	page := &Page{Entries: append([]Entry(nil), entries[from:end]...)}
	if end < len(entries) {
		page.NextPageToken = m.issueToken(position{
			key:        key,
			descending: opts.Descending,
			filter:     opts.Filter,
			after:      entries[end-1],
		})
	}
	return page, nil
}

// issueToken must be called with m.mu held.
func (m *Mock) issueToken(pos position) string {
	for len(m.issued) >= m.maxTokens {
		delete(m.tokens, m.issued[0])
		m.issued = m.issued[1:]
	}
	token := uuid.NewString()
	m.tokens[token] = pos
	m.issued = append(m.issued, token)
	return token
}

func (m *Mock) sorted(key Key, descending bool, filter string) ([]Entry, error) {
	var keep func(int64) (bool, error)
	if strings.TrimSpace(filter) != "" {
		prg, err := m.filters.program(filter)
		if err != nil {
			return nil, err
		}
		keep = func(v int64) (bool, error) { return matches(prg, v) }
	}

	bucket := m.stores[key]
	entries := make([]Entry, 0, len(bucket))
	for id, value := range bucket {
		if keep != nil {
			ok, err := keep(value)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		entries = append(entries, Entry{ID: id, Value: value})
	}

	less := ordering(descending)
	sort.Slice(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
	return entries, nil
}

func ordering(descending bool) func(a, b Entry) bool {
	return func(a, b Entry) bool {
		if a.Value != b.Value {
			if descending {
				return a.Value > b.Value
			}
			return a.Value < b.Value
		}
		return a.ID < b.ID
	}
}

// Create stores a new entry.
func (m *Mock) Create(ctx context.Context, key Key, id string, value int64) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if id == "" {
		return Entry{}, fmt.Errorf("%w: id is required", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.bucket(key.normalize(), true)
	if _, exists := bucket[id]; exists {
		return Entry{}, ErrAlreadyExists
	}
	bucket[id] = value
	return Entry{ID: id, Value: value}, nil
}

// Get returns a stored entry.
func (m *Mock) Get(ctx context.Context, key Key, id string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.stores[key.normalize()][id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{ID: id, Value: value}, nil
}

// Update sets the value of an entry. A missing entry is created when
// allowMissing is set and reported as ErrNotFound otherwise.
func (m *Mock) Update(ctx context.Context, key Key, id string, value int64, allowMissing bool) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if id == "" {
		return Entry{}, fmt.Errorf("%w: id is required", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key = key.normalize()
	bucket := m.bucket(key, allowMissing)
	if _, exists := bucket[id]; !exists && !allowMissing {
		return Entry{}, ErrNotFound
	}
	bucket[id] = value
	return Entry{ID: id, Value: value}, nil
}

// Delete removes an entry.
func (m *Mock) Delete(ctx context.Context, key Key, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key = key.normalize()
	bucket := m.stores[key]
	if _, exists := bucket[id]; !exists {
		return ErrNotFound
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(m.stores, key)
	}
	return nil
}
