package ordereddatastore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/roblox-open-cloud/datastores/internal/httpx"
	"github.com/roblox-open-cloud/datastores/internal/opencloudapi"
)

// Option configures an OrderedDataStore.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used by the store and its entries.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// OrderedDataStore is a paginated, filtered, ordered view over the entries of
// one ordered data store scope.
//
// The list configuration is fixed at construction. Data, NextPageToken and
// IsFinished reflect the most recent FetchNextPage.
type OrderedDataStore struct {
	h      *handle
	params ListParameters

	mu            sync.Mutex
	inFlight      bool
	data          []*Entry
	nextPageToken string
	finished      bool
}

// handle holds what per-entry operations need. Entries keep a handle rather
// than the store, so they never pin its page buffer.
type handle struct {
	universeID int64
	name       string
	scope      string
	path       string
	transport  Transport
	logger     *zap.Logger
}

// New returns a view over the entries of name/scope in the given universe.
// An empty scope selects DefaultScope; params may be nil.
func New(transport Transport, universeID int64, name, scope string, params *ListParameters, opts ...Option) (*OrderedDataStore, error) {
	if transport == nil {
		return nil, errors.New("ordereddatastore: transport is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	if scope == "" {
		scope = DefaultScope
	}

	var p ListParameters
	if params != nil {
		p = *params
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &OrderedDataStore{
		h: &handle{
			universeID: universeID,
			name:       name,
			scope:      scope,
			path:       basePath(universeID, name, scope),
			transport:  transport,
			logger: o.logger.With(
				zap.Int64("universe_id", universeID),
				zap.String("store", name),
				zap.String("scope", scope),
			),
		},
		params:        p,
		nextPageToken: p.PageToken,
	}, nil
}

func basePath(universeID int64, name, scope string) string {
	return fmt.Sprintf(
		"/ordered-data-stores/v1/universes/%d/orderedDataStores/%s/scopes/%s/entries",
		universeID,
		url.PathEscape(name),
		url.PathEscape(scope),
	)
}

// Name returns the ordered data store name.
func (s *OrderedDataStore) Name() string { return s.h.name }

// Scope returns the scope within the store.
func (s *OrderedDataStore) Scope() string { return s.h.scope }

// UniverseID returns the universe the store belongs to.
func (s *OrderedDataStore) UniverseID() int64 { return s.h.universeID }

// Path returns the entries collection path every request is built from.
func (s *OrderedDataStore) Path() string { return s.h.path }

// Parameters returns the fixed list configuration.
func (s *OrderedDataStore) Parameters() ListParameters { return s.params }

// Data returns the entries of the most recently fetched page.
func (s *OrderedDataStore) Data() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Entry(nil), s.data...)
}

// NextPageToken returns the continuation token for the next page.
func (s *OrderedDataStore) NextPageToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPageToken
}

// IsFinished reports whether pagination has reached the end.
func (s *OrderedDataStore) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Cursor returns the current pagination state.
func (s *OrderedDataStore) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Cursor{NextPageToken: s.nextPageToken, Finished: s.finished}
}

// Resume replaces the pagination state with c and clears Data. Resuming with
// the zero Cursor restarts from the first page.
func (s *OrderedDataStore) Resume(c Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrPaginationInFlight
	}
	s.nextPageToken = c.NextPageToken
	s.finished = c.Finished
	s.data = nil
	return nil
}

// FetchNextPage loads the next page into Data and advances the cursor. Once
// the store is finished it returns immediately without a request.
//
// On error the pagination state is left as it was.
func (s *OrderedDataStore) FetchNextPage(ctx context.Context) (*OrderedDataStore, error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return s, nil
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrPaginationInFlight
	}
	s.inFlight = true
	token := s.nextPageToken
	s.mu.Unlock()

	page, err := s.h.list(ctx, s.params, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		return nil, err
	}

	if page.Entries == nil {
		s.finished = true
		s.h.logger.Debug("list response has no entries, pagination finished",
			zap.String("page_token", token))
		return s, nil
	}

	data := make([]*Entry, 0, len(*page.Entries))
	for _, p := range *page.Entries {
		data = append(data, s.h.entry(p, ""))
	}
	s.data = data
	s.nextPageToken = page.NextPageToken
	s.finished = page.NextPageToken == ""

	s.h.logger.Debug("fetched page",
		zap.String("page_token", token),
		zap.Int("entries", len(data)),
		zap.Bool("finished", s.finished))
	return s, nil
}

// Create adds a new entry with the given id and value.
func (s *OrderedDataStore) Create(ctx context.Context, id string, value int64) (*Entry, error) {
	return s.h.create(ctx, id, value)
}

// CreateValue is Create for arbitrary-precision input. Values outside the
// signed 64-bit range fail with *ValueRangeError before any request.
func (s *OrderedDataStore) CreateValue(ctx context.Context, id string, value *big.Int) (*Entry, error) {
	v, err := CheckValue(value)
	if err != nil {
		return nil, err
	}
	return s.h.create(ctx, id, v)
}

// Get returns the current state of the entry with the given id.
func (s *OrderedDataStore) Get(ctx context.Context, id string) (*Entry, error) {
	return s.h.get(ctx, id)
}

// Delete removes the entry with the given id.
//
// It returns true when the call completed. A non-success HTTP status is
// returned as a *RequestError. A failure of the transport itself (network
// error, cancellation) is logged and reported as false with a nil error.
func (s *OrderedDataStore) Delete(ctx context.Context, id string) (bool, error) {
	return s.h.delete(ctx, id)
}

// Update sets the value of the entry with the given id. With allowMissing
// the service creates the entry when it does not exist.
func (s *OrderedDataStore) Update(ctx context.Context, id string, value int64, allowMissing bool) (*Entry, error) {
	return s.h.update(ctx, id, value, allowMissing)
}

// UpdateValue is Update for arbitrary-precision input. Values outside the
// signed 64-bit range fail with *ValueRangeError before any request.
func (s *OrderedDataStore) UpdateValue(ctx context.Context, id string, value *big.Int, allowMissing bool) (*Entry, error) {
	v, err := CheckValue(value)
	if err != nil {
		return nil, err
	}
	return s.h.update(ctx, id, v, allowMissing)
}

func (h *handle) entryPath(id string) string {
	return h.path + "/" + url.PathEscape(id)
}

func (h *handle) entry(p opencloudapi.EntryPayload, fallbackID string) *Entry {
	id := p.ID
	if id == "" {
		id = fallbackID
	}
	return &Entry{
		id:    id,
		value: opencloudapi.ParseValue(p.Value),
		path:  p.Path,
		h:     h,
	}
}

func (h *handle) list(ctx context.Context, params ListParameters, token string) (*opencloudapi.ListEntriesPayload, error) {
	q := params.query()
	q.Set("page_token", token)

	body, err := h.transport.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   h.path,
		Query:  q,
	})
	if err != nil {
		return nil, fmt.Errorf("ordereddatastore: list entries: %w", err)
	}
	return opencloudapi.DecodeListEntries(body)
}

func (h *handle) create(ctx context.Context, id string, value int64) (*Entry, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	body, err := valueBody(value)
	if err != nil {
		return nil, err
	}

	resp, err := h.transport.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   h.path,
		Query:  url.Values{"id": {id}},
		Header: jsonHeader(),
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("ordereddatastore: create %q: %w", id, err)
	}
	return h.decodeEntry(resp, id)
}

func (h *handle) get(ctx context.Context, id string) (*Entry, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	resp, err := h.transport.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   h.entryPath(id),
	})
	if err != nil {
		return nil, fmt.Errorf("ordereddatastore: get %q: %w", id, err)
	}
	return h.decodeEntry(resp, id)
}

func (h *handle) delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, ErrInvalidID
	}
	_, err := h.transport.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   h.entryPath(id),
		Header: jsonHeader(),
	})
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			return false, fmt.Errorf("ordereddatastore: delete %q: %w", id, err)
		}
		h.logger.Warn("delete did not complete", zap.String("id", id), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (h *handle) update(ctx context.Context, id string, value int64, allowMissing bool) (*Entry, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	body, err := valueBody(value)
	if err != nil {
		return nil, err
	}

	var q url.Values
	if allowMissing {
		q = url.Values{"allow_missing": {"true"}}
	}

	resp, err := h.transport.Do(ctx, &Request{
		Method: http.MethodPatch,
		Path:   h.entryPath(id),
		Query:  q,
		Header: jsonHeader(),
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("ordereddatastore: update %q: %w", id, err)
	}
	return h.decodeEntry(resp, id)
}

func (h *handle) decodeEntry(body []byte, id string) (*Entry, error) {
	p, err := opencloudapi.DecodeEntry(body)
	if err != nil {
		return nil, err
	}
	return h.entry(*p, id), nil
}

func valueBody(v int64) ([]byte, error) {
	body, err := httpx.MarshalJSON(opencloudapi.ValueBody{Value: v})
	if err != nil {
		return nil, fmt.Errorf("ordereddatastore: encode value: %w", err)
	}
	return body, nil
}

func jsonHeader() http.Header {
	return http.Header{"Content-Type": {"application/json"}}
}
