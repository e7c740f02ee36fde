package ordereddatastore

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultScope is used when a store is constructed without a scope.
const DefaultScope = "global"

// OrderDescending is the only recognised value of ListParameters.OrderBy.
const OrderDescending = "desc"

// ListParameters is the fixed query configuration of an OrderedDataStore.
type ListParameters struct {
	// MaxPageSize bounds the number of entries per page. Zero leaves the
	// choice to the service.
	MaxPageSize int
	// OrderBy is empty for ascending order or OrderDescending.
	OrderBy string
	// Filter restricts the listed values, e.g. "entry >= 10 && entry <= 50".
	Filter string
	// PageToken seeds the cursor, resuming a scan from a saved token.
	PageToken string
}

func (p ListParameters) validate() error {
	if p.MaxPageSize < 0 {
		return fmt.Errorf("%w: max page size must not be negative", ErrInvalidParameters)
	}
	if p.OrderBy != "" && p.OrderBy != OrderDescending {
		return fmt.Errorf("%w: unsupported order %q", ErrInvalidParameters, p.OrderBy)
	}
	return nil
}

// query returns the fixed list query parameters. page_token is added per page.
func (p ListParameters) query() url.Values {
	q := url.Values{}
	if p.MaxPageSize > 0 {
		q.Set("max_page_size", strconv.Itoa(p.MaxPageSize))
	}
	if p.OrderBy != "" {
		q.Set("order_by", p.OrderBy)
	}
	if p.Filter != "" {
		q.Set("filter", p.Filter)
	}
	return q
}

// Cursor is the serialisable pagination state of an OrderedDataStore.
type Cursor struct {
	NextPageToken string `json:"nextPageToken"`
	Finished      bool   `json:"finished"`
}

var (
	// ErrInvalidName is returned when a store is constructed without a name.
	ErrInvalidName = errors.New("ordereddatastore: name is required")
	// ErrInvalidID is returned when an entry operation is given an empty id.
	ErrInvalidID = errors.New("ordereddatastore: entry id is required")
	// ErrInvalidParameters is returned for unusable list parameters.
	ErrInvalidParameters = errors.New("ordereddatastore: invalid list parameters")
	// ErrPaginationInFlight is returned when FetchNextPage or Resume is called
	// while another FetchNextPage on the same store has not returned.
	ErrPaginationInFlight = errors.New("ordereddatastore: pagination already in flight")
)

// RequestError reports a non-success HTTP response.
type RequestError struct {
	StatusCode int
	// Status is the status description, e.g. "404 Not Found".
	Status string
	// Code and Message come from the error body when the service sent one.
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Message != "" {
		return fmt.Sprintf("ordereddatastore: request failed: %s: %s", status, e.Message)
	}
	return "ordereddatastore: request failed: " + status
}

// NotFound reports whether the service answered 404.
func (e *RequestError) NotFound() bool {
	return e != nil && e.StatusCode == http.StatusNotFound
}

// ValueRangeError is returned before any request is sent when a value does
// not fit in a signed 64-bit integer.
type ValueRangeError struct {
	Value *big.Int
}

func (e *ValueRangeError) Error() string {
	if e == nil || e.Value == nil {
		return "ordereddatastore: value is required"
	}
	return fmt.Sprintf("ordereddatastore: value %s is outside the signed 64-bit range", e.Value.String())
}
