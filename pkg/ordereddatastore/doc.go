// Package ordereddatastore provides a client for Roblox Open Cloud ordered
// data stores: remote collections of string-identified, integer-valued
// entries that can be listed in sorted, paginated order.
//
// An OrderedDataStore is a view over one (universe, name, scope) triple with a
// fixed list configuration (page size, ordering and filter). Repeated calls to
// FetchNextPage advance its cursor and replace Data with the next page until
// IsFinished reports true. Pagination on a single OrderedDataStore must be
// sequential; an overlapping FetchNextPage returns ErrPaginationInFlight.
//
// Entries are immutable snapshots. Fetch, Remove and Update on an Entry issue
// the same requests as the corresponding OrderedDataStore calls and return new
// snapshots rather than changing the receiver. Per-entry operations touch no
// pagination state and are safe to run concurrently.
//
// Requests go through a Transport. NewHTTPTransport adapts the HTTP client
// used by the opencloud package; the mock subpackage provides an in-memory
// implementation with the same semantics.
package ordereddatastore
