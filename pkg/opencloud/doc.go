// Package opencloud bootstraps ordered data store clients for one universe.
//
// New builds an HTTP client against the Open Cloud API from an API key.
// NewFromEnv reads OPENCLOUD_* environment variables and, when no API key is
// available, falls back to an in-memory store that behaves like the service.
// Both return a DataStoreService whose GetOrderedDataStore hands out
// ordereddatastore.OrderedDataStore views.
package opencloud
