package opencloud_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roblox-open-cloud/datastores/pkg/opencloud"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore"
)

func TestNewValidatesCredentials(t *testing.T) {
	_, err := opencloud.New("", 1)
	require.ErrorIs(t, err, opencloud.ErrMissingAPIKey)

	_, err = opencloud.New("key", 0)
	require.ErrorIs(t, err, opencloud.ErrInvalidUniverse)

	_, err = opencloud.New("key", 1, opencloud.WithBaseURL("not a url"))
	require.Error(t, err)
}

func TestGetOrderedDataStoreDefaults(t *testing.T) {
	svc, err := opencloud.New("key", 99)
	require.NoError(t, err)

	store, err := svc.GetOrderedDataStore("scores", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "scores", store.Name())
	assert.Equal(t, "global", store.Scope())
	assert.EqualValues(t, 99, store.UniverseID())
	assert.Equal(t, ordereddatastore.ListParameters{}, store.Parameters())

	_, err = svc.GetOrderedDataStore("", nil, "")
	require.ErrorIs(t, err, ordereddatastore.ErrInvalidName)
}

func TestServiceTalksToOpenCloud(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.Header.Get("x-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/ordered-data-stores/v1/universes/5/orderedDataStores/scores/scopes/season/entries", r.URL.Path)
		io.WriteString(w, `{"entries":[{"id":"p1","value":"42"}],"nextPageToken":""}`)
	}))
	defer srv.Close()

	svc, err := opencloud.New("secret", 5,
		opencloud.WithBaseURL(srv.URL),
		opencloud.WithMaxRetries(1),
		opencloud.WithTimeout(5*time.Second),
		opencloud.WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)

	store, err := svc.GetOrderedDataStore("scores", &ordereddatastore.ListParameters{MaxPageSize: 5}, "season")
	require.NoError(t, err)

	_, err = store.FetchNextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, store.Data(), 1)
	assert.EqualValues(t, 42, store.Data()[0].Value())
	assert.True(t, store.IsFinished())
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestTimeoutLeavesSharedHTTPClientAlone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"p1","value":"1"}`)
	}))
	defer srv.Close()

	shared := &http.Client{}
	svc, err := opencloud.New("secret", 5,
		opencloud.WithBaseURL(srv.URL),
		opencloud.WithHTTPClient(shared),
		opencloud.WithTimeout(3*time.Second),
	)
	require.NoError(t, err)

	store, err := svc.GetOrderedDataStore("scores", nil, "")
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Zero(t, shared.Timeout)
}

func TestNewWithTransport(t *testing.T) {
	var got *ordereddatastore.Request
	tr := ordereddatastore.TransportFunc(func(ctx context.Context, req *ordereddatastore.Request) ([]byte, error) {
		got = req
		return []byte(`{"id":"p1","value":"3"}`), nil
	})
	svc, err := opencloud.NewWithTransport(tr, 8)
	require.NoError(t, err)

	store, err := svc.GetOrderedDataStore("coins", nil, "")
	require.NoError(t, err)
	entry, err := store.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, entry.Value())
	assert.Equal(t, "/ordered-data-stores/v1/universes/8/orderedDataStores/coins/scopes/global/entries/p1", got.Path)

	_, err = opencloud.NewWithTransport(nil, 8)
	require.Error(t, err)
}

func TestNewFromEnvHTTPMode(t *testing.T) {
	t.Setenv("OPENCLOUD_RUNTIME_MODE", "http")
	t.Setenv("OPENCLOUD_API_KEY", "k")
	t.Setenv("OPENCLOUD_UNIVERSE_ID", "12")
	t.Setenv("OPENCLOUD_TIMEOUT", "3s")

	svc, mode, err := opencloud.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, opencloud.ModeHTTP, mode)
	assert.EqualValues(t, 12, svc.UniverseID())
}

func TestNewFromEnvHTTPModeRequiresKey(t *testing.T) {
	t.Setenv("OPENCLOUD_RUNTIME_MODE", "http")
	t.Setenv("OPENCLOUD_API_KEY", "")

	_, _, err := opencloud.NewFromEnv()
	require.Error(t, err)
}

func TestNewFromEnvMockAutoFallback(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[
		{"store":"scores","id":"alice","value":30},
		{"store":"scores","id":"bob","value":20}
	]`), 0o600))

	t.Setenv("OPENCLOUD_RUNTIME_MODE", "")
	t.Setenv("OPENCLOUD_API_KEY", "")
	t.Setenv("OPENCLOUD_UNIVERSE_ID", "")
	t.Setenv("OPENCLOUD_MOCK_SEED", seed)

	svc, mode, err := opencloud.NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, opencloud.ModeMock, mode)

	store, err := svc.GetOrderedDataStore("scores", &ordereddatastore.ListParameters{OrderBy: ordereddatastore.OrderDescending}, "")
	require.NoError(t, err)
	_, err = store.FetchNextPage(context.Background())
	require.NoError(t, err)

	data := store.Data()
	require.Len(t, data, 2)
	assert.Equal(t, "alice", data[0].ID())
	assert.Equal(t, "bob", data[1].ID())
}

func TestNewFromEnvRejectsUnknownMode(t *testing.T) {
	t.Setenv("OPENCLOUD_RUNTIME_MODE", "grpc")
	_, _, err := opencloud.NewFromEnv()
	require.Error(t, err)
}

func TestNewFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("OPENCLOUD_RUNTIME_MODE", "mock")
	t.Setenv("OPENCLOUD_TIMEOUT", "soon")
	_, _, err := opencloud.NewFromEnv()
	require.Error(t, err)
}
