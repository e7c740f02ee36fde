package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roblox-open-cloud/datastores/internal/devseed"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore/mock"
)

const entriesPath = "/ordered-data-stores/v1/universes/1/orderedDataStores/scores/scopes/global/entries"

func seededStore(t *testing.T) *mock.Mock {
	t.Helper()
	m := mock.New()
	require.NoError(t, m.Seed(1, []devseed.OrderedSeedEntry{
		{Store: "scores", ID: "alice", Value: 30},
		{Store: "scores", ID: "bob", Value: 20},
	}))
	return m
}

func do(t *testing.T, cfg serverConfig, m *mock.Mock, req *http.Request) (int, string) {
	t.Helper()
	app := newApp(m, cfg, zaptest.NewLogger(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealth(t *testing.T) {
	status, body := do(t, serverConfig{}, mock.New(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestListThroughSandbox(t *testing.T) {
	cfg := serverConfig{apiKey: "k"}
	m := seededStore(t)

	req := httptest.NewRequest(http.MethodGet, entriesPath+"?order_by=desc&max_page_size=1&page_token=", nil)
	req.Header.Set("x-api-key", "k")
	status, body := do(t, cfg, m, req)
	require.Equal(t, http.StatusOK, status, body)

	var page struct {
		Entries []struct {
			ID    string `json:"id"`
			Value string `json:"value"`
		} `json:"entries"`
		NextPageToken string `json:"nextPageToken"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "alice", page.Entries[0].ID)
	assert.Equal(t, "30", page.Entries[0].Value)
	assert.NotEmpty(t, page.NextPageToken)
}

func TestCreateThroughSandbox(t *testing.T) {
	m := mock.New()
	req := httptest.NewRequest(http.MethodPost, entriesPath+"?id=p%201", strings.NewReader(`{"value":5}`))
	req.Header.Set("Content-Type", "application/json")
	status, body := do(t, serverConfig{}, m, req)
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"id":"p 1"`)

	req = httptest.NewRequest(http.MethodGet, entriesPath+"/p%201", nil)
	status, body = do(t, serverConfig{}, m, req)
	require.Equal(t, http.StatusOK, status, body)
	assert.Contains(t, body, `"value":"5"`)
}

func TestAPIKeyIsEnforced(t *testing.T) {
	cfg := serverConfig{apiKey: "k"}
	m := seededStore(t)

	status, body := do(t, cfg, m, httptest.NewRequest(http.MethodGet, entriesPath, nil))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "UNAUTHENTICATED")

	req := httptest.NewRequest(http.MethodGet, entriesPath, nil)
	req.Header.Set("x-api-key", "wrong")
	status, _ = do(t, cfg, m, req)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestFailureInjection(t *testing.T) {
	cfg := serverConfig{
		fail:   failConfig{rate: 0.5, code: http.StatusServiceUnavailable},
		chance: func() float64 { return 0.1 },
	}
	status, body := do(t, cfg, mock.New(), httptest.NewRequest(http.MethodGet, entriesPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "INJECTED_FAILURE")

	cfg.chance = func() float64 { return 0.9 }
	status, _ = do(t, cfg, mock.New(), httptest.NewRequest(http.MethodGet, entriesPath, nil))
	assert.Equal(t, http.StatusOK, status)
}

func TestParseFailConfig(t *testing.T) {
	cases := []struct {
		raw     string
		want    failConfig
		wantErr bool
	}{
		{raw: "", want: failConfig{}},
		{raw: "rate=0.1", want: failConfig{rate: 0.1, code: 500}},
		{raw: "rate=0.25, code=503", want: failConfig{rate: 0.25, code: 503}},
		{raw: "rate", wantErr: true},
		{raw: "rate=2", wantErr: true},
		{raw: "code=200", wantErr: true},
		{raw: "speed=1", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseFailConfig(tc.raw)
		if tc.wantErr {
			assert.Error(t, err, tc.raw)
			continue
		}
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestSeedUniverseIsReadAsInteger(t *testing.T) {
	t.Setenv("SANDBOX_UNIVERSE_ID", "7")

	universe, ok := seedUniverse.Value()
	require.True(t, ok)
	assert.EqualValues(t, 7, universe)
}
