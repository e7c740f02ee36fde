package cursorstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roblox-open-cloud/datastores/internal/devseed"
	"github.com/roblox-open-cloud/datastores/pkg/cursorstore"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore/mock"
)

func newScoresStore(t *testing.T, m *mock.Mock) *ordereddatastore.OrderedDataStore {
	t.Helper()
	s, err := ordereddatastore.New(mock.NewTransport(m), 1, "scores", "", &ordereddatastore.ListParameters{MaxPageSize: 2})
	require.NoError(t, err)
	return s
}

func TestMemoryRoundTrip(t *testing.T) {
	st := cursorstore.NewMemory()
	ctx := context.Background()

	_, ok, err := st.Load(ctx, "scan")
	require.NoError(t, err)
	assert.False(t, ok)

	want := ordereddatastore.Cursor{NextPageToken: "tok", Finished: false}
	require.NoError(t, st.Save(ctx, "scan", want))

	got, ok, err := st.Load(ctx, "scan")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, st.Delete(ctx, "scan"))
	_, ok, err = st.Load(ctx, "scan")
	require.NoError(t, err)
	assert.False(t, ok)

	require.ErrorIs(t, st.Save(ctx, "", want), cursorstore.ErrInvalidKey)
}

func TestKeyEscapesParts(t *testing.T) {
	s, err := ordereddatastore.New(mock.NewTransport(mock.New()), 3, "top/scores", "season 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "3/top%2Fscores/season%201/nightly", cursorstore.Key(s, "nightly"))
}

func TestCheckpointAndRestoreResumeScan(t *testing.T) {
	m := mock.New()
	require.NoError(t, m.Seed(1, []devseed.OrderedSeedEntry{
		{Store: "scores", ID: "a", Value: 1},
		{Store: "scores", ID: "b", Value: 2},
		{Store: "scores", ID: "c", Value: 3},
	}))
	st := cursorstore.NewMemory()
	ctx := context.Background()

	first := newScoresStore(t, m)
	key := cursorstore.Key(first, "nightly")

	restored, err := cursorstore.Restore(ctx, st, key, first)
	require.NoError(t, err)
	assert.False(t, restored)

	_, err = first.FetchNextPage(ctx)
	require.NoError(t, err)
	require.NoError(t, cursorstore.Checkpoint(ctx, st, key, first))

	second := newScoresStore(t, m)
	restored, err = cursorstore.Restore(ctx, st, key, second)
	require.NoError(t, err)
	assert.True(t, restored)

	_, err = second.FetchNextPage(ctx)
	require.NoError(t, err)
	require.Len(t, second.Data(), 1)
	assert.Equal(t, "c", second.Data()[0].ID())
	assert.True(t, second.IsFinished())
}
