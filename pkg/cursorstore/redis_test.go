package cursorstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roblox-open-cloud/datastores/pkg/cursorstore"
	"github.com/roblox-open-cloud/datastores/pkg/ordereddatastore"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:         "localhost:6379",
		DB:           15,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available for testing:", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisRoundTrip(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	prefix := "test:" + t.Name() + ":"
	st := cursorstore.NewRedis(client,
		cursorstore.WithPrefix(prefix),
		cursorstore.WithTTL(time.Minute),
		cursorstore.WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() { client.Del(context.Background(), prefix+"scan") })

	_, ok, err := st.Load(ctx, "scan")
	require.NoError(t, err)
	assert.False(t, ok)

	want := ordereddatastore.Cursor{NextPageToken: "tok-1"}
	require.NoError(t, st.Save(ctx, "scan", want))

	raw, err := client.Get(ctx, prefix+"scan").Result()
	require.NoError(t, err)
	assert.JSONEq(t, `{"nextPageToken":"tok-1","finished":false}`, raw)

	ttl, err := client.TTL(ctx, prefix+"scan").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	got, ok, err := st.Load(ctx, "scan")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, st.Delete(ctx, "scan"))
	_, ok, err = st.Load(ctx, "scan")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRejectsCorruptCursor(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	prefix := "test:" + t.Name() + ":"
	require.NoError(t, client.Set(ctx, prefix+"bad", "not json", time.Minute).Err())
	t.Cleanup(func() { client.Del(context.Background(), prefix+"bad") })

	_, _, err := cursorstore.NewRedis(client, cursorstore.WithPrefix(prefix)).Load(ctx, "bad")
	require.Error(t, err)
}

func TestRedisRequiresKey(t *testing.T) {
	st := cursorstore.NewRedis(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
	_, _, err := st.Load(context.Background(), "")
	require.ErrorIs(t, err, cursorstore.ErrInvalidKey)
	require.ErrorIs(t, st.Save(context.Background(), "", ordereddatastore.Cursor{}), cursorstore.ErrInvalidKey)
	require.ErrorIs(t, st.Delete(context.Background(), ""), cursorstore.ErrInvalidKey)
}
