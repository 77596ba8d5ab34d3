package redis

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *IdempotencyStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return mr, NewIdempotencyStore(logger, client, time.Hour)
}

func TestIdempotencyStore_ReserveThenReplay(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestStore(t)

	ok, existing, err := store.Reserve(ctx, "caller-1:key-1", "hash-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, existing)
	assert.Equal(t, InProgressTTL, mr.TTL(keyPrefix+"caller-1:key-1"))

	ok, existing, err = store.Reserve(ctx, "caller-1:key-1", "hash-a")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotNil(t, existing)
	assert.True(t, existing.InProgress)

	require.NoError(t, store.Complete(ctx, "caller-1:key-1", "hash-a", 201, []byte(`{"data":{}}`)))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"caller-1:key-1"))

	ok, existing, err = store.Reserve(ctx, "caller-1:key-1", "hash-a")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotNil(t, existing)
	assert.False(t, existing.InProgress)
	assert.Equal(t, 201, existing.StatusCode)
	assert.Equal(t, "hash-a", existing.RequestHash)
	assert.JSONEq(t, `{"data":{}}`, string(existing.Body))
}

func TestIdempotencyStore_Release(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestStore(t)

	ok, _, err := store.Reserve(ctx, "k", "h")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Release(ctx, "k"))
	assert.False(t, mr.Exists(keyPrefix+"k"))

	ok, _, err = store.Reserve(ctx, "k", "h")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotencyStore_ReservationExpires(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestStore(t)

	ok, _, err := store.Reserve(ctx, "k", "h")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(InProgressTTL + time.Second)

	entry, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestIdempotencyStore_Unavailable(t *testing.T) {
	mr, store := newTestStore(t)
	mr.Close()

	_, _, err := store.Reserve(context.Background(), "k", "h")
	assert.Error(t, err)
}
