package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStoreRoundtrip(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	state := NewState("628111111111")
	state.LastIntent = "order_status"
	state.LastReply = "Pesanan Anda sedang diproses."
	require.NoError(t, store.Put(ctx, "628111111111", state))

	got, err := store.Get(ctx, "628111111111")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "order_status", got.LastIntent)
	assert.Equal(t, "Pesanan Anda sedang diproses.", got.LastReply)
	assert.Equal(t, "628111111111", got.SenderID)
}

func TestRedisStoreMissingIsNil(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)

	got, err := store.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreOverwriteResetsTTL(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "u1", NewState("u1")))
	mr.FastForward(30 * time.Minute)

	second := NewState("u1")
	second.LastIntent = "faq"
	require.NoError(t, store.Put(ctx, "u1", second))

	assert.Equal(t, time.Hour, mr.TTL(redisKeyPrefix+"u1"))

	mr.FastForward(59 * time.Minute)
	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "faq", got.LastIntent)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "u1", NewState("u1")))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
