package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisKV(client), mr
}

func TestRedisKV_SetGet(t *testing.T) {
	kv, _ := newRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "roadinfo:40.7128:-74.0060", `{"elements":[]}`, time.Minute))
	val, err := kv.Get(ctx, "roadinfo:40.7128:-74.0060")
	require.NoError(t, err)
	assert.Equal(t, `{"elements":[]}`, val)
}

func TestRedisKV_Miss(t *testing.T) {
	kv, _ := newRedisKV(t)

	_, err := kv.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_TTLExpiry(t *testing.T) {
	kv, mr := newRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_ScanKeys(t *testing.T) {
	kv, _ := newRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "roadinfo:a", "1", 0))
	require.NoError(t, kv.Set(ctx, "roadinfo:b", "2", 0))
	require.NoError(t, kv.Set(ctx, "other:c", "3", 0))

	keys, err := kv.ScanKeys(ctx, "roadinfo:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"roadinfo:a", "roadinfo:b"}, keys)
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	// 过期后未命中
	require.NoError(t, kv.Set(ctx, "ttl", "v", time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, err = kv.Get(ctx, "ttl")
	assert.ErrorIs(t, err, ErrMiss)
}
