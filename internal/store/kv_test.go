package store

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisKV(rdb), mr
}

func TestRedisKV_MissAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv, _ := newMiniRedisKV(t)

	_, err := kv.Get(ctx, "tile:session:a:patient")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "tile:session:a:patient", `{"id":"123"}`, 0))
	v, err := kv.Get(ctx, "tile:session:a:patient")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"123"}`, v)

	require.NoError(t, kv.Del(ctx, "tile:session:a:patient"))
	require.NoError(t, kv.Del(ctx))
	_, err = kv.Get(ctx, "tile:session:a:patient")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_TTL(t *testing.T) {
	ctx := context.Background()
	kv, mr := newMiniRedisKV(t)

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_SessionStates(t *testing.T) {
	ctx := context.Background()
	kv, _ := newMiniRedisKV(t)

	require.NoError(t, NewSession(kv, "s1", time.Hour).Set(ctx, "tileState", "patient"))
	require.NoError(t, NewSession(kv, "s2", time.Hour).Set(ctx, "tileState", "default"))
	require.NoError(t, NewSession(kv, "s2", time.Hour).Set(ctx, "patient", "{}"))

	keys, err := kv.ScanKeys(ctx, "tile:session:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"tile:session:s1:tileState", "tile:session:s2:patient", "tile:session:s2:tileState"}, keys)

	states, err := SessionStates(ctx, kv, "tileState")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"s1": "patient", "s2": "default"}, states)
}
