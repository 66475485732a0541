package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_NamespacesKeys(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	a := NewSession(kv, "a", time.Hour)
	b := NewSession(kv, "b", time.Hour)

	require.NoError(t, a.Set(ctx, "patient", `{"id":"1"}`))

	raw, err := kv.Get(ctx, "tile:session:a:patient")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, raw)

	_, err = b.Get(ctx, "patient")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, a.Remove(ctx, "patient"))
	_, err = a.Get(ctx, "patient")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSessionStates(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, NewSession(kv, "s1", 0).Set(ctx, "tileState", "patient"))
	require.NoError(t, NewSession(kv, "s2", 0).Set(ctx, "tileState", "default"))
	require.NoError(t, NewSession(kv, "s2", 0).Set(ctx, "patient", "{}"))

	states, err := SessionStates(ctx, kv, "tileState")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"s1": "patient", "s2": "default"}, states)
}
