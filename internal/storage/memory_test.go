package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.Put(ctx, "key", []byte("value")))
	got, ok, err := store.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	assert.NoError(t, store.Put(ctx, "key", []byte("replaced")))
	got, _, _ = store.Get(ctx, "key")
	assert.Equal(t, []byte("replaced"), got)

	assert.NoError(t, store.Close())
}

func TestMemoryStore_DefensiveCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	in := []byte("original")
	store.Put(ctx, "key", in)
	in[0] = 'X'

	got, _, _ := store.Get(ctx, "key")
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, _, _ := store.Get(ctx, "key")
	assert.Equal(t, []byte("original"), again)
}
