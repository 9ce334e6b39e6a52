package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte(`{"a":1}`)))

	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"a":1}`), val)

	require.NoError(t, s.Remove(ctx, "k"))
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing a missing key is not an error.
	require.NoError(t, s.Remove(ctx, "k"))
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte("original")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'X'

	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "original", string(val))

	// Mutating the returned slice must not affect the stored value.
	val[0] = 'Y'
	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "original", string(again))
}
