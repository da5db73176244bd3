package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetIfAbsent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.SetIfAbsent(ctx, "k", `{"locked_by_user_id":"a"}`, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetIfAbsent(ctx, "k", `{"locked_by_user_id":"b"}`, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second writer loses")

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, v, `"a"`)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	_, err := s.SetIfAbsent(ctx, "k", `{"locked_by_user_id":"a"}`, 10*time.Second)
	require.NoError(t, err)

	now = now.Add(11 * time.Second)

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "expired keys behave like absent ones")

	ok, err := s.SetIfAbsent(ctx, "k", `{"locked_by_user_id":"b"}`, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired key can be overwritten")
}

func TestMemoryStoreDeleteIfHolder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.SetIfAbsent(ctx, "k", `{"locked_by_user_id":"a"}`, time.Minute)
	require.NoError(t, err)

	ok, err := s.DeleteIfHolder(ctx, "k", "b")
	require.NoError(t, err)
	assert.False(t, ok, "wrong holder never deletes")

	ok, err = s.DeleteIfHolder(ctx, "k", "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteIfHolder(ctx, "k", "a")
	require.NoError(t, err)
	assert.False(t, ok, "double release is a no-op")
}
