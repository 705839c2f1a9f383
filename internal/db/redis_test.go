package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	store := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: s.Addr()}),
		Ctx:    context.Background(),
	}
	return s, store
}

func TestLastSeenRoundTrip(t *testing.T) {
	s, store := setupTestStore(t)
	defer s.Close()

	_, seen, err := store.GetLastSeen("v1", "c1")
	require.NoError(t, err)
	assert.False(t, seen, "no record means never seen")

	when := time.Date(2025, 6, 16, 12, 30, 0, 0, time.UTC)
	require.NoError(t, store.SetLastSeen("v1", "c1", when))

	got, seen, err := store.GetLastSeen("v1", "c1")
	require.NoError(t, err)
	require.True(t, seen)
	assert.Equal(t, when, got)

	// Records are scoped per visitor and per campaign.
	_, seen, err = store.GetLastSeen("v2", "c1")
	require.NoError(t, err)
	assert.False(t, seen)
	_, seen, err = store.GetLastSeen("v1", "c2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestLastSeenExpires(t *testing.T) {
	s, store := setupTestStore(t)
	defer s.Close()

	require.NoError(t, store.SetLastSeen("v1", "c1", time.Now()))
	s.FastForward(91 * 24 * time.Hour)

	_, seen, err := store.GetLastSeen("v1", "c1")
	require.NoError(t, err)
	assert.False(t, seen, "stale records age out")
}

func TestLiveCounters(t *testing.T) {
	s, store := setupTestStore(t)
	defer s.Close()

	imps, clicks, err := store.GetLiveCounters("c1")
	require.NoError(t, err)
	assert.Zero(t, imps)
	assert.Zero(t, clicks)

	for i := 0; i < 3; i++ {
		_, err := store.IncrementImpressions("c1")
		require.NoError(t, err)
	}
	n, err := store.IncrementClicks("c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	imps, clicks, err = store.GetLiveCounters("c1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), imps)
	assert.Equal(t, int64(1), clicks)

	require.NoError(t, store.ResetLiveCounters("c1"))
	imps, clicks, err = store.GetLiveCounters("c1")
	require.NoError(t, err)
	assert.Zero(t, imps)
	assert.Zero(t, clicks)
}
