package repository

import (
	"context"
	"testing"
	"time"

	"venuebook/internal/config"
	"venuebook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisVenueCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	cache := NewRedisVenueCache(client, time.Minute)

	t.Run("Miss", func(t *testing.T) {
		venues, ok, err := cache.GetVenues(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, venues)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		in := []*models.Venue{{ID: 1, Name: "Hall A", Status: models.VenueStatusOpen}, {ID: 2, Name: "Court"}}
		require.NoError(t, cache.SetVenues(ctx, in))

		got, ok, err := cache.GetVenues(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, got, 2)
		assert.Equal(t, "Hall A", got[0].Name)
		assert.Equal(t, time.Minute, s.TTL(venuesKey))
	})

	t.Run("EmptyListIsAHit", func(t *testing.T) {
		require.NoError(t, cache.SetVenues(ctx, []*models.Venue{}))
		got, ok, err := cache.GetVenues(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, got)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, cache.Invalidate(ctx))
		_, ok, err := cache.GetVenues(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, cache.SetVenues(ctx, []*models.Venue{{ID: 1, Name: "Hall A"}}))
		s.FastForward(2 * time.Minute)
		_, ok, err := cache.GetVenues(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRedisRateLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	limiter := NewRedisRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.CheckRateLimit(ctx, "requester:A", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := limiter.CheckRateLimit(ctx, "requester:A", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	s.FastForward(2 * time.Minute)
	allowed, err = limiter.CheckRateLimit(ctx, "requester:A", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisNilClient(t *testing.T) {
	ctx := context.Background()

	_, _, err := NewRedisVenueCache(nil, time.Minute).GetVenues(ctx)
	assert.Error(t, err)
	_, err = NewRedisRateLimiter(nil).CheckRateLimit(ctx, "k", 1, time.Second)
	assert.Error(t, err)
}
