package repository

import (
	"context"
	"sync/atomic"
	"time"

	"venuebook/internal/domain"
	"venuebook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// breaker remembers that the primary failed and retries it once per recoveryInterval.
type breaker struct {
	isDown    atomic.Bool
	lastCheck atomic.Int64
	logger    *zerolog.Logger
	name      string
}

func (b *breaker) usePrimary() bool {
	if !b.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, b.lastCheck.Load())) > recoveryInterval
}

func (b *breaker) observe(err error) {
	if err == nil {
		if b.isDown.Swap(false) {
			b.logger.Info().Str("repository", b.name).Msg("Primary repository recovered")
		}
		return
	}
	if !b.isDown.Swap(true) {
		b.logger.Error().Err(err).Str("repository", b.name).Msg("Primary repository failed, falling back to memory")
	}
	b.lastCheck.Store(time.Now().UnixNano())
}

type FailoverVenueCache struct {
	primary  domain.VenueCache
	fallback domain.VenueCache
	breaker
}

func NewFailoverVenueCache(primary, fallback domain.VenueCache, logger *zerolog.Logger) *FailoverVenueCache {
	logger = orNop(logger)
	return &FailoverVenueCache{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker{logger: logger, name: "venue_cache"},
	}
}

func (r *FailoverVenueCache) GetVenues(ctx context.Context) ([]*models.Venue, bool, error) {
	if r.usePrimary() {
		venues, ok, err := r.primary.GetVenues(ctx)
		r.observe(err)
		if err == nil {
			return venues, ok, nil
		}
	}
	return r.fallback.GetVenues(ctx)
}

func (r *FailoverVenueCache) SetVenues(ctx context.Context, venues []*models.Venue) error {
	if r.usePrimary() {
		err := r.primary.SetVenues(ctx, venues)
		r.observe(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SetVenues(ctx, venues)
}

// Invalidate clears both layers so a recovered primary never serves a list older than the fallback.
func (r *FailoverVenueCache) Invalidate(ctx context.Context) error {
	_ = r.fallback.Invalidate(ctx)
	if r.usePrimary() {
		err := r.primary.Invalidate(ctx)
		r.observe(err)
	}
	return nil
}

type FailoverRateLimiter struct {
	primary  domain.RateLimiter
	fallback domain.RateLimiter
	breaker
}

func NewFailoverRateLimiter(primary, fallback domain.RateLimiter, logger *zerolog.Logger) *FailoverRateLimiter {
	logger = orNop(logger)
	return &FailoverRateLimiter{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker{logger: logger, name: "rate_limiter"},
	}
}

func (r *FailoverRateLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		r.observe(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

func orNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}
