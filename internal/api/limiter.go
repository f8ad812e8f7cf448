package api

import (
	"context"
	"sync"
	"time"

	"venuebook/internal/config"
	"venuebook/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per client key.
type rateLimiter struct {
	limiters sync.Map
	cfg      config.APIRateLimitConfig
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	return &rateLimiter{
		cfg: cfg,
	}
}

// allow is always true when RPS is not configured.
func (l *rateLimiter) allow(key string) bool {
	if l.cfg.RPS <= 0 {
		return true
	}
	return l.getLimiter(key).Allow()
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}

// bookingQuota caps booking requests per requester in a shared store,
// so the limit holds across API instances.
type bookingQuota struct {
	store  domain.RateLimiter
	limit  int
	logger *zerolog.Logger
}

func newBookingQuota(store domain.RateLimiter, limit int, logger *zerolog.Logger) *bookingQuota {
	if store == nil || limit <= 0 {
		return nil
	}
	return &bookingQuota{store: store, limit: limit, logger: logger}
}

func (q *bookingQuota) allow(ctx context.Context, requesterID string) bool {
	if q == nil || requesterID == "" {
		return true
	}
	ok, err := q.store.CheckRateLimit(ctx, "booking:"+requesterID, q.limit, time.Minute)
	if err != nil {
		// при недоступном хранилище лимитов заявки не блокируем
		q.logger.Warn().Err(err).Str("requester_id", requesterID).Msg("Booking quota check failed")
		return true
	}
	return ok
}
