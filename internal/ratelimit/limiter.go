// Package ratelimit throttles bid admission per bidder. The limit is enforced
// distributed over Redis so it holds across API replicas; when Redis is down
// the limiter falls back to an in-process limiter per bidder, which is looser
// across replicas but keeps the endpoint protected. A background health check
// restores distributed limiting once Redis recovers.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pixelrealm/territory-engine/internal/adapter"
	"github.com/pixelrealm/territory-engine/internal/logger"
)

const (
	keyPrefix = "ratelimit:bid:"

	healthCheckInterval = 10 * time.Second
	healthCheckTimeout  = 2 * time.Second
)

// Config holds rate limiter configuration
type Config struct {
	// PerMinute is the number of bids each bidder may place per minute
	PerMinute int
	// Burst is the number of bids a bidder may place back to back
	Burst int
	// EnableLocalFallback keeps limiting in-process when Redis is unreachable.
	// When false, Redis failures fail open: bids are admitted unthrottled.
	EnableLocalFallback bool
}

// Limiter decides whether a bidder may place another bid right now
//
//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit.go -package=mocks -mock_names=Limiter=MockLimiter
type Limiter interface {
	// Allow reports whether the bidder identified by key may proceed, and if
	// not, how long to wait before retrying
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration)

	// Close stops background health checks
	Close()
}

// noopLimiter admits everything
type noopLimiter struct{}

// NewNoopLimiter creates a limiter that never throttles
func NewNoopLimiter() Limiter {
	return noopLimiter{}
}

func (noopLimiter) Allow(context.Context, string) (bool, time.Duration) {
	return true, 0
}

func (noopLimiter) Close() {}

// bidLimiter is the concrete implementation backed by redis_rate with an
// x/time/rate fallback
type bidLimiter struct {
	config         Config
	limit          redis_rate.Limit
	redis          adapter.RedisClient
	distributed    adapter.RedisRateLimiter
	clock          adapter.Clock
	redisAvailable atomic.Bool
	closed         atomic.Bool

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

// NewBidLimiter creates a per-bidder rate limiter. rc may be nil, in which
// case only the local limiter is used.
func NewBidLimiter(cfg Config, rc adapter.RedisClient, clock adapter.Clock) Limiter {
	if cfg.PerMinute <= 0 {
		return NewNoopLimiter()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.PerMinute
	}

	limit := redis_rate.PerMinute(cfg.PerMinute)
	limit.Burst = cfg.Burst

	l := &bidLimiter{
		config: cfg,
		limit:  limit,
		clock:  clock,
		local:  make(map[string]*rate.Limiter),
	}

	if rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		l.redis = rc
		l.distributed = rc.NewRateLimiter()
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("Redis unavailable for rate limiting, using local fallback", zap.Error(err))
		} else {
			l.redisAvailable.Store(true)
		}

		// Restores the redisAvailable flag after an outage.
		go l.monitorRedisHealth()
	}

	logger.Info("Bid rate limiter initialized",
		zap.Int("per_minute", cfg.PerMinute),
		zap.Int("burst", cfg.Burst),
		zap.Bool("distributed", l.distributed != nil),
		zap.Bool("local_fallback", cfg.EnableLocalFallback),
	)

	return l
}

// Allow reports whether the bidder identified by key may proceed
func (l *bidLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.distributed != nil && l.redisAvailable.Load() {
		res, err := l.distributed.Allow(ctx, keyPrefix+key, l.limit)
		if err == nil {
			if res.Allowed > 0 {
				return true, 0
			}
			return false, res.RetryAfter
		}

		if ctx.Err() != nil {
			// Caller is gone; the answer no longer matters.
			return false, 0
		}

		l.redisAvailable.Store(false)
		logger.WarnCtx(ctx, "Redis rate limiter error, falling back to local",
			zap.String("key", key),
			zap.Error(err),
		)
		if !l.config.EnableLocalFallback {
			// Availability over strictness: an unthrottled bid is recoverable,
			// a rejected legitimate one is not.
			return true, 0
		}
	}

	if l.distributed == nil || l.config.EnableLocalFallback {
		if l.localFor(key).Allow() {
			return true, 0
		}
		return false, time.Minute / time.Duration(l.config.PerMinute)
	}

	return true, 0
}

// Close stops the health check goroutine
func (l *bidLimiter) Close() {
	l.closed.Store(true)
}

// monitorRedisHealth periodically pings Redis and updates the availability
// flag, so a transient outage does not disable distributed limiting for good
func (l *bidLimiter) monitorRedisHealth() {
	for {
		<-l.clock.After(healthCheckInterval)

		if l.closed.Load() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		err := l.redis.Ping(ctx)
		cancel()

		available := err == nil
		wasAvailable := l.redisAvailable.Swap(available)
		if !wasAvailable && available {
			logger.Info("Redis connection restored, resuming distributed rate limiting")
		}
	}
}

// localFor returns the in-process limiter for a bidder, creating it on first use
func (l *bidLimiter) localFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.local[key]
	if !ok {
		perSecond := float64(l.config.PerMinute) / 60.0
		lim = rate.NewLimiter(rate.Limit(perSecond), l.config.Burst)
		l.local[key] = lim
	}
	return lim
}
