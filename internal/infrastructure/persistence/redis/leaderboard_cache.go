package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/circuitbreaker"
	"github.com/alem-hub/progression-engine/pkg/retry"
)

// VersionKey holds the leaderboard generation. Every committed award bumps it,
// so pages cached under an older generation are never read again.
const VersionKey = PrefixLeaderboard + "version"

// invalidateTimeout bounds the INCR issued from event handlers.
const invalidateTimeout = 2 * time.Second

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache decorates a progression.LeaderboardReader with a Redis
// page cache. Any cache failure falls back to the underlying reader.
type LeaderboardCache struct {
	base    progression.LeaderboardReader
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	logger  *slog.Logger
}

// LeaderboardCacheConfig contains configuration for LeaderboardCache.
type LeaderboardCacheConfig struct {
	// TTL bounds how long a page (and its weekly/monthly window) may be served.
	TTL time.Duration

	// Breaker guards Redis calls; nil means circuitbreaker.CacheBreaker.
	Breaker *circuitbreaker.CircuitBreaker

	// Logger for structured logging
	Logger *slog.Logger
}

// NewLeaderboardCache creates a caching leaderboard reader.
func NewLeaderboardCache(base progression.LeaderboardReader, cache *Cache, cfg LeaderboardCacheConfig) *LeaderboardCache {
	if cfg.TTL <= 0 {
		cfg.TTL = TTLLeaderboardCache
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "leaderboard_cache")
	if cfg.Breaker == nil {
		cfg.Breaker = circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}, IsMiss)
	}

	return &LeaderboardCache{
		base:    base,
		cache:   cache,
		breaker: cfg.Breaker,
		ttl:     cfg.TTL,
		logger:  logger,
	}
}

// PageKey returns the cache key of a page under the given generation.
func PageKey(version int64, q progression.LeaderboardQuery) string {
	return fmt.Sprintf("%sv%d:%s:%d:%d", PrefixLeaderboard, version, q.Timeframe, q.Limit, q.Offset)
}

// Leaderboard implements progression.LeaderboardReader.
func (c *LeaderboardCache) Leaderboard(ctx context.Context, q progression.LeaderboardQuery) (progression.LeaderboardPage, error) {
	version, err := circuitbreaker.Call(ctx, c.breaker, func(ctx context.Context) (int64, error) {
		return c.cache.GetInt(ctx, VersionKey)
	})
	if err != nil {
		c.logger.DebugContext(ctx, "leaderboard cache bypassed", "error", err)
		return c.base.Leaderboard(ctx, q)
	}

	key := PageKey(version, q)

	var page progression.LeaderboardPage
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Get(ctx, key, &page)
	})
	if err == nil {
		return page, nil
	}
	if !IsMiss(err) {
		c.logger.DebugContext(ctx, "leaderboard cache read failed", "key", key, "error", err)
		return c.base.Leaderboard(ctx, q)
	}

	page, err = c.base.Leaderboard(ctx, q)
	if err != nil {
		return progression.LeaderboardPage{}, err
	}

	c.store(ctx, key, page)
	return page, nil
}

func (c *LeaderboardCache) store(ctx context.Context, key string, page progression.LeaderboardPage) {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, key, page, c.ttl)
	})
	if err != nil {
		c.logger.DebugContext(ctx, "leaderboard cache write failed", "key", key, "error", err)
	}
}

// Invalidate bumps the generation so every cached page becomes unreachable.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.cache.Incr(ctx, VersionKey)
		return err
	})
}

// HandleXPAwarded is a shared.EventHandler invalidating the cache after an award.
// Redis errors are marked retryable; an open breaker is not.
func (c *LeaderboardCache) HandleXPAwarded(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	err := c.Invalidate(ctx)
	if err == nil {
		return nil
	}
	err = fmt.Errorf("failed to invalidate leaderboard cache for %s: %w", event.AggregateID(), err)
	if circuitbreaker.IsRejected(err) {
		return err
	}
	return retry.Retryable(err)
}

// Warm precomputes the first page of every timeframe under the current generation.
func (c *LeaderboardCache) Warm(ctx context.Context, now time.Time, limit int) error {
	version, err := circuitbreaker.Call(ctx, c.breaker, func(ctx context.Context) (int64, error) {
		return c.cache.GetInt(ctx, VersionKey)
	})
	if err != nil {
		return fmt.Errorf("failed to read leaderboard version: %w", err)
	}

	var errs []error
	for _, tf := range progression.Timeframes() {
		q := progression.LeaderboardQuery{
			Timeframe: tf,
			Since:     tf.Since(now),
			Limit:     limit,
		}

		page, err := c.base.Leaderboard(ctx, q)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tf, err))
			continue
		}

		key := PageKey(version, q)
		err = c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.cache.Set(ctx, key, page, c.ttl)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tf, err))
		}
	}

	return errors.Join(errs...)
}

var _ progression.LeaderboardReader = (*LeaderboardCache)(nil)
