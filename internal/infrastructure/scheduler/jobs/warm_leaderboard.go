// Package jobs contains the engine's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM LEADERBOARD CACHE JOB
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardWarmer precomputes the first page of every timeframe.
type LeaderboardWarmer interface {
	Warm(ctx context.Context, now time.Time, limit int) error
}

// LeaderboardInvalidator drops every cached leaderboard page.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context) error
}

// WarmLeaderboardConfig contains configuration for the warm job.
type WarmLeaderboardConfig struct {
	// PageSize must match the default page size of the leaderboard query,
	// otherwise warmed pages are never read.
	PageSize int

	// Timeout is the maximum duration of one run.
	Timeout time.Duration
}

// DefaultWarmLeaderboardConfig returns sensible defaults.
func DefaultWarmLeaderboardConfig() WarmLeaderboardConfig {
	return WarmLeaderboardConfig{
		PageSize: 10,
		Timeout:  30 * time.Second,
	}
}

// RunStats contains statistics from the last run.
type RunStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// WarmLeaderboardJob keeps the first leaderboard pages hot in the cache.
type WarmLeaderboardJob struct {
	warmer LeaderboardWarmer
	clock  timeutil.Clock
	logger *slog.Logger
	config WarmLeaderboardConfig

	lastStats atomic.Pointer[RunStats]
}

// NewWarmLeaderboardJob creates a new warm job.
func NewWarmLeaderboardJob(warmer LeaderboardWarmer, clock timeutil.Clock, logger *slog.Logger, config WarmLeaderboardConfig) *WarmLeaderboardJob {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultWarmLeaderboardConfig().PageSize
	}

	return &WarmLeaderboardJob{
		warmer: warmer,
		clock:  clock,
		logger: logger,
		config: config,
	}
}

// Name returns the job name.
func (j *WarmLeaderboardJob) Name() string {
	return "warm_leaderboard_cache"
}

// Description returns a human-readable description.
func (j *WarmLeaderboardJob) Description() string {
	return "Precomputes the first page of the all-time, weekly and monthly leaderboards"
}

// Run executes the warm job.
func (j *WarmLeaderboardJob) Run(ctx context.Context) error {
	startedAt := j.clock()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	err := j.warmer.Warm(ctx, startedAt, j.config.PageSize)
	j.lastStats.Store(&RunStats{
		StartedAt: startedAt,
		Duration:  j.clock().Sub(startedAt),
		Err:       err,
	})
	if err != nil {
		return fmt.Errorf("failed to warm leaderboard cache: %w", err)
	}

	j.logger.Debug("leaderboard cache warmed", "page_size", j.config.PageSize)
	return nil
}

// LastStats returns statistics of the last run, or nil before the first one.
func (j *WarmLeaderboardJob) LastStats() *RunStats {
	return j.lastStats.Load()
}
