package jobs

import (
	"context"
	"fmt"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAY ROLLOVER JOB
// ══════════════════════════════════════════════════════════════════════════════

// DayRolloverJob runs at local midnight. Weekly and monthly windows move with
// the calendar day, so the cache generation is bumped and the first pages are
// warmed again.
type DayRolloverJob struct {
	invalidator LeaderboardInvalidator
	warm        *WarmLeaderboardJob
	logger      *slog.Logger
}

// NewDayRolloverJob creates a new rollover job. warm may be nil.
func NewDayRolloverJob(invalidator LeaderboardInvalidator, warm *WarmLeaderboardJob, logger *slog.Logger) *DayRolloverJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DayRolloverJob{
		invalidator: invalidator,
		warm:        warm,
		logger:      logger,
	}
}

// Name returns the job name.
func (j *DayRolloverJob) Name() string {
	return "leaderboard_day_rollover"
}

// Description returns a human-readable description.
func (j *DayRolloverJob) Description() string {
	return "Invalidates cached leaderboard pages at the start of a new day"
}

// Run executes the rollover.
func (j *DayRolloverJob) Run(ctx context.Context) error {
	if err := j.invalidator.Invalidate(ctx); err != nil {
		return fmt.Errorf("failed to invalidate leaderboard cache: %w", err)
	}
	j.logger.Info("leaderboard cache invalidated for new day")

	if j.warm == nil {
		return nil
	}
	return j.warm.Run(ctx)
}
