package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

type fakeCache struct {
	warmedAt    []time.Time
	limits      []int
	invalidated int
	warmErr     error
	invErr      error
}

func (f *fakeCache) Warm(_ context.Context, now time.Time, limit int) error {
	f.warmedAt = append(f.warmedAt, now)
	f.limits = append(f.limits, limit)
	return f.warmErr
}

func (f *fakeCache) Invalidate(context.Context) error {
	f.invalidated++
	return f.invErr
}

func TestWarmLeaderboardJob(t *testing.T) {
	now := time.Date(2026, 3, 20, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		warmErr error
		wantErr bool
	}{
		{name: "success"},
		{name: "failure is wrapped", warmErr: errors.New("redis down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &fakeCache{warmErr: tt.warmErr}
			job := NewWarmLeaderboardJob(cache, timeutil.FixedClock(now), nil, WarmLeaderboardConfig{})

			assert.Nil(t, job.LastStats())
			err := job.Run(context.Background())

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.warmErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, []time.Time{now}, cache.warmedAt)
			assert.Equal(t, []int{10}, cache.limits)
			require.NotNil(t, job.LastStats())
			assert.Equal(t, now, job.LastStats().StartedAt)
			assert.Equal(t, "warm_leaderboard_cache", job.Name())
		})
	}
}

func TestDayRolloverJob(t *testing.T) {
	now := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)

	t.Run("invalidates then warms", func(t *testing.T) {
		cache := &fakeCache{}
		warm := NewWarmLeaderboardJob(cache, timeutil.FixedClock(now), nil, WarmLeaderboardConfig{PageSize: 25})
		job := NewDayRolloverJob(cache, warm, nil)

		require.NoError(t, job.Run(context.Background()))
		assert.Equal(t, 1, cache.invalidated)
		assert.Equal(t, []int{25}, cache.limits)
	})

	t.Run("invalidate failure skips warm", func(t *testing.T) {
		cache := &fakeCache{invErr: errors.New("READONLY")}
		warm := NewWarmLeaderboardJob(cache, timeutil.FixedClock(now), nil, WarmLeaderboardConfig{})
		job := NewDayRolloverJob(cache, warm, nil)

		assert.Error(t, job.Run(context.Background()))
		assert.Empty(t, cache.warmedAt)
	})

	t.Run("without warm job", func(t *testing.T) {
		cache := &fakeCache{}
		require.NoError(t, NewDayRolloverJob(cache, nil, nil).Run(context.Background()))
		assert.Equal(t, 1, cache.invalidated)
	})
}
