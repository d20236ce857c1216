package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.March, 20, 12, 0, 0, 0, time.UTC)

func testSettings() Settings {
	s := DefaultSettings()
	s.Clock = timeutil.FixedClock(now)
	return s
}

// award writes an XP transaction through the store as the ledger would.
func award(t *testing.T, store *memory.Store, userID shared.UserID, amount int, source progression.SourceType, at time.Time) {
	t.Helper()
	err := store.WithinUserTx(context.Background(), userID, func(ctx context.Context, tx progression.UserTx) error {
		agg, err := tx.LoadXP(ctx)
		if err != nil {
			return err
		}
		if _, err := agg.Apply(amount, at); err != nil {
			return err
		}
		rec := progression.NewXPTransaction(fmt.Sprintf("%s-%d", userID, at.UnixNano()), progression.Award{
			UserID: userID, Amount: amount, Reason: "test", SourceType: source,
		}, at)
		if err := tx.AppendTransaction(ctx, rec); err != nil {
			return err
		}
		return tx.SaveXP(ctx, agg)
	})
	require.NoError(t, err)
}

func TestGetUserXP(t *testing.T) {
	store := memory.NewStore(nil)
	h := NewGetUserXPHandler(store, testSettings())
	ctx := context.Background()

	t.Run("new user gets defaults", func(t *testing.T) {
		res, err := h.Handle(ctx, GetUserXPQuery{UserID: "ghost"})
		require.NoError(t, err)
		assert.True(t, res.IsNew)
		assert.Equal(t, 0, res.TotalXP)
		assert.Equal(t, 1, res.Level)
		assert.Equal(t, 100, res.XPToNextLevel)
		assert.NotNil(t, res.RecentTransactions)
		assert.Empty(t, res.RecentTransactions)
	})

	t.Run("recent transactions newest first and limited", func(t *testing.T) {
		for i := 0; i < 12; i++ {
			award(t, store, "u1", 10+i, progression.SourceChapter, now.Add(time.Duration(i)*time.Minute))
		}

		res, err := h.Handle(ctx, GetUserXPQuery{UserID: "u1"})
		require.NoError(t, err)
		assert.False(t, res.IsNew)
		assert.Equal(t, 12*10+66, res.TotalXP)
		assert.Equal(t, progression.LevelFromTotalXP(res.TotalXP), res.Level)
		require.Len(t, res.RecentTransactions, 10)
		assert.Equal(t, 21, res.RecentTransactions[0].Amount)
		assert.Equal(t, 12, res.RecentTransactions[9].Amount)

		short, err := h.Handle(ctx, GetUserXPQuery{UserID: "u1", RecentLimit: 3})
		require.NoError(t, err)
		assert.Len(t, short.RecentTransactions, 3)
	})

	t.Run("invalid user id", func(t *testing.T) {
		_, err := h.Handle(ctx, GetUserXPQuery{UserID: "  "})
		assert.ErrorIs(t, err, shared.ErrInvalidUserID)
	})
}

func TestGetUserStreakDefaults(t *testing.T) {
	store := memory.NewStore(nil)
	res, err := NewGetUserStreakHandler(store, testSettings()).Handle(context.Background(), GetUserStreakQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 0, res.CurrentStreak)
	assert.Equal(t, 0, res.LongestStreak)
	assert.Equal(t, progression.DefaultStreakFreezes, res.FreezesAvailable)
	assert.Equal(t, 0, res.FreezesUsed)
	assert.False(t, res.IsAlive)
}

func TestGetUserStreakActiveToday(t *testing.T) {
	store := memory.NewStore(nil)
	err := store.WithinUserTx(context.Background(), "u1", func(ctx context.Context, tx progression.UserTx) error {
		st := progression.NewUserStreak("u1", 3)
		st.RecordActivity(progression.DayOf(now.AddDate(0, 0, -1), time.UTC))
		st.RecordActivity(progression.DayOf(now, time.UTC))
		return tx.SaveStreak(ctx, st)
	})
	require.NoError(t, err)

	res, err := NewGetUserStreakHandler(store, testSettings()).Handle(context.Background(), GetUserStreakQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentStreak)
	assert.True(t, res.IsActiveToday)
	assert.True(t, res.IsAlive)
}

func TestGetLeaderboard(t *testing.T) {
	store := memory.NewStore(nil)
	award(t, store, "alice", 500, progression.SourceManual, now.AddDate(0, 0, -20))
	award(t, store, "bob", 120, progression.SourceChapter, now.AddDate(0, 0, -2))
	award(t, store, "carol", 120, progression.SourceQuiz, now.AddDate(0, 0, -1))
	award(t, store, "dave", 50, progression.SourceQuiz, now.AddDate(0, 0, -10))
	store.SetDisplayName("bob", "Bob B.")

	h := NewGetLeaderboardHandler(store, store, testSettings(), nil)
	ctx := context.Background()

	t.Run("all-time", func(t *testing.T) {
		res, err := h.Handle(ctx, GetLeaderboardQuery{Timeframe: "all-time"})
		require.NoError(t, err)
		require.Len(t, res.Entries, 4)
		assert.Equal(t, shared.UserID("alice"), res.Entries[0].UserID)
		assert.Equal(t, shared.Rank(1), res.Entries[0].Rank)
		assert.Equal(t, "Bob B.", res.Entries[1].DisplayName)
		assert.Equal(t, 4, res.TotalUsers)
		assert.False(t, res.HasMore)
		assert.Equal(t, DefaultLeaderboardLimit, res.Limit)
	})

	t.Run("weekly excludes old xp", func(t *testing.T) {
		res, err := h.Handle(ctx, GetLeaderboardQuery{Timeframe: "weekly"})
		require.NoError(t, err)
		require.Len(t, res.Entries, 2)
		assert.Equal(t, shared.UserID("bob"), res.Entries[0].UserID, "tie broken by user id")
		assert.Equal(t, shared.UserID("carol"), res.Entries[1].UserID)
		assert.Equal(t, 2, res.TotalUsers)
	})

	t.Run("monthly with offset", func(t *testing.T) {
		res, err := h.Handle(ctx, GetLeaderboardQuery{Timeframe: "monthly", Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, res.Entries, 2)
		assert.Equal(t, shared.Rank(2), res.Entries[0].Rank)
		assert.Equal(t, shared.UserID("bob"), res.Entries[0].UserID)
		assert.True(t, res.HasMore)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			q    GetLeaderboardQuery
			want error
		}{
			{"bad timeframe", GetLeaderboardQuery{Timeframe: "daily"}, shared.ErrInvalidTimeframe},
			{"negative limit", GetLeaderboardQuery{Limit: -1}, shared.ErrInvalidPage},
			{"negative offset", GetLeaderboardQuery{Offset: -5}, shared.ErrInvalidPage},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := h.Handle(ctx, tt.q)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("limit is capped", func(t *testing.T) {
		q := GetLeaderboardQuery{Limit: 1000}
		require.NoError(t, q.Validate())
		assert.Equal(t, MaxLeaderboardLimit, q.Limit)
	})
}

type failingDirectory struct{}

func (failingDirectory) DisplayNames(ctx context.Context, ids []shared.UserID) (map[shared.UserID]string, error) {
	return nil, errors.New("directory down")
}

func TestGetLeaderboardIgnoresDirectoryFailure(t *testing.T) {
	store := memory.NewStore(nil)
	award(t, store, "u1", 10, progression.SourceManual, now)

	res, err := NewGetLeaderboardHandler(store, failingDirectory{}, testSettings(), nil).
		Handle(context.Background(), GetLeaderboardQuery{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Empty(t, res.Entries[0].DisplayName)
}

func TestGetUserAchievements(t *testing.T) {
	store := memory.NewStore(progression.DefaultCatalog())
	ctx := context.Background()

	award(t, store, "u1", 900, progression.SourceManual, now)
	store.SetActivity("u1", memory.ActivityCounts{CompletedChapters: 4, PerfectQuizzes: 1})
	err := store.WithinUserTx(ctx, "u1", func(ctx context.Context, tx progression.UserTx) error {
		_, err := tx.InsertUserAchievement(ctx, progression.UserAchievement{UserID: "u1", AchievementID: "first-steps", UnlockedAt: now})
		return err
	})
	require.NoError(t, err)

	h := NewGetUserAchievementsHandler(store, store, store, store, store, testSettings())
	res, err := h.Handle(ctx, GetUserAchievementsQuery{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, res.Unlocked, 1)
	assert.Equal(t, "First Steps", res.Unlocked[0].Name)
	assert.Equal(t, len(progression.DefaultCatalog()), res.TotalAvailable)

	require.Len(t, res.Nearest, 5)
	// perfect-score: 1/1, xp-collector: 900/1000, getting-started: 4/5.
	assert.Equal(t, "perfect-score", res.Nearest[0].Achievement.ID)
	assert.Equal(t, shared.Percentage(100), res.Nearest[0].Percentage)
	assert.Equal(t, "xp-collector", res.Nearest[1].Achievement.ID)
	assert.Equal(t, 900, res.Nearest[1].CurrentProgress)
	assert.Equal(t, 1000, res.Nearest[1].RequiredProgress)
	assert.Equal(t, "getting-started", res.Nearest[2].Achievement.ID)
	for _, p := range res.Nearest {
		assert.NotEqual(t, "first-steps", p.Achievement.ID)
	}
}

func TestGetDailyGoal(t *testing.T) {
	store := memory.NewStore(nil)
	h := NewGetDailyGoalHandler(store, testSettings())
	ctx := context.Background()

	res, err := h.Handle(ctx, GetDailyGoalQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-20", res.Day)
	assert.Equal(t, progression.DefaultDailyGoalTargetXP, res.TargetXP)
	assert.Equal(t, shared.Percentage(0), res.Percentage)

	err = store.WithinUserTx(ctx, "u1", func(ctx context.Context, tx progression.UserTx) error {
		g := progression.NewDailyGoal("u1", progression.DayOf(now, time.UTC), 50)
		if _, err := g.Accumulate(30); err != nil {
			return err
		}
		return tx.SaveDailyGoal(ctx, g)
	})
	require.NoError(t, err)

	res, err = h.Handle(ctx, GetDailyGoalQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 30, res.CurrentXP)
	assert.Equal(t, shared.Percentage(60), res.Percentage)
	assert.Equal(t, 20, res.Remaining)
}

func TestGetActivityCalendar(t *testing.T) {
	store := memory.NewStore(nil)
	award(t, store, "u1", 10, progression.SourceChapter, now.AddDate(0, 0, -40))
	award(t, store, "u1", 20, progression.SourceChapter, now.AddDate(0, 0, -3))
	award(t, store, "u1", 5, progression.SourceQuiz, now.AddDate(0, 0, -3).Add(time.Hour))
	award(t, store, "u1", 7, progression.SourceQuiz, now)

	h := NewGetActivityCalendarHandler(store, testSettings())
	res, err := h.Handle(context.Background(), GetActivityCalendarQuery{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, res.Days, 2)
	assert.Equal(t, "2026-03-17", res.Days[0].Date)
	assert.Equal(t, 25, res.Days[0].TotalXP)
	assert.Len(t, res.Days[0].Activities, 2)
	assert.Equal(t, "2026-03-20", res.Days[1].Date)
	assert.Equal(t, "2026-02-19", res.From)
	assert.Equal(t, "2026-03-20", res.To)

	_, err = h.Handle(context.Background(), GetActivityCalendarQuery{UserID: "u1", Days: 1000})
	assert.True(t, shared.IsValidation(err))
}

func TestListAchievementsSorted(t *testing.T) {
	store := memory.NewStore(progression.DefaultCatalog())
	res, err := NewListAchievementsHandler(store).Handle(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Achievements, len(progression.DefaultCatalog()))
	for i := 1; i < len(res.Achievements); i++ {
		assert.LessOrEqual(t, res.Achievements[i-1].Category, res.Achievements[i].Category)
	}
}
