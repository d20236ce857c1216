package memory

import (
	"context"
	"sort"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER / STREAK / GOAL READERS
// ══════════════════════════════════════════════════════════════════════════════

// GetUserXP implements progression.LedgerReader.
func (s *Store) GetUserXP(ctx context.Context, userID shared.UserID) (progression.UserXP, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	xp, ok := s.xp[userID]
	if !ok {
		return progression.NewUserXP(userID), false, nil
	}
	return xp, true, nil
}

// RecentTransactions implements progression.LedgerReader.
func (s *Store) RecentTransactions(ctx context.Context, userID shared.UserID, limit int) ([]progression.XPTransaction, error) {
	s.mu.RLock()
	all := s.transactions[userID]
	out := make([]progression.XPTransaction, 0, min(len(all), max(limit, 0)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// TransactionsSince implements progression.LedgerReader.
func (s *Store) TransactionsSince(ctx context.Context, userID shared.UserID, since time.Time) ([]progression.XPTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]progression.XPTransaction, 0)
	for _, t := range s.transactions[userID] {
		if !t.CreatedAt.Before(since) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetStreak implements progression.StreakReader.
func (s *Store) GetStreak(ctx context.Context, userID shared.UserID) (progression.UserStreak, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.streaks[userID]
	return st, ok, nil
}

// GetDailyGoal implements progression.DailyGoalReader.
func (s *Store) GetDailyGoal(ctx context.Context, userID shared.UserID, date time.Time) (progression.DailyGoal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.goals[goalKey{userID: userID, date: date}]
	return g, ok, nil
}

// ListUserAchievements implements progression.AchievementReader.
func (s *Store) ListUserAchievements(ctx context.Context, userID shared.UserID) ([]progression.UserAchievement, error) {
	s.mu.RLock()
	out := make([]progression.UserAchievement, 0, len(s.unlocks[userID]))
	for id, at := range s.unlocks[userID] {
		out = append(out, progression.UserAchievement{UserID: userID, AchievementID: id, UnlockedAt: at})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].UnlockedAt.After(out[j].UnlockedAt)
		}
		return out[i].AchievementID < out[j].AchievementID
	})
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// Leaderboard implements progression.LeaderboardReader.
func (s *Store) Leaderboard(ctx context.Context, q progression.LeaderboardQuery) (progression.LeaderboardPage, error) {
	s.mu.RLock()
	entries := make([]progression.LeaderboardEntry, 0, len(s.xp))
	if q.Timeframe.IsWindowed() {
		for userID, txs := range s.transactions {
			sum, seen := 0, false
			for _, t := range txs {
				if !t.CreatedAt.Before(q.Since) {
					sum += t.Amount
					seen = true
				}
			}
			if !seen {
				continue
			}
			agg := s.xp[userID]
			entries = append(entries, progression.LeaderboardEntry{
				UserID:  userID,
				Score:   sum,
				TotalXP: agg.TotalXP,
				Level:   agg.Level,
			})
		}
	} else {
		for userID, agg := range s.xp {
			entries = append(entries, progression.LeaderboardEntry{
				UserID:  userID,
				Score:   agg.TotalXP,
				TotalXP: agg.TotalXP,
				Level:   agg.Level,
			})
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return progression.LessEntry(entries[i], entries[j]) })

	total := len(entries)
	start := min(max(q.Offset, 0), total)
	end := min(start+max(q.Limit, 0), total)
	pageEntries := append([]progression.LeaderboardEntry(nil), entries[start:end]...)
	progression.AssignRanks(pageEntries, q.Offset)

	return progression.LeaderboardPage{
		Timeframe:  q.Timeframe,
		Entries:    pageEntries,
		TotalUsers: total,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG / ACTIVITY / DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// ListActive implements progression.Catalog.
func (s *Store) ListActive(ctx context.Context) ([]progression.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]progression.Achievement, 0, len(s.catalog))
	for _, a := range s.catalog {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

// Get implements progression.Catalog.
func (s *Store) Get(ctx context.Context, id string) (progression.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.catalog {
		if a.ID == id {
			return a, nil
		}
	}
	return progression.Achievement{}, shared.ErrAchievementNotFound
}

// SetActivity replaces the external counters of a user.
func (s *Store) SetActivity(userID shared.UserID, counts ActivityCounts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[userID] = counts
}

// SetDisplayName records a display name for leaderboard rendering.
func (s *Store) SetDisplayName(userID shared.UserID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[userID] = name
}

func (s *Store) counts(userID shared.UserID) ActivityCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activity[userID]
}

// CompletedChapters implements progression.ActivityCounter.
func (s *Store) CompletedChapters(ctx context.Context, userID shared.UserID) (int, error) {
	return s.counts(userID).CompletedChapters, nil
}

// CompletedCourses implements progression.ActivityCounter.
func (s *Store) CompletedCourses(ctx context.Context, userID shared.UserID) (int, error) {
	return s.counts(userID).CompletedCourses, nil
}

// QuizAttempts implements progression.ActivityCounter.
func (s *Store) QuizAttempts(ctx context.Context, userID shared.UserID) (int, error) {
	return s.counts(userID).QuizAttempts, nil
}

// PerfectQuizzes implements progression.ActivityCounter.
func (s *Store) PerfectQuizzes(ctx context.Context, userID shared.UserID) (int, error) {
	return s.counts(userID).PerfectQuizzes, nil
}

// DisplayNames implements progression.UserDirectory.
func (s *Store) DisplayNames(ctx context.Context, userIDs []shared.UserID) (map[shared.UserID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[shared.UserID]string, len(userIDs))
	for _, id := range userIDs {
		if name, ok := s.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// Interface assertions.
var (
	_ progression.Store             = (*Store)(nil)
	_ progression.LedgerReader      = (*Store)(nil)
	_ progression.StreakReader      = (*Store)(nil)
	_ progression.DailyGoalReader   = (*Store)(nil)
	_ progression.AchievementReader = (*Store)(nil)
	_ progression.LeaderboardReader = (*Store)(nil)
	_ progression.Catalog           = (*Store)(nil)
	_ progression.ActivityCounter   = (*Store)(nil)
	_ progression.UserDirectory     = (*Store)(nil)
)
