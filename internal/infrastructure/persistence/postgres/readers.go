package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER READER
// ══════════════════════════════════════════════════════════════════════════════

// GetUserXP implements progression.LedgerReader. A row created only as a
// lock target (updated_at NULL) counts as a new user.
func (s *Store) GetUserXP(ctx context.Context, userID shared.UserID) (progression.UserXP, bool, error) {
	xp := progression.UserXP{UserID: userID}
	var updatedAt *time.Time

	err := s.conn.QueryRow(ctx, `
		SELECT total_xp, level, current_level_xp, updated_at
		FROM user_xp
		WHERE user_id = $1
	`, userID.String()).Scan(&xp.TotalXP, &xp.Level, &xp.CurrentLevelXP, &updatedAt)
	if IsNoRows(err) {
		return progression.NewUserXP(userID), false, nil
	}
	if err != nil {
		return progression.UserXP{}, false, fmt.Errorf("failed to get user xp: %w", err)
	}
	if updatedAt == nil {
		return progression.NewUserXP(userID), false, nil
	}

	xp.UpdatedAt = *updatedAt
	return xp, true, nil
}

// RecentTransactions implements progression.LedgerReader.
func (s *Store) RecentTransactions(ctx context.Context, userID shared.UserID, limit int) ([]progression.XPTransaction, error) {
	if limit <= 0 {
		return []progression.XPTransaction{}, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, user_id, amount, reason, source_type, source_id, created_at
		FROM xp_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	return collectTransactions(rows)
}

// TransactionsSince implements progression.LedgerReader.
func (s *Store) TransactionsSince(ctx context.Context, userID shared.UserID, since time.Time) ([]progression.XPTransaction, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, user_id, amount, reason, source_type, source_id, created_at
		FROM xp_transactions
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at ASC, id ASC
	`, userID.String(), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]progression.XPTransaction, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (progression.XPTransaction, error) {
		var (
			t      progression.XPTransaction
			userID string
			source string
		)
		err := row.Scan(&t.ID, &userID, &t.Amount, &t.Reason, &source, &t.SourceID, &t.CreatedAt)
		t.UserID = shared.UserID(userID)
		t.SourceType = progression.SourceType(source)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan transactions: %w", err)
	}
	if out == nil {
		out = []progression.XPTransaction{}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK / GOAL / ACHIEVEMENT READERS
// ══════════════════════════════════════════════════════════════════════════════

// GetStreak implements progression.StreakReader.
func (s *Store) GetStreak(ctx context.Context, userID shared.UserID) (progression.UserStreak, bool, error) {
	st, err := scanStreak(s.conn.QueryRow(ctx, selectStreakSQL, userID.String()), userID)
	if IsNoRows(err) {
		return progression.UserStreak{}, false, nil
	}
	if err != nil {
		return progression.UserStreak{}, false, fmt.Errorf("failed to get streak: %w", err)
	}
	return st, true, nil
}

// GetDailyGoal implements progression.DailyGoalReader.
func (s *Store) GetDailyGoal(ctx context.Context, userID shared.UserID, date time.Time) (progression.DailyGoal, bool, error) {
	g, err := scanDailyGoal(s.conn.QueryRow(ctx, selectDailyGoalSQL, userID.String(), date), userID)
	if IsNoRows(err) {
		return progression.DailyGoal{}, false, nil
	}
	if err != nil {
		return progression.DailyGoal{}, false, fmt.Errorf("failed to get daily goal: %w", err)
	}
	return g, true, nil
}

// ListUserAchievements implements progression.AchievementReader.
func (s *Store) ListUserAchievements(ctx context.Context, userID shared.UserID) ([]progression.UserAchievement, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT achievement_id, unlocked_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY unlocked_at DESC, achievement_id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query user achievements: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (progression.UserAchievement, error) {
		ua := progression.UserAchievement{UserID: userID}
		err := row.Scan(&ua.AchievementID, &ua.UnlockedAt)
		return ua, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan user achievements: %w", err)
	}
	if out == nil {
		out = []progression.UserAchievement{}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const selectAchievementSQL = `
	SELECT id, name, description, icon, category, condition_type, condition_count, xp_reward, is_active, created_at
	FROM achievements
`

func scanAchievement(row pgx.Row) (progression.Achievement, error) {
	var (
		a        progression.Achievement
		category string
		condType string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Icon, &category, &condType, &a.Condition.Count, &a.XPReward, &a.IsActive, &a.CreatedAt)
	a.Category = progression.Category(category)
	a.Condition.Type = progression.ConditionType(condType)
	return a, err
}

// ListActive implements progression.Catalog.
func (s *Store) ListActive(ctx context.Context) ([]progression.Achievement, error) {
	rows, err := s.conn.Query(ctx, selectAchievementSQL+`
		WHERE is_active
		ORDER BY category, condition_type, condition_count, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (progression.Achievement, error) {
		return scanAchievement(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan achievements: %w", err)
	}
	if out == nil {
		out = []progression.Achievement{}
	}
	return out, nil
}

// Get implements progression.Catalog.
func (s *Store) Get(ctx context.Context, id string) (progression.Achievement, error) {
	a, err := scanAchievement(s.conn.QueryRow(ctx, selectAchievementSQL+` WHERE id = $1`, id))
	if IsNoRows(err) {
		return progression.Achievement{}, fmt.Errorf("%w: %s", shared.ErrAchievementNotFound, id)
	}
	if err != nil {
		return progression.Achievement{}, fmt.Errorf("failed to get achievement: %w", err)
	}
	return a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY COUNTERS / DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) count(ctx context.Context, query string, userID shared.UserID) (int, error) {
	var n int
	if err := s.conn.QueryRow(ctx, query, userID.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activity: %w", err)
	}
	return n, nil
}

// CompletedChapters implements progression.ActivityCounter.
func (s *Store) CompletedChapters(ctx context.Context, userID shared.UserID) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM chapter_progress WHERE user_id = $1 AND completed_at IS NOT NULL`, userID)
}

// CompletedCourses implements progression.ActivityCounter.
func (s *Store) CompletedCourses(ctx context.Context, userID shared.UserID) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM course_completions WHERE user_id = $1`, userID)
}

// QuizAttempts implements progression.ActivityCounter.
func (s *Store) QuizAttempts(ctx context.Context, userID shared.UserID) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM quiz_attempts WHERE user_id = $1`, userID)
}

// perfectQuizzesSQL counts attempts scored at 100 percent.
const perfectQuizzesSQL = `SELECT COUNT(*) FROM quiz_attempts WHERE user_id = $1 AND score >= 100`

// PerfectQuizzes implements progression.ActivityCounter.
func (s *Store) PerfectQuizzes(ctx context.Context, userID shared.UserID) (int, error) {
	return s.count(ctx, perfectQuizzesSQL, userID)
}

// DisplayNames implements progression.UserDirectory.
func (s *Store) DisplayNames(ctx context.Context, userIDs []shared.UserID) (map[shared.UserID]string, error) {
	names := make(map[shared.UserID]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	rows, err := s.conn.Query(ctx, `
		SELECT user_id, display_name FROM user_profiles WHERE user_id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query display names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan display name: %w", err)
		}
		names[shared.UserID(id)] = name
	}
	return names, rows.Err()
}

var (
	_ progression.LedgerReader      = (*Store)(nil)
	_ progression.StreakReader      = (*Store)(nil)
	_ progression.DailyGoalReader   = (*Store)(nil)
	_ progression.AchievementReader = (*Store)(nil)
	_ progression.Catalog           = (*Store)(nil)
	_ progression.ActivityCounter   = (*Store)(nil)
	_ progression.UserDirectory     = (*Store)(nil)
)
