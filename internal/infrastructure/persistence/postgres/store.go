package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/retry"
	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store implements progression.Store and every read port on PostgreSQL.
type Store struct {
	conn    *Connection
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewStore creates a new Store. Transactions aborted by a deadlock or a
// serialization failure are replayed by the retrier.
func NewStore(conn *Connection, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		conn:    conn,
		retrier: retry.TransactionRetrier(IsTransient),
		logger:  logger,
	}
}

// WithinUserTx implements progression.Store.
//
// The user_xp row is created if missing and locked with SELECT ... FOR
// UPDATE before fn runs; a second transaction for the same user blocks on
// that lock until the first commits and then reads the committed totals.
func (s *Store) WithinUserTx(ctx context.Context, userID shared.UserID, fn func(ctx context.Context, tx progression.UserTx) error) error {
	attempt := 0
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.logger.DebugContext(ctx, "replaying user transaction",
				"user_id", userID,
				"attempt", attempt,
			)
		}

		return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if err := lockUser(ctx, tx, userID); err != nil {
				return err
			}
			return fn(ctx, &userTx{tx: tx, userID: userID})
		})
	})
	if IsTransient(err) {
		return fmt.Errorf("%w: %w", shared.ErrLedgerContended, err)
	}
	return err
}

func lockUser(ctx context.Context, tx pgx.Tx, userID shared.UserID) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO user_xp (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID.String()); err != nil {
		return fmt.Errorf("failed to ensure user row: %w", err)
	}

	var locked string
	if err := tx.QueryRow(ctx, `
		SELECT user_id FROM user_xp WHERE user_id = $1 FOR UPDATE
	`, userID.String()).Scan(&locked); err != nil {
		return fmt.Errorf("failed to lock user row: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER TRANSACTION
// ══════════════════════════════════════════════════════════════════════════════

type userTx struct {
	tx     pgx.Tx
	userID shared.UserID
}

func (t *userTx) LoadXP(ctx context.Context) (progression.UserXP, error) {
	xp := progression.UserXP{UserID: t.userID}
	var updatedAt *time.Time

	err := t.tx.QueryRow(ctx, `
		SELECT total_xp, level, current_level_xp, updated_at
		FROM user_xp
		WHERE user_id = $1
	`, t.userID.String()).Scan(&xp.TotalXP, &xp.Level, &xp.CurrentLevelXP, &updatedAt)
	if err != nil {
		return progression.UserXP{}, fmt.Errorf("failed to load xp: %w", err)
	}
	if updatedAt != nil {
		xp.UpdatedAt = *updatedAt
	}
	return xp, nil
}

func (t *userTx) SaveXP(ctx context.Context, xp progression.UserXP) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE user_xp
		SET total_xp = $2, level = $3, current_level_xp = $4, updated_at = $5
		WHERE user_id = $1
	`, t.userID.String(), xp.TotalXP, xp.Level, xp.CurrentLevelXP, xp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save xp: %w", err)
	}
	return nil
}

func (t *userTx) AppendTransaction(ctx context.Context, rec progression.XPTransaction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO xp_transactions (id, user_id, amount, reason, source_type, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, t.userID.String(), rec.Amount, rec.Reason, rec.SourceType.String(), rec.SourceID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (t *userTx) LoadStreak(ctx context.Context) (progression.UserStreak, bool, error) {
	st, err := scanStreak(t.tx.QueryRow(ctx, selectStreakSQL, t.userID.String()), t.userID)
	if IsNoRows(err) {
		return progression.UserStreak{}, false, nil
	}
	if err != nil {
		return progression.UserStreak{}, false, fmt.Errorf("failed to load streak: %w", err)
	}
	return st, true, nil
}

func (t *userTx) SaveStreak(ctx context.Context, st progression.UserStreak) error {
	var lastActivity *time.Time
	if st.HasActivity() {
		lastActivity = &st.LastActivityDate
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_streaks
		(user_id, current_streak, longest_streak, last_activity_date, freezes_available, freezes_used, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_activity_date = EXCLUDED.last_activity_date,
			freezes_available = EXCLUDED.freezes_available,
			freezes_used = EXCLUDED.freezes_used,
			updated_at = NOW()
	`, t.userID.String(), st.CurrentStreak, st.LongestStreak, lastActivity, st.FreezesAvailable, st.FreezesUsed)
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return nil
}

func (t *userTx) LoadDailyGoal(ctx context.Context, date time.Time) (progression.DailyGoal, bool, error) {
	g, err := scanDailyGoal(t.tx.QueryRow(ctx, selectDailyGoalSQL, t.userID.String(), date), t.userID)
	if IsNoRows(err) {
		return progression.DailyGoal{}, false, nil
	}
	if err != nil {
		return progression.DailyGoal{}, false, fmt.Errorf("failed to load daily goal: %w", err)
	}
	return g, true, nil
}

func (t *userTx) SaveDailyGoal(ctx context.Context, g progression.DailyGoal) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO daily_goals (user_id, date, target_xp, current_xp, is_completed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, date) DO UPDATE SET
			current_xp = EXCLUDED.current_xp,
			is_completed = daily_goals.is_completed OR EXCLUDED.is_completed
	`, t.userID.String(), g.Date, g.TargetXP, g.CurrentXP, g.IsCompleted)
	if err != nil {
		return fmt.Errorf("failed to save daily goal: %w", err)
	}
	return nil
}

func (t *userTx) UnlockedAchievementIDs(ctx context.Context) ([]string, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT achievement_id FROM user_achievements WHERE user_id = $1
	`, t.userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocked achievements: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan unlocked achievements: %w", err)
	}
	return ids, nil
}

func (t *userTx) InsertUserAchievement(ctx context.Context, ua progression.UserAchievement) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, t.userID.String(), ua.AchievementID, ua.UnlockedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, fmt.Errorf("%w: %s", shared.ErrAchievementNotFound, ua.AchievementID)
		}
		return false, fmt.Errorf("failed to insert user achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED SCANNERS
// ══════════════════════════════════════════════════════════════════════════════

const selectStreakSQL = `
	SELECT current_streak, longest_streak, last_activity_date, freezes_available, freezes_used
	FROM user_streaks
	WHERE user_id = $1
`

func scanStreak(row pgx.Row, userID shared.UserID) (progression.UserStreak, error) {
	st := progression.UserStreak{UserID: userID}
	var lastActivity *time.Time

	if err := row.Scan(&st.CurrentStreak, &st.LongestStreak, &lastActivity, &st.FreezesAvailable, &st.FreezesUsed); err != nil {
		return progression.UserStreak{}, err
	}
	if lastActivity != nil {
		st.LastActivityDate = dateOnly(*lastActivity)
	}
	return st, nil
}

const selectDailyGoalSQL = `
	SELECT date, target_xp, current_xp, is_completed
	FROM daily_goals
	WHERE user_id = $1 AND date = $2
`

func scanDailyGoal(row pgx.Row, userID shared.UserID) (progression.DailyGoal, error) {
	g := progression.DailyGoal{UserID: userID}
	if err := row.Scan(&g.Date, &g.TargetXP, &g.CurrentXP, &g.IsCompleted); err != nil {
		return progression.DailyGoal{}, err
	}
	g.Date = dateOnly(g.Date)
	return g, nil
}

// dateOnly normalizes a DATE column to the UTC-midnight calendar form.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var _ progression.Store = (*Store)(nil)
