package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// Computed on every call. Ties on score are broken by user_id in byte order
// (COLLATE "C") so pagination is stable.
// ══════════════════════════════════════════════════════════════════════════════

const allTimePageSQL = `
	SELECT x.user_id, x.total_xp, x.total_xp, x.level, COALESCE(p.display_name, '')
	FROM user_xp x
	LEFT JOIN user_profiles p ON p.user_id = x.user_id
	WHERE x.updated_at IS NOT NULL
	ORDER BY x.total_xp DESC, x.user_id COLLATE "C" ASC
	LIMIT $1 OFFSET $2
`

const allTimeCountSQL = `
	SELECT COUNT(*) FROM user_xp WHERE updated_at IS NOT NULL
`

const windowPageSQL = `
	WITH window_totals AS (
		SELECT user_id, SUM(amount) AS score
		FROM xp_transactions
		WHERE created_at >= $1
		GROUP BY user_id
	)
	SELECT w.user_id, w.score, COALESCE(x.total_xp, 0), COALESCE(x.level, 1), COALESCE(p.display_name, '')
	FROM window_totals w
	LEFT JOIN user_xp x ON x.user_id = w.user_id
	LEFT JOIN user_profiles p ON p.user_id = w.user_id
	ORDER BY w.score DESC, w.user_id COLLATE "C" ASC
	LIMIT $2 OFFSET $3
`

// Distinct users over the same filtered set as the page.
const windowCountSQL = `
	SELECT COUNT(DISTINCT user_id) FROM xp_transactions WHERE created_at >= $1
`

// leaderboardQueries returns the page and count statements with their args.
func leaderboardQueries(q progression.LeaderboardQuery) (page string, pageArgs []any, count string, countArgs []any) {
	if q.Timeframe.IsWindowed() {
		return windowPageSQL, []any{q.Since, q.Limit, q.Offset}, windowCountSQL, []any{q.Since}
	}
	return allTimePageSQL, []any{q.Limit, q.Offset}, allTimeCountSQL, nil
}

// Leaderboard implements progression.LeaderboardReader.
func (s *Store) Leaderboard(ctx context.Context, q progression.LeaderboardQuery) (progression.LeaderboardPage, error) {
	pageSQL, pageArgs, countSQL, countArgs := leaderboardQueries(q)

	var total int
	if err := s.conn.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return progression.LeaderboardPage{}, fmt.Errorf("failed to count leaderboard: %w", err)
	}

	rows, err := s.conn.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return progression.LeaderboardPage{}, fmt.Errorf("failed to query leaderboard: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (progression.LeaderboardEntry, error) {
		var (
			e      progression.LeaderboardEntry
			userID string
		)
		err := row.Scan(&userID, &e.Score, &e.TotalXP, &e.Level, &e.DisplayName)
		e.UserID = shared.UserID(userID)
		return e, err
	})
	if err != nil {
		return progression.LeaderboardPage{}, fmt.Errorf("failed to scan leaderboard: %w", err)
	}
	if entries == nil {
		entries = []progression.LeaderboardEntry{}
	}
	progression.AssignRanks(entries, q.Offset)

	return progression.LeaderboardPage{
		Timeframe:  q.Timeframe,
		Entries:    entries,
		TotalUsers: total,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}, nil
}

var _ progression.LeaderboardReader = (*Store)(nil)
