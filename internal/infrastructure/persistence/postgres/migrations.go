package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string

	// Seed runs after UpSQL inside the same transaction.
	Seed func(ctx context.Context, tx pgx.Tx) error

	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return NewMigratorWithMigrations(conn, GetMigrations())
}

// NewMigratorWithMigrations creates a migrator with custom migrations.
func NewMigratorWithMigrations(conn *Connection, migrations []Migration) *Migrator {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	return &Migrator{
		conn:       conn,
		migrations: sorted,
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var (
			version   int
			appliedAt time.Time
		)
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" && mig.Seed == nil {
			return fmt.Errorf("%w: migration %d is empty", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if mig.UpSQL != "" {
				if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
					return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
				}
			}
			if mig.Seed != nil {
				if err := mig.Seed(ctx, tx); err != nil {
					return fmt.Errorf("failed to seed migration %d: %w", mig.Version, err)
				}
			}

			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %w", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	lastVersion := 0
	for v := range applied {
		lastVersion = max(lastVersion, v)
	}
	if lastVersion == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), lastVersion)
		return err
	})
}

// Status returns the migration status.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_ledger",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_streaks_and_goals",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_achievements",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
			Seed:    seedCatalog(progression.DefaultCatalog()),
		},
		{
			Version: 4,
			Name:    "create_learning_activity",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

// seedCatalog inserts catalog rows that are not present yet.
func seedCatalog(catalog []progression.Achievement) func(ctx context.Context, tx pgx.Tx) error {
	return func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range catalog {
			batch.Queue(`
				INSERT INTO achievements
				(id, name, description, icon, category, condition_type, condition_count, xp_reward, is_active)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (id) DO NOTHING
			`,
				a.ID,
				a.Name,
				a.Description,
				a.Icon,
				string(a.Category),
				string(a.Condition.Type),
				a.Condition.Count,
				a.XPReward,
				a.IsActive,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for range catalog {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("failed to insert achievement: %w", err)
			}
		}
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: XP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Aggregate per learner. The row is the lock target for every per-user
-- transaction; updated_at stays NULL until the first award.
CREATE TABLE IF NOT EXISTS user_xp (
    user_id TEXT PRIMARY KEY,
    total_xp INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    current_level_xp INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_total_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_level CHECK (level >= 1)
);

CREATE INDEX IF NOT EXISTS idx_user_xp_total ON user_xp(total_xp DESC, user_id COLLATE "C")
    WHERE updated_at IS NOT NULL;

-- Append-only ledger.
CREATE TABLE IF NOT EXISTS xp_transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES user_xp(user_id) ON DELETE CASCADE,
    amount INTEGER NOT NULL,
    reason TEXT NOT NULL,
    source_type VARCHAR(20) NOT NULL,
    source_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_amount CHECK (amount > 0),
    CONSTRAINT valid_source_type CHECK (source_type IN ('chapter', 'quiz', 'assignment', 'achievement', 'manual'))
);

CREATE INDEX IF NOT EXISTS idx_xp_transactions_user_date ON xp_transactions(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_xp_transactions_created_at ON xp_transactions(created_at);

-- Display names supplied by the account service.
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id TEXT PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration001Down = `
DROP TABLE IF EXISTS user_profiles;
DROP TABLE IF EXISTS xp_transactions;
DROP TABLE IF EXISTS user_xp;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: STREAKS AND DAILY GOALS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS user_streaks (
    user_id TEXT PRIMARY KEY REFERENCES user_xp(user_id) ON DELETE CASCADE,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    freezes_available INTEGER NOT NULL DEFAULT 3,
    freezes_used INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_streak CHECK (current_streak >= 0 AND longest_streak >= current_streak),
    CONSTRAINT valid_freezes CHECK (freezes_available >= 0 AND freezes_used >= 0)
);

CREATE TABLE IF NOT EXISTS daily_goals (
    user_id TEXT NOT NULL REFERENCES user_xp(user_id) ON DELETE CASCADE,
    date DATE NOT NULL,
    target_xp INTEGER NOT NULL,
    current_xp INTEGER NOT NULL DEFAULT 0,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,

    PRIMARY KEY (user_id, date),
    CONSTRAINT valid_target CHECK (target_xp > 0),
    CONSTRAINT valid_current CHECK (current_xp >= 0)
);
`

const migration002Down = `
DROP TABLE IF EXISTS daily_goals;
DROP TABLE IF EXISTS user_streaks;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS achievements (
    id TEXT PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon VARCHAR(16) NOT NULL DEFAULT '',
    category VARCHAR(20) NOT NULL,
    condition_type VARCHAR(30) NOT NULL,
    condition_count INTEGER NOT NULL,
    xp_reward INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_condition_type CHECK (condition_type IN
        ('chapter_completion', 'course_completion', 'quiz_completion', 'perfect_quiz', 'streak', 'level', 'total_xp')),
    CONSTRAINT valid_condition_count CHECK (condition_count > 0),
    CONSTRAINT valid_reward CHECK (xp_reward >= 0)
);

-- Unique (user_id, achievement_id) is the backstop against duplicate unlocks.
CREATE TABLE IF NOT EXISTS user_achievements (
    user_id TEXT NOT NULL REFERENCES user_xp(user_id) ON DELETE CASCADE,
    achievement_id TEXT NOT NULL REFERENCES achievements(id),
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_user_achievements_user_date ON user_achievements(user_id, unlocked_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS user_achievements;
DROP TABLE IF EXISTS achievements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: LEARNING ACTIVITY
// Owned by the course collaborators; created here so a fresh database has
// the counters the achievement conditions read.
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS chapter_progress (
    user_id TEXT NOT NULL,
    chapter_id TEXT NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE,

    PRIMARY KEY (user_id, chapter_id)
);

CREATE TABLE IF NOT EXISTS course_completions (
    user_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    quiz_id TEXT NOT NULL,
    -- percentage, 100 is a perfect attempt
    score INTEGER NOT NULL CHECK (score >= 0),
    attempted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_quiz_attempts_user ON quiz_attempts(user_id);
`

const migration004Down = `
DROP TABLE IF EXISTS quiz_attempts;
DROP TABLE IF EXISTS course_completions;
DROP TABLE IF EXISTS chapter_progress;
`
