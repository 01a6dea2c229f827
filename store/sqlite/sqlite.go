/*
Package sqlite provides a SQLite-backed implementation of the achievement
storage interfaces.

PURPOSE:
  Implements achievement.TxStore, achievement.LedgerReader,
  achievement.MetricSource and achievement.BadgeMirror on one database.
  In production the same patterns apply to PostgreSQL with minor dialect
  differences.

KEY TABLES:
  achievements:      Catalog definitions, keyed by (organization_id, id)
  user_achievements: One row per unlock. Never updated, never deleted.
  gems_history:      Append-only ledger of gem credits
  user_stats:        Cached gem total and check-in streak (owned elsewhere)
  tasks, messages:   Source rows for the count metrics (owned elsewhere)
  user_badges:       Legacy badge mirror, schema-divergent on purpose

INDEXES:
  - idx_unique_user_achievement: enforces at most one unlock per
    (user, organization, achievement). A violation is reported as
    achievement.ErrAlreadyUnlocked.
  - idx_tasks_user_status, idx_messages_user: count metric hot paths
  - idx_gems_history_user: ledger reads and reconciliation

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and WAL mode so readers don't block.
  WithTx holds the write lock for the length of one unlock.

USAGE:
  store, err := sqlite.New("./data/achievements.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  ev := achievement.NewEvaluator(store, achievement.DefaultMetrics(store), logger)
  ev.Mirror = store

SEE ALSO:
  - achievement/store.go:        Interface definitions
  - achievement/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/coachwise/achievement-engine/achievement"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ achievement.TxStore      = (*Store)(nil)
	_ achievement.LedgerReader = (*Store)(nil)
	_ achievement.MetricSource = (*Store)(nil)
	_ achievement.BadgeMirror  = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Achievement catalog (administrative writes only)
	CREATE TABLE IF NOT EXISTS achievements (
		organization_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		reward_points INTEGER NOT NULL DEFAULT 0 CHECK (reward_points >= 0),
		metric_kind TEXT NOT NULL,
		threshold INTEGER NOT NULL DEFAULT 0 CHECK (threshold >= 0),
		max_progress INTEGER NOT NULL DEFAULT 1 CHECK (max_progress >= 1),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		auto_evaluate BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (organization_id, id),
		CHECK (metric_kind <> 'manual' OR auto_evaluate = FALSE)
	);

	CREATE INDEX IF NOT EXISTS idx_achievements_org_active
		ON achievements(organization_id, active, auto_evaluate);

	-- Unlocks (append-only)
	CREATE TABLE IF NOT EXISTS user_achievements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		unlocked_at TEXT NOT NULL
	);

	-- CRITICAL: at most one unlock per user per achievement
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_user_achievement
		ON user_achievements(user_id, organization_id, achievement_id);

	-- Gems history (append-only ledger)
	CREATE TABLE IF NOT EXISTS gems_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL DEFAULT '',
		amount INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_gems_history_user
		ON gems_history(user_id, organization_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_gems_history_source
		ON gems_history(source_type, source_id);

	-- Cached counters maintained outside the engine
	CREATE TABLE IF NOT EXISTS user_stats (
		user_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		gems INTEGER NOT NULL DEFAULT 0,
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		last_checkin_date TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, organization_id)
	);

	-- Metric sources
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user_status
		ON tasks(user_id, organization_id, status);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		organization_id TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_user
		ON messages(user_id, organization_id);

	-- Legacy badge table, kept for older clients
	CREATE TABLE IF NOT EXISTS user_badges (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		badge_key TEXT NOT NULL,
		title TEXT NOT NULL,
		earned_at TEXT NOT NULL,
		UNIQUE(user_id, badge_key)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// CATALOG (achievement.Catalog interface)
// =============================================================================

const definitionColumns = `
	organization_id, id, name, description, icon, reward_points, metric_kind,
	threshold, max_progress, active, auto_evaluate, sort_order`

// SaveDefinition inserts or replaces a catalog definition.
// This is the administrative path; the evaluator never calls it.
func (s *Store) SaveDefinition(ctx context.Context, def achievement.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO achievements (`+definitionColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			icon = excluded.icon,
			reward_points = excluded.reward_points,
			metric_kind = excluded.metric_kind,
			threshold = excluded.threshold,
			max_progress = excluded.max_progress,
			active = excluded.active,
			auto_evaluate = excluded.auto_evaluate,
			sort_order = excluded.sort_order,
			updated_at = excluded.updated_at
	`,
		def.OrganizationID, def.ID, def.Name, def.Description, def.Icon,
		def.RewardPoints, def.MetricKind, def.Threshold, def.EffectiveMaxProgress(),
		def.Active, def.AutoEvaluate, def.SortOrder, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save achievement %s: %w", def.ID, err)
	}
	return nil
}

// ListActiveAutoEvaluateDefinitions returns the evaluator's candidate set.
func (s *Store) ListActiveAutoEvaluateDefinitions(ctx context.Context, orgID achievement.OrganizationID) ([]achievement.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDefinitions(ctx, `
		SELECT `+definitionColumns+`
		FROM achievements
		WHERE organization_id = ? AND active = TRUE AND auto_evaluate = TRUE
		  AND metric_kind <> 'manual'
		ORDER BY sort_order ASC, id ASC
	`, orgID)
}

// ListDefinitions returns every active definition, manual included.
func (s *Store) ListDefinitions(ctx context.Context, orgID achievement.OrganizationID) ([]achievement.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDefinitions(ctx, `
		SELECT `+definitionColumns+`
		FROM achievements
		WHERE organization_id = ? AND active = TRUE
		ORDER BY sort_order ASC, id ASC
	`, orgID)
}

func (s *Store) queryDefinitions(ctx context.Context, query string, args ...any) ([]achievement.Definition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var defs []achievement.Definition
	for rows.Next() {
		var d achievement.Definition
		if err := rows.Scan(
			&d.OrganizationID, &d.ID, &d.Name, &d.Description, &d.Icon,
			&d.RewardPoints, &d.MetricKind, &d.Threshold, &d.MaxProgress,
			&d.Active, &d.AutoEvaluate, &d.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// =============================================================================
// UNLOCKS (achievement.UnlockReader interface)
// =============================================================================

// HasUnlock is the idempotence guard.
func (s *Store) HasUnlock(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID, id achievement.AchievementID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_achievements
		WHERE user_id = ? AND organization_id = ? AND achievement_id = ?
	`, userID, orgID, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}
	return count > 0, nil
}

// ListUnlocks returns a user's unlocks in an organization.
func (s *Store) ListUnlocks(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID) ([]achievement.Unlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, organization_id, achievement_id, progress, unlocked_at
		FROM user_achievements
		WHERE user_id = ? AND organization_id = ?
		ORDER BY unlocked_at ASC, achievement_id ASC
	`, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []achievement.Unlock
	for rows.Next() {
		var (
			u          achievement.Unlock
			unlockedAt string
		)
		if err := rows.Scan(&u.UserID, &u.OrganizationID, &u.AchievementID, &u.Progress, &unlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}
		u.UnlockedAt = parseTime(unlockedAt)
		unlocks = append(unlocks, u)
	}
	return unlocks, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (achievement.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(achievement.UnlockWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertUnlock(ctx context.Context, u achievement.Unlock) error {
	return insertUnlock(ctx, ts.tx, u)
}

func (ts *txStore) CreditCurrency(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID, amount int64) error {
	return creditCurrency(ctx, ts.tx, userID, orgID, amount)
}

func (ts *txStore) AppendLedger(ctx context.Context, e achievement.LedgerEntry) error {
	return appendLedger(ctx, ts.tx, e)
}

func insertUnlock(ctx context.Context, db execer, u achievement.Unlock) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_achievements (user_id, organization_id, achievement_id, progress, unlocked_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.UserID, u.OrganizationID, u.AchievementID, u.Progress, formatTime(u.UnlockedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return achievement.ErrAlreadyUnlocked
		}
		return fmt.Errorf("failed to insert unlock: %w", err)
	}
	return nil
}

// creditCurrency only ever adds to the cached total.
func creditCurrency(ctx context.Context, db execer, userID achievement.UserID, orgID achievement.OrganizationID, amount int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, organization_id, gems, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, organization_id) DO UPDATE SET
			gems = gems + excluded.gems,
			updated_at = excluded.updated_at
	`, userID, orgID, amount, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to credit gems: %w", err)
	}
	return nil
}

func appendLedger(ctx context.Context, db execer, e achievement.LedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO gems_history (id, user_id, organization_id, source_type, source_id, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.OrganizationID, e.SourceType, e.SourceID, e.Amount, e.Description, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append gems history: %w", err)
	}
	return nil
}

// =============================================================================
// LEDGER (achievement.LedgerReader interface)
// =============================================================================

// LedgerEntries returns a user's gems history, oldest first.
func (s *Store) LedgerEntries(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID) ([]achievement.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, organization_id, source_type, source_id, amount, description, created_at
		FROM gems_history
		WHERE user_id = ? AND organization_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query gems history: %w", err)
	}
	defer rows.Close()

	var entries []achievement.LedgerEntry
	for rows.Next() {
		var (
			e         achievement.LedgerEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.OrganizationID, &e.SourceType, &e.SourceID,
			&e.Amount, &e.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan gems history: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AwardGems credits gems from a non-achievement source (task reward,
// check-in bonus) with its ledger entry, atomically.
func (s *Store) AwardGems(ctx context.Context, e achievement.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := creditCurrency(ctx, sqlTx, e.UserID, e.OrganizationID, e.Amount); err != nil {
		return err
	}
	if err := appendLedger(ctx, sqlTx, e); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// LEGACY BADGE MIRROR (achievement.BadgeMirror interface)
// =============================================================================

// MirrorUnlock writes the legacy badge row. Re-mirroring is a no-op.
func (s *Store) MirrorUnlock(ctx context.Context, def achievement.Definition, u achievement.Unlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_badges (id, user_id, badge_key, title, earned_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), u.UserID, def.ID, def.Name, formatTime(u.UnlockedAt))
	if err != nil {
		return fmt.Errorf("failed to mirror badge: %w", err)
	}
	return nil
}

// CountBadges returns the number of legacy badge rows for a user.
func (s *Store) CountBadges(ctx context.Context, userID achievement.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_badges WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// =============================================================================
// RESET (dev only)
// =============================================================================

// Reset deletes all rows. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"user_badges", "gems_history", "user_achievements", "user_stats",
		"tasks", "messages", "achievements",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
