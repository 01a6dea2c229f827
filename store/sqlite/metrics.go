package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coachwise/achievement-engine/achievement"
)

// =============================================================================
// METRIC SOURCE (achievement.MetricSource interface)
// =============================================================================

// TaskStatusCompleted is the status counted by the tasks_completed metric.
const TaskStatusCompleted = "completed"

func (s *Store) CompletedTaskCount(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID) (int64, error) {
	return s.count(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE user_id = ? AND organization_id = ? AND status = ?
	`, userID, orgID, TaskStatusCompleted)
}

func (s *Store) MessageCount(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID) (int64, error) {
	return s.count(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE user_id = ? AND organization_id = ?
	`, userID, orgID)
}

func (s *Store) CheckinStreak(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID) (int64, error) {
	return s.statsColumn(ctx, "current_streak", userID, orgID)
}

func (s *Store) CurrencyTotal(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID) (int64, error) {
	return s.statsColumn(ctx, "gems", userID, orgID)
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

// statsColumn reads one user_stats counter. A missing row is zero.
func (s *Store) statsColumn(ctx context.Context, column string, userID achievement.UserID, orgID achievement.OrganizationID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT "+column+" FROM user_stats WHERE user_id = ? AND organization_id = ?",
		userID, orgID,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", column, err)
	}
	return n, nil
}

// =============================================================================
// SOURCE ROWS (owned by the surrounding application)
// =============================================================================
// These writers stand in for the task, check-in and messaging features that
// maintain the counters. Demo scenarios and tests use them.

// Task is a coaching task assigned to a user.
type Task struct {
	ID             string
	UserID         achievement.UserID
	OrganizationID achievement.OrganizationID
	Title          string
	Status         string
	CompletedAt    *time.Time
	CreatedAt      time.Time
}

// SaveTask inserts or replaces a task.
func (s *Store) SaveTask(ctx context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = "pending"
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	var completedAt sql.NullString
	if t.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*t.CompletedAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, organization_id, title, status, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			completed_at = excluded.completed_at
	`, t.ID, t.UserID, t.OrganizationID, t.Title, t.Status, completedAt, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// Message is a chat message authored by a user.
type Message struct {
	ID             string
	UserID         achievement.UserID
	OrganizationID achievement.OrganizationID
	Body           string
	CreatedAt      time.Time
}

// SaveMessage records a message.
func (s *Store) SaveMessage(ctx context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, organization_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.OrganizationID, m.Body, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// RecordCheckin advances the check-in streak for the given day and returns
// the new streak. Same-day check-ins are no-ops; a gap resets to 1.
func (s *Store) RecordCheckin(ctx context.Context, userID achievement.UserID, orgID achievement.OrganizationID, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day = truncateDay(day)
	var (
		current, longest int64
		last             sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT current_streak, longest_streak, last_checkin_date
		FROM user_stats WHERE user_id = ? AND organization_id = ?
	`, userID, orgID).Scan(&current, &longest, &last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read streak: %w", err)
	}

	next := int64(1)
	if last.Valid {
		lastDay, _ := time.Parse(time.DateOnly, last.String)
		switch {
		case lastDay.Equal(day):
			return current, nil
		case lastDay.AddDate(0, 0, 1).Equal(day):
			next = current + 1
		case lastDay.After(day):
			return current, nil
		}
	}
	longest = max(longest, next)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, organization_id, current_streak, longest_streak, last_checkin_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, organization_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_checkin_date = excluded.last_checkin_date,
			updated_at = excluded.updated_at
	`, userID, orgID, next, longest, day.Format(time.DateOnly), formatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to record check-in: %w", err)
	}
	return next, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
