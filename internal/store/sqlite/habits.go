package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"habittracker/internal/domain"
)

type HabitsStore struct {
	db *sql.DB
}

func NewHabitsStore(db *sql.DB) *HabitsStore {
	return &HabitsStore{db: db}
}

const habitColumns = `id, user_id, name, description, frequency, reminder_time, reminder_enabled, created_at`

func scanHabit(row rowScanner) (domain.Habit, error) {
	var (
		h            domain.Habit
		reminderTime sql.NullString
	)
	if err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &h.Frequency, &reminderTime, &h.ReminderEnabled, &h.CreatedAt); err != nil {
		return domain.Habit{}, err
	}
	h.ReminderTime = reminderTime.String
	return h, nil
}

func (s *HabitsStore) CreateHabit(ctx context.Context, h domain.Habit) (domain.Habit, error) {
	const q = `
		INSERT INTO habits (id, user_id, name, description, frequency, reminder_time, reminder_enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	h.ID = newID()
	h.CreatedAt = utc(h.CreatedAt)
	_, err := s.db.ExecContext(ctx, q, h.ID, h.UserID, h.Name, h.Description, h.Frequency, nullIfEmpty(h.ReminderTime), h.ReminderEnabled, h.CreatedAt)
	if err != nil {
		return domain.Habit{}, fmt.Errorf("create habit: %w", err)
	}
	return h, nil
}

func (s *HabitsStore) ListHabits(ctx context.Context, userID string) ([]domain.Habit, error) {
	q := `SELECT ` + habitColumns + ` FROM habits WHERE user_id = ? ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	out := []domain.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate habits: %w", err)
	}
	return out, nil
}

// GetHabit returns the habit only when it belongs to userID.
func (s *HabitsStore) GetHabit(ctx context.Context, userID, habitID string) (domain.Habit, error) {
	q := `SELECT ` + habitColumns + ` FROM habits WHERE id = ? AND user_id = ?`

	h, err := scanHabit(s.db.QueryRowContext(ctx, q, habitID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Habit{}, domain.ErrNotFound
		}
		return domain.Habit{}, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

func (s *HabitsStore) DeleteHabit(ctx context.Context, userID, habitID string) error {
	const q = `DELETE FROM habits WHERE id = ? AND user_id = ?`
	res, err := s.db.ExecContext(ctx, q, habitID, userID)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return requireRow(res)
}

func (s *HabitsStore) ListTracking(ctx context.Context, userID string) ([]domain.TrackingEntry, error) {
	const q = `
		SELECT t.id, t.habit_id, t.date, t.completed
		FROM tracking t
		JOIN habits h ON h.id = t.habit_id
		WHERE h.user_id = ?
		ORDER BY t.date
	`
	return s.queryTracking(ctx, q, userID)
}

func (s *HabitsStore) ListTrackingForHabit(ctx context.Context, habitID string) ([]domain.TrackingEntry, error) {
	const q = `SELECT id, habit_id, date, completed FROM tracking WHERE habit_id = ? ORDER BY date`
	return s.queryTracking(ctx, q, habitID)
}

func (s *HabitsStore) queryTracking(ctx context.Context, q string, arg string) ([]domain.TrackingEntry, error) {
	rows, err := s.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("list tracking: %w", err)
	}
	defer rows.Close()

	out := []domain.TrackingEntry{}
	for rows.Next() {
		var e domain.TrackingEntry
		if err := rows.Scan(&e.ID, &e.HabitID, &e.Date, &e.Completed); err != nil {
			return nil, fmt.Errorf("scan tracking: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking: %w", err)
	}
	return out, nil
}

func (s *HabitsStore) UpsertTracking(ctx context.Context, habitID, date string, completed bool) error {
	const q = `
		INSERT INTO tracking (id, habit_id, date, completed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (habit_id, date) DO UPDATE SET completed = excluded.completed
	`
	if _, err := s.db.ExecContext(ctx, q, newID(), habitID, date, completed); err != nil {
		return fmt.Errorf("upsert tracking: %w", err)
	}
	return nil
}

func (s *HabitsStore) ListSuggestions(ctx context.Context, habitID string) ([]domain.Suggestion, error) {
	const q = `SELECT id, habit_id, suggestion, created_at FROM suggestions WHERE habit_id = ? ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, habitID)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	out := []domain.Suggestion{}
	for rows.Next() {
		var sg domain.Suggestion
		if err := rows.Scan(&sg.ID, &sg.HabitID, &sg.Suggestion, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suggestions: %w", err)
	}
	return out, nil
}

func (s *HabitsStore) CreateSuggestion(ctx context.Context, habitID, text string, when time.Time) (domain.Suggestion, error) {
	const q = `INSERT INTO suggestions (id, habit_id, suggestion, created_at) VALUES (?, ?, ?, ?)`
	sg := domain.Suggestion{ID: newID(), HabitID: habitID, Suggestion: text, CreatedAt: utc(when)}
	if _, err := s.db.ExecContext(ctx, q, sg.ID, sg.HabitID, sg.Suggestion, sg.CreatedAt); err != nil {
		return domain.Suggestion{}, fmt.Errorf("create suggestion: %w", err)
	}
	return sg, nil
}
