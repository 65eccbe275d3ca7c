package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habittracker/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HabitsStore struct {
	pool *pgxpool.Pool
}

func NewHabitsStore(pool *pgxpool.Pool) *HabitsStore {
	return &HabitsStore{pool: pool}
}

const habitColumns = `id, user_id, name, description, frequency, reminder_time, reminder_enabled, created_at`

func scanHabit(row pgx.Row) (domain.Habit, error) {
	var (
		h            domain.Habit
		idUUID       pgtype.UUID
		userUUID     pgtype.UUID
		reminderTime pgtype.Text
	)
	if err := row.Scan(&idUUID, &userUUID, &h.Name, &h.Description, &h.Frequency, &reminderTime, &h.ReminderEnabled, &h.CreatedAt); err != nil {
		return domain.Habit{}, err
	}
	h.ID = uuidOrEmpty(idUUID)
	h.UserID = uuidOrEmpty(userUUID)
	h.ReminderTime = textOrEmpty(reminderTime)
	return h, nil
}

func (s *HabitsStore) CreateHabit(ctx context.Context, h domain.Habit) (domain.Habit, error) {
	q := `
		INSERT INTO habits (user_id, name, description, frequency, reminder_time, reminder_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + habitColumns

	out, err := scanHabit(s.pool.QueryRow(ctx, q, h.UserID, h.Name, h.Description, h.Frequency, nullIfEmpty(h.ReminderTime), h.ReminderEnabled, h.CreatedAt))
	if err != nil {
		return domain.Habit{}, fmt.Errorf("create habit: %w", err)
	}
	return out, nil
}

func (s *HabitsStore) ListHabits(ctx context.Context, userID string) ([]domain.Habit, error) {
	q := `SELECT ` + habitColumns + ` FROM habits WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
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
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return out, nil
}

func (s *HabitsStore) GetHabit(ctx context.Context, userID, habitID string) (domain.Habit, error) {
	if !validID(habitID) {
		return domain.Habit{}, domain.ErrNotFound
	}
	q := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1 AND user_id = $2`

	h, err := scanHabit(s.pool.QueryRow(ctx, q, habitID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Habit{}, domain.ErrNotFound
		}
		return domain.Habit{}, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

func (s *HabitsStore) DeleteHabit(ctx context.Context, userID, habitID string) error {
	const q = `DELETE FROM habits WHERE id = $1 AND user_id = $2`
	if !validID(habitID) {
		return domain.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, q, habitID, userID)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *HabitsStore) ListTracking(ctx context.Context, userID string) ([]domain.TrackingEntry, error) {
	const q = `
		SELECT t.id, t.habit_id, t.date, t.completed
		FROM tracking t
		JOIN habits h ON h.id = t.habit_id
		WHERE h.user_id = $1
		ORDER BY t.date
	`
	return s.queryTracking(ctx, q, userID)
}

func (s *HabitsStore) ListTrackingForHabit(ctx context.Context, habitID string) ([]domain.TrackingEntry, error) {
	const q = `SELECT id, habit_id, date, completed FROM tracking WHERE habit_id = $1 ORDER BY date`
	return s.queryTracking(ctx, q, habitID)
}

func (s *HabitsStore) queryTracking(ctx context.Context, q string, arg string) ([]domain.TrackingEntry, error) {
	rows, err := s.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("list tracking: %w", err)
	}
	defer rows.Close()

	out := []domain.TrackingEntry{}
	for rows.Next() {
		var (
			e         domain.TrackingEntry
			idUUID    pgtype.UUID
			habitUUID pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &habitUUID, &e.Date, &e.Completed); err != nil {
			return nil, fmt.Errorf("scan tracking: %w", err)
		}
		e.ID = uuidOrEmpty(idUUID)
		e.HabitID = uuidOrEmpty(habitUUID)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tracking: %w", err)
	}
	return out, nil
}

func (s *HabitsStore) UpsertTracking(ctx context.Context, habitID, date string, completed bool) error {
	const q = `
		INSERT INTO tracking (habit_id, date, completed)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT tracking_habit_date_uq
		DO UPDATE SET completed = EXCLUDED.completed
	`
	if _, err := s.pool.Exec(ctx, q, habitID, date, completed); err != nil {
		return fmt.Errorf("upsert tracking: %w", err)
	}
	return nil
}

func (s *HabitsStore) ListSuggestions(ctx context.Context, habitID string) ([]domain.Suggestion, error) {
	const q = `SELECT id, habit_id, suggestion, created_at FROM suggestions WHERE habit_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, habitID)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	out := []domain.Suggestion{}
	for rows.Next() {
		var (
			sg        domain.Suggestion
			idUUID    pgtype.UUID
			habitUUID pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &habitUUID, &sg.Suggestion, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		sg.ID = uuidOrEmpty(idUUID)
		sg.HabitID = uuidOrEmpty(habitUUID)
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return out, nil
}

func (s *HabitsStore) CreateSuggestion(ctx context.Context, habitID, text string, when time.Time) (domain.Suggestion, error) {
	const q = `
		INSERT INTO suggestions (habit_id, suggestion, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	var idUUID pgtype.UUID
	if err := s.pool.QueryRow(ctx, q, habitID, text, when).Scan(&idUUID); err != nil {
		return domain.Suggestion{}, fmt.Errorf("create suggestion: %w", err)
	}
	return domain.Suggestion{ID: uuidOrEmpty(idUUID), HabitID: habitID, Suggestion: text, CreatedAt: when}, nil
}
