package service

import (
	"context"
	"time"

	"habittracker/internal/auth"
	"habittracker/internal/domain"
)

const (
	maxHabitNameLength  = 100
	maxSuggestionLength = 1000
	trackingDateLayout  = "2006-01-02"
	reminderTimeLayout  = "15:04"
)

type HabitService struct {
	Habits HabitsStore
	Now    func() time.Time
}

func (s *HabitService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

type NewHabit struct {
	Name            string
	Description     string
	Frequency       string
	ReminderTime    string
	ReminderEnabled bool
}

func (s *HabitService) ListHabits(ctx context.Context, userID string) ([]domain.Habit, error) {
	return s.Habits.ListHabits(ctx, userID)
}

func (s *HabitService) CreateHabit(ctx context.Context, userID string, in NewHabit) (domain.Habit, error) {
	name := auth.SanitizeText(in.Name)
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "required"
	} else if len([]rune(name)) > maxHabitNameLength {
		fields["name"] = "too long"
	}
	if in.ReminderTime != "" {
		if _, err := time.Parse(reminderTimeLayout, in.ReminderTime); err != nil {
			fields["reminderTime"] = "must be HH:MM"
		}
	}
	if len(fields) > 0 {
		return domain.Habit{}, domain.NewValidationError(fields)
	}

	frequency := auth.SanitizeText(in.Frequency)
	if frequency == "" {
		frequency = domain.DefaultHabitFrequency
	}

	return s.Habits.CreateHabit(ctx, domain.Habit{
		UserID:          userID,
		Name:            name,
		Description:     auth.SanitizeText(in.Description),
		Frequency:       frequency,
		ReminderTime:    in.ReminderTime,
		ReminderEnabled: in.ReminderEnabled,
		CreatedAt:       s.now(),
	})
}

func (s *HabitService) DeleteHabit(ctx context.Context, userID, habitID string) error {
	return s.Habits.DeleteHabit(ctx, userID, habitID)
}

// ListTracking returns every tracking entry across the user's habits.
func (s *HabitService) ListTracking(ctx context.Context, userID string) ([]domain.TrackingEntry, error) {
	return s.Habits.ListTracking(ctx, userID)
}

func (s *HabitService) ListTrackingForHabit(ctx context.Context, userID, habitID string) ([]domain.TrackingEntry, error) {
	if _, err := s.Habits.GetHabit(ctx, userID, habitID); err != nil {
		return nil, err
	}
	return s.Habits.ListTrackingForHabit(ctx, habitID)
}

// SetTracking records whether the habit was completed on date, replacing any
// earlier entry for that day.
func (s *HabitService) SetTracking(ctx context.Context, userID, habitID, date string, completed bool) error {
	if _, err := time.Parse(trackingDateLayout, date); err != nil {
		return domain.NewValidationError(map[string]string{"date": "must be YYYY-MM-DD"})
	}
	if err := s.ownedHabit(ctx, userID, habitID); err != nil {
		return err
	}
	return s.Habits.UpsertTracking(ctx, habitID, date, completed)
}

func (s *HabitService) ListSuggestions(ctx context.Context, userID, habitID string) ([]domain.Suggestion, error) {
	if _, err := s.Habits.GetHabit(ctx, userID, habitID); err != nil {
		return nil, err
	}
	return s.Habits.ListSuggestions(ctx, habitID)
}

func (s *HabitService) AddSuggestion(ctx context.Context, userID, habitID, text string) (domain.Suggestion, error) {
	text = auth.SanitizeText(text)
	if text == "" || len([]rune(text)) > maxSuggestionLength {
		return domain.Suggestion{}, domain.NewValidationError(map[string]string{"suggestion": "required, at most 1000 characters"})
	}
	if err := s.ownedHabit(ctx, userID, habitID); err != nil {
		return domain.Suggestion{}, err
	}
	return s.Habits.CreateSuggestion(ctx, habitID, text, s.now())
}

func (s *HabitService) ownedHabit(ctx context.Context, userID, habitID string) error {
	if habitID == "" {
		return domain.NewValidationError(map[string]string{"habitId": "required"})
	}
	_, err := s.Habits.GetHabit(ctx, userID, habitID)
	return err
}
