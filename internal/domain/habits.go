package domain

import "time"

const DefaultHabitFrequency = "daily"

type Habit struct {
	ID              string
	UserID          string
	Name            string
	Description     string
	Frequency       string
	ReminderTime    string
	ReminderEnabled bool
	CreatedAt       time.Time
}

// TrackingEntry records completion of a habit on one calendar day (YYYY-MM-DD).
type TrackingEntry struct {
	ID        string
	HabitID   string
	Date      string
	Completed bool
}

type Suggestion struct {
	ID         string
	HabitID    string
	Suggestion string
	CreatedAt  time.Time
}
