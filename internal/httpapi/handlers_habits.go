package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"habittracker/internal/domain"
	"habittracker/internal/service"
)

type habitResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Frequency       string    `json:"frequency"`
	ReminderTime    string    `json:"reminderTime,omitempty"`
	ReminderEnabled bool      `json:"reminderEnabled"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toHabitResponse(h domain.Habit) habitResponse {
	return habitResponse{
		ID:              h.ID,
		Name:            h.Name,
		Description:     h.Description,
		Frequency:       h.Frequency,
		ReminderTime:    h.ReminderTime,
		ReminderEnabled: h.ReminderEnabled,
		CreatedAt:       h.CreatedAt,
	}
}

type trackingResponse struct {
	ID        string `json:"id"`
	HabitID   string `json:"habitId"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

func toTrackingResponses(entries []domain.TrackingEntry) []trackingResponse {
	out := make([]trackingResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, trackingResponse{ID: e.ID, HabitID: e.HabitID, Date: e.Date, Completed: e.Completed})
	}
	return out
}

type suggestionResponse struct {
	ID         string    `json:"id"`
	HabitID    string    `json:"habitId"`
	Suggestion string    `json:"suggestion"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toSuggestionResponse(s domain.Suggestion) suggestionResponse {
	return suggestionResponse{ID: s.ID, HabitID: s.HabitID, Suggestion: s.Suggestion, CreatedAt: s.CreatedAt}
}

// mustUser is for handlers behind requireAuth.
func mustUser(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
	}
	return u, ok
}

func (a *api) handleHabitsList(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	habits, err := a.habitsSvc.ListHabits(r.Context(), u.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := make([]habitResponse, 0, len(habits))
	for _, h := range habits {
		out = append(out, toHabitResponse(h))
	}
	WriteJSON(w, http.StatusOK, out)
}

type createHabitRequest struct {
	Name            string `json:"name" validate:"required"`
	Description     string `json:"description"`
	Frequency       string `json:"frequency"`
	ReminderTime    string `json:"reminderTime"`
	ReminderEnabled bool   `json:"reminderEnabled"`
}

func (a *api) handleHabitsCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	var req createHabitRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	h, err := a.habitsSvc.CreateHabit(r.Context(), u.ID, service.NewHabit{
		Name:            req.Name,
		Description:     req.Description,
		Frequency:       req.Frequency,
		ReminderTime:    req.ReminderTime,
		ReminderEnabled: req.ReminderEnabled,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toHabitResponse(h))
}

func (a *api) handleHabitsDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	if err := a.habitsSvc.DeleteHabit(r.Context(), u.ID, chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK)
}

func (a *api) handleTrackingList(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	entries, err := a.habitsSvc.ListTracking(r.Context(), u.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTrackingResponses(entries))
}

func (a *api) handleTrackingForHabit(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	entries, err := a.habitsSvc.ListTrackingForHabit(r.Context(), u.ID, chi.URLParam(r, "habitId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTrackingResponses(entries))
}

type setTrackingRequest struct {
	HabitID   string `json:"habitId" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Completed bool   `json:"completed"`
}

func (a *api) handleTrackingSet(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	var req setTrackingRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.habitsSvc.SetTracking(r.Context(), u.ID, req.HabitID, req.Date, req.Completed); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK)
}

func (a *api) handleSuggestionsList(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	suggestions, err := a.habitsSvc.ListSuggestions(r.Context(), u.ID, chi.URLParam(r, "habitId"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := make([]suggestionResponse, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, toSuggestionResponse(s))
	}
	WriteJSON(w, http.StatusOK, out)
}

type createSuggestionRequest struct {
	HabitID    string `json:"habitId" validate:"required"`
	Suggestion string `json:"suggestion" validate:"required"`
}

func (a *api) handleSuggestionsCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}

	var req createSuggestionRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	s, err := a.habitsSvc.AddSuggestion(r.Context(), u.ID, req.HabitID, req.Suggestion)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toSuggestionResponse(s))
}
