package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"habittracker/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int) {
	WriteJSON(w, status, successResponse{Success: true})
}

// WriteDomainError maps err onto the error taxonomy. Messages never say which
// half of a credential was wrong.
func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{
			Code:    "validation_error",
			Message: "Invalid request",
			Fields:  verr.Fields,
		}})
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "Invalid request")
	case errors.Is(err, domain.ErrTokenInvalid):
		WriteError(w, http.StatusBadRequest, "validation_error", "Invalid or expired token")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "auth_error", "Invalid credentials")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "auth_error", "Not authenticated")
	case errors.Is(err, domain.ErrAccountLocked):
		WriteError(w, http.StatusLocked, "auth_error", "Account locked due to failed attempts")
	case errors.Is(err, domain.ErrEmailNotVerified):
		WriteError(w, http.StatusForbidden, "email_not_verified", "Email not verified")
	case errors.Is(err, domain.ErrCSRF):
		WriteError(w, http.StatusForbidden, "csrf_error", "Invalid CSRF token")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "Forbidden")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "conflict", "Email already in use")
	case errors.Is(err, domain.ErrServerMisconfigured), errors.Is(err, domain.ErrProviderUnconfigured):
		WriteError(w, http.StatusInternalServerError, "server_error", "Server configuration error")
	default:
		WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
	}
}

// writeError is WriteDomainError plus a server-side log line for anything
// that ends up as a 500.
func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if isServerError(err) {
		fields := []any{"path", r.URL.Path, "err", err}
		if rid, ok := GetRequestID(r.Context()); ok {
			fields = append(fields, "request_id", rid)
		}
		a.logger.Error("request failed", fields...)
	}
	WriteDomainError(w, err)
}

func isServerError(err error) bool {
	for _, known := range []error{
		domain.ErrValidation,
		domain.ErrTokenInvalid,
		domain.ErrInvalidCredentials,
		domain.ErrUnauthorized,
		domain.ErrAccountLocked,
		domain.ErrEmailNotVerified,
		domain.ErrCSRF,
		domain.ErrForbidden,
		domain.ErrNotFound,
		domain.ErrEmailTaken,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
