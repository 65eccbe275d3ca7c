package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("not_found")
	ErrEmailTaken           = errors.New("email_taken")
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrAccountLocked        = errors.New("account_locked")
	ErrEmailNotVerified     = errors.New("email_not_verified")
	ErrTokenInvalid         = errors.New("token_invalid")
	ErrCSRF                 = errors.New("csrf")
	ErrServerMisconfigured  = errors.New("server_misconfigured")
	ErrProviderUnconfigured = errors.New("provider_unconfigured")
	ErrValidation           = errors.New("validation")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}
