package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"habittracker/internal/auth"
	"habittracker/internal/domain"
)

type authCtxKey int

const authUserKey authCtxKey = iota

// requireAuth resolves the session credential to a user. A cookie that does
// not lead to a user is cleared on the way out.
func (a *api) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessionCredential(r)

		u, err := a.authSvc.UserForSession(r.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) && fromCookie {
				auth.ClearSessionCookie(w, a.cookieSecure)
			}
			a.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), authUserKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionCredential prefers the session cookie and falls back to a bearer
// token.
func sessionCredential(r *http.Request) (string, bool) {
	if c, err := r.Cookie(auth.SessionCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token), false
	}
	return "", false
}

func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(authUserKey).(domain.User)
	return u, ok
}

// requireCSRF checks the double-submit pair on state-changing methods.
func (a *api) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		c, err := r.Cookie(auth.CSRFCookieName)
		if err != nil || !auth.VerifyCSRFToken(c.Value, auth.CSRFTokenFromRequest(r)) {
			a.logger.Warn("csrf check failed", "path", r.URL.Path)
			WriteDomainError(w, domain.ErrCSRF)
			return
		}
		next.ServeHTTP(w, r)
	})
}
