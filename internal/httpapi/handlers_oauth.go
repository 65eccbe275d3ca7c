package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"habittracker/internal/auth"
	"habittracker/internal/domain"
	"habittracker/internal/service"
)

const (
	oauthStateCookieName = "oauth_state"
	oauthStateTTL        = 10 * time.Minute
)

var providerTitles = map[string]string{
	auth.ProviderGoogle: "Google",
	auth.ProviderGitHub: "GitHub",
}

func providerTitle(name string) string {
	if t, ok := providerTitles[name]; ok {
		return t
	}
	return name
}

func (a *api) handleOAuthRedirect(w http.ResponseWriter, r *http.Request) {
	p, err := a.oauthSvc.Provider(chi.URLParam(r, "provider"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	state, err := auth.NewOAuthState()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateTTL.Seconds()),
	})
	http.Redirect(w, r, p.AuthURL(state), http.StatusFound)
}

func (a *api) clearOAuthState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// handleOAuthCallback answers failures in plain text: the browser lands here
// straight from the provider, not from the client app.
func (a *api) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	q := r.URL.Query()

	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	if _, err := a.oauthSvc.Provider(name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Unknown provider", http.StatusNotFound)
			return
		}
		a.logger.Error("oauth: provider unavailable", "provider", name, "err", err)
		http.Error(w, "Server configuration error", http.StatusInternalServerError)
		return
	}

	c, err := r.Cookie(oauthStateCookieName)
	a.clearOAuthState(w)
	if err != nil || c.Value == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(q.Get("state"))) != 1 {
		a.logger.Warn("oauth: state mismatch", "provider", name)
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}

	u, sess, err := a.oauthSvc.Complete(r.Context(), name, code)
	if err != nil {
		a.writeOAuthError(w, name, err)
		return
	}

	a.logger.Info("oauth: login", "provider", name, "user_id", u.ID)
	a.setSession(w, sess)
	http.Redirect(w, r, a.clientOrigin, http.StatusFound)
}

func (a *api) writeOAuthError(w http.ResponseWriter, provider string, err error) {
	var oerr *service.OAuthError
	if !errors.As(err, &oerr) {
		a.logger.Error("oauth: callback failed", "provider", provider, "err", err)
		if errors.Is(err, domain.ErrServerMisconfigured) {
			http.Error(w, "Server configuration error", http.StatusInternalServerError)
			return
		}
		http.Error(w, "OAuth error", http.StatusInternalServerError)
		return
	}

	a.logger.Warn("oauth: callback failed", "provider", provider, "step", string(oerr.Step), "rejected", oerr.Rejected(), "err", oerr.Err)
	if !oerr.Rejected() {
		http.Error(w, "OAuth error", http.StatusInternalServerError)
		return
	}

	switch oerr.Step {
	case service.OAuthStepExchange:
		http.Error(w, "Failed to exchange code for token", http.StatusBadRequest)
	case service.OAuthStepProfile:
		http.Error(w, "Failed to fetch user profile", http.StatusBadRequest)
	case service.OAuthStepEmail:
		http.Error(w, "Unable to determine email from "+providerTitle(provider)+" profile", http.StatusBadRequest)
	default:
		http.Error(w, "OAuth error", http.StatusInternalServerError)
	}
}
