package httpapi

import (
	"net/http"

	"habittracker/internal/auth"
	"habittracker/internal/domain"
	"habittracker/internal/service"
)

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"emailVerified"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, EmailVerified: u.EmailVerified}
}

type userEnvelope struct {
	User userResponse `json:"user"`
}

func (a *api) setSession(w http.ResponseWriter, sess service.Session) {
	auth.SetSessionCookie(w, sess.Token, a.authSvc.Sessions.TTL(), a.cookieSecure)
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// handleCSRFToken reuses the caller's secret cookie when there is one, so
// tokens handed out earlier stay valid.
func (a *api) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	secret := ""
	if c, err := r.Cookie(auth.CSRFCookieName); err == nil {
		secret = c.Value
	}
	if secret == "" {
		s, err := auth.NewCSRFSecret()
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		secret = s
		auth.SetCSRFCookie(w, secret, a.cookieSecure)
	}

	token, err := auth.CSRFToken(secret)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, csrfResponse{CSRFToken: token})
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,useremail"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name"`
}

type registerResponse struct {
	User                           userResponse `json:"user"`
	EmailVerificationTokenPreview string       `json:"emailVerificationTokenPreview,omitempty"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	u, token, err := a.authSvc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	resp := registerResponse{User: toUserResponse(u)}
	if a.tokenPreviews {
		resp.EmailVerificationTokenPreview = token
	}
	WriteJSON(w, http.StatusOK, resp)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,useremail"`
	Password string `json:"password" validate:"required"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	u, sess, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.setSession(w, sess)
	WriteJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(u)})
}

// handleAuthLogout only drops the cookie; the signed credential itself stays
// valid until it expires.
func (a *api) handleAuthLogout(w http.ResponseWriter, _ *http.Request) {
	auth.ClearSessionCookie(w, a.cookieSecure)
	writeSuccess(w, http.StatusOK)
}

func (a *api) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	WriteJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(u)})
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

func (a *api) handleAuthVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	u, sess, err := a.authSvc.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.setSession(w, sess)
	WriteJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(u)})
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,useremail"`
}

type passwordResetRequestResponse struct {
	Success           bool   `json:"success"`
	ResetTokenPreview string `json:"resetTokenPreview,omitempty"`
}

// handlePasswordResetRequest answers the same way whether or not the address
// belongs to an account.
func (a *api) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	token, err := a.authSvc.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	resp := passwordResetRequestResponse{Success: true}
	if a.tokenPreviews {
		resp.ResetTokenPreview = token
	}
	WriteJSON(w, http.StatusOK, resp)
}

type passwordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (a *api) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirmRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.authSvc.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK)
}
