package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const (
	CSRFCookieName = "csrf_secret"
	CSRFHeaderName = "X-CSRF-Token"
)

// Alternate header names accepted for the echoed token.
var csrfHeaderAliases = []string{CSRFHeaderName, "CSRF-Token", "X-XSRF-Token"}

func NewCSRFSecret() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read csrf secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CSRFToken derives a salted token from the cookie secret. Every call yields a
// different token; all of them verify against the same secret.
func CSRFToken(secret string) (string, error) {
	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read csrf salt: %w", err)
	}
	s := base64.RawURLEncoding.EncodeToString(salt)
	return s + "." + csrfDigest(secret, s), nil
}

func VerifyCSRFToken(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	salt, digest, ok := strings.Cut(token, ".")
	if !ok || salt == "" || digest == "" {
		return false
	}
	return hmac.Equal([]byte(digest), []byte(csrfDigest(secret, salt)))
}

func csrfDigest(secret, salt string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(salt))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CSRFTokenFromRequest returns the echoed token from the first known header.
func CSRFTokenFromRequest(r *http.Request) string {
	for _, h := range csrfHeaderAliases {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	return ""
}

// SetCSRFCookie stores the secret where page scripts can read it, unlike the
// session cookie.
func SetCSRFCookie(w http.ResponseWriter, secret string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    secret,
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
