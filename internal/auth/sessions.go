package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionCookieName = "auth_token"
	DefaultSessionTTL = time.Hour
)

// ErrNoSigningSecret is returned when a session is issued or checked without
// a configured secret.
var ErrNoSigningSecret = errors.New("session signing secret not configured")

type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionIssuer mints and verifies the stateless HS256 session credential.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret []byte, ttl time.Duration) *SessionIssuer {
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionIssuer{secret: secretCopy, ttl: ttl, now: time.Now}
}

func (s *SessionIssuer) TTL() time.Duration { return s.ttl }

func (s *SessionIssuer) Configured() bool { return len(s.secret) > 0 }

func (s *SessionIssuer) Issue(userID, email string) (string, time.Time, error) {
	if !s.Configured() {
		return "", time.Time{}, ErrNoSigningSecret
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *SessionIssuer) Parse(token string) (*SessionClaims, error) {
	if !s.Configured() {
		return nil, ErrNoSigningSecret
	}
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("parse session: missing subject")
	}
	return claims, nil
}

func SetSessionCookie(w http.ResponseWriter, value string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
