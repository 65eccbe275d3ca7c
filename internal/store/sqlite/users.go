package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"habittracker/internal/domain"
)

type UsersStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewUsersStore(db *sql.DB) *UsersStore {
	return &UsersStore{db: db, now: time.Now}
}

const userColumns = `id, email, name, email_verified, failed_login_attempts, lockout_until, last_login_at, created_at, updated_at, password_hash`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.UserWithPassword, error) {
	var (
		u            domain.UserWithPassword
		lockoutUntil sql.NullTime
		lastLogin    sql.NullTime
		passwordHash sql.NullString
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.EmailVerified,
		&u.FailedLoginAttempts,
		&lockoutUntil,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
		&passwordHash,
	)
	if err != nil {
		return domain.UserWithPassword{}, err
	}
	u.LockoutUntil = nullTimePtr(lockoutUntil)
	u.LastLoginAt = nullTimePtr(lastLogin)
	u.PasswordHash = passwordHash.String
	return u, nil
}

func (s *UsersStore) CreateUser(ctx context.Context, email, name, passwordHash string, emailVerified bool) (domain.User, error) {
	const q = `
		INSERT INTO users (id, email, name, password_hash, email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := utc(s.now())
	id := newID()
	_, err := s.db.ExecContext(ctx, q, id, email, name, nullIfEmpty(passwordHash), emailVerified, now, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return domain.User{
		ID:            id,
		Email:         email,
		Name:          name,
		EmailVerified: emailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	u, err := scanUser(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u.User, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	u, err := scanUser(s.db.QueryRowContext(ctx, q, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// RecordFailedLogin bumps the failure counter in one statement and returns
// the new count. A lockout that has already run out restarts the count; when
// the count reaches maxAttempts, lockout_until is set to lockUntil.
func (s *UsersStore) RecordFailedLogin(ctx context.Context, userID string, now time.Time, maxAttempts int, lockUntil time.Time) (int, error) {
	const q = `
		UPDATE users SET
			failed_login_attempts = CASE
				WHEN lockout_until IS NOT NULL AND lockout_until <= ?1 THEN 1
				ELSE failed_login_attempts + 1
			END,
			lockout_until = CASE
				WHEN (CASE
					WHEN lockout_until IS NOT NULL AND lockout_until <= ?1 THEN 1
					ELSE failed_login_attempts + 1
				END) >= ?2 THEN ?3
				WHEN lockout_until IS NOT NULL AND lockout_until <= ?1 THEN NULL
				ELSE lockout_until
			END,
			updated_at = ?1
		WHERE id = ?4
		RETURNING failed_login_attempts
	`

	var attempts int
	err := s.db.QueryRowContext(ctx, q, utc(now), maxAttempts, utc(lockUntil), userID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("record failed login: %w", err)
	}
	return attempts, nil
}

func (s *UsersStore) RecordLoginSuccess(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET failed_login_attempts = 0, lockout_until = NULL, last_login_at = ?, updated_at = ?
		WHERE id = ?
	`
	when = utc(when)
	if _, err := s.db.ExecContext(ctx, q, when, when, userID); err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	return nil
}

func (s *UsersStore) MarkEmailVerified(ctx context.Context, userID string, when time.Time) error {
	const q = `UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, utc(when), userID)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return requireRow(res)
}

func (s *UsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string, when time.Time) error {
	const q = `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, passwordHash, utc(when), userID)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
