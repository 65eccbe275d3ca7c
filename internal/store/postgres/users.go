package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habittracker/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userColumns = `id, email, name, email_verified, failed_login_attempts, lockout_until, last_login_at, created_at, updated_at, password_hash`

func scanUser(row pgx.Row) (domain.UserWithPassword, error) {
	var (
		u            domain.UserWithPassword
		idUUID       pgtype.UUID
		lockoutUntil pgtype.Timestamptz
		lastLoginTS  pgtype.Timestamptz
		passwordHash pgtype.Text
	)
	err := row.Scan(
		&idUUID,
		&u.Email,
		&u.Name,
		&u.EmailVerified,
		&u.FailedLoginAttempts,
		&lockoutUntil,
		&lastLoginTS,
		&u.CreatedAt,
		&u.UpdatedAt,
		&passwordHash,
	)
	if err != nil {
		return domain.UserWithPassword{}, err
	}
	u.ID = uuidOrEmpty(idUUID)
	u.LockoutUntil = timestamptzPtr(lockoutUntil)
	u.LastLoginAt = timestamptzPtr(lastLoginTS)
	u.PasswordHash = textOrEmpty(passwordHash)
	return u, nil
}

func (s *UsersStore) CreateUser(ctx context.Context, email, name, passwordHash string, emailVerified bool) (domain.User, error) {
	q := `
		INSERT INTO users (email, name, password_hash, email_verified)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, q, email, name, nullIfEmpty(passwordHash), emailVerified))
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return u.User, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if !validID(id) {
		return domain.User{}, domain.ErrNotFound
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u.User, nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// RecordFailedLogin bumps the failure counter in one statement and returns
// the new count. An expired lockout restarts the count at 1.
func (s *UsersStore) RecordFailedLogin(ctx context.Context, userID string, now time.Time, maxAttempts int, lockUntil time.Time) (int, error) {
	const q = `
		UPDATE users SET
			failed_login_attempts = CASE
				WHEN lockout_until IS NOT NULL AND lockout_until <= $2::timestamptz THEN 1
				ELSE failed_login_attempts + 1
			END,
			lockout_until = CASE
				WHEN (CASE
					WHEN lockout_until IS NOT NULL AND lockout_until <= $2::timestamptz THEN 1
					ELSE failed_login_attempts + 1
				END) >= $3::int THEN $4::timestamptz
				WHEN lockout_until IS NOT NULL AND lockout_until <= $2::timestamptz THEN NULL
				ELSE lockout_until
			END,
			updated_at = $2::timestamptz
		WHERE id = $1
		RETURNING failed_login_attempts
	`
	if !validID(userID) {
		return 0, domain.ErrNotFound
	}

	var attempts int
	err := s.pool.QueryRow(ctx, q, userID, now, maxAttempts, lockUntil).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("record failed login: %w", err)
	}
	return attempts, nil
}

func (s *UsersStore) RecordLoginSuccess(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET failed_login_attempts = 0, lockout_until = NULL, last_login_at = $2, updated_at = $2
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, userID, when); err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	return nil
}

func (s *UsersStore) MarkEmailVerified(ctx context.Context, userID string, when time.Time) error {
	const q = `UPDATE users SET email_verified = TRUE, updated_at = $2 WHERE id = $1`
	if !validID(userID) {
		return domain.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, q, userID, when)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string, when time.Time) error {
	const q = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if !validID(userID) {
		return domain.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, q, userID, passwordHash, when)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func mapUserWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_email_uq":
			return domain.ErrEmailTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("create user: %w", err)
}
