// ABOUTME: User account and auth session store methods
// ABOUTME: Supports email/password sign-up, sign-in, and token revocation on sign-out

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateUser creates a new user. Returns ErrEmailExists if the email is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Info("created user", "id", user.ID)
	return nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`

	var user User
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// CreateAuthSession records a signed-in session.
func (s *SQLiteStore) CreateAuthSession(ctx context.Context, session *AuthSession) error {
	query := `
		INSERT INTO auth_sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		formatTime(session.CreatedAt),
		formatTime(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("inserting auth session: %w", err)
	}

	s.logger.Debug("created auth session", "id", session.ID, "user_id", session.UserID)
	return nil
}

// GetAuthSession retrieves a valid (non-expired) auth session.
func (s *SQLiteStore) GetAuthSession(ctx context.Context, id string) (*AuthSession, error) {
	query := `
		SELECT id, user_id, created_at, expires_at
		FROM auth_sessions
		WHERE id = ? AND expires_at > ?
	`

	var session AuthSession
	var createdAtStr, expiresAtStr string

	err := s.db.QueryRowContext(ctx, query, id, formatTime(time.Now())).Scan(
		&session.ID,
		&session.UserID,
		&createdAtStr,
		&expiresAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying auth session: %w", err)
	}

	session.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	session.ExpiresAt, err = parseTime(expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	return &session, nil
}

// DeleteAuthSession deletes an auth session. Deleting a missing session is not an error.
func (s *SQLiteStore) DeleteAuthSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM auth_sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting auth session: %w", err)
	}
	return nil
}
