// ABOUTME: Email/password accounts for the chat front-end
// ABOUTME: Sign-up hashes with bcrypt, sign-in issues a token bound to a revocable auth session

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/coven-chat/internal/identity"
	"github.com/2389/coven-chat/internal/store"
)

// MinPasswordLength is the shortest password SignUp accepts.
const MinPasswordLength = 6

// DefaultSessionTTL is how long a sign-in lasts when none is configured.
const DefaultSessionTTL = 7 * 24 * time.Hour

// dummyHash keeps sign-in timing the same whether or not the email exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Account errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// Service implements sign-up, sign-in, sign-out, and token verification.
type Service struct {
	users  store.UserStore
	signer *Signer
	ttl    time.Duration
	cost   int
	newID  identity.Generator
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithSessionTTL sets how long issued tokens stay valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithBcryptCost sets the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator sets how user and auth session ids are minted.
func WithIDGenerator(g identity.Generator) Option {
	return func(s *Service) { s.newID = g.OrDefault() }
}

// NewService creates an account service. Pass nil logger for default.
func NewService(users store.UserStore, secret []byte, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		users:  users,
		signer: NewSigner(secret),
		ttl:    DefaultSessionTTL,
		cost:   bcrypt.DefaultCost,
		newID:  identity.NewID,
		now:    time.Now,
		logger: logger.With("component", "auth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// normalizeEmail lowercases and trims an address and checks its shape.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// SignUp creates an account and returns its user id.
func (s *Service) SignUp(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return user.ID, nil
}

// SignIn checks credentials and returns a token for a new auth session.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return "", ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	session := &store.AuthSession{
		ID:        s.newID(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.users.CreateAuthSession(ctx, session); err != nil {
		return "", fmt.Errorf("creating auth session: %w", err)
	}

	token, err := s.signer.Generate(user.ID, session.ID, now, s.ttl)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	s.logger.Info("user signed in", "user_id", user.ID, "session_id", session.ID)
	return token, nil
}

// Verify returns the user id for a token whose auth session is still live.
func (s *Service) Verify(ctx context.Context, token string) (string, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return "", err
	}

	session, err := s.users.GetAuthSession(ctx, claims.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: session revoked", ErrInvalidToken)
	}
	if err != nil {
		return "", fmt.Errorf("looking up auth session: %w", err)
	}
	if session.UserID != claims.UserID {
		return "", fmt.Errorf("%w: session does not belong to subject", ErrInvalidToken)
	}

	return claims.UserID, nil
}

// SignOut revokes the auth session behind token. A token that no longer
// verifies is already signed out, so only storage failures are errors.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.signer.Parse(token)
	if err != nil {
		s.logger.Debug("sign-out with unusable token", "error", err)
		return nil
	}

	if err := s.users.DeleteAuthSession(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("deleting auth session: %w", err)
	}

	s.logger.Info("user signed out", "user_id", claims.UserID, "session_id", claims.SessionID)
	return nil
}
