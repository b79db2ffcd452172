// ABOUTME: Store interfaces and data types for coven-chat persistence
// ABOUTME: Defines Message, User, AuthSession and the interfaces the client consumes

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when trying to create a user with an existing email
var ErrEmailExists = errors.New("email already exists")

// MessageType identifies who produced a message
type MessageType string

const (
	MessageTypeHuman MessageType = "human"
	MessageTypeAI    MessageType = "ai"
)

// Valid reports whether t is one of the known message origins.
func (t MessageType) Valid() bool {
	return t == MessageTypeHuman || t == MessageTypeAI
}

// MessageContent is the nested payload of a persisted message row.
type MessageContent struct {
	Content string      `json:"content"`
	Type    MessageType `json:"type"`
}

// Message is a single persisted chat message. Immutable once saved.
type Message struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	SessionID string         `json:"session_id"`
	Message   MessageContent `json:"message"`
}

// IsHuman reports whether the message was typed by the user.
func (m *Message) IsHuman() bool {
	return m.Message.Type == MessageTypeHuman
}

// User is an account that can sign in to the chat front-end.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
}

// AuthSession is a signed-in session. Deleting it revokes the token bound to it.
type AuthSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// MessageStore defines the message queries the chat client and agents need
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *Message) error
	// ListMessages returns every message ordered by created_at ascending
	ListMessages(ctx context.Context) ([]*Message, error)
	// ListSessionMessages returns one session's messages ordered by created_at ascending
	ListSessionMessages(ctx context.Context, sessionID string) ([]*Message, error)
}

// ChangeLog exposes messages in insertion order for change notification.
// Cursors are opaque to callers and only ever increase.
type ChangeLog interface {
	LatestCursor(ctx context.Context) (int64, error)
	ListMessagesAfter(ctx context.Context, cursor int64, limit int) ([]*Message, int64, error)
}

// UserStore defines account and auth session persistence
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateAuthSession(ctx context.Context, session *AuthSession) error
	GetAuthSession(ctx context.Context, id string) (*AuthSession, error)
	DeleteAuthSession(ctx context.Context, id string) error
}

// Store is everything the SQLite backend provides
type Store interface {
	MessageStore
	ChangeLog
	UserStore

	// Close releases any resources held by the store
	Close() error
}
