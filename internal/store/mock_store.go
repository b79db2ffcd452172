// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject query failures and delays

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	messages []*Message              // insertion order; cursor = index+1
	users    map[string]*User        // keyed by email
	sessions map[string]*AuthSession // keyed by session ID

	listErr      error
	listHook     func(sessionID string)
	listAllCalls int
	listCalls    map[string]int
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:     make(map[string]*User),
		sessions:  make(map[string]*AuthSession),
		listCalls: make(map[string]int),
	}
}

// SetListError makes ListMessages and ListSessionMessages fail with err (nil clears it).
func (m *MockStore) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// SetListSessionHook installs fn to run at the start of every ListSessionMessages call,
// outside the store lock. Tests use it to hold a fetch in flight.
func (m *MockStore) SetListSessionHook(fn func(sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listHook = fn
}

// ListSessionCalls returns how many times ListSessionMessages ran for sessionID.
func (m *MockStore) ListSessionCalls(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCalls[sessionID]
}

// ListAllCalls returns how many times ListMessages ran.
func (m *MockStore) ListAllCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAllCalls
}

// SaveMessage stores a copy of msg.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	c := *msg
	m.messages = append(m.messages, &c)
	return nil
}

// ListMessages returns all messages ordered by CreatedAt (stable for ties).
func (m *MockStore) ListMessages(ctx context.Context) ([]*Message, error) {
	m.mu.Lock()
	m.listAllCalls++
	if m.listErr != nil {
		err := m.listErr
		m.mu.Unlock()
		return nil, err
	}
	result := m.copyMessagesLocked(func(*Message) bool { return true })
	m.mu.Unlock()

	return result, nil
}

// ListSessionMessages returns one session's messages ordered by CreatedAt.
func (m *MockStore) ListSessionMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	m.mu.Lock()
	m.listCalls[sessionID]++
	hook := m.listHook
	m.mu.Unlock()

	if hook != nil {
		hook(sessionID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.copyMessagesLocked(func(msg *Message) bool { return msg.SessionID == sessionID }), nil
}

// LatestCursor returns the number of stored messages.
func (m *MockStore) LatestCursor(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.messages)), nil
}

// ListMessagesAfter returns messages in insertion order after cursor.
func (m *MockStore) ListMessagesAfter(ctx context.Context, cursor int64, limit int) ([]*Message, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = defaultChangeBatch
	}
	if cursor < 0 {
		cursor = 0
	}

	var result []*Message
	next := cursor
	for i := int(cursor); i < len(m.messages) && len(result) < limit; i++ {
		c := *m.messages[i]
		result = append(result, &c)
		next = int64(i + 1)
	}
	return result, next, nil
}

// CreateUser stores a user, rejecting duplicate emails.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.Email]; exists {
		return ErrEmailExists
	}
	u := *user
	m.users[u.Email] = &u
	return nil
}

// GetUserByEmail retrieves a user by email.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	result := *u
	return &result, nil
}

// CreateAuthSession stores an auth session.
func (m *MockStore) CreateAuthSession(ctx context.Context, session *AuthSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *session
	m.sessions[s.ID] = &s
	return nil
}

// GetAuthSession retrieves a non-expired auth session.
func (m *MockStore) GetAuthSession(ctx context.Context, id string) (*AuthSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, ErrNotFound
	}
	result := *s
	return &result, nil
}

// DeleteAuthSession removes an auth session.
func (m *MockStore) DeleteAuthSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) copyMessagesLocked(keep func(*Message) bool) []*Message {
	var result []*Message
	for _, msg := range m.messages {
		if keep(msg) {
			c := *msg
			result = append(result, &c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}
