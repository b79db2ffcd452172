// ABOUTME: Message persistence and queries for the SQLite store
// ABOUTME: Backs the conversation directory, the message feed, and the change-feed poller

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	// defaultChangeBatch bounds one ListMessagesAfter page when no limit is given
	defaultChangeBatch = 100
	maxChangeBatch     = 1000
)

// SaveMessage persists a message. CreatedAt defaults to now.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" || msg.SessionID == "" {
		return fmt.Errorf("message id and session_id are required")
	}
	if !msg.Message.Type.Valid() {
		return fmt.Errorf("invalid message type %q", msg.Message.Type)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO messages (id, created_at, session_id, content, type)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		formatTime(msg.CreatedAt),
		msg.SessionID,
		msg.Message.Content,
		string(msg.Message.Type),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("saved message",
		"message_id", msg.ID,
		"session_id", msg.SessionID,
		"type", msg.Message.Type,
	)
	return nil
}

// ListMessages returns every message ordered by created_at ascending
func (s *SQLiteStore) ListMessages(ctx context.Context) ([]*Message, error) {
	query := `
		SELECT id, created_at, session_id, content, type
		FROM messages
		ORDER BY created_at ASC, seq ASC
	`

	return s.queryMessages(ctx, query)
}

// ListSessionMessages returns one session's messages ordered by created_at ascending
func (s *SQLiteStore) ListSessionMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	query := `
		SELECT id, created_at, session_id, content, type
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at ASC, seq ASC
	`

	return s.queryMessages(ctx, query, sessionID)
}

// LatestCursor returns the cursor of the newest row, or 0 for an empty table.
func (s *SQLiteStore) LatestCursor(ctx context.Context) (int64, error) {
	var cursor sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM messages").Scan(&cursor); err != nil {
		return 0, fmt.Errorf("querying latest cursor: %w", err)
	}
	return cursor.Int64, nil
}

// ListMessagesAfter returns messages inserted after cursor, in insertion order,
// along with the cursor of the last returned row (or the input cursor if none).
func (s *SQLiteStore) ListMessagesAfter(ctx context.Context, cursor int64, limit int) ([]*Message, int64, error) {
	if limit <= 0 {
		limit = defaultChangeBatch
	}
	if limit > maxChangeBatch {
		limit = maxChangeBatch
	}

	query := `
		SELECT seq, id, created_at, session_id, content, type
		FROM messages
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, cursor, limit)
	if err != nil {
		return nil, cursor, fmt.Errorf("querying messages after cursor: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	next := cursor
	for rows.Next() {
		var seq int64
		msg, err := scanMessage(rows, &seq)
		if err != nil {
			return nil, cursor, err
		}
		messages = append(messages, msg)
		next = seq
	}
	if err := rows.Err(); err != nil {
		return nil, cursor, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, next, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows, nil)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

// scanMessage reads one row. When seq is non-nil the row must start with the seq column.
func scanMessage(rows *sql.Rows, seq *int64) (*Message, error) {
	msg := &Message{}
	var createdAtStr, msgType string

	dest := []any{&msg.ID, &createdAtStr, &msg.SessionID, &msg.Message.Content, &msgType}
	if seq != nil {
		dest = append([]any{seq}, dest...)
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	createdAt, err := parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	msg.CreatedAt = createdAt
	msg.Message.Type = MessageType(msgType)

	return msg, nil
}
