// ABOUTME: Derives the conversation list from the full message history
// ABOUTME: One entry per session in first-seen order, titled by the first human message

// Package directory builds the sidebar's conversation list.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/2389/coven-chat/internal/store"
)

// TitleMaxLen is the maximum title length in characters.
const TitleMaxLen = 100

// Conversation is a derived, never persisted, summary of one session.
type Conversation struct {
	SessionID   string `json:"session_id"`
	Title       string `json:"title"`
	LastMessage string `json:"last_message"`
}

// Fetcher is the bulk history query the directory needs.
type Fetcher interface {
	ListMessages(ctx context.Context) ([]*store.Message, error)
}

// Loaded is the outcome of one history fetch.
type Loaded struct {
	Conversations []Conversation
	Err           error
}

// Build derives conversations from history ordered by created_at ascending.
// last_message tracks the last message seen in scan order, so an out-of-order
// history yields the last scanned content rather than the newest.
func Build(history []*store.Message) []Conversation {
	index := make(map[string]int)
	titled := make(map[string]bool)
	var conversations []Conversation

	for _, msg := range history {
		content := msg.Message.Content

		i, seen := index[msg.SessionID]
		if !seen {
			i = len(conversations)
			index[msg.SessionID] = i
			conversations = append(conversations, Conversation{SessionID: msg.SessionID})
		}

		conv := &conversations[i]
		if msg.IsHuman() && !titled[msg.SessionID] {
			conv.Title = truncate(content, TitleMaxLen)
			titled[msg.SessionID] = true
		}
		conv.LastMessage = content
	}

	return conversations
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Directory holds the most recently loaded conversation list.
type Directory struct {
	fetcher       Fetcher
	logger        *slog.Logger
	conversations []Conversation
}

// New creates an empty directory. Pass nil logger for default.
func New(fetcher Fetcher, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		fetcher: fetcher,
		logger:  logger.With("component", "directory"),
	}
}

// Load fetches the full history and builds the list. It does not touch the
// directory's state, so it is safe to call from any goroutine; pass the
// result to Apply on the owning goroutine.
func (d *Directory) Load(ctx context.Context) Loaded {
	history, err := d.fetcher.ListMessages(ctx)
	if err != nil {
		return Loaded{Err: fmt.Errorf("fetching conversations: %w", err)}
	}
	return Loaded{Conversations: Build(history)}
}

// Apply installs a successful load. On failure the previous list is kept and
// the error is returned for the caller to surface.
func (d *Directory) Apply(ev Loaded) error {
	if ev.Err != nil {
		d.logger.Warn("conversation load failed", "error", ev.Err)
		return ev.Err
	}
	d.conversations = ev.Conversations
	d.logger.Debug("conversations loaded", "count", len(ev.Conversations))
	return nil
}

// Conversations returns a copy of the current list.
func (d *Directory) Conversations() []Conversation {
	return slices.Clone(d.conversations)
}
