// ABOUTME: Chat session orchestrator running a single event loop
// ABOUTME: Owns the directory, message feed, and composition state; everything else posts events

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/coven-chat/internal/compose"
	"github.com/2389/coven-chat/internal/directory"
	"github.com/2389/coven-chat/internal/feed"
	"github.com/2389/coven-chat/internal/identity"
	"github.com/2389/coven-chat/internal/store"
)

const (
	eventBufferSize        = 64
	notificationBufferSize = 32
)

// MessageQuerier is the read side of the backing store.
type MessageQuerier interface {
	directory.Fetcher
	feed.Fetcher
}

// State is a read-only copy of everything the presentation renders.
type State struct {
	CurrentSession       string
	Conversations        []directory.Conversation
	ConversationsLoading bool
	Messages             []store.Message
	MessagesLoading      bool
	Input                string
	Sending              bool
}

// Events handled by the loop. Results from the components' own goroutines
// arrive as directory.Loaded, feed.FetchCompleted, feed.PushReceived, and
// compose.SendSettled.
type (
	sessionSwitched   struct{ sessionID string }
	newConversation   struct{}
	inputChanged      struct{ text string }
	sendRequested     struct{}
	refreshRequested  struct{}
	snapshotRequested struct{ reply chan State }
)

// Option customizes a Session.
type Option func(*Session)

// WithUserID sets the user_id placeholder sent with every query.
func WithUserID(id string) Option {
	return func(s *Session) { s.userID = id }
}

// WithIDGenerator sets how session and request ids are minted.
func WithIDGenerator(g identity.Generator) Option {
	return func(s *Session) { s.newID = g.OrDefault() }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session coordinates the conversation list, the active conversation's
// messages, and the input. Public methods are safe from any goroutine; they
// post events that Run applies one at a time.
type Session struct {
	events        chan any
	done          chan struct{}
	notifications chan Notification
	changes       chan struct{}

	userID string
	newID  identity.Generator
	logger *slog.Logger

	// Owned by the loop goroutine.
	ctx                  context.Context
	directory            *directory.Directory
	feed                 *feed.Feed
	compose              *compose.Controller
	currentSession       string
	conversationsLoading bool
}

// New creates a session. Call Run to start it.
func New(messages MessageQuerier, subscriber feed.Subscriber, sender compose.Sender, opts ...Option) *Session {
	s := &Session{
		events:        make(chan any, eventBufferSize),
		done:          make(chan struct{}),
		notifications: make(chan Notification, notificationBufferSize),
		changes:       make(chan struct{}, 1),
		newID:         identity.NewID,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	base := s.logger
	s.logger = base.With("component", "chat")

	// Components tag their own records
	s.directory = directory.New(messages, base)
	s.feed = feed.New(messages, subscriber, s.post, base)
	s.compose = compose.New(sender, s.post, s.userID, s.newID, base)
	return s
}

// post hands an event to the loop. It returns false once the loop has exited.
func (s *Session) post(ev any) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Run loads the conversation list and processes events until ctx is done.
// On exit the push subscription is released. Run must be called once.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer close(s.done)
	defer s.feed.Close()

	s.logger.Info("chat session started")
	s.loadConversations()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("chat session stopped")
			return nil
		case ev := <-s.events:
			if s.handle(ev) {
				s.signalChange()
			}
		}
	}
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Notifications delivers errors and notices for the user.
func (s *Session) Notifications() <-chan Notification {
	return s.notifications
}

// Changes receives a value whenever State may have changed. Signals
// coalesce, so a reader sees at most one pending signal.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// SwitchSession makes sessionID the active conversation.
func (s *Session) SwitchSession(sessionID string) {
	s.post(sessionSwitched{sessionID: sessionID})
}

// StartNewConversation clears the active conversation and the input. The
// next send mints a fresh session id.
func (s *Session) StartNewConversation() {
	s.post(newConversation{})
}

// SetInput replaces the input text.
func (s *Session) SetInput(text string) {
	s.post(inputChanged{text: text})
}

// SendCurrent sends the current input to the agent.
func (s *Session) SendCurrent() {
	s.post(sendRequested{})
}

// RefreshConversations reloads the conversation list.
func (s *Session) RefreshConversations() {
	s.post(refreshRequested{})
}

// Snapshot returns a copy of the current state, or the zero State once Run
// has returned. It blocks until Run is processing events.
func (s *Session) Snapshot() State {
	reply := make(chan State, 1)
	if !s.post(snapshotRequested{reply: reply}) {
		return State{}
	}
	select {
	case st := <-reply:
		return st
	case <-s.done:
		return State{}
	}
}

// handle applies one event and reports whether state may have changed.
func (s *Session) handle(ev any) bool {
	switch e := ev.(type) {
	case directory.Loaded:
		s.conversationsLoading = false
		if err := s.directory.Apply(e); err != nil {
			s.notify(&FetchError{Op: OpListConversations, Err: err})
		}
		return true

	case feed.FetchCompleted:
		applied, err := s.feed.ApplyFetch(e)
		if err != nil {
			s.notify(&FetchError{Op: OpLoadMessages, SessionID: e.SessionID, Err: err})
		}
		return applied

	case feed.PushReceived:
		return s.feed.ApplyPush(e)

	case compose.SendSettled:
		if err := s.compose.Settle(e); err != nil {
			s.notify(&SendError{RequestID: e.RequestID, SessionID: e.SessionID, Err: err})
		}
		return true

	case sessionSwitched:
		s.activate(e.sessionID)
		return true

	case newConversation:
		s.activate("")
		s.compose.SetInput("")
		return true

	case inputChanged:
		s.compose.SetInput(e.text)
		return true

	case sendRequested:
		return s.send()

	case refreshRequested:
		if s.conversationsLoading {
			return false
		}
		s.loadConversations()
		return true

	case snapshotRequested:
		e.reply <- s.state()
		return false

	default:
		s.logger.Warn("unknown event", "type", fmt.Sprintf("%T", ev))
		return false
	}
}

// activate makes sessionID current and restarts the feed for it.
func (s *Session) activate(sessionID string) {
	s.currentSession = sessionID
	s.feed.Activate(s.ctx, sessionID)
	s.logger.Debug("session activated", "session_id", sessionID)
}

// send runs the send sequence. With no active session a new id is minted
// and activated first, so the feed subscription exists before the agent
// writes anything. The minted session stays active even if the send fails.
func (s *Session) send() bool {
	if err := s.compose.Ready(); err != nil {
		if errors.Is(err, compose.ErrSendInFlight) {
			s.deliver(Notification{Kind: KindInfo, Title: "Still sending", Description: "Wait for the current message to finish."})
		}
		return false
	}

	if s.currentSession == "" {
		id := s.newID()
		s.logger.Info("starting new conversation", "session_id", id)
		s.activate(id)
	}

	if _, err := s.compose.Send(s.ctx, s.currentSession); err != nil {
		s.logger.Warn("send rejected", "error", err)
	}
	return true
}

func (s *Session) loadConversations() {
	s.conversationsLoading = true
	ctx := s.ctx
	go func() {
		s.post(s.directory.Load(ctx))
	}()
}

func (s *Session) state() State {
	return State{
		CurrentSession:       s.currentSession,
		Conversations:        s.directory.Conversations(),
		ConversationsLoading: s.conversationsLoading,
		Messages:             s.feed.Messages(),
		MessagesLoading:      s.feed.Loading(),
		Input:                s.compose.Input(),
		Sending:              s.compose.Sending(),
	}
}

// notify surfaces err as a notification. A full queue drops it.
func (s *Session) notify(err error) {
	n := NotificationFor(err)
	s.logger.Warn("notifying user", "title", n.Title, "error", err)
	s.deliver(n)
}

func (s *Session) deliver(n Notification) {
	select {
	case s.notifications <- n:
	default:
		s.logger.Warn("notification dropped, queue full", "title", n.Title)
	}
}

func (s *Session) signalChange() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
