// ABOUTME: Live ordered message list for the active conversation
// ABOUTME: One bulk fetch plus a push subscription per activation, torn down on every switch

package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/coven-chat/internal/store"
)

// Fetcher is the per-session history query.
type Fetcher interface {
	ListSessionMessages(ctx context.Context, sessionID string) ([]*store.Message, error)
}

// Subscriber opens and closes push subscriptions scoped to one session.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan *store.Message, string)
	Unsubscribe(sessionID, subID string)
}

// Sink delivers an event to the goroutine that owns the Feed. It returns
// false once the owner is no longer accepting events.
type Sink func(ev any) bool

// FetchCompleted carries the result of an activation's bulk fetch.
type FetchCompleted struct {
	Epoch     uint64
	SessionID string
	Messages  []*store.Message
	Err       error
}

// PushReceived carries one message delivered by an activation's subscription.
type PushReceived struct {
	Epoch     uint64
	SessionID string
	Message   *store.Message
}

// Feed holds the message list of the active session. All methods except the
// goroutines it starts must be called from the owning goroutine; results flow
// back through the Sink and are applied with ApplyFetch and ApplyPush.
type Feed struct {
	fetcher    Fetcher
	subscriber Subscriber
	sink       Sink
	logger     *slog.Logger

	sessionID string
	epoch     uint64
	messages  []*store.Message
	fetched   bool
	pending   []*store.Message // pushes that beat the fetch result

	subID  string
	cancel context.CancelFunc
}

// New creates an inactive feed. Pass nil logger for default.
func New(fetcher Fetcher, subscriber Subscriber, sink Sink, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		fetcher:    fetcher,
		subscriber: subscriber,
		sink:       sink,
		logger:     logger.With("component", "feed"),
	}
}

// Activate switches the feed to sessionID. The previous subscription is
// released before anything new is acquired and the list is cleared. An empty
// sessionID leaves the feed empty with no fetch and no subscription.
func (f *Feed) Activate(ctx context.Context, sessionID string) {
	f.teardown()

	f.epoch++
	f.sessionID = sessionID
	f.messages = nil
	f.pending = nil
	f.fetched = false

	if sessionID == "" {
		return
	}

	epoch := f.epoch
	subCtx, cancel := context.WithCancel(ctx)
	ch, subID := f.subscriber.Subscribe(subCtx, sessionID)
	f.subID = subID
	f.cancel = cancel

	f.logger.Debug("feed activated", "session_id", sessionID, "epoch", epoch, "sub_id", subID)

	go f.forward(subCtx, ch, epoch, sessionID)
	go f.fetch(ctx, epoch, sessionID)
}

// forward relays subscription deliveries to the owner until the
// subscription ends. It must not touch Feed state.
func (f *Feed) forward(ctx context.Context, ch <-chan *store.Message, epoch uint64, sessionID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				f.logger.Debug("subscription closed", "session_id", sessionID, "epoch", epoch)
				return
			}
			if !f.sink(PushReceived{Epoch: epoch, SessionID: sessionID, Message: msg}) {
				return
			}
		}
	}
}

// fetch runs the bulk query. It is not cancelled on switch; stale results
// are discarded by ApplyFetch.
func (f *Feed) fetch(ctx context.Context, epoch uint64, sessionID string) {
	msgs, err := f.fetcher.ListSessionMessages(ctx, sessionID)
	if err != nil {
		err = fmt.Errorf("fetching messages for session %s: %w", sessionID, err)
	}
	f.sink(FetchCompleted{Epoch: epoch, SessionID: sessionID, Messages: msgs, Err: err})
}

// current reports whether an event belongs to the live activation.
func (f *Feed) current(epoch uint64, sessionID string) bool {
	return f.sessionID != "" && epoch == f.epoch && sessionID == f.sessionID
}

// ApplyFetch installs a fetch result if it belongs to the live activation.
// Pushes that arrived first are appended after the fetched rows in arrival
// order. A failed fetch leaves only those pushes and returns the error.
func (f *Feed) ApplyFetch(ev FetchCompleted) (applied bool, err error) {
	if !f.current(ev.Epoch, ev.SessionID) {
		f.logger.Debug("discarding stale fetch", "session_id", ev.SessionID, "epoch", ev.Epoch)
		return false, nil
	}

	f.fetched = true
	if ev.Err != nil {
		f.logger.Warn("message fetch failed", "session_id", ev.SessionID, "error", ev.Err)
		f.messages = f.pending
		f.pending = nil
		return true, ev.Err
	}

	f.messages = append(append(make([]*store.Message, 0, len(ev.Messages)+len(f.pending)), ev.Messages...), f.pending...)
	f.pending = nil
	return true, nil
}

// ApplyPush appends a pushed message if it belongs to the live activation.
// No reordering and no de-duplication is done.
func (f *Feed) ApplyPush(ev PushReceived) bool {
	if !f.current(ev.Epoch, ev.SessionID) || ev.Message == nil {
		f.logger.Debug("discarding stale push", "session_id", ev.SessionID, "epoch", ev.Epoch)
		return false
	}

	if !f.fetched {
		f.pending = append(f.pending, ev.Message)
		return true
	}
	f.messages = append(f.messages, ev.Message)
	return true
}

// SessionID returns the active session, or "" when inactive.
func (f *Feed) SessionID() string {
	return f.sessionID
}

// Loading reports whether the active session's fetch is still outstanding.
func (f *Feed) Loading() bool {
	return f.sessionID != "" && !f.fetched
}

// Messages returns a copy of the current list.
func (f *Feed) Messages() []store.Message {
	out := make([]store.Message, len(f.messages))
	for i, m := range f.messages {
		out[i] = *m
	}
	return out
}

// Close releases the subscription and deactivates the feed.
func (f *Feed) Close() {
	f.teardown()
	f.epoch++
	f.sessionID = ""
	f.messages = nil
	f.pending = nil
}

func (f *Feed) teardown() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	f.subscriber.Unsubscribe(f.sessionID, f.subID)
	f.logger.Debug("subscription released", "session_id", f.sessionID, "sub_id", f.subID)
	f.cancel = nil
	f.subID = ""
}
