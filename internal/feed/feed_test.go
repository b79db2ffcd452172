// ABOUTME: Tests for the message feed's fetch/subscribe lifecycle
// ABOUTME: Covers switching, stale result guards, push ordering, and teardown

package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-chat/internal/changefeed"
	"github.com/2389/coven-chat/internal/store"
)

type harness struct {
	t      *testing.T
	db     *store.MockStore
	bus    *changefeed.Broadcaster
	events chan any
	feed   *Feed
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		db:     store.NewMockStore(),
		bus:    changefeed.NewBroadcaster(nil),
		events: make(chan any, 128),
	}
	h.feed = New(h.db, h.bus, func(ev any) bool {
		h.events <- ev
		return true
	}, nil)
	t.Cleanup(func() {
		h.feed.Close()
		h.bus.Close()
	})
	return h
}

func (h *harness) save(id, sessionID string, typ store.MessageType, at time.Time) *store.Message {
	h.t.Helper()
	m := &store.Message{ID: id, SessionID: sessionID, CreatedAt: at, Message: store.MessageContent{Content: id, Type: typ}}
	require.NoError(h.t, h.db.SaveMessage(context.Background(), m))
	return m
}

// next waits for one event and applies it as the owning loop would.
func (h *harness) next() any {
	h.t.Helper()
	select {
	case ev := <-h.events:
		switch e := ev.(type) {
		case FetchCompleted:
			_, _ = h.feed.ApplyFetch(e)
		case PushReceived:
			h.feed.ApplyPush(e)
		}
		return ev
	case <-time.After(time.Second):
		h.t.Fatal("timed out waiting for feed event")
		return nil
	}
}

// nextFetch applies events until a FetchCompleted arrives and returns it.
func (h *harness) nextFetch() FetchCompleted {
	h.t.Helper()
	for {
		if ev, ok := h.next().(FetchCompleted); ok {
			return ev
		}
	}
}

func messageIDs(msgs []store.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestFeed_ActivateFetchesSessionHistory(t *testing.T) {
	h := newHarness(t)
	base := time.Now()
	h.save("a1", "s1", store.MessageTypeHuman, base)
	h.save("b1", "s2", store.MessageTypeHuman, base)
	h.save("a2", "s1", store.MessageTypeAI, base.Add(time.Second))

	h.feed.Activate(t.Context(), "s1")
	assert.True(t, h.feed.Loading())

	h.nextFetch()

	assert.False(t, h.feed.Loading())
	assert.Equal(t, "s1", h.feed.SessionID())
	assert.Equal(t, []string{"a1", "a2"}, messageIDs(h.feed.Messages()))
	assert.Equal(t, 1, h.bus.SubscriberCount("s1"))
}

func TestFeed_PushAppendsInArrivalOrder(t *testing.T) {
	h := newHarness(t)
	h.feed.Activate(t.Context(), "s1")
	h.nextFetch()

	h.bus.Publish(&store.Message{ID: "p1", SessionID: "s1"})
	h.bus.Publish(&store.Message{ID: "p2", SessionID: "s1"})
	h.next()
	h.next()

	assert.Equal(t, []string{"p1", "p2"}, messageIDs(h.feed.Messages()))
}

func TestFeed_PushBeforeFetchIsAppendedAfterFetchedRows(t *testing.T) {
	h := newHarness(t)
	h.save("old", "s1", store.MessageTypeHuman, time.Now())

	release := make(chan struct{})
	h.db.SetListSessionHook(func(string) { <-release })

	h.feed.Activate(t.Context(), "s1")
	h.bus.Publish(&store.Message{ID: "early-push", SessionID: "s1"})
	_, isPush := h.next().(PushReceived)
	require.True(t, isPush)
	assert.Empty(t, h.feed.Messages(), "pushes are held until the fetch lands")

	close(release)
	h.nextFetch()

	assert.Equal(t, []string{"old", "early-push"}, messageIDs(h.feed.Messages()))
}

func TestFeed_DuplicateAtBoundaryIsKept(t *testing.T) {
	h := newHarness(t)
	m := h.save("m1", "s1", store.MessageTypeHuman, time.Now())

	h.feed.Activate(t.Context(), "s1")
	h.nextFetch()

	h.bus.Publish(m)
	h.next()

	assert.Equal(t, []string{"m1", "m1"}, messageIDs(h.feed.Messages()))
}

func TestFeed_SwitchBackAndForthKeepsOneSubscription(t *testing.T) {
	h := newHarness(t)
	base := time.Now()
	h.save("a1", "s1", store.MessageTypeHuman, base)
	h.save("b1", "s2", store.MessageTypeHuman, base)

	h.feed.Activate(t.Context(), "s1")
	assert.Equal(t, 1, h.bus.SubscriberCount(""))
	h.nextFetch()

	h.feed.Activate(t.Context(), "s2")
	assert.Equal(t, 1, h.bus.SubscriberCount(""))
	assert.Equal(t, 0, h.bus.SubscriberCount("s1"))
	h.nextFetch()
	h.bus.Publish(&store.Message{ID: "b2", SessionID: "s2"})
	h.next()
	assert.Equal(t, []string{"b1", "b2"}, messageIDs(h.feed.Messages()))

	h.feed.Activate(t.Context(), "s1")
	assert.Equal(t, 1, h.bus.SubscriberCount(""))
	assert.Equal(t, 1, h.bus.SubscriberCount("s1"))
	h.nextFetch()

	// A late s2 insert goes nowhere
	h.bus.Publish(&store.Message{ID: "b3", SessionID: "s2"})

	fresh, err := h.db.ListSessionMessages(context.Background(), "s1")
	require.NoError(t, err)
	want := make([]string, len(fresh))
	for i, m := range fresh {
		want[i] = m.ID
	}
	assert.Equal(t, want, messageIDs(h.feed.Messages()))

	select {
	case ev := <-h.events:
		t.Fatalf("unexpected event after switching away: %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFeed_StaleFetchIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.save("a1", "s1", store.MessageTypeHuman, time.Now())
	h.save("b1", "s2", store.MessageTypeHuman, time.Now())

	release := make(chan struct{})
	h.db.SetListSessionHook(func(sessionID string) {
		if sessionID == "s1" {
			<-release
		}
	})

	h.feed.Activate(t.Context(), "s1")
	h.feed.Activate(t.Context(), "s2")
	h.nextFetch()
	require.Equal(t, []string{"b1"}, messageIDs(h.feed.Messages()))

	close(release)
	stale := <-h.events
	applied, err := h.feed.ApplyFetch(stale.(FetchCompleted))

	assert.False(t, applied)
	assert.NoError(t, err)
	assert.Equal(t, []string{"b1"}, messageIDs(h.feed.Messages()))
}

func TestFeed_StaleFetchForSameSessionIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.feed.Activate(t.Context(), "s1")
	oldEpoch := h.feed.epoch
	h.feed.Activate(t.Context(), "s2")
	h.feed.Activate(t.Context(), "s1")

	applied, _ := h.feed.ApplyFetch(FetchCompleted{
		Epoch:     oldEpoch,
		SessionID: "s1",
		Messages:  []*store.Message{{ID: "ghost", SessionID: "s1"}},
	})

	assert.False(t, applied)
	assert.Empty(t, h.feed.Messages())
}

func TestFeed_PushForInactiveSessionIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.feed.Activate(t.Context(), "s1")
	h.nextFetch()
	oldEpoch := h.feed.epoch

	h.feed.Activate(t.Context(), "s2")
	h.nextFetch()

	ok := h.feed.ApplyPush(PushReceived{Epoch: oldEpoch, SessionID: "s1", Message: &store.Message{ID: "late", SessionID: "s1"}})

	assert.False(t, ok)
	assert.Empty(t, h.feed.Messages())
	assert.Equal(t, 0, h.bus.SubscriberCount("s1"))
}

func TestFeed_EmptySessionIsInert(t *testing.T) {
	h := newHarness(t)
	h.feed.Activate(t.Context(), "s1")
	h.nextFetch()

	h.feed.Activate(t.Context(), "")

	assert.Equal(t, "", h.feed.SessionID())
	assert.False(t, h.feed.Loading())
	assert.Empty(t, h.feed.Messages())
	assert.Equal(t, 0, h.bus.SubscriberCount(""))
	assert.Equal(t, 0, h.db.ListSessionCalls(""))
}

func TestFeed_FetchErrorLeavesFeedEmpty(t *testing.T) {
	h := newHarness(t)
	h.save("a1", "s1", store.MessageTypeHuman, time.Now())
	boom := errors.New("db down")
	h.db.SetListError(boom)

	h.feed.Activate(t.Context(), "s1")
	ev := <-h.events
	applied, err := h.feed.ApplyFetch(ev.(FetchCompleted))

	assert.True(t, applied)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, h.feed.Messages())

	// The subscription stays live after a failed fetch
	h.bus.Publish(&store.Message{ID: "p1", SessionID: "s1"})
	h.next()
	assert.Equal(t, []string{"p1"}, messageIDs(h.feed.Messages()))
}

func TestFeed_CloseReleasesSubscription(t *testing.T) {
	h := newHarness(t)
	h.feed.Activate(t.Context(), "s1")
	require.Equal(t, 1, h.bus.SubscriberCount("s1"))

	h.feed.Close()

	assert.Equal(t, 0, h.bus.SubscriberCount("s1"))
	assert.Equal(t, "", h.feed.SessionID())
}
