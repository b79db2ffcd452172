// ABOUTME: Tests for the composition controller
// ABOUTME: Covers empty input, the single in-flight guard, request shape, and settlement

package compose

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-chat/internal/agent"
)

type fakeSender struct {
	mu       sync.Mutex
	requests []*agent.Request
	err      error
	release  chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, req *agent.Request) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	release := f.release
	err := f.err
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	return err
}

func (f *fakeSender) Requests() []*agent.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*agent.Request(nil), f.requests...)
}

func newTestController(sender Sender) (*Controller, chan any) {
	events := make(chan any, 8)
	c := New(sender, func(ev any) bool {
		events <- ev
		return true
	}, "", func() string { return "req-1" }, nil)
	return c, events
}

func waitSettled(t *testing.T, events chan any) SendSettled {
	t.Helper()
	select {
	case ev := <-events:
		settled, ok := ev.(SendSettled)
		require.True(t, ok, "unexpected event %T", ev)
		return settled
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for SendSettled")
		return SendSettled{}
	}
}

func TestSend_EmptyInputIssuesNoRequest(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t "} {
		sender := &fakeSender{}
		c, _ := newTestController(sender)
		c.SetInput(input)

		_, err := c.Send(context.Background(), "sess-1")

		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.False(t, c.Sending())
		assert.Empty(t, sender.Requests())
	}
}

func TestSend_IssuesRequest(t *testing.T) {
	sender := &fakeSender{}
	c, events := newTestController(sender)
	c.SetInput("  what is up  ")

	reqID, err := c.Send(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", reqID)
	assert.True(t, c.Sending())

	settled := waitSettled(t, events)
	assert.Equal(t, SendSettled{RequestID: "req-1", SessionID: "sess-1"}, settled)

	require.Len(t, sender.Requests(), 1)
	assert.Equal(t, agent.Request{
		Query:     "  what is up  ",
		UserID:    DefaultUserID,
		RequestID: "req-1",
		SessionID: "sess-1",
	}, *sender.Requests()[0])
}

func TestSend_RejectsWhileInFlight(t *testing.T) {
	sender := &fakeSender{release: make(chan struct{})}
	c, events := newTestController(sender)
	c.SetInput("first")

	_, err := c.Send(context.Background(), "sess-1")
	require.NoError(t, err)

	c.SetInput("second")
	_, err = c.Send(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(sender.release)
	require.NoError(t, c.Settle(waitSettled(t, events)))
	assert.Len(t, sender.Requests(), 1)
}

func TestSend_RequiresSession(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newTestController(sender)
	c.SetInput("hi")

	_, err := c.Send(context.Background(), "")

	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, c.Sending())
}

func TestSettle_SuccessClearsInput(t *testing.T) {
	c, events := newTestController(&fakeSender{})
	c.SetInput("hello")
	_, err := c.Send(context.Background(), "sess-1")
	require.NoError(t, err)

	assert.NoError(t, c.Settle(waitSettled(t, events)))
	assert.False(t, c.Sending())
	assert.Equal(t, "", c.Input())
}

func TestSettle_FailureClearsInputAndReturnsError(t *testing.T) {
	boom := errors.New("agent said no")
	c, events := newTestController(&fakeSender{err: boom})
	c.SetInput("hello")
	_, err := c.Send(context.Background(), "sess-1")
	require.NoError(t, err)

	err = c.Settle(waitSettled(t, events))

	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Sending())
	assert.Equal(t, "", c.Input(), "typed text is not restored")
}

func TestSettle_IgnoresUnknownRequest(t *testing.T) {
	c, _ := newTestController(&fakeSender{})
	c.SetInput("draft")

	err := c.Settle(SendSettled{RequestID: "other", Err: errors.New("x")})

	assert.NoError(t, err)
	assert.Equal(t, "draft", c.Input())
}

func TestNew_ConfiguredUserID(t *testing.T) {
	sender := &fakeSender{}
	events := make(chan any, 1)
	c := New(sender, func(ev any) bool { events <- ev; return true }, "user-42", nil, nil)
	c.SetInput("hi")

	_, err := c.Send(context.Background(), "sess-1")
	require.NoError(t, err)
	<-events

	require.Len(t, sender.Requests(), 1)
	assert.Equal(t, "user-42", sender.Requests()[0].UserID)
	assert.NotEmpty(t, sender.Requests()[0].RequestID)
}
