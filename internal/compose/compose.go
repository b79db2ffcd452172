// ABOUTME: Input text and sending state for the active conversation
// ABOUTME: Issues one agent request per send and reconciles it when the request settles

// Package compose owns the text input and the single in-flight send.
package compose

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/2389/coven-chat/internal/agent"
	"github.com/2389/coven-chat/internal/identity"
)

// DefaultUserID is sent as user_id when none is configured.
const DefaultUserID = "NA"

var (
	// ErrEmptyInput is returned by Send when the input is blank.
	ErrEmptyInput = errors.New("input is empty")
	// ErrSendInFlight is returned by Send while a previous send is unsettled.
	ErrSendInFlight = errors.New("a message is already being sent")
	// ErrNoSession is returned by Send when called without a session id.
	ErrNoSession = errors.New("no active session")
)

// Sender delivers one query to the agent endpoint.
type Sender interface {
	Send(ctx context.Context, req *agent.Request) error
}

// Sink delivers an event to the goroutine that owns the Controller.
type Sink func(ev any) bool

// SendSettled reports the outcome of one request.
type SendSettled struct {
	RequestID string
	SessionID string
	Err       error
}

// Controller holds the composition state. Like feed.Feed it must only be
// used from its owning goroutine; the request itself runs elsewhere.
type Controller struct {
	sender Sender
	sink   Sink
	userID string
	newID  identity.Generator
	logger *slog.Logger

	input     string
	sending   bool
	requestID string
}

// New creates a controller. Empty userID falls back to DefaultUserID and a
// nil generator to identity.NewID. Pass nil logger for default.
func New(sender Sender, sink Sink, userID string, newID identity.Generator, logger *slog.Logger) *Controller {
	if userID == "" {
		userID = DefaultUserID
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sender: sender,
		sink:   sink,
		userID: userID,
		newID:  newID.OrDefault(),
		logger: logger.With("component", "compose"),
	}
}

// SetInput replaces the input text.
func (c *Controller) SetInput(text string) {
	c.input = text
}

// Input returns the current input text.
func (c *Controller) Input() string {
	return c.input
}

// Sending reports whether a request is in flight.
func (c *Controller) Sending() bool {
	return c.sending
}

// Ready reports whether Send would issue a request. Callers use it to
// decide whether a session must be minted first.
func (c *Controller) Ready() error {
	if strings.TrimSpace(c.input) == "" {
		return ErrEmptyInput
	}
	if c.sending {
		return ErrSendInFlight
	}
	return nil
}

// Send issues the current input as a query for sessionID and returns the
// request id. The outcome arrives later as a SendSettled event through the
// sink. The input is sent as typed; only the emptiness check trims it.
func (c *Controller) Send(ctx context.Context, sessionID string) (string, error) {
	if err := c.Ready(); err != nil {
		return "", err
	}
	if sessionID == "" {
		return "", ErrNoSession
	}

	c.sending = true
	c.requestID = c.newID()

	req := &agent.Request{
		Query:     c.input,
		UserID:    c.userID,
		RequestID: c.requestID,
		SessionID: sessionID,
	}

	c.logger.Debug("sending query", "request_id", req.RequestID, "session_id", sessionID)

	go func() {
		err := c.sender.Send(ctx, req)
		c.sink(SendSettled{RequestID: req.RequestID, SessionID: req.SessionID, Err: err})
	}()

	return req.RequestID, nil
}

// Settle applies a send outcome. Sending and the input are always cleared,
// so text typed before a failed send is not restored. It returns the send
// error, or nil on success. Settlements for another request are ignored.
func (c *Controller) Settle(ev SendSettled) error {
	if !c.sending || ev.RequestID != c.requestID {
		c.logger.Debug("ignoring unknown settlement", "request_id", ev.RequestID)
		return nil
	}

	c.sending = false
	c.requestID = ""
	c.input = ""

	if ev.Err != nil {
		c.logger.Warn("send failed", "request_id", ev.RequestID, "session_id", ev.SessionID, "error", ev.Err)
		return ev.Err
	}
	return nil
}
