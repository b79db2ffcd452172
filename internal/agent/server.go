// ABOUTME: Reference agent endpoint that persists each query and an answer
// ABOUTME: Dedupes retried request ids and replies with the {success} envelope

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/coven-chat/internal/dedupe"
	"github.com/2389/coven-chat/internal/identity"
	"github.com/2389/coven-chat/internal/store"
)

const (
	// maxRequestBody bounds the JSON body a client may post.
	maxRequestBody = 1 << 20

	// DefaultDedupeTTL and DefaultDedupeSize bound the request id cache.
	DefaultDedupeTTL  = 10 * time.Minute
	DefaultDedupeSize = 10000

	// pendingMarker is the dedupe value while the first request is still being handled.
	pendingMarker = "pending"
	// failedMarker is the dedupe value for a request whose query was saved but never answered.
	failedMarker = "failed"
)

// errQueryNotSaved marks failures that happened before anything was persisted.
var errQueryNotSaved = errors.New("query not saved")

// MessageSaver persists messages. store.MessageStore satisfies it.
type MessageSaver interface {
	SaveMessage(ctx context.Context, msg *store.Message) error
}

// Responder produces the agent's answer to a query.
type Responder interface {
	Reply(ctx context.Context, sessionID, query string) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, sessionID, query string) (string, error)

// Reply calls f.
func (f ResponderFunc) Reply(ctx context.Context, sessionID, query string) (string, error) {
	return f(ctx, sessionID, query)
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithIDGenerator sets how message ids are minted.
func WithIDGenerator(g identity.Generator) HandlerOption {
	return func(h *Handler) { h.newID = g.OrDefault() }
}

// WithClock sets the time source for message timestamps.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// WithDedupe replaces the request id cache. The handler closes it on Close.
func WithDedupe(c *dedupe.Cache[string]) HandlerOption {
	return func(h *Handler) { h.seen = c }
}

// Handler serves the agent endpoint.
type Handler struct {
	messages  MessageSaver
	responder Responder
	seen      *dedupe.Cache[string] // request_id -> ai message id
	newID     identity.Generator
	now       func() time.Time
	logger    *slog.Logger
}

// NewHandler creates the reference endpoint. Pass nil logger for default.
func NewHandler(messages MessageSaver, responder Responder, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		messages:  messages,
		responder: responder,
		newID:     identity.NewID,
		now:       time.Now,
		logger:    logger.With("component", "agent_handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.seen == nil {
		h.seen = dedupe.New[string](DefaultDedupeTTL, DefaultDedupeSize)
	}
	return h
}

// Close releases the dedupe cache.
func (h *Handler) Close() {
	h.seen.Close()
}

// Routes mounts the endpoint at path along with a /health probe.
func (h *Handler) Routes(path string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// ServeHTTP handles one query.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeResponse(w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})
		return
	}

	req, err := parseRequest(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		h.writeResponse(w, http.StatusBadRequest, Response{Error: err.Error()})
		return
	}

	if prev, dup := h.seen.Claim(req.RequestID, pendingMarker); dup {
		if prev == failedMarker {
			h.logger.Info("duplicate of failed request", "request_id", req.RequestID, "session_id", req.SessionID)
			h.writeResponse(w, http.StatusOK, Response{Error: "agent could not answer"})
			return
		}
		h.logger.Info("duplicate request acknowledged",
			"request_id", req.RequestID,
			"session_id", req.SessionID,
			"reply_id", prev,
		)
		h.writeResponse(w, http.StatusOK, Response{Success: true})
		return
	}

	replyID, err := h.handle(r.Context(), req)
	if err != nil {
		// Once the query row exists a retry must not save it again
		if errors.Is(err, errQueryNotSaved) {
			h.seen.Forget(req.RequestID)
		} else {
			h.seen.Put(req.RequestID, failedMarker)
		}
		h.logger.Error("failed to handle query",
			"request_id", req.RequestID,
			"session_id", req.SessionID,
			"error", err,
		)
		h.writeResponse(w, http.StatusOK, Response{Error: "agent could not answer"})
		return
	}
	h.seen.Put(req.RequestID, replyID)

	h.writeResponse(w, http.StatusOK, Response{Success: true})
}

// handle persists the query and the answer, returning the answer's id.
func (h *Handler) handle(ctx context.Context, req *Request) (string, error) {
	human := &store.Message{
		ID:        h.newID(),
		CreatedAt: h.now(),
		SessionID: req.SessionID,
		Message:   store.MessageContent{Content: req.Query, Type: store.MessageTypeHuman},
	}
	if err := h.messages.SaveMessage(ctx, human); err != nil {
		return "", fmt.Errorf("saving query: %w: %w", errQueryNotSaved, err)
	}

	answer, err := h.responder.Reply(ctx, req.SessionID, req.Query)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}

	// The answer must sort after the query even on a coarse clock.
	at := h.now()
	if !at.After(human.CreatedAt) {
		at = human.CreatedAt.Add(time.Microsecond)
	}
	ai := &store.Message{
		ID:        h.newID(),
		CreatedAt: at,
		SessionID: req.SessionID,
		Message:   store.MessageContent{Content: answer, Type: store.MessageTypeAI},
	}
	if err := h.messages.SaveMessage(ctx, ai); err != nil {
		return "", fmt.Errorf("saving reply: %w", err)
	}

	h.logger.Info("answered query",
		"request_id", req.RequestID,
		"session_id", req.SessionID,
		"user_id", req.UserID,
		"reply_id", ai.ID,
	)
	return ai.ID, nil
}

func (h *Handler) writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// parseRequest decodes and validates a query body.
func parseRequest(r io.Reader) (*Request, error) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("query is required")
	}
	if req.SessionID == "" {
		return nil, errors.New("session_id is required")
	}
	if req.RequestID == "" {
		return nil, errors.New("request_id is required")
	}

	return &req, nil
}

// EchoResponder answers with the query wrapped in some markdown, or with a
// short markdown sample when the query asks for a list.
func EchoResponder() Responder {
	return ResponderFunc(func(_ context.Context, _ string, query string) (string, error) {
		return echoReply(query), nil
	})
}

func echoReply(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n\n> This is a blockquote.\n"
	}
	return fmt.Sprintf("Echo: **%s**\n\nI received your message and am responding with some *formatted* text.", input)
}
