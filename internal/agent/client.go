// ABOUTME: HTTP client for the agent endpoint
// ABOUTME: Posts {query, user_id, request_id, session_id} and checks the success flag

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultURL is the endpoint used when none is configured.
const DefaultURL = "http://localhost:8001/api/pydantic-github-agent"

// DefaultTimeout bounds one request when none is configured.
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

// ErrAgentFailed is wrapped by every Send failure.
var ErrAgentFailed = errors.New("agent request failed")

// Request is the JSON body posted to the agent endpoint.
type Request struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
}

// Response is the JSON body the agent endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Client posts queries to one agent endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. Empty url and non-positive timeout fall back
// to DefaultURL and DefaultTimeout. Pass nil logger for default.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "agent_client"),
	}
}

// URL returns the endpoint this client posts to.
func (c *Client) URL() string {
	return c.url
}

// Send posts req and waits for the endpoint's verdict.
func (c *Client) Send(ctx context.Context, req *Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: sending request: %w", ErrAgentFailed, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("agent responded",
		"request_id", req.RequestID,
		"session_id", req.SessionID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: server returned status %d: %s", ErrAgentFailed, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var raw struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("%w: parsing response: %w", ErrAgentFailed, err)
	}
	if raw.Success == nil {
		return fmt.Errorf("%w: response has no success flag", ErrAgentFailed)
	}
	if !*raw.Success {
		if raw.Error != "" {
			return fmt.Errorf("%w: %s", ErrAgentFailed, raw.Error)
		}
		return fmt.Errorf("%w: agent reported failure", ErrAgentFailed)
	}

	return nil
}
