// ABOUTME: User-visible error taxonomy and the notifications derived from it
// ABOUTME: Every failure is recovered locally and surfaced as a Notification

package chat

import (
	"errors"
	"fmt"
)

// FetchError is a failed read of conversations or messages.
type FetchError struct {
	Op        string // "list conversations" or "load messages"
	SessionID string
	Err       error
}

func (e *FetchError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s (session %s): %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SendError is a failed agent request.
type SendError struct {
	RequestID string
	SessionID string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s: %v", e.RequestID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// AuthError is a failed sign-up, sign-in, or sign-out.
type AuthError struct {
	Op  string // "sign up", "sign in", "sign out"
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Fetch operations
const (
	OpListConversations = "list conversations"
	OpLoadMessages      = "load messages"
)

// Kind classifies a notification for presentation.
type Kind string

const (
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
)

// Notification is a transient message for the user.
type Notification struct {
	Kind        Kind
	Title       string
	Description string
}

// NotificationFor turns an error into the notification shown to the user.
func NotificationFor(err error) Notification {
	var fetchErr *FetchError
	var sendErr *SendError
	var authErr *AuthError

	switch {
	case errors.As(err, &fetchErr):
		title := "Error fetching messages"
		if fetchErr.Op == OpListConversations {
			title = "Error fetching conversations"
		}
		return Notification{Kind: KindError, Title: title, Description: fetchErr.Err.Error()}
	case errors.As(err, &sendErr):
		return Notification{Kind: KindError, Title: "Error", Description: sendErr.Err.Error()}
	case errors.As(err, &authErr):
		return Notification{Kind: KindError, Title: "Error", Description: authErr.Err.Error()}
	default:
		return Notification{Kind: KindError, Title: "Error", Description: err.Error()}
	}
}
