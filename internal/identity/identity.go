// ABOUTME: Identifier minting for conversations and outbound requests
// ABOUTME: Random UUIDs serve as both durable session ids and per-request correlation ids

// Package identity mints the opaque identifiers used by the chat client.
package identity

import "github.com/google/uuid"

// Generator produces a new identifier on every call.
type Generator func() string

// NewID returns a random (version 4) UUID string.
func NewID() string {
	return uuid.NewString()
}

// OrDefault returns g, or NewID when g is nil.
func (g Generator) OrDefault() Generator {
	if g == nil {
		return NewID
	}
	return g
}
