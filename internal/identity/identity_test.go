// ABOUTME: Tests for identifier minting
// ABOUTME: Checks UUID format and uniqueness over many draws

package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_IsVersion4UUID(t *testing.T) {
	id := NewID()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		id := NewID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestGenerator_OrDefault(t *testing.T) {
	var g Generator
	assert.NotEmpty(t, g.OrDefault()())

	fixed := Generator(func() string { return "fixed" })
	assert.Equal(t, "fixed", fixed.OrDefault()())
}
