// ABOUTME: Tests for MockStore behaviour that other packages' tests rely on
// ABOUTME: Covers ordering, cursor paging, injected errors and call counting

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_ListSessionMessagesSortedAndCounted(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	base := time.Now()

	saveTestMessage(t, m, "late", "s1", MessageTypeAI, "b", base.Add(time.Second))
	saveTestMessage(t, m, "early", "s1", MessageTypeHuman, "a", base)
	saveTestMessage(t, m, "other", "s2", MessageTypeHuman, "c", base)

	got, err := m.ListSessionMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, ids(got))
	assert.Equal(t, 1, m.ListSessionCalls("s1"))
	assert.Equal(t, 0, m.ListSessionCalls("s2"))
}

func TestMockStore_ListError(t *testing.T) {
	m := NewMockStore()
	boom := errors.New("boom")
	m.SetListError(boom)

	_, err := m.ListMessages(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = m.ListSessionMessages(context.Background(), "s1")
	assert.ErrorIs(t, err, boom)

	m.SetListError(nil)
	_, err = m.ListMessages(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, m.ListAllCalls())
}

func TestMockStore_ListMessagesAfter(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	saveTestMessage(t, m, "m1", "s1", MessageTypeHuman, "a", time.Now())
	cursor, err := m.LatestCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cursor)

	saveTestMessage(t, m, "m2", "s1", MessageTypeAI, "b", time.Now())

	page, next, err := m.ListMessagesAfter(ctx, cursor, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, ids(page))
	assert.Equal(t, int64(2), next)
}

func TestMockStore_ExpiredAuthSessionNotFound(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	require.NoError(t, m.CreateAuthSession(ctx, &AuthSession{ID: "old", UserID: "u", ExpiresAt: time.Now().Add(-time.Minute)}))
	_, err := m.GetAuthSession(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
}
