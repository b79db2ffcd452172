// ABOUTME: Tests for conversation list derivation
// ABOUTME: Covers grouping, first-human titles, truncation, last_message, and load failures

package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-chat/internal/store"
)

func msg(sessionID string, typ store.MessageType, content string) *store.Message {
	return &store.Message{
		ID:        sessionID + ":" + content,
		SessionID: sessionID,
		CreatedAt: time.Now(),
		Message:   store.MessageContent{Content: content, Type: typ},
	}
}

func TestBuild_Empty(t *testing.T) {
	assert.Empty(t, Build(nil))
}

func TestBuild_LongFirstMessageTruncated(t *testing.T) {
	content := "Hello world, this is a long first message" + strings.Repeat(" and it keeps going", 10)
	require.Greater(t, len(content), TitleMaxLen)

	got := Build([]*store.Message{msg("s1", store.MessageTypeHuman, content)})

	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.Equal(t, content[:TitleMaxLen], got[0].Title)
	assert.Equal(t, content, got[0].LastMessage)
}

func TestBuild_TruncatesByRunes(t *testing.T) {
	content := strings.Repeat("é", TitleMaxLen+5)

	got := Build([]*store.Message{msg("s1", store.MessageTypeHuman, content)})

	require.Len(t, got, 1)
	assert.Equal(t, strings.Repeat("é", TitleMaxLen), got[0].Title)
}

func TestBuild_OneEntryPerSessionInFirstSeenOrder(t *testing.T) {
	history := []*store.Message{
		msg("s2", store.MessageTypeHuman, "b1"),
		msg("s1", store.MessageTypeHuman, "a1"),
		msg("s2", store.MessageTypeAI, "b2"),
		msg("s3", store.MessageTypeAI, "c1"),
		msg("s1", store.MessageTypeAI, "a2"),
	}

	got := Build(history)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"s2", "s1", "s3"}, []string{got[0].SessionID, got[1].SessionID, got[2].SessionID})
}

func TestBuild_TitleFromFirstHumanOnly(t *testing.T) {
	history := []*store.Message{
		msg("s1", store.MessageTypeHuman, "first question"),
		msg("s1", store.MessageTypeAI, "answer"),
		msg("s1", store.MessageTypeHuman, "second question"),
	}

	got := Build(history)

	require.Len(t, got, 1)
	assert.Equal(t, "first question", got[0].Title)
}

// A session that opens with an ai message still gets a title: the first
// human message seeds it rather than leaving it empty.
func TestBuild_AIFirstThenHumanSeedsTitle(t *testing.T) {
	history := []*store.Message{
		msg("s1", store.MessageTypeAI, "greeting"),
		msg("s1", store.MessageTypeHuman, "user question"),
		msg("s1", store.MessageTypeHuman, "follow up"),
	}

	got := Build(history)

	require.Len(t, got, 1)
	assert.Equal(t, "user question", got[0].Title)
}

func TestBuild_NoHumanMessageMeansEmptyTitle(t *testing.T) {
	got := Build([]*store.Message{msg("s1", store.MessageTypeAI, "only ai")})

	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].Title)
	assert.Equal(t, "only ai", got[0].LastMessage)
}

func TestBuild_LastMessageFollowsScanOrder(t *testing.T) {
	history := []*store.Message{
		msg("s1", store.MessageTypeHuman, "q"),
		msg("s2", store.MessageTypeHuman, "other"),
		msg("s1", store.MessageTypeAI, "a"),
	}

	got := Build(history)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].LastMessage)
	assert.Equal(t, "other", got[1].LastMessage)
}

// Property: one entry per distinct session; title is the first human content or empty.
func TestBuild_PropertyOverGeneratedHistories(t *testing.T) {
	for seed := range 50 {
		var history []*store.Message
		firstHuman := make(map[string]string)
		sessions := make(map[string]bool)

		for i := range seed%17 + 1 {
			sid := fmt.Sprintf("s%d", (i*7+seed)%5)
			typ := store.MessageTypeAI
			if (i+seed)%3 != 0 {
				typ = store.MessageTypeHuman
			}
			content := fmt.Sprintf("m-%d-%d", seed, i)
			history = append(history, msg(sid, typ, content))
			sessions[sid] = true
			if _, ok := firstHuman[sid]; !ok && typ == store.MessageTypeHuman {
				firstHuman[sid] = content
			}
		}

		got := Build(history)
		require.Len(t, got, len(sessions), "seed %d", seed)
		for _, conv := range got {
			assert.Equal(t, firstHuman[conv.SessionID], conv.Title, "seed %d session %s", seed, conv.SessionID)
		}
	}
}

type stubFetcher struct {
	history []*store.Message
	err     error
}

func (f *stubFetcher) ListMessages(context.Context) ([]*store.Message, error) {
	return f.history, f.err
}

func TestDirectory_LoadAndApply(t *testing.T) {
	f := &stubFetcher{history: []*store.Message{msg("s1", store.MessageTypeHuman, "hi")}}
	d := New(f, nil)

	require.NoError(t, d.Apply(d.Load(context.Background())))

	got := d.Conversations()
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Title)
}

func TestDirectory_FailedLoadKeepsPreviousList(t *testing.T) {
	f := &stubFetcher{history: []*store.Message{msg("s1", store.MessageTypeHuman, "hi")}}
	d := New(f, nil)
	require.NoError(t, d.Apply(d.Load(context.Background())))

	boom := errors.New("db down")
	f.err = boom
	err := d.Apply(d.Load(context.Background()))

	assert.ErrorIs(t, err, boom)
	assert.Len(t, d.Conversations(), 1)
}

func TestDirectory_ConversationsReturnsCopy(t *testing.T) {
	d := New(&stubFetcher{history: []*store.Message{msg("s1", store.MessageTypeHuman, "hi")}}, nil)
	require.NoError(t, d.Apply(d.Load(context.Background())))

	got := d.Conversations()
	got[0].Title = "mutated"

	assert.Equal(t, "hi", d.Conversations()[0].Title)
}
