package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/rag/state"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	summary    string
	err        error
	lastPrompt string
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.summary, f.err
}

func (f *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, onChunk llm.StreamFunc, options ...llm.Option) error {
	return f.err
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	f.lastPrompt = prompt
	return f.summary, f.err
}

func newManager(provider llm.LLMProvider) *Manager {
	return NewManager(provider, "", logger.NewNopLogger())
}

func conversationOf(n int) *state.ConversationState {
	s := state.NewConversationState(uuid.New())
	for i := 0; i < n; i++ {
		role := state.RoleUser
		if i%2 == 1 {
			role = state.RoleAssistant
		}
		s.Append(state.Message{Role: role, Content: fmt.Sprintf("message %d", i)})
	}
	return s
}

func TestContextWindowReturnsTail(t *testing.T) {
	m := newManager(&fakeProvider{})
	s := conversationOf(8)

	window := m.ContextWindow(s, 5)
	require.Len(t, window, 5)
	assert.Equal(t, "message 3", window[0].Content)
	assert.Equal(t, "message 7", window[4].Content)
}

func TestContextWindowShortHistory(t *testing.T) {
	m := newManager(&fakeProvider{})
	s := conversationOf(3)

	window := m.ContextWindow(s, 5)
	assert.Len(t, window, 3)
}

func TestContextWindowIncludesSummaryFirst(t *testing.T) {
	m := newManager(&fakeProvider{})
	s := conversationOf(8)
	s.Messages = append([]state.Message{{
		Role:    state.RoleSummary,
		Content: state.SummaryPrefix + "earlier topics",
	}}, s.Messages...)

	window := m.ContextWindow(s, 5)
	require.Len(t, window, 6)
	assert.True(t, window[0].IsSummary())
	assert.Equal(t, "message 7", window[5].Content)
}

func TestContextWindowEmptyState(t *testing.T) {
	m := newManager(&fakeProvider{})
	assert.Nil(t, m.ContextWindow(nil, 5))
	assert.Nil(t, m.ContextWindow(state.NewConversationState(uuid.New()), 5))
}

func TestMaybeCompactBelowThreshold(t *testing.T) {
	m := newManager(&fakeProvider{summary: "unused"})
	s := conversationOf(15)
	before := append([]state.Message{}, s.Messages...)

	compacted := m.MaybeCompact(context.Background(), s, 20, 10)
	assert.False(t, compacted)
	assert.Equal(t, before, s.Messages)
}

func TestMaybeCompactAboveThreshold(t *testing.T) {
	m := newManager(&fakeProvider{summary: "the user asked about cafe costs"})
	s := conversationOf(25)

	compacted := m.MaybeCompact(context.Background(), s, 20, 10)
	require.True(t, compacted)

	// One summary plus the last 10 originals
	require.Len(t, s.Messages, 11)
	assert.True(t, s.Messages[0].IsSummary())
	assert.Equal(t, state.SummaryPrefix+"the user asked about cafe costs", s.Messages[0].Content)
	assert.Equal(t, "message 15", s.Messages[1].Content)
	assert.Equal(t, "message 24", s.Messages[10].Content)
}

func TestMaybeCompactFoldsExistingSummary(t *testing.T) {
	provider := &fakeProvider{summary: "combined summary"}
	m := newManager(provider)

	s := conversationOf(25)
	s.Messages = append([]state.Message{{
		Role:    state.RoleSummary,
		Content: state.SummaryPrefix + "older context",
	}}, s.Messages...)

	compacted := m.MaybeCompact(context.Background(), s, 20, 10)
	require.True(t, compacted)

	// Exactly one summary remains and the old one fed the summarizer
	require.Len(t, s.Messages, 11)
	assert.True(t, s.Messages[0].IsSummary())
	assert.Contains(t, provider.lastPrompt, "older context")
}

func TestMaybeCompactFailureLeavesStateUntouched(t *testing.T) {
	m := newManager(&fakeProvider{err: errors.New("model offline")})
	s := conversationOf(25)
	before := append([]state.Message{}, s.Messages...)

	compacted := m.MaybeCompact(context.Background(), s, 20, 10)
	assert.False(t, compacted)
	assert.Equal(t, before, s.Messages)
}

func TestMaybeCompactTruncatesLongAssistantMessages(t *testing.T) {
	provider := &fakeProvider{summary: "s"}
	m := newManager(provider)

	long := make([]rune, 2000)
	for i := range long {
		long[i] = 'y'
	}
	s := conversationOf(25)
	// index 3 is an assistant message inside the summarized range
	s.Messages[3].Content = string(long)

	require.True(t, m.MaybeCompact(context.Background(), s, 20, 10))
	assert.NotContains(t, provider.lastPrompt, string(long))
	assert.Contains(t, provider.lastPrompt, string(long[:500])+"...")
}

func TestAsLLMMessagesMapsSummaryToSystem(t *testing.T) {
	messages := []state.Message{
		{Role: state.RoleSummary, Content: state.SummaryPrefix + "history"},
		{Role: state.RoleUser, Content: "hi"},
		{Role: state.RoleAssistant, Content: "hello"},
	}

	got := AsLLMMessages(messages)
	require.Len(t, got, 3)
	assert.Equal(t, "system", got[0].Role)
	assert.Equal(t, "user", got[1].Role)
	assert.Equal(t, "assistant", got[2].Role)
}
