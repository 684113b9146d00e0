package expand

import (
	"context"
	"errors"
	"testing"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	response string
	err      error
	history  []llm.Message
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.history = history
	return f.response, f.err
}

func (f *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, onChunk llm.StreamFunc, options ...llm.Option) error {
	return f.err
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.response, f.err
}

func newExpander(provider llm.LLMProvider) *Expander {
	return NewExpander(provider, "", logger.NewNopLogger())
}

func TestExpandVerbatimAlwaysFirst(t *testing.T) {
	provider := &fakeProvider{response: `{"maximum_five_queries": ["coffee shop costs", "cafe startup budget"]}`}
	e := newExpander(provider)

	got := e.Expand(context.Background(), nil, "how much to open a cafe", "", "")
	require.Len(t, got, 3)
	assert.Equal(t, Variant{Text: "how much to open a cafe", Origin: OriginVerbatim}, got[0])
	assert.Equal(t, OriginParaphrase, got[1].Origin)
	assert.Equal(t, OriginParaphrase, got[2].Origin)
}

func TestExpandFailureDegradesToVerbatim(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "provider error", err: errors.New("timeout")},
		{name: "no json", response: "no structured output here"},
		{name: "malformed json", response: `{"maximum_five_queries": [}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newExpander(&fakeProvider{response: tt.response, err: tt.err})
			got := e.Expand(context.Background(), nil, "original question", "", "")
			require.Len(t, got, 1)
			assert.Equal(t, Variant{Text: "original question", Origin: OriginVerbatim}, got[0])
		})
	}
}

func TestExpandCapsAtFiveVariants(t *testing.T) {
	provider := &fakeProvider{response: `{"maximum_five_queries": ["q1", "q2", "q3", "q4", "q5", "q6", "q7"]}`}
	e := newExpander(provider)

	got := e.Expand(context.Background(), nil, "verbatim", "", "")
	assert.Len(t, got, 5)
}

func TestExpandDeduplicatesQueries(t *testing.T) {
	provider := &fakeProvider{response: `{"maximum_five_queries": ["Verbatim", "other", "  other  ", "OTHER"]}`}
	e := newExpander(provider)

	got := e.Expand(context.Background(), nil, "verbatim", "", "")
	require.Len(t, got, 2)
	assert.Equal(t, "verbatim", got[0].Text)
	assert.Equal(t, "other", got[1].Text)
}

func TestExpandClassifiesEntityQueries(t *testing.T) {
	provider := &fakeProvider{response: `{"maximum_five_queries": ["BeanHouse franchise fees", "coffee shop rent"]}`}
	e := newExpander(provider)

	brands := "- BeanHouse: specialty coffee franchise\n- TeaCorner: bubble tea chain"
	got := e.Expand(context.Background(), nil, "franchise costs", "", brands)
	require.Len(t, got, 3)
	assert.Equal(t, OriginEntity, got[1].Origin)
	assert.Equal(t, OriginParaphrase, got[2].Origin)
}

func TestExpandSendsUserMessageAndContext(t *testing.T) {
	provider := &fakeProvider{response: `{"maximum_five_queries": []}`}
	e := newExpander(provider)

	contextMessages := []llm.Message{{Role: "user", Content: "earlier question"}}
	e.Expand(context.Background(), contextMessages, "latest question", "attached text", "")

	require.NotEmpty(t, provider.history)
	assert.Equal(t, "system", provider.history[0].Role)
	assert.Contains(t, provider.history[0].Content, "attached text")
	last := provider.history[len(provider.history)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "latest question", last.Content)
}
