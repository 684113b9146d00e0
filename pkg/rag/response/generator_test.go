package response

import (
	"context"
	"errors"
	"testing"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/rag/hybrid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamProvider emits chunks, optionally erroring midway through.
type streamProvider struct {
	chunks   []string
	errAfter int // error after this many chunks; -1 disables
	history  []llm.Message
}

func (f *streamProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", nil
}

func (f *streamProvider) ChatStream(ctx context.Context, history []llm.Message, onChunk llm.StreamFunc, options ...llm.Option) error {
	f.history = history
	for i, chunk := range f.chunks {
		if f.errAfter >= 0 && i == f.errAfter {
			return errors.New("connection reset")
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (f *streamProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", nil
}

func TestStreamSimpleAccumulates(t *testing.T) {
	provider := &streamProvider{chunks: []string{"Hel", "lo ", "there"}, errAfter: -1}
	g := NewGenerator(provider, "", logger.NewNopLogger())

	var received []string
	full, err := g.StreamSimple(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, func(content string) error {
		received = append(received, content)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello there", full)
	assert.Equal(t, []string{"Hel", "lo ", "there"}, received)
	require.NotEmpty(t, provider.history)
	assert.Equal(t, "system", provider.history[0].Role)
}

func TestStreamReturnsPartialTextOnError(t *testing.T) {
	provider := &streamProvider{chunks: []string{"partial ", "answer", "never sent"}, errAfter: 2}
	g := NewGenerator(provider, "", logger.NewNopLogger())

	full, err := g.StreamSimple(context.Background(), nil, func(content string) error { return nil })

	assert.Error(t, err)
	assert.Equal(t, "partial answer", full)
}

func TestStreamCallbackErrorAborts(t *testing.T) {
	provider := &streamProvider{chunks: []string{"a", "b", "c"}, errAfter: -1}
	g := NewGenerator(provider, "", logger.NewNopLogger())

	abort := errors.New("client gone")
	sent := 0
	full, err := g.StreamSimple(context.Background(), nil, func(content string) error {
		sent++
		if sent == 2 {
			return abort
		}
		return nil
	})

	assert.ErrorIs(t, err, abort)
	assert.Equal(t, "ab", full)
}

func TestStreamGroundedIncludesDocumentsAndAttachment(t *testing.T) {
	provider := &streamProvider{chunks: []string{"ok"}, errAfter: -1}
	g := NewGenerator(provider, "", logger.NewNopLogger())

	docs := []hybrid.Document{
		{SourceID: "d1", Title: "Cafe startup costs", URL: "https://example.com/d1", Content: "rent and equipment"},
	}
	_, err := g.StreamGrounded(context.Background(), []llm.Message{{Role: "user", Content: "costs?"}}, docs, "attached note", func(string) error { return nil })
	require.NoError(t, err)

	require.NotEmpty(t, provider.history)
	system := provider.history[0].Content
	assert.Contains(t, system, "Cafe startup costs")
	assert.Contains(t, system, "https://example.com/d1")
	assert.Contains(t, system, "attached note")
}

func TestRewriteCitations(t *testing.T) {
	docs := []hybrid.Document{
		{SourceID: "d1", URL: "https://example.com/one"},
		{SourceID: "d2", URL: "https://example.com/two"},
		{SourceID: "d3"}, // no URL
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single citation",
			in:   "Rent is the biggest cost [1].",
			want: `Rent is the biggest cost [\[1\]](https://example.com/one).`,
		},
		{
			name: "adjacent citations",
			in:   "See [1][2].",
			want: `See [\[1\]](https://example.com/one)[\[2\]](https://example.com/two).`,
		},
		{
			name: "out of range untouched",
			in:   "Unknown source [7].",
			want: "Unknown source [7].",
		},
		{
			name: "missing url untouched",
			in:   "From [3].",
			want: "From [3].",
		},
		{
			name: "no citations",
			in:   "Plain text.",
			want: "Plain text.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteCitations(tt.in, docs))
		})
	}
}

func TestRewriteCitationsNoDocs(t *testing.T) {
	assert.Equal(t, "Keep [1] as is.", RewriteCitations("Keep [1] as is.", nil))
}
