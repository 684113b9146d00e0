package response

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/rag/hybrid"
	"rag-agent-be/pkg/rag/prompt"
)

// Generator produces the final streamed answer, either conversational or
// grounded on retrieved documents. Streaming errors surface immediately
// with whatever text was already emitted; there is no mid-stream retry
// because the client has already seen partial output.
type Generator struct {
	provider llm.LLMProvider
	model    string
	logger   logger.ILogger
}

func NewGenerator(provider llm.LLMProvider, model string, log logger.ILogger) *Generator {
	return &Generator{provider: provider, model: model, logger: log}
}

// StreamSimple answers small talk and meta questions without retrieval.
// Returns the accumulated text, partial when err is non-nil.
func (g *Generator) StreamSimple(ctx context.Context, history []llm.Message, onChunk llm.StreamFunc) (string, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: prompt.SimpleResponsePrompt})
	messages = append(messages, history...)

	return g.stream(ctx, messages, onChunk)
}

// StreamGrounded answers from the given documents. Attached content, when
// present, rides along in the system prompt so deictic references resolve.
func (g *Generator) StreamGrounded(ctx context.Context, history []llm.Message, docs []hybrid.Document, attachedContent string, onChunk llm.StreamFunc) (string, error) {
	system := prompt.GroundedResponsePrompt(prompt.FormatDocuments(docs))
	if attachedContent != "" {
		system += prompt.AttachedContentNotice(attachedContent)
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	messages = append(messages, history...)

	return g.stream(ctx, messages, onChunk)
}

func (g *Generator) stream(ctx context.Context, messages []llm.Message, onChunk llm.StreamFunc) (string, error) {
	var full strings.Builder

	opts := []llm.Option{}
	if g.model != "" {
		opts = append(opts, llm.WithModel(g.model))
	}

	err := g.provider.ChatStream(ctx, messages, func(content string) error {
		full.WriteString(content)
		return onChunk(content)
	}, opts...)
	if err != nil {
		g.logger.Warn("Generator", "Streaming ended with error", map[string]interface{}{
			"emitted_chars": full.Len(),
			"error":         err.Error(),
		})
		return full.String(), err
	}

	return full.String(), nil
}

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// RewriteCitations turns bare [n] citations into markdown links targeting
// the n-th document's URL. Out-of-range numbers and documents without a
// URL are left untouched.
func RewriteCitations(text string, docs []hybrid.Document) string {
	if len(docs) == 0 {
		return text
	}

	return citationPattern.ReplaceAllStringFunc(text, func(match string) string {
		n, err := strconv.Atoi(match[1 : len(match)-1])
		if err != nil || n < 1 || n > len(docs) {
			return match
		}
		url := docs[n-1].URL
		if url == "" {
			return match
		}
		return fmt.Sprintf(`[\[%d\]](%s)`, n, url)
	})
}
