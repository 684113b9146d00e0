package memory

import (
	"context"
	"fmt"
	"strings"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/llm"
	"rag-agent-be/pkg/rag/prompt"
	"rag-agent-be/pkg/rag/state"
)

// assistantExcerptLimit truncates long assistant answers inside the text
// handed to the summarizer.
const assistantExcerptLimit = 500

// Manager bounds conversation growth: a sliding context window for every
// LLM call plus threshold-triggered compaction of old messages into one
// summary.
type Manager struct {
	provider llm.LLMProvider
	model    string
	logger   logger.ILogger
}

func NewManager(provider llm.LLMProvider, model string, log logger.ILogger) *Manager {
	return &Manager{
		provider: provider,
		model:    model,
		logger:   log,
	}
}

// ContextWindow returns the messages to send to the LLM: the summary (when
// present) followed by the last windowSize ordinary messages. The full
// history is never sent.
func (m *Manager) ContextWindow(s *state.ConversationState, windowSize int) []state.Message {
	if s == nil || len(s.Messages) == 0 {
		return nil
	}

	if s.HasSummary() {
		rest := s.Messages[1:]
		window := append([]state.Message{s.Messages[0]}, tail(rest, windowSize)...)
		return window
	}
	return tail(s.Messages, windowSize)
}

// MaybeCompact summarizes all but the last keepSize messages once the
// non-summary count exceeds threshold, folding any existing summary into
// the summarization input. Best-effort: on summarizer failure the state is
// left exactly as it was. Returns whether compaction happened.
func (m *Manager) MaybeCompact(ctx context.Context, s *state.ConversationState, threshold, keepSize int) bool {
	if s == nil {
		return false
	}

	conversation := s.Messages
	var existingSummary *state.Message
	if s.HasSummary() {
		existingSummary = &s.Messages[0]
		conversation = s.Messages[1:]
	}

	if len(conversation) <= threshold || len(conversation) <= keepSize {
		return false
	}

	toSummarize := conversation[:len(conversation)-keepSize]
	toKeep := conversation[len(conversation)-keepSize:]

	summaryInput := toSummarize
	if existingSummary != nil {
		summaryInput = append([]state.Message{*existingSummary}, toSummarize...)
	}

	summary, err := m.summarize(ctx, summaryInput)
	if err != nil {
		m.logger.Warn("MemoryManager", "Summarization failed, leaving history unchanged", map[string]interface{}{
			"session": s.SessionId.String(),
			"error":   err.Error(),
		})
		return false
	}

	compacted := make([]state.Message, 0, 1+len(toKeep))
	compacted = append(compacted, state.Message{
		Role:    state.RoleSummary,
		Content: state.SummaryPrefix + summary,
	})
	compacted = append(compacted, toKeep...)
	s.Messages = compacted

	m.logger.Info("MemoryManager", "History compacted", map[string]interface{}{
		"session":    s.SessionId.String(),
		"summarized": len(toSummarize),
		"kept":       len(toKeep),
	})
	return true
}

func (m *Manager) summarize(ctx context.Context, messages []state.Message) (string, error) {
	var lines []string
	for _, msg := range messages {
		switch msg.Role {
		case state.RoleUser:
			lines = append(lines, "User: "+msg.Content)
		case state.RoleAssistant:
			lines = append(lines, "Assistant: "+truncateRunes(msg.Content, assistantExcerptLimit))
		case state.RoleSummary:
			lines = append(lines, msg.Content)
		}
	}

	opts := []llm.Option{llm.WithTemperature(0)}
	if m.model != "" {
		opts = append(opts, llm.WithModel(m.model))
	}

	summary, err := m.provider.Generate(ctx, prompt.SummarizePrompt(strings.Join(lines, "\n")), opts...)
	if err != nil {
		return "", fmt.Errorf("summarize conversation: %w", err)
	}
	return summary, nil
}

// AsLLMMessages converts state messages to the provider format. The
// summary keeps its reserved prefix and travels as a system message.
func AsLLMMessages(messages []state.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		if msg.Role == state.RoleSummary {
			role = "system"
		}
		out = append(out, llm.Message{Role: role, Content: msg.Content})
	}
	return out
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func tail(messages []state.Message, n int) []state.Message {
	if n <= 0 {
		return nil
	}
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}
