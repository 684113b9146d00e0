package state

import (
	"strings"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSummary   = "system-summary"
)

// SummaryPrefix tags compaction summaries so they can never be confused
// with ordinary messages, whatever their role field says.
const SummaryPrefix = "[Conversation summary] "

// Message is immutable once appended to a session.
type Message struct {
	Role          string `json:"role"`
	Content       string `json:"content"`
	AttachmentIds []int  `json:"attachment_ids,omitempty"`
}

// IsSummary reports whether the message is a compaction summary.
func (m Message) IsSummary() bool {
	return m.Role == RoleSummary && strings.HasPrefix(m.Content, SummaryPrefix)
}

// ConversationState is the checkpointed conversation of one session. If a
// summary message exists it is always the first element.
type ConversationState struct {
	SessionId uuid.UUID `json:"session_id"`
	Messages  []Message `json:"messages"`
}

func NewConversationState(sessionId uuid.UUID) *ConversationState {
	return &ConversationState{SessionId: sessionId}
}

// HasSummary reports whether the state starts with a summary message.
func (s *ConversationState) HasSummary() bool {
	return len(s.Messages) > 0 && s.Messages[0].IsSummary()
}

// Append adds messages to the end of the conversation.
func (s *ConversationState) Append(messages ...Message) {
	s.Messages = append(s.Messages, messages...)
}
