package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rag-agent-be/pkg/core"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// TurnCompletedTopic carries one event per finished generation turn. The
// persistence consumer archives the turn's messages off the hot path so a
// slow core service never delays the stream teardown.
const TurnCompletedTopic = "turn.completed"

type TurnCompletedEvent struct {
	SessionId  string             `json:"session_id"`
	Messages   []core.ChatMessage `json:"messages"`
	OccurredAt time.Time          `json:"occurred_at"`
}

type Publisher struct {
	publisher message.Publisher
}

func NewPublisher(publisher message.Publisher) *Publisher {
	return &Publisher{publisher: publisher}
}

func (p *Publisher) PublishTurnCompleted(ctx context.Context, event TurnCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode turn completed event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return p.publisher.Publish(TurnCompletedTopic, msg)
}
