package service

import (
	"context"
	"encoding/json"

	"rag-agent-be/internal/pkg/logger"
	"rag-agent-be/pkg/core"
	"rag-agent-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IPersistenceService archives finished turns to the core service off the
// streaming hot path.
type IPersistenceService interface {
	Consume(ctx context.Context) error
}

type persistenceService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	coreClient *core.Client
	logger     logger.ILogger
}

func NewPersistenceService(
	pubSub *gochannel.GoChannel,
	topicName string,
	coreClient *core.Client,
	log logger.ILogger,
) IPersistenceService {
	return &persistenceService{
		pubSub:     pubSub,
		topicName:  topicName,
		coreClient: coreClient,
		logger:     log,
	}
}

func (ps *persistenceService) Consume(ctx context.Context) error {
	messages, err := ps.pubSub.Subscribe(ctx, ps.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			ps.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (ps *persistenceService) processMessage(ctx context.Context, msg *message.Message) {
	var event events.TurnCompletedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		ps.logger.Error("PersistenceService", "Failed to unmarshal turn completed event", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // malformed payloads would loop forever on Nack
		return
	}

	if err := ps.coreClient.SaveMessages(ctx, event.SessionId, event.Messages); err != nil {
		// Soft warning: the client already has the response and the
		// checkpoint holds the conversation. Losing one archive write
		// is acceptable; retry storms against a down core are not.
		ps.logger.Warn("PersistenceService", "Failed to archive turn messages", map[string]interface{}{
			"session": event.SessionId,
			"error":   err.Error(),
		})
		msg.Ack()
		return
	}

	ps.logger.Debug("PersistenceService", "Turn messages archived", map[string]interface{}{
		"session":  event.SessionId,
		"messages": len(event.Messages),
	})
	msg.Ack()
}
