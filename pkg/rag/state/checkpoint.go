package state

import (
	"context"
	"encoding/json"
	"fmt"

	"rag-agent-be/internal/model"
	"rag-agent-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CheckpointStore persists ConversationState through the checkpoint
// repository. The state lives in the database, not in process memory, so
// any server instance can pick a session up.
type CheckpointStore struct {
	repo contract.CheckpointRepository
}

func NewCheckpointStore(repo contract.CheckpointRepository) *CheckpointStore {
	return &CheckpointStore{repo: repo}
}

// Load returns the session's state, or a fresh empty state when the
// session has never been checkpointed.
func (s *CheckpointStore) Load(ctx context.Context, sessionId uuid.UUID) (*ConversationState, error) {
	checkpoint, err := s.repo.Load(ctx, sessionId)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if checkpoint == nil {
		return NewConversationState(sessionId), nil
	}

	var conversationState ConversationState
	if err := json.Unmarshal(checkpoint.State, &conversationState); err != nil {
		return nil, fmt.Errorf("decode checkpoint state: %w", err)
	}
	conversationState.SessionId = sessionId
	return &conversationState, nil
}

func (s *CheckpointStore) Save(ctx context.Context, conversationState *ConversationState) error {
	payload, err := json.Marshal(conversationState)
	if err != nil {
		return fmt.Errorf("encode checkpoint state: %w", err)
	}

	err = s.repo.Save(ctx, &model.SessionCheckpoint{
		SessionId: conversationState.SessionId,
		State:     datatypes.JSON(payload),
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
