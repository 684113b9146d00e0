package contract

import (
	"context"

	"rag-agent-be/internal/model"

	"github.com/google/uuid"
)

type CheckpointRepository interface {
	// Load returns nil (not an error) when the session has no checkpoint yet.
	Load(ctx context.Context, sessionId uuid.UUID) (*model.SessionCheckpoint, error)

	// Save upserts the checkpoint row for its session id.
	Save(ctx context.Context, checkpoint *model.SessionCheckpoint) error
}
