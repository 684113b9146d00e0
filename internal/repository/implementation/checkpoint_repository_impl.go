package implementation

import (
	"context"
	"errors"

	"rag-agent-be/internal/model"
	"rag-agent-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CheckpointRepositoryImpl struct {
	db *gorm.DB
}

func NewCheckpointRepository(db *gorm.DB) contract.CheckpointRepository {
	return &CheckpointRepositoryImpl{db: db}
}

func (r *CheckpointRepositoryImpl) Load(ctx context.Context, sessionId uuid.UUID) (*model.SessionCheckpoint, error) {
	var m model.SessionCheckpoint
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *CheckpointRepositoryImpl) Save(ctx context.Context, checkpoint *model.SessionCheckpoint) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
		}).
		Create(checkpoint).Error
}
