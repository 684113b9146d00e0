package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionCheckpoint is the durable snapshot of one session's conversation
// state. One row per session, replaced wholesale on every completed turn so
// a partially processed turn can never leak into the checkpoint.
type SessionCheckpoint struct {
	SessionId uuid.UUID      `gorm:"type:uuid;primaryKey"`
	State     datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (SessionCheckpoint) TableName() string {
	return "session_checkpoints"
}
