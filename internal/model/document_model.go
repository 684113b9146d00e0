package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is one entry of the retrieval corpus. SourceId is the stable
// external key (the post id in the core service) and is what deduplication
// works on; Id is only the local surrogate key.
type Document struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceId  string         `gorm:"type:varchar(64);not null;uniqueIndex"`
	Title     string         `gorm:"type:text;not null"`
	Url       string         `gorm:"type:text"`
	Author    string         `gorm:"type:varchar(255);index"`
	Content   string         `gorm:"type:text;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Document) TableName() string {
	return "documents"
}
