package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ChatRecord struct {
	Id            uuid.UUID        `gorm:"type:uuid;primaryKey"`
	UserId        uuid.UUID        `gorm:"type:uuid;not null;index"`
	ChatSessionId uuid.UUID        `gorm:"type:uuid;not null;index"`
	Message       string           `gorm:"type:text;not null"`
	ChatType      string           `gorm:"type:text;not null"` // "user" | "assistant"
	Embedding     *pgvector.Vector `gorm:"type:vector(384)"`   // all-minilm uses 384 dimensions; NULL until backfilled
	CreatedAt     time.Time        `gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt   `gorm:"index"`
}

func (ChatRecord) TableName() string {
	return "user_chat_history"
}
