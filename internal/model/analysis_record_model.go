package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AnalysisRecord struct {
	Id             uuid.UUID        `gorm:"type:uuid;primaryKey"`
	UserId         uuid.UUID        `gorm:"type:uuid;not null;index"`
	UploadFileName string           `gorm:"type:text;not null"`
	Analysis       string           `gorm:"type:text;not null"`
	VideoDuration  *string          `gorm:"type:text"`
	VideoFormat    *string          `gorm:"type:text"`
	Metadata       datatypes.JSON   `gorm:"type:jsonb"` // fps, resolution, size
	Embedding      *pgvector.Vector `gorm:"type:vector(384)"`
	CreatedAt      time.Time        `gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt   `gorm:"index"`
}

func (AnalysisRecord) TableName() string {
	return "video_analysis_output"
}
