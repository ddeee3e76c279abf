package entity

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRecord is one persisted video analysis. Scoped to an owner only,
// never to a chat session.
type AnalysisRecord struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	UploadFileName string
	Analysis       string
	VideoDuration  *string
	VideoFormat    *string
	Metadata       map[string]interface{}
	Vector         []float32
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
