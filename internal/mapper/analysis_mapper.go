package mapper

import (
	"encoding/json"
	"time"

	"ai-videochat-be/internal/entity"
	"ai-videochat-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AnalysisMapper struct{}

func NewAnalysisMapper() *AnalysisMapper {
	return &AnalysisMapper{}
}

func (m *AnalysisMapper) ToEntity(r *model.AnalysisRecord) *entity.AnalysisRecord {
	if r == nil {
		return nil
	}

	var deletedAt *time.Time
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		updatedAt = &t
	}

	var vector []float32
	if r.Embedding != nil {
		vector = r.Embedding.Slice()
	}

	var metadata map[string]interface{}
	if len(r.Metadata) > 0 {
		// Malformed metadata is not fatal; the analysis text is the payload.
		_ = json.Unmarshal(r.Metadata, &metadata)
	}

	return &entity.AnalysisRecord{
		Id:             r.Id,
		UserId:         r.UserId,
		UploadFileName: r.UploadFileName,
		Analysis:       r.Analysis,
		VideoDuration:  r.VideoDuration,
		VideoFormat:    r.VideoFormat,
		Metadata:       metadata,
		Vector:         vector,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      r.DeletedAt.Valid,
	}
}

func (m *AnalysisMapper) ToModel(r *entity.AnalysisRecord) *model.AnalysisRecord {
	if r == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if r.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *r.DeletedAt, Valid: true}
	} else if r.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if r.UpdatedAt != nil {
		updatedAt = *r.UpdatedAt
	}

	var embedding *pgvector.Vector
	if r.Vector != nil {
		v := pgvector.NewVector(r.Vector)
		embedding = &v
	}

	var metadata datatypes.JSON
	if r.Metadata != nil {
		if raw, err := json.Marshal(r.Metadata); err == nil {
			metadata = raw
		}
	}

	return &model.AnalysisRecord{
		Id:             r.Id,
		UserId:         r.UserId,
		UploadFileName: r.UploadFileName,
		Analysis:       r.Analysis,
		VideoDuration:  r.VideoDuration,
		VideoFormat:    r.VideoFormat,
		Metadata:       metadata,
		Embedding:      embedding,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}
