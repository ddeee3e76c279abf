package contract

import (
	"context"

	"ai-videochat-be/internal/entity"
	"ai-videochat-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredAnalysisRecord pairs an analysis record with its similarity score.
type ScoredAnalysisRecord struct {
	Record     *entity.AnalysisRecord
	Similarity float64
}

type AnalysisRecordRepository interface {
	Create(ctx context.Context, record *entity.AnalysisRecord) error

	SoftDelete(ctx context.Context, id uuid.UUID) error

	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.AnalysisRecord, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AnalysisRecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	SearchSimilar(ctx context.Context, queryVector []float32, k int, userId uuid.UUID) ([]*ScoredAnalysisRecord, error)

	UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error
}
