package contract

import (
	"context"

	"ai-videochat-be/internal/entity"
	"ai-videochat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatRecordRepository interface {
	// Create is the only write path for chat records (append-only).
	Create(ctx context.Context, record *entity.ChatRecord) error

	SoftDelete(ctx context.Context, id uuid.UUID) error
	SoftDeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error

	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatRecord, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatRecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// SearchSimilar returns the top-k non-deleted records with a usable vector,
	// by cosine similarity descending, ties broken by recency. sessionId
	// narrows scope to one session when non-nil.
	SearchSimilar(ctx context.Context, queryVector []float32, k int, userId uuid.UUID, sessionId *uuid.UUID) ([]*entity.ScoredChatRecord, error)

	// UpdateEmbedding backfills the vector of a record persisted while the
	// embedding provider was unavailable. The vector is written once and
	// never mutated afterwards.
	UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error
}
