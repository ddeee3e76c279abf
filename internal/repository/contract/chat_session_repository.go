package contract

import (
	"context"
	"time"

	"ai-videochat-be/internal/entity"
	"ai-videochat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error

	// Rename updates the title and nothing else. Sessions are immutable
	// after creation apart from title, updated_at and deleted_at, so no
	// whole-row update path exists.
	Rename(ctx context.Context, id uuid.UUID, title string) error

	// Touch bumps updated_at; called whenever a message is appended so that
	// session listings stay ordered by recency.
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	// SoftDelete stamps deleted_at. Records of the session stay on disk but
	// become invisible to listings and retrieval.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
