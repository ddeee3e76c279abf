package entity

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// ChatRecord is one persisted chat message. Immutable once written except for
// the soft-delete timestamp. Vector is nil when the embedding provider was
// unavailable at write time; such records are excluded from similarity search
// until backfilled.
type ChatRecord struct {
	Id            uuid.UUID
	UserId        uuid.UUID
	ChatSessionId uuid.UUID
	Message       string
	ChatType      string
	Vector        []float32
	CreatedAt     time.Time
	UpdatedAt     *time.Time
	DeletedAt     *time.Time
	IsDeleted     bool
}

// Less orders records by (created_at, id). Ids are UUIDv7, so byte order is
// creation order and the tie-break is stable.
func (r *ChatRecord) Less(other *ChatRecord) bool {
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.Before(other.CreatedAt)
	}
	return bytes.Compare(r.Id[:], other.Id[:]) < 0
}

// ScoredChatRecord pairs a record with its cosine similarity to a query.
type ScoredChatRecord struct {
	Record     *ChatRecord
	Similarity float64
}
