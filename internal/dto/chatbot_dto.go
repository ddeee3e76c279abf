package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionResponse struct {
	Id    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type GetAllSessionsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type GetChatHistoryResponse struct {
	Id        uuid.UUID `json:"id"`
	ChatType  string    `json:"chat_type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
}

type SendChatRequest struct {
	// ChatSessionId is optional: a session is created on demand when the
	// client sends the first message without selecting one.
	ChatSessionId *uuid.UUID `json:"chat_session_id,omitempty"`
	Message       string     `json:"message" validate:"required"`
}

type SendChatResponseChat struct {
	Id        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	ChatType  string    `json:"chat_type"`
	CreatedAt time.Time `json:"timestamp"`
}

type SendChatResponse struct {
	ChatSessionId    uuid.UUID             `json:"chat_session_id"`
	ChatSessionTitle string                `json:"title"`
	Sent             *SendChatResponseChat `json:"sent"`
	Reply            *SendChatResponseChat `json:"reply"`
}

// SearchMemoryResponse is one similarity hit across chat and analysis
// history, ordered by score descending.
type SearchMemoryResponse struct {
	Id         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"` // "chat" | "analysis"
	Content    string    `json:"content"`
	Similarity float64   `json:"similarity"`
	CreatedAt  time.Time `json:"timestamp"`
}

type DeleteSessionRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
}

// PublishEmbedRecordMessage is the payload queued for asynchronous embedding
// backfill when the provider was unavailable at write time.
type PublishEmbedRecordMessage struct {
	RecordId   uuid.UUID `json:"record_id"`
	RecordKind string    `json:"record_kind"` // "chat" | "analysis"
}
