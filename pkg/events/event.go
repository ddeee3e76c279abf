package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "USER_LOGIN").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewUserLoginEvent is emitted after a successful login.
func NewUserLoginEvent(userId uuid.UUID, email string) Event {
	return BaseEvent{
		Type: "USER_LOGIN",
		Data: map[string]interface{}{
			"user_id": userId.String(),
			"email":   email,
		},
		OccurredAt: time.Now(),
	}
}

// NewAnalysisCompletedEvent is emitted once a video analysis record is
// persisted, so connected clients can be notified.
func NewAnalysisCompletedEvent(userId, recordId uuid.UUID, fileName string) Event {
	return BaseEvent{
		Type: "ANALYSIS_COMPLETED",
		Data: map[string]interface{}{
			"user_id":   userId.String(),
			"record_id": recordId.String(),
			"file_name": fileName,
		},
		OccurredAt: time.Now(),
	}
}
