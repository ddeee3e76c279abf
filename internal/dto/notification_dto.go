package dto

import "time"

// NotificationMessage is the payload pushed over the websocket when
// something the user waits on completes (e.g. a video analysis).
type NotificationMessage struct {
	Event     string                 `json:"event"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
