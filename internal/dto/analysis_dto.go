package dto

import (
	"time"

	"github.com/google/uuid"
)

type AnalyzeVideoResponse struct {
	Id             uuid.UUID              `json:"id"`
	UploadFileName string                 `json:"upload_file_name"`
	Analysis       string                 `json:"analysis"`
	VideoDuration  *string                `json:"video_duration,omitempty"`
	VideoFormat    *string                `json:"video_format,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"timestamp"`
}

type GetAnalysisHistoryResponse struct {
	Id             uuid.UUID `json:"id"`
	UploadFileName string    `json:"upload_file_name"`
	Analysis       string    `json:"analysis"`
	VideoDuration  *string   `json:"video_duration,omitempty"`
	VideoFormat    *string   `json:"video_format,omitempty"`
	CreatedAt      time.Time `json:"timestamp"`
}
