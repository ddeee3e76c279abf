package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ai-videochat-be/internal/constant"
	"ai-videochat-be/internal/dto"
	"ai-videochat-be/internal/entity"
	"ai-videochat-be/internal/pkg/apperrors"
	"ai-videochat-be/internal/pkg/filestore"
	"ai-videochat-be/internal/pkg/logger"
	"ai-videochat-be/internal/repository/specification"
	"ai-videochat-be/internal/repository/unitofwork"
	"ai-videochat-be/internal/websocket"
	"ai-videochat-be/pkg/embedding"
	"ai-videochat-be/pkg/events"
	"ai-videochat-be/pkg/llm"
	pktNats "ai-videochat-be/pkg/nats"

	"github.com/google/uuid"
)

type IAnalysisService interface {
	AnalyzeVideo(ctx context.Context, userId uuid.UUID, fileName, contentType string, data []byte, metadata map[string]interface{}) (*dto.AnalyzeVideoResponse, error)
	GetAnalysisHistory(ctx context.Context, userId uuid.UUID, limit int) ([]*dto.GetAnalysisHistoryResponse, error)
}

type analysisService struct {
	uowFactory        unitofwork.RepositoryFactory
	fileStore         *filestore.RedisFileStore
	llmProvider       llm.LLMProvider
	embeddingProvider embedding.EmbeddingProvider
	publisherService  IPublisherService
	eventPublisher    *pktNats.Publisher
	hub               *websocket.Hub
	log               logger.ILogger
}

func NewAnalysisService(
	uowFactory unitofwork.RepositoryFactory,
	fileStore *filestore.RedisFileStore,
	llmProvider llm.LLMProvider,
	embeddingProvider embedding.EmbeddingProvider,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	hub *websocket.Hub,
	log logger.ILogger,
) IAnalysisService {
	return &analysisService{
		uowFactory:        uowFactory,
		fileStore:         fileStore,
		llmProvider:       llmProvider,
		embeddingProvider: embeddingProvider,
		publisherService:  publisherService,
		eventPublisher:    eventPublisher,
		hub:               hub,
		log:               log,
	}
}

// AnalyzeVideo stages the upload in Redis, asks the model for a structured
// analysis and persists the result as a searchable record.
func (s *analysisService) AnalyzeVideo(ctx context.Context, userId uuid.UUID, fileName, contentType string, data []byte, metadata map[string]interface{}) (*dto.AnalyzeVideoResponse, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, apperrors.NewValidation("file_name", "must not be empty")
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidation("file", "must not be empty")
	}

	// Stage the raw bytes so a failed analysis can be retried without a
	// re-upload. Keys expire on their own.
	stagedId, err := s.fileStore.Store(ctx, fileName, contentType, data)
	if err != nil {
		return nil, apperrors.NewValidation("file", err.Error())
	}
	defer func() {
		if err := s.fileStore.Delete(context.Background(), stagedId); err != nil {
			s.log.Warn("Analysis", "Failed to clear staged upload", map[string]interface{}{"staged_id": stagedId, "error": err.Error()})
		}
	}()

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["size_bytes"] = len(data)
	metadata["content_type"] = contentType

	prompt := fmt.Sprintf(constant.VideoAnalysisPromptTemplate, fileName, formatMetadata(metadata))
	analysis, err := s.llmProvider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("video analysis failed: %w", err)
	}

	vector, embedErr := func() ([]float32, error) {
		res, err := s.embeddingProvider.Generate(analysis, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, err
		}
		return res.Embedding.Values, nil
	}()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	format := strings.TrimPrefix(filepath.Ext(fileName), ".")
	var videoFormat *string
	if format != "" {
		videoFormat = &format
	}
	var videoDuration *string
	if d, ok := metadata["duration"].(string); ok && d != "" {
		videoDuration = &d
	}

	record := &entity.AnalysisRecord{
		Id:             id,
		UserId:         userId,
		UploadFileName: fileName,
		Analysis:       analysis,
		VideoDuration:  videoDuration,
		VideoFormat:    videoFormat,
		Metadata:       metadata,
		Vector:         vector,
		CreatedAt:      time.Now(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.AnalysisRecordRepository().Create(ctx, record); err != nil {
		return nil, apperrors.NewStoreUnavailable("create analysis record", err)
	}

	if embedErr != nil {
		payload := dto.PublishEmbedRecordMessage{RecordId: record.Id, RecordKind: "analysis"}
		payloadJson, _ := json.Marshal(payload)
		if err := s.publisherService.Publish(ctx, payloadJson); err != nil {
			s.log.Error("Analysis", "Failed to queue embedding backfill", map[string]interface{}{"record_id": record.Id, "error": err.Error()})
		}
	}

	// Notifications are auxiliary, failures never fail the request.
	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events.NewAnalysisCompletedEvent(userId, record.Id, fileName)); err != nil {
			s.log.Warn("Analysis", "Failed to publish ANALYSIS_COMPLETED event", map[string]interface{}{"error": err.Error()})
		}
	}
	if s.hub != nil {
		s.hub.Send(userId, dto.NotificationMessage{
			Event:     "ANALYSIS_COMPLETED",
			Message:   fmt.Sprintf("Analysis of %s is ready", fileName),
			Data:      map[string]interface{}{"record_id": record.Id.String()},
			CreatedAt: time.Now(),
		})
	}

	return &dto.AnalyzeVideoResponse{
		Id:             record.Id,
		UploadFileName: record.UploadFileName,
		Analysis:       record.Analysis,
		VideoDuration:  record.VideoDuration,
		VideoFormat:    record.VideoFormat,
		Metadata:       record.Metadata,
		CreatedAt:      record.CreatedAt,
	}, nil
}

// GetAnalysisHistory lists the user's analyses, newest first.
func (s *analysisService) GetAnalysisHistory(ctx context.Context, userId uuid.UUID, limit int) ([]*dto.GetAnalysisHistoryResponse, error) {
	if limit <= 0 {
		limit = constant.AnalysisHistoryDefaultLimit
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	records, err := uow.AnalysisRecordRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.NotDeleted{},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("list analyses", err)
	}

	resp := make([]*dto.GetAnalysisHistoryResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, &dto.GetAnalysisHistoryResponse{
			Id:             r.Id,
			UploadFileName: r.UploadFileName,
			Analysis:       r.Analysis,
			VideoDuration:  r.VideoDuration,
			VideoFormat:    r.VideoFormat,
			CreatedAt:      r.CreatedAt,
		})
	}

	return resp, nil
}

func formatMetadata(metadata map[string]interface{}) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  - %s: %v\n", k, metadata[k]))
	}
	return sb.String()
}
