package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"ai-videochat-be/internal/constant"
	"ai-videochat-be/internal/dto"
	"ai-videochat-be/internal/entity"
	"ai-videochat-be/internal/pkg/apperrors"
	"ai-videochat-be/internal/pkg/logger"
	"ai-videochat-be/internal/repository/memory"
	"ai-videochat-be/internal/repository/specification"
	"ai-videochat-be/internal/repository/unitofwork"
	"ai-videochat-be/pkg/embedding"
	"ai-videochat-be/pkg/llm"

	"github.com/google/uuid"
)

// IChatbotService defines the chatbot service interface
type IChatbotService interface {
	CreateSession(ctx context.Context, userId uuid.UUID) (*dto.CreateSessionResponse, error)
	GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error)
	GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	DeleteSession(ctx context.Context, userId uuid.UUID, request *dto.DeleteSessionRequest) error
	SearchMemory(ctx context.Context, userId uuid.UUID, query string, k int, sessionId *uuid.UUID) ([]*dto.SearchMemoryResponse, error)
}

type chatbotService struct {
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	llmProvider       llm.LLMProvider
	historyCache      *memory.HistoryCache
	publisherService  IPublisherService
	log               logger.ILogger
}

func NewChatbotService(
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	llmProvider llm.LLMProvider,
	historyCache *memory.HistoryCache,
	publisherService IPublisherService,
	log logger.ILogger,
) IChatbotService {
	return &chatbotService{
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		llmProvider:       llmProvider,
		historyCache:      historyCache,
		publisherService:  publisherService,
		log:               log,
	}
}

// CreateSession creates a new chat session with the default title.
func (cs *chatbotService) CreateSession(ctx context.Context, userId uuid.UUID) (*dto.CreateSessionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	chatSession := entity.ChatSession{
		Id:        id,
		UserId:    userId,
		Title:     constant.DefaultSessionTitle,
		CreatedAt: time.Now(),
	}

	if err := uow.ChatSessionRepository().Create(ctx, &chatSession); err != nil {
		return nil, apperrors.NewStoreUnavailable("create session", err)
	}

	return &dto.CreateSessionResponse{Id: chatSession.Id, Title: chatSession.Title}, nil
}

// GetAllSessions lists the user's sessions, most recently active first. The
// listing never touches per-session transcripts or the history cache.
func (cs *chatbotService) GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatSessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("list sessions", err)
	}

	response := make([]*dto.GetAllSessionsResponse, 0, len(chatSessions))
	for _, s := range chatSessions {
		response = append(response, &dto.GetAllSessionsResponse{
			Id:        s.Id,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}

	return response, nil
}

// GetChatHistory returns a session transcript in chronological order,
// serving repeat reads from the history cache.
func (cs *chatbotService) GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	sess, err := cs.verifySession(ctx, uow, userId, sessionId)
	if err != nil {
		return nil, err
	}

	records, err := cs.loadTranscript(ctx, sess.Id)
	if err != nil {
		return nil, err
	}

	// Cap the response at the most recent messages, oldest first.
	if len(records) > constant.ChatHistoryDefaultLimit {
		records = records[len(records)-constant.ChatHistoryDefaultLimit:]
	}

	resp := make([]*dto.GetChatHistoryResponse, 0, len(records))
	for _, r := range records {
		resp = append(resp, &dto.GetChatHistoryResponse{
			Id:        r.Id,
			ChatType:  r.ChatType,
			Message:   r.Message,
			CreatedAt: r.CreatedAt,
		})
	}

	return resp, nil
}

// SendChat appends the user message, builds a context-primed reply and
// appends the assistant message, all within one transaction.
func (cs *chatbotService) SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	if strings.TrimSpace(request.Message) == "" {
		return nil, apperrors.NewValidation("message", "must not be empty")
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	// Resolve or lazily create the session.
	var chatSession *entity.ChatSession
	var err error
	if request.ChatSessionId != nil {
		chatSession, err = cs.verifySession(ctx, uow, userId, *request.ChatSessionId)
		if err != nil {
			return nil, err
		}
	} else {
		created, err := cs.CreateSession(ctx, userId)
		if err != nil {
			return nil, err
		}
		chatSession = &entity.ChatSession{Id: created.Id, UserId: userId, Title: created.Title}
	}

	recordCount, err := uow.ChatRecordRepository().Count(ctx,
		specification.ByChatSessionID{ChatSessionID: chatSession.Id},
		specification.NotDeleted{},
	)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("count records", err)
	}
	isFirstMessage := recordCount == 0

	now := time.Now()

	// Embed the user message. A provider outage degrades to a nil vector,
	// it never blocks persistence.
	userVector, embedErr := cs.embedText(request.Message)

	// Retrieve related context across chats and analyses before the new
	// message is stored, so it can't match itself.
	var contextBlock string
	if userVector != nil {
		contextBlock = cs.buildRelatedContext(ctx, uow, userId, userVector)
	}

	transcript, err := cs.loadTranscript(ctx, chatSession.Id)
	if err != nil {
		cs.log.Warn("Chatbot", "Failed to load history for prompt, continuing without", map[string]interface{}{"error": err.Error()})
		transcript = nil
	}

	reply, err := cs.generateReply(ctx, transcript, contextBlock, request.Message)
	if err != nil {
		return nil, err
	}

	userRecordId, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	assistantRecordId, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	assistantVector, assistantEmbedErr := cs.embedText(reply)

	userRecord := &entity.ChatRecord{
		Id:            userRecordId,
		UserId:        userId,
		ChatSessionId: chatSession.Id,
		Message:       request.Message,
		ChatType:      constant.ChatTypeUser,
		Vector:        userVector,
		CreatedAt:     now,
	}
	assistantRecord := &entity.ChatRecord{
		Id:            assistantRecordId,
		UserId:        userId,
		ChatSessionId: chatSession.Id,
		Message:       reply,
		ChatType:      constant.ChatTypeAssistant,
		Vector:        assistantVector,
		CreatedAt:     now.Add(time.Millisecond),
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, apperrors.NewStoreUnavailable("begin transaction", err)
	}
	defer uow.Rollback()

	if err := uow.ChatRecordRepository().Create(ctx, userRecord); err != nil {
		return nil, apperrors.NewStoreUnavailable("append user record", err)
	}
	if err := uow.ChatRecordRepository().Create(ctx, assistantRecord); err != nil {
		return nil, apperrors.NewStoreUnavailable("append assistant record", err)
	}

	if isFirstMessage {
		title := deriveSessionTitle(request.Message)
		// Column-scoped rename: the rest of the row, created_at included,
		// never changes after creation.
		if err := uow.ChatSessionRepository().Rename(ctx, chatSession.Id, title); err != nil {
			return nil, apperrors.NewStoreUnavailable("rename session", err)
		}
		chatSession.Title = title
	}
	if err := uow.ChatSessionRepository().Touch(ctx, chatSession.Id, now); err != nil {
		return nil, apperrors.NewStoreUnavailable("touch session", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, apperrors.NewStoreUnavailable("commit", err)
	}

	// Mirror the committed records into the cache; duplicates are no-ops.
	cs.historyCache.Append(chatSession.Id, userRecord)
	cs.historyCache.Append(chatSession.Id, assistantRecord)

	// Queue embedding backfill for records stored without a vector.
	if embedErr != nil {
		cs.queueEmbedBackfill(ctx, userRecord.Id)
	}
	if assistantEmbedErr != nil {
		cs.queueEmbedBackfill(ctx, assistantRecord.Id)
	}

	return &dto.SendChatResponse{
		ChatSessionId:    chatSession.Id,
		ChatSessionTitle: chatSession.Title,
		Sent: &dto.SendChatResponseChat{
			Id:        userRecord.Id,
			Message:   userRecord.Message,
			ChatType:  userRecord.ChatType,
			CreatedAt: userRecord.CreatedAt,
		},
		Reply: &dto.SendChatResponseChat{
			Id:        assistantRecord.Id,
			Message:   assistantRecord.Message,
			ChatType:  assistantRecord.ChatType,
			CreatedAt: assistantRecord.CreatedAt,
		},
	}, nil
}

// DeleteSession soft-deletes a session and its records and drops the cache
// entry. Records stay on disk but become invisible everywhere.
func (cs *chatbotService) DeleteSession(ctx context.Context, userId uuid.UUID, request *dto.DeleteSessionRequest) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if _, err := cs.verifySession(ctx, uow, userId, request.ChatSessionId); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return apperrors.NewStoreUnavailable("begin transaction", err)
	}
	defer uow.Rollback()

	if err := uow.ChatSessionRepository().SoftDelete(ctx, request.ChatSessionId); err != nil {
		return apperrors.NewStoreUnavailable("delete session", err)
	}
	if err := uow.ChatRecordRepository().SoftDeleteByChatSessionId(ctx, request.ChatSessionId); err != nil {
		return apperrors.NewStoreUnavailable("delete session records", err)
	}

	if err := uow.Commit(); err != nil {
		return apperrors.NewStoreUnavailable("commit", err)
	}

	cs.historyCache.Delete(request.ChatSessionId)

	return nil
}

// SearchMemory runs similarity search over the user's chat and analysis
// history. k is clamped, never rejected; a nil sessionId searches everything
// the user owns.
func (cs *chatbotService) SearchMemory(ctx context.Context, userId uuid.UUID, query string, k int, sessionId *uuid.UUID) ([]*dto.SearchMemoryResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidation("query", "must not be empty")
	}
	if k <= 0 {
		k = constant.SearchTopKDefault
	}
	if k < constant.SearchTopKMin {
		k = constant.SearchTopKMin
	}
	if k > constant.SearchTopKMax {
		k = constant.SearchTopKMax
	}

	queryVector, err := cs.embedText(query)
	if err != nil {
		return nil, apperrors.NewEmbeddingUnavailable(err)
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatHits, err := uow.ChatRecordRepository().SearchSimilar(ctx, queryVector, k, userId, sessionId)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("search chat records", err)
	}

	results := make([]*dto.SearchMemoryResponse, 0, 2*k)
	for _, hit := range chatHits {
		results = append(results, &dto.SearchMemoryResponse{
			Id:         hit.Record.Id,
			Kind:       "chat",
			Content:    hit.Record.Message,
			Similarity: hit.Similarity,
			CreatedAt:  hit.Record.CreatedAt,
		})
	}

	// Analyses are owner-scoped, so they only join unscoped searches.
	if sessionId == nil {
		analysisHits, err := uow.AnalysisRecordRepository().SearchSimilar(ctx, queryVector, k, userId)
		if err != nil {
			return nil, apperrors.NewStoreUnavailable("search analysis records", err)
		}
		for _, hit := range analysisHits {
			results = append(results, &dto.SearchMemoryResponse{
				Id:         hit.Record.Id,
				Kind:       "analysis",
				Content:    hit.Record.Analysis,
				Similarity: hit.Similarity,
				CreatedAt:  hit.Record.CreatedAt,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// verifySession loads a session and checks ownership. Missing, foreign and
// soft-deleted sessions are indistinguishable to the caller.
func (cs *chatbotService) verifySession(ctx context.Context, uow unitofwork.UnitOfWork, userId, sessionId uuid.UUID) (*entity.ChatSession, error) {
	sess, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("load session", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", sessionId, apperrors.ErrNotFound)
	}
	return sess, nil
}

// loadTranscript serves a transcript from the cache, hydrating it from
// Postgres on first access.
func (cs *chatbotService) loadTranscript(ctx context.Context, sessionId uuid.UUID) ([]*entity.ChatRecord, error) {
	records, err := cs.historyCache.GetOrFetch(ctx, sessionId, func(ctx context.Context) ([]*entity.ChatRecord, error) {
		uow := cs.uowFactory.NewUnitOfWork(ctx)
		return uow.ChatRecordRepository().FindAll(ctx,
			specification.ByChatSessionID{ChatSessionID: sessionId},
			specification.NotDeleted{},
			specification.TranscriptOrder{},
		)
	})
	if err != nil {
		// Rehydration failed; a stale resident copy still beats an error.
		if stale, ok := cs.historyCache.Peek(sessionId); ok {
			cs.log.Warn("Chatbot", "Serving stale transcript, store fetch failed", map[string]interface{}{"chat_session_id": sessionId, "error": err.Error()})
			return stale, nil
		}
		return nil, apperrors.NewStoreUnavailable("fetch transcript", err)
	}
	return records, nil
}

// buildRelatedContext retrieves the nearest prior records and formats them
// for the system prompt. Retrieval failures degrade to no context.
func (cs *chatbotService) buildRelatedContext(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, queryVector []float32) string {
	var sb strings.Builder

	chatHits, err := uow.ChatRecordRepository().SearchSimilar(ctx, queryVector, constant.ContextRetrievalTopK, userId, nil)
	if err != nil {
		cs.log.Warn("Chatbot", "Context retrieval over chat records failed", map[string]interface{}{"error": err.Error()})
	}
	for _, hit := range chatHits {
		sb.WriteString(fmt.Sprintf("- [%s on %s] %s\n", hit.Record.ChatType, hit.Record.CreatedAt.Format(time.RFC3339), hit.Record.Message))
	}

	analysisHits, err := uow.AnalysisRecordRepository().SearchSimilar(ctx, queryVector, constant.ContextRetrievalTopK, userId)
	if err != nil {
		cs.log.Warn("Chatbot", "Context retrieval over analyses failed", map[string]interface{}{"error": err.Error()})
	}
	for _, hit := range analysisHits {
		sb.WriteString(fmt.Sprintf("- [video analysis of %s] %s\n", hit.Record.UploadFileName, hit.Record.Analysis))
	}

	if sb.Len() == 0 {
		return ""
	}
	return constant.RelatedContextPrompt + sb.String()
}

// generateReply builds the prompt from system instructions, retrieved
// context and recent transcript, then calls the model.
func (cs *chatbotService) generateReply(ctx context.Context, transcript []*entity.ChatRecord, contextBlock, userMessage string) (string, error) {
	system := constant.ChatSystemPrompt
	if contextBlock != "" {
		system = system + "\n\n" + contextBlock
	}

	messages := make([]llm.Message, 0, len(transcript)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})

	// Recent window only, the full transcript may be long.
	if len(transcript) > constant.ChatHistoryDefaultLimit {
		transcript = transcript[len(transcript)-constant.ChatHistoryDefaultLimit:]
	}
	for _, r := range transcript {
		messages = append(messages, llm.Message{Role: r.ChatType, Content: r.Message})
	}
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})

	reply, err := cs.llmProvider.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("llm chat failed: %w", err)
	}
	return reply, nil
}

// embedText generates a normalized embedding for storage and search.
func (cs *chatbotService) embedText(text string) ([]float32, error) {
	res, err := cs.embeddingProvider.Generate(text, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return nil, err
	}
	return res.Embedding.Values, nil
}

func (cs *chatbotService) queueEmbedBackfill(ctx context.Context, recordId uuid.UUID) {
	payload := dto.PublishEmbedRecordMessage{
		RecordId:   recordId,
		RecordKind: "chat",
	}
	payloadJson, _ := json.Marshal(payload)
	if err := cs.publisherService.Publish(ctx, payloadJson); err != nil {
		cs.log.Error("Chatbot", "Failed to queue embedding backfill", map[string]interface{}{
			"record_id": recordId,
			"error":     err.Error(),
		})
	}
}

// deriveSessionTitle turns the first user message into the session title.
func deriveSessionTitle(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) <= constant.SessionTitleMaxLen {
		return string(runes)
	}
	return string(runes[:constant.SessionTitleMaxLen]) + constant.SessionTitleEllipsis
}
