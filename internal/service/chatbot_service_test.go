package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-videochat-be/internal/constant"
	"ai-videochat-be/internal/dto"
	"ai-videochat-be/internal/entity"
	"ai-videochat-be/internal/pkg/apperrors"
	"ai-videochat-be/internal/repository/contract"
	"ai-videochat-be/internal/repository/memory"
	"ai-videochat-be/internal/repository/specification"
	"ai-videochat-be/internal/repository/unitofwork"
	"ai-videochat-be/pkg/embedding"
	"ai-videochat-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- In-memory doubles -----------------------------------------------------

type fakeStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*entity.User
	sessions map[uuid.UUID]*entity.ChatSession
	records  map[uuid.UUID]*entity.ChatRecord
	analyses map[uuid.UUID]*entity.AnalysisRecord

	chatHits     []*entity.ScoredChatRecord
	analysisHits []*contract.ScoredAnalysisRecord

	lastChatSearchK         int
	lastChatSearchSessionId *uuid.UUID
	analysisSearchCalls     int

	began     int
	committed int
	rolled    int

	failCreateRecord bool
	failFindRecords  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[uuid.UUID]*entity.User),
		sessions: make(map[uuid.UUID]*entity.ChatSession),
		records:  make(map[uuid.UUID]*entity.ChatRecord),
		analyses: make(map[uuid.UUID]*entity.AnalysisRecord),
	}
}

type fakeUow struct{ store *fakeStore }

func (u *fakeUow) Begin(ctx context.Context) error {
	u.store.began++
	return nil
}
func (u *fakeUow) Commit() error {
	u.store.committed++
	return nil
}
func (u *fakeUow) Rollback() error {
	u.store.rolled++
	return nil
}
func (u *fakeUow) UserRepository() contract.UserRepository {
	return &fakeUserRepo{store: u.store}
}
func (u *fakeUow) ChatSessionRepository() contract.ChatSessionRepository {
	return &fakeSessionRepo{store: u.store}
}
func (u *fakeUow) ChatRecordRepository() contract.ChatRecordRepository {
	return &fakeRecordRepo{store: u.store}
}
func (u *fakeUow) AnalysisRecordRepository() contract.AnalysisRecordRepository {
	return &fakeAnalysisRepo{store: u.store}
}

type fakeFactory struct{ store *fakeStore }

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{store: f.store}
}

// specFilter extracts the filter values the service composes its queries from.
type specFilter struct {
	id        *uuid.UUID
	userId    *uuid.UUID
	sessionId *uuid.UUID
	email     string
	limit     int
}

func parseSpecs(specs []specification.Specification) specFilter {
	var f specFilter
	for _, s := range specs {
		switch v := s.(type) {
		case specification.ByID:
			id := v.ID
			f.id = &id
		case specification.UserOwnedBy:
			id := v.UserID
			f.userId = &id
		case specification.ByChatSessionID:
			id := v.ChatSessionID
			f.sessionId = &id
		case specification.ByEmail:
			f.email = v.Email
		case specification.Pagination:
			f.limit = v.Limit
		}
	}
	return f
}

type fakeUserRepo struct{ store *fakeStore }

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.users[user.Id] = user
	return nil
}

func (r *fakeUserRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	for _, u := range r.store.users {
		if f.id != nil && u.Id != *f.id {
			continue
		}
		if f.email != "" && u.Email != f.email {
			continue
		}
		return u, nil
	}
	return nil, nil
}

type fakeSessionRepo struct{ store *fakeStore }

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.ChatSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sessions[session.Id] = session
	return nil
}

func (r *fakeSessionRepo) Rename(ctx context.Context, id uuid.UUID, title string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s, ok := r.store.sessions[id]; ok {
		s.Title = title
	}
	return nil
}

func (r *fakeSessionRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s, ok := r.store.sessions[id]; ok {
		t := at
		s.UpdatedAt = &t
	}
	return nil
}

func (r *fakeSessionRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s, ok := r.store.sessions[id]; ok {
		now := time.Now()
		s.DeletedAt = &now
		s.IsDeleted = true
	}
	return nil
}

func (r *fakeSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	for _, s := range r.store.sessions {
		if s.IsDeleted {
			continue
		}
		if f.id != nil && s.Id != *f.id {
			continue
		}
		if f.userId != nil && s.UserId != *f.userId {
			continue
		}
		return s, nil
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	out := make([]*entity.ChatSession, 0)
	for _, s := range r.store.sessions {
		if s.IsDeleted {
			continue
		}
		if f.userId != nil && s.UserId != *f.userId {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].CreatedAt, out[j].CreatedAt
		if out[i].UpdatedAt != nil {
			ti = *out[i].UpdatedAt
		}
		if out[j].UpdatedAt != nil {
			tj = *out[j].UpdatedAt
		}
		return ti.After(tj)
	})
	return out, nil
}

func (r *fakeSessionRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

type fakeRecordRepo struct{ store *fakeStore }

func (r *fakeRecordRepo) Create(ctx context.Context, record *entity.ChatRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failCreateRecord {
		return errors.New("insert failed")
	}
	r.store.records[record.Id] = record
	return nil
}

func (r *fakeRecordRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if rec, ok := r.store.records[id]; ok {
		rec.IsDeleted = true
	}
	return nil
}

func (r *fakeRecordRepo) SoftDeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rec := range r.store.records {
		if rec.ChatSessionId == sessionId {
			rec.IsDeleted = true
		}
	}
	return nil
}

func (r *fakeRecordRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	if f.id != nil {
		if rec, ok := r.store.records[*f.id]; ok && !rec.IsDeleted {
			return rec, nil
		}
	}
	return nil, nil
}

func (r *fakeRecordRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failFindRecords {
		return nil, errors.New("select failed")
	}
	f := parseSpecs(specs)
	out := make([]*entity.ChatRecord, 0)
	for _, rec := range r.store.records {
		if rec.IsDeleted {
			continue
		}
		if f.sessionId != nil && rec.ChatSessionId != *f.sessionId {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (r *fakeRecordRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

func (r *fakeRecordRepo) SearchSimilar(ctx context.Context, queryVector []float32, k int, userId uuid.UUID, sessionId *uuid.UUID) ([]*entity.ScoredChatRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.lastChatSearchK = k
	r.store.lastChatSearchSessionId = sessionId
	if len(r.store.chatHits) > k {
		return r.store.chatHits[:k], nil
	}
	return r.store.chatHits, nil
}

func (r *fakeRecordRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if rec, ok := r.store.records[id]; ok {
		rec.Vector = vector
	}
	return nil
}

type fakeAnalysisRepo struct{ store *fakeStore }

func (r *fakeAnalysisRepo) Create(ctx context.Context, record *entity.AnalysisRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.analyses[record.Id] = record
	return nil
}

func (r *fakeAnalysisRepo) SoftDelete(ctx context.Context, id uuid.UUID) error { return nil }

func (r *fakeAnalysisRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.AnalysisRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	if f.id != nil {
		if rec, ok := r.store.analyses[*f.id]; ok && !rec.IsDeleted {
			return rec, nil
		}
	}
	return nil, nil
}

func (r *fakeAnalysisRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AnalysisRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	f := parseSpecs(specs)
	out := make([]*entity.AnalysisRecord, 0)
	for _, rec := range r.store.analyses {
		if rec.IsDeleted {
			continue
		}
		if f.userId != nil && rec.UserId != *f.userId {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.limit > 0 && len(out) > f.limit {
		out = out[:f.limit]
	}
	return out, nil
}

func (r *fakeAnalysisRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}

func (r *fakeAnalysisRepo) SearchSimilar(ctx context.Context, queryVector []float32, k int, userId uuid.UUID) ([]*contract.ScoredAnalysisRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.analysisSearchCalls++
	if len(r.store.analysisHits) > k {
		return r.store.analysisHits[:k], nil
	}
	return r.store.analysisHits, nil
}

func (r *fakeAnalysisRepo) UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if rec, ok := r.store.analyses[id]; ok {
		rec.Vector = vector
	}
	return nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (f *fakeEmbedder) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("embedding provider down")
	}
	values := make([]float32, constant.EmbeddingDimension)
	values[0] = 1
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: values},
	}, nil
}

type fakeLLM struct {
	reply    string
	fail     bool
	messages []llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.messages = history
	if f.fail {
		return "", errors.New("model unavailable")
	}
	return f.reply, nil
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakePublisher) Publish(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(module, message string, details map[string]interface{}) {}
func (noopLogger) Info(module, message string, details map[string]interface{})  {}
func (noopLogger) Warn(module, message string, details map[string]interface{})  {}
func (noopLogger) Error(module, message string, details map[string]interface{}) {}
func (noopLogger) Sync() error                                                  { return nil }

// ---- Fixture ---------------------------------------------------------------

type chatbotFixture struct {
	store     *fakeStore
	embedder  *fakeEmbedder
	model     *fakeLLM
	publisher *fakePublisher
	cache     *memory.HistoryCache
	service   IChatbotService
}

func newChatbotFixture() *chatbotFixture {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	model := &fakeLLM{reply: "Here is my answer."}
	publisher := &fakePublisher{}
	cache := memory.NewHistoryCache(time.Hour, 10*time.Minute)

	svc := NewChatbotService(
		&fakeFactory{store: store},
		embedder,
		model,
		cache,
		publisher,
		noopLogger{},
	)

	return &chatbotFixture{
		store:     store,
		embedder:  embedder,
		model:     model,
		publisher: publisher,
		cache:     cache,
		service:   svc,
	}
}

func (f *chatbotFixture) seedSession(userId uuid.UUID, title string) *entity.ChatSession {
	id, _ := uuid.NewV7()
	s := &entity.ChatSession{Id: id, UserId: userId, Title: title, CreatedAt: time.Now()}
	f.store.sessions[s.Id] = s
	return s
}

// ---- Tests -----------------------------------------------------------------

func TestCreateSession(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()

	resp, err := f.service.CreateSession(context.Background(), userId)
	require.NoError(t, err)
	assert.Equal(t, constant.DefaultSessionTitle, resp.Title)

	stored := f.store.sessions[resp.Id]
	require.NotNil(t, stored)
	assert.Equal(t, userId, stored.UserId)
}

func TestSendChat_HappyPath(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()
	sess := f.seedSession(userId, constant.DefaultSessionTitle)

	resp, err := f.service.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &sess.Id,
		Message:       "What did my last video show?",
	})
	require.NoError(t, err)

	assert.Equal(t, sess.Id, resp.ChatSessionId)
	assert.Equal(t, constant.ChatTypeUser, resp.Sent.ChatType)
	assert.Equal(t, constant.ChatTypeAssistant, resp.Reply.ChatType)
	assert.Equal(t, "Here is my answer.", resp.Reply.Message)
	assert.True(t, resp.Sent.CreatedAt.Before(resp.Reply.CreatedAt))

	// Both records committed inside one transaction.
	assert.Len(t, f.store.records, 2)
	assert.Equal(t, 1, f.store.began)
	assert.Equal(t, 1, f.store.committed)

	// First message becomes the session title and updated_at moves.
	assert.Equal(t, "What did my last video show?", f.store.sessions[sess.Id].Title)
	assert.NotNil(t, f.store.sessions[sess.Id].UpdatedAt)

	// Cache mirrors the committed records.
	assert.Equal(t, 2, f.cache.Len(sess.Id))

	// No backfill when embedding succeeded.
	assert.Empty(t, f.publisher.payloads)
}

func TestSendChat_CreatesSessionLazily(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()

	resp, err := f.service.SendChat(context.Background(), userId, &dto.SendChatRequest{
		Message: "hello there",
	})
	require.NoError(t, err)

	require.NotNil(t, f.store.sessions[resp.ChatSessionId])
	assert.Equal(t, "hello there", resp.ChatSessionTitle)
	assert.Len(t, f.store.records, 2)
}

func TestSendChat_EmptyMessageRejected(t *testing.T) {
	f := newChatbotFixture()

	_, err := f.service.SendChat(context.Background(), uuid.New(), &dto.SendChatRequest{Message: "   "})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, f.store.records)
}

func TestSendChat_UnknownSession(t *testing.T) {
	f := newChatbotFixture()
	missing := uuid.New()

	_, err := f.service.SendChat(context.Background(), uuid.New(), &dto.SendChatRequest{
		ChatSessionId: &missing,
		Message:       "hi",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSendChat_ForeignSessionLooksMissing(t *testing.T) {
	f := newChatbotFixture()
	owner := uuid.New()
	sess := f.seedSession(owner, "private")

	_, err := f.service.SendChat(context.Background(), uuid.New(), &dto.SendChatRequest{
		ChatSessionId: &sess.Id,
		Message:       "hi",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSendChat_TitleTruncation(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()
	sess := f.seedSession(userId, constant.DefaultSessionTitle)

	long := strings.Repeat("a", 45)
	_, err := f.service.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &sess.Id,
		Message:       long,
	})
	require.NoError(t, err)

	want := strings.Repeat("a", constant.SessionTitleMaxLen) + constant.SessionTitleEllipsis
	assert.Equal(t, want, f.store.sessions[sess.Id].Title)
}

func TestSendChat_TitleRefreshKeepsCreationTime(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()
	sess := f.seedSession(userId, constant.DefaultSessionTitle)
	createdAt := sess.CreatedAt

	_, err := f.service.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &sess.Id,
		Message:       "first message",
	})
	require.NoError(t, err)

	stored := f.store.sessions[sess.Id]
	assert.Equal(t, "first message", stored.Title)
	// The rename touches the title column only; created_at is immutable
	// after creation and must never regress to the zero time.
	assert.True(t, stored.CreatedAt.Equal(createdAt))
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestSendChat_LazySessionKeepsCreationTime(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()

	resp, err := f.service.SendChat(context.Background(), userId, &dto.SendChatRequest{
		Message: "implicit session",
	})
	require.NoError(t, err)

	stored := f.store.sessions[resp.ChatSessionId]
	require.NotNil(t, stored)
	assert.Equal(t, "implicit session", stored.Title)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestSendChat_TitleOnlySetOnFirstMessage(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()
	sess := f.seedSession(userId, constant.DefaultSessionTitle)

	_, err := f.service.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &sess.Id, Message: "first message",
	})
	require.NoError(t, err)
	_, err = f.service.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &sess.Id, Message: "second message",
	})
	require.NoError(t, err)

	assert.Equal(t, "first message", f.store.sessions[sess.Id].Title)
}

func TestSendChat_EmbeddingOutageDegrades(t *testing.T) {
	f := newChatbotFixture()
	f.embedder.fail = true
	userId := uuid.New()
	sess := f.seedSession(userId, constant.DefaultSessionTitle)

	resp, err := f.service.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &sess.Id,
		Message:       "still works without embeddings",
	})
	require.NoError(t, err)

	// Records persisted with nil vectors.
	require.Len(t, f.store.records, 2)
	for _, rec := range f.store.records {
		assert.Nil(t, rec.Vector)
	}

	// One backfill message per unvectored record.
	require.Len(t, f.publisher.payloads, 2)
	seen := map[uuid.UUID]string{}
	for _, p := range f.publisher.payloads {
		var msg dto.PublishEmbedRecordMessage
		require.NoError(t, json.Unmarshal(p, &msg))
		assert.Equal(t, "chat", msg.RecordKind)
		seen[msg.RecordId] = msg.RecordKind
	}
	assert.Contains(t, seen, resp.Sent.Id)
	assert.Contains(t, seen, resp.Reply.Id)
}

func TestSendChat_LLMFailureIsFatal(t *testing.T) {
	f := newChatbotFixture()
	f.model.fail = true
	userId := uuid.New()
	sess := f.seedSession(userId, constant.DefaultSessionTitle)

	_, err := f.service.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &sess.Id,
		Message:       "hi",
	})
	require.Error(t, err)
	assert.Empty(t, f.store.records)
	assert.Zero(t, f.store.committed)
}

func TestSendChat_RetrievedContextReachesPrompt(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()
	sess := f.seedSession(userId, constant.DefaultSessionTitle)

	prior, _ := uuid.NewV7()
	f.store.chatHits = []*entity.ScoredChatRecord{{
		Record: &entity.ChatRecord{
			Id:        prior,
			Message:   "we discussed the drone footage",
			ChatType:  constant.ChatTypeUser,
			CreatedAt: time.Now().Add(-time.Hour),
		},
		Similarity: 0.91,
	}}

	_, err := f.service.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &sess.Id,
		Message:       "what about that footage?",
	})
	require.NoError(t, err)

	require.NotEmpty(t, f.model.messages)
	system := f.model.messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "we discussed the drone footage")
}

func TestGetChatHistory(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()
	sess := f.seedSession(userId, "chat")
	base := time.Now()

	for i := 0; i < 3; i++ {
		id, _ := uuid.NewV7()
		f.store.records[id] = &entity.ChatRecord{
			Id:            id,
			UserId:        userId,
			ChatSessionId: sess.Id,
			Message:       strings.Repeat("m", i+1),
			ChatType:      constant.ChatTypeUser,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}
	}

	history, err := f.service.GetChatHistory(context.Background(), userId, sess.Id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m", history[0].Message)
	assert.Equal(t, "mmm", history[2].Message)

	_, err = f.service.GetChatHistory(context.Background(), uuid.New(), sess.Id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetChatHistory_ServesStaleAfterStoreOutage(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()
	sess := f.seedSession(userId, "chat")

	id, _ := uuid.NewV7()
	f.store.records[id] = &entity.ChatRecord{
		Id:            id,
		UserId:        userId,
		ChatSessionId: sess.Id,
		Message:       "remembered",
		ChatType:      constant.ChatTypeUser,
		CreatedAt:     time.Now(),
	}

	_, err := f.service.GetChatHistory(context.Background(), userId, sess.Id)
	require.NoError(t, err)

	// The entry is demoted and the store goes down; readers still get the
	// resident copy instead of an error.
	f.cache.Invalidate(sess.Id)
	f.store.failFindRecords = true

	history, err := f.service.GetChatHistory(context.Background(), userId, sess.Id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "remembered", history[0].Message)

	// With nothing resident the outage surfaces.
	f.cache.Delete(sess.Id)
	_, err = f.service.GetChatHistory(context.Background(), userId, sess.Id)
	require.Error(t, err)
	assert.True(t, apperrors.IsStoreUnavailable(err))
}

func TestGetAllSessions_OrderedByRecency(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()

	older := f.seedSession(userId, "older")
	newer := f.seedSession(userId, "newer")
	f.seedSession(uuid.New(), "someone else's")

	past := time.Now().Add(-time.Hour)
	now := time.Now()
	older.UpdatedAt = &past
	newer.UpdatedAt = &now

	sessions, err := f.service.GetAllSessions(context.Background(), userId)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "newer", sessions[0].Title)
	assert.Equal(t, "older", sessions[1].Title)
}

func TestDeleteSession(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()
	sess := f.seedSession(userId, "doomed")

	recId, _ := uuid.NewV7()
	f.store.records[recId] = &entity.ChatRecord{
		Id: recId, UserId: userId, ChatSessionId: sess.Id,
		Message: "bye", ChatType: constant.ChatTypeUser, CreatedAt: time.Now(),
	}

	err := f.service.DeleteSession(context.Background(), userId, &dto.DeleteSessionRequest{ChatSessionId: sess.Id})
	require.NoError(t, err)

	assert.True(t, f.store.sessions[sess.Id].IsDeleted)
	assert.True(t, f.store.records[recId].IsDeleted)
	assert.Equal(t, 0, f.cache.Len(sess.Id))

	// The session is now invisible.
	err = f.service.DeleteSession(context.Background(), userId, &dto.DeleteSessionRequest{ChatSessionId: sess.Id})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSearchMemory_Validation(t *testing.T) {
	f := newChatbotFixture()

	_, err := f.service.SearchMemory(context.Background(), uuid.New(), "  ", 5, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSearchMemory_EmbeddingOutageIsFatal(t *testing.T) {
	f := newChatbotFixture()
	f.embedder.fail = true

	_, err := f.service.SearchMemory(context.Background(), uuid.New(), "query", 5, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsEmbeddingUnavailable(err))
}

func TestSearchMemory_ClampsK(t *testing.T) {
	tests := []struct {
		name  string
		k     int
		wantK int
	}{
		{name: "zero falls back to default", k: 0, wantK: constant.SearchTopKDefault},
		{name: "negative falls back to default", k: -3, wantK: constant.SearchTopKDefault},
		{name: "above max clamps to max", k: 5000, wantK: constant.SearchTopKMax},
		{name: "in range passes through", k: 7, wantK: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChatbotFixture()
			_, err := f.service.SearchMemory(context.Background(), uuid.New(), "query", tt.k, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantK, f.store.lastChatSearchK)
		})
	}
}

func TestSearchMemory_MergesAndRanks(t *testing.T) {
	f := newChatbotFixture()
	userId := uuid.New()

	chatId, _ := uuid.NewV7()
	analysisId, _ := uuid.NewV7()
	f.store.chatHits = []*entity.ScoredChatRecord{{
		Record:     &entity.ChatRecord{Id: chatId, Message: "about cats", CreatedAt: time.Now()},
		Similarity: 0.72,
	}}
	f.store.analysisHits = []*contract.ScoredAnalysisRecord{{
		Record:     &entity.AnalysisRecord{Id: analysisId, Analysis: "a cat video", CreatedAt: time.Now()},
		Similarity: 0.88,
	}}

	results, err := f.service.SearchMemory(context.Background(), userId, "cats", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "analysis", results[0].Kind)
	assert.Equal(t, "a cat video", results[0].Content)
	assert.Equal(t, "chat", results[1].Kind)
	assert.Equal(t, "about cats", results[1].Content)
}

func TestSearchMemory_SessionScopeSkipsAnalyses(t *testing.T) {
	f := newChatbotFixture()
	sessionId := uuid.New()

	f.store.analysisHits = []*contract.ScoredAnalysisRecord{{
		Record:     &entity.AnalysisRecord{Id: uuid.New(), Analysis: "should not appear", CreatedAt: time.Now()},
		Similarity: 0.99,
	}}

	results, err := f.service.SearchMemory(context.Background(), uuid.New(), "query", 5, &sessionId)
	require.NoError(t, err)

	assert.Empty(t, results)
	assert.Zero(t, f.store.analysisSearchCalls)
	require.NotNil(t, f.store.lastChatSearchSessionId)
	assert.Equal(t, sessionId, *f.store.lastChatSearchSessionId)
}

func TestDeriveSessionTitle(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "short message kept as is", message: "Hello world", want: "Hello world"},
		{name: "whitespace trimmed", message: "  Hi  ", want: "Hi"},
		{
			name:    "exactly max length kept",
			message: strings.Repeat("x", constant.SessionTitleMaxLen),
			want:    strings.Repeat("x", constant.SessionTitleMaxLen),
		},
		{
			name:    "long message truncated with ellipsis",
			message: strings.Repeat("x", constant.SessionTitleMaxLen+1),
			want:    strings.Repeat("x", constant.SessionTitleMaxLen) + constant.SessionTitleEllipsis,
		},
		{
			name:    "multibyte runes counted as runes",
			message: strings.Repeat("é", constant.SessionTitleMaxLen),
			want:    strings.Repeat("é", constant.SessionTitleMaxLen),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveSessionTitle(tt.message))
		})
	}
}
