package implementation

import (
	"context"
	"errors"

	"ai-videochat-be/internal/constant"
	"ai-videochat-be/internal/entity"
	"ai-videochat-be/internal/mapper"
	"ai-videochat-be/internal/model"
	"ai-videochat-be/internal/repository/contract"
	"ai-videochat-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ChatRecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatRecordRepository(db *gorm.DB) contract.ChatRecordRepository {
	return &ChatRecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatRecordRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatRecordRepositoryImpl) Create(ctx context.Context, record *entity.ChatRecord) error {
	m := r.mapper.ChatRecordToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ChatRecordToEntity(m)
	return nil
}

func (r *ChatRecordRepositoryImpl) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.ChatRecord{}, id).Error
}

func (r *ChatRecordRepositoryImpl) SoftDeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("chat_session_id = ?", sessionId).
		Delete(&model.ChatRecord{}).Error
}

func (r *ChatRecordRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatRecord, error) {
	var m model.ChatRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatRecordToEntity(&m), nil
}

func (r *ChatRecordRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatRecord, error) {
	var models []*model.ChatRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ChatRecord, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatRecordToEntity(m)
	}
	return entities, nil
}

func (r *ChatRecordRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatRecord{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChatRecordRepositoryImpl) SearchSimilar(ctx context.Context, queryVector []float32, k int, userId uuid.UUID, sessionId *uuid.UUID) ([]*entity.ScoredChatRecord, error) {
	if k < constant.SearchTopKMin {
		k = constant.SearchTopKMin
	}
	if k > constant.SearchTopKMax {
		k = constant.SearchTopKMax
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding <=> query) recovers the similarity. Rows without a
	// backfilled vector never match.
	type result struct {
		model.ChatRecord
		Similarity float64
	}
	var results []result

	qv := pgvector.NewVector(queryVector)

	query := r.db.WithContext(ctx).
		Table("user_chat_history").
		Select("user_chat_history.*, 1 - (embedding <=> ?) as similarity", qv).
		Where("user_id = ?", userId).
		Where("embedding IS NOT NULL").
		Where("deleted_at IS NULL")

	if sessionId != nil {
		query = query.Where("chat_session_id = ?", *sessionId)
	}

	err := query.
		Order("similarity DESC, created_at DESC").
		Limit(k).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*entity.ScoredChatRecord, len(results))
	for i, res := range results {
		scored[i] = &entity.ScoredChatRecord{
			Record:     r.mapper.ChatRecordToEntity(&res.ChatRecord),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (r *ChatRecordRepositoryImpl) UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	return r.db.WithContext(ctx).
		Model(&model.ChatRecord{}).
		Where("id = ?", id).
		Update("embedding", pgvector.NewVector(vector)).Error
}
