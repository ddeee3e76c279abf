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

type AnalysisRecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AnalysisMapper
}

func NewAnalysisRecordRepository(db *gorm.DB) contract.AnalysisRecordRepository {
	return &AnalysisRecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewAnalysisMapper(),
	}
}

func (r *AnalysisRecordRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *AnalysisRecordRepositoryImpl) Create(ctx context.Context, record *entity.AnalysisRecord) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *AnalysisRecordRepositoryImpl) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.AnalysisRecord{}, id).Error
}

func (r *AnalysisRecordRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.AnalysisRecord, error) {
	var m model.AnalysisRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *AnalysisRecordRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AnalysisRecord, error) {
	var models []*model.AnalysisRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.AnalysisRecord, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *AnalysisRecordRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.AnalysisRecord{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AnalysisRecordRepositoryImpl) SearchSimilar(ctx context.Context, queryVector []float32, k int, userId uuid.UUID) ([]*contract.ScoredAnalysisRecord, error) {
	if k < constant.SearchTopKMin {
		k = constant.SearchTopKMin
	}
	if k > constant.SearchTopKMax {
		k = constant.SearchTopKMax
	}

	type result struct {
		model.AnalysisRecord
		Similarity float64
	}
	var results []result

	qv := pgvector.NewVector(queryVector)

	err := r.db.WithContext(ctx).
		Table("video_analysis_output").
		Select("video_analysis_output.*, 1 - (embedding <=> ?) as similarity", qv).
		Where("user_id = ?", userId).
		Where("embedding IS NOT NULL").
		Where("deleted_at IS NULL").
		Order("similarity DESC, created_at DESC").
		Limit(k).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredAnalysisRecord, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredAnalysisRecord{
			Record:     r.mapper.ToEntity(&res.AnalysisRecord),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}

func (r *AnalysisRecordRepositoryImpl) UpdateEmbedding(ctx context.Context, id uuid.UUID, vector []float32) error {
	return r.db.WithContext(ctx).
		Model(&model.AnalysisRecord{}).
		Where("id = ?", id).
		Update("embedding", pgvector.NewVector(vector)).Error
}
