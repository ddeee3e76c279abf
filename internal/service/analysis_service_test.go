package service

import (
	"context"
	"testing"
	"time"

	"ai-videochat-be/internal/constant"
	"ai-videochat-be/internal/entity"
	"ai-videochat-be/internal/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalysisFixture() (*fakeStore, IAnalysisService) {
	store := newFakeStore()
	svc := NewAnalysisService(
		&fakeFactory{store: store},
		nil, // file staging needs Redis, covered by validation tests only
		&fakeLLM{reply: "# Content Overview\nA short clip."},
		&fakeEmbedder{},
		&fakePublisher{},
		nil,
		nil,
		noopLogger{},
	)
	return store, svc
}

func TestAnalyzeVideo_Validation(t *testing.T) {
	_, svc := newAnalysisFixture()

	_, err := svc.AnalyzeVideo(context.Background(), uuid.New(), "", "video/mp4", []byte("data"), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.AnalyzeVideo(context.Background(), uuid.New(), "clip.mp4", "video/mp4", nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestGetAnalysisHistory(t *testing.T) {
	store, svc := newAnalysisFixture()
	userId := uuid.New()
	base := time.Now()

	for i := 0; i < 3; i++ {
		id, _ := uuid.NewV7()
		store.analyses[id] = &entity.AnalysisRecord{
			Id:             id,
			UserId:         userId,
			UploadFileName: "clip.mp4",
			Analysis:       "analysis",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
	}
	foreignId, _ := uuid.NewV7()
	store.analyses[foreignId] = &entity.AnalysisRecord{
		Id: foreignId, UserId: uuid.New(), UploadFileName: "other.mp4", CreatedAt: base,
	}

	history, err := svc.GetAnalysisHistory(context.Background(), userId, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// Newest first.
	assert.True(t, history[0].CreatedAt.After(history[1].CreatedAt))
	assert.True(t, history[1].CreatedAt.After(history[2].CreatedAt))

	limited, err := svc.GetAnalysisHistory(context.Background(), userId, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestFormatMetadata_SortedAndStable(t *testing.T) {
	got := formatMetadata(map[string]interface{}{
		"size_bytes": 2048,
		"duration":   "00:01:30",
		"codec":      "h264",
	})

	want := "  - codec: h264\n  - duration: 00:01:30\n  - size_bytes: 2048\n"
	assert.Equal(t, want, got)
}

func TestGetAnalysisHistory_DefaultLimit(t *testing.T) {
	store, svc := newAnalysisFixture()
	userId := uuid.New()
	base := time.Now()

	for i := 0; i < constant.AnalysisHistoryDefaultLimit+5; i++ {
		id, _ := uuid.NewV7()
		store.analyses[id] = &entity.AnalysisRecord{
			Id:        id,
			UserId:    userId,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}

	history, err := svc.GetAnalysisHistory(context.Background(), userId, 0)
	require.NoError(t, err)
	assert.Len(t, history, constant.AnalysisHistoryDefaultLimit)
}
