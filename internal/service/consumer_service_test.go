package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-videochat-be/internal/constant"
	"ai-videochat-be/internal/dto"
	"ai-videochat-be/internal/entity"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsumerFixture() (*fakeStore, *fakeEmbedder, *consumerService) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	svc := NewConsumerService(nil, "EMBED_CHAT_RECORD", &fakeFactory{store: store}, embedder).(*consumerService)
	return store, embedder, svc
}

func backfillMessage(t *testing.T, recordId uuid.UUID, kind string) *message.Message {
	t.Helper()
	payload, err := json.Marshal(dto.PublishEmbedRecordMessage{RecordId: recordId, RecordKind: kind})
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), payload)
}

func messageOutcome(msg *message.Message) string {
	select {
	case <-msg.Acked():
		return "ack"
	default:
	}
	select {
	case <-msg.Nacked():
		return "nack"
	default:
	}
	return "pending"
}

func TestProcessMessage_BackfillsChatRecord(t *testing.T) {
	store, _, svc := newConsumerFixture()

	id, _ := uuid.NewV7()
	store.records[id] = &entity.ChatRecord{
		Id:        id,
		Message:   "stored without a vector",
		ChatType:  constant.ChatTypeUser,
		CreatedAt: time.Now(),
	}

	msg := backfillMessage(t, id, "chat")
	svc.processMessage(context.Background(), msg)

	assert.Equal(t, "ack", messageOutcome(msg))
	require.NotNil(t, store.records[id].Vector)
	assert.Len(t, store.records[id].Vector, constant.EmbeddingDimension)
}

func TestProcessMessage_BackfillsAnalysisRecord(t *testing.T) {
	store, _, svc := newConsumerFixture()

	id, _ := uuid.NewV7()
	store.analyses[id] = &entity.AnalysisRecord{
		Id:        id,
		Analysis:  "an unembedded analysis",
		CreatedAt: time.Now(),
	}

	msg := backfillMessage(t, id, "analysis")
	svc.processMessage(context.Background(), msg)

	assert.Equal(t, "ack", messageOutcome(msg))
	require.NotNil(t, store.analyses[id].Vector)
}

func TestProcessMessage_SkipsAlreadyVectored(t *testing.T) {
	store, embedder, svc := newConsumerFixture()

	id, _ := uuid.NewV7()
	existing := []float32{1, 2, 3}
	store.records[id] = &entity.ChatRecord{
		Id:      id,
		Message: "already embedded",
		Vector:  existing,
	}

	msg := backfillMessage(t, id, "chat")
	svc.processMessage(context.Background(), msg)

	assert.Equal(t, "ack", messageOutcome(msg))
	assert.Zero(t, embedder.calls, "vector must be written once, never regenerated")
	assert.Equal(t, existing, store.records[id].Vector)
}

func TestProcessMessage_AcksMissingRecord(t *testing.T) {
	_, embedder, svc := newConsumerFixture()

	msg := backfillMessage(t, uuid.New(), "chat")
	svc.processMessage(context.Background(), msg)

	assert.Equal(t, "ack", messageOutcome(msg))
	assert.Zero(t, embedder.calls)
}

func TestProcessMessage_NacksWhenEmbeddingStillDown(t *testing.T) {
	store, embedder, svc := newConsumerFixture()
	embedder.fail = true

	id, _ := uuid.NewV7()
	store.records[id] = &entity.ChatRecord{Id: id, Message: "retry me"}

	msg := backfillMessage(t, id, "chat")
	svc.processMessage(context.Background(), msg)

	assert.Equal(t, "nack", messageOutcome(msg))
	assert.Nil(t, store.records[id].Vector)
}

func TestProcessMessage_AcksMalformedPayload(t *testing.T) {
	_, _, svc := newConsumerFixture()

	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	svc.processMessage(context.Background(), msg)

	assert.Equal(t, "ack", messageOutcome(msg))
}

func TestProcessMessage_AcksUnknownKind(t *testing.T) {
	_, embedder, svc := newConsumerFixture()

	msg := backfillMessage(t, uuid.New(), "banana")
	svc.processMessage(context.Background(), msg)

	assert.Equal(t, "ack", messageOutcome(msg))
	assert.Zero(t, embedder.calls)
}
