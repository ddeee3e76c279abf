package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-videochat-be/internal/dto"
	"ai-videochat-be/internal/repository/specification"
	"ai-videochat-be/internal/repository/unitofwork"
	"ai-videochat-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService backfills vectors for records persisted while the
// embedding provider was down. Vectors are written once; records that
// already carry one are skipped.
type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedRecordMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Backfilling embedding for %s record %s", payload.RecordKind, payload.RecordId)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	switch payload.RecordKind {
	case "chat":
		record, err := uow.ChatRecordRepository().FindOne(ctx, specification.ByID{ID: payload.RecordId})
		if err != nil {
			log.Printf("[ERROR] Failed to load chat record %s: %v", payload.RecordId, err)
			msg.Nack() // Retriable
			return
		}
		if record == nil {
			log.Printf("[WARN] Chat record %s gone, skipping", payload.RecordId)
			msg.Ack()
			return
		}
		if record.Vector != nil {
			msg.Ack() // Already backfilled
			return
		}

		res, err := cs.embeddingProvider.Generate(record.Message, "RETRIEVAL_DOCUMENT")
		if err != nil {
			log.Printf("[ERROR] Embedding still unavailable for record %s: %v", payload.RecordId, err)
			msg.Nack()
			return
		}

		if err := uow.ChatRecordRepository().UpdateEmbedding(ctx, record.Id, res.Embedding.Values); err != nil {
			log.Printf("[ERROR] Failed to write embedding for record %s: %v", payload.RecordId, err)
			msg.Nack()
			return
		}

	case "analysis":
		record, err := uow.AnalysisRecordRepository().FindOne(ctx, specification.ByID{ID: payload.RecordId})
		if err != nil {
			log.Printf("[ERROR] Failed to load analysis record %s: %v", payload.RecordId, err)
			msg.Nack()
			return
		}
		if record == nil {
			log.Printf("[WARN] Analysis record %s gone, skipping", payload.RecordId)
			msg.Ack()
			return
		}
		if record.Vector != nil {
			msg.Ack()
			return
		}

		res, err := cs.embeddingProvider.Generate(record.Analysis, "RETRIEVAL_DOCUMENT")
		if err != nil {
			log.Printf("[ERROR] Embedding still unavailable for record %s: %v", payload.RecordId, err)
			msg.Nack()
			return
		}

		if err := uow.AnalysisRecordRepository().UpdateEmbedding(ctx, record.Id, res.Embedding.Values); err != nil {
			log.Printf("[ERROR] Failed to write embedding for record %s: %v", payload.RecordId, err)
			msg.Nack()
			return
		}

	default:
		log.Printf("[WARN] Unknown record kind %q, skipping", payload.RecordKind)
	}

	msg.Ack()
}
