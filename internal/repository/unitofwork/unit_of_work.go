package unitofwork

import (
	"context"

	"ai-videochat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	ChatSessionRepository() contract.ChatSessionRepository
	ChatRecordRepository() contract.ChatRecordRepository
	AnalysisRecordRepository() contract.AnalysisRecordRepository
}
