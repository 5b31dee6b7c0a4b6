package events

import (
	"context"

	"github.com/customeros/mailbackup/dto"
	"github.com/customeros/mailbackup/internal/logger"
)

// NoopPublisher stands in when RabbitMQ is not configured; events are only logged.
type NoopPublisher struct {
	logger logger.Logger
}

func NewNoopPublisher(logger logger.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) PublishEmailArchived(ctx context.Context, event dto.EmailArchived) error {
	p.logger.Debugf("Email %s archived for account %s", event.MessageID, event.AccountID)
	return nil
}

func (p *NoopPublisher) PublishSyncCompleted(ctx context.Context, summary *dto.RunSummary) error {
	p.logger.Debugf("Sync run %s of account %s finished: %s", summary.RunID, summary.AccountID, summary.Outcome)
	return nil
}

func (p *NoopPublisher) PublishSyncRequested(ctx context.Context, request dto.SyncRequested) error {
	p.logger.Debugf("Sync requested for account %s", request.AccountID)
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
