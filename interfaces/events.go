package interfaces

import (
	"context"

	"github.com/customeros/mailbackup/dto"
)

type EventPublisher interface {
	PublishEmailArchived(ctx context.Context, event dto.EmailArchived) error
	PublishSyncCompleted(ctx context.Context, summary *dto.RunSummary) error
	PublishSyncRequested(ctx context.Context, request dto.SyncRequested) error
	Close() error
}

// EventListener handles one event type arriving on one queue
type EventListener interface {
	Handle(ctx context.Context, baseEvent any) error
	GetEventType() string
	GetQueueName() string
}
