package listeners

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailbackup/dto"
	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/tracing"
	"github.com/customeros/mailbackup/services/events"
)

// SyncRequestedListener runs an out-of-schedule account synchronization.
type SyncRequestedListener struct {
	events.BaseEventListener
	syncService interfaces.SyncService
}

func NewSyncRequestedListener(logger logger.Logger, syncService interfaces.SyncService) interfaces.EventListener {
	return &SyncRequestedListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.SyncRequested](), // subscribed event
			events.QueueSyncRequests,                 // listening on Direct queue
		),
		syncService: syncService,
	}
}

func (l *SyncRequestedListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncRequestedListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	request, err := events.DecodeEventData[dto.SyncRequested](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if request.AccountID == "" {
		request.AccountID = validatedEvent.Event.AccountId
	}
	tracing.TagAccount(span, request.AccountID)

	summary, err := l.syncService.SyncAccountByID(ctx, request.AccountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	l.Logger().Infof("Requested sync of account %s finished: %s", request.AccountID, summary.Outcome)
	return nil
}
