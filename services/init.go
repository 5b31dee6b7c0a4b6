package services

import (
	"github.com/customeros/mailbackup/config"
	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/repository"
	"github.com/customeros/mailbackup/services/events"
	"github.com/customeros/mailbackup/services/storage"
	mailsync "github.com/customeros/mailbackup/services/sync"
)

type Services struct {
	EventsService  *events.EventsService
	StorageService interfaces.StorageService
	SyncService    interfaces.SyncService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	// events
	publisherConfig := &events.PublisherConfig{
		MessageTTL:          events.DefaultMessageTTL,
		MaxRetries:          events.DefaultMaxRetries,
		PublishTimeout:      events.DefaultPublishTimeout,
		ReconnectBackoff:    events.DefaultReconnectBackoff,
		MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
	}

	subscriberConfig := &events.SubscriberConfig{
		MaxRetries:          events.DefaultMaxRetries,
		ReconnectBackoff:    events.DefaultReconnectBackoff,
		MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
	}

	eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, publisherConfig, subscriberConfig)
	if err != nil {
		return nil, err
	}

	storageService, err := storage.NewStorageService(cfg.StorageConfig)
	if err != nil {
		eventsService.Close()
		return nil, err
	}

	services := Services{
		EventsService:  eventsService,
		StorageService: storageService,
		SyncService:    mailsync.NewEngine(cfg.SyncConfig, log, repos, storageService, eventsService.Publisher),
	}

	return &services, nil
}

func (s *Services) Close() error {
	return s.EventsService.Close()
}
