package events

import (
	"fmt"

	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/logger"
)

type EventsService struct {
	Publisher  interfaces.EventPublisher
	Subscriber *RabbitMQSubscriber
}

// NewEventsService connects publisher and subscriber to RabbitMQ. Without a URL the
// publisher only logs and there is no subscriber.
func NewEventsService(rabbitmqURL string, log logger.Logger, publisherConfig *PublisherConfig, subscriberConfig *SubscriberConfig) (*EventsService, error) {
	if rabbitmqURL == "" {
		log.Warn("RABBITMQ_URL is not set, events will not be published")
		return &EventsService{Publisher: NewNoopPublisher(log)}, nil
	}

	publisher, err := NewRabbitMQPublisher(rabbitmqURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	subscriber, err := NewRabbitMQSubscriber(rabbitmqURL, log, subscriberConfig)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	return &EventsService{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// RegisterListeners subscribes each listener and starts consuming its queue.
func (s *EventsService) RegisterListeners(listeners ...interfaces.EventListener) error {
	if s.Subscriber == nil {
		return nil
	}
	queues := make(map[string]bool)
	for _, listener := range listeners {
		s.Subscriber.RegisterListener(listener)
		queues[listener.GetQueueName()] = true
	}
	for queue := range queues {
		if err := s.Subscriber.ListenQueue(queue); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventsService) Close() error {
	var errs []error

	if s.Subscriber != nil {
		if err := s.Subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing events service: %v", errs)
	}

	return nil
}
