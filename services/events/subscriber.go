package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/customeros/mailbackup/dto"
	"github.com/customeros/mailbackup/interfaces"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/tracing"
	"github.com/customeros/mailbackup/internal/utils"
)

const AppSourceListener = "mailbackup-listener"

type SubscriberConfig struct {
	MaxRetries          int
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
}

type RabbitMQSubscriber struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	url             string
	logger          logger.Logger
	config          SubscriberConfig
	listeners       map[string]interfaces.EventListener
	listenerMutex   sync.RWMutex
}

func NewRabbitMQSubscriber(rabbitmqURL string, logger logger.Logger, config *SubscriberConfig) (*RabbitMQSubscriber, error) {
	subscriber := newSubscriber(rabbitmqURL, logger, config)

	err := subscriber.connect()
	if err != nil {
		return nil, err
	}

	return subscriber, nil
}

func newSubscriber(rabbitmqURL string, logger logger.Logger, config *SubscriberConfig) *RabbitMQSubscriber {
	if config == nil {
		config = &SubscriberConfig{
			MaxRetries:          5,
			ReconnectBackoff:    time.Second,
			MaxReconnectBackoff: time.Second * 30,
		}
	}

	return &RabbitMQSubscriber{
		url:       rabbitmqURL,
		logger:    logger,
		config:    *config,
		listeners: make(map[string]interfaces.EventListener),
	}
}

func (r *RabbitMQSubscriber) RegisterListener(listener interfaces.EventListener) {
	r.listenerMutex.Lock()
	defer r.listenerMutex.Unlock()

	eventType := listener.GetEventType()
	r.listeners[eventType] = listener
	r.logger.Infof("Registered listener for event type: %s on queue: %s",
		eventType, listener.GetQueueName())
}

// ListenQueue consumes queueName in the background, re-subscribing after connection loss.
func (r *RabbitMQSubscriber) ListenQueue(queueName string) error {
	go func() {
		for {
			if err := r.consume(queueName); err != nil {
				r.logger.Errorf("Failed to consume queue %s: %v. Retrying...", queueName, err)
			} else {
				r.logger.Warnf("Connection lost for queue %s. Reconnecting...", queueName)
			}
			time.Sleep(r.config.ReconnectBackoff * 5)
		}
	}()

	return nil
}

func (r *RabbitMQSubscriber) consume(queueName string) error {
	r.connectionMutex.Lock()
	connection := r.connection
	r.connectionMutex.Unlock()
	if connection == nil || connection.IsClosed() {
		return errors.New("connection is closed")
	}

	channel, err := connection.Channel()
	if err != nil {
		return errors.Wrap(err, "open channel")
	}
	defer channel.Close()

	msgs, err := channel.Consume(
		queueName, // queue
		"",        // consumer tag
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return errors.Wrap(err, "register consumer")
	}

	r.logger.Infof("Listening for messages on queue %s", queueName)
	for d := range msgs {
		r.handleMessage(d, queueName)
	}
	return nil
}

func (r *RabbitMQSubscriber) handleMessage(d amqp091.Delivery, queueName string) {
	defer tracing.RecoverAndLogToJaeger(r.logger)

	err := r.processMessage(d.Body, queueName)
	if err != nil {
		r.logger.Errorf("Failed to process message on queue %s: %v", queueName, err)
		r.retryAckNack(d, false)
	} else {
		r.retryAckNack(d, true)
	}
}

func (r *RabbitMQSubscriber) processMessage(body []byte, queueName string) error {
	var event dto.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}

	ctx := utils.WithCustomContext(context.Background(), &utils.CustomContext{
		AppSource: AppSourceListener,
		AccountID: event.Event.AccountId,
		RunID:     event.Metadata.RunId,
	})

	ctx, span := tracing.StartRabbitMQMessageTracerSpanWithHeader(ctx, "RabbitMQSubscriber.ProcessMessage", event.Metadata.UberTraceId)
	defer span.Finish()
	span.LogKV("event_type", event.Event.EventType)
	span.LogKV("queue_name", queueName)

	r.listenerMutex.RLock()
	listener, exists := r.listeners[event.Event.EventType]
	r.listenerMutex.RUnlock()

	if !exists {
		r.logger.Infof("No listener found for event type: %s on queue: %s", event.Event.EventType, queueName)
		return nil
	}

	if listener.GetQueueName() != queueName {
		r.logger.Warnf("Event type %s received on wrong queue. Expected %s, got %s",
			event.Event.EventType, listener.GetQueueName(), queueName)
		return nil
	}

	err := listener.Handle(ctx, event)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *RabbitMQSubscriber) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	r.connection, err = amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to RabbitMQ")
	}

	go r.reconnectOnClose(r.connection)

	return nil
}

func (r *RabbitMQSubscriber) reconnectOnClose(connection *amqp091.Connection) {
	closeErr, ok := <-connection.NotifyClose(make(chan *amqp091.Error, 1))
	if !ok || closeErr == nil {
		return
	}
	r.logger.Warnf("RabbitMQ connection closed: %v, attempting to reconnect", closeErr)

	backoff := r.config.ReconnectBackoff
	for attempt := 1; ; attempt++ {
		err := r.connect()
		if err == nil {
			return
		}
		r.logger.Errorf("Reconnect attempt %d failed: %v", attempt, err)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > r.config.MaxReconnectBackoff {
			backoff = r.config.MaxReconnectBackoff
		}
	}
}

func (r *RabbitMQSubscriber) retryAckNack(d amqp091.Delivery, ack bool) {
	retryDelay := 100 * time.Millisecond

	for i := 0; i < r.config.MaxRetries; i++ {
		var err error
		if ack {
			err = d.Ack(false)
		} else {
			err = d.Nack(false, false)
		}

		if err == nil {
			return
		}

		time.Sleep(retryDelay)
	}

	r.logger.Errorf("Failed to %s message after %d attempts",
		map[bool]string{true: "acknowledge", false: "negative acknowledge"}[ack],
		r.config.MaxRetries)
}

func (r *RabbitMQSubscriber) Close() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	if r.connection != nil && !r.connection.IsClosed() {
		return r.connection.Close()
	}
	return nil
}
