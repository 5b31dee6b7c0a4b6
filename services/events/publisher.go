package events

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/customeros/mailbackup/dto"
	"github.com/customeros/mailbackup/internal/enum"
	"github.com/customeros/mailbackup/internal/logger"
	"github.com/customeros/mailbackup/internal/tracing"
	"github.com/customeros/mailbackup/internal/utils"
)

const (
	// Exchange names
	ExchangeMailbackupDirect = "mailbackup-direct"
	ExchangeDeadLetter       = "dead-letter"

	// queues
	QueueEmailArchived = "email-archived"
	QueueSyncCompleted = "sync-completed"
	QueueSyncRequests  = "sync-requests"
	DLQEmailArchived   = QueueEmailArchived + "-dlq"
	DLQSyncCompleted   = QueueSyncCompleted + "-dlq"
	DLQSyncRequests    = QueueSyncRequests + "-dlq"

	// routing keys
	RoutingKeyDeadLetter    = "dead-letter"
	RoutingKeyEmailArchived = "mailbackup-email-archived"
	RoutingKeySyncCompleted = "mailbackup-sync-completed"
	RoutingKeySyncRequest   = "mailbackup-sync-request"

	// Default configurations
	DefaultMessageTTL          = 240 * time.Hour // after TTL message moves to DLQ
	DefaultMaxRetries          = 3
	DefaultPublishTimeout      = 5 * time.Second
	DefaultReconnectBackoff    = time.Second
	DefaultMaxReconnectBackoff = 30 * time.Second
)

var directQueues = []struct {
	queueName  string
	dlqName    string
	routingKey string
}{
	{QueueEmailArchived, DLQEmailArchived, RoutingKeyEmailArchived},
	{QueueSyncCompleted, DLQSyncCompleted, RoutingKeySyncCompleted},
	{QueueSyncRequests, DLQSyncRequests, RoutingKeySyncRequest},
}

type PublisherConfig struct {
	MessageTTL          time.Duration
	MaxRetries          int
	PublishTimeout      time.Duration
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
}

func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		MessageTTL:          DefaultMessageTTL,
		MaxRetries:          DefaultMaxRetries,
		PublishTimeout:      DefaultPublishTimeout,
		ReconnectBackoff:    DefaultReconnectBackoff,
		MaxReconnectBackoff: DefaultMaxReconnectBackoff,
	}
}

type RabbitMQPublisher struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	publishChannel  *amqp091.Channel
	publishMutex    sync.Mutex
	url             string
	logger          logger.Logger
	confirms        chan amqp091.Confirmation
	config          PublisherConfig
}

func NewRabbitMQPublisher(rabbitmqURL string, logger logger.Logger, config *PublisherConfig) (*RabbitMQPublisher, error) {
	if config == nil {
		config = DefaultPublisherConfig()
	}

	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: logger,
		config: *config,
	}

	err := publisher.connect()
	if err != nil {
		return nil, err
	}

	return publisher, nil
}

func (r *RabbitMQPublisher) PublishEmailArchived(ctx context.Context, event dto.EmailArchived) error {
	return r.publishEventOnExchange(ctx, event.AccountID, event.EmailID, enum.ARCHIVED_EMAIL, event, ExchangeMailbackupDirect, RoutingKeyEmailArchived)
}

func (r *RabbitMQPublisher) PublishSyncCompleted(ctx context.Context, summary *dto.RunSummary) error {
	return r.publishEventOnExchange(ctx, summary.AccountID, summary.RunID, enum.SYNC_RUN, summary, ExchangeMailbackupDirect, RoutingKeySyncCompleted)
}

func (r *RabbitMQPublisher) PublishSyncRequested(ctx context.Context, request dto.SyncRequested) error {
	return r.publishEventOnExchange(ctx, request.AccountID, request.AccountID, enum.EMAIL_ACCOUNT, request, ExchangeMailbackupDirect, RoutingKeySyncRequest)
}

func (r *RabbitMQPublisher) setupPublishChannel() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open publish channel")
	}

	// Enable publisher confirms
	err = channel.Confirm(false)
	if err != nil {
		channel.Close()
		return errors.Wrap(err, "Failed to enable publisher confirms")
	}

	r.confirms = channel.NotifyPublish(make(chan amqp091.Confirmation, 1))
	r.publishChannel = channel
	return nil
}

func (r *RabbitMQPublisher) handleReconnection() {
	backoff := r.config.ReconnectBackoff

	for {
		notifyClose := r.connection.NotifyClose(make(chan *amqp091.Error))
		err, ok := <-notifyClose
		if !ok || err == nil {
			// closed by Close
			return
		}
		r.logger.Warnf("RabbitMQ connection closed: %v, attempting to reconnect", err)

		for {
			err := r.dial()
			if err == nil {
				r.logger.Info("Successfully reconnected to RabbitMQ")
				break
			}

			r.logger.Errorf("Failed to reconnect: %v, retrying in %v", err, backoff)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > r.config.MaxReconnectBackoff {
				backoff = r.config.MaxReconnectBackoff
			}
		}

		backoff = r.config.ReconnectBackoff
	}
}

func (r *RabbitMQPublisher) setupExchangesAndQueues() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open channel for exchange/queue setup")
	}
	defer channel.Close()

	err = channel.ExchangeDeclare(
		ExchangeDeadLetter,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrap(err, "Failed to declare dead letter exchange")
	}

	err = channel.ExchangeDeclare(
		ExchangeMailbackupDirect,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "Failed to declare mailbackup-direct exchange")
	}

	for _, q := range directQueues {
		if err := r.declareQueueWithDLQ(channel, q.queueName, q.dlqName); err != nil {
			return err
		}
		err = channel.QueueBind(
			q.queueName,
			q.routingKey,
			ExchangeMailbackupDirect,
			false,
			nil,
		)
		if err != nil {
			return errors.Wrapf(err, "Failed to bind queue %s to exchange %s", q.queueName, ExchangeMailbackupDirect)
		}
	}

	return nil
}

func (r *RabbitMQPublisher) declareQueueWithDLQ(channel *amqp091.Channel, queueName string, dlqName string) error {
	_, err := channel.QueueDeclare(
		dlqName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare DLQ %s", dlqName)
	}

	err = channel.QueueBind(
		dlqName,
		RoutingKeyDeadLetter,
		ExchangeDeadLetter,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to bind DLQ %s to exchange", dlqName)
	}

	_, err = channel.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		queueArguments(r.config.MessageTTL),
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare queue %s", queueName)
	}

	return nil
}

func queueArguments(messageTTL time.Duration) amqp091.Table {
	return amqp091.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": RoutingKeyDeadLetter,
		"x-message-ttl":             messageTTL.Milliseconds(),
	}
}

func (r *RabbitMQPublisher) connect() error {
	if err := r.dial(); err != nil {
		return err
	}
	go r.handleReconnection()
	return nil
}

func (r *RabbitMQPublisher) dial() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	r.connection, err = amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to RabbitMQ")
	}

	err = r.setupExchangesAndQueues()
	if err != nil {
		return errors.Wrap(err, "Failed to setup exchanges and queues")
	}

	err = r.setupPublishChannel()
	if err != nil {
		return errors.Wrap(err, "Failed to setup publish channel")
	}

	return nil
}

func (r *RabbitMQPublisher) ensureConnectionAndChannel() error {
	if r.connection == nil || r.connection.IsClosed() {
		if err := r.dial(); err != nil {
			return errors.Wrap(err, "Failed to establish connection")
		}
	}

	if r.publishChannel == nil || r.publishChannel.IsClosed() {
		if err := r.setupPublishChannel(); err != nil {
			return errors.Wrap(err, "Failed to establish channel")
		}
	}

	return nil
}

func (r *RabbitMQPublisher) publishEventOnExchange(ctx context.Context, accountId, entityId string, entityType enum.EntityType, message interface{}, exchange, routingKey string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishEventOnExchange")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, entityId)

	tracingData := tracing.ExtractTextMapCarrier(span.Context())
	eventMessage := newEvent(ctx, tracingData["uber-trace-id"], accountId, entityId, entityType, message)

	err := r.publishMessageOnExchange(ctx, eventMessage, exchange, routingKey)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func newEvent(ctx context.Context, uberTraceId, accountId, entityId string, entityType enum.EntityType, message interface{}) dto.Event {
	messageType := reflect.TypeOf(message)
	if messageType.Kind() == reflect.Ptr {
		messageType = messageType.Elem()
	}

	return dto.Event{
		Event: dto.EventDetails{
			Id:         utils.GenerateNanoIdWithPrefix("event", 21),
			AccountId:  accountId,
			EntityId:   entityId,
			EntityType: entityType,
			EventType:  messageType.Name(),
			Data:       message,
		},
		Metadata: dto.EventMetadata{
			UberTraceId: uberTraceId,
			AppSource:   utils.GetAppSourceFromContext(ctx),
			RunId:       utils.GetRunIDFromContext(ctx),
			Timestamp:   utils.Now().Format(time.RFC3339),
		},
	}
}

func (r *RabbitMQPublisher) publishMessageOnExchange(ctx context.Context, message interface{}, exchange, routingKey string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishMessageOnExchange")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	tracing.LogObjectAsJson(span, "message", message)

	var lastErr error
	for attempt := 0; attempt < r.config.MaxRetries; attempt++ {
		lastErr = r.publishWithConfirm(ctx, message, exchange, routingKey)
		if lastErr == nil {
			return nil
		}

		r.logger.Warnf("Publish attempt %d failed: %v", attempt+1, lastErr)
		if attempt < r.config.MaxRetries-1 {
			time.Sleep(time.Millisecond * 100 * time.Duration(attempt+1))
		}
	}

	return errors.Wrap(lastErr, "Failed to publish message after all retries")
}

func (r *RabbitMQPublisher) publishWithConfirm(ctx context.Context, message interface{}, exchange, routingKey string) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.ensureConnectionAndChannel(); err != nil {
		return err
	}

	jsonBody, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "Failed to marshal message")
	}

	err = r.publishChannel.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		true,  // mandatory - ensure message is routed
		false, // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         jsonBody,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return errors.Wrap(err, "Failed to publish message")
	}

	select {
	case confirm := <-r.confirms:
		if !confirm.Ack {
			return errors.New("Message was not confirmed by server")
		}
	case <-time.After(r.config.PublishTimeout):
		return errors.New("Publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// Close gracefully shuts down the publisher
func (r *RabbitMQPublisher) Close() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	if r.publishChannel != nil {
		err = r.publishChannel.Close()
		if err != nil {
			r.logger.Errorf("Error closing publish channel: %v", err)
		}
	}

	if r.connection != nil {
		if closeErr := r.connection.Close(); closeErr != nil {
			r.logger.Errorf("Error closing connection: %v", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}

	return err
}
