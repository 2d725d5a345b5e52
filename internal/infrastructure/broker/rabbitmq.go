// Package broker publishes outbox events to RabbitMQ.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"partscatalog/internal/infrastructure/storage/postgres"
	"partscatalog/pkg/logger"
)

// Config holds the broker connection settings.
type Config struct {
	URL      string
	Exchange string
	// ConfirmTimeout bounds the wait for a publisher confirm, default 5s
	ConfirmTimeout time.Duration
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

// Publisher sends outbox messages to a durable topic exchange, routed by
// event type. It implements postgres.OutboxHandler.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	timeout  time.Duration
}

var _ postgres.OutboxHandler = (*Publisher)(nil)

// NewPublisher dials RabbitMQ, declares the exchange and enables confirms.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.Exchange == "" {
		return nil, errors.New("broker exchange is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	logger.Info(context.Background(), "rabbitmq publisher ready", "exchange", cfg.Exchange)
	return newPublisher(conn, ch, cfg), nil
}

func newPublisher(conn *amqp.Connection, ch channel, cfg Config) *Publisher {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 5 * time.Second
	}
	return &Publisher{conn: conn, ch: ch, exchange: cfg.Exchange, timeout: cfg.ConfirmTimeout}
}

// Handle publishes msg and waits until the broker confirms it.
func (p *Publisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, msg.EventType, false, false, publishing(msg))
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.EventType, err)
	}
	if conf == nil {
		return nil
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", msg.EventType, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s", msg.EventType)
	}

	logger.Debug(ctx, "event published", "event_type", msg.EventType, "message_id", msg.ID)
	return nil
}

func publishing(msg *postgres.OutboxMessage) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID.String(),
		Type:         msg.EventType,
		Timestamp:    msg.CreatedAt,
		Headers: amqp.Table{
			"aggregate_type": msg.AggregateType,
			"aggregate_id":   msg.AggregateID.String(),
		},
		Body: msg.Payload,
	}
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
