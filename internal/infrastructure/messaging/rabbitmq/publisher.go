// internal/infrastructure/messaging/rabbitmq/publisher.go
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
)

// Publisher sends JSON events to a topic exchange
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *logrus.Logger
	mu       sync.Mutex
}

// NewPublisher dials the broker and declares the events exchange
func NewPublisher(cfg *config.Config, logger *logrus.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.Messaging.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Messaging.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Messaging.Exchange, err)
	}

	logger.WithField("exchange", cfg.Messaging.Exchange).Info("RabbitMQ publisher ready")

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Messaging.Exchange,
		logger:   logger,
	}, nil
}

// Publish marshals payload and sends it as a persistent message.
// amqp channels are not safe for concurrent publishing.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", routingKey, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", routingKey, err)
	}

	p.logger.WithField("routing_key", routingKey).Debug("event published")
	return nil
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		p.conn.Close()
		return fmt.Errorf("failed to close RabbitMQ channel: %w", err)
	}
	return p.conn.Close()
}
