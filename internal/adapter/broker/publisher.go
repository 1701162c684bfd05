package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

// Publisher declares its exchange and publishes typed envelopes as UTF-8
// JSON. Publish is mutex-guarded because HTTP handlers and the heartbeat
// task may share one publisher; the channel itself must not be shared
// without the lock.
type Publisher struct {
	mu  sync.Mutex
	ch  *amqp.Channel
	cfg PublisherConfig
}

// NewPublisher opens a channel on the shared connection and declares the
// configured exchange.
func NewPublisher(conn *Connection, cfg PublisherConfig) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange.Name,
		cfg.Exchange.Kind,
		cfg.Exchange.Durable,
		!cfg.Exchange.Durable, // auto-delete
		false,                 // internal
		false,                 // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("op=broker.publisher.declare: %w", err)
	}
	return &Publisher{ch: ch, cfg: cfg}, nil
}

// RoutingKey returns the publisher's configured default routing key.
func (p *Publisher) RoutingKey() string { return p.cfg.RoutingKey }

// Publish serializes the envelope and publishes it persistently under the
// given routing key. An empty key falls back to the configured default.
func (p *Publisher) Publish(ctx context.Context, msg *domain.Message, routingKey string) error {
	if routingKey == "" {
		routingKey = p.cfg.RoutingKey
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("op=broker.publish.marshal: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx,
		p.cfg.Exchange.Name,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("op=broker.publish: %w", err)
	}
	return nil
}

// Close closes the publisher's channel.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
