package broker

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery body. A nil return acknowledges the
// delivery; an error leaves it unacknowledged so the broker redelivers it
// after the channel closes.
type Handler func(ctx context.Context, body []byte) error

// Subscriber declares its exchange and queue, binds the routing keys and
// streams deliveries to a handler with prefetch 1 and manual acks.
type Subscriber struct {
	ch  *amqp.Channel
	cfg SubscriberConfig
}

// NewSubscriber opens a channel, declares exchange and queue, and binds the
// queue with every configured routing key.
func NewSubscriber(conn *Connection, cfg SubscriberConfig) (*Subscriber, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange.Name,
		cfg.Exchange.Kind,
		cfg.Exchange.Durable,
		!cfg.Exchange.Durable,
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("op=broker.subscriber.exchange: %w", err)
	}
	// One unacknowledged delivery at a time; jobs execute strictly serially
	// per queue.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("op=broker.subscriber.qos: %w", err)
	}
	if _, err := ch.QueueDeclare(
		cfg.QueueName,
		cfg.Durable,  // durable
		!cfg.Durable, // auto-delete when transient
		false,        // exclusive
		false,        // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("op=broker.subscriber.queue: %w", err)
	}
	for _, key := range cfg.RoutingKeys {
		if err := ch.QueueBind(cfg.QueueName, key, cfg.Exchange.Name, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("op=broker.subscriber.bind: %w", err)
		}
	}
	return &Subscriber{ch: ch, cfg: cfg}, nil
}

// Consume streams deliveries to the handler until the context is cancelled
// or the channel closes. Each delivery is acknowledged individually, and
// only after the handler returns nil.
func (s *Subscriber) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := s.ch.ConsumeWithContext(ctx,
		s.cfg.QueueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("op=broker.consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := handler(ctx, d.Body); err != nil {
				// Left unacknowledged on purpose: the broker redelivers
				// once the channel closes.
				slog.Error("delivery handler failed",
					slog.String("queue", s.cfg.QueueName),
					slog.Any("error", err))
				continue
			}
			if err := d.Ack(false); err != nil {
				slog.Error("ack failed", slog.String("queue", s.cfg.QueueName), slog.Any("error", err))
			}
		}
	}
}

// Close closes the subscriber's channel, cancelling any in-flight consume.
func (s *Subscriber) Close() error {
	if s.ch == nil {
		return nil
	}
	err := s.ch.Close()
	s.ch = nil
	return err
}
