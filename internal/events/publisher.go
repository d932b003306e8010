package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"cafehub/internal/order"
)

// Publisher pushes order status changes to a RabbitMQ topic exchange so
// dashboards and notification consumers can follow orders live. Publisher
// confirms are enabled; Publish waits for the broker ack.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	acks <-chan amqp.Confirmation
	mu   sync.Mutex // confirms are per-channel, publishes are serialized
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events: failed to declare exchange %s: %w", exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events: failed to enable publisher confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	log.Info().Str("exchange", exchange).Msg("Connected to RabbitMQ")
	return &Publisher{conn: conn, ch: ch, exchange: exchange, acks: acks}, nil
}

func (p *Publisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PublishStatusChange emits the event with routing key
// order.status.<new_status> and waits for the broker confirm.
func (p *Publisher) PublishStatusChange(ctx context.Context, ev order.StatusChanged) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := "order.status." + string(ev.NewStatus)
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events: failed to publish: %w", err)
	}

	select {
	case conf := <-p.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("events: publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}
