package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mlesyk/gradpipe/app/cfg"
	"github.com/mlesyk/gradpipe/app/metrics"
)

// Publisher enqueues task messages. Each publish opens its own connection and
// declares the topology, so the first caller after a broker restart recreates
// everything. A broker-unavailable condition propagates as an error so callers
// can report service unavailability instead of silently dropping the request.
type Publisher struct {
	url string
}

func NewPublisher() *Publisher {
	return &Publisher{url: cfg.Get().AMQPURL}
}

// Publish sends one persistent task message of the given kind.
func (p *Publisher) Publish(ctx context.Context, kind TaskKind, payload any) error {
	msg, err := NewTaskMessage(kind, payload)
	if err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize task message: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := declareTopology(ch); err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, ExchangeName, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish task: %w", err)
	}

	metrics.TasksPublished.WithLabelValues(string(kind)).Inc()
	slog.Info("Task published", "kind", string(kind))

	return nil
}

// declareTopology sets up the exchange, queue and binding. Declares are
// idempotent and safe to repeat on every connection.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}
