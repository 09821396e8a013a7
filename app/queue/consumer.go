package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mlesyk/gradpipe/app/cfg"
	"github.com/mlesyk/gradpipe/app/metrics"
)

const (
	consumerTag      = "gradpipe-worker"
	reconnectBackoff = 5 * time.Second
)

// Dispatcher routes a decoded task message to its handler. A nil return acks
// the delivery; any error nacks it without requeue.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg TaskMessage) error
}

// Consumer is the single long-running queue worker. It pulls one message at a
// time (prefetch 1), hands it to the dispatcher, and acknowledges based on the
// outcome. On connection loss it reconnects indefinitely with a fixed backoff;
// the only clean shutdown path is context cancellation.
type Consumer struct {
	url        string
	dispatcher Dispatcher
	backoff    time.Duration
}

func NewConsumer(dispatcher Dispatcher) *Consumer {
	return &Consumer{
		url:        cfg.Get().AMQPURL,
		dispatcher: dispatcher,
		backoff:    reconnectBackoff,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.runSession(ctx)
		if err == nil || ctx.Err() != nil {
			slog.Info("Consumer stopped")
			return nil
		}

		slog.Error("Consumer session failed, reconnecting", "error", err, "backoff", c.backoff.String())
		if err := sleepWithContext(ctx, c.backoff); err != nil {
			return nil
		}
	}
}

// runSession runs one broker connection until cancellation or channel failure.
func (c *Consumer) runSession(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
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

	// One message in flight at a time: handlers mutate shared watermark state
	// and batch-insert large payloads.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(QueueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("Consumer connected", "queue", QueueName)

	for {
		select {
		case <-ctx.Done():
			if err := ch.Cancel(consumerTag, false); err != nil {
				slog.Warn("Failed to cancel consumer", "error", err)
			}
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("deliveries channel closed unexpectedly")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery decodes and dispatches one message. Handler failures are
// terminal for the delivery: a poison message is dropped rather than retried
// forever, since task kinds are idempotent and can be republished. A task
// interrupted by shutdown is not a failure; it goes back to the queue for
// redelivery.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	msg, err := DecodeTaskMessage(d.Body)
	if err != nil {
		slog.Error("Dropping undecodable message", "error", err)
		metrics.TasksCompleted.WithLabelValues("invalid", "nacked").Inc()
		c.nack(d, false)
		return
	}

	metrics.TasksConsumed.WithLabelValues(string(msg.Kind)).Inc()
	slog.Info("Task received", "kind", string(msg.Kind), "ts", msg.Timestamp)

	if err := c.dispatcher.Dispatch(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Info("Task interrupted by shutdown, returning to queue", "kind", string(msg.Kind))
			metrics.TasksCompleted.WithLabelValues(string(msg.Kind), "requeued").Inc()
			c.nack(d, true)
			return
		}
		slog.Error("Task failed", "kind", string(msg.Kind), "error", err)
		metrics.TasksCompleted.WithLabelValues(string(msg.Kind), "nacked").Inc()
		c.nack(d, false)
		return
	}

	metrics.TasksCompleted.WithLabelValues(string(msg.Kind), "acked").Inc()
	if err := d.Ack(false); err != nil {
		slog.Error("Failed to ack delivery", "delivery_tag", d.DeliveryTag, "error", err)
	}
}

func (c *Consumer) nack(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		slog.Error("Failed to nack delivery", "delivery_tag", d.DeliveryTag, "error", err)
	}
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
