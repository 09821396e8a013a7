package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeAcknowledger records the acknowledgment outcome of a delivery.
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

// fakeDispatcher records dispatched messages and returns a fixed error.
type fakeDispatcher struct {
	messages []TaskMessage
	err      error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, msg TaskMessage) error {
	f.messages = append(f.messages, msg)
	return f.err
}

func delivery(ack *fakeAcknowledger, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, Body: []byte(body)}
}

func TestHandleDelivery_Success(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	consumer := &Consumer{dispatcher: dispatcher}
	ack := &fakeAcknowledger{}

	consumer.handleDelivery(context.Background(),
		delivery(ack, `{"kind": "recompute_analytics", "ts": "2026-02-14T10:00:00Z", "payload": {}}`))

	if len(dispatcher.messages) != 1 {
		t.Fatalf("Expected 1 dispatched message, got %d", len(dispatcher.messages))
	}
	if dispatcher.messages[0].Kind != KindRecomputeAnalytics {
		t.Errorf("Expected kind recompute_analytics, got: %s", dispatcher.messages[0].Kind)
	}
	if !ack.acked {
		t.Error("Expected delivery to be acked")
	}
	if ack.nacked {
		t.Error("Expected delivery not to be nacked")
	}
}

func TestHandleDelivery_DispatchFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{err: errors.New("handler blew up")}
	consumer := &Consumer{dispatcher: dispatcher}
	ack := &fakeAcknowledger{}

	consumer.handleDelivery(context.Background(),
		delivery(ack, `{"kind": "scrape_new_data", "ts": "2026-02-14T10:00:00Z", "payload": {}}`))

	if ack.acked {
		t.Error("Expected delivery not to be acked")
	}
	if !ack.nacked {
		t.Fatal("Expected delivery to be nacked")
	}
	if ack.requeue {
		t.Error("Expected nack without requeue")
	}
}

func TestHandleDelivery_ShutdownRequeuesTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dispatcher := &fakeDispatcher{err: context.Canceled}
	consumer := &Consumer{dispatcher: dispatcher}
	ack := &fakeAcknowledger{}

	consumer.handleDelivery(ctx,
		delivery(ack, `{"kind": "scrape_new_data", "ts": "2026-02-14T10:00:00Z", "payload": {}}`))

	if ack.acked {
		t.Error("Expected delivery not to be acked")
	}
	if !ack.nacked {
		t.Fatal("Expected delivery to be nacked")
	}
	if !ack.requeue {
		t.Error("Expected interrupted task to be requeued for redelivery")
	}
}

func TestHandleDelivery_WrappedCancellationRequeues(t *testing.T) {
	dispatcher := &fakeDispatcher{err: fmt.Errorf("extraction interrupted: %w", context.Canceled)}
	consumer := &Consumer{dispatcher: dispatcher}
	ack := &fakeAcknowledger{}

	consumer.handleDelivery(context.Background(),
		delivery(ack, `{"kind": "scrape_new_data", "ts": "2026-02-14T10:00:00Z", "payload": {}}`))

	if !ack.nacked || !ack.requeue {
		t.Errorf("Expected nack with requeue, got nacked=%t requeue=%t", ack.nacked, ack.requeue)
	}
}

func TestHandleDelivery_UndecodableBody(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	consumer := &Consumer{dispatcher: dispatcher}
	ack := &fakeAcknowledger{}

	consumer.handleDelivery(context.Background(), delivery(ack, "not json"))

	if len(dispatcher.messages) != 0 {
		t.Errorf("Expected no dispatch for undecodable body, got %d", len(dispatcher.messages))
	}
	if !ack.nacked || ack.requeue {
		t.Errorf("Expected nack without requeue, got nacked=%t requeue=%t", ack.nacked, ack.requeue)
	}
}
