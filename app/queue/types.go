package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Broker topology: one direct exchange, one durable queue, one routing key.
// Effectively a single work queue, declared idempotently by both sides.
const (
	ExchangeName = "tasks"
	QueueName    = "tasks_q"
	RoutingKey   = "tasks"
)

// TaskKind selects which handler processes a queued message.
type TaskKind string

const (
	KindScrapeNewData      TaskKind = "scrape_new_data"
	KindRecomputeAnalytics TaskKind = "recompute_analytics"
)

// TaskMessage is the wire envelope carried by the broker. Immutable once
// published.
type TaskMessage struct {
	Kind      TaskKind        `json:"kind"`
	Timestamp string          `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

// ScrapePayload parameterizes a scrape_new_data task. DBName is informational
// (the worker connects with its own configured DSN); Since overrides the
// stored watermark when non-nil.
type ScrapePayload struct {
	DBName   string  `json:"dbname"`
	MaxPages int     `json:"max_pages"`
	Since    *string `json:"since"`
}

var ErrEmptyKind = errors.New("task message kind is empty")

// NewTaskMessage assembles an envelope for kind, stamping the current UTC
// time. A nil payload serializes as an empty object.
func NewTaskMessage(kind TaskKind, payload any) (TaskMessage, error) {
	if payload == nil {
		payload = map[string]any{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return TaskMessage{}, fmt.Errorf("failed to serialize payload: %w", err)
	}

	return TaskMessage{
		Kind:      kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   data,
	}, nil
}

// DecodeTaskMessage parses a broker delivery body into an envelope.
func DecodeTaskMessage(body []byte) (TaskMessage, error) {
	var msg TaskMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return TaskMessage{}, fmt.Errorf("failed to decode task message: %w", err)
	}

	msg.Kind = TaskKind(strings.TrimSpace(string(msg.Kind)))
	if msg.Kind == "" {
		return TaskMessage{}, ErrEmptyKind
	}

	return msg, nil
}

// ScrapePayloadFrom decodes the scrape parameters, tolerating an absent or
// empty payload.
func ScrapePayloadFrom(msg TaskMessage) (ScrapePayload, error) {
	var payload ScrapePayload
	if len(msg.Payload) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return ScrapePayload{}, fmt.Errorf("failed to decode scrape payload: %w", err)
	}
	return payload, nil
}
