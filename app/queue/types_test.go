package queue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewTaskMessage(t *testing.T) {
	payload := ScrapePayload{DBName: "gradcafe", MaxPages: 3}

	msg, err := NewTaskMessage(KindScrapeNewData, payload)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if msg.Kind != KindScrapeNewData {
		t.Errorf("Expected kind scrape_new_data, got: %s", msg.Kind)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("Expected RFC3339 timestamp, got: %q (%v)", msg.Timestamp, err)
	}

	var decoded ScrapePayload
	if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
		t.Fatalf("Expected payload to decode, got: %v", err)
	}
	if decoded.MaxPages != 3 {
		t.Errorf("Expected max_pages 3, got: %d", decoded.MaxPages)
	}
}

func TestNewTaskMessage_NilPayload(t *testing.T) {
	msg, err := NewTaskMessage(KindRecomputeAnalytics, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if string(msg.Payload) != "{}" {
		t.Errorf("Expected empty object payload, got: %s", msg.Payload)
	}
}

func TestDecodeTaskMessage(t *testing.T) {
	body := []byte(`{"kind": "scrape_new_data", "ts": "2026-02-14T10:00:00Z", "payload": {"dbname": "gradcafe", "max_pages": 2, "since": null}}`)

	msg, err := DecodeTaskMessage(body)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if msg.Kind != KindScrapeNewData {
		t.Errorf("Expected kind scrape_new_data, got: %s", msg.Kind)
	}

	payload, err := ScrapePayloadFrom(msg)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if payload.DBName != "gradcafe" {
		t.Errorf("Expected dbname gradcafe, got: %s", payload.DBName)
	}
	if payload.MaxPages != 2 {
		t.Errorf("Expected max_pages 2, got: %d", payload.MaxPages)
	}
	if payload.Since != nil {
		t.Errorf("Expected nil since, got: %v", *payload.Since)
	}
}

func TestDecodeTaskMessage_Invalid(t *testing.T) {
	if _, err := DecodeTaskMessage([]byte("not json")); err == nil {
		t.Error("Expected error for malformed body")
	}

	_, err := DecodeTaskMessage([]byte(`{"ts": "2026-02-14T10:00:00Z", "payload": {}}`))
	if !errors.Is(err, ErrEmptyKind) {
		t.Errorf("Expected ErrEmptyKind for missing kind, got: %v", err)
	}
}

func TestScrapePayloadFrom_EmptyPayload(t *testing.T) {
	payload, err := ScrapePayloadFrom(TaskMessage{Kind: KindScrapeNewData})
	if err != nil {
		t.Fatalf("Expected no error for absent payload, got: %v", err)
	}
	if payload.MaxPages != 0 {
		t.Errorf("Expected zero max_pages, got: %d", payload.MaxPages)
	}
}
