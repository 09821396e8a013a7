package tasks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mlesyk/gradpipe/app/queue"
)

type fakePublisher struct {
	published []queue.TaskMessage
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, kind queue.TaskKind, payload any) error {
	if f.err != nil {
		return f.err
	}
	msg, err := queue.NewTaskMessage(kind, payload)
	if err != nil {
		return err
	}
	f.published = append(f.published, msg)
	return nil
}

func TestScheduler_PublishScrape(t *testing.T) {
	publisher := &fakePublisher{}
	scheduler := newScheduler(publisher, "0 * * * *", "admissions", 10)

	scheduler.publishScrape()

	if len(publisher.published) != 1 {
		t.Fatalf("Expected 1 published message, got %d", len(publisher.published))
	}

	msg := publisher.published[0]
	if msg.Kind != queue.KindScrapeNewData {
		t.Errorf("Expected kind %s, got: %s", queue.KindScrapeNewData, msg.Kind)
	}

	var payload queue.ScrapePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("Expected decodable payload, got: %v", err)
	}
	if payload.DBName != "admissions" {
		t.Errorf("Expected dbname admissions, got: %s", payload.DBName)
	}
	if payload.MaxPages != 10 {
		t.Errorf("Expected max pages 10, got: %d", payload.MaxPages)
	}
}

func TestScheduler_EmptyScheduleDisabled(t *testing.T) {
	scheduler := newScheduler(&fakePublisher{}, "", "admissions", 10)

	if err := scheduler.Start(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if scheduler.cron != nil {
		t.Error("Expected no cron instance for an empty schedule")
	}

	scheduler.Stop()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	scheduler := newScheduler(&fakePublisher{}, "not a cron spec", "admissions", 10)

	if err := scheduler.Start(); err == nil {
		t.Error("Expected error for invalid cron spec")
		scheduler.Stop()
	}
}
