package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mlesyk/gradpipe/app/cfg"
	"github.com/mlesyk/gradpipe/app/queue"
)

const publishTimeout = 30 * time.Second

// Scheduler periodically publishes a scrape task on a cron cadence, standing
// in for the front-end that would otherwise trigger ingestion by hand. An
// empty schedule disables it.
type Scheduler struct {
	cron      *cron.Cron
	publisher TaskPublisher
	spec      string
	dbName    string
	maxPages  int
}

func NewScheduler(publisher TaskPublisher) *Scheduler {
	c := cfg.Get()
	return newScheduler(publisher, c.ScrapeSchedule, c.DBName, c.MaxPages)
}

func newScheduler(publisher TaskPublisher, spec, dbName string, maxPages int) *Scheduler {
	return &Scheduler{
		publisher: publisher,
		spec:      spec,
		dbName:    dbName,
		maxPages:  maxPages,
	}
}

func (s *Scheduler) Start() error {
	if s.spec == "" {
		slog.Info("Scrape schedule not configured, scheduler disabled")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, s.publishScrape); err != nil {
		return err
	}
	s.cron.Start()

	slog.Info("Scheduler started", "schedule", s.spec, "max_pages", s.maxPages)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) publishScrape() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	payload := queue.ScrapePayload{DBName: s.dbName, MaxPages: s.maxPages}
	if err := s.publisher.Publish(ctx, queue.KindScrapeNewData, payload); err != nil {
		slog.Error("Scheduled scrape publish failed", "error", err)
		return
	}

	slog.Info("Scheduled scrape task published", "max_pages", s.maxPages)
}
