package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mlesyk/gradpipe/app/database"
	"github.com/mlesyk/gradpipe/app/metrics"
	"github.com/mlesyk/gradpipe/app/normalize"
)

// ScrapeTask ingests new entries from the source site: extract, normalize,
// dedup by result URL, bulk-insert, advance the scrape watermark. Runs inside
// the dispatcher's transaction, so either everything lands or nothing does.
type ScrapeTask struct {
	Task
	maxPages      int
	since         *string
	extractor     Extractor
	admissionRepo database.AdmissionRepository
	watermarkRepo database.WatermarkRepository
}

func NewScrapeTask(maxPages int, since *string, extractor Extractor,
	admissionRepo database.AdmissionRepository, watermarkRepo database.WatermarkRepository) *ScrapeTask {
	return &ScrapeTask{
		Task:          NewTask(TaskTypeScrapeNewData),
		maxPages:      maxPages,
		since:         since,
		extractor:     extractor,
		admissionRepo: admissionRepo,
		watermarkRepo: watermarkRepo,
	}
}

func (t *ScrapeTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	since := t.since
	if since == nil {
		wm, err := t.watermarkRepo.GetWatermark(database.SourceScraped)
		if err != nil {
			return fmt.Errorf("failed to read scrape watermark: %w", err)
		}
		if wm != nil {
			since = wm.LastSeen
		}
	}
	slog.Info("Starting scrape task", "max_pages", t.maxPages, "since", stringOrNone(since))

	entries, err := t.extractor.Run(ctx, t.maxPages)
	if err != nil {
		return fmt.Errorf("extraction interrupted: %w", err)
	}

	records := make([]normalize.Record, 0, len(entries))
	for _, entry := range entries {
		rec, err := normalize.Normalize(entry.Record())
		if err != nil {
			slog.Warn("Skipping unnormalizable entry", "url", entry.URL, "error", err)
			continue
		}
		records = append(records, *rec)
	}

	existing, err := t.admissionRepo.GetExistingURLs()
	if err != nil {
		return fmt.Errorf("failed to load existing URLs: %w", err)
	}

	duplicateCount := 0
	fresh := make([]normalize.Record, 0, len(records))
	for _, rec := range records {
		if rec.URL == nil || *rec.URL == "" {
			continue
		}
		if _, ok := existing[*rec.URL]; ok {
			duplicateCount++
			continue
		}
		// Guards against the same URL appearing twice within one scrape.
		existing[*rec.URL] = struct{}{}
		fresh = append(fresh, rec)
	}

	if len(fresh) > 0 {
		if err := t.admissionRepo.InsertRecords(fresh); err != nil {
			return fmt.Errorf("failed to insert records: %w", err)
		}
		metrics.RowsInserted.WithLabelValues("scrape").Add(float64(len(fresh)))
	}

	// The watermark reflects the newest date in the table, inserted or
	// pre-existing; an empty scrape still touches it to record the run.
	lastSeen, err := t.admissionRepo.GetMaxDateAdded()
	if err != nil {
		return fmt.Errorf("failed to compute watermark: %w", err)
	}
	if lastSeen == nil {
		lastSeen = since
	}
	if err := t.watermarkRepo.TouchWatermark(database.SourceScraped, lastSeen); err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}

	slog.Info("Task completed",
		"type", "ScrapeNewData",
		"duration", t.GetDuration(),
		"scraped", len(entries),
		"duplicates", duplicateCount,
		"new", len(fresh),
		"last_seen", stringOrNone(lastSeen))

	return nil
}

func stringOrNone(s *string) string {
	if s == nil {
		return "none"
	}
	return *s
}
