package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mlesyk/gradpipe/app/database"
	"github.com/mlesyk/gradpipe/app/normalize"
	"github.com/mlesyk/gradpipe/app/scrape"
)

// fakeAdmissionRepo implements database.AdmissionRepository in memory.
type fakeAdmissionRepo struct {
	existingURLs map[string]struct{}
	maxDate      *string
	inserted     []normalize.Record
	insertErr    error
	analyzed     bool
}

func (f *fakeAdmissionRepo) GetExistingURLs() (map[string]struct{}, error) {
	urls := make(map[string]struct{}, len(f.existingURLs))
	for u := range f.existingURLs {
		urls[u] = struct{}{}
	}
	return urls, nil
}

func (f *fakeAdmissionRepo) GetRecordCount() (int, error) {
	return len(f.existingURLs) + len(f.inserted), nil
}

func (f *fakeAdmissionRepo) GetMaxDateAdded() (*string, error) {
	return f.maxDate, nil
}

func (f *fakeAdmissionRepo) InsertRecords(records []normalize.Record) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, records...)
	return nil
}

func (f *fakeAdmissionRepo) Analyze() error {
	f.analyzed = true
	return nil
}

// fakeWatermarkRepo implements database.WatermarkRepository in memory.
type fakeWatermarkRepo struct {
	watermarks map[string]*string
	touched    []string
}

func newFakeWatermarkRepo() *fakeWatermarkRepo {
	return &fakeWatermarkRepo{watermarks: make(map[string]*string)}
}

func (f *fakeWatermarkRepo) GetWatermark(source string) (*database.Watermark, error) {
	lastSeen, ok := f.watermarks[source]
	if !ok {
		return nil, nil
	}
	return &database.Watermark{Source: source, LastSeen: lastSeen, UpdatedAt: time.Now()}, nil
}

func (f *fakeWatermarkRepo) GetAllWatermarks() ([]database.Watermark, error) {
	var out []database.Watermark
	for source, lastSeen := range f.watermarks {
		out = append(out, database.Watermark{Source: source, LastSeen: lastSeen})
	}
	return out, nil
}

func (f *fakeWatermarkRepo) TouchWatermark(source string, lastSeen *string) error {
	f.touched = append(f.touched, source)
	if lastSeen != nil || f.watermarks[source] == nil {
		f.watermarks[source] = lastSeen
	}
	return nil
}

func (f *fakeWatermarkRepo) SetWatermark(source, lastSeen string) error {
	f.touched = append(f.touched, source)
	f.watermarks[source] = &lastSeen
	return nil
}

// fakeExtractor returns a fixed entry set.
type fakeExtractor struct {
	entries []scrape.Entry
	err     error
}

func (f *fakeExtractor) Run(ctx context.Context, maxPages int) ([]scrape.Entry, error) {
	return f.entries, f.err
}

func entryFixture(university, url, date string) scrape.Entry {
	return scrape.Entry{
		University: university,
		Program:    "Computer Science",
		Degree:     "PhD",
		Status:     "Accepted",
		StatusDate: date,
		URL:        url,
	}
}

func TestScrapeTask_InsertsNewRecordsOnly(t *testing.T) {
	extractor := &fakeExtractor{entries: []scrape.Entry{
		entryFixture("Example University", "https://example.com/result/1", "February 10, 2026"),
		entryFixture("Sample Institute", "https://example.com/result/2", "February 14, 2026"),
		entryFixture("Known University", "https://example.com/result/3", "February 12, 2026"),
	}}
	admissionRepo := &fakeAdmissionRepo{
		existingURLs: map[string]struct{}{"https://example.com/result/3": {}},
		maxDate:      strPtr("2026-02-14"),
	}
	watermarkRepo := newFakeWatermarkRepo()

	task := NewScrapeTask(1, nil, extractor, admissionRepo, watermarkRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(admissionRepo.inserted) != 2 {
		t.Fatalf("Expected 2 inserted records, got %d", len(admissionRepo.inserted))
	}
	got := *watermarkRepo.watermarks[database.SourceScraped]
	if got != "2026-02-14" {
		t.Errorf("Expected watermark 2026-02-14, got: %s", got)
	}
}

func TestScrapeTask_Idempotent(t *testing.T) {
	entries := []scrape.Entry{
		entryFixture("Example University", "https://example.com/result/1", "February 10, 2026"),
		entryFixture("Sample Institute", "https://example.com/result/2", "February 14, 2026"),
	}
	admissionRepo := &fakeAdmissionRepo{existingURLs: map[string]struct{}{}, maxDate: strPtr("2026-02-14")}
	watermarkRepo := newFakeWatermarkRepo()

	task := NewScrapeTask(1, nil, &fakeExtractor{entries: entries}, admissionRepo, watermarkRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error on first run, got: %v", err)
	}
	firstCount := len(admissionRepo.inserted)

	// Second run sees the first run's URLs as existing
	for _, rec := range admissionRepo.inserted {
		admissionRepo.existingURLs[*rec.URL] = struct{}{}
	}

	task = NewScrapeTask(1, nil, &fakeExtractor{entries: entries}, admissionRepo, watermarkRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error on second run, got: %v", err)
	}

	if len(admissionRepo.inserted) != firstCount {
		t.Errorf("Expected second identical run to insert nothing, got %d new rows",
			len(admissionRepo.inserted)-firstCount)
	}
}

func TestScrapeTask_DuplicateURLWithinBatch(t *testing.T) {
	extractor := &fakeExtractor{entries: []scrape.Entry{
		entryFixture("Example University", "https://example.com/result/1", "February 10, 2026"),
		entryFixture("Example University", "https://example.com/result/1", "February 10, 2026"),
	}}
	admissionRepo := &fakeAdmissionRepo{existingURLs: map[string]struct{}{}}
	watermarkRepo := newFakeWatermarkRepo()

	task := NewScrapeTask(1, nil, extractor, admissionRepo, watermarkRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(admissionRepo.inserted) != 1 {
		t.Errorf("Expected 1 inserted record for a repeated URL, got %d", len(admissionRepo.inserted))
	}
}

func TestScrapeTask_InsertFailureLeavesWatermarkAlone(t *testing.T) {
	extractor := &fakeExtractor{entries: []scrape.Entry{
		entryFixture("Example University", "https://example.com/result/1", "February 10, 2026"),
	}}
	admissionRepo := &fakeAdmissionRepo{
		existingURLs: map[string]struct{}{},
		insertErr:    errors.New("insert exploded"),
	}
	watermarkRepo := newFakeWatermarkRepo()

	task := NewScrapeTask(1, nil, extractor, admissionRepo, watermarkRepo)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected error from failing insert")
	}

	if len(watermarkRepo.touched) != 0 {
		t.Errorf("Expected watermark untouched after insert failure, got touches: %v", watermarkRepo.touched)
	}
}

func TestScrapeTask_EmptyScrapeStillTouchesWatermark(t *testing.T) {
	admissionRepo := &fakeAdmissionRepo{existingURLs: map[string]struct{}{}}
	watermarkRepo := newFakeWatermarkRepo()
	since := "2026-01-01"

	task := NewScrapeTask(1, &since, &fakeExtractor{}, admissionRepo, watermarkRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected empty scrape to succeed, got: %v", err)
	}

	if len(watermarkRepo.touched) != 1 || watermarkRepo.touched[0] != database.SourceScraped {
		t.Fatalf("Expected one watermark touch, got: %v", watermarkRepo.touched)
	}
	got := watermarkRepo.watermarks[database.SourceScraped]
	if got == nil || *got != since {
		t.Errorf("Expected watermark to fall back to since %q, got: %v", since, got)
	}
}

func TestScrapeTask_UsesStoredWatermarkWhenSinceAbsent(t *testing.T) {
	admissionRepo := &fakeAdmissionRepo{existingURLs: map[string]struct{}{}}
	watermarkRepo := newFakeWatermarkRepo()
	watermarkRepo.watermarks[database.SourceScraped] = strPtr("2026-02-01")

	task := NewScrapeTask(1, nil, &fakeExtractor{}, admissionRepo, watermarkRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got := watermarkRepo.watermarks[database.SourceScraped]
	if got == nil || *got != "2026-02-01" {
		t.Errorf("Expected stored watermark to survive an empty run, got: %v", got)
	}
}

func strPtr(s string) *string {
	return &s
}
