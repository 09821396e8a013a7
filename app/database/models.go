package database

import (
	"time"
)

// Watermark sources written by the ingestion paths.
const (
	SourceScraped   = "gradcafe_scraped"
	SourceRecompute = "recompute"
	SourceSeed      = "seed_json"
)

// Watermark records the most recent data seen from one ingestion source.
// LastSeen is free-form text: a date string for scrapes, a timestamp for
// recomputes, the file path for seeds.
type Watermark struct {
	Source    string
	LastSeen  *string
	UpdatedAt time.Time
}
