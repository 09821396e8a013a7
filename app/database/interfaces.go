package database

import (
	"github.com/mlesyk/gradpipe/app/normalize"
)

// AdmissionRepository defines the operations task handlers and the status
// surface perform against the main table.
type AdmissionRepository interface {
	GetExistingURLs() (map[string]struct{}, error)
	GetRecordCount() (int, error)
	GetMaxDateAdded() (*string, error)

	InsertRecords(records []normalize.Record) error
	Analyze() error
}

// WatermarkRepository defines the operations against ingestion_watermarks.
// TouchWatermark keeps the stored value when lastSeen is nil; SetWatermark
// overwrites unconditionally.
type WatermarkRepository interface {
	GetWatermark(source string) (*Watermark, error)
	GetAllWatermarks() ([]Watermark, error)

	TouchWatermark(source string, lastSeen *string) error
	SetWatermark(source, lastSeen string) error
}
