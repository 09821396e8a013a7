package normalize

import "time"

// RawRecord is an untyped field map produced by extraction or decoded from a
// seed file. Records arrive in one of two historical key conventions; see
// DetectFormat.
type RawRecord map[string]any

// RecordFormat identifies which key convention a RawRecord uses
type RecordFormat int

const (
	// FormatOld uses capitalized keys such as "University" and "Acceptance Date"
	FormatOld RecordFormat = iota
	// FormatNew uses snake_case keys such as "applicant_status" and "semester_year_start"
	FormatNew
)

// Record is the canonical normalized shape written to the main table
type Record struct {
	Program           string
	Comments          *string
	DateAdded         *time.Time
	URL               *string
	Status            *string
	Term              *string
	USOrInternational *string
	GPA               *float64
	GRE               *float64
	GREVerbal         *float64
	GREWriting        *float64
	Degree            *string
	LLMProgram        *string
	LLMUniversity     *string

	// RawData holds the sanitized JSON serialization of the source record,
	// retained for audit
	RawData []byte
}
