package normalize

import (
	"encoding/json"
	"fmt"
)

// newFormatKeys mark records produced by the live scrape pipeline. Legacy
// exports use capitalized keys and carry none of these.
var newFormatKeys = []string{"applicant_status", "citizenship", "semester_year_start"}

// statusMap canonicalizes decision labels. Unknown labels pass through
// unchanged.
var statusMap = map[string]string{
	"Accepted":    "Accepted",
	"Rejected":    "Rejected",
	"Interview":   "Interview",
	"Wait listed": "Wait listed",
	"Waitlisted":  "Wait listed",
}

// citizenshipMap expands the single-letter codes used by some sources.
var citizenshipMap = map[string]string{
	"American":      "American",
	"International": "International",
	"U":             "American",
	"I":             "International",
}

// DetectFormat classifies a raw record by its key shape.
func DetectFormat(raw RawRecord) RecordFormat {
	for _, key := range newFormatKeys {
		if _, ok := raw[key]; ok {
			return FormatNew
		}
	}
	return FormatOld
}

// Normalize converts a raw record in either source format into an admission
// row. Fields that cannot be interpreted become nil rather than failing the
// record. The serialized original is attached for auditing.
func Normalize(raw RawRecord) (*Record, error) {
	var rec *Record
	switch DetectFormat(raw) {
	case FormatNew:
		rec = mapNew(raw)
	default:
		rec = mapOld(raw)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize raw record: %w", err)
	}
	rec.RawData = sanitizeRawJSON(data)
	rec.sanitize()

	return rec, nil
}

func mapNew(raw RawRecord) *Record {
	rec := &Record{}

	if s := stringValue(raw["program"]); s != nil {
		rec.Program = *s
	}
	rec.Comments = stringValue(raw["comments"])
	if s := stringValue(raw["date_added"]); s != nil {
		rec.DateAdded = ParseDate(*s)
	}
	rec.URL = stringValue(raw["url"])

	if s := stringValue(raw["applicant_status"]); s != nil {
		if mapped, ok := statusMap[*s]; ok {
			rec.Status = &mapped
		} else {
			rec.Status = s
		}
	}
	rec.Term = stringValue(raw["semester_year_start"])
	if s := stringValue(raw["citizenship"]); s != nil {
		if mapped, ok := citizenshipMap[*s]; ok {
			rec.USOrInternational = &mapped
		} else {
			rec.USOrInternational = s
		}
	}

	rec.GPA = ExtractNumeric(raw["gpa"], "GPA")
	rec.GRE = ExtractNumeric(raw["gre"], "GRE")
	rec.GREVerbal = nativeNumeric(raw["gre_v"])
	rec.GREWriting = nativeNumeric(raw["gre_aw"])

	rec.Degree = stringValue(raw["masters_or_phd"])
	rec.LLMProgram = stringValue(raw["llm-generated-program"])
	rec.LLMUniversity = stringValue(raw["llm-generated-university"])

	return rec
}

func mapOld(raw RawRecord) *Record {
	rec := &Record{}

	// Status and date are carried together: whichever decision date is
	// present determines both.
	if s := stringValue(raw["Acceptance Date"]); s != nil && *s != "" {
		status := "Accepted"
		rec.Status = &status
		rec.DateAdded = ParseDate(*s)
	} else if s := stringValue(raw["Rejection Date"]); s != nil && *s != "" {
		status := "Rejected"
		rec.Status = &status
		rec.DateAdded = ParseDate(*s)
	}

	university := ""
	if s := stringValue(raw["University"]); s != nil {
		university = *s
	}
	program := ""
	if s := stringValue(raw["Program"]); s != nil {
		program = *s
	}
	switch {
	case university != "" && program != "":
		rec.Program = university + " - " + program
	case university != "":
		rec.Program = university
	default:
		rec.Program = program
	}

	rec.Comments = stringValue(raw["Notes"])
	rec.URL = stringValue(raw["Url"])
	rec.Term = stringValue(raw["Term"])
	rec.USOrInternational = stringValue(raw["US/International"])

	rec.GPA = nativeNumeric(raw["GPA"])
	rec.GRE = nativeNumeric(raw["GRE General"])
	rec.GREVerbal = nativeNumeric(raw["GRE Verbal"])
	rec.GREWriting = nativeNumeric(raw["GRE Analytical Writing"])

	rec.Degree = stringValue(raw["Degree"])
	rec.LLMProgram = stringValue(raw["LLM Generated Program"])
	if s := stringValue(raw["LLM Generated University"]); s != nil && *s != "" {
		rec.LLMUniversity = s
	} else if university != "" {
		rec.LLMUniversity = &university
	}

	return rec
}

// sanitize cleans every string field in place.
func (r *Record) sanitize() {
	r.Program = sanitizeString(r.Program)
	for _, s := range []*string{
		r.Comments, r.URL, r.Status, r.Term, r.USOrInternational,
		r.Degree, r.LLMProgram, r.LLMUniversity,
	} {
		if s != nil {
			*s = sanitizeString(*s)
		}
	}
}

func stringValue(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
