package scrape

import (
	"time"

	"github.com/mlesyk/gradpipe/app/normalize"
)

// Entry is one applicant posting assembled from a survey row and, when
// available, its result page.
type Entry struct {
	University string
	Program    string
	Degree     string
	Status     string
	StatusDate string
	Season     string
	Comments   string
	Country    string
	GREVerbal  int
	GREQuant   int
	GREGeneral int
	GREWriting float64
	GPA        float64
	URL        string
	ScrapedAt  time.Time
}

// EdgeCase records a survey row whose link was found but whose row could not
// be parsed. Recovery revisits these via the result page.
type EdgeCase struct {
	URL       string
	Reason    string
	Recovered bool
}

// details holds the fields extracted from a result page. Applying them
// replaces the corresponding entry fields wholesale.
type details struct {
	greVerbal  int
	greQuant   int
	greGeneral int
	greWriting float64
	gpa        float64
	season     string
	comments   string
	country    string
}

func (e *Entry) applyDetails(d *details) {
	e.GREVerbal = d.greVerbal
	e.GREQuant = d.greQuant
	e.GREGeneral = d.greGeneral
	e.GREWriting = d.greWriting
	e.GPA = d.gpa
	e.Season = d.season
	e.Comments = d.comments
	e.Country = d.country
}

// CombinedProgram folds university and program into the single program field
// used downstream.
func (e *Entry) CombinedProgram() string {
	switch {
	case e.University != "" && e.Program != "":
		return e.University + " - " + e.Program
	case e.University != "":
		return e.University
	default:
		return e.Program
	}
}

// Record converts the entry into the raw record shape consumed by the
// ingestion pipeline. Zero scores mean the value was never found and are
// omitted.
func (e *Entry) Record() normalize.RawRecord {
	rec := normalize.RawRecord{
		"program":             e.CombinedProgram(),
		"applicant_status":    nilIfEmpty(e.Status),
		"date_added":          nilIfEmpty(e.StatusDate),
		"url":                 nilIfEmpty(e.URL),
		"semester_year_start": nilIfEmpty(e.Season),
		"citizenship":         nilIfEmpty(e.Country),
		"comments":            nilIfEmpty(e.Comments),
		"masters_or_phd":      nilIfEmpty(e.Degree),
	}

	if e.GPA != 0 {
		rec["gpa"] = e.GPA
	}
	if e.GREGeneral != 0 {
		rec["gre"] = float64(e.GREGeneral)
	}
	if e.GREQuant != 0 {
		rec["gre_q"] = float64(e.GREQuant)
	}
	if e.GREVerbal != 0 {
		rec["gre_v"] = float64(e.GREVerbal)
	}
	if e.GREWriting != 0 {
		rec["gre_aw"] = e.GREWriting
	}

	return rec
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
