package scrape

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mlesyk/gradpipe/app/metrics"
)

var (
	universityPattern   = regexp.MustCompile(`(?i)(?:University|University of|College|Institute)\s+(?:of\s+)?([^:\n]+?)(?:\n|:)`)
	programAfterPattern = regexp.MustCompile(`\n\s*([A-Z][^:\n]{5,60}?)(?:\n|:)`)
	programLabelPattern = regexp.MustCompile(`(?i)(?:Program|Major)[\s:]+([^:\n]+?)(?:\n|$)`)
)

// recoveryStatuses are checked in order; the first keyword hit wins.
var recoveryStatuses = []struct {
	status   string
	keywords []string
}{
	{"Accepted", []string{"accept", "admitted"}},
	{"Rejected", []string{"reject", "denied", "declined"}},
	{"Interview", []string{"interview", "interview phase"}},
	{"Waitlisted", []string{"waitlist", "waitlisted"}},
	{"Pending", []string{"pending", "under review"}},
}

// recoverEdgeCases revisits result links that were found on survey pages but
// never turned into entries, reconstructing what it can from the result page
// itself.
func (s *Scraper) recoverEdgeCases(ctx context.Context) {
	unprocessed := make([]string, 0)
	for u := range s.foundURLs {
		if _, ok := s.processedURLs[u]; !ok {
			unprocessed = append(unprocessed, u)
		}
	}
	if len(unprocessed) == 0 {
		return
	}

	slog.Info("Attempting edge case recovery", "count", len(unprocessed))

	recovered := 0
	for _, pageURL := range unprocessed {
		if ctx.Err() != nil {
			break
		}

		ok := s.recoverEntry(ctx, pageURL)
		if ok {
			recovered++
			s.markRecovered(pageURL)
			metrics.RecoveryAttempts.WithLabelValues("recovered").Inc()
		} else {
			metrics.RecoveryAttempts.WithLabelValues("failed").Inc()
		}
		slog.Info("Edge case recovery attempt", "url", pageURL, "recovered", ok)

		sleepWithContext(ctx, s.delay)
	}

	if recovered > 0 {
		slog.Info("Edge case recovery complete", "recovered", recovered, "attempted", len(unprocessed))
	}
}

func (s *Scraper) recoverEntry(ctx context.Context, pageURL string) bool {
	data, err := s.fetchPage(ctx, pageURL)
	if err != nil {
		slog.Debug("Failed to fetch result page", "url", pageURL, "error", err)
		return false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return false
	}

	entry := entryFromResultPage(pageURL, doc)
	if entry.University == "" && entry.Program == "" {
		return false
	}

	entry.applyDetails(detailsFromDoc(doc))
	s.entries = append(s.entries, entry)
	return true
}

// entryFromResultPage reconstructs an entry from loose page text when the
// survey row could not be parsed.
func entryFromResultPage(pageURL string, doc *goquery.Document) Entry {
	text := doc.Text()
	entry := Entry{URL: pageURL, ScrapedAt: time.Now()}

	if m := universityPattern.FindStringSubmatch(text); m != nil {
		entry.University = cleanText(m[1])
	}

	// The program usually follows the university mention.
	if entry.University != "" {
		if pos := strings.Index(text, entry.University); pos >= 0 {
			section := text[pos:min(pos+500, len(text))]
			if m := programAfterPattern.FindStringSubmatch(section); m != nil {
				entry.Program = cleanText(m[1])
			}
		}
	}
	if entry.Program == "" {
		if m := programLabelPattern.FindStringSubmatch(text); m != nil {
			entry.Program = cleanText(m[1])
		}
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "phd"):
		entry.Degree = "PhD"
	case strings.Contains(lower, "master") || strings.Contains(lower, "ma "):
		entry.Degree = "Masters"
	case strings.Contains(lower, "doctoral"):
		entry.Degree = "PhD"
	}

	for _, sk := range recoveryStatuses {
		for _, kw := range sk.keywords {
			if strings.Contains(lower, kw) {
				entry.Status = sk.status
				break
			}
		}
		if entry.Status != "" {
			break
		}
	}

	return entry
}

func (s *Scraper) markRecovered(pageURL string) {
	for i := range s.edgeCases {
		if s.edgeCases[i].URL == pageURL {
			s.edgeCases[i].Recovered = true
			break
		}
	}
}
