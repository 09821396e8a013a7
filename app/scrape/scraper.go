package scrape

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mlesyk/gradpipe/app/metrics"
	"github.com/mlesyk/gradpipe/app/normalize"
	"github.com/mlesyk/gradpipe/app/sources"
)

// listingDatePattern matches the date formats shown in survey rows, either
// numeric (14/02/2026, 14-02-26) or written out (February 14, 2026).
var listingDatePattern = regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})|([A-Za-z]+ \d{1,2}, \d{4})`)

// Scraper walks survey pages of a single source and assembles entries,
// tracking every result link it sees so unparseable rows can be recovered
// afterwards. A Scraper instance is good for one run.
type Scraper struct {
	profile       *sources.SourceConfig
	httpClient    *http.Client
	delay         time.Duration
	entries       []Entry
	foundURLs     map[string]struct{}
	processedURLs map[string]struct{}
	edgeCases     []EdgeCase
	resultPattern *regexp.Regexp
}

func NewScraper(profile *sources.SourceConfig, httpClient *http.Client) *Scraper {
	return &Scraper{
		profile:       profile,
		httpClient:    httpClient,
		delay:         profile.Settings.GetRequestDelay(),
		foundURLs:     make(map[string]struct{}),
		processedURLs: make(map[string]struct{}),
		resultPattern: resultURLPattern(profile.Source.ResultBaseURL),
	}
}

// Run fetches up to maxPages survey pages and returns the extracted entries.
// Fetch and parse failures end the walk with whatever was collected so far;
// only context cancellation is returned as an error.
func (s *Scraper) Run(ctx context.Context, maxPages int) ([]Entry, error) {
	slog.Info("Starting scrape", "source", s.profile.Source.Name, "max_pages", maxPages)

	page := 0
	for {
		if err := ctx.Err(); err != nil {
			return s.entries, err
		}

		pageURL := fmt.Sprintf("%s?page=%d", s.profile.Source.BaseURL, page)
		slog.Debug("Fetching survey page", "page", page, "url", pageURL)

		data, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			slog.Error("Failed to fetch survey page", "page", page, "error", err)
			break
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
		if err != nil {
			slog.Error("Failed to parse survey page", "page", page, "error", err)
			break
		}

		rows := s.selectRows(doc)
		if len(rows) == 0 {
			slog.Info("No entries found, stopping", "page", page)
			break
		}

		entries := s.parseRows(ctx, rows)
		if len(entries) == 0 {
			slog.Warn("Failed to parse any entries, stopping", "page", page)
			break
		}
		s.entries = append(s.entries, entries...)
		metrics.EntriesScraped.Add(float64(len(entries)))
		slog.Debug("Parsed survey page", "page", page, "entries", len(entries), "total", len(s.entries))

		// Unusual row structures can hide result links from the table walk,
		// so the raw HTML is scanned as well.
		s.harvestResultURLs(data)

		if maxPages > 0 && page >= maxPages-1 {
			break
		}
		page++
		sleepWithContext(ctx, s.delay)
	}

	if err := ctx.Err(); err != nil {
		return s.entries, err
	}

	s.recoverEdgeCases(ctx)

	slog.Info("Scrape complete",
		"source", s.profile.Source.Name,
		"entries", len(s.entries),
		"found_urls", len(s.foundURLs),
		"edge_cases", len(s.edgeCases))

	return s.entries, nil
}

// selectRows locates applicant rows, degrading through selectors as the
// markup varies between page generations.
func (s *Scraper) selectRows(doc *goquery.Document) []*goquery.Selection {
	rows := collectRows(doc.Find("tr.tr_"))
	if len(rows) > 0 {
		return rows
	}

	if table := doc.Find("table.table").First(); table.Length() > 0 {
		trs := table.Find("tr")
		if trs.Length() > 1 {
			return collectRows(trs.Slice(1, trs.Length()))
		}
	}

	// Survey data usually sits in one of the first few tables.
	doc.Find("table").EachWithBreak(func(i int, table *goquery.Selection) bool {
		if i >= 3 {
			return false
		}
		trs := table.Find("tr")
		if trs.Length() > 1 {
			rows = collectRows(trs.Slice(1, trs.Length()))
			return false
		}
		return true
	})

	return rows
}

func collectRows(sel *goquery.Selection) []*goquery.Selection {
	rows := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, row *goquery.Selection) {
		rows = append(rows, row)
	})
	return rows
}

func (s *Scraper) parseRows(ctx context.Context, rows []*goquery.Selection) []Entry {
	parsed := make([]Entry, 0, len(rows))

	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}

		rowURL := s.extractURL(row)
		if rowURL != "" {
			s.foundURLs[rowURL] = struct{}{}
		}

		entry, ok := s.parseRow(row, rowURL)
		if !ok {
			if rowURL != "" {
				s.edgeCases = append(s.edgeCases, EdgeCase{
					URL:    rowURL,
					Reason: "failed standard parsing",
				})
			}
			continue
		}

		// The result page carries scores, season, and comments that the
		// survey row does not.
		if entry.URL != "" {
			if d := s.fetchDetails(ctx, entry.URL); d != nil {
				entry.applyDetails(d)
			}
			sleepWithContext(ctx, s.delay)
			s.processedURLs[entry.URL] = struct{}{}
		}

		parsed = append(parsed, entry)
	}

	return parsed
}

func (s *Scraper) parseRow(row *goquery.Selection, rowURL string) (Entry, bool) {
	var cells []*goquery.Selection
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		if strings.TrimSpace(cell.Text()) != "" {
			cells = append(cells, cell)
		}
	})

	if len(cells) < 3 {
		return Entry{}, false
	}

	entry := Entry{ScrapedAt: time.Now()}

	// Cell 0 holds the university, nested in a styled div on current markup.
	if uni := cells[0].Find("div.tw-font-medium"); uni.Length() > 0 {
		entry.University = cleanText(uni.Text())
	} else {
		entry.University = cleanText(cells[0].Text())
	}

	// Cell 1 holds program and degree, separated by a bullet.
	cell1Text := strings.TrimSpace(cells[1].Text())
	programText := cell1Text
	if idx := strings.Index(cell1Text, "•"); idx >= 0 {
		programText = strings.TrimSpace(cell1Text[:idx])
	}
	spans := cells[1].Find("span")
	if spans.Length() >= 1 {
		entry.Program = cleanText(spans.First().Text())
	} else {
		entry.Program = cleanText(strings.SplitN(programText, "\n", 2)[0])
	}
	entry.Degree = extractRowDegree(cell1Text, spans)

	entry.StatusDate = extractDate(cells[2].Text())
	if len(cells) > 3 {
		entry.Status = extractStatus(cells[3].Text())
	}

	// Rows without a result link cannot be enriched or deduplicated later,
	// so they are skipped.
	entry.URL = rowURL
	if entry.URL == "" {
		return Entry{}, false
	}

	return entry, true
}

func (s *Scraper) extractURL(row *goquery.Selection) string {
	href, ok := row.Find("a[href]").First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http") {
		return href
	}

	base, err := url.Parse(s.profile.Source.ResultBaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// harvestResultURLs scans raw page HTML for result links missed by row
// parsing.
func (s *Scraper) harvestResultURLs(data []byte) {
	base := strings.TrimSuffix(s.profile.Source.ResultBaseURL, "/")
	for _, m := range s.resultPattern.FindAllStringSubmatch(string(data), -1) {
		s.foundURLs[fmt.Sprintf("%s/result/%s", base, m[1])] = struct{}{}
	}
}

func resultURLPattern(resultBaseURL string) *regexp.Regexp {
	host := resultBaseURL
	if u, err := url.Parse(resultBaseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return regexp.MustCompile(`(?i)https?://` + regexp.QuoteMeta(host) + `/result/(\d+)`)
}

func extractRowDegree(cellText string, spans *goquery.Selection) string {
	lower := strings.ToLower(cellText)
	switch {
	case strings.Contains(lower, "phd") || strings.Contains(lower, "doctorate"):
		return "PhD"
	case strings.Contains(lower, "master") || strings.Contains(lower, "ma") || strings.Contains(lower, "ms"):
		return "Masters"
	case spans.Length() >= 2:
		return extractDegree(spans.Last().Text())
	}
	return ""
}

func extractDegree(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(text, "phd") || strings.Contains(text, "doctorate"):
		return "PhD"
	case strings.Contains(text, "master") || strings.Contains(text, "ma") || strings.Contains(text, "ms"):
		return "Masters"
	}
	return text
}

func extractStatus(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(text, "accept"):
		return "Accepted"
	case strings.Contains(text, "reject"):
		return "Rejected"
	case strings.Contains(text, "waitlist"):
		return "Waitlisted"
	case strings.Contains(text, "interview"):
		return "Interview"
	case strings.Contains(text, "pending"):
		return "Pending"
	}
	return text
}

func extractDate(text string) string {
	text = cleanText(text)
	if text == "" {
		return ""
	}
	return listingDatePattern.FindString(text)
}

func cleanText(text string) string {
	return normalize.NormalizeText(text)
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
