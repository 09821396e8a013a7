package scrape

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Result pages label the same value several ways, so each field carries an
// ordered list of patterns and the first match wins.
var (
	greVerbalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)GRE\s+Verbal\s*:\s*(\d{2,3})`),
		regexp.MustCompile(`(?i)\bVerbal\s*:\s*(\d{2,3})`),
	}
	greQuantPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:GRE\s+)?Quantitative\s*:\s*(\d{2,3})`),
		regexp.MustCompile(`(?i)\bQuant\s*:\s*(\d{2,3})`),
	}
	// Some pages show only a combined V+Q score.
	greGeneralPattern = regexp.MustCompile(`(?i)GRE\s+General\s*:\s*(\d{2,3})`)

	greWritingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Analytical\s+Writing\s*:\s*(\d+\.\d+)`),
		regexp.MustCompile(`(?i)\bAW\s*:\s*([0-6](?:\.\d+)?)`),
	}
	gpaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Undergrad\s+GPA\s*[:\s]*([0-4](?:\.\d{1,2})?)`),
		regexp.MustCompile(`(?i)\bGPA\s*:\s*([0-4](?:\.\d{1,2})?)`),
	}

	seasonPattern       = regexp.MustCompile(`(Fall|Spring|Summer|Winter)\s+(\d{4})`)
	countryLabelPattern = regexp.MustCompile(`(?i)Degree'?s?\s+Country\s+of\s+Origin\s*:\s*([^\n]+)`)
	usWordPattern       = regexp.MustCompile(`(?i)\b(?:us|usa)\b`)
)

const commentsLimit = 500

// fetchDetails loads a result page and extracts the detail fields. Detail
// data is optional; any failure yields nil and the entry keeps its row-level
// fields.
func (s *Scraper) fetchDetails(ctx context.Context, pageURL string) *details {
	data, err := s.fetchPage(ctx, pageURL)
	if err != nil {
		slog.Debug("Failed to fetch result page", "url", pageURL, "error", err)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		slog.Debug("Failed to parse result page", "url", pageURL, "error", err)
		return nil
	}

	return detailsFromDoc(doc)
}

func detailsFromDoc(doc *goquery.Document) *details {
	text := doc.Text()
	d := &details{}

	if m := firstMatch(greVerbalPatterns, text); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			d.greVerbal = v
		}
	}

	if m := firstMatch(greQuantPatterns, text); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			d.greQuant = v
		}
	} else if m := greGeneralPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			d.greGeneral = v
		}
	}

	if m := firstMatch(greWritingPatterns, text); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			d.greWriting = v
		}
	}

	if m := firstMatch(gpaPatterns, text); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			d.gpa = v
		}
	}

	if m := seasonPattern.FindStringSubmatch(text); m != nil {
		d.season = m[1] + " " + m[2]
	}

	d.comments = extractComments(doc)
	d.country = extractCountry(text)

	return d
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// extractComments finds the first text node mentioning comments and returns
// its parent's text, capped.
func extractComments(doc *goquery.Document) string {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.TextNode && strings.Contains(strings.ToLower(n.Data), "comment") {
			found = n.Parent
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range doc.Nodes {
		walk(root)
	}
	if found == nil {
		return ""
	}

	text := goquery.NewDocumentFromNode(found).Text()
	if r := []rune(text); len(r) > commentsLimit {
		text = string(r[:commentsLimit])
	}
	return cleanText(text)
}

func extractCountry(text string) string {
	if m := countryLabelPattern.FindStringSubmatch(text); m != nil {
		return cleanText(m[1])
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "international") {
		return "International"
	}
	if usWordPattern.MatchString(text) {
		return "American"
	}
	return ""
}
