package normalize

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/unicode/norm"
)

// dateLayouts are tried in order; first success wins. Day-first forms come
// before month-first so "14/02/2026" resolves to February 14.
var dateLayouts = []string{
	"2/1/2006",
	"1/2/2006",
	"January 2, 2006",
	"2006-1-2",
	"06-1-2",
	"2-1-2006",
	"2-1-06",
}

// ParseDate resolves the heterogeneous date encodings seen in source data,
// with a strict dateparse pass as the last resort. Unparseable input yields
// nil, never an error.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return datePtr(t)
		}
	}
	if t, err := dateparse.ParseStrict(s); err == nil {
		return datePtr(t)
	}
	return nil
}

func datePtr(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// ExtractNumeric pulls a float out of a raw field value. Values may arrive as
// native numbers or as prefixed strings such as "GPA 3.74"; the prefix is
// stripped and the remainder parsed. Anything unparseable yields nil. A native
// zero is the extraction layer's not-provided sentinel and also resolves to
// nil.
func ExtractNumeric(value any, prefix string) *float64 {
	switch v := value.(type) {
	case float64:
		if v == 0 {
			return nil
		}
		return &v
	case int:
		if v == 0 {
			return nil
		}
		f := float64(v)
		return &f
	case string:
		if prefix != "" {
			v = strings.ReplaceAll(v, prefix, "")
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// nativeNumeric accepts only values that are already numbers. Prefixed
// strings such as "GRE 320" are not interpreted here.
func nativeNumeric(value any) *float64 {
	switch v := value.(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&quot;", `"`,
	"&apos;", "'",
)

// NormalizeText strips markup remnants, collapses whitespace, and resolves
// common HTML entities.
func NormalizeText(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	s = entityReplacer.Replace(s)
	return strings.TrimSpace(s)
}

// sanitizeString strips embedded NULs and applies NFC normalization. The
// target store rejects strings containing NUL bytes.
func sanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return norm.NFC.String(s)
}

// sanitizeRawJSON strips NUL bytes and literal \u0000 escape sequences from a
// serialized record.
func sanitizeRawJSON(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\x00"), nil)
	b = bytes.ReplaceAll(b, []byte(`\u0000`), nil)
	return b
}
