package syncer

import (
	"strings"
	"time"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName lowercases, strips punctuation and collapses whitespace so
// that "O'Brien,  Mary" and "obrien mary" compare equal.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeSpace trims and collapses internal whitespace.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dateLayouts are tried in order when normalizing remote date fields.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"2006-01-02 15:04:05",
}

// NormalizeDate parses a remote date string and renders it canonically:
// date-only values as 2006-01-02, timestamps as RFC3339 in UTC. Unparseable
// values pass through trimmed so the diff still sees them.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		ts, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" || layout == "01/02/2006" {
			return ts.Format("2006-01-02")
		}
		return ts.UTC().Format(time.RFC3339)
	}
	return s
}

// NormalizeEnum lowercases, trims and collapses separators so that remote
// enum spellings ("In-Active", "in_active") map onto one local value.
func NormalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

var levenshtein = metrics.NewLevenshtein()

// Similarity returns a [0,1] ratio between two names after normalization.
// Equal normalized inputs score exactly 1.0.
func Similarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == nb {
		return 1.0
	}
	return strutil.Similarity(na, nb, levenshtein)
}
