package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "mary@example.org", NormalizeEmail("  Mary@Example.ORG "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "obrien mary", NormalizeName("O'Brien,  Mary"))
	assert.Equal(t, "anne marie", NormalizeName("Anne-Marie"))
	assert.Equal(t, "jose garcia", NormalizeName("  JOSE   GARCIA  "))
	assert.Equal(t, "", NormalizeName("''.,!"))
}

func TestNormalizeDate(t *testing.T) {
	// Date-only layouts render canonically as yyyy-mm-dd.
	assert.Equal(t, "1990-03-07", NormalizeDate("1990-03-07"))
	assert.Equal(t, "1990-03-07", NormalizeDate("03/07/1990"))

	// Timestamps render as RFC3339 in UTC.
	assert.Equal(t, "2026-05-01T10:00:00Z", NormalizeDate("2026-05-01T12:00:00+02:00"))
	assert.Equal(t, "2026-05-01T10:00:00Z", NormalizeDate("2026-05-01 10:00:00"))

	// Unparseable values pass through trimmed.
	assert.Equal(t, "next tuesday", NormalizeDate(" next tuesday "))
	assert.Equal(t, "", NormalizeDate(""))
}

// Normalization must be idempotent: a stored canonical value re-normalizes
// to itself, so an unchanged record diffs to zero changes on every run.
func TestNormalizeDateIdempotent(t *testing.T) {
	for _, in := range []string{"03/07/1990", "2026-05-01T12:00:00+02:00", "garbage"} {
		once := NormalizeDate(in)
		assert.Equal(t, once, NormalizeDate(once), "input %q", in)
	}
}

func TestNormalizeEnum(t *testing.T) {
	assert.Equal(t, "in active", NormalizeEnum("In-Active"))
	assert.Equal(t, "in active", NormalizeEnum("in_active"))
	assert.Equal(t, "in active", NormalizeEnum("  IN ACTIVE "))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("O'Brien Mary", "obrien  mary"))
	assert.Greater(t, Similarity("katherine smith", "katharine smith"), 0.9)
	assert.Less(t, Similarity("katherine smith", "bob jones"), 0.5)
}
