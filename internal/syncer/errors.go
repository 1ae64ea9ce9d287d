package syncer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// ErrSyncInProgress is returned when a run is requested for an entity type
// that already has one in flight. Overlapping runs are suppressed, not
// queued.
var ErrSyncInProgress = errors.New("sync already in progress for entity type")

// FetchError is fatal to a run: the remote source could not be reached even
// after retries. Cursor names the last successfully consumed position so a
// caller can resume without reprocessing.
type FetchError struct {
	EntityType model.EntityType
	Cursor     string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s page after cursor %q: %v", e.EntityType, e.Cursor, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError marks a record missing a required field. The record is
// skipped and counted; the run continues.
type ValidationError struct {
	ExternalID string
	Field      string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %q field %q: %s", e.ExternalID, e.Field, e.Message)
}

// ConstraintError marks a local uniqueness or FK violation on write. The
// record's transaction was rolled back; the run continues.
type ConstraintError struct {
	ExternalID string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("record %q: constraint violation: %v", e.ExternalID, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// AmbiguousMatchError marks a record with multiple equally valid local
// candidates. Nothing is written; the record needs review.
type AmbiguousMatchError struct {
	ExternalID string
	Candidates []model.MatchCandidate
}

func (e *AmbiguousMatchError) Error() string {
	ids := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		ids = append(ids, fmt.Sprintf("%d (%s %.2f)", c.Entity.ID, c.Type, c.Score))
	}
	return fmt.Sprintf("record %q: %d local candidates: %s",
		e.ExternalID, len(e.Candidates), strings.Join(ids, ", "))
}

// isConstraintViolation reports whether err wraps a Postgres integrity
// constraint violation (class 23: unique, FK, not-null, check).
func isConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.HasPrefix(string(pqErr.Code), "23")
	}
	return false
}
