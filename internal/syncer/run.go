package syncer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// maxRunErrors caps the persisted error list of one run; errors past the
// cap are still counted in ErrorCount.
const maxRunErrors = 100

// Outcome tags the result of applying one remote record. Explicit outcomes
// replace exception-driven per-row control flow: the coordinator returns a
// tag, the ledger aggregates it.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeUpdated
	OutcomeUnchanged
	OutcomeAmbiguous
	OutcomeSkipped
	OutcomeFailed
)

// RunLedger aggregates one run's per-record outcomes and drives the run
// state machine: CREATED → RUNNING → SUCCESS | PARTIAL | FAILED |
// CANCELLED.
type RunLedger struct {
	run   *model.SyncRun
	begun bool
}

func NewRunLedger(t model.EntityType, delta bool) *RunLedger {
	return &RunLedger{
		run: &model.SyncRun{
			ID:         uuid.New(),
			EntityType: t,
			Delta:      delta,
			Status:     model.SyncCreated,
			StartedAt:  time.Now().UTC(),
		},
	}
}

// Run exposes the underlying run row (for the initial persist).
func (l *RunLedger) Run() *model.SyncRun { return l.run }

// Begin marks the first successfully fetched page. A run that never begins
// finalizes as FAILED.
func (l *RunLedger) Begin() {
	if !l.begun {
		l.begun = true
		l.run.Status = model.SyncRunning
	}
}

// Record aggregates one record's outcome. err is recorded for ambiguous,
// skipped and failed outcomes.
func (l *RunLedger) Record(outcome Outcome, externalID string, err error) {
	switch outcome {
	case OutcomeCreated:
		l.run.Created++
		l.run.Processed++
	case OutcomeUpdated:
		l.run.Updated++
		l.run.Processed++
	case OutcomeUnchanged:
		l.run.Unchanged++
		l.run.Processed++
	case OutcomeAmbiguous:
		l.run.Ambiguous++
		l.addError("ambiguous_match", externalID, err)
	case OutcomeSkipped:
		l.run.Skipped++
		l.addError("validation", externalID, err)
	case OutcomeFailed:
		l.run.Failed++
		kind := "error"
		var cErr *ConstraintError
		if errors.As(err, &cErr) {
			kind = "constraint"
		}
		l.addError(kind, externalID, err)
	}
}

func (l *RunLedger) addError(kind, externalID string, err error) {
	l.run.ErrorCount++
	if len(l.run.Errors) >= maxRunErrors {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.run.Errors = append(l.run.Errors, model.SyncError{
		ExternalID: externalID,
		Kind:       kind,
		Message:    msg,
	})
}

// Finalize closes the run. fetchErr is a run-level failure (the watermark
// never advances); cancelled runs count as partial for watermark purposes.
// On SUCCESS the watermark is set to the run's start time so records
// modified mid-run are re-fetched by the next delta.
func (l *RunLedger) Finalize(cancelled bool, fetchErr error) *model.SyncRun {
	now := time.Now().UTC()
	l.run.CompletedAt = &now

	switch {
	case fetchErr != nil:
		l.run.Status = model.SyncFailed
		l.addError("fetch", "", fetchErr)
	case cancelled:
		l.run.Status = model.SyncCancelled
	case !l.begun:
		l.run.Status = model.SyncFailed
	case l.run.Failed > 0:
		l.run.Status = model.SyncPartial
	default:
		l.run.Status = model.SyncSuccess
		wm := l.run.StartedAt
		l.run.Watermark = &wm
	}
	return l.run
}
