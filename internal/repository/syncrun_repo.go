package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

func (r *PostgresRepo) CreateSyncRun(ctx context.Context, run *model.SyncRun) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO sync_runs (id, entity_type, status, delta, started_at)
        VALUES ($1, $2, $3, $4, $5)
    `, run.ID, string(run.EntityType), string(run.Status), run.Delta, run.StartedAt)
	return err
}

// FinishSyncRun writes the finalized counters, status and bounded error list
// back onto the run row created at start.
func (r *PostgresRepo) FinishSyncRun(ctx context.Context, run *model.SyncRun) error {
	var errsJSON []byte
	if len(run.Errors) > 0 {
		var err error
		errsJSON, err = json.Marshal(run.Errors)
		if err != nil {
			return err
		}
	}
	_, err := r.DB.ExecContext(ctx, `
        UPDATE sync_runs
        SET status = $2, completed_at = $3,
            processed = $4, created = $5, updated = $6, unchanged = $7,
            skipped = $8, failed = $9, ambiguous = $10,
            error_count = $11, errors = $12, watermark = $13
        WHERE id = $1
    `, run.ID, string(run.Status), run.CompletedAt,
		run.Processed, run.Created, run.Updated, run.Unchanged,
		run.Skipped, run.Failed, run.Ambiguous,
		run.ErrorCount, errsJSON, run.Watermark)
	return err
}

// GetSyncHistory returns the most recent runs, optionally filtered to one
// entity type. limit <= 0 defaults to 20.
func (r *PostgresRepo) GetSyncHistory(ctx context.Context, entityType string, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
        SELECT id, entity_type, status, delta, started_at, completed_at,
               processed, created, updated, unchanged, skipped, failed, ambiguous,
               error_count, errors, watermark
        FROM sync_runs
    `
	args := []any{}
	if entityType != "" {
		q += ` WHERE entity_type = $1 ORDER BY started_at DESC LIMIT $2`
		args = append(args, entityType, limit)
	} else {
		q += ` ORDER BY started_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncRun
	for rows.Next() {
		var run model.SyncRun
		var t, status string
		var completed, watermark sql.NullTime
		var errsJSON []byte
		if err := rows.Scan(&run.ID, &t, &status, &run.Delta, &run.StartedAt, &completed,
			&run.Processed, &run.Created, &run.Updated, &run.Unchanged,
			&run.Skipped, &run.Failed, &run.Ambiguous,
			&run.ErrorCount, &errsJSON, &watermark); err != nil {
			return nil, err
		}
		run.EntityType = model.EntityType(t)
		run.Status = model.SyncStatus(status)
		if completed.Valid {
			run.CompletedAt = &completed.Time
		}
		if watermark.Valid {
			run.Watermark = &watermark.Time
		}
		if len(errsJSON) > 0 {
			if err := json.Unmarshal(errsJSON, &run.Errors); err != nil {
				return nil, err
			}
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
