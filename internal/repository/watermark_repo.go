package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// GetWatermark returns the last fully-synced timestamp for an entity type,
// or nil when the type has never completed a successful run.
func (r *PostgresRepo) GetWatermark(ctx context.Context, t model.EntityType) (*time.Time, error) {
	var ts time.Time
	err := r.DB.QueryRowContext(ctx,
		`SELECT last_synced_at FROM watermarks WHERE entity_type = $1`, string(t)).Scan(&ts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// SetWatermark advances an entity type's watermark. GREATEST keeps the value
// monotonic and the advisory lock serializes concurrent writers on the same
// type, so a stale run can never move it backwards.
func (r *PostgresRepo) SetWatermark(ctx context.Context, t model.EntityType, ts time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(t)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO watermarks (entity_type, last_synced_at)
        VALUES ($1, $2)
        ON CONFLICT (entity_type) DO UPDATE
        SET last_synced_at = GREATEST(watermarks.last_synced_at, EXCLUDED.last_synced_at),
            updated_at = now()
    `, string(t), ts); err != nil {
		return err
	}
	return tx.Commit()
}

// ListWatermarks returns every stored watermark for inspection endpoints.
func (r *PostgresRepo) ListWatermarks(ctx context.Context) ([]model.Watermark, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT entity_type, last_synced_at, updated_at FROM watermarks ORDER BY entity_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Watermark
	for rows.Next() {
		var wm model.Watermark
		var t string
		if err := rows.Scan(&t, &wm.LastSyncedAt, &wm.UpdatedAt); err != nil {
			return nil, err
		}
		wm.EntityType = model.EntityType(t)
		out = append(out, wm)
	}
	return out, rows.Err()
}
