package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// ContactSnapshot loads every contact with its email addresses and activity
// counts in one query. Participations and histories reference contacts by
// external ID, so unlinked contacts report zero activity.
func (r *PostgresRepo) ContactSnapshot(ctx context.Context) ([]model.ContactSnapshot, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT c.id, c.contact_type, c.first_name, c.last_name,
               COALESCE(array_agg(DISTINCT e.address) FILTER (WHERE e.address IS NOT NULL), '{}'),
               COALESCE(p.cnt, 0), COALESCE(h.cnt, 0)
        FROM contacts c
        LEFT JOIN contact_emails e ON e.contact_id = c.id
        LEFT JOIN (
            SELECT contact_external_id, COUNT(*) AS cnt FROM participations GROUP BY contact_external_id
        ) p ON c.external_id = p.contact_external_id
        LEFT JOIN (
            SELECT contact_external_id, COUNT(*) AS cnt FROM histories GROUP BY contact_external_id
        ) h ON c.external_id = h.contact_external_id
        GROUP BY c.id, c.contact_type, c.first_name, c.last_name, p.cnt, h.cnt
        ORDER BY c.id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContactSnapshot
	for rows.Next() {
		var snap model.ContactSnapshot
		var t string
		var first, last sql.NullString
		if err := rows.Scan(&snap.ID, &t, &first, &last,
			pq.Array(&snap.Emails), &snap.ParticipationCount, &snap.HistoryCount); err != nil {
			return nil, err
		}
		snap.Type = model.EntityType(t)
		snap.FirstName = first.String
		snap.LastName = last.String
		out = append(out, snap)
	}
	return out, rows.Err()
}
