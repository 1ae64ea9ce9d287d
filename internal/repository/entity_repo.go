package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
	"github.com/sparkprog/go-crmsync-backend/internal/syncer"
)

// Attribute columns hold normalized text (dates canonicalized by the field
// map normalizers), so reading a row back yields exactly what the change
// detector wrote and an unchanged delta sync produces zero writes.

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func tableFor(t model.EntityType) string {
	if t.IsContact() {
		return "contacts"
	}
	switch t {
	case model.EntityEvent:
		return "events"
	case model.EntityParticipation:
		return "participations"
	case model.EntityHistory:
		return "histories"
	}
	return ""
}

func selectEntity(t model.EntityType) string {
	return fmt.Sprintf("SELECT id, external_id, created_at, updated_at, %s FROM %s",
		strings.Join(model.AttrNames(t), ", "), tableFor(t))
}

func (r *PostgresRepo) scanEntity(t model.EntityType, row *sql.Row) (*model.LocalEntity, error) {
	attrs := model.AttrNames(t)
	ent := &model.LocalEntity{Type: t, Attrs: make(map[string]string, len(attrs))}

	var extID sql.NullString
	vals := make([]sql.NullString, len(attrs))
	dest := []any{&ent.ID, &extID, &ent.CreatedAt, &ent.UpdatedAt}
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if extID.Valid && extID.String != "" {
		ent.ExternalID = &extID.String
	}
	for i, attr := range attrs {
		ent.Attrs[attr] = vals[i].String
	}
	return ent, nil
}

func (r *PostgresRepo) FindByExternalID(ctx context.Context, t model.EntityType, externalID string) (*model.LocalEntity, error) {
	q := selectEntity(t) + " WHERE external_id = $1"
	args := []any{externalID}
	if t.IsContact() {
		q += " AND contact_type = $2"
		args = append(args, string(t))
	}
	ent, err := r.scanEntity(t, r.DB.QueryRowContext(ctx, q, args...))
	if err != nil || ent == nil {
		return nil, err
	}
	if t.IsContact() {
		if err := r.loadChildren(ctx, ent); err != nil {
			return nil, err
		}
	}
	return ent, nil
}

func (r *PostgresRepo) GetEntity(ctx context.Context, t model.EntityType, id int64) (*model.LocalEntity, error) {
	q := selectEntity(t) + " WHERE id = $1"
	ent, err := r.scanEntity(t, r.DB.QueryRowContext(ctx, q, id))
	if err != nil || ent == nil {
		return nil, err
	}
	if t.IsContact() {
		if err := r.loadChildren(ctx, ent); err != nil {
			return nil, err
		}
	}
	return ent, nil
}

func (r *PostgresRepo) FindContactsByEmail(ctx context.Context, t model.EntityType, email string) ([]*model.LocalEntity, error) {
	q := `
        SELECT c.id
        FROM contacts c
        JOIN contact_emails e ON e.contact_id = c.id
        WHERE c.contact_type = $1 AND lower(e.address) = $2
        ORDER BY c.id
    `
	rows, err := r.DB.QueryContext(ctx, q, string(t), email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*model.LocalEntity, 0, len(ids))
	for _, id := range ids {
		ent, err := r.GetEntity(ctx, t, id)
		if err != nil {
			return nil, err
		}
		if ent != nil {
			out = append(out, ent)
		}
	}
	return out, nil
}

// ContactNames returns lightweight contacts (id plus name attributes) of
// one kind for fuzzy scoring.
func (r *PostgresRepo) ContactNames(ctx context.Context, t model.EntityType) ([]*model.LocalEntity, error) {
	q := `SELECT id, first_name, last_name FROM contacts WHERE contact_type = $1 ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, q, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.LocalEntity
	for rows.Next() {
		var id int64
		var first, last sql.NullString
		if err := rows.Scan(&id, &first, &last); err != nil {
			return nil, err
		}
		out = append(out, &model.LocalEntity{
			ID:   id,
			Type: t,
			Attrs: map[string]string{
				"first_name": first.String,
				"last_name":  last.String,
			},
		})
	}
	return out, rows.Err()
}

func (r *PostgresRepo) loadChildren(ctx context.Context, ent *model.LocalEntity) error {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, address, label, is_primary, bounced_at FROM contact_emails WHERE contact_id = $1 ORDER BY id`, ent.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var e model.Email
		var bounced sql.NullTime
		if err := rows.Scan(&e.ID, &e.Address, &e.Label, &e.Primary, &bounced); err != nil {
			rows.Close()
			return err
		}
		if bounced.Valid {
			e.BouncedAt = &bounced.Time
		}
		ent.Emails = append(ent.Emails, e)
	}
	rows.Close()

	rows, err = r.DB.QueryContext(ctx,
		`SELECT id, number, label, is_primary FROM contact_phones WHERE contact_id = $1 ORDER BY id`, ent.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var p model.Phone
		if err := rows.Scan(&p.ID, &p.Number, &p.Label, &p.Primary); err != nil {
			rows.Close()
			return err
		}
		ent.Phones = append(ent.Phones, p)
	}
	rows.Close()

	rows, err = r.DB.QueryContext(ctx,
		`SELECT id, line1, city, region, postal_code, label, is_primary FROM contact_addresses WHERE contact_id = $1 ORDER BY id`, ent.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.Line1, &a.City, &a.Region, &a.PostalCode, &a.Label, &a.Primary); err != nil {
			rows.Close()
			return err
		}
		ent.Addresses = append(ent.Addresses, a)
	}
	rows.Close()

	rows, err = r.DB.QueryContext(ctx,
		`SELECT id, name, level FROM contact_skills WHERE contact_id = $1 ORDER BY id`, ent.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.Skill
		if err := rows.Scan(&s.ID, &s.Name, &s.Level); err != nil {
			return err
		}
		ent.Skills = append(ent.Skills, s)
	}
	return rows.Err()
}

// CreateEntity inserts a new local entity and its child collections in one
// transaction and fills in the assigned surrogate ID.
func (r *PostgresRepo) CreateEntity(ctx context.Context, ent *model.LocalEntity) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	attrs := model.AttrNames(ent.Type)
	cols := []string{"external_id"}
	args := []any{nullable(ent.ExternalID)}
	if ent.Type.IsContact() {
		cols = append(cols, "contact_type")
		args = append(args, string(ent.Type))
	}
	for _, attr := range attrs {
		cols = append(cols, attr)
		args = append(args, ent.Attrs[attr])
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		tableFor(ent.Type), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&ent.ID); err != nil {
		return err
	}

	if ent.Type.IsContact() {
		if err := r.insertChildren(ctx, tx, ent); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostgresRepo) insertChildren(ctx context.Context, tx queryer, ent *model.LocalEntity) error {
	for _, e := range ent.Emails {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO contact_emails (contact_id, address, label, is_primary, bounced_at)
            VALUES ($1,$2,$3,$4,$5)
            ON CONFLICT (contact_id, address) DO NOTHING
        `, ent.ID, e.Address, e.Label, e.Primary, e.BouncedAt); err != nil {
			return err
		}
	}
	for _, p := range ent.Phones {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO contact_phones (contact_id, number, label, is_primary)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (contact_id, number) DO NOTHING
        `, ent.ID, p.Number, p.Label, p.Primary); err != nil {
			return err
		}
	}
	for _, a := range ent.Addresses {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO contact_addresses (contact_id, line1, city, region, postal_code, label, is_primary)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (contact_id, line1, postal_code) DO NOTHING
        `, ent.ID, a.Line1, a.City, a.Region, a.PostalCode, a.Label, a.Primary); err != nil {
			return err
		}
	}
	for _, s := range ent.Skills {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO contact_skills (contact_id, name, level)
            VALUES ($1,$2,$3)
            ON CONFLICT (contact_id, name) DO NOTHING
        `, ent.ID, s.Name, s.Level); err != nil {
			return err
		}
	}
	return nil
}

// UpdateEntity applies changed attributes, optional external-ID linking and
// the child plan in one transaction. The contact row is locked for the
// duration so the single-primary invariant holds under concurrent writers.
func (r *PostgresRepo) UpdateEntity(ctx context.Context, t model.EntityType, id int64, changes map[string]string, externalID string, plan *syncer.ChildPlan) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	table := tableFor(t)
	if t.IsContact() {
		var locked int64
		if err := tx.QueryRowContext(ctx,
			fmt.Sprintf("SELECT id FROM %s WHERE id = $1 FOR UPDATE", table), id).Scan(&locked); err != nil {
			return err
		}
	}

	sets := []string{"updated_at = now()"}
	args := []any{id}
	n := 2
	// Only attributes from the static field map reach this point, so the
	// column names are trusted identifiers.
	for _, attr := range model.AttrNames(t) {
		val, ok := changes[attr]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", attr, n))
		args = append(args, val)
		n++
	}
	if externalID != "" {
		sets = append(sets, fmt.Sprintf("external_id = $%d", n))
		args = append(args, externalID)
		n++
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", table, strings.Join(sets, ", "))
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return err
	}

	if plan != nil {
		if err := r.applyChildPlan(ctx, tx, id, plan); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// applyChildPlan adds remote-only children (never deleting local-only ones)
// and reassigns the single primary per child kind in one statement each, so
// no reader ever observes two primaries.
func (r *PostgresRepo) applyChildPlan(ctx context.Context, tx queryer, contactID int64, plan *syncer.ChildPlan) error {
	ent := &model.LocalEntity{
		ID:        contactID,
		Emails:    plan.AddEmails,
		Phones:    plan.AddPhones,
		Addresses: plan.AddAddresses,
		Skills:    plan.AddSkills,
	}
	if err := r.insertChildren(ctx, tx, ent); err != nil {
		return err
	}

	if plan.PrimaryEmail != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE contact_emails SET is_primary = (lower(address) = $2) WHERE contact_id = $1`,
			contactID, plan.PrimaryEmail); err != nil {
			return err
		}
	}
	if plan.PrimaryPhone != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE contact_phones SET is_primary = (number = $2) WHERE contact_id = $1`,
			contactID, plan.PrimaryPhone); err != nil {
			return err
		}
	}
	if plan.PrimaryAddress != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE contact_addresses SET is_primary = (line1 || '|' || postal_code = $2) WHERE contact_id = $1`,
			contactID, plan.PrimaryAddress); err != nil {
			return err
		}
	}
	return nil
}

func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
