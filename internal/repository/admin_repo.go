package repository

import (
	"context"
	"database/sql"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

func (r *PostgresRepo) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var a model.Admin
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM admins WHERE username = $1`, username).
		Scan(&a.ID, &a.Username, &a.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAdmin creates the admin account or rotates its password hash.
func (r *PostgresRepo) UpsertAdmin(ctx context.Context, username, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO admins (username, password_hash)
        VALUES ($1, $2)
        ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
    `, username, passwordHash)
	return err
}
