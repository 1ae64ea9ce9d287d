package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/sparkprog/go-crmsync-backend/internal/config"
)

type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(cfg *config.Config) (*PostgresRepo, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PostgresRepo{DB: db}, nil
}

func (r *PostgresRepo) RunMigrations(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
		`CREATE TABLE IF NOT EXISTS admins (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            username VARCHAR(100) UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            created_at TIMESTAMPTZ DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS contacts (
            id BIGSERIAL PRIMARY KEY,
            contact_type TEXT NOT NULL,
            external_id TEXT UNIQUE,
            first_name TEXT,
            last_name TEXT,
            title TEXT,
            status TEXT,
            organization TEXT,
            notes TEXT,
            birth_date TEXT,
            created_at TIMESTAMPTZ DEFAULT now(),
            updated_at TIMESTAMPTZ DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS contact_emails (
            id BIGSERIAL PRIMARY KEY,
            contact_id BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
            address TEXT NOT NULL,
            label TEXT DEFAULT '',
            is_primary BOOLEAN DEFAULT false,
            bounced_at TIMESTAMPTZ,
            UNIQUE (contact_id, address)
        );`,
		`CREATE TABLE IF NOT EXISTS contact_phones (
            id BIGSERIAL PRIMARY KEY,
            contact_id BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
            number TEXT NOT NULL,
            label TEXT DEFAULT '',
            is_primary BOOLEAN DEFAULT false,
            UNIQUE (contact_id, number)
        );`,
		`CREATE TABLE IF NOT EXISTS contact_addresses (
            id BIGSERIAL PRIMARY KEY,
            contact_id BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
            line1 TEXT NOT NULL,
            city TEXT DEFAULT '',
            region TEXT DEFAULT '',
            postal_code TEXT DEFAULT '',
            label TEXT DEFAULT '',
            is_primary BOOLEAN DEFAULT false,
            UNIQUE (contact_id, line1, postal_code)
        );`,
		`CREATE TABLE IF NOT EXISTS contact_skills (
            id BIGSERIAL PRIMARY KEY,
            contact_id BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            level TEXT DEFAULT '',
            UNIQUE (contact_id, name)
        );`,
		`CREATE TABLE IF NOT EXISTS events (
            id BIGSERIAL PRIMARY KEY,
            external_id TEXT UNIQUE,
            name TEXT,
            location TEXT,
            status TEXT,
            starts_at TEXT,
            ends_at TEXT,
            created_at TIMESTAMPTZ DEFAULT now(),
            updated_at TIMESTAMPTZ DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS participations (
            id BIGSERIAL PRIMARY KEY,
            external_id TEXT UNIQUE,
            contact_external_id TEXT NOT NULL,
            event_external_id TEXT NOT NULL,
            role TEXT,
            status TEXT,
            hours TEXT,
            created_at TIMESTAMPTZ DEFAULT now(),
            updated_at TIMESTAMPTZ DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS histories (
            id BIGSERIAL PRIMARY KEY,
            external_id TEXT UNIQUE,
            contact_external_id TEXT NOT NULL,
            kind TEXT,
            summary TEXT,
            occurred_at TEXT,
            created_at TIMESTAMPTZ DEFAULT now(),
            updated_at TIMESTAMPTZ DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS watermarks (
            entity_type TEXT PRIMARY KEY,
            last_synced_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
            id UUID PRIMARY KEY,
            entity_type TEXT NOT NULL,
            status TEXT NOT NULL,
            delta BOOLEAN NOT NULL DEFAULT false,
            started_at TIMESTAMPTZ NOT NULL,
            completed_at TIMESTAMPTZ,
            processed INT DEFAULT 0,
            created INT DEFAULT 0,
            updated INT DEFAULT 0,
            unchanged INT DEFAULT 0,
            skipped INT DEFAULT 0,
            failed INT DEFAULT 0,
            ambiguous INT DEFAULT 0,
            error_count INT DEFAULT 0,
            errors JSONB,
            watermark TIMESTAMPTZ
        );`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_type ON contacts(contact_type);`,
		`CREATE INDEX IF NOT EXISTS idx_contact_emails_address ON contact_emails(address);`,
		`CREATE INDEX IF NOT EXISTS idx_sync_runs_entity_type ON sync_runs(entity_type, started_at DESC);`,
	}
	for _, q := range queries {
		if _, err := r.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
