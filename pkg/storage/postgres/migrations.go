package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a schema migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the full schema, oldest first.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users and admins tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL,
					profile_picture TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(email)
				);

				CREATE TABLE IF NOT EXISTS admins (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(email)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					website TEXT NOT NULL DEFAULT '',
					email VARCHAR(255) NOT NULL DEFAULT '',
					slug VARCHAR(255) NOT NULL,
					tier VARCHAR(32) NOT NULL DEFAULT 'free',
					part_of UUID REFERENCES organizations(id) ON DELETE SET NULL,
					created_by UUID NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(slug)
				);

				CREATE INDEX IF NOT EXISTS idx_organizations_part_of ON organizations(part_of);
			`,
		},
		{
			Version:     3,
			Description: "Create manage_edges table",
			SQL: `
				CREATE TABLE IF NOT EXISTS manage_edges (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL,
					org_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					role VARCHAR(32) NOT NULL,
					confirmed BOOLEAN NOT NULL DEFAULT FALSE,
					public BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, org_id)
				);

				CREATE INDEX IF NOT EXISTS idx_manage_edges_org_id ON manage_edges(org_id);
				CREATE INDEX IF NOT EXISTS idx_manage_edges_user_id ON manage_edges(user_id);
			`,
		},
		{
			Version:     4,
			Description: "Create logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS logs (
					id UUID PRIMARY KEY,
					record VARCHAR(255) NOT NULL,
					event VARCHAR(16) NOT NULL,
					field VARCHAR(255),
					before JSONB,
					after JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_logs_record ON logs(record);
				CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs(created_at DESC);
			`,
		},
		{
			Version:     5,
			Description: "Reference users from manage_edges",
			SQL: `
				ALTER TABLE manage_edges
					ADD CONSTRAINT fk_manage_edges_user_id
					FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE;
			`,
		},
	}
}

// Migrate applies all pending migrations, tracking versions in a bookkeeping
// table. Each migration runs in its own transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range Migrations() {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).
			Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
			m.Version, m.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
