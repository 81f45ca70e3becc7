package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					is_admin BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create api_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					last_used_at TIMESTAMP,
					expires_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_api_tokens_user_id ON api_tokens(user_id);
				CREATE INDEX idx_api_tokens_token_hash ON api_tokens(token_hash);
			`,
		},
		{
			Version:     3,
			Description: "Create plans table",
			SQL: `
				CREATE TABLE IF NOT EXISTS plans (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					description TEXT,
					price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     4,
			Description: "Create teams table",
			SQL: `
				CREATE TABLE IF NOT EXISTS teams (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(owner_id)
				);

				CREATE INDEX idx_teams_owner_id ON teams(owner_id);
			`,
		},
		{
			Version:     5,
			Description: "Create subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id),
					team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
					plan_id BIGINT NOT NULL REFERENCES plans(id),
					price NUMERIC(12,2) NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending'
						CHECK (status IN ('pending', 'active', 'expired', 'canceled')),
					is_active BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_subscriptions_user_id ON subscriptions(user_id);
				CREATE INDEX idx_subscriptions_team_id ON subscriptions(team_id);
				CREATE INDEX idx_subscriptions_status ON subscriptions(status);

				-- One live subscription per team, canceled rows do not block re-subscription
				CREATE UNIQUE INDEX idx_subscriptions_team_live
					ON subscriptions(team_id) WHERE status <> 'canceled';
			`,
		},
		{
			Version:     6,
			Description: "Create subscription_activations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscription_activations (
					id BIGSERIAL PRIMARY KEY,
					subscription_id BIGINT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
					activation_date TIMESTAMP NOT NULL,
					expiration_date TIMESTAMP NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					CHECK (expiration_date > activation_date)
				);

				CREATE INDEX idx_subscription_activations_subscription_id
					ON subscription_activations(subscription_id);
				CREATE INDEX idx_subscription_activations_activation_date
					ON subscription_activations(activation_date DESC);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
