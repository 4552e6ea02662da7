package database

import (
	"context"
	"fmt"
	"strings"
)

// schema is applied in order; {{ts}} expands to the driver's timestamp type
var schema = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		job_title TEXT NOT NULL DEFAULT '',
		pronouns TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS contacts_customer_email_idx ON contacts (customer_id, email)`,
	`CREATE TABLE IF NOT EXISTS contact_integrations (
		contact_id TEXT NOT NULL REFERENCES contacts (id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		external_id TEXT NOT NULL,
		account_id TEXT NOT NULL DEFAULT '',
		external_created_at {{ts}} NOT NULL,
		external_updated_at {{ts}} NOT NULL,
		last_synced_at {{ts}} NULL,
		UNIQUE (type, external_id),
		UNIQUE (contact_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS contact_integrations_contact_idx ON contact_integrations (contact_id)`,
	`CREATE TABLE IF NOT EXISTS sync_settings (
		customer_id TEXT PRIMARY KEY,
		auto_sync BOOLEAN NOT NULL,
		sync_frequency TEXT NOT NULL,
		conflict_resolution TEXT NOT NULL,
		sync_direction TEXT NOT NULL,
		webhook_notifications BOOLEAN NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		action TEXT NOT NULL,
		contact_id TEXT NOT NULL DEFAULT '',
		contact_name TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		initiator TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS activity_logs_customer_created_idx ON activity_logs (customer_id, created_at)`,
}

// Migrate creates every table and index that does not exist yet
func (c *Client) Migrate(ctx context.Context) error {
	ts := "TIMESTAMP"
	if c.Driver == DriverPostgres {
		ts = "TIMESTAMPTZ"
	}

	for i, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, strings.ReplaceAll(stmt, "{{ts}}", ts)); err != nil {
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	return nil
}
