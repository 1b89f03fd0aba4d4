package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id            TEXT PRIMARY KEY,
		owner_id      TEXT NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		rate_amount   BIGINT NOT NULL,
		rate_currency TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		version       BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS listings_owner_idx ON listings (owner_id)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                TEXT PRIMARY KEY,
		listing_id        TEXT NOT NULL REFERENCES listings (id),
		user_id           TEXT NOT NULL,
		start_date        DATE NOT NULL,
		end_date          DATE NOT NULL,
		status            TEXT NOT NULL,
		rate_amount       BIGINT NOT NULL,
		rate_currency     TEXT NOT NULL,
		total_amount      BIGINT NOT NULL,
		total_currency    TEXT NOT NULL,
		status_changed_at TIMESTAMPTZ NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		updated_at        TIMESTAMPTZ NOT NULL,
		version           BIGINT NOT NULL,
		CHECK (start_date < end_date)
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_listing_idx ON bookings (listing_id, status, start_date)`,
	`CREATE INDEX IF NOT EXISTS bookings_user_idx ON bookings (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS booking_outbox (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		payload         BYTEA NOT NULL,
		occurred_at     TIMESTAMPTZ NOT NULL,
		aggregate       TEXT NOT NULL,
		headers         JSONB NOT NULL DEFAULT '{}',
		state           TEXT NOT NULL,
		attempts        INT NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMPTZ NOT NULL,
		claimed_by      TEXT NULL,
		claimed_at      TIMESTAMPTZ NULL,
		sent_at         TIMESTAMPTZ NULL,
		last_error      TEXT NULL,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS booking_outbox_due_idx ON booking_outbox (state, next_attempt_at)`,
	`CREATE TABLE IF NOT EXISTS booking_idempotency (
		key         TEXT PRIMARY KEY,
		command     TEXT NOT NULL,
		payload     BYTEA NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		expires_at  TIMESTAMPTZ NULL
	)`,
	`CREATE TABLE IF NOT EXISTS booking_inbox (
		event_id    TEXT NOT NULL,
		consumer    TEXT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (event_id, consumer)
	)`,
}

// Migrate creates the tables the backend needs. It is safe to run on every
// start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
