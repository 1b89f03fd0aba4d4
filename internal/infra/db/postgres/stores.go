package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rentals/internal/app/middleware"
)

type IdempotencyStore struct {
	DB *sql.DB
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var (
		rec     middleware.IdempotencyRecord
		expires sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT key, command, payload, occurred_at, expires_at FROM booking_idempotency WHERE key = $1`, key).
		Scan(&rec.Key, &rec.Command, &rec.Payload, &rec.OccurredAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	if expires.Valid {
		rec.ExpiresAt = expires.Time
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	var expires any
	if !rec.ExpiresAt.IsZero() {
		expires = rec.ExpiresAt
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO booking_idempotency (key, command, payload, occurred_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET command = EXCLUDED.command, payload = EXCLUDED.payload,
			occurred_at = EXCLUDED.occurred_at, expires_at = EXCLUDED.expires_at`,
		rec.Key, rec.Command, rec.Payload, rec.OccurredAt, expires)
	return err
}

// InboxStore records handled broker events per consumer.
type InboxStore struct {
	DB       *sql.DB
	Consumer string
}

func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM booking_inbox WHERE event_id = $1 AND consumer = $2`, eventID, s.Consumer).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *InboxStore) Mark(ctx context.Context, eventID string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO booking_inbox (event_id, consumer, received_at)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, eventID, s.Consumer, time.Now().UTC())
	return err
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
