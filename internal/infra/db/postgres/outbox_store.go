package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	appoutbox "rentals/internal/app/outbox"
	infraoutbox "rentals/internal/infra/outbox"
)

type txOutbox struct {
	q querier
}

func (o *txOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = o.q.ExecContext(ctx, `INSERT INTO booking_outbox
		(id, name, payload, occurred_at, aggregate, headers, state, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8)`,
		record.ID, record.Name, record.Payload, record.OccurredAt, record.Aggregate, headers, infraoutbox.StateNew, now)
	return mapError(err)
}

// OutboxStore feeds the outbox worker from the booking_outbox table.
type OutboxStore struct {
	DB *sql.DB
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	now := time.Now().UTC()
	row := s.DB.QueryRowContext(ctx, `UPDATE booking_outbox SET state = $1, claimed_by = $2, claimed_at = $3
		WHERE id = (
			SELECT id FROM booking_outbox
			WHERE (state IN ($4, $5) AND next_attempt_at <= $3) OR (state = $1 AND claimed_at <= $6)
			ORDER BY next_attempt_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`,
		infraoutbox.StateClaimed, workerID, now, infraoutbox.StateNew, infraoutbox.StateFailed, now.Add(-infraoutbox.ClaimLease))
	var (
		msg     infraoutbox.Message
		headers []byte
	)
	if err := row.Scan(&msg.ID, &msg.Name, &msg.Payload, &msg.OccurredAt, &msg.Aggregate, &headers, &msg.Attempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &msg.Headers); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE booking_outbox SET state = $2, sent_at = $3 WHERE id = $1`,
		id, infraoutbox.StateSent, time.Now().UTC())
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE booking_outbox
		SET state = $2, next_attempt_at = $3, last_error = $4, attempts = attempts + 1 WHERE id = $1`,
		id, infraoutbox.StateFailed, next, errMsg)
	return err
}

var _ infraoutbox.Store = (*OutboxStore)(nil)
