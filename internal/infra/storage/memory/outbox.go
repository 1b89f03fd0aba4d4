package memory

import (
	"context"
	"time"

	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/uow"
	infraoutbox "rentals/internal/infra/outbox"
)

type outboxEntry struct {
	record    appoutbox.EventRecord
	state     string
	attempts  int
	next      time.Time
	claimedBy string
	claimedAt time.Time
	lastError string
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(_ context.Context, record appoutbox.EventRecord) error {
	if o.u.readOnly {
		return uow.ErrReadOnly
	}
	if o.u.done {
		return ErrUnitFinished
	}
	o.u.records = append(o.u.records, outboxEntry{record: record, state: infraoutbox.StateNew})
	return nil
}

// Claim implements infraoutbox.Store over committed records.
func (s *Store) Claim(_ context.Context, workerID string) (*infraoutbox.Message, error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		due := (e.state == infraoutbox.StateNew || e.state == infraoutbox.StateFailed) && !e.next.After(now)
		stale := e.state == infraoutbox.StateClaimed && !e.claimedAt.After(now.Add(-infraoutbox.ClaimLease))
		if !due && !stale {
			continue
		}
		e.state = infraoutbox.StateClaimed
		e.claimedBy = workerID
		e.claimedAt = now
		headers := make(map[string]string, len(e.record.Headers))
		for k, v := range e.record.Headers {
			headers[k] = v
		}
		return &infraoutbox.Message{
			ID:         e.record.ID,
			Name:       e.record.Name,
			Payload:    append([]byte(nil), e.record.Payload...),
			OccurredAt: e.record.OccurredAt,
			Aggregate:  e.record.Aggregate,
			Headers:    headers,
			Attempts:   e.attempts,
		}, nil
	}
	return nil, nil
}

func (s *Store) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(id); e != nil {
		e.state = infraoutbox.StateSent
	}
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.entry(id); e != nil {
		e.state = infraoutbox.StateFailed
		e.next = next
		e.lastError = errMsg
		e.attempts++
	}
	return nil
}

func (s *Store) entry(id string) *outboxEntry {
	for _, e := range s.outbox {
		if e.record.ID == id {
			return e
		}
	}
	return nil
}

// OutboxRecords returns committed records in commit order.
func (s *Store) OutboxRecords() []appoutbox.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]appoutbox.EventRecord, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, e.record)
	}
	return out
}

var _ infraoutbox.Store = (*Store)(nil)
