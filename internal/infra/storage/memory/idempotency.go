package memory

import (
	"context"
	"sync"

	"rentals/internal/app/middleware"
)

// sweepEvery saves, expired records are dropped so a long-running process
// does not keep every key it ever saw.
const sweepEvery = 256

// IdempotencyStore keeps command results in memory. Lookups return expired
// records as well; the middleware decides whether they still apply.
type IdempotencyStore struct {
	mu     sync.Mutex
	items  map[string]middleware.IdempotencyRecord
	writes int
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	if s.writes++; s.writes%sweepEvery == 0 {
		for k, old := range s.items {
			if !old.ExpiresAt.IsZero() && old.ExpiresAt.Before(rec.OccurredAt) {
				delete(s.items, k)
			}
		}
	}
	return nil
}

func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
