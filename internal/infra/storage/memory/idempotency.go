package memory

import (
	"context"
	"sync"
	"time"

	"rentalcore/internal/app/middleware"
)

const defaultIdempotencyTTL = 7 * 24 * time.Hour

// IdempotencyStore keeps command outcomes, request digests included, for ttl
// after they were saved. Expired entries read as missing and are dropped on
// the next save, matching the Mongo store's TTL index.
type IdempotencyStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]storedOutcome
	now   func() time.Time
}

type storedOutcome struct {
	rec     middleware.IdempotencyRecord
	savedAt time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{ttl: ttl, items: make(map[string]storedOutcome), now: time.Now}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.items[key]
	if !ok || s.expired(stored, s.now()) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return stored.rec, true, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, stored := range s.items {
		if s.expired(stored, now) {
			delete(s.items, key)
		}
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	s.items[rec.Key] = storedOutcome{rec: rec, savedAt: now}
	return nil
}

// Len counts live and not yet purged entries.
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *IdempotencyStore) expired(stored storedOutcome, now time.Time) bool {
	return now.Sub(stored.savedAt) >= s.ttl
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
