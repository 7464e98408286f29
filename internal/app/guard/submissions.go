package guard

import (
	"context"
	"sync"

	"rentalcore/internal/pkg/errs"
)

// ErrInFlight is returned when a submission with the same key is still running.
var ErrInFlight = errs.New("guard: submission already in flight")

// Submissions allows at most one in-flight submission per key. A second
// attempt is rejected rather than queued, so double clicks never double book.
type Submissions struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewSubmissions() *Submissions {
	return &Submissions{inFlight: make(map[string]struct{})}
}

// Do runs fn unless another call with key is running.
func (s *Submissions) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if !s.acquire(key) {
		return ErrInFlight
	}
	defer s.release(key)
	return fn(ctx)
}

// Busy reports whether key has a submission running.
func (s *Submissions) Busy(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[key]
	return ok
}

func (s *Submissions) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight == nil {
		s.inFlight = make(map[string]struct{})
	}
	if _, ok := s.inFlight[key]; ok {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *Submissions) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}
