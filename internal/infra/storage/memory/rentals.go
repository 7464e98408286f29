package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/domain/shared/events"
)

// RentalRepository keeps rentals in a map. Reads and writes go through copies
// so callers never share an aggregate.
type RentalRepository struct {
	mu    sync.RWMutex
	items map[domainrental.RentalID]*domainrental.Rental
}

func NewRentalRepository() *RentalRepository {
	return &RentalRepository{items: make(map[domainrental.RentalID]*domainrental.Rental)}
}

func (r *RentalRepository) ByID(ctx context.Context, id domainrental.RentalID) (*domainrental.Rental, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rental, ok := r.items[id]
	if !ok {
		return nil, domainrental.ErrRentalNotFound
	}
	return cloneRental(rental), nil
}

// Save stores the rental when its version matches the stored one and bumps it.
func (r *RentalRepository) Save(ctx context.Context, rental *domainrental.Rental) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[rental.ID]
	switch {
	case ok && current.Version != rental.Version:
		return domainrental.ErrVersionConflict
	case !ok && rental.Version != 0:
		return domainrental.ErrVersionConflict
	}
	rental.Version++
	r.items[rental.ID] = cloneRental(rental)
	return nil
}

func (r *RentalRepository) ListHolding(ctx context.Context, productID string, rng daterange.DateRange) ([]*domainrental.Rental, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainrental.Rental
	for _, rental := range r.items {
		if rental.ProductID != productID || !rental.Holds() || !rental.Period.Overlaps(rng) {
			continue
		}
		out = append(out, cloneRental(rental))
	}
	sortByCreated(out)
	return out, nil
}

func (r *RentalRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*domainrental.Rental, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff := daterange.Day(before)
	var out []*domainrental.Rental
	for _, rental := range r.items {
		if !rental.Period.Start.Before(cutoff) {
			continue
		}
		if !domainrental.CanTransition(rental.State(), domainrental.ActionExpire) {
			continue
		}
		out = append(out, cloneRental(rental))
	}
	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByCreated(list []*domainrental.Rental) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func cloneRental(src *domainrental.Rental) *domainrental.Rental {
	cp := *src
	cp.ReturnImageURLs = append([]string(nil), src.ReturnImageURLs...)
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}

var _ domainrental.Repository = (*RentalRepository)(nil)
