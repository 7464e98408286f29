package availability

import (
	"context"
	"log/slog"
	"time"

	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/policies"
	"rentalcore/internal/app/uow"
	domainavailability "rentalcore/internal/domain/availability"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/clock"
	"rentalcore/internal/pkg/errs"
)

// Resolution is the per-day view of a range after combining the catalogue,
// the cached calendar and the rentals already holding stock.
type Resolution struct {
	Days    []domainavailability.Day
	Check   domainavailability.RangeCheck
	Partial bool
}

// Resolver builds availability views. Catalogue answers refresh the cached
// calendar; local holds are overlaid on top so a rental created here is
// visible before the catalogue catches up.
type Resolver struct {
	Catalog    policies.Catalog
	Cache      domainavailability.Cache
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Resolve computes the view of r for a product. With strict set, a catalogue
// failure is returned as an error instead of degrading to the cached calendar.
func (r *Resolver) Resolve(ctx context.Context, product policies.Product, rng daterange.DateRange, strict bool) (Resolution, error) {
	calendar := r.calendar(ctx, product.ID)
	partial := false

	fetched, err := r.Catalog.Availability(ctx, product.ID, rng)
	switch {
	case err == nil:
		calendar.Merge(fetched, r.now())
		if putErr := r.putCalendar(ctx, calendar); putErr != nil {
			r.logger().WarnContext(ctx, "availability cache write failed", "product_id", product.ID, "error", putErr)
		}
	case strict:
		return Resolution{}, errs.Mark(errs.Wrap(err, "resolve availability"), errs.ErrUpstreamUnavailable)
	default:
		partial = true
		r.logger().WarnContext(ctx, "catalog availability unavailable, serving cached calendar", "product_id", product.ID, "error", err)
	}

	days := calendar.Resolve(rng)
	holds, err := r.holds(ctx, product.ID, rng)
	if err != nil {
		if strict {
			return Resolution{}, err
		}
		partial = true
		r.logger().WarnContext(ctx, "local holds unavailable", "product_id", product.ID, "error", err)
	} else {
		local := domainavailability.FromHolds(rng, product.Tiers.QuantityAvailable, holds)
		days = domainavailability.Overlay(days, local)
	}

	return Resolution{Days: days, Check: domainavailability.Check(days), Partial: partial}, nil
}

// MarkConflict records days lost to a concurrent booking in the cached calendar.
func (r *Resolver) MarkConflict(ctx context.Context, productID string, conflict *domainavailability.ConflictError) {
	if conflict == nil || len(conflict.Dates) == 0 {
		return
	}
	calendar := r.calendar(ctx, productID)
	calendar.MarkUnavailable(r.now(), conflict.Dates...)
	if err := r.putCalendar(ctx, calendar); err != nil {
		r.logger().WarnContext(ctx, "availability cache write failed", "product_id", productID, "error", err)
	}
}

// Cached returns the cached view of a range without contacting the catalogue.
func (r *Resolver) Cached(ctx context.Context, productID string, rng daterange.DateRange) Resolution {
	days := r.calendar(ctx, productID).Resolve(rng)
	return Resolution{Days: days, Check: domainavailability.Check(days), Partial: true}
}

func (r *Resolver) calendar(ctx context.Context, productID string) *domainavailability.Calendar {
	id := domainavailability.ProductID(productID)
	if r.Cache != nil {
		if cal, ok := r.Cache.Get(ctx, id); ok && cal != nil {
			return cal
		}
	}
	return domainavailability.NewCalendar(id)
}

func (r *Resolver) putCalendar(ctx context.Context, cal *domainavailability.Calendar) error {
	if r.Cache == nil {
		return nil
	}
	return r.Cache.Put(ctx, cal)
}

func (r *Resolver) holds(ctx context.Context, productID string, rng daterange.DateRange) ([]daterange.DateRange, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, r.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	rentals, err := unit.Rentals().ListHolding(ctx, productID, rng)
	if err != nil {
		return nil, err
	}
	out := make([]daterange.DateRange, 0, len(rentals))
	for _, rental := range rentals {
		if rental.Holds() {
			out = append(out, rental.Period)
		}
	}
	return out, nil
}

func (r *Resolver) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock.Now().UTC()
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
