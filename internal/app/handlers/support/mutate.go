package support

import (
	"context"
	"time"

	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/outbox"
	"rentalcore/internal/app/uow"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/pkg/clock"
	"rentalcore/internal/pkg/errs"
)

// Mutator loads a rental, applies one change, saves it and records its events
// inside a single unit of work.
type Mutator struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Clock      clock.Clock
}

func (m Mutator) Now() time.Time {
	if m.Clock == nil {
		return time.Now().UTC()
	}
	return m.Clock.Now().UTC()
}

// Mutate applies fn to the rental with the given id and returns its new view.
func (m Mutator) Mutate(ctx context.Context, id string, fn func(ctx context.Context, unit uow.UnitOfWork, r *domainrental.Rental, now time.Time) error) (*dto.Rental, error) {
	if id == "" {
		return nil, errs.Mark(errs.New("rentals: rental id required"), errs.ErrValidation)
	}
	var out dto.Rental
	err := WithUnit(ctx, m.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		rental, err := unit.Rentals().ByID(ctx, domainrental.RentalID(id))
		if err != nil {
			return err
		}
		if err := fn(ctx, unit, rental, m.Now()); err != nil {
			return err
		}
		if err := m.Persist(ctx, unit, rental); err != nil {
			return err
		}
		out = dto.MapRental(rental)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Persist saves the rental and moves its pending events into the outbox.
func (m Mutator) Persist(ctx context.Context, unit uow.UnitOfWork, rental *domainrental.Rental) error {
	if err := unit.Rentals().Save(ctx, rental); err != nil {
		return err
	}
	return Publisher{Outbox: m.Outbox, Encoder: m.Encoder}.Publish(ctx, rental)
}
