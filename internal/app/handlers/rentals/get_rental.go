package rentals

import (
	"context"

	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/queries"
	"rentalcore/internal/app/uow"
	domainrental "rentalcore/internal/domain/rental"
)

const getRentalKey = "rentals.get"

type GetRentalQuery struct {
	support.Actor
	RentalID string
}

func (q GetRentalQuery) Key() string { return getRentalKey }

type GetRentalHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetRentalHandler) Handle(ctx context.Context, q GetRentalQuery) (dto.Rental, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Rental{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	rental, err := unit.Rentals().ByID(ctx, domainrental.RentalID(q.RentalID))
	if err != nil {
		return dto.Rental{}, err
	}
	if err := q.RequireParticipant(rental); err != nil {
		return dto.Rental{}, err
	}
	return dto.MapRental(rental), nil
}

var _ queries.Handler[GetRentalQuery, dto.Rental] = (*GetRentalHandler)(nil)
