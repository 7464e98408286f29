package payments

import (
	"context"

	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/policies"
	"rentalcore/internal/app/queries"
	"rentalcore/internal/app/uow"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/pkg/errs"
)

const (
	getReconciliationKey = "payments.reconciliation"
	listPayoutMethodsKey = "payments.payout_methods"
)

type GetReconciliationQuery struct {
	support.Actor
	RentalID string
}

func (GetReconciliationQuery) Key() string { return getReconciliationKey }

type GetReconciliationHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetReconciliationHandler) Handle(ctx context.Context, q GetReconciliationQuery) (dto.Reconciliation, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Reconciliation{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	rental, err := unit.Rentals().ByID(ctx, domainrental.RentalID(q.RentalID))
	if err != nil {
		return dto.Reconciliation{}, err
	}
	if err := q.RequireParticipant(rental); err != nil {
		return dto.Reconciliation{}, err
	}
	report, err := unit.Reports().LatestForRental(ctx, q.RentalID)
	if err != nil {
		return dto.Reconciliation{}, err
	}
	return dto.MapReconciliation(report), nil
}

// ListPayoutMethodsQuery shows renters where to transfer and reviewers what a slip is compared with.
type ListPayoutMethodsQuery struct {
	support.Actor
	OwnerID string
}

func (ListPayoutMethodsQuery) Key() string { return listPayoutMethodsKey }

func (q ListPayoutMethodsQuery) Validate() error {
	if q.OwnerID == "" {
		return errs.New("payments: owner id required")
	}
	return nil
}

type ListPayoutMethodsHandler struct {
	Payouts policies.PayoutDirectory
}

func (h *ListPayoutMethodsHandler) Handle(ctx context.Context, q ListPayoutMethodsQuery) (dto.PayoutMethods, error) {
	methods, err := h.Payouts.PayoutMethods(ctx, q.OwnerID)
	if err != nil {
		return dto.PayoutMethods{}, err
	}
	return dto.MapPayoutMethods(q.OwnerID, methods), nil
}

var (
	_ queries.Handler[GetReconciliationQuery, dto.Reconciliation] = (*GetReconciliationHandler)(nil)
	_ queries.Handler[ListPayoutMethodsQuery, dto.PayoutMethods]  = (*ListPayoutMethodsHandler)(nil)
)
