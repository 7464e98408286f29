package policies

import (
	"context"

	domainavailability "rentalcore/internal/domain/availability"
	domainpayment "rentalcore/internal/domain/payment"
	domainpricing "rentalcore/internal/domain/pricing"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/errs"
)

var (
	ErrProductNotFound = errs.Mark(errs.New("catalog: product not found"), errs.ErrNotFound)
	ErrProductInactive = errs.Mark(errs.New("catalog: product is not available for rent"), errs.ErrValidation)
)

// Product is the slice of a catalogue item the rental core needs. Tiers is the
// price snapshot copied onto a rental at booking time.
type Product struct {
	ID      string
	OwnerID string
	Title   string
	Active  bool
	Tiers   domainpricing.Tiers
}

// Catalog is the marketplace product service.
type Catalog interface {
	Product(ctx context.Context, id string) (Product, error)
	Availability(ctx context.Context, productID string, r daterange.DateRange) ([]domainavailability.Day, error)
}

// PayoutDirectory lists the bank accounts an owner receives transfers on.
type PayoutDirectory interface {
	PayoutMethods(ctx context.Context, ownerID string) ([]domainpayment.PayoutMethod, error)
}
