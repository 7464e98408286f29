package availability

import (
	"context"
	"time"

	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/policies"
	"rentalcore/internal/app/queries"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/errs"
)

const getAvailabilityKey = "availability.get"

// maxWindowDays bounds a single availability request.
const maxWindowDays = 366

var ErrWindowTooLarge = errs.Mark(errs.New("availability: requested window is too large"), errs.ErrValidation)

type GetAvailabilityQuery struct {
	ProductID string
	From      time.Time
	To        time.Time
}

func (q GetAvailabilityQuery) Key() string { return getAvailabilityKey }

func (q GetAvailabilityQuery) Validate() error {
	if q.ProductID == "" {
		return errs.New("availability: product id required")
	}
	return nil
}

type GetAvailabilityHandler struct {
	Catalog  policies.Catalog
	Resolver *Resolver
}

// Handle returns the tri-state map of a window. A catalogue outage degrades
// to the cached calendar and sets Partial.
func (h *GetAvailabilityHandler) Handle(ctx context.Context, q GetAvailabilityQuery) (dto.Availability, error) {
	rng, err := daterange.New(q.From, q.To)
	if err != nil {
		return dto.Availability{}, errs.Mark(err, errs.ErrValidation)
	}
	if rng.Days() > maxWindowDays {
		return dto.Availability{}, ErrWindowTooLarge
	}

	product, err := h.Catalog.Product(ctx, q.ProductID)
	if err != nil {
		if !errs.Is(err, errs.ErrUpstreamUnavailable) {
			return dto.Availability{}, err
		}
		res := h.Resolver.Cached(ctx, q.ProductID, rng)
		return dto.MapAvailability(q.ProductID, rng, res.Days, true), nil
	}

	res, err := h.Resolver.Resolve(ctx, product, rng, false)
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.MapAvailability(product.ID, rng, res.Days, res.Partial), nil
}

var _ queries.Handler[GetAvailabilityQuery, dto.Availability] = (*GetAvailabilityHandler)(nil)
