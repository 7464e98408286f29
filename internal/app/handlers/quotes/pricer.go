package quotes

import (
	"context"
	"strings"
	"time"

	"rentalcore/internal/app/policies"
	"rentalcore/internal/domain/availability"
	"rentalcore/internal/domain/fees"
	"rentalcore/internal/domain/pricing"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/clock"
	"rentalcore/internal/pkg/errs"
)

var (
	ErrProductRequired  = errs.Mark(errs.New("quotes: product id required"), errs.ErrValidation)
	ErrSelectionTooLong = errs.Mark(errs.Newf("quotes: a selection spans at most %d days", MaxSelectionDays), errs.ErrValidation)
)

// MaxSelectionDays bounds any quoted or booked range regardless of the
// product's own maximum. Twelve calendar months always fit.
const MaxSelectionDays = 366

// Intent is what a renter asks for before anything is booked.
type Intent struct {
	ProductID    string
	Start        time.Time
	End          time.Time
	Tier         string
	Units        int
	PickupMethod string
}

// Priced is an intent resolved against the product's current tiers.
// FeesErr is set when the fee schedule could not be fetched; Fees is then the
// unknown marker.
type Priced struct {
	Product        policies.Product
	Pickup         fees.PickupMethod
	Quote          pricing.Quote
	Recommendation pricing.Recommendation
	Fees           fees.Estimate
	FeesErr        error
}

// Total is the amount due when fees are known.
func (p Priced) Total() (money.Money, bool) {
	if !p.Fees.Known {
		return money.Money{}, false
	}
	total, err := money.Sum(p.Quote.Subtotal.Currency, p.Quote.Subtotal, p.Product.Tiers.Deposit(), p.Fees.TotalEstimatedFees)
	if err != nil {
		return money.Money{}, false
	}
	return total, true
}

// Pricer runs the shared pricing steps of quotes and rental creation.
type Pricer struct {
	Catalog policies.Catalog
	Fees    fees.ScheduleSource
	Clock   clock.Clock
}

func (p *Pricer) Price(ctx context.Context, in Intent) (Priced, error) {
	if strings.TrimSpace(in.ProductID) == "" {
		return Priced{}, ErrProductRequired
	}
	pickup, err := fees.ParsePickupMethod(in.PickupMethod)
	if err != nil {
		return Priced{}, err
	}
	tier, err := pricing.ParseTier(in.Tier)
	if err != nil {
		return Priced{}, err
	}
	if in.Units < 0 {
		return Priced{}, pricing.ErrInvalidUnits
	}
	if in.Units > MaxSelectionDays {
		return Priced{}, ErrSelectionTooLong
	}
	end := in.End
	if in.Units > 0 {
		if end, err = pricing.EndDate(tier, in.Start, in.Units); err != nil {
			return Priced{}, err
		}
	}
	rng, err := availability.ValidateSelection(in.Start, end, p.now())
	if err != nil {
		return Priced{}, err
	}
	if rng.Days() > MaxSelectionDays {
		return Priced{}, ErrSelectionTooLong
	}

	product, err := p.Catalog.Product(ctx, in.ProductID)
	if err != nil {
		return Priced{}, err
	}
	if !product.Active {
		return Priced{}, policies.ErrProductInactive
	}

	quote, err := pricing.Price(product.Tiers, pricing.Choice{Tier: tier, Units: in.Units}, in.Start, end)
	if err != nil {
		return Priced{}, err
	}
	rec, err := pricing.SelectOptimalTier(product.Tiers, quote.Range.Start, quote.Range.End)
	if err != nil {
		return Priced{}, err
	}

	out := Priced{Product: product, Pickup: pickup, Quote: quote, Recommendation: rec}
	est, err := fees.EstimateFrom(ctx, p.Fees, quote.Subtotal, pickup)
	switch {
	case err == nil:
		out.Fees = est
	case errs.Is(err, errs.ErrUpstreamUnavailable):
		out.Fees = fees.Unknown()
		out.FeesErr = err
	default:
		return Priced{}, err
	}
	return out, nil
}

func (p *Pricer) now() time.Time {
	if p.Clock == nil {
		return time.Now().UTC()
	}
	return p.Clock.Now().UTC()
}
