package quotes

import (
	"context"
	"log/slog"

	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/handlers/availability"
	"rentalcore/internal/app/queries"
)

const getQuoteKey = "quotes.get"

type GetQuoteQuery struct {
	Intent
}

func (q GetQuoteQuery) Key() string { return getQuoteKey }

type GetQuoteHandler struct {
	Pricer   *Pricer
	Resolver *availability.Resolver
	Logger   *slog.Logger
}

// Handle prices the intent, recommends a tier and checks the range. Taken
// days and an unreachable fee service are reported in the quote, not as errors.
func (h *GetQuoteHandler) Handle(ctx context.Context, q GetQuoteQuery) (dto.Quote, error) {
	priced, err := h.Pricer.Price(ctx, q.Intent)
	if err != nil {
		return dto.Quote{}, err
	}
	res, err := h.Resolver.Resolve(ctx, priced.Product, priced.Quote.Range, false)
	if err != nil {
		return dto.Quote{}, err
	}

	start, end := dto.MapQuoteRange(priced.Quote)
	out := dto.Quote{
		ProductID:       priced.Product.ID,
		StartDate:       start,
		EndDate:         end,
		Days:            priced.Quote.Days,
		Tier:            string(priced.Quote.Tier),
		Units:           priced.Quote.Units,
		UnitRate:        dto.MapMoney(priced.Quote.UnitRate),
		Subtotal:        dto.MapMoney(priced.Quote.Subtotal),
		SecurityDeposit: dto.MapMoney(priced.Product.Tiers.Deposit()),
		Recommendation:  dto.MapRecommendation(priced.Recommendation),
		Fees:            dto.MapFees(priced.Fees),
		Availability:    dto.MapRangeCheck(res.Check),
	}
	if total, ok := priced.Total(); ok {
		out.TotalAmountDue = dto.MapMoneyPtr(total, true)
	}
	if priced.FeesErr != nil {
		out.Warnings = append(out.Warnings, dto.FeesUnknownWarning)
		h.logger().WarnContext(ctx, "fee schedule unavailable for quote", "product_id", priced.Product.ID, "error", priced.FeesErr)
	}
	if res.Partial {
		out.Warnings = append(out.Warnings, dto.AvailabilityPartialWarning)
	}
	return out, nil
}

func (h *GetQuoteHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var _ queries.Handler[GetQuoteQuery, dto.Quote] = (*GetQuoteHandler)(nil)
