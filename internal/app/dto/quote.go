package dto

import (
	"rentalcore/internal/domain/fees"
	"rentalcore/internal/domain/pricing"
	"rentalcore/internal/domain/shared/daterange"
)

// FeesUnknownWarning is shown when the fee schedule could not be fetched.
const FeesUnknownWarning = "final fees will be confirmed at the payment step"

// AvailabilityPartialWarning is shown when some days could not be confirmed.
const AvailabilityPartialWarning = "availability could not be fully confirmed and will be rechecked at booking"

type Recommendation struct {
	Tier           string   `json:"tier"`
	UnitRate       MoneyDTO `json:"unit_rate"`
	TotalCost      MoneyDTO `json:"total_cost"`
	DailyCost      MoneyDTO `json:"daily_cost"`
	SavingsVsDaily MoneyDTO `json:"savings_vs_daily"`
}

type FeeBreakdown struct {
	Known              bool      `json:"known"`
	PlatformFeeRenter  *MoneyDTO `json:"platform_fee_renter,omitempty"`
	DeliveryFee        *MoneyDTO `json:"delivery_fee,omitempty"`
	TotalEstimatedFees *MoneyDTO `json:"total_estimated_fees,omitempty"`
}

type Quote struct {
	ProductID       string         `json:"product_id"`
	StartDate       string         `json:"start_date"`
	EndDate         string         `json:"end_date"`
	Days            int            `json:"days"`
	Tier            string         `json:"tier"`
	Units           int            `json:"units"`
	UnitRate        MoneyDTO       `json:"unit_rate"`
	Subtotal        MoneyDTO       `json:"subtotal"`
	SecurityDeposit MoneyDTO       `json:"security_deposit"`
	Recommendation  Recommendation `json:"recommendation"`
	Fees            FeeBreakdown   `json:"fees"`
	TotalAmountDue  *MoneyDTO      `json:"total_amount_due,omitempty"`
	Availability    RangeCheck     `json:"availability"`
	Warnings        []string       `json:"warnings,omitempty"`
}

func MapRecommendation(rec pricing.Recommendation) Recommendation {
	return Recommendation{
		Tier:           string(rec.Tier),
		UnitRate:       MapMoney(rec.UnitRate),
		TotalCost:      MapMoney(rec.TotalCost),
		DailyCost:      MapMoney(rec.DailyCost),
		SavingsVsDaily: MapMoney(rec.SavingsVsDaily),
	}
}

func MapFees(est fees.Estimate) FeeBreakdown {
	return FeeBreakdown{
		Known:              est.Known,
		PlatformFeeRenter:  MapMoneyPtr(est.PlatformFeeRenter, est.Known),
		DeliveryFee:        MapMoneyPtr(est.DeliveryFee, est.Known),
		TotalEstimatedFees: MapMoneyPtr(est.TotalEstimatedFees, est.Known),
	}
}

func MapQuoteRange(q pricing.Quote) (string, string) {
	return daterange.FormatDay(q.Range.Start), daterange.FormatDay(q.Range.End)
}
