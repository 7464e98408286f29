package pricing

import (
	"errors"
	"fmt"
	"time"

	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

var (
	ErrInvalidTiers       = errs.Mark(errors.New("pricing: invalid tier configuration"), errs.ErrValidation)
	ErrDurationOutOfRange = errs.Mark(errors.New("pricing: rental duration out of range"), errs.ErrDurationOutOfRange)
	ErrTierNotOffered     = errs.Mark(errors.New("pricing: tier not offered for this product"), errs.ErrValidation)
	ErrInvalidUnits       = errs.Mark(errors.New("pricing: unit count must be positive"), errs.ErrValidation)
	ErrInvalidTier        = errs.Mark(errors.New("pricing: unknown tier"), errs.ErrValidation)
)

const (
	daysPerWeek  = 7
	daysPerMonth = 30
)

type Tier string

const (
	TierDaily   Tier = "daily"
	TierWeekly  Tier = "weekly"
	TierMonthly Tier = "monthly"
)

func ParseTier(raw string) (Tier, error) {
	switch Tier(raw) {
	case TierDaily, TierWeekly, TierMonthly:
		return Tier(raw), nil
	case "":
		return TierDaily, nil
	default:
		return "", ErrInvalidTier
	}
}

// Tiers is the price-at-booking snapshot of a product. A zero weekly or monthly
// price means the tier is not offered; MaxRentalDays of zero means unbounded.
type Tiers struct {
	PricePerDay       money.Money `json:"price_per_day" bson:"price_per_day"`
	PricePerWeek      money.Money `json:"price_per_week" bson:"price_per_week"`
	PricePerMonth     money.Money `json:"price_per_month" bson:"price_per_month"`
	MinRentalDays     int         `json:"min_rental_days" bson:"min_rental_days"`
	MaxRentalDays     int         `json:"max_rental_days" bson:"max_rental_days"`
	SecurityDeposit   money.Money `json:"security_deposit" bson:"security_deposit"`
	QuantityAvailable int         `json:"quantity_available" bson:"quantity_available"`
}

func (t Tiers) Validate() error {
	switch {
	case t.PricePerDay.Amount <= 0:
		return fmt.Errorf("%w: price per day must be positive", ErrInvalidTiers)
	case t.PricePerWeek.IsNegative(), t.PricePerMonth.IsNegative():
		return fmt.Errorf("%w: tier prices must not be negative", ErrInvalidTiers)
	case t.MinRentalDays < 1:
		return fmt.Errorf("%w: min rental days must be at least 1", ErrInvalidTiers)
	case t.MaxRentalDays != 0 && t.MaxRentalDays < t.MinRentalDays:
		return fmt.Errorf("%w: max rental days below min rental days", ErrInvalidTiers)
	case t.SecurityDeposit.IsNegative():
		return fmt.Errorf("%w: security deposit must not be negative", ErrInvalidTiers)
	case t.QuantityAvailable < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidTiers)
	}
	for _, m := range []money.Money{t.PricePerWeek, t.PricePerMonth, t.SecurityDeposit} {
		if !m.IsZero() && m.Currency != t.PricePerDay.Currency {
			return fmt.Errorf("%w: %v", ErrInvalidTiers, money.ErrCurrencyMismatch)
		}
	}
	return nil
}

func (t Tiers) Currency() string {
	return t.PricePerDay.Currency
}

// Deposit returns the security deposit in the tier currency.
func (t Tiers) Deposit() money.Money {
	if t.SecurityDeposit.Currency == "" {
		return money.Zero(t.Currency())
	}
	return t.SecurityDeposit
}

// RateFor returns the unit price of a tier and whether it is offered.
func (t Tiers) RateFor(tier Tier) (money.Money, bool) {
	switch tier {
	case TierDaily:
		return t.PricePerDay, t.PricePerDay.Amount > 0
	case TierWeekly:
		return t.PricePerWeek, t.PricePerWeek.Amount > 0
	case TierMonthly:
		return t.PricePerMonth, t.PricePerMonth.Amount > 0
	default:
		return money.Money{}, false
	}
}

type Limit string

const (
	LimitMin Limit = "min"
	LimitMax Limit = "max"
)

// DurationError carries the violated bound.
type DurationError struct {
	Days  int
	Bound int
	Limit Limit
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("pricing: %d days violates %s rental days %d", e.Days, e.Limit, e.Bound)
}

func (e *DurationError) Unwrap() error {
	return ErrDurationOutOfRange
}

// CheckDuration enforces min/max rental days.
func CheckDuration(t Tiers, days int) error {
	if days < t.MinRentalDays {
		return &DurationError{Days: days, Bound: t.MinRentalDays, Limit: LimitMin}
	}
	if t.MaxRentalDays > 0 && days > t.MaxRentalDays {
		return &DurationError{Days: days, Bound: t.MaxRentalDays, Limit: LimitMax}
	}
	return nil
}

type Candidate struct {
	Tier     Tier        `json:"tier"`
	Units    int         `json:"units"`
	UnitRate money.Money `json:"unit_rate"`
	Cost     money.Money `json:"cost"`
}

type Recommendation struct {
	Days           int         `json:"days"`
	Tier           Tier        `json:"tier"`
	UnitRate       money.Money `json:"unit_rate"`
	TotalCost      money.Money `json:"total_cost"`
	DailyCost      money.Money `json:"daily_cost"`
	SavingsVsDaily money.Money `json:"savings_vs_daily"`
	Candidates     []Candidate `json:"candidates"`
}

// Candidates lists the tier costs eligible for a duration. Daily is always present.
func Candidates(t Tiers, days int) []Candidate {
	out := []Candidate{{
		Tier:     TierDaily,
		Units:    days,
		UnitRate: t.PricePerDay,
		Cost:     t.PricePerDay.Multiply(int64(days)),
	}}
	if rate, ok := t.RateFor(TierWeekly); ok && days >= daysPerWeek {
		units := unitsFor(TierWeekly, days)
		out = append(out, Candidate{Tier: TierWeekly, Units: units, UnitRate: rate, Cost: rate.Multiply(int64(units))})
	}
	if rate, ok := t.RateFor(TierMonthly); ok && days >= daysPerMonth {
		units := unitsFor(TierMonthly, days)
		out = append(out, Candidate{Tier: TierMonthly, Units: units, UnitRate: rate, Cost: rate.Multiply(int64(units))})
	}
	return out
}

// SelectOptimalTier recommends the cheapest eligible tier for the inclusive range.
// The caller decides whether to apply it.
func SelectOptimalTier(t Tiers, start, end time.Time) (Recommendation, error) {
	r, err := daterange.New(start, end)
	if err != nil {
		return Recommendation{}, errs.Mark(err, errs.ErrValidation)
	}
	days := r.Days()
	candidates := Candidates(t, days)
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Cost.Less(best.Cost) {
			best = c
		}
	}
	daily := candidates[0].Cost
	savings := money.Money{Amount: daily.Amount - best.Cost.Amount, Currency: daily.Currency}
	if savings.IsNegative() {
		savings.Amount = 0
	}
	return Recommendation{
		Days:           days,
		Tier:           best.Tier,
		UnitRate:       best.UnitRate,
		TotalCost:      best.Cost,
		DailyCost:      daily,
		SavingsVsDaily: savings,
		Candidates:     candidates,
	}, nil
}

// Choice is the tier the renter explicitly picked. Units is optional for daily
// bookings; for weekly and monthly it drives the end date.
type Choice struct {
	Tier  Tier
	Units int
}

type Quote struct {
	Tier     Tier                `json:"tier"`
	Units    int                 `json:"units"`
	UnitRate money.Money         `json:"unit_rate"`
	Range    daterange.DateRange `json:"-"`
	Days     int                 `json:"days"`
	Subtotal money.Money         `json:"subtotal"`
}

// Price computes the subtotal of an explicit choice. When Units is set the end
// date is derived from it and the passed end is ignored. Without Units a tier
// is counted the way Candidates counts it, so applying a recommendation to the
// same range charges exactly the recommended cost.
func Price(t Tiers, choice Choice, start, end time.Time) (Quote, error) {
	tier := choice.Tier
	if tier == "" {
		tier = TierDaily
	}
	rate, ok := t.RateFor(tier)
	if !ok {
		return Quote{}, ErrTierNotOffered
	}
	if choice.Units < 0 {
		return Quote{}, ErrInvalidUnits
	}
	if choice.Units > 0 {
		derived, err := EndDate(tier, start, choice.Units)
		if err != nil {
			return Quote{}, err
		}
		end = derived
	}
	r, err := daterange.New(start, end)
	if err != nil {
		return Quote{}, errs.Mark(err, errs.ErrValidation)
	}
	days := r.Days()
	if err := CheckDuration(t, days); err != nil {
		return Quote{}, err
	}
	units := choice.Units
	if units == 0 {
		units = unitsFor(tier, days)
	}
	return Quote{
		Tier:     tier,
		Units:    units,
		UnitRate: rate,
		Range:    r,
		Days:     days,
		Subtotal: rate.Multiply(int64(units)),
	}, nil
}

// EndDate derives the inclusive end date of a booking of n units starting at start.
// Monthly bookings use calendar months, clamping to the last day of shorter months.
func EndDate(tier Tier, start time.Time, units int) (time.Time, error) {
	if units <= 0 {
		return time.Time{}, ErrInvalidUnits
	}
	start = daterange.Day(start)
	switch tier {
	case TierDaily, "":
		return daterange.AddDays(start, units-1), nil
	case TierWeekly:
		return daterange.AddDays(start, daysPerWeek*units-1), nil
	case TierMonthly:
		return daterange.AddDays(addMonths(start, units), -1), nil
	default:
		return time.Time{}, ErrInvalidTier
	}
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	last := daysIn(first.Year(), first.Month())
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func unitsFor(tier Tier, days int) int {
	switch tier {
	case TierWeekly:
		return ceilDiv(days, daysPerWeek)
	case TierMonthly:
		return ceilDiv(days, daysPerMonth)
	default:
		return days
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
