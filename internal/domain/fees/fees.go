package fees

import (
	"context"
	"errors"
	"fmt"

	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

var (
	ErrInvalidSchedule     = errs.Mark(errors.New("fees: invalid fee schedule"), errs.ErrValidation)
	ErrInvalidPickup       = errs.Mark(errors.New("fees: unknown pickup method"), errs.ErrValidation)
	ErrScheduleUnavailable = errs.Mark(errors.New("fees: fee schedule unavailable"), errs.ErrUpstreamUnavailable)
)

type PickupMethod string

const (
	PickupSelf     PickupMethod = "self_pickup"
	PickupDelivery PickupMethod = "delivery"
)

func ParsePickupMethod(raw string) (PickupMethod, error) {
	switch PickupMethod(raw) {
	case PickupSelf, PickupDelivery:
		return PickupMethod(raw), nil
	default:
		return "", ErrInvalidPickup
	}
}

type RuleKind string

const (
	KindPercent RuleKind = "percent"
	KindFlat    RuleKind = "flat"
)

// Rule is either a percentage of the subtotal in basis points or a flat amount.
type Rule struct {
	Kind        RuleKind    `json:"kind" yaml:"kind"`
	BasisPoints int64       `json:"basis_points" yaml:"basis_points"`
	Flat        money.Money `json:"flat" yaml:"flat"`
}

func (r Rule) apply(subtotal money.Money) money.Money {
	if r.Kind == KindFlat {
		return r.Flat
	}
	return subtotal.BasisPoints(r.BasisPoints)
}

// Schedule is supplied by an external fee service; rates are never hard-coded here.
type Schedule struct {
	Currency    string      `json:"currency" yaml:"currency"`
	PlatformFee Rule        `json:"platform_fee" yaml:"platform_fee"`
	DeliveryFee money.Money `json:"delivery_fee" yaml:"delivery_fee"`
}

func (s Schedule) Validate() error {
	switch s.PlatformFee.Kind {
	case KindPercent:
		if s.PlatformFee.BasisPoints < 0 {
			return fmt.Errorf("%w: negative platform percentage", ErrInvalidSchedule)
		}
	case KindFlat:
		if s.PlatformFee.Flat.IsNegative() {
			return fmt.Errorf("%w: negative flat platform fee", ErrInvalidSchedule)
		}
		if s.PlatformFee.Flat.Currency != s.Currency {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, money.ErrCurrencyMismatch)
		}
	default:
		return fmt.Errorf("%w: unknown platform fee kind %q", ErrInvalidSchedule, s.PlatformFee.Kind)
	}
	if s.DeliveryFee.IsNegative() {
		return fmt.Errorf("%w: negative delivery fee", ErrInvalidSchedule)
	}
	if !s.DeliveryFee.IsZero() && s.DeliveryFee.Currency != s.Currency {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, money.ErrCurrencyMismatch)
	}
	return nil
}

// ScheduleSource fetches the current schedule. Implementations return an error
// matching errs.ErrUpstreamUnavailable when the source cannot be reached.
type ScheduleSource interface {
	Current(ctx context.Context) (Schedule, error)
}

// Estimate is the fee breakdown for a subtotal. Known is false when the schedule
// could not be fetched; amounts are then meaningless and must not be shown as zero.
type Estimate struct {
	Known              bool        `json:"known"`
	PlatformFeeRenter  money.Money `json:"platform_fee_renter"`
	DeliveryFee        money.Money `json:"delivery_fee"`
	TotalEstimatedFees money.Money `json:"total_estimated_fees"`
}

// Unknown is the marker returned when the fee service is down.
func Unknown() Estimate {
	return Estimate{Known: false}
}

// EstimateFees composes platform and delivery fees for a subtotal.
func EstimateFees(subtotal money.Money, pickup PickupMethod, schedule Schedule) (Estimate, error) {
	if _, err := ParsePickupMethod(string(pickup)); err != nil {
		return Estimate{}, err
	}
	if err := schedule.Validate(); err != nil {
		return Estimate{}, err
	}
	if subtotal.Currency != schedule.Currency {
		return Estimate{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, money.ErrCurrencyMismatch)
	}
	platform := schedule.PlatformFee.apply(subtotal)
	delivery := money.Zero(subtotal.Currency)
	if pickup == PickupDelivery && !schedule.DeliveryFee.IsZero() {
		delivery = schedule.DeliveryFee
	}
	total, err := platform.Add(delivery)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{
		Known:              true,
		PlatformFeeRenter:  platform,
		DeliveryFee:        delivery,
		TotalEstimatedFees: total,
	}, nil
}

// EstimateFrom fetches the schedule and estimates. A failing source yields the
// Unknown marker together with the source error so callers can warn the renter.
func EstimateFrom(ctx context.Context, src ScheduleSource, subtotal money.Money, pickup PickupMethod) (Estimate, error) {
	if src == nil {
		return Unknown(), ErrScheduleUnavailable
	}
	schedule, err := src.Current(ctx)
	if err != nil {
		return Unknown(), errs.Mark(err, errs.ErrUpstreamUnavailable)
	}
	return EstimateFees(subtotal, pickup, schedule)
}
