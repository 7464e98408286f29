package rentals

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/handlers/availability"
	"rentalcore/internal/app/handlers/quotes"
	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/middleware"
	"rentalcore/internal/app/uow"
	domainavailability "rentalcore/internal/domain/availability"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/errs"
)

const createRentalKey = "rentals.create"

var ErrAvailabilityUnconfirmed = errs.Mark(errs.New("rentals: availability could not be confirmed"), errs.ErrDateRangeConflict)

type CreateRentalCommand struct {
	support.Actor
	quotes.Intent
	IdempotencyKeyV string
}

func (c CreateRentalCommand) Key() string { return createRentalKey }

func (c CreateRentalCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateRentalCommand) ResultPrototype() any { return &dto.Rental{} }

// Fingerprint identifies the booking a key was issued for.
func (c CreateRentalCommand) Fingerprint() string {
	return strings.Join([]string{
		c.Actor.ID,
		c.ProductID,
		daterange.FormatDay(c.Start),
		daterange.FormatDay(c.End),
		c.Tier,
		strconv.Itoa(c.Units),
		c.PickupMethod,
	}, "|")
}

// OwnsUnitOfWork keeps the product lock held until the unit commits.
func (c CreateRentalCommand) OwnsUnitOfWork() bool { return true }

type CreateRentalHandler struct {
	support.Mutator
	Pricer   *quotes.Pricer
	Resolver *availability.Resolver
	Logger   *slog.Logger

	locks sync.Map
}

// Handle re-resolves availability authoritatively before booking. Days found
// taken are written to the calendar cache and reported as a conflict.
func (h *CreateRentalHandler) Handle(ctx context.Context, cmd CreateRentalCommand) (*dto.Rental, error) {
	priced, err := h.Pricer.Price(ctx, cmd.Intent)
	if err != nil {
		return nil, err
	}
	if priced.FeesErr != nil {
		return nil, errs.WithSecondary(domainrental.ErrFeesUnknown, priced.FeesErr)
	}

	unlock := h.lock(priced.Product.ID)
	defer unlock()

	var out dto.Rental
	err = support.WithUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		res, err := h.Resolver.Resolve(ctx, priced.Product, priced.Quote.Range, true)
		if err != nil {
			return err
		}
		if !res.Check.Available {
			conflict := &domainavailability.ConflictError{Dates: res.Check.UnavailableDates}
			h.Resolver.MarkConflict(ctx, priced.Product.ID, conflict)
			return conflict
		}
		if res.Check.NeedsConfirmation() {
			return errs.Wrapf(ErrAvailabilityUnconfirmed, "unknown days %s", formatDays(res.Check.UnknownDates))
		}

		now := h.Now()
		rental, err := domainrental.New(domainrental.CreateParams{
			ID:           domainrental.RentalID(uuid.NewString()),
			UID:          NewRentalUID(now),
			RenterID:     cmd.ActorID(),
			OwnerID:      priced.Product.OwnerID,
			ProductID:    priced.Product.ID,
			PickupMethod: priced.Pickup,
			Snapshot:     priced.Product.Tiers,
			Quote:        priced.Quote,
			Fees:         priced.Fees,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		if err := h.Persist(ctx, unit, rental); err != nil {
			return err
		}
		out = dto.MapRental(rental)
		return nil
	})
	if err != nil {
		return nil, err
	}
	h.logger().InfoContext(ctx, "rental requested", "rental_id", out.ID, "product_id", out.ProductID, "renter_id", out.RenterID)
	return &out, nil
}

// lock serialises bookings of one product inside this process.
func (h *CreateRentalHandler) lock(productID string) func() {
	v, _ := h.locks.LoadOrStore(productID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (h *CreateRentalHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// NewRentalUID builds the human-facing reference, e.g. RNT-20250601-3F9A1C.
func NewRentalUID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "RNT-" + now.UTC().Format("20060102") + "-" + suffix
}

func formatDays(days []time.Time) string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, daterange.FormatDay(d))
	}
	return strings.Join(out, ", ")
}

var (
	_ commands.Handler[CreateRentalCommand, *dto.Rental] = (*CreateRentalHandler)(nil)
	_ middleware.IdempotentCommand                       = CreateRentalCommand{}
	_ middleware.UnitOwner                               = CreateRentalCommand{}
)
