package rentals

import (
	"context"
	"time"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/middleware"
	"rentalcore/internal/app/policies"
	"rentalcore/internal/app/uow"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

const (
	approveKey        = "rentals.approve"
	rejectKey         = "rentals.reject"
	cancelKey         = "rentals.cancel"
	activateKey       = "rentals.activate"
	initiateReturnKey = "rentals.initiate_return"
	confirmReturnKey  = "rentals.confirm_return"
	openDisputeKey    = "rentals.open_dispute"
	resolveDisputeKey = "rentals.resolve_dispute"
	recordRefundKey   = "rentals.record_refund"
)

const maxReturnImages = 10

var ErrTooManyImages = errs.Mark(errs.New("rentals: too many return images"), errs.ErrValidation)

// Target names the rental a lifecycle command acts on.
type Target struct {
	support.Actor
	RentalID        string
	IdempotencyKeyV string
}

func (t Target) IdempotencyKey() string { return t.IdempotencyKeyV }

func (t Target) ResultPrototype() any { return &dto.Rental{} }

type ApproveRentalCommand struct{ Target }

func (ApproveRentalCommand) Key() string { return approveKey }

type RejectRentalCommand struct {
	Target
	Reason string
}

func (RejectRentalCommand) Key() string { return rejectKey }

type CancelRentalCommand struct {
	Target
	Reason string
}

func (CancelRentalCommand) Key() string { return cancelKey }

type ActivateRentalCommand struct{ Target }

func (ActivateRentalCommand) Key() string { return activateKey }

type InitiateReturnCommand struct{ Target }

func (InitiateReturnCommand) Key() string { return initiateReturnKey }

type ConfirmReturnCommand struct {
	Target
	Condition     string
	Notes         string
	InitiateClaim bool
	LateFee       *money.Money
	Images        []support.Upload
}

func (ConfirmReturnCommand) Key() string { return confirmReturnKey }

func (c ConfirmReturnCommand) Validate() error {
	if !domainrental.ConditionStatus(c.Condition).Valid() {
		return domainrental.ErrInvalidCondition
	}
	if len(c.Images) > maxReturnImages {
		return ErrTooManyImages
	}
	for _, img := range c.Images {
		if err := img.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type OpenDisputeCommand struct {
	Target
	Reason string
}

func (OpenDisputeCommand) Key() string { return openDisputeKey }

type ResolveDisputeCommand struct {
	Target
	Resolution string
}

func (ResolveDisputeCommand) Key() string { return resolveDisputeKey }

type RecordRefundCommand struct {
	Target
	Amount money.Money
}

func (RecordRefundCommand) Key() string { return recordRefundKey }

// Lifecycle handles the commands that move an existing rental through its states.
type Lifecycle struct {
	support.Mutator
	Images policies.ObjectStore
}

func (h *Lifecycle) Approve(ctx context.Context, cmd ApproveRentalCommand) (*dto.Rental, error) {
	return h.Mutate(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		if err := cmd.RequireOwner(r); err != nil {
			return err
		}
		return r.Approve(now)
	})
}

func (h *Lifecycle) Reject(ctx context.Context, cmd RejectRentalCommand) (*dto.Rental, error) {
	return h.Mutate(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		if err := cmd.RequireOwner(r); err != nil {
			return err
		}
		return r.Reject(cmd.Reason, now)
	})
}

// Cancel derives the cancelling party from the actor. Admins cancel on the owner's behalf.
func (h *Lifecycle) Cancel(ctx context.Context, cmd CancelRentalCommand) (*dto.Rental, error) {
	return h.Mutate(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		party, ok := cmd.PartyOf(r)
		if !ok {
			if !cmd.Admin {
				return support.ErrNotParticipant
			}
			party = domainrental.PartyOwner
		}
		return r.Cancel(party, cmd.Reason, now)
	})
}

func (h *Lifecycle) Activate(ctx context.Context, cmd ActivateRentalCommand) (*dto.Rental, error) {
	return h.Mutate(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		if err := cmd.RequireOwner(r); err != nil {
			return err
		}
		return r.Activate(now)
	})
}

func (h *Lifecycle) InitiateReturn(ctx context.Context, cmd InitiateReturnCommand) (*dto.Rental, error) {
	return h.Mutate(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		if err := cmd.RequireParticipant(r); err != nil {
			return err
		}
		return r.InitiateReturn(now)
	})
}

// ConfirmReturn stores the inspection photos only once the transition is known to be legal.
func (h *Lifecycle) ConfirmReturn(ctx context.Context, cmd ConfirmReturnCommand) (*dto.Rental, error) {
	return h.Mutate(ctx, cmd.RentalID, func(ctx context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		if err := cmd.RequireOwner(r); err != nil {
			return err
		}
		if !domainrental.CanTransition(r.State(), domainrental.ActionConfirmReturn) {
			return &domainrental.TransitionError{From: r.State(), Action: domainrental.ActionConfirmReturn}
		}
		report := domainrental.ReturnReport{
			Condition:     domainrental.ConditionStatus(cmd.Condition),
			Notes:         cmd.Notes,
			InitiateClaim: cmd.InitiateClaim,
		}
		if cmd.LateFee != nil {
			report.LateFee = *cmd.LateFee
		}
		for _, img := range cmd.Images {
			url, err := support.Store(ctx, h.Images, "returns/"+string(r.ID), img)
			if err != nil {
				return err
			}
			report.ImageURLs = append(report.ImageURLs, url)
		}
		return r.ConfirmReturn(report, now)
	})
}

func (h *Lifecycle) OpenDispute(ctx context.Context, cmd OpenDisputeCommand) (*dto.Rental, error) {
	return h.Mutate(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		if err := cmd.RequireParticipant(r); err != nil {
			return err
		}
		return r.OpenDispute(cmd.Reason, now)
	})
}

func (h *Lifecycle) ResolveDispute(ctx context.Context, cmd ResolveDisputeCommand) (*dto.Rental, error) {
	if err := cmd.RequireAdmin(); err != nil {
		return nil, err
	}
	return h.Mutate(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		return r.ResolveDispute(cmd.Resolution, now)
	})
}

func (h *Lifecycle) RecordRefund(ctx context.Context, cmd RecordRefundCommand) (*dto.Rental, error) {
	return h.Mutate(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		if err := cmd.RequireOwner(r); err != nil {
			return err
		}
		return r.RecordRefund(cmd.Amount, now)
	})
}

// Register attaches every lifecycle command to the bus.
func (h *Lifecycle) Register(bus *commands.InMemoryBus) {
	commands.RegisterFunc(bus, approveKey, h.Approve)
	commands.RegisterFunc(bus, rejectKey, h.Reject)
	commands.RegisterFunc(bus, cancelKey, h.Cancel)
	commands.RegisterFunc(bus, activateKey, h.Activate)
	commands.RegisterFunc(bus, initiateReturnKey, h.InitiateReturn)
	commands.RegisterFunc(bus, confirmReturnKey, h.ConfirmReturn)
	commands.RegisterFunc(bus, openDisputeKey, h.OpenDispute)
	commands.RegisterFunc(bus, resolveDisputeKey, h.ResolveDispute)
	commands.RegisterFunc(bus, recordRefundKey, h.RecordRefund)
}

var (
	_ middleware.IdempotentCommand = ApproveRentalCommand{}
	_ middleware.IdempotentCommand = ConfirmReturnCommand{}
	_ middleware.ActorMessage      = CancelRentalCommand{}
)
