package payments

import (
	"context"
	"time"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/middleware"
	"rentalcore/internal/app/policies"
	"rentalcore/internal/app/uow"
	domainpayment "rentalcore/internal/domain/payment"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

const (
	submitProofKey     = "payments.submit_proof"
	verifyPaymentKey   = "payments.verify"
	markSlipInvalidKey = "payments.mark_slip_invalid"
)

const manualVerificationNote = "verified manually"

type SubmitPaymentProofCommand struct {
	support.Actor
	RentalID        string
	Slip            support.Upload
	Claimed         money.Money
	IdempotencyKeyV string
}

func (SubmitPaymentProofCommand) Key() string { return submitProofKey }

func (c SubmitPaymentProofCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c SubmitPaymentProofCommand) ResultPrototype() any { return &dto.Rental{} }

func (c SubmitPaymentProofCommand) Validate() error {
	if c.Claimed.Amount <= 0 {
		return domainrental.ErrInvalidAmount
	}
	return c.Slip.Validate()
}

// VerifyPaymentCommand accepts the payment on a reviewer's word, overriding a
// flagged verdict. Amount defaults to the latest slip amount, then the claimed one.
type VerifyPaymentCommand struct {
	support.Actor
	RentalID        string
	Amount          *money.Money
	Note            string
	IdempotencyKeyV string
}

func (VerifyPaymentCommand) Key() string { return verifyPaymentKey }

func (c VerifyPaymentCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c VerifyPaymentCommand) ResultPrototype() any { return &dto.Rental{} }

type MarkSlipInvalidCommand struct {
	support.Actor
	RentalID        string
	Reason          string
	IdempotencyKeyV string
}

func (MarkSlipInvalidCommand) Key() string { return markSlipInvalidKey }

func (c MarkSlipInvalidCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c MarkSlipInvalidCommand) ResultPrototype() any { return &dto.Rental{} }

// Proofs handles slip submission and the reviewer decisions on it.
type Proofs struct {
	support.Mutator
	Slips policies.ObjectStore
}

// Submit stores the slip image and moves the payment to pending verification.
// The recorded event starts automatic reconciliation.
func (h *Proofs) Submit(ctx context.Context, cmd SubmitPaymentProofCommand) (*dto.Rental, error) {
	var url string
	return h.Mutate(ctx, cmd.RentalID, func(ctx context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		if err := cmd.RequireRenter(r); err != nil {
			return err
		}
		if !domainrental.CanTransition(r.State(), domainrental.ActionSubmitPaymentProof) {
			return &domainrental.TransitionError{From: r.State(), Action: domainrental.ActionSubmitPaymentProof}
		}
		if url == "" {
			stored, err := support.Store(ctx, h.Slips, "slips/"+string(r.ID), cmd.Slip)
			if err != nil {
				return err
			}
			url = stored
		}
		return r.SubmitPaymentProof(url, cmd.Claimed, now)
	})
}

func (h *Proofs) Verify(ctx context.Context, cmd VerifyPaymentCommand) (*dto.Rental, error) {
	return h.Mutate(ctx, cmd.RentalID, func(ctx context.Context, unit uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		if err := cmd.RequireOwner(r); err != nil {
			return err
		}
		paid, err := paidAmount(ctx, unit, r, cmd.Amount)
		if err != nil {
			return err
		}
		note := cmd.Note
		if note == "" {
			note = manualVerificationNote
		}
		return r.AcceptPayment(paid, note, now)
	})
}

func (h *Proofs) MarkSlipInvalid(ctx context.Context, cmd MarkSlipInvalidCommand) (*dto.Rental, error) {
	return h.Mutate(ctx, cmd.RentalID, func(_ context.Context, _ uow.UnitOfWork, r *domainrental.Rental, now time.Time) error {
		if err := cmd.RequireOwner(r); err != nil {
			return err
		}
		return r.RejectPayment(cmd.Reason, now)
	})
}

func (h *Proofs) Register(bus *commands.InMemoryBus) {
	commands.RegisterFunc(bus, submitProofKey, h.Submit)
	commands.RegisterFunc(bus, verifyPaymentKey, h.Verify)
	commands.RegisterFunc(bus, markSlipInvalidKey, h.MarkSlipInvalid)
}

func paidAmount(ctx context.Context, unit uow.UnitOfWork, r *domainrental.Rental, explicit *money.Money) (money.Money, error) {
	if explicit != nil {
		return *explicit, nil
	}
	report, err := unit.Reports().LatestForRental(ctx, string(r.ID))
	switch {
	case err == nil && report.Slip.Amount.Amount > 0:
		return report.Slip.Amount, nil
	case err != nil && !errs.Is(err, domainpayment.ErrReportNotFound):
		return money.Money{}, err
	}
	if r.ClaimedAmount.Amount > 0 {
		return r.ClaimedAmount, nil
	}
	return r.TotalAmountDue, nil
}

var (
	_ middleware.IdempotentCommand = SubmitPaymentProofCommand{}
	_ middleware.IdempotentCommand = VerifyPaymentCommand{}
	_ middleware.IdempotentCommand = MarkSlipInvalidCommand{}
)
