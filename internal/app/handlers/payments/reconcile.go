package payments

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/policies"
	"rentalcore/internal/app/uow"
	domainpayment "rentalcore/internal/domain/payment"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/pkg/errs"
)

const reconcileKey = "payments.reconcile"

const autoVerificationNote = "auto-verified from transfer slip"

// Outcome of one reconciliation attempt.
type Outcome string

const (
	OutcomeAccepted       Outcome = "accepted"
	OutcomeFlagged        Outcome = "flagged"
	OutcomeSlipUnreadable Outcome = "slip_unreadable"
	OutcomeNoPayout       Outcome = "no_payout_method"
	OutcomeStale          Outcome = "stale"
)

// ReconcilePaymentCommand is issued by the event consumer when a proof is submitted.
type ReconcilePaymentCommand struct {
	RentalID string
	ProofURL string
}

func (ReconcilePaymentCommand) Key() string { return reconcileKey }

type ReconcileResult struct {
	RentalID string              `json:"rental_id"`
	Outcome  Outcome             `json:"outcome"`
	Report   *dto.Reconciliation `json:"report,omitempty"`
}

// Reconciler compares the slip behind a pending proof with what the rental
// expects. Only an accepted verdict changes the payment; flagged verdicts and
// unreadable slips leave it pending for a human reviewer. Every attempt that
// reaches the slip leaves a report behind.
type Reconciler struct {
	support.Mutator
	Slips   policies.SlipReader
	Payouts policies.PayoutDirectory
	Logger  *slog.Logger
}

func (h *Reconciler) Handle(ctx context.Context, cmd ReconcilePaymentCommand) (*ReconcileResult, error) {
	res := &ReconcileResult{RentalID: cmd.RentalID}
	err := support.WithUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		r, err := unit.Rentals().ByID(ctx, domainrental.RentalID(cmd.RentalID))
		if err != nil {
			return err
		}
		if r.PaymentStatus != domainrental.PaymentPendingVerification || (cmd.ProofURL != "" && r.PaymentProofURL != cmd.ProofURL) {
			res.Outcome = OutcomeStale
			return nil
		}
		slip, err := h.Slips.ReadSlip(ctx, r.PaymentProofURL)
		if err == nil {
			err = slip.Validate()
		}
		if err != nil {
			res.Outcome = OutcomeSlipUnreadable
			h.logger().WarnContext(ctx, "slip could not be read, awaiting manual review", "rental_id", r.ID, "error", err)
			return h.saveUnverified(ctx, unit, r, slip, err.Error(), res)
		}
		methods, err := h.Payouts.PayoutMethods(ctx, r.OwnerID)
		if err != nil {
			return errs.Wrap(err, "load payout methods")
		}
		payout, err := domainpayment.PrimaryMethod(methods)
		if err != nil {
			res.Outcome = OutcomeNoPayout
			h.logger().WarnContext(ctx, "owner has no payout method, awaiting manual review", "rental_id", r.ID, "owner_id", r.OwnerID)
			return h.saveUnverified(ctx, unit, r, slip, err.Error(), res)
		}

		now := h.Now()
		report := domainpayment.NewReport(domainpayment.ReportID(uuid.NewString()), string(r.ID), slip, payout, r.PaymentExpectation(), now)
		if err := unit.Reports().Save(ctx, report); err != nil {
			return err
		}
		view := dto.MapReconciliation(report)
		res.Report = &view
		if !report.Result.Accepted() {
			res.Outcome = OutcomeFlagged
			h.logger().InfoContext(ctx, "payment flagged for review", "rental_id", r.ID, "mismatches", report.Result.Mismatches)
			return nil
		}
		if err := r.AcceptPayment(slip.Amount, autoVerificationNote, now); err != nil {
			return err
		}
		res.Outcome = OutcomeAccepted
		return h.Persist(ctx, unit, r)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (h *Reconciler) saveUnverified(ctx context.Context, unit uow.UnitOfWork, r *domainrental.Rental, slip domainpayment.SlipRecord, failure string, res *ReconcileResult) error {
	report := domainpayment.NewUnverifiedReport(domainpayment.ReportID(uuid.NewString()), string(r.ID), slip, r.PaymentExpectation(), failure, h.Now())
	if err := unit.Reports().Save(ctx, report); err != nil {
		return err
	}
	view := dto.MapReconciliation(report)
	res.Report = &view
	return nil
}

func (h *Reconciler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var _ commands.Handler[ReconcilePaymentCommand, *ReconcileResult] = (*Reconciler)(nil)
