package rental

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentalcore/internal/domain/fees"
	"rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/pricing"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/domain/shared/events"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

var (
	ErrRentalNotFound    = errs.Mark(errors.New("rental: not found"), errs.ErrNotFound)
	ErrVersionConflict   = errs.Mark(errors.New("rental: concurrent update"), errs.ErrConcurrentUpdate)
	ErrFeesUnknown       = errs.Mark(errors.New("rental: fees unknown"), errs.ErrUpstreamUnavailable)
	ErrSelfRental        = errs.Mark(errors.New("rental: owner cannot rent own product"), errs.ErrValidation)
	ErrMissingParty      = errs.Mark(errors.New("rental: renter, owner and product are required"), errs.ErrValidation)
	ErrProofRequired     = errs.Mark(errors.New("rental: payment proof url required"), errs.ErrValidation)
	ErrInvalidAmount     = errs.Mark(errors.New("rental: amount must be positive"), errs.ErrValidation)
	ErrLateFeeNotAllowed = errs.Mark(errors.New("rental: late fee only applies to late returns"), errs.ErrValidation)
	ErrRefundExceedsPaid = errs.Mark(errors.New("rental: refund exceeds amount paid"), errs.ErrValidation)
)

type RentalID string

type Party string

const (
	PartyRenter Party = "renter"
	PartyOwner  Party = "owner"
)

type Rental struct {
	ID                    RentalID
	UID                   string
	RenterID              string
	OwnerID               string
	ProductID             string
	Period                daterange.DateRange
	PickupMethod          fees.PickupMethod
	Tier                  pricing.Tier
	Units                 int
	Snapshot              pricing.Tiers
	Status                Status
	PaymentStatus         PaymentStatus
	Subtotal              money.Money
	SecurityDeposit       money.Money
	DeliveryFee           money.Money
	PlatformFeeRenter     money.Money
	LateFee               money.Money
	TotalAmountDue        money.Money
	FinalAmountPaid       money.Money
	RefundedAmount        money.Money
	ClaimedAmount         money.Money
	PaymentProofURL       string
	ProofSubmittedAt      time.Time
	PaymentNote           string
	RejectionReason       string
	CancellationReason    string
	CancelledBy           Party
	ReturnConditionStatus ConditionStatus
	ReturnNotes           string
	ReturnImageURLs       []string
	DisputeReason         string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Version               int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id RentalID) (*Rental, error)
	Save(ctx context.Context, rental *Rental) error
	// ListHolding returns rentals of a product that occupy stock on any day of r.
	ListHolding(ctx context.Context, productID string, r daterange.DateRange) ([]*Rental, error)
	// ListStale returns expirable rentals whose start date is before the given day.
	ListStale(ctx context.Context, before time.Time, limit int) ([]*Rental, error)
}

type CreateParams struct {
	ID           RentalID
	UID          string
	RenterID     string
	OwnerID      string
	ProductID    string
	PickupMethod fees.PickupMethod
	Snapshot     pricing.Tiers
	Quote        pricing.Quote
	Fees         fees.Estimate
	CreatedAt    time.Time
}

// New creates a rental awaiting owner approval from a priced booking intent.
func New(params CreateParams) (*Rental, error) {
	if params.RenterID == "" || params.OwnerID == "" || params.ProductID == "" {
		return nil, ErrMissingParty
	}
	if params.RenterID == params.OwnerID {
		return nil, ErrSelfRental
	}
	if !params.Fees.Known {
		return nil, ErrFeesUnknown
	}
	if _, err := fees.ParsePickupMethod(string(params.PickupMethod)); err != nil {
		return nil, err
	}
	if err := params.Quote.Range.Validate(); err != nil {
		return nil, errs.Mark(err, errs.ErrValidation)
	}
	currency := params.Quote.Subtotal.Currency
	deposit := params.Snapshot.Deposit()
	total, err := money.Sum(currency, params.Quote.Subtotal, deposit, params.Fees.DeliveryFee, params.Fees.PlatformFeeRenter)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrValidation)
	}
	now := params.CreatedAt.UTC()
	r := &Rental{
		ID:                params.ID,
		UID:               params.UID,
		RenterID:          params.RenterID,
		OwnerID:           params.OwnerID,
		ProductID:         params.ProductID,
		Period:            params.Quote.Range,
		PickupMethod:      params.PickupMethod,
		Tier:              params.Quote.Tier,
		Units:             params.Quote.Units,
		Snapshot:          params.Snapshot,
		Status:            StatusPendingOwnerApproval,
		PaymentStatus:     PaymentUnpaid,
		Subtotal:          params.Quote.Subtotal,
		SecurityDeposit:   deposit,
		DeliveryFee:       params.Fees.DeliveryFee,
		PlatformFeeRenter: params.Fees.PlatformFeeRenter,
		LateFee:           money.Zero(currency),
		TotalAmountDue:    total,
		FinalAmountPaid:   money.Zero(currency),
		RefundedAmount:    money.Zero(currency),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	r.Record(RentalRequested{
		RentalID:  r.ID,
		ProductID: r.ProductID,
		RenterID:  r.RenterID,
		OwnerID:   r.OwnerID,
		Start:     r.Period.Start,
		End:       r.Period.End,
		Total:     r.TotalAmountDue,
		At:        now,
	})
	return r, nil
}

func (r *Rental) State() State {
	return State{Rental: r.Status, Payment: r.PaymentStatus}
}

// AllowedActions lists what may be done with the rental right now.
func (r *Rental) AllowedActions() []Action {
	return AllowedActions(r.State())
}

// BaseAmount is the sum the booking invariant fixes, before any late fee.
func (r *Rental) BaseAmount() (money.Money, error) {
	return money.Sum(r.Subtotal.Currency, r.Subtotal, r.SecurityDeposit, r.DeliveryFee, r.PlatformFeeRenter)
}

// CheckInvariant verifies the stored total against its components.
func (r *Rental) CheckInvariant() error {
	base, err := r.BaseAmount()
	if err != nil {
		return err
	}
	want, err := base.Add(r.LateFee)
	if err != nil {
		return err
	}
	if want != r.TotalAmountDue {
		return errs.Newf("rental %s: total %d does not match components %d", r.ID, r.TotalAmountDue.Amount, want.Amount)
	}
	return nil
}

// PaymentExpectation is the comparison target for a slip. The window closes two
// days after the proof was submitted, or after the last update for older records.
func (r *Rental) PaymentExpectation() payment.Expectation {
	anchor := r.ProofSubmittedAt
	if anchor.IsZero() {
		anchor = r.UpdatedAt
	}
	return payment.NewExpectation(r.TotalAmountDue, r.CreatedAt, anchor)
}

func (r *Rental) apply(a Action, in TransitionInput) error {
	next, err := Transition(r.State(), a, in)
	if err != nil {
		return err
	}
	r.Status = next.Rental
	r.PaymentStatus = next.Payment
	r.UpdatedAt = in.Now.UTC()
	return nil
}

func (r *Rental) Submit(now time.Time) error {
	return r.apply(ActionSubmit, TransitionInput{Now: now})
}

func (r *Rental) Approve(now time.Time) error {
	if err := r.apply(ActionApprove, TransitionInput{Now: now}); err != nil {
		return err
	}
	r.Record(RentalApproved{RentalID: r.ID, At: r.UpdatedAt})
	return nil
}

func (r *Rental) Reject(reason string, now time.Time) error {
	if err := r.apply(ActionReject, TransitionInput{Now: now, Reason: reason}); err != nil {
		return err
	}
	r.RejectionReason = trimmed(reason)
	r.Record(RentalRejected{RentalID: r.ID, Reason: r.RejectionReason, At: r.UpdatedAt})
	return nil
}

func (r *Rental) SubmitPaymentProof(proofURL string, claimed money.Money, now time.Time) error {
	if trimmed(proofURL) == "" {
		return ErrProofRequired
	}
	if claimed.Amount <= 0 {
		return ErrInvalidAmount
	}
	if err := r.apply(ActionSubmitPaymentProof, TransitionInput{Now: now}); err != nil {
		return err
	}
	r.PaymentProofURL = proofURL
	r.ClaimedAmount = claimed
	r.ProofSubmittedAt = r.UpdatedAt
	r.PaymentNote = ""
	r.Record(PaymentProofSubmitted{
		RentalID:  r.ID,
		OwnerID:   r.OwnerID,
		ProofURL:  proofURL,
		Claimed:   claimed,
		AmountDue: r.TotalAmountDue,
		At:        r.UpdatedAt,
	})
	return nil
}

// AcceptPayment confirms the rental. paid is what was actually received, which
// may differ from the amount due within the reconciliation tolerance.
func (r *Rental) AcceptPayment(paid money.Money, note string, now time.Time) error {
	if paid.Amount <= 0 {
		return ErrInvalidAmount
	}
	if err := r.apply(ActionAcceptPayment, TransitionInput{Now: now}); err != nil {
		return err
	}
	r.FinalAmountPaid = paid
	r.PaymentNote = note
	r.Record(PaymentAccepted{RentalID: r.ID, Amount: paid, Note: note, At: r.UpdatedAt})
	return nil
}

// RejectPayment sends the renter back to upload a new proof.
func (r *Rental) RejectPayment(reason string, now time.Time) error {
	if err := r.apply(ActionRejectPayment, TransitionInput{Now: now, Reason: reason}); err != nil {
		return err
	}
	r.PaymentNote = trimmed(reason)
	r.Record(PaymentRejected{RentalID: r.ID, Reason: r.PaymentNote, At: r.UpdatedAt})
	return nil
}

func (r *Rental) Activate(now time.Time) error {
	if err := r.apply(ActionActivate, TransitionInput{Now: now}); err != nil {
		return err
	}
	r.Record(RentalActivated{RentalID: r.ID, At: r.UpdatedAt})
	return nil
}

func (r *Rental) InitiateReturn(now time.Time) error {
	if err := r.apply(ActionInitiateReturn, TransitionInput{Now: now, EndDate: r.Period.End}); err != nil {
		return err
	}
	r.Record(ReturnInitiated{RentalID: r.ID, Late: r.Status == StatusLateReturn, At: r.UpdatedAt})
	return nil
}

type ReturnReport struct {
	Condition     ConditionStatus
	Notes         string
	ImageURLs     []string
	InitiateClaim bool
	LateFee       money.Money
}

// ConfirmReturn records the owner's inspection. A late fee is only accepted for
// late returns and is added to the total at this point.
func (r *Rental) ConfirmReturn(report ReturnReport, now time.Time) error {
	hasLateFee := !report.LateFee.IsZero() && report.LateFee.Currency != ""
	if report.LateFee.IsNegative() {
		return ErrInvalidAmount
	}
	if hasLateFee && r.Status != StatusLateReturn {
		return ErrLateFeeNotAllowed
	}
	var total money.Money
	if hasLateFee {
		var err error
		total, err = r.TotalAmountDue.Add(report.LateFee)
		if err != nil {
			return errs.Mark(err, errs.ErrValidation)
		}
	}
	in := TransitionInput{Now: now, Condition: report.Condition, InitiateClaim: report.InitiateClaim}
	if err := r.apply(ActionConfirmReturn, in); err != nil {
		return err
	}
	if hasLateFee {
		r.LateFee = report.LateFee
		r.TotalAmountDue = total
	}
	r.ReturnConditionStatus = report.Condition
	r.ReturnNotes = report.Notes
	r.ReturnImageURLs = append([]string(nil), report.ImageURLs...)
	disputed := r.Status == StatusDispute
	if disputed {
		r.DisputeReason = "return condition claim: " + string(report.Condition)
	}
	r.Record(ReturnConfirmed{RentalID: r.ID, Condition: report.Condition, LateFee: r.LateFee, Disputed: disputed, At: r.UpdatedAt})
	return nil
}

func (r *Rental) OpenDispute(reason string, now time.Time) error {
	if err := r.apply(ActionOpenDispute, TransitionInput{Now: now, Reason: reason}); err != nil {
		return err
	}
	r.DisputeReason = trimmed(reason)
	r.Record(DisputeOpened{RentalID: r.ID, Reason: r.DisputeReason, At: r.UpdatedAt})
	return nil
}

func (r *Rental) ResolveDispute(resolution string, now time.Time) error {
	if err := r.apply(ActionResolveDispute, TransitionInput{Now: now}); err != nil {
		return err
	}
	r.Record(DisputeResolved{RentalID: r.ID, Resolution: resolution, At: r.UpdatedAt})
	return nil
}

func (r *Rental) Cancel(by Party, reason string, now time.Time) error {
	var action Action
	switch by {
	case PartyRenter:
		action = ActionCancelByRenter
	case PartyOwner:
		action = ActionCancelByOwner
	default:
		return errs.Mark(errs.Newf("rental: unknown party %q", by), errs.ErrValidation)
	}
	if err := r.apply(action, TransitionInput{Now: now, Reason: reason}); err != nil {
		return err
	}
	r.CancelledBy = by
	r.CancellationReason = trimmed(reason)
	r.Record(RentalCancelled{RentalID: r.ID, By: by, Reason: r.CancellationReason, At: r.UpdatedAt})
	return nil
}

func (r *Rental) Expire(now time.Time) error {
	if err := r.apply(ActionExpire, TransitionInput{Now: now}); err != nil {
		return err
	}
	r.Record(RentalExpired{RentalID: r.ID, At: r.UpdatedAt})
	return nil
}

// RecordRefund adds a refund payout. The payment becomes refunded once the
// refunded total reaches the amount paid.
func (r *Rental) RecordRefund(amount money.Money, now time.Time) error {
	if amount.Amount <= 0 {
		return ErrInvalidAmount
	}
	refunded := amount
	if r.RefundedAmount.Currency != "" {
		var err error
		refunded, err = r.RefundedAmount.Add(amount)
		if err != nil {
			return errs.Mark(err, errs.ErrValidation)
		}
	}
	if r.FinalAmountPaid.Less(refunded) {
		return ErrRefundExceedsPaid
	}
	full := refunded.Amount == r.FinalAmountPaid.Amount
	if err := r.apply(ActionRecordRefund, TransitionInput{Now: now, FullyRefunded: full}); err != nil {
		return err
	}
	r.RefundedAmount = refunded
	r.Record(RefundRecorded{RentalID: r.ID, Amount: amount, Refunded: refunded, At: r.UpdatedAt})
	return nil
}

// Holds reports whether the rental occupies stock during its period.
func (r *Rental) Holds() bool {
	return r.Status.HoldsInventory()
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
