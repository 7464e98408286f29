package rental

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/errs"
)

var (
	ErrInvalidTransition = errs.Mark(errors.New("rental: invalid transition"), errs.ErrInvalidTransition)
	ErrReasonRequired    = errs.Mark(errors.New("rental: reason required"), errs.ErrValidation)
	ErrInvalidCondition  = errs.Mark(errors.New("rental: invalid return condition"), errs.ErrValidation)
)

type Status string

const (
	StatusDraft                Status = "draft"
	StatusPendingOwnerApproval Status = "pending_owner_approval"
	StatusPendingPayment       Status = "pending_payment"
	StatusConfirmed            Status = "confirmed"
	StatusActive               Status = "active"
	StatusReturnPending        Status = "return_pending"
	StatusLateReturn           Status = "late_return"
	StatusCompleted            Status = "completed"
	StatusCancelledByRenter    Status = "cancelled_by_renter"
	StatusCancelledByOwner     Status = "cancelled_by_owner"
	StatusRejectedByOwner      Status = "rejected_by_owner"
	StatusDispute              Status = "dispute"
	StatusExpired              Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingOwnerApproval, StatusPendingPayment, StatusConfirmed,
		StatusActive, StatusReturnPending, StatusLateReturn, StatusCompleted,
		StatusCancelledByRenter, StatusCancelledByOwner, StatusRejectedByOwner,
		StatusDispute, StatusExpired:
		return true
	default:
		return false
	}
}

// Terminal states are kept for history and accept no lifecycle action except refunds.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelledByRenter, StatusCancelledByOwner, StatusRejectedByOwner, StatusExpired:
		return true
	default:
		return false
	}
}

// HoldsInventory reports whether a rental in this state occupies product stock.
func (s Status) HoldsInventory() bool {
	return s != StatusDraft && !s.Terminal()
}

type PaymentStatus string

const (
	PaymentUnpaid              PaymentStatus = "unpaid"
	PaymentPendingVerification PaymentStatus = "pending_verification"
	PaymentPaid                PaymentStatus = "paid"
	PaymentFailed              PaymentStatus = "failed"
	PaymentRefunded            PaymentStatus = "refunded"
	PaymentPartiallyRefunded   PaymentStatus = "partially_refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentPendingVerification, PaymentPaid, PaymentFailed, PaymentRefunded, PaymentPartiallyRefunded:
		return true
	default:
		return false
	}
}

type ConditionStatus string

const (
	ConditionAsRented  ConditionStatus = "as_rented"
	ConditionMinorWear ConditionStatus = "minor_wear"
	ConditionDamaged   ConditionStatus = "damaged"
	ConditionLost      ConditionStatus = "lost"
)

func (c ConditionStatus) Valid() bool {
	switch c {
	case ConditionAsRented, ConditionMinorWear, ConditionDamaged, ConditionLost:
		return true
	default:
		return false
	}
}

// State is the status pair owned by the lifecycle.
type State struct {
	Rental  Status
	Payment PaymentStatus
}

func (s State) String() string {
	return fmt.Sprintf("%s/%s", s.Rental, s.Payment)
}

type Action string

const (
	ActionSubmit             Action = "submit"
	ActionApprove            Action = "approve"
	ActionReject             Action = "reject"
	ActionSubmitPaymentProof Action = "submit_payment_proof"
	ActionAcceptPayment      Action = "accept_payment"
	ActionRejectPayment      Action = "reject_payment"
	ActionActivate           Action = "activate"
	ActionInitiateReturn     Action = "initiate_return"
	ActionConfirmReturn      Action = "confirm_return"
	ActionOpenDispute        Action = "open_dispute"
	ActionResolveDispute     Action = "resolve_dispute"
	ActionCancelByRenter     Action = "cancel_by_renter"
	ActionCancelByOwner      Action = "cancel_by_owner"
	ActionExpire             Action = "expire"
	ActionRecordRefund       Action = "record_refund"
)

// TransitionInput carries the facts some transitions branch on.
type TransitionInput struct {
	Now           time.Time
	EndDate       time.Time
	Reason        string
	InitiateClaim bool
	Condition     ConditionStatus
	FullyRefunded bool
}

// TransitionError names the rejected move.
type TransitionError struct {
	From   State
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("rental: %s not allowed from %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

type rule struct {
	from    []Status
	payment []PaymentStatus
	next    func(s State, in TransitionInput) (State, error)
}

var cancellable = []Status{StatusPendingOwnerApproval, StatusPendingPayment, StatusConfirmed}

var table = map[Action]rule{
	ActionSubmit: {
		from: []Status{StatusDraft},
		next: to(StatusPendingOwnerApproval),
	},
	ActionApprove: {
		from: []Status{StatusPendingOwnerApproval},
		next: to(StatusPendingPayment),
	},
	ActionReject: {
		from: []Status{StatusPendingOwnerApproval},
		next: requireReason(to(StatusRejectedByOwner)),
	},
	ActionSubmitPaymentProof: {
		from:    []Status{StatusPendingPayment},
		payment: []PaymentStatus{PaymentUnpaid, PaymentFailed},
		next:    pay(PaymentPendingVerification),
	},
	ActionAcceptPayment: {
		from:    []Status{StatusPendingPayment},
		payment: []PaymentStatus{PaymentPendingVerification},
		next: func(State, TransitionInput) (State, error) {
			return State{Rental: StatusConfirmed, Payment: PaymentPaid}, nil
		},
	},
	ActionRejectPayment: {
		from:    []Status{StatusPendingPayment},
		payment: []PaymentStatus{PaymentPendingVerification},
		next:    requireReason(pay(PaymentUnpaid)),
	},
	ActionActivate: {
		from:    []Status{StatusConfirmed},
		payment: []PaymentStatus{PaymentPaid},
		next:    to(StatusActive),
	},
	ActionInitiateReturn: {
		from: []Status{StatusConfirmed, StatusActive},
		next: func(s State, in TransitionInput) (State, error) {
			if daterange.Day(in.Now).After(daterange.Day(in.EndDate)) {
				return State{Rental: StatusLateReturn, Payment: s.Payment}, nil
			}
			return State{Rental: StatusReturnPending, Payment: s.Payment}, nil
		},
	},
	ActionConfirmReturn: {
		from: []Status{StatusReturnPending, StatusLateReturn},
		next: func(s State, in TransitionInput) (State, error) {
			if !in.Condition.Valid() {
				return State{}, ErrInvalidCondition
			}
			if in.InitiateClaim && in.Condition != ConditionAsRented {
				return State{Rental: StatusDispute, Payment: s.Payment}, nil
			}
			return State{Rental: StatusCompleted, Payment: s.Payment}, nil
		},
	},
	ActionOpenDispute: {
		from: []Status{StatusActive, StatusReturnPending, StatusLateReturn},
		next: requireReason(to(StatusDispute)),
	},
	ActionResolveDispute: {
		from: []Status{StatusDispute},
		next: to(StatusCompleted),
	},
	ActionCancelByRenter: {
		from: cancellable,
		next: cancel(StatusCancelledByRenter),
	},
	ActionCancelByOwner: {
		from: cancellable,
		next: cancel(StatusCancelledByOwner),
	},
	ActionExpire: {
		from:    []Status{StatusDraft, StatusPendingOwnerApproval, StatusPendingPayment},
		payment: []PaymentStatus{PaymentUnpaid, PaymentFailed},
		next:    to(StatusExpired),
	},
	ActionRecordRefund: {
		from:    []Status{StatusCancelledByRenter, StatusCancelledByOwner, StatusCompleted, StatusDispute},
		payment: []PaymentStatus{PaymentPaid, PaymentPartiallyRefunded},
		next: func(s State, in TransitionInput) (State, error) {
			if in.FullyRefunded {
				return State{Rental: s.Rental, Payment: PaymentRefunded}, nil
			}
			return State{Rental: s.Rental, Payment: PaymentPartiallyRefunded}, nil
		},
	},
}

// Transition is the single authority on lifecycle moves. Unknown actions and
// disallowed sources fail with ErrInvalidTransition; nothing is a silent no-op.
func Transition(s State, a Action, in TransitionInput) (State, error) {
	r, ok := table[a]
	if !ok || !r.allows(s) {
		return State{}, &TransitionError{From: s, Action: a}
	}
	return r.next(s, in)
}

// CanTransition reports whether an action is legal from s, for UI gating.
func CanTransition(s State, a Action) bool {
	r, ok := table[a]
	return ok && r.allows(s)
}

// AllowedActions lists the legal actions from s in a stable order.
func AllowedActions(s State) []Action {
	var out []Action
	for a, r := range table {
		if r.allows(s) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r rule) allows(s State) bool {
	if !containsStatus(r.from, s.Rental) {
		return false
	}
	if r.payment == nil {
		return true
	}
	for _, p := range r.payment {
		if p == s.Payment {
			return true
		}
	}
	return false
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func to(target Status) func(State, TransitionInput) (State, error) {
	return func(s State, _ TransitionInput) (State, error) {
		return State{Rental: target, Payment: s.Payment}, nil
	}
}

func pay(target PaymentStatus) func(State, TransitionInput) (State, error) {
	return func(s State, _ TransitionInput) (State, error) {
		return State{Rental: s.Rental, Payment: target}, nil
	}
}

func cancel(target Status) func(State, TransitionInput) (State, error) {
	return func(s State, _ TransitionInput) (State, error) {
		payment := s.Payment
		if payment == PaymentPendingVerification {
			payment = PaymentFailed
		}
		return State{Rental: target, Payment: payment}, nil
	}
}

func requireReason(next func(State, TransitionInput) (State, error)) func(State, TransitionInput) (State, error) {
	return func(s State, in TransitionInput) (State, error) {
		if trimmed(in.Reason) == "" {
			return State{}, ErrReasonRequired
		}
		return next(s, in)
	}
}
