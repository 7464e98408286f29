package rental

import (
	"time"

	"rentalcore/internal/domain/shared/money"
)

const EventPaymentProofSubmitted = "rental.payment_proof_submitted"

type RentalRequested struct {
	RentalID  RentalID    `json:"rental_id"`
	ProductID string      `json:"product_id"`
	RenterID  string      `json:"renter_id"`
	OwnerID   string      `json:"owner_id"`
	Start     time.Time   `json:"start"`
	End       time.Time   `json:"end"`
	Total     money.Money `json:"total"`
	At        time.Time   `json:"at"`
}

func (e RentalRequested) EventName() string     { return "rental.requested" }
func (e RentalRequested) AggregateID() string   { return string(e.RentalID) }
func (e RentalRequested) OccurredAt() time.Time { return e.At }

type RentalApproved struct {
	RentalID RentalID  `json:"rental_id"`
	At       time.Time `json:"at"`
}

func (e RentalApproved) EventName() string     { return "rental.approved" }
func (e RentalApproved) AggregateID() string   { return string(e.RentalID) }
func (e RentalApproved) OccurredAt() time.Time { return e.At }

type RentalRejected struct {
	RentalID RentalID  `json:"rental_id"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

func (e RentalRejected) EventName() string     { return "rental.rejected" }
func (e RentalRejected) AggregateID() string   { return string(e.RentalID) }
func (e RentalRejected) OccurredAt() time.Time { return e.At }

// PaymentProofSubmitted triggers automatic slip reconciliation.
type PaymentProofSubmitted struct {
	RentalID  RentalID    `json:"rental_id"`
	OwnerID   string      `json:"owner_id"`
	ProofURL  string      `json:"proof_url"`
	Claimed   money.Money `json:"claimed"`
	AmountDue money.Money `json:"amount_due"`
	At        time.Time   `json:"at"`
}

func (e PaymentProofSubmitted) EventName() string     { return EventPaymentProofSubmitted }
func (e PaymentProofSubmitted) AggregateID() string   { return string(e.RentalID) }
func (e PaymentProofSubmitted) OccurredAt() time.Time { return e.At }

type PaymentAccepted struct {
	RentalID RentalID    `json:"rental_id"`
	Amount   money.Money `json:"amount"`
	Note     string      `json:"note,omitempty"`
	At       time.Time   `json:"at"`
}

func (e PaymentAccepted) EventName() string     { return "rental.payment_accepted" }
func (e PaymentAccepted) AggregateID() string   { return string(e.RentalID) }
func (e PaymentAccepted) OccurredAt() time.Time { return e.At }

type PaymentRejected struct {
	RentalID RentalID  `json:"rental_id"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

func (e PaymentRejected) EventName() string     { return "rental.payment_rejected" }
func (e PaymentRejected) AggregateID() string   { return string(e.RentalID) }
func (e PaymentRejected) OccurredAt() time.Time { return e.At }

type RentalActivated struct {
	RentalID RentalID  `json:"rental_id"`
	At       time.Time `json:"at"`
}

func (e RentalActivated) EventName() string     { return "rental.activated" }
func (e RentalActivated) AggregateID() string   { return string(e.RentalID) }
func (e RentalActivated) OccurredAt() time.Time { return e.At }

type ReturnInitiated struct {
	RentalID RentalID  `json:"rental_id"`
	Late     bool      `json:"late"`
	At       time.Time `json:"at"`
}

func (e ReturnInitiated) EventName() string     { return "rental.return_initiated" }
func (e ReturnInitiated) AggregateID() string   { return string(e.RentalID) }
func (e ReturnInitiated) OccurredAt() time.Time { return e.At }

type ReturnConfirmed struct {
	RentalID  RentalID        `json:"rental_id"`
	Condition ConditionStatus `json:"condition"`
	LateFee   money.Money     `json:"late_fee"`
	Disputed  bool            `json:"disputed"`
	At        time.Time       `json:"at"`
}

func (e ReturnConfirmed) EventName() string     { return "rental.return_confirmed" }
func (e ReturnConfirmed) AggregateID() string   { return string(e.RentalID) }
func (e ReturnConfirmed) OccurredAt() time.Time { return e.At }

type DisputeOpened struct {
	RentalID RentalID  `json:"rental_id"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

func (e DisputeOpened) EventName() string     { return "rental.dispute_opened" }
func (e DisputeOpened) AggregateID() string   { return string(e.RentalID) }
func (e DisputeOpened) OccurredAt() time.Time { return e.At }

type DisputeResolved struct {
	RentalID   RentalID  `json:"rental_id"`
	Resolution string    `json:"resolution"`
	At         time.Time `json:"at"`
}

func (e DisputeResolved) EventName() string     { return "rental.dispute_resolved" }
func (e DisputeResolved) AggregateID() string   { return string(e.RentalID) }
func (e DisputeResolved) OccurredAt() time.Time { return e.At }

type RentalCancelled struct {
	RentalID RentalID  `json:"rental_id"`
	By       Party     `json:"by"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

func (e RentalCancelled) EventName() string     { return "rental.cancelled" }
func (e RentalCancelled) AggregateID() string   { return string(e.RentalID) }
func (e RentalCancelled) OccurredAt() time.Time { return e.At }

type RentalExpired struct {
	RentalID RentalID  `json:"rental_id"`
	At       time.Time `json:"at"`
}

func (e RentalExpired) EventName() string     { return "rental.expired" }
func (e RentalExpired) AggregateID() string   { return string(e.RentalID) }
func (e RentalExpired) OccurredAt() time.Time { return e.At }

type RefundRecorded struct {
	RentalID RentalID    `json:"rental_id"`
	Amount   money.Money `json:"amount"`
	Refunded money.Money `json:"refunded"`
	At       time.Time   `json:"at"`
}

func (e RefundRecorded) EventName() string     { return "rental.refund_recorded" }
func (e RefundRecorded) AggregateID() string   { return string(e.RentalID) }
func (e RefundRecorded) OccurredAt() time.Time { return e.At }
