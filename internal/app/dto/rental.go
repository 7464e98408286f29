package dto

import (
	"time"

	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/domain/shared/daterange"
)

type Rental struct {
	ID                    string     `json:"id"`
	RentalUID             string     `json:"rental_uid"`
	RenterID              string     `json:"renter_id"`
	OwnerID               string     `json:"owner_id"`
	ProductID             string     `json:"product_id"`
	StartDate             string     `json:"start_date"`
	EndDate               string     `json:"end_date"`
	PickupMethod          string     `json:"pickup_method"`
	Tier                  string     `json:"tier"`
	Units                 int        `json:"units"`
	RentalStatus          string     `json:"rental_status"`
	PaymentStatus         string     `json:"payment_status"`
	Subtotal              MoneyDTO   `json:"calculated_subtotal_rental_fee"`
	SecurityDeposit       MoneyDTO   `json:"security_deposit_at_booking"`
	DeliveryFee           MoneyDTO   `json:"delivery_fee"`
	PlatformFeeRenter     MoneyDTO   `json:"platform_fee_renter"`
	LateFee               *MoneyDTO  `json:"late_fee,omitempty"`
	TotalAmountDue        MoneyDTO   `json:"total_amount_due"`
	FinalAmountPaid       *MoneyDTO  `json:"final_amount_paid,omitempty"`
	RefundedAmount        *MoneyDTO  `json:"refunded_amount,omitempty"`
	PaymentProofURL       string     `json:"payment_proof_url,omitempty"`
	PaymentNote           string     `json:"payment_note,omitempty"`
	RejectionReason       string     `json:"rejection_reason,omitempty"`
	CancellationReason    string     `json:"cancellation_reason,omitempty"`
	ReturnConditionStatus string     `json:"return_condition_status,omitempty"`
	ReturnImageURLs       []string   `json:"return_image_urls,omitempty"`
	DisputeReason         string     `json:"dispute_reason,omitempty"`
	AllowedActions        []string   `json:"allowed_actions"`
	ProofSubmittedAt      *time.Time `json:"proof_submitted_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Settled reports whether the rental no longer waits on a payment decision.
func (r Rental) Settled() bool {
	return r.PaymentStatus != string(domainrental.PaymentPendingVerification)
}

func MapRental(r *domainrental.Rental) Rental {
	if r == nil {
		return Rental{}
	}
	out := Rental{
		ID:                    string(r.ID),
		RentalUID:             r.UID,
		RenterID:              r.RenterID,
		OwnerID:               r.OwnerID,
		ProductID:             r.ProductID,
		StartDate:             daterange.FormatDay(r.Period.Start),
		EndDate:               daterange.FormatDay(r.Period.End),
		PickupMethod:          string(r.PickupMethod),
		Tier:                  string(r.Tier),
		Units:                 r.Units,
		RentalStatus:          string(r.Status),
		PaymentStatus:         string(r.PaymentStatus),
		Subtotal:              MapMoney(r.Subtotal),
		SecurityDeposit:       MapMoney(r.SecurityDeposit),
		DeliveryFee:           MapMoney(r.DeliveryFee),
		PlatformFeeRenter:     MapMoney(r.PlatformFeeRenter),
		LateFee:               MapMoneyPtr(r.LateFee, !r.LateFee.IsZero()),
		TotalAmountDue:        MapMoney(r.TotalAmountDue),
		FinalAmountPaid:       MapMoneyPtr(r.FinalAmountPaid, !r.FinalAmountPaid.IsZero()),
		RefundedAmount:        MapMoneyPtr(r.RefundedAmount, !r.RefundedAmount.IsZero()),
		PaymentProofURL:       r.PaymentProofURL,
		PaymentNote:           r.PaymentNote,
		RejectionReason:       r.RejectionReason,
		CancellationReason:    r.CancellationReason,
		ReturnConditionStatus: string(r.ReturnConditionStatus),
		ReturnImageURLs:       r.ReturnImageURLs,
		DisputeReason:         r.DisputeReason,
		AllowedActions:        []string{},
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	for _, a := range r.AllowedActions() {
		out.AllowedActions = append(out.AllowedActions, string(a))
	}
	if !r.ProofSubmittedAt.IsZero() {
		at := r.ProofSubmittedAt
		out.ProofSubmittedAt = &at
	}
	return out
}
