package dto

import (
	"time"

	domainpayment "rentalcore/internal/domain/payment"
)

type PayoutMethod struct {
	AccountName   string  `json:"account_name"`
	AccountNumber string  `json:"account_number"`
	BankName      *string `json:"bank_name,omitempty"`
	IsPrimary     bool    `json:"is_primary"`
}

type PayoutMethods struct {
	OwnerID string         `json:"owner_id"`
	Items   []PayoutMethod `json:"items"`
}

type Slip struct {
	AccountName   string    `json:"account_name"`
	AccountNumber string    `json:"account_number"`
	BankName      string    `json:"bank_name"`
	Amount        MoneyDTO  `json:"amount"`
	TransferDate  time.Time `json:"transfer_date"`
}

type Reconciliation struct {
	ID           string    `json:"id"`
	RentalID     string    `json:"rental_id"`
	AccountMatch bool      `json:"account_match"`
	AmountMatch  bool      `json:"amount_match"`
	DateMatch    bool      `json:"date_match"`
	Verdict      string    `json:"verdict"`
	Mismatches   []string  `json:"mismatches,omitempty"`
	Failure      string    `json:"failure,omitempty"`
	Slip         Slip      `json:"slip"`
	AmountDue    MoneyDTO  `json:"amount_due"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	CreatedAt    time.Time `json:"created_at"`
}

func MapPayoutMethods(ownerID string, methods []domainpayment.PayoutMethod) PayoutMethods {
	out := PayoutMethods{OwnerID: ownerID, Items: make([]PayoutMethod, 0, len(methods))}
	for _, m := range methods {
		out.Items = append(out.Items, PayoutMethod{
			AccountName:   m.AccountName,
			AccountNumber: m.AccountNumber,
			BankName:      m.BankName,
			IsPrimary:     m.IsPrimary,
		})
	}
	return out
}

func MapReconciliation(rep *domainpayment.Report) Reconciliation {
	if rep == nil {
		return Reconciliation{}
	}
	out := Reconciliation{
		ID:           string(rep.ID),
		RentalID:     rep.RentalID,
		AccountMatch: rep.Result.AccountMatch,
		AmountMatch:  rep.Result.AmountMatch,
		DateMatch:    rep.Result.DateMatch,
		Verdict:      string(rep.Result.Verdict),
		Failure:      rep.Failure,
		Slip: Slip{
			AccountName:   rep.Slip.AccountName,
			AccountNumber: rep.Slip.AccountNumber,
			BankName:      rep.Slip.BankName,
			Amount:        MapMoney(rep.Slip.Amount),
			TransferDate:  rep.Slip.TransferDate,
		},
		AmountDue:   MapMoney(rep.Expectation.AmountDue),
		WindowStart: rep.Expectation.WindowStart,
		WindowEnd:   rep.Expectation.WindowEnd,
		CreatedAt:   rep.CreatedAt,
	}
	for _, f := range rep.Result.Mismatches {
		out.Mismatches = append(out.Mismatches, string(f))
	}
	return out
}
