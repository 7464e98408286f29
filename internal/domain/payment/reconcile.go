package payment

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

var (
	ErrNoPayoutMethod = errs.Mark(errors.New("payment: owner has no payout method"), errs.ErrNotFound)
	ErrInvalidSlip    = errs.Mark(errors.New("payment: slip record incomplete"), errs.ErrValidation)
)

// Tolerances tuned against real bank-slip noise.
const (
	AmountToleranceUnits = 5
	DateGrace            = 48 * time.Hour
)

// PayoutMethod is an owner's bank account or PromptPay identity. BankName is nil for PromptPay.
type PayoutMethod struct {
	AccountName   string  `json:"account_name" bson:"account_name"`
	AccountNumber string  `json:"account_number" bson:"account_number"`
	BankName      *string `json:"bank_name,omitempty" bson:"bank_name,omitempty"`
	IsPrimary     bool    `json:"is_primary" bson:"is_primary"`
}

// PrimaryMethod returns the method marked primary, else the first registered one.
func PrimaryMethod(methods []PayoutMethod) (PayoutMethod, error) {
	if len(methods) == 0 {
		return PayoutMethod{}, ErrNoPayoutMethod
	}
	for _, m := range methods {
		if m.IsPrimary {
			return m, nil
		}
	}
	return methods[0], nil
}

// SlipRecord is the parsed content of a bank transfer slip. It lives only for one verification attempt.
type SlipRecord struct {
	AccountName   string      `json:"account_name"`
	AccountNumber string      `json:"account_number"`
	BankName      string      `json:"bank_name"`
	Amount        money.Money `json:"amount"`
	TransferDate  time.Time   `json:"transfer_date"`
}

func (s SlipRecord) Validate() error {
	if s.TransferDate.IsZero() || s.Amount.Currency == "" {
		return ErrInvalidSlip
	}
	return nil
}

// Expectation is what a slip is compared against: the amount owed and the
// window in which the transfer may have happened.
type Expectation struct {
	AmountDue   money.Money
	WindowStart time.Time
	WindowEnd   time.Time
}

// NewExpectation applies the grace period around the rental timestamps.
func NewExpectation(amountDue money.Money, createdAt, anchor time.Time) Expectation {
	return Expectation{
		AmountDue:   amountDue,
		WindowStart: createdAt.Add(-DateGrace),
		WindowEnd:   anchor.Add(DateGrace),
	}
}

type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictFlagged  Verdict = "flagged"
	// VerdictUnverified means the slip could not be compared at all.
	VerdictUnverified Verdict = "unverified"
)

type Field string

const (
	FieldAccountNumber Field = "account_number"
	FieldBankName      Field = "bank_name"
	FieldAccountName   Field = "account_name"
	FieldAmount        Field = "amount"
	FieldTransferDate  Field = "transfer_date"
)

type Result struct {
	AccountMatch bool    `json:"account_match" bson:"account_match"`
	AmountMatch  bool    `json:"amount_match" bson:"amount_match"`
	DateMatch    bool    `json:"date_match" bson:"date_match"`
	Verdict      Verdict `json:"verdict" bson:"verdict"`
	Mismatches   []Field `json:"mismatches,omitempty" bson:"mismatches,omitempty"`
}

func (r Result) Accepted() bool {
	return r.Verdict == VerdictAccepted
}

// Reconcile compares a slip with the expected payment and the owner's payout method.
// The three sub-matches are computed independently.
func Reconcile(slip SlipRecord, want Expectation, payout PayoutMethod) Result {
	var mismatches []Field

	if slip.AccountNumber != payout.AccountNumber {
		mismatches = append(mismatches, FieldAccountNumber)
	}
	if strings.TrimSpace(slip.BankName) != strings.TrimSpace(deref(payout.BankName)) {
		mismatches = append(mismatches, FieldBankName)
	}
	if stripSpaces(slip.AccountName) != stripSpaces(payout.AccountName) {
		mismatches = append(mismatches, FieldAccountName)
	}
	accountMatch := len(mismatches) == 0

	amountMatch := amountWithinTolerance(slip.Amount, want.AmountDue)
	if !amountMatch {
		mismatches = append(mismatches, FieldAmount)
	}

	dateMatch := !slip.TransferDate.Before(want.WindowStart) && !slip.TransferDate.After(want.WindowEnd)
	if !dateMatch {
		mismatches = append(mismatches, FieldTransferDate)
	}

	verdict := VerdictFlagged
	if accountMatch && amountMatch && dateMatch {
		verdict = VerdictAccepted
	}
	return Result{
		AccountMatch: accountMatch,
		AmountMatch:  amountMatch,
		DateMatch:    dateMatch,
		Verdict:      verdict,
		Mismatches:   mismatches,
	}
}

func amountWithinTolerance(got, want money.Money) bool {
	if got.Currency != want.Currency {
		return false
	}
	diff := got.Amount - want.Amount
	if diff < 0 {
		diff = -diff
	}
	return diff < AmountToleranceUnits*money.MinorPerUnit
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
