package payment

import (
	"context"
	"errors"
	"time"

	"rentalcore/internal/pkg/errs"
)

var ErrReportNotFound = errs.Mark(errors.New("payment: reconciliation report not found"), errs.ErrNotFound)

type ReportID string

// Report keeps a reconciliation verdict so a reviewer can see what disagreed.
type Report struct {
	ID          ReportID
	RentalID    string
	Slip        SlipRecord
	Payout      PayoutMethod
	Expectation Expectation
	Result      Result
	// Failure says why an unverified attempt could not compare the slip.
	Failure   string
	CreatedAt time.Time
}

func NewReport(id ReportID, rentalID string, slip SlipRecord, payout PayoutMethod, want Expectation, now time.Time) *Report {
	return &Report{
		ID:          id,
		RentalID:    rentalID,
		Slip:        slip,
		Payout:      payout,
		Expectation: want,
		Result:      Reconcile(slip, want, payout),
		CreatedAt:   now.UTC(),
	}
}

// NewUnverifiedReport records an attempt that stopped before comparing, so
// the reviewer of a pending payment can see what went wrong.
func NewUnverifiedReport(id ReportID, rentalID string, slip SlipRecord, want Expectation, failure string, now time.Time) *Report {
	return &Report{
		ID:          id,
		RentalID:    rentalID,
		Slip:        slip,
		Expectation: want,
		Result:      Result{Verdict: VerdictUnverified},
		Failure:     failure,
		CreatedAt:   now.UTC(),
	}
}

type ReportRepository interface {
	Save(ctx context.Context, report *Report) error
	LatestForRental(ctx context.Context, rentalID string) (*Report, error)
}
