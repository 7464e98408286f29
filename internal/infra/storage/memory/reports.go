package memory

import (
	"context"
	"sync"

	domainpayment "rentalcore/internal/domain/payment"
)

// ReportRepository keeps every reconciliation report per rental in insertion order.
type ReportRepository struct {
	mu       sync.RWMutex
	byRental map[string][]domainpayment.Report
}

func NewReportRepository() *ReportRepository {
	return &ReportRepository{byRental: make(map[string][]domainpayment.Report)}
}

func (r *ReportRepository) Save(ctx context.Context, report *domainpayment.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *report
	cp.Result.Mismatches = append([]domainpayment.Field(nil), report.Result.Mismatches...)
	r.byRental[report.RentalID] = append(r.byRental[report.RentalID], cp)
	return nil
}

func (r *ReportRepository) LatestForRental(ctx context.Context, rentalID string) (*domainpayment.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byRental[rentalID]
	if len(list) == 0 {
		return nil, domainpayment.ErrReportNotFound
	}
	latest := list[len(list)-1]
	return &latest, nil
}

var _ domainpayment.ReportRepository = (*ReportRepository)(nil)
