package memory

import (
	"context"

	"rentalcore/internal/app/uow"
	domainpayment "rentalcore/internal/domain/payment"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/pkg/errs"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	RentalsRepo domainrental.Repository
	ReportsRepo domainpayment.ReportRepository
}

var ErrFactoryMisconfigured = errs.New("memory: unit of work factory misconfigured")

// Begin starts a lightweight boundary. No isolation is provided; optimistic
// versions on Save still catch lost updates.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.RentalsRepo == nil || f.ReportsRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{rentals: f.RentalsRepo, reports: f.ReportsRepo}, nil
}

type Unit struct {
	rentals domainrental.Repository
	reports domainpayment.ReportRepository
}

func (u *Unit) Rentals() domainrental.Repository {
	return u.rentals
}

func (u *Unit) Reports() domainpayment.ReportRepository {
	return u.reports
}

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}

var _ uow.UoWFactory = Factory{}
