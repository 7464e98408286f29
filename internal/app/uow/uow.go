package uow

import (
	"context"

	domainpayment "rentalcore/internal/domain/payment"
	domainrental "rentalcore/internal/domain/rental"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Rentals() domainrental.Repository
	Reports() domainpayment.ReportRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
