package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"rentalcore/internal/app/uow"
	domainpayment "rentalcore/internal/domain/payment"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/pkg/errs"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Transactions need a replica set.
type Factory struct {
	DB *mongo.Database

	RentalsRepo domainrental.Repository
	ReportsRepo domainpayment.ReportRepository
}

var ErrUnitOfWorkNotConfigured = errs.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, errs.Mark(errs.Wrap(err, "mongo: start session"), errs.ErrUpstreamUnavailable)
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if opts.ReadOnly {
		txnOpts = options.Transaction().SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, errs.Wrap(err, "mongo: start transaction")
	}
	return &Unit{
		session: session,
		rentals: f.RentalsRepo,
		reports: f.ReportsRepo,
	}, nil
}

type Unit struct {
	session mongo.Session

	rentals domainrental.Repository
	reports domainpayment.ReportRepository
}

func (u *Unit) Rentals() domainrental.Repository {
	return u.rentals
}

func (u *Unit) Reports() domainpayment.ReportRepository {
	return u.reports
}

// Commit maps write conflicts to ErrConcurrentUpdate so callers may retry.
func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		var cmdErr mongo.CommandError
		if errs.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
			return errs.Mark(errs.Wrap(err, "mongo: commit"), errs.ErrConcurrentUpdate)
		}
		return errs.Wrap(err, "mongo: commit")
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
