package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainpayment "rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

// ReportRepository appends reconciliation reports; the newest per rental wins.
type ReportRepository struct {
	col *mongo.Collection
}

func NewReportRepository(db *mongo.Database) *ReportRepository {
	col := db.Collection("payment_reconciliations")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "rental_id", Value: 1}, {Key: "created_at", Value: -1}}})
	return &ReportRepository{col: col}
}

func (r *ReportRepository) Save(ctx context.Context, report *domainpayment.Report) error {
	if _, err := r.col.InsertOne(ctx, newReportDocument(report)); err != nil {
		return errs.Wrapf(err, "mongo: save reconciliation report for %s", report.RentalID)
	}
	return nil
}

func (r *ReportRepository) LatestForRental(ctx context.Context, rentalID string) (*domainpayment.Report, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}})
	var doc reportDocument
	if err := r.col.FindOne(ctx, bson.M{"rental_id": rentalID}, opts).Decode(&doc); err != nil {
		if errs.Is(err, mongo.ErrNoDocuments) {
			return nil, domainpayment.ErrReportNotFound
		}
		return nil, errs.Wrapf(err, "mongo: load reconciliation report for %s", rentalID)
	}
	return doc.toReport(), nil
}

type slipDocument struct {
	AccountName   string      `bson:"account_name"`
	AccountNumber string      `bson:"account_number"`
	BankName      string      `bson:"bank_name"`
	Amount        money.Money `bson:"amount"`
	TransferDate  time.Time   `bson:"transfer_date"`
}

type expectationDocument struct {
	AmountDue   money.Money `bson:"amount_due"`
	WindowStart time.Time   `bson:"window_start"`
	WindowEnd   time.Time   `bson:"window_end"`
}

type reportDocument struct {
	ID          string                     `bson:"_id"`
	RentalID    string                     `bson:"rental_id"`
	Slip        slipDocument               `bson:"slip"`
	Payout      domainpayment.PayoutMethod `bson:"payout"`
	Expectation expectationDocument        `bson:"expectation"`
	Result      domainpayment.Result       `bson:"result"`
	Failure     string                     `bson:"failure,omitempty"`
	CreatedAt   time.Time                  `bson:"created_at"`
	Seq         int64                      `bson:"seq"`
}

func newReportDocument(r *domainpayment.Report) reportDocument {
	return reportDocument{
		ID:       string(r.ID),
		RentalID: r.RentalID,
		Slip: slipDocument{
			AccountName:   r.Slip.AccountName,
			AccountNumber: r.Slip.AccountNumber,
			BankName:      r.Slip.BankName,
			Amount:        r.Slip.Amount,
			TransferDate:  r.Slip.TransferDate,
		},
		Payout: r.Payout,
		Expectation: expectationDocument{
			AmountDue:   r.Expectation.AmountDue,
			WindowStart: r.Expectation.WindowStart,
			WindowEnd:   r.Expectation.WindowEnd,
		},
		Result:    r.Result,
		Failure:   r.Failure,
		CreatedAt: r.CreatedAt,
		Seq:       time.Now().UnixNano(),
	}
}

func (d reportDocument) toReport() *domainpayment.Report {
	return &domainpayment.Report{
		ID:       domainpayment.ReportID(d.ID),
		RentalID: d.RentalID,
		Slip: domainpayment.SlipRecord{
			AccountName:   d.Slip.AccountName,
			AccountNumber: d.Slip.AccountNumber,
			BankName:      d.Slip.BankName,
			Amount:        d.Slip.Amount,
			TransferDate:  d.Slip.TransferDate.UTC(),
		},
		Payout: d.Payout,
		Expectation: domainpayment.Expectation{
			AmountDue:   d.Expectation.AmountDue,
			WindowStart: d.Expectation.WindowStart.UTC(),
			WindowEnd:   d.Expectation.WindowEnd.UTC(),
		},
		Result:    d.Result,
		Failure:   d.Failure,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

var _ domainpayment.ReportRepository = (*ReportRepository)(nil)
