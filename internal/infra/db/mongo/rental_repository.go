package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentalcore/internal/domain/fees"
	domainpricing "rentalcore/internal/domain/pricing"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

type RentalRepository struct {
	col *mongo.Collection
}

func NewRentalRepository(db *mongo.Database) *RentalRepository {
	col := db.Collection("agg_rental")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "status", Value: 1}, {Key: "period.start", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "period.start", Value: 1}}},
		{Keys: bson.D{{Key: "uid", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return &RentalRepository{col: col}
}

func (r *RentalRepository) ByID(ctx context.Context, id domainrental.RentalID) (*domainrental.Rental, error) {
	var doc rentalDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errs.Is(err, mongo.ErrNoDocuments) {
			return nil, domainrental.ErrRentalNotFound
		}
		return nil, errs.Wrapf(err, "mongo: load rental %s", id)
	}
	return doc.toAggregate(), nil
}

// Save writes the rental when the stored version still matches and bumps it.
// A first save inserts; a stale version surfaces as ErrVersionConflict.
func (r *RentalRepository) Save(ctx context.Context, rental *domainrental.Rental) error {
	doc := newRentalDocument(rental)
	doc.Version = rental.Version + 1
	if rental.Version == 0 {
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domainrental.ErrVersionConflict
			}
			return errs.Wrapf(err, "mongo: insert rental %s", rental.ID)
		}
		rental.Version = doc.Version
		return nil
	}
	filter := bson.M{"_id": doc.ID, "version": rental.Version}
	res, err := r.col.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return errs.Wrapf(err, "mongo: save rental %s", rental.ID)
	}
	if res.MatchedCount == 0 {
		return domainrental.ErrVersionConflict
	}
	rental.Version = doc.Version
	return nil
}

func (r *RentalRepository) ListHolding(ctx context.Context, productID string, rng daterange.DateRange) ([]*domainrental.Rental, error) {
	filter := bson.M{
		"product_id":   productID,
		"status":       bson.M{"$in": holdingStatuses},
		"period.start": bson.M{"$lte": rng.End},
		"period.end":   bson.M{"$gte": rng.Start},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *RentalRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*domainrental.Rental, error) {
	filter := bson.M{
		"status":         bson.M{"$in": []string{string(domainrental.StatusDraft), string(domainrental.StatusPendingOwnerApproval), string(domainrental.StatusPendingPayment)}},
		"payment_status": bson.M{"$in": []string{string(domainrental.PaymentUnpaid), string(domainrental.PaymentFailed)}},
		"period.start":   bson.M{"$lt": daterange.Day(before)},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *RentalRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainrental.Rental, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.Wrap(err, "mongo: find rentals")
	}
	var docs []rentalDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.Wrap(err, "mongo: decode rentals")
	}
	out := make([]*domainrental.Rental, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

var holdingStatuses = func() []string {
	all := []domainrental.Status{
		domainrental.StatusDraft, domainrental.StatusPendingOwnerApproval, domainrental.StatusPendingPayment,
		domainrental.StatusConfirmed, domainrental.StatusActive, domainrental.StatusReturnPending,
		domainrental.StatusLateReturn, domainrental.StatusCompleted, domainrental.StatusCancelledByRenter,
		domainrental.StatusCancelledByOwner, domainrental.StatusRejectedByOwner, domainrental.StatusDispute,
		domainrental.StatusExpired,
	}
	var out []string
	for _, s := range all {
		if s.HoldsInventory() {
			out = append(out, string(s))
		}
	}
	return out
}()

type periodDocument struct {
	Start time.Time `bson:"start"`
	End   time.Time `bson:"end"`
}

type rentalDocument struct {
	ID                 string              `bson:"_id"`
	UID                string              `bson:"uid"`
	RenterID           string              `bson:"renter_id"`
	OwnerID            string              `bson:"owner_id"`
	ProductID          string              `bson:"product_id"`
	Period             periodDocument      `bson:"period"`
	PickupMethod       string              `bson:"pickup_method"`
	Tier               string              `bson:"tier"`
	Units              int                 `bson:"units"`
	Snapshot           domainpricing.Tiers `bson:"snapshot"`
	Status             string              `bson:"status"`
	PaymentStatus      string              `bson:"payment_status"`
	Subtotal           money.Money         `bson:"subtotal"`
	SecurityDeposit    money.Money         `bson:"security_deposit"`
	DeliveryFee        money.Money         `bson:"delivery_fee"`
	PlatformFeeRenter  money.Money         `bson:"platform_fee_renter"`
	LateFee            money.Money         `bson:"late_fee"`
	TotalAmountDue     money.Money         `bson:"total_amount_due"`
	FinalAmountPaid    money.Money         `bson:"final_amount_paid"`
	RefundedAmount     money.Money         `bson:"refunded_amount"`
	ClaimedAmount      money.Money         `bson:"claimed_amount"`
	PaymentProofURL    string              `bson:"payment_proof_url,omitempty"`
	ProofSubmittedAt   time.Time           `bson:"proof_submitted_at,omitempty"`
	PaymentNote        string              `bson:"payment_note,omitempty"`
	RejectionReason    string              `bson:"rejection_reason,omitempty"`
	CancellationReason string              `bson:"cancellation_reason,omitempty"`
	CancelledBy        string              `bson:"cancelled_by,omitempty"`
	ReturnCondition    string              `bson:"return_condition,omitempty"`
	ReturnNotes        string              `bson:"return_notes,omitempty"`
	ReturnImageURLs    []string            `bson:"return_image_urls,omitempty"`
	DisputeReason      string              `bson:"dispute_reason,omitempty"`
	CreatedAt          time.Time           `bson:"created_at"`
	UpdatedAt          time.Time           `bson:"updated_at"`
	Version            int64               `bson:"version"`
}

func newRentalDocument(r *domainrental.Rental) rentalDocument {
	return rentalDocument{
		ID:                 string(r.ID),
		UID:                r.UID,
		RenterID:           r.RenterID,
		OwnerID:            r.OwnerID,
		ProductID:          r.ProductID,
		Period:             periodDocument{Start: r.Period.Start, End: r.Period.End},
		PickupMethod:       string(r.PickupMethod),
		Tier:               string(r.Tier),
		Units:              r.Units,
		Snapshot:           r.Snapshot,
		Status:             string(r.Status),
		PaymentStatus:      string(r.PaymentStatus),
		Subtotal:           r.Subtotal,
		SecurityDeposit:    r.SecurityDeposit,
		DeliveryFee:        r.DeliveryFee,
		PlatformFeeRenter:  r.PlatformFeeRenter,
		LateFee:            r.LateFee,
		TotalAmountDue:     r.TotalAmountDue,
		FinalAmountPaid:    r.FinalAmountPaid,
		RefundedAmount:     r.RefundedAmount,
		ClaimedAmount:      r.ClaimedAmount,
		PaymentProofURL:    r.PaymentProofURL,
		ProofSubmittedAt:   r.ProofSubmittedAt,
		PaymentNote:        r.PaymentNote,
		RejectionReason:    r.RejectionReason,
		CancellationReason: r.CancellationReason,
		CancelledBy:        string(r.CancelledBy),
		ReturnCondition:    string(r.ReturnConditionStatus),
		ReturnNotes:        r.ReturnNotes,
		ReturnImageURLs:    r.ReturnImageURLs,
		DisputeReason:      r.DisputeReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Version:            r.Version,
	}
}

func (d rentalDocument) toAggregate() *domainrental.Rental {
	return &domainrental.Rental{
		ID:                    domainrental.RentalID(d.ID),
		UID:                   d.UID,
		RenterID:              d.RenterID,
		OwnerID:               d.OwnerID,
		ProductID:             d.ProductID,
		Period:                daterange.DateRange{Start: d.Period.Start.UTC(), End: d.Period.End.UTC()},
		PickupMethod:          fees.PickupMethod(d.PickupMethod),
		Tier:                  domainpricing.Tier(d.Tier),
		Units:                 d.Units,
		Snapshot:              d.Snapshot,
		Status:                domainrental.Status(d.Status),
		PaymentStatus:         domainrental.PaymentStatus(d.PaymentStatus),
		Subtotal:              d.Subtotal,
		SecurityDeposit:       d.SecurityDeposit,
		DeliveryFee:           d.DeliveryFee,
		PlatformFeeRenter:     d.PlatformFeeRenter,
		LateFee:               d.LateFee,
		TotalAmountDue:        d.TotalAmountDue,
		FinalAmountPaid:       d.FinalAmountPaid,
		RefundedAmount:        d.RefundedAmount,
		ClaimedAmount:         d.ClaimedAmount,
		PaymentProofURL:       d.PaymentProofURL,
		ProofSubmittedAt:      utc(d.ProofSubmittedAt),
		PaymentNote:           d.PaymentNote,
		RejectionReason:       d.RejectionReason,
		CancellationReason:    d.CancellationReason,
		CancelledBy:           domainrental.Party(d.CancelledBy),
		ReturnConditionStatus: domainrental.ConditionStatus(d.ReturnCondition),
		ReturnNotes:           d.ReturnNotes,
		ReturnImageURLs:       d.ReturnImageURLs,
		DisputeReason:         d.DisputeReason,
		CreatedAt:             d.CreatedAt.UTC(),
		UpdatedAt:             d.UpdatedAt.UTC(),
		Version:               d.Version,
	}
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}

var _ domainrental.Repository = (*RentalRepository)(nil)
