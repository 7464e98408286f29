package payments_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/app/apptest"
	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/handlers/payments"
	"rentalcore/internal/app/handlers/rentals"
	"rentalcore/internal/app/handlers/support"
	appoutbox "rentalcore/internal/app/outbox"
	"rentalcore/internal/app/queries"
	domainpayment "rentalcore/internal/domain/payment"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

var ctx = context.Background()

func reconcile(t *testing.T, f *apptest.Fixture, id string) *payments.ReconcileResult {
	t.Helper()
	res, err := commands.Dispatch[payments.ReconcilePaymentCommand, *payments.ReconcileResult](ctx, f.Commands,
		payments.ReconcilePaymentCommand{RentalID: id})
	require.NoError(t, err)
	return res
}

func rental(t *testing.T, f *apptest.Fixture, id string) dto.Rental {
	t.Helper()
	r, err := queries.Ask[rentals.GetRentalQuery, dto.Rental](ctx, f.Queries, rentals.GetRentalQuery{Actor: apptest.Admin, RentalID: id})
	require.NoError(t, err)
	return r
}

func proofEvent(t *testing.T, f *apptest.Fixture) appoutbox.EventRecord {
	t.Helper()
	for _, rec := range f.Outbox.Records() {
		if rec.Name == domainrental.EventPaymentProofSubmitted {
			return rec
		}
	}
	t.Fatal("no payment proof event recorded")
	return appoutbox.EventRecord{}
}

func due(r *dto.Rental) money.Money {
	return r.TotalAmountDue.Money()
}

func TestSubmitPaymentProof(t *testing.T) {
	f := apptest.New(t)
	r := f.Approved(t, apptest.Day(6, 5), apptest.Day(6, 7))

	out, err := commands.Dispatch[payments.SubmitPaymentProofCommand, *dto.Rental](ctx, f.Commands,
		payments.SubmitPaymentProofCommand{Actor: apptest.Renter, RentalID: r.ID, Slip: apptest.PNG(), Claimed: due(r)})
	require.NoError(t, err)

	assert.Equal(t, string(domainrental.PaymentPendingVerification), out.PaymentStatus)
	assert.Equal(t, string(domainrental.StatusPendingPayment), out.RentalStatus)
	assert.True(t, strings.HasPrefix(out.PaymentProofURL, "memory://slips/"+r.ID+"/"), out.PaymentProofURL)
	require.NotNil(t, out.ProofSubmittedAt)
	assert.Equal(t, apptest.Start, *out.ProofSubmittedAt)

	key := strings.TrimPrefix(out.PaymentProofURL, "memory://")
	obj, ok := f.Images.Object(key)
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)

	rec := proofEvent(t, f)
	assert.Equal(t, r.ID, rec.Aggregate)
}

func TestSubmitPaymentProofChecks(t *testing.T) {
	f := apptest.New(t)
	pending := f.Book(t, apptest.Day(6, 5), apptest.Day(6, 7))
	r := f.Approved(t, apptest.Day(6, 8), apptest.Day(6, 9))

	_, err := commands.Dispatch[payments.SubmitPaymentProofCommand, *dto.Rental](ctx, f.Commands,
		payments.SubmitPaymentProofCommand{Actor: apptest.Owner, RentalID: r.ID, Slip: apptest.PNG(), Claimed: due(r)})
	assert.ErrorIs(t, err, support.ErrRenterOnly)

	_, err = commands.Dispatch[payments.SubmitPaymentProofCommand, *dto.Rental](ctx, f.Commands,
		payments.SubmitPaymentProofCommand{Actor: apptest.Renter, RentalID: r.ID, Slip: apptest.PNG()})
	assert.True(t, errs.Is(err, errs.ErrValidation))

	pdf := apptest.PNG()
	pdf.ContentType = "application/pdf"
	_, err = commands.Dispatch[payments.SubmitPaymentProofCommand, *dto.Rental](ctx, f.Commands,
		payments.SubmitPaymentProofCommand{Actor: apptest.Renter, RentalID: r.ID, Slip: pdf, Claimed: due(r)})
	assert.True(t, errs.Is(err, errs.ErrValidation))

	_, err = commands.Dispatch[payments.SubmitPaymentProofCommand, *dto.Rental](ctx, f.Commands,
		payments.SubmitPaymentProofCommand{Actor: apptest.Renter, RentalID: pending.ID, Slip: apptest.PNG(), Claimed: due(pending)})
	assert.True(t, errs.Is(err, errs.ErrInvalidTransition))

	assert.Empty(t, f.Images.Keys(), "rejected submissions store nothing")
}

func TestReconcileAccepts(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))
	f.Slips.Set(apptest.MatchingSlip(due(r), apptest.Start.Add(-time.Hour)), nil)

	res := reconcile(t, f, r.ID)

	assert.Equal(t, payments.OutcomeAccepted, res.Outcome)
	require.NotNil(t, res.Report)
	assert.Equal(t, string(domainpayment.VerdictAccepted), res.Report.Verdict)
	assert.Empty(t, res.Report.Mismatches)

	got := rental(t, f, r.ID)
	assert.Equal(t, string(domainrental.StatusConfirmed), got.RentalStatus)
	assert.Equal(t, string(domainrental.PaymentPaid), got.PaymentStatus)
	require.NotNil(t, got.FinalAmountPaid)
	assert.Equal(t, int64(81500), got.FinalAmountPaid.Amount)
	assert.Equal(t, "auto-verified from transfer slip", got.PaymentNote)
	assert.Equal(t, []string{r.PaymentProofURL}, f.Slips.Read)
}

func TestReconcileToleratesSmallDifference(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))
	short := due(r)
	short.Amount -= 50
	f.Slips.Set(apptest.MatchingSlip(short, apptest.Start), nil)

	res := reconcile(t, f, r.ID)

	assert.Equal(t, payments.OutcomeAccepted, res.Outcome)
	assert.Equal(t, int64(81450), rental(t, f, r.ID).FinalAmountPaid.Amount)
}

func TestReconcileFlagsMismatch(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))
	slip := apptest.MatchingSlip(apptest.THB(700), apptest.Start.Add(5*24*time.Hour))
	slip.AccountName = "Nok  Owner"
	f.Slips.Set(slip, nil)

	res := reconcile(t, f, r.ID)

	assert.Equal(t, payments.OutcomeFlagged, res.Outcome)
	require.NotNil(t, res.Report)
	assert.True(t, res.Report.AccountMatch)
	assert.False(t, res.Report.AmountMatch)
	assert.False(t, res.Report.DateMatch)
	assert.Equal(t, []string{"amount", "transfer_date"}, res.Report.Mismatches)

	got := rental(t, f, r.ID)
	assert.Equal(t, string(domainrental.PaymentPendingVerification), got.PaymentStatus)

	view, err := queries.Ask[payments.GetReconciliationQuery, dto.Reconciliation](ctx, f.Queries,
		payments.GetReconciliationQuery{Actor: apptest.Owner, RentalID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, res.Report.ID, view.ID)
	assert.Equal(t, "flagged", view.Verdict)
	assert.Equal(t, int64(81500), view.AmountDue.Amount)
	assert.Equal(t, apptest.Start.Add(-48*time.Hour), view.WindowStart)
	assert.Equal(t, apptest.Start.Add(48*time.Hour), view.WindowEnd)

	_, err = queries.Ask[payments.GetReconciliationQuery, dto.Reconciliation](ctx, f.Queries,
		payments.GetReconciliationQuery{Actor: support.Actor{ID: "stranger"}, RentalID: r.ID})
	assert.True(t, errs.Is(err, errs.ErrForbidden))
}

func TestReconcileLeavesPendingWhenSlipUnreadable(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))
	f.Slips.Set(domainpayment.SlipRecord{}, errors.New("ocr: blurry image"))

	res := reconcile(t, f, r.ID)

	assert.Equal(t, payments.OutcomeSlipUnreadable, res.Outcome)
	require.NotNil(t, res.Report)
	assert.Equal(t, string(domainrental.PaymentPendingVerification), rental(t, f, r.ID).PaymentStatus)

	rec, err := queries.Ask[payments.GetReconciliationQuery, dto.Reconciliation](ctx, f.Queries,
		payments.GetReconciliationQuery{Actor: apptest.Owner, RentalID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, string(domainpayment.VerdictUnverified), rec.Verdict)
	assert.Contains(t, rec.Failure, "blurry image")
	assert.Empty(t, rec.Mismatches)

	f.Slips.Set(domainpayment.SlipRecord{AccountNumber: "1"}, nil)
	assert.Equal(t, payments.OutcomeSlipUnreadable, reconcile(t, f, r.ID).Outcome)
}

func TestReconcileWithoutPayoutMethod(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))
	f.Slips.Set(apptest.MatchingSlip(due(r), apptest.Start), nil)
	f.Catalog.PutPayoutMethods(apptest.OwnerID)

	res := reconcile(t, f, r.ID)

	assert.Equal(t, payments.OutcomeNoPayout, res.Outcome)
	assert.Equal(t, string(domainrental.PaymentPendingVerification), rental(t, f, r.ID).PaymentStatus)

	rec, err := queries.Ask[payments.GetReconciliationQuery, dto.Reconciliation](ctx, f.Queries,
		payments.GetReconciliationQuery{Actor: apptest.Owner, RentalID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, string(domainpayment.VerdictUnverified), rec.Verdict)
	assert.Contains(t, rec.Failure, "no payout method")
	assert.Equal(t, due(r).Amount, rec.AmountDue.Amount)
}

func TestReconcilePayoutDirectoryDown(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))
	f.Slips.Set(apptest.MatchingSlip(due(r), apptest.Start), nil)
	f.Catalog.SetOutage(errors.New("directory timeout"))

	_, err := commands.Dispatch[payments.ReconcilePaymentCommand, *payments.ReconcileResult](ctx, f.Commands,
		payments.ReconcilePaymentCommand{RentalID: r.ID})

	assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
}

func TestReconcileStale(t *testing.T) {
	f := apptest.New(t)
	r := f.Paid(t, apptest.Day(6, 5), apptest.Day(6, 7))

	res := reconcile(t, f, r.ID)
	assert.Equal(t, payments.OutcomeStale, res.Outcome)

	other := f.WithProof(t, apptest.Day(6, 10), apptest.Day(6, 11))
	res, err := commands.Dispatch[payments.ReconcilePaymentCommand, *payments.ReconcileResult](ctx, f.Commands,
		payments.ReconcilePaymentCommand{RentalID: other.ID, ProofURL: "memory://slips/replaced.png"})
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeStale, res.Outcome)
	assert.Empty(t, f.Slips.Read)
}

func TestConsumerReconcilesOncePerEvent(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))
	f.Slips.Set(apptest.MatchingSlip(due(r), apptest.Start), nil)
	rec := proofEvent(t, f)

	require.NoError(t, f.Consumer.Consume(ctx, rec.ID, rec.Name, rec.Payload))
	require.NoError(t, f.Consumer.Consume(ctx, rec.ID, rec.Name, rec.Payload))

	assert.Len(t, f.Slips.Read, 1)
	assert.Equal(t, string(domainrental.PaymentPaid), rental(t, f, r.ID).PaymentStatus)
}

func TestConsumerRetriesAfterFailure(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))
	f.Slips.Set(apptest.MatchingSlip(due(r), apptest.Start), nil)
	rec := proofEvent(t, f)

	f.Catalog.SetOutage(errors.New("directory timeout"))
	err := f.Consumer.Consume(ctx, rec.ID, rec.Name, rec.Payload)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))

	f.Catalog.SetOutage(nil)
	require.NoError(t, f.Consumer.Consume(ctx, rec.ID, rec.Name, rec.Payload))
	assert.Equal(t, string(domainrental.PaymentPaid), rental(t, f, r.ID).PaymentStatus)
}

func TestConsumerIgnoresOtherEvents(t *testing.T) {
	f := apptest.New(t)

	assert.NoError(t, f.Consumer.Consume(ctx, "evt-1", "rental.approved", []byte(`{}`)))
	assert.NoError(t, f.Consumer.Consume(ctx, "evt-2", domainrental.EventPaymentProofSubmitted+".v1", []byte(`not json`)))
	assert.Empty(t, f.Slips.Read)
}

func TestVerifyPayment(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))

	_, err := commands.Dispatch[payments.VerifyPaymentCommand, *dto.Rental](ctx, f.Commands,
		payments.VerifyPaymentCommand{Actor: apptest.Renter, RentalID: r.ID})
	assert.ErrorIs(t, err, support.ErrOwnerOnly)

	out, err := commands.Dispatch[payments.VerifyPaymentCommand, *dto.Rental](ctx, f.Commands,
		payments.VerifyPaymentCommand{Actor: apptest.Owner, RentalID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, string(domainrental.StatusConfirmed), out.RentalStatus)
	assert.Equal(t, "verified manually", out.PaymentNote)
	assert.Equal(t, int64(81500), out.FinalAmountPaid.Amount)
}

func TestVerifyPaymentPrefersSlipAmount(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))
	f.Slips.Set(apptest.MatchingSlip(apptest.THB(800), apptest.Start), nil)
	require.Equal(t, payments.OutcomeFlagged, reconcile(t, f, r.ID).Outcome)

	out, err := commands.Dispatch[payments.VerifyPaymentCommand, *dto.Rental](ctx, f.Commands,
		payments.VerifyPaymentCommand{Actor: apptest.Owner, RentalID: r.ID, Note: "owner confirmed by phone"})
	require.NoError(t, err)
	assert.Equal(t, int64(80000), out.FinalAmountPaid.Amount)
	assert.Equal(t, "owner confirmed by phone", out.PaymentNote)

	other := f.WithProof(t, apptest.Day(6, 10), apptest.Day(6, 11))
	explicit := apptest.THB(1)
	out, err = commands.Dispatch[payments.VerifyPaymentCommand, *dto.Rental](ctx, f.Commands,
		payments.VerifyPaymentCommand{Actor: apptest.Admin, RentalID: other.ID, Amount: &explicit})
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.FinalAmountPaid.Amount)
}

func TestMarkSlipInvalidAllowsResubmission(t *testing.T) {
	f := apptest.New(t)
	r := f.WithProof(t, apptest.Day(6, 5), apptest.Day(6, 7))

	out, err := commands.Dispatch[payments.MarkSlipInvalidCommand, *dto.Rental](ctx, f.Commands,
		payments.MarkSlipInvalidCommand{Actor: apptest.Owner, RentalID: r.ID, Reason: "wrong account"})
	require.NoError(t, err)
	assert.Equal(t, string(domainrental.PaymentUnpaid), out.PaymentStatus)
	assert.Equal(t, string(domainrental.StatusPendingPayment), out.RentalStatus)
	assert.Contains(t, f.EventNames(), "rental.payment_rejected")

	f.Clock.Add(time.Hour)
	again, err := commands.Dispatch[payments.SubmitPaymentProofCommand, *dto.Rental](ctx, f.Commands,
		payments.SubmitPaymentProofCommand{Actor: apptest.Renter, RentalID: r.ID, Slip: apptest.PNG(), Claimed: due(r)})
	require.NoError(t, err)
	assert.NotEqual(t, r.PaymentProofURL, again.PaymentProofURL)
	assert.Equal(t, apptest.Start.Add(time.Hour), *again.ProofSubmittedAt)

	res, err := commands.Dispatch[payments.ReconcilePaymentCommand, *payments.ReconcileResult](ctx, f.Commands,
		payments.ReconcilePaymentCommand{RentalID: r.ID, ProofURL: r.PaymentProofURL})
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeStale, res.Outcome, "the replaced slip is not reconciled")
}

func TestListPayoutMethods(t *testing.T) {
	f := apptest.New(t)

	out, err := queries.Ask[payments.ListPayoutMethodsQuery, dto.PayoutMethods](ctx, f.Queries,
		payments.ListPayoutMethodsQuery{Actor: apptest.Renter, OwnerID: apptest.OwnerID})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, apptest.Payout.AccountNumber, out.Items[0].AccountNumber)
	assert.Equal(t, "Kasikorn", *out.Items[0].BankName)
	assert.True(t, out.Items[0].IsPrimary)

	_, err = queries.Ask[payments.ListPayoutMethodsQuery, dto.PayoutMethods](ctx, f.Queries,
		payments.ListPayoutMethodsQuery{Actor: apptest.Renter})
	assert.True(t, errs.Is(err, errs.ErrValidation))
}
