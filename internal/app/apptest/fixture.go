// Package apptest wires the application handlers onto in-memory storage for tests.
package apptest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/handlers/availability"
	"rentalcore/internal/app/handlers/payments"
	"rentalcore/internal/app/handlers/quotes"
	"rentalcore/internal/app/handlers/rentals"
	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/middleware"
	appoutbox "rentalcore/internal/app/outbox"
	"rentalcore/internal/app/policies"
	"rentalcore/internal/app/queries"
	"rentalcore/internal/domain/fees"
	domainpayment "rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/pricing"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/infra/storage/memory"
	"rentalcore/internal/pkg/clock"
	"rentalcore/internal/pkg/errs"
)

const (
	ProductID = "camera"
	OwnerID   = "owner"
	RenterID  = "renter"
	Currency  = "THB"
)

// Start is the fixture clock's initial time.
var Start = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

var (
	Owner  = support.Actor{ID: OwnerID}
	Renter = support.Actor{ID: RenterID}
	Admin  = support.Actor{ID: "admin", Admin: true}
)

func Day(month time.Month, day int) time.Time {
	return time.Date(2025, month, day, 0, 0, 0, 0, time.UTC)
}

func THB(units int64) money.Money {
	return money.Units(units, Currency)
}

var bank = "Kasikorn"

// Payout is the owner's registered account.
var Payout = domainpayment.PayoutMethod{AccountName: "Nok Owner", AccountNumber: "123-4-56789-0", BankName: &bank, IsPrimary: true}

// Tiers: 100/day, 600/week, 500 deposit, one unit of stock.
var Tiers = pricing.Tiers{
	PricePerDay:       THB(100),
	PricePerWeek:      THB(600),
	MinRentalDays:     1,
	MaxRentalDays:     60,
	SecurityDeposit:   THB(500),
	QuantityAvailable: 1,
}

// Schedule charges 5% platform fee and 50 for delivery.
var Schedule = fees.Schedule{
	Currency:    Currency,
	PlatformFee: fees.Rule{Kind: fees.KindPercent, BasisPoints: 500},
	DeliveryFee: THB(50),
}

// FeeSource serves Schedule unless Down is set.
type FeeSource struct {
	mu   sync.Mutex
	Down bool
}

func (f *FeeSource) Current(context.Context) (fees.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return fees.Schedule{}, errs.Mark(errs.New("fee service down"), errs.ErrUpstreamUnavailable)
	}
	return Schedule, nil
}

func (f *FeeSource) SetDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Down = down
}

// SlipReader returns Slip for every image, or Err when set.
type SlipReader struct {
	mu   sync.Mutex
	Slip domainpayment.SlipRecord
	Err  error
	Read []string
}

func (s *SlipReader) ReadSlip(_ context.Context, url string) (domainpayment.SlipRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Read = append(s.Read, url)
	if s.Err != nil {
		return domainpayment.SlipRecord{}, s.Err
	}
	return s.Slip, nil
}

func (s *SlipReader) Set(slip domainpayment.SlipRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Slip, s.Err = slip, err
}

// MatchingSlip is a transfer to Payout of amount on the given day.
func MatchingSlip(amount money.Money, at time.Time) domainpayment.SlipRecord {
	return domainpayment.SlipRecord{
		AccountName:   Payout.AccountName,
		AccountNumber: Payout.AccountNumber,
		BankName:      bank,
		Amount:        amount,
		TransferDate:  at,
	}
}

type Fixture struct {
	Clock    *clock.MockClock
	Catalog  *memory.Catalog
	Fees     *FeeSource
	Slips    *SlipReader
	Images   *memory.ObjectStore
	Rentals  *memory.RentalRepository
	Reports  *memory.ReportRepository
	Outbox   *memory.Outbox
	Inbox    *memory.Inbox
	Calendar *memory.CalendarCache

	Commands commands.Bus
	Queries  queries.Bus
	Consumer *payments.ProofConsumer
}

// New builds the full command and query pipelines the service runs with.
func New(t testing.TB) *Fixture {
	t.Helper()
	f := &Fixture{
		Clock:    clock.NewMockClock(Start),
		Catalog:  memory.NewCatalog(),
		Fees:     &FeeSource{},
		Slips:    &SlipReader{},
		Images:   memory.NewObjectStore(),
		Rentals:  memory.NewRentalRepository(),
		Reports:  memory.NewReportRepository(),
		Outbox:   memory.NewOutbox(),
		Inbox:    memory.NewInbox(),
		Calendar: memory.NewCalendarCache(100, time.Hour),
	}
	t.Cleanup(f.Calendar.Stop)
	f.Catalog.PutProduct(policies.Product{ID: ProductID, OwnerID: OwnerID, Title: "Mirrorless camera", Active: true, Tiers: Tiers}, time.Time{})
	f.Catalog.PutPayoutMethods(OwnerID, Payout)

	factory := memory.Factory{RentalsRepo: f.Rentals, ReportsRepo: f.Reports}
	mutator := support.Mutator{UoWFactory: factory, Outbox: f.Outbox, Encoder: appoutbox.JSONEventEncoder{}, Clock: f.Clock}
	resolver := &availability.Resolver{Catalog: f.Catalog, Cache: f.Calendar, UoWFactory: factory, Clock: f.Clock}
	pricer := &quotes.Pricer{Catalog: f.Catalog, Fees: f.Fees, Clock: f.Clock}

	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, rentals.CreateRentalCommand{}.Key(), &rentals.CreateRentalHandler{Mutator: mutator, Pricer: pricer, Resolver: resolver})
	commands.RegisterHandler(bus, rentals.ExpireStaleCommand{}.Key(), &rentals.ExpireStaleHandler{Mutator: mutator})
	commands.RegisterHandler(bus, payments.ReconcilePaymentCommand{}.Key(), &payments.Reconciler{Mutator: mutator, Slips: f.Slips, Payouts: f.Catalog})
	(&rentals.Lifecycle{Mutator: mutator, Images: f.Images}).Register(bus)
	(&payments.Proofs{Mutator: mutator, Slips: f.Images}).Register(bus)

	qbus := queries.NewInMemoryBus()
	queries.RegisterHandler(qbus, availability.GetAvailabilityQuery{}.Key(), &availability.GetAvailabilityHandler{Catalog: f.Catalog, Resolver: resolver})
	queries.RegisterHandler(qbus, quotes.GetQuoteQuery{}.Key(), &quotes.GetQuoteHandler{Pricer: pricer, Resolver: resolver})
	queries.RegisterHandler(qbus, rentals.GetRentalQuery{}.Key(), &rentals.GetRentalHandler{UoWFactory: factory})
	queries.RegisterHandler(qbus, payments.GetReconciliationQuery{}.Key(), &payments.GetReconciliationHandler{UoWFactory: factory})
	queries.RegisterHandler(qbus, payments.ListPayoutMethodsQuery{}.Key(), &payments.ListPayoutMethodsHandler{Payouts: f.Catalog})

	f.Commands = middleware.ChainCommands(bus,
		middleware.Validation(middleware.MessageValidator{}),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Idempotency(memory.NewIdempotencyStore(0), nil),
		middleware.OutboxFlush(f.Outbox),
		middleware.Transaction(factory, nil),
	)
	f.Queries = middleware.ChainQueries(qbus,
		middleware.QueryValidation(middleware.MessageValidator{}),
		middleware.QueryAuthorization(middleware.RequireActor{}),
	)
	f.Consumer = &payments.ProofConsumer{Bus: f.Commands, Inbox: f.Inbox}
	return f
}

// Intent asks for the fixture product between two days with self pickup.
func Intent(start, end time.Time) quotes.Intent {
	return quotes.Intent{ProductID: ProductID, Start: start, End: end, PickupMethod: string(fees.PickupSelf)}
}

// Book creates a rental for the renter and fails the test on error.
func (f *Fixture) Book(t testing.TB, start, end time.Time) *dto.Rental {
	t.Helper()
	r, err := commands.Dispatch[rentals.CreateRentalCommand, *dto.Rental](context.Background(), f.Commands,
		rentals.CreateRentalCommand{Actor: Renter, Intent: Intent(start, end)})
	require.NoError(t, err)
	return r
}

// Approved books and approves a rental.
func (f *Fixture) Approved(t testing.TB, start, end time.Time) *dto.Rental {
	t.Helper()
	r := f.Book(t, start, end)
	out, err := commands.Dispatch[rentals.ApproveRentalCommand, *dto.Rental](context.Background(), f.Commands,
		rentals.ApproveRentalCommand{Target: rentals.Target{Actor: Owner, RentalID: r.ID}})
	require.NoError(t, err)
	return out
}

// PNG is a minimal image the upload checks accept.
func PNG() support.Upload {
	return support.Upload{
		Filename:    "slip.png",
		ContentType: "image/png",
		Data:        []byte("\x89PNG\r\n\x1a\n0000"),
	}
}

// WithProof books, approves and submits a slip claiming the full amount due.
func (f *Fixture) WithProof(t testing.TB, start, end time.Time) *dto.Rental {
	t.Helper()
	r := f.Approved(t, start, end)
	out, err := commands.Dispatch[payments.SubmitPaymentProofCommand, *dto.Rental](context.Background(), f.Commands,
		payments.SubmitPaymentProofCommand{Actor: Renter, RentalID: r.ID, Slip: PNG(), Claimed: r.TotalAmountDue.Money()})
	require.NoError(t, err)
	return out
}

// Paid takes a rental to confirmed through a manual verification.
func (f *Fixture) Paid(t testing.TB, start, end time.Time) *dto.Rental {
	t.Helper()
	r := f.WithProof(t, start, end)
	out, err := commands.Dispatch[payments.VerifyPaymentCommand, *dto.Rental](context.Background(), f.Commands,
		payments.VerifyPaymentCommand{Actor: Owner, RentalID: r.ID})
	require.NoError(t, err)
	return out
}

// EventNames lists the names of every outbox record so far.
func (f *Fixture) EventNames() []string {
	var out []string
	for _, rec := range f.Outbox.Records() {
		out = append(out, rec.Name)
	}
	return out
}
