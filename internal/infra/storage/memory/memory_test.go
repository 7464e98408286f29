package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/app/middleware"
	appoutbox "rentalcore/internal/app/outbox"
	"rentalcore/internal/app/policies"
	"rentalcore/internal/app/uow"
	domainavailability "rentalcore/internal/domain/availability"
	"rentalcore/internal/domain/fees"
	domainpayment "rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/pricing"
	domainrental "rentalcore/internal/domain/rental"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

var ctx = context.Background()

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func thb(units int64) money.Money {
	return money.Units(units, "THB")
}

func newRental(t *testing.T, id string, start, end, created time.Time) *domainrental.Rental {
	t.Helper()
	tiers := pricing.Tiers{PricePerDay: thb(100), MinRentalDays: 1, QuantityAvailable: 1}
	quote, err := pricing.Price(tiers, pricing.Choice{}, start, end)
	require.NoError(t, err)
	r, err := domainrental.New(domainrental.CreateParams{
		ID:           domainrental.RentalID(id),
		UID:          "RNT-" + id,
		RenterID:     "renter",
		OwnerID:      "owner",
		ProductID:    "camera",
		PickupMethod: fees.PickupSelf,
		Snapshot:     tiers,
		Quote:        quote,
		Fees:         fees.Estimate{Known: true, PlatformFeeRenter: thb(0), DeliveryFee: thb(0), TotalEstimatedFees: thb(0)},
		CreatedAt:    created,
	})
	require.NoError(t, err)
	return r
}

func TestOutboxClaimOrderAndRetry(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	box := NewOutbox()
	box.now = func() time.Time { return now }

	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "a", Name: "rental.requested"}))
	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "b", Name: "rental.approved"}))
	assert.Error(t, box.Add(ctx, appoutbox.EventRecord{ID: "a"}), "duplicate ids are rejected")

	first, err := box.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "a", first.ID)

	second, err := box.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "b", second.ID)

	none, err := box.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, none, "claimed records are not handed out twice")

	require.NoError(t, box.MarkSent(ctx, "b"))
	require.NoError(t, box.MarkFailed(ctx, "a", now.Add(time.Minute), "broker down"))
	assert.Equal(t, 1, box.Pending())

	none, err = box.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, none, "failed records wait for their backoff")

	now = now.Add(time.Minute)
	retry, err := box.Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, "a", retry.ID)
	assert.Equal(t, 1, retry.Attempts)

	assert.ErrorIs(t, box.MarkSent(ctx, "zzz"), ErrOutboxRecordNotFound)
	assert.Len(t, box.Records(), 2)
}

func TestInbox(t *testing.T) {
	in := NewInbox()

	seen, err := in.Seen(ctx, "evt")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, _ = in.Seen(ctx, "evt")
	assert.True(t, seen)

	require.NoError(t, in.Forget(ctx, "evt"))
	seen, _ = in.Seen(ctx, "evt")
	assert.False(t, seen)
}

func TestRentalRepositoryVersions(t *testing.T) {
	repo := NewRentalRepository()
	r := newRental(t, "r1", day(6, 5), day(6, 7), day(6, 1))

	require.NoError(t, repo.Save(ctx, r))
	assert.Equal(t, int64(1), int64(r.Version))

	a, err := repo.ByID(ctx, "r1")
	require.NoError(t, err)
	b, err := repo.ByID(ctx, "r1")
	require.NoError(t, err)

	require.NoError(t, a.Approve(day(6, 2)))
	require.NoError(t, repo.Save(ctx, a))

	require.NoError(t, b.Reject("busy", day(6, 2)))
	err = repo.Save(ctx, b)
	assert.ErrorIs(t, err, domainrental.ErrVersionConflict)
	assert.True(t, errs.Is(err, errs.ErrConcurrentUpdate))

	stored, err := repo.ByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domainrental.StatusPendingPayment, stored.Status)

	_, err = repo.ByID(ctx, "missing")
	assert.True(t, errs.Is(err, errs.ErrNotFound))

	fresh := newRental(t, "r2", day(6, 5), day(6, 7), day(6, 1))
	fresh.Version = 3
	assert.ErrorIs(t, repo.Save(ctx, fresh), domainrental.ErrVersionConflict)
}

func TestRentalRepositoryIsolatesCopies(t *testing.T) {
	repo := NewRentalRepository()
	r := newRental(t, "r1", day(6, 5), day(6, 7), day(6, 1))
	require.NoError(t, repo.Save(ctx, r))

	got, err := repo.ByID(ctx, "r1")
	require.NoError(t, err)
	got.Status = domainrental.StatusCompleted

	again, err := repo.ByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domainrental.StatusPendingOwnerApproval, again.Status)
}

func TestRentalRepositoryQueries(t *testing.T) {
	repo := NewRentalRepository()
	old := newRental(t, "old", day(6, 2), day(6, 3), day(5, 20))
	newer := newRental(t, "newer", day(6, 3), day(6, 4), day(5, 25))
	future := newRental(t, "future", day(6, 20), day(6, 22), day(5, 21))
	cancelled := newRental(t, "cancelled", day(6, 2), day(6, 8), day(5, 21))
	require.NoError(t, cancelled.Cancel(domainrental.PartyRenter, "", day(5, 22)))
	for _, r := range []*domainrental.Rental{newer, old, future, cancelled} {
		require.NoError(t, repo.Save(ctx, r))
	}

	holding, err := repo.ListHolding(ctx, "camera", daterange.Must(day(6, 3), day(6, 21)))
	require.NoError(t, err)
	ids := func(list []*domainrental.Rental) []string {
		var out []string
		for _, r := range list {
			out = append(out, string(r.ID))
		}
		return out
	}
	assert.Equal(t, []string{"old", "future", "newer"}, ids(holding))

	other, err := repo.ListHolding(ctx, "tent", daterange.Must(day(6, 1), day(6, 30)))
	require.NoError(t, err)
	assert.Empty(t, other)

	stale, err := repo.ListStale(ctx, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "newer"}, ids(stale))

	limited, err := repo.ListStale(ctx, day(6, 10), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids(limited))

	none, err := repo.ListStale(ctx, day(6, 2), 0)
	require.NoError(t, err)
	assert.Empty(t, none, "rentals starting today are not stale")
}

func TestReportRepositoryLatest(t *testing.T) {
	repo := NewReportRepository()
	_, err := repo.LatestForRental(ctx, "r1")
	assert.ErrorIs(t, err, domainpayment.ErrReportNotFound)

	require.NoError(t, repo.Save(ctx, &domainpayment.Report{ID: "first", RentalID: "r1"}))
	require.NoError(t, repo.Save(ctx, &domainpayment.Report{ID: "second", RentalID: "r1"}))

	got, err := repo.LatestForRental(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domainpayment.ReportID("second"), got.ID)
}

type countingSchedule struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSchedule) Current(context.Context) (fees.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return fees.Schedule{}, s.err
	}
	return fees.Schedule{Currency: "THB", PlatformFee: fees.Rule{Kind: fees.KindPercent, BasisPoints: 500}}, nil
}

func TestScheduleCache(t *testing.T) {
	src := &countingSchedule{}
	cache := NewScheduleCache(src, 20*time.Millisecond)
	t.Cleanup(cache.Stop)

	for i := 0; i < 3; i++ {
		s, err := cache.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, "THB", s.Currency)
	}
	assert.Equal(t, 1, src.calls)

	cache.Invalidate()
	_, err := cache.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	src.err = fees.ErrScheduleUnavailable
	time.Sleep(30 * time.Millisecond)
	_, err = cache.Current(ctx)
	assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable), "an expired schedule is not served stale")

	_, err = NewScheduleCache(nil, 0).Current(ctx)
	assert.ErrorIs(t, err, fees.ErrScheduleUnavailable)
}

func TestCalendarCacheStoresCopies(t *testing.T) {
	cache := NewCalendarCache(10, time.Minute)
	t.Cleanup(cache.Stop)

	_, ok := cache.Get(ctx, "camera")
	assert.False(t, ok)

	cal := domainavailability.NewCalendar("camera")
	cal.Set(day(6, 5), domainavailability.StatusAvailable)
	require.NoError(t, cache.Put(ctx, cal))
	cal.Set(day(6, 5), domainavailability.StatusUnavailable)

	got, ok := cache.Get(ctx, "camera")
	require.True(t, ok)
	assert.Equal(t, domainavailability.StatusAvailable, got.Status(day(6, 5)))

	got.Set(day(6, 6), domainavailability.StatusUnavailable)
	again, _ := cache.Get(ctx, "camera")
	assert.Equal(t, domainavailability.StatusUnknown, again.Status(day(6, 6)))
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	c.PutProduct(policies.Product{ID: "camera", OwnerID: "owner", Active: true}, day(6, 10), day(6, 3))
	c.Block("camera", day(6, 4))
	c.Block("missing", day(6, 4))

	days, err := c.Availability(ctx, "camera", daterange.Must(day(6, 2), day(6, 11)))
	require.NoError(t, err)
	require.Len(t, days, 10)
	assert.Equal(t, domainavailability.StatusAvailable, days[0].Status)
	assert.Equal(t, domainavailability.StatusUnavailable, days[1].Status)
	assert.Equal(t, domainavailability.StatusUnavailable, days[2].Status)
	assert.Equal(t, domainavailability.StatusAvailable, days[8].Status)
	assert.Equal(t, domainavailability.StatusUnknown, days[9].Status)

	_, err = c.Product(ctx, "missing")
	assert.ErrorIs(t, err, policies.ErrProductNotFound)

	c.SetOutage(errors.New("timeout"))
	_, err = c.Product(ctx, "camera")
	assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
	_, err = c.PayoutMethods(ctx, "owner")
	assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
}

func TestCatalogLoadFixtures(t *testing.T) {
	c := NewCatalog()
	n, err := c.LoadFixtures(filepath.Join("..", "..", "..", "..", "data", "catalog.json"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	p, err := c.Product(ctx, "prod-camera-a7")
	require.NoError(t, err)
	assert.Equal(t, "owner-nok", p.OwnerID)
	assert.Equal(t, int64(50000), p.Tiers.PricePerDay.Amount)

	methods, err := c.PayoutMethods(ctx, "owner-nok")
	require.NoError(t, err)
	require.NotEmpty(t, methods)
	assert.True(t, methods[0].IsPrimary)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"products":[{"id":"x","tiers":{"price_per_day":{"amount":0,"currency":"THB"}}}]}`), 0o600))
	_, err = NewCatalog().LoadFixtures(bad)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "product x"), err.Error())
}

func TestObjectStore(t *testing.T) {
	s := NewObjectStore()

	url, err := s.Upload(ctx, "/slips/r1/a.png/", strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "memory://slips/r1/a.png", url)

	obj, ok := s.Object("slips/r1/a.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []byte("png"), obj.Data)

	_, err = s.Upload(ctx, " ", strings.NewReader("x"), "image/png")
	assert.Error(t, err)
}

func TestIdempotencyStoreExpires(t *testing.T) {
	store := NewIdempotencyStore(time.Hour)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	payload := []byte(`{"id":"r-1"}`)
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "create:k1", Payload: payload, Digest: "abc"}))
	payload[0] = 'x'

	rec, ok, err := store.Get(ctx, "create:k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", rec.Digest)
	assert.Equal(t, `{"id":"r-1"}`, string(rec.Payload))

	now = now.Add(time.Hour)
	_, ok, err = store.Get(ctx, "create:k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "create:k2"}))
	assert.Equal(t, 1, store.Len())
}

func TestFactory(t *testing.T) {
	_, err := Factory{}.Begin(ctx, uow.TxOptions{})
	assert.ErrorIs(t, err, ErrFactoryMisconfigured)

	unit, err := Factory{RentalsRepo: NewRentalRepository(), ReportsRepo: NewReportRepository()}.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	assert.NotNil(t, unit.Rentals())
	assert.NoError(t, unit.Commit(ctx))
}
