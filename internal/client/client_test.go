package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/guard"
	domainavailability "rentalcore/internal/domain/availability"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/errs"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c := New(ts.URL, "tok", time.Second, nil)
	c.R.Backoff = []time.Duration{time.Millisecond}
	c.NewKey = func() string { return "key-1" }
	c.Polling = time.Millisecond
	return c
}

func TestCreateRental(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/rentals", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

		var req QuoteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "prod-camera-a7", req.ProductID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(dto.Rental{ID: "r-1", RentalStatus: "pending_owner_approval"})
	})

	got, err := c.CreateRental(context.Background(), QuoteRequest{
		ProductID:    "prod-camera-a7",
		StartDate:    "2025-06-05",
		EndDate:      "2025-06-07",
		PickupMethod: "self_pickup",
	})

	require.NoError(t, err)
	assert.Equal(t, "r-1", got.ID)
}

func TestCreateRentalConflictRefreshesAvailability(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/api/v1/rentals":
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":"availability: dates no longer available: 2025-06-06","code":"date_range_conflict","dates":["2025-06-06"]}`)
		case "/api/v1/products/prod-camera-a7/availability":
			assert.Equal(t, "2025-06-05", r.URL.Query().Get("from"))
			assert.Equal(t, "2025-06-07", r.URL.Query().Get("to"))
			_ = json.NewEncoder(w).Encode(dto.Availability{
				ProductID: "prod-camera-a7",
				From:      "2025-06-05",
				To:        "2025-06-07",
				Days: []dto.AvailabilityDay{
					{Date: "2025-06-05", Status: "available"},
					{Date: "2025-06-06", Status: "available"},
					{Date: "2025-06-07", Status: "available"},
				},
			})
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	})

	_, err := c.CreateRental(context.Background(), QuoteRequest{
		ProductID:    "prod-camera-a7",
		StartDate:    "2025-06-05",
		EndDate:      "2025-06-07",
		PickupMethod: "self_pickup",
	})

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrDateRangeConflict))
	mu.Lock()
	assert.Equal(t, []string{"POST /api/v1/rentals", "GET /api/v1/products/prod-camera-a7/availability"}, paths)
	mu.Unlock()

	var taken *domainavailability.ConflictError
	require.True(t, errs.As(err, &taken))
	require.Len(t, taken.Dates, 1)
	assert.Equal(t, "2025-06-06", daterange.FormatDay(taken.Dates[0]))

	var conflict *BookingConflict
	require.True(t, errs.As(err, &conflict))
	require.NotNil(t, conflict.Refreshed)
	statuses := map[string]string{}
	for _, d := range conflict.Refreshed.Days {
		statuses[d.Date] = d.Status
	}
	assert.Equal(t, map[string]string{"2025-06-05": "available", "2025-06-06": "unavailable", "2025-06-07": "available"}, statuses)
}

func TestCreateRentalConflictDerivesRangeFromUnits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":"taken","code":"date_range_conflict","dates":["2025-06-09"]}`)
			return
		}
		assert.Equal(t, "2025-06-11", r.URL.Query().Get("to"))
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.R.Backoff = nil

	_, err := c.CreateRental(context.Background(), QuoteRequest{ProductID: "p", StartDate: "2025-06-05", Tier: "weekly", Units: 1})

	var conflict *BookingConflict
	require.True(t, errs.As(err, &conflict))
	assert.Nil(t, conflict.Refreshed)
}

func TestCreateRentalConcurrentUpdateIsNotADateConflict(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":"version changed","code":"concurrent_update"}`)
	})

	_, err := c.CreateRental(context.Background(), QuoteRequest{ProductID: "p"})

	require.Error(t, err)
	var conflict *BookingConflict
	assert.False(t, errs.As(err, &conflict))
	assert.Equal(t, int32(1), calls.Load())
}

func TestConcurrentSubmissionRejected(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_ = json.NewEncoder(w).Encode(dto.Rental{ID: "r-1"})
	})

	done := make(chan error, 1)
	go func() {
		_, err := c.Approve(context.Background(), "r-1")
		done <- err
	}()
	<-entered

	_, err := c.Approve(context.Background(), "r-1")
	assert.ErrorIs(t, err, guard.ErrInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Guard.Busy("approve:r-1"))
}

func TestSubmitPaymentProof(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/rentals/r-1/payment-proof", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "86500", r.FormValue("amount"))
		assert.Equal(t, "THB", r.FormValue("currency"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "slip.png", hdr.Filename)
		raw, _ := io.ReadAll(f)
		assert.Equal(t, "png-bytes", string(raw))

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(dto.Rental{ID: "r-1", PaymentStatus: "pending_verification"})
	})

	got, err := c.SubmitPaymentProof(context.Background(), "r-1", "slip.png", strings.NewReader("png-bytes"), 86500, "THB")

	require.NoError(t, err)
	assert.Equal(t, "pending_verification", got.PaymentStatus)
}

func TestActionBodies(t *testing.T) {
	var seen map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/rentals/r-1/refund", r.URL.Path)
		seen = map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_ = json.NewEncoder(w).Encode(dto.Rental{ID: "r-1"})
	})

	_, err := c.RecordRefund(context.Background(), "r-1", dto.MoneyDTO{Amount: 500, Currency: "THB"})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"amount": map[string]any{"amount": float64(500), "currency": "THB"}}, seen)
}

func TestWatchRentalStopsWhenSettled(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		status := "pending_verification"
		switch n := calls.Add(1); {
		case n == 2:
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		case n >= 4:
			status = "paid"
		}
		_ = json.NewEncoder(w).Encode(dto.Rental{ID: "r-1", PaymentStatus: status})
	})

	var updates []string
	got, err := c.WatchRental(context.Background(), "r-1", func(r dto.Rental) {
		updates = append(updates, r.PaymentStatus)
	})

	require.NoError(t, err)
	assert.Equal(t, "paid", got.PaymentStatus)
	assert.Equal(t, "paid", updates[len(updates)-1])
	assert.NotEmpty(t, updates)
}

func TestWatchRentalCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dto.Rental{ID: "r-1", PaymentStatus: "pending_verification"})
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := c.WatchRental(ctx, "r-1", nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "r-1", got.ID)
}
