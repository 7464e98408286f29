package slipocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainpayment "rentalcore/internal/domain/payment"
	"rentalcore/internal/infra/upstream"
	"rentalcore/internal/pkg/errs"
)

func serve(t *testing.T, calls *atomic.Int32, status int, resp map[string]any) *Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/verify-slip", r.URL.Path)
		var req verifyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "memory://slips/r1/a.png", req.ImageURL)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return NewClient(upstream.NewRequester("ocr", ts.URL, time.Second, []time.Duration{time.Millisecond}, nil))
}

func TestReadSlip(t *testing.T) {
	var calls atomic.Int32
	c := serve(t, &calls, http.StatusOK, map[string]any{
		"account_name": "Nok Saetang", "account_number": "123-4-56789-0", "bank_name": "Kasikornbank",
		"amount": 81500, "transfer_date": "2025-06-03T09:15:00+07:00",
	})

	slip, err := c.ReadSlip(context.Background(), "memory://slips/r1/a.png")
	require.NoError(t, err)
	assert.Equal(t, "Nok Saetang", slip.AccountName)
	assert.Equal(t, int64(81500), slip.Amount.Amount)
	assert.Equal(t, "THB", slip.Amount.Currency)
	assert.Equal(t, time.Date(2025, 6, 3, 2, 15, 0, 0, time.UTC), slip.TransferDate)
}

func TestReadSlipAcceptsPlainDay(t *testing.T) {
	var calls atomic.Int32
	c := serve(t, &calls, http.StatusOK, map[string]any{"amount": 100, "currency": "usd", "transfer_date": "2025-06-03"})

	slip, err := c.ReadSlip(context.Background(), "memory://slips/r1/a.png")
	require.NoError(t, err)
	assert.Equal(t, "USD", slip.Amount.Currency)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), slip.TransferDate)
}

func TestReadSlipRejectsBadDate(t *testing.T) {
	var calls atomic.Int32
	c := serve(t, &calls, http.StatusOK, map[string]any{"amount": 100, "transfer_date": "yesterday"})

	_, err := c.ReadSlip(context.Background(), "memory://slips/r1/a.png")
	assert.ErrorIs(t, err, domainpayment.ErrInvalidSlip)
}

func TestReadSlipIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := serve(t, &calls, http.StatusBadGateway, map[string]any{})

	_, err := c.ReadSlip(context.Background(), "memory://slips/r1/a.png")
	assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestUnconfigured(t *testing.T) {
	_, err := Unconfigured{}.ReadSlip(context.Background(), "x")
	assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
}
