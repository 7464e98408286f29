// Package client is a typed REST client of the rentalcore API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"rentalcore/internal/app/dto"
	"rentalcore/internal/app/guard"
	"rentalcore/internal/app/watch"
	domainavailability "rentalcore/internal/domain/availability"
	"rentalcore/internal/domain/pricing"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/infra/upstream"
	"rentalcore/internal/pkg/errs"
)

const apiPrefix = "/api/v1"

var defaultBackoff = []time.Duration{200 * time.Millisecond, time.Second, 3 * time.Second}

// Client reads are retried by the requester; writes are sent once with an
// Idempotency-Key so a caller may repeat them safely.
type Client struct {
	R       *upstream.Requester
	Guard   *guard.Submissions
	NewKey  func() string
	Logger  *slog.Logger
	Polling time.Duration
}

func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	r := upstream.NewRequester("rentalcore", baseURL, timeout, defaultBackoff, logger)
	if token != "" {
		r.Header = http.Header{"Authorization": {"Bearer " + token}}
	}
	return &Client{
		R:      r,
		Guard:  guard.NewSubmissions(),
		NewKey: uuid.NewString,
		Logger: logger,
	}
}

type QuoteRequest struct {
	ProductID    string `json:"product_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date,omitempty"`
	Tier         string `json:"tier,omitempty"`
	Units        int    `json:"units,omitempty"`
	PickupMethod string `json:"pickup_method"`
}

func (c *Client) Availability(ctx context.Context, productID, from, to string) (dto.Availability, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	var out dto.Availability
	err := c.R.GetJSON(ctx, upstream.PathEscape(apiPrefix+"/products/%s/availability", productID), q, &out)
	return out, err
}

// Quote is a read on the server, so it is sent without a submission guard.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (dto.Quote, error) {
	var out dto.Quote
	err := c.R.PostJSON(ctx, apiPrefix+"/quotes", req, &out)
	return out, err
}

func (c *Client) GetRental(ctx context.Context, id string) (dto.Rental, error) {
	var out dto.Rental
	err := c.R.GetJSON(ctx, upstream.PathEscape(apiPrefix+"/rentals/%s", id), nil, &out)
	return out, err
}

// BookingConflict is returned by CreateRental when some of the requested days
// were taken after they were shown as free. Refreshed is the availability of
// the requested range fetched afterwards, with the taken days marked
// unavailable; it is nil when that fetch failed.
type BookingConflict struct {
	Conflict  *domainavailability.ConflictError
	Refreshed *dto.Availability
}

func (e *BookingConflict) Error() string { return e.Conflict.Error() }

func (e *BookingConflict) Unwrap() error { return e.Conflict }

// CreateRental books a product. Concurrent calls for the same product fail
// with guard.ErrInFlight instead of racing each other. A date conflict is
// answered with a *BookingConflict carrying a fresh availability view.
func (c *Client) CreateRental(ctx context.Context, req QuoteRequest) (dto.Rental, error) {
	var out dto.Rental
	err := c.Guard.Do(ctx, "create:"+req.ProductID, func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPost, apiPrefix+"/rentals", req, &out)
	})
	conflict, ok := decodeConflict(err)
	if !ok {
		return out, err
	}
	return out, c.refreshAfterConflict(ctx, req, conflict)
}

func (c *Client) refreshAfterConflict(ctx context.Context, req QuoteRequest, conflict *domainavailability.ConflictError) *BookingConflict {
	out := &BookingConflict{Conflict: conflict}
	from, to := req.StartDate, requestedEnd(req)
	view, err := c.Availability(ctx, req.ProductID, from, to)
	if err != nil {
		if c.Logger != nil {
			c.Logger.WarnContext(ctx, "refresh availability after conflict", slog.String("product_id", req.ProductID), slog.Any("err", err))
		}
		return out
	}
	taken := make(map[string]bool, len(conflict.Dates))
	for _, d := range conflict.Dates {
		taken[daterange.FormatDay(d)] = true
	}
	for i := range view.Days {
		if taken[view.Days[i].Date] {
			view.Days[i].Status = string(domainavailability.StatusUnavailable)
		}
	}
	out.Refreshed = &view
	return out
}

// requestedEnd is the last day of a request, derived from its units when no
// end date was sent.
func requestedEnd(req QuoteRequest) string {
	if req.EndDate != "" {
		return req.EndDate
	}
	start, err := daterange.ParseDay(req.StartDate)
	if err != nil || req.Units <= 0 {
		return req.StartDate
	}
	tier, _ := pricing.ParseTier(req.Tier)
	end, err := pricing.EndDate(tier, start, req.Units)
	if err != nil {
		return req.StartDate
	}
	return daterange.FormatDay(end)
}

// decodeConflict reads the taken days from a 409 date_range_conflict body.
func decodeConflict(err error) (*domainavailability.ConflictError, bool) {
	var resp *upstream.ResponseError
	if err == nil || !errs.As(err, &resp) || resp.Status != http.StatusConflict {
		return nil, false
	}
	var body struct {
		Code  string   `json:"code"`
		Dates []string `json:"dates"`
	}
	if json.Unmarshal(resp.Body, &body) != nil || body.Code != "date_range_conflict" {
		return nil, false
	}
	conflict := &domainavailability.ConflictError{}
	for _, raw := range body.Dates {
		if d, err := daterange.ParseDay(raw); err == nil {
			conflict.Dates = append(conflict.Dates, d)
		}
	}
	return conflict, true
}

func (c *Client) Approve(ctx context.Context, id string) (dto.Rental, error) {
	return c.rentalAction(ctx, http.MethodPut, id, "approve", nil)
}

func (c *Client) Reject(ctx context.Context, id, reason string) (dto.Rental, error) {
	return c.rentalAction(ctx, http.MethodPut, id, "reject", map[string]string{"reason": reason})
}

func (c *Client) Cancel(ctx context.Context, id, reason string) (dto.Rental, error) {
	return c.rentalAction(ctx, http.MethodPut, id, "cancel", map[string]string{"reason": reason})
}

func (c *Client) Activate(ctx context.Context, id string) (dto.Rental, error) {
	return c.rentalAction(ctx, http.MethodPut, id, "activate", nil)
}

func (c *Client) InitiateReturn(ctx context.Context, id string) (dto.Rental, error) {
	return c.rentalAction(ctx, http.MethodPut, id, "initiate-return", nil)
}

func (c *Client) OpenDispute(ctx context.Context, id, reason string) (dto.Rental, error) {
	return c.rentalAction(ctx, http.MethodPost, id, "dispute", map[string]string{"reason": reason})
}

func (c *Client) ResolveDispute(ctx context.Context, id, resolution string) (dto.Rental, error) {
	return c.rentalAction(ctx, http.MethodPut, id, "resolve-dispute", map[string]string{"resolution": resolution})
}

func (c *Client) RecordRefund(ctx context.Context, id string, amount dto.MoneyDTO) (dto.Rental, error) {
	return c.rentalAction(ctx, http.MethodPut, id, "refund", map[string]dto.MoneyDTO{"amount": amount})
}

func (c *Client) VerifyPayment(ctx context.Context, id string, amount *dto.MoneyDTO, note string) (dto.Rental, error) {
	body := struct {
		Amount *dto.MoneyDTO `json:"amount,omitempty"`
		Note   string        `json:"note,omitempty"`
	}{amount, note}
	return c.rentalAction(ctx, http.MethodPut, id, "verify-payment", body)
}

func (c *Client) MarkSlipInvalid(ctx context.Context, id, reason string) (dto.Rental, error) {
	return c.rentalAction(ctx, http.MethodPost, id, "mark-slip-invalid", map[string]string{"reason": reason})
}

// SubmitPaymentProof uploads a transfer slip. amount is in minor units.
func (c *Client) SubmitPaymentProof(ctx context.Context, id, filename string, slip io.Reader, amount int64, currency string) (dto.Rental, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return dto.Rental{}, errs.Wrap(err, "client: build form")
	}
	if _, err := io.Copy(part, slip); err != nil {
		return dto.Rental{}, errs.Wrap(err, "client: read slip")
	}
	_ = w.WriteField("amount", strconv.FormatInt(amount, 10))
	if currency != "" {
		_ = w.WriteField("currency", currency)
	}
	if err := w.Close(); err != nil {
		return dto.Rental{}, errs.Wrap(err, "client: build form")
	}

	var out dto.Rental
	err = c.Guard.Do(ctx, "proof:"+id, func(ctx context.Context) error {
		header := c.writeHeader(w.FormDataContentType())
		return c.R.Send(ctx, http.MethodPut, rentalPath(id, "payment-proof"), header, buf.Bytes(), &out)
	})
	return out, err
}

func (c *Client) Reconciliation(ctx context.Context, id string) (dto.Reconciliation, error) {
	var out dto.Reconciliation
	err := c.R.GetJSON(ctx, rentalPath(id, "reconciliation"), nil, &out)
	return out, err
}

func (c *Client) PayoutMethods(ctx context.Context, ownerID string) (dto.PayoutMethods, error) {
	var out dto.PayoutMethods
	err := c.R.GetJSON(ctx, upstream.PathEscape(apiPrefix+"/owners/%s/payout-methods", ownerID), nil, &out)
	return out, err
}

// WatchRental polls the rental until its payment is no longer under
// verification. onUpdate sees every fetched version.
func (c *Client) WatchRental(ctx context.Context, id string, onUpdate func(dto.Rental)) (dto.Rental, error) {
	p := watch.Poller[dto.Rental]{
		Interval: c.Polling,
		Fetch: func(ctx context.Context) (dto.Rental, error) {
			return c.GetRental(ctx, id)
		},
		Settled:  dto.Rental.Settled,
		OnUpdate: onUpdate,
		OnError: func(err error) {
			if c.Logger != nil {
				c.Logger.Warn("watch rental", slog.String("rental_id", id), slog.Any("err", err))
			}
		},
	}
	return p.Run(ctx)
}

func (c *Client) rentalAction(ctx context.Context, method, id, action string, body any) (dto.Rental, error) {
	var out dto.Rental
	err := c.Guard.Do(ctx, action+":"+id, func(ctx context.Context) error {
		return c.sendJSON(ctx, method, rentalPath(id, action), body, &out)
	})
	return out, err
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errs.Wrap(err, "client: encode request")
		}
	}
	return c.R.Send(ctx, method, path, c.writeHeader("application/json"), payload, out)
}

func (c *Client) writeHeader(contentType string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	if c.NewKey != nil {
		h.Set("Idempotency-Key", c.NewKey())
	}
	return h
}

func rentalPath(id, action string) string {
	return upstream.PathEscape(apiPrefix+"/rentals/%s/", id) + action
}
