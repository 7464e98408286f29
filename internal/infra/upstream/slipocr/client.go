package slipocr

import (
	"context"
	"strings"
	"time"

	"rentalcore/internal/app/policies"
	domainpayment "rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/infra/upstream"
	"rentalcore/internal/pkg/errs"
)

// Client sends slip images to the OCR service.
type Client struct {
	R        *upstream.Requester
	Currency string
}

func NewClient(r *upstream.Requester) *Client {
	return &Client{R: r, Currency: money.DefaultCurrency}
}

type verifyRequest struct {
	ImageURL string `json:"image_url"`
}

// verifyResponse is the OCR output. Amount is in minor units; the transfer
// time is RFC 3339 or a plain YYYY-MM-DD day.
type verifyResponse struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	TransferDate  string `json:"transfer_date"`
}

// ReadSlip is a POST and is never retried; the caller decides what a failed
// read means for the payment.
func (c *Client) ReadSlip(ctx context.Context, imageURL string) (domainpayment.SlipRecord, error) {
	var resp verifyResponse
	if err := c.R.PostJSON(ctx, "/verify-slip", verifyRequest{ImageURL: imageURL}, &resp); err != nil {
		return domainpayment.SlipRecord{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(resp.Currency))
	if currency == "" {
		currency = c.currency()
	}
	amount, err := money.New(resp.Amount, currency)
	if err != nil {
		return domainpayment.SlipRecord{}, errs.WithSecondary(domainpayment.ErrInvalidSlip, err)
	}
	at, err := parseTransferDate(resp.TransferDate)
	if err != nil {
		return domainpayment.SlipRecord{}, errs.WithSecondary(domainpayment.ErrInvalidSlip, err)
	}
	return domainpayment.SlipRecord{
		AccountName:   resp.AccountName,
		AccountNumber: resp.AccountNumber,
		BankName:      resp.BankName,
		Amount:        amount,
		TransferDate:  at,
	}, nil
}

func (c *Client) currency() string {
	if c.Currency != "" {
		return c.Currency
	}
	return money.DefaultCurrency
}

func parseTransferDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errs.Newf("slipocr: unparseable transfer date %q", raw)
	}
	return t.UTC(), nil
}

// Unconfigured reports every slip as unreadable, leaving payments for manual review.
type Unconfigured struct{}

func (Unconfigured) ReadSlip(context.Context, string) (domainpayment.SlipRecord, error) {
	return domainpayment.SlipRecord{}, errs.Mark(errs.New("slipocr: service not configured"), errs.ErrUpstreamUnavailable)
}

var (
	_ policies.SlipReader = (*Client)(nil)
	_ policies.SlipReader = Unconfigured{}
)
