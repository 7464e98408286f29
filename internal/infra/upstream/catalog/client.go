package catalog

import (
	"context"
	"net/url"

	"rentalcore/internal/app/policies"
	domainavailability "rentalcore/internal/domain/availability"
	domainpayment "rentalcore/internal/domain/payment"
	domainpricing "rentalcore/internal/domain/pricing"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/infra/upstream"
	"rentalcore/internal/pkg/errs"
)

// Client talks to the marketplace catalogue service.
type Client struct {
	R *upstream.Requester
}

func NewClient(r *upstream.Requester) *Client {
	return &Client{R: r}
}

type productResponse struct {
	ID      string              `json:"id"`
	OwnerID string              `json:"owner_id"`
	Title   string              `json:"title"`
	Active  bool                `json:"active"`
	Tiers   domainpricing.Tiers `json:"tiers"`
}

type dayResponse struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

type availabilityResponse struct {
	ProductID string        `json:"product_id"`
	Days      []dayResponse `json:"days"`
}

type payoutResponse struct {
	OwnerID string                       `json:"owner_id"`
	Methods []domainpayment.PayoutMethod `json:"methods"`
}

func (c *Client) Product(ctx context.Context, id string) (policies.Product, error) {
	var resp productResponse
	if err := c.R.GetJSON(ctx, upstream.PathEscape("/products/%s", id), nil, &resp); err != nil {
		if errs.Is(err, upstream.ErrNotFound) {
			return policies.Product{}, errs.WithSecondary(policies.ErrProductNotFound, err)
		}
		return policies.Product{}, err
	}
	if err := resp.Tiers.Validate(); err != nil {
		return policies.Product{}, errs.Wrapf(err, "catalog: product %s", id)
	}
	return policies.Product{
		ID:      resp.ID,
		OwnerID: resp.OwnerID,
		Title:   resp.Title,
		Active:  resp.Active,
		Tiers:   resp.Tiers,
	}, nil
}

// Availability maps the catalogue's day list. Days the catalogue omits or
// labels with an unrecognised status stay unknown.
func (c *Client) Availability(ctx context.Context, productID string, r daterange.DateRange) ([]domainavailability.Day, error) {
	q := url.Values{}
	q.Set("from", daterange.FormatDay(r.Start))
	q.Set("to", daterange.FormatDay(r.End))
	var resp availabilityResponse
	if err := c.R.GetJSON(ctx, upstream.PathEscape("/products/%s/availability", productID), q, &resp); err != nil {
		if errs.Is(err, upstream.ErrNotFound) {
			return nil, errs.WithSecondary(policies.ErrProductNotFound, err)
		}
		return nil, err
	}
	out := make([]domainavailability.Day, 0, len(resp.Days))
	for _, d := range resp.Days {
		date, err := daterange.ParseDay(d.Date)
		if err != nil || !r.ContainsDay(date) {
			continue
		}
		status, err := domainavailability.ParseDayStatus(d.Status)
		if err != nil {
			status = domainavailability.StatusUnknown
		}
		out = append(out, domainavailability.Day{Date: date, Status: status})
	}
	return out, nil
}

func (c *Client) PayoutMethods(ctx context.Context, ownerID string) ([]domainpayment.PayoutMethod, error) {
	var resp payoutResponse
	err := c.R.GetJSON(ctx, upstream.PathEscape("/owners/%s/payout-methods", ownerID), nil, &resp)
	if errs.Is(err, upstream.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.Methods, nil
}

var (
	_ policies.Catalog         = (*Client)(nil)
	_ policies.PayoutDirectory = (*Client)(nil)
)
