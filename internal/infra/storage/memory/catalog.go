package memory

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"rentalcore/internal/app/policies"
	domainavailability "rentalcore/internal/domain/availability"
	domainpayment "rentalcore/internal/domain/payment"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/errs"
)

// CatalogProduct is a product as the fixture catalogue knows it. Days after
// KnownUntil are reported as unknown.
type CatalogProduct struct {
	policies.Product
	Blocked    map[string]bool
	KnownUntil time.Time
}

// Catalog is a fixture-backed stand-in for the marketplace catalogue and
// payout directory, used in local mode and tests.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]*CatalogProduct
	payouts  map[string][]domainpayment.PayoutMethod
	outage   error
}

func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string]*CatalogProduct),
		payouts:  make(map[string][]domainpayment.PayoutMethod),
	}
}

func (c *Catalog) PutProduct(p policies.Product, knownUntil time.Time, blocked ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := &CatalogProduct{Product: p, Blocked: make(map[string]bool), KnownUntil: daterange.Day(knownUntil)}
	for _, d := range blocked {
		entry.Blocked[daterange.FormatDay(d)] = true
	}
	c.products[p.ID] = entry
}

// Block marks days as taken, as if another channel booked them.
func (c *Catalog) Block(productID string, days ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return
	}
	for _, d := range days {
		p.Blocked[daterange.FormatDay(d)] = true
	}
}

func (c *Catalog) PutPayoutMethods(ownerID string, methods ...domainpayment.PayoutMethod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payouts[ownerID] = append([]domainpayment.PayoutMethod(nil), methods...)
}

// SetOutage makes every call fail with err until it is cleared with nil.
func (c *Catalog) SetOutage(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outage = err
}

func (c *Catalog) Product(ctx context.Context, id string) (policies.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.outage != nil {
		return policies.Product{}, errs.Mark(c.outage, errs.ErrUpstreamUnavailable)
	}
	p, ok := c.products[id]
	if !ok {
		return policies.Product{}, policies.ErrProductNotFound
	}
	return p.Product, nil
}

func (c *Catalog) Availability(ctx context.Context, productID string, r daterange.DateRange) ([]domainavailability.Day, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.outage != nil {
		return nil, errs.Mark(c.outage, errs.ErrUpstreamUnavailable)
	}
	p, ok := c.products[productID]
	if !ok {
		return nil, policies.ErrProductNotFound
	}
	out := make([]domainavailability.Day, 0, r.Days())
	r.Each(func(d time.Time) {
		status := domainavailability.StatusAvailable
		switch {
		case p.Blocked[daterange.FormatDay(d)]:
			status = domainavailability.StatusUnavailable
		case !p.KnownUntil.IsZero() && d.After(p.KnownUntil):
			status = domainavailability.StatusUnknown
		}
		out = append(out, domainavailability.Day{Date: d, Status: status})
	})
	return out, nil
}

func (c *Catalog) PayoutMethods(ctx context.Context, ownerID string) ([]domainpayment.PayoutMethod, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.outage != nil {
		return nil, errs.Mark(c.outage, errs.ErrUpstreamUnavailable)
	}
	return append([]domainpayment.PayoutMethod(nil), c.payouts[ownerID]...), nil
}

type catalogFixture struct {
	Products []productFixture                        `json:"products"`
	Payouts  map[string][]domainpayment.PayoutMethod `json:"payout_methods"`
}

type productFixture struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Title      string          `json:"title"`
	Active     bool            `json:"active"`
	Tiers      json.RawMessage `json:"tiers"`
	Blocked    []string        `json:"blocked"`
	KnownUntil string          `json:"known_until"`
}

// LoadFixtures reads a JSON catalogue file. It returns the number of products imported.
func (c *Catalog) LoadFixtures(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errs.Wrap(err, "read catalog fixtures")
	}
	var fx catalogFixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return 0, errs.Wrap(err, "decode catalog fixtures")
	}
	for _, pf := range fx.Products {
		p := policies.Product{ID: pf.ID, OwnerID: pf.OwnerID, Title: pf.Title, Active: pf.Active}
		if err := json.Unmarshal(pf.Tiers, &p.Tiers); err != nil {
			return 0, errs.Wrapf(err, "decode tiers of %s", pf.ID)
		}
		if err := p.Tiers.Validate(); err != nil {
			return 0, errs.Wrapf(err, "product %s", pf.ID)
		}
		var knownUntil time.Time
		if pf.KnownUntil != "" {
			if knownUntil, err = daterange.ParseDay(pf.KnownUntil); err != nil {
				return 0, errs.Wrapf(err, "known_until of %s", pf.ID)
			}
		}
		blocked := make([]time.Time, 0, len(pf.Blocked))
		for _, raw := range pf.Blocked {
			d, err := daterange.ParseDay(raw)
			if err != nil {
				return 0, errs.Wrapf(err, "blocked day of %s", pf.ID)
			}
			blocked = append(blocked, d)
		}
		c.PutProduct(p, knownUntil, blocked...)
	}
	for owner, methods := range fx.Payouts {
		c.PutPayoutMethods(owner, methods...)
	}
	return len(fx.Products), nil
}

var (
	_ policies.Catalog         = (*Catalog)(nil)
	_ policies.PayoutDirectory = (*Catalog)(nil)
)
