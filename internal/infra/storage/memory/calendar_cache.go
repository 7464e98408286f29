package memory

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"

	domainavailability "rentalcore/internal/domain/availability"
)

const defaultCalendarTTL = 10 * time.Minute

// CalendarCache keeps product calendars in a bounded LRU. Stored values are
// copies so a caller mutating a calendar never races with another request.
type CalendarCache struct {
	cache *ccache.Cache[*domainavailability.Calendar]
	ttl   time.Duration
}

func NewCalendarCache(maxSize int64, ttl time.Duration) *CalendarCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = defaultCalendarTTL
	}
	return &CalendarCache{
		cache: ccache.New(ccache.Configure[*domainavailability.Calendar]().MaxSize(maxSize)),
		ttl:   ttl,
	}
}

func (c *CalendarCache) Get(ctx context.Context, id domainavailability.ProductID) (*domainavailability.Calendar, bool) {
	item := c.cache.Get(string(id))
	if item == nil || item.Expired() {
		return nil, false
	}
	return item.Value().Clone(), true
}

func (c *CalendarCache) Put(ctx context.Context, calendar *domainavailability.Calendar) error {
	c.cache.Set(string(calendar.ProductID), calendar.Clone(), c.ttl)
	return nil
}

func (c *CalendarCache) Stop() {
	c.cache.Stop()
}

var _ domainavailability.Cache = (*CalendarCache)(nil)
