package memory

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"

	"rentalcore/internal/domain/fees"
)

const scheduleKey = "fee-schedule"

// ScheduleCache fronts a fee schedule source. Expired entries are refetched;
// a failed refetch is reported rather than served from the stale copy.
type ScheduleCache struct {
	Source fees.ScheduleSource
	cache  *ccache.Cache[fees.Schedule]
	ttl    time.Duration
}

func NewScheduleCache(src fees.ScheduleSource, ttl time.Duration) *ScheduleCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ScheduleCache{
		Source: src,
		cache:  ccache.New(ccache.Configure[fees.Schedule]().MaxSize(8)),
		ttl:    ttl,
	}
}

func (c *ScheduleCache) Current(ctx context.Context) (fees.Schedule, error) {
	if item := c.cache.Get(scheduleKey); item != nil && !item.Expired() {
		return item.Value(), nil
	}
	if c.Source == nil {
		return fees.Schedule{}, fees.ErrScheduleUnavailable
	}
	schedule, err := c.Source.Current(ctx)
	if err != nil {
		return fees.Schedule{}, err
	}
	c.cache.Set(scheduleKey, schedule, c.ttl)
	return schedule, nil
}

// Invalidate drops the cached schedule.
func (c *ScheduleCache) Invalidate() {
	c.cache.Delete(scheduleKey)
}

func (c *ScheduleCache) Stop() {
	c.cache.Stop()
}

var _ fees.ScheduleSource = (*ScheduleCache)(nil)
