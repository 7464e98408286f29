package feeschedule

import (
	"context"

	"rentalcore/internal/domain/fees"
	"rentalcore/internal/infra/upstream"
	"rentalcore/internal/pkg/errs"
)

// Client fetches the platform fee schedule from the fee service.
type Client struct {
	R *upstream.Requester
}

func NewClient(r *upstream.Requester) *Client {
	return &Client{R: r}
}

// Current returns the live schedule. Any failure, including a schedule that
// does not validate, surfaces as fees.ErrScheduleUnavailable.
func (c *Client) Current(ctx context.Context) (fees.Schedule, error) {
	var schedule fees.Schedule
	if err := c.R.GetJSON(ctx, "/fee-schedule", nil, &schedule); err != nil {
		return fees.Schedule{}, errs.WithSecondary(fees.ErrScheduleUnavailable, err)
	}
	if err := schedule.Validate(); err != nil {
		return fees.Schedule{}, errs.WithSecondary(fees.ErrScheduleUnavailable, err)
	}
	return schedule, nil
}

// Static serves a fixed schedule, loaded from configuration.
type Static struct {
	Schedule fees.Schedule
}

func (s Static) Current(context.Context) (fees.Schedule, error) {
	return s.Schedule, nil
}

var (
	_ fees.ScheduleSource = (*Client)(nil)
	_ fees.ScheduleSource = Static{}
)
