package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/errs"
)

var (
	ErrEndBeforeStart = errs.Mark(errors.New("availability: end date is before start date"), errs.ErrValidation)
	ErrStartInPast    = errs.Mark(errors.New("availability: start date is in the past"), errs.ErrValidation)
	ErrInvalidStatus  = errs.Mark(errors.New("availability: invalid day status"), errs.ErrValidation)
)

type ProductID string

// DayStatus is the rendering class of a calendar day.
type DayStatus string

const (
	StatusAvailable   DayStatus = "available"
	StatusUnavailable DayStatus = "unavailable"
	StatusUnknown     DayStatus = "unknown"
)

func (s DayStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusUnavailable, StatusUnknown:
		return true
	default:
		return false
	}
}

func ParseDayStatus(raw string) (DayStatus, error) {
	s := DayStatus(raw)
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// Combine folds two observations of the same day. Unavailable wins over
// unknown, unknown wins over available.
func Combine(a, b DayStatus) DayStatus {
	if a == StatusUnavailable || b == StatusUnavailable {
		return StatusUnavailable
	}
	if a == StatusAvailable && b == StatusAvailable {
		return StatusAvailable
	}
	return StatusUnknown
}

type Day struct {
	Date   time.Time
	Status DayStatus
}

// Calendar tracks the per-day status of one product. Days never observed are unknown.
type Calendar struct {
	ProductID ProductID
	UpdatedAt time.Time
	days      map[string]DayStatus
}

// Cache keeps calendars between requests.
type Cache interface {
	Get(ctx context.Context, id ProductID) (*Calendar, bool)
	Put(ctx context.Context, calendar *Calendar) error
}

func NewCalendar(id ProductID) *Calendar {
	return &Calendar{ProductID: id, days: make(map[string]DayStatus)}
}

func (c *Calendar) Status(d time.Time) DayStatus {
	if s, ok := c.days[daterange.FormatDay(d)]; ok {
		return s
	}
	return StatusUnknown
}

func (c *Calendar) Set(d time.Time, status DayStatus) {
	if !status.Valid() {
		return
	}
	if c.days == nil {
		c.days = make(map[string]DayStatus)
	}
	if status == StatusUnknown {
		delete(c.days, daterange.FormatDay(d))
		return
	}
	c.days[daterange.FormatDay(d)] = status
}

// Merge overlays freshly fetched statuses. Unknown entries do not erase what is known.
func (c *Calendar) Merge(days []Day, now time.Time) {
	for _, d := range days {
		if d.Status == StatusUnknown {
			continue
		}
		c.Set(d.Date, d.Status)
	}
	c.UpdatedAt = now.UTC()
}

// MarkUnavailable records dates lost to a concurrent booking.
func (c *Calendar) MarkUnavailable(now time.Time, dates ...time.Time) {
	for _, d := range dates {
		c.Set(d, StatusUnavailable)
	}
	c.UpdatedAt = now.UTC()
}

// Resolve lists every day in the range with its rendering class.
func (c *Calendar) Resolve(r daterange.DateRange) []Day {
	out := make([]Day, 0, r.Days())
	r.Each(func(d time.Time) {
		out = append(out, Day{Date: d, Status: c.Status(d)})
	})
	return out
}

type RangeCheck struct {
	Available        bool
	UnavailableDates []time.Time
	UnknownDates     []time.Time
}

// NeedsConfirmation reports whether unknown days must be re-resolved before booking.
func (rc RangeCheck) NeedsConfirmation() bool {
	return len(rc.UnknownDates) > 0
}

// IsRangeAvailable walks the inclusive range. Only explicitly unavailable days block.
func (c *Calendar) IsRangeAvailable(r daterange.DateRange) RangeCheck {
	check := RangeCheck{Available: true}
	r.Each(func(d time.Time) {
		switch c.Status(d) {
		case StatusUnavailable:
			check.Available = false
			check.UnavailableDates = append(check.UnavailableDates, d)
		case StatusUnknown:
			check.UnknownDates = append(check.UnknownDates, d)
		}
	})
	return check
}

func (c *Calendar) Clone() *Calendar {
	out := &Calendar{ProductID: c.ProductID, UpdatedAt: c.UpdatedAt, days: make(map[string]DayStatus, len(c.days))}
	for k, v := range c.days {
		out.days[k] = v
	}
	return out
}

// KnownDays returns the explicitly known days in chronological order.
func (c *Calendar) KnownDays() []Day {
	out := make([]Day, 0, len(c.days))
	for k, v := range c.days {
		d, err := daterange.ParseDay(k)
		if err != nil {
			continue
		}
		out = append(out, Day{Date: d, Status: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// ValidateSelection rejects a selection before any range query is issued.
func ValidateSelection(start, end, now time.Time) (daterange.DateRange, error) {
	start, end = daterange.Day(start), daterange.Day(end)
	if end.Before(start) {
		return daterange.DateRange{}, ErrEndBeforeStart
	}
	if start.Before(daterange.Day(now)) {
		return daterange.DateRange{}, ErrStartInPast
	}
	return daterange.DateRange{Start: start, End: end}, nil
}

// FromHolds derives the local inventory view of a range: a day is unavailable once
// the number of holds covering it reaches quantity.
func FromHolds(r daterange.DateRange, quantity int, holds []daterange.DateRange) []Day {
	out := make([]Day, 0, r.Days())
	r.Each(func(d time.Time) {
		used := 0
		for _, h := range holds {
			if h.ContainsDay(d) {
				used++
			}
		}
		status := StatusAvailable
		if used >= quantity {
			status = StatusUnavailable
		}
		out = append(out, Day{Date: d, Status: status})
	})
	return out
}

// Overlay combines two day lists of the same range position by position.
func Overlay(base, other []Day) []Day {
	index := make(map[string]DayStatus, len(other))
	for _, d := range other {
		index[daterange.FormatDay(d.Date)] = d.Status
	}
	out := make([]Day, len(base))
	for i, d := range base {
		status := d.Status
		if s, ok := index[daterange.FormatDay(d.Date)]; ok {
			status = Combine(status, s)
		} else {
			status = Combine(status, StatusUnknown)
		}
		out[i] = Day{Date: d.Date, Status: status}
	}
	return out
}

// Check classifies a resolved day list the same way IsRangeAvailable does.
func Check(days []Day) RangeCheck {
	check := RangeCheck{Available: true}
	for _, d := range days {
		switch d.Status {
		case StatusUnavailable:
			check.Available = false
			check.UnavailableDates = append(check.UnavailableDates, d.Date)
		case StatusUnknown:
			check.UnknownDates = append(check.UnknownDates, d.Date)
		}
	}
	return check
}

var ErrDateRangeConflict = errs.Mark(errors.New("availability: dates no longer available"), errs.ErrDateRangeConflict)

// ConflictError lists the days that turned out to be taken when a booking was submitted.
type ConflictError struct {
	Dates []time.Time
}

func (e *ConflictError) Error() string {
	formatted := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		formatted = append(formatted, daterange.FormatDay(d))
	}
	return fmt.Sprintf("availability: dates no longer available: %s", strings.Join(formatted, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrDateRangeConflict
}
