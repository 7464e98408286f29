package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/errs"
)

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := daterange.ParseDay(raw)
	require.NoError(t, err)
	return d
}

func TestCalendar_IsRangeAvailable(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("only unknown days stays available", func(t *testing.T) {
		cal := NewCalendar("p1")
		check := cal.IsRangeAvailable(daterange.Must(day(t, "2025-03-10"), day(t, "2025-03-12")))

		assert.True(t, check.Available)
		assert.Empty(t, check.UnavailableDates)
		assert.Len(t, check.UnknownDates, 3)
		assert.True(t, check.NeedsConfirmation())
	})

	t.Run("one unavailable day blocks the range", func(t *testing.T) {
		cal := NewCalendar("p1")
		cal.Merge([]Day{
			{Date: day(t, "2025-03-10"), Status: StatusAvailable},
			{Date: day(t, "2025-03-11"), Status: StatusUnavailable},
			{Date: day(t, "2025-03-12"), Status: StatusAvailable},
		}, now)

		check := cal.IsRangeAvailable(daterange.Must(day(t, "2025-03-10"), day(t, "2025-03-12")))

		assert.False(t, check.Available)
		assert.Equal(t, []time.Time{day(t, "2025-03-11")}, check.UnavailableDates)
		assert.False(t, check.NeedsConfirmation())
	})

	t.Run("days outside the range do not matter", func(t *testing.T) {
		cal := NewCalendar("p1")
		cal.MarkUnavailable(now, day(t, "2025-03-09"), day(t, "2025-03-13"))

		check := cal.IsRangeAvailable(daterange.Must(day(t, "2025-03-10"), day(t, "2025-03-12")))
		assert.True(t, check.Available)
	})
}

func TestCalendar_MergeKeepsKnownStatusOverUnknown(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cal := NewCalendar("p1")
	cal.MarkUnavailable(now, day(t, "2025-03-10"))

	cal.Merge([]Day{{Date: day(t, "2025-03-10"), Status: StatusUnknown}}, now)

	assert.Equal(t, StatusUnavailable, cal.Status(day(t, "2025-03-10")))
	assert.Equal(t, StatusUnknown, cal.Status(day(t, "2025-03-11")))
}

func TestCalendar_Resolve(t *testing.T) {
	cal := NewCalendar("p1")
	cal.Merge([]Day{{Date: day(t, "2025-03-10"), Status: StatusAvailable}}, time.Now())

	days := cal.Resolve(daterange.Must(day(t, "2025-03-10"), day(t, "2025-03-11")))

	require.Len(t, days, 2)
	assert.Equal(t, StatusAvailable, days[0].Status)
	assert.Equal(t, StatusUnknown, days[1].Status)
}

func TestValidateSelection(t *testing.T) {
	now := time.Date(2025, 3, 5, 15, 0, 0, 0, time.UTC)

	t.Run("end before start", func(t *testing.T) {
		_, err := ValidateSelection(day(t, "2025-03-10"), day(t, "2025-03-09"), now)
		assert.ErrorIs(t, err, ErrEndBeforeStart)
		assert.True(t, errs.Is(err, errs.ErrValidation))
	})

	t.Run("start in the past", func(t *testing.T) {
		_, err := ValidateSelection(day(t, "2025-03-04"), day(t, "2025-03-09"), now)
		assert.ErrorIs(t, err, ErrStartInPast)
	})

	t.Run("today is selectable", func(t *testing.T) {
		r, err := ValidateSelection(day(t, "2025-03-05"), day(t, "2025-03-05"), now)
		require.NoError(t, err)
		assert.Equal(t, 1, r.Days())
	})
}

func TestFromHolds(t *testing.T) {
	r := daterange.Must(day(t, "2025-03-10"), day(t, "2025-03-12"))
	holds := []daterange.DateRange{
		daterange.Must(day(t, "2025-03-09"), day(t, "2025-03-10")),
		daterange.Must(day(t, "2025-03-10"), day(t, "2025-03-11")),
	}

	t.Run("single unit", func(t *testing.T) {
		days := FromHolds(r, 1, holds)
		require.Len(t, days, 3)
		assert.Equal(t, StatusUnavailable, days[0].Status)
		assert.Equal(t, StatusUnavailable, days[1].Status)
		assert.Equal(t, StatusAvailable, days[2].Status)
	})

	t.Run("two units", func(t *testing.T) {
		days := FromHolds(r, 2, holds)
		assert.Equal(t, StatusUnavailable, days[0].Status)
		assert.Equal(t, StatusAvailable, days[1].Status)
	})

	t.Run("no inventory", func(t *testing.T) {
		for _, d := range FromHolds(r, 0, nil) {
			assert.Equal(t, StatusUnavailable, d.Status)
		}
	})
}

func TestOverlay(t *testing.T) {
	base := []Day{
		{Date: day(t, "2025-03-10"), Status: StatusAvailable},
		{Date: day(t, "2025-03-11"), Status: StatusAvailable},
		{Date: day(t, "2025-03-12"), Status: StatusAvailable},
	}
	other := []Day{
		{Date: day(t, "2025-03-10"), Status: StatusAvailable},
		{Date: day(t, "2025-03-11"), Status: StatusUnavailable},
	}

	out := Overlay(base, other)

	assert.Equal(t, StatusAvailable, out[0].Status)
	assert.Equal(t, StatusUnavailable, out[1].Status)
	assert.Equal(t, StatusUnknown, out[2].Status)
}

func TestCheck(t *testing.T) {
	days := []Day{
		{Date: day(t, "2025-03-10"), Status: StatusAvailable},
		{Date: day(t, "2025-03-11"), Status: StatusUnknown},
		{Date: day(t, "2025-03-12"), Status: StatusUnavailable},
	}

	rc := Check(days)

	assert.False(t, rc.Available)
	assert.Equal(t, []time.Time{day(t, "2025-03-12")}, rc.UnavailableDates)
	assert.True(t, rc.NeedsConfirmation())
	assert.True(t, Check(days[:2]).Available)
}

func TestConflictError(t *testing.T) {
	err := error(&ConflictError{Dates: []time.Time{day(t, "2025-03-11"), day(t, "2025-03-12")}})

	assert.ErrorIs(t, err, ErrDateRangeConflict)
	assert.True(t, errs.Is(err, errs.ErrDateRangeConflict))
	assert.Contains(t, err.Error(), "2025-03-11, 2025-03-12")
}
