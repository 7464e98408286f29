package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end date must not be before start date")
	ErrInvalidDay   = errors.New("daterange: day must be formatted as YYYY-MM-DD")
)

// DayLayout is the wire format of calendar days.
const DayLayout = "2006-01-02"

// Day truncates t to its calendar day at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a calendar day.
func ParseDay(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDay
	}
	return t, nil
}

// FormatDay renders a calendar day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return Day(t).Format(DayLayout)
}

// AddDays shifts a calendar day by n days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// DateRange represents an inclusive interval of calendar days [Start, End].
type DateRange struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: Day(start), End: Day(end)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Must builds a range and panics on invalid input; handy in tests.
func Must(start, end time.Time) DateRange {
	dr, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return dr
}

func (dr DateRange) Validate() error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ErrInvalidRange
	}
	if dr.End.Before(dr.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Days counts calendar days including both ends. It works on day numbers
// rather than durations, which saturate after about 292 years.
func (dr DateRange) Days() int {
	return int(dayNumber(dr.End)-dayNumber(dr.Start)) + 1
}

// dayNumber is the proleptic Gregorian day count since 0000-03-01.
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	year := int64(y)
	if m <= time.February {
		year--
	}
	era := year / 400
	if year < 0 {
		era = (year - 399) / 400
	}
	yoe := year - era*400
	doy := (153*((int64(m)+9)%12)+2)/5 + int64(d) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe
}

// Each calls fn for every day of the range in order.
func (dr DateRange) Each(fn func(d time.Time)) {
	for d := Day(dr.Start); !d.After(Day(dr.End)); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}

// List returns every day of the range.
func (dr DateRange) List() []time.Time {
	out := make([]time.Time, 0, dr.Days())
	dr.Each(func(d time.Time) { out = append(out, d) })
	return out
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return !dr.Start.After(other.End) && !other.Start.After(dr.End)
}

func (dr DateRange) Contains(other DateRange) bool {
	return !other.Start.Before(dr.Start) && !other.End.After(dr.End)
}

func (dr DateRange) ContainsDay(t time.Time) bool {
	t = Day(t)
	return !t.Before(dr.Start) && !t.After(dr.End)
}

func (dr DateRange) String() string {
	return FormatDay(dr.Start) + ".." + FormatDay(dr.End)
}
