package dto

import (
	domainavailability "rentalcore/internal/domain/availability"
	"rentalcore/internal/domain/shared/daterange"
)

type AvailabilityDay struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

type Availability struct {
	ProductID string            `json:"product_id"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Days      []AvailabilityDay `json:"days"`
	// Partial is set when the catalogue could not be reached and unknown days were not refreshed.
	Partial bool `json:"partial,omitempty"`
}

type RangeCheck struct {
	Available        bool     `json:"available"`
	UnavailableDates []string `json:"unavailable_dates,omitempty"`
	UnknownDates     []string `json:"unknown_dates,omitempty"`
}

func MapAvailability(productID string, r daterange.DateRange, days []domainavailability.Day, partial bool) Availability {
	out := Availability{
		ProductID: productID,
		From:      daterange.FormatDay(r.Start),
		To:        daterange.FormatDay(r.End),
		Days:      make([]AvailabilityDay, 0, len(days)),
		Partial:   partial,
	}
	for _, d := range days {
		out.Days = append(out.Days, AvailabilityDay{Date: daterange.FormatDay(d.Date), Status: string(d.Status)})
	}
	return out
}

func MapRangeCheck(rc domainavailability.RangeCheck) RangeCheck {
	out := RangeCheck{Available: rc.Available}
	for _, d := range rc.UnavailableDates {
		out.UnavailableDates = append(out.UnavailableDates, daterange.FormatDay(d))
	}
	for _, d := range rc.UnknownDates {
		out.UnknownDates = append(out.UnknownDates, daterange.FormatDay(d))
	}
	return out
}
