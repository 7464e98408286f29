package errs

import cr "github.com/cockroachdb/errors"

// Error categories shared across layers. Domain sentinels are marked with one of
// these so transports can map them without knowing every package.
var (
	ErrValidation          = cr.New("validation error")
	ErrDateRangeConflict   = cr.New("date range conflict")
	ErrDurationOutOfRange  = cr.New("duration out of range")
	ErrInvalidTransition   = cr.New("invalid transition")
	ErrUpstreamUnavailable = cr.New("upstream unavailable")
	ErrNotFound            = cr.New("not found")
	ErrForbidden           = cr.New("forbidden")
	ErrConcurrentUpdate    = cr.New("concurrent update")
)

var categories = []error{
	ErrValidation,
	ErrDateRangeConflict,
	ErrDurationOutOfRange,
	ErrInvalidTransition,
	ErrUpstreamUnavailable,
	ErrNotFound,
	ErrForbidden,
	ErrConcurrentUpdate,
}

// CategoryOf returns the first category err is marked with, or nil.
func CategoryOf(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range categories {
		if cr.Is(err, c) {
			return c
		}
	}
	return nil
}

// CategoryByName resolves a category from its message, as stored by CategoryOf(err).Error().
func CategoryByName(name string) error {
	for _, c := range categories {
		if c.Error() == name {
			return c
		}
	}
	return nil
}

// Transient reports errors worth retrying with the same input.
func Transient(err error) bool {
	return cr.Is(err, ErrUpstreamUnavailable) || cr.Is(err, ErrConcurrentUpdate)
}
