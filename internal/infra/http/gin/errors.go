package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	domainavailability "rentalcore/internal/domain/availability"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/errs"
)

type errorResponse struct {
	Error string   `json:"error"`
	Code  string   `json:"code,omitempty"`
	Dates []string `json:"dates,omitempty"`
}

// statusFor maps an error category to its HTTP status.
func statusFor(err error) (int, string) {
	switch cat := errs.CategoryOf(err); cat {
	case errs.ErrValidation:
		return http.StatusBadRequest, "validation"
	case errs.ErrDateRangeConflict:
		return http.StatusConflict, "date_range_conflict"
	case errs.ErrDurationOutOfRange:
		return http.StatusUnprocessableEntity, "duration_out_of_range"
	case errs.ErrInvalidTransition:
		return http.StatusInternalServerError, "invalid_transition"
	case errs.ErrUpstreamUnavailable:
		return http.StatusServiceUnavailable, "upstream_unavailable"
	case errs.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case errs.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case errs.ErrConcurrentUpdate:
		return http.StatusConflict, "concurrent_update"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError writes err as JSON. Uncategorised failures and invalid
// transitions are logged with their stack; their message is not exposed.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	body := errorResponse{Error: err.Error(), Code: code}

	var conflict *domainavailability.ConflictError
	if errs.As(err, &conflict) {
		for _, d := range conflict.Dates {
			body.Dates = append(body.Dates, daterange.FormatDay(d))
		}
	}

	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(c.Request.Context(), "request failed",
			"code", code,
			"path", c.FullPath(),
			"error", err,
			"stack", errs.ExtractStackLines(err, 8),
		)
		if code == "internal" {
			body.Error = "internal error"
		}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation"})
}
