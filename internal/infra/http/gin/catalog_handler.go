package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentalcore/internal/app/dto"
	availabilityapp "rentalcore/internal/app/handlers/availability"
	quotesapp "rentalcore/internal/app/handlers/quotes"
	"rentalcore/internal/app/queries"
	"rentalcore/internal/domain/shared/daterange"
	"rentalcore/internal/pkg/errs"
)

type CatalogHTTP interface {
	Availability(c *gin.Context)
	Quote(c *gin.Context)
}

type CatalogHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h CatalogHandler) Availability(c *gin.Context) {
	from, err := parseDayParam(c.Query("from"), "from")
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := parseDayParam(c.Query("to"), "to")
	if err != nil {
		badRequest(c, err)
		return
	}
	query := availabilityapp.GetAvailabilityQuery{ProductID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[availabilityapp.GetAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type quoteRequest struct {
	ProductID    string `json:"product_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Tier         string `json:"tier"`
	Units        int    `json:"units"`
	PickupMethod string `json:"pickup_method"`
}

// intent converts the request. end_date may be omitted when units are given.
func (r quoteRequest) intent() (quotesapp.Intent, error) {
	start, err := parseDayParam(r.StartDate, "start_date")
	if err != nil {
		return quotesapp.Intent{}, err
	}
	var end time.Time
	if r.EndDate != "" || r.Units == 0 {
		if end, err = parseDayParam(r.EndDate, "end_date"); err != nil {
			return quotesapp.Intent{}, err
		}
	}
	return quotesapp.Intent{
		ProductID:    r.ProductID,
		Start:        start,
		End:          end,
		Tier:         r.Tier,
		Units:        r.Units,
		PickupMethod: r.PickupMethod,
	}, nil
}

func (h CatalogHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	intent, err := req.intent()
	if err != nil {
		badRequest(c, err)
		return
	}
	result, err := queries.Ask[quotesapp.GetQuoteQuery, dto.Quote](c.Request.Context(), h.Queries, quotesapp.GetQuoteQuery{Intent: intent})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseDayParam(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errs.Newf("%s is required", name)
	}
	day, err := daterange.ParseDay(raw)
	if err != nil {
		return time.Time{}, errs.Wrapf(err, "invalid %s", name)
	}
	return day, nil
}

var _ CatalogHTTP = CatalogHandler{}
