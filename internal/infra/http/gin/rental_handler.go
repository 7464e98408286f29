package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/dto"
	rentalsapp "rentalcore/internal/app/handlers/rentals"
	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/app/queries"
	"rentalcore/internal/domain/shared/money"
)

type RentalHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
	Cancel(c *gin.Context)
	Activate(c *gin.Context)
	InitiateReturn(c *gin.Context)
	ConfirmReturn(c *gin.Context)
	OpenDispute(c *gin.Context)
	ResolveDispute(c *gin.Context)
	RecordRefund(c *gin.Context)
}

type RentalHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h RentalHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
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
	cmd := rentalsapp.CreateRentalCommand{
		Actor:           actor,
		Intent:          intent,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[rentalsapp.CreateRentalCommand, *dto.Rental](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h RentalHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	query := rentalsapp.GetRentalQuery{Actor: actor, RentalID: c.Param("id")}
	result, err := queries.Ask[rentalsapp.GetRentalQuery, dto.Rental](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h RentalHandler) Approve(c *gin.Context) {
	target, ok := h.target(c)
	if !ok {
		return
	}
	dispatchRental(c, h, rentalsapp.ApproveRentalCommand{Target: target})
}

func (h RentalHandler) Reject(c *gin.Context) {
	target, ok := h.target(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatchRental(c, h, rentalsapp.RejectRentalCommand{Target: target, Reason: req.Reason})
}

// Cancel accepts an empty body; the reason is optional.
func (h RentalHandler) Cancel(c *gin.Context) {
	target, ok := h.target(c)
	if !ok {
		return
	}
	var req reasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	dispatchRental(c, h, rentalsapp.CancelRentalCommand{Target: target, Reason: req.Reason})
}

func (h RentalHandler) Activate(c *gin.Context) {
	target, ok := h.target(c)
	if !ok {
		return
	}
	dispatchRental(c, h, rentalsapp.ActivateRentalCommand{Target: target})
}

func (h RentalHandler) InitiateReturn(c *gin.Context) {
	target, ok := h.target(c)
	if !ok {
		return
	}
	dispatchRental(c, h, rentalsapp.InitiateReturnCommand{Target: target})
}

// ConfirmReturn takes a multipart form: condition, notes, initiate_claim,
// late_fee (minor units) and any number of "images" files.
func (h RentalHandler) ConfirmReturn(c *gin.Context) {
	target, ok := h.target(c)
	if !ok {
		return
	}
	if err := c.Request.ParseMultipartForm(int64(support.MaxUploadBytes)); err != nil && err != http.ErrNotMultipart {
		badRequest(c, err)
		return
	}
	cmd := rentalsapp.ConfirmReturnCommand{
		Target:    target,
		Condition: strings.TrimSpace(c.PostForm("condition")),
		Notes:     c.PostForm("notes"),
	}
	if raw := c.PostForm("initiate_claim"); raw != "" {
		claim, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		cmd.InitiateClaim = claim
	}
	if raw := c.PostForm("late_fee"); raw != "" {
		fee, err := parseAmount(raw, c.PostForm("currency"))
		if err != nil {
			badRequest(c, err)
			return
		}
		cmd.LateFee = &fee
	}
	if form := c.Request.MultipartForm; form != nil {
		for _, fh := range form.File["images"] {
			upload, err := readUpload(fh)
			if err != nil {
				respondError(c, h.Logger, err)
				return
			}
			cmd.Images = append(cmd.Images, upload)
		}
	}
	dispatchRental(c, h, cmd)
}

func (h RentalHandler) OpenDispute(c *gin.Context) {
	target, ok := h.target(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatchRental(c, h, rentalsapp.OpenDisputeCommand{Target: target, Reason: req.Reason})
}

func (h RentalHandler) ResolveDispute(c *gin.Context) {
	target, ok := h.target(c)
	if !ok {
		return
	}
	var req struct {
		Resolution string `json:"resolution"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dispatchRental(c, h, rentalsapp.ResolveDisputeCommand{Target: target, Resolution: req.Resolution})
}

func (h RentalHandler) RecordRefund(c *gin.Context) {
	target, ok := h.target(c)
	if !ok {
		return
	}
	var req struct {
		Amount dto.MoneyDTO `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount := req.Amount.Money()
	if amount.Currency == "" {
		amount.Currency = money.DefaultCurrency
	}
	dispatchRental(c, h, rentalsapp.RecordRefundCommand{Target: target, Amount: amount})
}

func (h RentalHandler) target(c *gin.Context) (rentalsapp.Target, bool) {
	actor, ok := requireActor(c)
	if !ok {
		return rentalsapp.Target{}, false
	}
	return rentalsapp.Target{
		Actor:           actor,
		RentalID:        c.Param("id"),
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}, true
}

func dispatchRental[C commands.Command](c *gin.Context, h RentalHandler, cmd C) {
	result, err := commands.Dispatch[C, *dto.Rental](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ RentalHTTP = RentalHandler{}
