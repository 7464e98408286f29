package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentalcore/internal/app/commands"
	"rentalcore/internal/app/dto"
	paymentsapp "rentalcore/internal/app/handlers/payments"
	"rentalcore/internal/app/queries"
	"rentalcore/internal/domain/shared/money"
)

type PaymentHTTP interface {
	SubmitProof(c *gin.Context)
	Verify(c *gin.Context)
	MarkSlipInvalid(c *gin.Context)
	Reconciliation(c *gin.Context)
	PayoutMethods(c *gin.Context)
}

type PaymentHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

// SubmitProof takes a multipart form with the slip as "file" and the claimed
// amount in minor units as "amount".
func (h PaymentHandler) SubmitProof(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "file is required", Code: "validation"})
		return
	}
	claimed, err := parseAmount(c.PostForm("amount"), c.PostForm("currency"))
	if err != nil {
		badRequest(c, err)
		return
	}
	slip, err := readUpload(fileHeader)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	cmd := paymentsapp.SubmitPaymentProofCommand{
		Actor:           actor,
		RentalID:        c.Param("id"),
		Slip:            slip,
		Claimed:         claimed,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[paymentsapp.SubmitPaymentProofCommand, *dto.Rental](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

type verifyRequest struct {
	Amount *dto.MoneyDTO `json:"amount"`
	Note   string        `json:"note"`
}

func (h PaymentHandler) Verify(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req verifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	cmd := paymentsapp.VerifyPaymentCommand{
		Actor:           actor,
		RentalID:        c.Param("id"),
		Note:            req.Note,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	if req.Amount != nil {
		amount := req.Amount.Money()
		if amount.Currency == "" {
			amount.Currency = money.DefaultCurrency
		}
		cmd.Amount = &amount
	}
	result, err := commands.Dispatch[paymentsapp.VerifyPaymentCommand, *dto.Rental](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PaymentHandler) MarkSlipInvalid(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := paymentsapp.MarkSlipInvalidCommand{
		Actor:           actor,
		RentalID:        c.Param("id"),
		Reason:          req.Reason,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[paymentsapp.MarkSlipInvalidCommand, *dto.Rental](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PaymentHandler) Reconciliation(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	query := paymentsapp.GetReconciliationQuery{Actor: actor, RentalID: c.Param("id")}
	result, err := queries.Ask[paymentsapp.GetReconciliationQuery, dto.Reconciliation](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PaymentHandler) PayoutMethods(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	query := paymentsapp.ListPayoutMethodsQuery{Actor: actor, OwnerID: c.Param("id")}
	result, err := queries.Ask[paymentsapp.ListPayoutMethodsQuery, dto.PayoutMethods](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ PaymentHTTP = PaymentHandler{}
