package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/internal/model/dto"
	"github.com/nevera/nevera_server/internal/pkg/response"
	"github.com/nevera/nevera_server/internal/service"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
	log            zerolog.Logger
}

func NewPaymentHandler(paymentService *service.PaymentService, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		log:            log,
	}
}

// Notify ingests one payment-platform notification. Malformed bodies
// are the only 400; business rejections (bad concept, unknown code,
// wrong amount) answer 200 so the platform does not keep retrying a
// payment we already recorded as failed.
// POST /webhook/payment
func (h *PaymentHandler) Notify(c *gin.Context) {
	var notification dto.PaymentNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	err := h.paymentService.Reconcile(c.Request.Context(), &notification)
	switch {
	case err == nil:
		response.Success(c, gin.H{"status": "completed"})
	case errors.Is(err, service.ErrDuplicateTransaction):
		response.Success(c, gin.H{"status": "duplicate"})
	case errors.Is(err, service.ErrBadConcept),
		errors.Is(err, service.ErrUnknownUserCode),
		errors.Is(err, service.ErrUnknownAmount):
		response.Success(c, gin.H{"status": "rejected", "reason": err.Error()})
	default:
		h.log.Error().Err(err).Str("transaction_id", notification.TransactionID).Msg("reconciliation failed")
		response.ServerError(c, "")
	}
}
