package handler

import (
	"strings"

	"github.com/zidane123-web/payment/internal/adapter/http/dto"
	"github.com/zidane123-web/payment/internal/adapter/http/middleware"
	"github.com/zidane123-web/payment/internal/core/ports"
	"github.com/zidane123-web/payment/pkg/apperror"
	"github.com/zidane123-web/payment/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler serves first-party clients.
type PaymentHandler struct {
	svc ports.ReconciliationService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc ports.ReconciliationService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// Verify handles POST /api/v1/payments/verify.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.InvalidArgument("request body must be a JSON object with transactionId"))
		return
	}

	txID := strings.TrimSpace(string(req.TransactionID))
	status, err := h.svc.VerifyTransaction(c.Request.Context(), txID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxDocumentID, txID)
	response.OK(c, dto.VerifyResponse{OK: true, Status: string(status)})
}

// Get handles GET /api/v1/payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	var uri dto.PaymentURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.InvalidArgument("invalid payment id"))
		return
	}

	rec, err := h.svc.GetPayment(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentResponse(rec))
}
