package handler

import (
	"io"
	"time"

	"github.com/zidane123-web/payment/internal/adapter/http/dto"
	"github.com/zidane123-web/payment/internal/adapter/http/middleware"
	"github.com/zidane123-web/payment/internal/core/ports"
	"github.com/zidane123-web/payment/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler receives processor notifications.
type WebhookHandler struct {
	svc ports.ReconciliationService
	log zerolog.Logger
	now func() time.Time
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(svc ports.ReconciliationService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		svc: svc,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Receive handles POST /webhooks/kkiapay.
// Method and shared-secret checks run in middleware before this point.
func (h *WebhookHandler) Receive(c *gin.Context) {
	receivedAt := h.now()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn().Err(err).Msg("webhook body unreadable, treating as empty notification")
		body = nil
	}

	n := dto.ParseWebhook(body).Notification(receivedAt)

	rec, err := h.svc.HandleWebhook(c.Request.Context(), n)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxDocumentID, rec.ID)
	response.NoContent(c)
}
