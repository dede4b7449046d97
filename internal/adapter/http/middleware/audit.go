package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"
	"github.com/zidane123-web/payment/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that records successful reconciliation writes.
// Handlers publish the affected document ID under CtxDocumentID.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath())
		if action == "" {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(CtxDocumentID),
			Actor:        c.GetString(CtxSubject),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(route string) (domain.AuditAction, string) {
	switch route {
	case "/webhooks/kkiapay":
		return domain.AuditActionWebhookReceived, "payment"
	case "/api/v1/payments/verify":
		return domain.AuditActionPaymentVerified, "payment"
	}
	return "", ""
}
