package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"
	"github.com/zidane123-web/payment/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_WebhookReceived(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	done := make(chan struct{})
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, entry *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionWebhookReceived, entry.Action)
			assert.Equal(t, "payment", entry.ResourceType)
			assert.Equal(t, "tx1", entry.ResourceID)
			assert.Empty(t, entry.Actor)

			var details map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(entry.Details), &details))
			assert.Equal(t, float64(http.StatusNoContent), details["status"])
			close(done)
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/webhooks/kkiapay", func(c *gin.Context) {
		c.Set(CtxDocumentID, "tx1")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/kkiapay", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("audit not called")
	}
}

func TestAuditLog_PaymentVerifiedCarriesActor(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionPaymentVerified, entry.Action)
		assert.Equal(t, "app-user-1", entry.Actor)
		assert.Equal(t, "tx9", entry.ResourceID)
	})

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/payments/verify", func(c *gin.Context) {
		c.Set(CtxSubject, "app-user-1")
		c.Set(CtxDocumentID, "tx9")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLog_SkipsGET(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.GET("/api/v1/payments/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/tx1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLog_SkipsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/payments/verify", func(c *gin.Context) {
		c.JSON(http.StatusBadGateway, gin.H{"error_code": "PAY_001"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAuditLog_SkipsUnmappedRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/other", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/other", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
