package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"
	"github.com/zidane123-web/payment/internal/core/ports"
	"github.com/zidane123-web/payment/pkg/apperror"
	"github.com/zidane123-web/payment/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxRequestID  = "request_id"
	CtxSubject    = "subject"
	CtxDocumentID = "doc_id"
)

// RequestID assigns every request an ID, reusing a well-formed inbound X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// AllowMethods rejects any verb not listed with 405 before other checks run.
func AllowMethods(methods ...string) gin.HandlerFunc {
	allowed := strings.Join(methods, ", ")
	return func(c *gin.Context) {
		for _, m := range methods {
			if c.Request.Method == m {
				c.Next()
				return
			}
		}
		c.Header("Allow", allowed)
		response.AbortWithError(c, apperror.ErrMethodNotAllowed())
	}
}

// WebhookSecret authenticates the payment processor by the shared secret in header.
// Rejections are audited when auditSvc is non-nil.
func WebhookSecret(verifier ports.SecretVerifier, header string, auditSvc ports.AuditService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier.Verify(c.GetHeader(header)) {
			c.Next()
			return
		}

		log.Warn().
			Str("client_ip", c.ClientIP()).
			Bool("header_present", c.GetHeader(header) != "").
			Msg("webhook rejected: bad shared secret")
		if auditSvc != nil {
			auditSvc.Log(c.Request.Context(), &domain.AuditLog{
				ID:           uuid.New(),
				Action:       domain.AuditActionWebhookRejected,
				ResourceType: "webhook",
				IPAddress:    c.ClientIP(),
				CreatedAt:    time.Now().UTC(),
			})
		}
		response.AbortWithError(c, apperror.ErrInvalidWebhookSecret())
	}
}

// JWTAuth creates a middleware that validates bearer tokens for first-party clients.
func JWTAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.AbortWithError(c, apperror.ErrInvalidToken())
			return
		}

		claims, err := tokenSvc.Validate(authHeader[7:])
		if err != nil {
			log.Debug().Err(err).Msg("bearer token rejected")
			response.AbortWithError(c, apperror.ErrInvalidToken())
			return
		}

		c.Set(CtxSubject, claims.Subject)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.AbortWithError(c, apperror.New("SYS_001", "Internal server error", http.StatusInternalServerError))
			}
		}()
		c.Next()
	}
}

// MaxBodySize returns middleware that limits the request body size.
// Once the limit is exceeded the reader returns an error.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
