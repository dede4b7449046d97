package handler

import (
	"time"

	"github.com/zidane123-web/payment/internal/adapter/http/middleware"
	"github.com/zidane123-web/payment/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	WebhookPath = "/webhooks/kkiapay"

	maxBodyBytes = 1 << 20
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	ReconcileSvc   ports.ReconciliationService
	SecretVerifier ports.SecretVerifier
	WebhookHeader  string
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	TrustedProxies []string           // empty = forwarding headers ignored
	Logger         zerolog.Logger
	Now            func() time.Time // nil = time.Now
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Client IPs key the webhook rate limit, so forwarding headers are only
	// honoured from configured proxies.
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		deps.Logger.Error().Err(err).Msg("Invalid trusted proxies, ignoring forwarding headers")
		_ = r.SetTrustedProxies(nil)
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Processor webhook (shared secret) ---
	webhookHandler := NewWebhookHandler(deps.ReconcileSvc, deps.Logger)
	if deps.Now != nil {
		webhookHandler.now = deps.Now
	}
	r.Any(WebhookPath,
		middleware.AllowMethods("POST"),
		rl("webhook"),
		middleware.WebhookSecret(deps.SecretVerifier, deps.WebhookHeader, deps.AuditSvc, deps.Logger),
		webhookHandler.Receive,
	)

	// --- First-party clients (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	paymentHandler := NewPaymentHandler(deps.ReconcileSvc)
	payments := r.Group("/api/v1/payments", jwtAuth)
	{
		payments.POST("/verify", rl("verify"), paymentHandler.Verify)
		payments.GET("/:id", rl("payments_read"), paymentHandler.Get)
	}

	return r
}
