package ports

import (
	"context"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"
)

// VerificationClient asks the payment processor for the status of a transaction.
// A single attempt is made; callers decide how to treat failure.
type VerificationClient interface {
	Verify(ctx context.Context, transactionID string) (*domain.Verification, error)
}

// VerificationCache remembers settled verifications so webhook retries skip the remote call.
type VerificationCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, transactionID string) (*domain.Verification, error)
	Set(ctx context.Context, transactionID string, v *domain.Verification, ttl time.Duration) error
}

// StatusPublisher announces reconciled records to downstream consumers.
type StatusPublisher interface {
	PublishReconciled(ctx context.Context, record *domain.PaymentRecord) error
}

// SecretVerifier authenticates the shared secret presented by the processor.
type SecretVerifier interface {
	Verify(presented string) bool
}

// TokenService handles JWT token operations for first-party clients.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
}

// RateLimitStore counts requests per key in a fixed window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// --- Service Ports (Business Logic) ---

// ReconciliationService derives and records the settlement status of transactions.
type ReconciliationService interface {
	// HandleWebhook processes an authenticated processor notification.
	// Verification failures are absorbed; only store failures are returned.
	HandleWebhook(ctx context.Context, n domain.Notification) (*domain.PaymentRecord, error)
	// VerifyTransaction performs an authoritative check and returns the resolved status.
	VerifyTransaction(ctx context.Context, transactionID string) (domain.PaymentStatus, error)
	// GetPayment returns the stored record or an apperror NotFound.
	GetPayment(ctx context.Context, id string) (*domain.PaymentRecord, error)
}

// AuditService records audit entries without blocking the request path.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
