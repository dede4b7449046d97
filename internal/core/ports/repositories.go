package ports

import (
	"context"

	"github.com/zidane123-web/payment/internal/core/domain"
)

// PaymentStore persists reconciliation records keyed by document ID.
type PaymentStore interface {
	// Merge upserts the fields carried by patch and returns the record as stored.
	// Implementations assign server timestamps and keep a stored success when
	// patch carries a degraded status, within the same atomic write.
	Merge(ctx context.Context, id string, patch domain.PaymentPatch) (*domain.PaymentRecord, error)
	// Get returns nil, nil when no record exists.
	Get(ctx context.Context, id string) (*domain.PaymentRecord, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
