package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWebhookReceived AuditAction = "WEBHOOK_RECEIVED"
	AuditActionWebhookRejected AuditAction = "WEBHOOK_REJECTED"
	AuditActionPaymentVerified AuditAction = "PAYMENT_VERIFIED"
)

// AuditLog records a single reconciliation attempt.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Actor        string      `json:"actor,omitempty"` // token subject on the callable path
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
