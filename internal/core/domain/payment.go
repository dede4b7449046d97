package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PaymentStatus is the reconciled settlement state of a transaction.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusUnknown PaymentStatus = "unknown"
)

// IsValid reports whether s belongs to the closed status set.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusPending, PaymentStatusUnknown:
		return true
	}
	return false
}

// IsDegraded reports whether s is an inconclusive outcome that must not replace a stored success.
func (s PaymentStatus) IsDegraded() bool {
	return s == PaymentStatusPending || s == PaymentStatusUnknown
}

// PaymentSource identifies the entry point that last wrote a record.
type PaymentSource string

const (
	PaymentSourceWebhook  PaymentSource = "webhook"
	PaymentSourceCallable PaymentSource = "callable"
)

// PlaceholderPrefix keys webhook records that arrive without a transaction ID.
const PlaceholderPrefix = "evt_"

// PlaceholderID returns the document key for a notification without a transaction ID.
func PlaceholderID(receivedAt time.Time) string {
	return fmt.Sprintf("%s%d", PlaceholderPrefix, receivedAt.UnixMilli())
}

// PaymentRecord is the persisted per-transaction document.
type PaymentRecord struct {
	ID            string          `json:"id"`
	TransactionID *string         `json:"transactionId"`
	Status        PaymentStatus   `json:"status"`
	Amount        float64         `json:"amount"`
	Method        string          `json:"method"`
	PartnerID     string          `json:"partnerId"`
	Event         string          `json:"event"`
	PerformedAt   *time.Time      `json:"performedAt,omitempty"`
	Verification  json.RawMessage `json:"verification"`
	Source        PaymentSource   `json:"source"`
	VerifiedAt    *time.Time      `json:"verifiedAt,omitempty"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NotificationFields are the values only a processor notification carries.
type NotificationFields struct {
	Amount      float64
	Method      string
	PartnerID   string
	Event       string
	PerformedAt time.Time
}

// PaymentPatch is a merge-write: every field it carries is written, every other
// stored field is left untouched.
//
// TransactionID, Status, Verification and Source are always written. A nil
// TransactionID or Verification stores null.
type PaymentPatch struct {
	TransactionID *string
	Status        PaymentStatus
	Verification  json.RawMessage
	Source        PaymentSource

	// Notification is set on the webhook path only.
	Notification *NotificationFields

	TouchUpdatedAt  bool
	TouchVerifiedAt bool
}

// Apply merges p into r using now as the server timestamp.
// A stored success is kept when p carries a degraded status.
func (r *PaymentRecord) Apply(p PaymentPatch, now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}

	r.TransactionID = p.TransactionID
	if !(r.Status == PaymentStatusSuccess && p.Status.IsDegraded()) {
		r.Status = p.Status
	}
	r.Verification = p.Verification
	r.Source = p.Source

	if n := p.Notification; n != nil {
		performedAt := n.PerformedAt
		r.Amount = n.Amount
		r.Method = n.Method
		r.PartnerID = n.PartnerID
		r.Event = n.Event
		r.PerformedAt = &performedAt
	}

	if p.TouchUpdatedAt {
		ts := now
		r.UpdatedAt = &ts
	}
	if p.TouchVerifiedAt {
		ts := now
		r.VerifiedAt = &ts
	}
}

// Clone returns a deep copy of r.
func (r *PaymentRecord) Clone() *PaymentRecord {
	out := *r
	if r.TransactionID != nil {
		id := *r.TransactionID
		out.TransactionID = &id
	}
	if r.Verification != nil {
		out.Verification = append(json.RawMessage(nil), r.Verification...)
	}
	out.PerformedAt = cloneTime(r.PerformedAt)
	out.VerifiedAt = cloneTime(r.VerifiedAt)
	out.UpdatedAt = cloneTime(r.UpdatedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
