package domain

import (
	"encoding/json"
	"time"
)

// Event labels reported by the processor.
const (
	EventTransactionSuccess = "transaction.success"
	EventTransactionFailed  = "transaction.failed"
)

// Notification is a processor webhook after type coercion.
// Absent fields hold their zero value, except PerformedAt which defaults to receipt time.
type Notification struct {
	TransactionID    string
	Event            string
	IsPaymentSuccess bool
	Amount           float64
	Method           string
	PartnerID        string
	PerformedAt      time.Time
	ReceivedAt       time.Time
}

// DocumentID returns the record key: the transaction ID, or a placeholder derived from ReceivedAt.
func (n Notification) DocumentID() string {
	if n.TransactionID != "" {
		return n.TransactionID
	}
	return PlaceholderID(n.ReceivedAt)
}

// Fields returns the notification-only values written on the webhook path.
func (n Notification) Fields() *NotificationFields {
	return &NotificationFields{
		Amount:      n.Amount,
		Method:      n.Method,
		PartnerID:   n.PartnerID,
		Event:       n.Event,
		PerformedAt: n.PerformedAt,
	}
}

// Verification is the processor's answer to a status check.
type Verification struct {
	Status           string
	IsPaymentSuccess bool
	// Raw is the full processor payload, persisted as-is.
	Raw json.RawMessage
}

// RawPayload returns the payload to persist, or nil when no verification is available.
func (v *Verification) RawPayload() json.RawMessage {
	if v == nil {
		return nil
	}
	return v.Raw
}
