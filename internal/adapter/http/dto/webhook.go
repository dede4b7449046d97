package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"
)

// WebhookPayload is the processor notification body. Every field is optional
// and coerced on decode; a malformed body decodes to the zero payload.
type WebhookPayload struct {
	TransactionID FlexString `json:"transactionId"`
	Event         FlexString `json:"event"`
	// The processor spells the flag without the trailing "s".
	IsPaymentSucces StrictTrue `json:"isPaymentSucces"`
	Amount          Amount     `json:"amount"`
	Method          FlexString `json:"method"`
	PartnerID       FlexString `json:"partnerId"`
	PerformedAt     Timestamp  `json:"performedAt"`
}

// ParseWebhook decodes body leniently. It never fails.
func ParseWebhook(body []byte) WebhookPayload {
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return WebhookPayload{}
	}
	return p
}

// Notification converts the payload, defaulting PerformedAt to receivedAt.
func (p WebhookPayload) Notification(receivedAt time.Time) domain.Notification {
	performedAt := p.PerformedAt.Time
	if performedAt.IsZero() {
		performedAt = receivedAt
	}
	return domain.Notification{
		TransactionID:    strings.TrimSpace(string(p.TransactionID)),
		Event:            string(p.Event),
		IsPaymentSuccess: bool(p.IsPaymentSucces),
		Amount:           float64(p.Amount),
		Method:           string(p.Method),
		PartnerID:        string(p.PartnerID),
		PerformedAt:      performedAt,
		ReceivedAt:       receivedAt,
	}
}
