package dto

import (
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"
)

// VerifyRequest is the request body for the callable verification endpoint.
type VerifyRequest struct {
	TransactionID FlexString `json:"transactionId"`
}

// VerifyResponse is returned after a successful verification.
type VerifyResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// PaymentURI binds the :id path parameter of the read endpoint.
type PaymentURI struct {
	ID string `uri:"id" binding:"required,max=128,safe_id"`
}

// PaymentResponse is the read model of a stored payment record.
type PaymentResponse struct {
	ID            string  `json:"id"`
	TransactionID *string `json:"transactionId"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
	PartnerID     string  `json:"partnerId"`
	Event         string  `json:"event"`
	PerformedAt   *string `json:"performedAt"`
	Verification  any     `json:"verification"`
	Source        string  `json:"source"`
	VerifiedAt    *string `json:"verifiedAt"`
	UpdatedAt     *string `json:"updatedAt"`
	CreatedAt     string  `json:"createdAt"`
}

// ToPaymentResponse maps a domain record to its response shape.
func ToPaymentResponse(r *domain.PaymentRecord) PaymentResponse {
	resp := PaymentResponse{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		Status:        string(r.Status),
		Amount:        r.Amount,
		Method:        r.Method,
		PartnerID:     r.PartnerID,
		Event:         r.Event,
		PerformedAt:   formatTime(r.PerformedAt),
		Source:        string(r.Source),
		VerifiedAt:    formatTime(r.VerifiedAt),
		UpdatedAt:     formatTime(r.UpdatedAt),
		CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(r.Verification) > 0 {
		resp.Verification = r.Verification
	}
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
