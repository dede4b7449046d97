package domain

// SuccessSentinel is the processor status value of a settled payment.
const SuccessSentinel = "SUCCESS"

// ResolveWebhookStatus combines a notification's claims with an optional verification.
//
// The success flag or a SUCCESS verification wins over the event label; an explicit
// failure event yields failed; anything else stays pending.
func ResolveWebhookStatus(isPaymentSuccess bool, event string, v *Verification) PaymentStatus {
	if isPaymentSuccess || (v != nil && v.Status == SuccessSentinel) {
		return PaymentStatusSuccess
	}
	if event == EventTransactionFailed {
		return PaymentStatusFailed
	}
	return PaymentStatusPending
}

// ResolveCallableStatus derives the status from the verification alone.
func ResolveCallableStatus(v *Verification) PaymentStatus {
	if v != nil && (v.Status == SuccessSentinel || v.IsPaymentSuccess) {
		return PaymentStatusSuccess
	}
	return PaymentStatusPending
}
