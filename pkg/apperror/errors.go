package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Request shape (REQ) ----

func ErrMethodNotAllowed() *AppError {
	return New("REQ_405", "Method Not Allowed", http.StatusMethodNotAllowed)
}

// InvalidArgument reports a missing or malformed caller-supplied value.
func InvalidArgument(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}

// ---- Security (SEC) ----

func ErrInvalidWebhookSecret() *AppError {
	return New("SEC_001", "Invalid signature", http.StatusUnauthorized)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Payment reconciliation (PAY) ----

// ErrVerificationFailed reports that the processor could not confirm the transaction status.
func ErrVerificationFailed(err error) *AppError {
	return Wrap("PAY_001", "Transaction verification failed", http.StatusBadGateway, err)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrStoreFailure(err error) *AppError {
	return Wrap("SYS_001", "Payment record store failure", http.StatusInternalServerError, err)
}

// InternalError wraps an unexpected internal error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
