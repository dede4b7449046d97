package kkiapay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zidane123-web/payment/config"
	"github.com/zidane123-web/payment/internal/core/domain"

	"github.com/rs/zerolog"
)

const (
	LiveBaseURL    = "https://api.kkiapay.me"
	SandboxBaseURL = "https://api-sandbox.kkiapay.me"

	statusPath       = "/api/v1/transactions/status"
	maxResponseBytes = 1 << 20
)

var (
	// ErrUnexpectedStatus is returned for any non-2xx answer from the processor.
	ErrUnexpectedStatus = errors.New("kkiapay: unexpected response status")
	// ErrInvalidResponse is returned when the body is not a JSON object.
	ErrInvalidResponse = errors.New("kkiapay: invalid response body")
)

// Credentials identify the merchant account against the processor API.
type Credentials struct {
	PublicKey  string
	PrivateKey string
	SecretKey  string
	Sandbox    bool
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.VerificationClient against the KKiaPay status API.
type Client struct {
	creds      Credentials
	baseURL    string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewClient creates a KKiaPay client. An empty baseURL selects the live or
// sandbox host from creds.Sandbox.
func NewClient(creds Credentials, baseURL string, httpClient HTTPClient, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = LiveBaseURL
		if creds.Sandbox {
			baseURL = SandboxBaseURL
		}
	}
	return &Client{
		creds:      creds,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

// NewClientFromConfig wires a client with an http.Client bounded by cfg.Timeout.
func NewClientFromConfig(cfg config.KKiaPayConfig, log zerolog.Logger) *Client {
	creds := Credentials{
		PublicKey:  cfg.PublicKey,
		PrivateKey: cfg.PrivateKey,
		SecretKey:  cfg.SecretKey,
		Sandbox:    cfg.Sandbox,
	}
	return NewClient(creds, cfg.BaseURL, &http.Client{Timeout: cfg.Timeout}, log)
}

// BaseURL returns the host the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type statusRequest struct {
	TransactionID string `json:"transactionId"`
}

// Verify fetches the processor's view of transactionID. One attempt, no retry.
func (c *Client) Verify(ctx context.Context, transactionID string) (*domain.Verification, error) {
	body, err := json.Marshal(statusRequest{TransactionID: transactionID})
	if err != nil {
		return nil, fmt.Errorf("marshal status request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+statusPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.creds.PublicKey)
	req.Header.Set("x-private-key", c.creds.PrivateKey)
	req.Header.Set("x-secret-key", c.creds.SecretKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kkiapay status request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read kkiapay response: %w", err)
	}

	c.log.Debug().
		Str("transaction_id", transactionID).
		Int("http_status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("kkiapay status checked")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return parseVerification(raw)
}

// parseVerification reads the fields the resolver needs and keeps the payload verbatim.
// Only a literal boolean true counts as the success flag.
func parseVerification(raw []byte) (*domain.Verification, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if fields == nil {
		return nil, ErrInvalidResponse
	}

	status, _ := fields["status"].(string)
	flag, _ := fields["isPaymentSucces"].(bool)

	return &domain.Verification{
		Status:           status,
		IsPaymentSuccess: flag,
		Raw:              json.RawMessage(bytes.TrimSpace(raw)),
	}, nil
}
