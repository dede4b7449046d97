package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// VerificationCache implements ports.VerificationCache using Redis.
type VerificationCache struct {
	client goredis.UniversalClient
	prefix string
}

// cachedVerification is the stored shape; the raw processor payload is kept verbatim.
type cachedVerification struct {
	Status           string          `json:"status"`
	IsPaymentSuccess bool            `json:"isPaymentSucces"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}

// NewVerificationCache creates a new Redis-backed verification cache.
func NewVerificationCache(client goredis.UniversalClient) *VerificationCache {
	return &VerificationCache{
		client: client,
		prefix: "kkiapay:verification:",
	}
}

// Get retrieves a cached verification by transaction ID.
// Returns nil, nil if the key does not exist.
func (c *VerificationCache) Get(ctx context.Context, transactionID string) (*domain.Verification, error) {
	val, err := c.client.Get(ctx, c.prefix+transactionID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis verification get: %w", err)
	}

	var cv cachedVerification
	if err := json.Unmarshal(val, &cv); err != nil {
		return nil, fmt.Errorf("redis verification decode: %w", err)
	}
	return &domain.Verification{
		Status:           cv.Status,
		IsPaymentSuccess: cv.IsPaymentSuccess,
		Raw:              cv.Raw,
	}, nil
}

// Set stores a verification with TTL.
func (c *VerificationCache) Set(ctx context.Context, transactionID string, v *domain.Verification, ttl time.Duration) error {
	if v == nil {
		return nil
	}
	val, err := json.Marshal(cachedVerification{
		Status:           v.Status,
		IsPaymentSuccess: v.IsPaymentSuccess,
		Raw:              v.Raw,
	})
	if err != nil {
		return fmt.Errorf("redis verification encode: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+transactionID, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis verification set: %w", err)
	}
	return nil
}
