package memory

import (
	"context"
	"sync"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"
)

// PaymentStore is an in-process ports.PaymentStore for development and tests.
// Each Merge holds the lock for the whole read-modify-write, which gives the
// same per-document atomicity as the database stores.
type PaymentStore struct {
	mu      sync.RWMutex
	records map[string]*domain.PaymentRecord
	now     func() time.Time
}

// NewPaymentStore creates an empty in-memory store.
func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		records: make(map[string]*domain.PaymentRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewPaymentStoreWithClock creates a store whose server timestamps come from now.
func NewPaymentStoreWithClock(now func() time.Time) *PaymentStore {
	s := NewPaymentStore()
	s.now = now
	return s
}

// Merge applies the patch to the stored record, creating it if needed.
func (s *PaymentStore) Merge(_ context.Context, id string, p domain.PaymentPatch) (*domain.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		rec = &domain.PaymentRecord{ID: id}
		s.records[id] = rec
	}
	rec.Apply(p, s.now())
	return rec.Clone(), nil
}

// Get returns a copy of the stored record, or nil if none exists.
func (s *PaymentStore) Get(_ context.Context, id string) (*domain.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// Len returns the number of stored records.
func (s *PaymentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// IDs returns the stored document IDs in no particular order.
func (s *PaymentStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids
}

// HealthCheck implements ports.HealthChecker; the in-memory store is always reachable.
type HealthCheck struct{}

func (HealthCheck) Ping(context.Context) error { return nil }

func (HealthCheck) Name() string { return "memory" }
