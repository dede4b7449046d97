package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"
	"github.com/zidane123-web/payment/internal/core/ports"
	"github.com/zidane123-web/payment/pkg/apperror"

	"github.com/rs/zerolog"
)

var errEmptyVerification = errors.New("processor returned no verification result")

// ReconcileServiceImpl implements ports.ReconciliationService.
type ReconcileServiceImpl struct {
	store     ports.PaymentStore
	verifier  ports.VerificationClient
	cache     ports.VerificationCache // optional
	cacheTTL  time.Duration
	publisher ports.StatusPublisher // optional
	log       zerolog.Logger
}

// NewReconcileService creates a new ReconcileServiceImpl.
// cache and publisher may be nil.
func NewReconcileService(
	store ports.PaymentStore,
	verifier ports.VerificationClient,
	cache ports.VerificationCache,
	cacheTTL time.Duration,
	publisher ports.StatusPublisher,
	log zerolog.Logger,
) *ReconcileServiceImpl {
	return &ReconcileServiceImpl{
		store:     store,
		verifier:  verifier,
		cache:     cache,
		cacheTTL:  cacheTTL,
		publisher: publisher,
		log:       log,
	}
}

// HandleWebhook reconciles an authenticated processor notification.
//
// The processor's own claims are combined with a best-effort verification; a
// failed verification degrades the outcome instead of failing the request.
func (s *ReconcileServiceImpl) HandleWebhook(ctx context.Context, n domain.Notification) (*domain.PaymentRecord, error) {
	var verification *domain.Verification
	if n.TransactionID != "" {
		v, err := s.verifyBestEffort(ctx, n.TransactionID)
		if err != nil {
			s.log.Warn().Err(err).
				Str("transaction_id", n.TransactionID).
				Msg("webhook verification failed, resolving from notification")
		} else {
			verification = v
		}
	}

	status := domain.ResolveWebhookStatus(n.IsPaymentSuccess, n.Event, verification)
	docID := n.DocumentID()

	var txID *string
	if n.TransactionID != "" {
		id := n.TransactionID
		txID = &id
	}

	rec, err := s.store.Merge(ctx, docID, domain.PaymentPatch{
		TransactionID:  txID,
		Status:         status,
		Verification:   verification.RawPayload(),
		Source:         domain.PaymentSourceWebhook,
		Notification:   n.Fields(),
		TouchUpdatedAt: true,
	})
	if err != nil {
		return nil, apperror.ErrStoreFailure(fmt.Errorf("merge webhook record %s: %w", docID, err))
	}

	s.logReconciled(docID, domain.PaymentSourceWebhook, status, rec)
	s.publish(ctx, rec)
	return rec, nil
}

// VerifyTransaction asks the processor directly and records the answer.
// Unlike the webhook path, verification failures are returned to the caller.
func (s *ReconcileServiceImpl) VerifyTransaction(ctx context.Context, transactionID string) (domain.PaymentStatus, error) {
	txID := strings.TrimSpace(transactionID)
	if txID == "" {
		return "", apperror.InvalidArgument("transactionId is required")
	}

	v, err := s.verifier.Verify(ctx, txID)
	if err != nil {
		return "", apperror.ErrVerificationFailed(err)
	}
	if v == nil {
		return "", apperror.ErrVerificationFailed(errEmptyVerification)
	}

	status := domain.ResolveCallableStatus(v)

	rec, err := s.store.Merge(ctx, txID, domain.PaymentPatch{
		TransactionID:   &txID,
		Status:          status,
		Verification:    v.RawPayload(),
		Source:          domain.PaymentSourceCallable,
		TouchVerifiedAt: true,
	})
	if err != nil {
		return "", apperror.ErrStoreFailure(fmt.Errorf("merge callable record %s: %w", txID, err))
	}

	s.remember(ctx, txID, v)

	s.logReconciled(txID, domain.PaymentSourceCallable, status, rec)
	s.publish(ctx, rec)
	return status, nil
}

// GetPayment returns the stored record for id.
func (s *ReconcileServiceImpl) GetPayment(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, apperror.ErrStoreFailure(fmt.Errorf("get payment %s: %w", id, err))
	}
	if rec == nil {
		return nil, apperror.ErrNotFound("Payment")
	}
	return rec, nil
}

// verifyBestEffort serves settled results from the cache before calling the processor.
func (s *ReconcileServiceImpl) verifyBestEffort(ctx context.Context, txID string) (*domain.Verification, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, txID)
		if err != nil {
			s.log.Warn().Err(err).Str("transaction_id", txID).Msg("verification cache lookup failed, calling processor")
		}
		if cached != nil {
			return cached, nil
		}
	}

	v, err := s.verifier.Verify(ctx, txID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errEmptyVerification
	}

	s.remember(ctx, txID, v)
	return v, nil
}

// remember caches settled verifications only; anything else may still change.
func (s *ReconcileServiceImpl) remember(ctx context.Context, txID string, v *domain.Verification) {
	if s.cache == nil || v.Status != domain.SuccessSentinel {
		return
	}
	if err := s.cache.Set(ctx, txID, v, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", txID).Msg("failed to cache verification")
	}
}

func (s *ReconcileServiceImpl) publish(ctx context.Context, rec *domain.PaymentRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReconciled(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("doc_id", rec.ID).Msg("failed to publish reconciled event")
	}
}

func (s *ReconcileServiceImpl) logReconciled(docID string, source domain.PaymentSource, resolved domain.PaymentStatus, rec *domain.PaymentRecord) {
	if rec.Status != resolved {
		s.log.Warn().
			Str("doc_id", docID).
			Str("source", string(source)).
			Str("resolved", string(resolved)).
			Str("stored", string(rec.Status)).
			Msg("stored success kept over degraded status")
		return
	}
	s.log.Info().
		Str("doc_id", docID).
		Str("source", string(source)).
		Str("status", string(resolved)).
		Msg("payment reconciled")
}
