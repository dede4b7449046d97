package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"
	"github.com/zidane123-web/payment/internal/core/ports/mocks"
	"github.com/zidane123-web/payment/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type reconcileTestDeps struct {
	svc       *ReconcileServiceImpl
	store     *mocks.MockPaymentStore
	verifier  *mocks.MockVerificationClient
	cache     *mocks.MockVerificationCache
	publisher *mocks.MockStatusPublisher
}

func setupReconcileService(t *testing.T) *reconcileTestDeps {
	ctrl := gomock.NewController(t)
	d := &reconcileTestDeps{
		store:     mocks.NewMockPaymentStore(ctrl),
		verifier:  mocks.NewMockVerificationClient(ctrl),
		cache:     mocks.NewMockVerificationCache(ctrl),
		publisher: mocks.NewMockStatusPublisher(ctrl),
	}
	d.svc = NewReconcileService(d.store, d.verifier, d.cache, 10*time.Minute, d.publisher, newTestLogger())
	return d
}

// echoMerge applies the patch to an empty record, standing in for a fresh document.
func echoMerge(captured *domain.PaymentPatch) func(context.Context, string, domain.PaymentPatch) (*domain.PaymentRecord, error) {
	return func(_ context.Context, id string, p domain.PaymentPatch) (*domain.PaymentRecord, error) {
		*captured = p
		rec := &domain.PaymentRecord{ID: id}
		rec.Apply(p, time.Now())
		return rec, nil
	}
}

func successVerification() *domain.Verification {
	return &domain.Verification{
		Status: domain.SuccessSentinel,
		Raw:    json.RawMessage(`{"status":"SUCCESS","transactionId":"tx1"}`),
	}
}

// ==================== HandleWebhook Tests ====================

func TestReconcileService_HandleWebhook_SuccessFlagWins(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	performed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n := domain.Notification{
		TransactionID:    "tx1",
		Event:            domain.EventTransactionFailed,
		IsPaymentSuccess: true,
		Amount:           5000,
		Method:           "MOBILE_MONEY",
		PartnerID:        "partner-1",
		PerformedAt:      performed,
		ReceivedAt:       time.Now(),
	}

	pending := &domain.Verification{Status: "PENDING", Raw: json.RawMessage(`{"status":"PENDING"}`)}
	d.cache.EXPECT().Get(ctx, "tx1").Return(nil, nil)
	d.verifier.EXPECT().Verify(ctx, "tx1").Return(pending, nil)

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "tx1", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	rec, err := d.svc.HandleWebhook(ctx, n)
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusSuccess, rec.Status)
	assert.Equal(t, domain.PaymentStatusSuccess, patch.Status)
	assert.Equal(t, domain.PaymentSourceWebhook, patch.Source)
	require.NotNil(t, patch.TransactionID)
	assert.Equal(t, "tx1", *patch.TransactionID)
	assert.True(t, patch.TouchUpdatedAt)
	assert.False(t, patch.TouchVerifiedAt)
	require.NotNil(t, patch.Notification)
	assert.Equal(t, 5000.0, patch.Notification.Amount)
	assert.Equal(t, "MOBILE_MONEY", patch.Notification.Method)
	assert.Equal(t, "partner-1", patch.Notification.PartnerID)
	assert.Equal(t, domain.EventTransactionFailed, patch.Notification.Event)
	assert.Equal(t, performed, patch.Notification.PerformedAt)
	assert.JSONEq(t, `{"status":"PENDING"}`, string(patch.Verification))
}

func TestReconcileService_HandleWebhook_VerificationSuccessIsCached(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	v := successVerification()
	d.cache.EXPECT().Get(ctx, "tx1").Return(nil, nil)
	d.verifier.EXPECT().Verify(ctx, "tx1").Return(v, nil)
	d.cache.EXPECT().Set(ctx, "tx1", v, 10*time.Minute).Return(nil)

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "tx1", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	rec, err := d.svc.HandleWebhook(ctx, domain.Notification{TransactionID: "tx1", ReceivedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, rec.Status)
}

func TestReconcileService_HandleWebhook_CacheHitSkipsProcessor(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.cache.EXPECT().Get(ctx, "tx1").Return(successVerification(), nil)
	d.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Times(0)

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "tx1", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.HandleWebhook(ctx, domain.Notification{TransactionID: "tx1", ReceivedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, patch.Status)
}

func TestReconcileService_HandleWebhook_CacheErrorFallsThrough(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.cache.EXPECT().Get(ctx, "tx1").Return(nil, errors.New("redis down"))
	d.verifier.EXPECT().Verify(ctx, "tx1").Return(&domain.Verification{Status: "PENDING"}, nil)

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "tx1", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.HandleWebhook(ctx, domain.Notification{TransactionID: "tx1", ReceivedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, patch.Status)
}

func TestReconcileService_HandleWebhook_FailedEventWithVerificationFailure(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.cache.EXPECT().Get(ctx, "tx2").Return(nil, nil)
	d.verifier.EXPECT().Verify(ctx, "tx2").Return(nil, errors.New("processor unreachable"))

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "tx2", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	rec, err := d.svc.HandleWebhook(ctx, domain.Notification{
		TransactionID: "tx2",
		Event:         domain.EventTransactionFailed,
		ReceivedAt:    time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, rec.Status)
	assert.Nil(t, patch.Verification)
}

func TestReconcileService_HandleWebhook_NilVerificationIsFailure(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.cache.EXPECT().Get(ctx, "tx1").Return(nil, nil)
	d.verifier.EXPECT().Verify(ctx, "tx1").Return(nil, nil)

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "tx1", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.HandleWebhook(ctx, domain.Notification{TransactionID: "tx1", ReceivedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, patch.Status)
	assert.Nil(t, patch.Verification)
}

func TestReconcileService_HandleWebhook_NoTransactionIDUsesPlaceholder(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	received := time.UnixMilli(1718000000123)
	d.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Times(0)
	d.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "evt_1718000000123", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	rec, err := d.svc.HandleWebhook(ctx, domain.Notification{Event: "transaction.pending", ReceivedAt: received})
	require.NoError(t, err)
	assert.Equal(t, "evt_1718000000123", rec.ID)
	assert.Nil(t, patch.TransactionID)
	assert.Nil(t, rec.TransactionID)
	assert.Equal(t, domain.PaymentStatusPending, rec.Status)
}

func TestReconcileService_HandleWebhook_StoreFailure(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.store.EXPECT().Merge(ctx, gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))
	d.publisher.EXPECT().PublishReconciled(gomock.Any(), gomock.Any()).Times(0)

	_, err := d.svc.HandleWebhook(ctx, domain.Notification{IsPaymentSuccess: true, ReceivedAt: time.Now()})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SYS_001", appErr.Code)
}

func TestReconcileService_HandleWebhook_PublishFailureIsNotFatal(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, gomock.Any(), gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(errors.New("broker unavailable"))

	_, err := d.svc.HandleWebhook(ctx, domain.Notification{ReceivedAt: time.Now()})
	assert.NoError(t, err)
}

func TestReconcileService_HandleWebhook_StoredSuccessKept(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.cache.EXPECT().Get(ctx, "tx1").Return(nil, nil)
	d.verifier.EXPECT().Verify(ctx, "tx1").Return(nil, errors.New("timeout"))
	d.store.EXPECT().Merge(ctx, "tx1", gomock.Any()).DoAndReturn(
		func(_ context.Context, id string, p domain.PaymentPatch) (*domain.PaymentRecord, error) {
			rec := &domain.PaymentRecord{ID: id, Status: domain.PaymentStatusSuccess}
			rec.Apply(p, time.Now())
			return rec, nil
		},
	)
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	rec, err := d.svc.HandleWebhook(ctx, domain.Notification{TransactionID: "tx1", ReceivedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, rec.Status)
}

func TestReconcileService_HandleWebhook_OptionalCollaboratorsNil(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPaymentStore(ctrl)
	verifier := mocks.NewMockVerificationClient(ctrl)
	svc := NewReconcileService(store, verifier, nil, 0, nil, newTestLogger())
	ctx := context.Background()

	verifier.EXPECT().Verify(ctx, "tx1").Return(successVerification(), nil)
	var patch domain.PaymentPatch
	store.EXPECT().Merge(ctx, "tx1", gomock.Any()).DoAndReturn(echoMerge(&patch))

	rec, err := svc.HandleWebhook(ctx, domain.Notification{TransactionID: "tx1", ReceivedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, rec.Status)
}

// ==================== VerifyTransaction Tests ====================

func TestReconcileService_VerifyTransaction_Success(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	v := successVerification()
	d.verifier.EXPECT().Verify(ctx, "tx3").Return(v, nil)
	d.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
	d.cache.EXPECT().Set(ctx, "tx3", v, 10*time.Minute).Return(nil)

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "tx3", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	status, err := d.svc.VerifyTransaction(ctx, "tx3")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, status)

	assert.Equal(t, domain.PaymentSourceCallable, patch.Source)
	assert.Equal(t, domain.PaymentStatusSuccess, patch.Status)
	require.NotNil(t, patch.TransactionID)
	assert.Equal(t, "tx3", *patch.TransactionID)
	assert.True(t, patch.TouchVerifiedAt)
	assert.False(t, patch.TouchUpdatedAt)
	assert.Nil(t, patch.Notification, "callable path must not touch notification fields")
	assert.JSONEq(t, `{"status":"SUCCESS","transactionId":"tx1"}`, string(patch.Verification))
}

func TestReconcileService_VerifyTransaction_SuccessFlag(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.verifier.EXPECT().Verify(ctx, "tx4").Return(&domain.Verification{Status: "PENDING", IsPaymentSuccess: true}, nil)

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "tx4", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	status, err := d.svc.VerifyTransaction(ctx, "tx4")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, status)
}

func TestReconcileService_VerifyTransaction_Pending(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.verifier.EXPECT().Verify(ctx, "tx5").Return(&domain.Verification{Status: "FAILED"}, nil)
	d.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "tx5", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	status, err := d.svc.VerifyTransaction(ctx, "tx5")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, status)
}

func TestReconcileService_VerifyTransaction_TrimsID(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.verifier.EXPECT().Verify(ctx, "tx6").Return(&domain.Verification{Status: "PENDING"}, nil)
	var patch domain.PaymentPatch
	d.store.EXPECT().Merge(ctx, "tx6", gomock.Any()).DoAndReturn(echoMerge(&patch))
	d.publisher.EXPECT().PublishReconciled(ctx, gomock.Any()).Return(nil)

	_, err := d.svc.VerifyTransaction(ctx, "  tx6\n")
	require.NoError(t, err)
}

func TestReconcileService_VerifyTransaction_MissingID(t *testing.T) {
	for _, id := range []string{"", "   ", "\t\n"} {
		t.Run("id="+id, func(t *testing.T) {
			d := setupReconcileService(t)

			// No collaborator expectations: any call fails the test.
			_, err := d.svc.VerifyTransaction(context.Background(), id)
			require.Error(t, err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "REQ_001", appErr.Code)
		})
	}
}

func TestReconcileService_VerifyTransaction_VerificationFailure(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.verifier.EXPECT().Verify(ctx, "tx7").Return(nil, errors.New("502 from processor"))
	d.store.EXPECT().Merge(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := d.svc.VerifyTransaction(ctx, "tx7")
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PAY_001", appErr.Code)
}

func TestReconcileService_VerifyTransaction_EmptyResult(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.verifier.EXPECT().Verify(ctx, "tx8").Return(nil, nil)
	d.store.EXPECT().Merge(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := d.svc.VerifyTransaction(ctx, "tx8")

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PAY_001", appErr.Code)
}

func TestReconcileService_VerifyTransaction_StoreFailure(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.verifier.EXPECT().Verify(ctx, "tx9").Return(successVerification(), nil)
	d.store.EXPECT().Merge(ctx, "tx9", gomock.Any()).Return(nil, errors.New("disk full"))

	_, err := d.svc.VerifyTransaction(ctx, "tx9")

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SYS_001", appErr.Code)
}

// ==================== GetPayment Tests ====================

func TestReconcileService_GetPayment(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	want := &domain.PaymentRecord{ID: "tx1", Status: domain.PaymentStatusSuccess}
	d.store.EXPECT().Get(ctx, "tx1").Return(want, nil)

	got, err := d.svc.GetPayment(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReconcileService_GetPayment_NotFound(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.store.EXPECT().Get(ctx, "missing").Return(nil, nil)

	_, err := d.svc.GetPayment(ctx, "missing")

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PAY_002", appErr.Code)
}

func TestReconcileService_GetPayment_StoreError(t *testing.T) {
	d := setupReconcileService(t)
	ctx := context.Background()

	d.store.EXPECT().Get(ctx, "tx1").Return(nil, errors.New("boom"))

	_, err := d.svc.GetPayment(ctx, "tx1")

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SYS_001", appErr.Code)
}
