package mongo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func strPtr(s string) *string { return &s }

// setStage returns the $set document of a single-stage pipeline.
func setStage(t *testing.T, p domain.PaymentPatch) bson.D {
	t.Helper()
	pipeline, err := buildMergePipeline(p)
	require.NoError(t, err)
	require.Len(t, pipeline, 1)
	require.Equal(t, "$set", pipeline[0][0].Key)
	set, ok := pipeline[0][0].Value.(bson.D)
	require.True(t, ok)
	return set
}

func lookup(set bson.D, key string) (interface{}, bool) {
	for _, e := range set {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func TestBuildMergePipeline_Webhook(t *testing.T) {
	performed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	set := setStage(t, domain.PaymentPatch{
		TransactionID: strPtr("tx1"),
		Status:        domain.PaymentStatusSuccess,
		Source:        domain.PaymentSourceWebhook,
		Notification: &domain.NotificationFields{
			Amount: 5000, Method: "$where", PerformedAt: performed,
		},
		TouchUpdatedAt: true,
	})

	status, _ := lookup(set, "status")
	assert.Equal(t, literal("success"), status, "success is written unconditionally")

	method, _ := lookup(set, "method")
	assert.Equal(t, literal("$where"), method, "caller strings are never field paths")

	updatedAt, ok := lookup(set, "updatedAt")
	require.True(t, ok)
	assert.Equal(t, "$$NOW", updatedAt)

	_, ok = lookup(set, "verifiedAt")
	assert.False(t, ok, "webhook writes must not touch verifiedAt")

	verification, _ := lookup(set, "verification")
	assert.Equal(t, literal(nil), verification)

	createdAt, _ := lookup(set, "createdAt")
	assert.Equal(t, bson.D{{Key: "$ifNull", Value: bson.A{"$createdAt", "$$NOW"}}}, createdAt)
}

func TestBuildMergePipeline_DegradedStatusIsGuarded(t *testing.T) {
	for _, s := range []domain.PaymentStatus{domain.PaymentStatusPending, domain.PaymentStatusUnknown} {
		set := setStage(t, domain.PaymentPatch{Status: s, Source: domain.PaymentSourceWebhook})
		status, _ := lookup(set, "status")

		cond, ok := status.(bson.D)
		require.True(t, ok)
		assert.Equal(t, "$cond", cond[0].Key)
	}

	set := setStage(t, domain.PaymentPatch{Status: domain.PaymentStatusFailed, Source: domain.PaymentSourceWebhook})
	status, _ := lookup(set, "status")
	assert.Equal(t, literal("failed"), status)
}

func TestBuildMergePipeline_Callable(t *testing.T) {
	set := setStage(t, domain.PaymentPatch{
		TransactionID:   strPtr("tx3"),
		Status:          domain.PaymentStatusSuccess,
		Verification:    json.RawMessage(`{"status":"SUCCESS","$weird":1}`),
		Source:          domain.PaymentSourceCallable,
		TouchVerifiedAt: true,
	})

	for _, key := range []string{"amount", "method", "partnerId", "event", "performedAt", "updatedAt"} {
		_, ok := lookup(set, key)
		assert.False(t, ok, "callable writes must not touch %s", key)
	}

	verifiedAt, ok := lookup(set, "verifiedAt")
	require.True(t, ok)
	assert.Equal(t, "$$NOW", verifiedAt)

	verification, _ := lookup(set, "verification")
	lit, ok := verification.(bson.D)
	require.True(t, ok)
	assert.Equal(t, "$literal", lit[0].Key)
}

func TestBuildMergePipeline_RejectsNonObjectVerification(t *testing.T) {
	_, err := buildMergePipeline(domain.PaymentPatch{
		Status:       domain.PaymentStatusPending,
		Verification: json.RawMessage(`["SUCCESS"]`),
	})
	assert.Error(t, err)
}

func TestPaymentStore_Mock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("merge returns stored document", func(mt *mtest.T) {
		store := NewPaymentStore(mt.Coll)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "tx1"},
			{Key: "transactionId", Value: "tx1"},
			{Key: "status", Value: "success"},
			{Key: "amount", Value: 5000.0},
			{Key: "method", Value: "MOBILE_MONEY"},
			{Key: "partnerId", Value: ""},
			{Key: "event", Value: "transaction.success"},
			{Key: "performedAt", Value: now},
			{Key: "verification", Value: bson.D{{Key: "status", Value: "SUCCESS"}}},
			{Key: "source", Value: "webhook"},
			{Key: "verifiedAt", Value: now.Add(-time.Minute)},
			{Key: "updatedAt", Value: now},
			{Key: "createdAt", Value: now.Add(-time.Minute)},
		}}))

		rec, err := store.Merge(context.Background(), "tx1", domain.PaymentPatch{
			TransactionID:  strPtr("tx1"),
			Status:         domain.PaymentStatusSuccess,
			Source:         domain.PaymentSourceWebhook,
			Notification:   &domain.NotificationFields{Amount: 5000, PerformedAt: now},
			TouchUpdatedAt: true,
		})
		require.NoError(mt, err)

		assert.Equal(mt, "tx1", rec.ID)
		require.NotNil(mt, rec.TransactionID)
		assert.Equal(mt, "tx1", *rec.TransactionID)
		assert.Equal(mt, domain.PaymentStatusSuccess, rec.Status)
		assert.Equal(mt, 5000.0, rec.Amount)
		assert.Equal(mt, domain.PaymentSourceWebhook, rec.Source)
		require.NotNil(mt, rec.VerifiedAt)
		assert.True(mt, rec.VerifiedAt.Equal(now.Add(-time.Minute)))
		assert.JSONEq(mt, `{"status":"SUCCESS"}`, string(rec.Verification))
	})

	mt.Run("merge null transaction id and verification", func(mt *mtest.T) {
		store := NewPaymentStore(mt.Coll)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "evt_1718000000000"},
			{Key: "transactionId", Value: nil},
			{Key: "status", Value: "pending"},
			{Key: "amount", Value: 0.0},
			{Key: "verification", Value: nil},
			{Key: "source", Value: "webhook"},
			{Key: "updatedAt", Value: now},
			{Key: "createdAt", Value: now},
		}}))

		rec, err := store.Merge(context.Background(), "evt_1718000000000", domain.PaymentPatch{
			Status:         domain.PaymentStatusPending,
			Source:         domain.PaymentSourceWebhook,
			Notification:   &domain.NotificationFields{PerformedAt: now},
			TouchUpdatedAt: true,
		})
		require.NoError(mt, err)
		assert.Nil(mt, rec.TransactionID)
		assert.Nil(mt, rec.Verification)
		assert.Nil(mt, rec.VerifiedAt)
	})

	mt.Run("merge error", func(mt *mtest.T) {
		store := NewPaymentStore(mt.Coll)

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Name:    "InterruptedAtShutdown",
			Message: "interrupted at shutdown",
		}))

		_, err := store.Merge(context.Background(), "tx1", domain.PaymentPatch{
			Status: domain.PaymentStatusPending,
			Source: domain.PaymentSourceCallable,
		})
		assert.ErrorContains(mt, err, "merge payment tx1")
	})

	mt.Run("get found", func(mt *mtest.T) {
		store := NewPaymentStore(mt.Coll)

		mt.AddMockResponses(mtest.CreateCursorResponse(1, "reconciler.payments", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "tx3"},
			{Key: "transactionId", Value: "tx3"},
			{Key: "status", Value: "success"},
			{Key: "source", Value: "callable"},
			{Key: "verification", Value: bson.D{{Key: "status", Value: "SUCCESS"}, {Key: "isPaymentSucces", Value: true}}},
			{Key: "verifiedAt", Value: now},
			{Key: "createdAt", Value: now},
		}))

		rec, err := store.Get(context.Background(), "tx3")
		require.NoError(mt, err)
		require.NotNil(mt, rec)
		assert.Equal(mt, domain.PaymentSourceCallable, rec.Source)
		assert.JSONEq(mt, `{"status":"SUCCESS","isPaymentSucces":true}`, string(rec.Verification))
		assert.Nil(mt, rec.UpdatedAt)
	})

	mt.Run("get not found", func(mt *mtest.T) {
		store := NewPaymentStore(mt.Coll)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "reconciler.payments", mtest.FirstBatch))

		rec, err := store.Get(context.Background(), "missing")
		assert.NoError(mt, err)
		assert.Nil(mt, rec)
	})
}
