package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// paymentDocument is the stored shape of a payment record.
type paymentDocument struct {
	ID            string        `bson:"_id"`
	TransactionID *string       `bson:"transactionId"`
	Status        string        `bson:"status"`
	Amount        float64       `bson:"amount"`
	Method        string        `bson:"method"`
	PartnerID     string        `bson:"partnerId"`
	Event         string        `bson:"event"`
	PerformedAt   *time.Time    `bson:"performedAt,omitempty"`
	Verification  bson.RawValue `bson:"verification"`
	Source        string        `bson:"source"`
	VerifiedAt    *time.Time    `bson:"verifiedAt,omitempty"`
	UpdatedAt     *time.Time    `bson:"updatedAt,omitempty"`
	CreatedAt     time.Time     `bson:"createdAt"`
}

// PaymentStore implements ports.PaymentStore on a MongoDB collection.
type PaymentStore struct {
	col *mongo.Collection
}

// NewPaymentStore creates a new MongoDB payment store.
func NewPaymentStore(col *mongo.Collection) *PaymentStore {
	return &PaymentStore{col: col}
}

// EnsureIndexes creates the secondary indexes used for lookups by transaction ID.
func (s *PaymentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "transactionId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create transactionId index: %w", err)
	}
	return nil
}

// Merge applies the patch with a single findAndModify upsert.
// The update is an aggregation pipeline so the success guard and server
// timestamps are evaluated against the stored document inside the same write.
func (s *PaymentStore) Merge(ctx context.Context, id string, p domain.PaymentPatch) (*domain.PaymentRecord, error) {
	update, err := buildMergePipeline(p)
	if err != nil {
		return nil, fmt.Errorf("merge payment %s: %w", id, err)
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc paymentDocument
	if err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("merge payment %s: %w", id, err)
	}
	return doc.toRecord()
}

// Get fetches a payment record by document ID.
func (s *PaymentStore) Get(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	var doc paymentDocument
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}
	return doc.toRecord()
}

// literal stops the pipeline from reading caller strings such as "$foo" as field paths.
func literal(v interface{}) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}

func buildMergePipeline(p domain.PaymentPatch) (mongo.Pipeline, error) {
	var verification interface{}
	if len(p.Verification) > 0 {
		var doc bson.D
		if err := bson.UnmarshalExtJSON(p.Verification, false, &doc); err != nil {
			return nil, fmt.Errorf("verification payload is not a JSON object: %w", err)
		}
		verification = doc
	}

	var txID interface{}
	if p.TransactionID != nil {
		txID = *p.TransactionID
	}

	var status interface{} = literal(string(p.Status))
	if p.Status.IsDegraded() {
		status = bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{"$status", string(domain.PaymentStatusSuccess)}}},
			"$status",
			literal(string(p.Status)),
		}}}
	}

	set := bson.D{
		{Key: "transactionId", Value: literal(txID)},
		{Key: "status", Value: status},
		{Key: "verification", Value: literal(verification)},
		{Key: "source", Value: literal(string(p.Source))},
	}

	if n := p.Notification; n != nil {
		set = append(set,
			bson.E{Key: "amount", Value: literal(n.Amount)},
			bson.E{Key: "method", Value: literal(n.Method)},
			bson.E{Key: "partnerId", Value: literal(n.PartnerID)},
			bson.E{Key: "event", Value: literal(n.Event)},
			bson.E{Key: "performedAt", Value: literal(n.PerformedAt.UTC())},
		)
	}
	if p.TouchUpdatedAt {
		set = append(set, bson.E{Key: "updatedAt", Value: "$$NOW"})
	}
	if p.TouchVerifiedAt {
		set = append(set, bson.E{Key: "verifiedAt", Value: "$$NOW"})
	}
	set = append(set, bson.E{Key: "createdAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$createdAt", "$$NOW"}}}})

	return mongo.Pipeline{{{Key: "$set", Value: set}}}, nil
}

func (d paymentDocument) toRecord() (*domain.PaymentRecord, error) {
	rec := &domain.PaymentRecord{
		ID:            d.ID,
		TransactionID: d.TransactionID,
		Status:        domain.PaymentStatus(d.Status),
		Amount:        d.Amount,
		Method:        d.Method,
		PartnerID:     d.PartnerID,
		Event:         d.Event,
		PerformedAt:   d.PerformedAt,
		Source:        domain.PaymentSource(d.Source),
		VerifiedAt:    d.VerifiedAt,
		UpdatedAt:     d.UpdatedAt,
		CreatedAt:     d.CreatedAt,
	}

	if d.Verification.Type == bson.TypeEmbeddedDocument {
		raw, err := bson.MarshalExtJSON(d.Verification.Document(), false, false)
		if err != nil {
			return nil, fmt.Errorf("encode verification of %s: %w", d.ID, err)
		}
		rec.Verification = json.RawMessage(raw)
	}
	return rec, nil
}
