package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// EventTypeReconciled is the event_type of every published message.
const EventTypeReconciled = "payment.reconciled"

// publishTimeout bounds how long a request waits on the brokers.
const publishTimeout = 2 * time.Second

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatusPublisher implements ports.StatusPublisher on a Kafka topic.
// Messages are keyed by document ID so updates for one record stay ordered.
type StatusPublisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

// NewStatusPublisher creates a publisher writing to topic on the given brokers.
func NewStatusPublisher(brokers []string, topic string, log zerolog.Logger) *StatusPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  1,
		WriteTimeout: publishTimeout,
	}
	return newStatusPublisher(writer, topic, log)
}

func newStatusPublisher(w messageWriter, topic string, log zerolog.Logger) *StatusPublisher {
	return &StatusPublisher{
		writer:  w,
		topic:   topic,
		timeout: publishTimeout,
		log:     log.With().Str("component", "kafka_publisher").Str("topic", topic).Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// reconciledEvent is the JSON payload of a payment.reconciled message.
type reconciledEvent struct {
	EventID       string  `json:"event_id"`
	EventType     string  `json:"event_type"`
	EventVersion  int     `json:"event_version"`
	OccurredAt    string  `json:"occurred_at"`
	DocumentID    string  `json:"document_id"`
	TransactionID *string `json:"transaction_id"`
	Status        string  `json:"status"`
	Source        string  `json:"source"`
	Amount        float64 `json:"amount"`
	Event         string  `json:"event,omitempty"`
}

// PublishReconciled writes one event describing the stored record.
func (p *StatusPublisher) PublishReconciled(ctx context.Context, rec *domain.PaymentRecord) error {
	if rec == nil {
		return nil
	}

	payload, err := json.Marshal(reconciledEvent{
		EventID:       uuid.New().String(),
		EventType:     EventTypeReconciled,
		EventVersion:  1,
		OccurredAt:    p.now().Format(time.RFC3339),
		DocumentID:    rec.ID,
		TransactionID: rec.TransactionID,
		Status:        string(rec.Status),
		Source:        string(rec.Source),
		Amount:        rec.Amount,
		Event:         rec.Event,
	})
	if err != nil {
		return fmt.Errorf("marshaling reconciled event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.ID),
		Value: payload,
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error().Err(err).Str("doc_id", rec.ID).Msg("Failed to publish reconciled event")
		return fmt.Errorf("publishing reconciled event: %w", err)
	}

	p.log.Debug().
		Str("doc_id", rec.ID).
		Str("status", string(rec.Status)).
		Msg("Reconciled event published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *StatusPublisher) Close() error {
	return p.writer.Close()
}
