package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zidane123-web/payment/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, transaction_id, status, amount, method, partner_id, event,
	performed_at, verification, source, verified_at, updated_at, created_at`

// statusGuard keeps a stored success when the incoming status is degraded.
const statusGuard = `CASE WHEN payments.status = 'success' AND EXCLUDED.status IN ('pending', 'unknown')
		THEN payments.status ELSE EXCLUDED.status END`

// PaymentStore implements ports.PaymentStore on the payments table.
type PaymentStore struct {
	pool Pool
}

// NewPaymentStore creates a new PaymentStore.
func NewPaymentStore(pool Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

// Merge upserts only the columns carried by the patch in a single statement.
// Columns the patch does not carry keep their stored value on conflict.
func (s *PaymentStore) Merge(ctx context.Context, id string, p domain.PaymentPatch) (*domain.PaymentRecord, error) {
	query, args := buildMergeQuery(id, p)

	rec, err := scanPayment(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("merge payment %s: %w", id, err)
	}
	return rec, nil
}

// Get fetches a payment record by document ID.
func (s *PaymentStore) Get(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	rec, err := scanPayment(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}
	return rec, nil
}

func buildMergeQuery(id string, p domain.PaymentPatch) (string, []any) {
	var verification any
	if len(p.Verification) > 0 {
		verification = []byte(p.Verification)
	}

	cols := []string{"id", "transaction_id", "status", "verification", "source"}
	args := []any{id, p.TransactionID, string(p.Status), verification, string(p.Source)}

	if n := p.Notification; n != nil {
		cols = append(cols, "amount", "method", "partner_id", "event", "performed_at")
		args = append(args, n.Amount, n.Method, n.PartnerID, n.Event, n.PerformedAt.UTC())
	}

	values := make([]string, 0, len(cols)+2)
	for i := range cols {
		values = append(values, fmt.Sprintf("$%d", i+1))
	}

	// Server timestamps are assigned by the database, never by the caller.
	if p.TouchUpdatedAt {
		cols = append(cols, "updated_at")
		values = append(values, "now()")
	}
	if p.TouchVerifiedAt {
		cols = append(cols, "verified_at")
		values = append(values, "now()")
	}

	sets := make([]string, 0, len(cols))
	for _, c := range cols[1:] {
		if c == "status" {
			sets = append(sets, "status = "+statusGuard)
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	var b strings.Builder
	b.WriteString("INSERT INTO payments (")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(", created_at) VALUES (")
	b.WriteString(strings.Join(values, ", "))
	b.WriteString(", now())\n\tON CONFLICT (id) DO UPDATE SET ")
	b.WriteString(strings.Join(sets, ",\n\t\t"))
	b.WriteString("\n\tRETURNING ")
	b.WriteString(paymentColumns)

	return b.String(), args
}

func scanPayment(row pgx.Row) (*domain.PaymentRecord, error) {
	var (
		rec          domain.PaymentRecord
		status       string
		source       string
		verification []byte
		performedAt  *time.Time
		verifiedAt   *time.Time
		updatedAt    *time.Time
	)

	err := row.Scan(
		&rec.ID, &rec.TransactionID, &status, &rec.Amount, &rec.Method, &rec.PartnerID, &rec.Event,
		&performedAt, &verification, &source, &verifiedAt, &updatedAt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.PaymentStatus(status)
	rec.Source = domain.PaymentSource(source)
	if len(verification) > 0 {
		rec.Verification = json.RawMessage(verification)
	}
	rec.PerformedAt = performedAt
	rec.VerifiedAt = verifiedAt
	rec.UpdatedAt = updatedAt
	return &rec, nil
}
