package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Repository persists payment rows keyed by the gateway transaction id.
type Repository interface {
	RecordPending(ctx context.Context, transactionID, leadID string, amount int) error
	RecordResult(ctx context.Context, transactionID, status, message string) error
	Get(ctx context.Context, transactionID string) (*Record, error)
}

// SQLRepository stores payments through database/sql (pgx stdlib driver in production).
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	if db == nil {
		panic("payments: sql db required")
	}
	return &SQLRepository{db: db}
}

func (r *SQLRepository) RecordPending(ctx context.Context, transactionID, leadID string, amount int) error {
	query := `
		INSERT INTO payments (id, lead_id, amount, payment_status, payment_message, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, '', NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET lead_id = EXCLUDED.lead_id, amount = EXCLUDED.amount, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, transactionID, leadID, amount, StatusPending); err != nil {
		return fmt.Errorf("payments: record pending: %w", err)
	}
	return nil
}

// RecordResult writes the verified status. A callback for an unknown
// transaction still produces a row.
func (r *SQLRepository) RecordResult(ctx context.Context, transactionID, status, message string) error {
	query := `
		INSERT INTO payments (id, amount, payment_status, payment_message, created_at, updated_at)
		VALUES ($1, 0, $2, $3, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET payment_status = EXCLUDED.payment_status,
			payment_message = EXCLUDED.payment_message, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, transactionID, status, message); err != nil {
		return fmt.Errorf("payments: record result: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, transactionID string) (*Record, error) {
	query := `
		SELECT id, COALESCE(lead_id::text, ''), amount, payment_status, payment_message, created_at, updated_at
		FROM payments
		WHERE id = $1
	`
	var rec Record
	err := r.db.QueryRowContext(ctx, query, transactionID).Scan(
		&rec.ID, &rec.LeadID, &rec.Amount, &rec.Status, &rec.Message, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payments: get: %w", err)
	}
	return &rec, nil
}

// MemoryRepository keeps payments in process.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]Record)}
}

func (m *MemoryRepository) RecordPending(ctx context.Context, transactionID, leadID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	rec, ok := m.records[transactionID]
	if !ok {
		rec = Record{ID: transactionID, Status: StatusPending, CreatedAt: now}
	}
	rec.LeadID = leadID
	rec.Amount = amount
	rec.UpdatedAt = now
	m.records[transactionID] = rec
	return nil
}

func (m *MemoryRepository) RecordResult(ctx context.Context, transactionID, status, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	rec, ok := m.records[transactionID]
	if !ok {
		rec = Record{ID: transactionID, CreatedAt: now}
	}
	rec.Status = status
	rec.Message = message
	rec.UpdatedAt = now
	m.records[transactionID] = rec
	return nil
}

func (m *MemoryRepository) Get(ctx context.Context, transactionID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[transactionID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &rec, nil
}
