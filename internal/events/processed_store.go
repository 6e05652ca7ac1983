package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProcessedStore de-duplicates queue deliveries per consumer. SQS is
// at-least-once, so a redelivered envelope must not send a second email.
type ProcessedStore struct {
	db execer
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{db: pool}
}

func newProcessedStoreWithExec(db execer) *ProcessedStore {
	if db == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{db: db}
}

// Claim records eventID for consumer. It reports false when another
// delivery already claimed it.
func (s *ProcessedStore) Claim(ctx context.Context, consumer, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (consumer, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, consumer, eventID)
	if err != nil {
		return false, fmt.Errorf("events: claim: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Release drops a claim so a failed delivery can be retried.
func (s *ProcessedStore) Release(ctx context.Context, consumer, eventID string) error {
	query := `DELETE FROM processed_events WHERE consumer = $1 AND event_id = $2`
	if _, err := s.db.Exec(ctx, query, consumer, eventID); err != nil {
		return fmt.Errorf("events: release: %w", err)
	}
	return nil
}
