package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore records outbox entries whose side effect already ran, so an
// entry whose delivered mark was lost is not sent twice.
type ProcessedStore struct {
	db rowQuerier
}

func NewProcessedStore(db rowQuerier) *ProcessedStore {
	if db == nil {
		panic("events: database required")
	}
	return &ProcessedStore{db: db}
}

// AlreadyProcessed reports whether handler already ran for eventID.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, handler, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE handler = $1 AND event_id = $2`
	var exists int
	if err := s.db.QueryRow(ctx, query, handler, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed records eventID for handler, returning false if it was
// already recorded.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, handler, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (handler, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.db.Exec(ctx, query, handler, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Once skips entries already recorded under name and records entries after h
// succeeds.
func (s *ProcessedStore) Once(name string, h DeliveryHandler) DeliveryHandler {
	return HandlerFunc(func(ctx context.Context, entry OutboxEntry) error {
		eventID := entry.ID.String()
		done, err := s.AlreadyProcessed(ctx, name, eventID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := h.Handle(ctx, entry); err != nil {
			return err
		}
		_, err = s.MarkProcessed(ctx, name, eventID)
		return err
	})
}
