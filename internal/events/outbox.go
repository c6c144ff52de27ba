// Package events queues side effects in the outbox table and delivers them
// from a background poller.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/draly94/SW/internal/observability/metrics"
	"github.com/draly94/SW/pkg/logging"
)

// TypeInvitationEmail carries a sign-in link to an invited staff member.
const TypeInvitationEmail = "invitation.email"

const (
	// MaxAttempts is how many failed deliveries an entry gets before it is
	// parked. Parked rows keep last_error for inspection.
	MaxAttempts = 10

	retryBase = 30 * time.Second
	retryCap  = time.Hour
)

// OutboxEntry represents a pending event.
type OutboxEntry struct {
	ID        uuid.UUID
	BranchID  string
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
	Attempts  int
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// Execer is satisfied by pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Execer
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events for reliable delivery.
type OutboxStore struct {
	db DB
}

func NewOutboxStore(db DB) *OutboxStore {
	if db == nil {
		panic("events: database required")
	}
	return &OutboxStore{db: db}
}

// Insert queues an event on the store's connection.
func (s *OutboxStore) Insert(ctx context.Context, branchID string, eventType string, payload any) (uuid.UUID, error) {
	return InsertWith(ctx, s.db, branchID, eventType, payload)
}

// InsertWith queues an event on exec, so callers can enqueue inside their
// own transaction.
func InsertWith(ctx context.Context, exec Execer, branchID string, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO outbox (id, branch_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := exec.Exec(ctx, query, id, branchID, eventType, data); err != nil {
		return uuid.Nil, fmt.Errorf("events: insert outbox: %w", err)
	}
	return id, nil
}

// FetchPending returns undelivered entries that are due and still have
// attempts left, oldest due first.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, COALESCE(branch_id::text, ''), type, payload, created_at, attempts
		FROM outbox
		WHERE delivered_at IS NULL AND next_attempt_at <= now() AND attempts < $2
		ORDER BY next_attempt_at, created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit, MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.Type, &payload, &entry.CreatedAt, &entry.Attempts); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MarkFailed records a failed attempt and pushes the entry back with
// exponential backoff capped at an hour.
func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1,
			last_error = $2,
			next_attempt_at = now() + LEAST($3::float8 * power(2, attempts), $4::float8) * interval '1 second'
		WHERE id = $1 AND delivered_at IS NULL
	`
	if _, err := s.db.Exec(ctx, query, id, cause, retryBase.Seconds(), retryCap.Seconds()); err != nil {
		return fmt.Errorf("events: mark failed: %w", err)
	}
	return nil
}

// PendingStore is the part of OutboxStore the deliverer needs.
type PendingStore interface {
	FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, cause string) error
}

// Deliverer polls the outbox and invokes the handler. Failed entries are
// rescheduled so they do not hold back the rest of the queue.
type Deliverer struct {
	store     PendingStore
	handler   DeliveryHandler
	logger    *logging.Logger
	metrics   *metrics.ClinicMetrics
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store PendingStore, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  5 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) WithMetrics(m *metrics.ClinicMetrics) *Deliverer {
	d.metrics = m
	return d
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Deliverer) drain(ctx context.Context) {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return
	}
	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			d.metrics.ObserveOutbox(entry.Type, "failed")
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type, "attempt", entry.Attempts+1)
			if markErr := d.store.MarkFailed(ctx, entry.ID, err.Error()); markErr != nil {
				d.logger.Error("failed to reschedule outbox entry", "error", markErr, "event_id", entry.ID)
			} else if entry.Attempts+1 >= MaxAttempts {
				d.logger.Warn("outbox entry parked after max attempts", "event_id", entry.ID, "type", entry.Type)
			}
			continue
		}
		d.metrics.ObserveOutbox(entry.Type, "delivered")
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
}

// HandlerFunc adapts a function to DeliveryHandler.
type HandlerFunc func(ctx context.Context, entry OutboxEntry) error

func (f HandlerFunc) Handle(ctx context.Context, entry OutboxEntry) error {
	return f(ctx, entry)
}

// Router dispatches entries by type. Unknown types are acknowledged and
// dropped.
type Router struct {
	handlers map[string]DeliveryHandler
	logger   *logging.Logger
}

func NewRouter(logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.Default()
	}
	return &Router{handlers: map[string]DeliveryHandler{}, logger: logger}
}

func (r *Router) Register(eventType string, h DeliveryHandler) {
	r.handlers[eventType] = h
}

func (r *Router) Handle(ctx context.Context, entry OutboxEntry) error {
	h, ok := r.handlers[entry.Type]
	if !ok {
		r.logger.Warn("no outbox handler for event type", "type", entry.Type, "event_id", entry.ID)
		return nil
	}
	return h.Handle(ctx, entry)
}
