package events

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/draly94/SW/internal/observability/metrics"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := NewOutboxStore(mock)

	mock.ExpectExec("INSERT INTO outbox").WithArgs(pgxmock.AnyArg(), "branch-1", TypeInvitationEmail, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if _, err := store.Insert(context.Background(), "branch-1", TypeInvitationEmail, map[string]string{"email": "a@b.co"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "branch_id", "type", "payload", "created_at", "attempts"}).AddRow(id, "branch-1", TypeInvitationEmail, []byte("{\"email\":\"a@b.co\"}"), now, 2)
	mock.ExpectQuery(`next_attempt_at <= now\(\) AND attempts < \$2`).WithArgs(int32(10), MaxAttempts).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].BranchID != "branch-1" || entries[0].Attempts != 2 {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	mock.ExpectExec(`SET attempts = attempts \+ 1`).WithArgs(id, "smtp timeout", retryBase.Seconds(), retryCap.Seconds()).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := store.MarkFailed(context.Background(), id, "smtp timeout"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type memoryEntry struct {
	entry     OutboxEntry
	nextDue   time.Time
	delivered bool
	lastError string
}

// memoryStore mirrors the outbox queries: due, undelivered, under the attempt
// cap, ordered by due time, limited to the batch size.
type memoryStore struct {
	now     time.Time
	entries []*memoryEntry
}

func newMemoryStore(now time.Time, entries ...OutboxEntry) *memoryStore {
	m := &memoryStore{now: now}
	for _, e := range entries {
		m.entries = append(m.entries, &memoryEntry{entry: e, nextDue: now})
	}
	return m
}

func (m *memoryStore) find(id uuid.UUID) *memoryEntry {
	for _, e := range m.entries {
		if e.entry.ID == id {
			return e
		}
	}
	return nil
}

func (m *memoryStore) FetchPending(_ context.Context, limit int32) ([]OutboxEntry, error) {
	var due []*memoryEntry
	for _, e := range m.entries {
		if !e.delivered && !e.nextDue.After(m.now) && e.entry.Attempts < MaxAttempts {
			due = append(due, e)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].nextDue.Before(due[j].nextDue) })
	var out []OutboxEntry
	for _, e := range due {
		if int32(len(out)) == limit {
			break
		}
		out = append(out, e.entry)
	}
	return out, nil
}

func (m *memoryStore) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	e := m.find(id)
	if e == nil || e.delivered {
		return false, nil
	}
	e.delivered = true
	return true, nil
}

func (m *memoryStore) MarkFailed(_ context.Context, id uuid.UUID, cause string) error {
	e := m.find(id)
	if e == nil || e.delivered {
		return nil
	}
	delay := retryBase * time.Duration(1<<e.entry.Attempts)
	if delay > retryCap {
		delay = retryCap
	}
	e.entry.Attempts++
	e.lastError = cause
	e.nextDue = m.now.Add(delay)
	return nil
}

func TestDelivererRetriesFailedEntries(t *testing.T) {
	ok := OutboxEntry{ID: uuid.New(), Type: TypeInvitationEmail}
	flaky := OutboxEntry{ID: uuid.New(), Type: TypeInvitationEmail}
	store := newMemoryStore(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), ok, flaky)

	attempts := map[uuid.UUID]int{}
	handler := HandlerFunc(func(_ context.Context, e OutboxEntry) error {
		attempts[e.ID]++
		if e.ID == flaky.ID && attempts[e.ID] == 1 {
			return errors.New("smtp timeout")
		}
		return nil
	})

	d := NewDeliverer(store, handler, nil).WithMetrics(metrics.NewClinicMetrics(prometheus.NewRegistry()))
	d.drain(context.Background())
	if !store.find(ok.ID).delivered || store.find(flaky.ID).delivered {
		t.Fatal("unexpected delivery state after first drain")
	}
	if got := store.find(flaky.ID).lastError; got != "smtp timeout" {
		t.Fatalf("expected failure recorded, got %q", got)
	}

	d.drain(context.Background())
	if attempts[flaky.ID] != 1 {
		t.Fatal("failed entry retried before its backoff elapsed")
	}

	store.now = store.now.Add(retryBase)
	d.drain(context.Background())
	if !store.find(flaky.ID).delivered {
		t.Fatal("expected failed entry to be retried after backoff")
	}
	if attempts[ok.ID] != 1 {
		t.Fatalf("delivered entry handled %d times", attempts[ok.ID])
	}
}

func TestDelivererFailingEntryDoesNotBlockQueue(t *testing.T) {
	poison := OutboxEntry{ID: uuid.New(), Type: TypeInvitationEmail}
	good := OutboxEntry{ID: uuid.New(), Type: TypeInvitationEmail}
	store := newMemoryStore(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), poison, good)

	handler := HandlerFunc(func(_ context.Context, e OutboxEntry) error {
		if e.ID == poison.ID {
			return errors.New("invalid recipient")
		}
		return nil
	})

	d := NewDeliverer(store, handler, nil).WithBatchSize(1)
	d.drain(context.Background())
	d.drain(context.Background())

	if !store.find(good.ID).delivered {
		t.Fatal("entry behind a failing one was never delivered")
	}
	if store.find(poison.ID).entry.Attempts != 1 {
		t.Fatalf("expected one recorded attempt, got %d", store.find(poison.ID).entry.Attempts)
	}
}

func TestDelivererParksEntryAfterMaxAttempts(t *testing.T) {
	poison := OutboxEntry{ID: uuid.New(), Type: TypeInvitationEmail}
	store := newMemoryStore(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), poison)

	calls := 0
	handler := HandlerFunc(func(context.Context, OutboxEntry) error {
		calls++
		return errors.New("invalid recipient")
	})

	d := NewDeliverer(store, handler, nil)
	for i := 0; i < MaxAttempts+3; i++ {
		d.drain(context.Background())
		store.now = store.now.Add(retryCap)
	}

	if calls != MaxAttempts {
		t.Fatalf("expected %d attempts before parking, got %d", MaxAttempts, calls)
	}
	if store.find(poison.ID).delivered {
		t.Fatal("parked entry must stay undelivered")
	}
}

func TestRouterDispatchesByType(t *testing.T) {
	var got []string
	r := NewRouter(nil)
	r.Register(TypeInvitationEmail, HandlerFunc(func(_ context.Context, e OutboxEntry) error {
		got = append(got, e.Type)
		return nil
	}))

	if err := r.Handle(context.Background(), OutboxEntry{Type: TypeInvitationEmail}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Handle(context.Background(), OutboxEntry{Type: "unknown"}); err != nil {
		t.Fatalf("unknown types should be acknowledged: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one dispatch, got %v", got)
	}
}
