// Package compliance records who changed patient records and staff access.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// EventPatientUpdated is logged when a patient record is edited.
	EventPatientUpdated AuditEventType = "patient.updated"
	// EventPatientRevealed is logged when masked patient fields are shown in clear.
	EventPatientRevealed AuditEventType = "patient.revealed"
	// EventPermissionChanged is logged when a staff permission flag is toggled.
	EventPermissionChanged AuditEventType = "permission.changed"
	// EventInvitationSent is logged when staff are invited or re-invited.
	EventInvitationSent AuditEventType = "invitation.sent"
)

// AuditEvent represents an immutable audit record.
type AuditEvent struct {
	ID            string          `json:"id"`
	EventType     AuditEventType  `json:"event_type"`
	BranchID      string          `json:"branch_id"`
	ActorID       string          `json:"actor_id,omitempty"`
	SubjectID     string          `json:"subject_id,omitempty"`
	ChangedFields []string        `json:"changed_fields"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For permission changed
	Flag  string `json:"flag,omitempty"`
	Value *bool  `json:"value,omitempty"`

	// For invitation sent
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Resend bool   `json:"resend,omitempty"`
}

// AuditService handles audit logging.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records an audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.ChangedFields == nil {
		event.ChangedFields = []string{}
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, branch_id, actor_id, subject_id,
			changed_fields, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		nullString(event.BranchID),
		nullString(event.ActorID),
		nullString(event.SubjectID),
		pq.Array(event.ChangedFields),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogPatientUpdated logs the fields changed on a patient record.
func (s *AuditService) LogPatientUpdated(ctx context.Context, branchID, actorID, patientID string, fields []string) error {
	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventPatientUpdated,
		BranchID:      branchID,
		ActorID:       actorID,
		SubjectID:     patientID,
		ChangedFields: fields,
	})
}

// LogPatientRevealed logs that masked fields were returned in clear text.
func (s *AuditService) LogPatientRevealed(ctx context.Context, branchID, actorID, patientID string, fields []string) error {
	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventPatientRevealed,
		BranchID:      branchID,
		ActorID:       actorID,
		SubjectID:     patientID,
		ChangedFields: fields,
	})
}

// LogPermissionChanged logs a toggled permission flag.
func (s *AuditService) LogPermissionChanged(ctx context.Context, branchID, actorID, userID, flag string, value bool) error {
	details := AuditDetails{Flag: flag, Value: &value}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType:     EventPermissionChanged,
		BranchID:      branchID,
		ActorID:       actorID,
		SubjectID:     userID,
		ChangedFields: []string{flag},
		Details:       detailsJSON,
	})
}

// LogInvitationSent logs an invitation or re-invitation.
func (s *AuditService) LogInvitationSent(ctx context.Context, branchID, actorID, email, role string, resend bool) error {
	details := AuditDetails{Email: email, Role: role, Resend: resend}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventInvitationSent,
		BranchID:  branchID,
		ActorID:   actorID,
		SubjectID: email,
		Details:   detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, branch_id, actor_id, subject_id,
			   changed_fields, details, created_at
		FROM audit_events
		WHERE branch_id = $1
	`
	args := []interface{}{filter.BranchID}
	argIdx := 2

	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND subject_id = $%d", argIdx)
		args = append(args, filter.SubjectID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []AuditEvent{}
	for rows.Next() {
		var e AuditEvent
		var branchID, actorID, subjectID sql.NullString
		var details []byte
		err := rows.Scan(
			&e.ID, &e.EventType, &branchID, &actorID, &subjectID,
			pq.Array(&e.ChangedFields), &details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.BranchID = branchID.String
		e.ActorID = actorID.String
		e.SubjectID = subjectID.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to read audit events: %w", err)
	}

	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	BranchID  string
	SubjectID string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
