package patients

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/draly94/SW/pkg/logging"
)

// Repository is the persistence surface of the service.
type Repository interface {
	Create(ctx context.Context, branchID string, in Input) (*Patient, error)
	Latest(ctx context.Context, branchID string, limit int) ([]Patient, error)
	SearchByName(ctx context.Context, branchID, prefix string, limit int) ([]Patient, error)
	Get(ctx context.Context, branchID, id string) (*Patient, error)
	Update(ctx context.Context, branchID, id string, in Input) (*Patient, error)
}

// Auditor records patient changes; *compliance.AuditService satisfies it.
type Auditor interface {
	LogPatientUpdated(ctx context.Context, branchID, actorID, patientID string, fields []string) error
	LogPatientRevealed(ctx context.Context, branchID, actorID, patientID string, fields []string) error
}

// Service applies validation and auditing around the store.
type Service struct {
	repo   Repository
	audit  Auditor
	logger *logging.Logger
}

// NewService constructs a patients service. audit may be nil.
func NewService(repo Repository, audit Auditor, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create registers a new patient.
func (s *Service) Create(ctx context.Context, branchID string, in Input) (*Patient, error) {
	in = in.trimmed()
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.repo.Create(ctx, branchID, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("patient created", "branch_id", branchID, "patient_id", p.ID)
	return p, nil
}

// Latest returns the ten newest patients.
func (s *Service) Latest(ctx context.Context, branchID string) ([]Patient, error) {
	return s.repo.Latest(ctx, branchID, PageSize)
}

// Search finds patients by name prefix. Queries shorter than two characters
// return nothing without touching the database. limit is capped at PageSize.
func (s *Service) Search(ctx context.Context, branchID, query string, limit int) ([]Patient, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchLength {
		return []Patient{}, nil
	}
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}
	return s.repo.SearchByName(ctx, branchID, query, limit)
}

// Get loads one patient. A reveal by actorID is audited.
func (s *Service) Get(ctx context.Context, branchID, actorID, id string, reveal bool) (*Patient, error) {
	p, err := s.repo.Get(ctx, branchID, id)
	if err != nil {
		return nil, err
	}
	if reveal && s.audit != nil {
		if err := s.audit.LogPatientRevealed(ctx, branchID, actorID, id, []string{"phone", "address", "gov_id"}); err != nil {
			s.logger.Warn("failed to audit patient reveal", "branch_id", branchID, "patient_id", id, "error", err)
		}
	}
	return p, nil
}

// Update edits a patient and audits the changed fields.
func (s *Service) Update(ctx context.Context, branchID, actorID, id string, in Input) (*Patient, error) {
	in = in.trimmed()
	if err := in.validate(); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, branchID, id)
	if err != nil {
		return nil, err
	}
	changed := ChangedFields(current, in)
	if len(changed) == 0 {
		return current, nil
	}
	updated, err := s.repo.Update(ctx, branchID, id, in)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		if err := s.audit.LogPatientUpdated(ctx, branchID, actorID, id, changed); err != nil {
			s.logger.Warn("failed to audit patient update", "branch_id", branchID, "patient_id", id, "error", err)
		}
	}
	s.logger.Info("patient updated", "branch_id", branchID, "patient_id", id, "fields", changed)
	return updated, nil
}
