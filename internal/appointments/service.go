package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/draly94/SW/internal/observability/metrics"
	"github.com/draly94/SW/internal/schedule"
	"github.com/draly94/SW/pkg/logging"
)

var appointmentsTracer = otel.Tracer("clinic.internal.appointments")

// Repository is the persistence surface used by the service.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, branchID, id string, in UpdateInput) (*Appointment, error)
	ListDay(ctx context.Context, branchID, date string, clinicNumber int) ([]Appointment, error)
	ListForPatient(ctx context.Context, branchID, patientID string) ([]Appointment, error)
}

// ClinicCounter reports how many treatment rooms a branch has.
type ClinicCounter interface {
	ClinicCount(ctx context.Context, branchID string) (int, error)
}

// Service validates bookings and maps overlap rejections to ErrSlotConflict.
type Service struct {
	repo    Repository
	clinics ClinicCounter
	metrics *metrics.ClinicMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewService constructs an appointments service.
func NewService(repo Repository, clinics ClinicCounter, m *metrics.ClinicMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, clinics: clinics, metrics: m, logger: logger, now: time.Now}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCreated
	case errors.Is(err, ErrSlotConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}

// Create books a new appointment. Clinic number defaults to 1 and duration
// to one slot.
func (s *Service) Create(ctx context.Context, branchID, actorID string, in CreateInput) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.create", trace.WithAttributes(
		attribute.String("clinic.branch_id", branchID),
		attribute.Int("clinic.clinic_number", in.ClinicNumber),
		attribute.String("clinic.date", in.Date),
	))
	defer span.End()

	started := s.now()
	a, err := s.create(ctx, branchID, actorID, in)
	s.metrics.ObserveBooking("create", outcomeFor(err), s.now().Sub(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeFor(err))
		if errors.Is(err, ErrSlotConflict) {
			s.logger.Info("appointment rejected by overlap constraint", "branch_id", branchID, "clinic_number", in.ClinicNumber, "date", in.Date, "time", in.Time)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("clinic.appointment_id", a.ID))
	s.logger.Info("appointment created", "branch_id", branchID, "appointment_id", a.ID, "clinic_number", a.ClinicNumber)
	return a, nil
}

func (s *Service) create(ctx context.Context, branchID, actorID string, in CreateInput) (*Appointment, error) {
	if strings.TrimSpace(in.PatientID) == "" {
		return nil, fmt.Errorf("%w: patient_id required", ErrInvalid)
	}
	if in.ClinicNumber <= 0 {
		in.ClinicNumber = 1
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = schedule.SlotMinutes
	}
	clock, rng, err := bookingWindow(in.Date, in.Time, in.DurationMinutes)
	if err != nil {
		return nil, err
	}
	a := &Appointment{
		BranchID:        branchID,
		PatientID:       strings.TrimSpace(in.PatientID),
		ProviderID:      strings.TrimSpace(in.ProviderID),
		ClinicNumber:    in.ClinicNumber,
		Date:            in.Date,
		Time:            clock,
		DurationMinutes: in.DurationMinutes,
		Notes:           in.Notes,
		Status:          StatusScheduled,
		CreatedBy:       actorID,
		Range:           rng.String(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Update moves or edits an appointment. The range is recomputed from the new
// date, time and duration.
func (s *Service) Update(ctx context.Context, branchID, id string, in UpdateInput) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.update", trace.WithAttributes(
		attribute.String("clinic.branch_id", branchID),
		attribute.String("clinic.appointment_id", id),
	))
	defer span.End()

	started := s.now()
	a, err := s.update(ctx, branchID, id, in)
	outcome := outcomeFor(err)
	if err == nil {
		outcome = "updated"
	}
	s.metrics.ObserveBooking("update", outcome, s.now().Sub(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcomeFor(err))
		return nil, err
	}
	s.logger.Info("appointment updated", "branch_id", branchID, "appointment_id", id)
	return a, nil
}

func (s *Service) update(ctx context.Context, branchID, id string, in UpdateInput) (*Appointment, error) {
	if in.DurationMinutes == 0 {
		in.DurationMinutes = schedule.SlotMinutes
	}
	clock, rng, err := bookingWindow(in.Date, in.Time, in.DurationMinutes)
	if err != nil {
		return nil, err
	}
	in.Time = clock
	in.Range = rng.String()
	return s.repo.Update(ctx, branchID, id, in)
}

func bookingWindow(date, clock string, duration int) (string, schedule.TimeRange, error) {
	if strings.TrimSpace(clock) == "" {
		return "", schedule.TimeRange{}, fmt.Errorf("%w: appointment_time required", ErrInvalid)
	}
	normalized, err := schedule.NormalizeClock(clock)
	if err != nil {
		return "", schedule.TimeRange{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	rng, err := schedule.Range(date, normalized, duration)
	if err != nil {
		return "", schedule.TimeRange{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return normalized, rng, nil
}

// ListForPatient returns the patient's history, newest first.
func (s *Service) ListForPatient(ctx context.Context, branchID, patientID string) ([]Appointment, error) {
	return s.repo.ListForPatient(ctx, branchID, patientID)
}

// DayView loads one clinic room's appointments for date and lays them out
// over the grid.
func (s *Service) DayView(ctx context.Context, branchID, date string, clinicNumber int) (*DayView, error) {
	if _, err := schedule.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	count := 1
	if s.clinics != nil {
		n, err := s.clinics.ClinicCount(ctx, branchID)
		if err != nil {
			return nil, fmt.Errorf("appointments: clinic count: %w", err)
		}
		count = n
	}
	clinics := schedule.ClinicNumbers(count)
	index := schedule.ClinicIndex(clinicNumber, len(clinics))
	clinicNumber = clinics[index]

	list, err := s.repo.ListDay(ctx, branchID, date, clinicNumber)
	if err != nil {
		return nil, err
	}
	return BuildDayView(date, clinicNumber, clinics, list, s.now()), nil
}
