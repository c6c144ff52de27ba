// Package appointments books treatment-room time and renders the day grid.
package appointments

import (
	"errors"
	"time"
)

// StatusScheduled is the status of a newly booked appointment.
const StatusScheduled = "scheduled"

// ConflictMessage is shown when the overlap constraint rejects a booking.
const ConflictMessage = "Conflict: This time slot overlaps with an existing appointment."

var (
	// ErrSlotConflict means another appointment already holds part of the range.
	ErrSlotConflict = errors.New("appointments: slot conflict")
	// ErrNotFound is returned when the appointment does not exist in the branch.
	ErrNotFound = errors.New("appointments: not found")
	// ErrInvalid wraps input validation failures.
	ErrInvalid = errors.New("appointments: invalid input")
)

// Appointment is a booking of a clinic room for a patient.
type Appointment struct {
	ID              string    `json:"id"`
	BranchID        string    `json:"branch_id"`
	PatientID       string    `json:"patient_id"`
	ProviderID      string    `json:"user_id,omitempty"`
	ClinicNumber    int       `json:"clinic_number"`
	Date            string    `json:"appointment_date"`
	Time            string    `json:"appointment_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes"`
	Status          string    `json:"status"`
	CreatedBy       string    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	PatientName     string    `json:"patient_name,omitempty"`
	ProviderName    string    `json:"provider_name,omitempty"`

	// Range is the half-open booking interval in tstzrange literal form.
	Range string `json:"-"`
}

// CreateInput is the booking form payload.
type CreateInput struct {
	PatientID       string `json:"patient_id"`
	ProviderID      string `json:"user_id"`
	ClinicNumber    int    `json:"clinic_number"`
	Date            string `json:"appointment_date"`
	Time            string `json:"appointment_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes"`
}

// UpdateInput is the edit form payload.
type UpdateInput struct {
	Date            string `json:"appointment_date"`
	Time            string `json:"appointment_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes"`

	// Range is filled by the service before the update reaches the store.
	Range string `json:"-"`
}
