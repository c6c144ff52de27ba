package appointments

import (
	"time"

	"github.com/draly94/SW/internal/schedule"
)

// Card labels used when the joined names are missing.
const (
	FallbackPatient  = "Booked"
	FallbackProvider = "Unassigned"
)

// Card is an appointment positioned over the grid.
type Card struct {
	Appointment
	Title     string             `json:"title"`
	Provider  string             `json:"provider"`
	TimeLabel string             `json:"time_label"`
	Placement schedule.Placement `json:"placement"`
}

// DayView is everything needed to draw one clinic room for one day.
type DayView struct {
	Date         string          `json:"date"`
	ClinicNumber int             `json:"clinic_number"`
	Clinics      []int           `json:"clinics"`
	PrevClinic   int             `json:"prev_clinic"`
	NextClinic   int             `json:"next_clinic"`
	Slots        []schedule.Slot `json:"slots"`
	ScrollAnchor int             `json:"scroll_anchor"`
	Cards        []Card          `json:"cards"`
}

// BuildDayView lays out appointments for a date and clinic room.
func BuildDayView(date string, clinicNumber int, clinics []int, list []Appointment, now time.Time) *DayView {
	if len(clinics) == 0 {
		clinics = schedule.ClinicNumbers(0)
	}
	day, _ := schedule.ParseDate(date)
	slots := schedule.DaySlots(day, now.UTC())
	index := schedule.ClinicIndex(clinicNumber, len(clinics))

	view := &DayView{
		Date:         date,
		ClinicNumber: clinicNumber,
		Clinics:      clinics,
		PrevClinic:   clinics[schedule.PrevClinic(index, len(clinics))],
		NextClinic:   clinics[schedule.NextClinic(index, len(clinics))],
		Slots:        slots,
		ScrollAnchor: schedule.ScrollAnchor(slots),
		Cards:        make([]Card, 0, len(list)),
	}
	for _, a := range list {
		start, err := schedule.ParseClock(a.Time)
		if err != nil {
			continue
		}
		card := Card{
			Appointment: a,
			Title:       a.PatientName,
			Provider:    a.ProviderName,
			TimeLabel:   schedule.FormatAMPM(start),
			Placement:   schedule.Place(start, a.DurationMinutes),
		}
		if card.Title == "" {
			card.Title = FallbackPatient
		}
		if card.Provider == "" {
			card.Provider = FallbackProvider
		}
		view.Cards = append(view.Cards, card)
	}
	return view
}
