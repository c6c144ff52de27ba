package schedule

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate     = errors.New("schedule: invalid date")
	ErrInvalidDuration = errors.New("schedule: duration must be a positive multiple of 15 minutes")
)

// Slot is one 15 minute row of the day grid.
type Slot struct {
	Index    int    `json:"index"`
	Minutes  int    `json:"minutes"`
	Value    string `json:"value"`
	Label    string `json:"label"`
	HourMark bool   `json:"hour_mark"`
	IsNow    bool   `json:"is_now"`
}

// Placement positions an appointment card over the grid in pixels.
type Placement struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// DaySlots builds the 96 rows for date. A row is marked IsNow when date is
// the same calendar day as now and now falls inside the row.
func DaySlots(date, now time.Time) []Slot {
	y, mo, d := date.Date()
	ny, nmo, nd := now.Date()
	today := y == ny && mo == nmo && d == nd
	nowMinutes := now.Hour()*60 + now.Minute()

	slots := make([]Slot, 0, SlotsPerDay)
	for i := 0; i < SlotsPerDay; i++ {
		start := i * SlotMinutes
		slots = append(slots, Slot{
			Index:    i,
			Minutes:  start,
			Value:    Format24(start),
			Label:    FormatAMPM(start),
			HourMark: start%60 == 0,
			IsNow:    today && nowMinutes >= start && nowMinutes < start+SlotMinutes,
		})
	}
	return slots
}

// Place computes a card position. Non-positive durations count as one slot.
func Place(startMinutes, durationMinutes int) Placement {
	if durationMinutes <= 0 {
		durationMinutes = SlotMinutes
	}
	return Placement{
		Top:    float64(startMinutes) / SlotMinutes * SlotHeightPx,
		Height: float64(durationMinutes)/SlotMinutes*SlotHeightPx - 2,
	}
}

// ScrollAnchor returns the index of the current-time row, or the 08:00 row.
func ScrollAnchor(slots []Slot) int {
	for _, s := range slots {
		if s.IsNow {
			return s.Index
		}
	}
	return DefaultAnchorSlot
}

// ValidDuration reports whether d is a positive multiple of the slot length.
func ValidDuration(d int) bool {
	return d > 0 && d%SlotMinutes == 0
}

// TimeRange is a half-open [Start, End) interval in UTC.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// String renders the range as a Postgres tstzrange literal.
func (r TimeRange) String() string {
	return fmt.Sprintf("[%s,%s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// Overlaps reports whether two half-open ranges share any instant.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Range builds the booking interval for a date, clock time and duration.
// Times are taken as UTC wall clock, matching how the grid is rendered.
func Range(date, clock string, durationMinutes int) (TimeRange, error) {
	day, err := ParseDate(date)
	if err != nil {
		return TimeRange{}, err
	}
	minutes, err := ParseClock(clock)
	if err != nil {
		return TimeRange{}, err
	}
	if !ValidDuration(durationMinutes) {
		return TimeRange{}, ErrInvalidDuration
	}
	start := day.Add(time.Duration(minutes) * time.Minute)
	return TimeRange{
		Start: start,
		End:   start.Add(time.Duration(durationMinutes) * time.Minute),
	}, nil
}

// ParseDate parses a YYYY-MM-DD date at UTC midnight.
func ParseDate(date string) (time.Time, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return day.UTC(), nil
}
