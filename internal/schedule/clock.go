// Package schedule holds the arithmetic of the day grid: clock parsing and
// formatting, the 15 minute slot rows, card placement and booking ranges.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	SlotMinutes       = 15
	SlotsPerDay       = 24 * 60 / SlotMinutes
	SlotHeightPx      = 60
	MinutesPerDay     = 24 * 60
	DefaultAnchorSlot = 8 * 60 / SlotMinutes
)

// ErrInvalidClock is returned for times that are neither HH:MM nor h:MM AM/PM.
var ErrInvalidClock = errors.New("schedule: invalid clock time")

// ParseClock converts "HH:MM", "HH:MM:SS" or "h:MM AM|PM" into minutes since
// midnight. An empty string is midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	upper := strings.ToUpper(s)
	meridiem := ""
	switch {
	case strings.HasSuffix(upper, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(upper, "PM"):
		meridiem = "PM"
	}
	if meridiem != "" {
		upper = strings.TrimSpace(strings.TrimSuffix(upper, meridiem))
	}

	parts := strings.Split(upper, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	if meridiem != "" {
		if h < 1 || h > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		if meridiem == "PM" && h < 12 {
			h += 12
		}
		if meridiem == "AM" && h == 12 {
			h = 0
		}
	} else if h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// FormatAMPM renders minutes since midnight as "h:MM AM".
func FormatAMPM(minutes int) string {
	minutes = normalizeMinutes(minutes)
	h, m := minutes/60, minutes%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, m, suffix)
}

// Format24 renders minutes since midnight as zero padded "HH:MM".
func Format24(minutes int) string {
	minutes = normalizeMinutes(minutes)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock parses any accepted clock form and returns it as "HH:MM".
func NormalizeClock(s string) (string, error) {
	minutes, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return Format24(minutes), nil
}

func normalizeMinutes(minutes int) int {
	minutes %= MinutesPerDay
	if minutes < 0 {
		minutes += MinutesPerDay
	}
	return minutes
}
