// Package patients keeps the patient register of a branch.
package patients

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	// PageSize bounds the latest and search lists.
	PageSize = 10
	// MinSearchLength is the shortest query that reaches the database.
	MinSearchLength = 2
	// AgeUnknown is shown when no date of birth is recorded.
	AgeUnknown = "N/A"
)

var (
	ErrNotFound = errors.New("patients: not found")
	ErrInvalid  = errors.New("patients: invalid input")
)

// Patient is a person treated at a branch.
type Patient struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	Name      string    `json:"name"`
	DOB       string    `json:"dob"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	GovID     string    `json:"gov_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Input is the editable part of a patient record.
type Input struct {
	Name    string `json:"name"`
	DOB     string `json:"dob"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	GovID   string `json:"gov_id"`
}

func (in Input) trimmed() Input {
	return Input{
		Name:    strings.TrimSpace(in.Name),
		DOB:     strings.TrimSpace(in.DOB),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
		GovID:   strings.TrimSpace(in.GovID),
	}
}

func (in Input) validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if in.DOB != "" {
		if _, err := time.Parse("2006-01-02", in.DOB); err != nil {
			return fmt.Errorf("%w: dob must be YYYY-MM-DD", ErrInvalid)
		}
	}
	return nil
}

// ChangedFields lists the columns whose value differs between p and in.
func ChangedFields(p *Patient, in Input) []string {
	var out []string
	if p.Name != in.Name {
		out = append(out, "name")
	}
	if p.DOB != in.DOB {
		out = append(out, "dob")
	}
	if p.Phone != in.Phone {
		out = append(out, "phone")
	}
	if p.Address != in.Address {
		out = append(out, "address")
	}
	if p.GovID != in.GovID {
		out = append(out, "gov_id")
	}
	return out
}

// Age returns whole years between dob and now. ok is false when dob is
// empty or unparseable.
func Age(dob string, now time.Time) (int, bool) {
	born, err := time.Parse("2006-01-02", strings.TrimSpace(dob))
	if err != nil {
		return 0, false
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	return years, true
}

// Mask hides all but the last four characters of a sensitive value.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	r := []rune(value)
	if len(r) <= 4 {
		return "****"
	}
	return "****" + string(r[len(r)-4:])
}

// CleanPhone strips everything but digits, for wa.me and tel: links.
func CleanPhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

// View is a patient as returned to clients.
type View struct {
	Patient
	Age       string `json:"age"`
	PhoneLink string `json:"phone_link,omitempty"`
	Masked    bool   `json:"masked"`
}

// NewView builds the client representation of p. Phone, address and gov_id
// are masked unless reveal is set.
func NewView(p Patient, reveal bool, now time.Time) View {
	v := View{Patient: p, Age: AgeUnknown}
	if years, ok := Age(p.DOB, now); ok {
		v.Age = strconv.Itoa(years)
	}
	if reveal {
		v.PhoneLink = CleanPhone(p.Phone)
		return v
	}
	v.Masked = true
	v.Phone = Mask(p.Phone)
	v.Address = Mask(p.Address)
	v.GovID = Mask(p.GovID)
	return v
}
