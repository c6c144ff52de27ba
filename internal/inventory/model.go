// Package inventory keeps the stock list of a branch.
package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/draly94/SW/internal/branches"
)

// PageSize is the number of items per page.
const PageSize = 10

// MaxPage is the highest page index List accepts; it keeps the row offset
// well inside int range.
const MaxPage = 100000

var (
	ErrInvalid  = errors.New("inventory: invalid input")
	ErrNotFound = errors.New("inventory: item not found")
)

// Details is the JSONB document stored per item.
type Details struct {
	Name        branches.Label  `json:"name"`
	Category    *branches.Label `json:"category"`
	SubCategory *branches.Label `json:"sub_category"`
}

type Item struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	Stock     int       `json:"stock"`
	Details   Details   `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a listing. Category and SubCategory are English names.
type Filter struct {
	Page        int
	Category    string
	SubCategory string
	Query       string
}

// Page is one page of items.
type Page struct {
	Items   []Item `json:"items"`
	Page    int    `json:"page"`
	HasMore bool   `json:"has_more"`
}

// Quantity decodes a stock value from a JSON number or string. Anything that
// is not an integer reads as zero.
type Quantity int

func (q *Quantity) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		raw = strings.TrimSpace(s)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			n = int(f)
		} else {
			n = 0
		}
	}
	*q = Quantity(n)
	return nil
}

// CreateInput is the body of a new item.
type CreateInput struct {
	NameEn      string   `json:"name_en"`
	NameAr      string   `json:"name_ar"`
	Category    string   `json:"category"`
	SubCategory string   `json:"sub_category"`
	Stock       Quantity `json:"stock"`
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.NameEn) == "" && strings.TrimSpace(in.NameAr) == "" {
		return fmt.Errorf("%w: item name is required", ErrInvalid)
	}
	if in.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalid)
	}
	return nil
}

// resolveDetails builds the stored document, keeping category and
// sub-category only when they exist in the branch catalog.
func resolveDetails(in CreateInput, catalog branches.Catalog) Details {
	d := Details{Name: branches.Label{En: strings.TrimSpace(in.NameEn), Ar: strings.TrimSpace(in.NameAr)}}
	cat, ok := catalog.Find(in.Category)
	if !ok {
		return d
	}
	name := cat.Name
	d.Category = &name
	if sub, ok := cat.FindSub(in.SubCategory); ok {
		d.SubCategory = &sub
	}
	return d
}
