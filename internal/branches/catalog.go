package branches

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Kind names one of the per-branch catalog documents.
type Kind string

const (
	KindInventory Kind = "inventory"
	KindPricing   Kind = "pricing"
)

// ErrUnknownKind is returned for catalogs other than inventory and pricing.
var ErrUnknownKind = errors.New("branches: unknown config kind")

// ParseKind validates a catalog kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindInventory:
		return KindInventory, nil
	case KindPricing:
		return KindPricing, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) column() string {
	if k == KindPricing {
		return "pricing_config"
	}
	return "inventory_config"
}

// Label is a bilingual name.
type Label struct {
	En string `json:"en"`
	Ar string `json:"ar"`
}

// UnmarshalJSON accepts the legacy plain-string form as an English label.
func (l *Label) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = Label{En: s}
		return nil
	}
	type plain Label
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = Label(p)
	return nil
}

// Matches reports whether name equals either side of the label.
func (l Label) Matches(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && (strings.EqualFold(l.En, name) || l.Ar == name)
}

// Category is a top-level catalog entry.
type Category struct {
	Name          Label   `json:"name"`
	SubCategories []Label `json:"subCategories"`
}

// Catalog is the inventory_config / pricing_config document.
type Catalog struct {
	Categories []Category `json:"categories"`
}

// DecodeCatalog parses a stored document, upgrading legacy string labels.
// Empty or null input yields an empty catalog.
func DecodeCatalog(raw []byte) (Catalog, error) {
	var c Catalog
	if len(raw) == 0 || string(raw) == "null" {
		c.Categories = []Category{}
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("branches: decode catalog: %w", err)
	}
	c.normalize()
	return c, nil
}

func (c *Catalog) normalize() {
	if c.Categories == nil {
		c.Categories = []Category{}
	}
	for i := range c.Categories {
		if c.Categories[i].SubCategories == nil {
			c.Categories[i].SubCategories = []Label{}
		}
	}
}

// Sanitize strips labels to the allowed character sets: ASCII letters,
// digits and spaces for English; Arabic letters and spaces for Arabic.
func (c Catalog) Sanitize() Catalog {
	out := Catalog{Categories: make([]Category, 0, len(c.Categories))}
	for _, cat := range c.Categories {
		clean := Category{Name: sanitizeLabel(cat.Name), SubCategories: make([]Label, 0, len(cat.SubCategories))}
		for _, sub := range cat.SubCategories {
			clean.SubCategories = append(clean.SubCategories, sanitizeLabel(sub))
		}
		out.Categories = append(out.Categories, clean)
	}
	return out
}

// Find returns the category matching name in either language.
func (c Catalog) Find(name string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Name.Matches(name) {
			return cat, true
		}
	}
	return Category{}, false
}

// FindSub returns the sub-category of cat matching name.
func (cat Category) FindSub(name string) (Label, bool) {
	for _, sub := range cat.SubCategories {
		if sub.Matches(name) {
			return sub, true
		}
	}
	return Label{}, false
}

func sanitizeLabel(l Label) Label {
	return Label{En: SanitizeEnglish(l.En), Ar: SanitizeArabic(l.Ar)}
}

// SanitizeEnglish keeps ASCII letters, digits and whitespace.
func SanitizeEnglish(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', unicode.IsSpace(r):
			return r
		}
		return -1
	}, s)
}

// SanitizeArabic keeps characters of the Arabic block and whitespace.
func SanitizeArabic(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 0x0600 && r <= 0x06FF) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}
