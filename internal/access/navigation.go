package access

import "time"

// NavItem is an entry of the console navigation.
type NavItem struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}

var primaryNav = []struct {
	id       string
	resource Resource
}{
	{"overview", ""},
	{"patients", Patients},
	{"appointments", Appointments},
	{"staff", Staff},
	{"inventory", Inventory},
}

var secondaryNav = []string{"profile", "settings"}

// Navigation lists the items visible to m at now. Overview and the secondary
// items are always shown; the rest need read access.
func Navigation(m *Membership, now time.Time) []NavItem {
	items := make([]NavItem, 0, len(primaryNav)+len(secondaryNav))
	for _, item := range primaryNav {
		if item.resource != "" && !m.CanAt(item.resource, Read, now) {
			continue
		}
		items = append(items, NavItem{ID: item.id, Primary: true})
	}
	for _, id := range secondaryNav {
		items = append(items, NavItem{ID: id})
	}
	return items
}

var createGuards = []struct {
	view     string
	resource Resource
}{
	{"new-patient", Patients},
	{"new-appointment", Appointments},
	{"add-staff", Staff},
	{"add-inventory-item", Inventory},
}

// CreateViews lists the creation views m may open at now.
func CreateViews(m *Membership, now time.Time) []string {
	views := []string{}
	for _, g := range createGuards {
		if m.CanAt(g.resource, Create, now) {
			views = append(views, g.view)
		}
	}
	return views
}
