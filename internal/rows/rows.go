// Package rows adapts loosely keyed spreadsheet records into typed raw rows.
// Exports from different tools label the same column differently, so each field
// has a fixed priority list of accepted header aliases. Header matching ignores
// case and surrounding whitespace; the first alias holding a non-blank value wins.
// Headers that collide after normalization resolve in sorted header order.
package rows

import (
	"sort"
	"strings"

	"github.com/rewired-gh/chatconv/internal/models"
)

// Record is one spreadsheet row keyed by header.
type Record = map[string]any

// Header aliases in priority order.
var (
	InteractionIDAliases    = []string{"User ID", "UserID", "user_id", "id"}
	InteractionNameAliases  = []string{"Username", "Nombre", "name"}
	InteractionPhoneAliases = []string{"Phone Number", "Phone", "Celular", "telefono", "teléfono"}
	InteractionAgeAliases   = []string{"Age", "Edad"}
	InteractionTimeAliases  = []string{"Time", "Fecha", "timestamp"}

	RegistrationNameAliases   = []string{"Nombre", "Name"}
	RegistrationPhoneAliases  = []string{"Celular", "Phone Number", "Phone", "telefono", "teléfono"}
	RegistrationStatusAliases = []string{"Estado", "Status"}
	RegistrationDateAliases   = []string{"Fecha registro", "Fecha de registro", "Registration Date", "Fecha"}
)

// Interaction maps a chat export record to a RawInteractionRow.
func Interaction(rec Record) models.RawInteractionRow {
	idx := index(rec)
	return models.RawInteractionRow{
		Identifier:  lookup(idx, InteractionIDAliases),
		DisplayName: lookup(idx, InteractionNameAliases),
		Phone:       lookup(idx, InteractionPhoneAliases),
		Age:         lookup(idx, InteractionAgeAliases),
		Timestamp:   lookup(idx, InteractionTimeAliases),
	}
}

// Registration maps a roster record to a RawRegistrationRow.
func Registration(rec Record) models.RawRegistrationRow {
	idx := index(rec)
	return models.RawRegistrationRow{
		Name:         lookup(idx, RegistrationNameAliases),
		Phone:        lookup(idx, RegistrationPhoneAliases),
		Status:       lookup(idx, RegistrationStatusAliases),
		RegisteredAt: lookup(idx, RegistrationDateAliases),
	}
}

// Interactions adapts a batch of chat export records.
func Interactions(recs []Record) []models.RawInteractionRow {
	out := make([]models.RawInteractionRow, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Interaction(rec))
	}
	return out
}

// Registrations adapts a batch of roster records.
func Registrations(recs []Record) []models.RawRegistrationRow {
	out := make([]models.RawRegistrationRow, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Registration(rec))
	}
	return out
}

func normKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// index keys rec by normalized header. Headers that collide after normalization are
// visited in sorted order and the first non-blank value wins.
func index(rec Record) map[string]any {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	idx := make(map[string]any, len(rec))
	for _, k := range keys {
		nk := normKey(k)
		if prev, seen := idx[nk]; seen && !blank(prev) {
			continue
		}
		idx[nk] = rec[k]
	}
	return idx
}

func lookup(idx map[string]any, aliases []string) any {
	for _, a := range aliases {
		if v, ok := idx[normKey(a)]; ok && !blank(v) {
			return v
		}
	}
	return nil
}

func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}
