// Package matcher reconciles a city's chat users with its registration roster by
// normalized phone number.
package matcher

import (
	"strings"
	"time"

	"github.com/rewired-gh/chatconv/internal/logger"
	"github.com/rewired-gh/chatconv/internal/models"
	"github.com/rewired-gh/chatconv/internal/normalize"
	"github.com/spf13/cast"
)

// DefaultNoStatus labels roster rows with a blank status.
const DefaultNoStatus = "Sin Estado"

// entry is the roster data a matched user needs.
type entry struct {
	status       string
	registeredAt any
}

// Index maps normalized phone to roster entry. When several roster rows share a phone
// the last one wins, treating the roster as an append log.
type Index struct {
	byPhone  map[string]entry
	stats    RosterStats
	dates    *normalize.Dates
	noStatus string
}

// RosterStats describes a roster independently of any matching.
type RosterStats struct {
	Registrations int            // roster rows
	ValidPhones   int            // distinct valid roster phones
	InvalidPhones int            // roster rows whose phone did not normalize
	Statuses      map[string]int // every roster row by status
}

// MatchReport summarizes one Match call.
type MatchReport struct {
	Users      int
	WithPhone  int
	Matched    int
	Unmatched  int
	Duplicates int // roster rows shadowed by a later row with the same phone
}

// NewIndex builds the phone index for a roster. noStatus replaces blank statuses;
// empty means DefaultNoStatus.
func NewIndex(roster []models.RawRegistrationRow, dates *normalize.Dates, noStatus string) *Index {
	if noStatus == "" {
		noStatus = DefaultNoStatus
	}
	idx := &Index{
		byPhone:  make(map[string]entry, len(roster)),
		dates:    dates,
		noStatus: noStatus,
		stats: RosterStats{
			Registrations: len(roster),
			Statuses:      make(map[string]int),
		},
	}

	for _, row := range roster {
		status := idx.statusLabel(row.Status)
		idx.stats.Statuses[status]++

		phone, ok := normalize.Phone(row.Phone)
		if !ok {
			idx.stats.InvalidPhones++
			continue
		}
		idx.byPhone[phone] = entry{status: status, registeredAt: row.RegisteredAt}
	}
	idx.stats.ValidPhones = len(idx.byPhone)

	logger.Debug("Roster indexed: rows=%d valid_phones=%d invalid_phones=%d",
		idx.stats.Registrations, idx.stats.ValidPhones, idx.stats.InvalidPhones)
	return idx
}

func (idx *Index) statusLabel(raw any) string {
	s := strings.TrimSpace(cast.ToString(raw))
	if s == "" {
		return idx.noStatus
	}
	return s
}

// Stats returns the roster statistics. The Statuses map is a copy.
func (idx *Index) Stats() RosterStats {
	s := idx.stats
	s.Statuses = make(map[string]int, len(idx.stats.Statuses))
	for k, v := range idx.stats.Statuses {
		s.Statuses[k] = v
	}
	return s
}

// Match returns new records with registration fields set for every user whose phone
// is on the roster. The input slice is not modified.
func (idx *Index) Match(users []models.UserRecord) ([]models.UserRecord, MatchReport) {
	out := make([]models.UserRecord, len(users))
	report := MatchReport{Users: len(users), Duplicates: idx.stats.Registrations - idx.stats.InvalidPhones - idx.stats.ValidPhones}

	// Registration dates are parsed once per roster phone, not once per interaction.
	parsed := make(map[string]time.Time)

	for i, u := range users {
		if !u.HasPhone() {
			out[i] = u
			continue
		}
		report.WithPhone++

		e, ok := idx.byPhone[u.Phone]
		if !ok {
			out[i] = u
			report.Unmatched++
			continue
		}

		at, seen := parsed[u.Phone]
		if !seen {
			at = idx.dates.Normalize(e.registeredAt)
			parsed[u.Phone] = at
		}
		out[i] = u.WithRegistration(e.status, at)
		report.Matched++
	}

	logger.Debug("Matched users: users=%d with_phone=%d matched=%d unmatched=%d",
		report.Users, report.WithPhone, report.Matched, report.Unmatched)
	return out, report
}
