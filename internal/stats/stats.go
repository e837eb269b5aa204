// Package stats folds reconciled user records into daily and monthly buckets.
//
// Buckets are keyed by calendar date (YYYY-MM-DD) and year-month (YYYY-MM) in the
// configured location. Zero-padded keys sort lexicographically in chronological
// order, so the projection is a plain string sort. Periods without records get no
// bucket.
package stats

import (
	"sort"
	"time"

	"github.com/rewired-gh/chatconv/internal/models"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// accumulator counts conversions as distinct registered users, so a registered user
// chatting several times in one bucket converts once and the rate stays within 0..100.
type accumulator struct {
	interactions int
	users        map[int64]struct{}
	converted    map[int64]struct{}
}

func (a *accumulator) add(u *models.UserRecord) {
	a.interactions++
	a.users[u.UserID] = struct{}{}
	if u.Registered {
		a.converted[u.UserID] = struct{}{}
	}
}

func (a *accumulator) counts() models.TimeBucketStats {
	return models.TimeBucketStats{
		TotalInteractions: a.interactions,
		UniqueUsers:       len(a.users),
		Conversions:       len(a.converted),
		ConversionRate:    models.Percent(len(a.converted), len(a.users)),
	}
}

type buckets map[string]*accumulator

func (b buckets) add(key string, u *models.UserRecord) {
	acc, ok := b[key]
	if !ok {
		acc = &accumulator{users: make(map[int64]struct{}), converted: make(map[int64]struct{})}
		b[key] = acc
	}
	acc.add(u)
}

func (b buckets) sortedKeys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Aggregate returns daily and monthly buckets over users. Records with a zero
// timestamp are skipped. A nil loc means UTC.
func Aggregate(users []models.UserRecord, loc *time.Location) ([]models.DailyStats, []models.MonthlyStats) {
	if loc == nil {
		loc = time.UTC
	}

	days := make(buckets)
	months := make(buckets)
	for i := range users {
		u := &users[i]
		if u.Timestamp.IsZero() {
			continue
		}
		local := u.Timestamp.In(loc)
		days.add(local.Format(dayLayout), u)
		months.add(local.Format(monthLayout), u)
	}

	daily := make([]models.DailyStats, 0, len(days))
	for _, k := range days.sortedKeys() {
		daily = append(daily, models.DailyStats{Date: k, TimeBucketStats: days[k].counts()})
	}
	monthly := make([]models.MonthlyStats, 0, len(months))
	for _, k := range months.sortedKeys() {
		monthly = append(monthly, models.MonthlyStats{Month: k, TimeBucketStats: months[k].counts()})
	}
	return daily, monthly
}
