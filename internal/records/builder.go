// Package records turns raw chat export rows into canonical user records for one city.
package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rewired-gh/chatconv/internal/logger"
	"github.com/rewired-gh/chatconv/internal/models"
	"github.com/rewired-gh/chatconv/internal/normalize"
	"github.com/spf13/cast"
)

// Builder converts interaction rows. With KeepInvalidPhones set, rows whose phone does
// not normalize are kept with an empty phone instead of being dropped.
type Builder struct {
	Dates             *normalize.Dates
	KeepInvalidPhones bool
}

// BuildReport counts what happened to each input row.
type BuildReport struct {
	City         string
	Read         int
	Kept         int
	InvalidPhone int // dropped, or kept without phone when KeepInvalidPhones is set
	Skipped      int // rows that failed coercion
	Errors       []RowError
}

// RowError describes a row that was skipped.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Build converts rows into user records for city. It never fails as a whole: bad rows
// are counted in the report and logged.
func (b *Builder) Build(city string, rows []models.RawInteractionRow) ([]models.UserRecord, BuildReport) {
	report := BuildReport{City: city, Read: len(rows)}
	if len(rows) == 0 {
		logger.Warn("No chat users found for %s", city)
		return []models.UserRecord{}, report
	}

	users := make([]models.UserRecord, 0, len(rows))
	for i, row := range rows {
		user, phoneOK, err := b.buildOne(city, row)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, RowError{Row: i, Err: err})
			logger.Warn("Skipping %s chat row %d: %v", city, i, err)
			continue
		}
		if !phoneOK {
			report.InvalidPhone++
			if logger.Enabled(logger.DebugLevel) {
				logger.Debug("%s chat row %d has no valid mobile: %v", city, i, row.Phone)
			}
			if !b.KeepInvalidPhones {
				continue
			}
		}
		users = append(users, user)
	}
	report.Kept = len(users)

	logger.Debug("Built %s users: read=%d kept=%d invalid_phone=%d skipped=%d",
		city, report.Read, report.Kept, report.InvalidPhone, report.Skipped)
	return users, report
}

func (b *Builder) buildOne(city string, row models.RawInteractionRow) (user models.UserRecord, phoneOK bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while coercing row: %v", r)
		}
	}()

	phone, phoneOK := normalize.Phone(row.Phone)
	if !phoneOK && !b.KeepInvalidPhones {
		return models.UserRecord{}, false, nil
	}

	user = models.UserRecord{
		UserID:    identifier(row.Identifier),
		Name:      strings.TrimSpace(cast.ToString(row.DisplayName)),
		Age:       age(row.Age),
		Phone:     phone,
		Timestamp: b.Dates.Normalize(row.Timestamp),
		City:      city,
	}
	return user, phoneOK, nil
}

// identifier coerces a numeric user id; anything non-numeric becomes 0. Strings are
// always decimal, so zero-padded ids keep their value.
func identifier(v any) int64 {
	if v == nil {
		return 0
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			return id
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return int64(math.Trunc(f))
	}
	id, err := cast.ToInt64E(v)
	if err != nil {
		return 0
	}
	return id
}

// age keeps only genuine numbers; text such as "veinte" or "N/A" is not an age.
func age(v any) *int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	n := int(math.Trunc(f))
	return &n
}
