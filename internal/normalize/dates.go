package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/chatconv/internal/logger"
	"github.com/spf13/cast"
)

// maxSerial is 9999-12-31 in the 1900 date system.
const maxSerial = 2958465

// Month-first layouts, tried after cast's own list. Spreadsheets exported with a
// US locale write dates this way and the dashboard always read them month-first.
var fallbackLayouts = []string{
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"Jan 2, 2006",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006 3:04 PM",
	"January 2, 2006",
}

var (
	numericString = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	bareYear      = regexp.MustCompile(`^\d{4}$`)
)

// ErrEmptyDate is returned by Parse for nil and blank values.
var ErrEmptyDate = errors.New("empty date value")

// Dates converts raw spreadsheet values into absolute timestamps. Zone-less values are
// read in Location. Now supplies the substitute for values that cannot be parsed.
type Dates struct {
	Location *time.Location
	Now      func() time.Time
}

// NewDates returns a Dates reading zone-less values in loc, using the wall clock as
// the substitute for bad values.
func NewDates(loc *time.Location) *Dates {
	if loc == nil {
		loc = time.UTC
	}
	return &Dates{Location: loc, Now: time.Now}
}

func (d *Dates) location() *time.Location {
	if d == nil || d.Location == nil {
		return time.UTC
	}
	return d.Location
}

func (d *Dates) now() time.Time {
	if d == nil || d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

// Normalize never fails: values that cannot be parsed are logged and replaced by the
// processing time. The result is in UTC.
func (d *Dates) Normalize(raw any) time.Time {
	t, err := d.Parse(raw)
	if err != nil {
		logger.Warn("Invalid date %q (%v), using processing time", fmt.Sprint(raw), err)
		return d.now()
	}
	return t
}

// Parse is the strict variant of Normalize. Numbers (and purely numeric strings) are
// spreadsheet serials, except a bare four-digit string which is a year. time.Time
// values are accepted as-is, other strings are parsed.
func (d *Dates) Parse(raw any) (time.Time, error) {
	loc := d.location()

	switch v := raw.(type) {
	case nil:
		return time.Time{}, ErrEmptyDate
	case time.Time:
		if v.IsZero() {
			return time.Time{}, ErrEmptyDate
		}
		return v.UTC(), nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, ErrEmptyDate
		}
		return v.UTC(), nil
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		serial, err := cast.ToFloat64E(v)
		if err != nil {
			return time.Time{}, err
		}
		return FromSerial(serial, loc)
	case string:
		return parseString(v, loc)
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("unsupported date type %T", raw)
		}
		return parseString(s, loc)
	}
}

func parseString(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyDate
	}
	if bareYear.MatchString(s) {
		t, err := time.ParseInLocation("2006", s, loc)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	if numericString.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, err
		}
		return FromSerial(serial, loc)
	}
	if t, err := cast.ToTimeInDefaultLocationE(s, loc); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", s)
}

// FromSerial decodes a spreadsheet date serial in the 1900 date system: the integer
// part counts days, the fractional part is the time of day. Serial 60 is the
// nonexistent 1900-02-29 and maps to 1900-02-28; later serials are shifted back a day.
func FromSerial(serial float64, loc *time.Location) (time.Time, error) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 0 || serial > maxSerial {
		return time.Time{}, fmt.Errorf("date serial %v out of range", serial)
	}
	if loc == nil {
		loc = time.UTC
	}

	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	if secs >= 86400 {
		days++
		secs -= 86400
	}

	n := int(days)
	var t time.Time
	switch {
	case n >= 61:
		t = time.Date(1899, time.December, 30+n, 0, 0, int(secs), 0, loc)
	case n == 60:
		t = time.Date(1900, time.February, 28, 0, 0, int(secs), 0, loc)
	default:
		t = time.Date(1899, time.December, 31+n, 0, 0, int(secs), 0, loc)
	}
	return t.UTC(), nil
}
