// Package normalize canonicalizes the loosely typed values found in chat exports and
// registration rosters: phone numbers become comparable 10-digit mobile keys and dates
// become absolute timestamps.
package normalize

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

const (
	countryPrefix = "57"
	mobilePrefix  = '3'
	mobileDigits  = 10
)

// Phone returns the canonical 10-digit mobile number for raw, or false when raw
// cannot be a Colombian mobile (absent, landline, wrong length, no digits).
func Phone(raw any) (string, bool) {
	if raw == nil {
		return "", false
	}
	s, err := cast.ToStringE(raw)
	if err != nil {
		s = fmt.Sprint(raw)
	}
	if s == "" {
		return "", false
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	digits = strings.TrimPrefix(digits, countryPrefix)

	if len(digits) != mobileDigits || digits[0] != mobilePrefix {
		return "", false
	}
	return digits, true
}
