// time.go
package time

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ExpiryDateLayout is the calendar date format accepted by usermod -e.
const ExpiryDateLayout = "2006-01-02"

// ShortDur shortens the string representation of a time.Duration from d.String().
func ShortDur(d time.Duration) string {
	s := d.String()
	if d == 0 {
		return "0s"
	}
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}

// ParseExpiryDate validates an account expiry date in YYYY-MM-DD form.
// An empty string means "never expires" and yields the zero time.
func ParseExpiryDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(ExpiryDateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid expiry date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
