package task

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time component, stored as "YYYY-MM-DD".
// The empty Date means "not set".
type Date string

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate parses a "YYYY-MM-DD" string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return "", nil
	}
	d := Date(s)
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d, nil
}

// IsZero reports whether no date is set.
func (d Date) IsZero() bool {
	return d == ""
}

// Validate reports whether d is empty or a real calendar day.
func (d Date) Validate() error {
	if d.IsZero() {
		return nil
	}
	parsed, err := time.Parse(DateLayout, string(d))
	if err != nil || parsed.Format(DateLayout) != string(d) {
		return fmt.Errorf("%w: bad date %q, expected YYYY-MM-DD", ErrInvalid, string(d))
	}
	return nil
}

// String returns the "YYYY-MM-DD" form.
func (d Date) String() string {
	return string(d)
}
