// Package dateutil parses and enumerates the calendar-date windows tracked
// routes are queried over.
package dateutil

import (
	"fmt"
	"time"
)

const (
	isoLayout   = "2006-01-02"
	compactLayout = "20060102"
)

// ParseFlexible accepts either YYYY-MM-DD or YYYYMMDD and returns the
// canonical internal date value.
func ParseFlexible(s string) (time.Time, error) {
	if t, err := time.Parse(isoLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(compactLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or YYYYMMDD", s)
}

// Compact formats a date as YYYYMMDD, the form the remote query expects.
func Compact(t time.Time) string {
	return t.Format(compactLayout)
}

// ISO formats a date as YYYY-MM-DD.
func ISO(t time.Time) string {
	return t.Format(isoLayout)
}

// Range enumerates every calendar date in the inclusive window
// [start, end], each formatted as YYYYMMDD for the remote query.
// start and end may be given in either accepted form.
func Range(start, end string) ([]string, error) {
	s, err := ParseFlexible(start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}
	e, err := ParseFlexible(end)
	if err != nil {
		return nil, fmt.Errorf("invalid end date: %w", err)
	}
	if s.After(e) {
		return nil, fmt.Errorf("start date %s is after end date %s", ISO(s), ISO(e))
	}

	var dates []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, Compact(d))
	}
	return dates, nil
}
