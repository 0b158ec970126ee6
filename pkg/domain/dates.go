package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the day/month/year calendar layout used at the persistence boundary.
const DateLayout = "2/1/2006"

// ParseDate parses a day/month/year calendar date into a UTC midnight timestamp.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrMalformedRecord, s, err)
	}
	return t, nil
}

// MustDate is ParseDate for fixtures; it panics on malformed input.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatDate renders t as day/month/year.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Day truncates t to its calendar date, expressed as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Window is an inclusive range of calendar dates.
type Window struct {
	Open  time.Time
	Close time.Time
}

// Valid reports whether the window closes on or after it opens.
func (w Window) Valid() bool {
	return !Day(w.Close).Before(Day(w.Open))
}

// Overlaps reports whether the two closed date ranges intersect, i.e.
// neither entirely precedes the other.
func (w Window) Overlaps(other Window) bool {
	return !(Day(w.Open).After(Day(other.Close)) || Day(w.Close).Before(Day(other.Open)))
}

// Contains reports whether the calendar date of t lies within the window.
func (w Window) Contains(t time.Time) bool {
	day := Day(t)
	return !day.Before(Day(w.Open)) && !day.After(Day(w.Close))
}

func (w Window) String() string {
	return FormatDate(w.Open) + "-" + FormatDate(w.Close)
}
