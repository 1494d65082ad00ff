// Package schedule converts campaign send-window times between wall-clock
// local time and UTC for persistence.
package schedule

import (
	"fmt"
	"time"
)

// ToUTC converts an "HH:MM" wall-clock string in loc to "HH:MM" in UTC,
// anchored on today's calendar date. The window is same-day wall-clock only;
// a conversion crossing midnight keeps just the HH:MM pair, no date rollover
// is tracked.
func ToUTC(hhmm string, loc *time.Location) (string, error) {
	h, m, err := parseHHMM(hhmm)
	if err != nil {
		return "", err
	}
	now := time.Now().In(loc)
	t := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, loc)
	return t.UTC().Format("15:04"), nil
}

// ToLocal converts an "HH:MM" UTC string back to wall-clock time in loc,
// anchored on today's calendar date.
func ToLocal(hhmm string, loc *time.Location) (string, error) {
	h, m, err := parseHHMM(hhmm)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	t := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, time.UTC)
	return t.In(loc).Format("15:04"), nil
}

// parseHHMM accepts exactly one HH:MM pair; trailing text is an error.
func parseHHMM(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}
