// Package temporal parses normalized due strings and breaks durations down
// into the day/hour/minute/second parts shown next to each row.
package temporal

import (
	"fmt"
	"strings"
	"time"

	"prairie_track/internal/domain"
)

const dueSeparator = ", "

var (
	monthDayLayouts = []string{"Jan 2", "January 2"}
	timeLayouts     = []string{"3:04PM", "3PM", "15:04", "15:04:05", "3:04:05PM"}
)

// ParseDue turns "<weekday>, <month day>, <time>" into an instant in year.
// The weekday token is informational and not cross-checked. Items due after
// a year boundary relative to the reference year are placed in the reference
// year; callers pass the current calendar year. A nil loc means UTC.
func ParseDue(raw string, year int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	tokens := strings.Split(strings.TrimSpace(raw), dueSeparator)
	if len(tokens) < 3 {
		return time.Time{}, fmt.Errorf("%w: %q has %d tokens", domain.ErrMalformedDueString, raw, len(tokens))
	}

	month, day, err := parseMonthDay(tokens[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", domain.ErrMalformedDueString, raw, err)
	}

	clock, err := parseClock(tokens[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", domain.ErrMalformedDueString, raw, err)
	}

	due := time.Date(year, month, day, clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
	// time.Date normalizes Feb 30 into March; reject instead.
	if due.Month() != month || due.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date in %d", domain.ErrMalformedDueString, raw, year)
	}

	return due, nil
}

func parseMonthDay(token string) (time.Month, int, error) {
	token = strings.Join(strings.Fields(token), " ")
	var lastErr error
	for _, layout := range monthDayLayouts {
		t, err := time.Parse(layout, token)
		if err == nil {
			return t.Month(), t.Day(), nil
		}
		lastErr = err
	}
	return 0, 0, fmt.Errorf("month/day %q: %w", token, lastErr)
}

func parseClock(token string) (time.Time, error) {
	token = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(token), " ", ""))
	token = strings.TrimSuffix(strings.TrimSuffix(token, "."), ",")
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, token)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("time %q: %w", token, lastErr)
}
