package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ShouldRun decides whether the search leg runs: at most once per day,
// and only after the configured UTC time. lastRun is the fetched_at of
// the newest stored search summary, nil when none exists.
func ShouldRun(lastRun *time.Time, searchTimeUTC string, now time.Time) (bool, error) {
	hour, minute, err := parseSearchTime(searchTimeUTC)
	if err != nil {
		return false, err
	}

	now = now.UTC()
	if lastRun != nil && lastRun.UTC().Truncate(24*time.Hour).Equal(now.Truncate(24*time.Hour)) {
		return false, nil
	}

	threshold := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	return !now.Before(threshold), nil
}

func parseSearchTime(value string) (int, int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid search time %q: expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid search time %q: bad hour", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid search time %q: bad minute", value)
	}
	return hour, minute, nil
}
