package sealevel

import (
	"fmt"
	"time"
)

// Level is the temporal bucket width applied before results are returned.
type Level string

const (
	LevelRaw       Level = "raw"
	LevelHourly    Level = "hourly"
	LevelTriHourly Level = "tri-hourly"
	LevelDaily     Level = "daily"
	LevelWeekly    Level = "weekly"
)

// Levels lists every level from finest to coarsest.
var Levels = []Level{LevelRaw, LevelHourly, LevelTriHourly, LevelDaily, LevelWeekly}

// Rank orders levels by coarseness; raw is 0. Unknown levels rank -1.
func (l Level) Rank() int {
	for i, lv := range Levels {
		if lv == l {
			return i
		}
	}
	return -1
}

// Aggregated reports whether rows at this level are bucket averages.
func (l Level) Aggregated() bool {
	return l != LevelRaw
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	lv := Level(s)
	if lv.Rank() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return lv, nil
}

// Truncate returns the start of the bucket containing t, in UTC. Weekly
// buckets start on Monday (ISO week). Raw returns t unchanged.
func (l Level) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch l {
	case LevelHourly:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case LevelTriHourly:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour()-t.Hour()%3, 0, 0, 0, time.UTC)
	case LevelDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case LevelWeekly:
		sinceMonday := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-sinceMonday, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// Day-count thresholds of the resolution policy (inclusive upper bounds).
const (
	maxRawDays       = 7
	maxHourlyDays    = 30
	maxTriHourlyDays = 90
	maxDailyDays     = 365
)

// SelectLevel picks the aggregation level for the inclusive date range
// [start, end]. Only the calendar dates (UTC) of the inputs matter.
func SelectLevel(start, end time.Time) (Level, error) {
	days, err := InclusiveDays(start, end)
	if err != nil {
		return "", err
	}
	switch {
	case days <= maxRawDays:
		return LevelRaw, nil
	case days <= maxHourlyDays:
		return LevelHourly, nil
	case days <= maxTriHourlyDays:
		return LevelTriHourly, nil
	case days <= maxDailyDays:
		return LevelDaily, nil
	default:
		return LevelWeekly, nil
	}
}

// InclusiveDays counts calendar days from start to end, both included.
func InclusiveDays(start, end time.Time) (int, error) {
	s := LevelDaily.Truncate(start)
	e := LevelDaily.Truncate(end)
	if e.Before(s) {
		return 0, ErrInvalidRange
	}
	// Whole days in UTC; no DST to account for.
	return int(e.Sub(s)/(24*time.Hour)) + 1, nil
}
