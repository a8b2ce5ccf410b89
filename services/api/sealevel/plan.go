package sealevel

import (
	"sort"
	"strings"
	"time"
)

// Range is an inclusive span of UTC calendar dates.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange truncates both ends to their UTC date and rejects end < start.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: LevelDaily.Truncate(start), End: LevelDaily.Truncate(end)}
	if r.End.Before(r.Start) {
		return Range{}, ErrInvalidRange
	}
	return r, nil
}

// From is the first instant covered by the range.
func (r Range) From() time.Time { return r.Start }

// Until is the first instant after the range (exclusive bound).
func (r Range) Until() time.Time { return r.End.AddDate(0, 0, 1) }

// Days is the inclusive number of calendar days in the range.
func (r Range) Days() int {
	n, _ := InclusiveDays(r.Start, r.End)
	return n
}

// Plan is the immutable description of one multi-station read. It is built
// once per request by BuildPlan and never modified afterwards.
type Plan struct {
	stations []string
	rng      Range
	level    Level
	source   Source
}

// BuildPlan validates its inputs and returns a plan over the deduplicated,
// sorted station set.
func BuildPlan(stations []string, rng Range, level Level, source Source) (Plan, error) {
	set := DedupeStations(stations)
	if len(set) == 0 {
		return Plan{}, ErrEmptyStationSet
	}
	if rng.End.Before(rng.Start) {
		return Plan{}, ErrInvalidRange
	}
	if level.Rank() < 0 {
		return Plan{}, ErrInvalidLevel
	}
	if source == "" {
		source = SourceDefault
	}
	if source != SourceDefault && source != SourceTides {
		return Plan{}, ErrInvalidSource
	}
	sort.Strings(set)
	return Plan{stations: set, rng: rng, level: level, source: source}, nil
}

// Stations returns a copy of the plan's station set.
func (p Plan) Stations() []string {
	return append([]string(nil), p.stations...)
}

func (p Plan) Range() Range   { return p.rng }
func (p Plan) Level() Level   { return p.level }
func (p Plan) Source() Source { return p.source }

// Key identifies the plan's result set: one entry per (stations, range,
// level, source).
func (p Plan) Key() string {
	var b strings.Builder
	b.WriteString(string(p.source))
	b.WriteByte('|')
	b.WriteString(string(p.level))
	b.WriteByte('|')
	b.WriteString(p.rng.Start.Format(time.DateOnly))
	b.WriteByte('|')
	b.WriteString(p.rng.End.Format(time.DateOnly))
	b.WriteByte('|')
	b.WriteString(strings.Join(p.stations, ","))
	return b.String()
}
