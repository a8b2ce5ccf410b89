package sealevel

import (
	"math"
	"sort"
	"time"
)

// SentinelThreshold marks the feed's "no reading" convention (-999). Any
// value at or below it is treated as missing.
const SentinelThreshold = -900.0

// ValidValue reports whether v is a usable reading.
func ValidValue(v *float64) bool {
	if v == nil {
		return false
	}
	x := *v
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > SentinelThreshold
}

// CleanValue returns a copy of v, or nil when v is not a usable reading.
func CleanValue(v *float64) *float64 {
	if !ValidValue(v) {
		return nil
	}
	x := *v
	return &x
}

// Normalize converts store rows into measurements. Rows without a valid
// primary value and aggregated rows with no contributors are dropped. The
// result is sorted by timestamp, then station.
func Normalize(rows []Row, level Level) []Measurement {
	out := make([]Measurement, 0, len(rows))
	for _, r := range rows {
		if r.Station == "" || !ValidValue(r.Primary) {
			continue
		}
		count := r.Count
		if level.Aggregated() {
			if count <= 0 {
				continue
			}
		} else {
			count = 1
		}
		src := r.Source
		if src == "" {
			src = SourceDefault
		}
		out = append(out, Measurement{
			Station:   r.Station,
			Timestamp: r.Timestamp.UTC(),
			Primary:   *r.Primary,
			Secondary: CleanValue(r.Secondary),
			Source:    src,
			Count:     count,
		})
	}
	SortMeasurements(out)
	return out
}

// SortMeasurements orders by timestamp ascending, then station ascending.
func SortMeasurements(ms []Measurement) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].Timestamp.Equal(ms[j].Timestamp) {
			return ms[i].Timestamp.Before(ms[j].Timestamp)
		}
		return ms[i].Station < ms[j].Station
	})
}

type bucketKey struct {
	station string
	start   time.Time
	source  Source
}

type bucketSum struct {
	primary    float64
	primaryN   int
	secondary  float64
	secondaryN int
}

// AggregateRows buckets raw rows at the given level, averaging valid
// primary and secondary values separately. Invalid values are excluded from
// the means; buckets without a valid primary value are omitted. Raw level
// returns the rows unchanged. Output is ordered by bucket, then station.
func AggregateRows(rows []Row, level Level) []Row {
	if !level.Aggregated() {
		return rows
	}
	sums := make(map[bucketKey]*bucketSum)
	for _, r := range rows {
		if !ValidValue(r.Primary) {
			continue
		}
		src := r.Source
		if src == "" {
			src = SourceDefault
		}
		k := bucketKey{station: r.Station, start: level.Truncate(r.Timestamp), source: src}
		s, ok := sums[k]
		if !ok {
			s = &bucketSum{}
			sums[k] = s
		}
		s.primary += *r.Primary
		s.primaryN++
		if ValidValue(r.Secondary) {
			s.secondary += *r.Secondary
			s.secondaryN++
		}
	}

	out := make([]Row, 0, len(sums))
	for k, s := range sums {
		mean := s.primary / float64(s.primaryN)
		row := Row{
			Station:   k.station,
			Timestamp: k.start,
			Primary:   &mean,
			Source:    k.source,
			Count:     s.primaryN,
		}
		if s.secondaryN > 0 {
			sec := s.secondary / float64(s.secondaryN)
			row.Secondary = &sec
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Station < out[j].Station
	})
	return out
}
