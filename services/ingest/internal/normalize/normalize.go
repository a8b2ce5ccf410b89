package normalize

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
	"github.com/sealevel-monitor/dashboard/services/ingest/internal/models"
)

// BuildCandidates turns feed readings into insert candidates. Sentinel and
// non-finite values become nil; readings without a station are skipped.
// When the feed omits a timestamp the retrieval time is used.
func BuildCandidates(readings []models.Reading, retrievalTS time.Time) []models.Candidate {
	out := make([]models.Candidate, 0, len(readings))
	for _, r := range readings {
		station := strings.TrimSpace(r.Station)
		if station == "" {
			continue
		}
		ts := r.Timestamp.UTC()
		if r.Timestamp.IsZero() {
			ts = retrievalTS
		}
		out = append(out, models.Candidate{
			Station:   station,
			TS:        ts.Truncate(time.Second),
			Primary:   sealevel.CleanValue(r.Depth),
			Secondary: sealevel.CleanValue(r.Temperature),
		})
	}
	return out
}

// Stations lists the distinct stations among candidates.
func Stations(cands []models.Candidate) []string {
	names := make([]string, 0, len(cands))
	for _, c := range cands {
		names = append(names, c.Station)
	}
	return sealevel.DedupeStations(names)
}

// FilterNew keeps candidates that are newer than minInterval since the last
// stored reading, or whose value changed by more than epsilon. Readings at
// or before the stored timestamp are dropped.
func FilterNew(cands []models.Candidate, last map[string]models.LastReading, minInterval time.Duration, epsilon float64) []models.Candidate {
	out := make([]models.Candidate, 0, len(cands))
	for _, c := range cands {
		prev, ok := last[c.Station]
		if !ok {
			out = append(out, c)
			continue
		}
		if !c.TS.After(prev.TS) {
			continue
		}
		if c.TS.Sub(prev.TS) >= minInterval {
			out = append(out, c)
			continue
		}
		if !ValuesEqual(prev.Primary, c.Primary, epsilon) {
			out = append(out, c)
		}
	}
	return out
}

// ValuesEqual compares two optional values with tolerance.
func ValuesEqual(a, b *float64, epsilon float64) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return math.Abs(*a-*b) <= epsilon
	}
}

// ValueString prints optional values for logging.
func ValueString(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.3f", *v)
}
