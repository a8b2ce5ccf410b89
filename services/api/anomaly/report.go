package anomaly

import (
	"time"
)

// Correction is a suggested replacement for an outlying reading.
type Correction struct {
	Timestamp time.Time `json:"timestamp"`
	Station   string    `json:"station"`
	Actual    float64   `json:"actual"`
	Suggested float64   `json:"suggested"`
	Baseline  float64   `json:"baseline"`
	Deviation float64   `json:"deviation"`
	Tolerance float64   `json:"tolerance"`
	Reason    string    `json:"reason"`
}

// Corrections extracts suggestions for every outlier in scored.
func Corrections(scored []Scored) []Correction {
	out := make([]Correction, 0)
	for _, s := range scored {
		if !s.Verdict.IsOutlier {
			continue
		}
		out = append(out, Correction{
			Timestamp: s.Measurement.Timestamp,
			Station:   s.Measurement.Station,
			Actual:    s.Verdict.Actual,
			Suggested: s.Verdict.Corrected,
			Baseline:  s.Verdict.Baseline,
			Deviation: s.Verdict.Deviation,
			Tolerance: s.Verdict.Tolerance,
			Reason:    s.Verdict.Reason,
		})
	}
	return out
}

// StationSummary is the per-station part of a Report.
type StationSummary struct {
	Count         int     `json:"count"`
	ScoredCount   int     `json:"scored_count"`
	OutlierCount  int     `json:"outlier_count"`
	MeanDeviation float64 `json:"mean_deviation"`
	MaxDeviation  float64 `json:"max_deviation"`
}

// Report summarises verdicts for quality monitoring.
type Report struct {
	Strategy          string                    `json:"strategy,omitempty"`
	TotalRecords      int                       `json:"total_records"`
	ScoredRecords     int                       `json:"scored_records"`
	Outliers          int                       `json:"outliers_detected"`
	OutlierPercentage float64                   `json:"outlier_percentage"`
	Excluded          int                       `json:"excluded_from_baseline"`
	Stations          map[string]StationSummary `json:"stations"`
}

// BuildReport aggregates scored into a Report. Mean deviation is taken over
// scored readings only.
func BuildReport(scored []Scored) Report {
	r := Report{Stations: make(map[string]StationSummary)}
	devSums := make(map[string]float64)
	for _, s := range scored {
		st := s.Measurement.Station
		sum := r.Stations[st]
		sum.Count++
		r.TotalRecords++
		if s.Verdict.Scored {
			sum.ScoredCount++
			r.ScoredRecords++
			devSums[st] += s.Verdict.Deviation
			sum.MaxDeviation = max(sum.MaxDeviation, s.Verdict.Deviation)
		}
		if s.Verdict.IsOutlier {
			sum.OutlierCount++
			r.Outliers++
		}
		if s.Verdict.ExcludedFromBaseline {
			r.Excluded++
		}
		r.Stations[st] = sum
	}
	for st, sum := range r.Stations {
		if sum.ScoredCount > 0 {
			sum.MeanDeviation = devSums[st] / float64(sum.ScoredCount)
			r.Stations[st] = sum
		}
	}
	if r.TotalRecords > 0 {
		r.OutlierPercentage = float64(r.Outliers) / float64(r.TotalRecords) * 100
	}
	return r
}
