package engine

import (
	"time"

	"github.com/sealevel-monitor/dashboard/services/api/anomaly"
	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// Anomaly flag values carried by Record.Anomaly.
const (
	FlagNormal  = 0
	FlagOutlier = -1
)

// Record is one row of the dashboard response.
type Record struct {
	Timestamp time.Time       `json:"timestamp"`
	Station   string          `json:"station"`
	Source    sealevel.Source `json:"source"`
	Primary   float64         `json:"value_primary"`
	Secondary *float64        `json:"value_secondary"`
	Count     int             `json:"count,omitempty"`
	Anomaly   int             `json:"anomaly"`
	Expected  *float64        `json:"expected,omitempty"`
	Corrected *float64        `json:"corrected,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Meta describes a Result.
type Meta struct {
	Level        sealevel.Level `json:"level"`
	TotalRecords int            `json:"total_records"`
	OutlierCount int            `json:"outlier_count"`
	Strategy     string         `json:"strategy"`
	ElapsedMS    int64          `json:"elapsed_ms"`

	// StationCount counts stations that returned at least one record.
	StationCount      int      `json:"station_count"`
	StationsRequested int      `json:"stations_requested"`
	MissingStations   []string `json:"missing_stations,omitempty"`
}

// Result is the cacheable response body.
type Result struct {
	Records []Record `json:"data"`
	Meta    Meta     `json:"meta"`
}

// Assemble merges measurements with their verdicts. Requested stations with
// no records are listed in Meta.MissingStations. It does no I/O and the same
// input always yields the same Result.
func Assemble(level sealevel.Level, requested []string, scored []anomaly.Scored, strategy string) Result {
	records := make([]Record, 0, len(scored))
	stations := make(map[string]struct{})
	outliers := 0
	for _, s := range scored {
		m, v := s.Measurement, s.Verdict
		rec := Record{
			Timestamp: m.Timestamp,
			Station:   m.Station,
			Source:    m.Source,
			Primary:   m.Primary,
			Secondary: m.Secondary,
			Anomaly:   FlagNormal,
		}
		if level.Aggregated() {
			rec.Count = m.Count
		}
		if v.Scored {
			expected, corrected := v.Expected, v.Corrected
			rec.Expected = &expected
			rec.Corrected = &corrected
		}
		if v.IsOutlier {
			rec.Anomaly = FlagOutlier
			rec.Reason = v.Reason
			outliers++
		}
		stations[m.Station] = struct{}{}
		records = append(records, rec)
	}
	var missing []string
	for _, st := range requested {
		if _, ok := stations[st]; !ok {
			missing = append(missing, st)
		}
	}
	return Result{
		Records: records,
		Meta: Meta{
			Level:             level,
			TotalRecords:      len(records),
			StationCount:      len(stations),
			StationsRequested: len(requested),
			MissingStations:   missing,
			OutlierCount:      outliers,
			Strategy:          strategy,
		},
	}
}

// withoutAnomalies projects r to the shape returned when anomaly display is
// off. r is not modified.
func withoutAnomalies(r Result) Result {
	out := Result{Records: make([]Record, len(r.Records)), Meta: r.Meta}
	for i, rec := range r.Records {
		rec.Anomaly = FlagNormal
		rec.Expected = nil
		rec.Corrected = nil
		rec.Reason = ""
		out.Records[i] = rec
	}
	out.Meta.OutlierCount = 0
	out.Meta.Strategy = "disabled"
	return out
}
