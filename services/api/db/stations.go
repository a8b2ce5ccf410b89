package db

import (
	"context"
	"time"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// StationSnapshot is a station with its most recent stored reading.
type StationSnapshot struct {
	Station   string    `json:"station"`
	Timestamp time.Time `json:"last_timestamp"`
	Primary   *float64  `json:"last_value_primary,omitempty"`
	Secondary *float64  `json:"last_value_secondary,omitempty"`
	Readings  int64     `json:"readings"`
}

const stationSnapshotsSQL = `
    SELECT s.station, s.n, m.ts, m.value_primary, m.value_secondary
    FROM (
        SELECT station, COUNT(*) AS n
        FROM sealevel.measurements
        WHERE source = $1
        GROUP BY station
    ) s
    LEFT JOIN LATERAL (
        SELECT ts, value_primary, value_secondary
        FROM sealevel.measurements
        WHERE station = s.station AND source = $1
        ORDER BY ts DESC
        LIMIT 1
    ) m ON true
    ORDER BY s.station
`

// ListStations returns one snapshot per station that has data for source.
// Sentinel and non-finite latest values are reported as null.
func (s *Store) ListStations(ctx context.Context, source sealevel.Source) ([]StationSnapshot, error) {
	rows, err := s.pool.Query(ctx, stationSnapshotsSQL, string(source))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]StationSnapshot, 0)
	for rows.Next() {
		var snap StationSnapshot
		if err := rows.Scan(
			&snap.Station,
			&snap.Readings,
			&snap.Timestamp,
			&snap.Primary,
			&snap.Secondary,
		); err != nil {
			return nil, err
		}
		snap.Timestamp = snap.Timestamp.UTC()
		snap.Primary = sealevel.CleanValue(snap.Primary)
		snap.Secondary = sealevel.CleanValue(snap.Secondary)
		out = append(out, snap)
	}
	return out, rows.Err()
}
