package db

import (
	"fmt"
	"time"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// Readings at or below the sentinel, NaN and +/-Infinity are excluded from
// aggregates. In Postgres NaN sorts above 'Infinity', so one upper bound
// covers both.
const validValue = `%[1]s > -900 AND %[1]s < 'Infinity'::float8`

const rawMeasurementsSQL = `
    SELECT station, ts, value_primary, value_secondary, source, 1::bigint AS n
    FROM sealevel.measurements
    WHERE station = ANY($1) AND ts >= $2 AND ts < $3 AND source = $4
    ORDER BY ts, station
`

const aggregatedMeasurementsSQL = `
    SELECT station, %[1]s AS bucket,
           AVG(value_primary) AS value_primary,
           AVG(value_secondary) FILTER (WHERE %[3]s) AS value_secondary,
           source,
           COUNT(*) AS n
    FROM sealevel.measurements
    WHERE station = ANY($1) AND ts >= $2 AND ts < $3 AND source = $4
      AND %[2]s
    GROUP BY station, bucket, source
    ORDER BY bucket, station
`

const utcTS = `(ts AT TIME ZONE 'UTC')`

// bucketExpr returns the SQL expression truncating ts to the start of its
// UTC bucket at level, as timestamptz.
func bucketExpr(level sealevel.Level) (string, error) {
	var local string
	switch level {
	case sealevel.LevelHourly:
		local = "date_trunc('hour', " + utcTS + ")"
	case sealevel.LevelTriHourly:
		local = "date_trunc('day', " + utcTS + ") + floor(extract(hour FROM " + utcTS + ") / 3) * interval '3 hours'"
	case sealevel.LevelDaily:
		local = "date_trunc('day', " + utcTS + ")"
	case sealevel.LevelWeekly:
		// ISO weeks start on Monday.
		local = "date_trunc('week', " + utcTS + ")"
	default:
		return "", fmt.Errorf("%w: %q has no bucket", sealevel.ErrInvalidLevel, level)
	}
	return "((" + local + ") AT TIME ZONE 'UTC')", nil
}

// renderQuery turns a multi-station read into one statement with positional
// arguments. Station names are always bound, never interpolated.
func renderQuery(stations []string, from, until time.Time, level sealevel.Level, source sealevel.Source) (string, []any, error) {
	if len(stations) == 0 {
		return "", nil, sealevel.ErrEmptyStationSet
	}
	if source == "" {
		source = sealevel.SourceDefault
	}
	args := []any{stations, from.UTC(), until.UTC(), string(source)}
	if level == sealevel.LevelRaw {
		return rawMeasurementsSQL, args, nil
	}
	bucket, err := bucketExpr(level)
	if err != nil {
		return "", nil, err
	}
	sql := fmt.Sprintf(aggregatedMeasurementsSQL,
		bucket,
		fmt.Sprintf(validValue, "value_primary"),
		fmt.Sprintf(validValue, "value_secondary"),
	)
	return sql, args, nil
}
