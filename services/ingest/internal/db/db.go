package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
	"github.com/sealevel-monitor/dashboard/services/ingest/internal/models"
)

// FetchLastReadings loads the most recent stored reading per station.
func FetchLastReadings(ctx context.Context, pool *pgxpool.Pool, stations []string, source sealevel.Source) (map[string]models.LastReading, error) {
	result := make(map[string]models.LastReading, len(stations))
	if len(stations) == 0 {
		return result, nil
	}

	rows, err := pool.Query(ctx, `
SELECT DISTINCT ON (station) station, value_primary, ts
FROM sealevel.measurements
WHERE station = ANY($1) AND source = $2
ORDER BY station, ts DESC`, stations, string(source))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var station string
		var value *float64
		var ts time.Time
		if err := rows.Scan(&station, &value, &ts); err != nil {
			return nil, err
		}
		result[station] = models.LastReading{Primary: value, TS: ts.UTC()}
	}

	return result, rows.Err()
}

// UpsertMeasurements writes candidates keyed on (station, ts, source).
func UpsertMeasurements(ctx context.Context, pool *pgxpool.Pool, cands []models.Candidate, source sealevel.Source) error {
	if len(cands) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO sealevel.measurements (station, ts, value_primary, value_secondary, source, ingested_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (station, ts, source) DO UPDATE
SET value_primary = EXCLUDED.value_primary,
    value_secondary = EXCLUDED.value_secondary,
    ingested_at = NOW()`

	for _, c := range cands {
		batch.Queue(query, c.Station, c.TS, c.Primary, c.Secondary, string(source))
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range cands {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}
