package engine

import (
	"context"
	"time"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// Store is the read side the engine depends on. Both methods return rows
// in ascending time order for all stations in one call.
type Store interface {
	ReadMeasurements(ctx context.Context, stations []string, from, until time.Time, source sealevel.Source) ([]sealevel.Row, error)
	ReadAggregated(ctx context.Context, stations []string, from, until time.Time, level sealevel.Level, source sealevel.Source) ([]sealevel.Row, error)
}

// Execute performs exactly one store read for plan and returns cleaned
// measurements sorted by timestamp, then station.
func Execute(ctx context.Context, store Store, plan sealevel.Plan) ([]sealevel.Measurement, error) {
	rng := plan.Range()
	var (
		rows []sealevel.Row
		err  error
		op   string
	)
	if plan.Level().Aggregated() {
		op = "read aggregated " + string(plan.Level())
		rows, err = store.ReadAggregated(ctx, plan.Stations(), rng.From(), rng.Until(), plan.Level(), plan.Source())
	} else {
		op = "read measurements"
		rows, err = store.ReadMeasurements(ctx, plan.Stations(), rng.From(), rng.Until(), plan.Source())
	}
	if err != nil {
		return nil, &DataSourceError{Op: op, Err: err}
	}
	return sealevel.Normalize(rows, plan.Level()), nil
}
