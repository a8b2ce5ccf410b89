package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealevel-monitor/dashboard/services/api/anomaly"
	"github.com/sealevel-monitor/dashboard/services/api/cache"
	"github.com/sealevel-monitor/dashboard/services/api/db"
	"github.com/sealevel-monitor/dashboard/services/api/observability"
	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	day     = time.Date(2025, 11, 6, 0, 0, 0, 0, time.UTC)
)

func ptr(v float64) *float64 { return &v }

func testModel() anomaly.Model {
	return anomaly.Model{
		Anchors: []string{"Yafo", "Ashdod", "Ashkelon"},
		Stations: map[string]anomaly.StationRule{
			"Yafo":     {Offset: 0, Tolerance: 0.03},
			"Ashdod":   {Offset: 0, Tolerance: 0.03},
			"Ashkelon": {Offset: 0, Tolerance: 0.03},
			"Haifa":    {Offset: 0.04, Tolerance: 0.03},
		},
	}
}

func newEngine(t *testing.T, store Store, backend cache.Backend) *Engine {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	results := cache.NewManager[Result](backend, nil, discard, metrics)
	chain := anomaly.NewChain(anomaly.NewBaselineScorer(testModel()))
	return New(store, chain, results, discard, metrics, Options{Clock: clockwork.NewFakeClock()})
}

func haifaStore() *db.MemStore {
	s := db.NewMemStore()
	t0 := day.Add(12 * time.Hour)
	t1 := t0.Add(6 * time.Minute)
	for _, st := range []string{"Yafo", "Ashdod", "Ashkelon"} {
		s.Insert(
			sealevel.Row{Station: st, Timestamp: t0, Primary: ptr(0.318), Secondary: ptr(24.1)},
			sealevel.Row{Station: st, Timestamp: t1, Primary: ptr(0.318)},
		)
	}
	s.Insert(
		sealevel.Row{Station: "Haifa", Timestamp: t0, Primary: ptr(0.663)},
		sealevel.Row{Station: "Haifa", Timestamp: t1, Primary: ptr(0.360)},
		sealevel.Row{Station: "Haifa", Timestamp: t1.Add(time.Minute), Primary: ptr(-999)},
	)
	return s
}

func allStations() []string { return []string{"Ashdod", "Ashkelon", "Haifa", "Yafo"} }

func TestQuery_FlagsAndCorrectsOutlier(t *testing.T) {
	e := newEngine(t, haifaStore(), cache.NoopBackend{})

	resp, err := e.Query(context.Background(), Request{Stations: allStations(), Start: day, End: day, Anomalies: true})
	require.NoError(t, err)

	assert.Equal(t, sealevel.LevelRaw, resp.Meta.Level)
	assert.Equal(t, 8, resp.Meta.TotalRecords, "sentinel row is dropped")
	assert.Equal(t, 4, resp.Meta.StationCount)
	assert.Equal(t, 4, resp.Meta.StationsRequested)
	assert.Empty(t, resp.Meta.MissingStations)
	assert.Equal(t, 1, resp.Meta.OutlierCount)
	assert.Equal(t, anomaly.StrategyBaseline, resp.Meta.Strategy)

	var spike, normal *Record
	for i, r := range resp.Records {
		if r.Station != "Haifa" {
			assert.Equal(t, FlagNormal, r.Anomaly)
			continue
		}
		if r.Anomaly == FlagOutlier {
			spike = &resp.Records[i]
		} else {
			normal = &resp.Records[i]
		}
	}
	require.NotNil(t, spike)
	require.NotNil(t, normal)
	assert.InDelta(t, 0.663, spike.Primary, 1e-9)
	assert.InDelta(t, 0.358, *spike.Expected, 1e-9)
	assert.InDelta(t, 0.358, *spike.Corrected, 1e-9)
	assert.NotEmpty(t, spike.Reason)
	assert.InDelta(t, 0.360, *normal.Corrected, 1e-9)
	assert.Empty(t, normal.Reason)
}

func TestQuery_SingleStoreReadForManyStations(t *testing.T) {
	store := haifaStore()
	e := newEngine(t, store, cache.NoopBackend{})

	_, err := e.Query(context.Background(), Request{Stations: allStations(), Start: day, End: day})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Reads())

	// Aggregated levels too.
	_, err = e.Query(context.Background(), Request{Stations: allStations(), Start: day.AddDate(0, 0, -40), End: day})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Reads())
}

func TestQuery_EqualsUnionOfSingleStationQueries(t *testing.T) {
	e := newEngine(t, haifaStore(), cache.NoopBackend{})
	ctx := context.Background()

	for _, end := range []time.Time{day, day.AddDate(0, 0, 20), day.AddDate(0, 0, 400)} {
		all, err := e.Query(ctx, Request{Stations: allStations(), Start: day, End: end})
		require.NoError(t, err)

		var union []Record
		for _, st := range allStations() {
			one, err := e.Query(ctx, Request{Stations: []string{st}, Start: day, End: end})
			require.NoError(t, err)
			union = append(union, one.Records...)
		}
		sort.SliceStable(union, func(i, j int) bool {
			if !union[i].Timestamp.Equal(union[j].Timestamp) {
				return union[i].Timestamp.Before(union[j].Timestamp)
			}
			return union[i].Station < union[j].Station
		})
		assert.Equal(t, union, all.Records, "end=%s", end.Format(time.DateOnly))
	}
}

func TestQuery_Idempotent(t *testing.T) {
	e := newEngine(t, haifaStore(), cache.NoopBackend{})
	req := Request{Stations: allStations(), Start: day, End: day, Anomalies: true}

	a, err := e.Query(context.Background(), req)
	require.NoError(t, err)
	b, err := e.Query(context.Background(), req)
	require.NoError(t, err)

	a.Meta.ElapsedMS, b.Meta.ElapsedMS = 0, 0
	assert.Equal(t, a, b)
}

func TestQuery_ServesFromCache(t *testing.T) {
	store := haifaStore()
	e := newEngine(t, store, cache.NewMemoryBackend(cache.MemoryOptions{}))
	req := Request{Stations: []string{"Haifa", "Yafo", "Yafo"}, Start: day, End: day, Anomalies: true}

	first, err := e.Query(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// Same plan, different station order and anomaly toggle.
	second, err := e.Query(context.Background(), Request{Stations: []string{"Yafo", "Haifa"}, Start: day, End: day})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, store.Reads())
	assert.Equal(t, first.Meta.TotalRecords, second.Meta.TotalRecords)
	assert.Zero(t, second.Meta.OutlierCount)
	for _, r := range second.Records {
		assert.Equal(t, FlagNormal, r.Anomaly)
		assert.Nil(t, r.Corrected)
	}

	third, err := e.Query(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, third.CacheHit)
	assert.Equal(t, 1, third.Meta.OutlierCount)
}

func TestQuery_ValidationHappensBeforeStore(t *testing.T) {
	store := haifaStore()
	e := newEngine(t, store, cache.NoopBackend{})
	ctx := context.Background()

	_, err := e.Query(ctx, Request{Stations: []string{"Haifa"}, Start: day, End: day.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, sealevel.ErrInvalidRange)

	_, err = e.Query(ctx, Request{Stations: []string{" ", ""}, Start: day, End: day})
	assert.ErrorIs(t, err, sealevel.ErrEmptyStationSet)

	_, err = e.Query(ctx, Request{Stations: []string{"Haifa"}, Start: day, End: day, Source: "satellite"})
	assert.ErrorIs(t, err, sealevel.ErrInvalidSource)

	assert.Zero(t, store.Reads())
}

type brokenStore struct{ calls int }

var errDown = errors.New("connection refused")

func (b *brokenStore) ReadMeasurements(context.Context, []string, time.Time, time.Time, sealevel.Source) ([]sealevel.Row, error) {
	b.calls++
	return nil, errDown
}

func (b *brokenStore) ReadAggregated(context.Context, []string, time.Time, time.Time, sealevel.Level, sealevel.Source) ([]sealevel.Row, error) {
	b.calls++
	return nil, errDown
}

func TestQuery_StoreFailureIsDataSourceErrorAndNotCached(t *testing.T) {
	store := &brokenStore{}
	e := newEngine(t, store, cache.NewMemoryBackend(cache.MemoryOptions{}))
	req := Request{Stations: []string{"Haifa"}, Start: day, End: day}

	_, err := e.Query(context.Background(), req)
	var dsErr *DataSourceError
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, "read measurements", dsErr.Op)
	assert.ErrorIs(t, err, errDown)

	_, err = e.Query(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 2, store.calls, "failures are not cached and not retried internally")
}

func TestMeasurements_FeedsAnomalyViews(t *testing.T) {
	e := newEngine(t, haifaStore(), cache.NoopBackend{})

	plan, ms, err := e.Measurements(context.Background(), Request{Stations: allStations(), Start: day, End: day})
	require.NoError(t, err)
	assert.Equal(t, sealevel.LevelRaw, plan.Level())
	require.Len(t, ms, 8)

	corr := e.Scorer().SuggestCorrections(ms)
	require.Len(t, corr, 1)
	assert.Equal(t, "Haifa", corr[0].Station)
}
