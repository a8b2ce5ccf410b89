package db

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

func ptr(v float64) *float64 { return &v }

func seeded() *MemStore {
	s := NewMemStore()
	s.Insert(
		sealevel.Row{Station: "Haifa", Timestamp: from.Add(time.Hour), Primary: ptr(0.36)},
		sealevel.Row{Station: "Haifa", Timestamp: from.Add(2 * time.Hour), Primary: ptr(0.38)},
		sealevel.Row{Station: "Yafo", Timestamp: from.Add(time.Hour), Primary: ptr(0.32)},
		sealevel.Row{Station: "Yafo", Timestamp: from.Add(time.Hour), Primary: ptr(0.90), Source: sealevel.SourceTides},
		sealevel.Row{Station: "Acre", Timestamp: until, Primary: ptr(0.40)},
		sealevel.Row{Station: "Eilat", Timestamp: from.Add(3 * time.Hour), Primary: ptr(math.NaN())},
	)
	return s
}

func TestMemStore_ReadMeasurementsFiltersAndOrders(t *testing.T) {
	s := seeded()

	rows, err := s.ReadMeasurements(context.Background(), []string{"Haifa", "Yafo", "Acre"}, from, until, sealevel.SourceDefault)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "Haifa", rows[0].Station)
	assert.Equal(t, "Yafo", rows[1].Station)
	assert.InDelta(t, 0.32, *rows[1].Primary, 1e-9)
	assert.Equal(t, from.Add(2*time.Hour), rows[2].Timestamp)
	assert.Equal(t, 1, s.Reads())
}

func TestMemStore_ReadAggregated(t *testing.T) {
	s := seeded()

	rows, err := s.ReadAggregated(context.Background(), []string{"Haifa", "Eilat"}, from, until, sealevel.LevelDaily, sealevel.SourceDefault)
	require.NoError(t, err)

	require.Len(t, rows, 1, "Eilat has no valid readings")
	assert.Equal(t, from, rows[0].Timestamp)
	assert.InDelta(t, 0.37, *rows[0].Primary, 1e-9)
	assert.Equal(t, 2, rows[0].Count)
}

func TestMemStore_InsertUpserts(t *testing.T) {
	s := NewMemStore()
	s.Insert(sealevel.Row{Station: "Yafo", Timestamp: from, Primary: ptr(0.1)})
	s.Insert(sealevel.Row{Station: "Yafo", Timestamp: from, Primary: ptr(0.2)})

	rows, err := s.ReadMeasurements(context.Background(), []string{"Yafo"}, from, until, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.2, *rows[0].Primary, 1e-9)
}

func TestMemStore_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seeded().ReadMeasurements(ctx, []string{"Yafo"}, from, until, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemStore_ListStations(t *testing.T) {
	snaps, err := seeded().ListStations(context.Background(), sealevel.SourceDefault)
	require.NoError(t, err)

	require.Len(t, snaps, 4)
	assert.Equal(t, "Acre", snaps[0].Station)
	assert.Equal(t, "Eilat", snaps[1].Station)
	assert.Nil(t, snaps[1].Primary)
	assert.Equal(t, "Haifa", snaps[2].Station)
	assert.Equal(t, int64(2), snaps[2].Readings)
	assert.InDelta(t, 0.38, *snaps[2].Primary, 1e-9)
}
