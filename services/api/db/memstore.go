package db

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// MemStore is an in-memory store with the same read contract as Store. It
// backs STORE_BACKEND=memory and tests.
type MemStore struct {
	mu    sync.RWMutex
	rows  map[rowKey]sealevel.Row
	reads atomic.Int64
}

type rowKey struct {
	station string
	ts      time.Time
	source  sealevel.Source
}

func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[rowKey]sealevel.Row)}
}

// Insert upserts rows keyed on (station, ts, source).
func (m *MemStore) Insert(rows ...sealevel.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		if r.Source == "" {
			r.Source = sealevel.SourceDefault
		}
		r.Timestamp = r.Timestamp.UTC()
		m.rows[rowKey{station: r.Station, ts: r.Timestamp, source: r.Source}] = r
	}
}

// Reads counts Read* calls since creation.
func (m *MemStore) Reads() int { return int(m.reads.Load()) }

func (m *MemStore) Ping(context.Context) error { return nil }

func (m *MemStore) Close() {}

func (m *MemStore) ReadMeasurements(ctx context.Context, stations []string, from, until time.Time, source sealevel.Source) ([]sealevel.Row, error) {
	m.reads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.selectRows(stations, from, until, source)
}

func (m *MemStore) ReadAggregated(ctx context.Context, stations []string, from, until time.Time, level sealevel.Level, source sealevel.Source) ([]sealevel.Row, error) {
	m.reads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := bucketExpr(level); err != nil {
		return nil, err
	}
	rows, err := m.selectRows(stations, from, until, source)
	if err != nil {
		return nil, err
	}
	return sealevel.AggregateRows(rows, level), nil
}

func (m *MemStore) selectRows(stations []string, from, until time.Time, source sealevel.Source) ([]sealevel.Row, error) {
	if len(stations) == 0 {
		return nil, sealevel.ErrEmptyStationSet
	}
	if source == "" {
		source = sealevel.SourceDefault
	}
	want := make(map[string]bool, len(stations))
	for _, s := range stations {
		want[s] = true
	}

	m.mu.RLock()
	out := make([]sealevel.Row, 0)
	for k, r := range m.rows {
		if want[k.station] && k.source == source && !k.ts.Before(from) && k.ts.Before(until) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Station < out[j].Station
	})
	return out, nil
}

func (m *MemStore) ListStations(_ context.Context, source sealevel.Source) ([]StationSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byStation := make(map[string]*StationSnapshot)
	for k, r := range m.rows {
		if k.source != source {
			continue
		}
		snap, ok := byStation[k.station]
		if !ok {
			snap = &StationSnapshot{Station: k.station}
			byStation[k.station] = snap
		}
		snap.Readings++
		if snap.Timestamp.IsZero() || k.ts.After(snap.Timestamp) {
			snap.Timestamp = k.ts
			snap.Primary = sealevel.CleanValue(r.Primary)
			snap.Secondary = sealevel.CleanValue(r.Secondary)
		}
	}
	out := make([]StationSnapshot, 0, len(byStation))
	for _, snap := range byStation {
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Station < out[j].Station })
	return out, nil
}
