package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that a connection can be acquired.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ReadMeasurements returns every raw row for stations in [from, until) in a
// single query.
func (s *Store) ReadMeasurements(ctx context.Context, stations []string, from, until time.Time, source sealevel.Source) ([]sealevel.Row, error) {
	sql, args, err := renderQuery(stations, from, until, sealevel.LevelRaw, source)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, sql, args)
}

// ReadAggregated returns one row per (station, bucket) at level, computed by
// the database.
func (s *Store) ReadAggregated(ctx context.Context, stations []string, from, until time.Time, level sealevel.Level, source sealevel.Source) ([]sealevel.Row, error) {
	sql, args, err := renderQuery(stations, from, until, level, source)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, sql, args)
}

func (s *Store) query(ctx context.Context, sql string, args []any) ([]sealevel.Row, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sealevel.Row, 0)
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRow(rows pgx.Rows) (sealevel.Row, error) {
	var (
		r      sealevel.Row
		source string
		count  int64
	)
	if err := rows.Scan(
		&r.Station,
		&r.Timestamp,
		&r.Primary,
		&r.Secondary,
		&source,
		&count,
	); err != nil {
		return sealevel.Row{}, err
	}
	r.Timestamp = r.Timestamp.UTC()
	r.Source = sealevel.Source(source)
	r.Count = int(count)
	return r, nil
}
