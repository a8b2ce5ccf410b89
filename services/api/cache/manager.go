package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sealevel-monitor/dashboard/services/api/observability"
	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// TTLs maps each resolution level to its freshness window.
type TTLs map[sealevel.Level]time.Duration

// DefaultTTLs keeps raw data fresh and lets coarse levels live longer.
func DefaultTTLs() TTLs {
	return TTLs{
		sealevel.LevelRaw:       time.Minute,
		sealevel.LevelHourly:    5 * time.Minute,
		sealevel.LevelTriHourly: 15 * time.Minute,
		sealevel.LevelDaily:     time.Hour,
		sealevel.LevelWeekly:    6 * time.Hour,
	}
}

const keyPrefix = "sealevel:v1:"

// Manager caches JSON-encoded values of type T on a Backend. Backend
// failures never reach callers: they are logged, counted and treated as a
// miss.
type Manager[T any] struct {
	backend Backend
	ttls    TTLs
	log     *slog.Logger
	metrics *observability.Metrics
	group   singleflight.Group
}

func NewManager[T any](backend Backend, ttls TTLs, log *slog.Logger, metrics *observability.Metrics) *Manager[T] {
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	return &Manager[T]{backend: backend, ttls: ttls, log: log, metrics: metrics}
}

// TTL returns the freshness window for level.
func (m *Manager[T]) TTL(level sealevel.Level) time.Duration { return m.ttls[level] }

// Get returns the cached value for key, if present and fresh.
func (m *Manager[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := m.backend.Get(ctx, keyPrefix+key)
	if errors.Is(err, ErrCacheMiss) {
		m.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return zero, false
	}
	if err != nil {
		m.degraded(ctx, &UnavailableError{Op: "get", Key: key, Err: err})
		m.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		m.log.WarnContext(ctx, "discarding undecodable cache entry", "key", key, "error", err)
		_ = m.backend.Delete(ctx, keyPrefix+key)
		m.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return zero, false
	}
	m.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return v, true
}

// Put stores v under key with the TTL of level.
func (m *Manager[T]) Put(ctx context.Context, key string, level sealevel.Level, v T) {
	ttl := m.ttls[level]
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		m.log.ErrorContext(ctx, "encode cache entry", "key", key, "error", err)
		return
	}
	if err := m.backend.Set(ctx, keyPrefix+key, raw, ttl); err != nil {
		m.degraded(ctx, &UnavailableError{Op: "set", Key: key, Err: err})
	}
}

// Load returns the cached value for key or computes it with fn and stores
// it. Concurrent misses on the same key share one call to fn. The boolean
// reports a cache hit.
func (m *Manager[T]) Load(ctx context.Context, key string, level sealevel.Level, fn func(context.Context) (T, error)) (T, bool, error) {
	if v, ok := m.Get(ctx, key); ok {
		return v, true, nil
	}
	var led bool
	ch := m.group.DoChan(key, func() (any, error) {
		led = true
		v, err := fn(ctx)
		if err != nil {
			return v, err
		}
		m.Put(context.WithoutCancel(ctx), key, level, v)
		return v, nil
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil && !led && isContextErr(res.Err) && ctx.Err() == nil {
			// The shared call ran out of someone else's time; compute for ourselves.
			v, err := fn(ctx)
			if err == nil {
				m.Put(ctx, key, level, v)
			}
			return v, false, err
		}
		v, _ := res.Val.(T)
		return v, false, res.Err
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (m *Manager[T]) degraded(ctx context.Context, err *UnavailableError) {
	m.metrics.CacheErrors.WithLabelValues(err.Op).Inc()
	m.log.WarnContext(ctx, "cache unavailable, continuing without it", "op", err.Op, "key", err.Key, "error", err.Err)
}

// Close releases the backend.
func (m *Manager[T]) Close() error { return m.backend.Close() }
