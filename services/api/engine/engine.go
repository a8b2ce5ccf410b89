// Package engine answers dashboard queries: it picks a resolution, reads all
// requested stations at once, scores the readings and caches the assembled
// result.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sealevel-monitor/dashboard/services/api/anomaly"
	"github.com/sealevel-monitor/dashboard/services/api/cache"
	"github.com/sealevel-monitor/dashboard/services/api/observability"
	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// Request is one dashboard query.
type Request struct {
	Stations []string
	Start    time.Time
	End      time.Time
	Source   sealevel.Source
	// Anomalies controls whether outlier flags and corrections are returned.
	Anomalies bool
}

// Response is a Result plus per-call facts that are never cached.
type Response struct {
	Result
	CacheHit bool
}

// Options tunes an Engine.
type Options struct {
	// StoreTimeout bounds the store read; zero leaves only the caller's deadline.
	StoreTimeout time.Duration
	// SlowRead is the read duration above which a warning is logged.
	SlowRead time.Duration
	Clock    clockwork.Clock
}

// Engine is safe for concurrent use. It holds no per-request state.
type Engine struct {
	store   Store
	scorer  *anomaly.Chain
	results *cache.Manager[Result]
	log     *slog.Logger
	metrics *observability.Metrics
	opts    Options
}

func New(store Store, scorer *anomaly.Chain, results *cache.Manager[Result], log *slog.Logger, metrics *observability.Metrics, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.SlowRead <= 0 {
		opts.SlowRead = 2 * time.Second
	}
	return &Engine{store: store, scorer: scorer, results: results, log: log, metrics: metrics, opts: opts}
}

// Plan validates req and returns its query plan. No I/O happens here, so
// invalid requests never reach the store.
func (e *Engine) Plan(req Request) (sealevel.Plan, error) {
	rng, err := sealevel.NewRange(req.Start, req.End)
	if err != nil {
		return sealevel.Plan{}, err
	}
	level, err := sealevel.SelectLevel(rng.Start, rng.End)
	if err != nil {
		return sealevel.Plan{}, err
	}
	return sealevel.BuildPlan(req.Stations, rng, level, req.Source)
}

// Query returns the assembled result for req, from cache when fresh.
func (e *Engine) Query(ctx context.Context, req Request) (Response, error) {
	start := e.opts.Clock.Now()
	plan, err := e.Plan(req)
	if err != nil {
		return Response{}, err
	}
	level := plan.Level()
	e.metrics.Requests.WithLabelValues("data", string(level)).Inc()

	result, hit, err := e.results.Load(ctx, plan.Key(), level, func(ctx context.Context) (Result, error) {
		ms, err := e.execute(ctx, plan)
		if err != nil {
			return Result{}, err
		}
		res := Assemble(level, plan.Stations(), e.scorer.Score(ms), e.scorer.Name())
		if res.Meta.OutlierCount > 0 {
			e.metrics.OutliersFlagged.WithLabelValues(res.Meta.Strategy).Add(float64(res.Meta.OutlierCount))
		}
		return res, nil
	})
	if err != nil {
		return Response{}, err
	}

	if !req.Anomalies {
		result = withoutAnomalies(result)
	}
	result.Meta.ElapsedMS = e.opts.Clock.Since(start).Milliseconds()
	e.metrics.RowsReturned.Observe(float64(result.Meta.TotalRecords))
	e.log.DebugContext(ctx, "query served",
		"key", plan.Key(),
		"records", result.Meta.TotalRecords,
		"outliers", result.Meta.OutlierCount,
		"cache_hit", hit,
	)
	return Response{Result: result, CacheHit: hit}, nil
}

// Measurements plans and executes req without scoring or caching. The
// anomaly views score the returned measurements themselves.
func (e *Engine) Measurements(ctx context.Context, req Request) (sealevel.Plan, []sealevel.Measurement, error) {
	plan, err := e.Plan(req)
	if err != nil {
		return sealevel.Plan{}, nil, err
	}
	ms, err := e.execute(ctx, plan)
	if err != nil {
		return sealevel.Plan{}, nil, err
	}
	return plan, ms, nil
}

func (e *Engine) execute(ctx context.Context, plan sealevel.Plan) ([]sealevel.Measurement, error) {
	if e.opts.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.StoreTimeout)
		defer cancel()
	}

	began := e.opts.Clock.Now()
	ms, err := Execute(ctx, e.store, plan)
	took := e.opts.Clock.Since(began)
	e.metrics.StoreReadDuration.WithLabelValues(string(plan.Level())).Observe(took.Seconds())
	if err != nil {
		e.log.ErrorContext(ctx, "store read failed", "key", plan.Key(), "error", err)
		return nil, err
	}
	if took > e.opts.SlowRead {
		e.log.WarnContext(ctx, "slow store read", "key", plan.Key(), "duration", took, "rows", len(ms))
	}
	return ms, nil
}

// Scorer exposes the anomaly chain used for scoring.
func (e *Engine) Scorer() *anomaly.Chain { return e.scorer }
