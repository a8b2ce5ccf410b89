package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sealevel-monitor/dashboard/services/api/anomaly"
	"github.com/sealevel-monitor/dashboard/services/api/cache"
	"github.com/sealevel-monitor/dashboard/services/api/config"
	"github.com/sealevel-monitor/dashboard/services/api/db"
	"github.com/sealevel-monitor/dashboard/services/api/engine"
	httpserver "github.com/sealevel-monitor/dashboard/services/api/http"
	"github.com/sealevel-monitor/dashboard/services/api/observability"
)

type store interface {
	engine.Store
	httpserver.StationLister
	httpserver.Pinger
	Close()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics()

	model := anomaly.DefaultModel()
	if cfg.BaselineModelPath != "" {
		loaded, err := anomaly.LoadModel(cfg.BaselineModelPath)
		if err != nil {
			return err
		}
		model = loaded
	}
	scorers, err := anomaly.NewScorers(cfg.AnomalyStrategies, model)
	if err != nil {
		return fmt.Errorf("ANOMALY_STRATEGIES: %w", err)
	}
	chain := anomaly.NewChain(scorers...)

	var st store
	switch cfg.StoreBackend {
	case config.StoreMemory:
		st = db.NewMemStore()
	default:
		pg, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connection error: %w", err)
		}
		st = pg
	}
	defer st.Close()

	ready := map[string]httpserver.Pinger{"store": st}
	var backend cache.Backend
	switch cfg.CacheBackend {
	case config.CacheRedis:
		rb := cache.NewRedisBackend(cache.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		ready["cache"] = rb
		backend = rb
	case config.CacheNone:
		backend = cache.NoopBackend{}
	default:
		backend = cache.NewMemoryBackend(cache.MemoryOptions{MaxEntries: cfg.CacheMaxEntries, Shards: cfg.CacheShards})
	}
	results := cache.NewManager[engine.Result](backend, cfg.CacheTTLs, logger, metrics)
	defer results.Close()

	eng := engine.New(st, chain, results, logger, metrics, engine.Options{StoreTimeout: cfg.StoreTimeout})

	srv := httpserver.New(cfg, httpserver.Deps{
		Engine:   eng,
		Stations: st,
		Model:    model,
		Ready:    ready,
		Log:      logger,
		Metrics:  metrics,
	})
	logger.Info("REST API listening",
		"addr", cfg.ListenAddr(),
		"store", cfg.StoreBackend,
		"cache", cfg.CacheBackend,
		"strategy", chain.Name(),
		"stations", len(model.Stations),
	)

	return srv.Run(ctx)
}
