package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sealevel-monitor/dashboard/services/api/observability"
	"github.com/sealevel-monitor/dashboard/services/ingest/internal/config"
	"github.com/sealevel-monitor/dashboard/services/ingest/internal/db"
	"github.com/sealevel-monitor/dashboard/services/ingest/internal/feed"
	"github.com/sealevel-monitor/dashboard/services/ingest/internal/normalize"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+10*time.Second)
	defer cancel()

	client := &http.Client{Timeout: cfg.RequestTimeout}
	retrievalTS := time.Now().UTC().Truncate(time.Second)

	payload, err := feed.FetchReadings(ctx, client, cfg.FeedURL)
	if err != nil {
		return err
	}
	logger.Info("fetched readings", "count", len(payload.Readings), "network", payload.Network)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	candidates := normalize.BuildCandidates(payload.Readings, retrievalTS)
	last, err := db.FetchLastReadings(ctx, pool, normalize.Stations(candidates), cfg.Source)
	if err != nil {
		return err
	}
	pending := normalize.FilterNew(candidates, last, cfg.MinInterval, cfg.ValueEpsilon)

	if len(pending) == 0 {
		logger.Info("no new readings to insert", "retrieval", retrievalTS.Format(time.RFC3339))
		return nil
	}

	logger.Info("prepared new readings", "count", len(pending), "dry_run", cfg.DryRun)

	if cfg.DryRun {
		for _, c := range pending {
			logger.Info("dry-run: would insert",
				"station", c.Station,
				"ts", c.TS.Format(time.RFC3339),
				"value", normalize.ValueString(c.Primary),
			)
		}
		return nil
	}

	if err := db.UpsertMeasurements(ctx, pool, pending, cfg.Source); err != nil {
		return err
	}

	logger.Info("inserted readings", "count", len(pending), "source", cfg.Source)
	return nil
}
