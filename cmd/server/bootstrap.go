package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"stock-dashboard/internal/ai"
	"stock-dashboard/internal/api"
	"stock-dashboard/internal/financials"
	"stock-dashboard/internal/issues"
	"stock-dashboard/internal/logger"
	"stock-dashboard/internal/price"
	"stock-dashboard/internal/reports"
	"stock-dashboard/internal/search"
	"stock-dashboard/internal/store"
	"stock-dashboard/internal/symbols"
	"stock-dashboard/internal/trace"
	transporthttp "stock-dashboard/internal/transport/http"
	"stock-dashboard/internal/worker"
)

// initializeSystem initializes env, logger and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// buildServer wires the aggregation services behind the API boundary.
func buildServer(ctx context.Context, cfg *store.Config) (*transporthttp.Server, *worker.Pool) {
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second

	client := api.NewClient(api.WithTimeout(timeout), api.WithLogging(true))
	pool := worker.New(cfg.Workers.Size)

	cache := symbols.NewCache(client, cfg.Sources.SymbolMasterURL, pool)
	if err := cache.Ensure(ctx); err != nil {
		logger.Warn(ctx, "Symbol master list not loaded at startup, will retry on demand", "error", err.Error())
	} else {
		logger.Info(ctx, "Symbol master list loaded", "symbols", cache.Size())
	}

	engine := price.NewEngine(cache, pool,
		price.NewDataPortalClient(client, cfg.Sources.DataPortalURL),
		price.NewChartSource(),
	)

	if os.Getenv("DATA_GO_KR_API_KEY") == "" {
		logger.Warn(ctx, "DATA_GO_KR_API_KEY not set - domestic price tier will be skipped")
	}
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
		logger.Warn(ctx, "No AI provider key configured - briefing uses deterministic fallback")
	}

	srv := transporthttp.NewServer(
		search.NewAggregator(cache, client, pool, cfg),
		engine,
		price.NewMarketSource(pool),
		reports.NewService(cfg, pool),
		ai.NewGenerator(cfg, pool),
		financials.NewProvider(),
		issues.NewClient(client, cfg.Sources.IssueURL, pool),
		timeout,
	)
	return srv, pool
}
