package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"trend-trading-bot/internal/db"
	"trend-trading-bot/internal/engine"
	"trend-trading-bot/internal/engine/engineobs"
	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/marketdata"
	"trend-trading-bot/internal/marketdata/mdataobs"
	"trend-trading-bot/internal/scanner"
	"trend-trading-bot/internal/store"
	"trend-trading-bot/internal/strategy"
	"trend-trading-bot/internal/trace"
	"trend-trading-bot/internal/tradelog"
	"trend-trading-bot/internal/universe"
)

// initializeSystem initializes environment, logger and tracer
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

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("TRADER_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old tradelog files per retention config
func compressOldLogs(ctx context.Context, cfg *store.Config) {
	if err := tradelog.CompressOlder(cfg.Log.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// openStore opens the SQLite store, honouring TRADER_DB_PATH
func openStore(ctx context.Context, cfg *store.Config) (*db.Store, error) {
	path := os.Getenv("TRADER_DB_PATH")
	if path == "" {
		path = cfg.DB.Path
	}
	st, err := db.Open(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open database", err, "path", path)
		return nil, err
	}
	logger.Info(ctx, "Database ready", "path", path)
	return st, nil
}

// initializeMarketData builds the bar source with observability
func initializeMarketData(ctx context.Context, cfg *store.Config) interfaces.MarketData {
	md := marketdata.New(marketdata.Params{
		Mode:        cfg.DataSource,
		APIKey:      os.Getenv("KITE_API_KEY"),
		AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
		Exchange:    cfg.Exchange,
	})

	if cfg.DataSource == "LIVE" {
		logger.Info(ctx, "Using LIVE candle data from Kite Connect")
	} else {
		logger.Info(ctx, "Using STATIC mock candle data for testing")
	}

	return mdataobs.Wrap(md)
}

func strategyParams(cfg *store.Config) strategy.Params {
	return strategy.Params{
		SwingWindow:       cfg.Strategy.SwingWindow,
		FastEMA:           cfg.Strategy.FastEMA,
		SlowEMA:           cfg.Strategy.SlowEMA,
		LongEMA:           cfg.Strategy.LongEMA,
		RSIPeriod:         cfg.Strategy.RSIPeriod,
		VolumeWindow:      cfg.Strategy.VolumeWindow,
		SniperVolumeRatio: cfg.Strategy.SniperVolumeRatio,
	}.Normalize()
}

// initializeScanner builds the batch scanner
func initializeScanner(cfg *store.Config, md interfaces.MarketData, st *db.Store) interfaces.Scanner {
	return scanner.New(scanner.Config{
		Strategy:      cfg.Scan.Strategy,
		BatchSize:     cfg.Scan.BatchSize,
		Workers:       cfg.Scan.Workers,
		Lookback:      cfg.Scan.Lookback,
		RetryAttempts: cfg.Scan.RetryAttempts,
		RetryDelay:    time.Duration(cfg.Scan.RetrySeconds) * time.Second,
		BatchPause:    time.Duration(cfg.Scan.PauseSeconds) * time.Second,
		Params:        strategyParams(cfg),
	}, md, st)
}

// initializeEngine builds the trading cycle with observability
func initializeEngine(cfg *store.Config, md interfaces.MarketData, sc interfaces.Scanner, st *db.Store, loader *universe.Loader) interfaces.Cycle {
	eng := engine.New(engine.Config{
		SessionStart:       cfg.Session.Start,
		SessionEnd:         cfg.Session.End,
		MaxTradesPerDay:    cfg.Risk.MaxTradesPerDay,
		MaxCapitalPerTrade: cfg.Risk.MaxCapitalPerTrade,
		RiskPerTrade:       cfg.Risk.RiskPerTrade,
		RiskMultiple:       cfg.Risk.RiskMultiple,
		MinATRPct:          cfg.Risk.MinATRPct,
		MinCandidates:      cfg.Buffer.MinCandidates,
		BufferTimeout:      time.Duration(cfg.Buffer.TimeoutMinutes) * time.Minute,
		RecentSignals:      cfg.Buffer.RecentSignals,
		Lookback:           cfg.Scan.Lookback,
	}, strategyParams(cfg), engine.Deps{
		MarketData: md,
		Scanner:    sc,
		Signals:    st,
		Trades:     st,
		Portfolio:  st,
		Universe:   loader.Load,
	})

	return engineobs.Wrap(eng)
}

// scheduleDeepScans registers full-universe scans at fixed session times
func scheduleDeepScans(ctx context.Context, cfg *store.Config, sc interfaces.Scanner, loader *universe.Loader) *cron.Cron {
	if !cfg.DeepScan.Enabled {
		return nil
	}

	ist := time.FixedZone("IST", 19800)
	c := cron.New(cron.WithLocation(ist))
	for _, at := range cfg.DeepScan.Times {
		spec, err := cronSpec(at)
		if err != nil {
			logger.Warn(ctx, "Skipping bad deep scan time", "time", at, "error", err)
			continue
		}
		at := at
		_, err = c.AddFunc(spec, func() {
			logger.Info(ctx, "Deep scan starting", "scheduled_at", at)
			if _, err := sc.Scan(ctx, loader.Load(ctx)); err != nil {
				logger.ErrorWithErr(ctx, "Deep scan failed", err)
			}
		})
		if err != nil {
			logger.Warn(ctx, "Failed to schedule deep scan", "time", at, "error", err)
		}
	}
	c.Start()
	logger.Info(ctx, "Deep scans scheduled", "times", strings.Join(cfg.DeepScan.Times, ","))
	return c
}

// cronSpec turns "HH:MM" into a weekday cron expression
func cronSpec(at string) (string, error) {
	var h, m int
	if _, err := fmt.Sscanf(at, "%d:%d", &h, &m); err != nil {
		return "", err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return "", fmt.Errorf("invalid time %q", at)
	}
	return fmt.Sprintf("%d %d * * 1-5", m, h), nil
}
