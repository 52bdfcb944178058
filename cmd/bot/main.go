package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trend-trading-bot/internal/eod"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/trace"
	"trend-trading-bot/internal/universe"
)

func main() {
	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	compressOldLogs(ctx, cfg)

	st, err := openStore(ctx, cfg)
	if err != nil {
		os.Exit(1)
	}
	defer st.Close()

	md := initializeMarketData(ctx, cfg)
	loader := universe.NewLoader(cfg.Universe.Static, cfg.Universe.CSVURL)
	sc := initializeScanner(cfg, md, st)
	cycle := initializeEngine(cfg, md, sc, st, loader)

	deepScans := scheduleDeepScans(ctx, cfg, sc, loader)
	if deepScans != nil {
		defer deepScans.Stop()
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()
	eodTick := time.NewTicker(60 * time.Second)
	defer eodTick.Stop()

	logger.Info(ctx, "Bot started",
		"data_source", cfg.DataSource,
		"strategy", cfg.Scan.Strategy,
		"poll_seconds", cfg.PollSeconds,
	)

	for {
		select {
		case <-tick.C:
			if _, err := cycle.Run(ctx); err != nil {
				logger.ErrorWithErr(ctx, "cycle error", err)
			}
		case <-eodTick.C:
			if ok, _ := eod.ShouldRunNow(); ok {
				if p, err := eod.SummarizeToday(); err == nil && p != "" {
					logger.Info(ctx, "EOD CSV written", "path", p)
				}
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down")
			if p, err := eod.SummarizeToday(); err == nil && p != "" {
				logger.Info(ctx, "EOD CSV written", "path", p)
			}
			_ = trace.Shutdown(context.Background())
			return
		case <-ctx.Done():
			_ = trace.Shutdown(context.Background())
			return
		}
	}
}
