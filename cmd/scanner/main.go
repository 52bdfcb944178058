package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"trend-trading-bot/internal/db"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/marketdata"
	"trend-trading-bot/internal/marketdata/mdataobs"
	"trend-trading-bot/internal/scanner"
	"trend-trading-bot/internal/store"
	"trend-trading-bot/internal/strategy"
	"trend-trading-bot/internal/trace"
	"trend-trading-bot/internal/universe"
)

// One-shot universe scan. Runs the detectors once, persists signals and
// prints the summary as JSON.
func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config file")
		strat      = flag.String("strategy", "", "standard, sniper, golden or all (overrides config)")
		limit      = flag.Int("limit", 0, "scan only the first N symbols")
	)
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	cfg, err := store.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *strat != "" {
		cfg.Scan.Strategy = *strat
		if err := cfg.Validate(); err != nil {
			log.Fatal(err)
		}
	}

	ctx := context.Background()

	dbPath := os.Getenv("TRADER_DB_PATH")
	if dbPath == "" {
		dbPath = cfg.DB.Path
	}
	st, err := db.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	md := mdataobs.Wrap(marketdata.New(marketdata.Params{
		Mode:        cfg.DataSource,
		APIKey:      os.Getenv("KITE_API_KEY"),
		AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
		Exchange:    cfg.Exchange,
	}))

	symbols := universe.NewLoader(cfg.Universe.Static, cfg.Universe.CSVURL).Load(ctx)
	if *limit > 0 && *limit < len(symbols) {
		symbols = symbols[:*limit]
	}

	sc := scanner.New(scanner.Config{
		Strategy:      cfg.Scan.Strategy,
		BatchSize:     cfg.Scan.BatchSize,
		Workers:       cfg.Scan.Workers,
		Lookback:      cfg.Scan.Lookback,
		RetryAttempts: cfg.Scan.RetryAttempts,
		RetryDelay:    time.Duration(cfg.Scan.RetrySeconds) * time.Second,
		BatchPause:    time.Duration(cfg.Scan.PauseSeconds) * time.Second,
		Params: strategy.Params{
			SwingWindow:       cfg.Strategy.SwingWindow,
			FastEMA:           cfg.Strategy.FastEMA,
			SlowEMA:           cfg.Strategy.SlowEMA,
			LongEMA:           cfg.Strategy.LongEMA,
			RSIPeriod:         cfg.Strategy.RSIPeriod,
			VolumeWindow:      cfg.Strategy.VolumeWindow,
			SniperVolumeRatio: cfg.Strategy.SniperVolumeRatio,
		},
	}, md, st)

	sum, err := sc.Scan(ctx, symbols)
	if err != nil {
		log.Fatal(err)
	}

	b, _ := json.MarshalIndent(sum, "", "  ")
	fmt.Println(string(b))

	_ = trace.Shutdown(context.Background())
}
