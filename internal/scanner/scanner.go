package scanner

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/strategy"
	"trend-trading-bot/internal/types"
)

// Strategy selects which detectors a scan runs.
const (
	StrategyStandard = "standard"
	StrategySniper   = "sniper"
	StrategyGolden   = "golden"
	StrategyAll      = "all"
)

type Config struct {
	Strategy      string
	BatchSize     int
	Workers       int
	Lookback      int           // daily bars fetched per symbol
	MinBars       int           // below this a symbol counts as no-data
	RetryAttempts int           // per-batch fetch attempts
	RetryDelay    time.Duration // pause between attempts
	BatchPause    time.Duration // pause after a failed batch
	Interval      string        // bar interval, defaults to "day"
	Params        strategy.Params
}

func (c Config) withDefaults() Config {
	if c.Strategy == "" {
		c.Strategy = StrategyStandard
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Lookback <= 0 {
		c.Lookback = 260
	}
	if c.MinBars <= 0 {
		c.MinBars = c.Params.Normalize().SwingWindow + 1
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.BatchPause <= 0 {
		c.BatchPause = 5 * time.Second
	}
	if c.Interval == "" {
		c.Interval = "day"
	}
	c.Params = c.Params.Normalize()
	return c
}

// Scanner walks a symbol universe in batches, runs the crossover
// detectors on each symbol and persists the outcomes. One bad symbol or
// one bad batch never aborts the run.
type Scanner struct {
	cfg     Config
	md      interfaces.MarketData
	signals interfaces.SignalStore
}

var _ interfaces.Scanner = (*Scanner)(nil)

func New(cfg Config, md interfaces.MarketData, signals interfaces.SignalStore) *Scanner {
	return &Scanner{cfg: cfg.withDefaults(), md: md, signals: signals}
}

// Scan runs one pass over the universe and returns aggregate counters.
func (s *Scanner) Scan(ctx context.Context, symbols []string) (*types.ScanSummary, error) {
	sum := &types.ScanSummary{Scanned: len(symbols)}
	var mu sync.Mutex

	for start := 0; start < len(symbols); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		end := start + s.cfg.BatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		barsBySymbol, err := s.fetchBatch(ctx, batch)
		if err != nil {
			mu.Lock()
			sum.BatchesFailed++
			sum.NoData += len(batch)
			mu.Unlock()
			logger.Warn(ctx, "batch fetch failed, skipping",
				"from", batch[0], "size", len(batch), "error", err.Error())
			sleepCtx(ctx, s.cfg.BatchPause)
			continue
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, s.cfg.Workers)
		for _, sym := range batch {
			bars := barsBySymbol[sym]
			if len(bars) < s.cfg.MinBars {
				mu.Lock()
				sum.NoData++
				mu.Unlock()
				continue
			}
			mu.Lock()
			sum.WithData++
			mu.Unlock()

			wg.Add(1)
			sem <- struct{}{}
			go func(sym string, bars []types.Bar) {
				defer wg.Done()
				defer func() { <-sem }()
				found, deleted, storeErrs := s.evaluate(ctx, sym, bars)
				mu.Lock()
				sum.SignalsFound += found
				sum.SignalsDeleted += deleted
				sum.StoreErrors += storeErrs
				mu.Unlock()
			}(sym, bars)
		}
		wg.Wait()
	}

	logger.Info(ctx, "scan complete",
		"scanned", sum.Scanned,
		"with_data", sum.WithData,
		"no_data", sum.NoData,
		"signals_found", sum.SignalsFound,
		"signals_deleted", sum.SignalsDeleted,
		"batches_failed", sum.BatchesFailed,
		"store_errors", sum.StoreErrors,
	)
	return sum, nil
}

func (s *Scanner) fetchBatch(ctx context.Context, batch []string) (map[string][]types.Bar, error) {
	var out map[string][]types.Bar
	op := func() error {
		var err error
		out, err = s.md.BatchBars(ctx, batch, s.cfg.Interval, s.cfg.Lookback)
		return err
	}
	bo := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(s.cfg.RetryDelay),
		uint64(s.cfg.RetryAttempts-1),
	)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

// evaluate runs the configured detectors on one symbol's bars.
func (s *Scanner) evaluate(ctx context.Context, sym string, bars []types.Bar) (found, deleted, storeErrs int) {
	bars = dropBadBars(bars)
	if len(bars) < s.cfg.MinBars {
		return 0, 0, 0
	}
	p := s.cfg.Params
	last := bars[len(bars)-1]

	st, ok := strategy.ComputeTrendState(bars, p.SwingWindow)
	if !ok {
		return 0, 0, 0
	}

	buy := strategy.DetectBuy(bars, st)
	sell := strategy.DetectSell(bars, st)
	goldenBuy, goldenSell := false, false
	if s.cfg.Strategy == StrategyGolden || s.cfg.Strategy == StrategyAll {
		goldenBuy, goldenSell = strategy.GoldenCross(bars, p)
	}

	var fire []types.StrengthTier
	switch s.cfg.Strategy {
	case StrategySniper:
		// Sniper only records crossovers that pass every confirmation.
		if buy && strategy.Classify(bars, p) == types.TierSniper {
			fire = append(fire, types.TierSniper)
		}
	case StrategyGolden:
		if goldenBuy {
			fire = append(fire, types.TierGolden)
		}
	case StrategyAll:
		if buy {
			fire = append(fire, strategy.Classify(bars, p))
		}
		if goldenBuy {
			fire = append(fire, types.TierGolden)
		}
	default:
		if buy {
			fire = append(fire, types.TierStandard)
		}
	}

	for _, tier := range fire {
		sig := types.Signal{
			Symbol:     sym,
			Price:      last.Close,
			SignalDate: barDate(last),
			TrendLabel: strategy.TrendLabel(bars, p),
			Strength:   tier,
			DetectedAt: time.Now(),
		}
		inserted, err := s.signals.AddSignal(ctx, sig)
		if err != nil {
			storeErrs++
			logger.ErrorWithErr(ctx, "failed to persist signal", err, "symbol", sym)
			continue
		}
		if inserted {
			found++
			logger.Signal(ctx, sym, "BUY", string(tier), last.Close, "trend", sig.TrendLabel)
		}
	}

	if sell || goldenSell {
		n, err := s.signals.DeleteSignals(ctx, sym)
		if err != nil {
			storeErrs++
			logger.ErrorWithErr(ctx, "failed to delete signals", err, "symbol", sym)
		} else if n > 0 {
			deleted += int(n)
			logger.Signal(ctx, sym, "SELL", "invalidate", last.Close, "removed", n)
		}
	}
	return found, deleted, storeErrs
}

// dropBadBars trims bars with NaN closes so one corrupt row cannot
// poison every indicator downstream.
func dropBadBars(bars []types.Bar) []types.Bar {
	out := bars[:0:0]
	for _, b := range bars {
		if math.IsNaN(b.Close) || math.IsNaN(b.High) || math.IsNaN(b.Low) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func barDate(b types.Bar) string {
	ist := time.FixedZone("IST", 19800)
	return time.Unix(b.Ts, 0).In(ist).Format("2006-01-02")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
