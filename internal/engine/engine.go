package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/strategy"
	"trend-trading-bot/internal/tradelog"
	"trend-trading-bot/internal/types"
)

type Config struct {
	SessionStart       string // "09:15"
	SessionEnd         string // "15:30"
	MaxTradesPerDay    int
	MaxCapitalPerTrade float64
	RiskPerTrade       float64
	RiskMultiple       float64
	MinATRPct          float64
	MinCandidates      int
	BufferTimeout      time.Duration
	RecentSignals      int
	Lookback           int // daily bars for the stop calculation
}

func (c Config) withDefaults() Config {
	if c.SessionStart == "" {
		c.SessionStart = "09:15"
	}
	if c.SessionEnd == "" {
		c.SessionEnd = "15:30"
	}
	if c.MaxTradesPerDay <= 0 {
		c.MaxTradesPerDay = 2
	}
	if c.MaxCapitalPerTrade <= 0 {
		c.MaxCapitalPerTrade = 50000
	}
	if c.RiskPerTrade <= 0 {
		c.RiskPerTrade = 1000
	}
	if c.RiskMultiple <= 0 {
		c.RiskMultiple = 2.0
	}
	if c.MinATRPct <= 0 {
		c.MinATRPct = 0.2
	}
	if c.MinCandidates <= 0 {
		c.MinCandidates = 2
	}
	if c.BufferTimeout <= 0 {
		c.BufferTimeout = 15 * time.Minute
	}
	if c.RecentSignals <= 0 {
		c.RecentSignals = 20
	}
	if c.Lookback <= 0 {
		c.Lookback = 260
	}
	return c
}

// Deps bundles everything the engine drives.
type Deps struct {
	MarketData interfaces.MarketData
	Scanner    interfaces.Scanner
	Signals    interfaces.SignalStore
	Trades     interfaces.TradeStore
	Portfolio  interfaces.PortfolioStore
	Universe   func(ctx context.Context) []string
}

// Engine runs one full trading cycle per tick: manage exits, rescan,
// qualify standing signals into the candidate buffer and enter at most
// one position when the buffer commits.
type Engine struct {
	cfg       Config
	params    strategy.Params
	md        interfaces.MarketData
	scanner   interfaces.Scanner
	signals   interfaces.SignalStore
	trades    interfaces.TradeStore
	portfolio interfaces.PortfolioStore
	universe  func(ctx context.Context) []string
	buffer    *CandidateBuffer
	loc       *time.Location
	now       func() time.Time
}

var _ interfaces.Cycle = (*Engine)(nil)

func New(cfg Config, params strategy.Params, d Deps) *Engine {
	return &Engine{
		cfg:       cfg.withDefaults(),
		params:    params.Normalize(),
		md:        d.MarketData,
		scanner:   d.Scanner,
		signals:   d.Signals,
		trades:    d.Trades,
		portfolio: d.Portfolio,
		universe:  d.Universe,
		buffer:    NewCandidateBuffer(),
		loc:       time.FixedZone("IST", 19800),
		now:       time.Now,
	}
}

// Run executes one cycle. Exits are managed before the daily entry cap
// is consulted so open positions are never abandoned by a full day; a
// capped day skips the scan entirely.
func (e *Engine) Run(ctx context.Context) (*types.CycleResult, error) {
	now := e.now().In(e.loc)
	if !e.inSession(now) {
		return &types.CycleResult{Skipped: "outside session window"}, nil
	}

	res := &types.CycleResult{}
	res.Exited = e.manageOpenTrades(ctx)

	opened, err := e.trades.TradesOpenedOn(ctx, now)
	if err != nil {
		logger.ErrorWithErr(ctx, "failed to count today's trades, skipping entries", err)
		res.Skipped = "trade count unavailable"
		return res, nil
	}
	if opened >= e.cfg.MaxTradesPerDay {
		res.Skipped = "daily trade cap reached"
		return res, nil
	}

	sum, err := e.scanner.Scan(ctx, e.universe(ctx))
	if err != nil {
		return res, fmt.Errorf("scan: %w", err)
	}
	res.Scan = sum

	held := e.heldSymbols(ctx)
	sigs, err := e.signals.RecentSignals(ctx, e.cfg.RecentSignals)
	if err != nil {
		return res, fmt.Errorf("recent signals: %w", err)
	}
	for _, sig := range sigs {
		if held[sig.Symbol] {
			continue
		}
		cand, ok := e.qualify(ctx, sig)
		if !ok {
			continue
		}
		if e.buffer.Insert(cand) {
			res.Candidates++
			if err := tradelog.AppendSignal(tradelog.SignalEntry{
				Symbol: cand.Symbol,
				Tier:   string(sig.Strength),
				Trend:  sig.TrendLabel,
				Price:  cand.Price,
				Score:  cand.Score,
				RSI:    cand.RSI,
				RVol:   cand.RVol,
			}); err != nil {
				logger.Warn(ctx, "signal log append failed", "error", err.Error())
			}
		}
	}
	res.Buffered = e.buffer.Len()

	if cand, ok := e.buffer.TrySelect(e.cfg.MinCandidates, e.cfg.BufferTimeout, now); ok {
		trade, err := e.executeTrade(ctx, cand)
		if err != nil {
			logger.ErrorWithErr(ctx, "trade execution failed", err, "symbol", cand.Symbol)
		} else if trade != nil {
			res.Executed = cand.Symbol
			res.Buffered = 0
		}
	}
	return res, nil
}

func (e *Engine) heldSymbols(ctx context.Context) map[string]bool {
	held := make(map[string]bool)
	open, err := e.trades.OpenTrades(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "failed to list open trades", err)
		return held
	}
	for _, t := range open {
		held[t.Symbol] = true
	}
	return held
}

func (e *Engine) inSession(now time.Time) bool {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	return cur >= clockMinutes(e.cfg.SessionStart, 9*60+15) &&
		cur < clockMinutes(e.cfg.SessionEnd, 15*60+30)
}

func clockMinutes(s string, fallback int) int {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return fallback
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return fallback
	}
	return h*60 + m
}
