package engine

import (
	"context"
	"math"

	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/strategy"
	"trend-trading-bot/internal/tradelog"
	"trend-trading-bot/internal/types"
)

// positionSize returns the share count bounded by both the per-trade
// risk budget and the capital ceiling.
func positionSize(entry, stop, riskBudget, maxCapital float64) int {
	rps := entry - stop
	if rps <= 0 || entry <= 0 {
		return 0
	}
	byRisk := int(math.Floor(riskBudget / rps))
	byCapital := int(math.Floor(maxCapital / entry))
	if byCapital < byRisk {
		return byCapital
	}
	return byRisk
}

// executeTrade opens a paper trade for the selected candidate. The stop
// comes from the daily trailing-stop state, with a 1% fallback when the
// state has no usable stop. Returns nil without error when sizing says
// the trade is not worth taking.
func (e *Engine) executeTrade(ctx context.Context, cand types.Candidate) (*types.PaperTrade, error) {
	entry := cand.Price

	stop := math.NaN()
	if daily, err := e.md.Bars(ctx, cand.Symbol, "day", e.cfg.Lookback); err == nil {
		if st, ok := strategy.ComputeTrendState(daily, e.params.SwingWindow); ok {
			stop = st.LatestStop()
		}
	}
	if math.IsNaN(stop) || stop >= entry {
		stop = entry * 0.99
	}

	rps := entry - stop
	if rps <= 0 {
		stop = entry * 0.99
		rps = entry - stop
	}

	qty := positionSize(entry, stop, e.cfg.RiskPerTrade, e.cfg.MaxCapitalPerTrade)
	if qty < 1 {
		logger.Risk(ctx, cand.Symbol, "position_too_small", "entry", entry, "stop", stop)
		return nil, nil
	}
	target := entry + e.cfg.RiskMultiple*rps

	trade := types.PaperTrade{
		Symbol:     cand.Symbol,
		EntryPrice: entry,
		Quantity:   qty,
		StopLoss:   stop,
		Target:     target,
		Status:     types.TradeOpen,
		EntryTime:  e.now(),
	}
	id, err := e.trades.OpenTrade(ctx, trade)
	if err != nil {
		return nil, err
	}
	trade.ID = id

	if _, err := e.portfolio.AddToPortfolio(ctx, cand.Symbol, entry, "OPEN", "paper entry"); err != nil {
		logger.ErrorWithErr(ctx, "failed to add portfolio entry", err, "symbol", cand.Symbol)
	}
	if err := tradelog.Append(tradelog.Entry{
		Symbol:   cand.Symbol,
		Side:     "BUY",
		Qty:      qty,
		Price:    entry,
		StopLoss: stop,
		Target:   target,
		Reason:   "candidate selected",
	}); err != nil {
		logger.Warn(ctx, "tradelog append failed", "error", err.Error())
	}

	logger.Trade(ctx, cand.Symbol, "BUY", qty, entry, "candidate selected",
		"stop", stop, "target", target, "score", cand.Score)
	return &trade, nil
}
