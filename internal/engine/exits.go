package engine

import (
	"context"

	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/strategy"
	"trend-trading-bot/internal/tradelog"
)

const (
	exitStopLoss   = "Stop Loss Hit"
	exitSellSignal = "Strategy Sell Signal"
)

// manageOpenTrades checks every open trade against its stop and the
// intraday sell signal, closing the ones that trip. The target is
// stored for reference only; a trade above target rides until the
// trend itself turns. Errors on one trade never block the others.
func (e *Engine) manageOpenTrades(ctx context.Context) int {
	open, err := e.trades.OpenTrades(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "failed to list open trades", err)
		return 0
	}

	closed := 0
	for _, t := range open {
		bars, err := e.md.Bars(ctx, t.Symbol, "5minute", 80)
		if err != nil || len(bars) == 0 {
			logger.Warn(ctx, "no intraday bars for open trade", "symbol", t.Symbol)
			continue
		}
		// Prefer the live tick over the last bar close; the bar can lag
		// by up to its full interval.
		price := bars[len(bars)-1].Close
		if ltp, err := e.md.LTP(ctx, t.Symbol); err == nil && ltp > 0 {
			price = ltp
		}

		reason := ""
		switch {
		case price <= t.StopLoss:
			reason = exitStopLoss
		default:
			if st, ok := strategy.ComputeTrendState(bars, e.params.SwingWindow); ok {
				if strategy.DetectSell(bars, st) {
					reason = exitSellSignal
				}
			}
		}
		if reason == "" {
			continue
		}

		pnl := (price - t.EntryPrice) * float64(t.Quantity)
		if err := e.trades.CloseTrade(ctx, t.ID, price, pnl, reason, e.now()); err != nil {
			logger.ErrorWithErr(ctx, "failed to close trade", err, "symbol", t.Symbol, "id", t.ID)
			continue
		}
		if err := e.portfolio.ClosePosition(ctx, t.Symbol); err != nil {
			logger.ErrorWithErr(ctx, "failed to close portfolio position", err, "symbol", t.Symbol)
		}
		if err := tradelog.Append(tradelog.Entry{
			Symbol: t.Symbol,
			Side:   "SELL",
			Qty:    t.Quantity,
			Price:  price,
			PnL:    pnl,
			Reason: reason,
		}); err != nil {
			logger.Warn(ctx, "tradelog append failed", "error", err.Error())
		}
		logger.Trade(ctx, t.Symbol, "SELL", t.Quantity, price, reason, "pnl", pnl)
		closed++
	}
	return closed
}
