package engine

import (
	"context"
	"math"

	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/ta"
	"trend-trading-bot/internal/types"
)

// qualify runs the intraday quality gates over a standing signal and
// scores it for the candidate buffer. A symbol that fails any gate is
// simply not a candidate this cycle; it may qualify on a later one.
func (e *Engine) qualify(ctx context.Context, sig types.Signal) (types.Candidate, bool) {
	intraday, err := e.md.Bars(ctx, sig.Symbol, "5minute", 80)
	if err != nil || len(intraday) == 0 {
		logger.Debug(ctx, "no intraday bars for candidate", "symbol", sig.Symbol)
		return types.Candidate{}, false
	}

	highs := make([]float64, len(intraday))
	lows := make([]float64, len(intraday))
	closes := make([]float64, len(intraday))
	vols := make([]float64, len(intraday))
	for i, b := range intraday {
		highs[i], lows[i], closes[i], vols[i] = b.High, b.Low, b.Close, b.Vol
	}
	price := closes[len(closes)-1]
	if price <= 0 {
		return types.Candidate{}, false
	}

	// Price below intraday VWAP means the move has no backing today.
	vwap := ta.VWAP(highs, lows, closes, vols)
	if math.IsNaN(vwap) || price < vwap {
		logger.Debug(ctx, "candidate below vwap", "symbol", sig.Symbol, "price", price, "vwap", vwap)
		return types.Candidate{}, false
	}

	// Too-quiet names are not worth the slot.
	atr := ta.ATR(highs, lows, closes, 14)
	if math.IsNaN(atr) || atr/price*100 < e.cfg.MinATRPct {
		logger.Debug(ctx, "candidate volatility too low", "symbol", sig.Symbol, "atr_pct", atr/price*100)
		return types.Candidate{}, false
	}

	daily, err := e.md.Bars(ctx, sig.Symbol, "day", 40)
	if err != nil || len(daily) == 0 {
		return types.Candidate{}, false
	}
	dCloses := make([]float64, len(daily))
	dVols := make([]float64, len(daily))
	for i, b := range daily {
		dCloses[i], dVols[i] = b.Close, b.Vol
	}
	rsi := ta.RSI(dCloses, 14)
	avgVol := ta.SMA(dVols, 20)
	if math.IsNaN(rsi) || math.IsNaN(avgVol) || avgVol == 0 {
		return types.Candidate{}, false
	}
	rvol := dVols[len(dVols)-1] / avgVol

	return types.Candidate{
		Symbol:  sig.Symbol,
		Price:   price,
		Score:   rsi + 10*rvol,
		RSI:     rsi,
		RVol:    rvol,
		AddedAt: e.now(),
	}, true
}
