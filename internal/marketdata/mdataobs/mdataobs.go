package mdataobs

import (
	"context"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/trace"
	"trend-trading-bot/internal/types"
)

// observableMarketData wraps a MarketData source with observability
type observableMarketData struct {
	md interfaces.MarketData
}

// Compile-time interface check
var _ interfaces.MarketData = (*observableMarketData)(nil)

// Wrap wraps a market data source with observability middleware
func Wrap(md interfaces.MarketData) interfaces.MarketData {
	return &observableMarketData{md: md}
}

func (om *observableMarketData) Bars(ctx context.Context, symbol, interval string, n int) ([]types.Bar, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.Bars")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching bars", "symbol", symbol, "interval", interval, "count", n)

	bars, err := om.md.Bars(ctx, symbol, interval, n)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch bars", err, "symbol", symbol, "interval", interval)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Bars fetched", "symbol", symbol, "count", len(bars))
	return bars, nil
}

func (om *observableMarketData) BatchBars(ctx context.Context, symbols []string, interval string, n int) (map[string][]types.Bar, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.BatchBars")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching batch bars", "symbols", len(symbols), "interval", interval)

	res, err := om.md.BatchBars(ctx, symbols, interval, n)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch batch bars", err, "symbols", len(symbols))
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Batch bars fetched", "requested", len(symbols), "returned", len(res))
	return res, nil
}

func (om *observableMarketData) LTP(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.LTP")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching LTP", "symbol", symbol)

	price, err := om.md.LTP(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch LTP", err, "symbol", symbol)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "LTP fetched", "symbol", symbol, "price", price)
	return price, nil
}
