package interfaces

import (
	"context"

	"trend-trading-bot/internal/types"
)

// MarketData supplies OHLCV bars. Implementations must tolerate symbols
// with no data: Bars returns an empty slice, BatchBars omits the symbol
// from the result map. A symbol present in a request is never assumed
// present in the response.
type MarketData interface {
	Bars(ctx context.Context, symbol, interval string, n int) ([]types.Bar, error)
	BatchBars(ctx context.Context, symbols []string, interval string, n int) (map[string][]types.Bar, error)
	LTP(ctx context.Context, symbol string) (float64, error)
}
