package interfaces

import (
	"context"
	"time"

	"trend-trading-bot/internal/types"
)

// SignalStore persists buy signals. AddSignal is insert-if-absent keyed
// on (symbol, signal_date) and reports whether a row was inserted.
type SignalStore interface {
	AddSignal(ctx context.Context, s types.Signal) (bool, error)
	DeleteSignals(ctx context.Context, symbol string) (int64, error)
	RecentSignals(ctx context.Context, limit int) ([]types.Signal, error)
}

// TradeStore owns the durable paper-trade ledger. The daily counter is
// always derived from persisted entry times so it survives restarts.
type TradeStore interface {
	OpenTrade(ctx context.Context, t types.PaperTrade) (int64, error)
	OpenTrades(ctx context.Context) ([]types.PaperTrade, error)
	CloseTrade(ctx context.Context, id int64, exitPrice, pnl float64, reason string, exitTime time.Time) error
	TradesOpenedOn(ctx context.Context, day time.Time) (int, error)
}

type PortfolioStore interface {
	AddToPortfolio(ctx context.Context, symbol string, price float64, status, notes string) (bool, error)
	ClosePosition(ctx context.Context, symbol string) error
	ActivePortfolio(ctx context.Context) ([]types.PortfolioItem, error)
	RemoveFromPortfolio(ctx context.Context, symbol string) error
}
