package interfaces

import (
	"context"

	"trend-trading-bot/internal/types"
)

type Scanner interface {
	Scan(ctx context.Context, symbols []string) (*types.ScanSummary, error)
}
