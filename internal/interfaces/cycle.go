package interfaces

import (
	"context"

	"trend-trading-bot/internal/types"
)

type Cycle interface {
	Run(ctx context.Context) (*types.CycleResult, error)
}
