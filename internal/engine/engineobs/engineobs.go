package engineobs

import (
	"context"
	"time"

	"trend-trading-bot/internal/interfaces"
	"trend-trading-bot/internal/logger"
	"trend-trading-bot/internal/trace"
	"trend-trading-bot/internal/types"
)

type observableCycle struct {
	cycle interfaces.Cycle
}

var _ interfaces.Cycle = (*observableCycle)(nil)

func Wrap(c interfaces.Cycle) interfaces.Cycle {
	return &observableCycle{cycle: c}
}

func (oc *observableCycle) Run(ctx context.Context) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Run")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting trading cycle")

	result, err := oc.cycle.Run(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trading cycle failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	fields := []any{
		"candidates", result.Candidates,
		"buffered", result.Buffered,
		"exited", result.Exited,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if result.Scan != nil {
		fields = append(fields,
			"scanned", result.Scan.Scanned,
			"signals_found", result.Scan.SignalsFound,
		)
	}
	if result.Executed != "" {
		fields = append(fields, "executed", result.Executed)
	}
	if result.Skipped != "" {
		fields = append(fields, "skipped", result.Skipped)
	}
	logger.InfoSkip(ctx, 1, "Trading cycle completed", fields...)

	return result, nil
}
