package types

import "time"

type Bar struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

// Direction is the sticky trend side of the trailing-stop state machine.
// It stays Flat only until the first band breakout.
type Direction int

const (
	DirFlat Direction = 0
	DirUp   Direction = 1
	DirDown Direction = -1
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "Up"
	case DirDown:
		return "Down"
	default:
		return "Flat"
	}
}

type StrengthTier string

const (
	TierStandard StrengthTier = "Standard"
	TierSniper   StrengthTier = "Sniper"
	TierGolden   StrengthTier = "Golden Crossover"
)

// Signal is a persisted buy signal. The store dedupes loosely on
// (Symbol, SignalDate) and deletes by symbol on a crossunder.
type Signal struct {
	ID         int64
	Symbol     string
	Price      float64
	SignalDate string // YYYY-MM-DD of the bar that fired
	TrendLabel string
	Strength   StrengthTier
	DetectedAt time.Time
}

// Candidate lives only in the in-process buffer between scan cycles.
type Candidate struct {
	Symbol  string
	Price   float64
	Score   float64
	RSI     float64
	RVol    float64
	AddedAt time.Time
}

type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

type PaperTrade struct {
	ID         int64
	Symbol     string
	EntryPrice float64
	Quantity   int
	StopLoss   float64
	Target     float64
	Status     TradeStatus
	EntryTime  time.Time
	ExitTime   time.Time
	ExitPrice  float64
	ExitReason string
	PnL        float64
}

type PortfolioItem struct {
	ID        int64
	Symbol    string
	Price     float64
	Status    string
	AddedDate time.Time
	Notes     string
}

// ScanSummary aggregates per-run outcome counters. Individual symbol
// failures never abort a scan; they land here instead.
type ScanSummary struct {
	Scanned        int `json:"scanned"`
	WithData       int `json:"with_data"`
	NoData         int `json:"no_data"`
	SignalsFound   int `json:"signals_found"`
	SignalsDeleted int `json:"signals_deleted"`
	BatchesFailed  int `json:"batches_failed"`
	StoreErrors    int `json:"store_errors"`
}

type CycleResult struct {
	Scan       *ScanSummary `json:"scan,omitempty"`
	Candidates int          `json:"candidates"`
	Buffered   int          `json:"buffered"`
	Executed   string       `json:"executed,omitempty"`
	Exited     int          `json:"exited"`
	Skipped    string       `json:"skipped,omitempty"`
}
