package strategy

import (
	"math"

	"trend-trading-bot/internal/ta"
	"trend-trading-bot/internal/types"
)

// Params collects the detector tuning knobs. Zero values fall back to the
// defaults via Normalize.
type Params struct {
	SwingWindow       int
	FastEMA           int
	SlowEMA           int
	LongEMA           int
	RSIPeriod         int
	VolumeWindow      int
	SniperVolumeRatio float64
	SniperRSIMin      float64
	SniperRSIMax      float64
}

func DefaultParams() Params {
	return Params{
		SwingWindow:       DefaultSwingWindow,
		FastEMA:           9,
		SlowEMA:           21,
		LongEMA:           200,
		RSIPeriod:         14,
		VolumeWindow:      20,
		SniperVolumeRatio: 1.5,
		SniperRSIMin:      40,
		SniperRSIMax:      70,
	}
}

func (p Params) Normalize() Params {
	d := DefaultParams()
	if p.SwingWindow <= 0 {
		p.SwingWindow = d.SwingWindow
	}
	if p.FastEMA <= 0 {
		p.FastEMA = d.FastEMA
	}
	if p.SlowEMA <= 0 {
		p.SlowEMA = d.SlowEMA
	}
	if p.LongEMA <= 0 {
		p.LongEMA = d.LongEMA
	}
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = d.RSIPeriod
	}
	if p.VolumeWindow <= 0 {
		p.VolumeWindow = d.VolumeWindow
	}
	if p.SniperVolumeRatio <= 0 {
		p.SniperVolumeRatio = d.SniperVolumeRatio
	}
	if p.SniperRSIMin <= 0 {
		p.SniperRSIMin = d.SniperRSIMin
	}
	if p.SniperRSIMax <= 0 {
		p.SniperRSIMax = d.SniperRSIMax
	}
	return p
}

// BuyCrossAt reports a close crossing from below the trailing stop to
// above it between bars t-1 and t.
func BuyCrossAt(bars []types.Bar, st *TrendState, t int) bool {
	if st == nil || t < 1 || t >= len(bars) || t >= len(st.TrailingStop) {
		return false
	}
	prevStop := st.TrailingStop[t-1]
	curStop := st.TrailingStop[t]
	if math.IsNaN(prevStop) || math.IsNaN(curStop) {
		return false
	}
	return bars[t-1].Close < prevStop && bars[t].Close > curStop
}

// SellCrossAt is the mirrored crossunder.
func SellCrossAt(bars []types.Bar, st *TrendState, t int) bool {
	if st == nil || t < 1 || t >= len(bars) || t >= len(st.TrailingStop) {
		return false
	}
	prevStop := st.TrailingStop[t-1]
	curStop := st.TrailingStop[t]
	if math.IsNaN(prevStop) || math.IsNaN(curStop) {
		return false
	}
	return bars[t-1].Close > prevStop && bars[t].Close < curStop
}

// DetectBuy checks the latest bar for a buy crossover.
func DetectBuy(bars []types.Bar, st *TrendState) bool {
	return BuyCrossAt(bars, st, len(bars)-1)
}

// DetectSell checks the latest bar for a sell crossunder.
func DetectSell(bars []types.Bar, st *TrendState) bool {
	return SellCrossAt(bars, st, len(bars)-1)
}

// GoldenCross evaluates the fast/slow EMA crossover at the latest bar.
// The comparison uses the previous bar's EMA pair so the signal cannot
// peek at the bar being formed; bars whose EMAs are still NaN never fire.
func GoldenCross(bars []types.Bar, p Params) (buy, sell bool) {
	p = p.Normalize()
	if len(bars) < p.SlowEMA+1 {
		return false, false
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	fast := ta.EMASeries(closes, p.FastEMA)
	slow := ta.EMASeries(closes, p.SlowEMA)
	t := len(bars) - 1
	if math.IsNaN(fast[t-1]) || math.IsNaN(slow[t-1]) || math.IsNaN(fast[t]) || math.IsNaN(slow[t]) {
		return false, false
	}
	buy = fast[t-1] <= slow[t-1] && fast[t] > slow[t]
	sell = fast[t-1] >= slow[t-1] && fast[t] < slow[t]
	return buy, sell
}

// Classify grades a buy crossover that already fired. Sniper requires a
// close above the long EMA, RSI inside the momentum band, and volume
// above the ratio of the trailing average; anything short of all three
// is Standard. With too little history for the long EMA the sniper
// confirmation simply cannot pass.
func Classify(bars []types.Bar, p Params) types.StrengthTier {
	p = p.Normalize()
	closes := make([]float64, len(bars))
	vols := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		vols[i] = b.Vol
	}
	long := ta.EMA(closes, p.LongEMA)
	rsi := ta.RSI(closes, p.RSIPeriod)
	avgVol := ta.SMA(vols, p.VolumeWindow)

	if math.IsNaN(long) || math.IsNaN(rsi) || math.IsNaN(avgVol) {
		return types.TierStandard
	}
	last := bars[len(bars)-1]
	if last.Close > long &&
		rsi >= p.SniperRSIMin && rsi <= p.SniperRSIMax &&
		last.Vol > p.SniperVolumeRatio*avgVol {
		return types.TierSniper
	}
	return types.TierStandard
}

// TrendLabel gives the coarse trend annotation stored with a signal.
func TrendLabel(bars []types.Bar, p Params) string {
	p = p.Normalize()
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	long := ta.EMA(closes, p.LongEMA)
	rsi := ta.RSI(closes, p.RSIPeriod)
	if math.IsNaN(long) || math.IsNaN(rsi) {
		return "Neutral"
	}
	price := closes[len(closes)-1]
	switch {
	case price > long && rsi > 60:
		return "Strong Uptrend"
	case price > long:
		return "Uptrend"
	case price < long && rsi < 40:
		return "Strong Downtrend"
	case price < long:
		return "Downtrend"
	default:
		return "Neutral"
	}
}
