package strategy

import (
	"math"

	"trend-trading-bot/internal/ta"
	"trend-trading-bot/internal/types"
)

// DefaultSwingWindow is the rolling band size for swing support and
// resistance.
const DefaultSwingWindow = 3

// TrendState holds the per-bar trailing-stop state for one bar series.
// Every slice has the same length as the input series; entries before the
// first full window are NaN (Flat for Direction) and unusable.
type TrendState struct {
	Resistance   []float64
	Support      []float64
	Direction    []types.Direction
	TrailingStop []float64
}

// ComputeTrendState derives the resistance/support band and trailing stop
// for the series. Values at index t depend only on bars up to t.
//
// Breakouts are judged against the previous bar's band with strict
// comparisons: a close equal to the prior resistance is not a breakout.
// Direction is sticky; it carries the last breakout side forward and is
// Flat only before the first breakout ever seen.
//
// Returns ok=false when the series is too short (fewer than w+1 bars) to
// produce a single usable value. That is an insufficient-data outcome,
// not an error.
func ComputeTrendState(bars []types.Bar, w int) (*TrendState, bool) {
	if w <= 0 {
		w = DefaultSwingWindow
	}
	n := len(bars)
	st := &TrendState{
		Resistance:   make([]float64, n),
		Support:      make([]float64, n),
		Direction:    make([]types.Direction, n),
		TrailingStop: make([]float64, n),
	}
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}
	st.Resistance = ta.RollingMax(highs, w)
	st.Support = ta.RollingMin(lows, w)

	for t := 0; t < n; t++ {
		st.TrailingStop[t] = math.NaN()
		if t == 0 {
			st.Direction[t] = types.DirFlat
			continue
		}
		prevRes := st.Resistance[t-1]
		prevSup := st.Support[t-1]
		close := bars[t].Close

		switch {
		case !math.IsNaN(prevRes) && close > prevRes:
			st.Direction[t] = types.DirUp
		case !math.IsNaN(prevSup) && close < prevSup:
			st.Direction[t] = types.DirDown
		default:
			st.Direction[t] = st.Direction[t-1]
		}

		if st.Direction[t] == types.DirFlat {
			continue
		}
		if st.Direction[t] == types.DirUp {
			st.TrailingStop[t] = st.Support[t]
		} else {
			st.TrailingStop[t] = st.Resistance[t]
		}
	}

	return st, n >= w+1
}

// LatestStop returns the trailing stop of the last bar, NaN when the
// state is empty or still unusable there.
func (st *TrendState) LatestStop() float64 {
	if st == nil || len(st.TrailingStop) == 0 {
		return math.NaN()
	}
	return st.TrailingStop[len(st.TrailingStop)-1]
}
