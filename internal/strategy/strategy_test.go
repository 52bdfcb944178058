package strategy

import (
	"math"
	"testing"

	"trend-trading-bot/internal/types"
)

// crossSeries is engineered so the close crosses the trailing stop from
// below exactly at index 5 and nowhere else.
func crossSeries() []types.Bar {
	mk := func(h, l, c float64) types.Bar {
		return types.Bar{Open: c, High: h, Low: l, Close: c, Vol: 1000}
	}
	return []types.Bar{
		mk(110, 100, 105),
		mk(110, 100, 105),
		mk(110, 100, 105),
		mk(106, 95, 96),  // breaks below the band, direction Down
		mk(104, 96, 97),  // still below the stop
		mk(120, 105, 115), // breaks above, close crosses the stop
		mk(118, 110, 114),
		mk(119, 111, 113),
		mk(117, 112, 116),
		mk(118, 113, 115),
	}
}

func TestBuyCrossFiresOnlyAtEngineeredIndex(t *testing.T) {
	bars := crossSeries()
	st, ok := ComputeTrendState(bars, 3)
	if !ok {
		t.Fatal("expected usable trend state")
	}
	for i := range bars {
		got := BuyCrossAt(bars, st, i)
		want := i == 5
		if got != want {
			t.Errorf("index %d: buy cross = %v, want %v", i, got, want)
		}
	}
}

func TestTrendStateCausality(t *testing.T) {
	bars := crossSeries()
	full, _ := ComputeTrendState(bars, 3)

	// Mutating bars strictly after index 5 must not change state at 5.
	mutated := make([]types.Bar, len(bars))
	copy(mutated, bars)
	for i := 6; i < len(mutated); i++ {
		mutated[i].High *= 3
		mutated[i].Low /= 3
		mutated[i].Close *= 2
	}
	st, _ := ComputeTrendState(mutated, 3)

	for i := 0; i <= 5; i++ {
		if st.Direction[i] != full.Direction[i] {
			t.Errorf("index %d: direction changed by future bars", i)
		}
		if !sameFloat(st.TrailingStop[i], full.TrailingStop[i]) {
			t.Errorf("index %d: trailing stop changed by future bars", i)
		}
		if !sameFloat(st.Resistance[i], full.Resistance[i]) || !sameFloat(st.Support[i], full.Support[i]) {
			t.Errorf("index %d: band changed by future bars", i)
		}
	}
}

func TestCloseEqualToBandIsNotABreakout(t *testing.T) {
	mk := func(h, l, c float64) types.Bar {
		return types.Bar{Open: c, High: h, Low: l, Close: c, Vol: 1}
	}
	bars := []types.Bar{
		mk(110, 100, 105),
		mk(110, 100, 105),
		mk(110, 100, 105),
		mk(110, 100, 110), // close == previous resistance: a tie, not a breakout
	}
	st, ok := ComputeTrendState(bars, 3)
	if !ok {
		t.Fatal("expected usable trend state")
	}
	if st.Direction[3] != types.DirFlat {
		t.Errorf("direction[3] = %v, want Flat on a tie", st.Direction[3])
	}
}

func TestTrailingStopUnsetBeforeFirstBreakout(t *testing.T) {
	mk := func(h, l, c float64) types.Bar {
		return types.Bar{Open: c, High: h, Low: l, Close: c, Vol: 1}
	}
	// Closes never leave the band, so the direction never resolves and
	// no stop exists to cross.
	bars := []types.Bar{
		mk(110, 100, 105),
		mk(110, 100, 104),
		mk(110, 100, 106),
		mk(110, 100, 105),
		mk(110, 100, 103),
		mk(110, 100, 107),
	}
	st, ok := ComputeTrendState(bars, 3)
	if !ok {
		t.Fatal("expected usable trend state")
	}
	for i := range bars {
		if st.Direction[i] != types.DirFlat {
			t.Errorf("direction[%d] = %v, want Flat", i, st.Direction[i])
		}
		if !math.IsNaN(st.TrailingStop[i]) {
			t.Errorf("trailing stop[%d] = %v, want NaN while flat", i, st.TrailingStop[i])
		}
		if BuyCrossAt(bars, st, i) || SellCrossAt(bars, st, i) {
			t.Errorf("index %d: no crossover can fire without a stop", i)
		}
	}
}

func TestInsufficientData(t *testing.T) {
	bars := crossSeries()[:3]
	_, ok := ComputeTrendState(bars, 3)
	if ok {
		t.Error("series shorter than w+1 should report insufficient data")
	}
}

func TestDirectionSticky(t *testing.T) {
	bars := crossSeries()
	st, _ := ComputeTrendState(bars, 3)
	// After the upward breakout at 5 the direction must stay Up through
	// the quiet bars that follow.
	for i := 5; i < len(bars); i++ {
		if st.Direction[i] != types.DirUp {
			t.Errorf("direction[%d] = %v, want Up", i, st.Direction[i])
		}
	}
	// And Down between the downward breakout and the reversal.
	for i := 3; i < 5; i++ {
		if st.Direction[i] != types.DirDown {
			t.Errorf("direction[%d] = %v, want Down", i, st.Direction[i])
		}
	}
}

func TestGoldenCross(t *testing.T) {
	p := Params{FastEMA: 2, SlowEMA: 3}
	closes := []float64{10, 10, 10, 10, 9, 12}
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		bars[i] = types.Bar{Close: c}
	}
	buy, sell := GoldenCross(bars, p)
	if !buy {
		t.Error("expected golden crossover buy on the final bar")
	}
	if sell {
		t.Error("unexpected sell")
	}

	// Fast already above slow on the previous bar: no fresh cross.
	buy, _ = GoldenCross(append(bars, types.Bar{Close: 13}), p)
	if buy {
		t.Error("no fresh cross expected once fast is already above slow")
	}
}

func TestGoldenCrossTooShort(t *testing.T) {
	bars := []types.Bar{{Close: 1}, {Close: 2}}
	buy, sell := GoldenCross(bars, DefaultParams())
	if buy || sell {
		t.Error("short series must not fire")
	}
}

func sniperBars(lastVol float64) []types.Bar {
	bars := make([]types.Bar, 250)
	for i := range bars {
		c := 100.0 + float64(i%2)
		bars[i] = types.Bar{Open: c, High: c + 1, Low: c - 1, Close: c, Vol: 1000}
	}
	bars[len(bars)-1].Vol = lastVol
	return bars
}

func TestClassifySniper(t *testing.T) {
	p := DefaultParams()
	if tier := Classify(sniperBars(2000), p); tier != types.TierSniper {
		t.Errorf("tier = %v, want Sniper", tier)
	}
	// Same setup without the volume surge degrades to Standard.
	if tier := Classify(sniperBars(1000), p); tier != types.TierStandard {
		t.Errorf("tier = %v, want Standard", tier)
	}
}

func TestClassifyShortHistoryIsStandard(t *testing.T) {
	if tier := Classify(sniperBars(2000)[:60], DefaultParams()); tier != types.TierStandard {
		t.Errorf("tier = %v, want Standard without long-EMA history", tier)
	}
}

func sameFloat(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}
