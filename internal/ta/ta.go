package ta

import "math"

func SMA(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum / float64(n)
}

// EMASeries returns the full EMA series. Indices before n-1 are NaN; the
// value at n-1 is seeded with the SMA of the first n inputs.
func EMASeries(vals []float64, n int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(vals) < n || n <= 0 {
		return out
	}
	seed := 0.0
	for i := 0; i < n; i++ {
		seed += vals[i]
	}
	seed /= float64(n)
	out[n-1] = seed
	k := 2.0 / float64(n+1)
	for i := n; i < len(vals); i++ {
		out[i] = out[i-1] + k*(vals[i]-out[i-1])
	}
	return out
}

func EMA(vals []float64, n int) float64 {
	s := EMASeries(vals, n)
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1]
}

func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100.0 - (100.0 / (1.0 + rs))
}

func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return math.NaN()
	}
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		sum += math.Max(tr1, math.Max(tr2, tr3))
	}
	return sum / float64(period)
}

// VWAP is the cumulative volume-weighted average of the typical price
// over the whole slice, i.e. the intraday VWAP when the slice covers the
// session.
func VWAP(highs, lows, closes, vols []float64) float64 {
	if len(highs) == 0 || len(highs) != len(lows) || len(lows) != len(closes) || len(closes) != len(vols) {
		return math.NaN()
	}
	var pv, v float64
	for i := range closes {
		tp := (highs[i] + lows[i] + closes[i]) / 3.0
		pv += tp * vols[i]
		v += vols[i]
	}
	if v == 0 {
		return math.NaN()
	}
	return pv / v
}

// RollingMax returns the trailing max over windows of size w. Indices
// before w-1 are NaN.
func RollingMax(vals []float64, w int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i < w-1 || w <= 0 {
			out[i] = math.NaN()
			continue
		}
		m := vals[i]
		for j := i - w + 1; j < i; j++ {
			if vals[j] > m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}

func RollingMin(vals []float64, w int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i < w-1 || w <= 0 {
			out[i] = math.NaN()
			continue
		}
		m := vals[i]
		for j := i - w + 1; j < i; j++ {
			if vals[j] < m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}
