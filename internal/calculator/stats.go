package calculator

import (
	"errors"
	"math"
	"sort"
)

// ErrInsufficientData is returned when a series is shorter than the requested window.
var ErrInsufficientData = errors.New("not enough data")

// Mean returns the arithmetic mean of xs.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the sample standard deviation (n-1 denominator).
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// ZScore returns how many standard deviations the last value sits from the mean of the
// trailing window. A flat window yields 0.
func ZScore(series []float64, window int) (float64, error) {
	if window < 2 || len(series) < window {
		return 0, ErrInsufficientData
	}
	tail := series[len(series)-window:]
	sd := StdDev(tail)
	if sd == 0 || math.IsNaN(sd) {
		return 0, nil
	}
	return (tail[len(tail)-1] - Mean(tail)) / sd, nil
}

// PctChange returns x[i]/x[i-periods]-1 for every i >= periods. A zero base yields 0 so
// out[k] always lines up with series[k+periods].
func PctChange(series []float64, periods int) []float64 {
	if periods <= 0 || len(series) <= periods {
		return nil
	}
	out := make([]float64, len(series)-periods)
	for i := periods; i < len(series); i++ {
		if prev := series[i-periods]; prev != 0 {
			out[i-periods] = series[i]/prev - 1
		}
	}
	return out
}

// Diff returns a[i]-b[i] over the common tail of a and b. Callers pairing two tickers
// align them by date first (model.PriceSeries.AlignWith).
func Diff(a, b []float64) []float64 {
	n := min(len(a), len(b))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = a[len(a)-n+i] - b[len(b)-n+i]
	}
	return out
}

// AnnualizedVol is the sample stdev of the last period daily returns scaled by sqrt(252).
func AnnualizedVol(series []float64, period int) (float64, error) {
	returns := PctChange(series, 1)
	if len(returns) < period {
		return 0, ErrInsufficientData
	}
	return StdDev(returns[len(returns)-period:]) * math.Sqrt(252), nil
}

// MaxSpike returns the largest rise of the last value over each of the previous lookback values.
func MaxSpike(series []float64, lookback int) (float64, error) {
	if len(series) < lookback+1 {
		return 0, ErrInsufficientData
	}
	last := series[len(series)-1]
	best := math.Inf(-1)
	for k := 1; k <= lookback; k++ {
		prev := series[len(series)-1-k]
		if prev == 0 {
			continue
		}
		best = math.Max(best, last/prev-1)
	}
	if math.IsInf(best, -1) {
		return 0, nil
	}
	return best, nil
}

// PercentileOf returns the percentage of observations less than or equal to v.
func PercentileOf(series []float64, v float64) int {
	if len(series) == 0 {
		return 0
	}
	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)
	n := sort.Search(len(sorted), func(i int) bool { return sorted[i] > v })
	return int(float64(n) / float64(len(sorted)) * 100)
}
