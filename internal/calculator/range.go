package calculator

import "math"

// Drawdown returns the change of the last close against the close shortDays ago and
// against the highest close of the trailing peakDays, both as fractions (negative is down).
func Drawdown(series []float64, shortDays, peakDays int) (fromShort, fromPeak float64, err error) {
	n := len(series)
	if shortDays < 1 || peakDays < 1 || n <= shortDays || n < peakDays {
		return 0, 0, ErrInsufficientData
	}
	last := series[n-1]

	high := math.Inf(-1)
	for i := n - peakDays; i < n; i++ {
		if series[i] > high {
			high = series[i]
		}
	}
	if ref := series[n-1-shortDays]; ref != 0 {
		fromShort = last/ref - 1
	}
	if high != 0 {
		fromPeak = last/high - 1
	}
	return fromShort, fromPeak, nil
}
