package calculator

import "errors"

// RSI computes the Wilder-smoothed relative strength index over the given period.
// Requires at least period+1 closes. Returns 50.0 if data is insufficient.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period+1 {
		return 50.0, nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}

// Beta is cov(asset, market)/var(market) over the daily returns of two date-aligned close series.
func Beta(asset, market []float64, minReturns int) (float64, error) {
	ra, rm := PctChange(asset, 1), PctChange(market, 1)
	n := min(len(ra), len(rm))
	if n < 2 || n < minReturns {
		return 0, ErrInsufficientData
	}
	ra, rm = ra[len(ra)-n:], rm[len(rm)-n:]
	ma, mm := Mean(ra), Mean(rm)
	var cov, v float64
	for i := 0; i < n; i++ {
		cov += (ra[i] - ma) * (rm[i] - mm)
		v += (rm[i] - mm) * (rm[i] - mm)
	}
	if v == 0 {
		return 0, errors.New("market returns are flat")
	}
	return cov / v, nil
}
