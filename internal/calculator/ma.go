package calculator

import "errors"

// SMA computes the simple moving average of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period), nil
}

// DaysBelowSMA counts the consecutive most recent closes that sit below their own
// trailing period-day average. It is 0 with less than period closes.
func DaysBelowSMA(closes []float64, period int) int {
	if period <= 0 || len(closes) < period {
		return 0
	}
	count := 0
	for end := len(closes); end >= period; end-- {
		ma, _ := SMA(closes[:end], period)
		if closes[end-1] >= ma {
			break
		}
		count++
	}
	return count
}

// RollingMax returns the highest of the last period closes.
func RollingMax(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period {
		return 0, ErrInsufficientData
	}
	high := closes[len(closes)-period]
	for _, c := range closes[len(closes)-period:] {
		if c > high {
			high = c
		}
	}
	return high, nil
}
